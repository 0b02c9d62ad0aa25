package statestore

import (
	"encoding/json"
	"fmt"
	"strings"
)

// The state block is embedded in the issue body as an HTML comment, it is
// invisible when GitHub renders the issue.
const (
	stateMarkerBegin = "<!-- RENOWATCH-STATE"
	stateMarkerEnd   = "RENOWATCH-STATE -->"
)

// extractDocument parses the state block out of an issue body.
// A missing or malformed block yields a nil document, callers treat that
// as empty state.
func extractDocument(body string) (*Document, error) {
	begin := strings.Index(body, stateMarkerBegin)
	if begin == -1 {
		return nil, nil
	}

	rest := body[begin+len(stateMarkerBegin):]

	end := strings.Index(rest, stateMarkerEnd)
	if end == -1 {
		return nil, fmt.Errorf("state block begin marker found but end marker is missing")
	}

	var doc Document
	if err := json.Unmarshal([]byte(rest[:end]), &doc); err != nil {
		return nil, fmt.Errorf("unmarshalling state block failed: %w", err)
	}

	if doc.PollingMetadata == nil {
		doc.PollingMetadata = newPollingMetadata()
	}

	if doc.PollingMetadata.PRStates == nil {
		doc.PollingMetadata.PRStates = map[int]PRState{}
	}

	if doc.PollingMetadata.ProcessedPRs == nil {
		doc.PollingMetadata.ProcessedPRs = []int{}
	}

	return &doc, nil
}

// embedDocument replaces the state block in body with the serialized
// document.
// Text outside the markers is preserved unmodified.
// When body contains no state block the block is appended.
func embedDocument(body string, doc *Document) (string, error) {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshalling state block failed: %w", err)
	}

	block := stateMarkerBegin + "\n" + string(payload) + "\n" + stateMarkerEnd

	begin := strings.Index(body, stateMarkerBegin)
	if begin == -1 {
		if body == "" {
			return block, nil
		}

		return strings.TrimRight(body, "\n") + "\n\n" + block + "\n", nil
	}

	rest := body[begin+len(stateMarkerBegin):]

	end := strings.Index(rest, stateMarkerEnd)
	if end == -1 {
		// A begin marker without end marker means the block is damaged
		// beyond repair, everything after the begin marker is replaced.
		return body[:begin] + block, nil
	}

	after := rest[end+len(stateMarkerEnd):]

	return body[:begin] + block + after, nil
}
