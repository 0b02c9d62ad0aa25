package statestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDocumentRoundTrip(t *testing.T) {
	pollTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	doc := newDocument("testorg/testrepo")
	doc.LastUpdated = pollTime
	doc.PollingMetadata.LastPollTime = &pollTime
	doc.PollingMetadata.PRStates[42] = PRState{
		Number:          42,
		State:           "open",
		UpdatedAt:       pollTime,
		HeadSHA:         "abc123",
		MergeableState:  "clean",
		CheckConclusion: CheckConclusionSuccess,
	}
	doc.PollingMetadata.ProcessedPRs = []int{7, 42}
	doc.PollingMetadata.Metrics.TotalPolls = 10

	body, err := embedDocument("", doc)
	require.NoError(t, err)

	parsed, err := extractDocument(body)
	require.NoError(t, err)
	require.NotNil(t, parsed)

	assert.Equal(t, doc.Repository, parsed.Repository)
	assert.Equal(t, doc.PollingMetadata.LastPollTime, parsed.PollingMetadata.LastPollTime)
	assert.Equal(t, doc.PollingMetadata.PRStates, parsed.PollingMetadata.PRStates)
	assert.Equal(t, doc.PollingMetadata.ProcessedPRs, parsed.PollingMetadata.ProcessedPRs)
	assert.Equal(t, doc.PollingMetadata.Metrics, parsed.PollingMetadata.Metrics)
}

func TestExtractDocumentMissingBlock(t *testing.T) {
	doc, err := extractDocument("# Dashboard\n\njust prose, no state\n")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestExtractDocumentMalformedJSON(t *testing.T) {
	body := "prose\n" + stateMarkerBegin + "\n{not json!\n" + stateMarkerEnd + "\nmore prose\n"

	_, err := extractDocument(body)
	require.Error(t, err)
}

func TestExtractDocumentMissingEndMarker(t *testing.T) {
	body := "prose\n" + stateMarkerBegin + "\n{}\n"

	_, err := extractDocument(body)
	require.Error(t, err)
}

func TestEmbedDocumentPreservesProse(t *testing.T) {
	const prefix = "# My Dashboard\n\nhand-written introduction\n\n"
	const suffix = "\n\nhand-written footer with trailing spaces   \n"

	doc := newDocument("testorg/testrepo")

	body, err := embedDocument(prefix+stateMarkerBegin+"\n{}\n"+stateMarkerEnd+suffix, doc)
	require.NoError(t, err)

	assert.True(t, len(body) > len(prefix)+len(suffix))
	assert.Equal(t, prefix, body[:len(prefix)])
	assert.Equal(t, suffix, body[len(body)-len(suffix):])
}

func TestEmbedDocumentAppendsBlockWhenAbsent(t *testing.T) {
	doc := newDocument("testorg/testrepo")

	body, err := embedDocument("# Dashboard\n\nprose only\n", doc)
	require.NoError(t, err)

	parsed, err := extractDocument(body)
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.Equal(t, "testorg/testrepo", parsed.Repository)
	assert.Contains(t, body, "prose only")
}

func TestContentHashIgnoresVolatileFields(t *testing.T) {
	base := PRState{
		Number:          1,
		State:           "open",
		UpdatedAt:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		HeadSHA:         "abc",
		MergeableState:  "clean",
		CheckConclusion: CheckConclusionPending,
	}

	changedTimestamp := base
	changedTimestamp.UpdatedAt = changedTimestamp.UpdatedAt.Add(time.Hour)
	assert.Equal(t, base.ContentHash(), changedTimestamp.ContentHash())

	changedNumber := base
	changedNumber.Number = 2
	assert.Equal(t, base.ContentHash(), changedNumber.ContentHash())
}

func TestContentHashChangesOnRelevantFields(t *testing.T) {
	base := PRState{
		State:           "open",
		HeadSHA:         "abc",
		MergeableState:  "clean",
		CheckConclusion: CheckConclusionPending,
	}

	mutations := map[string]func(*PRState){
		"State":           func(s *PRState) { s.State = "closed" },
		"HeadSHA":         func(s *PRState) { s.HeadSHA = "def" },
		"MergeableState":  func(s *PRState) { s.MergeableState = "dirty" },
		"CheckConclusion": func(s *PRState) { s.CheckConclusion = CheckConclusionFailure },
		"HasConflicts":    func(s *PRState) { s.HasConflicts = true },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			changed := base
			mutate(&changed)
			assert.NotEqual(t, base.ContentHash(), changed.ContentHash())
		})
	}
}
