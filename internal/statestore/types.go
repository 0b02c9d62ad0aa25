// Package statestore persists per-repository polling state in the
// repository's dashboard issue.
// The state is embedded as a delimited JSON block in the issue body,
// surrounding human-readable text is left untouched by writes.
package statestore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// CheckConclusion is the aggregated result of a pull request's check runs.
type CheckConclusion string

const (
	CheckConclusionPending   CheckConclusion = "pending"
	CheckConclusionSuccess   CheckConclusion = "success"
	CheckConclusionFailure   CheckConclusion = "failure"
	CheckConclusionCancelled CheckConclusion = "cancelled"
)

// PRState is a snapshot of the facts about a pull request that are
// relevant for deciding if it must be reprocessed.
type PRState struct {
	Number          int             `json:"pr_number"`
	State           string          `json:"state"`
	UpdatedAt       time.Time       `json:"updated_at"`
	HeadSHA         string          `json:"head_sha"`
	MergeableState  string          `json:"mergeable_state"`
	CheckConclusion CheckConclusion `json:"check_conclusion"`
	HasConflicts    bool            `json:"has_conflicts"`
}

// ContentHash returns a deterministic hash over the fields that make two
// snapshots operationally different.
// The PR number, title and timestamps are deliberately excluded, they
// change without requiring reprocessing.
func (s *PRState) ContentHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%s\n%s\n%t",
		s.State, s.HeadSHA, s.MergeableState, s.CheckConclusion, s.HasConflicts,
	)

	return hex.EncodeToString(h.Sum(nil))
}

// MetricsSnapshot are per-repository counters recorded alongside the
// polling state, shown on the dashboard.
type MetricsSnapshot struct {
	TotalPolls        uint64 `json:"total_polls"`
	TotalPRsFound     uint64 `json:"total_prs_found"`
	TotalPRsProcessed uint64 `json:"total_prs_processed"`
}

// PollingMetadata is the durable per-repository polling record.
type PollingMetadata struct {
	LastPollTime *time.Time      `json:"last_poll_time"`
	PRStates     map[int]PRState `json:"pr_states"`
	ProcessedPRs []int           `json:"processed_prs"`
	Metrics      MetricsSnapshot `json:"metrics"`
}

func newPollingMetadata() *PollingMetadata {
	return &PollingMetadata{
		PRStates:     map[int]PRState{},
		ProcessedPRs: []int{},
	}
}

// Document is the JSON object stored between the state markers of a
// dashboard issue body.
type Document struct {
	Repository      string           `json:"repository"`
	LastUpdated     time.Time        `json:"last_updated"`
	PollingMetadata *PollingMetadata `json:"polling_metadata"`
}

func newDocument(repo string) *Document {
	return &Document{
		Repository:      repo,
		PollingMetadata: newPollingMetadata(),
	}
}
