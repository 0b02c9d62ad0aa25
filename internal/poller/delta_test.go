package poller

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renowatch/renowatch/internal/githubclt"
	"github.com/renowatch/renowatch/internal/statestore"
)

func observation(number int, headSHA string, conclusion statestore.CheckConclusion) PRObservation {
	return PRObservation{
		State: statestore.PRState{
			Number:          number,
			State:           "open",
			HeadSHA:         headSHA,
			MergeableState:  "clean",
			CheckConclusion: conclusion,
		},
	}
}

func kindsByNumber(changes []Change) map[int]ChangeKind {
	result := map[int]ChangeKind{}
	for _, change := range changes {
		result[change.Observation.State.Number] = change.Kind
	}

	return result
}

func TestDetectChangesClassification(t *testing.T) {
	prev := map[int]statestore.PRState{
		1: observation(1, "aaa", statestore.CheckConclusionPending).State,
		2: observation(2, "bbb", statestore.CheckConclusionPending).State,
	}

	current := []PRObservation{
		observation(1, "aaa", statestore.CheckConclusionPending), // identical
		observation(2, "bbb", statestore.CheckConclusionSuccess), // checks finished
		observation(3, "ccc", statestore.CheckConclusionPending), // first sighting
	}

	changes := detectChanges(prev, current)
	require.Len(t, changes, 3)

	kinds := kindsByNumber(changes)
	assert.Equal(t, ChangeKindUnchanged, kinds[1])
	assert.Equal(t, ChangeKindUpdated, kinds[2])
	assert.Equal(t, ChangeKindNew, kinds[3])
}

func TestDetectChangesEmptyPreviousStatesMeansAllNew(t *testing.T) {
	current := []PRObservation{
		observation(1, "aaa", statestore.CheckConclusionPending),
		observation(2, "bbb", statestore.CheckConclusionSuccess),
	}

	changes := detectChanges(map[int]statestore.PRState{}, current)
	require.Len(t, changes, 2)

	for _, change := range changes {
		assert.Equal(t, ChangeKindNew, change.Kind)
	}
}

func TestDetectChangesObservationErrorForcesNew(t *testing.T) {
	prev := map[int]statestore.PRState{
		1: observation(1, "aaa", statestore.CheckConclusionPending).State,
	}

	obs := observation(1, "aaa", statestore.CheckConclusionPending)
	obs.Err = errors.New("check status query failed")

	changes := detectChanges(prev, []PRObservation{obs})
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeKindNew, changes[0].Kind)
}

func TestDetectChangesIsIdempotent(t *testing.T) {
	current := []PRObservation{
		observation(1, "aaa", statestore.CheckConclusionSuccess),
		observation(2, "bbb", statestore.CheckConclusionFailure),
	}

	// persisting the returned snapshots and diffing again yields no changes
	changes := detectChanges(snapshotStates(current), current)
	require.Len(t, changes, 2)

	for _, change := range changes {
		assert.Equal(t, ChangeKindUnchanged, change.Kind)
	}
}

func TestSnapshotStatesIncludesAllObservations(t *testing.T) {
	obsWithErr := observation(2, "bbb", statestore.CheckConclusionPending)
	obsWithErr.Err = errors.New("boom")

	states := snapshotStates([]PRObservation{
		observation(1, "aaa", statestore.CheckConclusionSuccess),
		obsWithErr,
	})

	assert.Len(t, states, 2)
	assert.Contains(t, states, 1)
	assert.Contains(t, states, 2)
}

func TestObservePR(t *testing.T) {
	number := 42
	state := "open"
	sha := "abc123"
	mergeable := "dirty"
	updatedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	pr := &github.PullRequest{
		Number:         &number,
		State:          &state,
		MergeableState: &mergeable,
		UpdatedAt:      &github.Timestamp{Time: updatedAt},
		Head:           &github.PullRequestBranch{SHA: &sha},
	}

	snapshot := observePR(pr, githubclt.CIStatusFailure)

	assert.Equal(t, 42, snapshot.Number)
	assert.Equal(t, "open", snapshot.State)
	assert.Equal(t, "abc123", snapshot.HeadSHA)
	assert.Equal(t, "dirty", snapshot.MergeableState)
	assert.Equal(t, statestore.CheckConclusionFailure, snapshot.CheckConclusion)
	assert.True(t, snapshot.HasConflicts)
	assert.True(t, snapshot.UpdatedAt.Equal(updatedAt))
}

func TestCIStatusToConclusion(t *testing.T) {
	assert.Equal(t, statestore.CheckConclusionSuccess, ciStatusToConclusion(githubclt.CIStatusSuccess))
	assert.Equal(t, statestore.CheckConclusionFailure, ciStatusToConclusion(githubclt.CIStatusFailure))
	assert.Equal(t, statestore.CheckConclusionPending, ciStatusToConclusion(githubclt.CIStatusPending))
	assert.Equal(t, statestore.CheckConclusionPending, ciStatusToConclusion(githubclt.CIStatusUnknown))
}
