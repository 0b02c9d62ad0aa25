package poller

import (
	"github.com/google/go-github/v59/github"

	"github.com/renowatch/renowatch/internal/githubclt"
	"github.com/renowatch/renowatch/internal/statestore"
)

// ChangeKind classifies a pull request observation relative to the stored
// state of the previous poll.
type ChangeKind string

const (
	ChangeKindNew       ChangeKind = "new"
	ChangeKindUpdated   ChangeKind = "updated"
	ChangeKindUnchanged ChangeKind = "unchanged"
)

// PRObservation is one pull request as seen during the current poll.
// Err is set when deriving the snapshot failed, e.g. the check status
// query errored.
type PRObservation struct {
	PR    *github.PullRequest
	State statestore.PRState
	Err   error
}

// Change pairs an observation with its classification.
type Change struct {
	Observation PRObservation
	Kind        ChangeKind
}

// detectChanges classifies the current observations against the snapshots
// of the previous poll.
//
// An observation without a previous snapshot is new.
// An observation whose content hash differs from the stored one is
// updated.
// An observation whose snapshot could not be fully derived is treated as
// new, reprocessing a pull request is cheaper than missing an update.
// Callers that could not read the previous snapshots at all pass an empty
// map, which classifies everything as new.
func detectChanges(previous map[int]statestore.PRState, current []PRObservation) []Change {
	changes := make([]Change, 0, len(current))

	for _, obs := range current {
		if obs.Err != nil {
			changes = append(changes, Change{Observation: obs, Kind: ChangeKindNew})
			continue
		}

		prev, exists := previous[obs.State.Number]
		if !exists {
			changes = append(changes, Change{Observation: obs, Kind: ChangeKindNew})
			continue
		}

		if prev.ContentHash() != obs.State.ContentHash() {
			changes = append(changes, Change{Observation: obs, Kind: ChangeKindUpdated})
			continue
		}

		changes = append(changes, Change{Observation: obs, Kind: ChangeKindUnchanged})
	}

	return changes
}

// snapshotStates converts observations into the snapshot map to persist.
// All observations are included, also unchanged ones, so stored
// timestamps and hashes stay current.
// Observations with a derivation error are included with the partial
// snapshot that could be derived.
func snapshotStates(current []PRObservation) map[int]statestore.PRState {
	states := make(map[int]statestore.PRState, len(current))

	for _, obs := range current {
		states[obs.State.Number] = obs.State
	}

	return states
}

// observePR derives the persistable snapshot of a pull request.
func observePR(pr *github.PullRequest, checkStatus githubclt.CIStatus) statestore.PRState {
	mergeableState := pr.GetMergeableState()

	return statestore.PRState{
		Number:          pr.GetNumber(),
		State:           pr.GetState(),
		UpdatedAt:       pr.GetUpdatedAt().Time,
		HeadSHA:         pr.GetHead().GetSHA(),
		MergeableState:  mergeableState,
		CheckConclusion: ciStatusToConclusion(checkStatus),
		HasConflicts:    mergeableState == "dirty",
	}
}

func ciStatusToConclusion(status githubclt.CIStatus) statestore.CheckConclusion {
	switch status {
	case githubclt.CIStatusSuccess:
		return statestore.CheckConclusionSuccess
	case githubclt.CIStatusFailure:
		return statestore.CheckConclusionFailure
	default:
		return statestore.CheckConclusionPending
	}
}
