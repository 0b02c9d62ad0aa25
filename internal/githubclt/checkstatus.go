package githubclt

import (
	"context"
	"errors"
	"fmt"

	"github.com/shurcooL/githubv4"
)

// CIStatus abstracts the multiple result values of GitHub check runs and
// commit statuses into a single value.
type CIStatus string

const (
	CIStatusSuccess CIStatus = "SUCCESS"
	CIStatusPending CIStatus = "PENDING"
	CIStatusFailure CIStatus = "FAILURE"
	CIStatusUnknown CIStatus = "UNKNOWN"
)

// CheckStatus is the CI state of the head commit of a pull request.
type CheckStatus struct {
	Commit string
	Status CIStatus
}

// CheckStatus returns the [status check rollup] for the head commit of the
// pull request.
// When no checks or statuses are configured for the repository, GitHub
// reports no rollup state and CIStatusUnknown is returned.
//
// [status check rollup]: https://docs.github.com/en/graphql/reference/objects#statuscheckrollup
func (clt *Client) CheckStatus(ctx context.Context, owner, repo string, prNumber int) (*CheckStatus, error) {
	var query struct {
		Repository struct {
			PullRequest struct {
				Commits struct {
					Nodes []struct {
						Commit struct {
							Oid               string
							StatusCheckRollup *struct {
								State githubv4.StatusState
							}
						}
					}
				} `graphql:"commits(last: 1)"`
			} `graphql:"pullRequest(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	vars := map[string]any{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(repo),
		"number": githubv4.Int(prNumber),
	}

	if err := clt.graphQLClt.Query(ctx, &query, vars); err != nil {
		return nil, clt.wrapGraphQLRetryableErrors(err)
	}

	nodes := query.Repository.PullRequest.Commits.Nodes
	if len(nodes) == 0 {
		return nil, errors.New("github returned a pull request without commits")
	}

	commit := nodes[0].Commit
	if commit.Oid == "" {
		return nil, errors.New("github returned a commit with empty oid")
	}

	if commit.StatusCheckRollup == nil {
		return &CheckStatus{Commit: commit.Oid, Status: CIStatusUnknown}, nil
	}

	status, err := rollupStateToCIStatus(commit.StatusCheckRollup.State)
	if err != nil {
		return nil, err
	}

	return &CheckStatus{Commit: commit.Oid, Status: status}, nil
}

func rollupStateToCIStatus(state githubv4.StatusState) (CIStatus, error) {
	switch state {
	case githubv4.StatusStateSuccess:
		return CIStatusSuccess, nil

	case githubv4.StatusStatePending, githubv4.StatusStateExpected:
		return CIStatusPending, nil

	case githubv4.StatusStateError, githubv4.StatusStateFailure:
		return CIStatusFailure, nil

	default:
		return "", fmt.Errorf("unsupported status check rollup state: %q", state)
	}
}
