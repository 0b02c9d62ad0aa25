package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/renowatch/renowatch/internal/githubclt"
	"github.com/renowatch/renowatch/internal/poller"
	"github.com/renowatch/renowatch/internal/retry"
)

type fakeClient struct {
	checkStatus githubclt.CIStatus
	checkErr    error
	approved    []int
	approveErr  error
	comments    []string
}

func (f *fakeClient) CheckStatus(_ context.Context, _, _ string, _ int) (*githubclt.CheckStatus, error) {
	if f.checkErr != nil {
		return nil, f.checkErr
	}

	return &githubclt.CheckStatus{Commit: "abc", Status: f.checkStatus}, nil
}

func (f *fakeClient) ApprovePR(_ context.Context, _, _ string, number int, _ string) error {
	if f.approveErr != nil {
		return f.approveErr
	}

	f.approved = append(f.approved, number)

	return nil
}

func (f *fakeClient) CreateIssueComment(_ context.Context, _, _ string, _ int, comment string) error {
	f.comments = append(f.comments, comment)
	return nil
}

type fakeStateStore struct {
	processed map[int]bool
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{processed: map[int]bool{}}
}

func (f *fakeStateStore) IsProcessed(_ context.Context, _, _ string, prNumber int) (bool, error) {
	return f.processed[prNumber], nil
}

func (f *fakeStateStore) MarkProcessed(_ context.Context, _, _ string, prNumber int) error {
	f.processed[prNumber] = true
	return nil
}

func newTestPR(number int) *github.PullRequest {
	branch := "renovate/some-dep-1.x"

	return &github.PullRequest{
		Number: &number,
		Head:   &github.PullRequestBranch{Ref: &branch},
	}
}

func newTestProcessor(t *testing.T, clt *fakeClient, store *fakeStateStore) *Processor {
	t.Helper()

	retryer := retry.NewRetryer()
	t.Cleanup(retryer.Stop)

	return New(Opts{
		Clt:         clt,
		StateStore:  store,
		Retryer:     retryer,
		Logger:      zaptest.NewLogger(t),
		AutoApprove: true,
	})
}

func TestPassingChecksLeadToApproval(t *testing.T) {
	clt := &fakeClient{checkStatus: githubclt.CIStatusSuccess}
	store := newFakeStateStore()
	p := newTestProcessor(t, clt, store)

	err := p.ProcessDiscoveredPR(context.Background(), "testorg", "testrepo", newTestPR(42), poller.ChangeKindNew)
	require.NoError(t, err)

	assert.Equal(t, []int{42}, clt.approved)
	assert.True(t, store.processed[42])
}

func TestAlreadyProcessedNewPRIsSkipped(t *testing.T) {
	clt := &fakeClient{checkStatus: githubclt.CIStatusSuccess}
	store := newFakeStateStore()
	store.processed[42] = true
	p := newTestProcessor(t, clt, store)

	err := p.ProcessDiscoveredPR(context.Background(), "testorg", "testrepo", newTestPR(42), poller.ChangeKindNew)
	require.NoError(t, err)

	assert.Empty(t, clt.approved)
}

func TestUpdatedPRIsReprocessedDespiteProcessedMark(t *testing.T) {
	clt := &fakeClient{checkStatus: githubclt.CIStatusSuccess}
	store := newFakeStateStore()
	store.processed[42] = true
	p := newTestProcessor(t, clt, store)

	err := p.ProcessDiscoveredPR(context.Background(), "testorg", "testrepo", newTestPR(42), poller.ChangeKindUpdated)
	require.NoError(t, err)

	assert.Equal(t, []int{42}, clt.approved)
}

func TestPendingChecksDeferProcessing(t *testing.T) {
	clt := &fakeClient{checkStatus: githubclt.CIStatusPending}
	store := newFakeStateStore()
	p := newTestProcessor(t, clt, store)

	err := p.ProcessDiscoveredPR(context.Background(), "testorg", "testrepo", newTestPR(42), poller.ChangeKindNew)
	require.NoError(t, err)

	assert.Empty(t, clt.approved)
	assert.False(t, store.processed[42])
}

func TestFailedChecksWithFixDisabledDoNothing(t *testing.T) {
	clt := &fakeClient{checkStatus: githubclt.CIStatusFailure}
	store := newFakeStateStore()
	p := newTestProcessor(t, clt, store)

	err := p.ProcessDiscoveredPR(context.Background(), "testorg", "testrepo", newTestPR(42), poller.ChangeKindNew)
	require.NoError(t, err)

	assert.Empty(t, clt.approved)
}

func TestCheckStatusErrorIsReturned(t *testing.T) {
	clt := &fakeClient{checkErr: errors.New("api unreachable")}
	store := newFakeStateStore()
	p := newTestProcessor(t, clt, store)

	err := p.ProcessDiscoveredPR(context.Background(), "testorg", "testrepo", newTestPR(42), poller.ChangeKindNew)
	require.Error(t, err)
}

func TestApproveErrorIsReturned(t *testing.T) {
	clt := &fakeClient{
		checkStatus: githubclt.CIStatusSuccess,
		approveErr:  errors.New("permission denied"),
	}
	store := newFakeStateStore()
	p := newTestProcessor(t, clt, store)

	err := p.ProcessDiscoveredPR(context.Background(), "testorg", "testrepo", newTestPR(42), poller.ChangeKindNew)
	require.Error(t, err)
	assert.False(t, store.processed[42])
}

func TestAutoApproveDisabled(t *testing.T) {
	clt := &fakeClient{checkStatus: githubclt.CIStatusSuccess}
	store := newFakeStateStore()

	retryer := retry.NewRetryer()
	t.Cleanup(retryer.Stop)

	p := New(Opts{
		Clt:        clt,
		StateStore: store,
		Retryer:    retryer,
		Logger:     zaptest.NewLogger(t),
	})

	err := p.ProcessDiscoveredPR(context.Background(), "testorg", "testrepo", newTestPR(42), poller.ChangeKindNew)
	require.NoError(t, err)

	assert.Empty(t, clt.approved)
}
