package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/renowatch/renowatch/internal/poller"
	"github.com/renowatch/renowatch/internal/provider"
)

type fakeClient struct {
	pr *github.PullRequest
}

func (f *fakeClient) GetPullRequest(_ context.Context, _, _ string, _ int) (*github.PullRequest, error) {
	return f.pr, nil
}

type recordingProcessor struct {
	mu        sync.Mutex
	processed []int
}

func (p *recordingProcessor) ProcessDiscoveredPR(_ context.Context, _, _ string, pr *github.PullRequest, _ poller.ChangeKind) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed = append(p.processed, pr.GetNumber())

	return nil
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.processed)
}

func botPR(number int) *github.PullRequest {
	login := "renovate[bot]"
	userType := "Bot"
	branch := "renovate/some-dep-1.x"

	return &github.PullRequest{
		Number: &number,
		User:   &github.User{Login: &login, Type: &userType},
		Head:   &github.PullRequestBranch{Ref: &branch},
	}
}

func humanPR(number int) *github.PullRequest {
	login := "jdoe"
	userType := "User"
	branch := "feature/parser"

	return &github.PullRequest{
		Number: &number,
		User:   &github.User{Login: &login, Type: &userType},
		Head:   &github.PullRequestBranch{Ref: &branch},
	}
}

func runLoop(t *testing.T, clt GithubClient, processor Processor) (chan *provider.Event, func()) {
	t.Helper()

	ch := make(chan *provider.Event, 1)
	loop := New(clt, processor, ch, zaptest.NewLogger(t))

	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(context.Background())
	}()

	return ch, func() {
		close(ch)
		<-done
	}
}

func TestBotPullRequestEventIsProcessed(t *testing.T) {
	processor := &recordingProcessor{}
	ch, stop := runLoop(t, &fakeClient{pr: botPR(42)}, processor)
	defer stop()

	ch <- &provider.Event{
		EventType:       "pull_request",
		Repository:      "testrepo",
		RepositoryOwner: "testorg",
		PullRequestNr:   42,
	}

	require.Eventually(t, func() bool {
		return processor.count() == 1
	}, 5*time.Second, time.Millisecond)
}

func TestHumanPullRequestEventIsIgnored(t *testing.T) {
	processor := &recordingProcessor{}
	ch, stop := runLoop(t, &fakeClient{pr: humanPR(7)}, processor)

	ch <- &provider.Event{
		EventType:       "pull_request",
		Repository:      "testrepo",
		RepositoryOwner: "testorg",
		PullRequestNr:   7,
	}

	stop()
	assert.Zero(t, processor.count())
}

func TestEventWithoutPullRequestIsIgnored(t *testing.T) {
	processor := &recordingProcessor{}
	ch, stop := runLoop(t, &fakeClient{}, processor)

	ch <- &provider.Event{EventType: "push", Repository: "testrepo", RepositoryOwner: "testorg"}

	stop()
	assert.Zero(t, processor.count())
}
