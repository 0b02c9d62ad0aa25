// Package eventloop processes webhook events.
// It complements polling: a webhook about a dependency update pull
// request triggers immediate processing instead of waiting for the next
// poll cycle.
package eventloop

import (
	"context"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/renowatch/renowatch/internal/githubclt"
	"github.com/renowatch/renowatch/internal/logfields"
	"github.com/renowatch/renowatch/internal/poller"
	"github.com/renowatch/renowatch/internal/provider"
)

// GithubClient fetches the pull requests referenced by webhook events.
type GithubClient interface {
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
}

// Processor handles pull requests, the same collaborator the poller
// dispatches to.
type Processor interface {
	ProcessDiscoveredPR(ctx context.Context, owner, repo string, pr *github.PullRequest, kind poller.ChangeKind) error
}

// EvLoop reads webhook events from a channel and dispatches the affected
// dependency update pull requests to the processor.
type EvLoop struct {
	clt       GithubClient
	processor Processor
	ch        <-chan *provider.Event
	logger    *zap.Logger
}

func New(clt GithubClient, processor Processor, ch <-chan *provider.Event, logger *zap.Logger) *EvLoop {
	return &EvLoop{
		clt:       clt,
		processor: processor,
		ch:        ch,
		logger:    logger.Named("eventloop"),
	}
}

// Run processes events until the context is cancelled or the event
// channel is closed.
func (e *EvLoop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, open := <-e.ch:
			if !open {
				return
			}

			e.handle(ctx, event)
		}
	}
}

func (e *EvLoop) handle(ctx context.Context, event *provider.Event) {
	logger := e.logger.With(event.LogFields()...)

	if event.PullRequestNr == 0 || event.Repository == "" || event.RepositoryOwner == "" {
		logger.Debug(
			"ignoring event, it does not reference a pull request",
			logfields.Event("event_ignored"),
		)

		return
	}

	pr, err := e.clt.GetPullRequest(ctx, event.RepositoryOwner, event.Repository, event.PullRequestNr)
	if err != nil {
		logger.Error(
			"fetching pull request for event failed",
			logfields.Event("event_pull_request_fetch_failed"),
			zap.Error(err),
		)

		return
	}

	if !githubclt.IsRenovatePR(pr) {
		logger.Debug(
			"ignoring event, pull request is not a dependency update",
			logfields.Event("event_ignored"),
		)

		return
	}

	logger.Info(
		"dispatching pull request from webhook event",
		logfields.Event("event_pull_request_dispatched"),
	)

	err = e.processor.ProcessDiscoveredPR(ctx, event.RepositoryOwner, event.Repository, pr, poller.ChangeKindUpdated)
	if err != nil {
		logger.Error(
			"processing pull request failed",
			logfields.Event("event_pull_request_processing_failed"),
			zap.Error(err),
		)
	}
}
