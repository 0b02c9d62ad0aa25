// Package processor acts on the dependency update pull requests the
// poller discovered.
// Pull requests with passing checks are approved, pull requests with
// failing checks optionally get a lockfile fix commit pushed to their
// branch.
package processor

import (
	"context"
	"fmt"
	"os"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/renowatch/renowatch/internal/depfix"
	"github.com/renowatch/renowatch/internal/githubclt"
	"github.com/renowatch/renowatch/internal/gitrepo"
	"github.com/renowatch/renowatch/internal/logfields"
	"github.com/renowatch/renowatch/internal/poller"
	"github.com/renowatch/renowatch/internal/retry"
)

const approveMessage = "Checks passed, approving dependency update."

// GithubClient is the GitHub API surface the processor uses.
type GithubClient interface {
	CheckStatus(ctx context.Context, owner, repo string, prNumber int) (*githubclt.CheckStatus, error)
	ApprovePR(ctx context.Context, owner, repo string, number int, message string) error
	CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error
}

// StateStore records which pull requests were already processed.
type StateStore interface {
	IsProcessed(ctx context.Context, owner, repo string, prNumber int) (bool, error)
	MarkProcessed(ctx context.Context, owner, repo string, prNumber int) error
}

// Opts configures a Processor.
type Opts struct {
	Clt        GithubClient
	StateStore StateStore
	Retryer    *retry.Retryer
	Logger     *zap.Logger

	// APIToken is used to authenticate git operations on pull request
	// branches.
	APIToken string
	// AutoApprove enables approving pull requests with passing checks.
	AutoApprove bool
	// FixLockfiles enables pushing lockfile fix commits to pull requests
	// with failing checks.
	FixLockfiles bool
}

// Processor implements the poller's Processor interface.
type Processor struct {
	clt        GithubClient
	stateStore StateStore
	retryer    *retry.Retryer
	logger     *zap.Logger

	apiToken     string
	autoApprove  bool
	fixLockfiles bool
}

func New(opts Opts) *Processor {
	return &Processor{
		clt:          opts.Clt,
		stateStore:   opts.StateStore,
		retryer:      opts.Retryer,
		logger:       opts.Logger.Named("processor"),
		apiToken:     opts.APIToken,
		autoApprove:  opts.AutoApprove,
		fixLockfiles: opts.FixLockfiles,
	}
}

// ProcessDiscoveredPR handles one discovered pull request.
// What happens depends on the aggregated check status:
// passing checks lead to an approval, failing checks to a lockfile fix
// attempt, pending checks to nothing, the pull request is rediscovered
// as updated once the checks finish.
func (p *Processor) ProcessDiscoveredPR(ctx context.Context, owner, repo string, pr *github.PullRequest, kind poller.ChangeKind) error {
	logger := p.logger.With(
		logfields.Repository(repo),
		logfields.RepositoryOwner(owner),
		logfields.PullRequest(pr.GetNumber()),
	)

	if kind == poller.ChangeKindNew {
		processed, err := p.stateStore.IsProcessed(ctx, owner, repo, pr.GetNumber())
		if err != nil {
			return fmt.Errorf("querying processed state failed: %w", err)
		}

		if processed {
			logger.Debug(
				"skipping already processed pull request",
				logfields.Event("pull_request_already_processed"),
			)

			return nil
		}
	}

	checkStatus, err := p.clt.CheckStatus(ctx, owner, repo, pr.GetNumber())
	if err != nil {
		return fmt.Errorf("querying check status failed: %w", err)
	}

	switch checkStatus.Status {
	case githubclt.CIStatusSuccess:
		return p.approve(ctx, logger, owner, repo, pr)

	case githubclt.CIStatusFailure:
		return p.fix(ctx, logger, owner, repo, pr)

	default:
		logger.Debug(
			"pull request checks are still running, deferring processing",
			logfields.Event("pull_request_processing_deferred"),
		)

		return nil
	}
}

func (p *Processor) approve(ctx context.Context, logger *zap.Logger, owner, repo string, pr *github.PullRequest) error {
	if !p.autoApprove {
		return nil
	}

	err := p.retryer.Run(ctx, func(ctx context.Context) error {
		return p.clt.ApprovePR(ctx, owner, repo, pr.GetNumber(), approveMessage)
	}, []zap.Field{
		logfields.Repository(repo),
		logfields.PullRequest(pr.GetNumber()),
		logfields.Operation("approve_pr"),
	})
	if err != nil {
		return fmt.Errorf("approving pull request failed: %w", err)
	}

	logger.Info(
		"pull request approved",
		logfields.Event("pull_request_approved"),
	)

	if err := p.stateStore.MarkProcessed(ctx, owner, repo, pr.GetNumber()); err != nil {
		return fmt.Errorf("marking pull request as processed failed: %w", err)
	}

	return nil
}

// fix clones the pull request branch, reruns the dependency tools of the
// detected ecosystems and pushes the resulting lockfile changes.
func (p *Processor) fix(ctx context.Context, logger *zap.Logger, owner, repo string, pr *github.PullRequest) error {
	if !p.fixLockfiles {
		logger.Debug(
			"pull request checks failed, lockfile fixing is disabled",
			logfields.Event("pull_request_fix_skipped"),
		)

		return nil
	}

	branch := pr.GetHead().GetRef()

	dir, err := os.MkdirTemp("", "renowatch-fix-*")
	if err != nil {
		return fmt.Errorf("creating checkout directory failed: %w", err)
	}
	defer os.RemoveAll(dir)

	cloneURL := fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)

	checkout, err := gitrepo.Clone(ctx, dir, cloneURL, branch, p.apiToken)
	if err != nil {
		return err
	}

	fixers := depfix.Detect(dir)
	if len(fixers) == 0 {
		logger.Info(
			"no supported dependency ecosystem found in checkout",
			logfields.Event("pull_request_fix_no_ecosystem"),
			logfields.Branch(branch),
		)

		return nil
	}

	for _, fixer := range fixers {
		if err := fixer.Fix(ctx, dir); err != nil {
			return fmt.Errorf("fixing %s lockfiles failed: %w", fixer.Language(), err)
		}
	}

	hasChanges, err := checkout.HasChanges()
	if err != nil {
		return err
	}

	if !hasChanges {
		logger.Info(
			"lockfile fix produced no changes",
			logfields.Event("pull_request_fix_no_changes"),
			logfields.Branch(branch),
		)

		return nil
	}

	if err := checkout.CommitAll("Fix dependency lockfiles"); err != nil {
		return err
	}

	if err := checkout.Push(ctx); err != nil {
		return err
	}

	logger.Info(
		"lockfile fix commit pushed",
		logfields.Event("pull_request_fix_pushed"),
		logfields.Branch(branch),
	)

	err = p.clt.CreateIssueComment(ctx, owner, repo, pr.GetNumber(),
		"Pushed a commit that regenerates the dependency lockfiles.")
	if err != nil {
		logger.Warn(
			"commenting on pull request failed",
			logfields.Event("pull_request_comment_failed"),
			zap.Error(err),
		)
	}

	return nil
}
