package statestore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/renowatch/renowatch/internal/logfields"
)

const duplicateIssueComment = "Closing this issue, it duplicates the dependency update dashboard. " +
	"The oldest dashboard issue is kept as the canonical one."

// IssueClient is the GitHub API surface the store uses to manage
// dashboard issues.
type IssueClient interface {
	ListOpenIssues(ctx context.Context, owner, repo string) ([]*github.Issue, error)
	CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (*github.Issue, error)
	UpdateIssueBody(ctx context.Context, owner, repo string, number int, body string) error
	CloseIssue(ctx context.Context, owner, repo string, number int) error
	CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error
}

// Store reads and writes per-repository polling state.
// The state lives in the repository's dashboard issue, it is the only
// durable record the daemon keeps.
//
// Operations on a single repository must not run concurrently, the
// backing issue has no compare-and-swap and concurrent read-modify-write
// cycles would lose updates.
// The poller guarantees this by never fanning out two tasks for the same
// repository.
type Store struct {
	clt        IssueClient
	issueTitle string
	logger     *zap.Logger
}

// New creates a Store.
// issueTitle identifies the dashboard issue in each repository.
func New(clt IssueClient, issueTitle string, logger *zap.Logger) *Store {
	return &Store{
		clt:        clt,
		issueTitle: issueTitle,
		logger:     logger.Named("statestore"),
	}
}

// GetLastPollTime returns when the repository was last polled.
// It returns nil when the repository was never polled or no state exists.
func (s *Store) GetLastPollTime(ctx context.Context, owner, repo string) (*time.Time, error) {
	doc, _, err := s.loadDocument(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	if doc == nil {
		return nil, nil
	}

	return doc.PollingMetadata.LastPollTime, nil
}

// UpdateLastPollTime records when the repository was last polled.
func (s *Store) UpdateLastPollTime(ctx context.Context, owner, repo string, t time.Time) error {
	return s.modify(ctx, owner, repo, func(doc *Document) {
		doc.PollingMetadata.LastPollTime = &t
	})
}

// GetPRStates returns the stored pull request snapshots of the repository.
// An empty map is returned when no state exists.
func (s *Store) GetPRStates(ctx context.Context, owner, repo string) (map[int]PRState, error) {
	doc, _, err := s.loadDocument(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	if doc == nil {
		return map[int]PRState{}, nil
	}

	return doc.PollingMetadata.PRStates, nil
}

// UpdatePRStates replaces the stored pull request snapshots of the
// repository.
func (s *Store) UpdatePRStates(ctx context.Context, owner, repo string, states map[int]PRState) error {
	return s.modify(ctx, owner, repo, func(doc *Document) {
		doc.PollingMetadata.PRStates = states
	})
}

// IsProcessed reports whether the pull request was already processed.
func (s *Store) IsProcessed(ctx context.Context, owner, repo string, prNumber int) (bool, error) {
	doc, _, err := s.loadDocument(ctx, owner, repo)
	if err != nil {
		return false, err
	}

	if doc == nil {
		return false, nil
	}

	for _, nr := range doc.PollingMetadata.ProcessedPRs {
		if nr == prNumber {
			return true, nil
		}
	}

	return false, nil
}

// MarkProcessed records that the pull request was processed.
// The processed set is append-only, marking an already marked pull
// request is a no-op.
func (s *Store) MarkProcessed(ctx context.Context, owner, repo string, prNumber int) error {
	return s.modify(ctx, owner, repo, func(doc *Document) {
		for _, nr := range doc.PollingMetadata.ProcessedPRs {
			if nr == prNumber {
				return
			}
		}

		doc.PollingMetadata.ProcessedPRs = append(doc.PollingMetadata.ProcessedPRs, prNumber)
		doc.PollingMetadata.Metrics.TotalPRsProcessed++
	})
}

// RecordMetrics updates the stored per-repository counters.
func (s *Store) RecordMetrics(ctx context.Context, owner, repo string, polls, prsFound uint64) error {
	return s.modify(ctx, owner, repo, func(doc *Document) {
		doc.PollingMetadata.Metrics.TotalPolls += polls
		doc.PollingMetadata.Metrics.TotalPRsFound += prsFound
	})
}

// modify runs a read-modify-write cycle on the repository's state
// document.
// The dashboard issue is created when it does not exist.
// Prose in the issue body outside the state block is preserved.
func (s *Store) modify(ctx context.Context, owner, repo string, change func(*Document)) error {
	issue, err := s.findOrCreateIssue(ctx, owner, repo)
	if err != nil {
		return err
	}

	body := issue.GetBody()

	doc, err := extractDocument(body)
	if err != nil {
		s.logger.Warn(
			"state block in dashboard issue is malformed, starting with empty state",
			logfields.Event("statestore_block_malformed"),
			logfields.Repository(repo),
			logfields.Issue(issue.GetNumber()),
			zap.Error(err),
		)
	}

	if doc == nil {
		doc = newDocument(owner + "/" + repo)
	}

	change(doc)
	doc.LastUpdated = time.Now().UTC()

	newBody, err := embedDocument(body, doc)
	if err != nil {
		return err
	}

	if newBody == body {
		return nil
	}

	err = s.clt.UpdateIssueBody(ctx, owner, repo, issue.GetNumber(), newBody)
	if err != nil {
		return fmt.Errorf("updating dashboard issue %d failed: %w", issue.GetNumber(), err)
	}

	return nil
}

// loadDocument fetches the repository's state document.
// It returns a nil document when no dashboard issue or no state block
// exists, malformed state is logged and also treated as absent.
func (s *Store) loadDocument(ctx context.Context, owner, repo string) (*Document, *github.Issue, error) {
	issue, err := s.findIssue(ctx, owner, repo)
	if err != nil {
		return nil, nil, err
	}

	if issue == nil {
		return nil, nil, nil
	}

	doc, err := extractDocument(issue.GetBody())
	if err != nil {
		s.logger.Warn(
			"state block in dashboard issue is malformed, treating state as empty",
			logfields.Event("statestore_block_malformed"),
			logfields.Repository(repo),
			logfields.Issue(issue.GetNumber()),
			zap.Error(err),
		)

		return nil, issue, nil
	}

	return doc, issue, nil
}

// findIssue returns the canonical dashboard issue of the repository or
// nil when none exists.
// When multiple open issues carry the dashboard title the oldest one is
// canonical, the others are commented on and closed to prevent state
// being split across issues.
func (s *Store) findIssue(ctx context.Context, owner, repo string) (*github.Issue, error) {
	issues, err := s.clt.ListOpenIssues(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("listing open issues failed: %w", err)
	}

	var candidates []*github.Issue
	for _, issue := range issues {
		if strings.EqualFold(issue.GetTitle(), s.issueTitle) {
			candidates = append(candidates, issue)
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].GetCreatedAt().Time.Before(candidates[j].GetCreatedAt().Time)
	})

	canonical := candidates[0]

	for _, dup := range candidates[1:] {
		s.logger.Info(
			"closing duplicate dashboard issue",
			logfields.Event("statestore_duplicate_issue_closed"),
			logfields.Repository(repo),
			logfields.Issue(dup.GetNumber()),
			zap.Int("github.canonical_issue", canonical.GetNumber()),
		)

		if err := s.clt.CreateIssueComment(ctx, owner, repo, dup.GetNumber(), duplicateIssueComment); err != nil {
			s.logger.Warn(
				"commenting on duplicate dashboard issue failed",
				logfields.Event("statestore_duplicate_issue_comment_failed"),
				logfields.Repository(repo),
				logfields.Issue(dup.GetNumber()),
				zap.Error(err),
			)
		}

		if err := s.clt.CloseIssue(ctx, owner, repo, dup.GetNumber()); err != nil {
			return nil, fmt.Errorf("closing duplicate dashboard issue %d failed: %w", dup.GetNumber(), err)
		}
	}

	return canonical, nil
}

// findOrCreateIssue returns the canonical dashboard issue, creating it
// with an initial rendered body when the repository has none.
func (s *Store) findOrCreateIssue(ctx context.Context, owner, repo string) (*github.Issue, error) {
	issue, err := s.findIssue(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	if issue != nil {
		return issue, nil
	}

	doc := newDocument(owner + "/" + repo)
	doc.LastUpdated = time.Now().UTC()

	body, err := embedDocument(renderDashboard(doc), doc)
	if err != nil {
		return nil, err
	}

	issue, err = s.clt.CreateIssue(ctx, owner, repo, s.issueTitle, body, []string{"dependencies"})
	if err != nil {
		return nil, fmt.Errorf("creating dashboard issue failed: %w", err)
	}

	s.logger.Info(
		"dashboard issue created",
		logfields.Event("statestore_issue_created"),
		logfields.Repository(repo),
		logfields.Issue(issue.GetNumber()),
	)

	return issue, nil
}
