// Package githubclt provides a github API client.
package githubclt

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/renowatch/renowatch/internal/logfields"
	"github.com/renowatch/renowatch/internal/watcherr"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "github_client"

// New returns a new github api client.
func New(oauthAPItoken string) *Client {
	httpClient := newHTTPClient(oauthAPItoken)
	return &Client{
		restClt:    github.NewClient(httpClient),
		graphQLClt: githubv4.NewClient(httpClient),
		logger:     zap.L().Named(loggerName),
	}
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

// Client is a github API client.
// All methods return a watcherr.RetryableError when an operation can be
// retried. This is e.g. the case when the API ratelimit is exceeded.
type Client struct {
	restClt    *github.Client
	graphQLClt *githubv4.Client
	logger     *zap.Logger
}

// RateLimit is the state of the shared REST API quota.
type RateLimit struct {
	Remaining int
	Limit     int
	Reset     time.Time
}

// RateLimit returns the current state of the core API quota.
func (clt *Client) RateLimit(ctx context.Context) (*RateLimit, error) {
	limits, _, err := clt.restClt.RateLimit.Get(ctx)
	if err != nil {
		return nil, clt.wrapRetryableErrors(err)
	}

	core := limits.GetCore()
	if core == nil {
		return nil, watcherr.NewRetryableAnytimeError(errors.New("github returned a rate limit response without core limits"))
	}

	return &RateLimit{
		Remaining: core.Remaining,
		Limit:     core.Limit,
		Reset:     core.Reset.Time,
	}, nil
}

// GetRepository returns the repository with the given owner and name.
func (clt *Client) GetRepository(ctx context.Context, owner, repo string) (*github.Repository, error) {
	repository, _, err := clt.restClt.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, clt.wrapRetryableErrors(err)
	}

	return repository, nil
}

// ListOrganizationRepositories returns the full names (owner/name) of all
// not-archived repositories of the organization.
func (clt *Client) ListOrganizationRepositories(ctx context.Context, org string) ([]string, error) {
	var result []string

	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		repos, resp, err := clt.restClt.Repositories.ListByOrg(ctx, org, opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		for _, repo := range repos {
			if repo.GetArchived() {
				continue
			}

			result = append(result, repo.GetFullName())
		}

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	return result, nil
}

// GetPullRequest returns a single pull request.
func (clt *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	pr, _, err := clt.restClt.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, clt.wrapRetryableErrors(err)
	}

	return pr, nil
}

// ApprovePR submits an approving review for the pull request.
// Approving an already approved pull request succeeds, GitHub records another
// review.
func (clt *Client) ApprovePR(ctx context.Context, owner, repo string, number int, message string) error {
	event := "APPROVE"
	_, _, err := clt.restClt.PullRequests.CreateReview(ctx, owner, repo, number, &github.PullRequestReviewRequest{
		Event: &event,
		Body:  &message,
	})

	return clt.wrapRetryableErrors(err)
}

// CreateIssue creates an issue and returns it.
func (clt *Client) CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (*github.Issue, error) {
	issue, _, err := clt.restClt.Issues.Create(ctx, owner, repo, &github.IssueRequest{
		Title:  &title,
		Body:   &body,
		Labels: &labels,
	})
	if err != nil {
		return nil, clt.wrapRetryableErrors(err)
	}

	return issue, nil
}

// UpdateIssueBody replaces the body of an issue.
func (clt *Client) UpdateIssueBody(ctx context.Context, owner, repo string, number int, body string) error {
	_, _, err := clt.restClt.Issues.Edit(ctx, owner, repo, number, &github.IssueRequest{
		Body: &body,
	})

	return clt.wrapRetryableErrors(err)
}

// CloseIssue closes an issue.
func (clt *Client) CloseIssue(ctx context.Context, owner, repo string, number int) error {
	state := "closed"
	_, _, err := clt.restClt.Issues.Edit(ctx, owner, repo, number, &github.IssueRequest{
		State: &state,
	})

	return clt.wrapRetryableErrors(err)
}

// ListOpenIssues returns all open issues of the repository.
// Pull requests, that the issues API also returns, are filtered out.
func (clt *Client) ListOpenIssues(ctx context.Context, owner, repo string) ([]*github.Issue, error) {
	var result []*github.Issue

	opts := &github.IssueListByRepoOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		issues, resp, err := clt.restClt.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}

			result = append(result, issue)
		}

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	return result, nil
}

// CreateIssueComment creates a comment in an issue or pull request.
func (clt *Client) CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error {
	_, _, err := clt.restClt.Issues.CreateComment(ctx, owner, repo, issueOrPRNr, &github.IssueComment{Body: &comment})
	return clt.wrapRetryableErrors(err)
}

type PRIterator interface {
	Next() (*github.PullRequest, error)
}

type PRIter struct {
	clt *Client

	ctx   context.Context
	owner string
	repo  string

	unseen []*github.PullRequest

	nextPage int
	finished bool
}

// Next returns the next pull request.
// When the last result was returned a nil PullRequest is returned.
func (it *PRIter) Next() (*github.PullRequest, error) {
	if len(it.unseen) > 0 {
		result := it.unseen[0]
		it.unseen = it.unseen[1:]

		return result, nil
	}

	if it.finished {
		return nil, nil
	}

	prs, resp, err := it.clt.restClt.PullRequests.List(it.ctx, it.owner, it.repo, &github.PullRequestListOptions{
		State:     "open",
		Sort:      "updated",
		Direction: "desc",
		ListOptions: github.ListOptions{
			Page:    it.nextPage,
			PerPage: 100,
		},
	})
	if err != nil {
		return nil, it.clt.wrapRetryableErrors(err)
	}

	if resp.NextPage == 0 || len(prs) == 0 {
		it.finished = true
	} else {
		it.nextPage = resp.NextPage
	}

	it.unseen = prs

	if len(it.unseen) == 0 {
		return nil, nil
	}

	return it.Next()
}

// ListOpenPullRequests returns an iterator for receiving all open pull
// requests of the repository, most recently updated first.
func (clt *Client) ListOpenPullRequests(ctx context.Context, owner, repo string) PRIterator { // interface is returned to make the method mockable
	return &PRIter{
		clt:      clt,
		ctx:      ctx,
		owner:    owner,
		repo:     repo,
		nextPage: 1,
	}
}

func (clt *Client) wrapRetryableErrors(err error) error {
	if err == nil {
		return nil
	}

	switch v := err.(type) {
	case *github.RateLimitError:
		clt.logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.Int("github_api_rate_limit", v.Rate.Limit),
			zap.Int("github_api_rate_limit_remaining", v.Rate.Remaining),
			zap.Time("github_api_rate_limit_reset_time", v.Rate.Reset.Time),
		)

		return watcherr.NewRetryableError(err, v.Rate.Reset.Time)

	case *github.AbuseRateLimitError:
		if v.RetryAfter != nil {
			return watcherr.NewRetryableError(err, time.Now().Add(*v.RetryAfter))
		}

		return watcherr.NewRetryableAnytimeError(err)

	case *github.ErrorResponse:
		if v.Response.StatusCode >= 500 && v.Response.StatusCode < 600 {
			return watcherr.NewRetryableAnytimeError(err)
		}
	}

	return err
}

var graphQlHTTPStatusErrRe = regexp.MustCompile(`^non-200 OK status code: ([0-9]+) .*`)

func (clt *Client) wrapGraphQLRetryableErrors(err error) error {
	matches := graphQlHTTPStatusErrRe.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return err
	}

	errcode, atoiErr := strconv.Atoi(matches[1])
	if atoiErr != nil {
		clt.logger.Info(
			"parsing http code from error string failed",
			zap.Error(atoiErr),
			zap.String("error_string", err.Error()),
			zap.String("http_errcode", matches[1]),
		)
		return err
	}

	if errcode >= 500 && errcode < 600 {
		return watcherr.NewRetryableAnytimeError(err)
	}

	return err
}
