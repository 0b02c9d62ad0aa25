// Package poller implements the polling core of the daemon.
// It periodically discovers dependency update pull requests in the
// configured repositories, detects which ones are new or changed since
// the previous poll and dispatches those to a processor.
package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/renowatch/renowatch/internal/cache"
	"github.com/renowatch/renowatch/internal/githubclt"
	"github.com/renowatch/renowatch/internal/logfields"
	"github.com/renowatch/renowatch/internal/ratelimit"
	"github.com/renowatch/renowatch/internal/routines"
	"github.com/renowatch/renowatch/internal/set"
	"github.com/renowatch/renowatch/internal/statestore"
)

// GithubClient is the GitHub API surface the poller uses.
type GithubClient interface {
	ListOrganizationRepositories(ctx context.Context, org string) ([]string, error)
	ListOpenPullRequests(ctx context.Context, owner, repo string) githubclt.PRIterator
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	CheckStatus(ctx context.Context, owner, repo string, prNumber int) (*githubclt.CheckStatus, error)
}

// StateStore persists per-repository polling state between cycles.
type StateStore interface {
	GetPRStates(ctx context.Context, owner, repo string) (map[int]statestore.PRState, error)
	UpdatePRStates(ctx context.Context, owner, repo string, states map[int]statestore.PRState) error
	UpdateLastPollTime(ctx context.Context, owner, repo string, t time.Time) error
	RecordMetrics(ctx context.Context, owner, repo string, polls, prsFound uint64) error
}

// Processor handles the pull requests the poller discovered.
type Processor interface {
	ProcessDiscoveredPR(ctx context.Context, owner, repo string, pr *github.PullRequest, kind ChangeKind) error
}

// RateLimiter advises the poller about GitHub API quota pressure.
type RateLimiter interface {
	Status(ctx context.Context) *ratelimit.Status
	ThrottleDelay(ctx context.Context) time.Duration
}

// Repository identifies a GitHub repository.
type Repository struct {
	Owner string
	Name  string
}

func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// parseRepository splits an "owner/name" string.
func parseRepository(fullName string) (Repository, error) {
	owner, name, found := strings.Cut(fullName, "/")
	if !found || owner == "" || name == "" {
		return Repository{}, fmt.Errorf("invalid repository name: %q, expecting owner/name format", fullName)
	}

	return Repository{Owner: owner, Name: name}, nil
}

// Opts configures a Poller.
type Opts struct {
	Clt         GithubClient
	StateStore  StateStore
	Processor   Processor
	RateLimiter RateLimiter
	PRFilter    *githubclt.PRFilter
	Logger      *zap.Logger

	// Repositories is an explicit allow-list of "owner/name" strings.
	// When empty, Organization is queried for its repositories instead.
	Repositories []string
	Organization string

	BaseInterval           time.Duration
	MinInterval            time.Duration
	MaxInterval            time.Duration
	AdaptivePolling        bool
	ConcurrentRepositories uint
	RepositoryTimeout      time.Duration
	MaxConsecutiveFailures int
}

// Poller runs the poll loop.
// Its lifecycle is Stopped, Running, Stopped again after Stop was called
// or the consecutive-failure ceiling was reached.
type Poller struct {
	clt         GithubClient
	stateStore  StateStore
	processor   Processor
	rateLimiter RateLimiter
	prFilter    *githubclt.PRFilter
	activity    *ActivityTracker
	logger      *zap.Logger

	repositories []string
	organization string

	baseInterval           time.Duration
	concurrency            uint
	repoTimeout            time.Duration
	maxConsecutiveFailures int

	repoListCache  *cache.Cache[string, []string]
	prDetailCache  *cache.Cache[string, *github.PullRequest]
	botDetectCache *cache.Cache[string, bool]

	mu           sync.Mutex
	running      bool
	lastRepos    []Repository
	failureCount int

	stopChan chan struct{}
	doneChan chan struct{}
}

// New creates a Poller in the Stopped state.
func New(opts Opts) *Poller {
	return &Poller{
		clt:                    opts.Clt,
		stateStore:             opts.StateStore,
		processor:              opts.Processor,
		rateLimiter:            opts.RateLimiter,
		prFilter:               opts.PRFilter,
		activity:               NewActivityTracker(opts.BaseInterval, opts.MinInterval, opts.MaxInterval, opts.AdaptivePolling),
		logger:                 opts.Logger.Named("poller"),
		repositories:           opts.Repositories,
		organization:           opts.Organization,
		baseInterval:           opts.BaseInterval,
		concurrency:            opts.ConcurrentRepositories,
		repoTimeout:            opts.RepositoryTimeout,
		maxConsecutiveFailures: opts.MaxConsecutiveFailures,
		repoListCache:          cache.New[string, []string](time.Minute),
		prDetailCache:          cache.New[string, *github.PullRequest](time.Minute),
		botDetectCache:         cache.New[string, bool](time.Minute),
	}
}

// Start runs the poll loop until Stop is called or too many consecutive
// cycles failed.
// It returns an error when the poller is already running.
// The loop runs in the calling goroutine.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("poller is already running")
	}

	p.running = true
	p.stopChan = make(chan struct{})
	p.doneChan = make(chan struct{})
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		close(p.doneChan)
	}()

	p.logger.Info("poller started", logfields.Event("poller_started"))

	consecutiveFailures := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopChan:
			p.logger.Info("poller stopped", logfields.Event("poller_stopped"))
			return nil
		default:
		}

		sleep, err := p.runCycle(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}

			consecutiveFailures++
			metricCycleFailuresTotal.Inc()

			p.mu.Lock()
			p.failureCount = consecutiveFailures
			p.mu.Unlock()

			p.logger.Error(
				"poll cycle failed",
				logfields.Event("poll_cycle_failed"),
				zap.Error(err),
				zap.Int("poll.consecutive_failures", consecutiveFailures),
			)

			if consecutiveFailures >= p.maxConsecutiveFailures {
				p.logger.Error(
					"reached maximum of consecutive poll cycle failures, halting poller",
					logfields.Event("poller_halted"),
					zap.Int("poll.max_consecutive_failures", p.maxConsecutiveFailures),
				)

				return fmt.Errorf("polling halted after %d consecutive cycle failures, last error: %w",
					consecutiveFailures, err)
			}

			sleep = p.baseInterval
		} else {
			consecutiveFailures = 0

			p.mu.Lock()
			p.failureCount = 0
			p.mu.Unlock()
		}

		if !p.sleep(ctx, sleep) {
			continue
		}
	}
}

// Stop terminates the poll loop cooperatively.
// The current cycle finishes, in-flight per-repository tasks are not
// cancelled.
// Stop blocks until the loop exited and can be called multiple times.
func (p *Poller) Stop() {
	p.mu.Lock()

	if !p.running {
		p.mu.Unlock()
		p.stopCaches()

		return
	}

	select {
	case <-p.stopChan:
	default:
		close(p.stopChan)
	}

	doneChan := p.doneChan
	p.mu.Unlock()

	<-doneChan
	p.stopCaches()
}

func (p *Poller) stopCaches() {
	p.repoListCache.Stop()
	p.prDetailCache.Stop()
	p.botDetectCache.Stop()
}

// sleep waits for the given duration.
// It returns false when the wait was interrupted by Stop or context
// cancellation.
func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-p.stopChan:
		return false
	case <-ctx.Done():
		return false
	}
}

// runCycle executes one poll cycle and returns how long to sleep until
// the next one.
func (p *Poller) runCycle(ctx context.Context) (time.Duration, error) {
	cycleID := uuid.New().String()
	logger := p.logger.With(logfields.PollCycle(cycleID))
	startTime := time.Now()

	metricCyclesTotal.Inc()

	rlStatus := p.rateLimiter.Status(ctx)
	metricRateLimitUsage.Set(rlStatus.Usage)

	backoffMultiplier := 1.0
	if rlStatus.ShouldSlowDown {
		backoffMultiplier = 2.0

		if delay := p.rateLimiter.ThrottleDelay(ctx); delay > 0 {
			logger.Info(
				"delaying poll cycle, api quota usage is high",
				logfields.Event("poll_cycle_throttled"),
				zap.Duration("poll.throttle_delay", delay),
				zap.Float64("github.rate_limit.usage", rlStatus.Usage),
			)

			if !p.sleep(ctx, delay) {
				return 0, nil
			}
		}
	}

	repos, err := p.resolveRepositories(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolving repository list failed: %w", err)
	}

	metricTrackedRepositories.Set(float64(len(repos)))

	p.mu.Lock()
	p.lastRepos = repos
	p.mu.Unlock()

	var priority, regular []Repository
	for _, repo := range repos {
		if p.activity.NextPollDelay(repo.String()) > 0 {
			continue
		}

		if p.activity.ShouldPrioritize(repo.String()) {
			priority = append(priority, repo)
		} else {
			regular = append(regular, repo)
		}
	}

	logger.Debug(
		"starting poll cycle",
		logfields.Event("poll_cycle_started"),
		zap.Int("poll.repositories_due", len(priority)+len(regular)),
		zap.Int("poll.priority_batch_size", len(priority)),
	)

	p.pollBatch(ctx, logger, priority)
	p.pollBatch(ctx, logger, regular)

	metricCycleDurationSeconds.Observe(time.Since(startTime).Seconds())

	return p.nextSleep(repos, backoffMultiplier), nil
}

// pollBatch polls the repositories of one batch, fanned out over the
// configured number of goroutines.
// It returns when all repositories of the batch were processed.
func (p *Poller) pollBatch(ctx context.Context, logger *zap.Logger, repos []Repository) {
	if len(repos) == 0 {
		return
	}

	pool := routines.NewPool(p.concurrency)
	defer pool.Wait()

	for _, repo := range repos {
		repo := repo

		pool.Queue(func() {
			p.pollRepositoryTask(ctx, logger, repo)
		})
	}
}

// pollRepositoryTask polls a single repository and updates its activity
// state.
// Failures are logged and recorded as an empty poll so the repository
// backs off, they never abort the cycle.
func (p *Poller) pollRepositoryTask(ctx context.Context, logger *zap.Logger, repo Repository) {
	taskCtx, cancel := context.WithTimeout(ctx, p.repoTimeout)
	defer cancel()

	metricRepoPollsTotal.Inc()

	prsFound, err := p.pollRepository(taskCtx, logger, repo)
	if err != nil {
		metricRepoPollFailuresTotal.Inc()

		logger.Error(
			"polling repository failed",
			logfields.Event("repository_poll_failed"),
			logfields.Repository(repo.Name),
			logfields.RepositoryOwner(repo.Owner),
			zap.Error(err),
		)

		p.activity.UpdateAfterPoll(repo.String(), 0, time.Now())

		return
	}

	p.activity.UpdateAfterPoll(repo.String(), prsFound, time.Now())
}

// pollRepository fetches the open dependency update pull requests of the
// repository, dispatches new and changed ones to the processor and
// persists the fresh snapshots.
// It returns how many dependency update pull requests were found.
func (p *Poller) pollRepository(ctx context.Context, logger *zap.Logger, repo Repository) (int, error) {
	logger = logger.With(
		logfields.Repository(repo.Name),
		logfields.RepositoryOwner(repo.Owner),
	)

	previous, err := p.stateStore.GetPRStates(ctx, repo.Owner, repo.Name)
	if err != nil {
		logger.Warn(
			"reading stored pull request states failed, treating all pull requests as new",
			logfields.Event("stored_pr_states_unreadable"),
			zap.Error(err),
		)

		previous = map[int]statestore.PRState{}
	}

	observations, err := p.observeOpenPRs(ctx, logger, repo)
	if err != nil {
		return 0, err
	}

	metricPRsFoundTotal.Add(float64(len(observations)))

	changes := detectChanges(previous, observations)

	for _, change := range changes {
		if change.Kind == ChangeKindUnchanged {
			continue
		}

		metricPRsDispatchedTotal.WithLabelValues(string(change.Kind)).Inc()

		logger.Info(
			"dispatching pull request to processor",
			logfields.Event("pull_request_dispatched"),
			logfields.PullRequest(change.Observation.State.Number),
			zap.String("poll.change_kind", string(change.Kind)),
		)

		err := p.processor.ProcessDiscoveredPR(ctx, repo.Owner, repo.Name, change.Observation.PR, change.Kind)
		if err != nil {
			logger.Error(
				"processing pull request failed",
				logfields.Event("pull_request_processing_failed"),
				logfields.PullRequest(change.Observation.State.Number),
				zap.Error(err),
			)
		}
	}

	pollTime := time.Now().UTC()

	if err := p.stateStore.UpdatePRStates(ctx, repo.Owner, repo.Name, snapshotStates(observations)); err != nil {
		return 0, fmt.Errorf("persisting pull request states failed: %w", err)
	}

	if err := p.stateStore.UpdateLastPollTime(ctx, repo.Owner, repo.Name, pollTime); err != nil {
		return 0, fmt.Errorf("persisting last poll time failed: %w", err)
	}

	if err := p.stateStore.RecordMetrics(ctx, repo.Owner, repo.Name, 1, uint64(len(observations))); err != nil {
		return 0, fmt.Errorf("persisting poll metrics failed: %w", err)
	}

	return len(observations), nil
}

// observeOpenPRs lists the open pull requests of the repository and
// derives snapshots for the ones that are dependency updates.
func (p *Poller) observeOpenPRs(ctx context.Context, logger *zap.Logger, repo Repository) ([]PRObservation, error) {
	var observations []PRObservation

	it := p.clt.ListOpenPullRequests(ctx, repo.Owner, repo.Name)

	for {
		pr, err := it.Next()
		if err != nil {
			return nil, fmt.Errorf("listing open pull requests failed: %w", err)
		}

		if pr == nil {
			break
		}

		isBot, err := p.isDependencyUpdatePR(repo, pr)
		if err != nil {
			logger.Warn(
				"evaluating pull request filter failed, skipping pull request",
				logfields.Event("pr_filter_evaluation_failed"),
				logfields.PullRequest(pr.GetNumber()),
				zap.Error(err),
			)

			continue
		}

		if !isBot {
			continue
		}

		observations = append(observations, p.observe(ctx, repo, pr))
	}

	return observations, nil
}

// observe derives the snapshot of one pull request.
// The list endpoint omits the mergeability fields, the snapshot is built
// from an individually fetched pull request instead.
// When the fetch or the check status query fails the partial snapshot is
// returned with the error set, the delta detector treats those
// conservatively.
func (p *Poller) observe(ctx context.Context, repo Repository, pr *github.PullRequest) PRObservation {
	detailed, err := p.prDetail(ctx, repo, pr)
	if err != nil {
		return PRObservation{
			PR:    pr,
			State: observePR(pr, githubclt.CIStatusUnknown),
			Err:   err,
		}
	}

	checkStatus, err := p.clt.CheckStatus(ctx, repo.Owner, repo.Name, detailed.GetNumber())
	if err != nil {
		return PRObservation{
			PR:    detailed,
			State: observePR(detailed, githubclt.CIStatusUnknown),
			Err:   err,
		}
	}

	return PRObservation{PR: detailed, State: observePR(detailed, checkStatus.Status)}
}

// prDetail fetches the full pull request object.
// Results are cached per head commit, a push invalidates the entry
// immediately while mergeability changes caused by base branch movement
// wait out the TTL.
func (p *Poller) prDetail(ctx context.Context, repo Repository, pr *github.PullRequest) (*github.PullRequest, error) {
	cacheKey := fmt.Sprintf("%s#%d@%s", repo, pr.GetNumber(), pr.GetHead().GetSHA())

	if detailed, exists := p.prDetailCache.Get(cacheKey); exists {
		return detailed, nil
	}

	detailed, err := p.clt.GetPullRequest(ctx, repo.Owner, repo.Name, pr.GetNumber())
	if err != nil {
		return nil, fmt.Errorf("fetching pull request details failed: %w", err)
	}

	p.prDetailCache.Set(cacheKey, detailed, cache.TTLPRDetail)

	return detailed, nil
}

// isDependencyUpdatePR reports whether the pull request was created by a
// dependency update bot.
// When a filter query is configured it decides instead of the built-in
// heuristics.
// Results are cached per head commit, the verdict for a given commit does
// not change.
func (p *Poller) isDependencyUpdatePR(repo Repository, pr *github.PullRequest) (bool, error) {
	cacheKey := fmt.Sprintf("%s#%d@%s", repo, pr.GetNumber(), pr.GetHead().GetSHA())

	if verdict, exists := p.botDetectCache.Get(cacheKey); exists {
		return verdict, nil
	}

	var verdict bool
	var err error

	if p.prFilter != nil {
		verdict, err = p.prFilter.Match(pr)
		if err != nil {
			return false, err
		}
	} else {
		verdict = githubclt.IsRenovatePR(pr)
	}

	p.botDetectCache.Set(cacheKey, verdict, cache.TTLBotDetect)

	return verdict, nil
}

// resolveRepositories returns the repositories to poll.
// The explicit allow-list takes precedence, otherwise the organization's
// repositories are discovered and cached.
func (p *Poller) resolveRepositories(ctx context.Context) ([]Repository, error) {
	fullNames := p.repositories

	if len(fullNames) == 0 {
		cached, exists := p.repoListCache.Get(p.organization)
		if exists {
			fullNames = cached
		} else {
			discovered, err := p.clt.ListOrganizationRepositories(ctx, p.organization)
			if err != nil {
				return nil, err
			}

			p.repoListCache.Set(p.organization, discovered, cache.TTLRepository)
			fullNames = discovered
		}
	}

	seen := make(set.Set[string], len(fullNames))

	repos := make([]Repository, 0, len(fullNames))
	for _, fullName := range fullNames {
		if seen.Contains(fullName) {
			continue
		}
		seen.Add(fullName)

		repo, err := parseRepository(fullName)
		if err != nil {
			return nil, err
		}

		repos = append(repos, repo)
	}

	return repos, nil
}

// nextSleep computes the delay until the next cycle, the smallest
// remaining per-repository delay scaled by the backoff multiplier.
// When no repositories are tracked it falls back to the base interval.
func (p *Poller) nextSleep(repos []Repository, backoffMultiplier float64) time.Duration {
	var sleep time.Duration
	haveDelay := false

	for _, repo := range repos {
		delay := p.activity.NextPollDelay(repo.String())
		if !haveDelay || delay < sleep {
			sleep = delay
			haveDelay = true
		}
	}

	if !haveDelay {
		sleep = p.baseInterval
	}

	if sleep <= 0 {
		// repositories are already due again, still pause briefly to not
		// busy-loop against the API
		sleep = time.Second
	}

	return time.Duration(float64(sleep) * backoffMultiplier)
}
