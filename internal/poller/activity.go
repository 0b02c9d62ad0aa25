package poller

import (
	"sync"
	"time"
)

const (
	scoreIncreaseStep = 0.3
	scoreDecayStep    = 0.1

	// emptyPollWideningThreshold is the number of consecutive empty polls
	// after which the interval is widened once more, repositories without
	// dependency update activity are not worth polling at full speed.
	emptyPollWideningThreshold = 5
)

// RepositoryActivity is the adaptive scheduling state of one repository.
// It only lives in process memory, losing it on restart degrades the
// schedule for a few cycles but not correctness.
type RepositoryActivity struct {
	LastPollTime          *time.Time
	ActivityScore         float64
	ConsecutiveEmptyPolls int
	CurrentInterval       time.Duration
	TotalPolls            uint64
	TotalPRsFound         uint64

	lastPRsFound int
	everEmpty    bool
}

// ActivityTracker derives per-repository poll intervals from observed
// pull request activity.
// Repositories that recently produced pull requests are polled near the
// minimum interval, quiet ones decay towards a multiple of the base
// interval.
type ActivityTracker struct {
	baseInterval time.Duration
	minInterval  time.Duration
	maxInterval  time.Duration
	adaptive     bool

	mu           sync.Mutex
	repositories map[string]*RepositoryActivity
}

// NewActivityTracker creates an ActivityTracker.
// When adaptive is false, NextPollDelay always returns the base interval.
func NewActivityTracker(baseInterval, minInterval, maxInterval time.Duration, adaptive bool) *ActivityTracker {
	return &ActivityTracker{
		baseInterval: baseInterval,
		minInterval:  minInterval,
		maxInterval:  maxInterval,
		adaptive:     adaptive,
		repositories: map[string]*RepositoryActivity{},
	}
}

// UpdateAfterPoll records the outcome of a poll of the repository and
// recomputes its interval.
func (t *ActivityTracker) UpdateAfterPoll(repo string, prsFound int, pollTime time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	act := t.activity(repo)

	act.LastPollTime = &pollTime
	act.TotalPolls++
	act.TotalPRsFound += uint64(prsFound)

	switch {
	case prsFound > act.lastPRsFound:
		act.ActivityScore = min(act.ActivityScore+scoreIncreaseStep, 1.0)
		act.ConsecutiveEmptyPolls = 0
	case prsFound == 0:
		act.ActivityScore = max(act.ActivityScore-scoreDecayStep, 0.0)
		act.ConsecutiveEmptyPolls++
		act.everEmpty = true
	default:
		act.ConsecutiveEmptyPolls = 0
	}

	act.lastPRsFound = prsFound
	act.CurrentInterval = t.interval(act)
}

// NextPollDelay returns how long to wait after the repository's last poll
// before polling it again.
// Unknown repositories are due immediately.
func (t *ActivityTracker) NextPollDelay(repo string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	act, exists := t.repositories[repo]
	if !exists || act.LastPollTime == nil {
		return 0
	}

	elapsed := time.Since(*act.LastPollTime)
	if elapsed >= act.CurrentInterval {
		return 0
	}

	return act.CurrentInterval - elapsed
}

// ShouldPrioritize reports whether the repository belongs into the
// priority batch of a cycle.
// Active repositories and repositories that never had an empty poll are
// prioritized.
func (t *ActivityTracker) ShouldPrioritize(repo string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	act, exists := t.repositories[repo]
	if !exists {
		return true
	}

	return act.ActivityScore > 0.5 || !act.everEmpty
}

// Snapshot returns a copy of the repository's scheduling state, for the
// status endpoint.
func (t *ActivityTracker) Snapshot(repo string) (RepositoryActivity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	act, exists := t.repositories[repo]
	if !exists {
		return RepositoryActivity{}, false
	}

	return *act, true
}

func (t *ActivityTracker) activity(repo string) *RepositoryActivity {
	act, exists := t.repositories[repo]
	if !exists {
		act = &RepositoryActivity{CurrentInterval: t.baseInterval}
		t.repositories[repo] = act
	}

	return act
}

// interval maps the activity score to a poll interval.
// The mapping is a step function, widened once more when the repository
// had many consecutive empty polls, and clamped to the configured bounds.
func (t *ActivityTracker) interval(act *RepositoryActivity) time.Duration {
	if !t.adaptive {
		return t.baseInterval
	}

	var interval time.Duration

	switch {
	case act.ActivityScore >= 0.8:
		interval = t.minInterval
	case act.ActivityScore >= 0.5:
		interval = t.baseInterval
	case act.ActivityScore >= 0.2:
		interval = 2 * t.baseInterval
	default:
		interval = 4 * t.baseInterval
	}

	if act.ConsecutiveEmptyPolls > emptyPollWideningThreshold {
		interval *= 2
	}

	if interval < t.minInterval {
		interval = t.minInterval
	}

	if interval > t.maxInterval {
		interval = t.maxInterval
	}

	return interval
}
