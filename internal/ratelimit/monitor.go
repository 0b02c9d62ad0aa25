// Package ratelimit tracks GitHub API quota consumption and derives
// slowdown decisions for the pollers.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/renowatch/renowatch/internal/githubclt"
	"github.com/renowatch/renowatch/internal/logfields"
)

// Throttle delays per usage tier.
const (
	delayCritical = time.Minute
	delayHigh     = 30 * time.Second
	delaySlowdown = 10 * time.Second
)

// QuotaReader queries the current API rate limit from GitHub.
type QuotaReader interface {
	RateLimit(ctx context.Context) (*githubclt.RateLimit, error)
}

// Status describes the API quota at the time of the last check.
type Status struct {
	Remaining int
	Limit     int
	ResetTime time.Time
	// Usage is the consumed fraction of the quota, from 0 to 1.
	Usage float64
	// ShouldSlowDown is true when Usage exceeds the configured threshold.
	ShouldSlowDown bool
}

// Monitor periodically queries the API quota and answers whether polling
// must be throttled.
// Quota responses are cached for checkInterval, concurrent callers share
// the cached result instead of each issuing an API request.
type Monitor struct {
	clt            QuotaReader
	logger         *zap.Logger
	usageThreshold float64
	checkInterval  time.Duration

	mu          sync.Mutex
	lastStatus  *Status
	lastChecked time.Time
}

// NewMonitor creates a Monitor.
// usageThreshold is the quota usage fraction above which ShouldSlowDown
// becomes true.
func NewMonitor(clt QuotaReader, usageThreshold float64, checkInterval time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		clt:            clt,
		logger:         logger.Named("ratelimit_monitor"),
		usageThreshold: usageThreshold,
		checkInterval:  checkInterval,
	}
}

// Status returns the current quota status.
// The result is served from cache when the last API check is younger than
// the check interval.
// When the API query fails a conservative status is returned that assumes
// the quota is nearly exhausted, a stale cached status is never reused
// past its interval.
func (m *Monitor) Status(ctx context.Context) *Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastStatus != nil && time.Since(m.lastChecked) < m.checkInterval {
		return m.lastStatus
	}

	limit, err := m.clt.RateLimit(ctx)
	if err != nil {
		m.logger.Warn(
			"querying api rate limit failed, assuming conservative usage",
			logfields.Event("rate_limit_query_failed"),
			zap.Error(err),
		)

		status := &Status{
			Remaining:      0,
			Limit:          0,
			ResetTime:      time.Now().Add(time.Hour),
			Usage:          m.usageThreshold,
			ShouldSlowDown: true,
		}
		m.lastStatus = status
		m.lastChecked = time.Now()

		return status
	}

	status := &Status{
		Remaining: limit.Remaining,
		Limit:     limit.Limit,
		ResetTime: limit.Reset,
		Usage:     usage(limit.Remaining, limit.Limit),
	}
	status.ShouldSlowDown = status.Usage > m.usageThreshold

	if status.ShouldSlowDown {
		m.logger.Info(
			"api quota usage reached threshold, polling will be throttled",
			logfields.Event("rate_limit_threshold_reached"),
			zap.Int("github.rate_limit.remaining", status.Remaining),
			zap.Int("github.rate_limit.limit", status.Limit),
			zap.Float64("github.rate_limit.usage", status.Usage),
			zap.Time("github.rate_limit.reset_time", status.ResetTime),
		)
	}

	m.lastStatus = status
	m.lastChecked = time.Now()

	return status
}

// ThrottleDelay returns how long a poller must wait before its next API
// interaction, based on the current quota status.
func (m *Monitor) ThrottleDelay(ctx context.Context) time.Duration {
	status := m.Status(ctx)

	switch {
	case status.Usage > 0.9:
		return delayCritical
	case status.Usage > 0.8:
		return delayHigh
	case status.ShouldSlowDown:
		return delaySlowdown
	default:
		return 0
	}
}

func usage(remaining, limit int) float64 {
	if limit <= 0 {
		return 1
	}

	return 1 - float64(remaining)/float64(limit)
}
