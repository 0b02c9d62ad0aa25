package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/renowatch/renowatch/internal/githubclt"
)

type fakeQuotaReader struct {
	limit *githubclt.RateLimit
	err   error
	calls int
}

func (f *fakeQuotaReader) RateLimit(_ context.Context) (*githubclt.RateLimit, error) {
	f.calls++
	return f.limit, f.err
}

func newMonitor(t *testing.T, clt QuotaReader, checkInterval time.Duration) *Monitor {
	return NewMonitor(clt, 0.8, checkInterval, zaptest.NewLogger(t))
}

func TestLowUsageDoesNotSlowDown(t *testing.T) {
	clt := &fakeQuotaReader{limit: &githubclt.RateLimit{Remaining: 4900, Limit: 5000}}
	m := newMonitor(t, clt, time.Minute)

	status := m.Status(context.Background())
	assert.InDelta(t, 0.02, status.Usage, 0.001)
	assert.False(t, status.ShouldSlowDown)
	assert.Zero(t, m.ThrottleDelay(context.Background()))
}

func TestHighUsageSlowsDown(t *testing.T) {
	clt := &fakeQuotaReader{limit: &githubclt.RateLimit{Remaining: 50, Limit: 5000}}
	m := newMonitor(t, clt, time.Minute)

	status := m.Status(context.Background())
	assert.InDelta(t, 0.99, status.Usage, 0.001)
	assert.True(t, status.ShouldSlowDown)
	assert.Equal(t, time.Minute, m.ThrottleDelay(context.Background()))
}

func TestThrottleDelayTiers(t *testing.T) {
	testcases := []struct {
		name      string
		remaining int
		expected  time.Duration
	}{
		{name: "Critical", remaining: 400, expected: time.Minute},
		{name: "High", remaining: 900, expected: 30 * time.Second},
		{name: "JustAboveThreshold", remaining: 999, expected: 30 * time.Second},
		{name: "AtThreshold", remaining: 1000, expected: 0},
		{name: "Normal", remaining: 4000, expected: 0},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			clt := &fakeQuotaReader{limit: &githubclt.RateLimit{Remaining: tc.remaining, Limit: 5000}}
			m := newMonitor(t, clt, time.Minute)

			assert.Equal(t, tc.expected, m.ThrottleDelay(context.Background()))
		})
	}
}

func TestUsageAtThresholdDoesNotSlowDown(t *testing.T) {
	clt := &fakeQuotaReader{limit: &githubclt.RateLimit{Remaining: 1000, Limit: 5000}}
	m := newMonitor(t, clt, time.Minute)

	status := m.Status(context.Background())
	assert.InDelta(t, 0.8, status.Usage, 0.0001)
	assert.False(t, status.ShouldSlowDown)
}

func TestStatusIsCached(t *testing.T) {
	clt := &fakeQuotaReader{limit: &githubclt.RateLimit{Remaining: 4000, Limit: 5000}}
	m := newMonitor(t, clt, time.Minute)

	m.Status(context.Background())
	m.Status(context.Background())
	m.Status(context.Background())

	assert.Equal(t, 1, clt.calls)
}

func TestCacheExpires(t *testing.T) {
	clt := &fakeQuotaReader{limit: &githubclt.RateLimit{Remaining: 4000, Limit: 5000}}
	m := newMonitor(t, clt, time.Nanosecond)

	m.Status(context.Background())
	time.Sleep(time.Millisecond)
	m.Status(context.Background())

	assert.Equal(t, 2, clt.calls)
}

func TestQueryFailureAssumesConservativeUsage(t *testing.T) {
	clt := &fakeQuotaReader{err: errors.New("api unreachable")}
	m := newMonitor(t, clt, time.Minute)

	status := m.Status(context.Background())
	assert.True(t, status.ShouldSlowDown)
	assert.GreaterOrEqual(t, status.Usage, 0.8)
	assert.Equal(t, 10*time.Second, m.ThrottleDelay(context.Background()))
}

func TestZeroLimitCountsAsExhausted(t *testing.T) {
	clt := &fakeQuotaReader{limit: &githubclt.RateLimit{Remaining: 0, Limit: 0}}
	m := newMonitor(t, clt, time.Minute)

	status := m.Status(context.Background())
	assert.Equal(t, float64(1), status.Usage)
	assert.True(t, status.ShouldSlowDown)
}
