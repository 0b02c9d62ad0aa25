package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSetGet(t *testing.T) {
	c := New[string, int](time.Minute)
	t.Cleanup(c.Stop)

	c.Set("answer", 42, time.Minute)

	v, exists := c.Get("answer")
	require.True(t, exists)
	assert.Equal(t, 42, v)
}

func TestGetMissing(t *testing.T) {
	c := New[string, int](time.Minute)
	t.Cleanup(c.Stop)

	_, exists := c.Get("nothing")
	assert.False(t, exists)
}

func TestExpiredEntryIsAbsent(t *testing.T) {
	c := New[string, int](time.Hour)
	t.Cleanup(c.Stop)

	c.Set("k", 1, time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	_, exists := c.Get("k")
	assert.False(t, exists)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Evictions)
}

func TestDelete(t *testing.T) {
	c := New[string, int](time.Minute)
	t.Cleanup(c.Stop)

	c.Set("k", 1, time.Minute)
	c.Delete("k")

	_, exists := c.Get("k")
	assert.False(t, exists)
}

func TestCleanupExpired(t *testing.T) {
	c := New[string, int](time.Hour)
	t.Cleanup(c.Stop)

	c.Set("old1", 1, time.Nanosecond)
	c.Set("old2", 2, time.Nanosecond)
	c.Set("fresh", 3, time.Hour)
	time.Sleep(5 * time.Millisecond)

	removed := c.CleanupExpired()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	v, exists := c.Get("fresh")
	require.True(t, exists)
	assert.Equal(t, 3, v)
}

func TestJanitorReapsExpiredEntries(t *testing.T) {
	c := New[string, int](10 * time.Millisecond)
	t.Cleanup(c.Stop)

	c.Set("k", 1, time.Nanosecond)

	require.Eventually(t, func() bool {
		return c.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestHitRate(t *testing.T) {
	c := New[string, int](time.Minute)
	t.Cleanup(c.Stop)

	c.Set("k", 1, time.Minute)
	c.Get("k")
	c.Get("k")
	c.Get("missing")
	c.Get("missing")

	stats := c.Stats()
	assert.InDelta(t, 0.5, stats.HitRate(), 0.001)
}

func TestStopIsIdempotent(t *testing.T) {
	c := New[string, int](time.Minute)

	c.Stop()
	c.Stop()
}
