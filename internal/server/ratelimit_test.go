package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move the limiter through its windows.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(perMinute, perHour, perDay int, dataPerDay int64) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(perMinute, perHour, perDay, dataPerDay)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_NoLimits(t *testing.T) {
	rl, _ := newTestLimiter(0, 0, 0, 0)
	for range 100 {
		require.NoError(t, rl.CheckRateLimit("client", 100))
	}
	usage := rl.Usage("client")
	assert.Equal(t, 100, usage.RequestsToday)
	assert.Equal(t, int64(10000), usage.DataToday)
	assert.Equal(t, ClientUsage{}, rl.Usage("unknown"))
}

func TestRateLimiter_PerMinute(t *testing.T) {
	rl, clock := newTestLimiter(2, 0, 0, 0)
	require.NoError(t, rl.CheckRateLimit("client", 0))
	clock.advance(20 * time.Second)
	require.NoError(t, rl.CheckRateLimit("client", 0))

	err := rl.CheckRateLimit("client", 0)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, 40*time.Second, rle.RetryAfter)

	// Other clients are unaffected.
	require.NoError(t, rl.CheckRateLimit("other", 0))

	clock.advance(40 * time.Second)
	require.NoError(t, rl.CheckRateLimit("client", 0))
}

func TestRateLimiter_SteadyTrafficStillLimited(t *testing.T) {
	rl, clock := newTestLimiter(3, 0, 0, 0)
	allowed := 0
	for range 10 {
		if rl.CheckRateLimit("client", 0) == nil {
			allowed++
		}
		clock.advance(5 * time.Second)
	}
	// Ten requests over 50 seconds share one window.
	assert.Equal(t, 3, allowed)
}

func TestRateLimiter_PerHour(t *testing.T) {
	rl, clock := newTestLimiter(0, 3, 0, 0)
	for range 3 {
		require.NoError(t, rl.CheckRateLimit("client", 0))
		clock.advance(10 * time.Minute)
	}
	err := rl.CheckRateLimit("client", 0)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "hour", rle.Type)
	assert.Equal(t, 30*time.Minute, rle.RetryAfter)

	clock.advance(30 * time.Minute)
	require.NoError(t, rl.CheckRateLimit("client", 0))
}

func TestRateLimiter_DailyRequestQuota(t *testing.T) {
	rl, clock := newTestLimiter(0, 0, 2, 0)
	require.NoError(t, rl.CheckRateLimit("client", 0))
	require.NoError(t, rl.CheckRateLimit("client", 0))

	err := rl.CheckRateLimit("client", 0)
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "requests", qe.Type)
	assert.Equal(t, int64(2), qe.Limit)
	assert.Equal(t, int64(2), qe.Used)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), qe.Resets)

	clock.advance(15 * time.Hour)
	require.NoError(t, rl.CheckRateLimit("client", 0))
}

func TestRateLimiter_DailyDataQuota(t *testing.T) {
	rl, _ := newTestLimiter(0, 0, 0, 1000)
	require.NoError(t, rl.CheckRateLimit("client", 600))

	err := rl.CheckRateLimit("client", 500)
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "data", qe.Type)
	assert.Equal(t, int64(600), qe.Used)

	// A rejected request is not counted.
	require.NoError(t, rl.CheckRateLimit("client", 400))
	assert.Equal(t, int64(1000), rl.Usage("client").DataToday)
}

func TestRateLimiter_Prune(t *testing.T) {
	rl, clock := newTestLimiter(0, 0, 0, 0)
	require.NoError(t, rl.CheckRateLimit("old", 0))
	clock.advance(2 * time.Hour)
	require.NoError(t, rl.CheckRateLimit("new", 0))

	assert.Equal(t, 1, rl.Prune(clock.t.Add(-time.Hour)))
	assert.Equal(t, ClientUsage{}, rl.Usage("old"))
	assert.Equal(t, 1, rl.Usage("new").RequestsToday)
}

func TestRateLimitErrors_Messages(t *testing.T) {
	rle := &RateLimitError{Type: "minute", Limit: 5, RetryAfter: 30 * time.Second}
	assert.Equal(t, "rate limit exceeded for minute (limit: 5, retry after: 30s)", rle.Error())

	resets := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	qe := &QuotaExceededError{Type: "data", Limit: 10, Used: 9, Resets: resets}
	assert.Equal(t, "quota exceeded for data (used: 9, limit: 10, resets: 2026-01-02T00:00:00Z)", qe.Error())

	var target *QuotaExceededError
	assert.True(t, errors.As(error(qe), &target))
}
