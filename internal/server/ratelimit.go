package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter enforces per-client request rates and daily quotas. A zero
// limit disables that check.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int
	maxDataPerDay     int64 // bytes

	clients map[string]*ClientUsage
	now     func() time.Time
}

// ClientUsage tracks one client's usage in the current windows.
type ClientUsage struct {
	RequestsThisMinute int
	RequestsThisHour   int
	RequestsToday      int
	DataToday          int64

	minuteStart time.Time
	hourStart   time.Time
	dayStart    time.Time
}

// NewRateLimiter creates a rate limiter with the given limits.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxRequestsPerDay: maxRequestsPerDay,
		maxDataPerDay:     maxDataPerDay,
		clients:           make(map[string]*ClientUsage),
		now:               time.Now,
	}
}

// CheckRateLimit records a request of dataSize bytes from clientID, or
// returns a *RateLimitError or *QuotaExceededError without recording it.
func (rl *RateLimiter) CheckRateLimit(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage := rl.usage(clientID, now)
	usage.roll(now)

	if err := rl.checkRates(usage, now); err != nil {
		return err
	}
	if err := rl.checkQuotas(usage, dataSize, now); err != nil {
		return err
	}

	usage.RequestsThisMinute++
	usage.RequestsThisHour++
	usage.RequestsToday++
	usage.DataToday += dataSize
	return nil
}

// roll starts new windows once the current ones have passed.
func (u *ClientUsage) roll(now time.Time) {
	if now.Sub(u.minuteStart) >= time.Minute {
		u.RequestsThisMinute = 0
		u.minuteStart = now
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.RequestsThisHour = 0
		u.hourStart = now
	}
	if !sameDay(now, u.dayStart) {
		u.RequestsToday = 0
		u.DataToday = 0
		u.dayStart = now
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func (rl *RateLimiter) checkRates(u *ClientUsage, now time.Time) error {
	if rl.requestsPerMinute > 0 && u.RequestsThisMinute >= rl.requestsPerMinute {
		return &RateLimitError{
			Type:       "minute",
			Limit:      rl.requestsPerMinute,
			RetryAfter: time.Minute - now.Sub(u.minuteStart),
		}
	}
	if rl.requestsPerHour > 0 && u.RequestsThisHour >= rl.requestsPerHour {
		return &RateLimitError{
			Type:       "hour",
			Limit:      rl.requestsPerHour,
			RetryAfter: time.Hour - now.Sub(u.hourStart),
		}
	}
	return nil
}

func (rl *RateLimiter) checkQuotas(u *ClientUsage, dataSize int64, now time.Time) error {
	resets := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	if rl.maxRequestsPerDay > 0 && u.RequestsToday >= rl.maxRequestsPerDay {
		return &QuotaExceededError{
			Type:   "requests",
			Limit:  int64(rl.maxRequestsPerDay),
			Used:   int64(u.RequestsToday),
			Resets: resets,
		}
	}
	if rl.maxDataPerDay > 0 && u.DataToday+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{
			Type:   "data",
			Limit:  rl.maxDataPerDay,
			Used:   u.DataToday,
			Resets: resets,
		}
	}
	return nil
}

func (rl *RateLimiter) usage(clientID string, now time.Time) *ClientUsage {
	u, ok := rl.clients[clientID]
	if !ok {
		u = &ClientUsage{minuteStart: now, hourStart: now, dayStart: now}
		rl.clients[clientID] = u
	}
	return u
}

// Usage returns a copy of the client's current usage.
func (rl *RateLimiter) Usage(clientID string) ClientUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if u, ok := rl.clients[clientID]; ok {
		return *u
	}
	return ClientUsage{}
}

// Prune forgets clients idle since before cutoff.
func (rl *RateLimiter) Prune(cutoff time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for id, u := range rl.clients {
		if u.minuteStart.Before(cutoff) {
			delete(rl.clients, id)
			n++
		}
	}
	return n
}

// RateLimitError is a request rate violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError is a daily quota violation.
type QuotaExceededError struct {
	Type   string    // "requests" or "data"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
