package adapters

import (
	"sync"
	"time"
)

// msgRateLimiter caps how many messages one connection may send inside
// a sliding window. Messages over the limit are dropped, the socket
// stays open.
type msgRateLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
}

func newMsgRateLimiter(limit int, interval time.Duration) *msgRateLimiter {
	return &msgRateLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *msgRateLimiter) Allow(id string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[id]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[id] = fresh
		return false
	}
	fresh = append(fresh, now)
	rl.history[id] = fresh
	return true
}

func (rl *msgRateLimiter) Forget(id string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, id)
}
