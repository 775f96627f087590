package chat

import (
	"sync"
	"time"
)

// rateLimiter enforces a per-sender message budget of 100 per minute with a
// window that resets on expiry.
type rateLimiter struct {
	mu      sync.Mutex
	senders map[string]*senderWindow
}

type senderWindow struct {
	count       int
	windowStart time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{senders: make(map[string]*senderWindow)}
}

func (rl *rateLimiter) Allow(senderID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	w, exists := rl.senders[senderID]
	if !exists {
		rl.senders[senderID] = &senderWindow{count: 1, windowStart: now}
		return true
	}

	if now.Sub(w.windowStart) >= time.Minute {
		w.count = 1
		w.windowStart = now
		return true
	}

	if w.count >= 100 {
		return false
	}

	w.count++
	return true
}

// Cleanup drops senders idle for five windows. Called periodically by the
// relay loop so the map does not grow with every visitor ever seen.
func (rl *rateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for id, w := range rl.senders {
		if now.Sub(w.windowStart) > 5*time.Minute {
			delete(rl.senders, id)
		}
	}
}
