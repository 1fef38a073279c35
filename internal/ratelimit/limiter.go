// Package ratelimit throttles terminal echo per event kind.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config defines the echo throttling configuration.
// A non-positive RPS disables throttling.
type Config struct {
	RPS   float64
	Burst int
}

// DefaultConfig allows short bursts of network chatter but caps sustained echo.
var DefaultConfig = Config{
	RPS:   20,
	Burst: 50,
}

type limiterEntry struct {
	limiter *rate.Limiter
	dropped int
}

// EchoLimiter keeps one token bucket per event kind ("request", "response", ...).
type EchoLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.RWMutex
	config   Config
}

// NewEchoLimiter creates a limiter with the given configuration.
func NewEchoLimiter(config Config) *EchoLimiter {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &EchoLimiter{
		limiters: make(map[string]*limiterEntry),
		config:   config,
	}
}

// Allow reports whether a line of the given kind may be echoed now.
// Denied lines are counted per kind.
func (l *EchoLimiter) Allow(kind string) bool {
	if l == nil || l.config.RPS <= 0 {
		return true
	}
	entry := l.entry(kind)
	if entry.limiter.Allow() {
		return true
	}
	l.mu.Lock()
	entry.dropped++
	l.mu.Unlock()
	return false
}

// Dropped returns how many lines of kind were suppressed.
func (l *EchoLimiter) Dropped(kind string) int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if entry, ok := l.limiters[kind]; ok {
		return entry.dropped
	}
	return 0
}

// TotalDropped returns the number of suppressed lines across all kinds.
func (l *EchoLimiter) TotalDropped() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := 0
	for _, entry := range l.limiters {
		total += entry.dropped
	}
	return total
}

func (l *EchoLimiter) entry(kind string) *limiterEntry {
	// Fast path: check if limiter exists with read lock
	l.mu.RLock()
	entry, exists := l.limiters[kind]
	l.mu.RUnlock()
	if exists {
		return entry
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if entry, exists = l.limiters[kind]; exists {
		return entry
	}
	entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(l.config.RPS), l.config.Burst)}
	l.limiters[kind] = entry
	return entry
}
