package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a fixed-window request ceiling per key. Keys are
// opaque; callers pass user ids so each user gets an independent window.
type Limiter struct {
	mu           sync.Mutex
	entries      map[string]*entry
	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	requestsPerMinute int
	cleanupInterval   time.Duration
}

type entry struct {
	windowStart time.Time
	requests    int
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 10,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewLimiter creates a new rate limiter
func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config = DefaultConfig()
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	l := &Limiter{
		entries:           make(map[string]*entry),
		stopCleanup:       make(chan struct{}),
		requestsPerMinute: config.RequestsPerMinute,
		cleanupInterval:   config.CleanupInterval,
	}
	go l.startCleanup()
	return l
}

// Allow reports whether a request under the given key fits in the
// current one-minute window.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	e, exists := l.entries[key]

	if !exists || now.Sub(e.windowStart) > time.Minute {
		l.entries[key] = &entry{windowStart: now, requests: 1}
		return true
	}

	e.requests++
	return e.requests <= l.requestsPerMinute
}

// Wait blocks until the key is allowed or the context ends. The worker
// uses this to throttle per-user processing instead of dropping work.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	for {
		if l.Allow(key) {
			return nil
		}
		retry := l.retryAfter(key)

		timer := time.NewTimer(retry)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// retryAfter returns how long until the key's window expires.
func (l *Limiter) retryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, exists := l.entries[key]
	if !exists {
		return 0
	}
	remaining := time.Minute - time.Since(e.windowStart)
	if remaining < 100*time.Millisecond {
		remaining = 100 * time.Millisecond
	}
	return remaining
}

// startCleanup runs periodic cleanup to remove stale entries
func (l *Limiter) startCleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupStaleEntries()
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes entries whose window expired long ago
func (l *Limiter) cleanupStaleEntries() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for key, e := range l.entries {
		if e.windowStart.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// ActiveKeys returns the number of currently tracked keys
func (l *Limiter) ActiveKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Stop gracefully shuts down the cleanup goroutine
func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() {
		close(l.stopCleanup)
	})
}
