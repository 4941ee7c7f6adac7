package ratelimit

import (
	"sync"
	"time"
)

const (
	defaultMaxAttempts = 5
	defaultWindow      = 15 * time.Minute
)

// Limiter config with sensible defaults
type Config struct {
	// Failed attempts allowed inside one window
	MaxAttempts int

	// Sliding window size
	Window time.Duration
}

// Limiter tracks failed login attempts per key (normalized email) inside
// a sliding window. Safe for concurrent use.
//
// Instances are plain values to construct and inject, there is no package
// level limiter on purpose: every test gets its own fresh one.
type Limiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time

	maxAttempts int
	window      time.Duration

	now func() time.Time
}

func New(cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}

	return &Limiter{
		attempts:    make(map[string][]time.Time),
		maxAttempts: cfg.MaxAttempts,
		window:      cfg.Window,
		now:         time.Now,
	}
}

// Allow reports whether another attempt for key is permitted right now
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(key)
	return len(l.attempts[key]) < l.maxAttempts
}

// RecordAttempt notes one failed attempt for key
func (l *Limiter) RecordAttempt(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(key)
	l.attempts[key] = append(l.attempts[key], l.now())
}

// RetryAfter returns how long to wait until the next attempt may pass.
// Zero means the key is not limited.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(key)
	stamps := l.attempts[key]
	if len(stamps) < l.maxAttempts {
		return 0
	}

	// A slot frees up when the oldest in-window attempt leaves the window
	wait := stamps[0].Add(l.window).Sub(l.now())
	if wait < 0 {
		return 0
	}
	return wait
}

// Clear forgets everything about key. Called after a successful login.
func (l *Limiter) Clear(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.attempts, key)
}

// prune drops timestamps that left the window. Callers must hold mu.
func (l *Limiter) prune(key string) {
	cutoff := l.now().Add(-l.window)
	stamps := l.attempts[key]

	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	switch len(kept) {
	case 0:
		delete(l.attempts, key)
	default:
		l.attempts[key] = kept
	}
}
