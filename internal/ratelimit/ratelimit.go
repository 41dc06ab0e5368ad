// Package ratelimit is a simple in-memory fixed-window limiter keyed by
// caller (an IP address, a player name).
package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks request counts per key within a fixed window.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	maxRate int           // max requests per window
	window  time.Duration // time window
	now     func() time.Time
}

type bucket struct {
	tokens    int
	lastReset time.Time
}

// New creates a limiter allowing maxRate requests per window. A maxRate of
// zero or less disables limiting.
func New(maxRate int, window time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		maxRate: maxRate,
		window:  window,
		now:     time.Now,
	}
}

// Allow reports whether key is within its limit and spends one request.
func (l *Limiter) Allow(key string) bool {
	if l.maxRate <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	now := l.now()

	if !ok || now.Sub(b.lastReset) >= l.window {
		l.buckets[key] = &bucket{tokens: l.maxRate - 1, lastReset: now}
		return true
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// RetryAfter returns how many seconds until the window resets for key.
func (l *Limiter) RetryAfter(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		return 0
	}
	remaining := l.window - l.now().Sub(b.lastReset)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// Cleanup forgets keys idle for more than two windows. It returns the number
// of keys removed.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for key, b := range l.buckets {
		if now.Sub(b.lastReset) > 2*l.window {
			delete(l.buckets, key)
			n++
		}
	}
	return n
}
