// Package ratelimit implements rolling-window admission control.
//
// The limiter counts accepted requests inside a trailing window and
// refuses new ones once a cap is reached. It is advisory, not a
// security boundary: state lives in an injected key-value Store, stale
// timestamps are filtered lazily on read, and unreadable state is
// treated as an empty window so a corrupt file never locks the user
// out.
package ratelimit

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultLimit is the hourly request cap used when configuration
	// is absent or invalid.
	DefaultLimit = 20

	// DefaultWindow is the rolling window length.
	DefaultWindow = time.Hour

	// defaultKey is where timestamps live in the Store.
	defaultKey = "ratelimit:timestamps"
)

// State is the admission decision at one evaluation instant.
type State struct {
	// CanSend reports whether another request may be dispatched now.
	CanSend bool `json:"canSend"`

	// Remaining is how many requests are left in the current window.
	Remaining int `json:"remaining"`

	// Limit is the configured cap.
	Limit int `json:"limit"`

	// ResetInMs is how long until the oldest counted request leaves
	// the window, in milliseconds. Nil while CanSend is true.
	ResetInMs *int64 `json:"resetInMs"`
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock replaces the time source. Tests use this to pin the clock.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithKey changes the Store key the limiter persists under, so several
// limiters can share one Store.
func WithKey(key string) Option {
	return func(l *Limiter) { l.key = key }
}

// Limiter is a rolling-window rate limiter over an injected Store.
// Safe for concurrent use; admission is read-modify-write under one
// lock.
type Limiter struct {
	mu     sync.Mutex
	store  Store
	limit  int
	window time.Duration
	key    string
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Limiter. A non-positive limit falls back to
// DefaultLimit and a non-positive window to DefaultWindow, silently;
// misconfiguration must never disable admission control or block
// everything.
func New(store Store, limit int, window time.Duration, logger *slog.Logger, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		key:    defaultKey,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckState evaluates the window at the current instant without
// recording anything.
func (l *Limiter) CheckState() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	timestamps := l.unexpired(l.load(), now)

	state := State{
		Limit:     l.limit,
		Remaining: max(0, l.limit-len(timestamps)),
		CanSend:   len(timestamps) < l.limit,
	}
	if !state.CanSend {
		// Oldest unexpired entry determines when a slot frees up.
		oldest := timestamps[0]
		reset := max(0, oldest+l.window.Milliseconds()-now.UnixMilli())
		state.ResetInMs = &reset
	}
	return state
}

// RecordAccepted appends the current instant to the window. Call it
// only after a request is actually dispatched; speculative recording
// inflates the count.
func (l *Limiter) RecordAccepted() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	timestamps := append(l.unexpired(l.load(), now), now.UnixMilli())
	return l.persist(timestamps)
}

// Reset clears all recorded state.
func (l *Limiter) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Remove(l.key)
}

// load reads the persisted timestamp list. Corrupt or unreadable state
// is treated as an empty window: fail open, not closed.
func (l *Limiter) load() []int64 {
	data, err := l.store.Get(l.key)
	if err != nil {
		l.logger.Warn("rate limit state unreadable, treating as empty", "error", err)
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	var timestamps []int64
	if err := json.Unmarshal(data, &timestamps); err != nil {
		l.logger.Warn("rate limit state corrupt, treating as empty", "error", err)
		return nil
	}
	return timestamps
}

// unexpired filters out timestamps older than now minus the window and
// sorts nothing: stored order is append order, so the result stays
// oldest-first.
func (l *Limiter) unexpired(timestamps []int64, now time.Time) []int64 {
	cutoff := now.UnixMilli() - l.window.Milliseconds()
	kept := timestamps[:0:0]
	for _, ts := range timestamps {
		if ts >= cutoff {
			kept = append(kept, ts)
		}
	}
	return kept
}

func (l *Limiter) persist(timestamps []int64) error {
	data, err := json.Marshal(timestamps)
	if err != nil {
		return err
	}
	return l.store.Set(l.key, data)
}
