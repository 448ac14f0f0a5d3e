// Package embedding converts text into fixed-dimension vectors.
//
// The Service wraps a Backend (remote API or local model) behind an
// explicit lifecycle: Unloaded → Loading → Ready, or Failed. Callers
// embed through the service; the first call initializes the backend
// exactly once (single-flight) and concurrent callers wait on the same
// initialization instead of polling. Observers can subscribe to state
// transitions for progress reporting.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Dimension is the embedding dimensionality contract shared between the
// embedder and the posts table (vector(384)). A backend returning any
// other length is a hard error, never truncated or padded.
const Dimension = 384

// ErrDimensionMismatch indicates the backend produced a vector of the
// wrong length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Task selects the embedding task type. Retrieval models produce
// different vectors for queries than for documents.
type Task string

const (
	// TaskQuery embeds a search query.
	TaskQuery Task = "RETRIEVAL_QUERY"

	// TaskDocument embeds an archived document.
	TaskDocument Task = "RETRIEVAL_DOCUMENT"
)

// State is the lifecycle state of the embedding service.
type State int

const (
	// StateUnloaded means no backend has been initialized yet.
	StateUnloaded State = iota

	// StateLoading means backend initialization is in flight.
	StateLoading

	// StateReady means the backend is initialized and usable.
	StateReady

	// StateFailed means initialization failed; Err() carries the cause.
	StateFailed
)

// String implements Stringer for logging.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Backend produces embeddings. Implementations must be safe for
// concurrent use once constructed.
type Backend interface {
	Embed(ctx context.Context, text string, task Task) ([]float32, error)
}

// OpenFunc initializes a Backend. Called at most once per Service.
type OpenFunc func(ctx context.Context) (Backend, error)

// Service is an injected embedding service with single-flight
// initialization. Safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	state   State
	err     error
	backend Backend
	ready   chan struct{} // closed when init finishes (either outcome)
	open    OpenFunc
	subs    map[int]func(State)
	nextSub int
	logger  *slog.Logger
}

// NewService creates a Service that initializes its backend via open on
// first use.
func NewService(open OpenFunc, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		state:  StateUnloaded,
		open:   open,
		subs:   make(map[int]func(State)),
		logger: logger,
	}
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the initialization error when the service is Failed.
func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Subscribe registers fn to be called on every state transition.
// The returned cancel func unregisters it. fn is invoked synchronously
// with the service lock released; it must not call back into Subscribe
// from a transition in a way that assumes ordering.
func (s *Service) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// EmbedQuery embeds a search query, initializing the backend if needed.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.embed(ctx, text, TaskQuery)
}

// EmbedDocument embeds archived content for storage.
func (s *Service) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return s.embed(ctx, text, TaskDocument)
}

func (s *Service) embed(ctx context.Context, text string, task Task) ([]float32, error) {
	backend, err := s.ensureReady(ctx)
	if err != nil {
		return nil, err
	}

	vec, err := backend.Embed(ctx, text, task)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}

	// The 384-dim contract is shared with the posts table; surface a
	// mismatch instead of silently truncating or padding.
	if len(vec) != Dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), Dimension)
	}

	return vec, nil
}

// ensureReady initializes the backend exactly once and blocks
// concurrent callers until initialization finishes or ctx is done.
func (s *Service) ensureReady(ctx context.Context) (Backend, error) {
	s.mu.Lock()
	switch s.state {
	case StateReady:
		backend := s.backend
		s.mu.Unlock()
		return backend, nil

	case StateFailed:
		err := s.err
		s.mu.Unlock()
		return nil, fmt.Errorf("embedding backend unavailable: %w", err)

	case StateLoading:
		ready := s.ready
		s.mu.Unlock()
		select {
		case <-ready:
			return s.ensureReady(ctx)
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for embedding backend: %w", ctx.Err())
		}

	case StateUnloaded:
		// This caller performs the initialization.
		s.ready = make(chan struct{})
		s.state = StateLoading
		ready := s.ready
		open := s.open
		s.mu.Unlock()
		s.notify(StateLoading)

		backend, err := open(ctx)

		s.mu.Lock()
		if err != nil {
			s.err = err
			s.state = StateFailed
			s.mu.Unlock()
			close(ready)
			s.notify(StateFailed)
			s.logger.Error("embedding backend init failed", "error", err)
			return nil, fmt.Errorf("initializing embedding backend: %w", err)
		}
		s.backend = backend
		s.state = StateReady
		s.mu.Unlock()
		close(ready)
		s.notify(StateReady)
		s.logger.Debug("embedding backend ready")
		return backend, nil

	default:
		s.mu.Unlock()
		return nil, fmt.Errorf("embedding service in unknown state %v", s.state)
	}
}

// notify calls every subscriber with the new state. Runs on the
// transitioning goroutine with the service lock released, so callbacks
// may call back into the service.
func (s *Service) notify(next State) {
	s.mu.Lock()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
}
