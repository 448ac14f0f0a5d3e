// Package chat owns the request lifecycle of a streamed, grounded
// answer.
//
// The Orchestrator runs a small state machine per request:
//
//	validating -> contextResolved -> modelStreaming -> complete
//
// with errored reachable from any non-terminal state. Every exit path
// converges on a final done chunk; clients stop their loading state on
// done, never on connection close alone. Grounding is best-effort: a
// failing Post Store downgrades the request to an empty evidence list
// instead of aborting it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/yuchen0/stash/internal/rag"
)

// streamState names the orchestrator's lifecycle phases for logging.
type streamState string

const (
	stateValidating      streamState = "validating"
	stateContextResolved streamState = "context_resolved"
	stateModelStreaming  streamState = "model_streaming"
	stateComplete        streamState = "complete"
	stateErrored         streamState = "errored"
)

// EvidenceResolver resolves a selection into evidence. *rag.Builder
// satisfies it.
type EvidenceResolver interface {
	Build(ctx context.Context, sel rag.Selection) ([]rag.Evidence, error)
}

// Request is one inbound chat request. At most one of Embedding or
// ContextPostIDs is expected to be meaningful; with both absent the
// evidence list resolves to empty.
type Request struct {
	Message        string    `json:"message"`
	History        []Turn    `json:"history,omitempty"`
	Embedding      []float32 `json:"embedding,omitempty"`
	ContextPostIDs []string  `json:"contextPostIds,omitempty"`
}

// Orchestrator drives one streamed request end to end. It holds no
// per-request state, so one instance serves concurrent requests.
type Orchestrator struct {
	resolver EvidenceResolver
	streamer Streamer
	logger   *slog.Logger

	// maxDuration bounds a single request as a watchdog against a
	// hung upstream stream. Zero disables the bound.
	maxDuration time.Duration

	// Retrieval knobs forwarded to the evidence resolver. Zero values
	// defer to the rag package defaults.
	threshold  float64
	matchLimit int
	maxTokens  int
}

// Option customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMaxDuration enables the stream watchdog.
func WithMaxDuration(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.maxDuration = d }
}

// WithRetrieval overrides the evidence retrieval defaults: similarity
// threshold, result cap, and token budget.
func WithRetrieval(threshold float64, matchLimit, maxTokens int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.threshold = threshold
		o.matchLimit = matchLimit
		o.maxTokens = maxTokens
	}
}

// NewOrchestrator wires the orchestrator's collaborators. streamer may
// be nil when the model credential is missing; requests then fail in
// validation with a descriptive error instead of panicking later.
func NewOrchestrator(resolver EvidenceResolver, streamer Streamer, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		resolver: resolver,
		streamer: streamer,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Stream runs req through the state machine and yields chunks in wire
// order: at most one context chunk, zero or more text chunks, at most
// one error chunk, then exactly one done chunk. If the consumer stops
// early (client disconnect), emission halts promptly and the upstream
// model stream is released via ctx.
func (o *Orchestrator) Stream(ctx context.Context, req Request) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		start := time.Now()
		state := stateValidating
		advance := func(next streamState) {
			o.logger.Debug("stream state", "from", string(state), "to", string(next))
			state = next
		}

		if o.maxDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.maxDuration)
			defer cancel()
		}

		fail := func(msg string) {
			o.logger.Warn("stream errored", "state", string(state), "reason", msg)
			advance(stateErrored)
			if yield(ErrorChunk(msg)) {
				yield(DoneChunk())
			}
		}

		// Validation failures produce no context chunk.
		if strings.TrimSpace(req.Message) == "" {
			fail("message is required")
			return
		}
		if o.streamer == nil {
			fail("model service is not configured: missing API credential")
			return
		}

		// Context resolution is best-effort: a retrieval failure
		// downgrades to empty evidence, it never aborts the request.
		evidence, err := o.resolver.Build(ctx, rag.Selection{
			PostIDs:   req.ContextPostIDs,
			Embedding: req.Embedding,
			Threshold: o.threshold,
			Limit:     o.matchLimit,
			MaxTokens: o.maxTokens,
		})
		if err != nil {
			o.logger.Error("context resolution failed, proceeding ungrounded", "error", err)
			evidence = []rag.Evidence{}
		}
		advance(stateContextResolved)
		if !yield(ContextChunk(evidence)) {
			return
		}

		turns := append(FilterTurns(req.History), Turn{Role: RoleUser, Content: req.Message})
		system := rag.Compose(evidence)

		advance(stateModelStreaming)
		for delta, err := range o.streamer.Stream(ctx, system, turns) {
			if err != nil {
				// A disconnected client needs no farewell chunks.
				if errors.Is(err, context.Canceled) && ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
					o.logger.Debug("stream canceled by caller")
					return
				}
				fail(streamErrorMessage(err, ctx))
				return
			}
			if !yield(TextChunk(delta)) {
				return
			}
		}

		advance(stateComplete)
		o.logger.Debug("stream complete",
			"evidence", len(evidence),
			"duration", time.Since(start),
		)
		yield(DoneChunk())
	}
}

func streamErrorMessage(err error, ctx context.Context) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "the model took too long to respond"
	}
	return fmt.Sprintf("the model stream failed: %v", err)
}
