package api

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuchen0/stash/internal/chat"
	"github.com/yuchen0/stash/internal/log"
	"github.com/yuchen0/stash/internal/rag"
	"github.com/yuchen0/stash/internal/ratelimit"
	"github.com/yuchen0/stash/internal/testutil"
)

type fakeStreamer struct {
	deltas []string
}

func (s *fakeStreamer) Stream(_ context.Context, _ string, _ []chat.Turn) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, d := range s.deltas {
			if !yield(d, nil) {
				return
			}
		}
	}
}

type fakeResolver struct {
	evidence []rag.Evidence
}

func (r *fakeResolver) Build(context.Context, rag.Selection) ([]rag.Evidence, error) {
	return r.evidence, nil
}

type serverFixture struct {
	srv     *httptest.Server
	limiter *ratelimit.Limiter
}

func newServerFixture(t *testing.T, limit int, deltas ...string) *serverFixture {
	t.Helper()

	limiter := ratelimit.New(ratelimit.NewMemoryStore(), limit, time.Hour, log.NewNop())
	orch := chat.NewOrchestrator(
		&fakeResolver{evidence: []rag.Evidence{{Index: 1, ID: "p1", Content: "c", URL: "u"}}},
		&fakeStreamer{deltas: deltas},
		log.NewNop(),
	)

	server, err := NewServer(context.Background(), ServerConfig{
		Logger:       log.NewNop(),
		Orchestrator: orch,
		Limiter:      limiter,
		RateBurst:    1000,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return &serverFixture{srv: srv, limiter: limiter}
}

func (f *serverFixture) postChat(t *testing.T, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.srv.URL+"/api/v1/chat/stream", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

type wireChunk struct {
	Type         string           `json:"type"`
	Content      string           `json:"content"`
	Error        string           `json:"error"`
	ContextPosts *json.RawMessage `json:"contextPosts"`
}

func decodeChunks(t *testing.T, body string) []wireChunk {
	t.Helper()
	events := testutil.ParseSSEEvents(t, body)
	chunks := make([]wireChunk, len(events))
	for i, e := range events {
		require.NoError(t, json.Unmarshal([]byte(e.Data), &chunks[i]))
	}
	return chunks
}

func TestChatStreamHappyPath(t *testing.T) {
	f := newServerFixture(t, 20, "Hello", " world")

	resp := f.postChat(t, `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	chunks := decodeChunks(t, string(body))
	require.Len(t, chunks, 4)
	assert.Equal(t, "context", chunks[0].Type)
	require.NotNil(t, chunks[0].ContextPosts)
	assert.Equal(t, "text", chunks[1].Type)
	assert.Equal(t, "Hello", chunks[1].Content)
	assert.Equal(t, "text", chunks[2].Type)
	assert.Equal(t, " world", chunks[2].Content)
	assert.Equal(t, "done", chunks[3].Type)
}

func TestChatStreamInvalidJSON(t *testing.T) {
	f := newServerFixture(t, 20)

	resp := f.postChat(t, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatStreamBodyTooLarge(t *testing.T) {
	f := newServerFixture(t, 20)

	huge := `{"message":"` + strings.Repeat("x", maxChatBodyBytes+1) + `"}`
	resp := f.postChat(t, huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestChatStreamRateLimited(t *testing.T) {
	f := newServerFixture(t, 1, "ok")

	resp := f.postChat(t, `{"message":"first"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	resp = f.postChat(t, `{"message":"second"}`)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	var state ratelimit.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.False(t, state.CanSend)
	assert.Equal(t, 0, state.Remaining)
	assert.Equal(t, 1, state.Limit)
	require.NotNil(t, state.ResetInMs)
}

func TestChatStreamValidationFailureNotCounted(t *testing.T) {
	f := newServerFixture(t, 5, "ok")

	resp := f.postChat(t, `{"message":"  "}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	chunks := decodeChunks(t, string(body))
	require.Len(t, chunks, 2)
	assert.Equal(t, "error", chunks[0].Type)
	assert.Equal(t, "done", chunks[1].Type)

	// A rejected request never reached the model, so the window is
	// untouched.
	assert.Equal(t, 5, f.limiter.CheckState().Remaining)
}

func TestChatStreamAcceptedRequestCounted(t *testing.T) {
	f := newServerFixture(t, 5, "ok")

	resp := f.postChat(t, `{"message":"hi"}`)
	_, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, 4, f.limiter.CheckState().Remaining)
}

func TestRatelimitTelemetryEndpoint(t *testing.T) {
	f := newServerFixture(t, 20)

	resp, err := http.Get(f.srv.URL + "/api/v1/ratelimit")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state ratelimit.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.True(t, state.CanSend)
	assert.Equal(t, 20, state.Remaining)
}

func TestHealthEndpoints(t *testing.T) {
	f := newServerFixture(t, 20)

	resp, err := http.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(f.srv.URL + "/ready")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewServerRequiresCollaborators(t *testing.T) {
	_, err := NewServer(context.Background(), ServerConfig{})
	assert.Error(t, err)

	_, err = NewServer(context.Background(), ServerConfig{
		Orchestrator: chat.NewOrchestrator(&fakeResolver{}, nil, log.NewNop()),
	})
	assert.Error(t, err)
}

func TestWriteSSEFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, writeSSE(rec, chat.TextChunk("hi")))

	assert.Equal(t, "data: {\"type\":\"text\",\"content\":\"hi\"}\n\n", rec.Body.String())
}
