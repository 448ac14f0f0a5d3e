package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuchen0/stash/internal/log"
)

// fixedClock returns a clock pinned at epoch plus offset, adjustable
// between assertions.
type fixedClock struct {
	at time.Time
}

func (c *fixedClock) now() time.Time { return c.at }

func (c *fixedClock) set(ms int64) { c.at = time.UnixMilli(ms) }

func newTestLimiter(t *testing.T, limit int) (*Limiter, *fixedClock) {
	t.Helper()
	clock := &fixedClock{at: time.UnixMilli(0)}
	l := New(NewMemoryStore(), limit, time.Hour, log.NewNop(), WithClock(clock.now))
	return l, clock
}

func TestLimiterWindowBoundary(t *testing.T) {
	l, clock := newTestLimiter(t, 2)

	require.NoError(t, l.RecordAccepted())
	require.NoError(t, l.RecordAccepted())

	state := l.CheckState()
	assert.False(t, state.CanSend)
	assert.Equal(t, 0, state.Remaining)
	assert.Equal(t, 2, state.Limit)
	require.NotNil(t, state.ResetInMs)
	assert.Equal(t, int64(3600000), *state.ResetInMs)

	// One millisecond past the window edge both entries expire.
	clock.set(3600001)
	state = l.CheckState()
	assert.True(t, state.CanSend)
	assert.Equal(t, 2, state.Remaining)
	assert.Nil(t, state.ResetInMs)
}

func TestLimiterResetFromOldestUnexpired(t *testing.T) {
	l, clock := newTestLimiter(t, 2)

	require.NoError(t, l.RecordAccepted())
	clock.set(1000)
	require.NoError(t, l.RecordAccepted())

	clock.set(2000)
	state := l.CheckState()
	require.NotNil(t, state.ResetInMs)
	// Oldest entry is at t=0, so the slot frees at t=3600000.
	assert.Equal(t, int64(3598000), *state.ResetInMs)
}

func TestLimiterRemainingCountsDown(t *testing.T) {
	l, _ := newTestLimiter(t, 3)

	for want := 3; want > 0; want-- {
		state := l.CheckState()
		assert.True(t, state.CanSend)
		assert.Equal(t, want, state.Remaining)
		require.NoError(t, l.RecordAccepted())
	}
	assert.False(t, l.CheckState().CanSend)
}

func TestLimiterReset(t *testing.T) {
	l, _ := newTestLimiter(t, 1)

	require.NoError(t, l.RecordAccepted())
	assert.False(t, l.CheckState().CanSend)

	require.NoError(t, l.Reset())
	state := l.CheckState()
	assert.True(t, state.CanSend)
	assert.Equal(t, 1, state.Remaining)
}

func TestLimiterInvalidConfigFallsBack(t *testing.T) {
	l := New(NewMemoryStore(), 0, 0, log.NewNop())
	assert.Equal(t, DefaultLimit, l.CheckState().Limit)

	l = New(NewMemoryStore(), -7, -time.Minute, log.NewNop())
	assert.Equal(t, DefaultLimit, l.CheckState().Limit)
}

func TestLimiterFailsOpenOnCorruptState(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(defaultKey, []byte("not json at all")))

	clock := &fixedClock{at: time.UnixMilli(0)}
	l := New(store, 2, time.Hour, log.NewNop(), WithClock(clock.now))

	state := l.CheckState()
	assert.True(t, state.CanSend)
	assert.Equal(t, 2, state.Remaining)
}

// errStore fails every read.
type errStore struct{ MemoryStore }

func (s *errStore) Get(string) ([]byte, error) { return nil, errors.New("disk gone") }

func TestLimiterFailsOpenOnUnreadableStore(t *testing.T) {
	store := &errStore{MemoryStore: *NewMemoryStore()}
	l := New(store, 2, time.Hour, log.NewNop())

	state := l.CheckState()
	assert.True(t, state.CanSend)
	assert.Equal(t, 2, state.Remaining)
}

func TestLimiterLazyPurgeOnRecord(t *testing.T) {
	l, clock := newTestLimiter(t, 2)

	require.NoError(t, l.RecordAccepted())
	require.NoError(t, l.RecordAccepted())

	// Past the window the old entries no longer count against new
	// activity.
	clock.set(7200000)
	require.NoError(t, l.RecordAccepted())
	state := l.CheckState()
	assert.True(t, state.CanSend)
	assert.Equal(t, 1, state.Remaining)
}

func TestLimiterSharedStoreSeparateKeys(t *testing.T) {
	store := NewMemoryStore()
	clock := &fixedClock{at: time.UnixMilli(0)}
	a := New(store, 1, time.Hour, log.NewNop(), WithClock(clock.now), WithKey("a"))
	b := New(store, 1, time.Hour, log.NewNop(), WithClock(clock.now), WithKey("b"))

	require.NoError(t, a.RecordAccepted())
	assert.False(t, a.CheckState().CanSend)
	assert.True(t, b.CheckState().CanSend)
}
