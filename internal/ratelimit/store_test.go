package ratelimit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuchen0/stash/internal/log"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()

	got, err := s.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Set("k", []byte("v")))
	got, err = s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, s.Remove("k"))
	got, err = s.Get("k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	v := []byte("abc")
	require.NoError(t, s.Set("k", v))
	v[0] = 'z'

	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "limits.json")
	s := NewFileStore(path)

	got, err := s.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Set("k", []byte(`[1,2,3]`)))
	got, err = s.Get("k")
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2,3]`, string(got))

	require.NoError(t, s.Remove("k"))
	got, err = s.Get("k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.json")
	require.NoError(t, NewFileStore(path).Set("k", []byte(`[42]`)))

	got, err := NewFileStore(path).Get("k")
	require.NoError(t, err)
	assert.JSONEq(t, `[42]`, string(got))
}

func TestLimiterOverFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.json")
	clock := &fixedClock{at: time.UnixMilli(0)}

	l := New(NewFileStore(path), 2, time.Hour, log.NewNop(), WithClock(clock.now))
	require.NoError(t, l.RecordAccepted())

	// A fresh limiter over the same file sees the recorded request.
	l2 := New(NewFileStore(path), 2, time.Hour, log.NewNop(), WithClock(clock.now))
	assert.Equal(t, 1, l2.CheckState().Remaining)
}
