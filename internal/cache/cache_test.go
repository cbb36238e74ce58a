package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"realtycrm/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return nil, ErrMiss
	}
	return b, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type countingRecorder struct {
	keys []string
}

func (c *countingRecorder) RecordDegradedRead(_ context.Context, key string) {
	c.keys = append(c.keys, key)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errStore = errors.New("store unavailable")

func TestFetch_SnapshotsSuccessfulReads(t *testing.T) {
	kv := newMemKV()
	rec := &countingRecorder{}
	s := NewSnapshots(discard(), kv, time.Minute, rec)
	ctx := context.Background()

	res := Fetch(ctx, s, "snapshot:leads", func(context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	})
	assert.False(t, res.Degraded)
	assert.Equal(t, []string{"a", "b"}, res.Items)

	res = Fetch(ctx, s, "snapshot:leads", func(context.Context) ([]string, error) {
		return nil, errStore
	})
	assert.True(t, res.Degraded)
	assert.Equal(t, []string{"a", "b"}, res.Items)
	assert.Equal(t, []string{"snapshot:leads"}, rec.keys)
}

func TestFetch_EmptyFallbackWithoutSnapshot(t *testing.T) {
	s := NewSnapshots(discard(), newMemKV(), time.Minute, nil)

	res := Fetch(context.Background(), s, "snapshot:tasks", func(context.Context) ([]int, error) {
		return nil, errStore
	})

	assert.True(t, res.Degraded)
	require.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
}

func TestFetch_NilSnapshots(t *testing.T) {
	res := Fetch(context.Background(), nil, "k", func(context.Context) ([]int, error) {
		return nil, errStore
	})
	assert.True(t, res.Degraded)
	assert.Empty(t, res.Items)
}

func TestSave_SkipsCancelledContext(t *testing.T) {
	kv := newMemKV()
	s := NewSnapshots(discard(), kv, time.Minute, nil)

	s.Save(context.Background(), "k", []string{"old"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Save(ctx, "k", []string{"new"})

	var got []string
	require.NoError(t, s.Load(context.Background(), "k", &got))
	assert.Equal(t, []string{"old"}, got)
}

func TestInvalidate(t *testing.T) {
	kv := newMemKV()
	s := NewSnapshots(discard(), kv, time.Minute, nil)
	ctx := context.Background()

	s.Save(ctx, "a", 1)
	s.Invalidate(ctx, "a")

	var v int
	assert.ErrorIs(t, s.Load(ctx, "a", &v), ErrMiss)
}

func TestListKey(t *testing.T) {
	viewer := uuid.MustParse("7f0c3b7e-2f44-4b9e-9a53-0e2f5f1c9d10")

	assert.Equal(t, "snapshot:leads:"+viewer.String(), ListKey(model.ModuleLeads, viewer))
	assert.Equal(t, "snapshot:leads:"+viewer.String(), ListKey(model.ModuleLeads, viewer, "", ""))
	assert.Equal(t, "snapshot:leads:"+viewer.String()+":pending:l20-o40", ListKey(model.ModuleLeads, viewer, "pending", "", "l20-o40"))
}
