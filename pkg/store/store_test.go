package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackendDown = errors.New("backend down")

// flakyBackend wraps a Memory backend and fails writes on demand.
type flakyBackend struct {
	*Memory

	mu   sync.Mutex
	down bool
	puts int
}

func newFlakyBackend() *flakyBackend {
	return &flakyBackend{Memory: NewMemory()}
}

func (b *flakyBackend) setDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = down
}

func (b *flakyBackend) putCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.puts
}

func (b *flakyBackend) PutSession(ctx context.Context, rec *SessionRecord) error {
	b.mu.Lock()
	down := b.down
	if !down {
		b.puts++
	}
	b.mu.Unlock()
	if down {
		return errBackendDown
	}
	return b.Memory.PutSession(ctx, rec)
}

func (b *flakyBackend) DeleteSession(ctx context.Context, spaceID, sessionID string) error {
	b.mu.Lock()
	down := b.down
	b.mu.Unlock()
	if down {
		return errBackendDown
	}
	return b.Memory.DeleteSession(ctx, spaceID, sessionID)
}

func (b *flakyBackend) PutSpaceConfig(ctx context.Context, cfg *SpaceConfig) error {
	b.mu.Lock()
	down := b.down
	b.mu.Unlock()
	if down {
		return errBackendDown
	}
	return b.Memory.PutSpaceConfig(ctx, cfg)
}

func TestStore_MemoryOnlyMode(t *testing.T) {
	s := New(nil, ConfigDefaults{}, nil)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, newTestRecord("space-1", "sess-1", "owner")))

	got, err := s.Get(ctx, "space-1", "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, s.Degraded(), "memory-only mode is not degraded")
}

func TestStore_DurableFirstWrite(t *testing.T) {
	backend := newFlakyBackend()
	s := New(backend, ConfigDefaults{}, nil)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, newTestRecord("space-1", "sess-1", "owner")))

	durable, err := backend.Memory.GetSession(ctx, "space-1", "sess-1")
	require.NoError(t, err)
	assert.NotNil(t, durable, "write should reach the backend")
	assert.False(t, s.Degraded())
}

func TestStore_DegradesOnBackendFailure(t *testing.T) {
	backend := newFlakyBackend()
	s := New(backend, ConfigDefaults{}, nil)
	ctx := context.Background()

	backend.setDown(true)
	require.NoError(t, s.Put(ctx, newTestRecord("space-1", "sess-1", "owner")),
		"backend failure must not fail the write")

	assert.True(t, s.Degraded())

	got, err := s.Get(ctx, "space-1", "sess-1")
	require.NoError(t, err)
	assert.NotNil(t, got, "mirror serves the write while degraded")
}

func TestStore_FlushesOnRecovery(t *testing.T) {
	backend := newFlakyBackend()
	s := New(backend, ConfigDefaults{}, nil)
	ctx := context.Background()

	backend.setDown(true)
	require.NoError(t, s.Put(ctx, newTestRecord("space-1", "sess-1", "owner")))
	require.NoError(t, s.Put(ctx, newTestRecord("space-1", "sess-2", "owner")))
	require.True(t, s.Degraded())

	backend.setDown(false)
	require.NoError(t, s.Put(ctx, newTestRecord("space-1", "sess-3", "owner")))

	assert.False(t, s.Degraded(), "successful durable write should clear degradation")
	for _, id := range []string{"sess-1", "sess-2", "sess-3"} {
		rec, err := backend.Memory.GetSession(ctx, "space-1", id)
		require.NoError(t, err)
		assert.NotNil(t, rec, "dirty record %s should be flushed", id)
	}
}

func TestStore_FlushReplaysDeletes(t *testing.T) {
	backend := newFlakyBackend()
	s := New(backend, ConfigDefaults{}, nil)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, newTestRecord("space-1", "sess-1", "owner")))

	backend.setDown(true)
	require.NoError(t, s.Delete(ctx, "space-1", "sess-1"))
	require.True(t, s.Degraded())

	backend.setDown(false)
	require.NoError(t, s.Put(ctx, newTestRecord("space-1", "sess-2", "owner")))

	assert.False(t, s.Degraded())
	rec, err := backend.Memory.GetSession(ctx, "space-1", "sess-1")
	require.NoError(t, err)
	assert.Nil(t, rec, "pending delete should be replayed to the backend")
}

func TestStore_Hydrate(t *testing.T) {
	backend := newFlakyBackend()
	ctx := context.Background()
	require.NoError(t, backend.Memory.PutSession(ctx, newTestRecord("space-1", "sess-1", "owner")))
	cfg := NewSpaceConfig("space-1", ConfigDefaults{})
	require.NoError(t, backend.Memory.PutSpaceConfig(ctx, cfg))

	s := New(backend, ConfigDefaults{}, nil)
	require.NoError(t, s.Hydrate(ctx))

	got, err := s.Get(ctx, "space-1", "sess-1")
	require.NoError(t, err)
	assert.NotNil(t, got)

	gotCfg, err := s.GetConfig(ctx, "space-1")
	require.NoError(t, err)
	assert.Equal(t, cfg.CleanupInterval, gotCfg.CleanupInterval)
}

func TestStore_GetConfigCreatesDefaults(t *testing.T) {
	backend := newFlakyBackend()
	s := New(backend, ConfigDefaults{DefaultMaxMembers: 4}, nil)
	ctx := context.Background()

	cfg, err := s.GetConfig(ctx, "space-1")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.DefaultMaxMembers)

	durable, err := backend.Memory.GetSpaceConfig(ctx, "space-1")
	require.NoError(t, err)
	assert.NotNil(t, durable, "lazily created config should be persisted")
}

func TestStore_ReadsNeverTouchBackend(t *testing.T) {
	backend := newFlakyBackend()
	s := New(backend, ConfigDefaults{}, nil)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, newTestRecord("space-1", "sess-1", "owner")))
	before := backend.putCount()

	_, _ = s.Get(ctx, "space-1", "sess-1")
	_, _ = s.ListBySpace(ctx, "space-1")
	_, _ = s.ListAll(ctx)

	assert.Equal(t, before, backend.putCount())
}
