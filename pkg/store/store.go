package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// dirtyKey identifies state pending a durable write while degraded. An empty
// sessionID marks the space's configuration.
type dirtyKey struct {
	spaceID   string
	sessionID string
}

// Store synchronizes a durable Backend with an in-memory mirror. Reads are
// served from the mirror and never block on network I/O. Writes go to the
// backend first; on backend failure the write lands in the mirror, the store
// enters degraded mode, and the key is tracked for flushing once the backend
// recovers.
//
// A nil backend yields a memory-only store, which is a valid deployment mode.
type Store struct {
	backend  Backend
	mirror   *Memory
	defaults ConfigDefaults
	logger   *slog.Logger

	degraded atomic.Bool

	mu           sync.Mutex
	dirtyPuts    map[dirtyKey]struct{}
	dirtyDeletes map[dirtyKey]struct{}
}

// New creates a Store over the given backend. backend may be nil for
// memory-only operation.
func New(backend Backend, defaults ConfigDefaults, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend:      backend,
		mirror:       NewMemory(),
		defaults:     defaults,
		logger:       logger,
		dirtyPuts:    make(map[dirtyKey]struct{}),
		dirtyDeletes: make(map[dirtyKey]struct{}),
	}
}

// Hydrate loads the mirror from the backend. Call once at startup. A backend
// failure leaves the store degraded with an empty mirror rather than failing
// the boot.
func (s *Store) Hydrate(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}

	recs, err := s.backend.ListSessions(ctx)
	if err != nil {
		s.enterDegraded(err)
		return fmt.Errorf("hydrating sessions: %w", err)
	}
	cfgs, err := s.backend.ListSpaceConfigs(ctx)
	if err != nil {
		s.enterDegraded(err)
		return fmt.Errorf("hydrating space configs: %w", err)
	}

	s.mirror.Reset()
	for _, rec := range recs {
		_ = s.mirror.PutSession(ctx, rec)
	}
	for _, cfg := range cfgs {
		_ = s.mirror.PutSpaceConfig(ctx, cfg)
	}
	s.logger.Info("store hydrated", "sessions", len(recs), "spaces", len(cfgs))
	return nil
}

// Get retrieves a session record from the mirror. Returns nil, nil if not
// found. Never blocks on the backend.
func (s *Store) Get(ctx context.Context, spaceID, sessionID string) (*SessionRecord, error) {
	return s.mirror.GetSession(ctx, spaceID, sessionID)
}

// ListBySpace returns all session records for one space from the mirror.
func (s *Store) ListBySpace(ctx context.Context, spaceID string) ([]*SessionRecord, error) {
	return s.mirror.ListSpaceSessions(ctx, spaceID)
}

// ListAll returns all session records from the mirror.
func (s *Store) ListAll(ctx context.Context) ([]*SessionRecord, error) {
	return s.mirror.ListSessions(ctx)
}

// Spaces returns the ids of all spaces holding at least one session.
func (s *Store) Spaces() []string {
	return s.mirror.Spaces()
}

// Put persists a session record, durable-first. Backend failure degrades to
// memory-only and is not surfaced to the caller.
func (s *Store) Put(ctx context.Context, rec *SessionRecord) error {
	key := dirtyKey{spaceID: rec.SpaceID, sessionID: rec.SessionID}
	s.writeDurable(ctx, key, func() error { return s.backend.PutSession(ctx, rec) })
	return s.mirror.PutSession(ctx, rec)
}

// Delete removes a session record from mirror and backend.
func (s *Store) Delete(ctx context.Context, spaceID, sessionID string) error {
	if err := s.mirror.DeleteSession(ctx, spaceID, sessionID); err != nil {
		return err
	}
	key := dirtyKey{spaceID: spaceID, sessionID: sessionID}
	s.deleteDurable(ctx, key, func() error { return s.backend.DeleteSession(ctx, spaceID, sessionID) })
	return nil
}

// GetConfig returns the space configuration, creating and persisting defaults
// on first access. Never blocks on the backend.
func (s *Store) GetConfig(ctx context.Context, spaceID string) (*SpaceConfig, error) {
	cfg, err := s.mirror.GetSpaceConfig(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}

	cfg = NewSpaceConfig(spaceID, s.defaults)
	if err := s.PutConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PutConfig persists a space configuration, durable-first.
func (s *Store) PutConfig(ctx context.Context, cfg *SpaceConfig) error {
	key := dirtyKey{spaceID: cfg.SpaceID}
	s.writeDurable(ctx, key, func() error { return s.backend.PutSpaceConfig(ctx, cfg) })
	return s.mirror.PutSpaceConfig(ctx, cfg)
}

// ResetConfig drops a space's stored configuration; the next access recreates
// defaults.
func (s *Store) ResetConfig(ctx context.Context, spaceID string) error {
	cfg := NewSpaceConfig(spaceID, s.defaults)
	return s.PutConfig(ctx, cfg)
}

// Degraded reports whether the store is operating memory-only after a backend
// failure.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

// Close releases the backend.
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// writeDurable attempts a durable write. On failure the key is marked dirty
// and the store degrades; on success after degradation, pending dirty state
// is flushed.
func (s *Store) writeDurable(ctx context.Context, key dirtyKey, write func() error) {
	if s.backend == nil {
		return
	}
	if err := write(); err != nil {
		s.markDirty(key, false)
		s.enterDegraded(err)
		return
	}
	s.clearDirty(key)
	if s.degraded.Load() {
		s.flush(ctx)
	}
}

// deleteDurable is writeDurable for deletions, which flush as backend deletes.
func (s *Store) deleteDurable(ctx context.Context, key dirtyKey, del func() error) {
	if s.backend == nil {
		return
	}
	if err := del(); err != nil {
		s.markDirty(key, true)
		s.enterDegraded(err)
		return
	}
	s.clearDirty(key)
	if s.degraded.Load() {
		s.flush(ctx)
	}
}

func (s *Store) enterDegraded(err error) {
	if s.degraded.CompareAndSwap(false, true) {
		s.logger.Warn("store backend unavailable, degrading to memory-only", "error", err)
	}
}

func (s *Store) markDirty(key dirtyKey, isDelete bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if isDelete {
		delete(s.dirtyPuts, key)
		s.dirtyDeletes[key] = struct{}{}
	} else {
		delete(s.dirtyDeletes, key)
		s.dirtyPuts[key] = struct{}{}
	}
}

func (s *Store) clearDirty(key dirtyKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dirtyPuts, key)
	delete(s.dirtyDeletes, key)
}

// flush replays dirty state to the backend. Memory-mode writes win over
// whatever the backend held during the outage (last write wins). Any failure
// keeps the store degraded with the remaining keys still dirty.
func (s *Store) flush(ctx context.Context) {
	s.mu.Lock()
	puts := make([]dirtyKey, 0, len(s.dirtyPuts))
	for key := range s.dirtyPuts {
		puts = append(puts, key)
	}
	deletes := make([]dirtyKey, 0, len(s.dirtyDeletes))
	for key := range s.dirtyDeletes {
		deletes = append(deletes, key)
	}
	s.mu.Unlock()

	for _, key := range deletes {
		if key.sessionID == "" {
			continue
		}
		if err := s.backend.DeleteSession(ctx, key.spaceID, key.sessionID); err != nil {
			s.logger.Warn("store flush failed", "space", key.spaceID, "session", key.sessionID, "error", err)
			return
		}
		s.clearDirty(key)
	}
	for _, key := range puts {
		if err := s.flushPut(ctx, key); err != nil {
			s.logger.Warn("store flush failed", "space", key.spaceID, "session", key.sessionID, "error", err)
			return
		}
		s.clearDirty(key)
	}

	if s.degraded.CompareAndSwap(true, false) {
		s.logger.Info("store backend recovered, durable writes resumed")
	}
}

func (s *Store) flushPut(ctx context.Context, key dirtyKey) error {
	if key.sessionID == "" {
		cfg, err := s.mirror.GetSpaceConfig(ctx, key.spaceID)
		if err != nil || cfg == nil {
			return err
		}
		return s.backend.PutSpaceConfig(ctx, cfg)
	}
	rec, err := s.mirror.GetSession(ctx, key.spaceID, key.sessionID)
	if err != nil || rec == nil {
		return err
	}
	return s.backend.PutSession(ctx, rec)
}
