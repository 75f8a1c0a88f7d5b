// Package sweeper reconciles store and platform state: it deletes sessions
// left empty past the grace period, removes orphaned records whose channels
// vanished externally, and enforces the hard session lifetime cap.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/foyer-project/foyer/pkg/platform"
	"github.com/foyer-project/foyer/pkg/store"
)

// Lifecycle is the slice of the engine the sweeper drives. Deletion goes
// through the engine so the single-writer guard applies.
type Lifecycle interface {
	DeleteSession(ctx context.Context, spaceID, sessionID, reason string) error
	RemoveOrphan(ctx context.Context, spaceID, sessionID string) error
}

// DefaultGrace is how long a session must stay empty before eviction.
const DefaultGrace = 10 * time.Second

type sessionKey struct {
	spaceID   string
	sessionID string
}

// Sweeper periodically classifies every session record and reclaims
// orphaned, stale, and abandoned sessions.
type Sweeper struct {
	store     *store.Store
	facade    platform.Facade
	lifecycle Lifecycle
	grace     time.Duration
	logger    *slog.Logger

	mu         sync.Mutex
	emptySince map[sessionKey]time.Time
	lastSweep  map[string]time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Sweeper. grace <= 0 falls back to DefaultGrace.
func New(st *store.Store, facade platform.Facade, lifecycle Lifecycle, grace time.Duration, logger *slog.Logger) *Sweeper {
	if grace <= 0 {
		grace = DefaultGrace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:      st,
		facade:     facade,
		lifecycle:  lifecycle,
		grace:      grace,
		logger:     logger,
		emptySince: make(map[sessionKey]time.Time),
		lastSweep:  make(map[string]time.Time),
	}
}

// Start begins the periodic sweep. interval is the process-wide tick; each
// space is swept no more often than its own configured cleanup interval.
// Stopped by Close.
func (s *Sweeper) Start(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Close stops the sweep goroutine and waits for it to exit. It is safe to
// call Close even if Start was never called.
func (s *Sweeper) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// Sweep runs one full pass over all spaces due for sweeping.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now()
	for _, spaceID := range s.store.Spaces() {
		cfg, err := s.store.GetConfig(ctx, spaceID)
		if err != nil {
			s.logger.Warn("sweep: loading space config failed", "space", spaceID, "error", err)
			continue
		}
		if last, ok := s.spaceLastSweep(spaceID); ok && now.Sub(last) < cfg.CleanupInterval {
			continue
		}
		s.setSpaceLastSweep(spaceID, now)
		s.sweepSpace(ctx, spaceID, cfg)
	}
}

// SweepSpace forces an immediate sweep of one space, ignoring its cadence.
// Used by administrative cleanup.
func (s *Sweeper) SweepSpace(ctx context.Context, spaceID string) error {
	cfg, err := s.store.GetConfig(ctx, spaceID)
	if err != nil {
		return err
	}
	s.setSpaceLastSweep(spaceID, time.Now())
	s.sweepSpace(ctx, spaceID, cfg)
	return nil
}

func (s *Sweeper) sweepSpace(ctx context.Context, spaceID string, cfg *store.SpaceConfig) {
	recs, err := s.store.ListBySpace(ctx, spaceID)
	if err != nil {
		s.logger.Warn("sweep: listing sessions failed", "space", spaceID, "error", err)
		return
	}

	for _, rec := range recs {
		if ctx.Err() != nil {
			return
		}
		s.classify(ctx, rec, cfg)
	}
}

// classify applies the eviction rules to one session: orphaned, stale, empty
// beyond grace, or retained. Transient platform errors retain the session
// until the next sweep.
func (s *Sweeper) classify(ctx context.Context, rec *store.SessionRecord, cfg *store.SpaceConfig) {
	key := sessionKey{spaceID: rec.SpaceID, sessionID: rec.SessionID}

	exists, err := s.facade.ChannelExists(ctx, rec.SpaceID, rec.SessionID)
	if err != nil {
		s.logger.Warn("sweep: existence check failed", "space", rec.SpaceID, "session", rec.SessionID, "error", err)
		return
	}
	if !exists {
		if err := s.lifecycle.RemoveOrphan(ctx, rec.SpaceID, rec.SessionID); err != nil {
			s.logger.Warn("sweep: orphan removal failed", "space", rec.SpaceID, "session", rec.SessionID, "error", err)
			return
		}
		s.forget(key)
		s.logger.Info("sweep: orphaned record removed", "space", rec.SpaceID, "session", rec.SessionID)
		return
	}

	if cfg.MaxSessionLifetime > 0 && time.Since(rec.CreatedAt) > cfg.MaxSessionLifetime {
		if err := s.lifecycle.DeleteSession(ctx, rec.SpaceID, rec.SessionID, "max lifetime exceeded"); err != nil {
			s.logger.Warn("sweep: stale delete failed", "space", rec.SpaceID, "session", rec.SessionID, "error", err)
			return
		}
		s.forget(key)
		return
	}

	members, err := s.facade.ChannelMembers(ctx, rec.SpaceID, rec.SessionID)
	if err != nil {
		s.logger.Warn("sweep: member listing failed", "space", rec.SpaceID, "session", rec.SessionID, "error", err)
		return
	}
	if len(members) > 0 {
		s.forget(key)
		return
	}

	since := s.markEmpty(key)
	if time.Since(since) < s.grace {
		return
	}
	if err := s.lifecycle.DeleteSession(ctx, rec.SpaceID, rec.SessionID, "session empty"); err != nil {
		s.logger.Warn("sweep: empty delete failed", "space", rec.SpaceID, "session", rec.SessionID, "error", err)
		return
	}
	s.forget(key)
}

// markEmpty records when a session was first observed empty and returns that
// time.
func (s *Sweeper) markEmpty(key sessionKey) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	since, ok := s.emptySince[key]
	if !ok {
		since = time.Now()
		s.emptySince[key] = since
	}
	return since
}

func (s *Sweeper) forget(key sessionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.emptySince, key)
}

func (s *Sweeper) spaceLastSweep(spaceID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastSweep[spaceID]
	return last, ok
}

func (s *Sweeper) setSpaceLastSweep(spaceID string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSweep[spaceID] = t
}
