package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foyer-project/foyer/pkg/platform"
)

const emptyCheckTimeout = 30 * time.Second

// DeleteSession tears down a session: platform channels first, then the
// store record. It is the single deletion path shared by explicit teardown,
// the delayed empty re-check, and the sweeper. Concurrent deletes are
// idempotent; the second caller observes the record already gone and returns
// success.
func (e *Engine) DeleteSession(ctx context.Context, spaceID, sessionID, reason string) error {
	release := e.locks.acquire(spaceID, sessionID)
	defer release()
	return e.deleteLocked(ctx, spaceID, sessionID, reason, true)
}

// DeleteIfEmpty deletes the session only if its live member set is empty at
// call time. Used by the grace-period re-check.
func (e *Engine) DeleteIfEmpty(ctx context.Context, spaceID, sessionID string) error {
	release := e.locks.acquire(spaceID, sessionID)
	defer release()

	rec, err := e.store.Get(ctx, spaceID, sessionID)
	if err != nil || rec == nil {
		return err
	}

	members, err := e.facade.ChannelMembers(ctx, spaceID, sessionID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return e.deleteLocked(ctx, spaceID, sessionID, "", false)
		}
		return fmt.Errorf("listing session members: %w", err)
	}
	if len(members) > 0 {
		return nil
	}
	return e.deleteLocked(ctx, spaceID, sessionID, "session empty", true)
}

// RemoveOrphan removes the record of a session whose voice channel vanished
// externally. No voice channel delete is issued; a surviving companion is
// still cleaned up when configured.
func (e *Engine) RemoveOrphan(ctx context.Context, spaceID, sessionID string) error {
	release := e.locks.acquire(spaceID, sessionID)
	defer release()
	return e.deleteLocked(ctx, spaceID, sessionID, "", false)
}

// deleteLocked is the single-writer deletion step. Callers hold the session
// lock. Re-verifies the record still exists so concurrent attempts observe
// "already gone" without side effects. Platform resources are deleted before
// the record: a transient platform failure keeps the record, so the next
// sweep or command retries — a record removed while its channel survives
// would never be reclaimed. A channel already gone counts as deleted.
func (e *Engine) deleteLocked(ctx context.Context, spaceID, sessionID, reason string, deleteVoice bool) error {
	rec, err := e.store.Get(ctx, spaceID, sessionID)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	if deleteVoice {
		if err := e.facade.DeleteChannel(ctx, spaceID, rec.SessionID, reason); err != nil && !errors.Is(err, platform.ErrNotFound) {
			return fmt.Errorf("deleting voice channel: %w", err)
		}
	}

	if rec.CompanionID != "" {
		cfg, err := e.store.GetConfig(ctx, spaceID)
		if err != nil {
			return fmt.Errorf("loading space config: %w", err)
		}
		if cfg.AutoDeleteCompanion {
			if err := e.facade.DeleteChannel(ctx, spaceID, rec.CompanionID, reason); err != nil && !errors.Is(err, platform.ErrNotFound) {
				return fmt.Errorf("deleting companion channel: %w", err)
			}
		}
	}

	if err := e.store.Delete(ctx, spaceID, sessionID); err != nil {
		return fmt.Errorf("deleting session record: %w", err)
	}

	e.logger.Info("session deleted", "space", spaceID, "session", sessionID, "reason", reason)
	return nil
}
