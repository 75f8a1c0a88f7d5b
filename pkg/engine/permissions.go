package engine

import (
	"context"
	"time"

	"github.com/foyer-project/foyer/pkg/platform"
	"github.com/foyer-project/foyer/pkg/store"
)

// SetVisible toggles session visibility. Hiding denies view to every subject
// holding a permission entry except the owner; showing restores it. The
// owner's entry is never modified, preserving their elevated privileges.
func (e *Engine) SetVisible(ctx context.Context, spaceID, sessionID, actorID string, visible bool) (platform.EditReport, error) {
	update := platform.PermissionUpdate{AllowView: platform.Bool(visible)}
	return e.toggle(ctx, spaceID, sessionID, actorID, update, func(rec *store.SessionRecord) {
		rec.Visible = visible
		rec.LogActivity(store.ActivityVisibility, actorID, boolDetail(visible, "shown", "hidden"))
	})
}

// SetLocked toggles the session lock. Locking denies connect to every subject
// except the owner; members already connected are not evicted.
func (e *Engine) SetLocked(ctx context.Context, spaceID, sessionID, actorID string, locked bool) (platform.EditReport, error) {
	update := platform.PermissionUpdate{AllowConnect: platform.Bool(!locked)}
	return e.toggle(ctx, spaceID, sessionID, actorID, update, func(rec *store.SessionRecord) {
		rec.Locked = locked
		rec.LogActivity(store.ActivityLock, actorID, boolDetail(locked, "locked", "unlocked"))
	})
}

// toggle runs the shared permission-toggle path: owner check, record update
// first, then one best-effort sequential edit per non-owner subject with a
// small inter-edit delay. Per-subject failures land in the report and do not
// abort remaining edits.
func (e *Engine) toggle(ctx context.Context, spaceID, sessionID, actorID string, update platform.PermissionUpdate, apply func(*store.SessionRecord)) (platform.EditReport, error) {
	var report platform.EditReport

	release := e.locks.acquire(spaceID, sessionID)
	defer release()

	rec, err := e.store.Get(ctx, spaceID, sessionID)
	if err != nil {
		return report, err
	}
	if rec == nil {
		return report, ErrSessionNotFound
	}
	if actorID != rec.OwnerID {
		return report, ErrNotOwner
	}

	apply(rec)
	if err := e.store.Put(ctx, rec); err != nil {
		return report, err
	}

	subjects, err := e.facade.PermissionSubjects(ctx, rec.SessionID)
	if err != nil {
		e.logger.Warn("listing permission subjects failed", "space", spaceID, "session", sessionID, "error", err)
		return report, nil
	}

	issued := 0
	for _, subjectID := range subjects {
		if subjectID == rec.OwnerID {
			continue
		}
		if issued > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(e.opts.EditDelay):
			}
		}
		issued++
		if err := e.facade.EditPermission(ctx, rec.SessionID, subjectID, update); err != nil {
			e.logger.Warn("permission edit failed", "space", spaceID, "session", sessionID, "subject", subjectID, "error", err)
			report.Failed = append(report.Failed, subjectID)
			continue
		}
		report.Applied = append(report.Applied, subjectID)
	}
	return report, nil
}

func boolDetail(v bool, whenTrue, whenFalse string) string {
	if v {
		return whenTrue
	}
	return whenFalse
}
