package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/foyer-project/foyer/pkg/platform"
	"github.com/foyer-project/foyer/pkg/store"
)

// SetOwner transfers ownership. Only the current owner may invoke it, and the
// new owner must be a live member of the session's voice channel.
func (e *Engine) SetOwner(ctx context.Context, spaceID, sessionID, actorID, newOwnerID string) error {
	release := e.locks.acquire(spaceID, sessionID)
	defer release()

	rec, err := e.store.Get(ctx, spaceID, sessionID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrSessionNotFound
	}
	if actorID != rec.OwnerID {
		return ErrNotOwner
	}
	if newOwnerID == rec.OwnerID {
		return nil
	}

	members, err := e.facade.ChannelMembers(ctx, spaceID, sessionID)
	if err != nil {
		return fmt.Errorf("listing session members: %w", err)
	}
	if !slices.Contains(members, newOwnerID) {
		return ErrMemberNotInSession
	}

	e.transferLocked(ctx, rec, newOwnerID, "transferred")
	return e.store.Put(ctx, rec)
}

// Claim grants ownership to a live member while the current owner is absent
// from the session's live member set.
func (e *Engine) Claim(ctx context.Context, spaceID, sessionID, requesterID string) error {
	release := e.locks.acquire(spaceID, sessionID)
	defer release()

	rec, err := e.store.Get(ctx, spaceID, sessionID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrSessionNotFound
	}

	members, err := e.facade.ChannelMembers(ctx, spaceID, sessionID)
	if err != nil {
		return fmt.Errorf("listing session members: %w", err)
	}
	if slices.Contains(members, rec.OwnerID) {
		return ErrOwnerPresent
	}
	if !slices.Contains(members, requesterID) {
		return ErrMemberNotInSession
	}

	e.transferLocked(ctx, rec, requesterID, "claimed")
	return e.store.Put(ctx, rec)
}

// transferLocked moves elevated permissions from the old owner to the new one
// on both channels and updates the record. Callers hold the session lock and
// persist the record afterwards. Platform edit failures are logged; the
// record is authoritative and drift self-heals on the next enforcement check.
func (e *Engine) transferLocked(ctx context.Context, rec *store.SessionRecord, newOwnerID, reason string) {
	oldOwnerID := rec.OwnerID
	rec.OwnerID = newOwnerID
	// No display name is available on transfer; the id keeps the field usable.
	rec.OwnerName = newOwnerID
	rec.LogActivity(store.ActivityOwnerChanged, newOwnerID, reason)

	elevated := platform.PermissionUpdate{
		AllowView:    platform.Bool(true),
		AllowConnect: platform.Bool(true),
	}
	channels := []string{rec.SessionID}
	if rec.CompanionID != "" {
		channels = append(channels, rec.CompanionID)
	}
	for _, channelID := range channels {
		if err := e.facade.RemovePermission(ctx, channelID, oldOwnerID); err != nil {
			e.logger.Warn("revoking old owner permissions failed",
				"space", rec.SpaceID, "session", rec.SessionID, "channel", channelID, "error", err)
		}
		if err := e.facade.EditPermission(ctx, channelID, newOwnerID, elevated); err != nil {
			e.logger.Warn("granting new owner permissions failed",
				"space", rec.SpaceID, "session", rec.SessionID, "channel", channelID, "error", err)
		}
	}

	e.logger.Info("session ownership changed",
		"space", rec.SpaceID, "session", rec.SessionID, "from", oldOwnerID, "to", newOwnerID, "reason", reason)
}
