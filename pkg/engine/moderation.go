package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/foyer-project/foyer/pkg/platform"
	"github.com/foyer-project/foyer/pkg/store"
)

// Ban adds targetID to the session's ban list, denies the channel to them,
// and disconnects them if currently connected. Re-banning an already-banned
// member is a no-op returning success. The record is updated before platform
// edits so a pending edit is the only possible transient inconsistency,
// self-healed by join-time enforcement.
func (e *Engine) Ban(ctx context.Context, spaceID, sessionID, actorID, targetID, reason string) error {
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
	if targetID == rec.OwnerID {
		return ErrCannotBanOwner
	}
	if rec.IsBanned(targetID) {
		return nil
	}

	cfg, err := e.store.GetConfig(ctx, spaceID)
	if err != nil {
		return fmt.Errorf("loading space config: %w", err)
	}
	if len(rec.Banned) >= cfg.MaxBannedMembers {
		return ErrBanListFull
	}

	rec.AddBan(targetID)
	rec.LogActivity(store.ActivityBanned, actorID, fmt.Sprintf("%s: %s", targetID, reason))
	if err := e.store.Put(ctx, rec); err != nil {
		return err
	}

	deny := platform.PermissionUpdate{
		AllowView:    platform.Bool(false),
		AllowConnect: platform.Bool(false),
	}
	if err := e.facade.EditPermission(ctx, rec.SessionID, targetID, deny); err != nil {
		e.logger.Warn("ban permission edit failed", "space", spaceID, "session", sessionID, "target", targetID, "error", err)
	}

	members, err := e.facade.ChannelMembers(ctx, spaceID, sessionID)
	if err == nil && slices.Contains(members, targetID) {
		if err := e.facade.DisconnectMember(ctx, spaceID, targetID, "banned: "+reason); err != nil {
			e.logger.Warn("ban disconnect failed", "space", spaceID, "session", sessionID, "target", targetID, "error", err)
		}
	}
	return nil
}

// Unban removes targetID from the ban list and clears their permission entry.
// Unbanning a member who is not banned is a no-op returning success.
func (e *Engine) Unban(ctx context.Context, spaceID, sessionID, actorID, targetID string) error {
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
	if !rec.RemoveBan(targetID) {
		return nil
	}

	rec.LogActivity(store.ActivityUnbanned, actorID, targetID)
	if err := e.store.Put(ctx, rec); err != nil {
		return err
	}

	if err := e.facade.RemovePermission(ctx, rec.SessionID, targetID); err != nil {
		e.logger.Warn("unban permission clear failed", "space", spaceID, "session", sessionID, "target", targetID, "error", err)
	}
	return nil
}

// Kick disconnects a connected non-owner member without altering ban state.
// The member may rejoin immediately unless separately banned.
func (e *Engine) Kick(ctx context.Context, spaceID, sessionID, actorID, targetID, reason string) error {
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
	if targetID == rec.OwnerID {
		return ErrNotOwner
	}

	members, err := e.facade.ChannelMembers(ctx, spaceID, sessionID)
	if err != nil {
		return fmt.Errorf("listing session members: %w", err)
	}
	if !slices.Contains(members, targetID) {
		return ErrMemberNotInSession
	}

	rec.LogActivity(store.ActivityKicked, actorID, fmt.Sprintf("%s: %s", targetID, reason))
	if err := e.store.Put(ctx, rec); err != nil {
		return err
	}

	if err := e.facade.DisconnectMember(ctx, spaceID, targetID, "kicked: "+reason); err != nil {
		return fmt.Errorf("disconnecting member: %w", err)
	}
	return nil
}
