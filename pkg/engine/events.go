package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foyer-project/foyer/pkg/platform"
	"github.com/foyer-project/foyer/pkg/store"
)

// MemberJoined processes a voice join. Joins to a trigger channel spawn a
// session; joins to a session enforce bans and lock state before any other
// processing.
func (e *Engine) MemberJoined(ctx context.Context, spaceID, channelID, memberID string) error {
	cfg, err := e.store.GetConfig(ctx, spaceID)
	if err != nil {
		return fmt.Errorf("loading space config: %w", err)
	}

	if cfg.IsTrigger(channelID) {
		_, err := e.CreateSession(ctx, spaceID, memberID, memberID, channelID)
		if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrSpaceFull) || errors.Is(err, ErrOwnerSessionLimit) {
			e.logger.Info("session creation rejected", "space", spaceID, "member", memberID, "reason", err)
			return nil
		}
		return err
	}

	rec, err := e.store.Get(ctx, spaceID, channelID)
	if err != nil || rec == nil {
		return err
	}

	release := e.locks.acquire(spaceID, channelID)
	defer release()

	rec, err = e.store.Get(ctx, spaceID, channelID)
	if err != nil || rec == nil {
		return err
	}

	// Join-time enforcement precedes all other join processing.
	if rec.IsBanned(memberID) || (rec.Locked && memberID != rec.OwnerID) {
		if err := e.facade.DisconnectMember(ctx, spaceID, memberID, "not permitted in session"); err != nil {
			e.logger.Warn("enforcement disconnect failed", "space", spaceID, "session", channelID, "member", memberID, "error", err)
		}
		return nil
	}

	rec.LogActivity(store.ActivityJoined, memberID, "")
	return e.store.Put(ctx, rec)
}

// MemberLeft processes a voice leave. An owner departure auto-transfers
// ownership to the first remaining member; a session emptying schedules a
// delayed re-check instead of deleting immediately.
func (e *Engine) MemberLeft(ctx context.Context, spaceID, channelID, memberID string) error {
	rec, err := e.store.Get(ctx, spaceID, channelID)
	if err != nil || rec == nil {
		return err
	}

	release := e.locks.acquire(spaceID, channelID)
	defer release()

	rec, err = e.store.Get(ctx, spaceID, channelID)
	if err != nil || rec == nil {
		return err
	}

	members, err := e.facade.ChannelMembers(ctx, spaceID, channelID)
	if err != nil {
		return fmt.Errorf("listing session members: %w", err)
	}

	rec.LogActivity(store.ActivityLeft, memberID, "")

	if memberID == rec.OwnerID && len(members) > 0 {
		if heir := firstEligible(rec, members); heir != "" {
			e.transferLocked(ctx, rec, heir, "owner left")
		}
	}

	if err := e.store.Put(ctx, rec); err != nil {
		return err
	}

	if len(members) == 0 {
		e.scheduleEmptyCheck(spaceID, channelID)
	}
	return nil
}

// MemberMoved is a leave from one channel and a join to another.
func (e *Engine) MemberMoved(ctx context.Context, spaceID, fromChannelID, toChannelID, memberID string) error {
	if err := e.MemberLeft(ctx, spaceID, fromChannelID, memberID); err != nil {
		e.logger.Warn("move: leave handling failed", "space", spaceID, "channel", fromChannelID, "member", memberID, "error", err)
	}
	return e.MemberJoined(ctx, spaceID, toChannelID, memberID)
}

// ChannelDeleted reconciles an out-of-band channel deletion. A deleted voice
// channel orphans its record; a deleted companion is detached from its
// session.
func (e *Engine) ChannelDeleted(ctx context.Context, spaceID, channelID string) error {
	rec, err := e.store.Get(ctx, spaceID, channelID)
	if err != nil {
		return err
	}
	if rec != nil {
		return e.RemoveOrphan(ctx, spaceID, channelID)
	}

	// The channel may have been a session's companion.
	recs, err := e.store.ListBySpace(ctx, spaceID)
	if err != nil {
		return err
	}
	for _, candidate := range recs {
		if candidate.CompanionID != channelID {
			continue
		}
		release := e.locks.acquire(spaceID, candidate.SessionID)
		rec, err := e.store.Get(ctx, spaceID, candidate.SessionID)
		if err == nil && rec != nil && rec.CompanionID == channelID {
			rec.CompanionID = ""
			err = e.store.Put(ctx, rec)
		}
		release()
		return err
	}
	return nil
}

// scheduleEmptyCheck arms the grace-period timer. The pending check observes
// occupancy at fire time, so a rejoin before it fires makes it a no-op.
func (e *Engine) scheduleEmptyCheck(spaceID, sessionID string) {
	time.AfterFunc(e.opts.EmptyGrace, func() {
		ctx, cancel := context.WithTimeout(context.Background(), emptyCheckTimeout)
		defer cancel()
		if err := e.DeleteIfEmpty(ctx, spaceID, sessionID); err != nil {
			e.logger.Warn("empty re-check failed", "space", spaceID, "session", sessionID, "error", err)
		}
	})
}

// firstEligible picks the auto-transfer heir: the first member in the
// platform's reported join order that is not banned and not the departing
// owner. Deterministic for a given member set.
func firstEligible(rec *store.SessionRecord, members []string) string {
	for _, m := range members {
		if m != rec.OwnerID && !rec.IsBanned(m) {
			return m
		}
	}
	return ""
}

var _ platform.Handler = (*Engine)(nil)
