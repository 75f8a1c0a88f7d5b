package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/foyer-project/foyer/pkg/platform"
	"github.com/foyer-project/foyer/pkg/store"
)

// CreateSession synthesizes a voice+text channel pair owned by memberID,
// triggered by a join to triggerChannelID. On rate-limit or capacity
// rejection no platform resources are created. Companion creation failure is
// non-fatal: the session survives without a companion.
func (e *Engine) CreateSession(ctx context.Context, spaceID, memberID, displayName, triggerChannelID string) (*store.SessionRecord, error) {
	cfg, err := e.store.GetConfig(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("loading space config: %w", err)
	}

	if !e.limiter.Admit(memberID) {
		return nil, ErrRateLimited
	}
	if err := e.checkCapacity(ctx, spaceID, memberID); err != nil {
		return nil, err
	}

	parentID, err := e.facade.ChannelParent(ctx, spaceID, triggerChannelID)
	if err != nil {
		e.logger.Warn("trigger parent lookup failed", "space", spaceID, "channel", triggerChannelID, "error", err)
		parentID = ""
	}

	name := sessionName(displayName)
	voiceID, err := e.facade.CreateVoiceChannel(ctx, spaceID, platform.VoiceChannelSpec{
		Name:      name,
		ParentID:  parentID,
		UserLimit: cfg.DefaultMaxMembers,
		OwnerID:   memberID,
	})
	if err != nil {
		return nil, fmt.Errorf("creating voice channel: %w", err)
	}

	companionID := ""
	if cfg.CreateCompanion {
		companionID, err = e.facade.CreateTextChannel(ctx, spaceID, platform.TextChannelSpec{
			Name:     name,
			ParentID: parentID,
			OwnerID:  memberID,
		})
		if err != nil {
			e.logger.Warn("companion creation failed, session continues without one",
				"space", spaceID, "session", voiceID, "error", err)
			companionID = ""
		}
	}

	now := time.Now()
	rec := &store.SessionRecord{
		SessionID:      voiceID,
		CompanionID:    companionID,
		SpaceID:        spaceID,
		OwnerID:        memberID,
		OwnerName:      displayName,
		MaxMembers:     cfg.DefaultMaxMembers,
		Visible:        true,
		Locked:         false,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	rec.LogActivity(store.ActivityCreated, memberID, "")

	release := e.locks.acquire(spaceID, voiceID)
	err = e.store.Put(ctx, rec)
	release()
	if err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}

	// Best-effort: the member may already have left the trigger channel.
	if err := e.facade.MoveMember(ctx, spaceID, memberID, voiceID); err != nil {
		e.logger.Warn("moving creator into session failed", "space", spaceID, "session", voiceID, "error", err)
	}

	e.logger.Info("session created", "space", spaceID, "session", voiceID, "owner", memberID)
	return rec, nil
}

func (e *Engine) checkCapacity(ctx context.Context, spaceID, ownerID string) error {
	limits := e.opts.Limits
	if limits.MaxSessionsPerSpace <= 0 && limits.MaxSessionsPerOwner <= 0 {
		return nil
	}

	recs, err := e.store.ListBySpace(ctx, spaceID)
	if err != nil {
		return fmt.Errorf("listing space sessions: %w", err)
	}

	if limits.MaxSessionsPerSpace > 0 && len(recs) >= limits.MaxSessionsPerSpace {
		return ErrSpaceFull
	}
	if limits.MaxSessionsPerOwner > 0 {
		owned := 0
		for _, rec := range recs {
			if rec.OwnerID == ownerID {
				owned++
			}
		}
		if owned >= limits.MaxSessionsPerOwner {
			return ErrOwnerSessionLimit
		}
	}
	return nil
}

func sessionName(displayName string) string {
	if displayName == "" {
		return "Session"
	}
	return fmt.Sprintf("%s's Session", displayName)
}
