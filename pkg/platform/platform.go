// Package platform defines the boundary to the chat platform: the Facade
// interface for resource operations and the event types delivered by the
// membership stream. Implementations live in subpackages; tests use fakes.
package platform

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Facade calls when the target resource no longer
// exists on the platform. Callers treat it as "already gone" rather than a
// hard failure.
var ErrNotFound = errors.New("platform: resource not found")

// PermissionUpdate sets permission flags for one subject on one channel. Nil
// fields are left untouched; false denies, true allows.
type PermissionUpdate struct {
	AllowView    *bool
	AllowConnect *bool
}

// VoiceChannelSpec describes a voice channel to create.
type VoiceChannelSpec struct {
	Name      string
	ParentID  string
	UserLimit int

	// OwnerID receives elevated view+connect permissions at creation.
	OwnerID string
}

// TextChannelSpec describes a companion text channel to create. The channel
// is initially visible only to the owner.
type TextChannelSpec struct {
	Name     string
	ParentID string
	OwnerID  string
}

// Facade exposes the platform operations the lifecycle engine drives. All
// calls may be slow; callers hold only their own session's critical section
// while awaiting them.
type Facade interface {
	// CreateVoiceChannel creates a voice channel and returns its id.
	CreateVoiceChannel(ctx context.Context, spaceID string, spec VoiceChannelSpec) (string, error)

	// CreateTextChannel creates a text channel and returns its id.
	CreateTextChannel(ctx context.Context, spaceID string, spec TextChannelSpec) (string, error)

	// DeleteChannel removes a channel. Returns ErrNotFound if already gone.
	DeleteChannel(ctx context.Context, spaceID, channelID, reason string) error

	// EditPermission creates or updates a subject's permission entry.
	EditPermission(ctx context.Context, channelID, subjectID string, update PermissionUpdate) error

	// RemovePermission clears a subject's permission entry.
	RemovePermission(ctx context.Context, channelID, subjectID string) error

	// DisconnectMember drops a member from whatever voice channel they
	// occupy in the space.
	DisconnectMember(ctx context.Context, spaceID, memberID, reason string) error

	// MoveMember relocates a member into a voice channel.
	MoveMember(ctx context.Context, spaceID, memberID, toChannelID string) error

	// ChannelMembers returns the live member set of a voice channel in the
	// platform's reported order (join order).
	ChannelMembers(ctx context.Context, spaceID, channelID string) ([]string, error)

	// ChannelParent returns the id of a channel's parent category, or empty.
	ChannelParent(ctx context.Context, spaceID, channelID string) (string, error)

	// PermissionSubjects returns the subjects currently holding a
	// permission entry on a channel.
	PermissionSubjects(ctx context.Context, channelID string) ([]string, error)

	// ChannelExists reports whether a channel still exists on the platform.
	ChannelExists(ctx context.Context, spaceID, channelID string) (bool, error)
}

// Handler consumes membership events from the platform's event stream.
// Errors are logged by the dispatcher; handlers must not corrupt local state
// on failure.
type Handler interface {
	MemberJoined(ctx context.Context, spaceID, channelID, memberID string) error
	MemberLeft(ctx context.Context, spaceID, channelID, memberID string) error
	MemberMoved(ctx context.Context, spaceID, fromChannelID, toChannelID, memberID string) error
	ChannelDeleted(ctx context.Context, spaceID, channelID string) error
}

// EditReport enumerates per-subject outcomes of a bulk permission change so
// callers can report partial failure precisely.
type EditReport struct {
	Applied []string
	Failed  []string
}

// AllApplied reports whether no per-subject edit failed.
func (r EditReport) AllApplied() bool { return len(r.Failed) == 0 }

// Bool is a helper for building PermissionUpdate literals.
func Bool(v bool) *bool { return &v }
