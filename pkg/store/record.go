// Package store provides persistence for session records and per-space
// configuration. It defines the Backend interface for durable storage and a
// mirrored Store that keeps an in-memory copy authoritative for reads,
// degrading to memory-only operation when the backend is unreachable.
package store

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// MaxActivityEntries caps the per-session activity trail. Oldest entries are
// evicted first.
const MaxActivityEntries = 50

// ActivityKind categorizes activity log entries.
type ActivityKind string

const (
	ActivityCreated      ActivityKind = "created"
	ActivityJoined       ActivityKind = "joined"
	ActivityLeft         ActivityKind = "left"
	ActivityOwnerChanged ActivityKind = "owner_changed"
	ActivityVisibility   ActivityKind = "visibility"
	ActivityLock         ActivityKind = "lock"
	ActivityBanned       ActivityKind = "banned"
	ActivityUnbanned     ActivityKind = "unbanned"
	ActivityKicked       ActivityKind = "kicked"
)

// ActivityEntry is one entry in a session's bounded activity trail.
type ActivityEntry struct {
	ID      string       `json:"id"`
	At      time.Time    `json:"at"`
	Kind    ActivityKind `json:"kind"`
	ActorID string       `json:"actor_id,omitempty"`
	Detail  string       `json:"detail,omitempty"`
}

// SessionRecord describes one synthesized voice+text channel pair. Records are
// keyed by (SpaceID, SessionID); SessionID is the voice channel's platform id.
type SessionRecord struct {
	// SessionID is the primary voice channel id.
	SessionID string

	// CompanionID is the paired text channel id. Empty when companion
	// creation was disabled or failed (visibility features degrade).
	CompanionID string

	// SpaceID identifies the owning community space.
	SpaceID string

	OwnerID   string
	OwnerName string

	// MaxMembers is the voice channel user limit. 0 means unbounded.
	MaxMembers int

	Visible bool
	Locked  bool

	// Banned lists member ids denied access, sorted for stable persistence.
	Banned []string

	CreatedAt      time.Time
	LastActivityAt time.Time

	// Activity holds the most recent MaxActivityEntries entries, oldest first.
	Activity []ActivityEntry
}

// IsBanned reports whether memberID is on the ban list.
func (r *SessionRecord) IsBanned(memberID string) bool {
	_, found := slices.BinarySearch(r.Banned, memberID)
	return found
}

// AddBan adds memberID to the ban list. Returns false if already banned.
func (r *SessionRecord) AddBan(memberID string) bool {
	i, found := slices.BinarySearch(r.Banned, memberID)
	if found {
		return false
	}
	r.Banned = slices.Insert(r.Banned, i, memberID)
	return true
}

// RemoveBan removes memberID from the ban list. Returns false if not banned.
func (r *SessionRecord) RemoveBan(memberID string) bool {
	i, found := slices.BinarySearch(r.Banned, memberID)
	if !found {
		return false
	}
	r.Banned = slices.Delete(r.Banned, i, i+1)
	return true
}

// LogActivity appends an entry to the activity trail, evicting the oldest
// entry beyond MaxActivityEntries, and updates LastActivityAt.
func (r *SessionRecord) LogActivity(kind ActivityKind, actorID, detail string) {
	now := time.Now()
	r.Activity = append(r.Activity, ActivityEntry{
		ID:      uuid.NewString(),
		At:      now,
		Kind:    kind,
		ActorID: actorID,
		Detail:  detail,
	})
	if len(r.Activity) > MaxActivityEntries {
		r.Activity = r.Activity[len(r.Activity)-MaxActivityEntries:]
	}
	r.LastActivityAt = now
}

// Clone returns a deep copy. The mirror hands out and accepts clones so
// callers can mutate records outside the store's lock.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Banned = slices.Clone(r.Banned)
	out.Activity = slices.Clone(r.Activity)
	return &out
}
