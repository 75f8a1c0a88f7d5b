package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(spaceID, sessionID, ownerID string) *SessionRecord {
	now := time.Now()
	return &SessionRecord{
		SessionID:      sessionID,
		SpaceID:        spaceID,
		OwnerID:        ownerID,
		Visible:        true,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

func TestSessionRecord_BanHelpers(t *testing.T) {
	rec := newTestRecord("space-1", "sess-1", "owner")

	assert.False(t, rec.IsBanned("alice"))
	assert.True(t, rec.AddBan("alice"))
	assert.True(t, rec.IsBanned("alice"))
	assert.False(t, rec.AddBan("alice"), "re-adding should report already banned")

	assert.True(t, rec.AddBan("bob"))
	assert.True(t, rec.AddBan("carol"))
	assert.Equal(t, []string{"alice", "bob", "carol"}, rec.Banned, "ban list stays sorted")

	assert.True(t, rec.RemoveBan("bob"))
	assert.False(t, rec.RemoveBan("bob"))
	assert.Equal(t, []string{"alice", "carol"}, rec.Banned)
}

func TestSessionRecord_ActivityCap(t *testing.T) {
	rec := newTestRecord("space-1", "sess-1", "owner")

	for i := 0; i < MaxActivityEntries+20; i++ {
		rec.LogActivity(ActivityJoined, "member", "")
	}

	assert.Len(t, rec.Activity, MaxActivityEntries)
}

func TestSessionRecord_ActivityEvictsOldestFirst(t *testing.T) {
	rec := newTestRecord("space-1", "sess-1", "owner")

	rec.LogActivity(ActivityCreated, "owner", "")
	firstID := rec.Activity[0].ID
	for i := 0; i < MaxActivityEntries; i++ {
		rec.LogActivity(ActivityJoined, "member", "")
	}

	for _, entry := range rec.Activity {
		assert.NotEqual(t, firstID, entry.ID, "oldest entry should have been evicted")
	}
}

func TestSessionRecord_LogActivityTouchesLastActivity(t *testing.T) {
	rec := newTestRecord("space-1", "sess-1", "owner")
	before := rec.LastActivityAt

	time.Sleep(5 * time.Millisecond)
	rec.LogActivity(ActivityJoined, "member", "")

	assert.True(t, rec.LastActivityAt.After(before))
}

func TestSessionRecord_Clone(t *testing.T) {
	rec := newTestRecord("space-1", "sess-1", "owner")
	rec.AddBan("alice")
	rec.LogActivity(ActivityCreated, "owner", "")

	clone := rec.Clone()
	require.NotSame(t, rec, clone)

	clone.AddBan("bob")
	clone.LogActivity(ActivityJoined, "bob", "")

	assert.False(t, rec.IsBanned("bob"), "mutating the clone must not touch the original")
	assert.Len(t, rec.Activity, 1)
}

func TestSpaceConfig_IsTrigger(t *testing.T) {
	cfg := &SpaceConfig{SpaceID: "space-1", TriggerChannels: []string{"chan-a", "chan-b"}}

	assert.True(t, cfg.IsTrigger("chan-a"))
	assert.False(t, cfg.IsTrigger("chan-c"))
}

func TestNewSpaceConfig_Defaults(t *testing.T) {
	cfg := NewSpaceConfig("space-1", ConfigDefaults{})

	assert.Equal(t, "space-1", cfg.SpaceID)
	assert.Equal(t, DefaultCleanupInterval, cfg.CleanupInterval)
	assert.Equal(t, DefaultMaxBannedMembers, cfg.MaxBannedMembers)
	assert.Equal(t, DefaultMaxSessionLifetime, cfg.MaxSessionLifetime)
}

func TestNewSpaceConfig_SeededDefaults(t *testing.T) {
	cfg := NewSpaceConfig("space-1", ConfigDefaults{
		DefaultMaxMembers:  7,
		CleanupInterval:    5 * time.Second,
		CreateCompanion:    true,
		MaxSessionLifetime: time.Hour,
	})

	assert.Equal(t, 7, cfg.DefaultMaxMembers)
	assert.Equal(t, 5*time.Second, cfg.CleanupInterval)
	assert.True(t, cfg.CreateCompanion)
	assert.Equal(t, time.Hour, cfg.MaxSessionLifetime)
}
