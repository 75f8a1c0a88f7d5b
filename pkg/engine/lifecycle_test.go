package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSessionLifecycle walks a full session from trigger join to eviction:
// creation, a guest joining, the owner departing with auto-transfer, a claim
// after the heir leaves, and final deletion once the channel empties out.
func TestSessionLifecycle(t *testing.T) {
	fx := newFixture(t, Options{EmptyGrace: 20 * time.Millisecond})
	ctx := context.Background()

	// Alice joins the trigger channel and gets a session.
	require.NoError(t, fx.engine.MemberJoined(ctx, testSpace, testTrigger, "alice"))
	recs, err := fx.store.ListBySpace(ctx, testSpace)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	sessionID := recs[0].SessionID
	require.Equal(t, "alice", recs[0].OwnerID)

	// Bob and Carol join.
	fx.facade.setMembers(sessionID, "alice", "bob", "carol")
	require.NoError(t, fx.engine.MemberJoined(ctx, testSpace, sessionID, "bob"))
	require.NoError(t, fx.engine.MemberJoined(ctx, testSpace, sessionID, "carol"))

	// Alice locks the session; Dave bounces off the lock.
	_, err = fx.engine.SetLocked(ctx, testSpace, sessionID, "alice", true)
	require.NoError(t, err)
	require.NoError(t, fx.engine.MemberJoined(ctx, testSpace, sessionID, "dave"))
	assert.Contains(t, fx.facade.disconnectedMembers(), "dave")

	// Alice leaves; Bob, first in join order, inherits.
	fx.facade.setMembers(sessionID, "bob", "carol")
	require.NoError(t, fx.engine.MemberLeft(ctx, testSpace, sessionID, "alice"))
	rec, err := fx.store.Get(ctx, testSpace, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "bob", rec.OwnerID)

	// Bob drops without the leave event arriving; Carol claims.
	fx.facade.setMembers(sessionID, "carol")
	require.NoError(t, fx.engine.Claim(ctx, testSpace, sessionID, "carol"))
	rec, err = fx.store.Get(ctx, testSpace, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "carol", rec.OwnerID)

	// Carol leaves and nobody returns within the grace period.
	fx.facade.setMembers(sessionID)
	require.NoError(t, fx.engine.MemberLeft(ctx, testSpace, sessionID, "carol"))
	require.Eventually(t, func() bool {
		rec, err := fx.store.Get(ctx, testSpace, sessionID)
		return err == nil && rec == nil
	}, time.Second, 5*time.Millisecond)

	assert.Contains(t, fx.facade.deletedChannels(), sessionID)
}
