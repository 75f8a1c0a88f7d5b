package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foyer-project/foyer/pkg/store"
)

func TestSetOwner(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()
	rec := fx.createSession(t, testOwner)

	fx.facade.setMembers(rec.SessionID, testOwner, testMember)
	require.NoError(t, fx.engine.SetOwner(ctx, testSpace, rec.SessionID, testOwner, testMember))

	stored, err := fx.store.Get(ctx, testSpace, rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, testMember, stored.OwnerID)
	assert.Equal(t, testMember, stored.OwnerName, "the owner name falls back to the id on transfer")

	last := stored.Activity[len(stored.Activity)-1]
	assert.Equal(t, store.ActivityOwnerChanged, last.Kind)
}

func TestSetOwner_MovesElevatedPermissions(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()
	rec := fx.createSession(t, testOwner)

	fx.facade.setMembers(rec.SessionID, testOwner, testMember)
	require.NoError(t, fx.engine.SetOwner(ctx, testSpace, rec.SessionID, testOwner, testMember))

	var revokedOld, grantedNew bool
	for _, r := range fx.facade.removedPermissions() {
		if r.channelID == rec.SessionID && r.subjectID == testOwner {
			revokedOld = true
		}
	}
	for _, e := range fx.facade.permissionEdits() {
		if e.channelID == rec.SessionID && e.subjectID == testMember {
			grantedNew = true
		}
	}
	assert.True(t, revokedOld, "old owner's entry should be removed")
	assert.True(t, grantedNew, "new owner should receive elevated permissions")
}

func TestSetOwner_RequiresOwner(t *testing.T) {
	fx := newFixture(t, Options{})
	rec := fx.createSession(t, testOwner)

	fx.facade.setMembers(rec.SessionID, testOwner, testMember)
	err := fx.engine.SetOwner(context.Background(), testSpace, rec.SessionID, testMember, testMember)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestSetOwner_TargetMustBeLive(t *testing.T) {
	fx := newFixture(t, Options{})
	rec := fx.createSession(t, testOwner)

	err := fx.engine.SetOwner(context.Background(), testSpace, rec.SessionID, testOwner, "absent-member")
	assert.ErrorIs(t, err, ErrMemberNotInSession)
}

func TestSetOwner_SelfTransferIsNoop(t *testing.T) {
	fx := newFixture(t, Options{})
	rec := fx.createSession(t, testOwner)

	require.NoError(t, fx.engine.SetOwner(context.Background(), testSpace, rec.SessionID, testOwner, testOwner))
	assert.Empty(t, fx.facade.removedPermissions())
}

func TestSetOwner_UnknownSession(t *testing.T) {
	fx := newFixture(t, Options{})
	err := fx.engine.SetOwner(context.Background(), testSpace, "unknown", testOwner, testMember)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestClaim(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()
	rec := fx.createSession(t, testOwner)

	// Owner gone, requester connected.
	fx.facade.setMembers(rec.SessionID, testMember)
	require.NoError(t, fx.engine.Claim(ctx, testSpace, rec.SessionID, testMember))

	stored, err := fx.store.Get(ctx, testSpace, rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, testMember, stored.OwnerID)
}

func TestClaim_OwnerPresent(t *testing.T) {
	fx := newFixture(t, Options{})
	rec := fx.createSession(t, testOwner)

	fx.facade.setMembers(rec.SessionID, testOwner, testMember)
	err := fx.engine.Claim(context.Background(), testSpace, rec.SessionID, testMember)
	assert.ErrorIs(t, err, ErrOwnerPresent)
}

func TestClaim_RequesterMustBeLive(t *testing.T) {
	fx := newFixture(t, Options{})
	rec := fx.createSession(t, testOwner)

	fx.facade.setMembers(rec.SessionID, testMember)
	err := fx.engine.Claim(context.Background(), testSpace, rec.SessionID, "absent-member")
	assert.ErrorIs(t, err, ErrMemberNotInSession)
}
