package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foyer-project/foyer/pkg/platform"
	"github.com/foyer-project/foyer/pkg/ratelimit"
	"github.com/foyer-project/foyer/pkg/store"
)

const (
	testSpace   = "space-1"
	testTrigger = "lobby-1"
	testOwner   = "owner-1"
	testMember  = "member-1"
)

type permChange struct {
	channelID string
	subjectID string
	update    platform.PermissionUpdate
}

// fakeFacade is an in-memory platform double that records every call.
type fakeFacade struct {
	mu sync.Mutex

	members  map[string][]string
	parents  map[string]string
	subjects map[string][]string
	gone     map[string]bool

	voiceErr      error
	textErr       error
	membersErr    error
	disconnectErr error
	editErrFor    map[string]error
	deleteErrFor  map[string]error

	nextID       int
	deleted      []string
	disconnected []string
	moved        []string
	edits        []permChange
	removed      []permChange
}

func newFakeFacade() *fakeFacade {
	return &fakeFacade{
		members:    make(map[string][]string),
		parents:    make(map[string]string),
		subjects:   make(map[string][]string),
		gone:         make(map[string]bool),
		editErrFor:   make(map[string]error),
		deleteErrFor: make(map[string]error),
	}
}

func (f *fakeFacade) CreateVoiceChannel(_ context.Context, _ string, spec platform.VoiceChannelSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.voiceErr != nil {
		return "", f.voiceErr
	}
	f.nextID++
	id := fmt.Sprintf("voice-%d", f.nextID)
	f.subjects[id] = []string{spec.OwnerID}
	return id, nil
}

func (f *fakeFacade) CreateTextChannel(_ context.Context, _ string, spec platform.TextChannelSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.textErr != nil {
		return "", f.textErr
	}
	f.nextID++
	id := fmt.Sprintf("text-%d", f.nextID)
	f.subjects[id] = []string{spec.OwnerID}
	return id, nil
}

func (f *fakeFacade) DeleteChannel(_ context.Context, _, channelID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErrFor[channelID]; err != nil {
		return err
	}
	if f.gone[channelID] {
		return platform.ErrNotFound
	}
	f.gone[channelID] = true
	f.deleted = append(f.deleted, channelID)
	return nil
}

func (f *fakeFacade) EditPermission(_ context.Context, channelID, subjectID string, update platform.PermissionUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editErrFor[subjectID]; err != nil {
		return err
	}
	f.edits = append(f.edits, permChange{channelID: channelID, subjectID: subjectID, update: update})
	return nil
}

func (f *fakeFacade) RemovePermission(_ context.Context, channelID, subjectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, permChange{channelID: channelID, subjectID: subjectID})
	return nil
}

func (f *fakeFacade) DisconnectMember(_ context.Context, _, memberID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disconnectErr != nil {
		return f.disconnectErr
	}
	f.disconnected = append(f.disconnected, memberID)
	return nil
}

func (f *fakeFacade) MoveMember(_ context.Context, _, memberID, toChannelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moved = append(f.moved, memberID+"->"+toChannelID)
	return nil
}

func (f *fakeFacade) ChannelMembers(_ context.Context, _, channelID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	if f.gone[channelID] {
		return nil, platform.ErrNotFound
	}
	return slices.Clone(f.members[channelID]), nil
}

func (f *fakeFacade) ChannelParent(_ context.Context, _, channelID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parents[channelID], nil
}

func (f *fakeFacade) PermissionSubjects(_ context.Context, channelID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.subjects[channelID]), nil
}

func (f *fakeFacade) ChannelExists(_ context.Context, _, channelID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.gone[channelID], nil
}

func (f *fakeFacade) setMembers(channelID string, memberIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[channelID] = memberIDs
}

func (f *fakeFacade) deletedChannels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.deleted)
}

func (f *fakeFacade) disconnectedMembers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.disconnected)
}

func (f *fakeFacade) movedMembers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.moved)
}

func (f *fakeFacade) permissionEdits() []permChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.edits)
}

func (f *fakeFacade) removedPermissions() []permChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.removed)
}

var _ platform.Facade = (*fakeFacade)(nil)

// fixture wires an Engine over a memory-only store and the fake facade.
type fixture struct {
	engine *Engine
	store  *store.Store
	facade *fakeFacade
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	facade := newFakeFacade()
	st := store.New(nil, store.ConfigDefaults{DefaultMaxMembers: 5}, testLogger())

	cfg := store.NewSpaceConfig(testSpace, store.ConfigDefaults{DefaultMaxMembers: 5})
	cfg.TriggerChannels = []string{testTrigger}
	cfg.CreateCompanion = true
	cfg.AutoDeleteCompanion = true
	require.NoError(t, st.PutConfig(context.Background(), cfg))

	if opts.EditDelay == 0 {
		opts.EditDelay = time.Millisecond
	}
	limiter := ratelimit.New(time.Minute, 100)
	return &fixture{
		engine: New(st, limiter, facade, opts, testLogger()),
		store:  st,
		facade: facade,
	}
}

// createSession runs the full creation path and returns the stored record.
func (fx *fixture) createSession(t *testing.T, ownerID string) *store.SessionRecord {
	t.Helper()

	rec, err := fx.engine.CreateSession(context.Background(), testSpace, ownerID, "Owner", testTrigger)
	require.NoError(t, err)
	require.NotNil(t, rec)
	fx.facade.setMembers(rec.SessionID, ownerID)
	return rec
}
