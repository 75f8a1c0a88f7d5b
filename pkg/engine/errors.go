package engine

import "errors"

// Precondition and authorization failures returned synchronously to callers
// for user-facing reporting. Platform and store failures are wrapped
// fmt.Errorf errors instead.
var (
	// ErrRateLimited rejects session creation past the admission window.
	ErrRateLimited = errors.New("session creation rate limited")

	// ErrNotOwner rejects a mutation attempted by a non-owner.
	ErrNotOwner = errors.New("requester is not the session owner")

	// ErrOwnerPresent rejects a claim while the owner is still connected.
	ErrOwnerPresent = errors.New("session owner is present")

	// ErrMemberNotInSession rejects operations targeting a member outside
	// the session's live member set.
	ErrMemberNotInSession = errors.New("member is not in the session")

	// ErrSessionNotFound rejects operations on an unknown session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrCannotBanOwner rejects banning the session owner.
	ErrCannotBanOwner = errors.New("cannot ban the session owner")

	// ErrBanListFull rejects bans past the configured ban list bound.
	ErrBanListFull = errors.New("session ban list is full")

	// ErrSpaceFull rejects creation past the per-space session limit.
	ErrSpaceFull = errors.New("space session limit reached")

	// ErrOwnerSessionLimit rejects creation past the per-owner limit.
	ErrOwnerSessionLimit = errors.New("owner session limit reached")
)
