package store

import "context"

// Backend defines durable storage for session records and space
// configuration. Conflict resolution is last write wins. Reads return
// nil, nil for not-found.
type Backend interface {
	// GetSession retrieves a session record.
	GetSession(ctx context.Context, spaceID, sessionID string) (*SessionRecord, error)

	// PutSession inserts or replaces a session record.
	PutSession(ctx context.Context, rec *SessionRecord) error

	// DeleteSession removes a session record. Deleting a missing record is
	// not an error.
	DeleteSession(ctx context.Context, spaceID, sessionID string) error

	// ListSessions returns all session records.
	ListSessions(ctx context.Context) ([]*SessionRecord, error)

	// ListSpaceSessions returns all session records for one space.
	ListSpaceSessions(ctx context.Context, spaceID string) ([]*SessionRecord, error)

	// GetSpaceConfig retrieves a space configuration.
	GetSpaceConfig(ctx context.Context, spaceID string) (*SpaceConfig, error)

	// PutSpaceConfig inserts or replaces a space configuration.
	PutSpaceConfig(ctx context.Context, cfg *SpaceConfig) error

	// ListSpaceConfigs returns all space configurations.
	ListSpaceConfigs(ctx context.Context) ([]*SpaceConfig, error)

	// Close releases resources.
	Close() error
}
