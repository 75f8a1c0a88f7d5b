package store

import (
	"context"
	"sync"
)

// Memory implements Backend using in-memory maps. It doubles as the mirror
// inside Store and as the sole backend in memory-only deployments.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*SessionRecord
	configs  map[string]*SpaceConfig
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]map[string]*SessionRecord),
		configs:  make(map[string]*SpaceConfig),
	}
}

// GetSession retrieves a session record. Returns nil, nil if not found.
func (m *Memory) GetSession(_ context.Context, spaceID, sessionID string) (*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.sessions[spaceID][sessionID]
	if !ok {
		return nil, nil //nolint:nilnil // Backend interface specifies nil,nil for not-found
	}
	return rec.Clone(), nil
}

// PutSession inserts or replaces a session record.
func (m *Memory) PutSession(_ context.Context, rec *SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	space, ok := m.sessions[rec.SpaceID]
	if !ok {
		space = make(map[string]*SessionRecord)
		m.sessions[rec.SpaceID] = space
	}
	space[rec.SessionID] = rec.Clone()
	return nil
}

// DeleteSession removes a session record.
func (m *Memory) DeleteSession(_ context.Context, spaceID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if space, ok := m.sessions[spaceID]; ok {
		delete(space, sessionID)
		if len(space) == 0 {
			delete(m.sessions, spaceID)
		}
	}
	return nil
}

// ListSessions returns all session records.
func (m *Memory) ListSessions(_ context.Context) ([]*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*SessionRecord
	for _, space := range m.sessions {
		for _, rec := range space {
			result = append(result, rec.Clone())
		}
	}
	return result, nil
}

// ListSpaceSessions returns all session records for one space.
func (m *Memory) ListSpaceSessions(_ context.Context, spaceID string) ([]*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	space := m.sessions[spaceID]
	result := make([]*SessionRecord, 0, len(space))
	for _, rec := range space {
		result = append(result, rec.Clone())
	}
	return result, nil
}

// GetSpaceConfig retrieves a space configuration. Returns nil, nil if not found.
func (m *Memory) GetSpaceConfig(_ context.Context, spaceID string) (*SpaceConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[spaceID]
	if !ok {
		return nil, nil //nolint:nilnil // Backend interface specifies nil,nil for not-found
	}
	return cfg.Clone(), nil
}

// PutSpaceConfig inserts or replaces a space configuration.
func (m *Memory) PutSpaceConfig(_ context.Context, cfg *SpaceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.configs[cfg.SpaceID] = cfg.Clone()
	return nil
}

// ListSpaceConfigs returns all space configurations.
func (m *Memory) ListSpaceConfigs(_ context.Context) ([]*SpaceConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*SpaceConfig, 0, len(m.configs))
	for _, cfg := range m.configs {
		result = append(result, cfg.Clone())
	}
	return result, nil
}

// Spaces returns the ids of all spaces holding at least one session.
func (m *Memory) Spaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, 0, len(m.sessions))
	for spaceID := range m.sessions {
		result = append(result, spaceID)
	}
	return result
}

// Reset drops all state. Used when rehydrating the mirror.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions = make(map[string]map[string]*SessionRecord)
	m.configs = make(map[string]*SpaceConfig)
}

// Close is a no-op.
func (*Memory) Close() error { return nil }

// Verify interface compliance.
var _ Backend = (*Memory)(nil)
