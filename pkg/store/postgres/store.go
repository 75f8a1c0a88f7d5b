// Package postgres provides PostgreSQL durable storage for session records
// and space configuration.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/foyer-project/foyer/pkg/store"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// sessionColumns lists columns returned by session SELECT queries.
var sessionColumns = []string{
	"space_id", "session_id", "companion_id", "owner_id", "owner_name",
	"max_members", "visible", "locked", "banned",
	"created_at", "last_activity_at", "activity",
}

// configColumns lists columns returned by space config SELECT queries.
var configColumns = []string{
	"space_id", "trigger_channels", "default_max_members", "cleanup_interval_ms",
	"create_companion", "auto_delete_companion", "max_banned_members",
	"max_session_lifetime_ms",
}

// Store implements store.Backend using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL backend over an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetSession retrieves a session record. Returns nil, nil if not found.
func (s *Store) GetSession(ctx context.Context, spaceID, sessionID string) (*store.SessionRecord, error) {
	query, args, err := psq.Select(sessionColumns...).
		From("sessions").
		Where(sq.Eq{"space_id": spaceID}).
		Where(sq.Eq{"session_id": sessionID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session query: %w", err)
	}

	rec, err := scanSession(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // Backend interface specifies nil,nil for not-found
	}
	return rec, err
}

// PutSession inserts or replaces a session record.
func (s *Store) PutSession(ctx context.Context, rec *store.SessionRecord) error {
	banned, err := json.Marshal(rec.Banned)
	if err != nil {
		banned = []byte("[]")
	}
	activity, err := json.Marshal(rec.Activity)
	if err != nil {
		activity = []byte("[]")
	}

	query, args, err := psq.Insert("sessions").
		Columns(sessionColumns...).
		Values(
			rec.SpaceID, rec.SessionID, rec.CompanionID, rec.OwnerID, rec.OwnerName,
			rec.MaxMembers, rec.Visible, rec.Locked, banned,
			rec.CreatedAt, rec.LastActivityAt, activity,
		).
		Suffix(`ON CONFLICT (space_id, session_id) DO UPDATE SET
			companion_id = EXCLUDED.companion_id,
			owner_id = EXCLUDED.owner_id,
			owner_name = EXCLUDED.owner_name,
			max_members = EXCLUDED.max_members,
			visible = EXCLUDED.visible,
			locked = EXCLUDED.locked,
			banned = EXCLUDED.banned,
			last_activity_at = EXCLUDED.last_activity_at,
			activity = EXCLUDED.activity`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building session upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

// DeleteSession removes a session record.
func (s *Store) DeleteSession(ctx context.Context, spaceID, sessionID string) error {
	query, args, err := psq.Delete("sessions").
		Where(sq.Eq{"space_id": spaceID}).
		Where(sq.Eq{"session_id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building session delete: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// ListSessions returns all session records.
func (s *Store) ListSessions(ctx context.Context) ([]*store.SessionRecord, error) {
	return s.querySessions(ctx, psq.Select(sessionColumns...).From("sessions"))
}

// ListSpaceSessions returns all session records for one space.
func (s *Store) ListSpaceSessions(ctx context.Context, spaceID string) ([]*store.SessionRecord, error) {
	return s.querySessions(ctx, psq.Select(sessionColumns...).
		From("sessions").
		Where(sq.Eq{"space_id": spaceID}))
}

func (s *Store) querySessions(ctx context.Context, qb sq.SelectBuilder) ([]*store.SessionRecord, error) {
	query, args, err := qb.OrderBy("created_at").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []*store.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}
	return recs, nil
}

// GetSpaceConfig retrieves a space configuration. Returns nil, nil if not found.
func (s *Store) GetSpaceConfig(ctx context.Context, spaceID string) (*store.SpaceConfig, error) {
	query, args, err := psq.Select(configColumns...).
		From("space_configs").
		Where(sq.Eq{"space_id": spaceID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building config query: %w", err)
	}

	cfg, err := scanConfig(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // Backend interface specifies nil,nil for not-found
	}
	return cfg, err
}

// PutSpaceConfig inserts or replaces a space configuration.
func (s *Store) PutSpaceConfig(ctx context.Context, cfg *store.SpaceConfig) error {
	triggers, err := json.Marshal(cfg.TriggerChannels)
	if err != nil {
		triggers = []byte("[]")
	}

	query, args, err := psq.Insert("space_configs").
		Columns(configColumns...).
		Values(
			cfg.SpaceID, triggers, cfg.DefaultMaxMembers, cfg.CleanupInterval.Milliseconds(),
			cfg.CreateCompanion, cfg.AutoDeleteCompanion, cfg.MaxBannedMembers,
			cfg.MaxSessionLifetime.Milliseconds(),
		).
		Suffix(`ON CONFLICT (space_id) DO UPDATE SET
			trigger_channels = EXCLUDED.trigger_channels,
			default_max_members = EXCLUDED.default_max_members,
			cleanup_interval_ms = EXCLUDED.cleanup_interval_ms,
			create_companion = EXCLUDED.create_companion,
			auto_delete_companion = EXCLUDED.auto_delete_companion,
			max_banned_members = EXCLUDED.max_banned_members,
			max_session_lifetime_ms = EXCLUDED.max_session_lifetime_ms`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building config upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting space config: %w", err)
	}
	return nil
}

// ListSpaceConfigs returns all space configurations.
func (s *Store) ListSpaceConfigs(ctx context.Context) ([]*store.SpaceConfig, error) {
	query, args, err := psq.Select(configColumns...).From("space_configs").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building config list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing space configs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cfgs []*store.SpaceConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		cfgs = append(cfgs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating config rows: %w", err)
	}
	return cfgs, nil
}

// Close is a no-op; the database handle is owned by the caller.
func (*Store) Close() error { return nil }

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*store.SessionRecord, error) {
	var rec store.SessionRecord
	var banned, activity []byte

	err := row.Scan(
		&rec.SpaceID, &rec.SessionID, &rec.CompanionID, &rec.OwnerID, &rec.OwnerName,
		&rec.MaxMembers, &rec.Visible, &rec.Locked, &banned,
		&rec.CreatedAt, &rec.LastActivityAt, &activity,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning session row: %w", err)
	}

	if len(banned) > 0 {
		_ = json.Unmarshal(banned, &rec.Banned)
	}
	if len(activity) > 0 {
		_ = json.Unmarshal(activity, &rec.Activity)
	}
	return &rec, nil
}

func scanConfig(row scanner) (*store.SpaceConfig, error) {
	var cfg store.SpaceConfig
	var triggers []byte
	var cleanupMS, lifetimeMS int64

	err := row.Scan(
		&cfg.SpaceID, &triggers, &cfg.DefaultMaxMembers, &cleanupMS,
		&cfg.CreateCompanion, &cfg.AutoDeleteCompanion, &cfg.MaxBannedMembers,
		&lifetimeMS,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning config row: %w", err)
	}

	cfg.CleanupInterval = time.Duration(cleanupMS) * time.Millisecond
	cfg.MaxSessionLifetime = time.Duration(lifetimeMS) * time.Millisecond
	if len(triggers) > 0 {
		_ = json.Unmarshal(triggers, &cfg.TriggerChannels)
	}
	return &cfg, nil
}

// Verify interface compliance.
var _ store.Backend = (*Store)(nil)
