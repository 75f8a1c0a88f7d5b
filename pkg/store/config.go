package store

import (
	"slices"
	"time"
)

// Defaults applied when a space has no stored configuration.
const (
	DefaultCleanupInterval    = time.Minute
	DefaultMaxBannedMembers   = 50
	DefaultMaxSessionLifetime = 12 * time.Hour
)

// SpaceConfig holds per-space session behavior. It is created lazily with
// defaults on first access and persists until explicitly reset.
type SpaceConfig struct {
	SpaceID string

	// TriggerChannels lists channels whose join events spawn a session.
	TriggerChannels []string

	// DefaultMaxMembers is the user limit applied to new sessions. 0 means
	// unbounded.
	DefaultMaxMembers int

	// CleanupInterval is the periodic sweep cadence for this space.
	CleanupInterval time.Duration

	// CreateCompanion controls whether a paired text channel is created.
	CreateCompanion bool

	// AutoDeleteCompanion controls whether the paired text channel is
	// deleted with the session.
	AutoDeleteCompanion bool

	// MaxBannedMembers bounds a session's ban list.
	MaxBannedMembers int

	// MaxSessionLifetime is the hard cap on session age regardless of
	// occupancy. 0 disables the cap.
	MaxSessionLifetime time.Duration
}

// IsTrigger reports whether channelID is a configured trigger channel.
func (c *SpaceConfig) IsTrigger(channelID string) bool {
	return slices.Contains(c.TriggerChannels, channelID)
}

// Clone returns a deep copy.
func (c *SpaceConfig) Clone() *SpaceConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.TriggerChannels = slices.Clone(c.TriggerChannels)
	return &out
}

// ConfigDefaults seeds lazily-created space configurations.
type ConfigDefaults struct {
	DefaultMaxMembers   int
	CleanupInterval     time.Duration
	CreateCompanion     bool
	AutoDeleteCompanion bool
	MaxBannedMembers    int
	MaxSessionLifetime  time.Duration
}

// NewSpaceConfig builds a configuration for spaceID from the given defaults,
// filling zero-valued fields with package defaults.
func NewSpaceConfig(spaceID string, d ConfigDefaults) *SpaceConfig {
	cfg := &SpaceConfig{
		SpaceID:             spaceID,
		DefaultMaxMembers:   d.DefaultMaxMembers,
		CleanupInterval:     d.CleanupInterval,
		CreateCompanion:     d.CreateCompanion,
		AutoDeleteCompanion: d.AutoDeleteCompanion,
		MaxBannedMembers:    d.MaxBannedMembers,
		MaxSessionLifetime:  d.MaxSessionLifetime,
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.MaxBannedMembers <= 0 {
		cfg.MaxBannedMembers = DefaultMaxBannedMembers
	}
	if cfg.MaxSessionLifetime <= 0 {
		cfg.MaxSessionLifetime = DefaultMaxSessionLifetime
	}
	return cfg
}
