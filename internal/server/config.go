package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete daemon configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Limits    LimitsConfig    `yaml:"limits"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Sweep     SweepConfig     `yaml:"sweep"`
	Spaces    SpaceDefaults   `yaml:"space_defaults"`
}

// ServerConfig configures the daemon process.
type ServerConfig struct {
	Name string `yaml:"name"`

	// Address serves the health endpoints. Empty disables them.
	Address string `yaml:"address"`
}

// DatabaseConfig configures the durable backend. An empty DSN selects
// memory-only operation.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

// GatewayConfig configures the platform connection.
type GatewayConfig struct {
	// EventURL is the websocket endpoint of the membership event stream.
	EventURL string `yaml:"event_url"`

	// APIBase is the platform REST API base URL.
	APIBase string `yaml:"api_base"`

	Token string `yaml:"token"`
}

// LimitsConfig bounds session creation globally.
type LimitsConfig struct {
	MaxSessionsPerSpace int `yaml:"max_sessions_per_space"`
	MaxSessionsPerOwner int `yaml:"max_sessions_per_owner"`
}

// RateLimitConfig configures creation admission control.
type RateLimitConfig struct {
	Window   time.Duration `yaml:"window"`
	Capacity int           `yaml:"capacity"`
}

// SweepConfig configures eviction.
type SweepConfig struct {
	// Interval is the process-wide sweep tick; per-space cadence comes
	// from each space's configuration.
	Interval time.Duration `yaml:"interval"`

	// Grace is how long a session must stay empty before eviction.
	Grace time.Duration `yaml:"grace"`

	// EditDelay is the pause between sequential permission edits.
	EditDelay time.Duration `yaml:"edit_delay"`
}

// SpaceDefaults seeds configuration for spaces seen for the first time.
type SpaceDefaults struct {
	DefaultMaxMembers   int           `yaml:"default_max_members"`
	CleanupInterval     time.Duration `yaml:"cleanup_interval"`
	CreateCompanion     bool          `yaml:"create_companion"`
	AutoDeleteCompanion bool          `yaml:"auto_delete_companion"`
	MaxBannedMembers    int           `yaml:"max_banned_members"`
	MaxSessionLifetime  time.Duration `yaml:"max_session_lifetime"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "foyerd"
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.RateLimit.Capacity <= 0 {
		c.RateLimit.Capacity = 5
	}
	if c.Sweep.Interval <= 0 {
		c.Sweep.Interval = 30 * time.Second
	}
	if c.Sweep.Grace <= 0 {
		c.Sweep.Grace = 10 * time.Second
	}
	if c.Spaces.CleanupInterval <= 0 {
		c.Spaces.CleanupInterval = time.Minute
	}
	if c.Spaces.MaxBannedMembers <= 0 {
		c.Spaces.MaxBannedMembers = 50
	}
	if c.Spaces.MaxSessionLifetime <= 0 {
		c.Spaces.MaxSessionLifetime = 12 * time.Hour
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Gateway.EventURL != "" && c.Gateway.APIBase == "" {
		return fmt.Errorf("gateway.api_base is required when gateway.event_url is set")
	}
	if c.Limits.MaxSessionsPerSpace < 0 || c.Limits.MaxSessionsPerOwner < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	return nil
}
