// Package server wires the daemon: store, rate limiter, lifecycle engine,
// sweeper, gateway, and health endpoints.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/foyer-project/foyer/pkg/database/migrate"
	"github.com/foyer-project/foyer/pkg/engine"
	"github.com/foyer-project/foyer/pkg/health"
	"github.com/foyer-project/foyer/pkg/platform"
	"github.com/foyer-project/foyer/pkg/platform/gateway"
	"github.com/foyer-project/foyer/pkg/ratelimit"
	"github.com/foyer-project/foyer/pkg/store"
	"github.com/foyer-project/foyer/pkg/store/postgres"
	"github.com/foyer-project/foyer/pkg/sweeper"
)

// Version is set at build time.
var Version = "dev"

const shutdownTimeout = 10 * time.Second

// Server owns the daemon's components.
type Server struct {
	cfg     *Config
	logger  *slog.Logger
	db      *sql.DB
	store   *store.Store
	limiter *ratelimit.Limiter
	engine  *engine.Engine
	sweeper *sweeper.Sweeper
	stream  *gateway.Stream
	checker *health.Checker
	httpSrv *http.Server
}

// New builds a Server from configuration. facade may be nil, in which case
// the gateway REST client is used; tests inject fakes.
func New(cfg *Config, facade platform.Facade, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{cfg: cfg, logger: logger}

	var backend store.Backend
	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if cfg.Database.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		}
		if cfg.Database.AutoMigrate {
			if err := migrate.Run(db); err != nil {
				return nil, fmt.Errorf("migrating database: %w", err)
			}
		}
		s.db = db
		backend = postgres.New(db)
	}

	s.store = store.New(backend, store.ConfigDefaults{
		DefaultMaxMembers:   cfg.Spaces.DefaultMaxMembers,
		CleanupInterval:     cfg.Spaces.CleanupInterval,
		CreateCompanion:     cfg.Spaces.CreateCompanion,
		AutoDeleteCompanion: cfg.Spaces.AutoDeleteCompanion,
		MaxBannedMembers:    cfg.Spaces.MaxBannedMembers,
		MaxSessionLifetime:  cfg.Spaces.MaxSessionLifetime,
	}, logger)

	if facade == nil {
		facade = gateway.NewClient(cfg.Gateway.APIBase, cfg.Gateway.Token)
	}

	s.limiter = ratelimit.New(cfg.RateLimit.Window, cfg.RateLimit.Capacity)
	s.engine = engine.New(s.store, s.limiter, facade, engine.Options{
		Limits: engine.Limits{
			MaxSessionsPerSpace: cfg.Limits.MaxSessionsPerSpace,
			MaxSessionsPerOwner: cfg.Limits.MaxSessionsPerOwner,
		},
		EditDelay:  cfg.Sweep.EditDelay,
		EmptyGrace: cfg.Sweep.Grace,
	}, logger)
	s.sweeper = sweeper.New(s.store, facade, s.engine, cfg.Sweep.Grace, logger)
	s.checker = health.NewChecker(s.store.Degraded)

	if cfg.Gateway.EventURL != "" {
		stream, err := gateway.NewStream(cfg.Gateway.EventURL, cfg.Gateway.Token, s.engine, gateway.Options{}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating event stream: %w", err)
		}
		s.stream = stream
	}

	return s, nil
}

// Engine exposes the lifecycle engine for the command surface.
func (s *Server) Engine() *engine.Engine { return s.engine }

// Run starts all components and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.store.Hydrate(ctx); err != nil {
		// Degraded boot: memory-only until the backend recovers.
		s.logger.Warn("store hydration failed, starting memory-only", "error", err)
	}

	s.limiter.StartPruneRoutine(time.Minute)
	s.sweeper.Start(s.cfg.Sweep.Interval)
	s.startHealthServer()
	s.checker.SetReady()

	s.logger.Info("daemon started", "name", s.cfg.Server.Name, "version", Version,
		"durable", s.cfg.Database.DSN != "", "gateway", s.cfg.Gateway.EventURL != "")

	if s.stream != nil {
		if err := s.stream.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("event stream: %w", err)
		}
	} else {
		<-ctx.Done()
	}

	s.checker.SetDraining()
	return s.shutdown()
}

func (s *Server) startHealthServer() {
	if s.cfg.Server.Address == "" {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.checker.LivenessHandler())
	mux.HandleFunc("/readyz", s.checker.ReadinessHandler())

	s.httpSrv = &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Warn("health server failed", "error", err)
		}
	}()
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.httpSrv != nil {
		_ = s.httpSrv.Shutdown(ctx)
	}
	_ = s.sweeper.Close()
	_ = s.limiter.Close()
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
