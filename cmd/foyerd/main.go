// Package main provides the entry point for the foyerd session daemon.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq" // postgres driver

	"github.com/foyer-project/foyer/internal/server"
	"github.com/foyer-project/foyer/pkg/database/migrate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type daemonOptions struct {
	configPath  string
	runMigrate  bool
	showVersion bool
}

func parseFlags() daemonOptions {
	opts := daemonOptions{}
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&opts.runMigrate, "migrate", false, "Run pending database migrations and exit")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.Parse()
	return opts
}

func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}

func run() error {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	opts := parseFlags()

	if opts.showVersion {
		fmt.Printf("foyerd version %s\n", server.Version)
		return nil
	}

	cfg := server.DefaultConfig()
	if opts.configPath != "" {
		var err error
		cfg, err = server.LoadConfig(opts.configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}
	if dsn := os.Getenv("FOYER_DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if token := os.Getenv("FOYER_GATEWAY_TOKEN"); token != "" {
		cfg.Gateway.Token = token
	}

	if opts.runMigrate {
		return runMigrations(cfg)
	}

	srv, err := server.New(cfg, nil, nil)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(setupSignalHandler())
}

func runMigrations(cfg *server.Config) error {
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for -migrate")
	}
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	return migrate.Run(db)
}
