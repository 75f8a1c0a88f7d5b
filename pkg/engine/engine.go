// Package engine implements the session lifecycle state machine: creation
// from trigger-channel joins, ownership transfer and claim, permission
// toggles, moderation, and deletion. All mutations to one session are
// serialized under a per-(space, session) lock; unrelated sessions proceed
// concurrently.
package engine

import (
	"log/slog"
	"time"

	"github.com/foyer-project/foyer/pkg/platform"
	"github.com/foyer-project/foyer/pkg/ratelimit"
	"github.com/foyer-project/foyer/pkg/store"
)

// Limits bounds session creation globally.
type Limits struct {
	// MaxSessionsPerSpace caps live sessions per space. 0 disables.
	MaxSessionsPerSpace int

	// MaxSessionsPerOwner caps live sessions per owner per space. 0 disables.
	MaxSessionsPerOwner int
}

// Options tunes engine behavior. Zero values fall back to defaults.
type Options struct {
	Limits Limits

	// EditDelay is the pause between sequential per-subject permission
	// edits, respecting platform throughput limits.
	EditDelay time.Duration

	// EmptyGrace is the delay between a session becoming empty and the
	// delayed re-check that may delete it.
	EmptyGrace time.Duration
}

const (
	defaultEditDelay  = 250 * time.Millisecond
	defaultEmptyGrace = 10 * time.Second
)

func (o Options) withDefaults() Options {
	if o.EditDelay <= 0 {
		o.EditDelay = defaultEditDelay
	}
	if o.EmptyGrace <= 0 {
		o.EmptyGrace = defaultEmptyGrace
	}
	return o
}

// Engine is the session lifecycle state machine. Construct with New; all
// dependencies are explicit.
type Engine struct {
	store   *store.Store
	limiter *ratelimit.Limiter
	facade  platform.Facade
	opts    Options
	locks   *lockTable
	logger  *slog.Logger
}

// New creates an Engine over its collaborators.
func New(st *store.Store, limiter *ratelimit.Limiter, facade platform.Facade, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   st,
		limiter: limiter,
		facade:  facade,
		opts:    opts.withDefaults(),
		locks:   newLockTable(),
		logger:  logger,
	}
}

// Store exposes the engine's session store for read-only inspection by the
// command surface and sweeper.
func (e *Engine) Store() *store.Store { return e.store }
