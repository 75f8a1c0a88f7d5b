// Package health provides readiness state tracking and HTTP health check
// handlers.
package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// State constants for the readiness state machine.
const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// Checker tracks the readiness state of the daemon. It is safe for
// concurrent use.
type Checker struct {
	state atomic.Int32

	// degraded reports whether the session store is running memory-only.
	degraded func() bool
}

// NewChecker creates a Checker in the Starting state. degraded may be nil.
func NewChecker(degraded func() bool) *Checker {
	return &Checker{degraded: degraded}
}

// SetReady transitions to the Ready state.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the Draining state.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// IsReady returns true when the state is Ready.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns the current state as a human-readable string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

// healthResponse is the JSON body returned by health endpoints.
type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}

func (c *Checker) storeMode() string {
	if c.degraded == nil {
		return ""
	}
	if c.degraded() {
		return "memory"
	}
	return "durable"
}

// LivenessHandler returns an http.HandlerFunc that always responds 200 OK.
// Use this for K8s livenessProbe (/healthz).
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// ReadinessHandler returns an http.HandlerFunc that responds 200 when ready
// and 503 when starting or draining. A degraded store does not fail
// readiness; it is reported in the payload.
// Use this for K8s readinessProbe (/readyz).
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body := healthResponse{Status: c.State(), Store: c.storeMode()}
		if c.IsReady() {
			writeJSON(w, http.StatusOK, body)
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, body)
	}
}

func writeJSON(w http.ResponseWriter, code int, v healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
