// Package health provides the HTTP health, readiness, and liveness
// handlers.
//
// Three endpoints are exposed:
//
//   - /api/health/ reports aggregated component health; degraded components
//     still answer 200, unhealthy ones 503.
//   - /api/ready/ is the readiness gate for load balancers; 503 until the
//     service can take translation traffic.
//   - /api/live/ is the liveness probe; 503 only when the process should be
//     restarted.
//
// Responses are JSON objects with a top-level "status" field and a "checks"
// map containing the result of each named checker.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout is the maximum time a single check may take before its
// context is cancelled.
const checkTimeout = 5 * time.Second

// Status is the outcome of one check or of the aggregate.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// worse reports whether a is a worse state than b.
func worse(a, b Status) bool {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	return rank[a] > rank[b]
}

// Result is the outcome of one checker run.
type Result struct {
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Checker is a named health check. Check must respect context cancellation.
type Checker struct {
	// Name is a short label for the component (e.g. "translation_model").
	// It appears as a key in the JSON response.
	Name string

	// Check probes the component.
	Check func(ctx context.Context) Result
}

// response is the JSON body for health endpoints.
type response struct {
	Status Status            `json:"status"`
	Checks map[string]Result `json:"checks,omitempty"`
}

// Handler serves the health endpoints. It is safe for concurrent use; the
// checker lists are fixed at construction time.
type Handler struct {
	checkers []Checker
	ready    []Checker
	live     []Checker
}

// New creates a Handler that evaluates checkers on each /api/health/
// request, sequentially in the order given. Readiness and liveness default
// to the same list until overridden.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c, ready: c, live: c}
}

// WithReadiness sets the checkers evaluated by /api/ready/.
func (h *Handler) WithReadiness(checkers ...Checker) *Handler {
	h.ready = append([]Checker(nil), checkers...)
	return h
}

// WithLiveness sets the checkers evaluated by /api/live/.
func (h *Handler) WithLiveness(checkers ...Checker) *Handler {
	h.live = append([]Checker(nil), checkers...)
	return h
}

// run evaluates a checker list and returns the aggregate with per-check
// results.
func run(ctx context.Context, checkers []Checker) (Status, map[string]Result) {
	agg := StatusHealthy
	checks := make(map[string]Result, len(checkers))
	for _, c := range checkers {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		res := c.Check(checkCtx)
		cancel()
		checks[c.Name] = res
		if worse(res.Status, agg) {
			agg = res.Status
		}
	}
	return agg, checks
}

// Health reports aggregated component health. Degraded still answers 200 so
// operators see the detail without traffic being drained.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	agg, checks := run(r.Context(), h.checkers)
	status := http.StatusOK
	if agg == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response{Status: agg, Checks: checks})
}

// Ready answers 200 only when every readiness checker passes. Degraded
// counts as not ready here: a draining or saturated instance should stop
// receiving new traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	agg, checks := run(r.Context(), h.ready)
	if agg != StatusHealthy {
		writeJSON(w, http.StatusServiceUnavailable, response{Status: StatusUnhealthy, Checks: checks})
		return
	}
	writeJSON(w, http.StatusOK, response{Status: StatusHealthy, Checks: checks})
}

// Live answers 503 only on unhealthy: restarting a merely degraded process
// makes things worse.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	agg, checks := run(r.Context(), h.live)
	status := http.StatusOK
	if agg == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response{Status: agg, Checks: checks})
}

// Register adds the health routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health/", h.Health)
	mux.HandleFunc("GET /api/ready/", h.Ready)
	mux.HandleFunc("GET /api/live/", h.Live)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
