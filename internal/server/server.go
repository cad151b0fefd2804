// Package server wires the HTTP surface: the public translation API, the
// IP-guarded admin API, health endpoints, and Prometheus metrics.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexigate/lexigate/internal/catalog"
	"github.com/lexigate/lexigate/internal/config"
	"github.com/lexigate/lexigate/internal/health"
	"github.com/lexigate/lexigate/internal/language"
	"github.com/lexigate/lexigate/internal/monitor"
	"github.com/lexigate/lexigate/internal/observe"
	"github.com/lexigate/lexigate/internal/queue"
	"github.com/lexigate/lexigate/internal/shutdown"
	"github.com/lexigate/lexigate/internal/stats"
	"github.com/lexigate/lexigate/internal/translate"
)

// Deps are the collaborators the server routes to. All fields are required
// except Health, which defaults to an empty handler.
type Deps struct {
	Config   *config.Config
	Service  *translate.Service
	Registry *language.Registry
	Manager  *catalog.Manager
	Queue    *queue.Queue
	Window   *stats.Window
	Monitor  *monitor.Monitor
	Shutdown *shutdown.Coordinator
	Metrics  *observe.Metrics
	Health   *health.Handler
}

// Server serves the HTTP API.
type Server struct {
	cfg      *config.Config
	svc      *translate.Service
	registry *language.Registry
	manager  *catalog.Manager
	queue    *queue.Queue
	window   *stats.Window
	monitor  *monitor.Monitor
	coord    *shutdown.Coordinator
	metrics  *observe.Metrics
	health   *health.Handler
	guard    *ipGuard
}

// New creates a Server from its dependencies.
func New(d Deps) *Server {
	h := d.Health
	if h == nil {
		h = health.New()
	}
	return &Server{
		cfg:      d.Config,
		svc:      d.Service,
		registry: d.Registry,
		manager:  d.Manager,
		queue:    d.Queue,
		window:   d.Window,
		monitor:  d.Monitor,
		coord:    d.Shutdown,
		metrics:  d.Metrics,
		health:   h,
		guard:    newIPGuard(d.Config.App.AdminAccess.AllowedIPs),
	}
}

// Handler builds the routed handler with request-ID and metrics middleware
// applied to everything.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/translate/", s.handleTranslate)
	mux.HandleFunc("GET /api/v1/translate/{id}/status/", s.handleTranslateStatus)
	mux.HandleFunc("GET /api/v1/languages/", s.handleLanguages)
	mux.HandleFunc("GET /api/v1/models/", s.handleModels)
	mux.HandleFunc("PUT /api/v1/models/selection/", s.handleModelSelection)
	mux.HandleFunc("POST /api/v1/models/switch/", s.handleModelSwitch)
	mux.HandleFunc("GET /api/v1/status/", s.handleStatus)
	mux.HandleFunc("GET /api/v1/statistics/", s.handleStatistics)
	mux.HandleFunc("GET /api/v1/model/load-progress/", s.handleLoadProgress)

	admin := http.NewServeMux()
	admin.HandleFunc("GET /api/v1/admin/model/load-progress/", s.handleLoadProgress)
	admin.HandleFunc("POST /api/v1/admin/model/load-progress/", s.handleAdminModelLoad)
	admin.HandleFunc("POST /api/v1/admin/model/unload/", s.handleAdminModelUnload)
	admin.HandleFunc("POST /api/v1/admin/model/test/", s.handleAdminModelTest)
	admin.HandleFunc("GET /api/v1/admin/status/", s.handleAdminStatus)
	admin.HandleFunc("GET /api/v1/admin/statistics/", s.handleAdminStatistics)
	mux.Handle("/api/v1/admin/", s.guard.middleware(admin))

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}
