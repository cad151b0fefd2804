// Package app wires all gateway subsystems into a running application.
//
// New creates and connects every subsystem from the configuration: the
// language registry, prompt builder, admission queue, statistics window,
// metrics, system monitor, model manager, translation service, shutdown
// coordinator, and the HTTP server.
//
// For testing, inject doubles via functional options (WithFactory,
// WithInitialProvider, WithMeterProvider). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/lexigate/lexigate/internal/catalog"
	"github.com/lexigate/lexigate/internal/config"
	"github.com/lexigate/lexigate/internal/health"
	"github.com/lexigate/lexigate/internal/language"
	"github.com/lexigate/lexigate/internal/monitor"
	"github.com/lexigate/lexigate/internal/observe"
	"github.com/lexigate/lexigate/internal/prompt"
	"github.com/lexigate/lexigate/internal/queue"
	"github.com/lexigate/lexigate/internal/server"
	"github.com/lexigate/lexigate/internal/shutdown"
	"github.com/lexigate/lexigate/internal/stats"
	"github.com/lexigate/lexigate/internal/translate"
	"github.com/lexigate/lexigate/pkg/provider/inference"
	"github.com/lexigate/lexigate/pkg/provider/inference/huggingface"
	"github.com/lexigate/lexigate/pkg/provider/inference/local"
	"github.com/lexigate/lexigate/pkg/provider/inference/openai"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config

	registry *language.Registry
	queue    *queue.Queue
	window   *stats.Window
	metrics  *observe.Metrics
	monitor  *monitor.Monitor
	manager  *catalog.Manager
	svc      *translate.Service
	coord    *shutdown.Coordinator
	server   *server.Server

	// Injected by options; nil means "build from config".
	factory catalog.Factory
	initial inference.Provider
	initID  string
	meter   metric.MeterProvider
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithFactory injects a provider factory instead of building one from the
// configured backend type.
func WithFactory(f catalog.Factory) Option {
	return func(a *App) { a.factory = f }
}

// WithInitialProvider installs p as the startup provider under id instead of
// constructing one through the factory.
func WithInitialProvider(p inference.Provider, id string) Option {
	return func(a *App) {
		a.initial = p
		a.initID = id
	}
}

// WithMeterProvider injects a meter provider instead of using the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(a *App) { a.meter = mp }
}

// New creates an App by wiring all subsystems together. Initialisation is
// synchronous but never loads a model; the first request (or the admin load
// endpoint) triggers the load.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	a.registry = language.New(registryLanguages(cfg.Languages.Languages))
	builder := prompt.NewBuilder(a.registry, cfg.Model.Prompts)
	a.queue = queue.New(cfg.App.Queue.MaxConcurrent, cfg.App.Queue.MaxQueueSize)
	a.window = stats.New()
	a.monitor = monitor.New("")

	if a.meter == nil {
		a.meter = otel.GetMeterProvider()
	}
	metrics, err := observe.NewMetrics(a.meter)
	if err != nil {
		return nil, fmt.Errorf("app: init metrics: %w", err)
	}
	if err := metrics.ObserveQueue(a.queue.Counts); err != nil {
		return nil, fmt.Errorf("app: init metrics: %w", err)
	}
	a.metrics = metrics

	if a.factory == nil {
		a.factory = providerFactory(cfg)
	}
	a.manager = catalog.NewManager(cfg.Model, a.factory, a.queue.Pending)
	if err := a.initProvider(); err != nil {
		return nil, fmt.Errorf("app: init provider: %w", err)
	}

	a.svc = translate.NewService(cfg, a.registry, builder, a.queue, a.manager, a.window, a.metrics)

	a.coord = shutdown.New(time.Duration(cfg.App.Shutdown.TimeoutSeconds)*time.Second, a.queue.Pending)
	a.coord.OnStopped(func(ctx context.Context) {
		a.queue.Clear()
		if err := a.manager.Unload(ctx); err != nil {
			slog.Warn("unloading model during shutdown failed", "error", err)
		}
	})

	a.server = server.New(server.Deps{
		Config:   cfg,
		Service:  a.svc,
		Registry: a.registry,
		Manager:  a.manager,
		Queue:    a.queue,
		Window:   a.window,
		Monitor:  a.monitor,
		Shutdown: a.coord,
		Metrics:  a.metrics,
		Health:   a.healthHandler(),
	})

	return a, nil
}

// initProvider installs the startup provider without loading it.
func (a *App) initProvider() error {
	if a.initial != nil {
		a.manager.SetInitial(a.initial, a.initID)
		return nil
	}
	name := a.cfg.Model.Provider.Name
	if name == "" {
		slog.Warn("no startup model configured; waiting for a switch or lazy load")
		return nil
	}
	p, err := a.factory(name)
	if err != nil {
		return fmt.Errorf("constructing provider for %q: %w", name, err)
	}
	a.manager.SetInitial(p, name)
	return nil
}

// healthHandler assembles the readiness and liveness checker sets.
func (a *App) healthHandler() *health.Handler {
	loaded := func() bool {
		p, _ := a.manager.Active()
		return p != nil && p.Loaded()
	}
	h := health.New(
		health.APIChecker(),
		health.ModelChecker(loaded, a.manager.Switching),
		health.QueueChecker(a.queue.Counts, a.cfg.App.Queue.MaxConcurrent, a.cfg.App.Queue.MaxQueueSize),
		health.MemoryChecker(a.monitor.MemoryPercent),
		health.ShutdownChecker(a.coordStopping),
	)
	return h.WithLiveness(
		health.APIChecker(),
		health.MemoryLivenessChecker(a.monitor.MemoryPercent),
	)
}

// coordStopping defers the coordinator lookup so the health handler can be
// built before the coordinator exists.
func (a *App) coordStopping() bool {
	return a.coord != nil && a.coord.Stopping()
}

// Handler returns the fully routed HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Manager exposes the model manager for startup loading.
func (a *App) Manager() *catalog.Manager { return a.manager }

// Shutdown drains in-flight requests and releases the model. Safe to call
// more than once.
func (a *App) Shutdown(ctx context.Context) { a.coord.Shutdown(ctx) }

// providerFactory builds the catalog factory for the configured backend.
func providerFactory(cfg *config.Config) catalog.Factory {
	pc := cfg.Model.Provider
	timeout := time.Duration(pc.TimeoutSeconds) * time.Second

	switch pc.Type {
	case config.ProviderOpenAI:
		return func(modelID string) (inference.Provider, error) {
			var opts []openai.Option
			if pc.BaseURL != "" {
				opts = append(opts, openai.WithBaseURL(pc.BaseURL))
			}
			if timeout > 0 {
				opts = append(opts, openai.WithTimeout(timeout))
			}
			if pc.MaxRetries > 0 {
				opts = append(opts, openai.WithMaxRetries(pc.MaxRetries))
			}
			return openai.New(pc.APIKey, modelID, opts...)
		}

	case config.ProviderHuggingFace:
		return func(modelID string) (inference.Provider, error) {
			var opts []huggingface.Option
			if pc.BaseURL != "" {
				opts = append(opts, huggingface.WithBaseURL(pc.BaseURL))
			}
			if timeout > 0 {
				opts = append(opts, huggingface.WithTimeout(timeout))
			}
			if pc.MaxRetries > 0 {
				opts = append(opts, huggingface.WithMaxRetries(pc.MaxRetries))
			}
			return huggingface.New(pc.APIKey, modelID, opts...)
		}

	default:
		return func(modelID string) (inference.Provider, error) {
			var opts []local.Option
			if pc.BaseURL != "" {
				opts = append(opts, local.WithBaseURL(pc.BaseURL))
			}
			if timeout > 0 {
				opts = append(opts, local.WithTimeout(timeout))
			}
			if pc.ForceCPU {
				opts = append(opts, local.WithForceCPU(true))
			}
			return local.New(modelID, filepath.Join(cfg.Model.ModelsDir, modelID), opts...)
		}
	}
}

// registryLanguages converts config entries into registry rows.
func registryLanguages(entries []config.LanguageEntry) []language.Language {
	langs := make([]language.Language, 0, len(entries))
	for _, e := range entries {
		langs = append(langs, language.Language{
			Code:      e.Code,
			Name:      e.Name,
			NameEN:    e.NameEN,
			Enabled:   e.Enabled,
			SortOrder: e.SortOrder,
		})
	}
	return langs
}
