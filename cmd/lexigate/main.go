// Command lexigate is the translation gateway server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lexigate/lexigate/internal/app"
	"github.com/lexigate/lexigate/internal/config"
	"github.com/lexigate/lexigate/internal/observe"
)

// version is stamped by the build via -ldflags.
var version = "dev"

// logMaxSizeMB and logMaxBackups bound the rotated log files.
const (
	logMaxSizeMB  = 50
	logMaxBackups = 30
)

func main() {
	os.Exit(run())
}

func run() int {
	configDir := flag.String("config", "configs", "directory holding app.yaml, model.yaml, and languages.yaml")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lexigate: %v\n", err)
		return 1
	}

	logger, closeLog := newLogger(cfg.App.Log)
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("lexigate starting",
		"version", version,
		"config", *configDir,
		"listen_addr", cfg.App.Server.ListenAddr,
		"provider", cfg.Model.Provider.Type,
		"model", cfg.Model.Provider.Name,
		"max_concurrent", cfg.App.Queue.MaxConcurrent,
		"max_queue_size", cfg.App.Queue.MaxQueueSize,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "lexigate",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// Kick off the model load in the background so the first request does
	// not pay the full load time.
	if _, err := application.Manager().EnsureLoaded(ctx); err != nil {
		slog.Warn("startup model load not started", "err", err)
	}

	srv := &http.Server{
		Addr:              cfg.App.Server.ListenAddr,
		Handler:           application.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server ready", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining")

		// Give the drain its configured budget plus slack for the HTTP
		// server to close idle connections.
		drainCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.App.Shutdown.TimeoutSeconds+5)*time.Second)
		defer cancel()

		application.Shutdown(drainCtx)
		return srv.Shutdown(drainCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// newLogger builds the process logger from config. When a log file is
// configured, output goes to both stderr and a size-rotated file. The
// returned close function flushes the file writer.
func newLogger(cfg config.LogConfig) (*slog.Logger, func()) {
	var lvl slog.Level
	switch cfg.Level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
		}
		w = io.MultiWriter(os.Stderr, rotated)
		closeFn = func() { rotated.Close() }
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if cfg.Format == config.LogFormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closeFn
}
