// Package app assembles the server process: configuration, process logging,
// the event router, the hub and its loop, and the HTTP listener.
package app

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/Jamesmykil253/MoBa-sub001/internal/config"
	"github.com/Jamesmykil253/MoBa-sub001/internal/hub"
	"github.com/Jamesmykil253/MoBa-sub001/internal/net/httpapi"
	"github.com/Jamesmykil253/MoBa-sub001/internal/net/ws"
	"github.com/Jamesmykil253/MoBa-sub001/internal/observability"
	"github.com/Jamesmykil253/MoBa-sub001/internal/telemetry"
	"github.com/Jamesmykil253/MoBa-sub001/logging"
	loggingSinks "github.com/Jamesmykil253/MoBa-sub001/logging/sinks"
)

// Options selects the configuration source for one server process.
type Options struct {
	// ConfigPath points at a YAML configuration file. Empty runs on the
	// built-in defaults plus ARENA_ environment overrides.
	ConfigPath string
}

// Run boots the server and blocks until ctx is cancelled or the listener
// fails. Cancellation drains the HTTP server within the configured shutdown
// timeout.
func Run(ctx context.Context, opts Options) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	zlog, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer zlog.Sync()

	logger := telemetry.WrapLogger(zap.NewStdLog(zlog))

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			return fmt.Errorf("initializing sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	named, cleanup, err := buildSinks(cfg.Events, zlog, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	routerCfg := logging.DefaultConfig()
	routerCfg.EnabledSinks = cfg.Events.Sinks
	routerCfg.BufferSize = cfg.Events.BufferSize
	routerCfg.MinimumSeverity = parseSeverity(cfg.Events.MinSeverity)
	routerCfg.JSONL.FilePath = cfg.Events.JSONLPath

	router, err := logging.NewRouter(nil, routerCfg, named)
	if err != nil {
		return fmt.Errorf("constructing event router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("failed to close event router: %v", cerr)
		}
	}()

	counters := telemetry.NewCounters()
	h := hub.New(cfg, hub.Deps{
		Publisher: router,
		Logger:    logger,
		Metrics:   counters,
	})

	stop := make(chan struct{})
	go func() {
		defer sentry.Recover()
		h.Run(stop)
	}()
	defer close(stop)

	wsHandler := ws.NewHandler(h, ws.HandlerConfig{Logger: logger})
	handler := httpapi.New(h, httpapi.HandlerConfig{
		Base:   cfg,
		Logger: logger,
		WS:     nethttp.HandlerFunc(wsHandler.Handle),
		Reload: func() (config.Config, error) {
			return loadConfig(opts.ConfigPath)
		},
	})

	srv := &nethttp.Server{Addr: cfg.Server.Addr(), Handler: handler}
	errC := make(chan error, 1)
	go func() {
		errC <- srv.ListenAndServe()
	}()
	logger.Printf("server listening on %s (tick rate %d)", srv.Addr, cfg.Simulation.TickRate)

	select {
	case err := <-errC:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// buildSinks materializes the configured event sinks. The returned cleanup
// releases file handles and must run after the router has closed.
func buildSinks(cfg config.EventsConfig, zlog *zap.Logger, logger telemetry.Logger) ([]logging.NamedSink, func(), error) {
	var named []logging.NamedSink
	cleanup := func() {}

	flushInterval := logging.DefaultConfig().JSONL.FlushInterval
	for _, name := range cfg.Sinks {
		switch name {
		case "console":
			named = append(named, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsoleSink(zlog)})
		case "jsonl":
			if cfg.JSONLPath == "" {
				return nil, nil, errors.New("events.jsonl_path is required when the jsonl sink is enabled")
			}
			file, err := os.OpenFile(cfg.JSONLPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, nil, fmt.Errorf("opening events file: %w", err)
			}
			named = append(named, logging.NamedSink{Name: "jsonl", Sink: loggingSinks.NewJSONL(file, flushInterval)})
			prev := cleanup
			cleanup = func() {
				prev()
				file.Close()
			}
		case "memory":
			named = append(named, logging.NamedSink{Name: "memory", Sink: loggingSinks.NewMemorySink()})
		default:
			logger.Printf("ignoring unknown event sink %q", name)
		}
	}
	return named, cleanup, nil
}

func parseSeverity(name string) logging.Severity {
	switch strings.ToLower(name) {
	case "debug":
		return logging.SeverityDebug
	case "warn", "warning":
		return logging.SeverityWarn
	case "error":
		return logging.SeverityError
	default:
		return logging.SeverityInfo
	}
}
