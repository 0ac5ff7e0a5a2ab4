// Package server runs the web process lifecycle: signal handling, config
// loading, observability init, the /healthz probe, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/challengehub/web/internal/config"
	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/observability"
)

// serviceVersion is reported as the OTEL service.version resource attribute.
const serviceVersion = "0.1.0"

// SetupDeps is handed to Params.Setup once config and observability are ready.
type SetupDeps struct {
	Config *config.Config
	Logger *slog.Logger

	// Router already serves /healthz. Setup registers everything else on it.
	Router *mux.Router
}

// SetupFunc wires the application onto the router. The returned cleanup runs
// after the HTTP server has drained.
type SetupFunc func(ctx context.Context, deps SetupDeps) (cleanup func(context.Context) error, err error)

// Params configures the lifecycle runner.
type Params struct {
	Name string

	// PortFromConfig extracts the HTTP port from config.
	PortFromConfig func(cfg *config.Config) int

	// Setup is optional. A nil Setup serves only /healthz.
	Setup SetupFunc
}

// Run blocks until ctx is cancelled or SIGTERM/SIGINT arrives, then shuts
// down in reverse startup order. If ln is non-nil it is used instead of
// listening on the configured port, which lets tests bind port 0.
func Run(ctx context.Context, p Params, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: p.Name,
		Environment: cfg.Environment,
	})

	// Startup order: tracer -> metrics -> setup -> HTTP server.
	providerCfg := observability.ProviderConfig{
		ServiceName:    cfg.OTEL.ServiceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
	}
	tracerProvider, err := observability.InitTracer(ctx, providerCfg)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	metricsProvider, err := observability.InitMetrics(ctx, providerCfg)
	if err != nil {
		_ = tracerProvider.Shutdown(context.Background())
		return fmt.Errorf("initialize metrics: %w", err)
	}

	shutdownOTEL := func() {
		otelCtx, cancel := context.WithTimeout(context.Background(), domain.ShutdownOTELTimeout)
		defer cancel()
		if shutdownErr := metricsProvider.Shutdown(otelCtx); shutdownErr != nil {
			logger.Error("failed to shutdown metrics", slog.String("error", shutdownErr.Error()))
		}
		if shutdownErr := tracerProvider.Shutdown(otelCtx); shutdownErr != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", shutdownErr.Error()))
		}
	}

	var shuttingDown atomic.Bool

	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if shuttingDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"shutting_down","service":%q}`, p.Name)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":%q}`, p.Name)
	}).Methods(http.MethodGet)

	cleanup := func(context.Context) error { return nil }
	if p.Setup != nil {
		c, setupErr := p.Setup(ctx, SetupDeps{Config: cfg, Logger: logger, Router: router})
		if setupErr != nil {
			shutdownOTEL()
			return fmt.Errorf("setup %s: %w", p.Name, setupErr)
		}
		if c != nil {
			cleanup = c
		}
	}

	if ln == nil {
		ln, err = (&net.ListenConfig{}).Listen(ctx, "tcp", fmt.Sprintf(":%d", p.PortFromConfig(cfg)))
		if err != nil {
			_ = cleanup(context.Background())
			shutdownOTEL()
			return fmt.Errorf("listen: %w", err)
		}
	}

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Page handlers make up to a few backend calls, each bounded by api.timeout.
		WriteTimeout: 3 * cfg.API.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server",
			slog.String("addr", ln.Addr().String()),
			slog.String("environment", cfg.Environment),
		)
		if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil
	})

	// Shutdown order: health 503 -> drain -> HTTP -> app cleanup -> metrics -> tracer.
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("received shutdown signal, starting graceful shutdown")

		shuttingDown.Store(true)
		time.Sleep(domain.ShutdownDrainDelay)

		httpCtx, httpCancel := context.WithTimeout(context.Background(), domain.ShutdownHTTPTimeout)
		defer httpCancel()
		if shutdownErr := srv.Shutdown(httpCtx); shutdownErr != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", shutdownErr.Error()))
		}

		if cleanupErr := cleanup(httpCtx); cleanupErr != nil {
			logger.Error("application cleanup error", slog.String("error", cleanupErr.Error()))
		}

		shutdownOTEL()

		logger.Info("shutdown complete")
		return nil
	})

	return g.Wait()
}
