package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/appshell/engine/internal/orchestrator"
	"github.com/appshell/engine/internal/server"
	"github.com/appshell/engine/pkg/config"
	"github.com/appshell/engine/pkg/health"
	"github.com/appshell/engine/pkg/logger"
	"github.com/appshell/engine/pkg/metrics"
	"github.com/appshell/engine/pkg/persistence"
	"github.com/appshell/engine/pkg/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine HTTP API and metrics server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting engine",
		"port", cfg.Server.Port,
		"persistence_driver", cfg.Persistence.Driver,
	)

	adapter, err := persistence.Open(cfg.Persistence)
	if err != nil {
		return fmt.Errorf("opening persistence adapter: %w", err)
	}
	defer adapter.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	engine := orchestrator.New(
		cfg,
		adapter,
		fixedRegistry{},
		logLoader{},
		logUnmount,
		scheduler.NewReal(),
		m,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	defer engine.Stop()

	checker := health.NewChecker()
	checker.Register("persistence", persistenceCheck(adapter))

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(server.NewHandler(engine, checker), m),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("engine API listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if metricsShutdown != nil {
		if err := metricsShutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", "error", err)
		}
	}
	return httpServer.Shutdown(shutdownCtx)
}

// persistenceCheck probes the adapter with a read of a key that may not
// exist; only transport-level failures count as down.
func persistenceCheck(adapter persistence.Adapter) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		_, err := adapter.Get(ctx, "health:probe")
		if err != nil && err != persistence.ErrNotFound {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	}
}

// fixedRegistry estimates every module at a flat size. The shell supplies
// real estimates with each enter event; this is the fallback.
type fixedRegistry struct{}

func (fixedRegistry) EstimateSize(string) float64 { return 25 }

// logLoader records prefetch intents; the shell performs the actual load
// when it polls the predictions endpoint.
type logLoader struct{}

func (logLoader) Preload(_ context.Context, moduleID string) {
	slog.Info("prefetch requested", "module_id", moduleID)
}

func logUnmount(moduleID string) {
	slog.Info("module unmounted by evictor", "module_id", moduleID)
}
