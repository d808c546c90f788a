package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hreinecke/nvme-discd-go/internal/configfs"
	"github.com/hreinecke/nvme-discd-go/internal/discdb"
	"github.com/hreinecke/nvme-discd-go/internal/discdb/badger"
	"github.com/hreinecke/nvme-discd-go/internal/dispatch"
	"github.com/hreinecke/nvme-discd-go/internal/httpserver"
	"github.com/hreinecke/nvme-discd-go/internal/iface"
	"github.com/hreinecke/nvme-discd-go/internal/logger"
	"github.com/hreinecke/nvme-discd-go/internal/metrics"
	"github.com/hreinecke/nvme-discd-go/internal/session"
	"github.com/hreinecke/nvme-discd-go/internal/telemetry"
	"github.com/hreinecke/nvme-discd-go/pkg/config"
)

var foreground bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the discovery controller",
	Long: `Start the NVMe-oF discovery controller.

Watches the configfs tree named by "configfs.root", reflecting it into
the discovery store, and accepts NVMe/TCP connections on every port the
tree names with trtype=tcp.

Examples:
  # Start with the default config file
  nvme-discd start

  # Start with a custom config file
  nvme-discd start --config /etc/nvme-discd/config.yaml

  # Override the log level via environment variable
  DISCD_LOGGING_LEVEL=DEBUG nvme-discd start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", true, "Run in the foreground")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "nvme-discd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "nvme-discd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	fmt.Println("nvme-discd - NVMe-oF Discovery Controller")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}

	// Metrics must be initialized before any store or manager that
	// records against it.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metrics.Init()
		r := httpserver.NewRouter()
		r.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: r}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}
	m := metrics.New()

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open discovery store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("discovery store close error", "error", err)
		}
	}()
	logger.Info("Discovery store opened", "backend", cfg.Database.Backend)

	sessions := session.NewManager(cfg.KatoIntervalMS)

	dispatcher := dispatch.New(store, sessions, dispatch.Config{
		NQN:            cfg.NQN,
		KatoIntervalMS: cfg.KatoIntervalMS,
	})
	factory := &dispatch.Factory{Dispatcher: dispatcher}

	ifaceMgr := iface.NewManager(factory, iface.Config{ShutdownTimeout: cfg.ShutdownTimeout})

	reflector, err := configfs.New(configfs.Config{Root: cfg.ConfigFS.Root}, store, ifaceMgr, sessions)
	if err != nil {
		return fmt.Errorf("failed to build configfs reflector: %w", err)
	}

	startedAt := time.Now()

	healthServer := newHealthServer(cfg, startedAt, ifaceMgr, sessions)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	watchdogDone := make(chan struct{})
	go func() {
		defer close(watchdogDone)
		sessions.RunWatchdog(ctx, func(s *session.Session) {
			logger.Info("session expired", logger.KeyHostNQN, s.HostNQN)
			m.SessionsGauge(sessions.Count())
		})
	}()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- reflector.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Discovery controller is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()
	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Reflector error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := reflector.Stop(); err != nil {
		logger.Error("reflector stop error", "error", err)
	}
	if err := ifaceMgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("interface manager shutdown error", "error", err)
	}
	if t, ok := store.(interface{ Truncate() error }); ok {
		if err := t.Truncate(); err != nil {
			logger.Error("discovery store truncate error", "error", err)
		}
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}

	<-watchdogDone
	logger.Info("Discovery controller stopped gracefully")

	return nil
}

func openStore(cfg *config.Config) (discdb.Store, error) {
	switch cfg.Database.Backend {
	case "badger":
		return badger.New(badger.Config{Dir: cfg.Database.BadgerDir})
	default:
		return discdb.New(cfg.Database.ToDiscDBConfig())
	}
}
