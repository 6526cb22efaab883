// Package main runs the medical ML service registry.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/zainbaq/medical-ml/api"
	"github.com/zainbaq/medical-ml/config"
	"github.com/zainbaq/medical-ml/discovery"
	"github.com/zainbaq/medical-ml/health"
	"github.com/zainbaq/medical-ml/metric"
	"github.com/zainbaq/medical-ml/natsclient"
	"github.com/zainbaq/medical-ml/pkg/retry"
	"github.com/zainbaq/medical-ml/registry"
)

// Build information
var (
	Version   = "1.0.0"
	BuildTime = "dev"
)

const appName = "medical-ml-registry"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cliCfg.Validate {
		fmt.Println("Configuration is valid")
		return nil
	}

	level, format := resolveLogSettings(cliCfg, cfg)
	logger := setupLogger(level, format)
	slog.SetDefault(logger)

	slog.Info("Starting Medical ML Service Registry",
		"version", Version,
		"build_time", BuildTime,
		"addr", cfg.Server.Addr(),
		"health_strategy", cfg.Registry.HealthStrategy,
		"nats_enabled", cfg.NATS.Enabled())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	if err := app.start(ctx); err != nil {
		_ = app.shutdown(shutdownTimeout(cliCfg, cfg))
		return err
	}

	<-ctx.Done()
	slog.Info("Received shutdown signal")

	return app.shutdown(shutdownTimeout(cliCfg, cfg))
}

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader.AddLayer(path)
	}
	return loader.Load()
}

func shutdownTimeout(cliCfg *CLIConfig, cfg *config.Config) time.Duration {
	if cliCfg.ShutdownTimeout > 0 {
		return cliCfg.ShutdownTimeout
	}
	return cfg.Server.ShutdownTimeout.Duration()
}

// app owns every long-lived component of the process
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	metrics     *metric.MetricsRegistry
	broadcaster *registry.Broadcaster
	store       *registry.Store
	server      *api.Server

	nats      *natsclient.Client
	publisher *discovery.Publisher
	responder *discovery.Responder
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metric.NewMetricsRegistry(),
	}
	core := a.metrics.CoreMetrics()

	a.broadcaster = registry.NewBroadcaster(core)
	sinks := registry.MultiSink{a.broadcaster}

	if cfg.NATS.Enabled() {
		client, err := newNATSClient(cfg, core, logger)
		if err != nil {
			return nil, fmt.Errorf("create NATS client: %w", err)
		}
		a.nats = client
		a.publisher = discovery.NewPublisher(a.nats, cfg.NATS.SubjectPrefix,
			discovery.WithWorkers(cfg.NATS.PublishWorkers, cfg.NATS.PublishQueue),
			discovery.WithPublisherMetrics(a.metrics),
			discovery.WithPublisherLogger(logger.With("component", "event-publisher")),
		)
		sinks = append(sinks, a.publisher)
	}

	a.store = registry.NewStore(
		registry.WithEventSink(sinks),
		registry.WithMetrics(core),
		registry.WithLogger(logger.With("component", "registry-store")),
	)

	if a.nats != nil {
		a.responder = discovery.NewResponder(a.store, a.nats, cfg.NATS.SubjectPrefix,
			logger.With("component", "discovery-responder"))
	}

	opts := []api.Option{
		api.WithLogger(logger.With("component", "registry-api")),
		api.WithMetricsRegistry(a.metrics),
		api.WithBroadcaster(a.broadcaster),
	}
	if a.nats != nil {
		opts = append(opts, api.WithDependency("nats", a.natsHealth))
	}

	checker := newChecker(cfg, a.store, core, logger)
	if active, ok := checker.(*registry.ActiveChecker); ok {
		// last probe results from /api/v1/health/all
		opts = append(opts, api.WithDependency("probes", func() health.Status {
			return active.Monitor().AggregateHealth("probes")
		}))
	}
	a.server = api.NewServer(a.store, checker, cfg, opts...)
	return a, nil
}

func newChecker(cfg *config.Config, store *registry.Store, m *metric.Metrics, logger *slog.Logger) registry.HealthChecker {
	if cfg.Registry.HealthStrategy != config.StrategyActive {
		return registry.NewPassiveChecker(store, cfg.Registry.HeartbeatTimeout.Duration())
	}
	prober := health.NewProber(cfg.Registry.ProbeTimeout.Duration())
	return registry.NewActiveChecker(prober,
		registry.WithConcurrency(cfg.Registry.ProbeConcurrency),
		registry.WithProbeMetrics(m),
		registry.WithMonitor(health.NewMonitor()),
		registry.WithCheckerLogger(logger.With("component", "health-checker")),
	)
}

func newNATSClient(cfg *config.Config, m *metric.Metrics, logger *slog.Logger) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithName(appName),
		natsclient.WithTimeout(cfg.NATS.ConnectTimeout.Duration()),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait.Duration()),
		natsclient.WithMetrics(m),
		natsclient.WithLogger(logger.With("component", "natsclient")),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			logger.Info("NATS connectivity changed", "healthy", healthy)
		}),
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	return natsclient.NewClient(cfg.NATS.URL, opts...)
}

func (a *app) natsHealth() health.Status {
	status := a.nats.Status()
	if status == natsclient.StatusConnected {
		return health.NewHealthy("nats", "connected")
	}
	return health.NewUnhealthy("nats", "NATS "+status.String())
}

// start brings up the HTTP API first; NATS is optional and connects in the
// background so a missing broker never blocks registrations.
func (a *app) start(ctx context.Context) error {
	if a.publisher != nil {
		if err := a.publisher.Start(ctx); err != nil {
			return fmt.Errorf("start event publisher: %w", err)
		}
	}

	if err := a.server.Start(ctx); err != nil {
		return fmt.Errorf("start API server: %w", err)
	}

	if a.nats != nil {
		go a.connectNATS(ctx)
	}
	return nil
}

func (a *app) connectNATS(ctx context.Context) {
	policy := retry.Startup()
	policy.ShouldRetry = func(err error) bool {
		return !errors.Is(err, natsclient.ErrCircuitOpen) && !errors.Is(err, natsclient.ErrClosed)
	}
	err := retry.Do(ctx, policy, func() error {
		connectCtx, cancel := context.WithTimeout(ctx, a.cfg.NATS.ConnectTimeout.Duration())
		defer cancel()
		return a.nats.Connect(connectCtx)
	})
	if err != nil {
		a.logger.Warn("NATS unavailable, running without event transport",
			"url", a.cfg.NATS.URL, "failures", a.nats.Failures(), "error", err)
		return
	}

	if err := a.responder.Start(ctx); err != nil {
		a.logger.Warn("Discovery responder failed to start", "error", err)
	}
}

func (a *app) shutdown(timeout time.Duration) error {
	start := time.Now()
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keep(a.server.Stop(timeout))
	a.broadcaster.Close()

	if a.publisher != nil {
		keep(a.publisher.Stop(timeout))
	}
	if a.nats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		keep(a.nats.Close(ctx))
		cancel()
	}

	a.logger.Info("Shutdown complete",
		"duration_ms", time.Since(start).Milliseconds(),
		"registered_services", a.store.Count())
	return firstErr
}
