package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	reviewworkflow "hoaportal/contexts/governance/review-workflow"
	"hoaportal/contexts/governance/review-workflow/adapters/definition"
	"hoaportal/contexts/governance/review-workflow/adapters/metrics"
	postgresadapter "hoaportal/contexts/governance/review-workflow/adapters/postgres"
	redisadapter "hoaportal/contexts/governance/review-workflow/adapters/redis"
	"hoaportal/contexts/governance/review-workflow/application/commands"
	"hoaportal/contexts/governance/review-workflow/domain/services"
	"hoaportal/contexts/governance/review-workflow/ports"
	"hoaportal/internal/platform/config"
	"hoaportal/internal/platform/db"
	"hoaportal/internal/platform/httpserver"
	"hoaportal/internal/platform/jobs"
	"hoaportal/internal/platform/messaging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	redis    *redis.Client
	logger   *slog.Logger
}

type WorkerApp struct {
	cfg       config.Config
	postgres  *db.Postgres
	redis     *redis.Client
	module    reviewworkflow.Module
	ops       *httpserver.Server
	scheduler *jobs.Scheduler
	logger    *slog.Logger
}

type runtime struct {
	postgres *db.Postgres
	redis    *redis.Client
	module   reviewworkflow.Module
}

func (r runtime) ping(ctx context.Context) error {
	if err := r.postgres.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if r.redis != nil {
		if err := r.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (r runtime) close() error {
	var errs []error
	if r.redis != nil {
		errs = append(errs, r.redis.Close())
	}
	if r.postgres != nil {
		errs = append(errs, r.postgres.Close())
	}
	return errors.Join(errs...)
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	rt, err := buildRuntime(context.Background(), cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	server := httpserver.New(rt.module, prometheus.DefaultGatherer, logger, normalizeAddr(cfg.HTTPPort))
	server.SetReadiness(rt.ping)
	return &APIApp{
		server:   server,
		postgres: rt.postgres,
		redis:    rt.redis,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")

	publisher, err := buildPublisher(cfg, logger)
	if err != nil {
		return nil, err
	}
	rt, err := buildRuntime(context.Background(), cfg, publisher, logger)
	if err != nil {
		return nil, err
	}

	ops := httpserver.NewOps(prometheus.DefaultGatherer, logger, normalizeAddr(cfg.HTTPPort))
	ops.SetReadiness(rt.ping)
	app := &WorkerApp{
		cfg:      cfg,
		postgres: rt.postgres,
		redis:    rt.redis,
		module:   rt.module,
		ops:      ops,
		logger:   logger,
	}
	if cfg.EnableDeadlineSweep && cfg.SweepTrigger == "river" {
		scheduler, err := jobs.NewScheduler(context.Background(), jobs.SchedulerOptions{
			DSN:      cfg.PostgresDSN,
			Interval: cfg.SweepInterval,
			Sweep:    app.sweep,
			Logger:   logger,
		})
		if err != nil {
			_ = rt.close()
			return nil, err
		}
		app.scheduler = scheduler
	}
	return app, nil
}

func buildRuntime(
	ctx context.Context,
	cfg config.Config,
	publisher ports.EventPublisher,
	logger *slog.Logger,
) (runtime, error) {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return runtime{}, errors.New("POSTGRES_DSN is required")
	}

	workflows := services.DefaultGraphSpecs()
	if path := strings.TrimSpace(cfg.WorkflowDefinitionPath); path != "" {
		loaded, err := definition.Load(path)
		if err != nil {
			return runtime{}, fmt.Errorf("load workflow definition %s: %w", path, err)
		}
		workflows = loaded
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return runtime{}, err
	}
	rt := runtime{postgres: pg}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	if cfg.AutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			_ = rt.close()
			return runtime{}, err
		}
	}

	var debounce ports.DebounceStore = repo
	if cfg.DebounceBackend == "redis" {
		options, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			_ = rt.close()
			return runtime{}, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rt.redis = redis.NewClient(options)
		if err := rt.redis.Ping(ctx).Err(); err != nil {
			_ = rt.close()
			return runtime{}, fmt.Errorf("ping redis: %w", err)
		}
		debounce = redisadapter.NewDebounceStore(rt.redis, "review-workflow:debounce", cfg.DebounceTTL)
	}

	module, err := reviewworkflow.NewModule(reviewworkflow.Dependencies{
		Requests:         repo,
		Votes:            repo,
		Debounce:         debounce,
		Directory:        repo,
		Outbox:           repo,
		Publisher:        publisher,
		Metrics:          metrics.Default(),
		Clock:            postgresadapter.SystemClock{},
		IDGen:            postgresadapter.UUIDGenerator{},
		Workflows:        workflows,
		RevotePolicy:     commands.RevotePolicy(cfg.RevotePolicy),
		ReviewPeriod:     cfg.ReviewPeriod,
		VoteCastCooldown: cfg.VoteCastCooldown,
		WarningLeadTimes: cfg.WarningLeadTimes,
		SweepBatchSize:   cfg.SweepBatchSize,
		RelayBatchSize:   cfg.RelayBatchSize,
		DisableSweep:     !cfg.EnableDeadlineSweep,
		DisableRelay:     !cfg.EnableOutboxRelay,
		Logger:           logger,
	})
	if err != nil {
		_ = rt.close()
		return runtime{}, err
	}
	rt.module = module
	return rt, nil
}

// buildPublisher falls back to the in-process bus when no delivery webhook
// is configured.
func buildPublisher(cfg config.Config, logger *slog.Logger) (ports.EventPublisher, error) {
	if strings.TrimSpace(cfg.DeliveryURL) == "" {
		logger.Warn("no delivery webhook configured, notifications stay in process",
			"event", "bootstrap_publisher_bus_fallback",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		return messaging.NewBus(logger), nil
	}
	return messaging.NewWebhookPublisher(cfg.DeliveryURL, cfg.DeliveryRate, cfg.DeliveryTimeout, logger)
}

func (a *APIApp) Run(ctx context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return shutdown(a.server)
	}
}

func (a *APIApp) Close() error {
	return runtime{postgres: a.postgres, redis: a.redis}.close()
}

func (w *WorkerApp) Run(ctx context.Context) error {
	opsErr := make(chan error, 1)
	go func() { opsErr <- w.ops.Start() }()
	defer func() { _ = shutdown(w.ops) }()

	if w.scheduler != nil {
		if err := w.scheduler.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = w.scheduler.Stop(stopCtx)
		}()
	}

	sweepTicker := time.NewTicker(w.cfg.SweepInterval)
	defer sweepTicker.Stop()
	relayTicker := time.NewTicker(w.cfg.RelayInterval)
	defer relayTicker.Stop()
	tickerSweep := w.scheduler == nil && w.cfg.EnableDeadlineSweep

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"sweep_trigger", w.cfg.SweepTrigger,
		"sweep_interval", w.cfg.SweepInterval.String(),
		"relay_interval", w.cfg.RelayInterval.String(),
	)

	if tickerSweep {
		w.runSweep(ctx)
	}
	for {
		w.runRelay(ctx)
		select {
		case <-ctx.Done():
			return nil
		case err := <-opsErr:
			return err
		case <-sweepTicker.C:
			if tickerSweep {
				w.runSweep(ctx)
			}
		case <-relayTicker.C:
		}
	}
}

func (w *WorkerApp) sweep(ctx context.Context) error {
	_, err := w.module.Scheduler.RunOnce(ctx)
	return err
}

// A failed tick is logged and retried on the next one.
func (w *WorkerApp) runSweep(ctx context.Context) {
	if err := w.sweep(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("deadline sweep failed",
			"event", "bootstrap_sweep_failed",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"error", err.Error(),
		)
	}
}

func (w *WorkerApp) runRelay(ctx context.Context) {
	if _, err := w.module.Relay.RunOnce(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("outbox relay failed",
			"event", "bootstrap_relay_failed",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"error", err.Error(),
		)
	}
}

func (w *WorkerApp) Close() error {
	if w.scheduler != nil {
		w.scheduler.Close()
	}
	return runtime{postgres: w.postgres, redis: w.redis}.close()
}

func shutdown(server *httpserver.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
