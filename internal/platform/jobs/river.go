package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

// DeadlineSweepArgs is the periodic job that triggers one deadline sweep.
// It carries no payload: the sweep reads everything it needs from the store.
type DeadlineSweepArgs struct{}

func (DeadlineSweepArgs) Kind() string { return "review_deadline_sweep" }

// A failed sweep is not retried; the next tick sweeps again.
func (DeadlineSweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 1}
}

type DeadlineSweepWorker struct {
	river.WorkerDefaults[DeadlineSweepArgs]
	Sweep  func(ctx context.Context) error
	Logger *slog.Logger
}

func (w *DeadlineSweepWorker) Work(ctx context.Context, job *river.Job[DeadlineSweepArgs]) error {
	if w.Sweep == nil {
		return errors.New("deadline sweep is not configured")
	}
	startedAt := time.Now()
	if err := w.Sweep(ctx); err != nil {
		resolveLogger(w.Logger).Error("deadline sweep job failed",
			"event", "jobs_deadline_sweep_failed",
			"module", "internal/platform/jobs",
			"layer", "platform",
			"job_id", job.ID,
			"error", err.Error(),
		)
		return err
	}
	resolveLogger(w.Logger).Debug("deadline sweep job finished",
		"event", "jobs_deadline_sweep_finished",
		"module", "internal/platform/jobs",
		"layer", "platform",
		"job_id", job.ID,
		"duration_ms", time.Since(startedAt).Milliseconds(),
	)
	return nil
}

// Timeout bounds one sweep so a stuck store call cannot pin the worker slot.
func (w *DeadlineSweepWorker) Timeout(*river.Job[DeadlineSweepArgs]) time.Duration {
	return 5 * time.Minute
}

// Scheduler owns the River client that fires the periodic deadline sweep.
// River's leader election keeps one sweep per tick across worker replicas.
type Scheduler struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	logger *slog.Logger
}

type SchedulerOptions struct {
	DSN      string
	Interval time.Duration
	Sweep    func(ctx context.Context) error
	Logger   *slog.Logger
}

func NewScheduler(ctx context.Context, opts SchedulerOptions) (*Scheduler, error) {
	if strings.TrimSpace(opts.DSN) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	if opts.Interval <= 0 {
		return nil, errors.New("sweep interval must be positive")
	}
	logger := resolveLogger(opts.Logger)

	pool, err := pgxpool.New(ctx, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("create river connection pool: %w", err)
	}
	driver := riverpgxv5.New(pool)

	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate river schema: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &DeadlineSweepWorker{Sweep: opts.Sweep, Logger: logger})

	client, err := river.NewClient(driver, &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 1},
		},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{DeadlineSweepJob(opts.Interval)},
		Logger:       logger,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return &Scheduler{client: client, pool: pool, logger: logger}, nil
}

// DeadlineSweepJob fires every interval and once on start.
func DeadlineSweepJob(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return DeadlineSweepArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("river scheduler starting",
		"event", "jobs_scheduler_starting",
		"module", "internal/platform/jobs",
		"layer", "platform",
	)
	return s.client.Start(ctx)
}

func (s *Scheduler) Stop(ctx context.Context) error {
	return s.client.Stop(ctx)
}

func (s *Scheduler) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
