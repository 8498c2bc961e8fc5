package jobs

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

func TestDeadlineSweepArgsNeverRetry(t *testing.T) {
	args := DeadlineSweepArgs{}
	if args.Kind() != "review_deadline_sweep" {
		t.Fatalf("unexpected kind %q", args.Kind())
	}
	if args.InsertOpts().MaxAttempts != 1 {
		t.Fatalf("expected a single attempt, got %d", args.InsertOpts().MaxAttempts)
	}
}

func TestDeadlineSweepWorkerRunsSweep(t *testing.T) {
	var calls atomic.Int32
	worker := &DeadlineSweepWorker{Sweep: func(context.Context) error {
		calls.Add(1)
		return nil
	}}
	job := &river.Job[DeadlineSweepArgs]{JobRow: &rivertype.JobRow{ID: 7}}
	if err := worker.Work(context.Background(), job); err != nil {
		t.Fatalf("work: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one sweep, got %d", calls.Load())
	}
}

func TestDeadlineSweepWorkerReturnsSweepError(t *testing.T) {
	boom := errors.New("store unavailable")
	worker := &DeadlineSweepWorker{Sweep: func(context.Context) error { return boom }}
	job := &river.Job[DeadlineSweepArgs]{JobRow: &rivertype.JobRow{ID: 8}}
	if err := worker.Work(context.Background(), job); !errors.Is(err, boom) {
		t.Fatalf("expected sweep error, got %v", err)
	}
	if err := (&DeadlineSweepWorker{}).Work(context.Background(), job); err == nil {
		t.Fatalf("expected error for missing sweep")
	}
}

func TestNewSchedulerValidatesOptions(t *testing.T) {
	if _, err := NewScheduler(context.Background(), SchedulerOptions{Interval: time.Minute}); err == nil {
		t.Fatalf("expected missing dsn error")
	}
	if _, err := NewScheduler(context.Background(), SchedulerOptions{DSN: "postgres://localhost/db"}); err == nil {
		t.Fatalf("expected interval error")
	}
}

func TestSchedulerRunsSweepOnStart(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	swept := make(chan struct{}, 1)
	scheduler, err := NewScheduler(ctx, SchedulerOptions{
		DSN:      dsn,
		Interval: time.Hour,
		Sweep: func(context.Context) error {
			select {
			case swept <- struct{}{}:
			default:
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	defer scheduler.Close()

	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = scheduler.Stop(stopCtx)
	}()

	select {
	case <-swept:
	case <-ctx.Done():
		t.Fatalf("sweep did not run on start")
	}
}
