package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/bibbank/bib/services/product-service/internal/application/dto"
)

// DueRunner sweeps due schedules. *usecase.RunDueSchedules satisfies it.
type DueRunner interface {
	Execute(ctx context.Context, req dto.RunDueSchedulesRequest) (dto.RunDueSchedulesResponse, error)
}

// Worker runs due schedules on a fixed interval.
type Worker struct {
	runner    DueRunner
	logger    *slog.Logger
	now       func() time.Time
	interval  time.Duration
	batchSize int
}

func NewWorker(runner DueRunner, interval time.Duration, batchSize int, logger *slog.Logger) *Worker {
	return &Worker{
		runner:    runner,
		interval:  interval,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With("component", "scheduler"),
	}
}

// Run sweeps on every tick until ctx is cancelled. A sweep that fills its
// batch is followed immediately by another.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("scheduler starting", "interval", w.interval, "batch_size", w.batchSize)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("scheduler stopping")
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	for ctx.Err() == nil {
		resp, err := w.runner.Execute(ctx, dto.RunDueSchedulesRequest{Now: w.now(), Limit: w.batchSize})
		if err != nil {
			w.logger.ErrorContext(ctx, "schedule sweep failed", "error", err)
			return
		}
		if resp.Ran+resp.Failed > 0 {
			w.logger.InfoContext(ctx, "schedule sweep", "ran", resp.Ran, "failed", resp.Failed)
		}
		// Failed schedules stay due; retry them on the next tick.
		if resp.Ran == 0 || resp.Ran+resp.Failed < w.batchSize {
			return
		}
	}
}
