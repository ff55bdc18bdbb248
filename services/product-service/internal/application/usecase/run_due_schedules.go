package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bibbank/bib/services/product-service/internal/application/dto"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
)

const defaultDueLimit = 100

// RunDueSchedules runs every schedule whose next run time has passed.
type RunDueSchedules struct {
	schedules port.ScheduleRepository
	run       *RunScheduledEvent
	logger    *slog.Logger
}

func NewRunDueSchedules(schedules port.ScheduleRepository, run *RunScheduledEvent, logger *slog.Logger) *RunDueSchedules {
	return &RunDueSchedules{
		schedules: schedules,
		run:       run,
		logger:    logger.With("component", "run_due_schedules"),
	}
}

func (uc *RunDueSchedules) Execute(ctx context.Context, req dto.RunDueSchedulesRequest) (dto.RunDueSchedulesResponse, error) {
	ctx, span := tracer.Start(ctx, "RunDueSchedules")
	defer span.End()

	limit := req.Limit
	if limit <= 0 {
		limit = defaultDueLimit
	}

	due, err := uc.schedules.FindDue(ctx, req.Now, limit)
	if err != nil {
		return dto.RunDueSchedulesResponse{}, fmt.Errorf("failed to find due schedules: %w", err)
	}

	var resp dto.RunDueSchedulesResponse
	for _, d := range due {
		_, err := uc.run.Execute(ctx, dto.RunScheduledEventRequest{
			AccountID:     d.AccountID,
			EventType:     d.EventType,
			EffectiveTime: d.NextRunTime,
		})
		if err != nil {
			resp.Failed++
			uc.logger.ErrorContext(ctx, "scheduled event failed",
				"account_id", d.AccountID,
				"event_type", d.EventType,
				"next_run_time", d.NextRunTime,
				"error", err,
			)
			continue
		}
		resp.Ran++
	}

	span.SetAttributes(
		attribute.Int("schedules.ran", resp.Ran),
		attribute.Int("schedules.failed", resp.Failed),
	)
	return resp, nil
}
