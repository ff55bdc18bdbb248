package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bibbank/bib/services/product-service/internal/application/dto"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
	"github.com/bibbank/bib/services/product-service/internal/domain/service"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrScheduleInactive = errors.New("schedule is not active")
	ErrScheduleNotDue   = errors.New("schedule is not due")
)

// RunScheduledEvent runs scheduled_code for one event of one account and rolls
// the schedule forward.
type RunScheduledEvent struct {
	accounts port.AccountRepository
	loader   AccountLoader
	metrics  port.Metrics
	engine   *service.Engine
}

func NewRunScheduledEvent(accounts port.AccountRepository, loader AccountLoader, metrics port.Metrics, engine *service.Engine) *RunScheduledEvent {
	return &RunScheduledEvent{
		accounts: accounts,
		loader:   loader,
		metrics:  metrics,
		engine:   engine,
	}
}

func (uc *RunScheduledEvent) Execute(ctx context.Context, req dto.RunScheduledEventRequest) (dto.RunScheduledEventResponse, error) {
	ctx, span := tracer.Start(ctx, "RunScheduledEvent", trace.WithAttributes(
		attribute.String("account.id", req.AccountID.String()),
		attribute.String("schedule.event_type", req.EventType),
	))
	defer span.End()

	acc, err := uc.loader.Load(ctx, req.AccountID)
	if err != nil {
		return dto.RunScheduledEventResponse{}, err
	}
	schedule, ok := acc.Schedule(req.EventType)
	if !ok {
		return dto.RunScheduledEventResponse{}, fmt.Errorf("%w: %s on account %s", ErrScheduleNotFound, req.EventType, req.AccountID)
	}
	if !schedule.Active() {
		return dto.RunScheduledEventResponse{}, fmt.Errorf("%w: %s on account %s", ErrScheduleInactive, req.EventType, req.AccountID)
	}

	effective := req.EffectiveTime
	if effective.IsZero() {
		effective = schedule.NextRunTime
	}
	// Every run before NextRunTime has already happened.
	if effective.Before(schedule.NextRunTime) {
		return dto.RunScheduledEventResponse{}, fmt.Errorf("%w: %s on account %s at %s, next run at %s",
			ErrScheduleNotDue, req.EventType, req.AccountID, effective.Format(time.RFC3339), schedule.NextRunTime.Format(time.RFC3339))
	}

	res, err := uc.engine.Invoke(service.HookScheduled, service.HookRequest{
		Account:         acc,
		EffectiveTime:   effective,
		EventType:       req.EventType,
		HookExecutionID: hookExecutionID(acc.ID(), req.EventType, effective),
	})
	if err != nil {
		return dto.RunScheduledEventResponse{}, fmt.Errorf("scheduled event %s failed: %w", req.EventType, err)
	}

	// The default roll comes first so contracts can override it.
	acc, err = acc.AdvanceSchedule(req.EventType, effective)
	if err != nil {
		return dto.RunScheduledEventResponse{}, fmt.Errorf("failed to advance schedule: %w", err)
	}
	acc, err = applyResult(acc, res, effective)
	if err != nil {
		return dto.RunScheduledEventResponse{}, err
	}
	acc = acc.RecordScheduledRun(req.EventType, len(res.Batches), effective)

	if err := uc.accounts.Save(ctx, acc); err != nil {
		return dto.RunScheduledEventResponse{}, fmt.Errorf("failed to save account: %w", err)
	}

	product := string(acc.ProductType())
	uc.metrics.ScheduledEventRan(ctx, product, req.EventType)
	if len(res.Batches) > 0 {
		uc.metrics.PostingBatches(ctx, product, service.HookScheduled, len(res.Batches))
	}

	next, _ := acc.Schedule(req.EventType)
	return dto.RunScheduledEventResponse{
		AccountID:     acc.ID(),
		EventType:     req.EventType,
		EffectiveTime: effective,
		NextRunTime:   next.NextRunTime,
		Batches:       toBatchDTOs(res.Batches),
	}, nil
}
