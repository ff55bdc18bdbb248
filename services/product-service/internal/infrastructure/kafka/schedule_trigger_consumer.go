package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	pkgkafka "github.com/bibbank/bib/pkg/kafka"
	"github.com/bibbank/bib/services/product-service/internal/application/dto"
	"github.com/bibbank/bib/services/product-service/internal/application/usecase"
	"github.com/bibbank/bib/services/product-service/internal/domain/model"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
)

// ScheduledEventRunner runs one scheduled event. *usecase.RunScheduledEvent satisfies it.
type ScheduledEventRunner interface {
	Execute(ctx context.Context, req dto.RunScheduledEventRequest) (dto.RunScheduledEventResponse, error)
}

// ScheduleTrigger is the message that asks for a scheduled event to run.
// A zero EffectiveTime runs at the schedule's next run time.
type ScheduleTrigger struct {
	EffectiveTime time.Time `json:"effective_time"`
	EventType     string    `json:"event_type"`
	AccountID     uuid.UUID `json:"account_id"`
}

// ScheduleTriggerConsumer runs scheduled events requested over Kafka.
type ScheduleTriggerConsumer struct {
	runner ScheduledEventRunner
	logger *slog.Logger
}

func NewScheduleTriggerConsumer(runner ScheduledEventRunner, logger *slog.Logger) *ScheduleTriggerConsumer {
	return &ScheduleTriggerConsumer{
		runner: runner,
		logger: logger.With("component", "schedule-trigger-consumer"),
	}
}

// Handle is a pkgkafka.Handler. Malformed triggers and triggers for schedules
// that cannot run are logged and dropped; other failures leave the message
// uncommitted.
func (c *ScheduleTriggerConsumer) Handle(ctx context.Context, msg pkgkafka.Message) error {
	var trigger ScheduleTrigger
	if err := json.Unmarshal(msg.Value, &trigger); err != nil {
		c.logger.WarnContext(ctx, "dropping malformed schedule trigger", "error", err)
		return nil
	}
	if trigger.AccountID == uuid.Nil || trigger.EventType == "" {
		c.logger.WarnContext(ctx, "dropping incomplete schedule trigger",
			"account_id", trigger.AccountID,
			"event_type", trigger.EventType,
		)
		return nil
	}

	resp, err := c.runner.Execute(ctx, dto.RunScheduledEventRequest{
		AccountID:     trigger.AccountID,
		EventType:     trigger.EventType,
		EffectiveTime: trigger.EffectiveTime,
	})
	switch {
	case err == nil:
		c.logger.InfoContext(ctx, "scheduled event ran",
			"account_id", resp.AccountID,
			"event_type", resp.EventType,
			"effective_time", resp.EffectiveTime,
			"batches", len(resp.Batches),
		)
		return nil
	case errors.Is(err, usecase.ErrScheduleNotFound),
		errors.Is(err, usecase.ErrScheduleInactive),
		errors.Is(err, usecase.ErrScheduleNotDue),
		errors.Is(err, port.ErrAccountNotFound),
		errors.Is(err, model.ErrAccountClosed):
		c.logger.WarnContext(ctx, "dropping schedule trigger",
			"account_id", trigger.AccountID,
			"event_type", trigger.EventType,
			"error", err,
		)
		return nil
	default:
		return fmt.Errorf("run %s for account %s: %w", trigger.EventType, trigger.AccountID, err)
	}
}
