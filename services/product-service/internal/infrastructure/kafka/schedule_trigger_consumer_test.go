package kafka_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgkafka "github.com/bibbank/bib/pkg/kafka"
	"github.com/bibbank/bib/services/product-service/internal/application/dto"
	"github.com/bibbank/bib/services/product-service/internal/application/usecase"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
	"github.com/bibbank/bib/services/product-service/internal/infrastructure/kafka"
)

type mockRunner struct {
	requests []dto.RunScheduledEventRequest
	err      error
}

func (m *mockRunner) Execute(_ context.Context, req dto.RunScheduledEventRequest) (dto.RunScheduledEventResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return dto.RunScheduledEventResponse{}, m.err
	}
	return dto.RunScheduledEventResponse{AccountID: req.AccountID, EventType: req.EventType, EffectiveTime: req.EffectiveTime}, nil
}

func TestScheduleTriggerConsumer_Handle(t *testing.T) {
	accountID := uuid.New()
	valid := pkgkafka.Message{Value: []byte(fmt.Sprintf(
		`{"account_id":%q,"event_type":"ACCRUE","effective_time":"2024-01-05T10:00:00Z"}`, accountID,
	))}

	t.Run("successfully runs the requested event", func(t *testing.T) {
		runner := &mockRunner{}
		err := kafka.NewScheduleTriggerConsumer(runner, discardLogger()).Handle(context.Background(), valid)
		require.NoError(t, err)

		require.Len(t, runner.requests, 1)
		assert.Equal(t, accountID, runner.requests[0].AccountID)
		assert.Equal(t, "ACCRUE", runner.requests[0].EventType)
		assert.Equal(t, occurred, runner.requests[0].EffectiveTime)
	})

	t.Run("drops malformed and incomplete triggers", func(t *testing.T) {
		runner := &mockRunner{}
		consumer := kafka.NewScheduleTriggerConsumer(runner, discardLogger())

		for _, body := range []string{`not json`, `{"event_type":"ACCRUE"}`, fmt.Sprintf(`{"account_id":%q}`, accountID)} {
			assert.NoError(t, consumer.Handle(context.Background(), pkgkafka.Message{Value: []byte(body)}), body)
		}
		assert.Empty(t, runner.requests)
	})

	t.Run("drops triggers that can never run", func(t *testing.T) {
		for _, cause := range []error{usecase.ErrScheduleInactive, usecase.ErrScheduleNotFound, usecase.ErrScheduleNotDue, port.ErrAccountNotFound} {
			runner := &mockRunner{err: fmt.Errorf("wrapped: %w", cause)}
			err := kafka.NewScheduleTriggerConsumer(runner, discardLogger()).Handle(context.Background(), valid)
			assert.NoError(t, err, cause.Error())
		}
	})

	t.Run("returns transient failures so the message is redelivered", func(t *testing.T) {
		runner := &mockRunner{err: errors.New("db down")}
		err := kafka.NewScheduleTriggerConsumer(runner, discardLogger()).Handle(context.Background(), valid)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ACCRUE")
	})
}
