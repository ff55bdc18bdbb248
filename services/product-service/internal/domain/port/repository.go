package port

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bibbank/bib/pkg/events"
	"github.com/bibbank/bib/services/product-service/internal/domain/model"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

var (
	// ErrAccountNotFound is returned when no account has the requested id.
	ErrAccountNotFound = errors.New("account not found")
	// ErrVersionConflict is returned when an account changed since it was loaded.
	ErrVersionConflict = errors.New("account was modified concurrently")
)

// AccountRepository defines persistence operations for product accounts.
type AccountRepository interface {
	// Save persists the account together with its unsaved balance
	// observations, client transactions, posting batches, schedules and
	// domain events (as outbox entries) in one transaction.
	Save(ctx context.Context, account model.Account) error
	// FindByID loads an account with its full balance history.
	FindByID(ctx context.Context, id uuid.UUID) (model.Account, error)
}

// DueSchedule identifies a schedule whose next run time has passed.
type DueSchedule struct {
	NextRunTime time.Time
	EventType   string
	AccountID   uuid.UUID
}

// ScheduleRepository finds schedules for the scheduler worker.
type ScheduleRepository interface {
	// FindDue returns at most limit active schedules with next run time at or
	// before now, oldest first.
	FindDue(ctx context.Context, now time.Time, limit int) ([]DueSchedule, error)
	// ListByAccount returns the schedules of one account.
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]valueobject.EventSchedule, error)
}

// PostingBatchRepository reads committed posting batches.
type PostingBatchRepository interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]valueobject.PostingInstructionBatch, error)
}

// CalendarRepository stores holiday calendars.
type CalendarRepository interface {
	Save(ctx context.Context, calendarID string, events valueobject.Calendar) error
	FindByID(ctx context.Context, calendarID string) (valueobject.Calendar, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, events ...events.DomainEvent) error
}

// Metrics records product engine counters.
type Metrics interface {
	PostingsRejected(ctx context.Context, product, reason string)
	PostingBatches(ctx context.Context, product, hook string, n int)
	ScheduledEventRan(ctx context.Context, product, eventType string)
}
