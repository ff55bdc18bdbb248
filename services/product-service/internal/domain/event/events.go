package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bibbank/bib/pkg/events"
)

const AggregateTypeAccount = "ProductAccount"

var (
	_ events.DomainEvent = AccountOpened{}
	_ events.DomainEvent = PostingBatchApplied{}
	_ events.DomainEvent = PostingsRejected{}
	_ events.DomainEvent = ScheduleUpdated{}
	_ events.DomainEvent = ScheduledEventRan{}
	_ events.DomainEvent = AccountClosed{}
)

// Event type names, also used as the Kafka message type header.
const (
	TypeAccountOpened       = "product.account.opened"
	TypePostingBatchApplied = "product.postings.applied"
	TypePostingsRejected    = "product.postings.rejected"
	TypeScheduleUpdated     = "product.schedule.updated"
	TypeAccountClosed       = "product.account.closed"
	TypeScheduledEventRan   = "product.schedule.ran"
)

func payload(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

// AccountOpened is emitted when an account is opened on a product.
type AccountOpened struct {
	events.BaseEvent
	AccountID    uuid.UUID `json:"account_id"`
	ProductType  string    `json:"product_type"`
	Denomination string    `json:"denomination"`
}

func NewAccountOpened(accountID uuid.UUID, productType, denomination string, at time.Time) AccountOpened {
	body := struct {
		AccountID    uuid.UUID `json:"account_id"`
		ProductType  string    `json:"product_type"`
		Denomination string    `json:"denomination"`
		OpenedAt     time.Time `json:"opened_at"`
	}{accountID, productType, denomination, at}

	return AccountOpened{
		BaseEvent:    events.NewBaseEventAt(TypeAccountOpened, accountID, AggregateTypeAccount, payload(body), at),
		AccountID:    accountID,
		ProductType:  productType,
		Denomination: denomination,
	}
}

// PostingBatchApplied is emitted when a batch is committed to an account's balances.
type PostingBatchApplied struct {
	events.BaseEvent
	AccountID     uuid.UUID `json:"account_id"`
	BatchID       uuid.UUID `json:"batch_id"`
	ClientBatchID string    `json:"client_batch_id"`
	Instructions  int       `json:"instructions"`
}

func NewPostingBatchApplied(accountID, batchID uuid.UUID, clientBatchID string, instructions int, at time.Time) PostingBatchApplied {
	body := struct {
		AccountID     uuid.UUID `json:"account_id"`
		BatchID       uuid.UUID `json:"batch_id"`
		ClientBatchID string    `json:"client_batch_id"`
		Instructions  int       `json:"instructions"`
		ValueTime     time.Time `json:"value_timestamp"`
	}{accountID, batchID, clientBatchID, instructions, at}

	return PostingBatchApplied{
		BaseEvent:     events.NewBaseEventAt(TypePostingBatchApplied, accountID, AggregateTypeAccount, payload(body), at),
		AccountID:     accountID,
		BatchID:       batchID,
		ClientBatchID: clientBatchID,
		Instructions:  instructions,
	}
}

// PostingsRejected is emitted when pre-posting checks refuse a batch.
type PostingsRejected struct {
	events.BaseEvent
	AccountID     uuid.UUID `json:"account_id"`
	ClientBatchID string    `json:"client_batch_id"`
	Reason        string    `json:"reason"`
	Message       string    `json:"message"`
}

func NewPostingsRejected(accountID uuid.UUID, clientBatchID, reason, message string, at time.Time) PostingsRejected {
	body := struct {
		AccountID     uuid.UUID `json:"account_id"`
		ClientBatchID string    `json:"client_batch_id"`
		Reason        string    `json:"reason"`
		Message       string    `json:"message"`
	}{accountID, clientBatchID, reason, message}

	return PostingsRejected{
		BaseEvent:     events.NewBaseEventAt(TypePostingsRejected, accountID, AggregateTypeAccount, payload(body), at),
		AccountID:     accountID,
		ClientBatchID: clientBatchID,
		Reason:        reason,
		Message:       message,
	}
}

// ScheduleUpdated is emitted when an account schedule is created or moved.
type ScheduleUpdated struct {
	events.BaseEvent
	AccountID      uuid.UUID `json:"account_id"`
	ScheduledEvent string    `json:"event_type"`
	NextRunTime    time.Time `json:"next_run_time"`
}

func NewScheduleUpdated(accountID uuid.UUID, eventType string, next, at time.Time) ScheduleUpdated {
	body := struct {
		AccountID   uuid.UUID `json:"account_id"`
		EventType   string    `json:"event_type"`
		NextRunTime time.Time `json:"next_run_time"`
	}{accountID, eventType, next}

	return ScheduleUpdated{
		BaseEvent:      events.NewBaseEventAt(TypeScheduleUpdated, accountID, AggregateTypeAccount, payload(body), at),
		AccountID:      accountID,
		ScheduledEvent: eventType,
		NextRunTime:    next,
	}
}

// ScheduledEventRan is emitted after scheduled_code has run for an event.
type ScheduledEventRan struct {
	events.BaseEvent
	AccountID      uuid.UUID `json:"account_id"`
	ScheduledEvent string    `json:"event_type"`
	Batches        int       `json:"batches"`
}

func NewScheduledEventRan(accountID uuid.UUID, eventType string, batches int, at time.Time) ScheduledEventRan {
	body := struct {
		AccountID uuid.UUID `json:"account_id"`
		EventType string    `json:"event_type"`
		Batches   int       `json:"batches"`
		RanAt     time.Time `json:"ran_at"`
	}{accountID, eventType, batches, at}

	return ScheduledEventRan{
		BaseEvent:      events.NewBaseEventAt(TypeScheduledEventRan, accountID, AggregateTypeAccount, payload(body), at),
		AccountID:      accountID,
		ScheduledEvent: eventType,
		Batches:        batches,
	}
}

// AccountClosed is emitted when an account is closed.
type AccountClosed struct {
	events.BaseEvent
	AccountID uuid.UUID `json:"account_id"`
}

func NewAccountClosed(accountID uuid.UUID, at time.Time) AccountClosed {
	body := struct {
		AccountID uuid.UUID `json:"account_id"`
		ClosedAt  time.Time `json:"closed_at"`
	}{accountID, at}

	return AccountClosed{
		BaseEvent: events.NewBaseEventAt(TypeAccountClosed, accountID, AggregateTypeAccount, payload(body), at),
		AccountID: accountID,
	}
}
