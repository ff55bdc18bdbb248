package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

// --- Account DTOs ---

// FlagDTO transfers an account flag between layers.
type FlagDTO struct {
	EffectiveFrom time.Time
	EffectiveTo   time.Time
	Name          string
}

// OpenAccountRequest is the input DTO for opening an account on a product.
type OpenAccountRequest struct {
	OpenedAt     time.Time
	Parameters   valueobject.Parameters
	ProductType  string
	Denomination string
	Flags        []FlagDTO
	// AccountID is optional; a new id is generated when nil.
	AccountID uuid.UUID
}

// GetAccountRequest is the input DTO for reading an account. A zero At reads
// the latest balances.
type GetAccountRequest struct {
	At        time.Time
	AccountID uuid.UUID
}

// BalanceDTO is one balance coordinate of an account.
type BalanceDTO struct {
	Address      string
	Asset        string
	Denomination string
	Phase        string
	Credit       decimal.Decimal
	Debit        decimal.Decimal
	Net          decimal.Decimal
}

// ScheduleDTO is one event schedule of an account.
type ScheduleDTO struct {
	NextRunTime time.Time
	EventType   string
	Frequency   string
	Active      bool
}

// AccountResponse is the output DTO for an account.
type AccountResponse struct {
	OpenedAt     time.Time
	ClosedAt     time.Time
	UpdatedAt    time.Time
	ProductType  string
	Tside        string
	Denomination string
	Status       string
	Flags        []FlagDTO
	Balances     []BalanceDTO
	Schedules    []ScheduleDTO
	Version      int
	ID           uuid.UUID
}

// CloseAccountRequest is the input DTO for closing an account.
type CloseAccountRequest struct {
	EffectiveTime time.Time
	AccountID     uuid.UUID
}

// ListSchedulesRequest is the input DTO for listing an account's schedules.
type ListSchedulesRequest struct {
	AccountID uuid.UUID
}

// ListSchedulesResponse is the output DTO for an account's schedules.
type ListSchedulesResponse struct {
	Schedules []ScheduleDTO
	AccountID uuid.UUID
}

// --- Posting DTOs ---

// InstructionDTO is a customer posting instruction before its legs are built.
type InstructionDTO struct {
	Details             map[string]string
	Amount              decimal.Decimal
	Type                string
	ClientTransactionID string
	CounterpartyID      string
	Denomination        string
	Final               bool
}

// SubmitPostingsRequest is the input DTO for submitting a batch to an account.
type SubmitPostingsRequest struct {
	ValueTimestamp time.Time
	ClientBatchID  string
	Instructions   []InstructionDTO
	AccountID      uuid.UUID
}

// RejectionDTO carries the reason a batch was refused.
type RejectionDTO struct {
	Reason  string
	Message string
}

// BatchDTO summarises a committed posting batch.
type BatchDTO struct {
	ValueTimestamp time.Time
	ClientBatchID  string
	Instructions   int
	ID             uuid.UUID
}

// SubmitPostingsResponse is the output DTO for a submitted batch. Rejection is
// set when pre-posting checks refused it; Batches lists the committed batch
// and any batches post-posting generated.
type SubmitPostingsResponse struct {
	Rejection *RejectionDTO
	Batches   []BatchDTO
	Balances  []BalanceDTO
	BatchID   uuid.UUID
	Accepted  bool
}

// --- Schedule DTOs ---

// RunScheduledEventRequest is the input DTO for running one scheduled event.
// A zero EffectiveTime runs at the schedule's next run time.
type RunScheduledEventRequest struct {
	EffectiveTime time.Time
	EventType     string
	AccountID     uuid.UUID
}

// RunScheduledEventResponse is the output DTO for a scheduled event run.
type RunScheduledEventResponse struct {
	EffectiveTime time.Time
	NextRunTime   time.Time
	EventType     string
	Batches       []BatchDTO
	AccountID     uuid.UUID
}

// RunDueSchedulesRequest is the input DTO for one scheduler sweep.
type RunDueSchedulesRequest struct {
	Now   time.Time
	Limit int
}

// RunDueSchedulesResponse is the output DTO for one scheduler sweep.
type RunDueSchedulesResponse struct {
	Ran    int
	Failed int
}

// ListBatchesRequest is the input DTO for reading committed batches. A zero
// Limit uses the default page size.
type ListBatchesRequest struct {
	AccountID uuid.UUID
	Limit     int
}

// ListBatchesResponse is the output DTO for committed batches, newest first.
type ListBatchesResponse struct {
	Batches   []BatchDTO
	AccountID uuid.UUID
}

// --- Calendar DTOs ---

// CalendarEventDTO is one holiday of a calendar, covering [Start, End).
type CalendarEventDTO struct {
	Start time.Time
	End   time.Time
	ID    string
}

// SaveCalendarRequest replaces every event of a calendar.
type SaveCalendarRequest struct {
	CalendarID string
	Events     []CalendarEventDTO
}

// GetCalendarRequest is the input DTO for reading a calendar.
type GetCalendarRequest struct {
	CalendarID string
}

// CalendarResponse is the output DTO for a calendar, ordered by start.
type CalendarResponse struct {
	CalendarID string
	Events     []CalendarEventDTO
}
