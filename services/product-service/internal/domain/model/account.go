package model

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bibbank/bib/pkg/events"
	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/product-service/internal/domain/event"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

// ErrAccountClosed is returned for transitions on a closed account.
var ErrAccountClosed = errors.New("account is closed")

// AccountStatus represents the lifecycle state of a product account.
type AccountStatus string

const (
	AccountStatusOpen   AccountStatus = "OPEN"
	AccountStatusClosed AccountStatus = "CLOSED"
)

// Account is the aggregate root for an account running a product contract.
// It is the context contracts read: balances over time, parameters, flags,
// client transactions, calendar and schedules.
type Account struct {
	events.EventCollector

	openedAt     time.Time
	closedAt     time.Time
	updatedAt    time.Time
	savedThrough time.Time
	parameters   valueobject.Parameters
	balances     valueobject.BalanceTimeseries
	clientTxs    []valueobject.ClientTransaction
	flags        []valueobject.Flag
	schedules    []valueobject.EventSchedule
	calendar     valueobject.Calendar
	unsaved      []valueobject.PostingInstructionBatch
	productType  valueobject.ProductType
	tside        valueobject.Tside
	denomination string
	status       AccountStatus
	version      int
	savedVersion int
	id           uuid.UUID
}

// NewAccount opens an account. A nil id is replaced with a fresh one.
func NewAccount(
	id uuid.UUID,
	productType valueobject.ProductType,
	tside valueobject.Tside,
	denomination string,
	parameters valueobject.Parameters,
	flags []valueobject.Flag,
	openedAt time.Time,
) (Account, error) {
	if productType == "" {
		return Account{}, fmt.Errorf("product type is required")
	}
	if _, err := valueobject.ParseTside(string(tside)); err != nil {
		return Account{}, err
	}
	if _, err := money.NewCurrency(denomination); err != nil {
		return Account{}, fmt.Errorf("denomination: %w", err)
	}
	if openedAt.IsZero() {
		return Account{}, fmt.Errorf("opening time is required")
	}
	if id == uuid.Nil {
		id = uuid.New()
	}

	acc := Account{
		id:           id,
		productType:  productType,
		tside:        tside,
		denomination: denomination,
		parameters:   parameters,
		flags:        append([]valueobject.Flag(nil), flags...),
		status:       AccountStatusOpen,
		openedAt:     openedAt.UTC(),
		updatedAt:    openedAt.UTC(),
		version:      1,
	}
	acc.Record(event.NewAccountOpened(id, string(productType), denomination, acc.openedAt))
	return acc, nil
}

// AccountState is the persisted form of an Account.
type AccountState struct {
	OpenedAt           time.Time
	ClosedAt           time.Time
	UpdatedAt          time.Time
	Parameters         valueobject.Parameters
	Balances           valueobject.BalanceTimeseries
	ClientTransactions []valueobject.ClientTransaction
	Flags              []valueobject.Flag
	Schedules          []valueobject.EventSchedule
	ProductType        valueobject.ProductType
	Tside              valueobject.Tside
	Denomination       string
	Status             AccountStatus
	Version            int
	ID                 uuid.UUID
}

// ReconstructAccount recreates an Account from persistence (no validation, no events).
func ReconstructAccount(s AccountState) Account {
	balances := valueobject.NewBalanceTimeseries(s.Balances...)
	return Account{
		id:           s.ID,
		productType:  s.ProductType,
		tside:        s.Tside,
		denomination: s.Denomination,
		parameters:   s.Parameters,
		flags:        s.Flags,
		balances:     balances,
		clientTxs:    s.ClientTransactions,
		schedules:    s.Schedules,
		status:       s.Status,
		openedAt:     s.OpenedAt,
		closedAt:     s.ClosedAt,
		updatedAt:    s.UpdatedAt,
		version:      s.Version,
		savedVersion: s.Version,
		savedThrough: balances.LatestTime(),
	}
}

func (a Account) ID() uuid.UUID                             { return a.id }
func (a Account) ProductType() valueobject.ProductType      { return a.productType }
func (a Account) Tside() valueobject.Tside                  { return a.tside }
func (a Account) Denomination() string                      { return a.denomination }
func (a Account) Parameters() valueobject.Parameters        { return a.parameters }
func (a Account) Flags() []valueobject.Flag                 { return a.flags }
func (a Account) Status() AccountStatus                     { return a.status }
func (a Account) IsOpen() bool                              { return a.status == AccountStatusOpen }
func (a Account) OpenedAt() time.Time                       { return a.openedAt }
func (a Account) ClosedAt() time.Time                       { return a.closedAt }
func (a Account) UpdatedAt() time.Time                      { return a.updatedAt }
func (a Account) Version() int                              { return a.version }
func (a Account) SavedVersion() int                         { return a.savedVersion }
func (a Account) Calendar() valueobject.Calendar            { return a.calendar }
func (a Account) Schedules() []valueobject.EventSchedule    { return a.schedules }
func (a Account) Timeseries() valueobject.BalanceTimeseries { return a.balances }

// Balances returns the balances observed at or before t.
func (a Account) Balances(t time.Time) valueobject.BalanceSet { return a.balances.At(t) }

// LatestBalances returns the most recent balances.
func (a Account) LatestBalances() valueobject.BalanceSet { return a.balances.Latest() }

// ActiveFlags returns the names of flags in effect at t.
func (a Account) ActiveFlags(t time.Time) []string {
	var out []string
	for _, f := range a.flags {
		if f.ActiveAt(t) {
			out = append(out, f.Name)
		}
	}
	return out
}

// ClientTransactions returns the client transactions in the order they started.
func (a Account) ClientTransactions() []valueobject.ClientTransaction { return a.clientTxs }

// ClientTransaction looks up a client transaction by id.
func (a Account) ClientTransaction(id string) (valueobject.ClientTransaction, bool) {
	for _, ct := range a.clientTxs {
		if ct.ID == id {
			return ct, true
		}
	}
	return valueobject.ClientTransaction{}, false
}

// Schedule looks up a schedule by event type.
func (a Account) Schedule(eventType string) (valueobject.EventSchedule, bool) {
	for _, s := range a.schedules {
		if s.EventType == eventType {
			return s, true
		}
	}
	return valueobject.EventSchedule{}, false
}

// WithCalendar attaches the holiday calendar contracts and schedules use.
func (a Account) WithCalendar(c valueobject.Calendar) Account {
	a.calendar = c
	return a
}

// ApplyBatch commits batch to the balances at t and files its instructions
// under their client transactions. A t earlier than the latest observation
// is backdated: later observations include the batch. Returns a new Account.
func (a Account) ApplyBatch(batch valueobject.PostingInstructionBatch, t time.Time) (Account, error) {
	if !a.IsOpen() {
		return Account{}, ErrAccountClosed
	}
	if err := batch.ValidateNetZero(); err != nil {
		return Account{}, err
	}
	if batch.ValueTimestamp.IsZero() {
		batch.ValueTimestamp = t
	}

	accountID := a.id.String()
	instructions := make([]valueobject.PostingInstruction, len(batch.Instructions))
	copy(instructions, batch.Instructions)
	batch.Instructions = instructions

	var postings []valueobject.Posting
	for i := range batch.Instructions {
		if batch.Instructions[i].ValueTimestamp.IsZero() {
			batch.Instructions[i].ValueTimestamp = t
		}
		postings = append(postings, batch.Instructions[i].Postings...)
	}

	next := a
	next.balances = a.balances.ApplyAt(t, postings, accountID, a.tside)
	if t.Before(a.savedThrough) {
		next.savedThrough = t
	}
	next.clientTxs = append([]valueobject.ClientTransaction(nil), a.clientTxs...)
	for _, pi := range batch.Instructions {
		if !touches(pi, accountID) {
			continue
		}
		next.clientTxs = fileInstruction(next.clientTxs, pi)
	}
	next.unsaved = append(append([]valueobject.PostingInstructionBatch(nil), a.unsaved...), batch)
	next.version++
	if t.After(a.updatedAt) {
		next.updatedAt = t
	}
	next.Record(event.NewPostingBatchApplied(a.id, batch.ID, batch.ClientBatchID, len(batch.Instructions), t))
	return next, nil
}

func touches(pi valueobject.PostingInstruction, accountID string) bool {
	for _, p := range pi.Postings {
		if p.AccountID == accountID {
			return true
		}
	}
	return false
}

func fileInstruction(txs []valueobject.ClientTransaction, pi valueobject.PostingInstruction) []valueobject.ClientTransaction {
	for i, ct := range txs {
		if ct.ID == pi.ClientTransactionID {
			txs[i] = ct.With(pi)
			return txs
		}
	}
	return append(txs, valueobject.ClientTransaction{ID: pi.ClientTransactionID}.With(pi))
}

// UpdateSchedules replaces schedules with the same event type and adds new ones.
func (a Account) UpdateSchedules(updates []valueobject.EventSchedule, t time.Time) Account {
	if len(updates) == 0 {
		return a
	}
	next := a
	next.schedules = append([]valueobject.EventSchedule(nil), a.schedules...)
	for _, u := range updates {
		replaced := false
		for i, s := range next.schedules {
			if s.EventType == u.EventType {
				next.schedules[i] = u
				replaced = true
				break
			}
		}
		if !replaced {
			next.schedules = append(next.schedules, u)
		}
		next.Record(event.NewScheduleUpdated(a.id, u.EventType, u.NextRunTime, t))
	}
	sort.SliceStable(next.schedules, func(i, j int) bool {
		return next.schedules[i].EventType < next.schedules[j].EventType
	})
	next.version++
	next.updatedAt = t
	return next
}

// AdvanceSchedule rolls eventType's schedule past ranAt.
func (a Account) AdvanceSchedule(eventType string, ranAt time.Time) (Account, error) {
	s, ok := a.Schedule(eventType)
	if !ok {
		return Account{}, fmt.Errorf("account %s has no schedule %q", a.id, eventType)
	}
	s, err := s.Advance(ranAt, a.calendar)
	if err != nil {
		return Account{}, err
	}
	return a.UpdateSchedules([]valueobject.EventSchedule{s}, ranAt), nil
}

// RecordScheduledRun records that scheduled_code ran for eventType.
func (a Account) RecordScheduledRun(eventType string, batches int, t time.Time) Account {
	next := a
	next.Record(event.NewScheduledEventRan(a.id, eventType, batches, t))
	return next
}

// Close marks the account closed and deactivates its schedules.
func (a Account) Close(t time.Time) (Account, error) {
	if !a.IsOpen() {
		return Account{}, ErrAccountClosed
	}
	next := a
	next.schedules = make([]valueobject.EventSchedule, len(a.schedules))
	for i, s := range a.schedules {
		s.NextRunTime = time.Time{}
		next.schedules[i] = s
	}
	next.status = AccountStatusClosed
	next.closedAt = t
	next.updatedAt = t
	next.version++
	next.Record(event.NewAccountClosed(a.id, t))
	return next, nil
}

// UnsavedBatches returns batches applied since the account was loaded.
func (a Account) UnsavedBatches() []valueobject.PostingInstructionBatch { return a.unsaved }

// UnsavedObservations returns balance observations at or after the last persisted one.
func (a Account) UnsavedObservations() []valueobject.BalanceObservation {
	var out []valueobject.BalanceObservation
	for _, o := range a.balances {
		if !o.At.Before(a.savedThrough) {
			out = append(out, o)
		}
	}
	return out
}

// UnsavedClientTransactions returns client transactions touched since the last save.
func (a Account) UnsavedClientTransactions() []valueobject.ClientTransaction {
	var out []valueobject.ClientTransaction
	for _, ct := range a.clientTxs {
		last := ct.Instructions[len(ct.Instructions)-1].ValueTimestamp
		if !last.Before(a.savedThrough) {
			out = append(out, ct)
		}
	}
	return out
}
