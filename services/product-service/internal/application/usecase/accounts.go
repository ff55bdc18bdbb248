package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/bibbank/bib/services/product-service/internal/application/dto"
	"github.com/bibbank/bib/services/product-service/internal/domain/model"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
	"github.com/bibbank/bib/services/product-service/internal/domain/service"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

const TopicProductEvents = "bib.product.events"

// ErrInvalidInput marks requests rejected before any contract code runs.
var ErrInvalidInput = errors.New("invalid input")

var tracer = otel.Tracer("github.com/bibbank/bib/services/product-service/usecase")

// AccountLoader reads accounts and attaches the bank holiday calendar.
type AccountLoader struct {
	accounts   port.AccountRepository
	calendars  port.CalendarRepository
	calendarID string
}

func NewAccountLoader(accounts port.AccountRepository, calendars port.CalendarRepository, calendarID string) AccountLoader {
	return AccountLoader{accounts: accounts, calendars: calendars, calendarID: calendarID}
}

// Load returns the account with its calendar attached.
func (l AccountLoader) Load(ctx context.Context, id uuid.UUID) (model.Account, error) {
	acc, err := l.accounts.FindByID(ctx, id)
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to load account %s: %w", id, err)
	}
	cal, err := l.calendar(ctx)
	if err != nil {
		return model.Account{}, err
	}
	return acc.WithCalendar(cal), nil
}

func (l AccountLoader) calendar(ctx context.Context) (valueobject.Calendar, error) {
	if l.calendars == nil || l.calendarID == "" {
		return nil, nil
	}
	cal, err := l.calendars.FindByID(ctx, l.calendarID)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar %s: %w", l.calendarID, err)
	}
	return cal, nil
}

// hookExecutionID names one run of a hook so retries generate the same
// client transaction and batch ids.
func hookExecutionID(accountID uuid.UUID, name string, at time.Time) string {
	key := accountID.String() + "/" + name + "/" + at.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// applyResult commits the batches and schedule updates a hook returned.
func applyResult(acc model.Account, res service.HookResult, at time.Time) (model.Account, error) {
	for _, b := range res.Batches {
		next, err := acc.ApplyBatch(b, at)
		if err != nil {
			return model.Account{}, fmt.Errorf("failed to apply batch %s: %w", b.ClientBatchID, err)
		}
		acc = next
	}
	return acc.UpdateSchedules(res.ScheduleUpdates, at), nil
}

func toAccountResponse(acc model.Account, at time.Time) dto.AccountResponse {
	set := acc.LatestBalances()
	if !at.IsZero() {
		set = acc.Balances(at)
	}
	flags := make([]dto.FlagDTO, 0, len(acc.Flags()))
	for _, f := range acc.Flags() {
		flags = append(flags, dto.FlagDTO{Name: f.Name, EffectiveFrom: f.EffectiveFrom, EffectiveTo: f.EffectiveTo})
	}
	return dto.AccountResponse{
		ID:           acc.ID(),
		ProductType:  string(acc.ProductType()),
		Tside:        string(acc.Tside()),
		Denomination: acc.Denomination(),
		Status:       string(acc.Status()),
		Flags:        flags,
		Balances:     toBalanceDTOs(set),
		Schedules:    toScheduleDTOs(acc.Schedules()),
		OpenedAt:     acc.OpenedAt(),
		ClosedAt:     acc.ClosedAt(),
		UpdatedAt:    acc.UpdatedAt(),
		Version:      acc.Version(),
	}
}

func toBalanceDTOs(set valueobject.BalanceSet) []dto.BalanceDTO {
	out := make([]dto.BalanceDTO, 0, len(set))
	for c, b := range set {
		out = append(out, dto.BalanceDTO{
			Address:      c.Address,
			Asset:        c.Asset,
			Denomination: c.Denomination,
			Phase:        string(c.Phase),
			Credit:       b.Credit,
			Debit:        b.Debit,
			Net:          b.Net,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Address != out[j].Address {
			return out[i].Address < out[j].Address
		}
		if out[i].Denomination != out[j].Denomination {
			return out[i].Denomination < out[j].Denomination
		}
		return out[i].Phase < out[j].Phase
	})
	return out
}

func toScheduleDTOs(schedules []valueobject.EventSchedule) []dto.ScheduleDTO {
	out := make([]dto.ScheduleDTO, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, dto.ScheduleDTO{
			EventType:   s.EventType,
			Frequency:   string(s.Frequency),
			NextRunTime: s.NextRunTime,
			Active:      s.Active(),
		})
	}
	return out
}

func toBatchDTOs(batches []valueobject.PostingInstructionBatch) []dto.BatchDTO {
	out := make([]dto.BatchDTO, 0, len(batches))
	for _, b := range batches {
		out = append(out, dto.BatchDTO{
			ID:             b.ID,
			ClientBatchID:  b.ClientBatchID,
			Instructions:   len(b.Instructions),
			ValueTimestamp: b.ValueTimestamp,
		})
	}
	return out
}
