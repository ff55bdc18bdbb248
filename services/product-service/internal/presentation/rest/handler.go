package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bibbank/bib/services/product-service/internal/application/dto"
	"github.com/bibbank/bib/services/product-service/internal/application/usecase"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
)

// AccountHandler serves the read APIs for accounts and holiday calendars.
type AccountHandler struct {
	getAccount    *usecase.GetAccount
	listSchedules *usecase.ListSchedules
	listBatches   *usecase.ListBatches
	getCalendar   *usecase.GetCalendar
	saveCalendar  *usecase.SaveCalendar
	logger        *slog.Logger
}

func NewAccountHandler(
	getAccount *usecase.GetAccount,
	listSchedules *usecase.ListSchedules,
	listBatches *usecase.ListBatches,
	getCalendar *usecase.GetCalendar,
	saveCalendar *usecase.SaveCalendar,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		getAccount:    getAccount,
		listSchedules: listSchedules,
		listBatches:   listBatches,
		getCalendar:   getCalendar,
		saveCalendar:  saveCalendar,
		logger:        logger,
	}
}

type balanceJSON struct {
	Address      string `json:"address"`
	Asset        string `json:"asset"`
	Denomination string `json:"denomination"`
	Phase        string `json:"phase"`
	Credit       string `json:"credit"`
	Debit        string `json:"debit"`
	Net          string `json:"net"`
}

type scheduleJSON struct {
	NextRunTime *time.Time `json:"next_run_time,omitempty"`
	EventType   string     `json:"event_type"`
	Frequency   string     `json:"frequency"`
	Active      bool       `json:"active"`
}

type flagJSON struct {
	EffectiveFrom *time.Time `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	Name          string     `json:"name"`
}

type accountJSON struct {
	OpenedAt     time.Time      `json:"opened_at"`
	ClosedAt     *time.Time     `json:"closed_at,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
	ID           string         `json:"id"`
	ProductType  string         `json:"product_type"`
	Tside        string         `json:"tside"`
	Denomination string         `json:"denomination"`
	Status       string         `json:"status"`
	Flags        []flagJSON     `json:"flags"`
	Balances     []balanceJSON  `json:"balances"`
	Schedules    []scheduleJSON `json:"schedules"`
	Version      int            `json:"version"`
}

type schedulesJSON struct {
	AccountID string         `json:"account_id"`
	Schedules []scheduleJSON `json:"schedules"`
}

type batchJSON struct {
	ValueTimestamp time.Time `json:"value_timestamp"`
	ID             string    `json:"id"`
	ClientBatchID  string    `json:"client_batch_id"`
	Instructions   int       `json:"instructions"`
}

type batchesJSON struct {
	AccountID string      `json:"account_id"`
	Batches   []batchJSON `json:"batches"`
}

type calendarEventJSON struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	ID    string    `json:"id"`
}

type calendarJSON struct {
	CalendarID string              `json:"calendar_id"`
	Events     []calendarEventJSON `json:"events"`
}

type errorJSON struct {
	Error string `json:"error"`
}

// GetAccount handles GET /v1/accounts/{id}. The optional at query parameter
// (RFC 3339) reads balances at a point in time.
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	var at time.Time
	if raw := r.URL.Query().Get("at"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid at: use RFC 3339")
			return
		}
		at = t
	}

	result, err := h.getAccount.Execute(r.Context(), dto.GetAccountRequest{AccountID: id, At: at})
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountJSON(result))
}

// ListSchedules handles GET /v1/accounts/{id}/schedules.
func (h *AccountHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	result, err := h.listSchedules.Execute(r.Context(), dto.ListSchedulesRequest{AccountID: id})
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedulesJSON{AccountID: result.AccountID.String(), Schedules: toScheduleJSON(result.Schedules)})
}

// ListBatches handles GET /v1/accounts/{id}/batches?limit=N.
func (h *AccountHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	result, err := h.listBatches.Execute(r.Context(), dto.ListBatchesRequest{AccountID: id, Limit: limit})
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	out := batchesJSON{AccountID: result.AccountID.String(), Batches: make([]batchJSON, 0, len(result.Batches))}
	for _, b := range result.Batches {
		out.Batches = append(out.Batches, batchJSON{
			ID:             b.ID.String(),
			ClientBatchID:  b.ClientBatchID,
			ValueTimestamp: b.ValueTimestamp,
			Instructions:   b.Instructions,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCalendar handles GET /v1/calendars/{id}.
func (h *AccountHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	result, err := h.getCalendar.Execute(r.Context(), dto.GetCalendarRequest{CalendarID: chi.URLParam(r, "id")})
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCalendarJSON(result))
}

// PutCalendar handles PUT /v1/calendars/{id}, replacing every event.
func (h *AccountHandler) PutCalendar(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Events []calendarEventJSON `json:"events"`
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := dto.SaveCalendarRequest{CalendarID: chi.URLParam(r, "id")}
	for _, e := range body.Events {
		req.Events = append(req.Events, dto.CalendarEventDTO{ID: e.ID, Start: e.Start, End: e.End})
	}
	result, err := h.saveCalendar.Execute(r.Context(), req)
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCalendarJSON(result))
}

func (h *AccountHandler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, port.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, usecase.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(ctx, "request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func accountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return uuid.Nil, false
	}
	return id, true
}

func toAccountJSON(r dto.AccountResponse) accountJSON {
	out := accountJSON{
		ID:           r.ID.String(),
		ProductType:  r.ProductType,
		Tside:        r.Tside,
		Denomination: r.Denomination,
		Status:       r.Status,
		OpenedAt:     r.OpenedAt,
		ClosedAt:     optionalTime(r.ClosedAt),
		UpdatedAt:    r.UpdatedAt,
		Version:      r.Version,
		Flags:        make([]flagJSON, 0, len(r.Flags)),
		Balances:     make([]balanceJSON, 0, len(r.Balances)),
		Schedules:    toScheduleJSON(r.Schedules),
	}
	for _, f := range r.Flags {
		out.Flags = append(out.Flags, flagJSON{Name: f.Name, EffectiveFrom: optionalTime(f.EffectiveFrom), EffectiveTo: optionalTime(f.EffectiveTo)})
	}
	for _, b := range r.Balances {
		out.Balances = append(out.Balances, balanceJSON{
			Address:      b.Address,
			Asset:        b.Asset,
			Denomination: b.Denomination,
			Phase:        b.Phase,
			Credit:       b.Credit.String(),
			Debit:        b.Debit.String(),
			Net:          b.Net.String(),
		})
	}
	return out
}

func toScheduleJSON(schedules []dto.ScheduleDTO) []scheduleJSON {
	out := make([]scheduleJSON, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, scheduleJSON{
			EventType:   s.EventType,
			Frequency:   s.Frequency,
			NextRunTime: optionalTime(s.NextRunTime),
			Active:      s.Active,
		})
	}
	return out
}

func toCalendarJSON(r dto.CalendarResponse) calendarJSON {
	out := calendarJSON{CalendarID: r.CalendarID, Events: make([]calendarEventJSON, 0, len(r.Events))}
	for _, e := range r.Events {
		out.Events = append(out.Events, calendarEventJSON{ID: e.ID, Start: e.Start, End: e.End})
	}
	return out
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorJSON{Error: msg})
}
