package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/bibbank/bib/services/product-service/internal/application/dto"
	"github.com/bibbank/bib/services/product-service/internal/application/usecase"
	"github.com/bibbank/bib/services/product-service/internal/domain/model"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
	"github.com/bibbank/bib/services/product-service/internal/domain/service"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

// Compile-time assertion that ProductHandler implements ProductServiceServer.
var _ ProductServiceServer = (*ProductHandler)(nil)

// ProductHandler implements the gRPC ProductServiceServer interface.
type ProductHandler struct {
	UnimplementedProductServiceServer
	openAccount    *usecase.OpenAccount
	getAccount     *usecase.GetAccount
	submitPostings *usecase.SubmitPostings
	runScheduled   *usecase.RunScheduledEvent
	closeAccount   *usecase.CloseAccount
	listSchedules  *usecase.ListSchedules
	logger         *slog.Logger
}

func NewProductHandler(
	openAccount *usecase.OpenAccount,
	getAccount *usecase.GetAccount,
	submitPostings *usecase.SubmitPostings,
	runScheduled *usecase.RunScheduledEvent,
	closeAccount *usecase.CloseAccount,
	listSchedules *usecase.ListSchedules,
	logger *slog.Logger,
) *ProductHandler {
	return &ProductHandler{
		openAccount:    openAccount,
		getAccount:     getAccount,
		submitPostings: submitPostings,
		runScheduled:   runScheduled,
		closeAccount:   closeAccount,
		listSchedules:  listSchedules,
		logger:         logger,
	}
}

// Proto-aligned request/response message types.

type ParameterMsg struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
	IsSet bool   `json:"is_set,omitempty"`
}

type FlagMsg struct {
	Name          string                 `json:"name"`
	EffectiveFrom *timestamppb.Timestamp `json:"effective_from,omitempty"`
	EffectiveTo   *timestamppb.Timestamp `json:"effective_to,omitempty"`
}

type BalanceMsg struct {
	Address      string `json:"address"`
	Asset        string `json:"asset"`
	Denomination string `json:"denomination"`
	Phase        string `json:"phase"`
	Credit       string `json:"credit"`
	Debit        string `json:"debit"`
	Net          string `json:"net"`
}

type ScheduleMsg struct {
	EventType   string                 `json:"event_type"`
	Frequency   string                 `json:"frequency"`
	NextRunTime *timestamppb.Timestamp `json:"next_run_time,omitempty"`
	Active      bool                   `json:"active"`
}

type AccountMsg struct {
	ID           string                 `json:"id"`
	ProductType  string                 `json:"product_type"`
	Tside        string                 `json:"tside"`
	Denomination string                 `json:"denomination"`
	Status       string                 `json:"status"`
	OpenedAt     *timestamppb.Timestamp `json:"opened_at,omitempty"`
	ClosedAt     *timestamppb.Timestamp `json:"closed_at,omitempty"`
	UpdatedAt    *timestamppb.Timestamp `json:"updated_at,omitempty"`
	Flags        []*FlagMsg             `json:"flags,omitempty"`
	Balances     []*BalanceMsg          `json:"balances,omitempty"`
	Schedules    []*ScheduleMsg         `json:"schedules,omitempty"`
	Version      int64                  `json:"version"`
}

type BatchMsg struct {
	ID             string                 `json:"id"`
	ClientBatchID  string                 `json:"client_batch_id"`
	ValueTimestamp *timestamppb.Timestamp `json:"value_timestamp,omitempty"`
	Instructions   int32                  `json:"instructions"`
}

type RejectionMsg struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type InstructionMsg struct {
	Type                string            `json:"type"`
	ClientTransactionID string            `json:"client_transaction_id"`
	CounterpartyID      string            `json:"counterparty_id,omitempty"`
	Amount              string            `json:"amount,omitempty"`
	Denomination        string            `json:"denomination,omitempty"`
	Details             map[string]string `json:"details,omitempty"`
	Final               bool              `json:"final,omitempty"`
}

type OpenAccountRequest struct {
	AccountID    string                   `json:"account_id,omitempty"`
	ProductType  string                   `json:"product_type"`
	Denomination string                   `json:"denomination"`
	Parameters   map[string]*ParameterMsg `json:"parameters,omitempty"`
	Flags        []*FlagMsg               `json:"flags,omitempty"`
	OpenedAt     *timestamppb.Timestamp   `json:"opened_at,omitempty"`
}

type OpenAccountResponse struct {
	Account *AccountMsg `json:"account"`
}

type GetAccountRequest struct {
	AccountID string                 `json:"account_id"`
	At        *timestamppb.Timestamp `json:"at,omitempty"`
}

type GetAccountResponse struct {
	Account *AccountMsg `json:"account"`
}

type SubmitPostingsRequest struct {
	AccountID      string                 `json:"account_id"`
	ClientBatchID  string                 `json:"client_batch_id"`
	ValueTimestamp *timestamppb.Timestamp `json:"value_timestamp,omitempty"`
	Instructions   []*InstructionMsg      `json:"instructions"`
}

type SubmitPostingsResponse struct {
	BatchID   string        `json:"batch_id,omitempty"`
	Rejection *RejectionMsg `json:"rejection,omitempty"`
	Batches   []*BatchMsg   `json:"batches,omitempty"`
	Balances  []*BalanceMsg `json:"balances,omitempty"`
	Accepted  bool          `json:"accepted"`
}

type RunScheduledEventRequest struct {
	AccountID     string                 `json:"account_id"`
	EventType     string                 `json:"event_type"`
	EffectiveTime *timestamppb.Timestamp `json:"effective_time,omitempty"`
}

type RunScheduledEventResponse struct {
	AccountID     string                 `json:"account_id"`
	EventType     string                 `json:"event_type"`
	EffectiveTime *timestamppb.Timestamp `json:"effective_time,omitempty"`
	NextRunTime   *timestamppb.Timestamp `json:"next_run_time,omitempty"`
	Batches       []*BatchMsg            `json:"batches,omitempty"`
}

type CloseAccountRequest struct {
	AccountID     string                 `json:"account_id"`
	EffectiveTime *timestamppb.Timestamp `json:"effective_time,omitempty"`
}

type CloseAccountResponse struct {
	Account *AccountMsg `json:"account"`
}

type ListSchedulesRequest struct {
	AccountID string `json:"account_id"`
}

type ListSchedulesResponse struct {
	AccountID string         `json:"account_id"`
	Schedules []*ScheduleMsg `json:"schedules,omitempty"`
}

// OpenAccount opens an account on a registered product.
func (h *ProductHandler) OpenAccount(ctx context.Context, req *OpenAccountRequest) (*OpenAccountResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.ProductType == "" || req.Denomination == "" {
		return nil, status.Error(codes.InvalidArgument, "product_type and denomination are required")
	}

	var accountID uuid.UUID
	if req.AccountID != "" {
		id, err := uuid.Parse(req.AccountID)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid account_id: %v", err)
		}
		accountID = id
	}

	params := make(valueobject.Parameters, len(req.Parameters))
	for name, p := range req.Parameters {
		if p == nil {
			continue
		}
		params[name] = valueobject.Parameter{Kind: valueobject.ParameterKind(p.Kind), Value: p.Value, IsSet: p.IsSet}
	}
	flags := make([]dto.FlagDTO, 0, len(req.Flags))
	for _, f := range req.Flags {
		if f == nil || f.Name == "" {
			return nil, status.Error(codes.InvalidArgument, "flag name is required")
		}
		flags = append(flags, dto.FlagDTO{Name: f.Name, EffectiveFrom: fromTimestamp(f.EffectiveFrom), EffectiveTo: fromTimestamp(f.EffectiveTo)})
	}

	openedAt := fromTimestamp(req.OpenedAt)
	if openedAt.IsZero() {
		openedAt = time.Now().UTC()
	}

	result, err := h.openAccount.Execute(ctx, dto.OpenAccountRequest{
		AccountID:    accountID,
		ProductType:  req.ProductType,
		Denomination: req.Denomination,
		Parameters:   params,
		Flags:        flags,
		OpenedAt:     openedAt,
	})
	if err != nil {
		return nil, h.toStatus(ctx, "OpenAccount", err)
	}

	return &OpenAccountResponse{Account: toAccountMsg(result)}, nil
}

// GetAccount returns an account with its balances, latest or at a point in time.
func (h *ProductHandler) GetAccount(ctx context.Context, req *GetAccountRequest) (*GetAccountResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid account_id: %v", err)
	}

	result, err := h.getAccount.Execute(ctx, dto.GetAccountRequest{
		AccountID: accountID,
		At:        fromTimestamp(req.At),
	})
	if err != nil {
		return nil, h.toStatus(ctx, "GetAccount", err)
	}

	return &GetAccountResponse{Account: toAccountMsg(result)}, nil
}

// SubmitPostings submits a posting batch. A batch refused by pre-posting
// checks is a successful call with Accepted false.
func (h *ProductHandler) SubmitPostings(ctx context.Context, req *SubmitPostingsRequest) (*SubmitPostingsResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid account_id: %v", err)
	}
	if len(req.Instructions) == 0 {
		return nil, status.Error(codes.InvalidArgument, "at least one instruction is required")
	}

	instructions := make([]dto.InstructionDTO, 0, len(req.Instructions))
	for i, in := range req.Instructions {
		if in == nil {
			return nil, status.Errorf(codes.InvalidArgument, "instruction %d is empty", i)
		}
		if in.ClientTransactionID == "" {
			return nil, status.Errorf(codes.InvalidArgument, "instruction %d: client_transaction_id is required", i)
		}
		amount := decimal.Zero
		if in.Amount != "" {
			amount, err = decimal.NewFromString(in.Amount)
			if err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "instruction %d: invalid amount: %v", i, err)
			}
			if amount.IsNegative() {
				return nil, status.Errorf(codes.InvalidArgument, "instruction %d: amount must not be negative", i)
			}
		}
		instructions = append(instructions, dto.InstructionDTO{
			Type:                in.Type,
			ClientTransactionID: in.ClientTransactionID,
			CounterpartyID:      in.CounterpartyID,
			Amount:              amount,
			Denomination:        in.Denomination,
			Final:               in.Final,
			Details:             in.Details,
		})
	}

	result, err := h.submitPostings.Execute(ctx, dto.SubmitPostingsRequest{
		AccountID:      accountID,
		ClientBatchID:  req.ClientBatchID,
		ValueTimestamp: fromTimestamp(req.ValueTimestamp),
		Instructions:   instructions,
	})
	if err != nil {
		return nil, h.toStatus(ctx, "SubmitPostings", err)
	}

	resp := &SubmitPostingsResponse{
		Accepted: result.Accepted,
		Batches:  toBatchMsgs(result.Batches),
		Balances: toBalanceMsgs(result.Balances),
	}
	if result.BatchID != uuid.Nil {
		resp.BatchID = result.BatchID.String()
	}
	if result.Rejection != nil {
		resp.Rejection = &RejectionMsg{Reason: result.Rejection.Reason, Message: result.Rejection.Message}
	}
	return resp, nil
}

// RunScheduledEvent runs one scheduled event of an account on demand.
func (h *ProductHandler) RunScheduledEvent(ctx context.Context, req *RunScheduledEventRequest) (*RunScheduledEventResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid account_id: %v", err)
	}
	if req.EventType == "" {
		return nil, status.Error(codes.InvalidArgument, "event_type is required")
	}

	result, err := h.runScheduled.Execute(ctx, dto.RunScheduledEventRequest{
		AccountID:     accountID,
		EventType:     req.EventType,
		EffectiveTime: fromTimestamp(req.EffectiveTime),
	})
	if err != nil {
		return nil, h.toStatus(ctx, "RunScheduledEvent", err)
	}

	return &RunScheduledEventResponse{
		AccountID:     result.AccountID.String(),
		EventType:     result.EventType,
		EffectiveTime: toTimestamp(result.EffectiveTime),
		NextRunTime:   toTimestamp(result.NextRunTime),
		Batches:       toBatchMsgs(result.Batches),
	}, nil
}

// CloseAccount runs the product's close checks and closes the account.
func (h *ProductHandler) CloseAccount(ctx context.Context, req *CloseAccountRequest) (*CloseAccountResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid account_id: %v", err)
	}

	result, err := h.closeAccount.Execute(ctx, dto.CloseAccountRequest{
		AccountID:     accountID,
		EffectiveTime: fromTimestamp(req.EffectiveTime),
	})
	if err != nil {
		return nil, h.toStatus(ctx, "CloseAccount", err)
	}

	return &CloseAccountResponse{Account: toAccountMsg(result)}, nil
}

// ListSchedules returns the event schedules of an account.
func (h *ProductHandler) ListSchedules(ctx context.Context, req *ListSchedulesRequest) (*ListSchedulesResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid account_id: %v", err)
	}

	result, err := h.listSchedules.Execute(ctx, dto.ListSchedulesRequest{AccountID: accountID})
	if err != nil {
		return nil, h.toStatus(ctx, "ListSchedules", err)
	}

	return &ListSchedulesResponse{
		AccountID: result.AccountID.String(),
		Schedules: toScheduleMsgs(result.Schedules),
	}, nil
}

// toStatus maps use case errors onto gRPC codes. Unexpected errors are logged
// and hidden behind codes.Internal.
func (h *ProductHandler) toStatus(ctx context.Context, method string, err error) error {
	if r, ok := valueobject.AsRejection(err); ok {
		return status.Errorf(codes.FailedPrecondition, "%s: %s", r.Reason, r.Message)
	}
	switch {
	case errors.Is(err, port.ErrAccountNotFound), errors.Is(err, usecase.ErrScheduleNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, usecase.ErrInvalidInput), errors.Is(err, service.ErrUnknownProduct),
		errors.Is(err, service.ErrUnknownEvent):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, model.ErrAccountClosed), errors.Is(err, usecase.ErrScheduleInactive), errors.Is(err, usecase.ErrScheduleNotDue),
		errors.Is(err, service.ErrOutstandingBalance):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, port.ErrVersionConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	h.logger.ErrorContext(ctx, "request failed", "method", method, "error", err)
	return status.Error(codes.Internal, "internal error")
}

func toAccountMsg(r dto.AccountResponse) *AccountMsg {
	msg := &AccountMsg{
		ID:           r.ID.String(),
		ProductType:  r.ProductType,
		Tside:        r.Tside,
		Denomination: r.Denomination,
		Status:       r.Status,
		OpenedAt:     toTimestamp(r.OpenedAt),
		ClosedAt:     toTimestamp(r.ClosedAt),
		UpdatedAt:    toTimestamp(r.UpdatedAt),
		Balances:     toBalanceMsgs(r.Balances),
		Schedules:    toScheduleMsgs(r.Schedules),
		Version:      int64(r.Version),
	}
	for _, f := range r.Flags {
		msg.Flags = append(msg.Flags, &FlagMsg{
			Name:          f.Name,
			EffectiveFrom: toTimestamp(f.EffectiveFrom),
			EffectiveTo:   toTimestamp(f.EffectiveTo),
		})
	}
	return msg
}

func toBalanceMsgs(balances []dto.BalanceDTO) []*BalanceMsg {
	out := make([]*BalanceMsg, 0, len(balances))
	for _, b := range balances {
		out = append(out, &BalanceMsg{
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

func toScheduleMsgs(schedules []dto.ScheduleDTO) []*ScheduleMsg {
	out := make([]*ScheduleMsg, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, &ScheduleMsg{
			EventType:   s.EventType,
			Frequency:   s.Frequency,
			NextRunTime: toTimestamp(s.NextRunTime),
			Active:      s.Active,
		})
	}
	return out
}

func toBatchMsgs(batches []dto.BatchDTO) []*BatchMsg {
	out := make([]*BatchMsg, 0, len(batches))
	for _, b := range batches {
		out = append(out, &BatchMsg{
			ID:             b.ID.String(),
			ClientBatchID:  b.ClientBatchID,
			ValueTimestamp: toTimestamp(b.ValueTimestamp),
			Instructions:   int32(b.Instructions), //nolint:gosec
		})
	}
	return out
}

func toTimestamp(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}

func fromTimestamp(ts *timestamppb.Timestamp) time.Time {
	if ts == nil {
		return time.Time{}
	}
	return ts.AsTime()
}
