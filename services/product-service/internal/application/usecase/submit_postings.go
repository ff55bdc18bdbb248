package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bibbank/bib/services/product-service/internal/application/dto"
	"github.com/bibbank/bib/services/product-service/internal/domain/event"
	"github.com/bibbank/bib/services/product-service/internal/domain/model"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
	"github.com/bibbank/bib/services/product-service/internal/domain/service"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

// SubmitPostings runs a customer posting batch through an account's contract.
type SubmitPostings struct {
	accounts  port.AccountRepository
	loader    AccountLoader
	publisher port.EventPublisher
	metrics   port.Metrics
	engine    *service.Engine
	logger    *slog.Logger
}

func NewSubmitPostings(
	accounts port.AccountRepository,
	loader AccountLoader,
	publisher port.EventPublisher,
	metrics port.Metrics,
	engine *service.Engine,
	logger *slog.Logger,
) *SubmitPostings {
	return &SubmitPostings{
		accounts:  accounts,
		loader:    loader,
		publisher: publisher,
		metrics:   metrics,
		engine:    engine,
		logger:    logger.With("component", "submit_postings"),
	}
}

func (uc *SubmitPostings) Execute(ctx context.Context, req dto.SubmitPostingsRequest) (dto.SubmitPostingsResponse, error) {
	ctx, span := tracer.Start(ctx, "SubmitPostings", trace.WithAttributes(
		attribute.String("account.id", req.AccountID.String()),
		attribute.String("batch.client_id", req.ClientBatchID),
	))
	defer span.End()

	if len(req.Instructions) == 0 {
		return dto.SubmitPostingsResponse{}, fmt.Errorf("%w: batch has no instructions", ErrInvalidInput)
	}

	acc, err := uc.loader.Load(ctx, req.AccountID)
	if err != nil {
		return dto.SubmitPostingsResponse{}, err
	}
	if !acc.IsOpen() {
		return dto.SubmitPostingsResponse{}, model.ErrAccountClosed
	}

	effective := req.ValueTimestamp
	if effective.IsZero() {
		effective = time.Now().UTC()
	}

	batch := valueobject.PostingInstructionBatch{
		ID:             uuid.New(),
		ClientBatchID:  req.ClientBatchID,
		ValueTimestamp: effective,
	}
	for _, in := range req.Instructions {
		typ, err := valueobject.ParseInstructionType(in.Type)
		if err != nil {
			return dto.SubmitPostingsResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		denomination := in.Denomination
		if denomination == "" {
			denomination = acc.Denomination()
		}
		instr := valueobject.InstructionSpec{
			Type:                typ,
			ClientTransactionID: in.ClientTransactionID,
			AccountID:           acc.ID().String(),
			CounterpartyID:      in.CounterpartyID,
			Amount:              in.Amount,
			Denomination:        denomination,
			Final:               in.Final,
			Details:             in.Details,
		}
		var existing *valueobject.ClientTransaction
		if ct, ok := acc.ClientTransaction(in.ClientTransactionID); ok {
			existing = &ct
		}
		pi, err := valueobject.BuildInstruction(instr, existing)
		if err != nil {
			return dto.SubmitPostingsResponse{}, fmt.Errorf("%w: instruction %s: %w", ErrInvalidInput, in.ClientTransactionID, err)
		}
		pi.ValueTimestamp = effective
		batch.Instructions = append(batch.Instructions, pi)
	}

	product := string(acc.ProductType())
	_, err = uc.engine.Invoke(service.HookPrePosting, service.HookRequest{
		Account:         acc,
		Batch:           &batch,
		EffectiveTime:   effective,
		HookExecutionID: hookExecutionID(acc.ID(), service.HookPrePosting+"/"+batch.ID.String(), effective),
	})
	if rejection, ok := valueobject.AsRejection(err); ok {
		return uc.reject(ctx, span, acc.ID(), product, batch, rejection), nil
	}
	if err != nil {
		return dto.SubmitPostingsResponse{}, fmt.Errorf("pre-posting checks failed: %w", err)
	}

	acc, err = acc.ApplyBatch(batch, effective)
	if err != nil {
		return dto.SubmitPostingsResponse{}, fmt.Errorf("failed to apply batch: %w", err)
	}

	res, err := uc.engine.Invoke(service.HookPostPosting, service.HookRequest{
		Account:         acc,
		Batch:           &batch,
		EffectiveTime:   effective,
		HookExecutionID: hookExecutionID(acc.ID(), service.HookPostPosting+"/"+batch.ID.String(), effective),
	})
	if err != nil {
		return dto.SubmitPostingsResponse{}, fmt.Errorf("post-posting failed: %w", err)
	}
	acc, err = applyResult(acc, res, effective)
	if err != nil {
		return dto.SubmitPostingsResponse{}, err
	}

	if err := uc.accounts.Save(ctx, acc); err != nil {
		return dto.SubmitPostingsResponse{}, fmt.Errorf("failed to save account: %w", err)
	}

	uc.metrics.PostingBatches(ctx, product, service.HookPrePosting, 1)
	if len(res.Batches) > 0 {
		uc.metrics.PostingBatches(ctx, product, service.HookPostPosting, len(res.Batches))
	}

	batches := append([]valueobject.PostingInstructionBatch{batch}, res.Batches...)
	return dto.SubmitPostingsResponse{
		Accepted: true,
		BatchID:  batch.ID,
		Batches:  toBatchDTOs(batches),
		Balances: toBalanceDTOs(acc.LatestBalances()),
	}, nil
}

func (uc *SubmitPostings) reject(
	ctx context.Context,
	span trace.Span,
	accountID uuid.UUID,
	product string,
	batch valueobject.PostingInstructionBatch,
	rejection valueobject.Rejection,
) dto.SubmitPostingsResponse {
	span.SetStatus(codes.Error, string(rejection.Reason))
	uc.logger.InfoContext(ctx, "posting batch rejected",
		"account_id", accountID,
		"client_batch_id", batch.ClientBatchID,
		"reason", rejection.Reason,
		"message", rejection.Message,
	)
	uc.metrics.PostingsRejected(ctx, product, string(rejection.Reason))

	evt := event.NewPostingsRejected(accountID, batch.ClientBatchID, string(rejection.Reason), rejection.Message, batch.ValueTimestamp)
	if err := uc.publisher.Publish(ctx, TopicProductEvents, evt); err != nil {
		uc.logger.ErrorContext(ctx, "failed to publish rejection", "account_id", accountID, "error", err)
	}

	return dto.SubmitPostingsResponse{
		BatchID: batch.ID,
		Rejection: &dto.RejectionDTO{
			Reason:  string(rejection.Reason),
			Message: rejection.Message,
		},
	}
}
