package usecase

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bibbank/bib/services/product-service/internal/application/dto"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
	"github.com/bibbank/bib/services/product-service/internal/domain/service"
)

// CloseAccount runs close_code and marks the account closed.
type CloseAccount struct {
	accounts port.AccountRepository
	loader   AccountLoader
	metrics  port.Metrics
	engine   *service.Engine
}

func NewCloseAccount(accounts port.AccountRepository, loader AccountLoader, metrics port.Metrics, engine *service.Engine) *CloseAccount {
	return &CloseAccount{
		accounts: accounts,
		loader:   loader,
		metrics:  metrics,
		engine:   engine,
	}
}

func (uc *CloseAccount) Execute(ctx context.Context, req dto.CloseAccountRequest) (dto.AccountResponse, error) {
	ctx, span := tracer.Start(ctx, "CloseAccount", trace.WithAttributes(
		attribute.String("account.id", req.AccountID.String()),
	))
	defer span.End()

	acc, err := uc.loader.Load(ctx, req.AccountID)
	if err != nil {
		return dto.AccountResponse{}, err
	}

	effective := req.EffectiveTime
	if effective.IsZero() {
		effective = time.Now().UTC()
	}

	res, err := uc.engine.Invoke(service.HookClose, service.HookRequest{
		Account:         acc,
		EffectiveTime:   effective,
		HookExecutionID: hookExecutionID(acc.ID(), service.HookClose, effective),
	})
	if err != nil {
		return dto.AccountResponse{}, fmt.Errorf("close checks failed: %w", err)
	}
	acc, err = applyResult(acc, res, effective)
	if err != nil {
		return dto.AccountResponse{}, err
	}
	acc, err = acc.Close(effective)
	if err != nil {
		return dto.AccountResponse{}, fmt.Errorf("failed to close account: %w", err)
	}

	if err := uc.accounts.Save(ctx, acc); err != nil {
		return dto.AccountResponse{}, fmt.Errorf("failed to save account: %w", err)
	}
	if len(res.Batches) > 0 {
		uc.metrics.PostingBatches(ctx, string(acc.ProductType()), service.HookClose, len(res.Batches))
	}

	return toAccountResponse(acc, time.Time{}), nil
}
