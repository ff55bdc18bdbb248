package usecase

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bibbank/bib/services/product-service/internal/application/dto"
	"github.com/bibbank/bib/services/product-service/internal/domain/model"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
	"github.com/bibbank/bib/services/product-service/internal/domain/service"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

// OpenAccount handles opening an account on a registered product.
type OpenAccount struct {
	accounts port.AccountRepository
	loader   AccountLoader
	engine   *service.Engine
}

func NewOpenAccount(accounts port.AccountRepository, loader AccountLoader, engine *service.Engine) *OpenAccount {
	return &OpenAccount{
		accounts: accounts,
		loader:   loader,
		engine:   engine,
	}
}

func (uc *OpenAccount) Execute(ctx context.Context, req dto.OpenAccountRequest) (dto.AccountResponse, error) {
	ctx, span := tracer.Start(ctx, "OpenAccount", trace.WithAttributes(
		attribute.String("product.type", req.ProductType),
	))
	defer span.End()

	contract, err := uc.engine.Contract(valueobject.ProductType(req.ProductType))
	if err != nil {
		return dto.AccountResponse{}, err
	}

	params := req.Parameters.Merge(nil)
	if p, ok := params[service.ParamDenomination]; ok {
		if p.Value != req.Denomination {
			return dto.AccountResponse{}, fmt.Errorf("%w: denomination parameter %q does not match account denomination %q", ErrInvalidInput, p.Value, req.Denomination)
		}
	} else {
		params[service.ParamDenomination] = valueobject.StringParam(req.Denomination)
	}
	if err := contract.ValidateParameters(params); err != nil {
		return dto.AccountResponse{}, fmt.Errorf("%w: parameters: %w", ErrInvalidInput, err)
	}

	flags := make([]valueobject.Flag, 0, len(req.Flags))
	for _, f := range req.Flags {
		flags = append(flags, valueobject.Flag{Name: f.Name, EffectiveFrom: f.EffectiveFrom, EffectiveTo: f.EffectiveTo})
	}

	acc, err := model.NewAccount(req.AccountID, contract.ProductType(), contract.Tside(), req.Denomination, params, flags, req.OpenedAt)
	if err != nil {
		return dto.AccountResponse{}, fmt.Errorf("failed to create account: %w", err)
	}
	cal, err := uc.loader.calendar(ctx)
	if err != nil {
		return dto.AccountResponse{}, err
	}
	acc = acc.WithCalendar(cal)

	res, err := uc.engine.Invoke(service.HookExecutionSchedules, service.HookRequest{
		Account:         acc,
		EffectiveTime:   acc.OpenedAt(),
		HookExecutionID: hookExecutionID(acc.ID(), service.HookExecutionSchedules, acc.OpenedAt()),
	})
	if err != nil {
		return dto.AccountResponse{}, fmt.Errorf("failed to compute schedules: %w", err)
	}
	acc = acc.UpdateSchedules(res.ScheduleUpdates, acc.OpenedAt())

	if err := uc.accounts.Save(ctx, acc); err != nil {
		return dto.AccountResponse{}, fmt.Errorf("failed to save account: %w", err)
	}

	span.SetAttributes(attribute.String("account.id", acc.ID().String()))
	return toAccountResponse(acc, time.Time{}), nil
}
