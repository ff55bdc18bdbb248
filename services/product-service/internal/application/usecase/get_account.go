package usecase

import (
	"context"

	"github.com/bibbank/bib/services/product-service/internal/application/dto"
)

// GetAccount reads an account with its balances at a point in time.
type GetAccount struct {
	loader AccountLoader
}

func NewGetAccount(loader AccountLoader) *GetAccount {
	return &GetAccount{loader: loader}
}

func (uc *GetAccount) Execute(ctx context.Context, req dto.GetAccountRequest) (dto.AccountResponse, error) {
	acc, err := uc.loader.Load(ctx, req.AccountID)
	if err != nil {
		return dto.AccountResponse{}, err
	}
	return toAccountResponse(acc, req.At), nil
}
