package usecase

import (
	"context"
	"fmt"

	"github.com/bibbank/bib/services/product-service/internal/application/dto"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
)

const (
	defaultBatchPage = 50
	maxBatchPage     = 500
)

// ListBatches returns the posting batches committed to an account.
type ListBatches struct {
	batches port.PostingBatchRepository
}

func NewListBatches(batches port.PostingBatchRepository) *ListBatches {
	return &ListBatches{batches: batches}
}

func (uc *ListBatches) Execute(ctx context.Context, req dto.ListBatchesRequest) (dto.ListBatchesResponse, error) {
	limit := req.Limit
	switch {
	case limit < 0:
		return dto.ListBatchesResponse{}, fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	case limit == 0:
		limit = defaultBatchPage
	case limit > maxBatchPage:
		limit = maxBatchPage
	}

	batches, err := uc.batches.ListByAccount(ctx, req.AccountID, limit)
	if err != nil {
		return dto.ListBatchesResponse{}, fmt.Errorf("failed to list batches: %w", err)
	}
	return dto.ListBatchesResponse{
		AccountID: req.AccountID,
		Batches:   toBatchDTOs(batches),
	}, nil
}
