package usecase

import (
	"context"
	"fmt"

	"github.com/bibbank/bib/services/product-service/internal/application/dto"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
)

// ListSchedules returns the event schedules of an account.
type ListSchedules struct {
	schedules port.ScheduleRepository
}

func NewListSchedules(schedules port.ScheduleRepository) *ListSchedules {
	return &ListSchedules{schedules: schedules}
}

func (uc *ListSchedules) Execute(ctx context.Context, req dto.ListSchedulesRequest) (dto.ListSchedulesResponse, error) {
	schedules, err := uc.schedules.ListByAccount(ctx, req.AccountID)
	if err != nil {
		return dto.ListSchedulesResponse{}, fmt.Errorf("failed to list schedules: %w", err)
	}
	return dto.ListSchedulesResponse{
		AccountID: req.AccountID,
		Schedules: toScheduleDTOs(schedules),
	}, nil
}
