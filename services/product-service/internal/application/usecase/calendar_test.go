package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/services/product-service/internal/application/dto"
	"github.com/bibbank/bib/services/product-service/internal/application/usecase"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

func bankHoliday(id string, day int) dto.CalendarEventDTO {
	start := time.Date(2024, time.December, day, 0, 0, 0, 0, time.UTC)
	return dto.CalendarEventDTO{ID: id, Start: start, End: start.AddDate(0, 0, 1)}
}

func TestSaveCalendar_Execute(t *testing.T) {
	t.Run("successfully replaces the calendar", func(t *testing.T) {
		repo := &mockCalendarRepository{}
		uc := usecase.NewSaveCalendar(repo)

		resp, err := uc.Execute(context.Background(), dto.SaveCalendarRequest{
			CalendarID: "uk",
			Events:     []dto.CalendarEventDTO{bankHoliday("christmas", 25), bankHoliday("boxing-day", 26)},
		})
		require.NoError(t, err)

		assert.Equal(t, "uk", repo.savedID)
		require.Len(t, repo.calendar, 2)
		assert.Equal(t, "uk", repo.calendar[0].CalendarID)
		assert.True(t, repo.calendar.IsHoliday(time.Date(2024, time.December, 26, 12, 0, 0, 0, time.UTC)))
		assert.Equal(t, "uk", resp.CalendarID)
		assert.Len(t, resp.Events, 2)
	})

	t.Run("accepts an empty calendar", func(t *testing.T) {
		repo := &mockCalendarRepository{calendar: valueobject.Calendar{{ID: "old"}}}
		_, err := usecase.NewSaveCalendar(repo).Execute(context.Background(), dto.SaveCalendarRequest{CalendarID: "uk"})
		require.NoError(t, err)
		assert.Empty(t, repo.calendar)
	})

	invalid := []struct {
		name string
		req  dto.SaveCalendarRequest
	}{
		{"missing calendar id", dto.SaveCalendarRequest{Events: []dto.CalendarEventDTO{bankHoliday("x", 25)}}},
		{"missing event id", dto.SaveCalendarRequest{CalendarID: "uk", Events: []dto.CalendarEventDTO{bankHoliday("", 25)}}},
		{"duplicate event id", dto.SaveCalendarRequest{CalendarID: "uk", Events: []dto.CalendarEventDTO{bankHoliday("x", 25), bankHoliday("x", 26)}}},
		{"empty period", dto.SaveCalendarRequest{CalendarID: "uk", Events: []dto.CalendarEventDTO{{
			ID:    "x",
			Start: time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC),
		}}}},
	}
	for _, tc := range invalid {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			repo := &mockCalendarRepository{}
			_, err := usecase.NewSaveCalendar(repo).Execute(context.Background(), tc.req)
			assert.ErrorIs(t, err, usecase.ErrInvalidInput)
			assert.Empty(t, repo.savedID)
		})
	}

	t.Run("fails when save fails", func(t *testing.T) {
		repo := &mockCalendarRepository{saveErr: errors.New("db down")}
		_, err := usecase.NewSaveCalendar(repo).Execute(context.Background(), dto.SaveCalendarRequest{CalendarID: "uk"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save calendar")
	})
}

func TestGetCalendar_Execute(t *testing.T) {
	christmas := time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC)
	repo := &mockCalendarRepository{calendar: valueobject.Calendar{
		{ID: "christmas", CalendarID: "uk", Start: christmas, End: christmas.AddDate(0, 0, 1)},
	}}

	resp, err := usecase.NewGetCalendar(repo).Execute(context.Background(), dto.GetCalendarRequest{CalendarID: "uk"})
	require.NoError(t, err)
	assert.Equal(t, "uk", resp.CalendarID)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "christmas", resp.Events[0].ID)
	assert.Equal(t, christmas, resp.Events[0].Start)

	repo.err = errors.New("db down")
	_, err = usecase.NewGetCalendar(repo).Execute(context.Background(), dto.GetCalendarRequest{CalendarID: "uk"})
	assert.Error(t, err)
}
