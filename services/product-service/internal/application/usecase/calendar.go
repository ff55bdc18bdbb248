package usecase

import (
	"context"
	"fmt"

	"github.com/bibbank/bib/services/product-service/internal/application/dto"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

// SaveCalendar replaces the holidays of a calendar. Accounts pick up the
// change the next time they are loaded.
type SaveCalendar struct {
	calendars port.CalendarRepository
}

func NewSaveCalendar(calendars port.CalendarRepository) *SaveCalendar {
	return &SaveCalendar{calendars: calendars}
}

func (uc *SaveCalendar) Execute(ctx context.Context, req dto.SaveCalendarRequest) (dto.CalendarResponse, error) {
	if req.CalendarID == "" {
		return dto.CalendarResponse{}, fmt.Errorf("%w: calendar id is required", ErrInvalidInput)
	}

	seen := make(map[string]struct{}, len(req.Events))
	cal := make(valueobject.Calendar, 0, len(req.Events))
	for _, e := range req.Events {
		if e.ID == "" {
			return dto.CalendarResponse{}, fmt.Errorf("%w: calendar event id is required", ErrInvalidInput)
		}
		if _, dup := seen[e.ID]; dup {
			return dto.CalendarResponse{}, fmt.Errorf("%w: duplicate calendar event %s", ErrInvalidInput, e.ID)
		}
		seen[e.ID] = struct{}{}
		if !e.End.After(e.Start) {
			return dto.CalendarResponse{}, fmt.Errorf("%w: calendar event %s ends before it starts", ErrInvalidInput, e.ID)
		}
		cal = append(cal, valueobject.CalendarEvent{
			ID:         e.ID,
			CalendarID: req.CalendarID,
			Start:      e.Start.UTC(),
			End:        e.End.UTC(),
		})
	}

	if err := uc.calendars.Save(ctx, req.CalendarID, cal); err != nil {
		return dto.CalendarResponse{}, fmt.Errorf("failed to save calendar: %w", err)
	}
	return toCalendarResponse(req.CalendarID, cal), nil
}

// GetCalendar reads the holidays of a calendar.
type GetCalendar struct {
	calendars port.CalendarRepository
}

func NewGetCalendar(calendars port.CalendarRepository) *GetCalendar {
	return &GetCalendar{calendars: calendars}
}

func (uc *GetCalendar) Execute(ctx context.Context, req dto.GetCalendarRequest) (dto.CalendarResponse, error) {
	cal, err := uc.calendars.FindByID(ctx, req.CalendarID)
	if err != nil {
		return dto.CalendarResponse{}, fmt.Errorf("failed to load calendar %s: %w", req.CalendarID, err)
	}
	return toCalendarResponse(req.CalendarID, cal), nil
}

func toCalendarResponse(id string, cal valueobject.Calendar) dto.CalendarResponse {
	events := make([]dto.CalendarEventDTO, 0, len(cal))
	for _, e := range cal {
		events = append(events, dto.CalendarEventDTO{ID: e.ID, Start: e.Start, End: e.End})
	}
	return dto.CalendarResponse{CalendarID: id, Events: events}
}
