package valueobject

import "time"

// CalendarEvent marks [Start, End) as a non-business period.
type CalendarEvent struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	ID         string    `json:"id"`
	CalendarID string    `json:"calendar_id"`
}

// Calendar is a set of holiday events.
type Calendar []CalendarEvent

// IsHoliday reports whether t falls inside any event.
func (c Calendar) IsHoliday(t time.Time) bool {
	for _, e := range c {
		if !t.Before(e.Start) && t.Before(e.End) {
			return true
		}
	}
	return false
}

// ShiftToBusinessDay moves t forward a day at a time while it falls on a holiday.
func (c Calendar) ShiftToBusinessDay(t time.Time) time.Time {
	if len(c) == 0 || t.IsZero() {
		return t
	}
	for i := 0; i < 366 && c.IsHoliday(t); i++ {
		t = t.AddDate(0, 0, 1)
	}
	return t
}
