package valueobject

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidSchedule is returned for schedule expressions that can never fire.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Frequency is how often a schedule repeats.
type Frequency string

const (
	FrequencyDaily     Frequency = "DAILY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyAnnually  Frequency = "ANNUALLY"
	// FrequencyOnce schedules run a single time and then go inactive.
	FrequencyOnce Frequency = "ONCE"
)

// ParseFrequency accepts upper or lower case frequency names.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToUpper(s)); f {
	case FrequencyDaily, FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually, FrequencyOnce:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown frequency %q", ErrInvalidSchedule, s)
}

// ScheduleExpression is the (day, hour, minute, second) tuple a schedule fires on.
// Day and Month are zero when unset.
type ScheduleExpression struct {
	Day    int `json:"day,omitempty"`
	Month  int `json:"month,omitempty"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	Second int `json:"second"`
}

// Validate checks the ranges of the expression fields.
func (e ScheduleExpression) Validate() error {
	switch {
	case e.Day < 0 || e.Day > 31:
		return fmt.Errorf("%w: day %d", ErrInvalidSchedule, e.Day)
	case e.Month < 0 || e.Month > 12:
		return fmt.Errorf("%w: month %d", ErrInvalidSchedule, e.Month)
	case e.Hour < 0 || e.Hour > 23:
		return fmt.Errorf("%w: hour %d", ErrInvalidSchedule, e.Hour)
	case e.Minute < 0 || e.Minute > 59:
		return fmt.Errorf("%w: minute %d", ErrInvalidSchedule, e.Minute)
	case e.Second < 0 || e.Second > 59:
		return fmt.Errorf("%w: second %d", ErrInvalidSchedule, e.Second)
	}
	return nil
}

func (e ScheduleExpression) on(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, e.Hour, e.Minute, e.Second, 0, loc)
}

// DaysIn returns the number of days in the month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClipDay clips day to the last day of the month.
func ClipDay(year int, month time.Month, day int) int {
	if last := DaysIn(year, month); day > last {
		return last
	}
	return day
}

// AddMonthsClipped adds n months to t keeping day, clipped to month end.
func AddMonthsClipped(t time.Time, n, day int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()).AddDate(0, n, 0)
	return first.AddDate(0, 0, ClipDay(first.Year(), first.Month(), day)-1)
}

// NextRunTime returns the first time strictly after after that matches expr at
// freq. Monthly, quarterly and annual runs anchor on expr.Day every period and
// clip it per month. When calendar is non-empty the result is moved forward
// off holidays.
func NextRunTime(after time.Time, expr ScheduleExpression, freq Frequency, calendar Calendar) (time.Time, error) {
	if err := expr.Validate(); err != nil {
		return time.Time{}, err
	}
	loc := after.Location()
	var next time.Time

	switch freq {
	case FrequencyDaily:
		next = expr.on(after.Year(), after.Month(), after.Day(), loc)
		if !next.After(after) {
			next = next.AddDate(0, 0, 1)
		}

	case FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually:
		if expr.Day == 0 {
			return time.Time{}, fmt.Errorf("%w: %s schedule needs a day", ErrInvalidSchedule, freq)
		}
		step := map[Frequency]int{FrequencyMonthly: 1, FrequencyQuarterly: 3, FrequencyAnnually: 12}[freq]
		anchor := expr.Month
		if anchor == 0 {
			anchor = int(after.Month())
		}
		// Months congruent to the anchor modulo step, starting from after's month.
		offset := ((anchor-int(after.Month()))%step + step) % step
		start := time.Date(after.Year(), after.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, offset, 0)
		for i := 0; i < 3; i++ {
			m := start.AddDate(0, i*step, 0)
			candidate := expr.on(m.Year(), m.Month(), ClipDay(m.Year(), m.Month(), expr.Day), loc)
			if candidate.After(after) {
				next = candidate
				break
			}
		}

	case FrequencyOnce:
		return time.Time{}, nil

	default:
		return time.Time{}, fmt.Errorf("%w: unknown frequency %q", ErrInvalidSchedule, freq)
	}

	return calendar.ShiftToBusinessDay(next), nil
}

// EventSchedule is a named schedule on an account.
type EventSchedule struct {
	NextRunTime   time.Time          `json:"next_run_time"`
	EventType     string             `json:"event_type"`
	Frequency     Frequency          `json:"frequency"`
	Expression    ScheduleExpression `json:"expression"`
	ShiftHolidays bool               `json:"shift_holidays,omitempty"`
}

// NewEventSchedule builds a schedule whose first run is strictly after after.
func NewEventSchedule(eventType string, expr ScheduleExpression, freq Frequency, after time.Time, calendar Calendar, shiftHolidays bool) (EventSchedule, error) {
	s := EventSchedule{EventType: eventType, Expression: expr, Frequency: freq, ShiftHolidays: shiftHolidays}
	if freq == FrequencyOnce {
		return EventSchedule{}, fmt.Errorf("%w: one-off schedules need an explicit run time", ErrInvalidSchedule)
	}
	next, err := NextRunTime(after, expr, freq, s.calendar(calendar))
	if err != nil {
		return EventSchedule{}, fmt.Errorf("schedule %s: %w", eventType, err)
	}
	s.NextRunTime = next
	return s, nil
}

// OneOff builds a schedule that runs once at at.
func OneOff(eventType string, at time.Time) EventSchedule {
	return EventSchedule{
		EventType:   eventType,
		Frequency:   FrequencyOnce,
		NextRunTime: at,
		Expression:  ScheduleExpression{Hour: at.Hour(), Minute: at.Minute(), Second: at.Second()},
	}
}

func (s EventSchedule) calendar(c Calendar) Calendar {
	if !s.ShiftHolidays {
		return nil
	}
	return c
}

// Active reports whether the schedule has a pending run.
func (s EventSchedule) Active() bool {
	return !s.NextRunTime.IsZero()
}

// Due reports whether the schedule should have run by now.
func (s EventSchedule) Due(now time.Time) bool {
	return s.Active() && !s.NextRunTime.After(now)
}

// Advance returns the schedule rolled to its run after ranAt.
// One-off schedules become inactive.
func (s EventSchedule) Advance(ranAt time.Time, calendar Calendar) (EventSchedule, error) {
	next, err := NextRunTime(ranAt, s.Expression, s.Frequency, s.calendar(calendar))
	if err != nil {
		return EventSchedule{}, fmt.Errorf("schedule %s: %w", s.EventType, err)
	}
	s.NextRunTime = next
	return s, nil
}
