package testutil

import (
	"time"

	"github.com/google/uuid"
)

// Fixed identifiers for deterministic testing.
var (
	TestAccountID    = uuid.MustParse("00000000-0000-0000-0000-000000000020")
	TestCounterparty = "nostro"
)

// Date returns a UTC time at midnight plus the optional hour, minute and second.
func Date(year int, month time.Month, day int, hms ...int) time.Time {
	var h, m, s int
	if len(hms) > 0 {
		h = hms[0]
	}
	if len(hms) > 1 {
		m = hms[1]
	}
	if len(hms) > 2 {
		s = hms[2]
	}
	return time.Date(year, month, day, h, m, s, 0, time.UTC)
}
