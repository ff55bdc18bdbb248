package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

// Day-count conventions.
const (
	DaysInYearActual = "actual"
	DaysInYear365    = "365"
	DaysInYear366    = "366"
	DaysInYear360    = "360"
)

// Precisions used for accrual and application.
const (
	AccrualPrecision     int32 = 5
	ApplicationPrecision int32 = 2
)

// DaysInYear returns the day count of convention for the year containing t.
func DaysInYear(convention string, t time.Time) (decimal.Decimal, error) {
	switch convention {
	case DaysInYearActual:
		if isLeap(t.Year()) {
			return decimal.NewFromInt(366), nil
		}
		return decimal.NewFromInt(365), nil
	case DaysInYear365:
		return decimal.NewFromInt(365), nil
	case DaysInYear366:
		return decimal.NewFromInt(366), nil
	case DaysInYear360:
		return decimal.NewFromInt(360), nil
	}
	return decimal.Zero, fmt.Errorf("unknown days in year convention %q", convention)
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// DailyAccrual is balance * annualRate / daysInYear rounded half up to precision.
func DailyAccrual(balance, annualRate, daysInYear decimal.Decimal, precision int32) decimal.Decimal {
	return money.Round(balance.Mul(annualRate).Div(daysInYear), precision, money.RoundHalfUp)
}

// BandedDailyAccrual accrues each band of balance at its own rate and rounds the total.
func BandedDailyAccrual(balance decimal.Decimal, tiers valueobject.BalanceTiers, daysInYear decimal.Decimal, precision int32) decimal.Decimal {
	total := decimal.Zero
	for _, band := range tiers.Split(balance) {
		total = total.Add(band.Amount.Mul(band.Rate))
	}
	return money.Round(total.Div(daysInYear), precision, money.RoundHalfUp)
}

// ApplicationAmounts rounds accrued for posting and returns the signed
// remainder left behind: accrued = applied + remainder.
func ApplicationAmounts(accrued decimal.Decimal, precision int32, mode money.RoundingMode) (applied, remainder decimal.Decimal) {
	applied = money.Round(accrued, precision, mode)
	return applied, accrued.Sub(applied)
}

// MeanDailyBalance averages the net of coordinate sampled once a day over
// [from, to), at from's time of day.
func MeanDailyBalance(ts valueobject.BalanceTimeseries, coordinate valueobject.BalanceCoordinate, from, to time.Time) decimal.Decimal {
	total := decimal.Zero
	n := int64(0)
	for t := from; t.Before(to); t = t.AddDate(0, 0, 1) {
		total = total.Add(ts.At(t).Net(coordinate))
		n++
	}
	if n == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(n))
}

// ConsecutiveDaysBelowZero counts the daily samples ending at at, stepping
// back a day at a time, for which coordinate was negative.
func ConsecutiveDaysBelowZero(ts valueobject.BalanceTimeseries, coordinate valueobject.BalanceCoordinate, at time.Time) int {
	if len(ts) == 0 {
		return 0
	}
	first := ts[0].At
	n := 0
	for t := at; !t.Before(first); t = t.AddDate(0, 0, -1) {
		if !ts.At(t).Net(coordinate).IsNegative() {
			break
		}
		n++
	}
	return n
}
