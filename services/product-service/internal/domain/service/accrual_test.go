package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/product-service/internal/domain/service"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

func TestDaysInYear(t *testing.T) {
	tests := []struct {
		convention string
		when       time.Time
		want       string
	}{
		{service.DaysInYearActual, at(3, 1, 0, 0), "366"},
		{service.DaysInYearActual, time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC), "365"},
		{service.DaysInYearActual, time.Date(2100, time.March, 1, 0, 0, 0, 0, time.UTC), "365"},
		{service.DaysInYear365, at(3, 1, 0, 0), "365"},
		{service.DaysInYear366, time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC), "366"},
		{service.DaysInYear360, at(3, 1, 0, 0), "360"},
	}
	for _, tt := range tests {
		t.Run(tt.convention+"/"+tt.when.Format("2006"), func(t *testing.T) {
			got, err := service.DaysInYear(tt.convention, tt.when)
			require.NoError(t, err)
			assert.True(t, d(tt.want).Equal(got), "got %s", got)
		})
	}

	_, err := service.DaysInYear("30/360", opened)
	assert.Error(t, err)
}

func TestDailyAccrual(t *testing.T) {
	got := service.DailyAccrual(d("500"), d("0.05"), d("365"), service.AccrualPrecision)
	assert.Equal(t, "0.06849", got.String())

	got = service.DailyAccrual(d("1000"), d("0.05"), d("365"), service.AccrualPrecision)
	assert.Equal(t, "0.13699", got.String())
}

func TestBandedDailyAccrual(t *testing.T) {
	tiers, err := valueobject.ParseBalanceTiers("tiers", map[string]string{"0": "0.01", "1000": "0.02"})
	require.NoError(t, err)

	// (1000 * 0.01 + 500 * 0.02) / 365
	got := service.BandedDailyAccrual(d("1500"), tiers, d("365"), service.AccrualPrecision)
	assert.Equal(t, "0.05479", got.String())

	got = service.BandedDailyAccrual(d("500"), tiers, d("365"), service.AccrualPrecision)
	assert.Equal(t, "0.0137", got.String())
}

func TestApplicationAmounts(t *testing.T) {
	tests := []struct {
		accrued, applied, remainder string
	}{
		{"10.123456", "10.12", "0.003456"},
		{"10.125", "10.13", "-0.005"},
		{"0.004", "0", "0.004"},
		{"7", "7", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.accrued, func(t *testing.T) {
			applied, remainder := service.ApplicationAmounts(d(tt.accrued), service.ApplicationPrecision, money.RoundHalfUp)
			assert.True(t, d(tt.applied).Equal(applied), "applied %s", applied)
			assert.True(t, d(tt.remainder).Equal(remainder), "remainder %s", remainder)
			assert.True(t, d(tt.accrued).Equal(applied.Add(remainder)))
		})
	}
}

func TestMeanDailyBalance(t *testing.T) {
	coord := valueobject.Coordinate(valueobject.DefaultAddress, "GBP")
	ts := valueobject.NewBalanceTimeseries(
		obs(at(1, 1, 0, 0), valueobject.DefaultAddress, "1000"),
		obs(at(1, 11, 0, 0), valueobject.DefaultAddress, "0"),
	)

	got := service.MeanDailyBalance(ts, coord, at(1, 1, 0, 0), at(1, 21, 0, 0))
	assert.True(t, d("500").Equal(got), "got %s", got)

	// The window end is excluded.
	got = service.MeanDailyBalance(ts, coord, at(1, 1, 0, 0), at(1, 11, 0, 0))
	assert.True(t, d("1000").Equal(got), "got %s", got)

	assert.True(t, service.MeanDailyBalance(ts, coord, at(1, 5, 0, 0), at(1, 5, 0, 0)).IsZero())
}

func TestConsecutiveDaysBelowZero(t *testing.T) {
	coord := valueobject.Coordinate(valueobject.DefaultAddress, "GBP")
	ts := valueobject.NewBalanceTimeseries(
		obs(at(1, 1, 0, 0), valueobject.DefaultAddress, "100"),
		obs(at(1, 5, 12, 0), valueobject.DefaultAddress, "-50"),
	)

	assert.Equal(t, 3, service.ConsecutiveDaysBelowZero(ts, coord, at(1, 8, 0, 0)))
	assert.Equal(t, 0, service.ConsecutiveDaysBelowZero(ts, coord, at(1, 4, 0, 0)))

	always := valueobject.NewBalanceTimeseries(obs(at(1, 1, 0, 0), valueobject.DefaultAddress, "-1"))
	assert.Equal(t, 10, service.ConsecutiveDaysBelowZero(always, coord, at(1, 10, 0, 0)))
	assert.Equal(t, 0, service.ConsecutiveDaysBelowZero(nil, coord, at(1, 10, 0, 0)))
}

func TestBalanceSubjectToInterest(t *testing.T) {
	tests := []struct {
		name       string
		owed       string
		bufferDays int
		daysBelow  int
		want       string
	}{
		{"within buffer period", "1000", 5, 3, "500"},
		{"last buffer day", "1000", 5, 5, "500"},
		{"buffer period elapsed", "1000", 5, 6, "1000"},
		{"unlimited buffer", "1000", -1, 400, "500"},
		{"no buffer period", "1000", 0, 1, "1000"},
		{"owed inside buffer", "200", 5, 1, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.BalanceSubjectToInterest(d(tt.owed), d("500"), tt.bufferDays, tt.daysBelow)
			assert.True(t, d(tt.want).Equal(got), "got %s", got)
		})
	}
}
