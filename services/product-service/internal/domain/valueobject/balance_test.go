package valueobject_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(n int) time.Time { return time.Date(2024, time.January, n, 0, 0, 0, 0, time.UTC) }

func TestBalanceSet_ApplyLiability(t *testing.T) {
	postings := []valueobject.Posting{
		{Credit: true, Amount: d("100"), Denomination: "GBP", AccountID: "acc", Address: "DEFAULT", Asset: valueobject.DefaultAsset, Phase: valueobject.PhaseCommitted},
		{Credit: false, Amount: d("30"), Denomination: "GBP", AccountID: "acc", Address: "DEFAULT", Asset: valueobject.DefaultAsset, Phase: valueobject.PhaseCommitted},
		{Credit: true, Amount: d("999"), Denomination: "GBP", AccountID: "other", Address: "DEFAULT", Asset: valueobject.DefaultAsset, Phase: valueobject.PhaseCommitted},
	}

	empty := valueobject.BalanceSet{}
	got := empty.Apply(postings, "acc", valueobject.TsideLiability)

	b := got.Get(valueobject.Coordinate("DEFAULT", "GBP"))
	assert.True(t, b.Credit.Equal(d("100")))
	assert.True(t, b.Debit.Equal(d("30")))
	assert.True(t, b.Net.Equal(d("70")))
	assert.Empty(t, empty, "apply must not mutate the receiver")
}

func TestBalanceSet_ApplyAssetNetsDebits(t *testing.T) {
	postings := []valueobject.Posting{
		{Credit: false, Amount: d("40"), Denomination: "GBP", AccountID: "card", Address: "DEFAULT", Asset: valueobject.DefaultAsset, Phase: valueobject.PhaseCommitted},
	}
	got := valueobject.BalanceSet{}.Apply(postings, "card", valueobject.TsideAsset)
	assert.True(t, got.Net(valueobject.Coordinate("DEFAULT", "GBP")).Equal(d("40")))
}

func TestBalanceSet_MissingCoordinateIsZero(t *testing.T) {
	assert.True(t, valueobject.BalanceSet{}.Net(valueobject.Coordinate("ANY", "EUR")).IsZero())
}

func TestBalanceSet_JSONRoundTripKeepsCoordinates(t *testing.T) {
	set := valueobject.BalanceSet{
		valueobject.Coordinate("DEFAULT", "GBP").WithPhase(valueobject.PhasePendingOutgoing): {Debit: d("5"), Net: d("-5"), Credit: d("0")},
	}
	raw, err := json.Marshal(set)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "DEFAULT/COMMERCIAL_BANK_MONEY/GBP/POSTING_PHASE_PENDING_OUTGOING")

	var back valueobject.BalanceSet
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Net(valueobject.Coordinate("DEFAULT", "GBP").WithPhase(valueobject.PhasePendingOutgoing)).Equal(d("-5")))
}

func TestBalanceTimeseries_At(t *testing.T) {
	c := valueobject.Coordinate("DEFAULT", "GBP")
	ts := valueobject.NewBalanceTimeseries(
		valueobject.BalanceObservation{At: day(3), Balances: valueobject.BalanceSet{c: {Net: d("30")}}},
		valueobject.BalanceObservation{At: day(1), Balances: valueobject.BalanceSet{c: {Net: d("10")}}},
	)

	assert.True(t, ts.At(day(1).Add(-time.Second)).Net(c).IsZero())
	assert.True(t, ts.At(day(1)).Net(c).Equal(d("10")))
	assert.True(t, ts.At(day(2)).Net(c).Equal(d("10")))
	assert.True(t, ts.At(day(5)).Net(c).Equal(d("30")))
	assert.True(t, ts.Latest().Net(c).Equal(d("30")))
	assert.Equal(t, day(3), ts.LatestTime())
}

func credit(amount string) []valueobject.Posting {
	return []valueobject.Posting{
		{Credit: true, Amount: d(amount), Denomination: "GBP", AccountID: "acc", Address: "DEFAULT", Asset: valueobject.DefaultAsset, Phase: valueobject.PhaseCommitted},
	}
}

func TestBalanceTimeseries_ApplyAt(t *testing.T) {
	c := valueobject.Coordinate("DEFAULT", "GBP")

	t.Run("appends after the latest observation", func(t *testing.T) {
		ts := valueobject.BalanceTimeseries{}.ApplyAt(day(1), credit("1"), "acc", valueobject.TsideLiability)
		ts2 := ts.ApplyAt(day(2), credit("2"), "acc", valueobject.TsideLiability)

		require.Len(t, ts2, 2)
		assert.Equal(t, day(2), ts2.LatestTime())
		assert.True(t, ts2.At(day(1)).Net(c).Equal(d("1")))
		assert.True(t, ts2.Latest().Net(c).Equal(d("3")))
		assert.Len(t, ts, 1, "original series is unchanged")
	})

	t.Run("merges into an observation at the same instant", func(t *testing.T) {
		ts := valueobject.BalanceTimeseries{}.ApplyAt(day(1), credit("1"), "acc", valueobject.TsideLiability)
		ts2 := ts.ApplyAt(day(1), credit("2"), "acc", valueobject.TsideLiability)

		require.Len(t, ts2, 1)
		assert.True(t, ts2.Latest().Net(c).Equal(d("3")))
		assert.True(t, ts.Latest().Net(c).Equal(d("1")), "original series is unchanged")
	})

	t.Run("backdated postings reach every later observation", func(t *testing.T) {
		ts := valueobject.BalanceTimeseries{}.
			ApplyAt(day(1), credit("10"), "acc", valueobject.TsideLiability).
			ApplyAt(day(3), credit("20"), "acc", valueobject.TsideLiability)

		ts2 := ts.ApplyAt(day(2), credit("5"), "acc", valueobject.TsideLiability)

		require.Len(t, ts2, 3)
		assert.Equal(t, []time.Time{day(1), day(2), day(3)}, []time.Time{ts2[0].At, ts2[1].At, ts2[2].At})
		assert.True(t, ts2.At(day(1)).Net(c).Equal(d("10")))
		assert.True(t, ts2.At(day(2)).Net(c).Equal(d("15")))
		assert.True(t, ts2.Latest().Net(c).Equal(d("35")))
		assert.True(t, ts2.Latest().Get(c).Credit.Equal(d("35")))
		assert.True(t, ts.Latest().Net(c).Equal(d("30")), "original series is unchanged")
	})

	t.Run("backdated before the first observation", func(t *testing.T) {
		ts := valueobject.BalanceTimeseries{}.ApplyAt(day(2), credit("10"), "acc", valueobject.TsideLiability)
		ts2 := ts.ApplyAt(day(1), credit("5"), "acc", valueobject.TsideLiability)

		require.Len(t, ts2, 2)
		assert.True(t, ts2.At(day(1)).Net(c).Equal(d("5")))
		assert.True(t, ts2.Latest().Net(c).Equal(d("15")))
	})
}

func TestBalanceSet_ApplyKeepsSeededNet(t *testing.T) {
	c := valueobject.Coordinate("DEFAULT", "GBP")
	seeded := valueobject.BalanceSet{c: {Net: d("100")}}

	debit := []valueobject.Posting{
		{Credit: false, Amount: d("30"), Denomination: "GBP", AccountID: "acc", Address: "DEFAULT", Asset: valueobject.DefaultAsset, Phase: valueobject.PhaseCommitted},
	}
	got := seeded.Apply(debit, "acc", valueobject.TsideLiability)
	assert.True(t, got.Net(c).Equal(d("70")))

	asset := valueobject.BalanceSet{c: {Net: d("100")}}.Apply(debit, "acc", valueobject.TsideAsset)
	assert.True(t, asset.Net(c).Equal(d("130")))
}
