package valueobject

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrTierNotFound is returned when a tiered parameter has no entry for the selected tier.
var ErrTierNotFound = errors.New("tier not found")

// SelectTier returns the first tier name present in flags. With no match the
// last tier applies.
func SelectTier(tierNames, flags []string) (string, error) {
	if len(tierNames) == 0 {
		return "", errors.New("no tier names configured")
	}
	active := make(map[string]struct{}, len(flags))
	for _, f := range flags {
		active[f] = struct{}{}
	}
	for _, name := range tierNames {
		if _, ok := active[name]; ok {
			return name, nil
		}
	}
	return tierNames[len(tierNames)-1], nil
}

// TieredDecimal selects the account tier from flags and reads its entry of
// the JSON map parameter valueParam.
func TieredDecimal(params Parameters, tierNamesParam, valueParam string, flags []string) (decimal.Decimal, error) {
	tier, err := accountTier(params, tierNamesParam, flags)
	if err != nil {
		return decimal.Zero, err
	}
	values, err := params.DecimalMap(valueParam)
	if err != nil {
		return decimal.Zero, err
	}
	v, ok := values[tier]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s has no entry for %q", ErrTierNotFound, valueParam, tier)
	}
	return v, nil
}

// TieredBalanceTiers selects the account tier and parses its balance tiers
// from a nested JSON map parameter.
func TieredBalanceTiers(params Parameters, tierNamesParam, valueParam string, flags []string) (BalanceTiers, error) {
	tier, err := accountTier(params, tierNamesParam, flags)
	if err != nil {
		return nil, err
	}
	nested, err := params.NestedStringMap(valueParam)
	if err != nil {
		return nil, err
	}
	m, ok := nested[tier]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no entry for %q", ErrTierNotFound, valueParam, tier)
	}
	return ParseBalanceTiers(valueParam, m)
}

func accountTier(params Parameters, tierNamesParam string, flags []string) (string, error) {
	names, err := params.StringList(tierNamesParam)
	if err != nil {
		return "", err
	}
	tier, err := SelectTier(names, flags)
	if err != nil {
		return "", fmt.Errorf("%s: %w", tierNamesParam, err)
	}
	return tier, nil
}

// BalanceTier is one band of a balance-tiered rate table.
type BalanceTier struct {
	Lower decimal.Decimal
	Rate  decimal.Decimal
}

// BalanceTiers is a rate table ordered by lower bound.
type BalanceTiers []BalanceTier

// BandPortion is the part of a balance that falls in one band.
type BandPortion struct {
	Amount decimal.Decimal
	Rate   decimal.Decimal
}

// ParseBalanceTiers reads a lower-bound to rate map.
func ParseBalanceTiers(name string, m map[string]string) (BalanceTiers, error) {
	dm, err := toDecimalMap(name, m)
	if err != nil {
		return nil, err
	}
	tiers := make(BalanceTiers, 0, len(dm))
	for k, rate := range dm {
		lower, err := decimal.NewFromString(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %s bound %q: %v", ErrParameterType, name, k, err)
		}
		tiers = append(tiers, BalanceTier{Lower: lower, Rate: rate})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Lower.LessThan(tiers[j].Lower) })
	return tiers, nil
}

// Split divides balance across bands [lower_i, lower_i+1). The last band is open.
func (t BalanceTiers) Split(balance decimal.Decimal) []BandPortion {
	var out []BandPortion
	for i, tier := range t {
		if balance.LessThanOrEqual(tier.Lower) {
			break
		}
		upper := balance
		if i+1 < len(t) && t[i+1].Lower.LessThan(balance) {
			upper = t[i+1].Lower
		}
		if amount := upper.Sub(tier.Lower); amount.IsPositive() {
			out = append(out, BandPortion{Amount: amount, Rate: tier.Rate})
		}
	}
	return out
}

// RateFor returns the rate of the highest band whose lower bound is at or below balance.
func (t BalanceTiers) RateFor(balance decimal.Decimal) decimal.Decimal {
	rate := decimal.Zero
	for _, tier := range t {
		if balance.LessThan(tier.Lower) {
			break
		}
		rate = tier.Rate
	}
	return rate
}
