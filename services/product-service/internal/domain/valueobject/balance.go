package valueobject

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Phase is the lifecycle phase a balance belongs to.
type Phase string

const (
	PhaseCommitted       Phase = "POSTING_PHASE_COMMITTED"
	PhasePendingIncoming Phase = "POSTING_PHASE_PENDING_INCOMING"
	PhasePendingOutgoing Phase = "POSTING_PHASE_PENDING_OUTGOING"
)

// Default ledger address and asset.
const (
	DefaultAddress = "DEFAULT"
	DefaultAsset   = "COMMERCIAL_BANK_MONEY"
	// InternalContraAddress balances the tracking addresses held on a customer account.
	InternalContraAddress = "INTERNAL_CONTRA"
)

// Tside is the accounting side of an account and decides the sign of Net.
type Tside string

const (
	// TsideLiability accounts (deposits) have net = credit - debit.
	TsideLiability Tside = "LIABILITY"
	// TsideAsset accounts (loans, cards) have net = debit - credit.
	TsideAsset Tside = "ASSET"
)

// ParseTside validates a tside string.
func ParseTside(s string) (Tside, error) {
	switch Tside(s) {
	case TsideLiability, TsideAsset:
		return Tside(s), nil
	}
	return "", fmt.Errorf("unknown tside %q", s)
}

// BalanceCoordinate identifies one balance of an account.
type BalanceCoordinate struct {
	Address      string `json:"address"`
	Asset        string `json:"asset"`
	Denomination string `json:"denomination"`
	Phase        Phase  `json:"phase"`
}

// Coordinate returns the committed coordinate for address in the default asset.
func Coordinate(address, denomination string) BalanceCoordinate {
	return BalanceCoordinate{
		Address:      address,
		Asset:        DefaultAsset,
		Denomination: denomination,
		Phase:        PhaseCommitted,
	}
}

// WithPhase returns the same coordinate in another phase.
func (c BalanceCoordinate) WithPhase(p Phase) BalanceCoordinate {
	c.Phase = p
	return c
}

func (c BalanceCoordinate) String() string {
	return c.Address + "/" + c.Asset + "/" + c.Denomination + "/" + string(c.Phase)
}

// MarshalText lets a BalanceSet be encoded as a JSON object.
func (c BalanceCoordinate) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses the form produced by String.
func (c *BalanceCoordinate) UnmarshalText(text []byte) error {
	parts := strings.Split(string(text), "/")
	if len(parts) != 4 {
		return fmt.Errorf("malformed balance coordinate %q", text)
	}
	*c = BalanceCoordinate{Address: parts[0], Asset: parts[1], Denomination: parts[2], Phase: Phase(parts[3])}
	return nil
}

// Balance holds the credit and debit totals of a coordinate and their net.
type Balance struct {
	Credit decimal.Decimal `json:"credit"`
	Debit  decimal.Decimal `json:"debit"`
	Net    decimal.Decimal `json:"net"`
}

func (b Balance) add(credit bool, amount decimal.Decimal, tside Tside) Balance {
	if credit {
		b.Credit = b.Credit.Add(amount)
	} else {
		b.Debit = b.Debit.Add(amount)
	}
	if credit == (tside == TsideAsset) {
		b.Net = b.Net.Sub(amount)
	} else {
		b.Net = b.Net.Add(amount)
	}
	return b
}

// BalanceSet maps coordinates to balances. A missing coordinate reads as zero.
type BalanceSet map[BalanceCoordinate]Balance

// Get returns the balance at c, or a zero balance.
func (s BalanceSet) Get(c BalanceCoordinate) Balance {
	if b, ok := s[c]; ok {
		return b
	}
	return Balance{}
}

// Net returns the net of c.
func (s BalanceSet) Net(c BalanceCoordinate) decimal.Decimal {
	return s.Get(c).Net
}

// Sum adds the nets of the given addresses in the committed phase of denomination.
func (s BalanceSet) Sum(denomination string, addresses ...string) decimal.Decimal {
	total := decimal.Zero
	for _, a := range addresses {
		total = total.Add(s.Net(Coordinate(a, denomination)))
	}
	return total
}

// Clone returns an independent copy.
func (s BalanceSet) Clone() BalanceSet {
	out := make(BalanceSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Apply returns a new set with the postings that target accountID applied.
func (s BalanceSet) Apply(postings []Posting, accountID string, tside Tside) BalanceSet {
	out := s.Clone()
	for _, p := range postings {
		if p.AccountID != accountID {
			continue
		}
		c := p.Coordinate()
		out[c] = out.Get(c).add(p.Credit, p.Amount, tside)
	}
	return out
}

// BalanceObservation is the full balance set of an account at a point in time.
type BalanceObservation struct {
	At       time.Time  `json:"at"`
	Balances BalanceSet `json:"balances"`
}

// BalanceTimeseries is an ordered history of balance observations.
type BalanceTimeseries []BalanceObservation

// NewBalanceTimeseries sorts observations by time.
func NewBalanceTimeseries(obs ...BalanceObservation) BalanceTimeseries {
	ts := make(BalanceTimeseries, len(obs))
	copy(ts, obs)
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].At.Before(ts[j].At) })
	return ts
}

// At returns the latest observation at or before t, or an empty set.
func (ts BalanceTimeseries) At(t time.Time) BalanceSet {
	i := sort.Search(len(ts), func(i int) bool { return ts[i].At.After(t) })
	if i == 0 {
		return BalanceSet{}
	}
	return ts[i-1].Balances
}

// Latest returns the most recent observation, or an empty set.
func (ts BalanceTimeseries) Latest() BalanceSet {
	if len(ts) == 0 {
		return BalanceSet{}
	}
	return ts[len(ts)-1].Balances
}

// LatestTime returns the time of the most recent observation.
func (ts BalanceTimeseries) LatestTime() time.Time {
	if len(ts) == 0 {
		return time.Time{}
	}
	return ts[len(ts)-1].At
}

// ApplyAt returns a new series with postings applied at t. The observation
// at t starts from the balances in force at t, and every later observation
// carries the same postings, so a backdated batch reaches the latest balances.
func (ts BalanceTimeseries) ApplyAt(t time.Time, postings []Posting, accountID string, tside Tside) BalanceTimeseries {
	out := make(BalanceTimeseries, 0, len(ts)+1)
	placed := false
	for _, o := range ts {
		switch {
		case o.At.Before(t):
			out = append(out, o)
			continue
		case o.At.Equal(t):
			placed = true
		case !placed:
			out = append(out, BalanceObservation{At: t, Balances: ts.At(t).Apply(postings, accountID, tside)})
			placed = true
		}
		out = append(out, BalanceObservation{At: o.At, Balances: o.Balances.Apply(postings, accountID, tside)})
	}
	if !placed {
		out = append(out, BalanceObservation{At: t, Balances: ts.At(t).Apply(postings, accountID, tside)})
	}
	return out
}
