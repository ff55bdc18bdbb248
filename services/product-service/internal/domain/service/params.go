package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

// Parameters shared by every product.
const (
	ParamDenomination            = "denomination"
	ParamAdditionalDenominations = "additional_denominations"
	ParamAccountTierNames        = "account_tier_names"
)

// paramReader reads typed parameters and keeps the first error, so a hook can
// read everything it needs and check once.
type paramReader struct {
	params valueobject.Parameters
	flags  []string
	err    error
}

func newParamReader(params valueobject.Parameters, flags []string) *paramReader {
	return &paramReader{params: params, flags: flags}
}

func (r *paramReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *paramReader) decimal(name string) decimal.Decimal {
	v, err := r.params.Decimal(name)
	r.fail(err)
	return v
}

func (r *paramReader) int(name string) int {
	v, err := r.params.Int(name)
	r.fail(err)
	return v
}

func (r *paramReader) string(name string) string {
	v, err := r.params.String(name)
	r.fail(err)
	return v
}

func (r *paramReader) decimalMap(name string) map[string]decimal.Decimal {
	v, err := r.params.DecimalMap(name)
	r.fail(err)
	return v
}

func (r *paramReader) union(name string, allowed ...string) string {
	v, err := r.params.Union(name, allowed...)
	r.fail(err)
	return v
}

// Optional parameters may be absent as well as unset.
func (r *paramReader) optionalDecimal(name string) (decimal.Decimal, bool) {
	if !r.params.Has(name) {
		return decimal.Zero, false
	}
	v, ok, err := r.params.OptionalDecimal(name)
	r.fail(err)
	return v, ok
}

func (r *paramReader) optionalInt(name string) (int, bool) {
	if !r.params.Has(name) {
		return 0, false
	}
	v, ok, err := r.params.OptionalInt(name)
	r.fail(err)
	return v, ok
}

func (r *paramReader) tiered(tierNames, name string) decimal.Decimal {
	v, err := valueobject.TieredDecimal(r.params, tierNames, name, r.flags)
	r.fail(err)
	return v
}

func (r *paramReader) balanceTiers(name string) valueobject.BalanceTiers {
	m, err := r.params.StringMap(name)
	if err != nil {
		r.fail(err)
		return nil
	}
	tiers, err := valueobject.ParseBalanceTiers(name, m)
	r.fail(err)
	return tiers
}

func (r *paramReader) tieredBalanceTiers(tierNames, name string) valueobject.BalanceTiers {
	v, err := valueobject.TieredBalanceTiers(r.params, tierNames, name, r.flags)
	r.fail(err)
	return v
}

// expression reads <prefix>_hour/minute/second and, when dayParam is set, the day.
func (r *paramReader) expression(prefix, dayParam string) valueobject.ScheduleExpression {
	expr := valueobject.ScheduleExpression{
		Hour:   r.int(prefix + "_hour"),
		Minute: r.int(prefix + "_minute"),
		Second: r.int(prefix + "_second"),
	}
	if dayParam != "" {
		expr.Day = r.int(dayParam)
	}
	return expr
}

func (r *paramReader) frequency(name string) valueobject.Frequency {
	v := r.union(name, "monthly", "quarterly", "annually")
	if r.err != nil {
		return ""
	}
	f, err := valueobject.ParseFrequency(v)
	r.fail(err)
	return f
}

// Allowed denominations of an account: its main one plus any additional ones.
func denominations(params valueobject.Parameters, main string) ([]string, error) {
	out := []string{main}
	if !params.Has(ParamAdditionalDenominations) {
		return out, nil
	}
	extra, err := params.StringList(ParamAdditionalDenominations)
	if err != nil {
		return nil, err
	}
	return append(out, extra...), nil
}

// checkDenominations rejects any customer leg outside allowed.
func checkDenominations(req HookRequest, allowed []string) error {
	ok := make(map[string]struct{}, len(allowed))
	for _, d := range allowed {
		ok[d] = struct{}{}
	}
	id := req.AccountID()
	for _, p := range req.Batch.Postings() {
		if p.AccountID != id {
			continue
		}
		if _, found := ok[p.Denomination]; !found {
			return valueobject.Reject(valueobject.ReasonWrongDenomination, fmt.Sprintf(
				"Cannot make transactions in given denomination; transactions must be one of %s.",
				strings.Join(allowed, ", ")))
		}
	}
	return nil
}

// overridden reports whether the batch asks to skip pre-posting checks.
func overridden(batch *valueobject.PostingInstructionBatch) bool {
	for _, pi := range batch.Instructions {
		if pi.Detail(DetailForceOverride) == "true" {
			return true
		}
	}
	return false
}

// available is the committed DEFAULT balance less outgoing holds.
func available(set valueobject.BalanceSet, denomination string) decimal.Decimal {
	committed := valueobject.Coordinate(valueobject.DefaultAddress, denomination)
	return set.Net(committed).Add(set.Net(committed.WithPhase(valueobject.PhasePendingOutgoing)))
}

