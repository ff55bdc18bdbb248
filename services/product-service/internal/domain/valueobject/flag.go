package valueobject

import "time"

// Flag is a named marker on an account, active over [EffectiveFrom, EffectiveTo).
// A zero EffectiveTo leaves the flag active indefinitely.
type Flag struct {
	EffectiveFrom time.Time `json:"effective_from"`
	EffectiveTo   time.Time `json:"effective_to,omitempty"`
	Name          string    `json:"name"`
}

// ActiveAt reports whether the flag applies at t.
func (f Flag) ActiveAt(t time.Time) bool {
	if t.Before(f.EffectiveFrom) {
		return false
	}
	return f.EffectiveTo.IsZero() || t.Before(f.EffectiveTo)
}

// ProductType names the contract that runs an account.
type ProductType string

const (
	ProductCASA       ProductType = "casa"
	ProductCreditCard ProductType = "credit_card"
	ProductMurabahah  ProductType = "murabahah"
)
