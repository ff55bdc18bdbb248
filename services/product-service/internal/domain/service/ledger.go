package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

// Shared instruction detail keys.
const (
	DetailForceOverride   = "force_override"
	DetailTransactionCode = "transaction_code"
	DetailPaymentType     = "PAYMENT_TYPE"
	DetailEvent           = "event"
	DetailDescription     = "description"
)

// Client transaction subtypes for accrual bookkeeping.
const (
	subtypeCustomer          = "CUSTOMER"
	subtypeInternal          = "INTERNAL"
	subtypeTracking          = "TRACKING"
	subtypeRemainderTracking = "REMAINDER_TRACKING"
	subtypeRemainderInternal = "REMAINDER_INTERNAL"
)

// accrualBook tracks an accrued amount on a customer address, balanced by
// INTERNAL_CONTRA, and mirrors it between two internal accounts.
//
// Payable books (interest owed to the customer) move the mirror from the
// pnl expense account to the accrued account. Receivable books (interest or
// fees owed by the customer) move it from the accrued account to the pnl
// income account. Tracking addresses are read on liability accounts.
type accrualBook struct {
	address    string
	accrued    string
	pnl        string
	receivable bool
}

// Accrued returns the magnitude tracked on the customer address.
func (b accrualBook) Accrued(set valueobject.BalanceSet, denomination string) decimal.Decimal {
	net := set.Net(valueobject.Coordinate(b.address, denomination))
	if b.receivable {
		return net.Neg()
	}
	return net
}

// AccruedSince returns the gross amount tracked on the customer address from
// from up to to. Applications and reversals do not reduce it.
func (b accrualBook) AccruedSince(ts valueobject.BalanceTimeseries, from, to time.Time, denomination string) decimal.Decimal {
	c := valueobject.Coordinate(b.address, denomination)
	gross := func(bal valueobject.Balance) decimal.Decimal {
		if b.receivable {
			return bal.Debit
		}
		return bal.Credit
	}
	return gross(ts.At(to).Get(c)).Sub(gross(ts.At(from.Add(-time.Nanosecond)).Get(c)))
}

func (b accrualBook) details(event string) map[string]string {
	return map[string]string{DetailEvent: event}
}

// accrue tracks amount on the customer address. Negative amounts reverse.
func (b accrualBook) accrue(req HookRequest, event, denomination string, amount decimal.Decimal) []valueobject.PostingInstruction {
	return b.move(req, event, subtypeCustomer, subtypeInternal, denomination, amount)
}

// move is accrue with explicit subtypes so remainders get their own ids.
func (b accrualBook) move(req HookRequest, event, trackingSubtype, internalSubtype, denomination string, amount decimal.Decimal) []valueobject.PostingInstruction {
	if amount.IsZero() {
		return nil
	}
	forward := amount.IsPositive() != b.receivable
	amount = amount.Abs()

	id := req.AccountID()
	contra := valueobject.At(id, valueobject.InternalContraAddress)
	tracked := valueobject.At(id, b.address)
	accrued := valueobject.Account(b.accrued)
	pnl := valueobject.Account(b.pnl)

	// forward: payable accrual or receivable reversal.
	trackFrom, trackTo := contra, tracked
	glFrom, glTo := pnl, accrued
	if !forward {
		trackFrom, trackTo = tracked, contra
		glFrom, glTo = accrued, pnl
	}
	return []valueobject.PostingInstruction{
		valueobject.Transfer(req.ClientTransactionID(event, trackingSubtype, b.address, denomination),
			amount, denomination, trackFrom, trackTo, b.details(event)),
		valueobject.Transfer(req.ClientTransactionID(event, internalSubtype, b.address, denomination),
			amount, denomination, glFrom, glTo, b.details(event)),
	}
}

// reverse zeroes the tracked amount without paying it out.
func (b accrualBook) reverse(req HookRequest, event, denomination string, set valueobject.BalanceSet) []valueobject.PostingInstruction {
	return b.accrue(req, event, denomination, b.Accrued(set, denomination).Neg())
}

// apply settles the tracked amount with the customer at 2 dp and zeroes the
// signed remainder.
func (b accrualBook) apply(req HookRequest, event, denomination string, set valueobject.BalanceSet, mode money.RoundingMode) []valueobject.PostingInstruction {
	accrued := b.Accrued(set, denomination)
	if accrued.IsZero() {
		return nil
	}
	applied, remainder := ApplicationAmounts(accrued, ApplicationPrecision, mode)
	if !applied.IsPositive() {
		applied, remainder = decimal.Zero, accrued
	}

	var out []valueobject.PostingInstruction
	id := req.AccountID()
	if applied.IsPositive() {
		contra := valueobject.At(id, valueobject.InternalContraAddress)
		tracked := valueobject.At(id, b.address)
		customer := valueobject.Account(id)
		accruedGL := valueobject.Account(b.accrued)

		cashFrom, cashTo := accruedGL, customer
		trackFrom, trackTo := tracked, contra
		if b.receivable {
			cashFrom, cashTo = customer, accruedGL
			trackFrom, trackTo = contra, tracked
		}
		out = append(out,
			valueobject.Transfer(req.ClientTransactionID(event, subtypeCustomer, b.address, denomination),
				applied, denomination, cashFrom, cashTo, b.details(event)),
			valueobject.Transfer(req.ClientTransactionID(event, subtypeTracking, b.address, denomination),
				applied, denomination, trackFrom, trackTo, b.details(event)),
		)
	}
	out = append(out, b.move(req, event, subtypeRemainderTracking, subtypeRemainderInternal, denomination, remainder.Neg())...)
	return out
}

// charge moves amount from the customer's DEFAULT address to an internal account.
func charge(req HookRequest, event, subtype, denomination, account string, amount decimal.Decimal) []valueobject.PostingInstruction {
	if !amount.IsPositive() {
		return nil
	}
	return []valueobject.PostingInstruction{
		valueobject.Transfer(req.ClientTransactionID(event, subtype, valueobject.DefaultAddress, denomination),
			amount, denomination, valueobject.Account(req.AccountID()), valueobject.Account(account),
			map[string]string{DetailEvent: event}),
	}
}
