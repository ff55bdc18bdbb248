package valueobject

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClientTransactionStatus summarises where a client transaction is in its lifecycle.
type ClientTransactionStatus string

const (
	StatusAuthorised       ClientTransactionStatus = "AUTHORISED"
	StatusPartiallySettled ClientTransactionStatus = "PARTIALLY_SETTLED"
	StatusSettled          ClientTransactionStatus = "SETTLED"
	StatusReleased         ClientTransactionStatus = "RELEASED"
	StatusCancelled        ClientTransactionStatus = "CANCELLED"
	StatusHardSettled      ClientTransactionStatus = "HARD_SETTLED"
)

// ClientTransaction is the ordered set of instructions sharing a client transaction id.
type ClientTransaction struct {
	ID           string               `json:"id"`
	Instructions []PostingInstruction `json:"instructions"`
	Cancelled    bool                 `json:"cancelled,omitempty"`
}

// With returns a copy with pi appended.
func (ct ClientTransaction) With(pi PostingInstruction) ClientTransaction {
	out := ClientTransaction{ID: ct.ID, Cancelled: ct.Cancelled}
	out.Instructions = append(make([]PostingInstruction, 0, len(ct.Instructions)+1), ct.Instructions...)
	out.Instructions = append(out.Instructions, pi)
	return out
}

// StartTime is the value timestamp of the first instruction.
func (ct ClientTransaction) StartTime() time.Time {
	if len(ct.Instructions) == 0 {
		return time.Time{}
	}
	return ct.Instructions[0].ValueTimestamp
}

func (ct ClientTransaction) first() InstructionType {
	if len(ct.Instructions) == 0 {
		return ""
	}
	return ct.Instructions[0].Type
}

// IsInternal reports whether the transaction only holds transfers or custom instructions.
func (ct ClientTransaction) IsInternal() bool {
	for _, pi := range ct.Instructions {
		if pi.IsCustomerInitiated() {
			return false
		}
	}
	return true
}

// IsOutbound reports whether the transaction moves money out of the customer account.
func (ct ClientTransaction) IsOutbound() bool {
	switch ct.first() {
	case InstructionOutboundAuthorisation, InstructionOutboundHardSettlement, InstructionTransfer:
		return true
	}
	return false
}

// IsAuthorisation reports whether the transaction started with an authorisation.
func (ct ClientTransaction) IsAuthorisation() bool {
	t := ct.first()
	return t == InstructionOutboundAuthorisation || t == InstructionInboundAuthorisation
}

// AuthorisedAmount is the authorised amount including adjustments.
func (ct ClientTransaction) AuthorisedAmount() decimal.Decimal {
	total := decimal.Zero
	for _, pi := range ct.Instructions {
		switch pi.Type {
		case InstructionOutboundAuthorisation, InstructionInboundAuthorisation, InstructionAuthorisationAdjustment:
			total = total.Add(pi.Amount)
		}
	}
	return total
}

// SettledAmount is the amount committed by settlements and hard settlements.
func (ct ClientTransaction) SettledAmount() decimal.Decimal {
	total := decimal.Zero
	for _, pi := range ct.Instructions {
		switch pi.Type {
		case InstructionSettlement, InstructionOutboundHardSettlement, InstructionInboundHardSettlement, InstructionTransfer:
			total = total.Add(pi.Amount)
		}
	}
	return total
}

// Released reports whether the remaining authorisation has been released,
// either explicitly or by a final settlement.
func (ct ClientTransaction) Released() bool {
	for _, pi := range ct.Instructions {
		if pi.Type == InstructionRelease || (pi.Type == InstructionSettlement && pi.Final) {
			return true
		}
	}
	return false
}

// PendingAmount is the authorised amount still waiting to settle.
func (ct ClientTransaction) PendingAmount() decimal.Decimal {
	if ct.Cancelled || ct.Released() {
		return decimal.Zero
	}
	pending := ct.AuthorisedAmount().Sub(ct.SettledAmount())
	if pending.IsNegative() {
		return decimal.Zero
	}
	return pending
}

// FirstSettlementTime is when the transaction first committed funds.
func (ct ClientTransaction) FirstSettlementTime() (time.Time, bool) {
	for _, pi := range ct.Instructions {
		switch pi.Type {
		case InstructionSettlement, InstructionOutboundHardSettlement, InstructionInboundHardSettlement, InstructionTransfer:
			return pi.ValueTimestamp, true
		}
	}
	return time.Time{}, false
}

// Status derives the lifecycle status from the instructions.
func (ct ClientTransaction) Status() ClientTransactionStatus {
	if ct.Cancelled {
		return StatusCancelled
	}
	if !ct.IsAuthorisation() {
		return StatusHardSettled
	}
	settled := ct.SettledAmount()
	switch {
	case settled.IsZero() && ct.Released():
		return StatusReleased
	case settled.IsZero():
		return StatusAuthorised
	case ct.Released() || settled.GreaterThanOrEqual(ct.AuthorisedAmount()):
		return StatusSettled
	default:
		return StatusPartiallySettled
	}
}

// EffectiveAmount is the amount the transaction currently moves: pending plus settled.
func (ct ClientTransaction) EffectiveAmount() decimal.Decimal {
	if ct.Cancelled {
		return decimal.Zero
	}
	return ct.SettledAmount().Add(ct.PendingAmount())
}

// CountsAsWithdrawal reports whether the transaction is an external outbound
// movement that has committed funds.
func (ct ClientTransaction) CountsAsWithdrawal() bool {
	if ct.IsInternal() || !ct.IsOutbound() {
		return false
	}
	switch ct.Status() {
	case StatusSettled, StatusPartiallySettled, StatusHardSettled:
		return true
	}
	return false
}

// CountMonthlyWithdrawals counts the withdrawals whose funds were first
// committed in [monthStart, effective].
func CountMonthlyWithdrawals(txs []ClientTransaction, monthStart, effective time.Time) int {
	n := 0
	for _, ct := range txs {
		if !ct.CountsAsWithdrawal() {
			continue
		}
		at, ok := ct.FirstSettlementTime()
		if !ok || at.Before(monthStart) || at.After(effective) {
			continue
		}
		n++
	}
	return n
}

// MonthStart returns midnight on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// DayStart returns midnight of t's day.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
