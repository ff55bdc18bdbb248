package valueobject

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrUnbalancedInstruction is returned when an instruction's legs do not net to zero.
var ErrUnbalancedInstruction = errors.New("posting instruction does not net to zero")

// ErrInvalidPosting is returned for postings with a non-positive amount or missing fields.
var ErrInvalidPosting = errors.New("invalid posting")

// Posting is a single ledger leg.
type Posting struct {
	Amount       decimal.Decimal `json:"amount"`
	Denomination string          `json:"denomination"`
	AccountID    string          `json:"account_id"`
	Address      string          `json:"address"`
	Asset        string          `json:"asset"`
	Phase        Phase           `json:"phase"`
	Credit       bool            `json:"credit"`
}

// Coordinate returns the balance coordinate the posting moves.
func (p Posting) Coordinate() BalanceCoordinate {
	return BalanceCoordinate{Address: p.Address, Asset: p.Asset, Denomination: p.Denomination, Phase: p.Phase}
}

// InstructionType enumerates the kinds of posting instruction.
type InstructionType string

const (
	InstructionInboundAuthorisation    InstructionType = "INBOUND_AUTHORISATION"
	InstructionOutboundAuthorisation   InstructionType = "OUTBOUND_AUTHORISATION"
	InstructionAuthorisationAdjustment InstructionType = "AUTHORISATION_ADJUSTMENT"
	InstructionSettlement              InstructionType = "SETTLEMENT"
	InstructionRelease                 InstructionType = "RELEASE"
	InstructionInboundHardSettlement   InstructionType = "INBOUND_HARD_SETTLEMENT"
	InstructionOutboundHardSettlement  InstructionType = "OUTBOUND_HARD_SETTLEMENT"
	InstructionTransfer                InstructionType = "TRANSFER"
	InstructionCustom                  InstructionType = "CUSTOM_INSTRUCTION"
)

// ParseInstructionType validates an instruction type string.
func ParseInstructionType(s string) (InstructionType, error) {
	switch t := InstructionType(s); t {
	case InstructionInboundAuthorisation, InstructionOutboundAuthorisation, InstructionAuthorisationAdjustment,
		InstructionSettlement, InstructionRelease, InstructionInboundHardSettlement,
		InstructionOutboundHardSettlement, InstructionTransfer, InstructionCustom:
		return t, nil
	}
	return "", fmt.Errorf("unknown instruction type %q", s)
}

// PostingInstruction groups the legs of one movement under a client transaction.
type PostingInstruction struct {
	ValueTimestamp      time.Time         `json:"value_timestamp"`
	Details             map[string]string `json:"details,omitempty"`
	Amount              decimal.Decimal   `json:"amount"`
	Type                InstructionType   `json:"type"`
	ClientTransactionID string            `json:"client_transaction_id"`
	Postings            []Posting         `json:"postings"`
	Final               bool              `json:"final,omitempty"`
}

// Detail returns the instruction detail for key.
func (pi PostingInstruction) Detail(key string) string {
	return pi.Details[key]
}

// IsCustomerInitiated reports whether the instruction moves money across the
// customer boundary rather than between contract-managed addresses.
func (pi PostingInstruction) IsCustomerInitiated() bool {
	return pi.Type != InstructionTransfer && pi.Type != InstructionCustom
}

// ValidateNetZero checks every leg amount is positive and the legs net to zero
// per denomination, asset and phase.
func (pi PostingInstruction) ValidateNetZero() error {
	if len(pi.Postings) == 0 {
		return fmt.Errorf("%w: instruction %s has no postings", ErrInvalidPosting, pi.ClientTransactionID)
	}
	type key struct {
		denomination string
		asset        string
		phase        Phase
	}
	sums := make(map[key]decimal.Decimal)
	for _, p := range pi.Postings {
		if !p.Amount.IsPositive() {
			return fmt.Errorf("%w: instruction %s has leg amount %s", ErrInvalidPosting, pi.ClientTransactionID, p.Amount)
		}
		if p.AccountID == "" || p.Address == "" || p.Denomination == "" {
			return fmt.Errorf("%w: instruction %s has an incomplete leg", ErrInvalidPosting, pi.ClientTransactionID)
		}
		k := key{p.Denomination, p.Asset, p.Phase}
		if p.Credit {
			sums[k] = sums[k].Add(p.Amount)
		} else {
			sums[k] = sums[k].Sub(p.Amount)
		}
	}
	for k, v := range sums {
		if !v.IsZero() {
			return fmt.Errorf("%w: %s %s %s off by %s in %s", ErrUnbalancedInstruction, k.denomination, k.asset, k.phase, v, pi.ClientTransactionID)
		}
	}
	return nil
}

// Target is one side of a transfer.
type Target struct {
	AccountID string
	Address   string
}

// Account returns the DEFAULT address of accountID.
func Account(accountID string) Target {
	return Target{AccountID: accountID, Address: DefaultAddress}
}

// At returns the given address of accountID.
func At(accountID, address string) Target {
	return Target{AccountID: accountID, Address: address}
}

// Transfer builds a committed custom instruction moving amount from one target to another.
func Transfer(clientTxID string, amount decimal.Decimal, denomination string, from, to Target, details map[string]string) PostingInstruction {
	return PostingInstruction{
		Type:                InstructionCustom,
		ClientTransactionID: clientTxID,
		Amount:              amount,
		Details:             details,
		Postings: []Posting{
			{Credit: false, Amount: amount, Denomination: denomination, AccountID: from.AccountID, Address: from.Address, Asset: DefaultAsset, Phase: PhaseCommitted},
			{Credit: true, Amount: amount, Denomination: denomination, AccountID: to.AccountID, Address: to.Address, Asset: DefaultAsset, Phase: PhaseCommitted},
		},
	}
}

// legs moves amount between the customer's DEFAULT address and the
// counterparty in one phase. Outbound debits the customer.
func legs(accountID, counterpartyID string, amount decimal.Decimal, denomination string, phase Phase, outbound bool) []Posting {
	return []Posting{
		{Credit: !outbound, Amount: amount, Denomination: denomination, AccountID: accountID, Address: DefaultAddress, Asset: DefaultAsset, Phase: phase},
		{Credit: outbound, Amount: amount, Denomination: denomination, AccountID: counterpartyID, Address: DefaultAddress, Asset: DefaultAsset, Phase: phase},
	}
}

func pendingPhase(outbound bool) Phase {
	if outbound {
		return PhasePendingOutgoing
	}
	return PhasePendingIncoming
}

// InstructionSpec describes a customer instruction before its legs are built.
type InstructionSpec struct {
	Details             map[string]string
	Amount              decimal.Decimal
	Type                InstructionType
	ClientTransactionID string
	AccountID           string
	CounterpartyID      string
	Denomination        string
	Final               bool
}

// BuildInstruction turns req into a balanced instruction. Settlement, release
// and adjustment need the existing client transaction to size their legs.
func BuildInstruction(req InstructionSpec, existing *ClientTransaction) (PostingInstruction, error) {
	if req.ClientTransactionID == "" || req.AccountID == "" || req.CounterpartyID == "" {
		return PostingInstruction{}, fmt.Errorf("%w: client transaction, account and counterparty are required", ErrInvalidPosting)
	}
	pi := PostingInstruction{
		Type:                req.Type,
		ClientTransactionID: req.ClientTransactionID,
		Amount:              req.Amount,
		Details:             req.Details,
		Final:               req.Final,
	}
	d := req.Denomination

	switch req.Type {
	case InstructionOutboundAuthorisation, InstructionInboundAuthorisation:
		if existing != nil {
			return PostingInstruction{}, fmt.Errorf("%w: client transaction %s already exists", ErrInvalidPosting, req.ClientTransactionID)
		}
		outbound := req.Type == InstructionOutboundAuthorisation
		pi.Postings = legs(req.AccountID, req.CounterpartyID, req.Amount, d, pendingPhase(outbound), outbound)

	case InstructionOutboundHardSettlement, InstructionInboundHardSettlement, InstructionTransfer:
		if existing != nil {
			return PostingInstruction{}, fmt.Errorf("%w: client transaction %s already exists", ErrInvalidPosting, req.ClientTransactionID)
		}
		outbound := req.Type != InstructionInboundHardSettlement
		pi.Postings = legs(req.AccountID, req.CounterpartyID, req.Amount, d, PhaseCommitted, outbound)

	case InstructionAuthorisationAdjustment:
		if existing == nil || !existing.IsAuthorisation() {
			return PostingInstruction{}, fmt.Errorf("%w: adjustment needs an open authorisation", ErrInvalidPosting)
		}
		outbound := existing.IsOutbound()
		phase := pendingPhase(outbound)
		if req.Amount.IsNegative() {
			pi.Postings = legs(req.AccountID, req.CounterpartyID, req.Amount.Neg(), d, phase, !outbound)
		} else {
			pi.Postings = legs(req.AccountID, req.CounterpartyID, req.Amount, d, phase, outbound)
		}

	case InstructionSettlement:
		if existing == nil || !existing.IsAuthorisation() {
			return PostingInstruction{}, fmt.Errorf("%w: settlement needs an open authorisation", ErrInvalidPosting)
		}
		outbound := existing.IsOutbound()
		pending := existing.PendingAmount()
		settle := req.Amount
		if settle.IsZero() {
			settle = pending
			pi.Amount = pending
		}
		release := decimal.Min(settle, pending)
		if req.Final {
			release = pending
		}
		if release.IsPositive() {
			pi.Postings = append(pi.Postings, legs(req.AccountID, req.CounterpartyID, release, d, pendingPhase(outbound), !outbound)...)
		}
		pi.Postings = append(pi.Postings, legs(req.AccountID, req.CounterpartyID, settle, d, PhaseCommitted, outbound)...)

	case InstructionRelease:
		if existing == nil || !existing.IsAuthorisation() {
			return PostingInstruction{}, fmt.Errorf("%w: release needs an open authorisation", ErrInvalidPosting)
		}
		outbound := existing.IsOutbound()
		pending := existing.PendingAmount()
		pi.Amount = pending
		pi.Final = true
		if pending.IsPositive() {
			pi.Postings = legs(req.AccountID, req.CounterpartyID, pending, d, pendingPhase(outbound), !outbound)
		}

	default:
		return PostingInstruction{}, fmt.Errorf("%w: instruction type %q cannot be submitted", ErrInvalidPosting, req.Type)
	}

	return pi, nil
}

// PostingInstructionBatch is an ordered group of instructions accepted or rejected together.
type PostingInstructionBatch struct {
	ValueTimestamp time.Time            `json:"value_timestamp"`
	ClientBatchID  string               `json:"client_batch_id"`
	Instructions   []PostingInstruction `json:"instructions"`
	ID             uuid.UUID            `json:"id"`
}

// ValidateNetZero validates every instruction in the batch.
func (b PostingInstructionBatch) ValidateNetZero() error {
	for _, pi := range b.Instructions {
		if err := pi.ValidateNetZero(); err != nil {
			return err
		}
	}
	return nil
}

// Postings flattens the legs of every instruction.
func (b PostingInstructionBatch) Postings() []Posting {
	var out []Posting
	for _, pi := range b.Instructions {
		out = append(out, pi.Postings...)
	}
	return out
}

// ClientTransactionID encodes the deterministic id of a contract-generated instruction.
type ClientTransactionID struct {
	Event        string
	Subtype      string
	HookID       string
	Address      string
	Asset        string
	Denomination string
}

// String renders <EVENT>_<SUBTYPE>_<HOOK_ID>_<ADDRESS>_<ASSET>_<DENOMINATION>.
func (id ClientTransactionID) String() string {
	asset := id.Asset
	if asset == "" {
		asset = DefaultAsset
	}
	return strings.Join([]string{id.Event, id.Subtype, id.HookID, id.Address, asset, id.Denomination}, "_")
}
