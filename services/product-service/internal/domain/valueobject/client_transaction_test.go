package valueobject_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

func instr(typ valueobject.InstructionType, amount string, at time.Time, final bool) valueobject.PostingInstruction {
	return valueobject.PostingInstruction{Type: typ, Amount: d(amount), ValueTimestamp: at, Final: final}
}

func tx(id string, instructions ...valueobject.PostingInstruction) valueobject.ClientTransaction {
	return valueobject.ClientTransaction{ID: id, Instructions: instructions}
}

func TestClientTransaction_Status(t *testing.T) {
	at := day(5)
	tests := []struct {
		name string
		ct   valueobject.ClientTransaction
		want valueobject.ClientTransactionStatus
	}{
		{"authorised", tx("a", instr(valueobject.InstructionOutboundAuthorisation, "10", at, false)), valueobject.StatusAuthorised},
		{"partially settled", tx("a",
			instr(valueobject.InstructionOutboundAuthorisation, "10", at, false),
			instr(valueobject.InstructionSettlement, "4", at, false)), valueobject.StatusPartiallySettled},
		{"settled", tx("a",
			instr(valueobject.InstructionOutboundAuthorisation, "10", at, false),
			instr(valueobject.InstructionSettlement, "10", at, false)), valueobject.StatusSettled},
		{"final partial settlement", tx("a",
			instr(valueobject.InstructionOutboundAuthorisation, "10", at, false),
			instr(valueobject.InstructionSettlement, "4", at, true)), valueobject.StatusSettled},
		{"released", tx("a",
			instr(valueobject.InstructionOutboundAuthorisation, "10", at, false),
			instr(valueobject.InstructionRelease, "10", at, true)), valueobject.StatusReleased},
		{"hard settled", tx("a", instr(valueobject.InstructionOutboundHardSettlement, "10", at, false)), valueobject.StatusHardSettled},
		{"cancelled", valueobject.ClientTransaction{ID: "a", Cancelled: true, Instructions: []valueobject.PostingInstruction{
			instr(valueobject.InstructionOutboundAuthorisation, "10", at, false)}}, valueobject.StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ct.Status())
		})
	}
}

func TestCountMonthlyWithdrawals(t *testing.T) {
	monthStart := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	effective := time.Date(2024, time.January, 20, 12, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2023, time.December, 30, 0, 0, 0, 0, time.UTC)

	txs := []valueobject.ClientTransaction{
		tx("hard", instr(valueobject.InstructionOutboundHardSettlement, "10", day(2), false)),
		tx("settled", instr(valueobject.InstructionOutboundAuthorisation, "10", day(3), false), instr(valueobject.InstructionSettlement, "10", day(4), false)),
		tx("partial", instr(valueobject.InstructionOutboundAuthorisation, "10", day(3), false), instr(valueobject.InstructionSettlement, "5", day(4), false)),
		tx("unsettled", instr(valueobject.InstructionOutboundAuthorisation, "10", day(3), false)),
		tx("released", instr(valueobject.InstructionOutboundAuthorisation, "10", day(3), false), instr(valueobject.InstructionRelease, "10", day(4), true)),
		{ID: "cancelled", Cancelled: true, Instructions: []valueobject.PostingInstruction{instr(valueobject.InstructionOutboundHardSettlement, "10", day(5), false)}},
		tx("internal", instr(valueobject.InstructionCustom, "10", day(6), false)),
		tx("deposit", instr(valueobject.InstructionInboundHardSettlement, "10", day(6), false)),
		tx("last-month", instr(valueobject.InstructionOutboundHardSettlement, "10", lastMonth, false)),
		tx("future", instr(valueobject.InstructionOutboundHardSettlement, "10", day(25), false)),
	}

	assert.Equal(t, 3, valueobject.CountMonthlyWithdrawals(txs, monthStart, effective))
}
