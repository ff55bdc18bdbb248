package service_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/services/product-service/internal/domain/model"
	"github.com/bibbank/bib/services/product-service/internal/domain/service"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

const hookID = "hook1"

var (
	accountID = uuid.MustParse("6f1d2c3b-8a4e-4c59-9e0f-1a2b3c4d5e6f")
	opened    = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func at(month time.Month, day, hour, minute int) time.Time {
	return time.Date(2024, month, day, hour, minute, 0, 0, time.UTC)
}

// obs builds a GBP committed observation of a liability account from
// address/net pairs.
func obs(when time.Time, kv ...string) valueobject.BalanceObservation {
	return seeded(when, valueobject.TsideLiability, kv)
}

// assetObs is obs for an asset account.
func assetObs(when time.Time, kv ...string) valueobject.BalanceObservation {
	return seeded(when, valueobject.TsideAsset, kv)
}

func seeded(when time.Time, tside valueobject.Tside, kv []string) valueobject.BalanceObservation {
	set := valueobject.BalanceSet{}
	for i := 0; i+1 < len(kv); i += 2 {
		net := d(kv[i+1])
		b := valueobject.Balance{Credit: decimal.Zero, Debit: decimal.Zero, Net: net}
		if net.IsPositive() == (tside == valueobject.TsideLiability) {
			b.Credit = net.Abs()
		} else {
			b.Debit = net.Abs()
		}
		set[valueobject.Coordinate(kv[i], "GBP")] = b
	}
	return valueobject.BalanceObservation{At: when, Balances: set}
}

type accountOpts struct {
	product valueobject.ProductType
	tside   valueobject.Tside
	params  valueobject.Parameters
	flags   []string
	series  []valueobject.BalanceObservation
	txs     []valueobject.ClientTransaction
}

func newAccount(o accountOpts) model.Account {
	flags := make([]valueobject.Flag, 0, len(o.flags))
	for _, f := range o.flags {
		flags = append(flags, valueobject.Flag{Name: f, EffectiveFrom: opened})
	}
	return model.ReconstructAccount(model.AccountState{
		ID:                 accountID,
		ProductType:        o.product,
		Tside:              o.tside,
		Denomination:       "GBP",
		Parameters:         o.params,
		Flags:              flags,
		Balances:           o.series,
		ClientTransactions: o.txs,
		Status:             model.AccountStatusOpen,
		OpenedAt:           opened,
		UpdatedAt:          opened,
		Version:            1,
	})
}

func request(acc model.Account, when time.Time, eventType string) service.HookRequest {
	return service.HookRequest{Account: acc, EffectiveTime: when, HookExecutionID: hookID, EventType: eventType}
}

func withBatch(req service.HookRequest, instructions ...valueobject.PostingInstruction) service.HookRequest {
	req.Batch = &valueobject.PostingInstructionBatch{
		ID:             uuid.New(),
		ClientBatchID:  "client-batch",
		Instructions:   instructions,
		ValueTimestamp: req.EffectiveTime,
	}
	return req
}

func instruction(t *testing.T, typ valueobject.InstructionType, ctid, amount, denom string, details map[string]string, existing *valueobject.ClientTransaction) valueobject.PostingInstruction {
	t.Helper()
	pi, err := valueobject.BuildInstruction(valueobject.InstructionSpec{
		Type:                typ,
		Amount:              d(amount),
		ClientTransactionID: ctid,
		AccountID:           accountID.String(),
		CounterpartyID:      "1",
		Denomination:        denom,
		Details:             details,
	}, existing)
	require.NoError(t, err)
	return pi
}

func ctid(event, subtype, address string) string {
	return valueobject.ClientTransactionID{
		Event:        event,
		Subtype:      subtype,
		HookID:       hookID,
		Address:      address,
		Denomination: "GBP",
	}.String()
}

// find returns the instruction with the given client transaction id.
func find(t *testing.T, res service.HookResult, id string) valueobject.PostingInstruction {
	t.Helper()
	for _, b := range res.Batches {
		for _, pi := range b.Instructions {
			if pi.ClientTransactionID == id {
				return pi
			}
		}
	}
	require.Failf(t, "instruction not found", "client transaction %s", id)
	return valueobject.PostingInstruction{}
}

func has(res service.HookResult, id string) bool {
	for _, b := range res.Batches {
		for _, pi := range b.Instructions {
			if pi.ClientTransactionID == id {
				return true
			}
		}
	}
	return false
}

// net applies every returned batch to an empty set and reads address.
func net(res service.HookResult, tside valueobject.Tside, address string) decimal.Decimal {
	set := valueobject.BalanceSet{}
	for _, b := range res.Batches {
		set = set.Apply(b.Postings(), accountID.String(), tside)
	}
	return set.Net(valueobject.Coordinate(address, "GBP"))
}

func engine() *service.Engine {
	return service.NewEngine(service.NewCASA(), service.NewCreditCard(), service.NewMurabahah())
}

func assertRejected(t *testing.T, err error, reason valueobject.RejectionReason, message string) {
	t.Helper()
	rej, ok := valueobject.AsRejection(err)
	require.True(t, ok, "expected a rejection, got %v", err)
	require.Equal(t, reason, rej.Reason)
	require.Equal(t, message, rej.Message)
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
