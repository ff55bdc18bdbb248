package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/services/product-service/internal/domain/service"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

// stubContract returns whatever its func fields return.
type stubContract struct {
	scheduledFn func(service.HookRequest) (service.HookResult, error)
}

func (stubContract) ProductType() valueobject.ProductType            { return "stub" }
func (stubContract) Tside() valueobject.Tside                        { return valueobject.TsideLiability }
func (stubContract) ValidateParameters(valueobject.Parameters) error { return nil }
func (stubContract) PrePosting(service.HookRequest) error            { return nil }
func (stubContract) PostPosting(service.HookRequest) (service.HookResult, error) {
	return service.HookResult{}, nil
}
func (stubContract) Close(service.HookRequest) (service.HookResult, error) {
	return service.HookResult{}, nil
}
func (stubContract) ExecutionSchedules(service.HookRequest) ([]valueobject.EventSchedule, error) {
	return nil, nil
}
func (s stubContract) Scheduled(req service.HookRequest) (service.HookResult, error) {
	return s.scheduledFn(req)
}

func TestEngine_UnknownHook(t *testing.T) {
	acc := newAccount(accountOpts{product: valueobject.ProductCASA, tside: valueobject.TsideLiability, params: casaParams()})

	_, err := engine().Invoke("derived_parameters", request(acc, opened, ""))
	assert.ErrorIs(t, err, service.ErrUnknownHook)
}

func TestEngine_UnknownProduct(t *testing.T) {
	acc := newAccount(accountOpts{product: "mortgage", tside: valueobject.TsideAsset})

	_, err := engine().Invoke(service.HookScheduled, request(acc, opened, "ACCRUE"))
	assert.ErrorIs(t, err, service.ErrUnknownProduct)
}

func TestEngine_PostingHooksNeedBatch(t *testing.T) {
	acc := newAccount(accountOpts{product: valueobject.ProductCASA, tside: valueobject.TsideLiability, params: casaParams()})

	for _, hook := range []string{service.HookPrePosting, service.HookPostPosting} {
		_, err := engine().Invoke(hook, request(acc, opened, ""))
		assert.ErrorIs(t, err, service.ErrMissingBatch, hook)
	}
}

func TestEngine_RejectsUnbalancedBatches(t *testing.T) {
	stub := stubContract{scheduledFn: func(req service.HookRequest) (service.HookResult, error) {
		pi := valueobject.Transfer("X", d("1"), "GBP",
			valueobject.Account(req.AccountID()), valueobject.Account("1"), nil)
		pi.Postings[1].Amount = d("2")
		return service.HookResult{Batches: []valueobject.PostingInstructionBatch{req.NewBatch("X", pi)}}, nil
	}}
	acc := newAccount(accountOpts{product: "stub", tside: valueobject.TsideLiability})

	_, err := service.NewEngine(stub).Invoke(service.HookScheduled, request(acc, opened, "X"))
	assert.ErrorIs(t, err, valueobject.ErrUnbalancedInstruction)
}

func TestEngine_Products(t *testing.T) {
	assert.Equal(t, []valueobject.ProductType{
		valueobject.ProductCASA, valueobject.ProductCreditCard, valueobject.ProductMurabahah,
	}, engine().Products())
}

func TestHookRequest_NewBatchIsDeterministic(t *testing.T) {
	acc := newAccount(accountOpts{product: valueobject.ProductCASA, tside: valueobject.TsideLiability})
	req := request(acc, at(1, 2, 0, 0), "ACCRUE")

	a := req.NewBatch("ACCRUE")
	b := req.NewBatch("ACCRUE")
	require.Equal(t, a.ID, b.ID)
	assert.Equal(t, "ACCRUE_"+hookID, a.ClientBatchID)
	assert.Equal(t, req.EffectiveTime, a.ValueTimestamp)

	req.HookExecutionID = "hook2"
	assert.NotEqual(t, a.ID, req.NewBatch("ACCRUE").ID)
}
