package service

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bibbank/bib/services/product-service/internal/domain/model"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

// Hook names contracts are invoked by.
const (
	HookExecutionSchedules = "execution_schedules"
	HookPrePosting         = "pre_posting_code"
	HookPostPosting        = "post_posting_code"
	HookScheduled          = "scheduled_code"
	HookClose              = "close_code"
)

var (
	ErrUnknownHook    = errors.New("unknown hook")
	ErrUnknownProduct = errors.New("unknown product")
	ErrUnknownEvent   = errors.New("unknown scheduled event")
	ErrMissingBatch   = errors.New("hook requires a posting batch")
)

// HookRequest is what a contract sees when a hook runs.
type HookRequest struct {
	EffectiveTime   time.Time
	Batch           *valueobject.PostingInstructionBatch
	HookExecutionID string
	EventType       string
	Account         model.Account
}

// Parameters returns the account parameters.
func (r HookRequest) Parameters() valueobject.Parameters { return r.Account.Parameters() }

// Flags returns the account flags active at the effective time.
func (r HookRequest) Flags() []string { return r.Account.ActiveFlags(r.EffectiveTime) }

// AccountID returns the ledger id of the account.
func (r HookRequest) AccountID() string { return r.Account.ID().String() }

// ClientTransactionID builds the id of an instruction generated by this hook run.
func (r HookRequest) ClientTransactionID(event, subtype, address, denomination string) string {
	return valueobject.ClientTransactionID{
		Event:        event,
		Subtype:      subtype,
		HookID:       r.HookExecutionID,
		Address:      address,
		Asset:        valueobject.DefaultAsset,
		Denomination: denomination,
	}.String()
}

// NewBatch wraps instructions in a batch whose id is derived from the hook
// execution, so replaying a hook produces the same batch.
func (r HookRequest) NewBatch(name string, instructions ...valueobject.PostingInstruction) valueobject.PostingInstructionBatch {
	clientBatchID := name + "_" + r.HookExecutionID
	return valueobject.PostingInstructionBatch{
		ID:             uuid.NewSHA1(uuid.NameSpaceOID, []byte(r.AccountID()+"/"+clientBatchID)),
		ClientBatchID:  clientBatchID,
		Instructions:   instructions,
		ValueTimestamp: r.EffectiveTime,
	}
}

// HookResult carries the directives a hook returns.
type HookResult struct {
	Batches         []valueobject.PostingInstructionBatch
	ScheduleUpdates []valueobject.EventSchedule
}

func (r HookResult) withBatch(req HookRequest, name string, instructions []valueobject.PostingInstruction) HookResult {
	if len(instructions) > 0 {
		r.Batches = append(r.Batches, req.NewBatch(name, instructions...))
	}
	return r
}

// Contract is the product logic behind an account.
type Contract interface {
	ProductType() valueobject.ProductType
	Tside() valueobject.Tside
	ValidateParameters(params valueobject.Parameters) error
	ExecutionSchedules(req HookRequest) ([]valueobject.EventSchedule, error)
	PrePosting(req HookRequest) error
	PostPosting(req HookRequest) (HookResult, error)
	Scheduled(req HookRequest) (HookResult, error)
	Close(req HookRequest) (HookResult, error)
}

// Engine dispatches hooks to the contract registered for an account's product.
type Engine struct {
	contracts map[valueobject.ProductType]Contract
}

// NewEngine registers contracts by product type.
func NewEngine(contracts ...Contract) *Engine {
	e := &Engine{contracts: make(map[valueobject.ProductType]Contract, len(contracts))}
	for _, c := range contracts {
		e.contracts[c.ProductType()] = c
	}
	return e
}

// Products lists the registered product types.
func (e *Engine) Products() []valueobject.ProductType {
	out := make([]valueobject.ProductType, 0, len(e.contracts))
	for p := range e.contracts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contract returns the contract for product.
func (e *Engine) Contract(product valueobject.ProductType) (Contract, error) {
	c, ok := e.contracts[product]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, product)
	}
	return c, nil
}

// Invoke runs hook by name for the request's account. Every batch a hook
// returns must net to zero.
func (e *Engine) Invoke(hook string, req HookRequest) (HookResult, error) {
	c, err := e.Contract(req.Account.ProductType())
	if err != nil {
		return HookResult{}, err
	}

	var res HookResult
	switch hook {
	case HookExecutionSchedules:
		res.ScheduleUpdates, err = c.ExecutionSchedules(req)
	case HookPrePosting:
		if req.Batch == nil {
			return HookResult{}, fmt.Errorf("%s: %w", hook, ErrMissingBatch)
		}
		err = c.PrePosting(req)
	case HookPostPosting:
		if req.Batch == nil {
			return HookResult{}, fmt.Errorf("%s: %w", hook, ErrMissingBatch)
		}
		res, err = c.PostPosting(req)
	case HookScheduled:
		res, err = c.Scheduled(req)
	case HookClose:
		res, err = c.Close(req)
	default:
		return HookResult{}, fmt.Errorf("%w: %q", ErrUnknownHook, hook)
	}
	if err != nil {
		return HookResult{}, err
	}

	for _, b := range res.Batches {
		if err := b.ValidateNetZero(); err != nil {
			return HookResult{}, fmt.Errorf("%s returned batch %s: %w", hook, b.ClientBatchID, err)
		}
	}
	return res, nil
}
