package usecase_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/services/product-service/internal/application/dto"
	"github.com/bibbank/bib/services/product-service/internal/application/usecase"
	"github.com/bibbank/bib/services/product-service/internal/domain/model"
	"github.com/bibbank/bib/services/product-service/internal/domain/service"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

func funded(id uuid.UUID) model.Account {
	return stubAccount(id, valueobject.BalanceObservation{
		At: opened,
		Balances: valueobject.BalanceSet{
			valueobject.Coordinate("DEFAULT", "GBP"): {Credit: d("50"), Net: d("50")},
			valueobject.Coordinate("ACCRUED", "GBP"): {Credit: d("0.5"), Net: d("0.5")},
		},
	})
}

func TestCloseAccount_Execute(t *testing.T) {
	t.Run("successfully applies close batches and closes the account", func(t *testing.T) {
		id := uuid.New()
		repo := repoWith(funded(id))
		metrics := &mockMetrics{}
		contract := &stubContract{
			closeFunc: func(req service.HookRequest) (service.HookResult, error) {
				pi := valueobject.Transfer(
					req.ClientTransactionID("CLOSE", "REVERSE", "ACCRUED", "GBP"),
					d("0.5"), "GBP",
					valueobject.At(req.AccountID(), "ACCRUED"),
					valueobject.Account("accrual-contra"),
					nil,
				)
				return service.HookResult{Batches: []valueobject.PostingInstructionBatch{req.NewBatch("CLOSE", pi)}}, nil
			},
		}
		uc := usecase.NewCloseAccount(repo, usecase.NewAccountLoader(repo, nil, ""), metrics, service.NewEngine(contract))

		resp, err := uc.Execute(context.Background(), dto.CloseAccountRequest{AccountID: id, EffectiveTime: jan2})
		require.NoError(t, err)

		assert.Equal(t, "CLOSED", resp.Status)
		assert.Equal(t, jan2, resp.ClosedAt)
		for _, s := range resp.Schedules {
			assert.False(t, s.Active, s.EventType)
		}

		require.NotNil(t, repo.savedAccount)
		saved := *repo.savedAccount
		assert.False(t, saved.IsOpen())
		assert.True(t, saved.LatestBalances().Net(valueobject.Coordinate("ACCRUED", "GBP")).IsZero())
		assert.Equal(t, 1, metrics.batches[service.HookClose])
	})

	t.Run("returns the contract rejection without closing", func(t *testing.T) {
		id := uuid.New()
		repo := repoWith(funded(id))
		contract := &stubContract{
			closeFunc: func(service.HookRequest) (service.HookResult, error) {
				return service.HookResult{}, valueobject.Reject(valueobject.ReasonAgainstTNC, "Outstanding balance must be repaid before closure.")
			},
		}
		uc := usecase.NewCloseAccount(repo, usecase.NewAccountLoader(repo, nil, ""), &mockMetrics{}, service.NewEngine(contract))

		_, err := uc.Execute(context.Background(), dto.CloseAccountRequest{AccountID: id, EffectiveTime: jan2})
		rejection, ok := valueobject.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, valueobject.ReasonAgainstTNC, rejection.Reason)
		assert.Nil(t, repo.savedAccount)
	})

	t.Run("fails for an already closed account", func(t *testing.T) {
		acc, err := funded(uuid.New()).Close(jan2)
		require.NoError(t, err)
		repo := repoWith(acc)
		uc := usecase.NewCloseAccount(repo, usecase.NewAccountLoader(repo, nil, ""), &mockMetrics{}, service.NewEngine(&stubContract{}))

		_, err = uc.Execute(context.Background(), dto.CloseAccountRequest{AccountID: acc.ID(), EffectiveTime: jan2.AddDate(0, 0, 1)})
		assert.ErrorIs(t, err, model.ErrAccountClosed)
	})
}
