package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/services/product-service/internal/application/dto"
	"github.com/bibbank/bib/services/product-service/internal/application/usecase"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
	"github.com/bibbank/bib/services/product-service/internal/domain/service"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

var jan2 = opened.AddDate(0, 0, 1)

// accrueOne moves one unit from DEFAULT to ACCRUED on the account.
func accrueOne(req service.HookRequest) (service.HookResult, error) {
	pi := valueobject.Transfer(
		req.ClientTransactionID(req.EventType, "CUSTOMER", "ACCRUED", "GBP"),
		d("1"), "GBP",
		valueobject.Account(req.AccountID()),
		valueobject.At(req.AccountID(), "ACCRUED"),
		nil,
	)
	return service.HookResult{Batches: []valueobject.PostingInstructionBatch{req.NewBatch(req.EventType, pi)}}, nil
}

func newRunScheduled(repo *mockAccountRepository, metrics *mockMetrics, contract *stubContract) *usecase.RunScheduledEvent {
	return usecase.NewRunScheduledEvent(repo, usecase.NewAccountLoader(repo, nil, ""), metrics, service.NewEngine(contract))
}

func TestRunScheduledEvent_Execute(t *testing.T) {
	t.Run("successfully runs at the next run time and rolls the schedule", func(t *testing.T) {
		id := uuid.New()
		repo := repoWith(stubAccount(id))
		metrics := &mockMetrics{}
		var effective time.Time
		contract := &stubContract{
			scheduledFunc: func(req service.HookRequest) (service.HookResult, error) {
				effective = req.EffectiveTime
				assert.Equal(t, "ACCRUE", req.EventType)
				return accrueOne(req)
			},
		}

		resp, err := newRunScheduled(repo, metrics, contract).Execute(context.Background(), dto.RunScheduledEventRequest{
			AccountID: id,
			EventType: "ACCRUE",
		})
		require.NoError(t, err)

		assert.Equal(t, jan2, effective)
		assert.Equal(t, jan2, resp.EffectiveTime)
		assert.Equal(t, jan2.AddDate(0, 0, 1), resp.NextRunTime)
		assert.Len(t, resp.Batches, 1)

		require.NotNil(t, repo.savedAccount)
		saved := *repo.savedAccount
		assert.True(t, d("1").Equal(saved.LatestBalances().Net(valueobject.Coordinate("ACCRUED", "GBP"))))
		s, ok := saved.Schedule("ACCRUE")
		require.True(t, ok)
		assert.Equal(t, jan2.AddDate(0, 0, 1), s.NextRunTime)

		assert.Equal(t, []string{"ACCRUE"}, metrics.ran)
		assert.Equal(t, 1, metrics.batches[service.HookScheduled])
	})

	t.Run("contract schedule updates override the default roll", func(t *testing.T) {
		id := uuid.New()
		repo := repoWith(stubAccount(id))
		override := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
		contract := &stubContract{
			scheduledFunc: func(req service.HookRequest) (service.HookResult, error) {
				return service.HookResult{ScheduleUpdates: []valueobject.EventSchedule{valueobject.OneOff("ACCRUE", override)}}, nil
			},
		}

		resp, err := newRunScheduled(repo, &mockMetrics{}, contract).Execute(context.Background(), dto.RunScheduledEventRequest{
			AccountID: id,
			EventType: "ACCRUE",
		})
		require.NoError(t, err)
		assert.Equal(t, override, resp.NextRunTime)
		assert.Empty(t, resp.Batches)
	})

	t.Run("derives the same hook execution id for the same run", func(t *testing.T) {
		id := uuid.New()
		repo := repoWith(stubAccount(id))
		var ids []string
		contract := &stubContract{
			scheduledFunc: func(req service.HookRequest) (service.HookResult, error) {
				ids = append(ids, req.HookExecutionID)
				return service.HookResult{}, nil
			},
		}
		uc := newRunScheduled(repo, &mockMetrics{}, contract)

		for i := 0; i < 2; i++ {
			_, err := uc.Execute(context.Background(), dto.RunScheduledEventRequest{AccountID: id, EventType: "ACCRUE", EffectiveTime: jan2})
			require.NoError(t, err)
		}
		require.Len(t, ids, 2)
		assert.Equal(t, ids[0], ids[1])
		assert.NotEmpty(t, ids[0])
	})

	t.Run("fails for an unknown schedule", func(t *testing.T) {
		id := uuid.New()
		repo := repoWith(stubAccount(id))

		_, err := newRunScheduled(repo, &mockMetrics{}, &stubContract{}).Execute(context.Background(), dto.RunScheduledEventRequest{
			AccountID: id,
			EventType: "APPLY",
		})
		assert.ErrorIs(t, err, usecase.ErrScheduleNotFound)
	})

	t.Run("fails for an inactive schedule", func(t *testing.T) {
		acc, err := stubAccount(uuid.New()).Close(jan2)
		require.NoError(t, err)
		repo := repoWith(acc)

		_, err = newRunScheduled(repo, &mockMetrics{}, &stubContract{}).Execute(context.Background(), dto.RunScheduledEventRequest{
			AccountID: acc.ID(),
			EventType: "ACCRUE",
		})
		assert.ErrorIs(t, err, usecase.ErrScheduleInactive)
	})

	t.Run("rejects a replayed run before the next run time", func(t *testing.T) {
		id := uuid.New()
		repo := repoWith(stubAccount(id))
		called := false
		contract := &stubContract{
			scheduledFunc: func(service.HookRequest) (service.HookResult, error) {
				called = true
				return service.HookResult{}, nil
			},
		}

		_, err := newRunScheduled(repo, &mockMetrics{}, contract).Execute(context.Background(), dto.RunScheduledEventRequest{
			AccountID:     id,
			EventType:     "ACCRUE",
			EffectiveTime: opened,
		})
		assert.ErrorIs(t, err, usecase.ErrScheduleNotDue)
		assert.False(t, called)
		assert.Nil(t, repo.savedAccount)
	})

	t.Run("does not save when the contract fails", func(t *testing.T) {
		id := uuid.New()
		repo := repoWith(stubAccount(id))
		errBoom := errors.New("boom")
		contract := &stubContract{
			scheduledFunc: func(service.HookRequest) (service.HookResult, error) { return service.HookResult{}, errBoom },
		}

		_, err := newRunScheduled(repo, &mockMetrics{}, contract).Execute(context.Background(), dto.RunScheduledEventRequest{
			AccountID: id,
			EventType: "ACCRUE",
		})
		assert.ErrorIs(t, err, errBoom)
		assert.Nil(t, repo.savedAccount)
	})
}

func TestRunDueSchedules_Execute(t *testing.T) {
	t.Run("runs every due schedule and counts failures", func(t *testing.T) {
		good := stubAccount(uuid.New())
		missing := uuid.New()
		repo := repoWith(good)
		var gotLimit int
		schedules := &mockScheduleRepository{
			findDueFunc: func(_ context.Context, now time.Time, limit int) ([]port.DueSchedule, error) {
				gotLimit = limit
				assert.Equal(t, jan2, now)
				return []port.DueSchedule{
					{AccountID: good.ID(), EventType: "ACCRUE", NextRunTime: jan2},
					{AccountID: missing, EventType: "ACCRUE", NextRunTime: jan2},
				}, nil
			},
		}
		metrics := &mockMetrics{}
		run := newRunScheduled(repo, metrics, &stubContract{scheduledFunc: accrueOne})
		uc := usecase.NewRunDueSchedules(schedules, run, discardLogger())

		resp, err := uc.Execute(context.Background(), dto.RunDueSchedulesRequest{Now: jan2})
		require.NoError(t, err)

		assert.Equal(t, 1, resp.Ran)
		assert.Equal(t, 1, resp.Failed)
		assert.Equal(t, 100, gotLimit)
		assert.Equal(t, []string{"ACCRUE"}, metrics.ran)
		require.NotNil(t, repo.savedAccount)
		assert.Equal(t, good.ID(), repo.savedAccount.ID())
	})

	t.Run("runs a late schedule after a newer posting", func(t *testing.T) {
		def := valueobject.Coordinate(valueobject.DefaultAddress, "GBP")
		posted := jan2.Add(time.Hour)
		acc := stubAccount(uuid.New(), valueobject.BalanceObservation{
			At:       posted,
			Balances: valueobject.BalanceSet{def: {Credit: d("50"), Debit: d("0"), Net: d("50")}},
		})
		repo := repoWith(acc)
		schedules := &mockScheduleRepository{
			findDueFunc: func(context.Context, time.Time, int) ([]port.DueSchedule, error) {
				return []port.DueSchedule{{AccountID: acc.ID(), EventType: "ACCRUE", NextRunTime: jan2}}, nil
			},
		}
		run := newRunScheduled(repo, &mockMetrics{}, &stubContract{scheduledFunc: accrueOne})
		uc := usecase.NewRunDueSchedules(schedules, run, discardLogger())

		resp, err := uc.Execute(context.Background(), dto.RunDueSchedulesRequest{Now: posted.Add(time.Hour)})
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Ran)
		assert.Equal(t, 0, resp.Failed)

		require.NotNil(t, repo.savedAccount)
		saved := *repo.savedAccount
		accrued := valueobject.Coordinate("ACCRUED", "GBP")
		assert.True(t, d("1").Equal(saved.Balances(jan2).Net(accrued)))
		assert.True(t, d("1").Equal(saved.LatestBalances().Net(accrued)))
		assert.True(t, d("49").Equal(saved.LatestBalances().Net(def)))
		assert.Equal(t, posted, saved.Timeseries().LatestTime())

		s, ok := saved.Schedule("ACCRUE")
		require.True(t, ok)
		assert.Equal(t, jan2.AddDate(0, 0, 1), s.NextRunTime)
	})

	t.Run("fails when due schedules cannot be read", func(t *testing.T) {
		schedules := &mockScheduleRepository{
			findDueFunc: func(context.Context, time.Time, int) ([]port.DueSchedule, error) {
				return nil, errors.New("db down")
			},
		}
		run := newRunScheduled(&mockAccountRepository{}, &mockMetrics{}, &stubContract{})
		uc := usecase.NewRunDueSchedules(schedules, run, discardLogger())

		_, err := uc.Execute(context.Background(), dto.RunDueSchedulesRequest{Now: jan2, Limit: 10})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to find due schedules")
	})
}
