package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/services/product-service/internal/domain/model"
	"github.com/bibbank/bib/services/product-service/internal/domain/service"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

func cardParams() valueobject.Parameters {
	p := valueobject.Parameters{
		"denomination":                  valueobject.StringParam("GBP"),
		"credit_limit":                  valueobject.DecimalParam("5000"),
		"annual_percentage_rate":        valueobject.JSONParam(map[string]string{"purchase": "0.24", "cash_advance": "0.36"}),
		"minimum_amount_due":            valueobject.DecimalParam("50"),
		"minimum_percentage_due":        valueobject.JSONParam(map[string]string{"purchase": "0.05", "cash_advance": "0.05", "interest": "1", "fees": "1"}),
		"payment_due_period":            valueobject.IntParam(21),
		"late_repayment_fee":            valueobject.DecimalParam("25"),
		"annual_fee":                    valueobject.DecimalParam("100"),
		"interest_accrual_days_in_year": valueobject.UnionParam("365"),
		"accrual_hour":                  valueobject.IntParam(0),
		"accrual_minute":                valueobject.IntParam(0),
		"accrual_second":                valueobject.IntParam(0),
		"scod_hour":                     valueobject.IntParam(0),
		"scod_minute":                   valueobject.IntParam(0),
		"scod_second":                   valueobject.IntParam(2),
	}
	for _, name := range []string{
		service.ParamInterestIncomeAccount, service.ParamLateRepaymentFeeIncomeAccount, service.ParamAnnualFeeIncomeAccount,
	} {
		p[name] = valueobject.StringParam(name)
	}
	return p
}

func cardAccount(series ...valueobject.BalanceObservation) model.Account {
	return newAccount(accountOpts{
		product: valueobject.ProductCreditCard,
		tside:   valueobject.TsideAsset,
		params:  cardParams(),
		series:  series,
	})
}

var scod = time.Date(2024, time.February, 1, 0, 0, 2, 0, time.UTC)

func TestCreditCard_ValidateParameters(t *testing.T) {
	c := service.NewCreditCard()
	require.NoError(t, c.ValidateParameters(cardParams()))

	noCash := cardParams()
	noCash[service.ParamAnnualPercentageRate] = valueobject.JSONParam(map[string]string{"purchase": "0.24"})
	assert.ErrorIs(t, c.ValidateParameters(noCash), valueobject.ErrParameterType)

	badHour := cardParams()
	badHour["scod_hour"] = valueobject.IntParam(24)
	assert.ErrorIs(t, c.ValidateParameters(badHour), valueobject.ErrInvalidSchedule)
}

func TestFirstStatementCutOff(t *testing.T) {
	expr := valueobject.ScheduleExpression{Second: 2}
	tests := []struct {
		opened time.Time
		want   string
	}{
		{at(1, 15, 10, 0), "2024-02-15T00:00:02Z"},
		{at(1, 31, 10, 0), "2024-02-29T00:00:02Z"},
		{time.Date(2023, time.January, 31, 0, 0, 0, 0, time.UTC), "2023-02-28T00:00:02Z"},
		{at(12, 31, 0, 0), "2025-01-31T00:00:02Z"},
	}
	for _, tt := range tests {
		got := service.FirstStatementCutOff(tt.opened, expr)
		assert.Equal(t, tt.want, got.Format(time.RFC3339), tt.opened)
	}
}

func TestStatementCutOff_AnchoredOnOpeningDay(t *testing.T) {
	expr := valueobject.ScheduleExpression{Day: 31, Second: 2}
	first := service.FirstStatementCutOff(at(1, 31, 0, 0), expr)

	second, err := valueobject.NextRunTime(first, expr, valueobject.FrequencyMonthly, nil)
	require.NoError(t, err)
	third, err := valueobject.NextRunTime(second, expr, valueobject.FrequencyMonthly, nil)
	require.NoError(t, err)

	assert.Equal(t, "2024-02-29", first.Format("2006-01-02"))
	assert.Equal(t, "2024-03-31", second.Format("2006-01-02"))
	assert.Equal(t, "2024-04-30", third.Format("2006-01-02"))
}

func TestPaymentDueDate(t *testing.T) {
	assert.Equal(t, "2024-02-22T00:00:02Z", service.PaymentDueDate(scod, 21, nil).Format(time.RFC3339))

	holidays := valueobject.Calendar{{ID: "h", Start: at(2, 22, 0, 0), End: at(2, 24, 0, 0)}}
	assert.Equal(t, "2024-02-24T00:00:02Z", service.PaymentDueDate(scod, 21, holidays).Format(time.RFC3339))
}

func TestMinimumAmountDue(t *testing.T) {
	tests := []struct {
		name                              string
		statement, floor, percent, unpaid string
		want                              string
	}{
		{"floor applies", "1000", "50", "30", "0", "50"},
		{"percentage plus unpaid", "1000", "50", "80", "20", "100"},
		{"capped at statement", "40", "50", "10", "0", "40"},
		{"nothing owed", "0", "50", "0", "0", "0"},
		{"rounded", "1000", "50", "55.555", "0", "55.56"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.MinimumAmountDue(d(tt.statement), d(tt.floor), d(tt.percent), d(tt.unpaid))
			assert.True(t, d(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestCreditCard_ExecutionSchedules(t *testing.T) {
	res, err := engine().Invoke(service.HookExecutionSchedules, request(cardAccount(), opened, ""))
	require.NoError(t, err)

	next := map[string]string{}
	for _, s := range res.ScheduleUpdates {
		next[s.EventType] = s.NextRunTime.Format(time.RFC3339)
	}
	assert.Equal(t, map[string]string{
		service.EventAccrueInterest:  "2024-01-02T00:00:00Z",
		service.EventStatementCutOff: "2024-02-01T00:00:02Z",
		service.EventAnnualFee:       "2025-01-01T00:00:02Z",
	}, next)
}

func TestCreditCard_PrePosting_CreditLimit(t *testing.T) {
	acc := cardAccount(assetObs(opened, valueobject.DefaultAddress, "4900"))
	req := request(acc, at(1, 10, 12, 0), "")

	_, err := engine().Invoke(service.HookPrePosting,
		withBatch(req, instruction(t, valueobject.InstructionOutboundAuthorisation, "p1", "150", "GBP", nil, nil)))
	assertRejected(t, err, valueobject.ReasonInsufficientFunds,
		"Incoming transaction of 150.00 GBP exceeds available credit of 100.00 GBP.")

	_, err = engine().Invoke(service.HookPrePosting,
		withBatch(req, instruction(t, valueobject.InstructionOutboundHardSettlement, "p2", "100", "GBP", nil, nil)))
	assert.NoError(t, err)

	_, err = engine().Invoke(service.HookPrePosting,
		withBatch(req, instruction(t, valueobject.InstructionInboundHardSettlement, "r1", "4900", "GBP", nil, nil)))
	assert.NoError(t, err)
}

func TestCreditCard_PrePosting_Denomination(t *testing.T) {
	req := withBatch(request(cardAccount(), at(1, 10, 12, 0), ""),
		instruction(t, valueobject.InstructionOutboundHardSettlement, "p1", "10", "EUR", nil, nil))

	_, err := engine().Invoke(service.HookPrePosting, req)
	assertRejected(t, err, valueobject.ReasonWrongDenomination,
		"Cannot make transactions in given denomination; transactions must be one of GBP.")
}

func TestCreditCard_PostPosting_RebalancesSpend(t *testing.T) {
	req := withBatch(request(cardAccount(assetObs(opened, valueobject.DefaultAddress, "150")), at(1, 10, 12, 0), ""),
		instruction(t, valueobject.InstructionOutboundHardSettlement, "p1", "100", "GBP", nil, nil),
		instruction(t, valueobject.InstructionOutboundHardSettlement, "c1", "50", "GBP",
			map[string]string{service.DetailTransactionCode: service.TransactionCodeCashAdvance}, nil))

	res, err := engine().Invoke(service.HookPostPosting, req)
	require.NoError(t, err)

	assert.Equal(t, "100", find(t, res, ctid("SPEND", "0", "PURCHASE_CHARGED")).Amount.String())
	assert.Equal(t, "50", find(t, res, ctid("SPEND", "1", "CASH_ADVANCE_CHARGED")).Amount.String())
	assert.Equal(t, "100", net(res, valueobject.TsideAsset, "PURCHASE_CHARGED").String())
	assert.Equal(t, "50", net(res, valueobject.TsideAsset, "CASH_ADVANCE_CHARGED").String())
	assert.Equal(t, "-150", net(res, valueobject.TsideAsset, valueobject.InternalContraAddress).String())
}

func TestCreditCard_PostPosting_RepaymentHierarchy(t *testing.T) {
	acc := cardAccount(assetObs(opened,
		valueobject.DefaultAddress, "185",
		"INTEREST_UNPAID", "10",
		"FEES_BILLED", "25",
		"PURCHASE_BILLED", "200",
		"PURCHASE_CHARGED", "50",
		service.AddressMADBalance, "60",
		service.AddressStatementBalance, "235",
	))
	req := withBatch(request(acc, at(1, 10, 12, 0), ""),
		instruction(t, valueobject.InstructionInboundHardSettlement, "r1", "100", "GBP", nil, nil))

	res, err := engine().Invoke(service.HookPostPosting, req)
	require.NoError(t, err)

	assert.Equal(t, "-10", net(res, valueobject.TsideAsset, "INTEREST_UNPAID").String())
	assert.Equal(t, "-25", net(res, valueobject.TsideAsset, "FEES_BILLED").String())
	assert.Equal(t, "-65", net(res, valueobject.TsideAsset, "PURCHASE_BILLED").String())
	assert.True(t, net(res, valueobject.TsideAsset, "PURCHASE_CHARGED").IsZero())
	assert.Equal(t, "-60", net(res, valueobject.TsideAsset, service.AddressMADBalance).String())
	assert.Equal(t, "-100", net(res, valueobject.TsideAsset, service.AddressStatementBalance).String())
}

func TestRepaymentHierarchy(t *testing.T) {
	h := service.RepaymentHierarchy()
	require.Len(t, h, 12)
	assert.Equal(t, []string{"INTEREST_UNPAID", "FEES_UNPAID", "CASH_ADVANCE_UNPAID", "PURCHASE_UNPAID"}, h[:4])
	assert.Equal(t, "PURCHASE_CHARGED", h[11])
}

func TestCreditCard_AccrueInterest(t *testing.T) {
	acc := cardAccount(assetObs(opened,
		valueobject.DefaultAddress, "1600",
		"PURCHASE_BILLED", "1000",
		"PURCHASE_CHARGED", "500",
		"CASH_ADVANCE_CHARGED", "100",
	))
	res, err := engine().Invoke(service.HookScheduled, request(acc, at(1, 10, 0, 0), service.EventAccrueInterest))
	require.NoError(t, err)

	// Charged purchases are in their grace period.
	assert.Equal(t, "0.65753", net(res, valueobject.TsideAsset, service.AddressAccruedPurchaseInterest).String())
	assert.Equal(t, "0.09863", net(res, valueobject.TsideAsset, service.AddressAccruedCashAdvanceInterest).String())
	assert.True(t, net(res, valueobject.TsideAsset, valueobject.DefaultAddress).IsZero())
}

func statementAccount(previousStatement string) model.Account {
	return cardAccount(assetObs(opened,
		valueobject.DefaultAddress, "1600",
		"PURCHASE_BILLED", "1000",
		"PURCHASE_CHARGED", "500",
		"CASH_ADVANCE_CHARGED", "100",
		service.AddressAccruedPurchaseInterest, "12.345",
		service.AddressAccruedCashAdvanceInterest, "1.005",
		service.AddressStatementBalance, previousStatement,
	))
}

func TestCreditCard_StatementCutOff(t *testing.T) {
	res, err := engine().Invoke(service.HookScheduled, request(statementAccount("100"), scod, service.EventStatementCutOff))
	require.NoError(t, err)

	charged := find(t, res, ctid(service.EventStatementCutOff, service.BucketInterest, valueobject.DefaultAddress))
	assert.Equal(t, "13.36", charged.Amount.String())
	assert.Equal(t, service.ParamInterestIncomeAccount, charged.Postings[1].AccountID)

	assert.Equal(t, "13.36", net(res, valueobject.TsideAsset, valueobject.DefaultAddress).String())
	assert.Equal(t, "-12.345", net(res, valueobject.TsideAsset, service.AddressAccruedPurchaseInterest).String())
	assert.Equal(t, "-1.005", net(res, valueobject.TsideAsset, service.AddressAccruedCashAdvanceInterest).String())
	assert.Equal(t, "-500", net(res, valueobject.TsideAsset, "PURCHASE_CHARGED").String())
	assert.Equal(t, "500", net(res, valueobject.TsideAsset, "PURCHASE_BILLED").String())
	assert.Equal(t, "100", net(res, valueobject.TsideAsset, "CASH_ADVANCE_BILLED").String())
	assert.Equal(t, "13.36", net(res, valueobject.TsideAsset, "INTEREST_BILLED").String())

	// Statement 1613.36 replaces the 100 left over from the last one.
	assert.Equal(t, "1513.36", net(res, valueobject.TsideAsset, service.AddressStatementBalance).String())
	// 1500 * 5% + 100 * 5% + 13.36 * 100%.
	assert.Equal(t, "93.36", net(res, valueobject.TsideAsset, service.AddressMADBalance).String())

	require.Len(t, res.ScheduleUpdates, 1)
	pdd := res.ScheduleUpdates[0]
	assert.Equal(t, service.EventPaymentDue, pdd.EventType)
	assert.Equal(t, valueobject.FrequencyOnce, pdd.Frequency)
	assert.Equal(t, "2024-02-22T00:00:02Z", pdd.NextRunTime.Format(time.RFC3339))
}

func TestCreditCard_StatementCutOff_WaivesPurchaseInterest(t *testing.T) {
	res, err := engine().Invoke(service.HookScheduled, request(statementAccount("0"), scod, service.EventStatementCutOff))
	require.NoError(t, err)

	assert.Equal(t, "1.01", net(res, valueobject.TsideAsset, valueobject.DefaultAddress).String())
	assert.Equal(t, "-12.345", net(res, valueobject.TsideAsset, service.AddressAccruedPurchaseInterest).String())
	assert.Equal(t, "1601.01", net(res, valueobject.TsideAsset, service.AddressStatementBalance).String())
}

func TestCreditCard_PaymentDue(t *testing.T) {
	due := time.Date(2024, time.February, 22, 0, 0, 2, 0, time.UTC)
	series := func(mad string) model.Account {
		return cardAccount(assetObs(opened,
			valueobject.DefaultAddress, "1613.36",
			"PURCHASE_BILLED", "1500",
			"INTEREST_BILLED", "13.36",
			service.AddressMADBalance, mad,
		))
	}

	res, err := engine().Invoke(service.HookScheduled, request(series("93.36"), due, service.EventPaymentDue))
	require.NoError(t, err)
	assert.Equal(t, "25", net(res, valueobject.TsideAsset, valueobject.DefaultAddress).String())
	assert.Equal(t, "25", net(res, valueobject.TsideAsset, "FEES_CHARGED").String())
	assert.Equal(t, "-93.36", net(res, valueobject.TsideAsset, service.AddressMADBalance).String())
	assert.Equal(t, "-1500", net(res, valueobject.TsideAsset, "PURCHASE_BILLED").String())
	assert.Equal(t, "1500", net(res, valueobject.TsideAsset, "PURCHASE_UNPAID").String())
	assert.Equal(t, "13.36", net(res, valueobject.TsideAsset, "INTEREST_UNPAID").String())

	res, err = engine().Invoke(service.HookScheduled, request(series("0"), due, service.EventPaymentDue))
	require.NoError(t, err)
	assert.True(t, net(res, valueobject.TsideAsset, valueobject.DefaultAddress).IsZero())
	assert.Equal(t, "1500", net(res, valueobject.TsideAsset, "PURCHASE_UNPAID").String())
}

func TestCreditCard_AnnualFee(t *testing.T) {
	res, err := engine().Invoke(service.HookScheduled, request(cardAccount(), at(12, 31, 0, 0), service.EventAnnualFee))
	require.NoError(t, err)

	assert.Equal(t, "100", net(res, valueobject.TsideAsset, valueobject.DefaultAddress).String())
	assert.Equal(t, "100", net(res, valueobject.TsideAsset, "FEES_CHARGED").String())
}

func TestCreditCard_Close(t *testing.T) {
	_, err := engine().Invoke(service.HookClose, request(cardAccount(assetObs(opened, valueobject.DefaultAddress, "10")), at(3, 1, 0, 0), ""))
	assert.ErrorIs(t, err, service.ErrOutstandingBalance)

	acc := cardAccount(assetObs(opened,
		valueobject.DefaultAddress, "0",
		service.AddressStatementBalance, "5",
		valueobject.InternalContraAddress, "-5",
	))
	res, err := engine().Invoke(service.HookClose, request(acc, at(3, 1, 0, 0), ""))
	require.NoError(t, err)
	assert.Equal(t, "-5", net(res, valueobject.TsideAsset, service.AddressStatementBalance).String())
	require.Len(t, res.Batches, 1)
	assert.Len(t, res.Batches[0].Instructions, 1)
}
