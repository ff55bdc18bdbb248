package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

// Murabahah scheduled events.
const (
	EventAccrueProfit       = "ACCRUE_PROFIT"
	EventApplyAccruedProfit = "APPLY_ACCRUED_PROFIT"
	EventPaymentTypeFee     = "APPLY_PAYMENT_TYPE_FLAT_FEE"
	EventEarlyClosureFee    = "APPLY_EARLY_CLOSURE_FEE"
)

// AddressAccruedProfit tracks profit owed to the customer.
const AddressAccruedProfit = "ACCRUED_PROFIT_PAYABLE"

// Murabahah parameters.
const (
	ParamProfitRateTiers              = "profit_rate_tiers"
	ParamMinimumDeposit               = "minimum_deposit"
	ParamMaximumBalance               = "maximum_balance"
	ParamMaximumDailyDeposit          = "maximum_daily_deposit"
	ParamMaximumDailyWithdrawal       = "maximum_daily_withdrawal"
	ParamPaymentTypeFlatFee           = "payment_type_flat_fee"
	ParamEarlyClosureFee              = "early_closure_fee"
	ParamEarlyClosureDays             = "early_closure_days"
	ParamProfitApplicationDay         = "profit_application_day"
	ParamProfitApplicationFrequency   = "profit_application_frequency"
	ParamDaysInYear                   = "days_in_year"
	ParamAccruedProfitPayableAccount  = "accrued_profit_payable_account"
	ParamProfitPaidAccount            = "profit_paid_account"
	ParamPaymentTypeFeeIncomeAccount  = "payment_type_fee_income_account"
	ParamEarlyClosureFeeIncomeAccount = "early_closure_fee_income_account"

	prefixProfitAccrual     = "profit_accrual"
	prefixProfitApplication = "profit_application"
)

type murabahahTerms struct {
	denomination         string
	daysInYear           string
	profitTiers          valueobject.BalanceTiers
	minimumDeposit       decimal.Decimal
	maximumBalance       decimal.Decimal
	maximumDailyDeposit  decimal.Decimal
	maximumDailyWithdraw decimal.Decimal
	earlyClosureFee      decimal.Decimal
	earlyClosureDays     int
	paymentTypeFees      map[string]decimal.Decimal
	accrual              valueobject.ScheduleExpression
	application          valueobject.ScheduleExpression
	applicationFrequency valueobject.Frequency
	profit               accrualBook
	paymentTypeIncome    string
	earlyClosureIncome   string
}

func loadMurabahahTerms(params valueobject.Parameters, flags []string) (murabahahTerms, error) {
	r := newParamReader(params, flags)
	t := murabahahTerms{
		denomination:         r.string(ParamDenomination),
		daysInYear:           r.union(ParamDaysInYear, DaysInYearActual, DaysInYear365, DaysInYear366, DaysInYear360),
		profitTiers:          r.tieredBalanceTiers(ParamAccountTierNames, ParamProfitRateTiers),
		minimumDeposit:       r.decimal(ParamMinimumDeposit),
		maximumBalance:       r.decimal(ParamMaximumBalance),
		maximumDailyDeposit:  r.tiered(ParamAccountTierNames, ParamMaximumDailyDeposit),
		maximumDailyWithdraw: r.tiered(ParamAccountTierNames, ParamMaximumDailyWithdrawal),
		earlyClosureFee:      r.decimal(ParamEarlyClosureFee),
		earlyClosureDays:     r.int(ParamEarlyClosureDays),
		paymentTypeFees:      r.decimalMap(ParamPaymentTypeFlatFee),
		accrual:              r.expression(prefixProfitAccrual, ""),
		application:          r.expression(prefixProfitApplication, ParamProfitApplicationDay),
		applicationFrequency: r.frequency(ParamProfitApplicationFrequency),
		profit: accrualBook{
			address: AddressAccruedProfit,
			accrued: r.string(ParamAccruedProfitPayableAccount),
			pnl:     r.string(ParamProfitPaidAccount),
		},
		paymentTypeIncome:  r.string(ParamPaymentTypeFeeIncomeAccount),
		earlyClosureIncome: r.string(ParamEarlyClosureFeeIncomeAccount),
	}
	if r.err != nil {
		return murabahahTerms{}, r.err
	}
	return t, nil
}

// Murabahah runs a profit-bearing savings account that can never be overdrawn.
type Murabahah struct{}

func NewMurabahah() Murabahah { return Murabahah{} }

func (Murabahah) ProductType() valueobject.ProductType { return valueobject.ProductMurabahah }
func (Murabahah) Tside() valueobject.Tside             { return valueobject.TsideLiability }

func (Murabahah) ValidateParameters(params valueobject.Parameters) error {
	t, err := loadMurabahahTerms(params, nil)
	if err != nil {
		return err
	}
	for _, expr := range []valueobject.ScheduleExpression{t.accrual, t.application} {
		if err := expr.Validate(); err != nil {
			return err
		}
	}
	if t.maximumBalance.LessThan(t.minimumDeposit) {
		return fmt.Errorf("%w: %s is below %s", valueobject.ErrParameterType, ParamMaximumBalance, ParamMinimumDeposit)
	}
	if t.earlyClosureDays < 0 {
		return fmt.Errorf("%w: %s cannot be negative", valueobject.ErrParameterType, ParamEarlyClosureDays)
	}
	return nil
}

func (m Murabahah) ExecutionSchedules(req HookRequest) ([]valueobject.EventSchedule, error) {
	t, err := loadMurabahahTerms(req.Parameters(), req.Flags())
	if err != nil {
		return nil, err
	}
	opened := req.Account.OpenedAt()
	cal := req.Account.Calendar()

	accrual, err := valueobject.NewEventSchedule(EventAccrueProfit, t.accrual, valueobject.FrequencyDaily, opened, cal, false)
	if err != nil {
		return nil, err
	}
	expr := t.application
	if t.applicationFrequency != valueobject.FrequencyMonthly {
		expr.Month = int(opened.Month())
	}
	application, err := valueobject.NewEventSchedule(EventApplyAccruedProfit, expr, t.applicationFrequency, opened, cal, true)
	if err != nil {
		return nil, err
	}
	return []valueobject.EventSchedule{accrual, application}, nil
}

// batchFlows totals the new deposits and withdrawals a batch asks for and
// returns the smallest new deposit.
func batchFlows(req HookRequest) (deposits, withdrawals decimal.Decimal, smallest *decimal.Decimal) {
	for _, pi := range req.Batch.Instructions {
		switch pi.Type {
		case valueobject.InstructionInboundAuthorisation, valueobject.InstructionInboundHardSettlement:
			deposits = deposits.Add(pi.Amount)
			if smallest == nil || pi.Amount.LessThan(*smallest) {
				amount := pi.Amount
				smallest = &amount
			}
		case valueobject.InstructionOutboundAuthorisation, valueobject.InstructionOutboundHardSettlement:
			withdrawals = withdrawals.Add(pi.Amount)
		case valueobject.InstructionAuthorisationAdjustment:
			ct, ok := req.Account.ClientTransaction(pi.ClientTransactionID)
			if !ok || !pi.Amount.IsPositive() {
				continue
			}
			if ct.IsOutbound() {
				withdrawals = withdrawals.Add(pi.Amount)
			} else {
				deposits = deposits.Add(pi.Amount)
			}
		}
	}
	return deposits, withdrawals, smallest
}

// dailyFlows totals today's external deposits and withdrawals.
func dailyFlows(txs []valueobject.ClientTransaction, dayStart time.Time) (deposits, withdrawals decimal.Decimal) {
	for _, ct := range txs {
		if ct.IsInternal() || ct.StartTime().Before(dayStart) {
			continue
		}
		if ct.IsOutbound() {
			withdrawals = withdrawals.Add(ct.EffectiveAmount())
		} else {
			deposits = deposits.Add(ct.EffectiveAmount())
		}
	}
	return deposits, withdrawals
}

func (m Murabahah) PrePosting(req HookRequest) error {
	t, err := loadMurabahahTerms(req.Parameters(), req.Flags())
	if err != nil {
		return err
	}
	d := t.denomination
	if err := checkDenominations(req, []string{d}); err != nil {
		return err
	}
	if overridden(req.Batch) {
		return nil
	}

	deposits, withdrawals, smallest := batchFlows(req)
	if smallest != nil && smallest.LessThan(t.minimumDeposit) {
		return valueobject.Reject(valueobject.ReasonAgainstTNC, fmt.Sprintf(
			"Transaction amount %s %s is less than the minimum deposit amount %s %s.",
			smallest.StringFixed(2), d, t.minimumDeposit.StringFixed(2), d))
	}

	before := req.Account.LatestBalances()
	after := before.Apply(req.Batch.Postings(), req.AccountID(), m.Tside())
	if change := available(after, d).Sub(available(before, d)); change.IsNegative() && available(after, d).IsNegative() {
		return valueobject.Reject(valueobject.ReasonInsufficientFunds, fmt.Sprintf(
			"Transaction amount %s %s exceeds the available balance of %s %s.",
			change.Neg().StringFixed(2), d, available(before, d).StringFixed(2), d))
	}

	committed := valueobject.Coordinate(valueobject.DefaultAddress, d)
	incoming := func(s valueobject.BalanceSet) decimal.Decimal {
		return s.Net(committed).Add(s.Net(committed.WithPhase(valueobject.PhasePendingIncoming)))
	}
	if deposits.IsPositive() && incoming(after).GreaterThan(t.maximumBalance) {
		return valueobject.Reject(valueobject.ReasonAgainstTNC, fmt.Sprintf(
			"Posting would exceed maximum permitted balance %s %s.", t.maximumBalance.StringFixed(2), d))
	}

	todayIn, todayOut := dailyFlows(req.Account.ClientTransactions(), valueobject.DayStart(req.EffectiveTime))
	if deposits.IsPositive() && todayIn.Add(deposits).GreaterThan(t.maximumDailyDeposit) {
		return valueobject.Reject(valueobject.ReasonAgainstTNC, fmt.Sprintf(
			"Transaction would cause the maximum daily deposit limit of %s %s to be exceeded.",
			t.maximumDailyDeposit.StringFixed(2), d))
	}
	if withdrawals.IsPositive() && todayOut.Add(withdrawals).GreaterThan(t.maximumDailyWithdraw) {
		return valueobject.Reject(valueobject.ReasonAgainstTNC, fmt.Sprintf(
			"Transaction would cause the maximum daily withdrawal limit of %s %s to be exceeded.",
			t.maximumDailyWithdraw.StringFixed(2), d))
	}
	return nil
}

func (m Murabahah) PostPosting(req HookRequest) (HookResult, error) {
	t, err := loadMurabahahTerms(req.Parameters(), req.Flags())
	if err != nil {
		return HookResult{}, err
	}
	var out []valueobject.PostingInstruction
	for i, pi := range req.Batch.Instructions {
		if !pi.IsCustomerInitiated() {
			continue
		}
		paymentType := pi.Detail(DetailPaymentType)
		fee, ok := t.paymentTypeFees[paymentType]
		if !ok || !fee.IsPositive() {
			continue
		}
		if debits, _ := committedMovement(pi, req.AccountID(), t.denomination); !debits.IsPositive() {
			continue
		}
		out = append(out, charge(req, EventPaymentTypeFee, paymentType+"_"+strconv.Itoa(i), t.denomination, t.paymentTypeIncome, fee)...)
	}
	return HookResult{}.withBatch(req, HookPostPosting, out), nil
}

func (m Murabahah) Scheduled(req HookRequest) (HookResult, error) {
	t, err := loadMurabahahTerms(req.Parameters(), req.Flags())
	if err != nil {
		return HookResult{}, err
	}
	set := req.Account.Balances(req.EffectiveTime)

	var out []valueobject.PostingInstruction
	switch req.EventType {
	case EventAccrueProfit:
		days, err := DaysInYear(t.daysInYear, req.EffectiveTime)
		if err != nil {
			return HookResult{}, err
		}
		balance := set.Net(valueobject.Coordinate(valueobject.DefaultAddress, t.denomination))
		if balance.IsPositive() {
			amount := BandedDailyAccrual(balance, t.profitTiers, days, AccrualPrecision)
			out = t.profit.accrue(req, req.EventType, t.denomination, amount)
		}
	case EventApplyAccruedProfit:
		out = t.profit.apply(req, req.EventType, t.denomination, set, money.RoundHalfUp)
	default:
		return HookResult{}, fmt.Errorf("%w: %s", ErrUnknownEvent, req.EventType)
	}
	return HookResult{}.withBatch(req, req.EventType, out), nil
}

// WithinEarlyClosure reports whether closing at t falls in the first days
// after opening.
func WithinEarlyClosure(opened, t time.Time, days int) bool {
	return days > 0 && t.Before(opened.AddDate(0, 0, days))
}

func (m Murabahah) Close(req HookRequest) (HookResult, error) {
	t, err := loadMurabahahTerms(req.Parameters(), req.Flags())
	if err != nil {
		return HookResult{}, err
	}
	var out []valueobject.PostingInstruction
	if WithinEarlyClosure(req.Account.OpenedAt(), req.EffectiveTime, t.earlyClosureDays) {
		out = append(out, charge(req, EventEarlyClosureFee, "FEE", t.denomination, t.earlyClosureIncome, t.earlyClosureFee)...)
	}
	out = append(out, t.profit.reverse(req, EventCloseAccount, t.denomination, req.Account.LatestBalances())...)
	return HookResult{}.withBatch(req, EventCloseAccount, out), nil
}
