package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

// CASA scheduled events.
const (
	EventAccrueInterestAndDailyFees = "ACCRUE_INTEREST_AND_DAILY_FEES"
	EventApplyAccruedInterest       = "APPLY_ACCRUED_INTEREST"
	EventApplyMonthlyFees           = "APPLY_MONTHLY_FEES"
	EventApplyAnnualFees            = "APPLY_ANNUAL_FEES"
	EventCloseAccount               = "CLOSE_ACCOUNT"
)

// CASA tracking addresses.
const (
	AddressAccruedDepositInterest   = "ACCRUED_DEPOSIT_INTEREST"
	AddressAccruedOverdraftInterest = "ACCRUED_OVERDRAFT_INTEREST"
	AddressAccruedOverdraftFee      = "ACCRUED_UNARRANGED_OVERDRAFT_FEE"
)

// CASA parameters.
const (
	ParamDepositInterestRateTiers             = "deposit_interest_rate_tiers"
	ParamOverdraftInterestRate                = "overdraft_interest_rate"
	ParamInterestFreeBuffer                   = "interest_free_buffer"
	ParamInterestFreeBufferDays               = "overdraft_interest_free_buffer_days"
	ParamArrangedOverdraftLimit               = "arranged_overdraft_limit"
	ParamUnarrangedOverdraftLimit             = "unarranged_overdraft_limit"
	ParamUnarrangedOverdraftFee               = "unarranged_overdraft_fee"
	ParamUnarrangedOverdraftFeeCap            = "unarranged_overdraft_fee_cap"
	ParamInterestAccrualDaysInYear            = "interest_accrual_days_in_year"
	ParamInterestApplicationDay               = "interest_application_day"
	ParamInterestApplicationFrequency         = "interest_application_frequency"
	ParamMaintenanceFeeMonthly                = "maintenance_fee_monthly"
	ParamMinimumBalanceThreshold              = "minimum_balance_threshold"
	ParamMinimumBalanceFee                    = "minimum_balance_fee"
	ParamFeesApplicationDay                   = "fees_application_day"
	ParamAnnualMaintenanceFee                 = "annual_maintenance_fee"
	ParamMaximumMonthlyWithdrawal             = "maximum_monthly_withdrawal"
	ParamAccruedInterestPayableAccount        = "accrued_interest_payable_account"
	ParamInterestPaidAccount                  = "interest_paid_account"
	ParamAccruedInterestReceivableAccount     = "accrued_interest_receivable_account"
	ParamOverdraftInterestIncomeAccount       = "overdraft_interest_income_account"
	ParamAccruedOverdraftFeeReceivableAccount = "accrued_overdraft_fee_receivable_account"
	ParamOverdraftFeeIncomeAccount            = "overdraft_fee_income_account"
	ParamMaintenanceFeeIncomeAccount          = "maintenance_fee_income_account"
	ParamMinimumBalanceFeeIncomeAccount       = "minimum_balance_fee_income_account"
	ParamAnnualMaintenanceFeeIncomeAccount    = "annual_maintenance_fee_income_account"

	prefixInterestAccrual     = "interest_accrual"
	prefixInterestApplication = "interest_application"
	prefixFeesApplication     = "fees_application"
)

// Rejection messages asserted by callers.
const (
	msgUnarrangedOverdraft = "Posting exceeds unarranged_overdraft_limit."
	msgMonthlyWithdrawals  = "Exceeding monthly allowed withdrawal number: %d"
)

type casaTerms struct {
	denomination         string
	allowed              []string
	daysInYear           string
	depositTiers         valueobject.BalanceTiers
	overdraftRate        decimal.Decimal
	buffer               decimal.Decimal
	bufferDays           int
	arranged             decimal.Decimal
	unarranged           decimal.Decimal
	unarrangedFee        decimal.Decimal
	feeCap               decimal.Decimal
	feeCapSet            bool
	maintenanceFee       decimal.Decimal
	minimumThreshold     decimal.Decimal
	minimumFee           decimal.Decimal
	annualFee            decimal.Decimal
	maxWithdrawals       int
	maxWithdrawalsSet    bool
	accrual              valueobject.ScheduleExpression
	application          valueobject.ScheduleExpression
	fees                 valueobject.ScheduleExpression
	applicationFrequency valueobject.Frequency
	deposit              accrualBook
	overdraft            accrualBook
	overdraftFee         accrualBook
	maintenanceIncome    string
	minimumIncome        string
	annualIncome         string
}

func loadCASATerms(params valueobject.Parameters, flags []string) (casaTerms, error) {
	r := newParamReader(params, flags)
	t := casaTerms{
		denomination:         r.string(ParamDenomination),
		daysInYear:           r.union(ParamInterestAccrualDaysInYear, DaysInYearActual, DaysInYear365, DaysInYear366, DaysInYear360),
		depositTiers:         r.balanceTiers(ParamDepositInterestRateTiers),
		overdraftRate:        r.decimal(ParamOverdraftInterestRate),
		buffer:               r.tiered(ParamAccountTierNames, ParamInterestFreeBuffer),
		bufferDays:           int(r.tiered(ParamAccountTierNames, ParamInterestFreeBufferDays).IntPart()),
		arranged:             r.decimal(ParamArrangedOverdraftLimit),
		unarranged:           r.decimal(ParamUnarrangedOverdraftLimit),
		unarrangedFee:        r.decimal(ParamUnarrangedOverdraftFee),
		maintenanceFee:       r.tiered(ParamAccountTierNames, ParamMaintenanceFeeMonthly),
		minimumThreshold:     r.tiered(ParamAccountTierNames, ParamMinimumBalanceThreshold),
		minimumFee:           r.decimal(ParamMinimumBalanceFee),
		annualFee:            r.decimal(ParamAnnualMaintenanceFee),
		accrual:              r.expression(prefixInterestAccrual, ""),
		application:          r.expression(prefixInterestApplication, ParamInterestApplicationDay),
		fees:                 r.expression(prefixFeesApplication, ParamFeesApplicationDay),
		applicationFrequency: r.frequency(ParamInterestApplicationFrequency),
		deposit: accrualBook{
			address: AddressAccruedDepositInterest,
			accrued: r.string(ParamAccruedInterestPayableAccount),
			pnl:     r.string(ParamInterestPaidAccount),
		},
		overdraft: accrualBook{
			address:    AddressAccruedOverdraftInterest,
			accrued:    r.string(ParamAccruedInterestReceivableAccount),
			pnl:        r.string(ParamOverdraftInterestIncomeAccount),
			receivable: true,
		},
		overdraftFee: accrualBook{
			address:    AddressAccruedOverdraftFee,
			accrued:    r.string(ParamAccruedOverdraftFeeReceivableAccount),
			pnl:        r.string(ParamOverdraftFeeIncomeAccount),
			receivable: true,
		},
		maintenanceIncome: r.string(ParamMaintenanceFeeIncomeAccount),
		minimumIncome:     r.string(ParamMinimumBalanceFeeIncomeAccount),
		annualIncome:      r.string(ParamAnnualMaintenanceFeeIncomeAccount),
	}
	t.feeCap, t.feeCapSet = r.optionalDecimal(ParamUnarrangedOverdraftFeeCap)
	t.maxWithdrawals, t.maxWithdrawalsSet = r.optionalInt(ParamMaximumMonthlyWithdrawal)
	if r.err != nil {
		return casaTerms{}, r.err
	}
	allowed, err := denominations(params, t.denomination)
	if err != nil {
		return casaTerms{}, err
	}
	t.allowed = allowed
	return t, nil
}

// CASA runs current and savings accounts: tiered deposit interest, arranged
// and unarranged overdrafts, monthly and annual fees, and an optional cap on
// monthly withdrawals.
type CASA struct{}

func NewCASA() CASA { return CASA{} }

func (CASA) ProductType() valueobject.ProductType { return valueobject.ProductCASA }
func (CASA) Tside() valueobject.Tside             { return valueobject.TsideLiability }

func (CASA) ValidateParameters(params valueobject.Parameters) error {
	t, err := loadCASATerms(params, nil)
	if err != nil {
		return err
	}
	for _, expr := range []valueobject.ScheduleExpression{t.accrual, t.application, t.fees} {
		if err := expr.Validate(); err != nil {
			return err
		}
	}
	if t.unarranged.LessThan(t.arranged) {
		return fmt.Errorf("%w: %s is below %s", valueobject.ErrParameterType, ParamUnarrangedOverdraftLimit, ParamArrangedOverdraftLimit)
	}
	if t.bufferDays < -1 {
		return fmt.Errorf("%w: %s must be -1 or more", valueobject.ErrParameterType, ParamInterestFreeBufferDays)
	}
	return nil
}

func (c CASA) ExecutionSchedules(req HookRequest) ([]valueobject.EventSchedule, error) {
	t, err := loadCASATerms(req.Parameters(), req.Flags())
	if err != nil {
		return nil, err
	}
	opened := req.Account.OpenedAt()
	cal := req.Account.Calendar()

	application := t.application
	if t.applicationFrequency != valueobject.FrequencyMonthly {
		application.Month = int(opened.Month())
	}
	// Monthly fees start in the month after opening.
	firstOfNextMonth := valueobject.MonthStart(opened).AddDate(0, 1, 0).Add(-time.Second)
	annual := t.fees
	annual.Day = opened.Day()
	annual.Month = int(opened.Month())

	specs := []struct {
		event string
		expr  valueobject.ScheduleExpression
		freq  valueobject.Frequency
		after time.Time
	}{
		{EventAccrueInterestAndDailyFees, t.accrual, valueobject.FrequencyDaily, opened},
		{EventApplyAccruedInterest, application, t.applicationFrequency, opened},
		{EventApplyMonthlyFees, t.fees, valueobject.FrequencyMonthly, firstOfNextMonth},
		{EventApplyAnnualFees, annual, valueobject.FrequencyAnnually, opened.AddDate(0, 1, 0)},
	}
	out := make([]valueobject.EventSchedule, 0, len(specs))
	for _, s := range specs {
		sched, err := valueobject.NewEventSchedule(s.event, s.expr, s.freq, s.after, cal, false)
		if err != nil {
			return nil, err
		}
		out = append(out, sched)
	}
	return out, nil
}

func (c CASA) PrePosting(req HookRequest) error {
	t, err := loadCASATerms(req.Parameters(), req.Flags())
	if err != nil {
		return err
	}
	if err := checkDenominations(req, t.allowed); err != nil {
		return err
	}
	if overridden(req.Batch) {
		return nil
	}

	before := req.Account.LatestBalances()
	delta := valueobject.BalanceSet{}.Apply(req.Batch.Postings(), req.AccountID(), c.Tside())
	for _, denom := range t.allowed {
		change := available(delta, denom)
		if !change.IsNegative() {
			continue
		}
		current := available(before, denom)
		after := current.Add(change)
		if denom == t.denomination {
			if after.LessThan(t.unarranged.Neg()) {
				return valueobject.Reject(valueobject.ReasonInsufficientFunds, msgUnarrangedOverdraft)
			}
			continue
		}
		if after.IsNegative() {
			return valueobject.Reject(valueobject.ReasonInsufficientFunds, fmt.Sprintf(
				"Postings total %s %s, which exceeds the available balance of %s %s.",
				change.Neg().StringFixed(2), denom, current.StringFixed(2), denom))
		}
	}

	if t.maxWithdrawalsSet {
		proposed := proposedWithdrawals(req)
		if proposed == 0 {
			return nil
		}
		eff := req.EffectiveTime
		existing := valueobject.CountMonthlyWithdrawals(req.Account.ClientTransactions(), valueobject.MonthStart(eff), eff)
		if existing+proposed > t.maxWithdrawals {
			return valueobject.Reject(valueobject.ReasonAgainstTNC, fmt.Sprintf(msgMonthlyWithdrawals, t.maxWithdrawals))
		}
	}
	return nil
}

// proposedWithdrawals counts the batch instructions that would commit an
// outbound transaction for the first time.
func proposedWithdrawals(req HookRequest) int {
	n := 0
	counted := make(map[string]bool)
	for _, pi := range req.Batch.Instructions {
		switch pi.Type {
		case valueobject.InstructionOutboundHardSettlement:
			n++
		case valueobject.InstructionSettlement:
			if counted[pi.ClientTransactionID] {
				continue
			}
			ct, ok := req.Account.ClientTransaction(pi.ClientTransactionID)
			if ok && ct.IsOutbound() && ct.SettledAmount().IsZero() && !ct.Cancelled {
				counted[pi.ClientTransactionID] = true
				n++
			}
		}
	}
	return n
}

func (CASA) PostPosting(HookRequest) (HookResult, error) {
	return HookResult{}, nil
}

func (c CASA) Scheduled(req HookRequest) (HookResult, error) {
	t, err := loadCASATerms(req.Parameters(), req.Flags())
	if err != nil {
		return HookResult{}, err
	}

	var instructions []valueobject.PostingInstruction
	switch req.EventType {
	case EventAccrueInterestAndDailyFees:
		instructions, err = c.accrue(req, t)
	case EventApplyAccruedInterest:
		set := req.Account.Balances(req.EffectiveTime)
		for _, book := range []accrualBook{t.deposit, t.overdraft, t.overdraftFee} {
			instructions = append(instructions, book.apply(req, req.EventType, t.denomination, set, money.RoundHalfUp)...)
		}
	case EventApplyMonthlyFees:
		instructions = c.monthlyFees(req, t)
	case EventApplyAnnualFees:
		instructions = charge(req, req.EventType, "ANNUAL_MAINTENANCE", t.denomination, t.annualIncome, t.annualFee)
	default:
		return HookResult{}, fmt.Errorf("%w: %s", ErrUnknownEvent, req.EventType)
	}
	if err != nil {
		return HookResult{}, err
	}
	return HookResult{}.withBatch(req, req.EventType, instructions), nil
}

func (c CASA) accrue(req HookRequest, t casaTerms) ([]valueobject.PostingInstruction, error) {
	days, err := DaysInYear(t.daysInYear, req.EffectiveTime)
	if err != nil {
		return nil, err
	}
	coord := valueobject.Coordinate(valueobject.DefaultAddress, t.denomination)
	set := req.Account.Balances(req.EffectiveTime)
	balance := set.Net(coord)

	var out []valueobject.PostingInstruction
	switch {
	case balance.IsPositive():
		amount := BandedDailyAccrual(balance, t.depositTiers, days, AccrualPrecision)
		out = append(out, t.deposit.accrue(req, req.EventType, t.denomination, amount)...)

	case balance.IsNegative():
		below := ConsecutiveDaysBelowZero(req.Account.Timeseries(), coord, req.EffectiveTime)
		subject := BalanceSubjectToInterest(balance.Neg(), t.buffer, t.bufferDays, below)
		amount := DailyAccrual(subject, t.overdraftRate, days, AccrualPrecision)
		out = append(out, t.overdraft.accrue(req, req.EventType, t.denomination, amount)...)

		if balance.Neg().GreaterThan(t.arranged) && t.unarrangedFee.IsPositive() {
			fee := t.unarrangedFee
			if t.feeCapSet {
				// The cap is per calendar month whatever the application frequency.
				charged := t.overdraftFee.AccruedSince(req.Account.Timeseries(), valueobject.MonthStart(req.EffectiveTime), req.EffectiveTime, t.denomination)
				fee = decimal.Min(fee, t.feeCap.Sub(charged))
			}
			if fee.IsPositive() {
				out = append(out, t.overdraftFee.accrue(req, req.EventType, t.denomination, fee)...)
			}
		}
	}
	return out, nil
}

// BalanceSubjectToInterest is the overdrawn amount interest accrues on. The
// interest-free buffer is deducted while the account has been below zero for
// at most bufferDays days; -1 keeps the buffer indefinitely and 0 disables it.
func BalanceSubjectToInterest(owed, buffer decimal.Decimal, bufferDays, daysBelowZero int) decimal.Decimal {
	if bufferDays == 0 || (bufferDays > 0 && daysBelowZero > bufferDays) {
		return owed
	}
	return decimal.Max(decimal.Zero, owed.Sub(buffer))
}

func (c CASA) monthlyFees(req HookRequest, t casaTerms) []valueobject.PostingInstruction {
	out := charge(req, req.EventType, "MAINTENANCE", t.denomination, t.maintenanceIncome, t.maintenanceFee)
	if !t.minimumFee.IsPositive() {
		return out
	}
	to := req.EffectiveTime
	from := valueobject.AddMonthsClipped(to, -1, to.Day())
	if opened := req.Account.OpenedAt(); from.Before(opened) {
		from = opened
	}
	coord := valueobject.Coordinate(valueobject.DefaultAddress, t.denomination)
	mean := MeanDailyBalance(req.Account.Timeseries(), coord, from, to)
	if mean.LessThan(t.minimumThreshold) {
		out = append(out, charge(req, req.EventType, "MINIMUM_BALANCE", t.denomination, t.minimumIncome, t.minimumFee)...)
	}
	return out
}

func (c CASA) Close(req HookRequest) (HookResult, error) {
	t, err := loadCASATerms(req.Parameters(), req.Flags())
	if err != nil {
		return HookResult{}, err
	}
	set := req.Account.LatestBalances()
	var out []valueobject.PostingInstruction
	for _, book := range []accrualBook{t.deposit, t.overdraft, t.overdraftFee} {
		out = append(out, book.reverse(req, EventCloseAccount, t.denomination, set)...)
	}
	return HookResult{}.withBatch(req, EventCloseAccount, out), nil
}
