package service

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

// ErrOutstandingBalance is returned when closing a card that still owes money.
var ErrOutstandingBalance = errors.New("account has an outstanding balance")

// Credit card scheduled events.
const (
	EventAccrueInterest  = "ACCRUE_INTEREST"
	EventStatementCutOff = "STATEMENT_CUT_OFF"
	EventPaymentDue      = "PAYMENT_DUE"
	EventAnnualFee       = "ANNUAL_FEE"
)

// Credit card balance buckets and the stages they move through.
const (
	BucketPurchase    = "PURCHASE"
	BucketCashAdvance = "CASH_ADVANCE"
	BucketInterest    = "INTEREST"
	BucketFees        = "FEES"

	StageCharged = "CHARGED"
	StageBilled  = "BILLED"
	StageUnpaid  = "UNPAID"
)

// Credit card tracking addresses outside the bucket grid.
const (
	AddressAccruedPurchaseInterest    = "ACCRUED_PURCHASE_INTEREST"
	AddressAccruedCashAdvanceInterest = "ACCRUED_CASH_ADVANCE_INTEREST"
	AddressStatementBalance           = "STATEMENT_BALANCE"
	AddressMADBalance                 = "MAD_BALANCE"
)

// Credit card parameters.
const (
	ParamCreditLimit                   = "credit_limit"
	ParamAnnualPercentageRate          = "annual_percentage_rate"
	ParamMinimumAmountDue              = "minimum_amount_due"
	ParamMinimumPercentageDue          = "minimum_percentage_due"
	ParamPaymentDuePeriod              = "payment_due_period"
	ParamLateRepaymentFee              = "late_repayment_fee"
	ParamAnnualFee                     = "annual_fee"
	ParamInterestIncomeAccount         = "interest_income_account"
	ParamLateRepaymentFeeIncomeAccount = "late_repayment_fee_income_account"
	ParamAnnualFeeIncomeAccount        = "annual_fee_income_account"
	TransactionCodeCashAdvance         = "cash_advance"
	prefixCardAccrual                  = "accrual"
	prefixStatementCutOff              = "scod"
)

// Buckets in repayment order within a stage.
var cardBuckets = []string{BucketInterest, BucketFees, BucketCashAdvance, BucketPurchase}

// CardAddress names the tracking address of bucket at stage.
func CardAddress(bucket, stage string) string {
	return bucket + "_" + stage
}

// RepaymentHierarchy is the order repayments clear the bucket addresses in.
func RepaymentHierarchy() []string {
	out := make([]string, 0, 3*len(cardBuckets))
	for _, stage := range []string{StageUnpaid, StageBilled, StageCharged} {
		for _, b := range cardBuckets {
			out = append(out, CardAddress(b, stage))
		}
	}
	return out
}

type cardTerms struct {
	denomination     string
	daysInYear       string
	creditLimit      decimal.Decimal
	madFloor         decimal.Decimal
	lateFee          decimal.Decimal
	annualFee        decimal.Decimal
	apr              map[string]decimal.Decimal
	madPercentages   map[string]decimal.Decimal
	paymentDuePeriod int
	accrual          valueobject.ScheduleExpression
	scod             valueobject.ScheduleExpression
	interestIncome   string
	lateFeeIncome    string
	annualFeeIncome  string
}

func loadCardTerms(params valueobject.Parameters) (cardTerms, error) {
	r := newParamReader(params, nil)
	t := cardTerms{
		denomination:     r.string(ParamDenomination),
		daysInYear:       r.union(ParamInterestAccrualDaysInYear, DaysInYearActual, DaysInYear365, DaysInYear366, DaysInYear360),
		creditLimit:      r.decimal(ParamCreditLimit),
		madFloor:         r.decimal(ParamMinimumAmountDue),
		lateFee:          r.decimal(ParamLateRepaymentFee),
		annualFee:        r.decimal(ParamAnnualFee),
		apr:              r.decimalMap(ParamAnnualPercentageRate),
		madPercentages:   r.decimalMap(ParamMinimumPercentageDue),
		paymentDuePeriod: r.int(ParamPaymentDuePeriod),
		accrual:          r.expression(prefixCardAccrual, ""),
		scod:             r.expression(prefixStatementCutOff, ""),
		interestIncome:   r.string(ParamInterestIncomeAccount),
		lateFeeIncome:    r.string(ParamLateRepaymentFeeIncomeAccount),
		annualFeeIncome:  r.string(ParamAnnualFeeIncomeAccount),
	}
	if r.err != nil {
		return cardTerms{}, r.err
	}
	return t, nil
}

func (t cardTerms) rate(bucket string) decimal.Decimal {
	return t.apr[strings.ToLower(bucket)]
}

func (t cardTerms) percentage(bucket string) decimal.Decimal {
	return t.madPercentages[strings.ToLower(bucket)]
}

// CreditCard runs revolving credit: spend is tracked by bucket, statements are
// cut monthly and the minimum amount due falls due a fixed number of days later.
type CreditCard struct{}

func NewCreditCard() CreditCard { return CreditCard{} }

func (CreditCard) ProductType() valueobject.ProductType { return valueobject.ProductCreditCard }
func (CreditCard) Tside() valueobject.Tside             { return valueobject.TsideAsset }

func (CreditCard) ValidateParameters(params valueobject.Parameters) error {
	t, err := loadCardTerms(params)
	if err != nil {
		return err
	}
	for _, expr := range []valueobject.ScheduleExpression{t.accrual, t.scod} {
		if err := expr.Validate(); err != nil {
			return err
		}
	}
	for _, b := range []string{BucketPurchase, BucketCashAdvance} {
		if _, ok := t.apr[strings.ToLower(b)]; !ok {
			return fmt.Errorf("%w: %s has no %q rate", valueobject.ErrParameterType, ParamAnnualPercentageRate, strings.ToLower(b))
		}
	}
	if !t.creditLimit.IsPositive() {
		return fmt.Errorf("%w: %s must be positive", valueobject.ErrParameterType, ParamCreditLimit)
	}
	if t.paymentDuePeriod < 1 {
		return fmt.Errorf("%w: %s must be at least one day", valueobject.ErrParameterType, ParamPaymentDuePeriod)
	}
	return nil
}

// FirstStatementCutOff is one month after opening, clipped to month end, at the SCOD time.
func FirstStatementCutOff(opened time.Time, scod valueobject.ScheduleExpression) time.Time {
	d := valueobject.AddMonthsClipped(opened, 1, opened.Day())
	return time.Date(d.Year(), d.Month(), d.Day(), scod.Hour, scod.Minute, scod.Second, 0, opened.Location())
}

// PaymentDueDate is period days after the statement cut-off, moved off holidays.
func PaymentDueDate(scod time.Time, period int, calendar valueobject.Calendar) time.Time {
	return calendar.ShiftToBusinessDay(scod.AddDate(0, 0, period))
}

// MinimumAmountDue is min(statement, max(floor, percentageDue + unpaid)) at 2 dp.
func MinimumAmountDue(statement, floor, percentageDue, unpaid decimal.Decimal) decimal.Decimal {
	if !statement.IsPositive() {
		return decimal.Zero
	}
	mad := decimal.Min(statement, decimal.Max(floor, percentageDue.Add(unpaid)))
	return money.Round(mad, ApplicationPrecision, money.RoundHalfUp)
}

func (c CreditCard) ExecutionSchedules(req HookRequest) ([]valueobject.EventSchedule, error) {
	t, err := loadCardTerms(req.Parameters())
	if err != nil {
		return nil, err
	}
	opened := req.Account.OpenedAt()
	cal := req.Account.Calendar()

	accrual, err := valueobject.NewEventSchedule(EventAccrueInterest, t.accrual, valueobject.FrequencyDaily, opened, cal, false)
	if err != nil {
		return nil, err
	}
	scodExpr := t.scod
	scodExpr.Day = opened.Day()
	scod, err := valueobject.NewEventSchedule(EventStatementCutOff, scodExpr, valueobject.FrequencyMonthly, opened, cal, false)
	if err != nil {
		return nil, err
	}
	scod.NextRunTime = FirstStatementCutOff(opened, t.scod)

	annualExpr := scodExpr
	annualExpr.Month = int(opened.Month())
	annual, err := valueobject.NewEventSchedule(EventAnnualFee, annualExpr, valueobject.FrequencyAnnually, opened.AddDate(0, 1, 0), cal, false)
	if err != nil {
		return nil, err
	}
	return []valueobject.EventSchedule{accrual, scod, annual}, nil
}

func (c CreditCard) PrePosting(req HookRequest) error {
	t, err := loadCardTerms(req.Parameters())
	if err != nil {
		return err
	}
	if err := checkDenominations(req, []string{t.denomination}); err != nil {
		return err
	}
	if overridden(req.Batch) {
		return nil
	}
	delta := valueobject.BalanceSet{}.Apply(req.Batch.Postings(), req.AccountID(), c.Tside())
	spend := available(delta, t.denomination)
	if !spend.IsPositive() {
		return nil
	}
	credit := t.creditLimit.Sub(available(req.Account.LatestBalances(), t.denomination))
	if spend.GreaterThan(credit) {
		return valueobject.Reject(valueobject.ReasonInsufficientFunds, fmt.Sprintf(
			"Incoming transaction of %s %s exceeds available credit of %s %s.",
			spend.StringFixed(2), t.denomination, credit.StringFixed(2), t.denomination))
	}
	return nil
}

// track raises (positive) or lowers (negative) a tracking address against
// INTERNAL_CONTRA on an asset account.
func track(req HookRequest, event, subtype, address, denomination string, amount decimal.Decimal) []valueobject.PostingInstruction {
	if amount.IsZero() {
		return nil
	}
	id := req.AccountID()
	from, to := valueobject.At(id, address), valueobject.At(id, valueobject.InternalContraAddress)
	if amount.IsNegative() {
		from, to = to, from
		amount = amount.Neg()
	}
	return []valueobject.PostingInstruction{
		valueobject.Transfer(req.ClientTransactionID(event, subtype, address, denomination),
			amount, denomination, from, to, map[string]string{DetailEvent: event}),
	}
}

// committedMovement sums the committed DEFAULT legs of pi on accountID.
func committedMovement(pi valueobject.PostingInstruction, accountID, denomination string) (debits, credits decimal.Decimal) {
	for _, p := range pi.Postings {
		if p.AccountID != accountID || p.Address != valueobject.DefaultAddress ||
			p.Phase != valueobject.PhaseCommitted || p.Denomination != denomination {
			continue
		}
		if p.Credit {
			credits = credits.Add(p.Amount)
		} else {
			debits = debits.Add(p.Amount)
		}
	}
	return debits, credits
}

func (c CreditCard) PostPosting(req HookRequest) (HookResult, error) {
	t, err := loadCardTerms(req.Parameters())
	if err != nil {
		return HookResult{}, err
	}
	denom := t.denomination
	set := req.Account.LatestBalances()
	current := make(map[string]decimal.Decimal)
	get := func(addr string) decimal.Decimal {
		if v, ok := current[addr]; ok {
			return v
		}
		return set.Net(valueobject.Coordinate(addr, denom))
	}

	var out []valueobject.PostingInstruction
	for i, pi := range req.Batch.Instructions {
		if !pi.IsCustomerInitiated() {
			continue
		}
		idx := strconv.Itoa(i)
		spent, repaid := committedMovement(pi, req.AccountID(), denom)

		if spent.IsPositive() {
			bucket := BucketPurchase
			if pi.Detail(DetailTransactionCode) == TransactionCodeCashAdvance {
				bucket = BucketCashAdvance
			}
			addr := CardAddress(bucket, StageCharged)
			out = append(out, track(req, "SPEND", idx, addr, denom, spent)...)
			current[addr] = get(addr).Add(spent)
		}

		if repaid.IsPositive() {
			remaining := repaid
			for _, addr := range RepaymentHierarchy() {
				if remaining.IsZero() {
					break
				}
				bal := get(addr)
				if !bal.IsPositive() {
					continue
				}
				take := decimal.Min(bal, remaining)
				out = append(out, track(req, "REPAYMENT", idx, addr, denom, take.Neg())...)
				current[addr] = bal.Sub(take)
				remaining = remaining.Sub(take)
			}
			for _, addr := range []string{AddressMADBalance, AddressStatementBalance} {
				bal := get(addr)
				if !bal.IsPositive() {
					continue
				}
				take := decimal.Min(bal, repaid)
				out = append(out, track(req, "REPAYMENT", idx, addr, denom, take.Neg())...)
				current[addr] = bal.Sub(take)
			}
		}
	}
	return HookResult{}.withBatch(req, HookPostPosting, out), nil
}

func (c CreditCard) Scheduled(req HookRequest) (HookResult, error) {
	t, err := loadCardTerms(req.Parameters())
	if err != nil {
		return HookResult{}, err
	}
	res := HookResult{}
	var out []valueobject.PostingInstruction
	switch req.EventType {
	case EventAccrueInterest:
		out, err = c.accrue(req, t)
	case EventStatementCutOff:
		out = c.statementCutOff(req, t)
		pdd := PaymentDueDate(req.EffectiveTime, t.paymentDuePeriod, req.Account.Calendar())
		res.ScheduleUpdates = []valueobject.EventSchedule{valueobject.OneOff(EventPaymentDue, pdd)}
	case EventPaymentDue:
		out = c.paymentDue(req, t)
	case EventAnnualFee:
		if t.annualFee.IsPositive() {
			out = append(charge(req, req.EventType, BucketFees, t.denomination, t.annualFeeIncome, t.annualFee),
				track(req, req.EventType, BucketFees, CardAddress(BucketFees, StageCharged), t.denomination, t.annualFee)...)
		}
	default:
		return HookResult{}, fmt.Errorf("%w: %s", ErrUnknownEvent, req.EventType)
	}
	if err != nil {
		return HookResult{}, err
	}
	return res.withBatch(req, req.EventType, out), nil
}

func (c CreditCard) accrue(req HookRequest, t cardTerms) ([]valueobject.PostingInstruction, error) {
	days, err := DaysInYear(t.daysInYear, req.EffectiveTime)
	if err != nil {
		return nil, err
	}
	set := req.Account.Balances(req.EffectiveTime)
	d := t.denomination
	purchase := set.Sum(d, CardAddress(BucketPurchase, StageBilled), CardAddress(BucketPurchase, StageUnpaid))
	cash := set.Sum(d, CardAddress(BucketCashAdvance, StageCharged), CardAddress(BucketCashAdvance, StageBilled),
		CardAddress(BucketCashAdvance, StageUnpaid))

	var out []valueobject.PostingInstruction
	if purchase.IsPositive() {
		amount := DailyAccrual(purchase, t.rate(BucketPurchase), days, AccrualPrecision)
		out = append(out, track(req, req.EventType, BucketPurchase, AddressAccruedPurchaseInterest, d, amount)...)
	}
	if cash.IsPositive() {
		amount := DailyAccrual(cash, t.rate(BucketCashAdvance), days, AccrualPrecision)
		out = append(out, track(req, req.EventType, BucketCashAdvance, AddressAccruedCashAdvanceInterest, d, amount)...)
	}
	return out, nil
}

func (c CreditCard) statementCutOff(req HookRequest, t cardTerms) []valueobject.PostingInstruction {
	d := t.denomination
	set := req.Account.Balances(req.EffectiveTime)
	get := func(addr string) decimal.Decimal { return set.Net(valueobject.Coordinate(addr, d)) }
	event := req.EventType

	previous := get(AddressStatementBalance)
	accruedPurchase := get(AddressAccruedPurchaseInterest)
	accruedCash := get(AddressAccruedCashAdvanceInterest)

	var out []valueobject.PostingInstruction
	out = append(out, track(req, event, BucketPurchase, AddressAccruedPurchaseInterest, d, accruedPurchase.Neg())...)
	out = append(out, track(req, event, BucketCashAdvance, AddressAccruedCashAdvanceInterest, d, accruedCash.Neg())...)

	// Purchase interest is waived when the previous statement was paid in full.
	interest := money.Round(accruedCash, ApplicationPrecision, money.RoundHalfUp)
	if previous.IsPositive() {
		interest = interest.Add(money.Round(accruedPurchase, ApplicationPrecision, money.RoundHalfUp))
	}
	if interest.IsPositive() {
		out = append(out, charge(req, event, BucketInterest, d, t.interestIncome, interest)...)
		out = append(out, track(req, event, BucketInterest, CardAddress(BucketInterest, StageBilled), d, interest)...)
	}

	percentageDue := decimal.Zero
	unpaid := decimal.Zero
	for _, b := range cardBuckets {
		charged := get(CardAddress(b, StageCharged))
		out = append(out, track(req, event, "BILL", CardAddress(b, StageCharged), d, charged.Neg())...)
		out = append(out, track(req, event, "BILL", CardAddress(b, StageBilled), d, charged)...)

		billed := get(CardAddress(b, StageBilled)).Add(charged)
		if b == BucketInterest && interest.IsPositive() {
			billed = billed.Add(interest)
		}
		percentageDue = percentageDue.Add(billed.Mul(t.percentage(b)))
		unpaid = unpaid.Add(get(CardAddress(b, StageUnpaid)))
	}

	statement := decimal.Max(decimal.Zero, get(valueobject.DefaultAddress).Add(interest))
	out = append(out, track(req, event, "STATEMENT", AddressStatementBalance, d, statement.Sub(previous))...)

	mad := MinimumAmountDue(statement, t.madFloor, percentageDue, unpaid)
	out = append(out, track(req, event, "MAD", AddressMADBalance, d, mad.Sub(get(AddressMADBalance)))...)
	return out
}

func (c CreditCard) paymentDue(req HookRequest, t cardTerms) []valueobject.PostingInstruction {
	d := t.denomination
	set := req.Account.Balances(req.EffectiveTime)
	get := func(addr string) decimal.Decimal { return set.Net(valueobject.Coordinate(addr, d)) }
	event := req.EventType

	var out []valueobject.PostingInstruction
	if mad := get(AddressMADBalance); mad.IsPositive() {
		if t.lateFee.IsPositive() {
			out = append(out, charge(req, event, "LATE_REPAYMENT_FEE", d, t.lateFeeIncome, t.lateFee)...)
			out = append(out, track(req, event, "LATE_REPAYMENT_FEE", CardAddress(BucketFees, StageCharged), d, t.lateFee)...)
		}
		out = append(out, track(req, event, "MAD", AddressMADBalance, d, mad.Neg())...)
	}
	for _, b := range cardBuckets {
		billed := get(CardAddress(b, StageBilled))
		if !billed.IsPositive() {
			continue
		}
		out = append(out, track(req, event, "OVERDUE", CardAddress(b, StageBilled), d, billed.Neg())...)
		out = append(out, track(req, event, "OVERDUE", CardAddress(b, StageUnpaid), d, billed)...)
	}
	return out
}

func (c CreditCard) Close(req HookRequest) (HookResult, error) {
	t, err := loadCardTerms(req.Parameters())
	if err != nil {
		return HookResult{}, err
	}
	set := req.Account.LatestBalances()
	if owed := available(set, t.denomination); owed.IsPositive() {
		return HookResult{}, fmt.Errorf("%w: %s %s", ErrOutstandingBalance, owed.StringFixed(2), t.denomination)
	}

	var addresses []string
	for coord, bal := range set {
		if coord.Denomination != t.denomination || coord.Phase != valueobject.PhaseCommitted ||
			coord.Address == valueobject.DefaultAddress || coord.Address == valueobject.InternalContraAddress ||
			bal.Net.IsZero() {
			continue
		}
		addresses = append(addresses, coord.Address)
	}
	sort.Strings(addresses)

	var out []valueobject.PostingInstruction
	for _, addr := range addresses {
		net := set.Net(valueobject.Coordinate(addr, t.denomination))
		out = append(out, track(req, EventCloseAccount, "CLEAR", addr, t.denomination, net.Neg())...)
	}
	return HookResult{}.withBatch(req, EventCloseAccount, out), nil
}
