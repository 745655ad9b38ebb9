package finance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

// MaxPayoffMonths bounds the amortization loop.
const MaxPayoffMonths = 600

// stallLimit is how many consecutive non-decreasing periods mean the
// minimum payment never catches up with interest.
const stallLimit = 2

// DefaultMinimumPaymentRule is $25 or 2% of the balance, whichever is larger.
func DefaultMinimumPaymentRule() domain.MinimumPaymentRule {
	return domain.MinimumPaymentRule{
		Floor:   decimal.NewFromInt(25),
		Percent: decimal.RequireFromString("0.02"),
	}
}

// minimumPayment is max(floor, percent × balance), rounded to cents.
func minimumPayment(rule domain.MinimumPaymentRule, balance decimal.Decimal) decimal.Decimal {
	return decimal.Max(rule.Floor, Round2(rule.Percent.Mul(balance)))
}

// period advances the balance by one month. Spend is added before interest
// accrues; the payment never exceeds what is owed.
func period(balance, apr, spend, extraPayment decimal.Decimal, rule domain.MinimumPaymentRule) (next, interest, payment decimal.Decimal) {
	balance = balance.Add(spend)
	interest = periodInterest(balance, apr)
	owed := balance.Add(interest)

	payment = decimal.Zero
	if owed.IsPositive() {
		payment = minimumPayment(rule, balance).Add(extraPayment)
		payment = decimal.Min(payment, owed)
	}
	return owed.Sub(payment), interest, payment
}

// PayoffHorizon simulates minimum-payment-only amortization. It reports
// PayoffNever once the balance fails to decrease for two consecutive
// periods, and PayoffExceedsCap after MaxPayoffMonths.
func PayoffHorizon(balance, apr decimal.Decimal, rule domain.MinimumPaymentRule) domain.PayoffHorizon {
	h := domain.PayoffHorizon{
		Outcome:       domain.PayoffPaid,
		Cap:           MaxPayoffMonths,
		TotalInterest: decimal.Zero,
		TotalPaid:     decimal.Zero,
	}
	if !balance.IsPositive() {
		return h
	}

	stalled := 0
	for month := 1; month <= MaxPayoffMonths; month++ {
		next, interest, payment := period(balance, apr, decimal.Zero, decimal.Zero, rule)
		h.Months = month
		h.TotalInterest = h.TotalInterest.Add(interest)
		h.TotalPaid = h.TotalPaid.Add(payment)

		if !next.IsPositive() {
			return h
		}
		if next.GreaterThanOrEqual(balance) {
			stalled++
			if stalled >= stallLimit {
				h.Outcome = domain.PayoffNever
				return h
			}
		} else {
			stalled = 0
		}
		balance = next
	}
	h.Outcome = domain.PayoffExceedsCap
	return h
}

// Scenario runs the amortization loop for a fixed horizon with a monthly
// delta applied to the side the input names: DeltaPayment raises every
// payment, DeltaSpend adds new charges every month.
func Scenario(balance, apr decimal.Decimal, in domain.ScenarioInput, rule domain.MinimumPaymentRule) (*domain.ScenarioResult, error) {
	if in.MonthlyDelta.IsNegative() {
		return nil, &domain.ErrValidation{Field: "monthly_delta", Message: "must be zero or positive; use side to choose payment or spend"}
	}
	if in.HorizonMonths <= 0 || in.HorizonMonths > MaxPayoffMonths {
		return nil, &domain.ErrValidation{Field: "horizon_months", Message: fmt.Sprintf("must be between 1 and %d", MaxPayoffMonths)}
	}

	var spend, extra decimal.Decimal
	switch in.Side {
	case domain.DeltaPayment:
		extra = in.MonthlyDelta
	case domain.DeltaSpend:
		spend = in.MonthlyDelta
	default:
		return nil, &domain.ErrValidation{Field: "side", Message: "must be payment or spend"}
	}

	res := &domain.ScenarioResult{
		Name:          in.Name,
		Side:          in.Side,
		MonthlyDelta:  in.MonthlyDelta,
		HorizonMonths: in.HorizonMonths,
		Trajectory:    make([]decimal.Decimal, 0, in.HorizonMonths),
		TotalInterest: decimal.Zero,
		TotalPaid:     decimal.Zero,
	}
	for month := 1; month <= in.HorizonMonths; month++ {
		next, interest, payment := period(balance, apr, spend, extra, rule)
		res.TotalInterest = res.TotalInterest.Add(interest)
		res.TotalPaid = res.TotalPaid.Add(payment)
		res.Trajectory = append(res.Trajectory, next)
		if res.PaidOffMonth == 0 && !next.IsPositive() {
			res.PaidOffMonth = month
		}
		balance = next
	}
	res.EndingBalance = balance
	return res, nil
}

// CompareScenario runs the scenario next to a zero-delta baseline.
func CompareScenario(balance, apr decimal.Decimal, in domain.ScenarioInput, rule domain.MinimumPaymentRule) (*domain.ScenarioComparison, error) {
	adjusted, err := Scenario(balance, apr, in, rule)
	if err != nil {
		return nil, err
	}
	baseIn := in
	baseIn.Name = "baseline"
	baseIn.MonthlyDelta = decimal.Zero
	baseline, err := Scenario(balance, apr, baseIn, rule)
	if err != nil {
		return nil, err
	}

	cmp := &domain.ScenarioComparison{
		Baseline:      *baseline,
		Adjusted:      *adjusted,
		InterestDelta: adjusted.TotalInterest.Sub(baseline.TotalInterest),
		BalanceDelta:  adjusted.EndingBalance.Sub(baseline.EndingBalance),
	}

	switch in.Side {
	case domain.DeltaPayment:
		cmp.Summary = fmt.Sprintf("Paying %s more per month for %d months would save %s in interest and leave the balance %s lower",
			FormatUSD(in.MonthlyDelta), in.HorizonMonths, FormatUSD(cmp.InterestDelta.Neg()), FormatUSD(cmp.BalanceDelta.Neg()))
	case domain.DeltaSpend:
		cmp.Summary = fmt.Sprintf("Spending %s more per month for %d months would add %s to the balance and ~%s in extra interest",
			FormatUSD(in.MonthlyDelta), in.HorizonMonths, FormatUSD(cmp.BalanceDelta), FormatUSD(cmp.InterestDelta))
	}
	return cmp, nil
}

// DefaultScenarios are the what-ifs run for every analyzed statement.
func DefaultScenarios() []domain.ScenarioInput {
	return []domain.ScenarioInput{
		{Name: "save_200", MonthlyDelta: decimal.NewFromInt(200), Side: domain.DeltaPayment, HorizonMonths: 12},
		{Name: "save_100", MonthlyDelta: decimal.NewFromInt(100), Side: domain.DeltaPayment, HorizonMonths: 12},
		{Name: "spend_150", MonthlyDelta: decimal.NewFromInt(150), Side: domain.DeltaSpend, HorizonMonths: 12},
	}
}
