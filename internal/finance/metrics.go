// Package finance computes statement metrics in fixed-point decimal:
// utilization, interest projections, minimum-payment payoff horizons and
// what-if scenarios. Amounts are rounded to cents half away from zero.
package finance

import (
	"github.com/shopspring/decimal"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

var (
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
	cent    = decimal.New(1, -2)
)

// Round2 rounds to cents, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Utilization returns balance / limit. A zero or absent limit yields the
// zero sentinel with ErrDivisionByZeroGuard; an absent balance yields
// ErrMissingRequiredField.
func Utilization(balance, limit decimal.NullDecimal) (decimal.Decimal, error) {
	if !balance.Valid {
		return decimal.Zero, &domain.ErrMissingRequiredField{Metric: "utilization", Field: domain.FieldCurrentBalance}
	}
	if !limit.Valid || limit.Decimal.IsZero() {
		return decimal.Zero, &domain.ErrDivisionByZeroGuard{Operation: "utilization"}
	}
	return balance.Decimal.Div(limit.Decimal), nil
}

// InterestAvoidance projects next period's interest at APR/12 when the
// balance is carried versus paid in full.
func InterestAvoidance(balance, apr decimal.NullDecimal) (*domain.InterestProjection, error) {
	if !balance.Valid {
		return nil, &domain.ErrMissingRequiredField{Metric: "interest_projection", Field: domain.FieldCurrentBalance}
	}
	if !apr.Valid {
		return nil, &domain.ErrMissingRequiredField{Metric: "interest_projection", Field: domain.FieldAPR}
	}

	carried := periodInterest(balance.Decimal, apr.Decimal)
	return &domain.InterestProjection{
		Balance:           balance.Decimal,
		MonthlyRate:       apr.Decimal.Div(twelve),
		IfPaidInFull:      decimal.Zero,
		IfCarried:         carried,
		AvoidableInterest: carried,
	}, nil
}

// periodInterest is one month of interest on balance, rounded to cents.
func periodInterest(balance, apr decimal.Decimal) decimal.Decimal {
	return Round2(balance.Mul(apr).Div(twelve))
}
