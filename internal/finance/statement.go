package finance

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

// maxEstimatedAPR caps an APR inferred from interest charged.
var maxEstimatedAPR = decimal.RequireFromString("0.30")

// Reconcile checks previous + charges - payments + interest == current
// within one cent. Absent interest counts as zero; the other four fields are
// required.
func Reconcile(rec *domain.StatementRecord) (*domain.Reconciliation, error) {
	for _, f := range []domain.StatementField{
		domain.FieldPreviousBalance, domain.FieldNewCharges, domain.FieldPayments, domain.FieldCurrentBalance,
	} {
		if !rec.Amount(f).Valid {
			return nil, &domain.ErrMissingRequiredField{Metric: "reconciliation", Field: f}
		}
	}

	expected := rec.PreviousBalance.Decimal.
		Add(rec.NewCharges.Decimal).
		Sub(rec.Payments.Decimal).
		Add(rec.InterestCharged.Decimal)
	diff := rec.CurrentBalance.Decimal.Sub(expected)

	return &domain.Reconciliation{
		Expected: expected,
		Actual:   rec.CurrentBalance.Decimal,
		Diff:     diff,
		Balanced: diff.Abs().LessThanOrEqual(cent),
	}, nil
}

// Derive returns a copy of rec with computable gaps filled: new charges from
// the balance equation, available credit from the limit, and an APR
// estimated from interest charged. Filled fields are listed in Derived.
func Derive(rec *domain.StatementRecord) *domain.StatementRecord {
	out := rec.Clone()

	if !out.NewCharges.Valid && out.PreviousBalance.Valid && out.Payments.Valid && out.CurrentBalance.Valid {
		charges := out.CurrentBalance.Decimal.
			Sub(out.PreviousBalance.Decimal).
			Add(out.Payments.Decimal).
			Sub(out.InterestCharged.Decimal)
		if !charges.IsNegative() {
			out.NewCharges = domain.Known(charges)
			out.Derived = append(out.Derived, domain.FieldNewCharges)
		}
	}

	if !out.AvailableCredit.Valid && out.CreditLimit.Valid && out.CurrentBalance.Valid {
		avail := decimal.Max(decimal.Zero, out.CreditLimit.Decimal.Sub(out.CurrentBalance.Decimal))
		out.AvailableCredit = domain.Known(avail)
		out.Derived = append(out.Derived, domain.FieldAvailableCredit)
	}

	if !out.APR.Valid && out.InterestCharged.Valid && out.PreviousBalance.Valid && out.PreviousBalance.Decimal.IsPositive() {
		apr := out.InterestCharged.Decimal.Div(out.PreviousBalance.Decimal).Mul(twelve).Round(4)
		out.APR = domain.Known(decimal.Min(apr, maxEstimatedAPR))
		out.Derived = append(out.Derived, domain.FieldAPR)
	}

	return out
}

// Analyze computes every statement metric it has inputs for. Metrics that
// cannot be computed are listed in Unavailable with the reason; the
// division guard is reported the same way alongside its zero sentinel.
func Analyze(rec *domain.StatementRecord, rule domain.MinimumPaymentRule) *domain.StatementMetrics {
	m := &domain.StatementMetrics{Unavailable: map[string]string{}}

	u, err := Utilization(rec.CurrentBalance, rec.CreditLimit)
	switch {
	case err == nil:
		m.Utilization = &u
	case isGuard(err):
		m.Utilization = &u
		m.Unavailable["utilization"] = err.Error()
	default:
		m.Unavailable["utilization"] = err.Error()
	}

	if p, err := InterestAvoidance(rec.CurrentBalance, rec.APR); err == nil {
		m.InterestProjection = p
	} else {
		m.Unavailable["interest_projection"] = err.Error()
	}

	switch {
	case !rec.CurrentBalance.Valid:
		m.Unavailable["payoff"] = (&domain.ErrMissingRequiredField{Metric: "payoff", Field: domain.FieldCurrentBalance}).Error()
	case !rec.APR.Valid:
		m.Unavailable["payoff"] = (&domain.ErrMissingRequiredField{Metric: "payoff", Field: domain.FieldAPR}).Error()
	default:
		h := PayoffHorizon(rec.CurrentBalance.Decimal, rec.APR.Decimal, rule)
		m.Payoff = &h
	}

	if len(m.Unavailable) == 0 {
		m.Unavailable = nil
	}
	return m
}

func isGuard(err error) bool {
	var g *domain.ErrDivisionByZeroGuard
	return errors.As(err, &g)
}
