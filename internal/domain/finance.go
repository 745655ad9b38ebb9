package domain

import "github.com/shopspring/decimal"

// ============================================================
// Financial metrics
// ============================================================

// MinimumPaymentRule is the issuer formula for the minimum due:
// max(Floor, Percent × balance).
type MinimumPaymentRule struct {
	Floor   decimal.Decimal `json:"floor"`
	Percent decimal.Decimal `json:"percent"` // fraction, 0.02 == 2%
}

// PayoffOutcome classifies how a payoff simulation ended.
type PayoffOutcome string

const (
	PayoffPaid       PayoffOutcome = "paid"
	PayoffNever      PayoffOutcome = "never"
	PayoffExceedsCap PayoffOutcome = "exceeds_cap"
)

// PayoffHorizon is the result of a minimum-payment-only amortization.
type PayoffHorizon struct {
	Outcome       PayoffOutcome   `json:"outcome"`
	Months        int             `json:"months"` // periods simulated
	Cap           int             `json:"cap"`
	TotalInterest decimal.Decimal `json:"total_interest"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
}

// Finite reports whether the balance reached zero.
func (h PayoffHorizon) Finite() bool {
	return h.Outcome == PayoffPaid
}

// InterestProjection compares next-period interest when the balance is
// paid in full vs. carried.
type InterestProjection struct {
	Balance           decimal.Decimal `json:"balance"`
	MonthlyRate       decimal.Decimal `json:"monthly_rate"`
	IfPaidInFull      decimal.Decimal `json:"interest_if_paid_in_full"`
	IfCarried         decimal.Decimal `json:"interest_if_carried"`
	AvoidableInterest decimal.Decimal `json:"avoidable_interest"`
}

// DeltaSide says where a scenario's monthly delta is applied.
type DeltaSide string

const (
	// DeltaPayment adds the delta to each period's payment (save more).
	DeltaPayment DeltaSide = "payment"
	// DeltaSpend adds the delta to each period's balance growth (spend more).
	DeltaSpend DeltaSide = "spend"
)

// ScenarioInput describes one what-if simulation.
type ScenarioInput struct {
	Name          string          `json:"name"`
	MonthlyDelta  decimal.Decimal `json:"monthly_delta"`
	Side          DeltaSide       `json:"side"`
	HorizonMonths int             `json:"horizon_months"`
}

// ScenarioResult is the projected trajectory of one scenario.
type ScenarioResult struct {
	Name          string            `json:"name"`
	Side          DeltaSide         `json:"side"`
	MonthlyDelta  decimal.Decimal   `json:"monthly_delta"`
	HorizonMonths int               `json:"horizon_months"`
	Trajectory    []decimal.Decimal `json:"trajectory"` // balance at the end of each month
	TotalInterest decimal.Decimal   `json:"total_interest"`
	TotalPaid     decimal.Decimal   `json:"total_paid"`
	EndingBalance decimal.Decimal   `json:"ending_balance"`
	PaidOffMonth  int               `json:"paid_off_month,omitempty"` // 0 when not paid off
}

// ScenarioComparison puts a scenario next to the no-change baseline.
type ScenarioComparison struct {
	Baseline      ScenarioResult  `json:"baseline"`
	Adjusted      ScenarioResult  `json:"adjusted"`
	InterestDelta decimal.Decimal `json:"interest_delta"` // adjusted - baseline
	BalanceDelta  decimal.Decimal `json:"balance_delta"`
	Summary       string          `json:"summary"`
}

// StatementMetrics collects every metric computed for a statement.
// A metric whose inputs are missing is listed in Unavailable instead.
type StatementMetrics struct {
	Utilization        *decimal.Decimal    `json:"utilization,omitempty"`
	InterestProjection *InterestProjection `json:"interest_projection,omitempty"`
	Payoff             *PayoffHorizon      `json:"payoff,omitempty"`
	Unavailable        map[string]string   `json:"unavailable,omitempty"`
}
