package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Statement
// ============================================================

// StatementField names a labelled value on a billing statement.
type StatementField string

const (
	FieldPreviousBalance StatementField = "previous_balance"
	FieldNewCharges      StatementField = "new_charges"
	FieldPayments        StatementField = "payments"
	FieldCurrentBalance  StatementField = "current_balance"
	FieldInterestCharged StatementField = "interest_charged"
	FieldMinimumPayment  StatementField = "minimum_payment"
	FieldAPR             StatementField = "apr"
	FieldCreditLimit     StatementField = "credit_limit"
	FieldAvailableCredit StatementField = "available_credit"
	FieldPaymentDueDate  StatementField = "payment_due_date"
	FieldStatementPeriod StatementField = "statement_period"
)

// StatementPeriod is the billing window a statement covers.
type StatementPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// StatementRecord is one billing-period summary extracted from text.
// Absent fields are invalid NullDecimals / nil pointers, never zero.
type StatementRecord struct {
	PreviousBalance decimal.NullDecimal `json:"previous_balance"`
	NewCharges      decimal.NullDecimal `json:"new_charges"`
	Payments        decimal.NullDecimal `json:"payments"`
	CurrentBalance  decimal.NullDecimal `json:"current_balance"`
	InterestCharged decimal.NullDecimal `json:"interest_charged"`
	MinimumPayment  decimal.NullDecimal `json:"minimum_payment"`
	APR             decimal.NullDecimal `json:"apr"` // fraction, 0.1899 == 18.99%
	CreditLimit     decimal.NullDecimal `json:"credit_limit"`
	AvailableCredit decimal.NullDecimal `json:"available_credit"`
	PaymentDueDate  *time.Time          `json:"payment_due_date,omitempty"`
	Period          *StatementPeriod    `json:"period,omitempty"`

	// Derived lists fields filled by computation instead of extraction.
	Derived []StatementField `json:"derived,omitempty"`
}

// Amount returns the monetary field by name.
func (r *StatementRecord) Amount(f StatementField) decimal.NullDecimal {
	switch f {
	case FieldPreviousBalance:
		return r.PreviousBalance
	case FieldNewCharges:
		return r.NewCharges
	case FieldPayments:
		return r.Payments
	case FieldCurrentBalance:
		return r.CurrentBalance
	case FieldInterestCharged:
		return r.InterestCharged
	case FieldMinimumPayment:
		return r.MinimumPayment
	case FieldAPR:
		return r.APR
	case FieldCreditLimit:
		return r.CreditLimit
	case FieldAvailableCredit:
		return r.AvailableCredit
	}
	return decimal.NullDecimal{}
}

// Present returns the fields carrying a value, in declaration order.
func (r *StatementRecord) Present() []StatementField {
	var out []StatementField
	for _, f := range []StatementField{
		FieldPreviousBalance, FieldNewCharges, FieldPayments, FieldCurrentBalance,
		FieldInterestCharged, FieldMinimumPayment, FieldAPR, FieldCreditLimit, FieldAvailableCredit,
	} {
		if r.Amount(f).Valid {
			out = append(out, f)
		}
	}
	if r.PaymentDueDate != nil {
		out = append(out, FieldPaymentDueDate)
	}
	if r.Period != nil {
		out = append(out, FieldStatementPeriod)
	}
	return out
}

// Clone returns a deep copy so derivations never mutate an extracted record.
func (r *StatementRecord) Clone() *StatementRecord {
	c := *r
	if r.PaymentDueDate != nil {
		d := *r.PaymentDueDate
		c.PaymentDueDate = &d
	}
	if r.Period != nil {
		p := *r.Period
		c.Period = &p
	}
	c.Derived = append([]StatementField(nil), r.Derived...)
	return &c
}

// Known returns a valid NullDecimal for v.
func Known(v decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: v, Valid: true}
}

// Reconciliation reports whether the statement balance equation holds:
// previous + charges - payments + interest == current.
type Reconciliation struct {
	Expected decimal.Decimal `json:"expected_current_balance"`
	Actual   decimal.Decimal `json:"current_balance"`
	Diff     decimal.Decimal `json:"difference"`
	Balanced bool            `json:"balanced"`
}

// StatementParseResult bundles an extracted record with the per-field failures.
type StatementParseResult struct {
	Record         *StatementRecord `json:"record"`
	Errors         []ParseError     `json:"parse_errors,omitempty"`
	Reconciliation *Reconciliation  `json:"reconciliation,omitempty"`
}
