package finance

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

var (
	utilizationTarget = decimal.RequireFromString("0.30")
	categoryShare     = decimal.RequireFromString("0.30")
)

// Nudges returns short, actionable suggestions for a statement. Each nudge
// is emitted only when its inputs are present.
func Nudges(rec *domain.StatementRecord, buckets []domain.CategoryBucket, rule domain.MinimumPaymentRule) []string {
	var out []string

	if p, err := InterestAvoidance(rec.CurrentBalance, rec.APR); err == nil && p.Balance.IsPositive() {
		out = append(out, fmt.Sprintf("Pay %s to avoid ~%s in interest next month",
			FormatUSD(p.Balance), FormatUSD(p.IfCarried)))
	}

	if rec.CurrentBalance.Valid && rec.MinimumPayment.Valid && rec.APR.Valid &&
		rec.CurrentBalance.Decimal.GreaterThan(rec.MinimumPayment.Decimal.Mul(decimal.NewFromInt(2))) {
		h := PayoffHorizon(rec.CurrentBalance.Decimal, rec.APR.Decimal, rule)
		extra := Round2(rec.CurrentBalance.Decimal.Sub(rec.MinimumPayment.Decimal).Div(decimal.NewFromInt(2)))
		switch h.Outcome {
		case domain.PayoffPaid:
			out = append(out, fmt.Sprintf("Paying only the minimum? It'll take %d months to pay off. Consider paying %s more.",
				h.Months, FormatUSD(extra)))
		default:
			out = append(out, fmt.Sprintf("Paying only the minimum will not clear this balance within %d months. Consider paying %s more.",
				h.Cap, FormatUSD(extra)))
		}
	}

	if u, err := Utilization(rec.CurrentBalance, rec.CreditLimit); err == nil && u.GreaterThan(utilizationTarget) {
		reduction := Round2(rec.CurrentBalance.Decimal.Sub(rec.CreditLimit.Decimal.Mul(utilizationTarget)))
		out = append(out, fmt.Sprintf("Your credit utilization is %s%%. Pay down %s to get under 30%% for better credit scores.",
			u.Mul(hundred).Round(0).String(), FormatUSD(reduction)))
	}

	if top, ok := topSpend(buckets); ok && rec.NewCharges.Valid &&
		top.Spent.GreaterThan(rec.NewCharges.Decimal.Mul(categoryShare)) {
		out = append(out, fmt.Sprintf("%s was your biggest expense at %s. Consider setting a budget for this category.",
			top.Category, FormatUSD(top.Spent)))
	}

	return out
}

// topSpend picks the bucket with the largest debit spend; ties keep the
// earlier bucket.
func topSpend(buckets []domain.CategoryBucket) (domain.CategoryBucket, bool) {
	var (
		top   domain.CategoryBucket
		found bool
	)
	for _, b := range buckets {
		if b.Spent.IsPositive() && (!found || b.Spent.GreaterThan(top.Spent)) {
			top, found = b, true
		}
	}
	return top, found
}

// FallbackExplanation is the plain-text explanation used when the gateway
// cannot produce one.
func FallbackExplanation(rec *domain.StatementRecord) string {
	var b strings.Builder
	b.WriteString("This month's statement breakdown:\n\n")
	if rec.NewCharges.Valid {
		fmt.Fprintf(&b, "- You spent %s in new charges\n", FormatUSD(rec.NewCharges.Decimal))
	}
	if rec.Payments.Valid {
		fmt.Fprintf(&b, "- You made %s in payments\n", FormatUSD(rec.Payments.Decimal))
	}
	if rec.CurrentBalance.Valid {
		fmt.Fprintf(&b, "- Your current balance is %s\n", FormatUSD(rec.CurrentBalance.Decimal))
	}
	if rec.InterestCharged.Valid && rec.InterestCharged.Decimal.IsPositive() {
		fmt.Fprintf(&b, "\nYou were charged %s in interest this month.\n", FormatUSD(rec.InterestCharged.Decimal))
	}
	if rec.CurrentBalance.Valid && rec.MinimumPayment.Valid &&
		rec.CurrentBalance.Decimal.GreaterThan(rec.MinimumPayment.Decimal) {
		b.WriteString("\nPay more than the minimum to save on interest charges.\n")
	}
	return b.String()
}

// FormatUSD renders an amount as $1,234.56 (or -$1,234.56).
func FormatUSD(d decimal.Decimal) string {
	d = Round2(d)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	s := d.StringFixed(2)
	whole, frac := s[:len(s)-3], s[len(s)-2:]

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}
	return sign + "$" + grouped.String() + "." + frac
}
