package parser

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

// LabelRule binds the aliases a statement may print for one field.
type LabelRule struct {
	Field   domain.StatementField `json:"field"`
	Aliases []string              `json:"aliases"`
}

// LabelVocabulary is the label table the Extractor matches lines against.
type LabelVocabulary struct {
	Rules []LabelRule `json:"rules"`
}

// DefaultVocabulary returns the documented label table.
func DefaultVocabulary() LabelVocabulary {
	return LabelVocabulary{Rules: []LabelRule{
		{Field: domain.FieldPreviousBalance, Aliases: []string{"Previous Balance", "Last Balance", "Prior Balance"}},
		{Field: domain.FieldNewCharges, Aliases: []string{"New Charges", "Purchases"}},
		{Field: domain.FieldPayments, Aliases: []string{"Payments", "Payments and Credits", "Payment Received"}},
		{Field: domain.FieldCurrentBalance, Aliases: []string{"Current Balance", "New Balance", "Statement Balance"}},
		{Field: domain.FieldInterestCharged, Aliases: []string{"Interest Charged", "Interest Charge", "Finance Charge"}},
		{Field: domain.FieldMinimumPayment, Aliases: []string{"Minimum Payment Due", "Minimum Payment"}},
		{Field: domain.FieldAPR, Aliases: []string{"APR", "Annual Percentage Rate", "Purchase APR"}},
		{Field: domain.FieldCreditLimit, Aliases: []string{"Credit Limit"}},
		{Field: domain.FieldAvailableCredit, Aliases: []string{"Available Credit"}},
		{Field: domain.FieldPaymentDueDate, Aliases: []string{"Payment Due Date", "Due Date"}},
		{Field: domain.FieldStatementPeriod, Aliases: []string{"Statement Period", "Billing Period"}},
	}}
}

type alias struct {
	text  string // lower-cased
	field domain.StatementField
}

// Extractor pulls labelled values out of statement text.
//
// Policies:
//   - the longest alias that prefixes a line wins, and it must be followed by
//     ':', whitespace or end of line;
//   - the last successful occurrence of a field wins; a later occurrence that
//     fails to parse is reported and keeps the earlier value;
//   - lines without a known label are skipped.
type Extractor struct {
	aliases []alias
}

// NewExtractor compiles a vocabulary. Empty aliases are ignored.
func NewExtractor(v LabelVocabulary) *Extractor {
	x := &Extractor{}
	for _, r := range v.Rules {
		for _, a := range r.Aliases {
			a = strings.ToLower(NormalizeLine(a))
			if a == "" {
				continue
			}
			x.aliases = append(x.aliases, alias{text: a, field: r.Field})
		}
	}
	sort.SliceStable(x.aliases, func(i, j int) bool {
		return len(x.aliases[i].text) > len(x.aliases[j].text)
	})
	return x
}

// ParseStatement normalizes and extracts a statement blob.
func (x *Extractor) ParseStatement(text string) (*domain.StatementRecord, []domain.ParseError) {
	return x.Extract(Normalize(text))
}

// Extract runs the extractor over normalized lines. The record is always
// returned, holding whatever fields parsed.
func (x *Extractor) Extract(lines []string) (*domain.StatementRecord, []domain.ParseError) {
	rec := &domain.StatementRecord{}
	var errs []domain.ParseError

	for _, line := range lines {
		field, label, value, ok := x.match(line)
		if !ok {
			continue
		}
		if err := assign(rec, field, value); err != nil {
			errs = append(errs, domain.ParseError{Label: label, Raw: value})
		}
	}
	return rec, errs
}

func (x *Extractor) match(line string) (domain.StatementField, string, string, bool) {
	for _, a := range x.aliases {
		n, ok := foldPrefix(line, a.text)
		if !ok {
			continue
		}
		rest := line[n:]
		if rest != "" && rest[0] != ':' && rest[0] != ' ' {
			continue
		}
		value := strings.TrimSpace(rest)
		value = strings.TrimSpace(strings.TrimPrefix(value, ":"))
		return a.field, line[:n], value, true
	}
	return "", "", "", false
}

// foldPrefix reports whether s starts with prefix under Unicode case folding
// and returns the byte length of the matching part of s. The two lengths can
// differ (the Kelvin sign folds to a one-byte 'k').
func foldPrefix(s, prefix string) (int, bool) {
	i := 0
	for _, want := range prefix {
		if i >= len(s) {
			return 0, false
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r != want && !strings.EqualFold(string(r), string(want)) {
			return 0, false
		}
		i += size
	}
	return i, true
}
