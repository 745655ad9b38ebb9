package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

var (
	errNoValue   = errors.New("no value")
	errBadNumber = errors.New("not a number")

	// amountToken matches a leading currency amount followed by whitespace or
	// end of text: $1,234.56, 1234.56 USD, -12.00, (12.00), 12.00 CR.
	amountToken = regexp.MustCompile(`(?i)^\(?\s*[-+]?\s*(?:usd\s*)?\$?\s*[-+]?[\d,]*\.?\d+\s*\)?(?:\s*(?:usd|cr))*(?:\s|$)`)

	plainNumber = regexp.MustCompile(`^(?:\d+(?:\.\d*)?|\.\d+)$`)

	rateToken = regexp.MustCompile(`^(\d+(?:\.\d+)?|\.\d+)\s*(%)?(?:\s|$)`)

	dateExpr   = `\d{1,2}/\d{1,2}/(?:\d{4}|\d{2})|\d{4}-\d{1,2}-\d{1,2}|[A-Za-z]{3,9}\.?\s+\d{1,2},?\s+\d{4}`
	dateToken  = regexp.MustCompile(`^(` + dateExpr + `)(?:\s|$)`)
	periodExpr = regexp.MustCompile(`(?i)^(` + dateExpr + `)\s*(?:-|–|—|to|through)\s*(` + dateExpr + `)(?:\s|$)`)

	dateLayouts = []string{
		"1/2/2006",
		"1/2/06",
		"2006-1-2",
		"Jan 2, 2006",
		"Jan 2 2006",
		"January 2, 2006",
		"January 2 2006",
	}
)

// ParseAmount parses one currency amount. Currency markers ($, USD) and
// thousands separators are stripped; a leading minus, surrounding parentheses
// or a trailing CR make the amount negative.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, errNoValue
	}

	neg := false
	if strings.HasSuffix(strings.ToUpper(s), "CR") {
		neg = true
		s = strings.TrimSpace(s[:len(s)-2])
	}
	s = trimFold(s, "USD")
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = !neg
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	s = trimFold(s, "USD")

	switch {
	case strings.HasPrefix(s, "-"):
		neg = !neg
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !plainNumber.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", errBadNumber, raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", errBadNumber, raw)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// leadingAmount parses the amount at the start of a label's value text,
// ignoring trailing commentary such as "(see page 2)".
func leadingAmount(value string) (decimal.Decimal, error) {
	tok := amountToken.FindString(value)
	if tok == "" {
		return decimal.Zero, errBadNumber
	}
	return ParseAmount(tok)
}

// ParseRate parses an annual rate into a fraction. "18.99%" and a bare
// "18.99" both give 0.1899; a bare value of 1 or less is taken as a fraction
// already.
func ParseRate(value string) (decimal.Decimal, error) {
	m := rateToken.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return decimal.Zero, errBadNumber
	}
	d, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Zero, errBadNumber
	}
	if m[2] == "%" || d.GreaterThan(decimal.NewFromInt(1)) {
		d = d.Div(decimal.NewFromInt(100))
	}
	return d, nil
}

// ParseDate accepts 01/02/2006, 1/2/06, 2006-01-02, Jan 2, 2006 and
// January 2, 2006. Trailing text after the date is ignored.
func ParseDate(value string) (time.Time, error) {
	m := dateToken.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return time.Time{}, fmt.Errorf("unrecognised date %q", value)
	}
	return parseDateLiteral(m[1])
}

// ParsePeriod parses "<date> - <date>" (also "–", "to", "through").
func ParsePeriod(value string) (domain.StatementPeriod, error) {
	m := periodExpr.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return domain.StatementPeriod{}, fmt.Errorf("unrecognised period %q", value)
	}
	start, err := parseDateLiteral(m[1])
	if err != nil {
		return domain.StatementPeriod{}, err
	}
	end, err := parseDateLiteral(m[2])
	if err != nil {
		return domain.StatementPeriod{}, err
	}
	if end.Before(start) {
		return domain.StatementPeriod{}, fmt.Errorf("period ends before it starts: %q", value)
	}
	return domain.StatementPeriod{Start: start, End: end}, nil
}

func parseDateLiteral(s string) (time.Time, error) {
	s = strings.Join(strings.Fields(strings.Replace(s, ".", "", 1)), " ")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// trimFold removes a case-insensitive prefix or suffix marker.
func trimFold(s, marker string) string {
	n := len(marker)
	if len(s) >= n && strings.EqualFold(s[:n], marker) {
		s = s[n:]
	}
	if len(s) >= n && strings.EqualFold(s[len(s)-n:], marker) {
		s = s[:len(s)-n]
	}
	return strings.TrimSpace(s)
}
