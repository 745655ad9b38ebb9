package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

var requiredColumns = []string{"date", "description", "amount"}

// ParseTransactionsCSV imports a card or bank export. Columns are matched by
// header name, case-insensitively, in any order; extra columns are ignored.
//
// A missing required header fails the whole import. A row with an
// unparsable amount or too few fields is skipped and counted. A row with an
// unparsable date is kept with a zero Date and its RawDate preserved.
func ParseTransactionsCSV(r io.Reader) (*domain.TransactionImport, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &domain.ErrMissingHeaders{Missing: requiredColumns}
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(NormalizeLine(h))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.ErrMissingHeaders{Missing: missing}
	}
	dateCol, descCol, amtCol := idx["date"], idx["description"], idx["amount"]
	width := max(dateCol, descCol, amtCol) + 1

	out := &domain.TransactionImport{Transactions: []domain.Transaction{}}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipRow(out, perr.Line, "malformed row")
				continue
			}
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if isBlank(row) {
			continue
		}
		if len(row) < width {
			skipRow(out, line, "too few fields")
			continue
		}

		amount, err := ParseAmount(row[amtCol])
		if err != nil {
			skipRow(out, line, fmt.Sprintf("unparsable amount %q", row[amtCol]))
			continue
		}

		raw := strings.TrimSpace(row[dateCol])
		t := domain.Transaction{
			RawDate:     raw,
			Description: NormalizeLine(row[descCol]),
			Amount:      amount,
		}
		if d, err := parseDateLiteral(raw); err == nil {
			t.Date = d
		}
		out.Transactions = append(out.Transactions, t)
	}
	return out, nil
}

func skipRow(out *domain.TransactionImport, line int, reason string) {
	out.SkippedRows++
	out.Skipped = append(out.Skipped, domain.SkippedRow{Line: line, Reason: reason})
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
