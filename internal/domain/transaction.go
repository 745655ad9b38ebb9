package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Transactions & categories
// ============================================================

// Category is one of the fixed spending categories.
type Category string

const (
	CategoryUtilities     Category = "Utilities"
	CategoryDining        Category = "Dining & Restaurants"
	CategoryGroceries     Category = "Groceries"
	CategoryGasAuto       Category = "Gas & Auto"
	CategoryTravel        Category = "Travel"
	CategoryEntertainment Category = "Entertainment"
	CategoryHealthcare    Category = "Healthcare"
	CategoryShopping      Category = "Shopping & Retail"
	CategoryOther         Category = "Other"
)

// Transaction is a single row of a card or bank export.
type Transaction struct {
	Date        time.Time       `json:"date"`
	RawDate     string          `json:"raw_date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"` // negative = debit
	Category    *Category       `json:"category,omitempty"`
}

// IsDebit reports whether the transaction took money out.
func (t Transaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// CategoryBucket sums a transaction set per category. Never persisted.
type CategoryBucket struct {
	Category Category        `json:"category"`
	Total    decimal.Decimal `json:"total"` // signed sum
	Spent    decimal.Decimal `json:"spent"` // sum of debit magnitudes
	Count    int             `json:"count"`
}

// TransactionImport is the outcome of a CSV import.
type TransactionImport struct {
	Transactions []Transaction `json:"transactions"`
	SkippedRows  int           `json:"skipped_rows"`
	Skipped      []SkippedRow  `json:"skipped,omitempty"`
}

// SkippedRow explains why a CSV row was dropped.
type SkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}
