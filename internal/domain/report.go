package domain

import "github.com/shopspring/decimal"

// ============================================================
// Statement analysis
// ============================================================

// StatementAnalysisRequest is the body of POST /v1/statements/analyze.
type StatementAnalysisRequest struct {
	Text            string          `json:"text"`
	TransactionsCSV string          `json:"transactions_csv,omitempty"`
	Scenarios       []ScenarioInput `json:"scenarios,omitempty"` // defaults when empty
}

// StatementReport is everything computed for one statement.
type StatementReport struct {
	Record         *StatementRecord     `json:"record"`
	ParseErrors    []ParseError         `json:"parse_errors,omitempty"`
	Reconciliation *Reconciliation      `json:"reconciliation,omitempty"`
	Metrics        *StatementMetrics    `json:"metrics"`
	Transactions   *TransactionImport   `json:"transactions,omitempty"`
	Categories     []CategoryBucket     `json:"categories,omitempty"`
	Scenarios      []ScenarioComparison `json:"scenarios,omitempty"`
	Nudges         []string             `json:"nudges"`
	Explanation    GeneratedText        `json:"explanation"`
}

// BatchItem is one entry of a batch analysis. Exactly one of Report and
// Error is set.
type BatchItem struct {
	Index  int              `json:"index"`
	Report *StatementReport `json:"report,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// NetworkAnalysis is a correlation report with its impact summary.
type NetworkAnalysis struct {
	Report *CorrelationReport `json:"report"`
	Impact *ImpactSummary     `json:"impact"`
	Stored int                `json:"stored"`
	// Closed counts stored ongoing incidents ended by this log's recoveries.
	Closed int `json:"closed"`
}

// TransactionReport is an imported CSV with its category totals.
type TransactionReport struct {
	TransactionImport
	Categories []CategoryBucket `json:"categories"`
}

// PayoffRequest is the body of POST /v1/finance/payoff. APR may be a
// fraction (0.1899) or a percentage (18.99).
type PayoffRequest struct {
	Balance decimal.Decimal     `json:"balance"`
	APR     decimal.Decimal     `json:"apr"`
	Rule    *MinimumPaymentRule `json:"minimum_payment_rule,omitempty"`
}

// ScenarioRequest is the body of POST /v1/finance/scenario.
type ScenarioRequest struct {
	Balance  decimal.Decimal     `json:"balance"`
	APR      decimal.Decimal     `json:"apr"`
	Scenario ScenarioInput       `json:"scenario"`
	Rule     *MinimumPaymentRule `json:"minimum_payment_rule,omitempty"`
}
