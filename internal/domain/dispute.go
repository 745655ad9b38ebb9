package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Disputes
// ============================================================

// DisputeType is the classification of a customer dispute.
type DisputeType string

const (
	DisputeFraud   DisputeType = "fraud"
	DisputeBilling DisputeType = "billing"
	DisputeService DisputeType = "service"
)

// Policy is a company policy document used as retrieval context.
type Policy struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// DisputeRequest is the body of POST /v1/disputes/resolve.
type DisputeRequest struct {
	CustomerName         string           `json:"customer_name"`
	TransactionHistory   string           `json:"transaction_history"`
	CustomerInteractions string           `json:"customer_interactions"`
	BGPLog               string           `json:"bgp_log,omitempty"`
	MonthlyFee           *decimal.Decimal `json:"monthly_fee,omitempty"`
}

// DisputeResolution is the full workflow output for one dispute.
type DisputeResolution struct {
	ID              string           `json:"id"`
	Classification  DisputeType      `json:"classification"`
	ClassifiedBy    string           `json:"classified_by"` // gateway | fallback
	Policies        []Policy         `json:"policies"`
	NextAction      GeneratedText    `json:"next_action"`
	DraftResponse   GeneratedText    `json:"draft_response"`
	NetworkEvidence *NetworkEvidence `json:"network_evidence,omitempty"`
	ResolvedAt      time.Time        `json:"resolved_at"`
}

// NetworkEvidence is the BGP-derived evidence attached to service disputes.
type NetworkEvidence struct {
	Report *CorrelationReport `json:"report"`
	Impact *ImpactSummary     `json:"impact"`
}
