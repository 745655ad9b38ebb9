package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Network events & incidents
// ============================================================

// EventKind is the BGP event vocabulary understood by the correlator.
type EventKind string

const (
	EventPeerUp        EventKind = "peer_up"
	EventPeerDown      EventKind = "peer_down"
	EventRouteWithdraw EventKind = "route_withdraw"
	EventRouteAnnounce EventKind = "route_announce"
	EventNotification  EventKind = "notification"
)

// NetworkEvent is one parsed device log line.
type NetworkEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Device    string    `json:"device"`
	Kind      EventKind `json:"kind"`
	Peer      string    `json:"peer,omitempty"`    // neighbor address, or "AS<n>" when only the AS is known
	PeerAS    uint32    `json:"peer_as,omitempty"` // 0 when absent
	Prefix    string    `json:"prefix,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Raw       string    `json:"raw"`
}

// Incident is a contiguous interval during which a peer was down.
type Incident struct {
	ID               string         `json:"id"`
	Device           string         `json:"device"`
	Peer             string         `json:"peer"`
	PeerAS           uint32         `json:"peer_as,omitempty"`
	Start            time.Time      `json:"start"`
	End              *time.Time     `json:"end,omitempty"`
	Ongoing          bool           `json:"ongoing"`
	Duration         time.Duration  `json:"duration"`
	Reason           string         `json:"reason,omitempty"`
	AffectedPrefixes []string       `json:"affected_prefixes"`
	Events           []NetworkEvent `json:"events"`
}

// CorrelationReport is the output of one correlation run.
type CorrelationReport struct {
	Incidents     []Incident `json:"incidents"`
	ParsedLines   int        `json:"parsed_lines"`
	IgnoredLines  int        `json:"ignored_lines"`
	OutOfOrder    int        `json:"out_of_order"`
	PeerDowns     int        `json:"peer_downs"`
	Notifications int        `json:"notifications"`
	WindowStart   time.Time  `json:"window_start"`
	WindowEnd     time.Time  `json:"window_end"`
	// Recoveries are peer-up events for peers not yet seen down in this
	// window. The matching peer-down came in an earlier log.
	Recoveries []NetworkEvent `json:"recoveries,omitempty"`
}

// ImpactLevel grades how much customers were affected.
type ImpactLevel string

const (
	ImpactHigh    ImpactLevel = "HIGH"
	ImpactMedium  ImpactLevel = "MEDIUM"
	ImpactLow     ImpactLevel = "LOW"
	ImpactMinimal ImpactLevel = "MINIMAL"
)

// ImpactSummary condenses a correlation report into dispute evidence.
type ImpactSummary struct {
	OutageDetected   bool            `json:"outage_detected"`
	IncidentCount    int             `json:"incident_count"`
	OngoingCount     int             `json:"ongoing_count"`
	AffectedPeers    int             `json:"affected_peers"`
	AffectedPrefixes int             `json:"affected_prefixes"`
	Downtime         time.Duration   `json:"downtime"`
	DowntimeMinutes  decimal.Decimal `json:"downtime_minutes"`
	RootCause        string          `json:"root_cause"`
	Level            ImpactLevel     `json:"impact_level"`
	SLA              *SLAAssessment  `json:"sla,omitempty"`
}

// SLAAssessment is the service credit owed for the downtime.
type SLAAssessment struct {
	MonthlyFee   decimal.Decimal `json:"monthly_fee"`
	MonthMinutes int64           `json:"month_minutes"`
	Availability decimal.Decimal `json:"availability_pct"`
	Target       decimal.Decimal `json:"target_pct"`
	Breached     bool            `json:"breached"`
	Credit       decimal.Decimal `json:"credit"`
}

// IncidentFilter narrows stored incident queries.
type IncidentFilter struct {
	Device string
	Since  time.Time
	Limit  int
}
