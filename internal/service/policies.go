package service

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

// DefaultPolicies is the policy corpus consulted when suggesting actions.
func DefaultPolicies() []domain.Policy {
	return []domain.Policy{
		{
			ID:    "billing_001",
			Title: "Billing Dispute Resolution",
			Text:  "For billing disputes, first verify the customer's identity and transaction details. Check if the charge was authorized through our system. If customer claims unauthorized upgrade, review account activity logs. Refunds for accidental upgrades can be processed within 48 hours if no services were used.",
		},
		{
			ID:    "fraud_001",
			Title: "Fraud Investigation Protocol",
			Text:  "For suspected fraud, immediately flag the account and contact our fraud prevention team. Do not process refunds until investigation is complete. Gather all transaction details, IP addresses, and customer verification information. Escalate to security team within 2 hours.",
		},
		{
			ID:    "service_001",
			Title: "Service Issue Resolution",
			Text:  "For service-related complaints, check system status and customer's service history. If service was unavailable, offer appropriate compensation or service credits. Document the issue in our system and provide estimated resolution timeline to customer.",
		},
		{
			ID:    "refund_001",
			Title: "Refund Policy",
			Text:  "Refunds are available within 30 days of purchase for unused services. For subscription upgrades made in error, refunds can be processed immediately if downgrade is requested within 72 hours. All refunds require supervisor approval for amounts over $100.",
		},
		{
			ID:    "network_sla_001",
			Title: "Network SLA and Service Credits",
			Text:  "Enterprise customers are entitled to service credits when network uptime falls below 99.9% monthly SLA. Credits are calculated as: (downtime minutes / total monthly minutes) * monthly service fee. BGP logs and network monitoring data serve as authoritative evidence for outage duration. Credits are automatically applied to next bill unless customer requests refund.",
		},
		{
			ID:    "network_outage_001",
			Title: "Network Outage Response Protocol",
			Text:  "For network service outages: 1) Verify outage through BGP logs and monitoring systems 2) Identify root cause (BGP peer failures, routing issues, upstream problems) 3) Provide customer with incident timeline and technical details 4) Calculate SLA credits based on actual downtime 5) Escalate to network engineering if customer disputes technical findings.",
		},
		{
			ID:    "bgp_evidence_001",
			Title: "BGP Log Evidence Standards",
			Text:  "BGP device logs are considered authoritative evidence for network outages. Key indicators include: PEER_DOWN events (network failures), ROUTE_WITHDRAW events (connectivity loss), and timestamp correlation with customer reports. BGP logs must be preserved for 90 days for dispute resolution. Network engineers can provide technical analysis upon request.",
		},
	}
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {}, "for": {},
	"from": {}, "has": {}, "i": {}, "if": {}, "in": {}, "is": {}, "it": {}, "my": {}, "of": {},
	"on": {}, "or": {}, "our": {}, "that": {}, "the": {}, "this": {}, "to": {}, "was": {},
	"we": {}, "were": {}, "with": {}, "you": {}, "your": {},
}

// PolicyIndex ranks policies by keyword overlap with a query. Each shared
// term is weighted by its rarity across the corpus, so "fraud" counts for
// more than "customer".
type PolicyIndex struct {
	policies []domain.Policy
	terms    []map[string]struct{}
	weight   map[string]float64
}

// NewPolicyIndex indexes the given corpus.
func NewPolicyIndex(policies []domain.Policy) *PolicyIndex {
	idx := &PolicyIndex{
		policies: policies,
		terms:    make([]map[string]struct{}, len(policies)),
		weight:   make(map[string]float64),
	}
	df := make(map[string]int)
	for i, p := range policies {
		idx.terms[i] = terms(p.Title + " " + p.Text)
		for t := range idx.terms[i] {
			df[t]++
		}
	}
	n := float64(len(policies))
	for t, c := range df {
		idx.weight[t] = math.Log(1 + n/float64(c))
	}
	return idx
}

// Retrieve returns the k best-matching policies for query. Ties keep corpus
// order, so with no overlap the first k are returned.
func (idx *PolicyIndex) Retrieve(query string, k int) []domain.Policy {
	q := make([]string, 0)
	for t := range terms(query) {
		q = append(q, t)
	}
	sort.Strings(q) // fixed summation order keeps ties exact
	type scored struct {
		i     int
		score float64
	}
	ranked := make([]scored, len(idx.policies))
	for i, t := range idx.terms {
		var score float64
		for _, term := range q {
			if _, ok := t[term]; ok {
				score += idx.weight[term]
			}
		}
		ranked[i] = scored{i: i, score: score}
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]domain.Policy, 0, k)
	for _, r := range ranked[:k] {
		out = append(out, idx.policies[r.i])
	}
	return out
}

func terms(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		if _, stop := stopWords[w]; stop || len(w) < 2 {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}
