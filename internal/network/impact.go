package network

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

// DefaultSLATarget is the monthly availability promised to customers, in
// percent.
var DefaultSLATarget = decimal.RequireFromString("99.9")

var (
	minutesPerDay = decimal.NewFromInt(24 * 60)
	sixty         = decimal.NewFromInt(60)
	hundred       = decimal.NewFromInt(100)
)

// rootCauses maps down/notification reason fragments to a root cause, in
// priority order.
var rootCauses = []struct {
	fragment string
	cause    string
}{
	{"network unreachable", "Upstream provider network failure"},
	{"tcp connection lost", "Network connectivity issues"},
	{"hold timer expired", "BGP session timeout - possible high latency"},
}

const undeterminedCause = "Undetermined - requires further investigation"

// Impact condenses a correlation report into dispute evidence. When
// monthlyFee is set, an SLA assessment for the month the first incident
// started in is attached.
func Impact(report *domain.CorrelationReport, monthlyFee *decimal.Decimal) *domain.ImpactSummary {
	s := &domain.ImpactSummary{
		IncidentCount:   len(report.Incidents),
		DowntimeMinutes: decimal.Zero,
	}
	s.OutageDetected = s.IncidentCount > 0

	peers := make(map[peerKey]struct{})
	prefixes := make(map[string]struct{})
	var reasons []string
	for _, inc := range report.Incidents {
		if inc.Ongoing {
			s.OngoingCount++
		}
		peers[peerKey{device: inc.Device, peer: inc.Peer}] = struct{}{}
		for _, p := range inc.AffectedPrefixes {
			prefixes[p] = struct{}{}
		}
		for _, ev := range inc.Events {
			if ev.Reason != "" {
				reasons = append(reasons, ev.Reason)
			}
		}
	}
	s.AffectedPeers = len(peers)
	s.AffectedPrefixes = len(prefixes)
	s.Downtime = Downtime(report.Incidents)
	s.DowntimeMinutes = minutes(s.Downtime)
	s.RootCause = RootCause(reasons)
	s.Level = Level(report.PeerDowns, report.Notifications)

	if monthlyFee != nil && s.OutageDetected {
		s.SLA = AssessSLA(s.Downtime, report.Incidents[0].Start, *monthlyFee, DefaultSLATarget)
	}
	return s
}

// Downtime is the length of the union of incident intervals, so
// overlapping outages are not double counted.
func Downtime(incidents []domain.Incident) time.Duration {
	type span struct{ start, end time.Time }
	spans := make([]span, 0, len(incidents))
	for _, inc := range incidents {
		spans = append(spans, span{inc.Start, inc.Start.Add(inc.Duration)})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })

	var (
		total time.Duration
		cur   span
		have  bool
	)
	for _, sp := range spans {
		switch {
		case !have:
			cur, have = sp, true
		case sp.start.After(cur.end):
			total += cur.end.Sub(cur.start)
			cur = sp
		case sp.end.After(cur.end):
			cur.end = sp.end
		}
	}
	if have {
		total += cur.end.Sub(cur.start)
	}
	return total
}

// RootCause picks the highest-priority cause mentioned in any reason.
func RootCause(reasons []string) string {
	for _, rc := range rootCauses {
		for _, r := range reasons {
			if strings.Contains(strings.ToLower(r), rc.fragment) {
				return rc.cause
			}
		}
	}
	return undeterminedCause
}

// Level grades impact: HIGH above 5 peer downs, MEDIUM above 2, LOW with
// more than 3 notifications, MINIMAL otherwise.
func Level(peerDowns, notifications int) domain.ImpactLevel {
	switch {
	case peerDowns > 5:
		return domain.ImpactHigh
	case peerDowns > 2:
		return domain.ImpactMedium
	case notifications > 3:
		return domain.ImpactLow
	default:
		return domain.ImpactMinimal
	}
}

// AssessSLA computes availability for the calendar month containing
// monthOf. The credit is downtime minutes / minutes in the month × fee,
// owed only when availability falls below target.
func AssessSLA(downtime time.Duration, monthOf time.Time, monthlyFee, target decimal.Decimal) *domain.SLAAssessment {
	monthMinutes := decimal.NewFromInt(int64(daysIn(monthOf))).Mul(minutesPerDay)
	down := minutes(downtime)

	availability := monthMinutes.Sub(down).Div(monthMinutes).Mul(hundred)
	a := &domain.SLAAssessment{
		MonthlyFee:   monthlyFee,
		MonthMinutes: monthMinutes.IntPart(),
		Availability: availability.Round(4),
		Target:       target,
		Breached:     availability.LessThan(target),
		Credit:       decimal.Zero,
	}
	if a.Breached {
		a.Credit = down.Div(monthMinutes).Mul(monthlyFee).Round(2)
	}
	return a
}

func minutes(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d / time.Second)).Div(sixty).Round(2)
}

func daysIn(t time.Time) int {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
