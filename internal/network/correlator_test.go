package network_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/network"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("bad time %q: %v", s, err)
	}
	return ts
}

func ev(t *testing.T, ts, device string, kind domain.EventKind, peer, prefix string) domain.NetworkEvent {
	return domain.NetworkEvent{Timestamp: mustTime(t, ts), Device: device, Kind: kind, Peer: peer, Prefix: prefix}
}

func TestCorrelateLog_FortyFiveMinuteIncident(t *testing.T) {
	log := strings.Join([]string{
		"2025-09-02T15:45:00Z CORE-RTR-01 BGP: neighbor 203.0.113.5 Down - Hold timer expired",
		"2025-09-02T16:00:00Z CORE-RTR-01 kernel: something unrelated happened",
		"2025-09-02T16:30:00Z CORE-RTR-01 BGP: neighbor 203.0.113.5 Up",
	}, "\n")

	report := network.NewCorrelator().CorrelateLog(log, network.Options{})

	if report.IgnoredLines != 1 || report.ParsedLines != 2 {
		t.Errorf("expected 2 parsed and 1 ignored, got %d/%d", report.ParsedLines, report.IgnoredLines)
	}
	if len(report.Incidents) != 1 {
		t.Fatalf("expected exactly 1 incident, got %d", len(report.Incidents))
	}
	inc := report.Incidents[0]
	if inc.Ongoing || inc.End == nil {
		t.Fatalf("expected a closed incident, got %+v", inc)
	}
	if inc.Duration != 45*time.Minute {
		t.Errorf("expected 45m, got %s", inc.Duration)
	}
	if inc.ID == "" || inc.Peer != "203.0.113.5" || inc.Reason != "Hold timer expired" {
		t.Errorf("unexpected incident %+v", inc)
	}
}

func TestCorrelateLog_Fixture(t *testing.T) {
	b, err := os.ReadFile("testdata/bgp_outage.log")
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}

	report := network.NewCorrelator().CorrelateLog(string(b), network.Options{})

	if len(report.Incidents) != 1 {
		t.Fatalf("expected 1 incident, got %d", len(report.Incidents))
	}
	inc := report.Incidents[0]
	want := []string{"10.20.0.0/16", "198.51.100.0/24"}
	if strings.Join(inc.AffectedPrefixes, ",") != strings.Join(want, ",") {
		t.Errorf("expected prefixes %v, got %v", want, inc.AffectedPrefixes)
	}
	// down, three withdrawals, up; the announce after recovery is not part of it.
	if len(inc.Events) != 5 {
		t.Errorf("expected 5 attributed events, got %d", len(inc.Events))
	}
	if report.PeerDowns != 1 || report.OutOfOrder != 0 {
		t.Errorf("unexpected counters %+v", report)
	}
}

func TestCorrelate_OngoingIncident(t *testing.T) {
	events := []domain.NetworkEvent{
		ev(t, "2025-09-02T10:00:00Z", "R1", domain.EventPeerDown, "10.0.0.2", ""),
		ev(t, "2025-09-02T10:05:00Z", "R1", domain.EventRouteWithdraw, "", "10.1.0.0/16"),
	}

	report := network.NewCorrelator().Correlate(events, network.Options{})

	inc := report.Incidents[0]
	if !inc.Ongoing || inc.End != nil {
		t.Fatalf("expected an ongoing incident, got %+v", inc)
	}
	if inc.Duration != 5*time.Minute {
		t.Errorf("expected duration up to the last event (5m), got %s", inc.Duration)
	}

	report = network.NewCorrelator().Correlate(events, network.Options{WindowEnd: mustTime(t, "2025-09-02T11:00:00Z")})
	if got := report.Incidents[0].Duration; got != time.Hour {
		t.Errorf("expected duration up to the window end (1h), got %s", got)
	}
}

func TestCorrelate_DuplicateTransitionsAbsorbed(t *testing.T) {
	events := []domain.NetworkEvent{
		ev(t, "2025-09-02T09:00:00Z", "R1", domain.EventPeerUp, "10.0.0.2", ""),
		ev(t, "2025-09-02T10:00:00Z", "R1", domain.EventPeerDown, "10.0.0.2", ""),
		ev(t, "2025-09-02T10:01:00Z", "R1", domain.EventPeerDown, "10.0.0.2", ""),
		ev(t, "2025-09-02T10:10:00Z", "R1", domain.EventPeerUp, "10.0.0.2", ""),
		ev(t, "2025-09-02T10:11:00Z", "R1", domain.EventPeerUp, "10.0.0.2", ""),
		ev(t, "2025-09-02T11:00:00Z", "R1", domain.EventPeerDown, "10.0.0.2", ""),
		ev(t, "2025-09-02T11:30:00Z", "R1", domain.EventPeerUp, "10.0.0.2", ""),
	}

	report := network.NewCorrelator().Correlate(events, network.Options{})

	if len(report.Incidents) != 2 {
		t.Fatalf("expected 2 incidents, got %d", len(report.Incidents))
	}
	if report.Incidents[0].Duration != 10*time.Minute || report.Incidents[1].Duration != 30*time.Minute {
		t.Errorf("unexpected durations %s, %s", report.Incidents[0].Duration, report.Incidents[1].Duration)
	}
	if report.PeerDowns != 3 {
		t.Errorf("expected 3 peer downs counted, got %d", report.PeerDowns)
	}
	// Only the leading up has no down before it in this window.
	if len(report.Recoveries) != 1 || !report.Recoveries[0].Timestamp.Equal(mustTime(t, "2025-09-02T09:00:00Z")) {
		t.Errorf("expected the 09:00 peer-up as the only recovery, got %+v", report.Recoveries)
	}
}

func TestCorrelate_PeerlessRouteEventsHitEveryOpenIncidentOnDevice(t *testing.T) {
	events := []domain.NetworkEvent{
		ev(t, "2025-09-02T10:00:00Z", "R1", domain.EventPeerDown, "10.0.0.2", ""),
		ev(t, "2025-09-02T10:00:00Z", "R1", domain.EventPeerDown, "10.0.0.3", ""),
		ev(t, "2025-09-02T10:00:00Z", "R2", domain.EventPeerDown, "10.0.0.2", ""),
		ev(t, "2025-09-02T10:01:00Z", "R1", domain.EventRouteWithdraw, "", "10.9.0.0/16"),
		ev(t, "2025-09-02T10:02:00Z", "R1", domain.EventRouteWithdraw, "10.0.0.3", "10.8.0.0/16"),
	}

	report := network.NewCorrelator().Correlate(events, network.Options{})

	if len(report.Incidents) != 3 {
		t.Fatalf("expected 3 incidents, got %d", len(report.Incidents))
	}
	got := map[string][]string{}
	for _, inc := range report.Incidents {
		got[inc.Device+"/"+inc.Peer] = inc.AffectedPrefixes
	}
	if len(got["R1/10.0.0.2"]) != 1 || len(got["R1/10.0.0.3"]) != 2 || len(got["R2/10.0.0.2"]) != 0 {
		t.Errorf("unexpected attribution %v", got)
	}
}

func TestCorrelate_OutOfOrderEvents(t *testing.T) {
	events := []domain.NetworkEvent{
		ev(t, "2025-09-02T16:30:00Z", "R1", domain.EventPeerUp, "10.0.0.2", ""),
		ev(t, "2025-09-02T15:45:00Z", "R1", domain.EventPeerDown, "10.0.0.2", ""),
	}

	report := network.NewCorrelator().Correlate(events, network.Options{})

	if report.OutOfOrder != 1 {
		t.Errorf("expected 1 out-of-order event, got %d", report.OutOfOrder)
	}
	if len(report.Incidents) != 1 || report.Incidents[0].Duration != 45*time.Minute {
		t.Errorf("sorting should still pair the events: %+v", report.Incidents)
	}
}

func TestCorrelate_Empty(t *testing.T) {
	report := network.NewCorrelator().Correlate(nil, network.Options{})
	if report.Incidents == nil || len(report.Incidents) != 0 {
		t.Errorf("expected an empty, non-nil incident list")
	}
}
