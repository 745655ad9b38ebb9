package store_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/store"
)

func openStore(t *testing.T) *store.EvidenceStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func incident(device, peer string, start time.Time, d time.Duration, ongoing bool) domain.Incident {
	inc := domain.Incident{
		ID:               device + "-" + peer,
		Device:           device,
		Peer:             peer,
		Start:            start,
		Ongoing:          ongoing,
		Duration:         d,
		Reason:           "Hold timer expired",
		AffectedPrefixes: []string{"198.51.100.0/24"},
		Events: []domain.NetworkEvent{
			{Timestamp: start, Device: device, Kind: domain.EventPeerDown, Peer: peer, Raw: "down"},
		},
	}
	if !ongoing {
		end := start.Add(d)
		inc.End = &end
	}
	return inc
}

func TestEvidenceStore_SaveAndList(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	start := time.Date(2025, 9, 2, 15, 45, 0, 0, time.UTC)

	n, err := s.SaveIncidents(ctx, "upload", []domain.Incident{
		incident("CORE-RTR-01", "203.0.113.5", start, 45*time.Minute, false),
		incident("EDGE-RTR-02", "192.0.2.1", start.Add(time.Hour), 10*time.Minute, false),
	})
	if err != nil || n != 2 {
		t.Fatalf("expected 2 saved, got %d (%v)", n, err)
	}

	all, err := s.ListIncidents(ctx, domain.IncidentFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].Device != "CORE-RTR-01" {
		t.Fatalf("unexpected incidents %+v", all)
	}
	got := all[0]
	if got.Duration != 45*time.Minute || got.End == nil || !got.End.Equal(start.Add(45*time.Minute)) {
		t.Errorf("unexpected round trip %+v", got)
	}
	if len(got.AffectedPrefixes) != 1 || len(got.Events) != 1 || got.Events[0].Kind != domain.EventPeerDown {
		t.Errorf("unexpected nested data %+v", got)
	}

	byDevice, _ := s.ListIncidents(ctx, domain.IncidentFilter{Device: "EDGE-RTR-02"})
	if len(byDevice) != 1 {
		t.Errorf("expected 1 incident for EDGE-RTR-02, got %d", len(byDevice))
	}
	since, _ := s.ListIncidents(ctx, domain.IncidentFilter{Since: start.Add(30 * time.Minute)})
	if len(since) != 1 || since[0].Device != "EDGE-RTR-02" {
		t.Errorf("unexpected since filter result %+v", since)
	}
}

func TestEvidenceStore_UpsertClosesOngoingIncident(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	start := time.Date(2025, 9, 2, 10, 0, 0, 0, time.UTC)

	if _, err := s.SaveIncidents(ctx, "kafka", []domain.Incident{incident("R1", "10.0.0.2", start, 5*time.Minute, true)}); err != nil {
		t.Fatalf("save ongoing: %v", err)
	}
	if _, err := s.SaveIncidents(ctx, "kafka", []domain.Incident{incident("R1", "10.0.0.2", start, 30*time.Minute, false)}); err != nil {
		t.Fatalf("save closed: %v", err)
	}

	all, _ := s.ListIncidents(ctx, domain.IncidentFilter{})
	if len(all) != 1 {
		t.Fatalf("expected the incident to be updated in place, got %d rows", len(all))
	}
	if all[0].Ongoing || all[0].Duration != 30*time.Minute {
		t.Errorf("expected the closed version, got %+v", all[0])
	}
}

func TestRetentionJob_PurgesOldClosedIncidents(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	old := time.Now().Add(-100 * 24 * time.Hour).UTC()
	recent := time.Now().Add(-24 * time.Hour).UTC()

	_, err := s.SaveIncidents(ctx, "upload", []domain.Incident{
		incident("R1", "10.0.0.2", old, time.Minute, false),
		incident("R1", "10.0.0.3", old, time.Minute, true),
		incident("R1", "10.0.0.4", recent, time.Minute, false),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	n, err := store.NewRetentionJob(s, 0, zap.NewNop()).RunOnce(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged incident, got %d", n)
	}
	left, _ := s.ListIncidents(ctx, domain.IncidentFilter{})
	if len(left) != 2 {
		t.Errorf("expected 2 incidents left, got %d", len(left))
	}
}

func TestRetentionJob_RejectsBadSpec(t *testing.T) {
	s := openStore(t)
	job := store.NewRetentionJob(s, time.Hour, zap.NewNop())
	if err := job.Start("not a cron spec"); err == nil {
		job.Stop()
		t.Fatal("expected an error for an invalid spec")
	}
}

func TestEvidenceStore_CloseOngoing(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	start := time.Date(2025, 9, 2, 15, 45, 0, 0, time.UTC)

	if _, err := s.SaveIncidents(ctx, "kafka", []domain.Incident{
		incident("CORE-RTR-01", "203.0.113.5", start, 0, true),
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	up := domain.NetworkEvent{
		Timestamp: start.Add(45 * time.Minute),
		Device:    "CORE-RTR-01",
		Kind:      domain.EventPeerUp,
		Peer:      "203.0.113.5",
		Raw:       "up",
	}
	tests := []struct {
		name string
		ev   domain.NetworkEvent
		want bool
	}{
		{"other peer", domain.NetworkEvent{Timestamp: up.Timestamp, Device: up.Device, Kind: up.Kind, Peer: "192.0.2.1"}, false},
		{"before the outage", domain.NetworkEvent{Timestamp: start.Add(-time.Minute), Device: up.Device, Kind: up.Kind, Peer: up.Peer}, false},
		{"matching recovery", up, true},
		{"already closed", up, false},
	}
	for _, tt := range tests {
		closed, err := s.CloseOngoing(ctx, tt.ev)
		if err != nil || closed != tt.want {
			t.Errorf("%s: expected closed=%v, got %v (%v)", tt.name, tt.want, closed, err)
		}
	}

	got, err := s.ListIncidents(ctx, domain.IncidentFilter{Device: "CORE-RTR-01"})
	if err != nil || len(got) != 1 {
		t.Fatalf("expected 1 incident, got %d (%v)", len(got), err)
	}
	inc := got[0]
	if inc.Ongoing || inc.End == nil || !inc.End.Equal(up.Timestamp) || inc.Duration != 45*time.Minute {
		t.Errorf("expected a closed 45m incident, got %+v", inc)
	}
	if len(inc.Events) != 2 || inc.Events[1].Kind != domain.EventPeerUp {
		t.Errorf("expected the recovery appended to the events, got %+v", inc.Events)
	}
}
