// Package network correlates BGP device events into outage incidents and
// grades their customer impact.
package network

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/parser"
)

// Options tunes one correlation run.
type Options struct {
	// WindowEnd closes ongoing incidents. Zero means the last event.
	WindowEnd time.Time
}

type peerKey struct {
	device string
	peer   string
}

type openIncident struct {
	incident *domain.Incident
	prefixes map[string]struct{}
}

// Correlator runs a per-(device, peer) state machine over events. A peer is
// UP until a peer-down opens an incident and DOWN until a peer-up closes it.
// Repeated downs or ups are absorbed into the current state.
type Correlator struct {
	newID func() string
}

// NewCorrelator creates a correlator that assigns random incident IDs.
func NewCorrelator() *Correlator {
	return &Correlator{newID: uuid.NewString}
}

// CorrelateLog parses a device log and correlates its events. Lines outside
// the log grammar are counted and otherwise ignored.
func (c *Correlator) CorrelateLog(text string, opts Options) *domain.CorrelationReport {
	events, ignored := parser.ParseBGPLog(text)
	report := c.Correlate(events, opts)
	report.IgnoredLines = ignored
	return report
}

// Correlate groups events into incidents. Events are stably sorted by
// timestamp first; lines that went backwards in time within a device are
// counted in OutOfOrder.
func (c *Correlator) Correlate(events []domain.NetworkEvent, opts Options) *domain.CorrelationReport {
	report := &domain.CorrelationReport{
		Incidents:   []domain.Incident{},
		ParsedLines: len(events),
	}
	if len(events) == 0 {
		report.WindowEnd = opts.WindowEnd
		return report
	}

	last := make(map[string]time.Time)
	for _, ev := range events {
		if prev, ok := last[ev.Device]; ok && ev.Timestamp.Before(prev) {
			report.OutOfOrder++
			continue
		}
		last[ev.Device] = ev.Timestamp
	}

	sorted := append([]domain.NetworkEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	report.WindowStart = sorted[0].Timestamp
	report.WindowEnd = sorted[len(sorted)-1].Timestamp
	if opts.WindowEnd.After(report.WindowEnd) {
		report.WindowEnd = opts.WindowEnd
	}

	var (
		all  []*openIncident
		open = make(map[peerKey]*openIncident)
		seen = make(map[peerKey]bool)
	)

	for _, ev := range sorted {
		key := peerKey{device: ev.Device, peer: ev.Peer}

		switch ev.Kind {
		case domain.EventPeerDown:
			report.PeerDowns++
			seen[key] = true
			if o, ok := open[key]; ok {
				o.incident.Events = append(o.incident.Events, ev)
				if o.incident.Reason == "" {
					o.incident.Reason = ev.Reason
				}
				continue
			}
			o := &openIncident{
				incident: &domain.Incident{
					ID:     c.newID(),
					Device: ev.Device,
					Peer:   ev.Peer,
					PeerAS: ev.PeerAS,
					Start:  ev.Timestamp,
					Reason: ev.Reason,
					Events: []domain.NetworkEvent{ev},
				},
				prefixes: make(map[string]struct{}),
			}
			open[key] = o
			all = append(all, o)

		case domain.EventPeerUp:
			o, ok := open[key]
			if !ok {
				if !seen[key] {
					report.Recoveries = append(report.Recoveries, ev)
				}
				seen[key] = true
				continue
			}
			end := ev.Timestamp
			o.incident.End = &end
			o.incident.Duration = end.Sub(o.incident.Start)
			o.incident.Events = append(o.incident.Events, ev)
			delete(open, key)

		case domain.EventRouteWithdraw, domain.EventRouteAnnounce:
			for _, o := range attributed(all, open, ev) {
				o.incident.Events = append(o.incident.Events, ev)
				o.prefixes[ev.Prefix] = struct{}{}
			}

		case domain.EventNotification:
			report.Notifications++
			if o, ok := open[key]; ok {
				o.incident.Events = append(o.incident.Events, ev)
			}
		}
	}

	for _, o := range all {
		inc := o.incident
		if inc.End == nil {
			inc.Ongoing = true
			if report.WindowEnd.After(inc.Start) {
				inc.Duration = report.WindowEnd.Sub(inc.Start)
			}
		}
		inc.AffectedPrefixes = make([]string, 0, len(o.prefixes))
		for p := range o.prefixes {
			inc.AffectedPrefixes = append(inc.AffectedPrefixes, p)
		}
		sort.Strings(inc.AffectedPrefixes)
		report.Incidents = append(report.Incidents, *inc)
	}
	return report
}

// attributed returns the open incidents a route event belongs to: the
// named peer's incident, or every open incident on the device when the
// event names no peer. Results follow incident start order.
func attributed(all []*openIncident, open map[peerKey]*openIncident, ev domain.NetworkEvent) []*openIncident {
	if ev.Peer != "" {
		if o, ok := open[peerKey{device: ev.Device, peer: ev.Peer}]; ok {
			return []*openIncident{o}
		}
		return nil
	}
	var out []*openIncident
	for _, o := range all {
		if o.incident.Device == ev.Device && o.incident.End == nil {
			out = append(out, o)
		}
	}
	return out
}
