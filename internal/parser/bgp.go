package parser

import (
	"net/netip"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

// Device log grammar:
//
//	<ISO8601 timestamp> <device-id> BGP: <event text>
//	<ISO8601 timestamp> <device-id> %BGP-5-ADJCHANGE: <event text>
//
// Event text vocabulary (case-insensitive):
//
//	neighbor|peer <addr> [(AS<n>)] Down [- <reason>]
//	neighbor|peer <addr> [(AS<n>)] Up
//	withdraw|withdrawn <prefix> [from|via [neighbor] <addr> [(AS<n>)]]
//	announce|announced|advertised <prefix> [from|via [neighbor] <addr> [(AS<n>)]]
//	notification sent|received to|from [neighbor] <addr> [(AS<n>)] [- <reason>]
//
// Any other line is outside the vocabulary and is ignored.
var (
	logLine = regexp.MustCompile(`^(\S+)\s+(\S+)\s+(?:BGP|%BGP-\d+-[A-Za-z_]+)\s*:\s*(.+)$`)

	peerState = regexp.MustCompile(`(?i)^(?:neighbor|peer)\s+(\S+?)(?:\s*\(AS\s?(\d+)\))?\s+(down|up)\b\s*(?:[-:,]\s*)?(.*)$`)
	routeMove = regexp.MustCompile(`(?i)^(withdraw|withdrawn|announce|announced|advertised)\s+(?:route\s+|prefix\s+)?(\S+)(?:\s+(?:from|via)\s+(?:neighbor\s+|peer\s+)?(\S+?)(?:\s*\(AS\s?(\d+)\))?)?\s*$`)
	notify    = regexp.MustCompile(`(?i)^notification\s+(?:sent|received)\s+(?:to|from)\s+(?:neighbor\s+|peer\s+)?(\S+?)(?:\s*\(AS\s?(\d+)\))?\s*(?:[-:,]\s*(.*))?$`)
	asPeer    = regexp.MustCompile(`(?i)^AS(\d+)$`)

	timestampLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
	}
)

// ParseBGPLog parses every line of a device log. It returns the recognised
// events in input order and the number of lines outside the grammar.
func ParseBGPLog(text string) ([]domain.NetworkEvent, int) {
	var (
		events  []domain.NetworkEvent
		ignored int
	)
	for _, line := range Normalize(text) {
		ev, ok := ParseBGPLine(line)
		if !ok {
			ignored++
			continue
		}
		events = append(events, ev)
	}
	return events, ignored
}

// ParseBGPLine parses one normalized log line. ok is false when the line is
// outside the grammar.
func ParseBGPLine(line string) (domain.NetworkEvent, bool) {
	m := logLine.FindStringSubmatch(line)
	if m == nil {
		return domain.NetworkEvent{}, false
	}
	ts, ok := parseTimestamp(m[1])
	if !ok {
		return domain.NetworkEvent{}, false
	}
	ev := domain.NetworkEvent{Timestamp: ts, Device: m[2], Raw: line}
	text := strings.TrimSpace(m[3])

	if p := peerState.FindStringSubmatch(text); p != nil {
		if !setPeer(&ev, p[1], p[2]) {
			return domain.NetworkEvent{}, false
		}
		ev.Kind = domain.EventPeerDown
		if strings.EqualFold(p[3], "up") {
			ev.Kind = domain.EventPeerUp
		}
		ev.Reason = strings.TrimSpace(p[4])
		return ev, true
	}

	if r := routeMove.FindStringSubmatch(text); r != nil {
		prefix, err := netip.ParsePrefix(r[2])
		if err != nil {
			return domain.NetworkEvent{}, false
		}
		ev.Prefix = prefix.Masked().String()
		ev.Kind = domain.EventRouteAnnounce
		if strings.HasPrefix(strings.ToLower(r[1]), "withdraw") {
			ev.Kind = domain.EventRouteWithdraw
		}
		if r[3] != "" && !setPeer(&ev, r[3], r[4]) {
			return domain.NetworkEvent{}, false
		}
		return ev, true
	}

	if n := notify.FindStringSubmatch(text); n != nil {
		if !setPeer(&ev, n[1], n[2]) {
			return domain.NetworkEvent{}, false
		}
		ev.Kind = domain.EventNotification
		ev.Reason = strings.TrimSpace(n[3])
		return ev, true
	}

	return domain.NetworkEvent{}, false
}

// setPeer fills the peer identity from an address token and an optional AS
// number. A bare "AS<n>" token identifies the peer by AS only.
func setPeer(ev *domain.NetworkEvent, token, as string) bool {
	if a := asPeer.FindStringSubmatch(token); a != nil {
		n, err := strconv.ParseUint(a[1], 10, 32)
		if err != nil {
			return false
		}
		ev.Peer = "AS" + a[1]
		ev.PeerAS = uint32(n)
		return true
	}

	addr, err := netip.ParseAddr(token)
	if err != nil {
		return false
	}
	ev.Peer = addr.String()
	if as != "" {
		n, err := strconv.ParseUint(as, 10, 32)
		if err != nil {
			return false
		}
		ev.PeerAS = uint32(n)
	}
	return true
}

// parseTimestamp accepts RFC 3339 and zone-less ISO 8601; zone-less stamps
// are read as UTC.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
