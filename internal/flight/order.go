package flight

import (
	"slices"
	"strings"
	"time"
)

// Layouts accepted for scheduled timestamps, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseTimestamp parses a provider timestamp into an instant. Timestamps
// without an offset are read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// KeepComplete returns the records that carry a flight number and both
// airports, preserving order. The second value is the number dropped.
func KeepComplete(records []Record) ([]Record, int) {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Complete() {
			out = append(out, r)
		}
	}
	return out, len(records) - len(out)
}

// Dedup removes records whose identity key was already seen. The first
// occurrence wins and relative order is preserved.
func Dedup(records []Record) []Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		k := IdentityKey(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// SortByDeparture orders records by scheduled departure instant, ascending.
// Records with an unparseable departure go last, keeping their relative order.
func SortByDeparture(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		ta, okA := ParseTimestamp(a.ScheduledDeparture)
		tb, okB := ParseTimestamp(b.ScheduledDeparture)
		switch {
		case okA && okB:
			return ta.Compare(tb)
		case okA:
			return -1
		case okB:
			return 1
		}
		return 0
	})
}

// Carriers is an allow-list of preferred airlines, matched case-insensitively
// against either the airline name or its IATA code.
type Carriers []string

// Match reports whether r is operated by a listed carrier.
func (c Carriers) Match(r Record) bool {
	for _, name := range c {
		if name == "" {
			continue
		}
		if strings.EqualFold(name, r.AirlineName) || (r.AirlineIATA != "" && strings.EqualFold(name, r.AirlineIATA)) {
			return true
		}
	}
	return false
}

// Prefer moves flights of listed carriers ahead of the rest. The move is
// stable, so a chronologically sorted input stays chronological within each
// group.
func (c Carriers) Prefer(records []Record) {
	if len(c) == 0 {
		return
	}
	slices.SortStableFunc(records, func(a, b Record) int {
		pa, pb := c.Match(a), c.Match(b)
		switch {
		case pa == pb:
			return 0
		case pa:
			return -1
		}
		return 1
	})
}
