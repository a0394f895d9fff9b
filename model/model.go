// Package model holds the data types shared by every stage of transfer
// pattern construction and querying: stops, trip patterns, timetables,
// direct connections and delay scenarios (spec §3).
package model

import (
	"sort"
	"time"
)

// Stop is identified by its stable label. Two stops are equal iff their
// labels are equal.
type Stop struct {
	Label string
	Lat   float64
	Lon   float64

	// Index is a dense integer assigned at load time, used only for
	// stable chunk partitioning (spec §4.H). It carries no semantic
	// weight beyond ordering.
	Index int
}

func (s Stop) Equal(other Stop) bool {
	return s.Label == other.Label
}

// TripTimes is one scheduled run of a TripPattern: per-position arrival and
// departure offsets from midnight of its service day.
type TripTimes struct {
	TripID     string
	ServiceID  string
	Arrivals   []time.Duration
	Departures []time.Duration
}

// Timetable is the set of scheduled runs of a TripPattern active on some
// service day, ordered by departure from position 0.
type Timetable struct {
	Trips []TripTimes
}

// TripPattern is identified by its stable code. Stops and Timetable are
// immutable once the pattern is loaded (spec §3 "Lifecycles").
type TripPattern struct {
	Code      string
	Stops     []Stop
	Timetable Timetable
}

func (p *TripPattern) Equal(other *TripPattern) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Code == other.Code
}

// PosOf returns the stop-position of stop within the pattern, or -1.
func (p *TripPattern) PosOf(stop Stop) int {
	for i, s := range p.Stops {
		if s.Equal(stop) {
			return i
		}
	}
	return -1
}

// DirectConnection is "ride TripPattern from FromPos to ToPos with no
// transfer" (spec §3). FromPos < ToPos always holds.
type DirectConnection struct {
	Pattern *TripPattern
	FromPos int
	ToPos   int
}

// StopVisit is one (pattern, position) pair for a stop-visit, as stored per
// stop by DirectConnectionIndex.
type StopVisit struct {
	Pattern *TripPattern
	Pos     int
}

// DirectConnectionIndex maps a stop to every (pattern, position) visit of
// that stop across all patterns, enabling on-the-fly direct-connection
// lookup between any two stops (spec §3).
type DirectConnectionIndex struct {
	visitsByStop map[string][]StopVisit
}

func NewDirectConnectionIndex() *DirectConnectionIndex {
	return &DirectConnectionIndex{visitsByStop: map[string][]StopVisit{}}
}

// Add registers every stop-visit of pattern.
func (idx *DirectConnectionIndex) Add(pattern *TripPattern) {
	for pos, stop := range pattern.Stops {
		idx.visitsByStop[stop.Label] = append(idx.visitsByStop[stop.Label], StopVisit{
			Pattern: pattern,
			Pos:     pos,
		})
	}
}

// Connections returns every DirectConnection (p, i, j) with p.Stops[i] ==
// from, p.Stops[j] == to and i < j (spec §3, invariant 4 of spec §8).
func (idx *DirectConnectionIndex) Connections(from, to Stop) []DirectConnection {
	conns := []DirectConnection{}

	fromVisits := idx.visitsByStop[from.Label]
	if len(fromVisits) == 0 {
		return conns
	}

	// Index "to" visits by pattern code for a fast lookup per
	// candidate pattern.
	toPosByPattern := map[string][]int{}
	for _, v := range idx.visitsByStop[to.Label] {
		toPosByPattern[v.Pattern.Code] = append(toPosByPattern[v.Pattern.Code], v.Pos)
	}

	for _, fv := range fromVisits {
		for _, toPos := range toPosByPattern[fv.Pattern.Code] {
			if fv.Pos < toPos {
				conns = append(conns, DirectConnection{
					Pattern: fv.Pattern,
					FromPos: fv.Pos,
					ToPos:   toPos,
				})
			}
		}
	}

	sort.Slice(conns, func(i, j int) bool {
		return conns[i].Pattern.Code < conns[j].Pattern.Code
	})

	return conns
}

// DelayScenario is a synthesized perturbation used during build to discover
// delay-robust alternative transfer patterns (spec §3, §4.C). Identity (for
// deduplication and applicability checks) is the set of trip patterns it
// mentions, not the order or magnitude of the delays.
type DelayScenario struct {
	Delays []PatternDelay
}

type PatternDelay struct {
	Pattern      *TripPattern
	MinDelaySecs int // invariant: > 0
}

// Fingerprint is a stable, order-independent identity for the scenario,
// built from the set of trip-pattern codes it mentions.
func (s *DelayScenario) Fingerprint() string {
	codes := make([]string, len(s.Delays))
	for i, d := range s.Delays {
		codes[i] = d.Pattern.Code
	}
	sort.Strings(codes)

	fp := ""
	for i, c := range codes {
		if i > 0 {
			fp += "|"
		}
		fp += c
	}
	return fp
}

// MinDelayFor returns the minimum delay this scenario requires of pattern,
// and whether the scenario mentions it at all.
func (s *DelayScenario) MinDelayFor(pattern *TripPattern) (int, bool) {
	for _, d := range s.Delays {
		if d.Pattern.Equal(pattern) {
			return d.MinDelaySecs, true
		}
	}
	return 0, false
}
