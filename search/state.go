package search

import (
	"github.com/nextstop-transit/transferpatterns/model"
)

// Mode describes how a State's Stop was reached.
type Mode int

const (
	// ModeRoot marks the chain's starting state (the search source);
	// spec §4.E treats it the same as a WALK/LEG_SWITCH boundary when
	// deciding whether a state is "stop-visiting".
	ModeRoot Mode = iota
	ModeWalk
	ModeTransit
)

// State is one entry of a Pareto-optimal arrival at a stop: an arrival
// time/transfer-count pair plus the back-pointer chain needed to
// reconstruct the stop sequence that reached it (spec §4.D).
//
// Every State already corresponds to a stop-visit in the sense of spec
// §4.E: this search only ever records board/alight/walk boundaries, never
// a trip's pass-through intermediate stops, so TransferPatternEditor's
// "is this a stop-visit" filter is always true for a State's Stop.
type State struct {
	Stop        model.Stop
	ArrivalSecs int
	Transfers   int
	Mode        Mode

	// Set iff Mode == ModeTransit: which pattern carried this leg, and
	// where/when it was boarded (needed by the editor to compute
	// observed transfer waits, spec §4.E).
	Pattern       *model.TripPattern
	BoardStop     model.Stop
	BoardSecs     int
	BoardPos      int
	AlightPos     int

	Prev *State
}

// dominates reports whether a is at least as good as b in both
// (arrival, transfers) and strictly better in at least one — the Pareto
// dominance relation over arrival time and transfer count (spec §4.D).
func dominates(a, b *State) bool {
	if a.ArrivalSecs > b.ArrivalSecs || a.Transfers > b.Transfers {
		return false
	}
	return a.ArrivalSecs < b.ArrivalSecs || a.Transfers < b.Transfers
}

// bag holds the non-dominated States reached at one stop so far.
type bag struct {
	states []*State
}

// insert adds candidate if it is not dominated by an existing state,
// removing any existing states it in turn dominates. Returns whether the
// bag changed.
func (b *bag) insert(candidate *State) bool {
	for _, existing := range b.states {
		if dominates(existing, candidate) {
			return false
		}
		if existing.ArrivalSecs == candidate.ArrivalSecs && existing.Transfers == candidate.Transfers {
			// Equal on both criteria: keep the existing one,
			// nothing new learned.
			return false
		}
	}

	kept := b.states[:0]
	for _, existing := range b.states {
		if !dominates(candidate, existing) {
			kept = append(kept, existing)
		}
	}
	b.states = append(kept, candidate)
	return true
}

// best returns the state with the earliest arrival in the bag, used as the
// "current best" starting point when probing boarding opportunities from a
// stop. Ties broken by fewer transfers.
func (b *bag) best() *State {
	if len(b.states) == 0 {
		return nil
	}
	best := b.states[0]
	for _, s := range b.states[1:] {
		if s.ArrivalSecs < best.ArrivalSecs || (s.ArrivalSecs == best.ArrivalSecs && s.Transfers < best.Transfers) {
			best = s
		}
	}
	return best
}
