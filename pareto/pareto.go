// Package pareto implements the Pareto filter & sort (spec §4.K): filtering
// a candidate journey set down to its non-dominated members, then ordering
// them for display.
package pareto

import (
	"sort"
	"time"
)

// Journey is the minimal shape the filter needs: the three criteria spec
// §4.K dominance runs over, plus enough to sort and display. Callers (the
// query package) embed this in their richer journey type.
type Journey interface {
	DepartureTime() time.Time
	ArrivalTime() time.Time
	LegCount() int
}

// dominates reports whether a Pareto-dominates b: at least as good in all
// three criteria (later departure, earlier arrival, fewer legs) and
// strictly better in at least one (spec §4.K).
func dominates(a, b Journey) bool {
	depOK := !a.DepartureTime().Before(b.DepartureTime())
	arrOK := !a.ArrivalTime().After(b.ArrivalTime())
	legsOK := a.LegCount() <= b.LegCount()
	if !depOK || !arrOK || !legsOK {
		return false
	}

	depBetter := a.DepartureTime().After(b.DepartureTime())
	arrBetter := a.ArrivalTime().Before(b.ArrivalTime())
	legsBetter := a.LegCount() < b.LegCount()
	return depBetter || arrBetter || legsBetter
}

// Filter returns the Pareto-optimal subset of candidates: every journey not
// dominated by another (spec §4.K).
func Filter[J Journey](candidates []J) []J {
	var kept []J
	for i, c := range candidates {
		dominated := false
		for j, other := range candidates {
			if i == j {
				continue
			}
			if dominates(other, c) {
				dominated = true
				break
			}
		}
		if !dominated {
			kept = append(kept, c)
		}
	}
	return kept
}

// Sort orders journeys by arrival time ascending, then total duration
// ascending (spec §4.K's "final display order").
func Sort[J Journey](journeys []J) {
	sort.SliceStable(journeys, func(i, j int) bool {
		ai, aj := journeys[i].ArrivalTime(), journeys[j].ArrivalTime()
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		di := journeys[i].ArrivalTime().Sub(journeys[i].DepartureTime())
		dj := journeys[j].ArrivalTime().Sub(journeys[j].DepartureTime())
		return di < dj
	})
}
