// Package search implements OneToAllSearch (spec §4.D): a multi-target,
// bounded-transfer earliest-arrival search from one source stop, reporting
// per target every Pareto-optimal (arrival, transfers) state chain.
package search

import (
	"github.com/nextstop-transit/transferpatterns/model"
	"github.com/nextstop-transit/transferpatterns/timetable"
)

// Engine configures and runs OneToAllSearch. It is single-threaded and
// isolated per call (spec §5: "each OneToAllSearch call is isolated — its
// state tree is local"), so one Engine value is safely reused across many
// sequential calls within one build worker.
type Engine struct {
	View      timetable.View
	Footpaths *FootpathTable

	// MaxTransfers bounds the number of transfers allowed (spec §4.D
	// default: 2).
	MaxTransfers int
}

func NewEngine(view timetable.View, footpaths *FootpathTable, maxTransfers int) *Engine {
	return &Engine{View: view, Footpaths: footpaths, MaxTransfers: maxTransfers}
}

// ShortestPathsFrom runs the search from source at departSecs on
// serviceDay, and returns, for every stop in allStops that was reached, its
// Pareto-optimal arrival states (spec §4.D). A target with no reachable
// state is simply absent from the result (spec §4.L: "a missing search
// result ... is a silent skip").
//
// This implementation runs a bounded number of RAPTOR-style rounds (one
// per potential additional boarding) instead of the spec's optional
// bidirectional remaining-weight heuristic; spec §4.D explicitly accepts
// any algorithm meeting the per-target Pareto-optimal contract.
func (e *Engine) ShortestPathsFrom(source model.Stop, departSecs int, serviceDay timetable.ServiceDay, allStops []model.Stop) map[string][]*State {
	bags := map[string]*bag{}
	ensureBag := func(stop model.Stop) *bag {
		b, ok := bags[stop.Label]
		if !ok {
			b = &bag{}
			bags[stop.Label] = b
		}
		return b
	}

	root := &State{Stop: source, ArrivalSecs: departSecs, Transfers: 0, Mode: ModeRoot}
	ensureBag(source).insert(root)

	marked := map[string]model.Stop{source.Label: source}
	walked := e.relaxWalks(bags, marked, ensureBag)
	marked = union(marked, walked)

	maxBoardings := e.MaxTransfers + 1
	for round := 1; round <= maxBoardings && len(marked) > 0; round++ {
		transitMarked := e.relaxTransit(bags, marked, round, serviceDay, ensureBag)
		if len(transitMarked) == 0 {
			break
		}
		walked := e.relaxWalks(bags, transitMarked, ensureBag)
		marked = union(transitMarked, walked)
	}

	result := map[string][]*State{}
	for _, target := range allStops {
		b, ok := bags[target.Label]
		if !ok || len(b.states) == 0 {
			continue
		}
		result[target.Label] = append([]*State{}, b.states...)
	}
	return result
}

// relaxTransit boards, from every marked stop, every pattern touching it,
// riding forward to every later position, updating bags along the way.
// Returns the stops whose bag improved this round (to seed the next
// round's boarding set and this round's walk relaxation).
func (e *Engine) relaxTransit(
	bags map[string]*bag,
	marked map[string]model.Stop,
	round int,
	serviceDay timetable.ServiceDay,
	ensureBag func(model.Stop) *bag,
) map[string]model.Stop {
	improved := map[string]model.Stop{}

	for _, stop := range marked {
		from := ensureBag(stop).best()
		if from == nil {
			continue
		}

		seen := map[string]bool{}
		for _, dep := range e.View.ScheduledDepartures(stop) {
			if seen[dep.Pattern.Code] {
				continue
			}
			seen[dep.Pattern.Code] = true

			trip, resolvedDay, ok := e.View.NextTrip(dep.Pattern, dep.StopPos, from.ArrivalSecs, serviceDay)
			if !ok {
				continue
			}
			_ = resolvedDay

			boardSecs := int(trip.Departures[dep.StopPos].Seconds())

			for j := dep.StopPos + 1; j < len(dep.Pattern.Stops); j++ {
				arriveSecs := int(trip.Arrivals[j].Seconds())
				toStop := dep.Pattern.Stops[j]

				candidate := &State{
					Stop:        toStop,
					ArrivalSecs: arriveSecs,
					Transfers:   round - 1,
					Mode:        ModeTransit,
					Pattern:     dep.Pattern,
					BoardStop:   stop,
					BoardSecs:   boardSecs,
					BoardPos:    dep.StopPos,
					AlightPos:   j,
					Prev:        from,
				}

				if ensureBag(toStop).insert(candidate) {
					improved[toStop.Label] = toStop
				}
			}
		}
	}

	return improved
}

// relaxWalks extends every marked stop's best state by one footpath hop,
// returning the stops whose bag improved.
func (e *Engine) relaxWalks(
	bags map[string]*bag,
	marked map[string]model.Stop,
	ensureBag func(model.Stop) *bag,
) map[string]model.Stop {
	improved := map[string]model.Stop{}
	if e.Footpaths == nil {
		return improved
	}

	for _, stop := range marked {
		from := ensureBag(stop).best()
		if from == nil {
			continue
		}

		for _, fp := range e.Footpaths.From(stop) {
			candidate := &State{
				Stop:        fp.To,
				ArrivalSecs: from.ArrivalSecs + int(fp.Duration.Seconds()),
				Transfers:   from.Transfers,
				Mode:        ModeWalk,
				Prev:        from,
			}
			if ensureBag(fp.To).insert(candidate) {
				improved[fp.To.Label] = fp.To
			}
		}
	}
	return improved
}

func union(a, b map[string]model.Stop) map[string]model.Stop {
	out := map[string]model.Stop{}
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
