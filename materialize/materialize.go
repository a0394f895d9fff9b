// Package materialize implements ConnectionMaterializer (spec §4.J): it
// turns one unfolded leg sequence into a fully-timed journey, attaching
// walking endpoints, picking concrete departures, and enforcing
// delay-scenario applicability.
package materialize

import (
	"errors"
	"fmt"

	"github.com/nextstop-transit/transferpatterns/model"
	"github.com/nextstop-transit/transferpatterns/streetrouter"
	"github.com/nextstop-transit/transferpatterns/timetable"
	"github.com/nextstop-transit/transferpatterns/tpgraph"
	"github.com/nextstop-transit/transferpatterns/unfold"
)

// ErrLegInfeasible means one candidate journey failed materialization — no
// walking path, no feasible next trip, or an inapplicable delay scenario
// (spec §7). The caller drops only this journey; it is never fatal.
var ErrLegInfeasible = errors.New("materialize: leg infeasible")

// MaterializedLeg is one fully-timed leg of a journey.
type MaterializedLeg struct {
	From, To   model.Stop
	Walking    bool
	DepartSecs int
	ArriveSecs int
	Pattern    *model.TripPattern // nil when Walking
}

// Journey is one fully materialized candidate (spec §4.J/§4.K).
type Journey struct {
	Legs       []MaterializedLeg
	DepartSecs int
	ArriveSecs int
}

func (j *Journey) LegCount() int { return len(j.Legs) }

// Materializer holds the collaborators ConnectionMaterializer needs: the
// TimetableView for trip lookups, the StreetRouter for walking legs, and
// the TransferPatternIndex's DirectConnectionIndex for candidate transit
// connections (spec §4.A, §4.B, §4.G).
type Materializer struct {
	View  timetable.View
	Router streetrouter.Router
	Index *tpgraph.TransferPatternIndex

	// TransitDwellSecs is the boarding/alighting dwell added to a transit
	// leg's ArriveSecs, so the next leg starts no earlier than arrival plus
	// dwell (spec §4.J step 2's boardingDwell(mode)).
	TransitDwellSecs int
}

// Materialize expands legs into a Journey departing no earlier than
// departSecs on serviceDay, between requestStart and requestEnd (which may
// differ from the unfolded path's own endpoints — spec §4.J step 1).
func (m *Materializer) Materialize(legs []unfold.Leg, requestStart, requestEnd model.Stop, departSecs int, serviceDay timetable.ServiceDay) (*Journey, error) {
	working := attachWalkingEndpoints(legs, requestStart, requestEnd)

	materialized := make([]MaterializedLeg, 0, len(working))
	currentSecs := departSecs

	for _, leg := range working {
		var mLeg MaterializedLeg
		var err error

		if leg.Walking {
			mLeg, err = m.materializeWalk(leg, currentSecs, serviceDay)
		} else {
			mLeg, err = m.materializeTransit(leg, currentSecs, serviceDay)
		}
		if err != nil {
			return nil, err
		}

		if leg.Scenario != nil {
			if ok, err := m.scenarioApplicable(leg.Scenario, serviceDay); err != nil {
				return nil, err
			} else if !ok {
				return nil, fmt.Errorf("%w: scenario not exhibited by realtime overlay", ErrLegInfeasible)
			}
		}

		materialized = append(materialized, mLeg)
		currentSecs = mLeg.ArriveSecs
	}

	shiftFirstWalk(materialized)

	if len(materialized) == 0 {
		return &Journey{DepartSecs: departSecs, ArriveSecs: departSecs}, nil
	}
	return &Journey{
		Legs:       materialized,
		DepartSecs: materialized[0].DepartSecs,
		ArriveSecs: materialized[len(materialized)-1].ArriveSecs,
	}, nil
}

// attachWalkingEndpoints implements spec §4.J step 1: the first/last leg's
// open end is pulled out to the request's actual endpoint, either by
// mutating an existing walking leg or by prepending/appending a new one.
func attachWalkingEndpoints(legs []unfold.Leg, requestStart, requestEnd model.Stop) []unfold.Leg {
	working := append([]unfold.Leg{}, legs...)

	if len(working) == 0 {
		if !requestStart.Equal(requestEnd) {
			working = append(working, unfold.Leg{From: requestStart, To: requestEnd, Walking: true})
		}
		return working
	}

	if !working[0].From.Equal(requestStart) {
		if working[0].Walking {
			working[0].From = requestStart
		} else {
			working = append([]unfold.Leg{{From: requestStart, To: working[0].From, Walking: true}}, working...)
		}
	}

	last := len(working) - 1
	if !working[last].To.Equal(requestEnd) {
		if working[last].Walking {
			working[last].To = requestEnd
		} else {
			working = append(working, unfold.Leg{From: working[last].To, To: requestEnd, Walking: true})
		}
	}

	return working
}

func (m *Materializer) materializeWalk(leg unfold.Leg, currentSecs int, serviceDay timetable.ServiceDay) (MaterializedLeg, error) {
	path, ok := m.Router.Walk(leg.From, leg.To, serviceDay.Time(currentSecs))
	if !ok {
		return MaterializedLeg{}, fmt.Errorf("%w: no walking path %s -> %s", ErrLegInfeasible, leg.From.Label, leg.To.Label)
	}
	arriveSecs := currentSecs + int(path.Duration().Seconds())
	return MaterializedLeg{From: leg.From, To: leg.To, Walking: true, DepartSecs: currentSecs, ArriveSecs: arriveSecs}, nil
}

func (m *Materializer) materializeTransit(leg unfold.Leg, currentSecs int, serviceDay timetable.ServiceDay) (MaterializedLeg, error) {
	conns := m.Index.DirectConnections(leg.From, leg.To)

	var best *model.DirectConnection
	var bestTimes model.TripTimes
	for i := range conns {
		conn := conns[i]
		times, _, ok := m.View.NextTrip(conn.Pattern, conn.FromPos, currentSecs, serviceDay)
		if !ok {
			continue
		}
		if best == nil || times.Departures[conn.FromPos] < bestTimes.Departures[best.FromPos] {
			c := conn
			best = &c
			bestTimes = times
		}
	}
	if best == nil {
		return MaterializedLeg{}, fmt.Errorf("%w: no feasible next trip %s -> %s", ErrLegInfeasible, leg.From.Label, leg.To.Label)
	}

	departSecs := int(bestTimes.Departures[best.FromPos].Seconds())
	arriveSecs := int(bestTimes.Arrivals[best.ToPos].Seconds()) + m.TransitDwellSecs

	return MaterializedLeg{
		From: leg.From, To: leg.To, Walking: false,
		DepartSecs: departSecs, ArriveSecs: arriveSecs,
		Pattern: best.Pattern,
	}, nil
}

// scenarioApplicable implements spec §4.J step 2's applicability check: a
// dynamic arc's scenario is only honored when the realtime overlay
// actually exhibits at least its minimum delay on every pattern it names.
func (m *Materializer) scenarioApplicable(scenario *model.DelayScenario, serviceDay timetable.ServiceDay) (bool, error) {
	for _, delay := range scenario.Delays {
		overlaid := m.View.TimetableFor(delay.Pattern, serviceDay)
		if maxArrivalDelaySecs(delay.Pattern.Timetable, overlaid) < delay.MinDelaySecs {
			return false, nil
		}
	}
	return true, nil
}

// maxArrivalDelaySecs compares the scheduled timetable against an
// overlaid one, trip by trip (matched by TripID), and returns the largest
// per-stop arrival delay observed.
func maxArrivalDelaySecs(scheduled, overlaid model.Timetable) int {
	scheduledByTrip := make(map[string]model.TripTimes, len(scheduled.Trips))
	for _, t := range scheduled.Trips {
		scheduledByTrip[t.TripID] = t
	}

	maxDelay := 0
	for _, ot := range overlaid.Trips {
		st, ok := scheduledByTrip[ot.TripID]
		if !ok {
			continue
		}
		for i := 0; i < len(ot.Arrivals) && i < len(st.Arrivals); i++ {
			delay := int((ot.Arrivals[i] - st.Arrivals[i]).Seconds())
			if delay > maxDelay {
				maxDelay = delay
			}
		}
	}
	return maxDelay
}

// shiftFirstWalk implements spec §4.J step 3: if the journey opens with a
// walking leg followed by a transit leg, the walk's window shifts so it
// ends exactly at the transit leg's departure (it could have started
// later). An all-walking journey is left unshifted (spec §9, resolved in
// DESIGN.md).
func shiftFirstWalk(legs []MaterializedLeg) {
	if len(legs) < 2 || !legs[0].Walking || legs[1].Walking {
		return
	}
	shift := legs[1].DepartSecs - legs[0].ArriveSecs
	legs[0].DepartSecs += shift
	legs[0].ArriveSecs = legs[1].DepartSecs
}
