package materialize_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextstop-transit/transferpatterns/materialize"
	"github.com/nextstop-transit/transferpatterns/model"
	"github.com/nextstop-transit/transferpatterns/streetrouter"
	"github.com/nextstop-transit/transferpatterns/timetable"
	"github.com/nextstop-transit/transferpatterns/tpgraph"
	"github.com/nextstop-transit/transferpatterns/unfold"
)

func mkStop(label string, lat, lon float64) model.Stop { return model.Stop{Label: label, Lat: lat, Lon: lon} }

func day() timetable.ServiceDay {
	return timetable.ServiceDay{Label: "20260101", Midnight: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func secs(hh, mm int) time.Duration { return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute }

func TestMaterializeLinearTransitLeg(t *testing.T) {
	a, b, c := mkStop("A", 0, 0), mkStop("B", 0, 0.001), mkStop("C", 0, 0.002)
	p1 := &model.TripPattern{
		Code:  "P1",
		Stops: []model.Stop{a, b, c},
		Timetable: model.Timetable{Trips: []model.TripTimes{{
			TripID:     "T1",
			Departures: []time.Duration{secs(8, 0), secs(8, 5), secs(8, 10)},
			Arrivals:   []time.Duration{secs(8, 0), secs(8, 5), secs(8, 10)},
		}}},
	}

	view := timetable.NewMemoryView([]model.Stop{a, b, c}, []*model.TripPattern{p1})
	idx := tpgraph.NewTransferPatternIndex()
	idx.DirectConn.Add(p1)

	m := &materialize.Materializer{View: view, Index: idx}

	legs := []unfold.Leg{{From: a, To: c, Walking: false}}
	journey, err := m.Materialize(legs, a, c, int(secs(7, 55).Seconds()), day())
	require.NoError(t, err)
	require.Len(t, journey.Legs, 1)
	assert.Equal(t, int(secs(8, 0).Seconds()), journey.Legs[0].DepartSecs)
	assert.Equal(t, int(secs(8, 10).Seconds()), journey.Legs[0].ArriveSecs)
}

func TestMaterializeRejectsWhenNoFeasibleTrip(t *testing.T) {
	a, c := mkStop("A", 0, 0), mkStop("C", 0, 0.002)
	p1 := &model.TripPattern{
		Code:  "P1",
		Stops: []model.Stop{a, c},
		Timetable: model.Timetable{Trips: []model.TripTimes{{
			TripID:     "T1",
			Departures: []time.Duration{secs(7, 0), secs(7, 10)},
			Arrivals:   []time.Duration{secs(7, 0), secs(7, 10)},
		}}},
	}

	view := timetable.NewMemoryView([]model.Stop{a, c}, []*model.TripPattern{p1})
	idx := tpgraph.NewTransferPatternIndex()
	idx.DirectConn.Add(p1)

	m := &materialize.Materializer{View: view, Index: idx}

	legs := []unfold.Leg{{From: a, To: c, Walking: false}}
	_, err := m.Materialize(legs, a, c, int(secs(8, 0).Seconds()), day())
	require.Error(t, err)
	assert.True(t, errors.Is(err, materialize.ErrLegInfeasible))
}

func TestMaterializeAttachesWalkingEndpointAndShiftsFirstWalk(t *testing.T) {
	start := mkStop("Origin", 0, 0)
	a, c := mkStop("A", 0, 0.0001), mkStop("C", 0, 0.002)
	p1 := &model.TripPattern{
		Code:  "P1",
		Stops: []model.Stop{a, c},
		Timetable: model.Timetable{Trips: []model.TripTimes{{
			TripID:     "T1",
			Departures: []time.Duration{secs(8, 10), secs(8, 20)},
			Arrivals:   []time.Duration{secs(8, 10), secs(8, 20)},
		}}},
	}

	view := timetable.NewMemoryView([]model.Stop{start, a, c}, []*model.TripPattern{p1})
	idx := tpgraph.NewTransferPatternIndex()
	idx.DirectConn.Add(p1)

	router := streetrouter.NewHaversineRouter(500)
	m := &materialize.Materializer{View: view, Index: idx, Router: router}

	legs := []unfold.Leg{{From: a, To: c, Walking: false}}
	journey, err := m.Materialize(legs, start, c, int(secs(7, 55).Seconds()), day())
	require.NoError(t, err)
	require.Len(t, journey.Legs, 2)
	assert.True(t, journey.Legs[0].Walking)
	assert.False(t, journey.Legs[1].Walking)
	// The walk must be shifted to end exactly at the transit departure.
	assert.Equal(t, journey.Legs[1].DepartSecs, journey.Legs[0].ArriveSecs)
}

func TestMaterializeRejectsScenarioNotExhibitedByOverlay(t *testing.T) {
	a, b := mkStop("A", 0, 0), mkStop("B", 0, 0.001)
	p1 := &model.TripPattern{
		Code:  "P1",
		Stops: []model.Stop{a, b},
		Timetable: model.Timetable{Trips: []model.TripTimes{{
			TripID:     "T1",
			Departures: []time.Duration{secs(8, 0)},
			Arrivals:   []time.Duration{secs(8, 0), secs(8, 5)},
		}}},
	}

	view := timetable.NewMemoryView([]model.Stop{a, b}, []*model.TripPattern{p1})
	idx := tpgraph.NewTransferPatternIndex()
	idx.DirectConn.Add(p1)
	m := &materialize.Materializer{View: view, Index: idx}

	scenario := &model.DelayScenario{Delays: []model.PatternDelay{{Pattern: p1, MinDelaySecs: 360}}}
	legs := []unfold.Leg{{From: a, To: b, Walking: false, Scenario: scenario}}

	_, err := m.Materialize(legs, a, b, int(secs(7, 55).Seconds()), day())
	require.Error(t, err)
	assert.True(t, errors.Is(err, materialize.ErrLegInfeasible))
}
