package query_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextstop-transit/transferpatterns/editor"
	"github.com/nextstop-transit/transferpatterns/model"
	"github.com/nextstop-transit/transferpatterns/query"
	"github.com/nextstop-transit/transferpatterns/search"
	"github.com/nextstop-transit/transferpatterns/streetrouter"
	"github.com/nextstop-transit/transferpatterns/timetable"
	"github.com/nextstop-transit/transferpatterns/tpgraph"
)

func mkStop(label string, lat, lon float64) model.Stop { return model.Stop{Label: label, Lat: lat, Lon: lon} }

func day() timetable.ServiceDay {
	return timetable.ServiceDay{Label: "20260101", Midnight: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func secs(hh, mm int) time.Duration { return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute }

// buildLinearIndex constructs a tiny A->B->C network's TransferPatternIndex
// from the same search and editor steps the Builder Orchestrator runs:
// search once from A, feed the states to the editor, and insert (no
// CycleCleaner pass). Stops sit ~1.1km apart, beyond the 500m walk range,
// and away from (0,0), which an Endpoint treats as "no coordinate".
func buildLinearIndex(t *testing.T) (*tpgraph.TransferPatternIndex, *timetable.MemoryView, model.Stop, model.Stop, model.Stop) {
	t.Helper()
	a, b, c := mkStop("A", 1, 1), mkStop("B", 1, 1.01), mkStop("C", 1, 1.02)
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
	router := streetrouter.NewHaversineRouter(500)

	footpaths := search.BuildFootpathTable([]model.Stop{a, b, c}, router, 500)
	engine := search.NewEngine(view, footpaths, 2)
	stopByLabel := map[string]model.Stop{a.Label: a, b.Label: b, c.Label: c}

	ed := editor.New(a)
	states := engine.ShortestPathsFrom(a, int(secs(7, 55).Seconds()), day(), []model.Stop{a, b, c})
	ed.Add(states, stopByLabel, nil)
	tp := ed.Create()

	idx := tpgraph.NewTransferPatternIndex()
	idx.DirectConn.Add(p1)
	idx.Insert(tp)

	return idx, view, a, b, c
}

func TestFindJourneysByStopLabel(t *testing.T) {
	idx, view, a, _, c := buildLinearIndex(t)
	router := streetrouter.NewHaversineRouter(500)
	engine := query.NewEngine(idx, view, router, day())

	req := query.Request{
		From:                  query.Endpoint{StopLabel: a.Label},
		To:                    query.Endpoint{StopLabel: c.Label},
		DepartAtEpochSecs:     day().Midnight.Add(secs(7, 55)).Unix(),
		MaxWalkDistanceMeters: 500,
	}

	journeys, err := engine.FindJourneys(req)
	require.NoError(t, err)
	require.Len(t, journeys, 1)
	assert.Equal(t, 1, journeys[0].LegCount())
	assert.Equal(t, day().Midnight.Add(secs(8, 0)), journeys[0].DepartureTime())
	assert.Equal(t, day().Midnight.Add(secs(8, 10)), journeys[0].ArrivalTime())
}

func TestFindJourneysByCoordinateResolvesNearestStop(t *testing.T) {
	idx, view, a, _, c := buildLinearIndex(t)
	router := streetrouter.NewHaversineRouter(500)
	engine := query.NewEngine(idx, view, router, day())

	req := query.Request{
		From:                  query.Endpoint{Lat: a.Lat, Lon: a.Lon},
		To:                    query.Endpoint{Lat: c.Lat, Lon: c.Lon},
		DepartAtEpochSecs:     day().Midnight.Add(secs(7, 55)).Unix(),
		MaxWalkDistanceMeters: 500,
	}

	journeys, err := engine.FindJourneys(req)
	require.NoError(t, err)
	require.Len(t, journeys, 1)
}

func TestFindJourneysMissingEndpointIsVertexNotFound(t *testing.T) {
	idx, view, _, _, c := buildLinearIndex(t)
	router := streetrouter.NewHaversineRouter(500)
	engine := query.NewEngine(idx, view, router, day())

	req := query.Request{
		From:                  query.Endpoint{},
		To:                    query.Endpoint{StopLabel: c.Label},
		DepartAtEpochSecs:     day().Midnight.Add(secs(7, 55)).Unix(),
		MaxWalkDistanceMeters: 500,
	}

	_, err := engine.FindJourneys(req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, query.ErrVertexNotFound))
}

func TestFindJourneysFarCoordinateIsPathNotFound(t *testing.T) {
	idx, view, a, _, _ := buildLinearIndex(t)
	router := streetrouter.NewHaversineRouter(500)
	engine := query.NewEngine(idx, view, router, day())

	req := query.Request{
		From:                  query.Endpoint{Lat: a.Lat, Lon: a.Lon},
		To:                    query.Endpoint{Lat: 51.5, Lon: -0.1}, // far away, no stop nearby
		DepartAtEpochSecs:     day().Midnight.Add(secs(7, 55)).Unix(),
		MaxWalkDistanceMeters: 500,
	}

	_, err := engine.FindJourneys(req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, query.ErrPathNotFound))
}

func TestFindJourneysStopAddedAfterEngineIsVertexNotFound(t *testing.T) {
	idx, view, a, _, _ := buildLinearIndex(t)
	router := streetrouter.NewHaversineRouter(500)
	engine := query.NewEngine(idx, view, router, day())

	isolated := mkStop("Z", 0, 0.5)
	view2 := timetable.NewMemoryView(append(view.Stops(), isolated), view.TripPatterns())
	engine.View = view2
	engine.Materializer.View = view2

	req := query.Request{
		From:                  query.Endpoint{StopLabel: a.Label},
		To:                    query.Endpoint{StopLabel: isolated.Label},
		DepartAtEpochSecs:     day().Midnight.Add(secs(7, 55)).Unix(),
		MaxWalkDistanceMeters: 500,
	}

	// engine.stopsByLabel was built from the original view and lacks "Z",
	// so this should surface as a stop-identity lookup failure.
	_, err := engine.FindJourneys(req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, query.ErrVertexNotFound))
}
