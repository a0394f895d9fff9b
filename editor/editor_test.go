package editor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextstop-transit/transferpatterns/editor"
	"github.com/nextstop-transit/transferpatterns/model"
	"github.com/nextstop-transit/transferpatterns/search"
)

func mkStop(label string) model.Stop { return model.Stop{Label: label} }

func TestAddBuildsOneArcPerStopVisitTransition(t *testing.T) {
	a, b, c := mkStop("A"), mkStop("B"), mkStop("C")
	p1 := &model.TripPattern{Code: "P1"}
	p2 := &model.TripPattern{Code: "P2"}

	root := &search.State{Stop: a, ArrivalSecs: 0, Mode: search.ModeRoot}
	boardAtA := &search.State{
		Stop: b, ArrivalSecs: 300, Mode: search.ModeTransit,
		Pattern: p1, BoardStop: a, BoardSecs: 0, Prev: root,
	}
	boardAtB := &search.State{
		Stop: c, ArrivalSecs: 900, Mode: search.ModeTransit,
		Pattern: p2, BoardStop: b, BoardSecs: 600, Prev: boardAtA,
	}

	e := editor.New(a)
	e.Add(map[string][]*search.State{"C": {boardAtB}}, map[string]model.Stop{"C": c}, nil)

	tp := e.Create()
	cNode, ok := tp.Targets["C"]
	require.True(t, ok)
	require.Len(t, cNode.Arcs, 1)
	assert.Equal(t, "B", cNode.Arcs[0].Predecessor.Stop.Label)
	assert.False(t, cNode.Arcs[0].WalkingLeg)

	bNode := cNode.Arcs[0].Predecessor
	require.Len(t, bNode.Arcs, 1)
	assert.Equal(t, "A", bNode.Arcs[0].Predecessor.Stop.Label)

	aNode := bNode.Arcs[0].Predecessor
	assert.True(t, aNode.IsRoot())

	// The wait between P1's arrival at B (300s) and P2's boarding at B
	// (600s) is a candidate delay on P1, the pattern that was ridden
	// into the transfer.
	delays := e.GetPossibleDelays()
	require.Len(t, delays, 1)
	assert.Equal(t, 300, delays[p1])
}

func TestAddDoesNotDuplicateIdenticalArcs(t *testing.T) {
	a, b := mkStop("A"), mkStop("B")
	p1 := &model.TripPattern{Code: "P1"}

	root := &search.State{Stop: a, Mode: search.ModeRoot}
	s1 := &search.State{Stop: b, ArrivalSecs: 300, Mode: search.ModeTransit, Pattern: p1, BoardStop: a, Prev: root}
	s2 := &search.State{Stop: b, ArrivalSecs: 600, Mode: search.ModeTransit, Pattern: p1, BoardStop: a, Prev: root}

	e := editor.New(a)
	e.Add(map[string][]*search.State{"B": {s1, s2}}, map[string]model.Stop{"B": b}, nil)

	tp := e.Create()
	bNode := tp.Targets["B"]
	require.Len(t, bNode.Arcs, 1, "same (predecessor, walking) pair must not be added twice")
}

func TestAddKeepsArcsWithDistinctScenariosSeparate(t *testing.T) {
	a, b := mkStop("A"), mkStop("B")
	p1 := &model.TripPattern{Code: "P1"}
	scenario := &model.DelayScenario{Delays: []model.PatternDelay{{Pattern: p1, MinDelaySecs: 301}}}

	root := &search.State{Stop: a, Mode: search.ModeRoot}
	s1 := &search.State{Stop: b, ArrivalSecs: 300, Mode: search.ModeTransit, Pattern: p1, BoardStop: a, Prev: root}

	e := editor.New(a)
	e.Add(map[string][]*search.State{"B": {s1}}, map[string]model.Stop{"B": b}, nil)
	e.Add(map[string][]*search.State{"B": {s1}}, map[string]model.Stop{"B": b}, scenario)

	tp := e.Create()
	bNode := tp.Targets["B"]
	require.Len(t, bNode.Arcs, 2, "the static arc and the scenario-tagged arc coexist")
	assert.Nil(t, bNode.Arcs[0].Scenario)
	assert.Equal(t, scenario, bNode.Arcs[1].Scenario)
}
