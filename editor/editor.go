// Package editor implements the TransferPatternEditor (spec §4.E): it
// accumulates OneToAllSearch output into one source's target-rooted DAGs,
// deduplicating arcs and recording the observed transfer waits that seed
// the DelayScenarioBuilder.
package editor

import (
	"github.com/nextstop-transit/transferpatterns/model"
	"github.com/nextstop-transit/transferpatterns/search"
	"github.com/nextstop-transit/transferpatterns/tpgraph"
)

// Editor accumulates search results for exactly one source stop (spec
// §4.E). It is not safe for concurrent use; the builder keeps one editor
// per in-flight source, matching the "per-source work is sequential"
// concurrency model (spec §5).
type Editor struct {
	root Stop

	targets                      map[string]*tpgraph.TPNode
	allIntermediateNodesByTarget map[string]map[string]*tpgraph.TPNode

	possibleDelays map[string]*delayEntry
}

type Stop = model.Stop

type delayEntry struct {
	pattern      *model.TripPattern
	maxWaitSecs  int
}

func New(root Stop) *Editor {
	return &Editor{
		root:                         root,
		targets:                      map[string]*tpgraph.TPNode{},
		allIntermediateNodesByTarget: map[string]map[string]*tpgraph.TPNode{},
		possibleDelays:               map[string]*delayEntry{},
	}
}

// Add folds one round of OneToAllSearch results into the DAGs under
// construction (spec §4.E "add"). scenario is nil for the static
// (schedule-only) pass, or the DelayScenario whose overlay produced these
// states.
func (e *Editor) Add(statesByTarget map[string][]*search.State, targetStops map[string]Stop, scenario *model.DelayScenario) {
	for targetLabel, states := range statesByTarget {
		target := targetStops[targetLabel]
		intermediate := e.intermediateNodesFor(target)
		targetNode := e.targetNodeFor(target, intermediate)

		for _, tail := range states {
			e.addChain(targetNode, target, intermediate, tail, scenario)
		}
	}
}

func (e *Editor) intermediateNodesFor(target Stop) map[string]*tpgraph.TPNode {
	m, ok := e.allIntermediateNodesByTarget[target.Label]
	if !ok {
		m = map[string]*tpgraph.TPNode{}
		e.allIntermediateNodesByTarget[target.Label] = m
	}
	return m
}

func (e *Editor) targetNodeFor(target Stop, intermediate map[string]*tpgraph.TPNode) *tpgraph.TPNode {
	if n, ok := e.targets[target.Label]; ok {
		return n
	}
	n := tpgraph.NewTPNode(target)
	e.targets[target.Label] = n
	intermediate[target.Label] = n
	return n
}

func (e *Editor) nodeFor(stop Stop, intermediate map[string]*tpgraph.TPNode) *tpgraph.TPNode {
	if n, ok := intermediate[stop.Label]; ok {
		return n
	}
	n := tpgraph.NewTPNode(stop)
	intermediate[stop.Label] = n
	return n
}

// addChain walks one Pareto-optimal state chain backward from the target,
// adding one arc per stop-visit transition (spec §4.E steps 2-4). Every
// search.State is already a stop-visit boundary (see search.State's
// doc comment), so this is a straight walk of the Prev chain rather than a
// separate "is this a stop-visit" filter.
func (e *Editor) addChain(targetNode *tpgraph.TPNode, target Stop, intermediate map[string]*tpgraph.TPNode, tail *search.State, scenario *model.DelayScenario) {
	var beforeNode *tpgraph.TPNode
	var beforeState *search.State

	for state := tail; state != nil; state = state.Prev {
		currentNode := e.nodeFor(state.Stop, intermediate)
		if state.Stop.Equal(target) {
			currentNode = targetNode
		}

		if beforeNode != nil && !currentNode.Stop.Equal(target) {
			beforeNode.AddArc(tpgraph.TPArc{
				Predecessor: currentNode,
				WalkingLeg:  beforeState.Mode == search.ModeWalk,
				Scenario:    scenario,
			})
		}

		if scenario == nil {
			e.recordPossibleDelay(state)
		}

		beforeNode = currentNode
		beforeState = state
	}
}

// recordPossibleDelay implements spec §4.E step 4: when a transit leg
// immediately follows another transit leg on a different pattern at the
// same stop (a same-stop transfer, not a walking interchange), the wait
// between the previous trip's arrival and this trip's boarding is a
// candidate delay for the DelayScenarioBuilder to probe.
func (e *Editor) recordPossibleDelay(state *search.State) {
	if state.Mode != search.ModeTransit || state.Prev == nil {
		return
	}
	prev := state.Prev
	if prev.Mode != search.ModeTransit {
		return
	}
	if prev.Pattern.Equal(state.Pattern) {
		return
	}

	waitSecs := state.BoardSecs - prev.ArrivalSecs
	if waitSecs <= 0 {
		return
	}

	entry, ok := e.possibleDelays[prev.Pattern.Code]
	if !ok {
		e.possibleDelays[prev.Pattern.Code] = &delayEntry{pattern: prev.Pattern, maxWaitSecs: waitSecs}
		return
	}
	if waitSecs > entry.maxWaitSecs {
		entry.maxWaitSecs = waitSecs
	}
}

// GetPossibleDelays returns the observed (pattern, maxWaitSecs) pairs
// collected so far, for the DelayScenarioBuilder (spec §4.C, §4.E).
func (e *Editor) GetPossibleDelays() map[*model.TripPattern]int {
	out := make(map[*model.TripPattern]int, len(e.possibleDelays))
	for _, entry := range e.possibleDelays {
		out[entry.pattern] = entry.maxWaitSecs
	}
	return out
}

// Create finalizes the editor's accumulated state into a TransferPattern
// (spec §4.E "create"). The editor must not be reused afterward.
func (e *Editor) Create() *tpgraph.TransferPattern {
	tp := tpgraph.NewTransferPattern(e.root)
	for label, node := range e.targets {
		tp.Targets[label] = node
	}
	return tp
}
