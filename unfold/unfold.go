// Package unfold implements PathUnfolder (spec §4.I): it expands a
// target-anchored TPNode's predecessor DAG into the finite set of candidate
// leg sequences a query can try to materialize.
package unfold

import (
	"github.com/nextstop-transit/transferpatterns/model"
	"github.com/nextstop-transit/transferpatterns/tpgraph"
)

// Leg is one candidate step of an unfolded journey, in source-to-target
// order: ride or walk from From to To (spec §4.I).
type Leg struct {
	From, To model.Stop
	Walking  bool
	Scenario *model.DelayScenario
}

// Paths expands targetNode's predecessor DAG into every source-to-target
// leg sequence (spec §4.I). The DFS forks once per predecessor arc and
// emits a path whenever it reaches a root node (zero predecessors); depth
// is bounded by (max transfers + 1) x (1 + max walking interchanges), per
// spec §9, so a plain recursive walk needs no explicit stack.
func Paths(targetNode *tpgraph.TPNode) [][]Leg {
	return unfold(targetNode)
}

func unfold(node *tpgraph.TPNode) [][]Leg {
	if node.IsRoot() {
		return [][]Leg{{}}
	}

	var out [][]Leg
	for _, arc := range node.Arcs {
		leg := Leg{From: arc.Predecessor.Stop, To: node.Stop, Walking: arc.WalkingLeg, Scenario: arc.Scenario}
		for _, prefix := range unfold(arc.Predecessor) {
			out = append(out, append(append([]Leg{}, prefix...), leg))
		}
	}
	return out
}
