// Package cyclecleaner implements CycleCleaner (spec §4.F): it enforces
// acyclicity on every target-rooted DAG in a TransferPattern by a
// path-sensitive DFS, removing the arc that would close a cycle.
package cyclecleaner

import (
	"github.com/nextstop-transit/transferpatterns/tpgraph"
)

// Clean walks every target-rooted DAG in tp and removes any arc that would
// make a single predecessor path revisit a node (spec §4.F). Two disjoint
// paths converging on the same node are untouched — only a path that
// revisits *itself* is a cycle.
func Clean(tp *tpgraph.TransferPattern) {
	for _, node := range tp.Targets {
		clean(node, map[string]bool{})
	}
}

// clean recurses over node's predecessor arcs with onPath holding every
// stop label visited on the current target-to-node path. It is cloned before
// each recursive call (spec §4.F: "a per-path visited set, cloned on each
// recursive call") so sibling branches don't see each other's visited
// nodes.
func clean(node *tpgraph.TPNode, onPath map[string]bool) {
	onPath[node.Stop.Label] = true

	// Iterate over a snapshot: RemoveArcTo mutates node.Arcs mid-loop
	// when a cycle is found on one of its predecessors.
	arcs := append([]tpgraph.TPArc{}, node.Arcs...)
	for _, arc := range arcs {
		pred := arc.Predecessor
		if onPath[pred.Stop.Label] {
			node.RemoveArcTo(pred)
			continue
		}

		child := cloneOnPath(onPath)
		clean(pred, child)
	}
}

func cloneOnPath(onPath map[string]bool) map[string]bool {
	clone := make(map[string]bool, len(onPath))
	for k, v := range onPath {
		clone[k] = v
	}
	return clone
}
