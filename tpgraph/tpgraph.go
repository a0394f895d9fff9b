// Package tpgraph holds the final per-source transfer-pattern data model
// (spec §3, §4.G): TPNode, TPArc, TransferPattern and the
// TransferPatternIndex that ties per-source patterns to the shared
// DirectConnectionIndex.
package tpgraph

import (
	"github.com/nextstop-transit/transferpatterns/model"
)

// TPArc is a directed edge current <- predecessor (spec §3): "current" is
// implicit (the TPNode this arc lives on), Predecessor is the TPNode one
// stop-visit closer to the source. Arcs are deduplicated on predecessor,
// WalkingLeg flag and DelayScenario fingerprint (see SameEndpoint), so arcs
// differing only in scenario provenance coexist (spec §3, §4.E).
type TPArc struct {
	Predecessor *TPNode
	WalkingLeg  bool

	// Scenario is non-nil iff this arc was discovered only while a
	// DelayScenario's overlay was installed (spec §3: a "dynamic" arc).
	Scenario *model.DelayScenario
}

// SameEndpoint reports whether a and other would collide under the
// editor's dedup rule (spec §4.E step 3): same predecessor, same walking
// flag, AND the same scenario provenance (nil counts as its own case) —
// arcs differing only in DelayScenario are deliberately NOT the same, so
// dynamic arcs coexist with the static arc they were discovered alongside
// (spec §3 invariant, §8 invariant 2).
func (a TPArc) SameEndpoint(other TPArc) bool {
	if !a.Predecessor.Stop.Equal(other.Predecessor.Stop) || a.WalkingLeg != other.WalkingLeg {
		return false
	}
	return scenarioFingerprint(a.Scenario) == scenarioFingerprint(other.Scenario)
}

func scenarioFingerprint(s *model.DelayScenario) string {
	if s == nil {
		return ""
	}
	return s.Fingerprint()
}

// TPNode is a node in a source-rooted, target-anchored DAG, labelled by a
// Stop and carrying its predecessor arcs (spec §3). Two TPNodes are equal
// iff their stops are equal.
type TPNode struct {
	Stop Stop
	Arcs []TPArc
}

// Stop mirrors model.Stop; aliased so tpgraph's public surface doesn't leak
// an import cycle back into model for callers that only need node identity.
type Stop = model.Stop

func NewTPNode(stop Stop) *TPNode {
	return &TPNode{Stop: stop}
}

// AddArc appends arc unless an arc with the same predecessor, walking flag
// and scenario fingerprint already exists (spec §4.E step 3). Returns
// whether it was added.
func (n *TPNode) AddArc(arc TPArc) bool {
	for _, existing := range n.Arcs {
		if existing.SameEndpoint(arc) {
			return false
		}
	}
	n.Arcs = append(n.Arcs, arc)
	return true
}

// RemoveArcTo drops every arc on n pointing at predecessor, used by
// CycleCleaner when it breaks a cycle (spec §4.F).
func (n *TPNode) RemoveArcTo(predecessor *TPNode) {
	kept := n.Arcs[:0]
	for _, a := range n.Arcs {
		if !a.Predecessor.Stop.Equal(predecessor.Stop) {
			kept = append(kept, a)
		}
	}
	n.Arcs = kept
}

// IsRoot reports whether n has no predecessor arcs, i.e. it is the chain's
// terminal node (spec §3 invariant: every predecessor chain terminates at a
// node with zero outgoing arcs).
func (n *TPNode) IsRoot() bool {
	return len(n.Arcs) == 0
}

// TransferPattern is the per-source DAG collection: one target-anchored
// TPNode per reachable target (spec §3).
type TransferPattern struct {
	Source  Stop
	Targets map[string]*TPNode // keyed by target Stop.Label
}

func NewTransferPattern(source Stop) *TransferPattern {
	return &TransferPattern{Source: source, Targets: map[string]*TPNode{}}
}

func (tp *TransferPattern) TargetNode(target Stop) (*TPNode, bool) {
	n, ok := tp.Targets[target.Label]
	return n, ok
}

// TransferPatternIndex is the top-level served data structure (spec §3,
// §4.G): a per-source TransferPattern map plus the shared
// DirectConnectionIndex that all sources read from.
type TransferPatternIndex struct {
	Patterns   map[string]*TransferPattern // keyed by source Stop.Label
	DirectConn *model.DirectConnectionIndex
}

func NewTransferPatternIndex() *TransferPatternIndex {
	return &TransferPatternIndex{
		Patterns:   map[string]*TransferPattern{},
		DirectConn: model.NewDirectConnectionIndex(),
	}
}

// Insert installs tp as the pattern for its own Source stop.
func (idx *TransferPatternIndex) Insert(tp *TransferPattern) {
	idx.Patterns[tp.Source.Label] = tp
}

// GetTransferPattern returns the target-anchored TPNode for (source,
// target), or ok=false if the source has no known pattern or the target is
// unreachable from it (spec §4.G).
func (idx *TransferPatternIndex) GetTransferPattern(source, target Stop) (*TPNode, bool) {
	tp, ok := idx.Patterns[source.Label]
	if !ok {
		return nil, false
	}
	return tp.TargetNode(target)
}

func (idx *TransferPatternIndex) DirectConnections(from, to Stop) []model.DirectConnection {
	return idx.DirectConn.Connections(from, to)
}
