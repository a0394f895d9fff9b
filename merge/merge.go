// Package merge implements ChunkMerger (spec §4.H): it folds per-worker
// chunk indices into a single TransferPatternIndex, canonicalizing every
// Stop/TripPattern reference against the first chunk's copies.
package merge

import (
	"fmt"

	"github.com/nextstop-transit/transferpatterns/model"
	"github.com/nextstop-transit/transferpatterns/tpgraph"
)

// ErrUnknownStop is returned when an incoming chunk references a stop label
// the accumulator has never seen — a fatal build error (spec §4.H, §7).
type ErrUnknownStop struct{ Label string }

func (e *ErrUnknownStop) Error() string { return fmt.Sprintf("merge: unknown stop %q", e.Label) }

// ErrUnknownTripPattern is returned when an incoming chunk references a
// trip-pattern code the accumulator has never seen.
type ErrUnknownTripPattern struct{ Code string }

func (e *ErrUnknownTripPattern) Error() string {
	return fmt.Sprintf("merge: unknown trip pattern %q", e.Code)
}

// Accumulator is the merged index under construction. Stops and
// TripPatterns registered via the first chunk become the canonical copies
// every later chunk's references are rewritten against (spec §4.H).
type Accumulator struct {
	index *tpgraph.TransferPatternIndex

	stopsByLabel    map[string]model.Stop
	patternsByCode  map[string]*model.TripPattern
	seeded          bool
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		index:          tpgraph.NewTransferPatternIndex(),
		stopsByLabel:   map[string]model.Stop{},
		patternsByCode: map[string]*model.TripPattern{},
	}
}

// MergeChunk folds c into the accumulator. The first chunk merged becomes
// the canonical reference set (spec §4.H: "the equivalent Stop in the
// first chunk"); every subsequent chunk's Stop/TripPattern references are
// looked up against it and must already exist.
func (a *Accumulator) MergeChunk(c *tpgraph.Chunk) error {
	if !a.seeded {
		for _, s := range c.Stops {
			a.stopsByLabel[s.Label] = s
		}
		for _, p := range c.TripPatterns {
			a.patternsByCode[p.Code] = p
		}
		a.seeded = true
	} else {
		for _, s := range c.Stops {
			if _, ok := a.stopsByLabel[s.Label]; !ok {
				return &ErrUnknownStop{Label: s.Label}
			}
		}
		for _, p := range c.TripPatterns {
			if _, ok := a.patternsByCode[p.Code]; !ok {
				return &ErrUnknownTripPattern{Code: p.Code}
			}
		}
	}

	for _, tp := range c.Patterns {
		canonical, err := a.canonicalizePattern(tp)
		if err != nil {
			return err
		}
		a.index.Insert(canonical)
	}

	if c.HasDirectConnections {
		for _, p := range c.TripPatterns {
			canonicalPattern, ok := a.patternsByCode[p.Code]
			if !ok {
				return &ErrUnknownTripPattern{Code: p.Code}
			}
			a.index.DirectConn.Add(canonicalPattern)
		}
	}

	return nil
}

// canonicalizePattern rewrites every Stop/TripPattern reference reachable
// from tp against the accumulator's canonical copies. The merge walks
// every TPNode and TPArc exactly once (spec §4.H); chunks are disjoint by
// source stop so no arc-level dedup is needed.
func (a *Accumulator) canonicalizePattern(tp *tpgraph.TransferPattern) (*tpgraph.TransferPattern, error) {
	source, ok := a.stopsByLabel[tp.Source.Label]
	if !ok {
		return nil, &ErrUnknownStop{Label: tp.Source.Label}
	}

	canonical := tpgraph.NewTransferPattern(source)
	seen := map[*tpgraph.TPNode]*tpgraph.TPNode{}

	for label, node := range tp.Targets {
		canonicalNode, err := a.canonicalizeNode(node, seen)
		if err != nil {
			return nil, err
		}
		canonical.Targets[label] = canonicalNode
	}
	return canonical, nil
}

func (a *Accumulator) canonicalizeNode(node *tpgraph.TPNode, seen map[*tpgraph.TPNode]*tpgraph.TPNode) (*tpgraph.TPNode, error) {
	if n, ok := seen[node]; ok {
		return n, nil
	}

	stop, ok := a.stopsByLabel[node.Stop.Label]
	if !ok {
		return nil, &ErrUnknownStop{Label: node.Stop.Label}
	}

	canonicalNode := tpgraph.NewTPNode(stop)
	seen[node] = canonicalNode

	for _, arc := range node.Arcs {
		canonicalPred, err := a.canonicalizeNode(arc.Predecessor, seen)
		if err != nil {
			return nil, err
		}

		scenario, err := a.canonicalizeScenario(arc.Scenario)
		if err != nil {
			return nil, err
		}

		canonicalNode.Arcs = append(canonicalNode.Arcs, tpgraph.TPArc{
			Predecessor: canonicalPred,
			WalkingLeg:  arc.WalkingLeg,
			Scenario:    scenario,
		})
	}

	return canonicalNode, nil
}

func (a *Accumulator) canonicalizeScenario(s *model.DelayScenario) (*model.DelayScenario, error) {
	if s == nil {
		return nil, nil
	}
	delays := make([]model.PatternDelay, len(s.Delays))
	for i, d := range s.Delays {
		pattern, ok := a.patternsByCode[d.Pattern.Code]
		if !ok {
			return nil, &ErrUnknownTripPattern{Code: d.Pattern.Code}
		}
		delays[i] = model.PatternDelay{Pattern: pattern, MinDelaySecs: d.MinDelaySecs}
	}
	return &model.DelayScenario{Delays: delays}, nil
}

// Index returns the merged TransferPatternIndex built so far.
func (a *Accumulator) Index() *tpgraph.TransferPatternIndex {
	return a.index
}

// Stops returns the canonical stop set seeded from the first chunk.
func (a *Accumulator) Stops() []model.Stop {
	out := make([]model.Stop, 0, len(a.stopsByLabel))
	for _, s := range a.stopsByLabel {
		out = append(out, s)
	}
	return out
}

// TripPatterns returns the canonical trip-pattern set seeded from the
// first chunk.
func (a *Accumulator) TripPatterns() []*model.TripPattern {
	out := make([]*model.TripPattern, 0, len(a.patternsByCode))
	for _, p := range a.patternsByCode {
		out = append(out, p)
	}
	return out
}
