// Package delayscenario implements the DelayScenarioBuilder collaborator
// (spec §4.C): turns the set of (trip pattern, observed max wait) pairs
// collected during static construction into a bounded family of
// DelayScenarios to probe.
package delayscenario

import (
	"math/rand/v2"
	"sort"

	"github.com/nextstop-transit/transferpatterns/model"
)

// Builder is the single-method contract shared by every policy (spec §9
// "Dispatch over policies"), mirrored on the pack's preference for small,
// one-method collaborator interfaces (storage.Storage, downloader.Downloader).
type Builder interface {
	Build(observedMaxWait map[*model.TripPattern]int) []*model.DelayScenario
}

// sortedPatterns returns the patterns of observedMaxWait in a deterministic
// order (by code), so policies produce order-independent results across
// runs for the same input, matching spec §5's determinism goal.
func sortedPatterns(observedMaxWait map[*model.TripPattern]int) []*model.TripPattern {
	patterns := make([]*model.TripPattern, 0, len(observedMaxWait))
	for p := range observedMaxWait {
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].Code < patterns[j].Code
	})
	return patterns
}

// None never probes any delay scenario.
type None struct{}

func (None) Build(map[*model.TripPattern]int) []*model.DelayScenario {
	return []*model.DelayScenario{}
}

// Simple produces one scenario per input entry, delaying exactly one
// pattern by observedMaxWaitSeconds+1 — the +1 ensures the currently-chosen
// trip is missed under the scenario (spec §4.C).
type Simple struct{}

func (Simple) Build(observedMaxWait map[*model.TripPattern]int) []*model.DelayScenario {
	scenarios := []*model.DelayScenario{}
	for _, p := range sortedPatterns(observedMaxWait) {
		scenarios = append(scenarios, &model.DelayScenario{
			Delays: []model.PatternDelay{{Pattern: p, MinDelaySecs: observedMaxWait[p] + 1}},
		})
	}
	return scenarios
}

// RestrictedSimple is Simple, uniformly downsampled to at most K scenarios
// via a randomized selection (spec §4.C).
type RestrictedSimple struct {
	K    int
	Rand *rand.Rand // nil uses a fixed-seed PCG source, so results repeat across runs
}

func (r RestrictedSimple) Build(observedMaxWait map[*model.TripPattern]int) []*model.DelayScenario {
	all := Simple{}.Build(observedMaxWait)
	if r.K <= 0 || len(all) <= r.K {
		return all
	}

	rnd := r.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(1, 2))
	}

	indices := make([]int, len(all))
	for i := range indices {
		indices[i] = i
	}
	rnd.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	indices = indices[:r.K]
	sort.Ints(indices)

	picked := make([]*model.DelayScenario, 0, r.K)
	for _, i := range indices {
		picked = append(picked, all[i])
	}
	return picked
}

// PowerSet produces every non-empty subset of size 1..K of the input
// patterns, each entry delayed by its recorded value+1 (spec §4.C).
type PowerSet struct {
	K int
}

func (ps PowerSet) Build(observedMaxWait map[*model.TripPattern]int) []*model.DelayScenario {
	patterns := sortedPatterns(observedMaxWait)
	maxSize := ps.K
	if maxSize <= 0 || maxSize > len(patterns) {
		maxSize = len(patterns)
	}

	scenarios := []*model.DelayScenario{}
	var subsets func(start int, current []*model.TripPattern)
	subsets = func(start int, current []*model.TripPattern) {
		if len(current) > 0 {
			delays := make([]model.PatternDelay, len(current))
			for i, p := range current {
				delays[i] = model.PatternDelay{Pattern: p, MinDelaySecs: observedMaxWait[p] + 1}
			}
			scenarios = append(scenarios, &model.DelayScenario{Delays: delays})
		}
		if len(current) == maxSize {
			return
		}
		for i := start; i < len(patterns); i++ {
			subsets(i+1, append(current, patterns[i]))
		}
	}
	subsets(0, nil)

	return scenarios
}
