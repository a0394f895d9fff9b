// Package build implements the Builder Orchestrator (spec §4.L, §5): it
// partitions stops into chunks, drives OneToAllSearch + the editor per
// source and delay scenario, runs CycleCleaner, and hands chunks off to
// ChunkMerger.
package build

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nextstop-transit/transferpatterns/cyclecleaner"
	"github.com/nextstop-transit/transferpatterns/delayscenario"
	"github.com/nextstop-transit/transferpatterns/editor"
	"github.com/nextstop-transit/transferpatterns/merge"
	"github.com/nextstop-transit/transferpatterns/model"
	"github.com/nextstop-transit/transferpatterns/search"
	"github.com/nextstop-transit/transferpatterns/streetrouter"
	"github.com/nextstop-transit/transferpatterns/timetable"
	"github.com/nextstop-transit/transferpatterns/tpgraph"
)

// Config is the builder's fixed parameters (spec §4.D, §4.L).
type Config struct {
	MaxTransfers          int
	MaxWalkDistanceMeters float64

	// MinSampleGapSecs thins a source's departure-time samples so
	// consecutive ones are at least this far apart (spec §4.L step
	// 2.a: "30 minutes").
	MinSampleGapSecs int

	// DelayPolicy chooses which DelayScenarios get probed (spec §4.C).
	DelayPolicy delayscenario.Builder

	TransitDwellSecs int
}

// DefaultConfig matches the fixed parameters spec §4.D calls out.
func DefaultConfig() Config {
	return Config{
		MaxTransfers:          2,
		MaxWalkDistanceMeters: 500,
		MinSampleGapSecs:      30 * 60,
		DelayPolicy:           delayscenario.Simple{},
	}
}

// Orchestrator drives one build (spec §4.L). One Orchestrator is reused
// across all chunks of a single build invocation.
type Orchestrator struct {
	View   timetable.View
	Router streetrouter.Router
	Config Config

	// ServiceDay is the single calendar day this build targets. A
	// multi-day build runs one Orchestrator per service day.
	ServiceDay timetable.ServiceDay

	// RunID correlates log lines from every chunk worker of one build
	// invocation (SPEC_FULL.md DOMAIN STACK).
	RunID string
}

func NewOrchestrator(view timetable.View, router streetrouter.Router, cfg Config, day timetable.ServiceDay) *Orchestrator {
	return &Orchestrator{View: view, Router: router, Config: cfg, ServiceDay: day, RunID: uuid.NewString()}
}

// BuildChunk runs step 2 of spec §4.L for the stop partition
// `[total*(n-1)/m, total*n/m)`. Spec §5 models chunks as running in
// separate worker processes, each with its own copy of the View, so that
// Overlay.Set/Clear between searches is never contended. BuildChunk itself
// assumes nothing about process boundaries, but it is NOT safe to call
// concurrently for distinct (n, m) pairs sharing one Orchestrator/View:
// buildSource mutates o.View.Overlay() with no locking, matching the
// spec's "writes to it happen strictly between searches" invariant, which
// only holds if calls are serialized. Run one Orchestrator (and its View)
// per OS process for true chunk parallelism, or see BuildAndWriteChunks
// for the in-process fallback.
func (o *Orchestrator) BuildChunk(n, m int) (*tpgraph.Chunk, error) {
	allStops := sortedByIndex(o.View.Stops())
	subset := stopRange(allStops, n, m)

	fmt.Printf("[build %s] chunk %d/%d: %d source stops\n", o.RunID, n, m, len(subset))

	footpaths := search.BuildFootpathTable(allStops, o.Router, o.Config.MaxWalkDistanceMeters)
	engine := search.NewEngine(o.View, footpaths, o.Config.MaxTransfers)
	stopByLabel := stopIndex(allStops)

	patterns := make([]*tpgraph.TransferPattern, 0, len(subset))
	for _, source := range subset {
		tp := o.buildSource(engine, source, allStops, stopByLabel)

		// Each source's DAG is independent of every other source's;
		// running CycleCleaner as soon as a DAG is finished is
		// equivalent to running it "after all chunks complete" (spec
		// §4.L step 3) since no cross-source edges exist.
		cyclecleaner.Clean(tp)
		patterns = append(patterns, tp)
	}

	chunk := &tpgraph.Chunk{N: n, M: m, Patterns: patterns}
	if n == 1 {
		// Only chunk 1 builds the DirectConnectionIndex (spec §4.H),
		// so it alone needs the full stop/pattern universe to seed
		// the merge accumulator every later chunk canonicalizes
		// against.
		chunk.Stops = allStops
		chunk.TripPatterns = o.View.TripPatterns()
		chunk.HasDirectConnections = true
	} else {
		stops, pats := collectReferences(patterns)
		chunk.Stops = mapStopValues(stops)
		chunk.TripPatterns = mapPatternValues(pats)
	}

	return chunk, nil
}

// buildSource runs spec §4.L step 2: the static pass over every departure
// sample, then one rerun per DelayScenario derived from the observed
// waits.
func (o *Orchestrator) buildSource(engine *search.Engine, source model.Stop, allStops []model.Stop, stopByLabel map[string]model.Stop) *tpgraph.TransferPattern {
	ed := editor.New(source)
	samples := departureSamples(o.View, source, o.Config.MinSampleGapSecs)

	o.View.Overlay().Clear()
	for _, sample := range samples {
		states := engine.ShortestPathsFrom(source, sample, o.ServiceDay, allStops)
		ed.Add(states, stopByLabel, nil)
	}

	for _, scenario := range o.Config.DelayPolicy.Build(ed.GetPossibleDelays()) {
		o.installOverlay(scenario)
		for _, sample := range samples {
			states := engine.ShortestPathsFrom(source, sample, o.ServiceDay, allStops)
			ed.Add(states, stopByLabel, scenario)
		}
		o.View.Overlay().Clear()
	}

	return ed.Create()
}

// installOverlay synthesizes a uniformly-delayed timetable for every
// pattern the scenario names and installs it as the realtime overlay
// (spec §4.L step 2.d, §9 "global mutable overlay").
func (o *Orchestrator) installOverlay(scenario *model.DelayScenario) {
	for _, delay := range scenario.Delays {
		o.View.Overlay().Set(delay.Pattern, o.ServiceDay, shiftTimetable(delay.Pattern.Timetable, delay.MinDelaySecs))
	}
}

func shiftTimetable(tt model.Timetable, delaySecs int) model.Timetable {
	d := time.Duration(delaySecs) * time.Second
	shifted := model.Timetable{Trips: make([]model.TripTimes, len(tt.Trips))}
	for i, trip := range tt.Trips {
		arr := make([]time.Duration, len(trip.Arrivals))
		dep := make([]time.Duration, len(trip.Departures))
		for j := range trip.Arrivals {
			arr[j] = trip.Arrivals[j] + d
		}
		for j := range trip.Departures {
			dep[j] = trip.Departures[j] + d
		}
		shifted.Trips[i] = model.TripTimes{TripID: trip.TripID, ServiceID: trip.ServiceID, Arrivals: arr, Departures: dep}
	}
	return shifted
}

// departureSamples implements spec §4.L step 2.a: every scheduled
// departure from stop, deduplicated, sorted, then thinned so consecutive
// samples are at least minGapSecs apart.
func departureSamples(view timetable.View, stop model.Stop, minGapSecs int) []int {
	deps := view.ScheduledDepartures(stop)
	seen := map[int]bool{}
	secs := make([]int, 0, len(deps))
	for _, d := range deps {
		if !seen[d.DepartureSeconds] {
			seen[d.DepartureSeconds] = true
			secs = append(secs, d.DepartureSeconds)
		}
	}
	sort.Ints(secs)

	if minGapSecs <= 0 {
		return secs
	}

	var out []int
	last := -1 << 31
	for _, s := range secs {
		if s-last >= minGapSecs {
			out = append(out, s)
			last = s
		}
	}
	return out
}

func sortedByIndex(stops []model.Stop) []model.Stop {
	out := append([]model.Stop{}, stops...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// stopRange implements spec §4.H's build-time partitioning: stops sorted
// by dense index, split into m equal contiguous ranges, chunk n takes
// `[total*(n-1)/m, total*n/m)`.
func stopRange(sorted []model.Stop, n, m int) []model.Stop {
	total := len(sorted)
	start := total * (n - 1) / m
	end := total * n / m
	return sorted[start:end]
}

func stopIndex(stops []model.Stop) map[string]model.Stop {
	m := make(map[string]model.Stop, len(stops))
	for _, s := range stops {
		m[s.Label] = s
	}
	return m
}

// collectReferences walks every TPNode/TPArc reachable from patterns and
// returns every Stop and (scenario-attached) TripPattern referenced, for a
// non-chunk-1 worker's own copy set (spec §4.H: "each chunk was built
// against its own copies of Stop and TripPattern").
func collectReferences(patterns []*tpgraph.TransferPattern) (map[string]model.Stop, map[string]*model.TripPattern) {
	stops := map[string]model.Stop{}
	pats := map[string]*model.TripPattern{}
	visited := map[*tpgraph.TPNode]bool{}

	var walk func(n *tpgraph.TPNode)
	walk = func(n *tpgraph.TPNode) {
		if visited[n] {
			return
		}
		visited[n] = true
		stops[n.Stop.Label] = n.Stop
		for _, arc := range n.Arcs {
			if arc.Scenario != nil {
				for _, d := range arc.Scenario.Delays {
					pats[d.Pattern.Code] = d.Pattern
				}
			}
			walk(arc.Predecessor)
		}
	}

	for _, tp := range patterns {
		stops[tp.Source.Label] = tp.Source
		for _, node := range tp.Targets {
			walk(node)
		}
	}
	return stops, pats
}

func mapStopValues(m map[string]model.Stop) []model.Stop {
	out := make([]model.Stop, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	return out
}

func mapPatternValues(m map[string]*model.TripPattern) []*model.TripPattern {
	out := make([]*model.TripPattern, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	return out
}

// BuildAndWriteChunks runs every chunk of a build and writes each to dir.
// Spec §5's parallel model is one worker process per chunk, each with its
// own View copy; this in-process entry point instead shares one
// Orchestrator, and one View, across every chunk, so chunks are built
// strictly sequentially here. Running them concurrently would race on the
// shared, unlocked Overlay that buildSource mutates between searches (see
// BuildChunk's doc comment). Real chunk parallelism in this system comes
// from separate `tpbuild build --chunk n` process invocations, each
// constructing its own Orchestrator/View; this method is the
// single-process convenience path ("build every chunk"). If a chunk
// fails, the first error is returned and no further chunks are attempted
// (spec §4.L: "any worker failure" is a non-zero exit).
func (o *Orchestrator) BuildAndWriteChunks(ctx context.Context, m int, dir string) error {
	for n := 1; n <= m; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunk, err := o.BuildChunk(n, m)
		if err != nil {
			return fmt.Errorf("build chunk %d/%d: %w", n, m, err)
		}
		path := filepath.Join(dir, tpgraph.ChunkFileName(n, m))
		if err := tpgraph.WriteChunk(path, chunk); err != nil {
			return fmt.Errorf("write chunk %d/%d: %w", n, m, err)
		}
	}
	return nil
}

// MergeChunks implements ChunkMerger's driving loop (spec §4.H): read
// every chunk_n_of_m file under dir in order (chunk 1 first, to seed the
// canonical reference set) and fold it into a single merged index.
// Partial chunks MUST NOT be merged (spec §5 "Cancellation") — callers
// should only invoke this once every BuildAndWriteChunks call has
// succeeded.
func MergeChunks(dir string, m int) (*merge.Accumulator, error) {
	acc := merge.NewAccumulator()
	for n := 1; n <= m; n++ {
		path := filepath.Join(dir, tpgraph.ChunkFileName(n, m))
		chunk, err := tpgraph.ReadChunk(path)
		if err != nil {
			return nil, fmt.Errorf("merge: reading chunk %d/%d: %w", n, m, err)
		}
		if err := acc.MergeChunk(chunk); err != nil {
			return nil, fmt.Errorf("merge: chunk %d/%d: %w", n, m, err)
		}
		// The previous chunk's in-memory graph is discarded once
		// canonicalized (spec §5 "Memory"); chunk goes out of scope
		// here and is collected.
	}
	return acc, nil
}
