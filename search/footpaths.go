package search

import (
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nextstop-transit/transferpatterns/model"
	"github.com/nextstop-transit/transferpatterns/streetrouter"
)

// Footpath is a precomputed walking edge between two stops, within the
// search's configured maximum walk distance (spec §4.D: "maximum walk
// distance 500m").
type Footpath struct {
	To       model.Stop
	Duration time.Duration
}

// FootpathTable precomputes, for every stop, the set of other stops
// reachable by walking within maxDistanceMeters. Built once and shared
// across every per-source search in a build (spec §5's "coarse-grained
// parallel" build reuses one TimetableView/StreetRouter per worker), the
// way RAPTOR-family planners precompute a footpath/transfers table instead
// of calling the street router per search.
type FootpathTable struct {
	byStop map[string][]Footpath
}

// BuildFootpathTable computes every stop's footpaths concurrently, bounded
// by a worker pool (golang.org/x/sync/errgroup), since the all-pairs
// Haversine prefilter plus StreetRouter.Walk calls this runs are pure reads
// against stops/router. Unlike the per-source build loop in package build,
// nothing here touches the mutable realtime overlay, so concurrent calls
// are safe. Each goroutine owns one "from" stop's output slot; the shared
// byStop map is only written after every goroutine has finished, so there
// is no concurrent map write.
func BuildFootpathTable(stops []model.Stop, router streetrouter.Router, maxDistanceMeters float64) *FootpathTable {
	now := time.Time{}
	results := make([][]Footpath, len(stops))

	var g errgroup.Group
	g.SetLimit(16)
	for i, from := range stops {
		i, from := i, from
		g.Go(func() error {
			var fps []Footpath
			for _, to := range stops {
				if from.Equal(to) {
					continue
				}
				if streetrouter.HaversineDistanceMeters(from.Lat, from.Lon, to.Lat, to.Lon) > maxDistanceMeters {
					continue
				}
				path, ok := router.Walk(from, to, now)
				if !ok {
					continue
				}
				fps = append(fps, Footpath{To: to, Duration: path.Duration()})
			}
			sort.Slice(fps, func(a, b int) bool { return fps[a].Duration < fps[b].Duration })
			results[i] = fps
			return nil
		})
	}
	_ = g.Wait() // goroutines above never return an error

	t := &FootpathTable{byStop: map[string][]Footpath{}}
	for i, from := range stops {
		if len(results[i]) > 0 {
			t.byStop[from.Label] = results[i]
		}
	}
	return t
}

func (t *FootpathTable) From(stop model.Stop) []Footpath {
	return t.byStop[stop.Label]
}
