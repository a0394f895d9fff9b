// Package streetrouter defines the StreetRouter collaborator interface
// (spec §4.B): a deterministic walking path search over a street graph the
// core never owns (spec §1 Non-goals: "the core does not own street
// geometry").
package streetrouter

import (
	"time"

	"github.com/nextstop-transit/transferpatterns/model"
)

// Path is a walking path between two points. The core only needs its
// duration and, derived from that, its end time.
type Path interface {
	Duration() time.Duration
}

// Router computes a walking path between two geographic points at a given
// start time. Implementations must be deterministic for fixed inputs (spec
// §4.B) and are expected to be either thread-safe or invoked with a
// request-scoped instance (spec §5 — this is the router's contract, not
// the core's concern).
type Router interface {
	Walk(from, to model.Stop, departAt time.Time) (Path, bool)
}

type simplePath struct {
	duration time.Duration
}

func (p simplePath) Duration() time.Duration { return p.duration }

// HaversineRouter is a straight-line stand-in for a real street-network
// router, grounded on storage/util.go's HaversineDistance. It is the
// minimal real implementation needed to exercise ConnectionMaterializer
// (spec §4.J) end to end; a production deployment supplies its own Router
// backed by an actual street graph.
type HaversineRouter struct {
	// WalkSpeedMetersPerSecond is the assumed walking speed. GTFS
	// routing tools commonly default to ~1.3 m/s; that's used here too.
	WalkSpeedMetersPerSecond float64

	// MaxDistanceMeters bounds how far apart two points may be for a
	// walk to be considered feasible at all. Zero means unbounded.
	MaxDistanceMeters float64
}

func NewHaversineRouter(maxDistanceMeters float64) *HaversineRouter {
	return &HaversineRouter{
		WalkSpeedMetersPerSecond: 1.3,
		MaxDistanceMeters:        maxDistanceMeters,
	}
}

func (r *HaversineRouter) Walk(from, to model.Stop, departAt time.Time) (Path, bool) {
	distance := HaversineDistanceMeters(from.Lat, from.Lon, to.Lat, to.Lon)
	if r.MaxDistanceMeters > 0 && distance > r.MaxDistanceMeters {
		return nil, false
	}

	speed := r.WalkSpeedMetersPerSecond
	if speed <= 0 {
		speed = 1.3
	}

	return simplePath{duration: time.Duration(distance/speed) * time.Second}, true
}
