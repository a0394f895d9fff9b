// Package query implements findJourneys (spec §6): the query-time API that
// wires TransferPatternIndex + TimetableView + StreetRouter through
// PathUnfolder, ConnectionMaterializer and the Pareto filter/sort into a
// ranked list of journeys.
package query

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nextstop-transit/transferpatterns/materialize"
	"github.com/nextstop-transit/transferpatterns/model"
	"github.com/nextstop-transit/transferpatterns/pareto"
	"github.com/nextstop-transit/transferpatterns/streetrouter"
	"github.com/nextstop-transit/transferpatterns/timetable"
	"github.com/nextstop-transit/transferpatterns/tpgraph"
	"github.com/nextstop-transit/transferpatterns/unfold"
)

// ErrVertexNotFound means a requested endpoint carries neither a known
// stop identity nor a usable coordinate (spec §6, §7).
var ErrVertexNotFound = errors.New("query: vertex not found")

// ErrPathNotFound means an endpoint resolved to a coordinate, but no
// transit stop exists near it within the (possibly expanded) walking
// radius (spec §6, §7, §8 invariant 10).
var ErrPathNotFound = errors.New("query: path not found")

// Endpoint identifies one side of a request, either by a known stop label
// or by a raw geographic coordinate (spec §6: "either geo-coordinates or
// stop identities"). A zero Lat/Lon pair counts as no coordinate.
type Endpoint struct {
	StopLabel string
	Lat, Lon  float64
}

func (e Endpoint) hasCoordinate() bool {
	return e.Lat != 0 || e.Lon != 0
}

// Request is one findJourneys call (spec §6).
type Request struct {
	From, To              Endpoint
	DepartAtEpochSecs     int64
	MaxWalkDistanceMeters float64
}

// radiusStagesMeters implements spec §8 invariant 10's two-stage fallback:
// 30m, then the request's own maxWalkDistance, then 1.5x that.
func radiusStagesMeters(maxWalkDistance float64) []float64 {
	return []float64{30, maxWalkDistance, 1.5 * maxWalkDistance}
}

// Engine answers findJourneys calls against one built TransferPatternIndex
// (spec §6 "Query API (in-process)").
type Engine struct {
	Index      *tpgraph.TransferPatternIndex
	View       timetable.View
	ServiceDay timetable.ServiceDay

	Materializer *materialize.Materializer

	stopsByLabel map[string]model.Stop
	allStops     []model.Stop
}

func NewEngine(index *tpgraph.TransferPatternIndex, view timetable.View, router streetrouter.Router, serviceDay timetable.ServiceDay) *Engine {
	stops := view.Stops()
	byLabel := make(map[string]model.Stop, len(stops))
	for _, s := range stops {
		byLabel[s.Label] = s
	}

	return &Engine{
		Index:      index,
		View:       view,
		ServiceDay: serviceDay,
		Materializer: &materialize.Materializer{
			View:   view,
			Router: router,
			Index:  index,
		},
		stopsByLabel: byLabel,
		allStops:     stops,
	}
}

// Journey wraps a materialized journey with enough context to implement
// pareto.Journey (spec §4.K), so the same filter/sort can serve both the
// static fixtures pareto is tested with and real query results.
type Journey struct {
	*materialize.Journey
	ServiceDay timetable.ServiceDay
}

func (j *Journey) DepartureTime() time.Time { return j.ServiceDay.Time(j.Journey.DepartSecs) }
func (j *Journey) ArrivalTime() time.Time   { return j.ServiceDay.Time(j.Journey.ArriveSecs) }

// FindJourneys answers one request (spec §6): resolve both endpoints to
// candidate transit stops, look up every (source, target) transfer
// pattern, unfold and materialize each candidate path, then Pareto-filter
// and sort (spec §4.I/§4.J/§4.K).
func (e *Engine) FindJourneys(req Request) ([]*Journey, error) {
	if req.From.StopLabel == "" && !req.From.hasCoordinate() {
		return nil, fmt.Errorf("%w: from", ErrVertexNotFound)
	}
	if req.To.StopLabel == "" && !req.To.hasCoordinate() {
		return nil, fmt.Errorf("%w: to", ErrVertexNotFound)
	}

	fromStops, err := e.candidateStops(req.From, req.MaxWalkDistanceMeters)
	if err != nil {
		return nil, err
	}
	toStops, err := e.candidateStops(req.To, req.MaxWalkDistanceMeters)
	if err != nil {
		return nil, err
	}

	requestStart := e.requestStop(req.From)
	requestEnd := e.requestStop(req.To)
	departSecs := int(req.DepartAtEpochSecs - e.ServiceDay.Midnight.Unix())

	var journeys []*Journey
	for _, source := range fromStops {
		for _, target := range toStops {
			node, ok := e.Index.GetTransferPattern(source, target)
			if !ok {
				continue
			}
			for _, legs := range unfold.Paths(node) {
				j, err := e.Materializer.Materialize(legs, requestStart, requestEnd, departSecs, e.ServiceDay)
				if err != nil {
					// spec §7: a materialization rejection drops
					// only this candidate journey.
					continue
				}
				journeys = append(journeys, &Journey{Journey: j, ServiceDay: e.ServiceDay})
			}
		}
	}

	if len(journeys) == 0 {
		return nil, nil
	}

	filtered := pareto.Filter(journeys)
	pareto.Sort(filtered)
	return filtered, nil
}

// candidateStops resolves an endpoint to one or more transit stops (spec
// §6, §8 invariant 10). A direct stop-label endpoint resolves to exactly
// that stop or fails with ErrVertexNotFound; a coordinate endpoint expands
// through the radius stages until it finds at least one stop or
// exhausts them, failing with ErrPathNotFound.
func (e *Engine) candidateStops(ep Endpoint, maxWalkDistance float64) ([]model.Stop, error) {
	if ep.StopLabel != "" {
		stop, ok := e.stopsByLabel[ep.StopLabel]
		if !ok {
			return nil, fmt.Errorf("%w: stop %q", ErrVertexNotFound, ep.StopLabel)
		}
		return []model.Stop{stop}, nil
	}

	for _, radius := range radiusStagesMeters(maxWalkDistance) {
		var found []model.Stop
		for _, s := range e.allStops {
			if streetrouter.HaversineDistanceMeters(ep.Lat, ep.Lon, s.Lat, s.Lon) <= radius {
				found = append(found, s)
			}
		}
		if len(found) > 0 {
			sort.Slice(found, func(i, j int) bool {
				return streetrouter.HaversineDistanceMeters(ep.Lat, ep.Lon, found[i].Lat, found[i].Lon) <
					streetrouter.HaversineDistanceMeters(ep.Lat, ep.Lon, found[j].Lat, found[j].Lon)
			})
			return found, nil
		}
	}
	return nil, ErrPathNotFound
}

// requestStop returns the exact point ConnectionMaterializer should
// attach walking legs to/from: the real stop for a stop-identity
// endpoint, or a synthetic coordinate-only Stop otherwise.
func (e *Engine) requestStop(ep Endpoint) model.Stop {
	if ep.StopLabel != "" {
		if s, ok := e.stopsByLabel[ep.StopLabel]; ok {
			return s
		}
	}
	return model.Stop{Label: fmt.Sprintf("geo:%f,%f", ep.Lat, ep.Lon), Lat: ep.Lat, Lon: ep.Lon}
}
