package timetable

import (
	"sort"

	"github.com/nextstop-transit/transferpatterns/model"
)

// MemoryView is an in-memory TimetableView over a fixed set of stops and
// trip patterns, built once at load time and immutable thereafter (aside
// from its Overlay). Grounded on storage/memory.go's map-of-maps,
// no-locking-because-immutable-after-load style.
type MemoryView struct {
	stops    []model.Stop
	patterns []*model.TripPattern

	departuresByStop map[string][]ScheduledDeparture
	overlay          *Overlay
}

func NewMemoryView(stops []model.Stop, patterns []*model.TripPattern) *MemoryView {
	v := &MemoryView{
		stops:            stops,
		patterns:         patterns,
		departuresByStop: map[string][]ScheduledDeparture{},
		overlay:          NewOverlay(),
	}

	for _, p := range patterns {
		for pos, stop := range p.Stops {
			if pos == len(p.Stops)-1 {
				// Last stop of a pattern is not a boardable
				// departure.
				continue
			}
			for _, trip := range p.Timetable.Trips {
				v.departuresByStop[stop.Label] = append(v.departuresByStop[stop.Label], ScheduledDeparture{
					Pattern:          p,
					StopPos:          pos,
					DepartureSeconds: int(trip.Departures[pos].Seconds()),
				})
			}
		}
	}

	for _, deps := range v.departuresByStop {
		sort.Slice(deps, func(i, j int) bool {
			return deps[i].DepartureSeconds < deps[j].DepartureSeconds
		})
	}

	return v
}

func (v *MemoryView) Stops() []model.Stop                { return v.stops }
func (v *MemoryView) TripPatterns() []*model.TripPattern { return v.patterns }
func (v *MemoryView) Overlay() *Overlay                  { return v.overlay }

func (v *MemoryView) ScheduledDepartures(stop model.Stop) []ScheduledDeparture {
	return v.departuresByStop[stop.Label]
}

func (v *MemoryView) TimetableFor(pattern *model.TripPattern, serviceDay ServiceDay) model.Timetable {
	if tt, ok := v.overlay.Lookup(pattern, serviceDay); ok {
		return tt
	}
	return pattern.Timetable
}

func (v *MemoryView) NextTrip(pattern *model.TripPattern, fromPos int, earliestDepartSecs int, serviceDay ServiceDay) (model.TripTimes, ServiceDay, bool) {
	tt := v.TimetableFor(pattern, serviceDay)

	var best *model.TripTimes
	for i := range tt.Trips {
		trip := tt.Trips[i]
		if fromPos >= len(trip.Departures) {
			continue
		}
		depart := int(trip.Departures[fromPos].Seconds())
		if depart < earliestDepartSecs {
			continue
		}
		if best == nil || depart < int(best.Departures[fromPos].Seconds()) {
			best = &trip
		}
	}

	if best == nil {
		return model.TripTimes{}, serviceDay, false
	}
	return *best, serviceDay, true
}
