// Package timetable defines the TimetableView collaborator interface (spec
// §4.A): read-only access to stops, trip patterns, scheduled times and a
// realtime overlay. The core never parses a timetable format itself; it
// only consumes this interface.
package timetable

import (
	"time"

	"github.com/nextstop-transit/transferpatterns/model"
)

// ServiceDay identifies the calendar day a trip runs on, as a
// "YYYYMMDD"-style label. The core treats it as opaque beyond equality and
// the ability to turn a seconds-since-midnight offset into a wall-clock
// time via Time().
type ServiceDay struct {
	Label    string
	Midnight time.Time
}

func (d ServiceDay) Time(secs int) time.Time {
	return d.Midnight.Add(time.Duration(secs) * time.Second)
}

// ScheduledDeparture is one (pattern, position, departure) triple returned
// by View.ScheduledDepartures, used by the Builder Orchestrator to sample
// departure times for a source stop (spec §4.L step 2.a).
type ScheduledDeparture struct {
	Pattern          *model.TripPattern
	StopPos          int
	DepartureSeconds int
}

// View is the TimetableView collaborator (spec §4.A).
type View interface {
	Stops() []model.Stop
	TripPatterns() []*model.TripPattern

	// ScheduledDepartures returns every (pattern, position, departure)
	// triple for stop, across all patterns visiting it.
	ScheduledDepartures(stop model.Stop) []ScheduledDeparture

	// NextTrip returns the TripTimes of the first run of pattern
	// departing fromPos no earlier than earliestDepartSecs on
	// serviceDay, or ok=false if none exists.
	NextTrip(pattern *model.TripPattern, fromPos int, earliestDepartSecs int, serviceDay ServiceDay) (times model.TripTimes, resolvedDay ServiceDay, ok bool)

	// TimetableFor returns the realtime-overlayed timetable for pattern
	// on serviceDay if the overlay has one, otherwise the scheduled
	// timetable.
	TimetableFor(pattern *model.TripPattern, serviceDay ServiceDay) model.Timetable

	// Overlay exposes the mutable overlay slot the builder installs
	// between searches (spec §4.A, §9). At query time it is read-only
	// and externally managed.
	Overlay() *Overlay
}

// Overlay is a synthesized perturbation of zero or more trip patterns'
// timetables, installed on the View during build (spec §4.A, §9) or
// produced from a real GTFS-rt feed at serving time (see realtimefeed).
//
// It is a process-wide mutable slot only during build; at query time
// callers must not mutate it concurrently with in-flight requests (spec §5
// "Ordering guarantees").
type Overlay struct {
	timetables map[string]map[string]model.Timetable // pattern code -> service day -> timetable
}

func NewOverlay() *Overlay {
	return &Overlay{timetables: map[string]map[string]model.Timetable{}}
}

// Set installs an overlayed timetable for pattern on serviceDay.
func (o *Overlay) Set(pattern *model.TripPattern, serviceDay ServiceDay, tt model.Timetable) {
	if o.timetables[pattern.Code] == nil {
		o.timetables[pattern.Code] = map[string]model.Timetable{}
	}
	o.timetables[pattern.Code][serviceDay.Label] = tt
}

// Clear removes every overlayed timetable, reverting to scheduled service.
func (o *Overlay) Clear() {
	o.timetables = map[string]map[string]model.Timetable{}
}

// Lookup returns the overlayed timetable for pattern on serviceDay, if any.
func (o *Overlay) Lookup(pattern *model.TripPattern, serviceDay ServiceDay) (model.Timetable, bool) {
	if o == nil {
		return model.Timetable{}, false
	}
	byDay, found := o.timetables[pattern.Code]
	if !found {
		return model.Timetable{}, false
	}
	tt, found := byDay[serviceDay.Label]
	return tt, found
}

// Empty reports whether the overlay currently has no perturbations.
func (o *Overlay) Empty() bool {
	return o == nil || len(o.timetables) == 0
}
