// Package realtimefeed ingests GTFS-rt TripUpdates feeds and turns them
// into the timetable.Overlay the rest of this repo reads through
// timetable.View (spec §9's "global mutable overlay", fed by a real
// GTFS-rt source instead of a build-time DelayScenario probe).
package realtimefeed

import (
	"context"
	"fmt"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/nextstop-transit/transferpatterns/model"
	"github.com/nextstop-transit/transferpatterns/timetable"
)

// stopTimeUpdate mirrors one GTFS-rt TripUpdate.StopTimeUpdate entry
// (grounded on the teacher's parse.StopTimeUpdate).
type stopTimeUpdate struct {
	TripID        string
	StopID        string
	ArrivalDelay  time.Duration
	HasArrival    bool
	DepartureDelay time.Duration
	HasDeparture  bool
	Skipped       bool
}

// Snapshot is the parsed result of one or more TripUpdates feed messages,
// before it has been applied to any particular TripPattern set.
type Snapshot struct {
	TimestampUnix uint64
	CanceledTrips map[string]bool
	Updates       []stopTimeUpdate
}

// Parse decodes one or more GTFS-rt FeedMessage payloads (spec's
// "realtime ingestion" supplement). Only SCHEDULED and CANCELED trips are
// supported, matching the teacher's parser — ADDED, UNSCHEDULED and
// DUPLICATED trips have no corresponding TripPattern to attach delays to.
func Parse(feeds [][]byte) (*Snapshot, error) {
	snap := &Snapshot{CanceledTrips: map[string]bool{}}

	for _, feed := range feeds {
		msg := &gtfsproto.FeedMessage{}
		if err := proto.Unmarshal(feed, msg); err != nil {
			return nil, fmt.Errorf("unmarshaling protobuf: %w", err)
		}

		header := msg.GetHeader()
		version := header.GetGtfsRealtimeVersion()
		if version != "2.0" && version != "1.0" {
			return nil, fmt.Errorf("version %s not supported", version)
		}
		if header.GetIncrementality() != gtfsproto.FeedHeader_FULL_DATASET {
			return nil, fmt.Errorf("feed incrementality %s not supported", header.GetIncrementality())
		}
		snap.TimestampUnix = header.GetTimestamp()

		for _, entity := range msg.GetEntity() {
			if entity.TripUpdate == nil {
				continue
			}
			trip := entity.TripUpdate.GetTrip()
			if trip.GetTripId() == "" {
				continue
			}

			switch trip.GetScheduleRelationship() {
			case gtfsproto.TripDescriptor_SCHEDULED:
				for _, u := range entity.TripUpdate.GetStopTimeUpdate() {
					snap.Updates = append(snap.Updates, toStopTimeUpdate(trip.GetTripId(), u))
				}
			case gtfsproto.TripDescriptor_CANCELED:
				snap.CanceledTrips[trip.GetTripId()] = true
			default:
				// ADDED, UNSCHEDULED, DUPLICATED: no static
				// TripPattern counterpart, nothing to overlay.
			}
		}
	}

	return snap, nil
}

func toStopTimeUpdate(tripID string, u *gtfsproto.TripUpdate_StopTimeUpdate) stopTimeUpdate {
	out := stopTimeUpdate{TripID: tripID, StopID: u.GetStopId()}
	if u.GetScheduleRelationship() == gtfsproto.TripUpdate_StopTimeUpdate_SKIPPED {
		out.Skipped = true
		return out
	}
	if u.Arrival != nil {
		out.HasArrival = true
		out.ArrivalDelay = time.Duration(u.GetArrival().GetDelay()) * time.Second
	}
	if u.Departure != nil {
		out.HasDeparture = true
		out.DepartureDelay = time.Duration(u.GetDeparture().GetDelay()) * time.Second
	}
	return out
}

// Apply overlays snap onto every pattern it touches, installing the result
// into overlay for serviceDay. A pattern with no matching trip update is
// left untouched — the view falls back to its scheduled timetable.
//
// Per-stop delays are propagated forward: once a stop on a trip carries a
// delay, every later stop without its own update inherits it, matching
// GTFS-rt's usual producer convention (an update only restarts once a
// later stop reports its own arrival/departure).
func Apply(snap *Snapshot, patterns []*model.TripPattern, serviceDay timetable.ServiceDay, overlay *timetable.Overlay) {
	updatesByTrip := map[string][]stopTimeUpdate{}
	for _, u := range snap.Updates {
		updatesByTrip[u.TripID] = append(updatesByTrip[u.TripID], u)
	}

	for _, pattern := range patterns {
		shifted := model.Timetable{Trips: make([]model.TripTimes, 0, len(pattern.Timetable.Trips))}
		changed := false

		for _, trip := range pattern.Timetable.Trips {
			if snap.CanceledTrips[trip.TripID] {
				changed = true
				continue
			}

			updates := updatesByTrip[trip.TripID]
			if len(updates) == 0 {
				shifted.Trips = append(shifted.Trips, trip)
				continue
			}

			shifted.Trips = append(shifted.Trips, applyTripUpdates(pattern, trip, updates))
			changed = true
		}

		if changed {
			overlay.Set(pattern, serviceDay, shifted)
		}
	}
}

func applyTripUpdates(pattern *model.TripPattern, trip model.TripTimes, updates []stopTimeUpdate) model.TripTimes {
	arrivals := append([]time.Duration{}, trip.Arrivals...)
	departures := append([]time.Duration{}, trip.Departures...)

	var carryArrival, carryDeparture time.Duration
	nextSearchFrom := 0

	for _, u := range updates {
		pos := findStopFrom(pattern, u.StopID, nextSearchFrom)
		if pos < 0 {
			continue
		}
		nextSearchFrom = pos + 1

		if u.HasArrival {
			carryArrival = u.ArrivalDelay
		}
		if u.HasDeparture {
			carryDeparture = u.DepartureDelay
		}
		if !u.HasArrival {
			carryArrival = carryDeparture
		}
		if !u.HasDeparture {
			carryDeparture = carryArrival
		}

		for i := pos; i < len(arrivals); i++ {
			arrivals[i] = trip.Arrivals[i] + carryArrival
		}
		for i := pos; i < len(departures); i++ {
			departures[i] = trip.Departures[i] + carryDeparture
		}
	}

	return model.TripTimes{TripID: trip.TripID, ServiceID: trip.ServiceID, Arrivals: arrivals, Departures: departures}
}

func findStopFrom(pattern *model.TripPattern, stopID string, from int) int {
	for i := from; i < len(pattern.Stops); i++ {
		if pattern.Stops[i].Label == stopID {
			return i
		}
	}
	return -1
}

// ParseAndApply is the one-call convenience path cmd/tpbuild's `serve`-style
// usage would reach for (spec §6 "realtime ingestion"): parse then apply in
// one step, discarding the intermediate Snapshot.
func ParseAndApply(ctx context.Context, feeds [][]byte, patterns []*model.TripPattern, serviceDay timetable.ServiceDay, overlay *timetable.Overlay) error {
	snap, err := Parse(feeds)
	if err != nil {
		return err
	}
	Apply(snap, patterns, serviceDay, overlay)
	return nil
}
