package gtfsimport

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/nextstop-transit/transferpatterns/model"
)

type stopTimeCSV struct {
	TripID        string `csv:"trip_id"`
	StopID        string `csv:"stop_id"`
	StopSequence  int    `csv:"stop_sequence"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
}

type stopTimeRow struct {
	StopID       string
	StopSequence int
	Arrival      time.Duration
	Departure    time.Duration
}

// parseGTFSTime parses GTFS's "may exceed 24:00:00" HH:MM:SS clock time
// into an offset from midnight (spec §3's TripTimes is midnight-relative
// for exactly this reason).
func parseGTFSTime(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("found %d parts in %q", len(parts), s)
	}

	hms := [3]int{}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("non-integer in %q pos %d", s, i)
		}
		hms[i] = v
	}
	if hms[0] < 0 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	if hms[1] < 0 || hms[1] > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if hms[2] < 0 || hms[2] > 59 {
		return 0, fmt.Errorf("invalid second in %q", s)
	}

	return time.Duration(hms[0])*time.Hour + time.Duration(hms[1])*time.Minute + time.Duration(hms[2])*time.Second, nil
}

// parseStopTimes reads stop_times.txt and returns each trip's stop-time
// rows, sorted by stop_sequence.
func parseStopTimes(data io.Reader, tripIDs map[string]bool, stopByID map[string]model.Stop) (map[string][]stopTimeRow, error) {
	rowsByTrip := map[string][]stopTimeRow{}

	i := -1
	err := gocsv.UnmarshalToCallbackWithError(data, func(st *stopTimeCSV) error {
		i++
		if !tripIDs[st.TripID] {
			return fmt.Errorf("unknown trip_id %q (row %d)", st.TripID, i+1)
		}
		if _, ok := stopByID[st.StopID]; !ok {
			return fmt.Errorf("unknown stop_id %q (row %d)", st.StopID, i+1)
		}

		arrival, err := parseGTFSTime(st.ArrivalTime)
		if err != nil {
			return errors.Wrapf(err, "parsing arrival_time (row %d)", i+1)
		}
		departure, err := parseGTFSTime(st.DepartureTime)
		if err != nil {
			return errors.Wrapf(err, "parsing departure_time (row %d)", i+1)
		}

		rowsByTrip[st.TripID] = append(rowsByTrip[st.TripID], stopTimeRow{
			StopID:       st.StopID,
			StopSequence: st.StopSequence,
			Arrival:      arrival,
			Departure:    departure,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "unmarshaling stop_times csv")
	}

	for tripID, rows := range rowsByTrip {
		sort.Slice(rows, func(i, j int) bool { return rows[i].StopSequence < rows[j].StopSequence })

		seen := map[int]bool{}
		for _, r := range rows {
			if seen[r.StopSequence] {
				return nil, fmt.Errorf("duplicate stop_sequence %d for trip_id %q", r.StopSequence, tripID)
			}
			seen[r.StopSequence] = true
		}
		rowsByTrip[tripID] = rows
	}

	return rowsByTrip, nil
}

// buildPatterns groups trips sharing an identical ordered stop sequence
// into one model.TripPattern (spec §3). The pattern's code is a sequential
// "pattern-<n>" label, numbered in order of each stop sequence's first
// trip_id (sorted), not any GTFS identifier, since many trip_ids can share
// one pattern.
func buildPatterns(stopTimesByTrip map[string][]stopTimeRow, stopByID map[string]model.Stop) []*model.TripPattern {
	tripIDs := make([]string, 0, len(stopTimesByTrip))
	for tripID := range stopTimesByTrip {
		tripIDs = append(tripIDs, tripID)
	}
	sort.Strings(tripIDs)

	patternsByKey := map[string]*model.TripPattern{}
	var ordered []*model.TripPattern

	for _, tripID := range tripIDs {
		rows := stopTimesByTrip[tripID]
		if len(rows) == 0 {
			continue
		}

		stops := make([]model.Stop, len(rows))
		var key strings.Builder
		for i, r := range rows {
			stops[i] = stopByID[r.StopID]
			key.WriteString(r.StopID)
			key.WriteByte('|')
		}
		patternKey := key.String()

		pattern, ok := patternsByKey[patternKey]
		if !ok {
			pattern = &model.TripPattern{
				Code:  fmt.Sprintf("pattern-%d", len(ordered)+1),
				Stops: stops,
			}
			patternsByKey[patternKey] = pattern
			ordered = append(ordered, pattern)
		}

		arrivals := make([]time.Duration, len(rows))
		departures := make([]time.Duration, len(rows))
		for i, r := range rows {
			arrivals[i] = r.Arrival
			departures[i] = r.Departure
		}
		pattern.Timetable.Trips = append(pattern.Timetable.Trips, model.TripTimes{
			TripID:     tripID,
			Arrivals:   arrivals,
			Departures: departures,
		})
	}

	for _, pattern := range ordered {
		sort.Slice(pattern.Timetable.Trips, func(i, j int) bool {
			return pattern.Timetable.Trips[i].Departures[0] < pattern.Timetable.Trips[j].Departures[0]
		})
	}

	return ordered
}
