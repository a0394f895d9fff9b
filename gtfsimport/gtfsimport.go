// Package gtfsimport loads a GTFS static feed (zip archive of the usual
// agency/routes/stops/trips/stop_times/calendar text files) into the
// model.Stop and model.TripPattern values the rest of this repo builds
// against. It groups trips sharing an identical ordered stop sequence into
// one TripPattern, since spec §3 models patterns, not individual trips.
package gtfsimport

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"github.com/nextstop-transit/transferpatterns/model"
)

// Feed is the result of loading one static GTFS archive.
type Feed struct {
	Stops    []model.Stop
	Patterns []*model.TripPattern
}

var requiredFiles = []string{
	"agency.txt",
	"routes.txt",
	"stops.txt",
	"trips.txt",
	"stop_times.txt",
	"calendar.txt",
}

// Load unzips buf and builds a Feed. It is deliberately narrower than a
// full GTFS validator: calendar_dates.txt exceptions and most optional
// columns are ignored, since nothing downstream of model.TripPattern needs
// them — a feed is either active on the single service day a build targets
// or it isn't (timetable.ServiceDay), so exception handling belongs to the
// caller choosing which feed snapshot to load, not to this parser.
func Load(buf []byte) (*Feed, error) {
	files, err := unzip(buf)
	if err != nil {
		return nil, errors.Wrap(err, "unzipping feed")
	}
	for _, name := range requiredFiles {
		if _, ok := files[name]; !ok {
			return nil, fmt.Errorf("missing required file %q", name)
		}
	}

	agencyTz, err := parseAgency(files["agency.txt"])
	if err != nil {
		return nil, errors.Wrap(err, "parsing agency.txt")
	}
	_ = agencyTz

	routeIDs, err := parseRoutes(files["routes.txt"])
	if err != nil {
		return nil, errors.Wrap(err, "parsing routes.txt")
	}

	serviceIDs, err := parseCalendar(files["calendar.txt"])
	if err != nil {
		return nil, errors.Wrap(err, "parsing calendar.txt")
	}

	stops, stopByID, err := parseStops(files["stops.txt"])
	if err != nil {
		return nil, errors.Wrap(err, "parsing stops.txt")
	}

	tripRoutes, err := parseTrips(files["trips.txt"], routeIDs, serviceIDs)
	if err != nil {
		return nil, errors.Wrap(err, "parsing trips.txt")
	}

	stopTimesByTrip, err := parseStopTimes(files["stop_times.txt"], tripRoutes, stopByID)
	if err != nil {
		return nil, errors.Wrap(err, "parsing stop_times.txt")
	}

	patterns := buildPatterns(stopTimesByTrip, stopByID)

	for i := range stops {
		stops[i].Index = i
	}

	return &Feed{Stops: stops, Patterns: patterns}, nil
}

func unzip(buf []byte) (map[string]io.Reader, error) {
	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, err
	}

	out := map[string]io.Reader{}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		path := strings.Split(f.Name, "/")
		name := path[len(path)-1]

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		var b bytes.Buffer
		if _, err := io.Copy(&b, rc); err != nil {
			rc.Close()
			return nil, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		rc.Close()
		out[name] = bom.NewReader(bytes.NewReader(b.Bytes()))
	}
	return out, nil
}

type agencyCSV struct {
	ID       string `csv:"agency_id"`
	Name     string `csv:"agency_name"`
	Timezone string `csv:"agency_timezone"`
}

func parseAgency(data io.Reader) (string, error) {
	var rows []*agencyCSV
	if err := gocsv.Unmarshal(data, &rows); err != nil {
		return "", fmt.Errorf("unmarshaling agency csv: %w", err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("no agency record found")
	}
	return rows[0].Timezone, nil
}

type routeCSV struct {
	ID   string `csv:"route_id"`
	Name string `csv:"route_short_name"`
}

func parseRoutes(data io.Reader) (map[string]bool, error) {
	var rows []*routeCSV
	if err := gocsv.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshaling routes csv: %w", err)
	}

	ids := map[string]bool{}
	for _, r := range rows {
		if r.ID == "" {
			return nil, fmt.Errorf("empty route_id")
		}
		ids[r.ID] = true
	}
	return ids, nil
}

type calendarCSV struct {
	ServiceID string `csv:"service_id"`
}

// parseCalendar returns the set of known service IDs. calendar_dates.txt's
// per-date exceptions are out of scope (see Load's doc comment).
func parseCalendar(data io.Reader) (map[string]bool, error) {
	var rows []*calendarCSV
	if err := gocsv.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshaling calendar csv: %w", err)
	}

	ids := map[string]bool{}
	for _, c := range rows {
		if c.ServiceID == "" {
			return nil, fmt.Errorf("empty service_id")
		}
		ids[c.ServiceID] = true
	}
	return ids, nil
}

type stopCSV struct {
	ID   string  `csv:"stop_id"`
	Name string  `csv:"stop_name"`
	Lat  float64 `csv:"stop_lat"`
	Lon  float64 `csv:"stop_lon"`
}

func parseStops(data io.Reader) ([]model.Stop, map[string]model.Stop, error) {
	var rows []*stopCSV
	if err := gocsv.Unmarshal(data, &rows); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling stops csv: %w", err)
	}

	byID := map[string]model.Stop{}
	stops := make([]model.Stop, 0, len(rows))
	for _, s := range rows {
		if s.ID == "" {
			return nil, nil, fmt.Errorf("empty stop_id")
		}
		if _, dup := byID[s.ID]; dup {
			return nil, nil, fmt.Errorf("repeated stop_id %q", s.ID)
		}
		stop := model.Stop{Label: s.ID, Lat: s.Lat, Lon: s.Lon}
		byID[s.ID] = stop
		stops = append(stops, stop)
	}
	return stops, byID, nil
}

type tripCSV struct {
	ID        string `csv:"trip_id"`
	RouteID   string `csv:"route_id"`
	ServiceID string `csv:"service_id"`
}

// parseTrips returns the set of trip IDs known to reference a valid route
// and service (the route association itself isn't needed downstream; a
// TripPattern is keyed by stop sequence, not route, since spec §3 treats a
// pattern as "a maximal run of trips sharing stops and relative timing").
func parseTrips(data io.Reader, routeIDs, serviceIDs map[string]bool) (map[string]bool, error) {
	var rows []*tripCSV
	if err := gocsv.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshaling trips csv: %w", err)
	}

	trips := map[string]bool{}
	for _, t := range rows {
		if trips[t.ID] {
			return nil, fmt.Errorf("repeated trip_id %q", t.ID)
		}
		if t.ID == "" {
			return nil, fmt.Errorf("empty trip_id")
		}
		if !routeIDs[t.RouteID] {
			return nil, fmt.Errorf("unknown route_id %q", t.RouteID)
		}
		if !serviceIDs[t.ServiceID] {
			return nil, fmt.Errorf("unknown service_id %q", t.ServiceID)
		}
		trips[t.ID] = true
	}
	return trips, nil
}
