package gtfsimport_test

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextstop-transit/transferpatterns/gtfsimport"
)

const agencyTxt = "agency_id,agency_name,agency_url,agency_timezone\nA1,Agency,http://example.com,UTC\n"
const routesTxt = "route_id,route_short_name\nR1,1\n"
const calendarTxt = "service_id,start_date,end_date,monday,tuesday,wednesday,thursday,friday,saturday,sunday\nWD,20260101,20261231,1,1,1,1,1,0,0\n"
const stopsTxt = "stop_id,stop_name,stop_lat,stop_lon\nA,Stop A,0,0\nB,Stop B,0,0.001\nC,Stop C,0,0.002\n"
const tripsTxt = "trip_id,route_id,service_id\nT1,R1,WD\nT2,R1,WD\n"
const stopTimesTxt = "trip_id,stop_id,stop_sequence,arrival_time,departure_time\n" +
	"T1,A,1,08:00:00,08:00:00\n" +
	"T1,B,2,08:05:00,08:05:00\n" +
	"T1,C,3,08:10:00,08:10:00\n" +
	"T2,A,1,09:00:00,09:00:00\n" +
	"T2,B,2,09:05:00,09:05:00\n" +
	"T2,C,3,09:10:00,09:10:00\n"

func buildZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	files := map[string]string{
		"agency.txt":     agencyTxt,
		"routes.txt":     routesTxt,
		"calendar.txt":   calendarTxt,
		"stops.txt":      stopsTxt,
		"trips.txt":      tripsTxt,
		"stop_times.txt": stopTimesTxt,
	}
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestLoadGroupsTripsSharingAStopSequenceIntoOnePattern(t *testing.T) {
	feed, err := gtfsimport.Load(buildZip(t))
	require.NoError(t, err)

	require.Len(t, feed.Stops, 3)
	require.Len(t, feed.Patterns, 1, "T1 and T2 share the same stop sequence")

	pattern := feed.Patterns[0]
	require.Len(t, pattern.Stops, 3)
	assert.Equal(t, "A", pattern.Stops[0].Label)
	assert.Equal(t, "C", pattern.Stops[2].Label)
	require.Len(t, pattern.Timetable.Trips, 2)
	assert.Equal(t, "T1", pattern.Timetable.Trips[0].TripID)
	assert.Equal(t, "T2", pattern.Timetable.Trips[1].TripID)
}

func TestLoadRejectsUnknownStopReference(t *testing.T) {
	badStopTimes := "trip_id,stop_id,stop_sequence,arrival_time,departure_time\n" +
		"T1,ZZZ,1,08:00:00,08:00:00\n"

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	files := map[string]string{
		"agency.txt":     agencyTxt,
		"routes.txt":     routesTxt,
		"calendar.txt":   calendarTxt,
		"stops.txt":      stopsTxt,
		"trips.txt":      tripsTxt,
		"stop_times.txt": badStopTimes,
	}
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	_, err := gtfsimport.Load(buf.Bytes())
	require.Error(t, err)
}

func TestLoadRejectsMissingRequiredFile(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("agency.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte(agencyTxt))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = gtfsimport.Load(buf.Bytes())
	require.Error(t, err)
}
