package gtfs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTrips(t *testing.T) {
	in := "\ufeffroute_id,service_id,trip_id\nA1,wk,001\nB2,wk,t2\n"
	trips, err := ReadTrips(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []Trip{{TripID: "001", RouteID: "A1"}, {TripID: "t2", RouteID: "B2"}}, trips)
}

func TestReadTripsErrors(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		column string
		line   int
	}{
		{name: "empty file", in: ""},
		{name: "missing route_id column", in: "trip_id\nt1\n", column: "route_id"},
		{name: "empty trip_id", in: "route_id,trip_id\nA1,\n", column: "trip_id", line: 2},
		{name: "empty route_id", in: "route_id,trip_id\nA1,t1\n,t2\n", column: "route_id", line: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTrips(strings.NewReader(tt.in))
			var dfe *DataFormatError
			require.ErrorAs(t, err, &dfe)
			assert.Equal(t, TripsFile, dfe.File)
			assert.Equal(t, tt.column, dfe.Column)
			assert.Equal(t, tt.line, dfe.Line)
		})
	}
}

func TestReadStopTimes(t *testing.T) {
	in := "trip_id,arrival_time,departure_time,stop_id,stop_sequence\nt1,08:00:00,08:00:00,s1,1\nt1,08:05:00,08:05:00,s2,2\n"
	sts, err := ReadStopTimes(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []StopTime{{TripID: "t1", StopSequence: 1}, {TripID: "t1", StopSequence: 2}}, sts)
}

func TestReadStopTimesBadSequence(t *testing.T) {
	_, err := ReadStopTimes(strings.NewReader("trip_id,stop_sequence\nt1,x\n"))
	var dfe *DataFormatError
	require.ErrorAs(t, err, &dfe)
	assert.Equal(t, "stop_sequence", dfe.Column)
	assert.Equal(t, 2, dfe.Line)
	assert.Contains(t, dfe.Error(), "stop_times.txt:2")
}

func TestReadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TripsFile), []byte("route_id,trip_id\nA1,t1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, StopTimesFile), []byte("trip_id,stop_sequence\nt1,1\nt1,2\nt1,3\n"), 0o644))

	trips, sts, err := ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, trips, 1)
	assert.Len(t, sts, 3)
}

func TestReadDirMissingFile(t *testing.T) {
	_, _, err := ReadDir(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
