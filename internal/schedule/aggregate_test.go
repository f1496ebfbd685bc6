package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtfs-occupancy/internal/gtfs"
)

func TestAggregate(t *testing.T) {
	trips := []gtfs.Trip{
		{TripID: "t1", RouteID: "A1"},
		{TripID: "t2", RouteID: "B2"},
	}
	sts := []gtfs.StopTime{
		{TripID: "t1", StopSequence: 1},
		{TripID: "t1", StopSequence: 2},
		{TripID: "t1", StopSequence: 3},
		{TripID: "orphan", StopSequence: 1},
	}

	recs, err := Aggregate(trips, sts, 40)
	require.NoError(t, err)
	assert.Equal(t, []gtfs.TripRecord{
		{RouteID: "A1", TripID: "t1", StopCount: 3, Capacity: 40},
		{RouteID: "B2", TripID: "t2", StopCount: 0, Capacity: 40},
	}, recs)
}

func TestAggregateNoStopTimes(t *testing.T) {
	recs, err := Aggregate([]gtfs.Trip{{TripID: "t1", RouteID: "A1"}}, nil, 40)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 0, recs[0].StopCount)
}

func TestAggregateRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		trips []gtfs.Trip
		sts   []gtfs.StopTime
	}{
		{name: "trip without route", trips: []gtfs.Trip{{TripID: "t1"}}},
		{name: "trip without id", trips: []gtfs.Trip{{RouteID: "A1"}}},
		{name: "stop time without trip", trips: []gtfs.Trip{{TripID: "t1", RouteID: "A1"}}, sts: []gtfs.StopTime{{StopSequence: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Aggregate(tt.trips, tt.sts, 40)
			var dfe *gtfs.DataFormatError
			assert.ErrorAs(t, err, &dfe)
		})
	}
}

func TestAggregateInvalidCapacity(t *testing.T) {
	_, err := Aggregate(nil, nil, 0)
	assert.Error(t, err)
}

func TestHead(t *testing.T) {
	recs := []gtfs.TripRecord{{TripID: "a"}, {TripID: "b"}, {TripID: "c"}}
	assert.Len(t, Head(recs, 2), 2)
	assert.Len(t, Head(recs, 5), 3)
	assert.Len(t, Head(recs, 0), 3)
}
