// Package schedule folds raw trips and stop-time events into one TripRecord
// per trip.
package schedule

import (
	"fmt"

	"gtfs-occupancy/internal/gtfs"
)

// Aggregate counts stop events per trip and left-joins the counts onto trips,
// so a trip without stop events gets StopCount 0. Every trip gets capacity.
// Output order follows the trips input.
func Aggregate(trips []gtfs.Trip, stopTimes []gtfs.StopTime, capacity int) ([]gtfs.TripRecord, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	counts := make(map[string]int, len(trips))
	for i, st := range stopTimes {
		if st.TripID == "" {
			return nil, &gtfs.DataFormatError{File: gtfs.StopTimesFile, Column: "trip_id", Line: i + 2, Reason: "empty value"}
		}
		counts[st.TripID]++
	}
	out := make([]gtfs.TripRecord, 0, len(trips))
	for i, t := range trips {
		if t.TripID == "" || t.RouteID == "" {
			return nil, &gtfs.DataFormatError{File: gtfs.TripsFile, Line: i + 2, Reason: "trip_id and route_id are required"}
		}
		out = append(out, gtfs.TripRecord{
			RouteID:   t.RouteID,
			TripID:    t.TripID,
			StopCount: counts[t.TripID],
			Capacity:  capacity,
		})
	}
	return out, nil
}

// Head keeps at most n records; n <= 0 keeps everything.
func Head(recs []gtfs.TripRecord, n int) []gtfs.TripRecord {
	if n <= 0 || len(recs) <= n {
		return recs
	}
	return recs[:n]
}
