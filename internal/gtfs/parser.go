package gtfs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	TripsFile     = "trips.txt"
	StopTimesFile = "stop_times.txt"
)

// ReadDir loads trips.txt and stop_times.txt from a GTFS directory.
func ReadDir(dir string) ([]Trip, []StopTime, error) {
	trips, err := ReadTripsFile(filepath.Join(dir, TripsFile))
	if err != nil {
		return nil, nil, err
	}
	sts, err := ReadStopTimesFile(filepath.Join(dir, StopTimesFile))
	if err != nil {
		return nil, nil, err
	}
	return trips, sts, nil
}

func ReadTripsFile(path string) ([]Trip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", TripsFile, err)
	}
	defer f.Close()
	return ReadTrips(f)
}

func ReadStopTimesFile(path string) ([]StopTime, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", StopTimesFile, err)
	}
	defer f.Close()
	return ReadStopTimes(f)
}

// ReadTrips parses trips.txt. trip_id and route_id are required on every row;
// trip_id stays a string even when it looks numeric.
func ReadTrips(r io.Reader) ([]Trip, error) {
	cr, cols, err := openCSV(r, TripsFile, "trip_id", "route_id")
	if err != nil {
		return nil, err
	}
	var trips []Trip
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &DataFormatError{File: TripsFile, Line: line, Reason: err.Error()}
		}
		t := Trip{
			TripID:  field(rec, cols, "trip_id"),
			RouteID: field(rec, cols, "route_id"),
		}
		if t.TripID == "" {
			return nil, &DataFormatError{File: TripsFile, Column: "trip_id", Line: line, Reason: "empty value"}
		}
		if t.RouteID == "" {
			return nil, &DataFormatError{File: TripsFile, Column: "route_id", Line: line, Reason: "empty value"}
		}
		trips = append(trips, t)
	}
	return trips, nil
}

// ReadStopTimes parses stop_times.txt keeping only trip_id and stop_sequence.
func ReadStopTimes(r io.Reader) ([]StopTime, error) {
	cr, cols, err := openCSV(r, StopTimesFile, "trip_id", "stop_sequence")
	if err != nil {
		return nil, err
	}
	var sts []StopTime
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &DataFormatError{File: StopTimesFile, Line: line, Reason: err.Error()}
		}
		tripID := field(rec, cols, "trip_id")
		if tripID == "" {
			return nil, &DataFormatError{File: StopTimesFile, Column: "trip_id", Line: line, Reason: "empty value"}
		}
		seq, err := strconv.Atoi(field(rec, cols, "stop_sequence"))
		if err != nil || seq < 0 {
			return nil, &DataFormatError{File: StopTimesFile, Column: "stop_sequence", Line: line, Reason: "not a non-negative integer"}
		}
		sts = append(sts, StopTime{TripID: tripID, StopSequence: seq})
	}
	return sts, nil
}

func openCSV(r io.Reader, file string, required ...string) (*csv.Reader, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, &DataFormatError{File: file, Reason: "missing header"}
		}
		return nil, nil, &DataFormatError{File: file, Reason: fmt.Sprintf("read header: %v", err)}
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		// some feeds ship a UTF-8 BOM on the first header
		cols[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return nil, nil, &DataFormatError{File: file, Column: c, Reason: "required column missing"}
		}
	}
	return cr, cols, nil
}

func field(rec []string, cols map[string]int, name string) string {
	if i, ok := cols[name]; ok && i < len(rec) {
		return strings.TrimSpace(rec[i])
	}
	return ""
}
