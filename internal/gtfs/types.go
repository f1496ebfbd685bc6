package gtfs

import "fmt"

type Trip struct {
	TripID  string
	RouteID string
}

type StopTime struct {
	TripID       string
	StopSequence int
}

// TripRecord is one aggregated trip: how many stop events it has and the
// capacity assigned to the vehicle serving it. JSON names follow the
// snapshot column names.
type TripRecord struct {
	RouteID   string `json:"linha"`
	TripID    string `json:"trip_id"`
	StopCount int    `json:"pontos_parada"`
	Capacity  int    `json:"capacidade"`
}

// DataFormatError reports malformed or missing input columns.
type DataFormatError struct {
	File   string
	Column string
	Line   int // 0 when the problem is not tied to a data line
	Reason string
}

func (e *DataFormatError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("%s:%d: column %q: %s", e.File, e.Line, e.Column, e.Reason)
	case e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Reason)
	case e.Column != "":
		return fmt.Sprintf("%s: column %q: %s", e.File, e.Column, e.Reason)
	default:
		return fmt.Sprintf("%s: %s", e.File, e.Reason)
	}
}

// SimulatedTrip is a TripRecord with its per-stop occupancy sequence.
type SimulatedTrip struct {
	TripRecord
	Occupancy []int `json:"lotacao_por_ponto"`
}
