// Package pipeline wires the batch flow end to end: the trigger side builds
// and dispatches a TripRecord batch, the stage side turns a run's batch into
// a snapshot.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gtfs-occupancy/internal/dispatch"
	"gtfs-occupancy/internal/gtfs"
	"gtfs-occupancy/internal/jobs"
	"gtfs-occupancy/internal/occupancy"
	"gtfs-occupancy/internal/snapshot"
)

type Metrics interface {
	SimulationObserved(trips int, d time.Duration)
}

// Stage is the body of a simulation run.
type Stage struct {
	resolver     *dispatch.Resolver
	sim          *occupancy.Simulator
	writer       *snapshot.Writer
	defaultLimit int
	metrics      Metrics
}

// NewStage returns a Stage. Runs that carry no limit use defaultLimit.
func NewStage(r *dispatch.Resolver, sim *occupancy.Simulator, w *snapshot.Writer, defaultLimit int, m Metrics) *Stage {
	return &Stage{resolver: r, sim: sim, writer: w, defaultLimit: defaultLimit, metrics: m}
}

// Handle resolves the batch, simulates it, writes the filtered rows as a new
// snapshot and returns them as a JSON array.
func (s *Stage) Handle(ctx context.Context, p jobs.Params) (string, error) {
	recs, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return "", err
	}
	log.Printf("simulating %d trips", len(recs))

	start := time.Now()
	trips, err := s.sim.SimulateBatch(ctx, recs)
	if err != nil {
		return "", fmt.Errorf("simulate: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SimulationObserved(len(trips), time.Since(start))
	}

	limit := p.Limit
	if limit == 0 {
		limit = s.defaultLimit
	}
	res, err := s.writer.Write(ctx, trips, snapshot.Filter{RouteSubstr: p.RouteFilter, Limit: limit})
	if err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return encodeRows(res.Rows)
}

// Handler adapts the stage to the job runner.
func (s *Stage) Handler() jobs.Handler { return s.Handle }

func encodeRows(rows []gtfs.SimulatedTrip) (string, error) {
	if rows == nil {
		rows = []gtfs.SimulatedTrip{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encode output: %w", err)
	}
	return string(b), nil
}
