// Package dispatch moves a TripRecord batch into a job run, either inline in
// the run parameters or staged at a shared path when it is too large for the
// parameter channel.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"gtfs-occupancy/internal/gtfs"
	"gtfs-occupancy/internal/jobs"
	"gtfs-occupancy/internal/staging"
)

type Mode string

const (
	ModeInline Mode = "inline"
	ModeStaged Mode = "staged"
)

type Metrics interface {
	Dispatched(mode Mode, bytes int)
}

// Encode serializes records as a compact JSON array. An empty batch is "[]".
func Encode(recs []gtfs.TripRecord) ([]byte, error) {
	if recs == nil {
		recs = []gtfs.TripRecord{}
	}
	return json.Marshal(recs)
}

type Dispatcher struct {
	store     staging.Store
	path      string
	threshold int
	metrics   Metrics
}

// NewDispatcher sends payloads of at most threshold bytes inline and stages
// anything larger at path.
func NewDispatcher(store staging.Store, path string, threshold int, m Metrics) *Dispatcher {
	return &Dispatcher{store: store, path: path, threshold: threshold, metrics: m}
}

// Dispatch builds run parameters carrying payload either inline or as a
// reference to the staged copy.
func (d *Dispatcher) Dispatch(ctx context.Context, payload []byte, routeFilter string, limit int) (jobs.Params, Mode, error) {
	p := jobs.Params{RouteFilter: routeFilter, Limit: limit}
	mode := ModeInline
	if len(payload) <= d.threshold {
		p.InlineBatch = string(payload)
		log.Printf("sending batch inline (%d bytes <= %d)", len(payload), d.threshold)
	} else {
		if err := d.store.Put(ctx, d.path, payload); err != nil {
			return jobs.Params{}, "", fmt.Errorf("stage batch: %w", err)
		}
		p.StagedBatchRef = d.path
		mode = ModeStaged
		log.Printf("batch too large for inline (%d bytes > %d); staged at %s", len(payload), d.threshold, d.path)
	}
	if d.metrics != nil {
		d.metrics.Dispatched(mode, len(payload))
	}
	return p, mode, nil
}

// Resolver is the receiving half: it recovers the batch a run was given.
type Resolver struct {
	store   staging.Store
	maxRead int64
}

func NewResolver(store staging.Store, maxRead int64) *Resolver {
	return &Resolver{store: store, maxRead: maxRead}
}

// Resolve prefers the staged reference, then the inline batch. A run with
// neither, or with a payload that does not decode, proceeds with an empty
// batch.
func (r *Resolver) Resolve(ctx context.Context, p jobs.Params) ([]gtfs.TripRecord, error) {
	var raw []byte
	switch {
	case p.StagedBatchRef != "":
		b, err := r.store.Get(ctx, p.StagedBatchRef, r.maxRead)
		if err != nil {
			return nil, fmt.Errorf("read staged batch %s: %w", p.StagedBatchRef, err)
		}
		log.Printf("read staged batch %s (%d bytes)", p.StagedBatchRef, len(b))
		raw = b
	case p.InlineBatch != "":
		raw = []byte(p.InlineBatch)
	default:
		log.Printf("run carries no batch; continuing with an empty one")
		return []gtfs.TripRecord{}, nil
	}

	var recs []gtfs.TripRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		log.Printf("batch of %d bytes does not decode, continuing with an empty one: %v", len(raw), err)
		return []gtfs.TripRecord{}, nil
	}
	if recs == nil {
		recs = []gtfs.TripRecord{}
	}
	return recs, nil
}
