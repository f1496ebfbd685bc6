package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gtfs-occupancy/internal/dispatch"
	"gtfs-occupancy/internal/gtfs"
	"gtfs-occupancy/internal/jobs"
	"gtfs-occupancy/internal/schedule"
)

// BackupFile is where the trigger keeps a local copy of the last batch,
// relative to the GTFS directory.
const BackupFile = "tmp/dados_gtfs.json"

type TriggerOptions struct {
	GTFSDir     string
	Capacity    int
	RecordLimit int
	RouteFilter string
	Poll        jobs.PollOptions
}

// Trigger reads the feed, aggregates it, dispatches the batch to runner and
// waits for the run's output.
type Trigger struct {
	dispatcher *dispatch.Dispatcher
	runner     jobs.Runner
	opts       TriggerOptions
}

func NewTrigger(d *dispatch.Dispatcher, r jobs.Runner, o TriggerOptions) *Trigger {
	return &Trigger{dispatcher: d, runner: r, opts: o}
}

// Batch builds the TripRecord batch from the feed directory, capped at the
// record limit.
func (t *Trigger) Batch() ([]gtfs.TripRecord, error) {
	trips, stopTimes, err := gtfs.ReadDir(t.opts.GTFSDir)
	if err != nil {
		return nil, err
	}
	recs, err := schedule.Aggregate(trips, stopTimes, t.opts.Capacity)
	if err != nil {
		return nil, err
	}
	log.Printf("aggregated %d trips from %d stop events", len(recs), len(stopTimes))
	return schedule.Head(recs, t.opts.RecordLimit), nil
}

func (t *Trigger) Run(ctx context.Context) (jobs.Result, error) {
	recs, err := t.Batch()
	if err != nil {
		return jobs.Result{}, err
	}
	payload, err := dispatch.Encode(recs)
	if err != nil {
		return jobs.Result{}, fmt.Errorf("encode batch: %w", err)
	}
	if err := writeBackup(filepath.Join(t.opts.GTFSDir, BackupFile), payload); err != nil {
		// the backup is a convenience copy; the run does not depend on it
		log.Printf("backup copy: %v", err)
	}
	p, _, err := t.dispatcher.Dispatch(ctx, payload, t.opts.RouteFilter, t.opts.RecordLimit)
	if err != nil {
		return jobs.Result{}, err
	}
	return jobs.Run(ctx, t.runner, p, t.opts.Poll)
}

func writeBackup(path string, payload []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}
