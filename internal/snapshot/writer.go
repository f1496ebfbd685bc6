package snapshot

import (
	"context"
	"log"
	"time"
)

// Metrics receives writer and search observations. Implementations must be
// safe for concurrent use; a nil Metrics is ignored.
type Metrics interface {
	SnapshotWritten(rows int)
	SnapshotSkipped()
	SearchObserved(outcome Outcome, rows int, d time.Duration)
}

// Filter is the route filter and row cap applied before a snapshot is written.
type Filter struct {
	RouteSubstr string
	Limit       int
}

type WriteResult struct {
	Dataset string
	Rows    []Row
	Written bool
}

type Writer struct {
	catalog Catalog
	prefix  string
	loc     *time.Location
	now     func() time.Time
	metrics Metrics
}

func NewWriter(catalog Catalog, prefix string, loc *time.Location, m Metrics) *Writer {
	return &Writer{catalog: catalog, prefix: prefix, loc: loc, now: time.Now, metrics: m}
}

// Write filters rows and publishes them as a new dataset named after a fresh
// version key. An empty result is a no-op: nothing is created and Written is
// false.
func (w *Writer) Write(ctx context.Context, rows []Row, f Filter) (WriteResult, error) {
	kept := FilterRows(rows, f.RouteSubstr, f.Limit)
	if len(kept) == 0 {
		log.Printf("no rows left after filter (route=%q, limit=%d); snapshot not written", f.RouteSubstr, f.Limit)
		if w.metrics != nil {
			w.metrics.SnapshotSkipped()
		}
		return WriteResult{Rows: kept}, nil
	}
	name := NewVersion(w.now(), w.loc).DatasetName(w.prefix)
	// overwrite only ever targets this exact version key
	if err := w.catalog.Publish(ctx, name, kept, true); err != nil {
		return WriteResult{Dataset: name, Rows: kept}, err
	}
	log.Printf("snapshot %s written (%d rows)", name, len(kept))
	if w.metrics != nil {
		w.metrics.SnapshotWritten(len(kept))
	}
	return WriteResult{Dataset: name, Rows: kept, Written: true}, nil
}
