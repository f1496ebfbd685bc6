// Package snapshot versions, publishes and searches immutable occupancy
// snapshots.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gtfs-occupancy/internal/gtfs"
)

// Row is one stored snapshot record.
type Row = gtfs.SimulatedTrip

// Catalog is the storage boundary for snapshot datasets. Publish must be
// all-or-nothing: a dataset is either fully visible to List/Scan or absent.
type Catalog interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Publish(ctx context.Context, name string, rows []Row, overwrite bool) error
	// Scan returns rows whose lowercased route contains routeSubstr (already
	// lowercased), in storage order, at most limit rows.
	Scan(ctx context.Context, name, routeSubstr string, limit int) ([]Row, error)
	Ping(ctx context.Context) error
}

var (
	ErrNoSnapshots   = errors.New("no snapshots available")
	ErrDatasetExists = errors.New("dataset already exists")
)

// StorageError wraps a failure of the storage layer.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// MatchRoute reports whether the row's route contains substr
// case-insensitively. substr must already be lowercased.
func MatchRoute(r Row, substr string) bool {
	return strings.Contains(strings.ToLower(r.RouteID), substr)
}

// FilterRows keeps rows matching substr, preserving order, up to limit rows.
// limit <= 0 means no cap.
func FilterRows(rows []Row, substr string, limit int) []Row {
	substr = strings.ToLower(strings.TrimSpace(substr))
	out := make([]Row, 0, min(len(rows), max(limit, 0)))
	for _, r := range rows {
		if limit > 0 && len(out) >= limit {
			break
		}
		if MatchRoute(r, substr) {
			out = append(out, r)
		}
	}
	return out
}
