package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeNoSnapshots Outcome = "no_snapshots"
	OutcomeError       Outcome = "error"
)

type Query struct {
	RouteSubstr string
	Limit       int // <= 0 uses the searcher cap
}

// Result is what callers of Search get back. Failures never escape as Go
// errors: Outcome and Error describe them and Rows is empty.
type Result struct {
	Dataset string
	Rows    []Row
	Count   int
	Outcome Outcome
	Error   string
}

type Searcher struct {
	catalog  Catalog
	prefix   string
	maxLimit int
	metrics  Metrics
}

func NewSearcher(catalog Catalog, prefix string, maxLimit int, m Metrics) *Searcher {
	return &Searcher{catalog: catalog, prefix: prefix, maxLimit: maxLimit, metrics: m}
}

// Search finds the most recent snapshot and returns its rows whose route
// contains q.RouteSubstr case-insensitively, in scan order.
func (s *Searcher) Search(ctx context.Context, q Query) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("search panic: %v", r)
			res = failed(fmt.Errorf("internal error: %v", r))
		}
		if s.metrics != nil {
			s.metrics.SearchObserved(res.Outcome, res.Count, time.Since(start))
		}
	}()

	dataset, err := s.LatestDataset(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSnapshots) {
			return Result{Rows: []Row{}, Outcome: OutcomeNoSnapshots, Error: err.Error()}
		}
		log.Printf("search: %v", err)
		return failed(err)
	}

	limit := q.Limit
	if limit <= 0 || limit > s.maxLimit {
		limit = s.maxLimit
	}
	substr := strings.ToLower(strings.TrimSpace(q.RouteSubstr))
	rows, err := s.catalog.Scan(ctx, dataset, substr, limit)
	if err != nil {
		log.Printf("search %s: %v", dataset, err)
		res = failed(err)
		res.Dataset = dataset
		return res
	}
	if rows == nil {
		rows = []Row{}
	}
	log.Printf("search %s route=%q: %d rows", dataset, substr, len(rows))
	return Result{Dataset: dataset, Rows: rows, Count: len(rows), Outcome: OutcomeOK}
}

// LatestDataset returns the name of the most recent snapshot dataset or
// ErrNoSnapshots.
func (s *Searcher) LatestDataset(ctx context.Context) (string, error) {
	names, err := s.catalog.List(ctx, s.prefix)
	if err != nil {
		return "", err
	}
	name, ok := Latest(names, s.prefix)
	if !ok {
		return "", ErrNoSnapshots
	}
	return name, nil
}

func failed(err error) Result {
	return Result{Rows: []Row{}, Outcome: OutcomeError, Error: "query failed: " + err.Error()}
}
