package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gtfs-occupancy/internal/dispatch"
	"gtfs-occupancy/internal/jobs"
	"gtfs-occupancy/internal/snapshot"
)

type Collector struct {
	reg *prometheus.Registry

	SnapshotsWritten prometheus.Counter
	SnapshotsSkipped prometheus.Counter
	RowsWritten      prometheus.Counter

	Searches       *prometheus.CounterVec // outcome label: ok|no_snapshots|error
	SearchRows     prometheus.Histogram
	SearchDuration prometheus.Histogram

	Dispatches    *prometheus.CounterVec // mode label: inline|staged
	DispatchBytes prometheus.Histogram

	Runs        *prometheus.CounterVec // state label
	RunDuration prometheus.Histogram

	SimulatedTrips     prometheus.Counter
	SimulationDuration prometheus.Histogram

	NATSConnected prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		SnapshotsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "occupancy_snapshots_written_total",
			Help: "Snapshot datasets published.",
		}),
		SnapshotsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "occupancy_snapshots_skipped_total",
			Help: "Writes skipped because no rows survived the filter.",
		}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "occupancy_snapshot_rows_written_total",
			Help: "Rows written across all snapshots.",
		}),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "occupancy_searches_total",
			Help: "Route searches by outcome.",
		}, []string{"outcome"}),
		SearchRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "occupancy_search_rows",
			Help:    "Rows returned per search.",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 300},
		}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "occupancy_search_duration_seconds",
			Help:    "Duration of route searches.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "occupancy_dispatches_total",
			Help: "Batches handed to a run, by transport mode.",
		}, []string{"mode"}),
		DispatchBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "occupancy_dispatch_bytes",
			Help:    "Serialized batch size.",
			Buckets: prometheus.ExponentialBuckets(1000, 2, 12),
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "occupancy_runs_total",
			Help: "Simulation runs by terminal state.",
		}, []string{"state"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "occupancy_run_duration_seconds",
			Help:    "Wall time of a simulation run on the worker.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}),
		SimulatedTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "occupancy_simulated_trips_total",
			Help: "Trips run through the occupancy simulator.",
		}),
		SimulationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "occupancy_simulation_duration_seconds",
			Help:    "Duration of one batch simulation.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "occupancy_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
	}

	reg.MustRegister(
		c.SnapshotsWritten, c.SnapshotsSkipped, c.RowsWritten,
		c.Searches, c.SearchRows, c.SearchDuration,
		c.Dispatches, c.DispatchBytes,
		c.Runs, c.RunDuration,
		c.SimulatedTrips, c.SimulationDuration,
		c.NATSConnected,
	)
	return c
}

func (c *Collector) SnapshotWritten(rows int) {
	c.SnapshotsWritten.Inc()
	c.RowsWritten.Add(float64(rows))
}

func (c *Collector) SnapshotSkipped() { c.SnapshotsSkipped.Inc() }

func (c *Collector) SearchObserved(outcome snapshot.Outcome, rows int, d time.Duration) {
	c.Searches.WithLabelValues(string(outcome)).Inc()
	c.SearchRows.Observe(float64(rows))
	c.SearchDuration.Observe(d.Seconds())
}

func (c *Collector) Dispatched(mode dispatch.Mode, bytes int) {
	c.Dispatches.WithLabelValues(string(mode)).Inc()
	c.DispatchBytes.Observe(float64(bytes))
}

// DispatchMetrics returns c as a dispatch.Metrics, or nil when c is nil so a
// disabled collector never reaches the dispatcher as a typed nil.
func (c *Collector) DispatchMetrics() dispatch.Metrics {
	if c == nil {
		return nil
	}
	return c
}

func (c *Collector) RunFinished(state jobs.State, d time.Duration) {
	c.Runs.WithLabelValues(string(state)).Inc()
	c.RunDuration.Observe(d.Seconds())
}

func (c *Collector) SimulationObserved(trips int, d time.Duration) {
	c.SimulatedTrips.Add(float64(trips))
	c.SimulationDuration.Observe(d.Seconds())
}

func (c *Collector) SetNATSConnected(b bool) {
	if b {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
