package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtfs-occupancy/internal/dispatch"
	"gtfs-occupancy/internal/jobs"
	"gtfs-occupancy/internal/pipeline"
	"gtfs-occupancy/internal/snapshot"
	"gtfs-occupancy/internal/staging"
)

var (
	_ snapshot.Metrics = (*Collector)(nil)
	_ jobs.Metrics     = (*Collector)(nil)
	_ dispatch.Metrics = (*Collector)(nil)
	_ pipeline.Metrics = (*Collector)(nil)
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.SnapshotWritten(12)
	c.SnapshotWritten(3)
	c.SnapshotSkipped()
	c.SearchObserved(snapshot.OutcomeOK, 4, time.Millisecond)
	c.SearchObserved(snapshot.OutcomeNoSnapshots, 0, time.Millisecond)
	c.SearchObserved(snapshot.OutcomeOK, 1, time.Millisecond)
	c.Dispatched(dispatch.ModeStaged, 20000)
	c.RunFinished(jobs.StateTerminated, time.Second)
	c.RunFinished(jobs.StateInternalError, time.Second)
	c.SimulationObserved(800, 10*time.Millisecond)
	c.SetNATSConnected(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.SnapshotsWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SnapshotsSkipped))
	assert.Equal(t, 15.0, testutil.ToFloat64(c.RowsWritten))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Searches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Searches.WithLabelValues("no_snapshots")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Dispatches.WithLabelValues("staged")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.Dispatches.WithLabelValues("inline")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Runs.WithLabelValues("TERMINATED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Runs.WithLabelValues("INTERNAL_ERROR")))
	assert.Equal(t, 800.0, testutil.ToFloat64(c.SimulatedTrips))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NATSConnected))
	assert.Equal(t, 1, testutil.CollectAndCount(c.SimulationDuration))
}

func TestHandlerExposesRegistry(t *testing.T) {
	c := NewCollector()
	c.SnapshotSkipped()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "occupancy_snapshots_skipped_total 1"))
}

func TestDispatcherReportsToCollector(t *testing.T) {
	var disabled *Collector
	assert.Nil(t, disabled.DispatchMetrics())

	c := NewCollector()
	d := dispatch.NewDispatcher(staging.NewFileStore(t.TempDir()), "tmp/dados_gtfs.json", 4, c.DispatchMetrics())
	ctx := context.Background()
	_, _, err := d.Dispatch(ctx, []byte("[]"), "", 10)
	require.NoError(t, err)
	_, _, err = d.Dispatch(ctx, []byte(`[{"linha":"A1"}]`), "", 10)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Dispatches.WithLabelValues("inline")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Dispatches.WithLabelValues("staged")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.DispatchBytes))
}
