package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtfs-occupancy/internal/gtfs"
	"gtfs-occupancy/internal/jobs"
	"gtfs-occupancy/internal/staging"
)

const stagingPath = "tmp/dados_gtfs.json"

func records(n int) []gtfs.TripRecord {
	recs := make([]gtfs.TripRecord, n)
	for i := range recs {
		recs[i] = gtfs.TripRecord{RouteID: fmt.Sprintf("R%02d", i%7), TripID: fmt.Sprintf("trip-%05d", i), StopCount: 20 + i%5, Capacity: 40}
	}
	return recs
}

type modeCounter map[Mode]int

func (m modeCounter) Dispatched(mode Mode, _ int) { m[mode]++ }

func TestEncode(t *testing.T) {
	b, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))

	b, err = Encode([]gtfs.TripRecord{{RouteID: "A1", TripID: "t1", StopCount: 3, Capacity: 40}})
	require.NoError(t, err)
	assert.Equal(t, `[{"linha":"A1","trip_id":"t1","pontos_parada":3,"capacidade":40}]`, string(b))
}

func TestDispatchThreshold(t *testing.T) {
	const threshold = 10000
	tests := []struct {
		name string
		size int
		want Mode
	}{
		{name: "small", size: 10, want: ModeInline},
		{name: "exactly threshold", size: threshold, want: ModeInline},
		{name: "one byte over", size: threshold + 1, want: ModeStaged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := staging.NewFileStore(t.TempDir())
			counts := modeCounter{}
			d := NewDispatcher(store, stagingPath, threshold, counts)
			payload := make([]byte, tt.size)
			for i := range payload {
				payload[i] = 'x'
			}

			p, mode, err := d.Dispatch(context.Background(), payload, "", 800)
			require.NoError(t, err)
			assert.Equal(t, tt.want, mode)
			assert.Equal(t, 800, p.Limit)
			assert.NoError(t, p.Validate())
			if tt.want == ModeInline {
				assert.Len(t, p.InlineBatch, tt.size)
				assert.Empty(t, p.StagedBatchRef)
			} else {
				assert.Empty(t, p.InlineBatch)
				assert.Equal(t, stagingPath, p.StagedBatchRef)
				staged, err := store.Get(context.Background(), stagingPath, 0)
				require.NoError(t, err)
				assert.Equal(t, payload, staged)
			}
			assert.Equal(t, 1, counts[tt.want])
		})
	}
}

type brokenStore struct{}

func (brokenStore) Put(context.Context, string, []byte) error { return errors.New("disk full") }
func (brokenStore) Get(context.Context, string, int64) ([]byte, error) {
	return nil, errors.New("disk gone")
}

func TestDispatchStagingFailure(t *testing.T) {
	d := NewDispatcher(brokenStore{}, stagingPath, 1, nil)
	_, _, err := d.Dispatch(context.Background(), []byte("[1,2]"), "", 10)
	assert.ErrorContains(t, err, "disk full")
}

func TestResolveInlineAndStagedAgree(t *testing.T) {
	recs := records(400)
	payload, err := Encode(recs)
	require.NoError(t, err)
	require.Greater(t, len(payload), 10000)

	store := staging.NewFileStore(t.TempDir())
	ctx := context.Background()

	staged, mode, err := NewDispatcher(store, stagingPath, 10000, nil).Dispatch(ctx, payload, "", 10)
	require.NoError(t, err)
	require.Equal(t, ModeStaged, mode)
	inline, mode, err := NewDispatcher(store, stagingPath, len(payload), nil).Dispatch(ctx, payload, "", 10)
	require.NoError(t, err)
	require.Equal(t, ModeInline, mode)

	r := NewResolver(store, 1_000_000)
	fromStage, err := r.Resolve(ctx, staged)
	require.NoError(t, err)
	fromInline, err := r.Resolve(ctx, inline)
	require.NoError(t, err)
	assert.Equal(t, recs, fromStage)
	assert.Equal(t, fromStage, fromInline)
}

func TestResolveDegradesToEmpty(t *testing.T) {
	store := staging.NewFileStore(t.TempDir())
	require.NoError(t, store.Put(context.Background(), stagingPath, []byte(`[{"linha":"A1","trip_id":"t1","pontos_parada":3,"capacidade":40}]`)))
	r := NewResolver(store, 20) // truncates the staged object

	tests := []struct {
		name string
		p    jobs.Params
	}{
		{name: "no batch", p: jobs.Params{}},
		{name: "empty array", p: jobs.Params{InlineBatch: "[]"}},
		{name: "null", p: jobs.Params{InlineBatch: "null"}},
		{name: "malformed inline", p: jobs.Params{InlineBatch: "{oops"}},
		{name: "truncated staged read", p: jobs.Params{StagedBatchRef: stagingPath}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := r.Resolve(context.Background(), tt.p)
			require.NoError(t, err)
			assert.NotNil(t, recs)
			assert.Empty(t, recs)
		})
	}
}

func TestResolveStagedMissing(t *testing.T) {
	r := NewResolver(staging.NewFileStore(t.TempDir()), 1000)
	_, err := r.Resolve(context.Background(), jobs.Params{StagedBatchRef: stagingPath})
	assert.ErrorIs(t, err, staging.ErrNotFound)
}
