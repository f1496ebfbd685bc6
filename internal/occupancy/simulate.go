// Package occupancy derives synthetic per-stop vehicle load trajectories.
package occupancy

import (
	"context"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"gtfs-occupancy/internal/gtfs"
)

// Share of capacity (boarding) and of current load (alighting) that can
// change at a single stop, in tenths.
const flowTenths = 3

// Simulate runs the forward pass for one trip. At each stop it draws
// boarding in [0, 0.3*capacity] and alighting in [0, 0.3*load], with the
// alighting bound taken from the load before the update, so the load never
// goes negative. The load is clamped to capacity. A non-positive stopCount
// or capacity yields an empty sequence.
func Simulate(rng *rand.Rand, stopCount, capacity int) []int {
	if stopCount <= 0 || capacity <= 0 {
		return []int{}
	}
	maxBoard := capacity * flowTenths / 10
	load := 0
	seq := make([]int, stopCount)
	for i := range seq {
		boarding := rng.IntN(maxBoard + 1)
		alighting := rng.IntN(load*flowTenths/10 + 1)
		load = min(capacity, load+boarding-alighting)
		seq[i] = load
	}
	return seq
}

// Simulator fans the per-trip pass out over a bounded number of goroutines.
// Each goroutine owns its generator; trips share no mutable state.
type Simulator struct {
	workers int
	seed    uint64
}

// NewSimulator returns a Simulator. workers <= 0 means GOMAXPROCS and
// seed 0 picks a random seed per batch.
func NewSimulator(workers int, seed uint64) *Simulator {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Simulator{workers: workers, seed: seed}
}

// SimulateBatch simulates every record and returns the trips in input order.
func (s *Simulator) SimulateBatch(ctx context.Context, recs []gtfs.TripRecord) ([]gtfs.SimulatedTrip, error) {
	out := make([]gtfs.SimulatedTrip, len(recs))
	if len(recs) == 0 {
		return out, nil
	}
	seed := s.seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	chunk := (len(recs) + s.workers - 1) / s.workers

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for part, lo := uint64(0), 0; lo < len(recs); part, lo = part+1, lo+chunk {
		hi := min(lo+chunk, len(recs))
		rng := rand.New(rand.NewPCG(seed, part))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				out[i] = gtfs.SimulatedTrip{
					TripRecord: recs[i],
					Occupancy:  Simulate(rng, recs[i].StopCount, recs[i].Capacity),
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
