package jobs

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

// LocalRunner executes runs in-process goroutines. It records state in a
// StatusStore exactly like the NATS worker does, so callers poll it the same
// way.
type LocalRunner struct {
	store   StatusStore
	handler Handler
	metrics Metrics

	ctx context.Context
	wg  sync.WaitGroup
}

// NewLocalRunner runs handler for each submitted run. Runs are cancelled when
// ctx is.
func NewLocalRunner(ctx context.Context, store StatusStore, handler Handler, m Metrics) *LocalRunner {
	return &LocalRunner{store: store, handler: handler, metrics: m, ctx: ctx}
}

func (l *LocalRunner) Submit(ctx context.Context, p Params) (string, error) {
	runID := uuid.NewString()
	if err := l.store.Put(ctx, runID, RunStatus{State: StatePending}); err != nil {
		return "", err
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := execute(l.ctx, l.store, runID, p, l.handler, l.metrics); err != nil {
			log.Printf("run %s: %v", runID, err)
		}
	}()
	return runID, nil
}

func (l *LocalRunner) Status(ctx context.Context, runID string) (RunStatus, error) {
	return l.store.Get(ctx, runID)
}

// Wait blocks until every submitted run has finished.
func (l *LocalRunner) Wait() { l.wg.Wait() }
