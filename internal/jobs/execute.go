package jobs

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Metrics receives run observations; nil is allowed.
type Metrics interface {
	RunFinished(state State, d time.Duration)
}

// execute drives one run through RUNNING to a terminal state. Invalid
// parameters skip the run; handler errors and panics end it in
// INTERNAL_ERROR.
func execute(ctx context.Context, store StatusStore, runID string, p Params, h Handler, m Metrics) (err error) {
	start := time.Now()
	final := RunStatus{}
	defer func() {
		if r := recover(); r != nil {
			final = RunStatus{State: StateInternalError, Message: fmt.Sprintf("panic: %v", r)}
		}
		// the terminal state must be recorded even when ctx is cancelled
		if perr := store.Put(context.WithoutCancel(ctx), runID, final); perr != nil && err == nil {
			err = perr
		}
		log.Printf("run %s finished: %s", runID, final.State)
		if m != nil {
			m.RunFinished(final.State, time.Since(start))
		}
	}()

	if verr := p.Validate(); verr != nil {
		final = RunStatus{State: StateSkipped, Message: verr.Error()}
		return nil
	}
	if err := store.Put(ctx, runID, RunStatus{State: StateRunning}); err != nil {
		final = RunStatus{State: StateInternalError, Message: err.Error()}
		return err
	}
	out, herr := h(ctx, p)
	if herr != nil {
		final = RunStatus{State: StateInternalError, Message: herr.Error()}
		return herr
	}
	final = RunStatus{State: StateTerminated, Output: out}
	return nil
}
