package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Consecutive status read failures tolerated before giving up.
const maxStatusErrors = 5

type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration // <= 0 waits until ctx is done
}

// Await polls the run every Interval until it reaches a terminal state, the
// timeout elapses or ctx is cancelled.
func Await(ctx context.Context, r Runner, runID string, o PollOptions) (RunStatus, error) {
	if o.Interval <= 0 {
		o.Interval = 2 * time.Second
	}
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}
	ticker := time.NewTicker(o.Interval)
	defer ticker.Stop()

	var last State
	failures := 0
	for {
		st, err := r.Status(ctx, runID)
		switch {
		case err == nil:
			failures = 0
			if st.State != last {
				log.Printf("run %s state %s", runID, st.State)
				last = st.State
			}
			if st.State.Terminal() {
				return st, nil
			}
		case errors.Is(err, ErrRunNotFound):
			return RunStatus{}, fmt.Errorf("run %s: %w", runID, err)
		case ctx.Err() == nil:
			failures++
			log.Printf("run %s status error (%d/%d): %v", runID, failures, maxStatusErrors, err)
			if failures >= maxStatusErrors {
				return RunStatus{}, fmt.Errorf("run %s status: %w", runID, err)
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return RunStatus{State: last}, fmt.Errorf("run %s after %s: %w", runID, o.Timeout, ErrPollTimeout)
			}
			return RunStatus{State: last}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Result of a finished run.
type Result struct {
	RunID  string
	State  State
	Output string
}

// Run submits p, waits for a terminal state and returns the output. A run that
// ends in INTERNAL_ERROR yields a JobExecutionError and no output.
func Run(ctx context.Context, r Runner, p Params, o PollOptions) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	runID, err := r.Submit(ctx, p)
	if err != nil {
		return Result{}, fmt.Errorf("submit run: %w", err)
	}
	log.Printf("run %s submitted", runID)
	st, err := Await(ctx, r, runID, o)
	if err != nil {
		return Result{RunID: runID, State: st.State}, err
	}
	res := Result{RunID: runID, State: st.State}
	if st.State == StateInternalError {
		return res, &JobExecutionError{RunID: runID, State: st.State, Message: st.Message}
	}
	res.Output = st.Output
	return res, nil
}
