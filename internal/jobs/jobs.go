// Package jobs submits simulation runs to a job runner and waits for them to
// reach a terminal state.
package jobs

import (
	"context"
	"errors"
	"fmt"
)

// Params are the parameters of one simulation run. At most one of
// InlineBatch and StagedBatchRef is set.
type Params struct {
	RouteFilter    string `json:"linha"`
	Limit          int    `json:"limite"`
	InlineBatch    string `json:"dados_json,omitempty"`
	StagedBatchRef string `json:"staged_json_path,omitempty"`
}

func (p Params) Validate() error {
	if p.InlineBatch != "" && p.StagedBatchRef != "" {
		return errors.New("inline batch and staged reference are mutually exclusive")
	}
	if p.Limit < 0 {
		return fmt.Errorf("negative limit %d", p.Limit)
	}
	return nil
}

type State string

const (
	StatePending       State = "PENDING"
	StateRunning       State = "RUNNING"
	StateTerminated    State = "TERMINATED"
	StateSkipped       State = "SKIPPED"
	StateInternalError State = "INTERNAL_ERROR"
)

// Terminal reports whether no further progress happens after s.
func (s State) Terminal() bool {
	switch s {
	case StateTerminated, StateSkipped, StateInternalError:
		return true
	}
	return false
}

type RunStatus struct {
	State   State
	Message string
	Output  string
}

// Runner is the job execution substrate: submit a run, read its status and,
// once terminal, its textual output.
type Runner interface {
	Submit(ctx context.Context, p Params) (runID string, err error)
	Status(ctx context.Context, runID string) (RunStatus, error)
}

// Handler executes a run and returns its textual output.
type Handler func(ctx context.Context, p Params) (string, error)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrPollTimeout = errors.New("timed out waiting for run")
)

// JobExecutionError reports a run that ended in INTERNAL_ERROR.
type JobExecutionError struct {
	RunID   string
	State   State
	Message string
}

func (e *JobExecutionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("run %s ended in %s", e.RunID, e.State)
	}
	return fmt.Sprintf("run %s ended in %s: %s", e.RunID, e.State, e.Message)
}
