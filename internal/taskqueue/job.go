package taskqueue

import (
	"context"
	"errors"
)

// ErrInvalidJob is returned when a job carries no function to run.
var ErrInvalidJob = errors.New("invalid job")

// Job is a unit of work executed by the queue worker.
//
// ID is used for logs only. Two jobs with the same ID are both executed.
// Kind groups jobs in logs and metrics.
type Job struct {
	ID   string
	Kind string
	Run  func(ctx context.Context) error

	// Blocking jobs run on their own goroutine. The worker waits for them
	// but stays responsive to cancellation while they run.
	Blocking bool
}

// Func returns a job that is executed inline by the worker and is expected
// to honour ctx.
func Func(id, kind string, fn func(ctx context.Context) error) Job {
	return Job{ID: id, Kind: kind, Run: fn}
}

// Blocking returns a job for a function that cannot be interrupted. When the
// worker context is cancelled the function is left to finish on its own, and
// the next worker started on the queue waits for it before taking a job.
func Blocking(id, kind string, fn func() error) Job {
	job := Job{ID: id, Kind: kind, Blocking: true}
	if fn != nil {
		job.Run = func(context.Context) error { return fn() }
	}
	return job
}

func (j Job) validate() error {
	if j.Run == nil {
		return ErrInvalidJob
	}
	return nil
}

func (j Job) kind() string {
	if j.Kind == "" {
		return "default"
	}
	return j.Kind
}
