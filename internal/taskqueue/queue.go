// Package taskqueue runs jobs one at a time, in submission order, on a single
// background worker fed by a bounded queue.
package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hrvibe/hrvibe-core/internal/logger"
)

const (
	DefaultCapacity     = 200
	DefaultPollInterval = time.Second
)

// PanicError wraps a value recovered from a panicking job.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

type Option func(*Queue)

// WithPollInterval sets how long the worker waits for a job before it
// re-checks whether it was asked to stop.
func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.pollInterval = d
		}
	}
}

// WithMetrics registers the queue collectors in reg, labelled with name.
func WithMetrics(reg prometheus.Registerer, name string) Option {
	return func(q *Queue) {
		q.registerer = reg
		if name != "" {
			q.name = name
		}
	}
}

// Queue is a bounded FIFO of jobs drained by at most one worker.
type Queue struct {
	jobs         chan Job
	logger       *zap.Logger
	pollInterval time.Duration
	name         string
	registerer   prometheus.Registerer
	metrics      *metrics

	mu    sync.Mutex
	state State
	// quit is closed to ask the running worker to exit; done is closed by the
	// worker once it has exited.
	quit chan struct{}
	done chan struct{}
	// unfinished counts jobs accepted (or being accepted) and not yet executed.
	// idle is closed whenever unfinished is zero.
	unfinished int
	idle       chan struct{}
	// detached is closed when a blocking job left behind by a cancelled
	// worker returns.
	detached chan struct{}
}

// New creates a stopped queue. A non-positive capacity means DefaultCapacity.
func New(capacity int, log *zap.Logger, opts ...Option) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = zap.NewNop()
	}

	idle := make(chan struct{})
	close(idle)

	q := &Queue{
		jobs:         make(chan Job, capacity),
		logger:       log,
		pollInterval: DefaultPollInterval,
		name:         "default",
		idle:         idle,
	}

	for _, opt := range opts {
		opt(q)
	}

	if q.registerer != nil {
		q.metrics = newMetrics(q.name, q)
		if err := q.metrics.register(q.registerer); err != nil {
			q.logger.Warn("registering task queue metrics", zap.String("queue", q.name), zap.Error(err))
		}
	}

	return q
}

// Put appends job to the queue, waiting for free space when the queue is full.
// It fails only when ctx is done first or the job is invalid. The job outcome
// is never reported back to the caller.
func (q *Queue) Put(ctx context.Context, job Job) error {
	if err := job.validate(); err != nil {
		return err
	}

	q.track()

	select {
	case q.jobs <- job:
		q.accepted(job)
		return nil
	case <-ctx.Done():
		q.release()
		return ctx.Err()
	}
}

// TryPut appends job without waiting. It returns false, discarding the job,
// when the queue is full.
func (q *Queue) TryPut(job Job) bool {
	if err := job.validate(); err != nil {
		q.logger.Warn("rejecting job", append(logger.JobFields(job.ID, job.kind()), zap.Error(err))...)
		return false
	}

	q.track()

	select {
	case q.jobs <- job:
		q.accepted(job)
		return true
	default:
		q.release()
		q.metrics.jobRejected(job.kind())
		q.logger.Warn("task queue is full, job discarded",
			append(logger.JobFields(job.ID, job.kind()), zap.Int("capacity", q.Capacity()))...,
		)
		return false
	}
}

func (q *Queue) accepted(job Job) {
	q.metrics.jobEnqueued(job.kind())
	q.logger.Debug("job enqueued", append(logger.JobFields(job.ID, job.kind()), zap.Int("size", q.Size()))...)
}

func (q *Queue) Size() int     { return len(q.jobs) }
func (q *Queue) Capacity() int { return cap(q.jobs) }
func (q *Queue) IsFull() bool  { return len(q.jobs) == cap(q.jobs) }
func (q *Queue) IsEmpty() bool { return len(q.jobs) == 0 }

func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Start launches the worker. Jobs run with ctx; cancelling it ends the worker
// and is the only way to interrupt a job. Calling Start on a running queue
// only logs a warning.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state != StateStopped {
		q.logger.Warn("task queue worker is already running", zap.Stringer("state", q.state))
		return
	}

	q.quit = make(chan struct{})
	q.done = make(chan struct{})
	q.state = StateRunning

	go q.loop(ctx, q.quit, q.done)

	q.logger.Info("task queue worker started",
		zap.String("queue", q.name),
		zap.Int("capacity", q.Capacity()),
		zap.Int("size", q.Size()),
	)
}

// Shutdown waits until every accepted job has been executed, then stops the
// worker. When ctx ends first the worker keeps draining and the ctx error is
// returned; Stop can be used to end it.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.state == StateStopped {
		q.mu.Unlock()
		q.logger.Warn("task queue worker is not running")
		return nil
	}
	if q.unfinished > 0 {
		q.state = StateDraining
	}
	idle, done := q.idle, q.done
	q.mu.Unlock()

	q.logger.Info("draining task queue", zap.String("queue", q.name), zap.Int("size", q.Size()))

	select {
	case <-idle:
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("draining task queue: %w", ctx.Err())
	}

	return q.Stop(ctx)
}

// Stop asks the worker to exit without taking further jobs and waits for it.
// A job already running is allowed to finish. Jobs left in the queue are kept
// for the next Start.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.state == StateStopped {
		q.mu.Unlock()
		return nil
	}
	select {
	case <-q.quit:
	default:
		close(q.quit)
	}
	done := q.done
	q.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stopping task queue: %w", ctx.Err())
	}
}

// WaitEmpty blocks until every accepted job has been executed. It does not
// stop the worker.
func (q *Queue) WaitEmpty(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) loop(ctx context.Context, quit, done chan struct{}) {
	defer q.exited(done)

	if !q.awaitDetached(ctx, quit) {
		return
	}

	for {
		select {
		case <-quit:
			return
		default:
		}

		if stop := q.next(ctx, quit); stop {
			return
		}
	}
}

// awaitDetached holds a new worker back until a blocking job abandoned by the
// previous one has returned, so jobs never overlap across a restart.
func (q *Queue) awaitDetached(ctx context.Context, quit chan struct{}) bool {
	q.mu.Lock()
	finished := q.detached
	q.mu.Unlock()

	if finished == nil {
		return true
	}

	q.logger.Warn("waiting for a detached blocking job", zap.String("queue", q.name))

	select {
	case <-finished:
		q.mu.Lock()
		if q.detached == finished {
			q.detached = nil
		}
		q.mu.Unlock()
		return true
	case <-ctx.Done():
		return false
	case <-quit:
		return false
	}
}

// next waits up to the poll interval for a job and runs it. Faults outside of
// job execution are logged and swallowed.
func (q *Queue) next(ctx context.Context, quit chan struct{}) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task queue worker fault",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			stop = false
		}
	}()

	poll := time.NewTimer(q.pollInterval)
	defer poll.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-quit:
		return true
	case <-poll.C:
		return false
	case job := <-q.jobs:
		return q.execute(ctx, job)
	}
}

func (q *Queue) execute(ctx context.Context, job Job) (stop bool) {
	defer q.release()

	log := logger.WithFields(q.logger, logger.JobFields(job.ID, job.kind())...)
	log.Debug("job started", zap.Int("size", q.Size()))

	started := time.Now()
	err := q.run(ctx, job)
	elapsed := time.Since(started)

	var panicErr *PanicError
	switch {
	case err == nil:
		q.metrics.jobProcessed(job.kind(), statusSuccess, elapsed.Seconds())
		log.Debug("job finished", zap.Duration("elapsed", elapsed))
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		q.metrics.jobProcessed(job.kind(), statusCancelled, elapsed.Seconds())
		log.Warn("job cancelled, stopping worker", zap.Error(err))
		return true
	case errors.As(err, &panicErr):
		q.metrics.jobProcessed(job.kind(), statusFailed, elapsed.Seconds())
		log.Error("job panicked",
			zap.Any("panic", panicErr.Value),
			zap.ByteString("stack", panicErr.Stack),
			zap.Duration("elapsed", elapsed),
		)
	default:
		q.metrics.jobProcessed(job.kind(), statusFailed, elapsed.Seconds())
		log.Error("job failed", zap.Error(err), zap.Duration("elapsed", elapsed))
	}

	return false
}

func (q *Queue) run(ctx context.Context, job Job) error {
	if !job.Blocking {
		return safeRun(ctx, job)
	}

	result := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		result <- safeRun(ctx, job)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		q.mu.Lock()
		q.detached = finished
		q.mu.Unlock()
		return ctx.Err()
	}
}

func safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return job.Run(ctx)
}

func (q *Queue) exited(done chan struct{}) {
	q.mu.Lock()
	q.state = StateStopped
	q.mu.Unlock()

	close(done)
	q.logger.Info("task queue worker stopped", zap.String("queue", q.name), zap.Int("size", q.Size()))
}

func (q *Queue) track() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unfinished == 0 {
		q.idle = make(chan struct{})
	}
	q.unfinished++
}

func (q *Queue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unfinished == 0 {
		return
	}
	q.unfinished--
	if q.unfinished == 0 {
		close(q.idle)
	}
}
