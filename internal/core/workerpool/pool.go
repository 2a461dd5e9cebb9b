// Package workerpool bounds how many echo connections are served at once.
package workerpool

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/alitto/pond"

	"echo_nexus/internal/shared/logger"
	"echo_nexus/internal/shared/types"
)

// ErrStopped is returned by Execute once the pool no longer accepts tasks.
var ErrStopped = errors.New("worker pool is stopped")

// Pool runs submitted tasks on a fixed set of persistent workers.
type Pool struct {
	size    int
	pool    *pond.WorkerPool
	stopped atomic.Bool
}

// Option tweaks a Pool at construction time.
type Option func(*options)

type options struct {
	queueSize int
	onPanic   func(interface{})
}

// WithQueueSize sets how many tasks may wait for a free worker before
// Execute starts blocking the caller.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.queueSize = n
		}
	}
}

// WithPanicHandler replaces the default panic reporter.
func WithPanicHandler(fn func(interface{})) Option {
	return func(o *options) {
		o.onPanic = fn
	}
}

// New creates a pool with size persistent workers; size < 1 becomes 1.
func New(size int, opts ...Option) *Pool {
	if size < 1 {
		size = 1
	}
	o := options{queueSize: types.DefaultQueueSize, onPanic: reportPanic}
	for _, opt := range opts {
		opt(&o)
	}

	return &Pool{
		size: size,
		pool: pond.New(size, o.queueSize,
			pond.MinWorkers(size),
			pond.PanicHandler(o.onPanic),
		),
	}
}

func reportPanic(p interface{}) {
	logger.Error().
		Str("panic", fmt.Sprint(p)).
		Str("stack", string(debug.Stack())).
		Msg("WorkerPool: task panicked, worker recovered")
}

// Execute enqueues task, blocking while the queue is full. A panicking task is
// reported and does not take its worker down. After Stop the task is refused
// with ErrStopped and the caller still owns whatever the task would release.
func (p *Pool) Execute(task func()) (err error) {
	if p.stopped.Load() {
		return ErrStopped
	}
	// pond panics when Stop lands between the check above and the submit.
	defer func() {
		if r := recover(); r != nil {
			if r == pond.ErrSubmitOnStoppedPool {
				err = ErrStopped
				return
			}
			panic(r)
		}
	}()
	p.pool.Submit(task)
	return nil
}

// Size is the fixed number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Running returns the number of tasks currently executing.
func (p *Pool) Running() int {
	return p.pool.RunningWorkers() - p.pool.IdleWorkers()
}

// Waiting returns the number of tasks queued for a free worker.
func (p *Pool) Waiting() uint64 {
	return p.pool.WaitingTasks()
}

// Stats returns a snapshot for the status API.
func (p *Pool) Stats() types.PoolStats {
	return types.PoolStats{
		Size:      p.size,
		Running:   p.Running(),
		Waiting:   p.pool.WaitingTasks(),
		Submitted: p.pool.SubmittedTasks(),
		Failed:    p.pool.FailedTasks(),
	}
}

// Stop stops accepting tasks and drops queued ones without waiting for
// running tasks, which may be blocked on idle peers indefinitely.
func (p *Pool) Stop() {
	p.stopped.Store(true)
	p.pool.Stop()
}

// StopAndWait stops accepting tasks and waits for queued ones to finish.
func (p *Pool) StopAndWait() {
	p.stopped.Store(true)
	p.pool.StopAndWait()
}

// Stopped reports whether the pool no longer accepts tasks.
func (p *Pool) Stopped() bool {
	return p.stopped.Load() || p.pool.Stopped()
}
