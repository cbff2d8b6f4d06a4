package transwarp

import (
	"fmt"

	"github.com/sourcegraph/conc/pool"
)

// Executor is the strategy deciding how and where a ready node's computation
// runs. Implementations must run every submitted job exactly once; whether
// Submit blocks until the job completes is the strategy's choice.
type Executor interface {
	Submit(job func())
}

// Sequential runs every job synchronously on the calling goroutine, so a full
// pass executes single-threaded in the scheduler-determined order.
type Sequential struct{}

// NewSequential creates the in-thread executor.
func NewSequential() *Sequential { return &Sequential{} }

// Submit invokes job before returning.
func (s *Sequential) Submit(job func()) { job() }

// Parallel runs jobs on a fixed-size worker pool. A single Parallel instance
// may serve any number of passes over any number of graphs; workers are
// shared across all of them.
type Parallel struct {
	workers int
	pool    *pool.Pool
}

// NewParallel creates a pool-backed executor with the given worker count.
// A non-positive count is a construction error.
func NewParallel(workers int) (*Parallel, error) {
	if workers <= 0 {
		return nil, NewExecutorError(fmt.Sprintf("worker count must be positive, got %d", workers), nil)
	}
	return &Parallel{
		workers: workers,
		pool:    pool.New().WithMaxGoroutines(workers),
	}, nil
}

// Submit hands job to the pool. It returns as soon as a worker accepts the
// job, or blocks briefly when all workers are busy.
func (p *Parallel) Submit(job func()) { p.pool.Go(job) }

// Workers returns the fixed worker count set at construction.
func (p *Parallel) Workers() int { return p.workers }

// Close drains the pool and releases its workers. The executor must not be
// used afterwards.
func (p *Parallel) Close() { p.pool.Wait() }
