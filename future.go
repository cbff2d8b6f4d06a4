package transwarp

import (
	"context"
	"sync"
)

type cellState uint8

const (
	statePending cellState = iota
	stateReady
	stateFailed
)

// cell is the per-node shared result holder: exactly one writer per pass,
// many concurrent readers. It is reset to pending at the start of each pass.
type cell struct {
	mu    sync.Mutex
	state cellState
	value any
	err   error
	done  chan struct{}
}

func (c *cell) init() {
	c.done = make(chan struct{})
}

// reset returns the cell to pending before a new pass. A cell that is still
// pending keeps its current done channel so that waiters parked across passes
// are released by the pass that eventually resolves it.
func (c *cell) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == statePending {
		return
	}
	c.state = statePending
	c.value = nil
	c.err = nil
	c.done = make(chan struct{})
}

func (c *cell) fulfill(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = stateReady
	c.value = v
	close(c.done)
}

func (c *cell) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = stateFailed
	c.err = err
	close(c.done)
}

// peek reads a resolved cell without blocking. Only valid once the scheduler
// has observed the cell out of pending.
func (c *cell) peek() (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateFailed {
		return nil, c.err
	}
	return c.value, nil
}

func (c *cell) failed() (error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateFailed {
		return c.err, true
	}
	return nil, false
}

// get blocks until the cell leaves pending, then yields the outcome. The
// context cancels the wait only, never the pass that will resolve the cell.
func (c *cell) get(ctx context.Context) (any, error) {
	for {
		c.mu.Lock()
		switch c.state {
		case stateReady:
			v := c.value
			c.mu.Unlock()
			return v, nil
		case stateFailed:
			err := c.err
			c.mu.Unlock()
			return nil, err
		}
		done := c.done
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, NewCancelledError("future", ctx.Err())
		case <-done:
		}
	}
}

// Future is a blocking read handle to a node's latest-pass result. Multiple
// goroutines may resolve Futures for the same node concurrently; all observe
// the identical outcome.
type Future[T any] struct {
	c     *cell
	label string
}

// Get blocks until the node's result cell resolves, then returns the value or
// re-raises the captured failure. Cancelling ctx abandons the wait with an
// ErrCodeCancelled error.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	v, err := f.c.get(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Label returns the label of the node this future belongs to.
func (f *Future[T]) Label() string { return f.label }
