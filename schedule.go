package transwarp

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jonike/transwarp/eventbus"
)

// PassOption configures a single scheduling pass.
type PassOption func(*passConfig)

type passConfig struct {
	logger   *log.Logger
	bus      eventbus.Bus
	observer func(eventbus.Event)
}

// WithLogger attaches a structured logger to the pass.
func WithLogger(logger *log.Logger) PassOption {
	return func(c *passConfig) {
		c.logger = logger
	}
}

// WithEventBus publishes pass and node lifecycle events to bus asynchronously.
func WithEventBus(bus eventbus.Bus) PassOption {
	return func(c *passConfig) {
		c.bus = bus
	}
}

// WithObserver invokes fn synchronously for every pass and node lifecycle
// event. fn runs on scheduler and worker goroutines and must be safe for
// concurrent invocation under a parallel executor.
func WithObserver(fn func(eventbus.Event)) PassOption {
	return func(c *passConfig) {
		c.observer = fn
	}
}

// ScheduleAll runs one complete execution pass over the graph reachable from
// this node: every reachable node's result cell is reset to pending, then each
// node runs on the executor exactly once after all of its dependencies have
// resolved. Nodes downstream of a failure are marked failed without running.
// ScheduleAll returns once every reachable node has left pending; results are
// read through Futures.
//
// Passes over the same graph must not overlap; mutate root-captured inputs
// only between passes.
func (t *Task[T]) ScheduleAll(ctx context.Context, ex Executor, opts ...PassOption) error {
	return scheduleAll(ctx, t.n, ex, opts...)
}

// pass holds the bookkeeping for one schedule-all invocation. The only state
// mutated concurrently is the remaining-dependency counters and the unresolved
// count, both atomics, plus the ready queue, a buffered channel sized so that
// enqueueing never blocks a worker.
type pass struct {
	id    string
	ctx   context.Context
	ex    Executor
	cfg   passConfig
	final *node

	nodes      []*node
	dependents map[*node][]*node
	remaining  map[*node]*atomic.Int32
	unresolved atomic.Int64
	ready      chan *node
}

func scheduleAll(ctx context.Context, final *node, ex Executor, opts ...PassOption) error {
	if ex == nil {
		return NewExecutorError("executor must not be nil", nil)
	}

	var cfg passConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	nodes := reachable(final)

	if !final.inflight.CompareAndSwap(false, true) {
		return NewInternalError("scheduling",
			fmt.Sprintf("pass already in flight for final node '%s'", final.label), nil)
	}

	p := &pass{
		id:         uuid.New().String(),
		ctx:        ctx,
		ex:         ex,
		cfg:        cfg,
		final:      final,
		nodes:      nodes,
		dependents: make(map[*node][]*node, len(nodes)),
		remaining:  make(map[*node]*atomic.Int32, len(nodes)),
		ready:      make(chan *node, len(nodes)),
	}
	p.unresolved.Store(int64(len(nodes)))

	// Reset every cell before any node runs, so no result leaks across passes.
	for _, n := range nodes {
		n.cell.reset()
	}
	for _, n := range nodes {
		counter := new(atomic.Int32)
		counter.Store(int32(len(n.deps)))
		p.remaining[n] = counter
		for _, dep := range n.deps {
			p.dependents[dep] = append(p.dependents[dep], n)
		}
	}

	if p.cfg.logger != nil {
		p.cfg.logger.Debug("pass started", "pass", p.id, "final", final.label, "nodes", len(nodes))
	}
	p.publish(eventbus.NewEvent(eventbus.EventPassStarted, p.id, map[string]any{
		"final": final.label,
		"nodes": len(nodes),
	}))

	// Roots are ready immediately, in construction order.
	for _, n := range nodes {
		if len(n.deps) == 0 {
			p.ready <- n
		}
	}

	// Drain until the last resolution closes the queue. Under a sequential
	// executor Submit runs the node inline; under a parallel executor it
	// hands the node to a worker and the loop keeps dispatching.
	for n := range p.ready {
		n := n
		p.ex.Submit(func() { p.execute(n) })
	}

	return nil
}

// execute runs one node's computation, or fails it without running when an
// upstream dependency failed or the pass context is cancelled.
func (p *pass) execute(n *node) {
	if dep, cause := p.failedDep(n); dep != nil {
		n.cell.fail(NewUpstreamError(n.label, dep.label, cause))
		if p.cfg.logger != nil {
			p.cfg.logger.Debug("node skipped", "pass", p.id, "node", n.label, "failed_dep", dep.label)
		}
		p.publish(eventbus.NewEvent(eventbus.EventNodeSkipped, p.id, nil).WithNode(n.id, n.label).WithError(cause))
		p.resolved(n)
		return
	}

	if err := p.ctx.Err(); err != nil {
		n.cell.fail(NewCancelledError("scheduling", err))
		p.publish(eventbus.NewEvent(eventbus.EventNodeFailed, p.id, nil).WithNode(n.id, n.label).WithError(err))
		p.resolved(n)
		return
	}

	var args []any
	if n.mode == BindConsume {
		args = make([]any, len(n.deps))
		for i, dep := range n.deps {
			args[i], _ = dep.cell.peek()
		}
	}

	p.publish(eventbus.NewEvent(eventbus.EventNodeStarted, p.id, nil).WithNode(n.id, n.label))

	value, err := p.run(n, args)
	if err != nil {
		n.cell.fail(NewComputeError(n.label, err))
		if p.cfg.logger != nil {
			p.cfg.logger.Error("node failed", "pass", p.id, "node", n.label, "err", err)
		}
		p.publish(eventbus.NewEvent(eventbus.EventNodeFailed, p.id, nil).WithNode(n.id, n.label).WithError(err))
	} else {
		n.cell.fulfill(value)
		p.publish(eventbus.NewEvent(eventbus.EventNodeReady, p.id, nil).WithNode(n.id, n.label))
	}

	p.resolved(n)
}

// run invokes the node's computation, converting a panic into a captured
// failure so nothing ever escapes across a worker goroutine uncaught.
func (p *pass) run(n *node, args []any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return n.run(args)
}

// resolved propagates one node's completion: each dependent's remaining count
// drops by one and the dependent is enqueued exactly once, when it hits zero.
// The final resolution closes the ready queue, ending the pass.
func (p *pass) resolved(n *node) {
	for _, d := range p.dependents[n] {
		if p.remaining[d].Add(-1) == 0 {
			p.ready <- d
		}
	}
	if p.unresolved.Add(-1) == 0 {
		p.finish()
	}
}

func (p *pass) finish() {
	close(p.ready)
	p.final.inflight.Store(false)
	if p.cfg.logger != nil {
		p.cfg.logger.Debug("pass finished", "pass", p.id, "final", p.final.label)
	}
	p.publish(eventbus.NewEvent(eventbus.EventPassFinished, p.id, map[string]any{
		"final": p.final.label,
	}))
}

// failedDep returns the first declared dependency that ended the pass failed,
// along with the originating cause.
func (p *pass) failedDep(n *node) (*node, error) {
	for _, dep := range n.deps {
		if err, ok := dep.cell.failed(); ok {
			return dep, rootCause(err)
		}
	}
	return nil, nil
}

// rootCause unwinds chained upstream errors to the original compute failure,
// so every node on a failure frontier reports the same cause.
func rootCause(err error) error {
	for {
		te, ok := err.(*TranswarpError)
		if !ok || te.Code != ErrCodeUpstream || te.Cause == nil {
			return err
		}
		err = te.Cause
	}
}

func (p *pass) publish(ev eventbus.Event) {
	if p.cfg.observer != nil {
		p.cfg.observer(ev)
	}
	if p.cfg.bus != nil {
		_ = p.cfg.bus.Publish(p.ctx, ev)
	}
}
