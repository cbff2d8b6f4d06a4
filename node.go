package transwarp

import "sync/atomic"

// BindMode describes how a node binds to its dependencies.
type BindMode uint8

const (
	// BindValue marks a source node: no dependencies, supplies a value directly.
	BindValue BindMode = iota
	// BindConsume passes the dependencies' results positionally into the computation.
	BindConsume
	// BindWait sequences after the dependencies but discards their results.
	BindWait
)

func (m BindMode) String() string {
	switch m {
	case BindValue:
		return "value"
	case BindConsume:
		return "consume"
	case BindWait:
		return "wait"
	default:
		return "unknown"
	}
}

// nodeSeq hands out process-unique node identities in construction order.
var nodeSeq atomic.Uint64

// node is the type-erased unit of computation behind every Task handle.
// Its dependency list is fixed at construction; only the result cell
// mutates afterwards, once per scheduling pass.
type node struct {
	id    uint64
	label string
	mode  BindMode
	deps  []*node
	run   func(args []any) (any, error)
	cell  cell

	// inflight guards against overlapping passes rooted at this node.
	inflight atomic.Bool
}

func newNode(label string, mode BindMode, deps []*node, run func(args []any) (any, error)) *node {
	n := &node{
		id:    nodeSeq.Add(1),
		label: label,
		mode:  mode,
		deps:  deps,
		run:   run,
	}
	n.cell.init()
	return n
}

// AnyTask is the type-erased view of a Task handle, used wherever
// dependencies of differing result types appear in one list.
type AnyTask interface {
	// ID returns the node's process-unique identity.
	ID() uint64
	// Label returns the caller-supplied descriptive label.
	Label() string

	node() *node
}

// Task is a typed handle to a single node in a task graph. The zero value is
// not usable; handles are created through the combinators.
type Task[T any] struct {
	n *node
}

func (t *Task[T]) node() *node { return t.n }

// ID returns the node's process-unique identity.
func (t *Task[T]) ID() uint64 { return t.n.id }

// Label returns the caller-supplied descriptive label.
func (t *Task[T]) Label() string { return t.n.label }

// Future returns a handle to this node's result for the most recent pass.
// It may be obtained before any pass has run; Get then blocks until the
// first pass resolves this node.
func (t *Task[T]) Future() *Future[T] {
	return &Future[T]{c: &t.n.cell, label: t.n.label}
}

func depNodes(deps ...AnyTask) []*node {
	nodes := make([]*node, len(deps))
	for i, d := range deps {
		nodes[i] = d.node()
	}
	return nodes
}

// Root creates a source node with no dependencies. fn is re-invoked fresh on
// every pass, so closing over external mutable state is the supported way to
// feed changing inputs into an otherwise fixed graph. The caller must keep
// that state stable for the duration of a pass.
func Root[T any](label string, fn func() (T, error)) *Task[T] {
	n := newNode(label, BindValue, nil, func([]any) (any, error) {
		return fn()
	})
	return &Task[T]{n: n}
}

// Value creates a source node that yields a fixed value on every pass.
func Value[T any](label string, v T) *Task[T] {
	return Root(label, func() (T, error) { return v, nil })
}

// Consume creates a node whose computation receives the result of dep once it
// is ready. The dependency's result type is enforced positionally at compile
// time; higher arities are covered by Consume2 through Consume5 and, beyond
// that, ConsumeAny.
func Consume[A, T any](label string, fn func(A) (T, error), dep *Task[A]) *Task[T] {
	n := newNode(label, BindConsume, depNodes(dep), func(args []any) (any, error) {
		return fn(args[0].(A))
	})
	return &Task[T]{n: n}
}

// Consume2 creates a node consuming two dependencies.
func Consume2[A, B, T any](label string, fn func(A, B) (T, error), depA *Task[A], depB *Task[B]) *Task[T] {
	n := newNode(label, BindConsume, depNodes(depA, depB), func(args []any) (any, error) {
		return fn(args[0].(A), args[1].(B))
	})
	return &Task[T]{n: n}
}

// Consume3 creates a node consuming three dependencies.
func Consume3[A, B, C, T any](label string, fn func(A, B, C) (T, error), depA *Task[A], depB *Task[B], depC *Task[C]) *Task[T] {
	n := newNode(label, BindConsume, depNodes(depA, depB, depC), func(args []any) (any, error) {
		return fn(args[0].(A), args[1].(B), args[2].(C))
	})
	return &Task[T]{n: n}
}

// Consume4 creates a node consuming four dependencies.
func Consume4[A, B, C, D, T any](label string, fn func(A, B, C, D) (T, error), depA *Task[A], depB *Task[B], depC *Task[C], depD *Task[D]) *Task[T] {
	n := newNode(label, BindConsume, depNodes(depA, depB, depC, depD), func(args []any) (any, error) {
		return fn(args[0].(A), args[1].(B), args[2].(C), args[3].(D))
	})
	return &Task[T]{n: n}
}

// Consume5 creates a node consuming five dependencies.
func Consume5[A, B, C, D, E, T any](label string, fn func(A, B, C, D, E) (T, error), depA *Task[A], depB *Task[B], depC *Task[C], depD *Task[D], depE *Task[E]) *Task[T] {
	n := newNode(label, BindConsume, depNodes(depA, depB, depC, depD, depE), func(args []any) (any, error) {
		return fn(args[0].(A), args[1].(B), args[2].(C), args[3].(D), args[4].(E))
	})
	return &Task[T]{n: n}
}

// ConsumeAny creates a node from a type-erased computation. args carries the
// dependencies' results in declared order; matching them to concrete types is
// the computation's responsibility. Intended for programmatic graph builders
// such as the graphfile loader, where arity is not known at compile time.
func ConsumeAny(label string, fn func(args []any) (any, error), deps ...AnyTask) *Task[any] {
	n := newNode(label, BindConsume, depNodes(deps...), fn)
	return &Task[any]{n: n}
}

// Wait creates a node that runs only after all deps have completed but
// receives none of their results. Used to sequence side-effecting steps.
func Wait[T any](label string, fn func() (T, error), deps ...AnyTask) *Task[T] {
	n := newNode(label, BindWait, depNodes(deps...), func([]any) (any, error) {
		return fn()
	})
	return &Task[T]{n: n}
}
