package graphfile

import (
	"fmt"
	"sync"

	"github.com/gammazero/toposort"

	"github.com/jonike/transwarp"
)

// Params is a mutable bundle of named values read by parameterized root
// nodes. Roots read their parameter fresh on every pass, so mutating a
// Params between passes changes what the next pass computes.
type Params struct {
	mu   sync.RWMutex
	vals map[string]any
}

// NewParams returns an empty parameter bundle.
func NewParams() *Params {
	return &Params{vals: make(map[string]any)}
}

// Set stores a named parameter value.
func (p *Params) Set(name string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vals[name] = value
}

// Get retrieves a named parameter value.
func (p *Params) Get(name string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.vals[name]
	return v, ok
}

// Built is the runnable form of a graph definition.
type Built struct {
	Final  *transwarp.Task[any]
	Tasks  map[string]*transwarp.Task[any]
	Params *Params
}

// Build validates the definition and constructs its task graph. The returned
// Params starts empty; callers set any parameters referenced by root nodes
// before scheduling a pass.
func (f *File) Build() (*Built, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	order, err := f.buildOrder()
	if err != nil {
		return nil, err
	}

	params := NewParams()
	tasks := make(map[string]*transwarp.Task[any], len(f.Nodes))

	for _, id := range order {
		spec := f.nodeByID(id)
		task, err := buildNode(spec, tasks, params)
		if err != nil {
			return nil, err
		}
		tasks[id] = task
	}

	finalID := f.Final
	if finalID == "" {
		finalID = f.Nodes[len(f.Nodes)-1].ID
	}

	return &Built{
		Final:  tasks[finalID],
		Tasks:  tasks,
		Params: params,
	}, nil
}

// buildOrder returns node ids in dependency order.
func (f *File) buildOrder() ([]string, error) {
	edges := make([]toposort.Edge, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		edges = append(edges, toposort.Edge{nil, n.ID})
		for _, dep := range n.DependsOn {
			edges = append(edges, toposort.Edge{dep, n.ID})
		}
	}
	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, transwarp.NewGraphFileError("graph contains a dependency cycle", err)
	}
	order := make([]string, 0, len(f.Nodes))
	for _, v := range sorted {
		if v == nil {
			continue
		}
		order = append(order, v.(string))
	}
	return order, nil
}

func buildNode(spec *NodeSpec, tasks map[string]*transwarp.Task[any], params *Params) (*transwarp.Task[any], error) {
	deps := make([]transwarp.AnyTask, 0, len(spec.DependsOn))
	for _, dep := range spec.DependsOn {
		deps = append(deps, tasks[dep])
	}

	switch spec.kind() {
	case kindRoot:
		if spec.Param != "" {
			name := spec.Param
			return transwarp.Root(spec.label(), func() (any, error) {
				v, ok := params.Get(name)
				if !ok {
					return nil, transwarp.NewGraphFileError(
						fmt.Sprintf("parameter '%s' not set", name), nil)
				}
				return v, nil
			}), nil
		}
		return transwarp.Value[any](spec.label(), spec.Value), nil

	case kindConsume:
		expr, err := compileExpression(spec.Expr)
		if err != nil {
			return nil, transwarp.NewGraphFileError(
				fmt.Sprintf("node '%s' has an invalid expression", spec.ID), err)
		}
		depIDs := append([]string(nil), spec.DependsOn...)
		return transwarp.ConsumeAny(spec.label(), func(args []any) (any, error) {
			vars := make(map[string]any, len(args))
			for i, id := range depIDs {
				vars[id] = args[i]
			}
			return expr.Evaluate(vars)
		}, deps...), nil

	case kindWait:
		if spec.Expr == "" {
			return transwarp.Wait[any](spec.label(), func() (any, error) {
				return true, nil
			}, deps...), nil
		}
		expr, err := compileExpression(spec.Expr)
		if err != nil {
			return nil, transwarp.NewGraphFileError(
				fmt.Sprintf("node '%s' has an invalid expression", spec.ID), err)
		}
		return transwarp.Wait[any](spec.label(), func() (any, error) {
			return expr.Evaluate(nil)
		}, deps...), nil
	}

	return nil, transwarp.NewGraphFileError(
		fmt.Sprintf("node '%s' has unknown kind '%s'", spec.ID, spec.Kind), nil)
}
