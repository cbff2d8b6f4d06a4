// Package transwarp is a dependency-graph task execution engine: callers
// compose typed computation nodes into a directed acyclic graph, then hand
// the graph to a pluggable executor that runs the nodes in dependency order,
// optionally across a fixed pool of workers, and exposes each node's result
// as a future.
//
// Graphs are built bottom-up through combinators. Root creates a source node;
// Consume (and its higher-arity variants) creates a node that receives its
// dependencies' results positionally; Wait sequences after dependencies while
// discarding their results:
//
//	a := transwarp.Value("a", 2)
//	b := transwarp.Value("b", 3)
//	c := transwarp.Consume2("sum", func(x, y int) (int, error) {
//		return x + y, nil
//	}, a, b)
//
//	ex, _ := transwarp.NewParallel(4)
//	if err := c.ScheduleAll(ctx, ex); err != nil {
//		return err
//	}
//	sum, err := c.Future().Get(ctx)
//
// A graph may be scheduled any number of times; root computations are
// re-invoked fresh on each pass, so inputs mutated between passes flow
// through the whole graph. A node whose dependency failed never runs: its
// future re-raises the upstream cause, while independent branches complete
// normally.
package transwarp
