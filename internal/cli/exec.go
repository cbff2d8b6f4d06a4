package cli

import "github.com/jonike/transwarp"

// newExecutor builds the executor selected by a worker count. Zero or fewer
// workers selects the sequential executor. The returned func releases the
// executor's resources.
func newExecutor(workers int) (transwarp.Executor, func(), error) {
	if workers <= 0 {
		return transwarp.NewSequential(), func() {}, nil
	}
	p, err := transwarp.NewParallel(workers)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}
