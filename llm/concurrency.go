package llm

import (
	"github.com/sourcegraph/conc/pool"
)

// RunBounded runs each fn concurrently, capped at maxWorkers
// in-flight at once, and returns the first error encountered (all
// fns still run to completion). The stage engine's batch dispatchers
// (RunFilter, RunCategorize) are the call sites, bounded by
// Options.Workers.
func RunBounded(maxWorkers int, fns []func() error) error {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	p := pool.New().WithMaxGoroutines(maxWorkers).WithErrors()
	for _, fn := range fns {
		fn := fn
		p.Go(func() error { return fn() })
	}
	return p.Wait()
}
