// internal/engine/submitter/budget.go
package submitter

import "sync"

// Budget hands out the units of a run's reserved quota to the worker
// pool. A candidate that cannot acquire a unit terminates as skipped.
type Budget struct {
	mu        sync.Mutex
	remaining int
}

func NewBudget(reserved int) *Budget {
	return &Budget{remaining: reserved}
}

// TryAcquire claims one unit, returning false when the batch budget is
// exhausted.
func (b *Budget) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Remaining reports the units never claimed by any candidate. The
// orchestrator releases these back to the quota window at the end of the
// run.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}
