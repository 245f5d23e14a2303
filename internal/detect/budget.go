package detect

import "sync/atomic"

// Budget caps the number of alerts emitted over the process lifetime. A nil
// Budget is unlimited, so detector variants that run without a cap share the
// same code path.
type Budget struct {
	ceiling int64
	used    atomic.Int64
}

// NewBudget builds a budget with the given ceiling. A ceiling of zero or less
// disables budgeting.
func NewBudget(ceiling int64) *Budget {
	if ceiling <= 0 {
		return nil
	}
	return &Budget{ceiling: ceiling}
}

// Exhausted reports whether the ceiling has been reached.
func (b *Budget) Exhausted() bool {
	if b == nil {
		return false
	}
	return b.used.Load() >= b.ceiling
}

// Acquire reserves one alert slot. The compare-and-swap keeps the ceiling
// exact under concurrent dispatch.
func (b *Budget) Acquire() bool {
	if b == nil {
		return true
	}
	for {
		used := b.used.Load()
		if used >= b.ceiling {
			return false
		}
		if b.used.CompareAndSwap(used, used+1) {
			return true
		}
	}
}

// Used returns the number of slots taken so far.
func (b *Budget) Used() int64 {
	if b == nil {
		return 0
	}
	return b.used.Load()
}
