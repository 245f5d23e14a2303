package detect

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestBudgetCeilingExactUnderConcurrency(t *testing.T) {
	budget := NewBudget(5)

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if budget.Acquire() {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	if granted.Load() != 5 {
		t.Fatalf("granted %d slots, want 5", granted.Load())
	}
	if !budget.Exhausted() {
		t.Fatalf("budget must be exhausted")
	}
	if budget.Used() != 5 {
		t.Fatalf("used %d, want 5", budget.Used())
	}
}

func TestBudgetNilIsUnlimited(t *testing.T) {
	var budget *Budget

	for i := 0; i < 1000; i++ {
		if !budget.Acquire() {
			t.Fatalf("nil budget denied acquire at %d", i)
		}
	}
	if budget.Exhausted() {
		t.Fatalf("nil budget must never exhaust")
	}
	if budget.Used() != 0 {
		t.Fatalf("nil budget used: %d", budget.Used())
	}
}

func TestBudgetDisabledByZeroCeiling(t *testing.T) {
	if NewBudget(0) != nil {
		t.Fatalf("zero ceiling must disable the budget")
	}
	if NewBudget(-3) != nil {
		t.Fatalf("negative ceiling must disable the budget")
	}
}
