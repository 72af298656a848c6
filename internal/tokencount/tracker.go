// Package tokencount tracks LLM token usage for the active session.
package tokencount

import (
	"fmt"
	"sync"
)

// InvalidCountError reports an attempt to add a negative token count.
type InvalidCountError struct {
	Count int
}

func (e *InvalidCountError) Error() string {
	return fmt.Sprintf("invalid token count %d: count must be a non-negative integer", e.Count)
}

// Tracker accumulates tokens consumed by the active chat engine since the
// last reset. A fresh tracker is installed whenever an engine is (re)built.
type Tracker struct {
	mu    sync.Mutex
	total int
}

// NewTracker returns a tracker with a zero total.
func NewTracker() *Tracker {
	return &Tracker{}
}

// AddCount adds n to the running total. Negative counts are rejected.
func (t *Tracker) AddCount(n int) error {
	if n < 0 {
		return &InvalidCountError{Count: n}
	}
	t.mu.Lock()
	t.total += n
	t.mu.Unlock()
	return nil
}

// Reset sets the running total to zero. Called before each question-answering
// invocation so the reported usage reflects only that call.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.total = 0
	t.mu.Unlock()
}

// Total returns the current running total.
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}
