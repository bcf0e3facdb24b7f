package gpio

import (
	"fmt"
	"sync"
)

// FakeLines is a test double that records line states.
type FakeLines struct {
	mu sync.Mutex

	// States holds the current logical state of each line.
	States []bool

	// Writes counts calls to Set.
	Writes int

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeLines creates FakeLines with n lines, all off.
func NewFakeLines(n int) *FakeLines {
	return &FakeLines{States: make([]bool, n)}
}

// Set records the new state.
func (f *FakeLines) Set(index int, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SetError != nil {
		return f.SetError
	}
	if index < 0 || index >= len(f.States) {
		return fmt.Errorf("gpio: line %d not configured", index)
	}
	f.States[index] = on
	f.Writes++
	return nil
}

// State returns the state of line index.
func (f *FakeLines) State(index int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.States[index]
}

// Close clears every line and marks the fake as closed.
func (f *FakeLines) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.States {
		f.States[i] = false
	}
	f.Closed = true
	return nil
}
