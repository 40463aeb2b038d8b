package gpio

import (
	"sync"

	"github.com/sweeney/sensor-gateway/internal/gateway"
)

// FakeIndicator is a test double that records every state shown.
type FakeIndicator struct {
	mu sync.Mutex

	// Shown contains the states passed to Show, in order.
	Shown []gateway.NodeState

	// ShowError, if set, will be returned by Show.
	ShowError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeIndicator creates a FakeIndicator.
func NewFakeIndicator() *FakeIndicator {
	return &FakeIndicator{}
}

// Show records state.
func (f *FakeIndicator) Show(state gateway.NodeState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ShowError != nil {
		return f.ShowError
	}
	f.Shown = append(f.Shown, state)
	return nil
}

// States returns a copy of the recorded states.
func (f *FakeIndicator) States() []gateway.NodeState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.NodeState(nil), f.Shown...)
}

// Close marks the indicator as closed.
func (f *FakeIndicator) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
