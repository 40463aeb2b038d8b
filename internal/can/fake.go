package can

import (
	"sync"

	socketcan "github.com/brutella/can"
)

// FakeBus records published frames and loops delivered frames back to
// subscribed receivers.
type FakeBus struct {
	mu sync.Mutex

	// Published contains every frame passed to Publish.
	Published []socketcan.Frame

	// PublishError, if set, will be returned by Publish.
	PublishError error

	receivers []*Receiver
}

// NewFakeBus creates an empty FakeBus.
func NewFakeBus() *FakeBus {
	return &FakeBus{}
}

// Publish records the frame.
func (f *FakeBus) Publish(frame socketcan.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Published = append(f.Published, frame)
	return nil
}

// Subscribe registers r for Deliver.
func (f *FakeBus) Subscribe(r *Receiver) {
	f.mu.Lock()
	f.receivers = append(f.receivers, r)
	f.mu.Unlock()
}

// Deliver simulates reception of frame by every subscriber.
func (f *FakeBus) Deliver(frame socketcan.Frame) {
	f.mu.Lock()
	rs := append([]*Receiver(nil), f.receivers...)
	f.mu.Unlock()
	for _, r := range rs {
		r.Handle(frame)
	}
}

// Frames returns a copy of the published frames and forgets them.
func (f *FakeBus) Frames() []socketcan.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.Published
	f.Published = nil
	return out
}
