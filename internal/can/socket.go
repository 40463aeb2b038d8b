package can

import socketcan "github.com/brutella/can"

// SocketBus is a SocketCAN interface opened through brutella/can.
type SocketBus struct {
	bus *socketcan.Bus
}

// Publish writes one frame to the interface.
func (s *SocketBus) Publish(f socketcan.Frame) error {
	return s.bus.Publish(f)
}

// Subscribe delivers every received frame to r.
func (s *SocketBus) Subscribe(r *Receiver) {
	s.bus.Subscribe(r)
}

// Run reads frames and hands them to subscribers until Close is called.
func (s *SocketBus) Run() error {
	return s.bus.ConnectAndPublish()
}

// Close disconnects from the interface, which makes Run return.
func (s *SocketBus) Close() error {
	return s.bus.Disconnect()
}
