// Package pctool is the PC side of the gateway's serial protocol, used by
// the pctool console to drive and observe a gateway by hand.
package pctool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/goburrow/serial"

	"github.com/sweeney/sensor-gateway/internal/protocol"
)

// Session speaks the PC protocol over a serial link.
type Session struct {
	ids protocol.PCIDs
	w   io.Writer

	mu       sync.Mutex
	autoAck  bool
	received uint64
	sent     uint64
	bad      uint64
}

// Counters summarize a session's traffic.
type Counters struct {
	Received  uint64
	Sent      uint64
	Malformed uint64
}

// NewSession creates a Session writing frames to w.
func NewSession(ids protocol.PCIDs, w io.Writer) *Session {
	return &Session{ids: ids, w: w}
}

// Send writes one frame.
func (s *Session) Send(f protocol.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(f)
}

func (s *Session) sendLocked(f protocol.Frame) error {
	if _, err := s.w.Write(protocol.Compose(f.ID, f.Data)); err != nil {
		return fmt.Errorf("send %s: %w", f, err)
	}
	s.sent++
	return nil
}

// ConnectGateway asks the gateway to confirm the link.
func (s *Session) ConnectGateway() error {
	return s.Send(protocol.Frame{ID: s.ids.ConnectGateway})
}

// ConnectSensor asks the gateway to send a connection request to a sensor.
func (s *Session) ConnectSensor(sensor protocol.Sensor) error {
	return s.Send(protocol.Frame{ID: s.ids.ConnectID(sensor)})
}

// Ack acknowledges a sensor reading, releasing the gateway's ack lock.
func (s *Session) Ack(sensor protocol.Sensor) error {
	return s.Send(protocol.Frame{ID: s.ids.DataID(sensor)})
}

// SetAutoAck makes the session acknowledge every reading it receives.
func (s *Session) SetAutoAck(on bool) {
	s.mu.Lock()
	s.autoAck = on
	s.mu.Unlock()
}

// AutoAck reports whether readings are acknowledged automatically.
func (s *Session) AutoAck() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoAck
}

// Counters returns the traffic counters.
func (s *Session) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counters{Received: s.received, Sent: s.sent, Malformed: s.bad}
}

// Describe explains a frame received from the gateway.
func (s *Session) Describe(f protocol.Frame) string {
	ids := s.ids
	switch f.ID {
	case ids.ConnectGateway:
		if f.Data == ids.ConnectionConfirmed {
			return "gateway connection confirmed"
		}
	case ids.ConnectDistance, ids.ConnectRotation:
		sensor := protocol.Distance
		if f.ID == ids.ConnectRotation {
			sensor = protocol.Rotation
		}
		if f.Data == ids.ConnectionConfirmed {
			return sensor.String() + " sensor connected"
		}
	case ids.DistanceData, ids.RotationData:
		sensor := protocol.Distance
		if f.ID == ids.RotationData {
			sensor = protocol.Rotation
		}
		if f.Data == ids.Disconnected {
			return sensor.String() + " sensor disconnected"
		}
		return fmt.Sprintf("%s reading %d", sensor, f.Data)
	}
	return "unrecognised frame"
}

// Run reads frames from r until EOF, a read error or ctx is done, calling
// show for each one. Readings are acknowledged when auto-ack is on.
func (s *Session) Run(ctx context.Context, r io.Reader, show func(f protocol.Frame, desc string)) error {
	asm := protocol.NewLineAssembler(protocol.DefaultLineMax)
	buf := make([]byte, 64)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			line, complete, overflow := asm.Feed(b)
			if overflow {
				s.countBad()
				continue
			}
			if !complete {
				continue
			}
			f, perr := protocol.Parse(line)
			if perr != nil {
				s.countBad()
				continue
			}
			if aerr := s.receive(f); aerr != nil {
				return aerr
			}
			show(f, s.Describe(f))
		}
		switch {
		case err == nil:
		case errors.Is(err, serial.ErrTimeout):
		case errors.Is(err, io.EOF):
			return nil
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}

func (s *Session) receive(f protocol.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received++
	isReading := (f.ID == s.ids.DistanceData || f.ID == s.ids.RotationData) && f.Data != s.ids.Disconnected
	if s.autoAck && isReading {
		return s.sendLocked(protocol.Frame{ID: f.ID})
	}
	return nil
}

func (s *Session) countBad() {
	s.mu.Lock()
	s.bad++
	s.mu.Unlock()
}

// ParseSensor accepts a sensor name or its initial.
func ParseSensor(name string) (protocol.Sensor, error) {
	switch name {
	case "distance", "d":
		return protocol.Distance, nil
	case "rotation", "r":
		return protocol.Rotation, nil
	}
	return 0, fmt.Errorf("unknown sensor %q (want distance or rotation)", name)
}
