// Package can adapts the gateway to a CAN bus. Outbound requests name a
// transmit mailbox; inbound frames are filtered to the six sensor ids and
// normalized to protocol.Frame before they reach the inbound queue.
package can

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	socketcan "github.com/brutella/can"
	"github.com/golang/glog"

	"github.com/sweeney/sensor-gateway/internal/protocol"
)

// Frame layout shared with the sensor nodes.
const (
	// PayloadLen is the DLC of every gateway frame: one 32-bit data word.
	PayloadLen = 4

	effFlag uint32 = 1 << 31 // extended frame format
	rtrFlag uint32 = 1 << 30 // remote transmission request
	errFlag uint32 = 1 << 29 // error frame
	sffMask uint32 = 0x7FF
)

// Bus publishes raw CAN frames.
type Bus interface {
	Publish(frame socketcan.Frame) error
}

// EncodeFrame builds the standard-id frame carrying payload in the first
// big-endian data word.
func EncodeFrame(id uint32, payload uint16) socketcan.Frame {
	f := socketcan.Frame{
		ID:     id & sffMask,
		Length: PayloadLen,
	}
	binary.BigEndian.PutUint32(f.Data[:4], uint32(payload))
	return f
}

// DecodePayload returns the low 16 bits of the frame's first data word.
// Missing bytes read as zero.
func DecodePayload(f socketcan.Frame) uint16 {
	var word [4]byte
	n := int(f.Length)
	if n > len(word) {
		n = len(word)
	}
	copy(word[:], f.Data[:n])
	return uint16(binary.BigEndian.Uint32(word[:]))
}

// Transmitter sends dispatcher requests on a Bus.
type Transmitter struct {
	bus Bus
}

// NewTransmitter creates a Transmitter publishing on bus.
func NewTransmitter(bus Bus) *Transmitter {
	return &Transmitter{bus: bus}
}

// Transmit publishes payload on the CAN id bound to mb.
func (t *Transmitter) Transmit(mb protocol.Mailbox, payload uint16) error {
	id, ok := mb.CANID()
	if !ok {
		return fmt.Errorf("can: unknown mailbox %d", uint8(mb))
	}
	if err := t.bus.Publish(EncodeFrame(id, payload)); err != nil {
		return fmt.Errorf("can: publish %s: %w", mb, err)
	}
	if glog.V(2) {
		glog.Infof("can: tx %s id=0x%03X payload=0x%04X", mb, id, payload)
	}
	return nil
}

// Inbound accepts normalized frames. It must not block.
type Inbound interface {
	Push(protocol.Frame) error
}

// Receiver is the receive filter: it accepts standard data frames on the
// sensor ids and pushes them inbound. It implements socketcan.Handler.
type Receiver struct {
	in       Inbound
	accepted atomic.Uint64
	rejected atomic.Uint64
	dropped  atomic.Uint64
}

// NewReceiver creates a Receiver feeding in.
func NewReceiver(in Inbound) *Receiver {
	return &Receiver{in: in}
}

// Handle is called by the bus for every received frame.
func (r *Receiver) Handle(f socketcan.Frame) {
	r.HandleFrame(f)
}

// HandleFrame filters and forwards one frame. It reports whether the frame
// reached the inbound queue.
func (r *Receiver) HandleFrame(f socketcan.Frame) bool {
	if f.ID&(effFlag|rtrFlag|errFlag) != 0 || !protocol.IsSensorID(f.ID) {
		r.rejected.Add(1)
		return false
	}
	frame := protocol.Frame{ID: uint8(f.ID), Data: DecodePayload(f)}
	if err := r.in.Push(frame); err != nil {
		r.dropped.Add(1)
		glog.Warningf("can: inbound queue full, dropped %s", frame)
		return false
	}
	r.accepted.Add(1)
	return true
}

// ReceiverStats are the receive filter counters.
type ReceiverStats struct {
	Accepted uint64
	Rejected uint64
	Dropped  uint64
}

// Stats returns the receive counters.
func (r *Receiver) Stats() ReceiverStats {
	return ReceiverStats{
		Accepted: r.accepted.Load(),
		Rejected: r.rejected.Load(),
		Dropped:  r.dropped.Load(),
	}
}
