// Package gateway is the protocol engine bridging the CAN sensor nodes and
// the PC tool. The Dispatcher pops one inbound frame per iteration, routes
// it by identifier, and then consumes whatever timeout events have fired.
//
// The package talks to hardware only through CANTransmitter and TxNotifier,
// and never blocks.
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/sweeney/sensor-gateway/internal/protocol"
	"github.com/sweeney/sensor-gateway/internal/timeout"
)

// CANTransmitter sends a payload through one of the fixed transmit mailboxes.
type CANTransmitter interface {
	Transmit(mb protocol.Mailbox, payload uint16) error
}

// TxNotifier is told when complete UART frames are waiting in the outbound queue.
type TxNotifier interface {
	RequestTransmit()
}

// Reporter receives a snapshot after every iteration that changed something.
type Reporter interface {
	Report(Snapshot)
}

// Stats counts what the dispatcher has handled.
type Stats struct {
	Frames      uint64 // frames popped from the inbound queue
	UnknownIDs  uint64 // frames with no handler
	UARTDropped uint64 // composed frames rejected by a full outbound queue
	CANErrors   uint64 // failed CAN transmissions
	Events      EventCounts
}

// Snapshot is a point-in-time copy of gateway state.
type Snapshot struct {
	Node               NodeState
	Lock               string
	DisconnectNotified [2]bool
	Readings           [2]uint16
	Channels           [timeout.NumChannels]timeout.ChannelState
	InboundLen         int
	InboundDrops       uint64
	OutboundLen        int
	OutboundDrops      uint64
	Stats              Stats
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver reports protocol events to o.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// WithReporter publishes snapshots to r.
func WithReporter(r Reporter) Option {
	return func(d *Dispatcher) { d.reporter = r }
}

// WithClock overrides the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

type handler func(f protocol.Frame)

// Dispatcher is the gateway main loop.
type Dispatcher struct {
	mu       sync.Mutex
	gc       *Context
	can      CANTransmitter
	tx       TxNotifier
	observer Observer
	reporter Reporter
	now      func() time.Time
	handlers map[uint8]handler
	stats    Stats
	dirty    bool
}

// New creates a Dispatcher over gc. can and tx must not be nil.
func New(gc *Context, can CANTransmitter, tx TxNotifier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		gc:  gc,
		can: can,
		tx:  tx,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.handlers = d.buildHandlers()
	return d
}

func (d *Dispatcher) buildHandlers() map[uint8]handler {
	ids := d.gc.IDs
	h := make(map[uint8]handler, 11)
	for _, s := range protocol.Sensors {
		s := s
		h[s.DataID()] = func(f protocol.Frame) { d.handleSensorData(s, f) }
		h[s.HandshakeID()] = func(protocol.Frame) { d.handleHandshake(s) }
		h[s.PingAckID()] = func(protocol.Frame) { d.handlePingAck(s) }
		h[ids.ConnectID(s)] = func(protocol.Frame) { d.handleConnectSensor(s) }
		h[ids.DataID(s)] = func(protocol.Frame) { d.handlePCAck(s) }
	}
	h[ids.ConnectGateway] = func(protocol.Frame) { d.handleConnectGateway() }
	return h
}

// Step runs one loop iteration: dispatch at most one inbound frame, then
// consume pending timeout events. It reports whether a frame was dispatched.
func (d *Dispatcher) Step() bool {
	d.mu.Lock()
	f, ok := d.gc.Inbound.Pop()
	if ok {
		d.dispatch(f)
	}
	d.drainTimeouts()
	var snap Snapshot
	report := d.reporter != nil && d.dirty
	if report {
		snap = d.snapshotLocked()
		d.dirty = false
	}
	d.mu.Unlock()

	if report {
		d.reporter.Report(snap)
	}
	return ok
}

// Run loops until ctx is cancelled. Each value on tick advances the timeout
// supervisor; ticks are applied between iterations, never during one,
// including while a backlog of frames is being drained.
func (d *Dispatcher) Run(ctx context.Context, tick <-chan time.Time) error {
	d.report()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			d.advance()
		case <-d.gc.Inbound.Ready():
		}
		// Drain everything queued, one frame per iteration. A tick that
		// arrives meanwhile is applied between frames so a busy bus cannot
		// stretch the timeout windows.
		for d.Step() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
				d.advance()
			default:
			}
		}
	}
}

func (d *Dispatcher) advance() {
	d.gc.Timeouts.Tick()
	d.markDirty()
}

// Snapshot returns the current gateway state.
func (d *Dispatcher) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// Stats returns the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Dispatcher) snapshotLocked() Snapshot {
	gc := d.gc
	return Snapshot{
		Node:               gc.Session.Node,
		Lock:               gc.Session.Lock.String(),
		DisconnectNotified: gc.Session.DisconnectNotified,
		Readings:           gc.Readings,
		Channels:           gc.Timeouts.Snapshot(),
		InboundLen:         gc.Inbound.Len(),
		InboundDrops:       gc.Inbound.Drops(),
		OutboundLen:        gc.Outbound.Len(),
		OutboundDrops:      gc.Outbound.Drops(),
		Stats:              d.stats,
	}
}

func (d *Dispatcher) report() {
	if d.reporter == nil {
		return
	}
	d.reporter.Report(d.Snapshot())
}

func (d *Dispatcher) markDirty() {
	d.mu.Lock()
	d.dirty = true
	d.mu.Unlock()
}

func (d *Dispatcher) dispatch(f protocol.Frame) {
	d.stats.Frames++
	d.dirty = true
	h, ok := d.handlers[f.ID]
	if !ok {
		d.stats.UnknownIDs++
		if glog.V(2) {
			glog.Infof("gateway: no handler for frame %s", f)
		}
		return
	}
	if glog.V(2) {
		glog.Infof("gateway: dispatch %s", f)
	}
	h(f)
}

// drainTimeouts consumes fired timeout events in a fixed order.
func (d *Dispatcher) drainTimeouts() {
	for _, s := range protocol.Sensors {
		if d.gc.Timeouts.Event(incomingChannel(s)) {
			d.onSensorSilent(s)
		}
		if d.gc.Timeouts.Event(respondChannel(s)) {
			d.onSensorUnresponsive(s)
		}
	}
	if d.gc.Timeouts.Event(timeout.PcRespondData) {
		d.onPCUnresponsive()
	}
}

// transmit sends on CAN. Failures are counted and logged; the loop carries on.
func (d *Dispatcher) transmit(mb protocol.Mailbox, payload uint16) {
	if err := d.can.Transmit(mb, payload); err != nil {
		d.stats.CANErrors++
		glog.Errorf("gateway: can transmit %s: %v", mb, err)
	}
}

// send queues one UART frame to the PC tool as a unit and asks for it to be sent.
func (d *Dispatcher) send(id uint8, data uint16) {
	var buf [protocol.MaxFrameLen]byte
	if err := d.gc.Outbound.PushAll(protocol.AppendFrame(buf[:0], id, data)); err != nil {
		d.stats.UARTDropped++
		glog.Warningf("gateway: outbound queue full, dropped frame %d-%d", id, data)
		d.emit(Event{Type: EventFrameDropped, Frame: protocol.Frame{ID: id, Data: data}})
		return
	}
	d.tx.RequestTransmit()
}

func (d *Dispatcher) emit(e Event) {
	e.Timestamp = d.now()
	e.Node = d.gc.Session.Node
	d.stats.Events.add(e.Type)
	d.dirty = true
	if glog.V(1) {
		glog.Infof("gateway: event %s sensor=%s value=%d node=%s", e.Type, e.SensorName(), e.Value, e.Node)
	}
	if d.observer != nil {
		d.observer.Observe(e)
	}
}

func (d *Dispatcher) emitSensor(t EventType, s protocol.Sensor, value uint16) {
	d.emit(Event{Type: t, Sensor: s, HasSensor: true, Value: value})
}
