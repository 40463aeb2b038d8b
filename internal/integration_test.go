package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/sensor-gateway/internal/can"
	"github.com/sweeney/sensor-gateway/internal/gateway"
	"github.com/sweeney/sensor-gateway/internal/mqtt"
	"github.com/sweeney/sensor-gateway/internal/pctool"
	"github.com/sweeney/sensor-gateway/internal/protocol"
	"github.com/sweeney/sensor-gateway/internal/status"
	"github.com/sweeney/sensor-gateway/internal/uart"
)

// rig wires a gateway to fake links: sensor frames enter through a FakeBus,
// and a PC session talks to it through the UART receiver and a buffer.
type rig struct {
	t       *testing.T
	gc      *gateway.Context
	d       *gateway.Dispatcher
	bus     *can.FakeBus
	tx      *uart.Transmitter
	wire    bytes.Buffer // gateway -> PC
	pc      *pctool.Session
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	heard   []string
}

func newRig(t *testing.T, threshold uint8) *rig {
	r := &rig{
		t:       t,
		gc:      gateway.NewContext(gateway.Config{Threshold: threshold}),
		bus:     can.NewFakeBus(),
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{}),
	}
	r.bus.Subscribe(can.NewReceiver(r.gc.Inbound))
	r.tx = uart.NewTransmitter(r.gc.Outbound, &r.wire)
	r.pc = pctool.NewSession(r.gc.IDs, uart.NewReceiver(r.gc.Inbound, protocol.DefaultLineMax))
	r.d = gateway.New(r.gc, can.NewTransmitter(r.bus), r.tx,
		gateway.WithObserver(mqtt.Observer(r.pub)),
		gateway.WithReporter(r.tracker))
	return r
}

// settle runs the dispatcher until the inbound queue is empty, flushes the
// UART, and lets the PC session read (and possibly answer) what was sent.
// It repeats until nothing more moves.
func (r *rig) settle() {
	for i := 0; i < 10; i++ {
		for r.d.Step() {
		}
		require.NoError(r.t, r.tx.Flush())
		if r.wire.Len() == 0 && r.gc.Inbound.Len() == 0 {
			return
		}
		require.NoError(r.t, r.pc.Run(context.Background(), &r.wire, func(_ protocol.Frame, desc string) {
			r.heard = append(r.heard, desc)
		}))
	}
	r.t.Fatal("gateway did not settle")
}

func (r *rig) ticks(n int) {
	for i := 0; i < n; i++ {
		r.gc.Timeouts.Tick()
	}
	r.settle()
}

func (r *rig) sensor(id uint8, payload uint16) {
	r.bus.Deliver(can.EncodeFrame(uint32(id), payload))
	r.settle()
}

func (r *rig) sentOn(mb protocol.Mailbox) []uint16 {
	id, _ := mb.CANID()
	var out []uint16
	for _, f := range r.bus.Published {
		if f.ID == id {
			out = append(out, can.DecodePayload(f))
		}
	}
	return out
}

func TestIntegrationConnectAndForward(t *testing.T) {
	r := newRig(t, 10)
	r.pc.SetAutoAck(true)

	require.NoError(t, r.pc.ConnectGateway())
	r.settle()
	assert.Equal(t, []string{"gateway connection confirmed"}, r.heard)

	r.sensor(protocol.CANDistanceData, 500)
	assert.Equal(t, []uint16{protocol.PayloadAck}, r.sentOn(protocol.MailboxAckDistance))
	assert.Contains(t, r.heard, "distance reading 500")

	// The auto-ack has already released the lock, so rotation gets through.
	r.sensor(protocol.CANRotationData, 42)
	assert.Contains(t, r.heard, "rotation reading 42")

	snap := r.tracker.Snapshot().Gateway
	assert.Equal(t, "UNLOCKED", snap.Lock)
	assert.Equal(t, [2]uint16{500, 42}, snap.Readings)
	assert.Equal(t, []gateway.EventType{
		gateway.EventPCConnected,
		gateway.EventSensorData,
		gateway.EventSensorData,
	}, r.pub.EventTypes())
}

func TestIntegrationSensorConnectRequest(t *testing.T) {
	r := newRig(t, 10)

	require.NoError(t, r.pc.ConnectSensor(protocol.Rotation))
	r.settle()
	assert.Equal(t, []uint16{protocol.PayloadConnectRequest}, r.sentOn(protocol.MailboxConnectRotation))

	r.sensor(protocol.CANRotationHandshake, 0)
	assert.Equal(t, []string{"rotation sensor connected"}, r.heard)
}

func TestIntegrationSilentPCStopsAndAckWakes(t *testing.T) {
	r := newRig(t, 2)

	r.ticks(3)
	assert.Equal(t, []uint16{protocol.PayloadStop}, r.sentOn(protocol.MailboxControlDistance))
	assert.Equal(t, []uint16{protocol.PayloadStop}, r.sentOn(protocol.MailboxControlRotation))
	assert.Equal(t, gateway.NodeStopped, r.tracker.Snapshot().Gateway.Node)

	r.sensor(protocol.CANDistanceData, 7)
	require.NoError(t, r.pc.Ack(protocol.Distance))
	r.settle()

	assert.Equal(t, []uint16{protocol.PayloadStop, protocol.PayloadWakeUp}, r.sentOn(protocol.MailboxControlDistance))
	assert.Equal(t, gateway.NodeRunning, r.tracker.Snapshot().Gateway.Node)
	assert.Contains(t, r.pub.EventTypes(), gateway.EventNodesWoken)
}

func TestIntegrationSensorDropoutAndRecovery(t *testing.T) {
	r := newRig(t, 2)
	r.pc.SetAutoAck(true)

	// Incoming data stops: the gateway pings, then gives up on the sensors.
	r.ticks(3)
	assert.NotEmpty(t, r.sentOn(protocol.MailboxPingDistance))
	r.ticks(3)

	assert.Contains(t, r.heard, "distance sensor disconnected")
	assert.Contains(t, r.heard, "rotation sensor disconnected")
	assert.Equal(t, [2]bool{true, true}, r.tracker.Snapshot().Gateway.DisconnectNotified)

	// The distance node answers a ping: its last reading is forwarded again.
	r.sensor(protocol.CANDistancePingAck, 0)
	assert.Equal(t, [2]bool{false, true}, r.tracker.Snapshot().Gateway.DisconnectNotified)
	assert.Equal(t, "distance reading 0", r.heard[len(r.heard)-1])
	assert.Contains(t, r.pub.EventTypes(), gateway.EventSensorRecovered)
}

func TestIntegrationStatusJSON(t *testing.T) {
	r := newRig(t, 10)
	r.sensor(protocol.CANRotationData, 1234)

	var parsed status.StatusJSON
	require.NoError(t, json.Unmarshal(status.FormatJSON(r.tracker.Snapshot()), &parsed))
	s := parsed.Status
	assert.True(t, s.Ready)
	assert.Equal(t, "LOCKED_BY_ROTATION", s.Lock)
	assert.Equal(t, uint16(1234), s.Sensors[1].LastReading)
	assert.Equal(t, uint64(1), s.Counters.Frames)
	assert.Equal(t, 1, s.Counts.SensorData)
}

func TestIntegrationPayloadsReachPublisher(t *testing.T) {
	r := newRig(t, 10)
	r.sensor(protocol.CANDistanceData, 99)

	require.Len(t, r.pub.Payloads, 1)
	var p mqtt.Payload
	require.NoError(t, json.Unmarshal(r.pub.Payloads[0], &p))
	assert.Equal(t, "SENSOR_DATA", p.Gateway.Event)
	assert.Equal(t, "distance", p.Gateway.Sensor)
	require.NotNil(t, p.Gateway.Value)
	assert.Equal(t, uint16(99), *p.Gateway.Value)
}
