package gateway

import (
	"github.com/golang/glog"

	"github.com/sweeney/sensor-gateway/internal/protocol"
	"github.com/sweeney/sensor-gateway/internal/timeout"
)

// Frame handlers. Each runs with d.mu held.

func (d *Dispatcher) handleSensorData(s protocol.Sensor, f protocol.Frame) {
	gc := d.gc
	gc.Timeouts.ResetCounter(incomingChannel(s))
	d.transmit(s.AckMailbox(), protocol.PayloadAck)
	gc.Readings[s] = f.Data
	d.send(gc.IDs.DataID(s), f.Data)
	if gc.Session.Lock.TryAcquire(s) {
		gc.Timeouts.SetGate(timeout.PcRespondData, true)
	}
	d.emitSensor(EventSensorData, s, f.Data)
}

func (d *Dispatcher) handleHandshake(s protocol.Sensor) {
	d.send(d.gc.IDs.ConnectID(s), d.gc.IDs.ConnectionConfirmed)
	d.emitSensor(EventSensorConnected, s, 0)
}

func (d *Dispatcher) handlePingAck(s protocol.Sensor) {
	gc := d.gc
	d.send(gc.IDs.DataID(s), gc.Readings[s])
	gc.Timeouts.SetGate(respondChannel(s), false)
	if gc.Session.DisconnectNotified[s] {
		gc.Session.DisconnectNotified[s] = false
		glog.Infof("gateway: %s sensor answered ping, reconnected", s)
		d.emitSensor(EventSensorRecovered, s, gc.Readings[s])
	}
}

// handleConnectGateway answers the PC tool's hello. It restarts only the
// rotation incoming-data window, matching the deployed firmware.
func (d *Dispatcher) handleConnectGateway() {
	d.gc.Timeouts.ResetCounter(timeout.RotationIncomingData)
	d.send(d.gc.IDs.ConnectGateway, d.gc.IDs.ConnectionConfirmed)
	d.emit(Event{Type: EventPCConnected})
}

func (d *Dispatcher) handleConnectSensor(s protocol.Sensor) {
	d.transmit(s.ConnectMailbox(), protocol.PayloadConnectRequest)
}

func (d *Dispatcher) handlePCAck(s protocol.Sensor) {
	gc := d.gc
	if gc.Session.Node == NodeStopped {
		for _, n := range protocol.Sensors {
			d.transmit(n.ControlMailbox(), protocol.PayloadWakeUp)
		}
		gc.Session.Node = NodeRunning
		glog.Infof("gateway: PC acknowledged, waking sensor nodes")
		d.emit(Event{Type: EventNodesWoken})
	}
	if gc.Session.Lock.Release(s) {
		gc.Timeouts.SetGate(timeout.PcRespondData, false)
	}
}

// Timeout event handlers.

// onSensorSilent pings a sensor that has sent nothing for a full window and
// starts waiting for the answer.
func (d *Dispatcher) onSensorSilent(s protocol.Sensor) {
	gc := d.gc
	d.transmit(s.PingMailbox(), protocol.PayloadPing)
	gc.Timeouts.SetGate(respondChannel(s), true)
	gc.Timeouts.WriteEvent(incomingChannel(s), false)
	gc.Timeouts.ResetCounter(incomingChannel(s))
	d.emitSensor(EventSensorSilent, s, 0)
}

// onSensorUnresponsive tells the PC tool a sensor is gone, once per outage.
func (d *Dispatcher) onSensorUnresponsive(s protocol.Sensor) {
	gc := d.gc
	if !gc.Session.DisconnectNotified[s] {
		d.send(gc.IDs.DataID(s), gc.IDs.Disconnected)
		gc.Session.DisconnectNotified[s] = true
		glog.Warningf("gateway: %s sensor did not answer ping, reported disconnected", s)
		d.emitSensor(EventSensorDisconnected, s, gc.IDs.Disconnected)
	}
	gc.Timeouts.SetGate(respondChannel(s), false)
	gc.Timeouts.WriteEvent(respondChannel(s), false)
}

// onPCUnresponsive halts both sensors when forwarded data went unacknowledged.
// While the nodes are stopped the event is left pending.
func (d *Dispatcher) onPCUnresponsive() {
	gc := d.gc
	if gc.Session.Node == NodeStopped {
		return
	}
	for _, n := range protocol.Sensors {
		d.transmit(n.ControlMailbox(), protocol.PayloadStop)
	}
	gc.Timeouts.SetGate(timeout.PcRespondData, false)
	gc.Timeouts.WriteEvent(timeout.PcRespondData, false)
	gc.Session.Node = NodeStopped
	glog.Warningf("gateway: PC tool stopped acknowledging, sensor nodes stopped")
	d.emit(Event{Type: EventNodesStopped})
}
