package gateway

import (
	"time"

	"github.com/sweeney/sensor-gateway/internal/protocol"
)

// EventType names a protocol occurrence worth reporting outside the gateway.
type EventType string

const (
	EventSensorData         EventType = "SENSOR_DATA"
	EventSensorConnected    EventType = "SENSOR_CONNECTED"
	EventSensorSilent       EventType = "SENSOR_SILENT"
	EventSensorDisconnected EventType = "SENSOR_DISCONNECTED"
	EventSensorRecovered    EventType = "SENSOR_RECOVERED"
	EventNodesStopped       EventType = "NODES_STOPPED"
	EventNodesWoken         EventType = "NODES_WOKEN"
	EventPCConnected        EventType = "PC_CONNECTED"
	EventFrameDropped       EventType = "FRAME_DROPPED"
)

// Event is reported to the Observer as the dispatcher acts.
type Event struct {
	Timestamp time.Time
	Type      EventType
	// Sensor is meaningful only when HasSensor is set.
	Sensor    protocol.Sensor
	HasSensor bool
	Value     uint16
	Node      NodeState
	// Frame is the UART frame that could not be queued (FRAME_DROPPED only).
	Frame protocol.Frame
}

// SensorName returns the sensor's name, or "" for gateway-wide events.
func (e Event) SensorName() string {
	if !e.HasSensor {
		return ""
	}
	return e.Sensor.String()
}

// Observer receives gateway events. It is called on the dispatcher's
// goroutine and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// EventCounts tracks the number of each reported event since startup.
type EventCounts struct {
	SensorData         int
	SensorConnected    int
	SensorSilent       int
	SensorDisconnected int
	SensorRecovered    int
	NodesStopped       int
	NodesWoken         int
	PCConnected        int
	FrameDropped       int
}

func (c *EventCounts) add(t EventType) {
	switch t {
	case EventSensorData:
		c.SensorData++
	case EventSensorConnected:
		c.SensorConnected++
	case EventSensorSilent:
		c.SensorSilent++
	case EventSensorDisconnected:
		c.SensorDisconnected++
	case EventSensorRecovered:
		c.SensorRecovered++
	case EventNodesStopped:
		c.NodesStopped++
	case EventNodesWoken:
		c.NodesWoken++
	case EventPCConnected:
		c.PCConnected++
	case EventFrameDropped:
		c.FrameDropped++
	}
}
