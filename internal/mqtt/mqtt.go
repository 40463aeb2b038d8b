// Package mqtt publishes gateway events and lifecycle messages to a broker.
// Publishing is a side channel: failures are reported to the caller but
// never stop the gateway.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/sensor-gateway/internal/gateway"
)

// Topic is the MQTT topic for gateway protocol events.
const Topic = "sensor-gateway/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "sensor-gateway/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a gateway event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event gateway.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Gateway EventPayload `json:"gateway"`
}

// EventPayload contains the gateway event details.
type EventPayload struct {
	Timestamp string  `json:"timestamp"`
	Event     string  `json:"event"`
	Sensor    string  `json:"sensor,omitempty"`
	Value     *uint16 `json:"value,omitempty"`
	Node      string  `json:"node"`
	Frame     string  `json:"frame,omitempty"`
}

// FormatPayload creates the JSON payload for a gateway event.
func FormatPayload(event gateway.Event) ([]byte, error) {
	p := EventPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		Sensor:    event.SensorName(),
		Node:      event.Node.String(),
	}
	switch event.Type {
	case gateway.EventSensorData, gateway.EventSensorDisconnected, gateway.EventSensorRecovered:
		v := event.Value
		p.Value = &v
	case gateway.EventFrameDropped:
		p.Frame = event.Frame.String()
	}
	return json.Marshal(Payload{Gateway: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// WillPayload is the retained last-will message the broker publishes on
// TopicSystem if the gateway drops off without a clean shutdown.
func WillPayload() []byte {
	data, _ := json.Marshal(SystemPayload{
		System: SystemPayloadInner{Event: "OFFLINE", Reason: "CONNECTION_LOST"},
	})
	return data
}
