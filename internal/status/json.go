package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/sensor-gateway/internal/protocol"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Node          string        `json:"node"`
	Lock          string        `json:"pc_ack_lock"`
	Ready         bool          `json:"ready"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	Sensors       []SensorJSON  `json:"sensors"`
	Timeouts      []ChannelJSON `json:"timeouts"`
	Queues        QueuesJSON    `json:"queues"`
	Counters      CountersJSON  `json:"counters"`
	Counts        CountsJSON    `json:"event_counts"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// SensorJSON describes one sensor node as the gateway sees it.
type SensorJSON struct {
	Name               string `json:"name"`
	LastReading        uint16 `json:"last_reading"`
	DisconnectNotified bool   `json:"disconnect_notified"`
}

// ChannelJSON is one timeout channel.
type ChannelJSON struct {
	Name    string `json:"name"`
	Phase   string `json:"phase"`
	Gate    bool   `json:"gate"`
	Counter uint8  `json:"counter"`
	Event   bool   `json:"event"`
}

// QueuesJSON reports queue depth and overflow.
type QueuesJSON struct {
	InboundLen    int    `json:"inbound_len"`
	InboundDrops  uint64 `json:"inbound_drops"`
	OutboundLen   int    `json:"outbound_len"`
	OutboundDrops uint64 `json:"outbound_drops"`
}

// CountersJSON reports dispatcher counters.
type CountersJSON struct {
	Frames      uint64 `json:"frames"`
	UnknownIDs  uint64 `json:"unknown_ids"`
	UARTDropped uint64 `json:"uart_dropped"`
	CANErrors   uint64 `json:"can_errors"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	SensorData         int `json:"sensor_data"`
	SensorConnected    int `json:"sensor_connected"`
	SensorSilent       int `json:"sensor_silent"`
	SensorDisconnected int `json:"sensor_disconnected"`
	SensorRecovered    int `json:"sensor_recovered"`
	NodesStopped       int `json:"nodes_stopped"`
	NodesWoken         int `json:"nodes_woken"`
	PCConnected        int `json:"pc_connected"`
	FrameDropped       int `json:"frame_dropped"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of gateway config.
type ConfigJSON struct {
	TickMs      int64  `json:"tick_ms"`
	Threshold   uint8  `json:"threshold"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	SerialPort  string `json:"serial_port"`
	CANIface    string `json:"can_interface"`
}

func buildInner(snap Snapshot) StatusInner {
	g := snap.Gateway
	node := g.Node.String()
	lock := g.Lock
	if !snap.Reported {
		node = "UNKNOWN"
		lock = "UNKNOWN"
	}

	sensors := make([]SensorJSON, 0, len(protocol.Sensors))
	for _, s := range protocol.Sensors {
		sensors = append(sensors, SensorJSON{
			Name:               s.String(),
			LastReading:        g.Readings[s],
			DisconnectNotified: g.DisconnectNotified[s],
		})
	}

	channels := make([]ChannelJSON, 0, len(g.Channels))
	for _, c := range g.Channels {
		channels = append(channels, ChannelJSON{
			Name:    c.Channel.String(),
			Phase:   c.Phase.String(),
			Gate:    c.Gate,
			Counter: c.Counter,
			Event:   c.Event,
		})
	}

	ev := g.Stats.Events
	return StatusInner{
		Node:          node,
		Lock:          lock,
		Ready:         snap.Reported,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Sensors:       sensors,
		Timeouts:      channels,
		Queues: QueuesJSON{
			InboundLen:    g.InboundLen,
			InboundDrops:  g.InboundDrops,
			OutboundLen:   g.OutboundLen,
			OutboundDrops: g.OutboundDrops,
		},
		Counters: CountersJSON{
			Frames:      g.Stats.Frames,
			UnknownIDs:  g.Stats.UnknownIDs,
			UARTDropped: g.Stats.UARTDropped,
			CANErrors:   g.Stats.CANErrors,
		},
		Counts: CountsJSON{
			SensorData:         ev.SensorData,
			SensorConnected:    ev.SensorConnected,
			SensorSilent:       ev.SensorSilent,
			SensorDisconnected: ev.SensorDisconnected,
			SensorRecovered:    ev.SensorRecovered,
			NodesStopped:       ev.NodesStopped,
			NodesWoken:         ev.NodesWoken,
			PCConnected:        ev.PCConnected,
			FrameDropped:       ev.FrameDropped,
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			Threshold:   snap.Config.Threshold,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			SerialPort:  snap.Config.SerialPort,
			CANIface:    snap.Config.CANIface,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatCompactJSON is FormatJSON without indentation, for the websocket feed.
func FormatCompactJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
