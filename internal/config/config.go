// internal/config/config.go
package config

import (
	"time"

	"github.com/sweeney/sensor-gateway/internal/protocol"
)

type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	CAN     CANConfig     `yaml:"can"`
	Timeout TimeoutConfig `yaml:"timeout"`
	Queues  QueueConfig   `yaml:"queues"`
	IDs     IDConfig      `yaml:"ids"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
	GPIO    GPIOConfig    `yaml:"gpio"`
}

// ---- LINKS ----

type SerialConfig struct {
	Port          string `yaml:"port"`
	BaudRate      int    `yaml:"baud_rate"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
	LineMax       int    `yaml:"line_max"` // receive line buffer, bytes
}

type CANConfig struct {
	Interface string `yaml:"interface"`
}

// ---- PROTOCOL ENGINE ----

type TimeoutConfig struct {
	TickMs    int `yaml:"tick_ms"`
	Threshold int `yaml:"threshold"` // event fires on the tick that exceeds it
}

type QueueConfig struct {
	Inbound  int `yaml:"inbound"`  // frames
	Outbound int `yaml:"outbound"` // bytes
}

// IDConfig holds the identifiers spoken with the PC tool.
type IDConfig struct {
	ConnectGateway      uint8  `yaml:"connect_gateway"`
	ConnectDistance     uint8  `yaml:"connect_distance"`
	ConnectRotation     uint8  `yaml:"connect_rotation"`
	DistanceData        uint8  `yaml:"distance_data"`
	RotationData        uint8  `yaml:"rotation_data"`
	ConnectionConfirmed uint16 `yaml:"connection_confirmed"`
	Disconnected        uint16 `yaml:"disconnected"`
}

// ---- SIDE CHANNELS ----

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	HeartbeatMs int    `yaml:"heartbeat_ms"` // 0 disables
	BufferSize  int    `yaml:"buffer_size"`  // messages kept while offline
}

type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables
}

type GPIOConfig struct {
	Enabled bool   `yaml:"enabled"`
	Chip    string `yaml:"chip"`
	Red     int    `yaml:"red"`
	Green   int    `yaml:"green"`
	Blue    int    `yaml:"blue"`
}

// Default returns the configuration the gateway runs with when no file
// overrides it.
func Default() *Config {
	ids := protocol.DefaultPCIDs()
	return &Config{
		Serial: SerialConfig{
			Port:          "/dev/ttyUSB0",
			BaudRate:      115200,
			ReadTimeoutMs: 100,
			LineMax:       protocol.DefaultLineMax,
		},
		CAN: CANConfig{Interface: "can0"},
		Timeout: TimeoutConfig{
			TickMs:    100,
			Threshold: 10,
		},
		Queues: QueueConfig{
			Inbound:  22,
			Outbound: 500,
		},
		IDs: IDConfig{
			ConnectGateway:      ids.ConnectGateway,
			ConnectDistance:     ids.ConnectDistance,
			ConnectRotation:     ids.ConnectRotation,
			DistanceData:        ids.DistanceData,
			RotationData:        ids.RotationData,
			ConnectionConfirmed: ids.ConnectionConfirmed,
			Disconnected:        ids.Disconnected,
		},
		MQTT: MQTTConfig{
			Enabled:     true,
			Broker:      "tcp://localhost:1883",
			HeartbeatMs: int((15 * time.Minute).Milliseconds()),
			BufferSize:  1000,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		GPIO: GPIOConfig{
			Chip:  "gpiochip0",
			Red:   17,
			Green: 27,
			Blue:  22,
		},
	}
}

// PCIDs converts the id section for the protocol engine.
func (c IDConfig) PCIDs() protocol.PCIDs {
	return protocol.PCIDs{
		ConnectGateway:      c.ConnectGateway,
		ConnectDistance:     c.ConnectDistance,
		ConnectRotation:     c.ConnectRotation,
		DistanceData:        c.DistanceData,
		RotationData:        c.RotationData,
		ConnectionConfirmed: c.ConnectionConfirmed,
		Disconnected:        c.Disconnected,
	}
}

// TickPeriod is the supervisor tick interval.
func (c TimeoutConfig) TickPeriod() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// ReadTimeout is the serial read timeout.
func (c SerialConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

// Heartbeat is the MQTT heartbeat interval; 0 disables it.
func (c MQTTConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatMs) * time.Millisecond
}
