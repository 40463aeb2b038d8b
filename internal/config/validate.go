// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/sweeney/sensor-gateway/internal/protocol"
)

// minLineMax is the longest line the PC tool can legitimately send:
// a 3-digit id, the separator and a 5-digit value.
const minLineMax = protocol.MaxFrameLen - 1

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ------------------------------------------------------------
	// LINKS
	// ------------------------------------------------------------

	if cfg.Serial.Port == "" {
		return fmt.Errorf("serial.port is required")
	}
	if cfg.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be positive, got %d", cfg.Serial.BaudRate)
	}
	if cfg.Serial.ReadTimeoutMs <= 0 {
		return fmt.Errorf("serial.read_timeout_ms must be positive, got %d", cfg.Serial.ReadTimeoutMs)
	}
	if cfg.Serial.LineMax < minLineMax {
		return fmt.Errorf("serial.line_max must be at least %d, got %d", minLineMax, cfg.Serial.LineMax)
	}
	if cfg.CAN.Interface == "" {
		return fmt.Errorf("can.interface is required")
	}

	// ------------------------------------------------------------
	// TIMEOUTS AND QUEUES
	// ------------------------------------------------------------

	if cfg.Timeout.TickMs <= 0 {
		return fmt.Errorf("timeout.tick_ms must be positive, got %d", cfg.Timeout.TickMs)
	}
	// counters saturate at 255, so the crossing tick must be reachable
	if cfg.Timeout.Threshold < 1 || cfg.Timeout.Threshold > 254 {
		return fmt.Errorf("timeout.threshold must be in 1..254, got %d", cfg.Timeout.Threshold)
	}
	if cfg.Queues.Inbound <= 0 {
		return fmt.Errorf("queues.inbound must be positive, got %d", cfg.Queues.Inbound)
	}
	if cfg.Queues.Outbound < protocol.MaxFrameLen {
		return fmt.Errorf("queues.outbound must hold at least one frame (%d bytes), got %d",
			protocol.MaxFrameLen, cfg.Queues.Outbound)
	}

	// ------------------------------------------------------------
	// PC-TOOL IDENTIFIERS
	// ------------------------------------------------------------

	if err := validateIDs(cfg.IDs); err != nil {
		return err
	}

	// ------------------------------------------------------------
	// SIDE CHANNELS
	// ------------------------------------------------------------

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.HeartbeatMs < 0 {
			return fmt.Errorf("mqtt.heartbeat_ms must not be negative, got %d", cfg.MQTT.HeartbeatMs)
		}
		if cfg.MQTT.BufferSize < 0 {
			return fmt.Errorf("mqtt.buffer_size must not be negative, got %d", cfg.MQTT.BufferSize)
		}
	}

	if cfg.GPIO.Enabled {
		if cfg.GPIO.Chip == "" {
			return fmt.Errorf("gpio.chip is required when gpio is enabled")
		}
		lines := map[string]int{"red": cfg.GPIO.Red, "green": cfg.GPIO.Green, "blue": cfg.GPIO.Blue}
		seen := make(map[int]string)
		for _, name := range []string{"red", "green", "blue"} {
			n := lines[name]
			if n < 0 {
				return fmt.Errorf("gpio.%s must not be negative, got %d", name, n)
			}
			if prev, dup := seen[n]; dup {
				return fmt.Errorf("gpio line %d used by both %s and %s", n, prev, name)
			}
			seen[n] = name
		}
	}

	return nil
}

func validateIDs(ids IDConfig) error {
	named := []struct {
		name string
		id   uint8
	}{
		{"connect_gateway", ids.ConnectGateway},
		{"connect_distance", ids.ConnectDistance},
		{"connect_rotation", ids.ConnectRotation},
		{"distance_data", ids.DistanceData},
		{"rotation_data", ids.RotationData},
	}

	owner := make(map[uint8]string)
	for _, n := range named {
		if protocol.IsSensorID(uint32(n.id)) {
			return fmt.Errorf("ids.%s=%d collides with a CAN sensor id", n.name, n.id)
		}
		if prev, exists := owner[n.id]; exists {
			return fmt.Errorf("ids.%s=%d collides with ids.%s", n.name, n.id, prev)
		}
		owner[n.id] = n.name
	}

	if ids.ConnectionConfirmed == ids.Disconnected {
		return fmt.Errorf("ids.connection_confirmed must differ from ids.disconnected (%d)", ids.Disconnected)
	}
	return nil
}
