// internal/config/normalize.go
package config

import "strings"

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Serial.Port = strings.TrimSpace(cfg.Serial.Port)
	cfg.CAN.Interface = strings.TrimSpace(cfg.CAN.Interface)
	cfg.MQTT.Broker = strings.TrimSpace(cfg.MQTT.Broker)
	cfg.HTTP.Addr = strings.TrimSpace(cfg.HTTP.Addr)

	// "off" is accepted as an explicit way to disable the status server
	if strings.EqualFold(cfg.HTTP.Addr, "off") {
		cfg.HTTP.Addr = ""
	}

	if !cfg.MQTT.Enabled {
		cfg.MQTT.HeartbeatMs = 0
	}
}
