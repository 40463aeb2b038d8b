package uart

import (
	"fmt"
	"time"

	"github.com/goburrow/serial"
)

// Link settings of the gateway's PC port.
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 100 * time.Millisecond
)

// PortConfig selects and configures a serial device. The frame format is
// fixed at 8N1.
type PortConfig struct {
	Address     string
	BaudRate    int
	ReadTimeout time.Duration
}

// OpenPort opens the serial device described by cfg.
func OpenPort(cfg PortConfig) (serial.Port, error) {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	port, err := serial.Open(&serial.Config{
		Address:  cfg.Address,
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("uart: open %s: %w", cfg.Address, err)
	}
	return port, nil
}
