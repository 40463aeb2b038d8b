//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/sensor-gateway/internal/gateway"
)

// RealIndicator is not available on non-Linux platforms.
type RealIndicator struct{}

// NewRealIndicator returns an error on non-Linux platforms.
func NewRealIndicator(chip string, red, green, blue int) (*RealIndicator, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Show is not implemented on non-Linux platforms.
func (r *RealIndicator) Show(gateway.NodeState) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealIndicator) Close() error {
	return nil
}
