//go:build !linux

package can

import "errors"

// OpenSocketBus returns an error on non-Linux platforms.
func OpenSocketBus(ifname string) (*SocketBus, error) {
	return nil, errors.New("can: SocketCAN not supported on this platform (requires Linux)")
}
