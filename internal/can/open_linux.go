//go:build linux

package can

import (
	"fmt"
	"net"

	socketcan "github.com/brutella/can"
)

// OpenSocketBus opens the named SocketCAN interface (e.g. "can0"). The
// interface's bitrate is configured by the system, not here.
func OpenSocketBus(ifname string) (*SocketBus, error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, fmt.Errorf("can: find interface %s: %w", ifname, err)
	}
	conn, err := socketcan.NewReadWriteCloserForInterface(iface)
	if err != nil {
		return nil, fmt.Errorf("can: open %s: %w", ifname, err)
	}
	return &SocketBus{bus: socketcan.NewBus(conn)}, nil
}
