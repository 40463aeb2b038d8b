// Package gpio drives the gateway's status LED with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"sync"

	"github.com/golang/glog"

	"github.com/sweeney/sensor-gateway/internal/gateway"
)

// Indicator shows the sensor nodes' state.
type Indicator interface {
	// Show lights the colour for state.
	Show(state gateway.NodeState) error

	// Close switches the indicator off and releases GPIO resources.
	Close() error
}

// Default line offsets of an RGB LED (BCM numbering).
const (
	PinRed   = 17
	PinGreen = 27
	PinBlue  = 22
)

// Colour is an RGB LED output, one bit per line.
type Colour struct {
	Red, Green, Blue bool
}

// ColourFor maps a node state to the LED colour: green while the nodes run,
// red once they have been stopped, blue before the PC has acknowledged.
func ColourFor(state gateway.NodeState) Colour {
	switch state {
	case gateway.NodeRunning:
		return Colour{Green: true}
	case gateway.NodeStopped:
		return Colour{Red: true}
	default:
		return Colour{Blue: true}
	}
}

// Reporter adapts an Indicator to gateway.Reporter, touching the lines only
// when the node state changes.
type Reporter struct {
	ind Indicator

	mu    sync.Mutex
	shown bool
	last  gateway.NodeState
}

// NewReporter returns a Reporter driving ind.
func NewReporter(ind Indicator) *Reporter {
	return &Reporter{ind: ind}
}

// Report implements gateway.Reporter.
func (r *Reporter) Report(s gateway.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shown && s.Node == r.last {
		return
	}
	if err := r.ind.Show(s.Node); err != nil {
		glog.Warningf("gpio: show %s: %v", s.Node, err)
		return
	}
	r.shown = true
	r.last = s.Node
}
