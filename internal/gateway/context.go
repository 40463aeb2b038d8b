package gateway

import (
	"github.com/sweeney/sensor-gateway/internal/protocol"
	"github.com/sweeney/sensor-gateway/internal/queue"
	"github.com/sweeney/sensor-gateway/internal/timeout"
)

// Default sizes of the gateway queues.
const (
	DefaultInboundSize  = 22
	DefaultOutboundSize = 500
)

// Config sizes the gateway state. Zero fields take defaults.
type Config struct {
	Threshold    uint8
	InboundSize  int
	OutboundSize int
	IDs          protocol.PCIDs
}

// Context is all process-wide gateway state, owned by the dispatcher.
// The queues are the only parts the link adapters touch.
type Context struct {
	Session  Session
	Timeouts *timeout.Supervisor
	Inbound  *queue.Ring[protocol.Frame]
	Outbound *queue.Ring[byte]
	// Readings caches the last value per sensor, indexed by protocol.Sensor.
	Readings [2]uint16
	IDs      protocol.PCIDs
}

// NewContext creates the power-on state. Both incoming-data channels and
// the PC-respond channel start counting.
func NewContext(cfg Config) *Context {
	if cfg.InboundSize <= 0 {
		cfg.InboundSize = DefaultInboundSize
	}
	if cfg.OutboundSize <= 0 {
		cfg.OutboundSize = DefaultOutboundSize
	}
	if cfg.IDs == (protocol.PCIDs{}) {
		cfg.IDs = protocol.DefaultPCIDs()
	}

	gc := &Context{
		Timeouts: timeout.New(cfg.Threshold),
		Inbound:  queue.New[protocol.Frame](cfg.InboundSize),
		Outbound: queue.New[byte](cfg.OutboundSize),
		IDs:      cfg.IDs,
	}
	gc.Timeouts.SetGate(timeout.DistanceIncomingData, true)
	gc.Timeouts.SetGate(timeout.RotationIncomingData, true)
	gc.Timeouts.SetGate(timeout.PcRespondData, true)
	return gc
}

func incomingChannel(s protocol.Sensor) timeout.Channel {
	if s == protocol.Rotation {
		return timeout.RotationIncomingData
	}
	return timeout.DistanceIncomingData
}

func respondChannel(s protocol.Sensor) timeout.Channel {
	if s == protocol.Rotation {
		return timeout.RotationRespondConnection
	}
	return timeout.DistanceRespondConnection
}
