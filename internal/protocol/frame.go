// Package protocol holds the gateway's wire knowledge: the normalized Frame,
// the identifier tables for both links, and the UART ASCII codec.
// It has no hardware or shared-state dependencies.
package protocol

import "fmt"

// Frame is one unit of protocol data, independent of the link it came from.
// CAN frames carry the receive id and the low 16 bits of the first data word;
// UART frames carry the parsed "<id>-<data>" fields.
type Frame struct {
	ID   uint8
	Data uint16
}

func (f Frame) String() string {
	return fmt.Sprintf("%d-%d", f.ID, f.Data)
}

// Sensor identifies one of the two CAN sensor nodes.
type Sensor uint8

const (
	Distance Sensor = iota
	Rotation
)

// Sensors lists both sensor nodes in handling order.
var Sensors = [...]Sensor{Distance, Rotation}

func (s Sensor) String() string {
	switch s {
	case Distance:
		return "distance"
	case Rotation:
		return "rotation"
	}
	return fmt.Sprintf("sensor(%d)", uint8(s))
}
