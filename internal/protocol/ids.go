package protocol

// CAN receive identifiers (standard 11-bit) accepted from the sensor nodes.
const (
	CANDistanceData      uint8 = 0x20
	CANRotationData      uint8 = 0x10
	CANDistanceHandshake uint8 = 0xE1
	CANRotationHandshake uint8 = 0xF1
	CANDistancePingAck   uint8 = 0x51
	CANRotationPingAck   uint8 = 0x61
)

// Mailbox is a fixed CAN transmit slot. Each mailbox is bound to one CAN id.
type Mailbox uint8

const (
	MailboxAckDistance Mailbox = iota
	MailboxAckRotation
	MailboxConnectDistance
	MailboxConnectRotation
	MailboxControlDistance // stop / wake-up
	MailboxControlRotation
	MailboxPingDistance
	MailboxPingRotation

	numMailboxes
)

var mailboxIDs = [numMailboxes]uint32{
	MailboxAckDistance:     0x21,
	MailboxAckRotation:     0x11,
	MailboxConnectDistance: 0xE0,
	MailboxConnectRotation: 0xF0,
	MailboxControlDistance: 0x30,
	MailboxControlRotation: 0x40,
	MailboxPingDistance:    0x50,
	MailboxPingRotation:    0x60,
}

var mailboxNames = [numMailboxes]string{
	"ack-distance", "ack-rotation",
	"connect-distance", "connect-rotation",
	"control-distance", "control-rotation",
	"ping-distance", "ping-rotation",
}

// CANID returns the CAN identifier the mailbox transmits on.
// ok is false for an unknown mailbox.
func (m Mailbox) CANID() (id uint32, ok bool) {
	if m >= numMailboxes {
		return 0, false
	}
	return mailboxIDs[m], true
}

func (m Mailbox) String() string {
	if m >= numMailboxes {
		return "mailbox(?)"
	}
	return mailboxNames[m]
}

// CAN payload constants written into the first data word.
const (
	PayloadAck            uint16 = 0xFF
	PayloadPing           uint16 = 0x10
	PayloadConnectRequest uint16 = 0x10
	PayloadStop           uint16 = 0x10
	PayloadWakeUp         uint16 = 0xFF
)

// IsSensorID reports whether id is one of the six CAN receive identifiers.
func IsSensorID(id uint32) bool {
	switch id {
	case uint32(CANDistanceData), uint32(CANRotationData),
		uint32(CANDistanceHandshake), uint32(CANRotationHandshake),
		uint32(CANDistancePingAck), uint32(CANRotationPingAck):
		return true
	}
	return false
}

// Per-sensor CAN tables.

// DataID returns the CAN id the sensor sends readings on.
func (s Sensor) DataID() uint8 {
	if s == Rotation {
		return CANRotationData
	}
	return CANDistanceData
}

// HandshakeID returns the CAN id of the sensor's connection confirmation.
func (s Sensor) HandshakeID() uint8 {
	if s == Rotation {
		return CANRotationHandshake
	}
	return CANDistanceHandshake
}

// PingAckID returns the CAN id of the sensor's ping acknowledgement.
func (s Sensor) PingAckID() uint8 {
	if s == Rotation {
		return CANRotationPingAck
	}
	return CANDistancePingAck
}

func (s Sensor) AckMailbox() Mailbox {
	if s == Rotation {
		return MailboxAckRotation
	}
	return MailboxAckDistance
}

func (s Sensor) ConnectMailbox() Mailbox {
	if s == Rotation {
		return MailboxConnectRotation
	}
	return MailboxConnectDistance
}

func (s Sensor) ControlMailbox() Mailbox {
	if s == Rotation {
		return MailboxControlRotation
	}
	return MailboxControlDistance
}

func (s Sensor) PingMailbox() Mailbox {
	if s == Rotation {
		return MailboxPingRotation
	}
	return MailboxPingDistance
}

// PCIDs are the identifiers used on the UART link with the PC tool.
// The PC tool acknowledges forwarded data by echoing the data id.
type PCIDs struct {
	ConnectGateway  uint8
	ConnectDistance uint8
	ConnectRotation uint8
	DistanceData    uint8
	RotationData    uint8

	// ConnectionConfirmed is the data value of a "connection confirmed" frame.
	ConnectionConfirmed uint16
	// Disconnected is the sentinel data value meaning "sensor unreachable".
	Disconnected uint16
}

// DefaultPCIDs returns the identifier set the PC tool ships with.
func DefaultPCIDs() PCIDs {
	return PCIDs{
		ConnectGateway:      1,
		ConnectDistance:     2,
		ConnectRotation:     3,
		DistanceData:        4,
		RotationData:        5,
		ConnectionConfirmed: 1,
		Disconnected:        0xFFFF,
	}
}

// DataID returns the UART id used for a sensor's readings and their acknowledgement.
func (p PCIDs) DataID(s Sensor) uint8 {
	if s == Rotation {
		return p.RotationData
	}
	return p.DistanceData
}

// ConnectID returns the UART id of the PC tool's connection request for a sensor.
func (p PCIDs) ConnectID(s Sensor) uint8 {
	if s == Rotation {
		return p.ConnectRotation
	}
	return p.ConnectDistance
}
