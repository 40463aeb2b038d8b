package gateway

import "github.com/sweeney/sensor-gateway/internal/protocol"

// NodeState is the operating mode the gateway has put the sensor nodes in.
type NodeState uint8

const (
	NodeIdle NodeState = iota
	NodeStopped
	NodeRunning
)

func (n NodeState) String() string {
	switch n {
	case NodeIdle:
		return "IDLE"
	case NodeStopped:
		return "STOPPED"
	case NodeRunning:
		return "RUNNING"
	}
	return "UNKNOWN"
}

// PcAckLock reserves the single "waiting for PC acknowledgement" timer for
// one sensor. Only the holder can release it.
type PcAckLock struct {
	holder protocol.Sensor
	held   bool
}

// TryAcquire takes the lock for s if nobody holds it.
func (l *PcAckLock) TryAcquire(s protocol.Sensor) bool {
	if l.held {
		return false
	}
	l.holder = s
	l.held = true
	return true
}

// Release frees the lock if s holds it.
func (l *PcAckLock) Release(s protocol.Sensor) bool {
	if !l.held || l.holder != s {
		return false
	}
	l.held = false
	return true
}

// Holder returns the sensor holding the lock.
func (l PcAckLock) Holder() (protocol.Sensor, bool) {
	return l.holder, l.held
}

func (l PcAckLock) String() string {
	if !l.held {
		return "UNLOCKED"
	}
	if l.holder == protocol.Rotation {
		return "LOCKED_BY_ROTATION"
	}
	return "LOCKED_BY_DISTANCE"
}

// Session is the cross-channel protocol state. The zero value is the
// power-on state: Idle, unlocked, no disconnect notified.
type Session struct {
	Node NodeState
	Lock PcAckLock
	// DisconnectNotified is indexed by protocol.Sensor.
	DisconnectNotified [2]bool
}
