// Package status provides a thread-safe status tracker for the sensor gateway.
// It is fed by the dispatcher and read by the HTTP handlers, the websocket
// feed and the lifecycle messages published on MQTT.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/sensor-gateway/internal/gateway"
)

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains gateway configuration for display.
type Config struct {
	TickMs      int64
	Threshold   uint8
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	SerialPort  string
	CANIface    string
}

// Snapshot is a point-in-time view of gateway state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Gateway       gateway.Snapshot
	Reported      bool // false until the dispatcher has reported once
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the gateway started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable gateway state behind an RWMutex.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	changed chan struct{}
	now     func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		changed: make(chan struct{}),
		now:     time.Now,
	}
}

// Report stores the dispatcher's latest snapshot. It implements
// gateway.Reporter and never blocks.
func (t *Tracker) Report(s gateway.Snapshot) {
	t.mu.Lock()
	t.snap.Gateway = s
	t.snap.Reported = true
	t.notifyLocked()
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	if t.snap.MQTTConnected != connected {
		t.snap.MQTTConnected = connected
		t.notifyLocked()
	}
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.notifyLocked()
	t.mu.Unlock()
}

// Changed returns a channel that is closed at the next state change.
// Callers fetch a fresh channel after each wakeup.
func (t *Tracker) Changed() <-chan struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.changed
}

// Snapshot returns a point-in-time copy of the gateway state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	now := t.now
	t.mu.RUnlock()
	s.Now = now()
	return s
}

func (t *Tracker) notifyLocked() {
	close(t.changed)
	t.changed = make(chan struct{})
}
