// Package timeout implements the gateway's tick-driven silence detection.
//
// Each of the five channels owns a gate, a saturating tick counter and a
// level-triggered event. While the gate is on, every Tick advances the
// counter; the tick that takes it past the threshold latches the event. The
// event stays latched until the owner clears it with WriteEvent, and neither
// ResetCounter nor SetGate touches it.
//
// All methods are safe to call concurrently with Tick. Each call observes and
// leaves every channel in a consistent state.
package timeout

import (
	"fmt"
	"sync"
)

// Channel names one supervised condition.
type Channel uint8

const (
	DistanceIncomingData Channel = iota
	RotationIncomingData
	DistanceRespondConnection
	RotationRespondConnection
	PcRespondData

	NumChannels
)

// Channels lists every channel in event-processing order.
var Channels = [NumChannels]Channel{
	DistanceIncomingData,
	RotationIncomingData,
	DistanceRespondConnection,
	RotationRespondConnection,
	PcRespondData,
}

var channelNames = [NumChannels]string{
	"distance_incoming_data",
	"rotation_incoming_data",
	"distance_respond_connection",
	"rotation_respond_connection",
	"pc_respond_data",
}

func (c Channel) String() string {
	if c >= NumChannels {
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
	return channelNames[c]
}

// Phase is the tagged view of a channel.
type Phase uint8

const (
	// Idle: gate off, no event pending.
	Idle Phase = iota
	// Armed: gate on, counting towards the threshold.
	Armed
	// Fired: event latched and not yet consumed.
	Fired
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "IDLE"
	case Armed:
		return "ARMED"
	case Fired:
		return "FIRED"
	}
	return "UNKNOWN"
}

// DefaultThreshold is the number of ticks a channel may count before its
// event fires (the event fires on the tick that exceeds it).
const DefaultThreshold = 10

// ChannelState is a value copy of one channel.
type ChannelState struct {
	Channel Channel
	Gate    bool
	Counter uint8
	Event   bool
	Phase   Phase
}

type channel struct {
	gate    bool
	counter uint8
	event   bool
}

func (c channel) phase() Phase {
	switch {
	case c.event:
		return Fired
	case c.gate:
		return Armed
	}
	return Idle
}

// Supervisor holds the five timeout channels.
type Supervisor struct {
	mu        sync.Mutex
	threshold uint8
	ch        [NumChannels]channel
}

// New creates a Supervisor with every gate off. A zero threshold selects
// DefaultThreshold.
func New(threshold uint8) *Supervisor {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &Supervisor{threshold: threshold}
}

// Threshold returns the configured tick threshold.
func (s *Supervisor) Threshold() uint8 {
	return s.threshold
}

// SetGate turns counting on or off. Turning it on restarts the counter from 0.
// Turning it off leaves counter and event as they are.
func (s *Supervisor) SetGate(c Channel, on bool) {
	if c >= NumChannels {
		return
	}
	s.mu.Lock()
	s.ch[c].gate = on
	if on {
		s.ch[c].counter = 0
	}
	s.mu.Unlock()
}

// ResetCounter restarts the channel's counter without touching gate or event.
func (s *Supervisor) ResetCounter(c Channel) {
	if c >= NumChannels {
		return
	}
	s.mu.Lock()
	s.ch[c].counter = 0
	s.mu.Unlock()
}

// WriteEvent sets or clears the event flag directly. Clearing is how the
// dispatcher consumes an event.
func (s *Supervisor) WriteEvent(c Channel, set bool) {
	if c >= NumChannels {
		return
	}
	s.mu.Lock()
	s.ch[c].event = set
	s.mu.Unlock()
}

// Event reports whether the channel's event is latched.
func (s *Supervisor) Event(c Channel) bool {
	if c >= NumChannels {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch[c].event
}

// Tick advances every gated channel by one period.
func (s *Supervisor) Tick() {
	s.mu.Lock()
	for i := range s.ch {
		c := &s.ch[i]
		if !c.gate {
			continue
		}
		if c.counter < ^uint8(0) {
			c.counter++
		}
		if c.counter == s.threshold+1 {
			c.event = true
		}
	}
	s.mu.Unlock()
}

// Phase returns the tagged state of a channel.
func (s *Supervisor) Phase(c Channel) Phase {
	if c >= NumChannels {
		return Idle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch[c].phase()
}

// Counter returns the channel's current tick count.
func (s *Supervisor) Counter(c Channel) uint8 {
	if c >= NumChannels {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch[c].counter
}

// Gate reports whether the channel is counting.
func (s *Supervisor) Gate(c Channel) bool {
	if c >= NumChannels {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch[c].gate
}

// Snapshot returns a consistent copy of all channels.
func (s *Supervisor) Snapshot() [NumChannels]ChannelState {
	var out [NumChannels]ChannelState
	s.mu.Lock()
	for i, c := range s.ch {
		out[i] = ChannelState{
			Channel: Channel(i),
			Gate:    c.gate,
			Counter: c.counter,
			Event:   c.event,
			Phase:   c.phase(),
		}
	}
	s.mu.Unlock()
	return out
}
