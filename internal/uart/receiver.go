// Package uart adapts the gateway to the PC tool's serial link.
//
// Receiver turns the incoming byte stream into parsed frames on the inbound
// queue. Transmitter drains the outbound byte queue to the port once the
// dispatcher has queued a complete frame.
package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/goburrow/serial"
	"github.com/golang/glog"

	"github.com/sweeney/sensor-gateway/internal/protocol"
)

// Inbound accepts parsed frames. It must not block.
type Inbound interface {
	Push(protocol.Frame) error
}

// ReceiverStats are the receive-side counters.
type ReceiverStats struct {
	Lines     uint64 // frames pushed inbound
	Malformed uint64 // lines that failed to parse or overflowed the line buffer
	Dropped   uint64 // frames lost to a full inbound queue
}

// Receiver assembles and parses lines from the PC tool.
type Receiver struct {
	in        Inbound
	asm       *protocol.LineAssembler
	lines     atomic.Uint64
	malformed atomic.Uint64
	dropped   atomic.Uint64
}

// NewReceiver creates a Receiver with a line buffer of lineMax bytes.
func NewReceiver(in Inbound, lineMax int) *Receiver {
	return &Receiver{
		in:  in,
		asm: protocol.NewLineAssembler(lineMax),
	}
}

// Feed consumes one received byte. Feed is not safe for concurrent use;
// a single reader goroutine owns it.
func (r *Receiver) Feed(b byte) {
	line, complete, overflow := r.asm.Feed(b)
	if overflow {
		r.malformed.Add(1)
		if glog.V(1) {
			glog.Infof("uart: line longer than buffer, discarded")
		}
		return
	}
	if !complete {
		return
	}

	f, err := protocol.Parse(line)
	if err != nil {
		r.malformed.Add(1)
		if glog.V(1) {
			glog.Infof("uart: dropped line %q: %v", line, err)
		}
		return
	}
	if err := r.in.Push(f); err != nil {
		r.dropped.Add(1)
		glog.Warningf("uart: inbound queue full, dropped %s", f)
		return
	}
	r.lines.Add(1)
}

// Write feeds p, so a Receiver can sit behind an io.Writer.
func (r *Receiver) Write(p []byte) (int, error) {
	for _, b := range p {
		r.Feed(b)
	}
	return len(p), nil
}

// Run reads src until EOF, a read error, or ctx is done. Read timeouts from
// a serial port are not errors. A blocked Read is released by closing src.
func (r *Receiver) Run(ctx context.Context, src io.Reader) error {
	buf := make([]byte, 64)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.Read(buf)
		for _, b := range buf[:n] {
			r.Feed(b)
		}
		switch {
		case err == nil:
		case errors.Is(err, serial.ErrTimeout):
		case errors.Is(err, io.EOF):
			return nil
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("uart: read: %w", err)
		}
	}
}

// Stats returns the receive counters.
func (r *Receiver) Stats() ReceiverStats {
	return ReceiverStats{
		Lines:     r.lines.Load(),
		Malformed: r.malformed.Load(),
		Dropped:   r.dropped.Load(),
	}
}
