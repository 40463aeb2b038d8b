package uart

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"
)

// ByteSource is the outbound queue as seen by the sender.
type ByteSource interface {
	Pop() (byte, bool)
}

// Transmitter moves queued bytes to the port. RequestTransmit plays the part
// of enabling the transmit interrupt: it never blocks and any number of
// requests before the next drain collapse into one.
type Transmitter struct {
	src  ByteSource
	w    io.Writer
	kick chan struct{}

	mu      sync.Mutex // serializes Flush
	buf     []byte
	written uint64
}

// NewTransmitter creates a Transmitter draining src into w.
func NewTransmitter(src ByteSource, w io.Writer) *Transmitter {
	return &Transmitter{
		src:  src,
		w:    w,
		kick: make(chan struct{}, 1),
		buf:  make([]byte, 0, 64),
	}
}

// RequestTransmit asks Run to drain the queue.
func (t *Transmitter) RequestTransmit() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

// Flush writes everything currently queued.
func (t *Transmitter) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = t.buf[:0]
	for {
		b, ok := t.src.Pop()
		if !ok {
			break
		}
		t.buf = append(t.buf, b)
	}
	if len(t.buf) == 0 {
		return nil
	}
	n, err := t.w.Write(t.buf)
	t.written += uint64(n)
	if err != nil {
		return fmt.Errorf("uart: write: %w", err)
	}
	if glog.V(2) {
		glog.Infof("uart: tx %q", t.buf)
	}
	return nil
}

// Written returns the number of bytes handed to the writer.
func (t *Transmitter) Written() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.written
}

// Run drains the queue on every request until ctx is done. Write errors are
// logged and the bytes are lost; the link carries on.
func (t *Transmitter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.kick:
			if err := t.Flush(); err != nil {
				glog.Errorf("%v", err)
			}
		}
	}
}
