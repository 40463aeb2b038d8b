package protocol

// DefaultLineMax is the UART receive buffer size of the gateway firmware.
const DefaultLineMax = 12

// LineAssembler collects bytes received one at a time into terminator
// delimited lines. A line longer than the buffer is discarded as a whole,
// up to and including its terminator.
type LineAssembler struct {
	buf      []byte
	max      int
	overflow bool
}

// NewLineAssembler creates an assembler holding at most max bytes per line.
func NewLineAssembler(max int) *LineAssembler {
	if max <= 0 {
		max = DefaultLineMax
	}
	return &LineAssembler{buf: make([]byte, 0, max), max: max}
}

// Feed consumes one byte. On a terminator it returns the completed line with
// complete set; the line is not reused by later calls. overflow is set
// instead when the line being terminated did not fit and was thrown away.
func (a *LineAssembler) Feed(b byte) (line []byte, complete, overflow bool) {
	if b != Terminator {
		if a.overflow {
			return nil, false, false
		}
		if len(a.buf) == a.max {
			a.overflow = true
			a.buf = a.buf[:0]
			return nil, false, false
		}
		a.buf = append(a.buf, b)
		return nil, false, false
	}

	if a.overflow {
		a.overflow = false
		return nil, false, true
	}
	line = a.buf
	a.buf = make([]byte, 0, a.max)
	return line, true, false
}

// Reset drops any partially received line.
func (a *LineAssembler) Reset() {
	a.buf = a.buf[:0]
	a.overflow = false
}
