package mqtt

import "github.com/golang/glog"

// pending is a serialized message waiting for the broker.
type pending struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// backlog holds messages published while the broker is unreachable. When
// full the oldest message is discarded, since newer gateway state supersedes
// older state. Callers synchronize.
type backlog struct {
	msgs    []pending
	limit   int
	dropped uint64
	warned  bool
}

func newBacklog(limit int) *backlog {
	if limit < 1 {
		limit = 1
	}
	return &backlog{limit: limit}
}

func (b *backlog) add(m pending) {
	if len(b.msgs) == b.limit {
		if !b.warned {
			glog.Warningf("mqtt: offline backlog full (%d messages), discarding oldest", b.limit)
			b.warned = true
		}
		copy(b.msgs, b.msgs[1:])
		b.msgs = b.msgs[:len(b.msgs)-1]
		b.dropped++
	}
	b.msgs = append(b.msgs, m)
}

// take empties the backlog and returns its messages oldest first.
func (b *backlog) take() []pending {
	if len(b.msgs) == 0 {
		return nil
	}
	out := b.msgs
	b.msgs = nil
	b.warned = false
	return out
}

func (b *backlog) size() int { return len(b.msgs) }
