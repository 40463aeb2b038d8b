package web

import (
	"time"

	"github.com/golang/glog"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/net/websocket"
)

const wsWriteTimeout = time.Second

// hub fans messages out to the connected websocket clients. A client that
// cannot take a message within wsWriteTimeout is dropped.
type hub struct {
	mu    deadlock.Mutex
	conns []*websocket.Conn
}

func newHub() *hub {
	return &hub{}
}

func (h *hub) add(ws *websocket.Conn) {
	h.mu.Lock()
	h.conns = append(h.conns, ws)
	n := len(h.conns)
	h.mu.Unlock()
	if glog.V(1) {
		glog.Infof("web: websocket client %s joined (%d connected)", ws.Request().RemoteAddr, n)
	}
}

func (h *hub) remove(ws *websocket.Conn) {
	h.mu.Lock()
	for i, c := range h.conns {
		if c == ws {
			h.conns = append(h.conns[:i], h.conns[i+1:]...)
			break
		}
	}
	h.mu.Unlock()
	ws.Close()
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *hub) send(msg []byte) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, len(h.conns))
	copy(conns, h.conns)
	h.mu.Unlock()

	// Writes happen outside the lock; a stalled client must not hold up
	// joins, leaves or the next broadcast's snapshot of the list.
	var failed []*websocket.Conn
	for _, ws := range conns {
		err := ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err == nil {
			_, err = ws.Write(msg)
		}
		if err != nil {
			glog.Warningf("web: dropping websocket client: %v", err)
			failed = append(failed, ws)
		}
	}
	for _, ws := range failed {
		h.remove(ws)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ws := range h.conns {
		ws.Close()
	}
	h.conns = nil
}
