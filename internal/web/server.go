// Package web provides an HTTP status server for the sensor gateway.
package web

import (
	"context"
	"net"
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/sweeney/sensor-gateway/internal/status"
)

// Server serves the status page over HTTP and pushes live status over a
// websocket.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	hub        *hub
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker, hub: newHub()}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.Handle("/ws", websocket.Handler(s.handleWS))

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server and drops websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	return s.httpServer.Shutdown(ctx)
}

// Broadcast pushes the status to websocket clients on every tracker change
// until ctx is done.
func (s *Server) Broadcast(ctx context.Context) {
	for {
		changed := s.tracker.Changed()
		select {
		case <-ctx.Done():
			return
		case <-changed:
		}
		if s.hub.size() > 0 {
			s.hub.send(status.FormatCompactJSON(s.tracker.Snapshot()))
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleWS greets a client with the current status, then keeps the
// connection registered until the client goes away.
func (s *Server) handleWS(ws *websocket.Conn) {
	if _, err := ws.Write(status.FormatCompactJSON(s.tracker.Snapshot())); err != nil {
		ws.Close()
		return
	}
	s.hub.add(ws)
	defer s.hub.remove(ws)

	buf := make([]byte, 64)
	for {
		if _, err := ws.Read(buf); err != nil {
			return
		}
	}
}
