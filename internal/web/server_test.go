package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/sweeney/sensor-gateway/internal/gateway"
	"github.com/sweeney/sensor-gateway/internal/status"
	"github.com/sweeney/sensor-gateway/internal/timeout"
)

func newTestServer(t *testing.T) (*httptest.Server, *Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		TickMs:      100,
		Threshold:   10,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":8080",
		SerialPort:  "/dev/ttyUSB0",
		CANIface:    "can0",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, srv, tr
}

func running() gateway.Snapshot {
	return gateway.Snapshot{
		Node:     gateway.NodeRunning,
		Lock:     "LOCKED_BY_DISTANCE",
		Readings: [2]uint16{321, 0},
		Channels: timeout.New(10).Snapshot(),
		Stats:    gateway.Stats{Frames: 12},
	}
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestJSONEndpoint(t *testing.T) {
	ts, _, tr := newTestServer(t)
	tr.Report(running())
	tr.SetMQTTConnected(true)

	resp, body := get(t, ts.URL+"/index.json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status
	if s.Node != "RUNNING" || s.Lock != "LOCKED_BY_DISTANCE" {
		t.Errorf("unexpected node/lock: %s %s", s.Node, s.Lock)
	}
	if s.Sensors[0].LastReading != 321 || s.Counters.Frames != 12 {
		t.Errorf("unexpected sensors/counters: %+v %+v", s.Sensors, s.Counters)
	}
	if !s.MQTT.Connected {
		t.Error("expected mqtt connected")
	}
}

func TestJSONUnknownBeforeFirstReport(t *testing.T) {
	ts, _, _ := newTestServer(t)
	_, body := get(t, ts.URL+"/index.json")

	var parsed status.StatusJSON
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Node != "UNKNOWN" || parsed.Status.Ready {
		t.Errorf("expected UNKNOWN and not ready, got %+v", parsed.Status)
	}
}

func TestHTMLEndpoints(t *testing.T) {
	ts, _, tr := newTestServer(t)
	tr.Report(running())
	tr.SetNetwork(&status.NetworkInfo{Type: "wifi", Status: "up", IP: "10.0.0.7", SSID: "Lab"})

	for _, path := range []string{"/", "/index.html"} {
		t.Run(path, func(t *testing.T) {
			resp, body := get(t, ts.URL+path)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status: got %d", resp.StatusCode)
			}
			if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
				t.Errorf("Content-Type: got %q", resp.Header.Get("Content-Type"))
			}
			for _, want := range []string{
				"Sensor Gateway",
				`class="RUNNING">RUNNING`,
				"LOCKED_BY_DISTANCE",
				"321",
				"distance_incoming_data",
				"10.0.0.7",
				"/dev/ttyUSB0",
			} {
				if !strings.Contains(body, want) {
					t.Errorf("page missing %q", want)
				}
			}
		})
	}
}

func TestHTMLMarksNotifiedSensor(t *testing.T) {
	ts, _, tr := newTestServer(t)
	g := running()
	g.DisconnectNotified[1] = true
	tr.Report(g)

	_, body := get(t, ts.URL+"/")
	if !strings.Contains(body, "(disconnected)") {
		t.Error("expected disconnected marker for rotation sensor")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, _ := get(t, ts.URL+"/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, _, tr := newTestServer(t)
	tr.Report(running())

	g := running()
	g.Node = gateway.NodeStopped
	tr.Report(g)

	_, body := get(t, ts.URL+"/index.json")
	if !strings.Contains(body, `"node": "STOPPED"`) {
		t.Errorf("expected STOPPED in body: %s", body)
	}
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, err := websocket.Dial(url, "", ts.URL)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func receiveStatus(t *testing.T, ws *websocket.Conn) status.StatusInner {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg string
	if err := websocket.Message.Receive(ws, &msg); err != nil {
		t.Fatalf("receive: %v", err)
	}
	var parsed status.StatusJSON
	if err := json.Unmarshal([]byte(msg), &parsed); err != nil {
		t.Fatalf("invalid JSON %q: %v", msg, err)
	}
	return parsed.Status
}

func TestWebsocketGreetsAndPushesChanges(t *testing.T) {
	ts, srv, tr := newTestServer(t)
	tr.Report(running())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Broadcast(ctx)

	ws := dialWS(t, ts)
	if got := receiveStatus(t, ws); got.Node != "RUNNING" {
		t.Fatalf("greeting: expected RUNNING, got %s", got.Node)
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.size() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	g := running()
	g.Node = gateway.NodeStopped
	tr.Report(g)

	if got := receiveStatus(t, ws); got.Node != "STOPPED" {
		t.Errorf("push: expected STOPPED, got %s", got.Node)
	}
}

func TestWebsocketClientRemovedOnClose(t *testing.T) {
	ts, srv, tr := newTestServer(t)
	tr.Report(running())

	ws := dialWS(t, ts)
	receiveStatus(t, ws)
	ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.size() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("closed client still registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastStopsOnCancel(t *testing.T) {
	_, srv, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Broadcast(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast did not return after cancel")
	}
}

func TestHubSendDoesNotHoldLockWhileWriting(t *testing.T) {
	h := newHub()
	release := make(chan struct{})
	defer close(release)
	ts := httptest.NewServer(websocket.Handler(func(ws *websocket.Conn) {
		h.add(ws)
		<-release
	}))
	defer ts.Close()

	// The client never reads, so a large enough message stalls the write
	// until its deadline.
	stalled, err := websocket.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), "", ts.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer stalled.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.size() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sent := make(chan struct{})
	go func() {
		h.send(make([]byte, 64<<20))
		close(sent)
	}()

	time.Sleep(50 * time.Millisecond)
	sized := make(chan int, 1)
	go func() { sized <- h.size() }()
	select {
	case n := <-sized:
		if n != 1 {
			t.Errorf("expected 1 client during send, got %d", n)
		}
	case <-time.After(wsWriteTimeout / 2):
		t.Fatal("hub lock held during a stalled write")
	}

	select {
	case <-sent:
	case <-time.After(5 * wsWriteTimeout):
		t.Fatal("send did not give up on the stalled client")
	}
	if n := h.size(); n != 0 {
		t.Errorf("stalled client should be dropped, %d remain", n)
	}
}
