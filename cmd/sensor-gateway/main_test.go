package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/sensor-gateway/internal/can"
	"github.com/sweeney/sensor-gateway/internal/gateway"
	"github.com/sweeney/sensor-gateway/internal/gpio"
	"github.com/sweeney/sensor-gateway/internal/mqtt"
	"github.com/sweeney/sensor-gateway/internal/protocol"
	"github.com/sweeney/sensor-gateway/internal/status"
	"github.com/sweeney/sensor-gateway/internal/uart"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfo(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")
	t.Setenv(envNetworkGateway, "")
	t.Setenv(envNetworkWifiStatus, "")

	info := readNetworkInfo()
	require.NotNil(t, info)
	assert.Equal(t, status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.100",
		Status: "connected",
		SSID:   "MyNetwork",
	}, *info)
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	assert.Nil(t, readNetworkInfo())
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "can0", cfg.CAN.Interface)

	path := filepath.Join(t.TempDir(), "gw.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \" off \"\ntimeout:\n  threshold: 5\n"), 0o644))
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Timeout.Threshold)
	assert.Equal(t, "", cfg.HTTP.Addr, "normalized after validation")

	require.NoError(t, os.WriteFile(path, []byte("timeout:\n  threshold: 0\n"), 0o644))
	_, err = loadConfig(path)
	assert.Error(t, err)
}

func TestSignalName(t *testing.T) {
	assert.Equal(t, "SIGINT", signalName(syscall.SIGINT))
	assert.Equal(t, "SIGTERM", signalName(syscall.SIGTERM))
	assert.Equal(t, "UNKNOWN", signalName(syscall.SIGHUP))
}

func TestReportersFanOut(t *testing.T) {
	tracker := status.NewTracker(time.Now(), status.Config{})
	led := gpio.NewFakeIndicator()
	reporters{tracker, gpio.NewReporter(led)}.Report(gateway.Snapshot{Node: gateway.NodeRunning})

	assert.Equal(t, gateway.NodeRunning, tracker.Snapshot().Gateway.Node)
	assert.Equal(t, []gateway.NodeState{gateway.NodeRunning}, led.States())
}

type loop struct {
	gc        *gateway.Context
	d         *gateway.Dispatcher
	bus       *can.FakeBus
	pub       *mqtt.FakePublisher
	tracker   *status.Tracker
	tick      chan time.Time
	heartbeat chan time.Time
	refresh   chan time.Time
	fatal     chan error
	sig       chan os.Signal
	result    chan error
}

func fakeClock() func() time.Time {
	return func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
}

// startLoop wires a dispatcher over fakes and runs runLoop in the background.
// The supervisor threshold is 2, so three ticks fire every armed channel.
func startLoop(t *testing.T, withMQTT bool) *loop {
	t.Helper()
	l := &loop{
		gc:        gateway.NewContext(gateway.Config{Threshold: 2}),
		bus:       can.NewFakeBus(),
		tracker:   status.NewTracker(time.Now(), status.Config{Broker: "tcp://test:1883"}),
		tick:      make(chan time.Time),
		heartbeat: make(chan time.Time),
		refresh:   make(chan time.Time),
		fatal:     make(chan error, 1),
		sig:       make(chan os.Signal, 1),
		result:    make(chan error, 1),
	}
	opts := []gateway.Option{gateway.WithReporter(l.tracker), gateway.WithClock(fakeClock())}

	var (
		pub       mqtt.Publisher
		connected mqtt.ConnectionStatus
	)
	if withMQTT {
		l.pub = mqtt.NewFakePublisher()
		l.pub.Connected = true
		pub, connected = l.pub, l.pub
		opts = append(opts, gateway.WithObserver(mqtt.Observer(l.pub)))
	}
	l.d = gateway.New(l.gc, can.NewTransmitter(l.bus), uart.NewTransmitter(l.gc.Outbound, io.Discard), opts...)

	go func() {
		l.result <- runLoop(l.d, pub, connected, l.tracker, fakeClock(), l.tick, l.heartbeat, l.refresh, l.fatal, l.sig)
	}()
	return l
}

func (l *loop) ticks(n int) {
	for i := 0; i < n; i++ {
		l.tick <- time.Time{}
	}
}

func (l *loop) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-l.result:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return")
		return nil
	}
}

func (l *loop) waitNode(t *testing.T, want gateway.NodeState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return l.tracker.Snapshot().Gateway.Node == want
	}, 2*time.Second, 5*time.Millisecond, "node never reached %s", want)
}

// controlFrames counts frames published on the control mailboxes with the
// given payload, consuming the bus record.
func controlFrames(bus *can.FakeBus, payload uint16) int {
	dist, _ := protocol.MailboxControlDistance.CANID()
	rot, _ := protocol.MailboxControlRotation.CANID()
	var n int
	for _, f := range bus.Frames() {
		if (f.ID == dist || f.ID == rot) && can.DecodePayload(f) == payload {
			n++
		}
	}
	return n
}

func TestRunLoopSilentPCStopsNodes(t *testing.T) {
	l := startLoop(t, true)

	l.ticks(3)
	l.waitNode(t, gateway.NodeStopped)

	assert.Equal(t, 2, controlFrames(l.bus, protocol.PayloadStop), "both nodes should be told to stop")

	l.sig <- syscall.SIGTERM
	require.NoError(t, l.wait(t))
	assert.Contains(t, l.pub.EventTypes(), gateway.EventNodesStopped)
}

func TestRunLoopShutdownPublishesStatus(t *testing.T) {
	for _, sig := range []os.Signal{syscall.SIGINT, syscall.SIGTERM} {
		t.Run(signalName(sig), func(t *testing.T) {
			l := startLoop(t, true)
			l.sig <- sig
			require.NoError(t, l.wait(t))

			require.Equal(t, []string{"SHUTDOWN"}, l.pub.SystemEventNames())
			ev := l.pub.SystemEvents[0]
			assert.Equal(t, signalName(sig), ev.Reason)
			assert.True(t, ev.Retained)
			assert.Contains(t, string(ev.RawPayload), `"event":"SHUTDOWN"`)
			assert.Contains(t, string(ev.RawPayload), `"connected":true`)
		})
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "10.1.2.3")
	l := startLoop(t, true)

	require.NoError(t, l.gc.Inbound.Push(protocol.Frame{ID: 1, Data: 0}))
	require.Eventually(t, func() bool {
		return l.tracker.Snapshot().Gateway.Stats.Frames == 1
	}, 2*time.Second, 5*time.Millisecond)

	l.heartbeat <- time.Time{}
	l.sig <- syscall.SIGTERM
	require.NoError(t, l.wait(t))

	require.Equal(t, []string{"HEARTBEAT", "SHUTDOWN"}, l.pub.SystemEventNames())
	hb := l.pub.SystemEvents[0]
	assert.False(t, hb.Retained)
	assert.Contains(t, string(hb.RawPayload), `"event":"HEARTBEAT"`)
	assert.Contains(t, string(hb.RawPayload), `"frames":1`)
	assert.Contains(t, string(hb.RawPayload), `"ip":"10.1.2.3"`)
}

func TestRunLoopRefreshTracksMQTT(t *testing.T) {
	l := startLoop(t, true)

	l.refresh <- time.Time{}
	require.Eventually(t, func() bool { return l.tracker.Snapshot().MQTTConnected }, 2*time.Second, 5*time.Millisecond)

	l.sig <- syscall.SIGINT
	require.NoError(t, l.wait(t))
}

func TestRunLoopPublishErrorsAreNotFatal(t *testing.T) {
	l := startLoop(t, true)
	l.pub.PublishSystemError = errors.New("broker down")
	l.pub.PublishError = errors.New("broker down")

	l.ticks(3)
	l.waitNode(t, gateway.NodeStopped)
	l.heartbeat <- time.Time{}
	l.sig <- syscall.SIGTERM

	require.NoError(t, l.wait(t))
	assert.Empty(t, l.pub.SystemEventNames())
}

func TestRunLoopFatalLinkError(t *testing.T) {
	l := startLoop(t, true)
	boom := errors.New("uart: read: device gone")
	l.fatal <- boom

	assert.ErrorIs(t, l.wait(t), boom)
	require.Equal(t, []string{"SHUTDOWN"}, l.pub.SystemEventNames())
	assert.Equal(t, "LINK_FAILURE", l.pub.SystemEvents[0].Reason)
}

func TestRunLoopWithoutMQTT(t *testing.T) {
	l := startLoop(t, false)

	l.ticks(3)
	l.waitNode(t, gateway.NodeStopped)
	l.refresh <- time.Time{}
	l.heartbeat <- time.Time{}
	l.sig <- syscall.SIGTERM

	require.NoError(t, l.wait(t))
	assert.False(t, l.tracker.Snapshot().MQTTConnected)
}

func TestRunLoopPCAckWakesNodes(t *testing.T) {
	l := startLoop(t, true)
	l.ticks(3)
	l.waitNode(t, gateway.NodeStopped)
	l.bus.Frames()

	// Sensor data takes the ack lock; the PC's ack then wakes both nodes.
	require.NoError(t, l.gc.Inbound.Push(protocol.Frame{ID: protocol.CANDistanceData, Data: 42}))
	require.NoError(t, l.gc.Inbound.Push(protocol.Frame{ID: l.gc.IDs.DistanceData, Data: 0}))
	l.waitNode(t, gateway.NodeRunning)

	assert.Equal(t, 2, controlFrames(l.bus, protocol.PayloadWakeUp))

	l.sig <- syscall.SIGTERM
	require.NoError(t, l.wait(t))
	assert.Contains(t, l.pub.EventTypes(), gateway.EventNodesWoken)
}
