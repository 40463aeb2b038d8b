// Command sensor-gateway bridges two CAN sensor nodes and a PC tool on a
// serial line, supervising both sides for silence, and mirrors what it sees
// to MQTT, a status page and an optional RGB LED.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/sensor-gateway/internal/can"
	"github.com/sweeney/sensor-gateway/internal/config"
	"github.com/sweeney/sensor-gateway/internal/gateway"
	"github.com/sweeney/sensor-gateway/internal/gpio"
	"github.com/sweeney/sensor-gateway/internal/mqtt"
	"github.com/sweeney/sensor-gateway/internal/status"
	"github.com/sweeney/sensor-gateway/internal/uart"
	"github.com/sweeney/sensor-gateway/internal/web"
)

// statusRefresh is how often link health is copied into the tracker.
const statusRefresh = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "YAML config file (empty uses built-in defaults)")
	printConfig := flag.Bool("print-config", false, "Print the effective config and exit")

	flag.Parse()
	defer glog.Flush()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		glog.Exitf("config: %v", err)
	}

	if *printConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			glog.Exitf("config: %v", err)
		}
		os.Stdout.Write(out)
		return
	}

	if err := run(cfg); err != nil {
		glog.Exitf("fatal: %v", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.Normalize(cfg)
	return cfg, nil
}

func run(cfg *config.Config) error {
	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:      int64(cfg.Timeout.TickMs),
		Threshold:   uint8(cfg.Timeout.Threshold),
		HeartbeatMs: int64(cfg.MQTT.HeartbeatMs),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		SerialPort:  cfg.Serial.Port,
		CANIface:    cfg.CAN.Interface,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	gc := gateway.NewContext(gateway.Config{
		Threshold:    uint8(cfg.Timeout.Threshold),
		InboundSize:  cfg.Queues.Inbound,
		OutboundSize: cfg.Queues.Outbound,
		IDs:          cfg.IDs.PCIDs(),
	})

	// Initialize CAN
	bus, err := can.OpenSocketBus(cfg.CAN.Interface)
	if err != nil {
		return fmt.Errorf("init can: %w", err)
	}
	defer bus.Close()
	canRx := can.NewReceiver(gc.Inbound)
	bus.Subscribe(canRx)

	// Initialize UART
	port, err := uart.OpenPort(uart.PortConfig{
		Address:     cfg.Serial.Port,
		BaudRate:    cfg.Serial.BaudRate,
		ReadTimeout: cfg.Serial.ReadTimeout(),
	})
	if err != nil {
		return fmt.Errorf("init uart: %w", err)
	}
	defer port.Close()
	uartRx := uart.NewReceiver(gc.Inbound, cfg.Serial.LineMax)
	uartTx := uart.NewTransmitter(gc.Outbound, port)

	// Initialize MQTT
	var (
		publisher  mqtt.Publisher
		mqttStatus mqtt.ConnectionStatus
	)
	if cfg.MQTT.Enabled {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			BufferSize: cfg.MQTT.BufferSize,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
	} else {
		glog.Infof("mqtt disabled")
	}

	// Initialize status LED
	fan := reporters{tracker}
	if cfg.GPIO.Enabled {
		led, err := gpio.NewRealIndicator(cfg.GPIO.Chip, cfg.GPIO.Red, cfg.GPIO.Green, cfg.GPIO.Blue)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer led.Close()
		fan = append(fan, gpio.NewReporter(led))
	}

	opts := []gateway.Option{gateway.WithReporter(fan)}
	if publisher != nil {
		opts = append(opts, gateway.WithObserver(mqtt.Observer(publisher)))
	}
	dispatcher := gateway.New(gc, can.NewTransmitter(bus), uartTx, opts...)

	// Publish startup event with full status snapshot
	if publisher != nil {
		snap := tracker.Snapshot()
		startupEvent := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startupEvent); err != nil {
			glog.Warningf("failed to publish startup event: %v", err)
		} else {
			glog.Infof("published startup event")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Link workers. A dead link is fatal: the gateway is useless without it.
	fatal := make(chan error, 3)
	go func() {
		if err := bus.Run(); err != nil {
			fatal <- fmt.Errorf("can bus: %w", err)
		}
	}()
	go func() {
		if err := uartRx.Run(ctx, port); err != nil && !errors.Is(err, context.Canceled) {
			fatal <- err
		}
	}()
	go uartTx.Run(ctx)

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				glog.Errorf("http server error: %v", err)
			}
		}()
		go srv.Broadcast(ctx)
		defer srv.Shutdown(context.Background())
		glog.Infof("http status server listening on %s", cfg.HTTP.Addr)
	}

	glog.Infof("started: serial=%s can=%s tick=%v threshold=%d broker=%s",
		cfg.Serial.Port, cfg.CAN.Interface, cfg.Timeout.TickPeriod(), cfg.Timeout.Threshold, cfg.MQTT.Broker)

	ticker := time.NewTicker(cfg.Timeout.TickPeriod())
	defer ticker.Stop()

	var heartbeat <-chan time.Time
	if hb := cfg.MQTT.Heartbeat(); hb > 0 && publisher != nil {
		hbTicker := time.NewTicker(hb)
		defer hbTicker.Stop()
		heartbeat = hbTicker.C
	}

	refresh := time.NewTicker(statusRefresh)
	defer refresh.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(dispatcher, publisher, mqttStatus, tracker, time.Now, ticker.C, heartbeat, refresh.C, fatal, sigCh)
}

// runLoop runs the dispatcher until a signal or a fatal link error, and
// handles the lifecycle messages around it. publisher and mqttStatus may be
// nil when MQTT is disabled.
func runLoop(d *gateway.Dispatcher, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker,
	now func() time.Time, tick, heartbeat, refresh <-chan time.Time, fatal <-chan error, sig <-chan os.Signal) error {

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, tick) }()

	refreshStatus := func() {
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
		if net := readNetworkInfo(); net != nil {
			tracker.SetNetwork(net)
		}
	}

	for {
		select {
		case s := <-sig:
			glog.Infof("received %v, shutting down", s)
			cancel()
			<-done
			publishShutdown(publisher, tracker, refreshStatus, now, signalName(s))
			return nil

		case err := <-fatal:
			glog.Errorf("%v", err)
			cancel()
			<-done
			publishShutdown(publisher, tracker, refreshStatus, now, "LINK_FAILURE")
			return err

		case err := <-done:
			return fmt.Errorf("dispatcher stopped: %w", err)

		case <-refresh:
			refreshStatus()

		case <-heartbeat:
			refreshStatus()
			snap := tracker.Snapshot()
			g := snap.Gateway.Stats
			glog.Infof("heartbeat: uptime=%v node=%s frames=%d unknown=%d uart_dropped=%d can_errors=%d",
				snap.Uptime().Truncate(time.Second), snap.Gateway.Node, g.Frames, g.UnknownIDs, g.UARTDropped, g.CANErrors)
			if publisher == nil {
				continue
			}
			hbEvent := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				glog.Warningf("heartbeat publish error: %v", err)
			}
		}
	}
}

func publishShutdown(publisher mqtt.Publisher, tracker *status.Tracker, refresh func(), now func() time.Time, reason string) {
	if publisher == nil {
		return
	}
	refresh()
	event := mqtt.SystemEvent{
		Timestamp:  now(),
		Event:      "SHUTDOWN",
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", reason),
	}
	if err := publisher.PublishSystem(event); err != nil {
		glog.Warningf("failed to publish shutdown event: %v", err)
	} else {
		glog.Infof("published shutdown event")
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// reporters fans a snapshot out to several consumers.
type reporters []gateway.Reporter

func (rs reporters) Report(s gateway.Snapshot) {
	for _, r := range rs {
		r.Report(s)
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
