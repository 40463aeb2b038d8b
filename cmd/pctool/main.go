// Command pctool is an interactive console for exercising a sensor gateway
// from the PC side of its serial link.
package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/sweeney/sensor-gateway/internal/config"
	"github.com/sweeney/sensor-gateway/internal/pctool"
	"github.com/sweeney/sensor-gateway/internal/protocol"
	"github.com/sweeney/sensor-gateway/internal/uart"
)

const sessionKey = "$session"

func main() {
	port := flag.String("port", "/dev/ttyUSB1", "Serial device wired to the gateway")
	baud := flag.Int("baud", uart.DefaultBaudRate, "Baud rate")
	configPath := flag.String("config", "", "Gateway YAML config to take PC ids from (empty uses defaults)")
	autoAck := flag.Bool("auto-ack", false, "Acknowledge every reading as it arrives")

	flag.Parse()
	defer glog.Flush()

	ids := protocol.DefaultPCIDs()
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			glog.Exitf("config: %v", err)
		}
		ids = cfg.IDs.PCIDs()
	}

	p, err := uart.OpenPort(uart.PortConfig{Address: *port, BaudRate: *baud})
	if err != nil {
		glog.Exitf("%v", err)
	}
	defer p.Close()

	session := pctool.NewSession(ids, p)
	session.SetAutoAck(*autoAck)

	shell := newShell(session)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		err := session.Run(ctx, p, func(f protocol.Frame, desc string) {
			shell.Printf("<- %-9s %s\n", f, desc)
		})
		if err != nil && ctx.Err() == nil {
			shell.Printf("receive stopped: %v\n", err)
		}
	}()

	if args := flag.Args(); len(args) > 0 {
		if err := shell.Process(args...); err != nil {
			glog.Exitf("%v", err)
		}
		return
	}
	shell.Printf("connected to %s at %d baud; type help for commands\n", *port, *baud)
	shell.Run()
}

func newShell(s *pctool.Session) *ishell.Shell {
	shell := ishell.New()
	shell.Set(sessionKey, s)
	shell.SetPrompt("gateway > ")
	for _, cmd := range commands {
		shell.AddCmd(cmd)
	}
	return shell
}

func sessionFrom(c *ishell.Context) *pctool.Session {
	return c.Get(sessionKey).(*pctool.Session)
}

// withSensor wraps a command taking one sensor argument.
func withSensor(fn func(s *pctool.Session, sensor protocol.Sensor) error) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if len(c.Args) != 1 {
			c.Err(fmt.Errorf("expected one sensor: distance or rotation"))
			return
		}
		sensor, err := pctool.ParseSensor(c.Args[0])
		if err != nil {
			c.Err(err)
			return
		}
		if err := fn(sessionFrom(c), sensor); err != nil {
			c.Err(err)
		}
	}
}

var commands = []*ishell.Cmd{
	{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "ask the gateway to confirm the link",
		Func: func(c *ishell.Context) {
			if err := sessionFrom(c).ConnectGateway(); err != nil {
				c.Err(err)
			}
		},
	},
	{
		Name:    "sensor",
		Aliases: []string{"s"},
		Help:    "SENSOR  send a connection request to a sensor node",
		Func: withSensor(func(s *pctool.Session, sensor protocol.Sensor) error {
			return s.ConnectSensor(sensor)
		}),
	},
	{
		Name:    "ack",
		Aliases: []string{"a"},
		Help:    "SENSOR  acknowledge the last reading",
		Func: withSensor(func(s *pctool.Session, sensor protocol.Sensor) error {
			return s.Ack(sensor)
		}),
	},
	{
		Name: "autoack",
		Help: "on|off  acknowledge readings automatically",
		Func: func(c *ishell.Context) {
			s := sessionFrom(c)
			if len(c.Args) == 1 {
				switch c.Args[0] {
				case "on":
					s.SetAutoAck(true)
				case "off":
					s.SetAutoAck(false)
				default:
					c.Err(fmt.Errorf("expected on or off"))
					return
				}
			}
			c.Printf("auto-ack %v\n", s.AutoAck())
		},
	},
	{
		Name: "send",
		Help: "ID DATA  send a raw frame",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("expected ID and DATA"))
				return
			}
			id, err := strconv.ParseUint(c.Args[0], 10, 8)
			if err != nil {
				c.Err(fmt.Errorf("id: %w", err))
				return
			}
			data, err := strconv.ParseUint(c.Args[1], 10, 16)
			if err != nil {
				c.Err(fmt.Errorf("data: %w", err))
				return
			}
			if err := sessionFrom(c).Send(protocol.Frame{ID: uint8(id), Data: uint16(data)}); err != nil {
				c.Err(err)
			}
		},
	},
	{
		Name: "stats",
		Help: "show traffic counters",
		Func: func(c *ishell.Context) {
			n := sessionFrom(c).Counters()
			c.Printf("sent %d, received %d, malformed %d\n", n.Sent, n.Received, n.Malformed)
		},
	},
}
