package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/sweeney/sensor-gateway/internal/gateway"
)

// ErrBacklogged is returned by Publish when the send queue is full. The
// event is lost; the gateway carries on.
var ErrBacklogged = errors.New("mqtt: send queue full")

const (
	publishTimeout = 5 * time.Second
	connectTimeout = 10 * time.Second
	sendQueueSize  = 64
)

// Options configure a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int // offline backlog capacity
}

// RealPublisher publishes to an actual MQTT broker. Gateway events are
// handed to a worker so the dispatcher never waits on the network; while
// the broker is unreachable they collect in a bounded backlog that is
// replayed on reconnect.
type RealPublisher struct {
	client paho.Client

	mu      sync.Mutex
	backlog *backlog

	sendq  chan pending
	replay chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRealPublisher creates a publisher for the given broker. An unreachable
// broker is not fatal: the client keeps retrying in the background.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.Broker == "" {
		return nil, errors.New("mqtt: no broker configured")
	}
	if o.ClientID == "" {
		o.ClientID = ClientID()
	}

	p := &RealPublisher{
		backlog: newBacklog(o.BufferSize),
		sendq:   make(chan pending, sendQueueSize),
		replay:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(func(paho.Client) {
			glog.Infof("mqtt: connected to %s", o.Broker)
			select {
			case p.replay <- struct{}{}:
			default:
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			glog.Warningf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		glog.Warningf("mqtt: broker %s not reachable yet, retrying in background", o.Broker)
	} else if err := token.Error(); err != nil {
		glog.Warningf("mqtt: connect to %s: %v", o.Broker, err)
	}

	p.wg.Add(1)
	go p.worker()
	return p, nil
}

// Publish queues a gateway event. It never blocks.
func (p *RealPublisher) Publish(event gateway.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	select {
	case p.sendq <- pending{topic: Topic, payload: payload}:
		return nil
	default:
		return ErrBacklogged
	}
}

// PublishSystem sends a system lifecycle event and waits for the broker.
// Offline, the event is backlogged instead.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) so lifecycle events survive a flaky link
	m := pending{topic: TopicSystem, qos: 1, retained: event.Retained, payload: payload}
	if !p.client.IsConnectionOpen() {
		p.hold(m)
		return nil
	}
	return p.send(m)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close stops the worker and disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.wg.Wait()
		p.client.Disconnect(1000) // 1 second timeout
	})
	return nil
}

func (p *RealPublisher) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case <-p.replay:
			p.flushBacklog()
		case m := <-p.sendq:
			if !p.client.IsConnectionOpen() {
				p.hold(m)
				continue
			}
			if err := p.send(m); err != nil {
				glog.Warningf("mqtt: %v, backlogging", err)
				p.hold(m)
			}
		}
	}
}

func (p *RealPublisher) send(m pending) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

func (p *RealPublisher) hold(m pending) {
	p.mu.Lock()
	p.backlog.add(m)
	p.mu.Unlock()
}

func (p *RealPublisher) flushBacklog() {
	p.mu.Lock()
	msgs := p.backlog.take()
	p.mu.Unlock()
	if len(msgs) == 0 {
		return
	}

	glog.Infof("mqtt: replaying %d backlogged messages", len(msgs))
	for i, m := range msgs {
		if err := p.send(m); err != nil {
			glog.Warningf("mqtt: replay interrupted: %v", err)
			p.mu.Lock()
			for _, rest := range msgs[i:] {
				p.backlog.add(rest)
			}
			p.mu.Unlock()
			return
		}
	}
}
