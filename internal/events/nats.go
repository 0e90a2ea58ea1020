package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// clientName identifies studio connections in NATS monitoring.
	clientName = "flowstudio"

	// subscriptionBuffer bounds each subscriber channel; a full channel
	// drops messages rather than stalling the NATS read loop.
	subscriptionBuffer = 64
)

func connect(url string, defaults, extra []nats.Option) (*nats.Conn, error) {
	opts := append([]nats.Option{nats.Name(clientName)}, defaults...)
	nc, err := nats.Connect(url, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher publishes events as JSON messages.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := connect(url, nil, opts)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc}, nil
}

// Publish encodes event and sends it on topic. The context is only checked
// before sending; core NATS publishes do not block on the server.
func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %T for %s: %w", event, topic, err)
	}
	msg := nats.NewMsg(topic)
	msg.Header.Set("Content-Type", "application/json")
	msg.Data = data
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Flush waits until the server has processed everything published so far.
func (p *NATSPublisher) Flush() error {
	return p.conn.Flush()
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber delivers events from NATS subjects on channels. Its
// connection reconnects forever.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects to url. Extra options, such as disconnect
// handlers, are applied after the reconnect defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := connect(url, []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}, opts)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc}, nil
}

// chanSub forwards NATS messages to a channel that is closed exactly once.
type chanSub struct {
	ch     chan []byte
	mu     sync.Mutex
	closed bool
	once   sync.Once
	sub    *nats.Subscription
}

func (c *chanSub) deliver(msg *nats.Msg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- msg.Data:
	default:
	}
}

func (c *chanSub) cancel() {
	c.once.Do(func() {
		if c.sub != nil {
			_ = c.sub.Unsubscribe()
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		c.closed = true
		// Pending payloads are dropped; readers see the close right away.
		for {
			select {
			case <-c.ch:
			default:
				close(c.ch)
				return
			}
		}
	})
}

// Subscribe returns a channel of raw payloads for topic, which may contain
// wildcards like "studio.>". The cancel func unsubscribes and closes the
// channel.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan []byte, func(), error) {
	cs := &chanSub{ch: make(chan []byte, subscriptionBuffer)}
	sub, err := s.conn.Subscribe(topic, cs.deliver)
	if err != nil {
		cs.cancel()
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	cs.sub = sub
	// Without the flush, messages published on another connection right
	// after Subscribe returns can beat the subscription to the server.
	if err := s.conn.Flush(); err != nil {
		cs.cancel()
		return nil, nil, fmt.Errorf("flushing subscription to %s: %w", topic, err)
	}
	return cs.ch, cs.cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
