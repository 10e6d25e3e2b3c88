// Package messaging publishes the engine's operation-log events over
// NATS so external subscribers (audit, notification services) can
// observe them without coupling to the engine's Repository. Only plan
// scheduling is published (by cmd/schedulerd); risk and undo/redo
// operations publish no event.
package messaging

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Client wraps a NATS connection with publish/subscribe helpers.
type Client struct {
	conn *nats.Conn

	mu   sync.RWMutex
	subs map[string]*nats.Subscription

	reconnects int32
	connected  bool
}

// Config holds NATS connection configuration.
type Config struct {
	URL            string
	Name           string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// NewClient connects to NATS with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
	}
	if cfg.ConnectTimeout > 0 {
		opts = append(opts, nats.Timeout(cfg.ConnectTimeout))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	client := &Client{
		conn:      conn,
		subs:      make(map[string]*nats.Subscription),
		connected: true,
	}

	conn.SetReconnectHandler(func(*nats.Conn) {
		client.reconnects++
		client.connected = true
	})
	conn.SetDisconnectErrHandler(func(*nats.Conn, error) {
		client.connected = false
	})

	return client, nil
}

// Publish marshals data to JSON and publishes it on subject.
func (c *Client) Publish(subject string, data interface{}) error {
	if c.conn == nil {
		return fmt.Errorf("messaging client not connected")
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return c.conn.Publish(subject, payload)
}

// Subscribe registers a handler for subject.
func (c *Client) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.subs[subject]; exists {
		return fmt.Errorf("already subscribed to %s", subject)
	}

	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}

	c.subs[subject] = sub
	return nil
}

// IsConnected reports the current connection state.
func (c *Client) IsConnected() bool {
	return c.connected && c.conn != nil && c.conn.IsConnected()
}

// Close unsubscribes everything and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		sub.Unsubscribe()
		delete(c.subs, subject)
	}

	if c.conn != nil {
		c.conn.Close()
	}
	c.connected = false
	return nil
}

// Reconnects returns the reconnect count, mostly useful in tests.
func (c *Client) Reconnects() int {
	return int(c.reconnects)
}
