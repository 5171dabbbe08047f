package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mesa/internal/config"
)

// Client owns the single realtime connection of the application and the
// subscriptions multiplexed over it. At most one non-disposed connection
// exists at any time.
type Client struct {
	cfg      Config
	registry *Registry
	base     zerolog.Logger
	logger   zerolog.Logger

	// lifecycle serializes Suspend, Resume and Close
	lifecycle sync.Mutex

	mu          sync.Mutex
	conn        *Conn
	suspended   bool
	closed      bool
	onExhausted func(error)
}

// NewClient creates a new Client. No connection is opened until the first Subscribe.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	return &Client{
		cfg:      cfg,
		registry: NewRegistry(logger),
		base:     logger,
		logger:   logger.With().Str("component", "realtime-client").Logger(),
	}
}

// NewClientFromConfig creates a Client from application config
func NewClientFromConfig(cfg *config.Config, logger zerolog.Logger) *Client {
	return NewClient(Config{
		URL:               cfg.WebSocketURL(),
		ConnectionParams:  cfg.ConnectionParams,
		KeepAliveInterval: cfg.GetKeepAliveIntervalDuration(),
		PongTimeout:       cfg.GetPongTimeoutDuration(),
		HandshakeTimeout:  cfg.GetHandshakeTimeoutDuration(),
		Backoff: BackoffConfig{
			BaseDelay:   cfg.GetReconnectBaseDelayDuration(),
			MaxDelay:    cfg.GetReconnectMaxDelayDuration(),
			MaxAttempts: cfg.ReconnectAttempts,
		},
		EventQueueSize: cfg.EventQueueSize,
	}, logger)
}

// OnExhausted sets the hook called once reconnect retries run out.
// It runs on the dispatch goroutine after every subscription got the error.
func (c *Client) OnExhausted(fn func(error)) {
	c.mu.Lock()
	c.onExhausted = fn
	c.mu.Unlock()
}

// Subscribe registers handlers for a topic and connects if needed
func (c *Client) Subscribe(topic Topic, handlers Handlers) (UnsubscribeFunc, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	sub := c.registry.Add(uuid.New().String(), topic, handlers)
	conn := c.ensureConnLocked()
	c.mu.Unlock()

	if conn != nil {
		conn.Notify()
	}

	c.logger.Debug().Str("topic", topic.Name).Str("id", sub.id).Msg("subscribed")
	return func() { c.unsubscribe(sub) }, nil
}

func (c *Client) unsubscribe(sub *Subscription) {
	if !sub.close() {
		return
	}
	c.registry.Remove(sub.id)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Notify()
	}
	c.logger.Debug().Str("topic", sub.topic.Name).Str("id", sub.id).Msg("unsubscribed")
}

// ensureConnLocked returns the live connection, creating one if the previous
// connection gave up. Returns nil while suspended.
func (c *Client) ensureConnLocked() *Conn {
	if c.suspended || c.closed {
		return nil
	}
	if c.conn != nil && !c.conn.Stopped() {
		return c.conn
	}
	c.conn = c.newConnLocked()
	return c.conn
}

func (c *Client) newConnLocked() *Conn {
	conn := NewConn(c.cfg, c.registry, c.exhausted, c.base)
	conn.Start()
	return conn
}

func (c *Client) exhausted(err error) {
	c.mu.Lock()
	fn := c.onExhausted
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Resume disposes the current connection, waits until it is fully torn down
// and then creates a fresh one. Call it when the application becomes visible.
func (c *Client) Resume() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	old := c.detach()
	if old != nil {
		old.Dispose()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.suspended = false
	conn := c.newConnLocked()
	c.conn = conn
	c.mu.Unlock()

	conn.Notify()
	c.logger.Info().Int("subscriptions", c.registry.Len()).Msg("realtime resumed")
}

// Suspend disposes the current connection and keeps it down until Resume.
// Subscriptions stay registered.
func (c *Client) Suspend() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if old := c.detach(); old != nil {
		old.Dispose()
	}
	c.logger.Info().Msg("realtime suspended")
}

// Close disposes the connection and drops every subscription
func (c *Client) Close() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	if old := c.detach(); old != nil {
		old.Dispose()
	}
	c.registry.Clear()
	c.logger.Info().Msg("realtime client closed")
}

// detach removes the current connection and blocks creation of a new one
func (c *Client) detach() *Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.conn
	c.conn = nil
	c.suspended = true
	return old
}

// State returns the state of the current connection
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.suspended {
		return StateDisposed
	}
	if c.conn == nil {
		return StateIdle
	}
	return c.conn.State()
}

// Subscriptions returns the number of registered subscriptions
func (c *Client) Subscriptions() int {
	return c.registry.Len()
}
