package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mesa/internal/graphql"
)

// errIdle ends a socket that was closed because nothing is subscribed
var errIdle = errors.New("no subscriptions")

const writeTimeout = 5 * time.Second

// Config holds connection configuration
type Config struct {
	URL               string
	ConnectionParams  map[string]any
	KeepAliveInterval time.Duration
	PongTimeout       time.Duration
	HandshakeTimeout  time.Duration
	Backoff           BackoffConfig
	EventQueueSize    int
}

func (c *Config) applyDefaults() {
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = 10 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 3 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.EventQueueSize <= 0 {
		c.EventQueueSize = 1024
	}
}

// Conn is one logical graphql-transport-ws channel. It connects lazily when the
// registry is non-empty, keeps the socket alive with protocol pings and
// reconnects with backoff until retries are exhausted or it is disposed.
// All handlers run on a single dispatch goroutine in arrival order.
type Conn struct {
	cfg         Config
	registry    *Registry
	dialer      websocket.Dialer
	backoff     *Backoff
	onExhausted func(error)
	logger      zerolog.Logger

	state   atomic.Int32
	stopped atomic.Bool

	tasks  chan func()
	notify chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewConn creates a connection over the registry. Start must be called to run it.
func NewConn(cfg Config, registry *Registry, onExhausted func(error), logger zerolog.Logger) *Conn {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		cfg:      cfg,
		registry: registry,
		dialer: websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			Subprotocols:     []string{graphql.Subprotocol},
		},
		backoff:     NewBackoff(cfg.Backoff),
		onExhausted: onExhausted,
		logger:      logger.With().Str("component", "realtime-conn").Logger(),
		tasks:       make(chan func(), cfg.EventQueueSize),
		notify:      make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Start launches the supervisor and dispatch goroutines
func (c *Conn) Start() {
	c.wg.Add(1)
	go c.dispatchWorker()

	go func() {
		c.run()
		c.stopped.Store(true)
		close(c.tasks)
		c.wg.Wait()
		c.cancel()
		c.setState(StateDisposed)
		c.logger.Debug().Msg("connection disposed")
		close(c.done)
	}()
}

// Notify tells the connection the registry changed
func (c *Conn) Notify() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// State returns the current state
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Stopped returns true once the connection will not connect again
func (c *Conn) Stopped() bool {
	return c.stopped.Load()
}

// Done is closed when the connection reached Disposed
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Dispose stops the connection and blocks until it is Disposed.
// It must not be called from a subscription handler.
func (c *Conn) Dispose() {
	c.cancel()
	<-c.done
}

func (c *Conn) setState(s State) {
	old := State(c.state.Swap(int32(s)))
	if old != s {
		c.logger.Debug().Str("from", old.String()).Str("to", s.String()).Msg("state changed")
	}
}

func (c *Conn) run() {
	for {
		if c.ctx.Err() != nil {
			return
		}

		if c.registry.Len() == 0 {
			c.setState(StateIdle)
			select {
			case <-c.ctx.Done():
				return
			case <-c.notify:
				continue
			}
		}

		c.setState(StateConnecting)
		err := c.connectAndServe()
		if c.ctx.Err() != nil {
			return
		}
		if err == nil || errors.Is(err, errIdle) {
			c.logger.Info().Msg("connection closed, no subscriptions")
			continue
		}

		c.fanOutError(err)

		delay, ok := c.backoff.Next()
		if !ok {
			exhausted := fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
			c.logger.Error().
				Err(err).
				Int("attempts", c.backoff.Attempt()).
				Msg("reconnect retries exhausted, giving up")
			c.fanOutError(exhausted)
			if c.onExhausted != nil {
				c.enqueue(func() { c.onExhausted(exhausted) })
			}
			return
		}

		c.setState(StateReconnecting)
		c.logger.Warn().
			Err(err).
			Int("attempt", c.backoff.Attempt()).
			Dur("delay", delay).
			Msg("connection lost, reconnecting")

		timer := time.NewTimer(delay)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// connectAndServe runs one socket from dial to close
func (c *Conn) connectAndServe() error {
	ctx, cancel := context.WithCancel(c.ctx)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	wsConn, _, err := c.dialer.DialContext(dialCtx, c.cfg.URL, nil)
	dialCancel()
	if err != nil {
		return fmt.Errorf("failed to connect WebSocket: %w", err)
	}

	sock := newSocket(wsConn)

	var wg sync.WaitGroup
	defer func() {
		cancel()
		sock.conn.Close()
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		sock.conn.Close()
	}()

	if err := c.handshake(sock); err != nil {
		return err
	}

	c.setState(StateActive)
	c.backoff.Reset()
	c.logger.Info().Str("url", c.cfg.URL).Msg("WebSocket connected")

	wg.Add(2)
	go func() {
		defer wg.Done()
		c.watchRegistry(ctx, sock)
	}()
	go func() {
		defer wg.Done()
		c.pingLoop(ctx, sock)
	}()

	return c.readLoop(ctx, sock)
}

func (c *Conn) handshake(sock *socket) error {
	if err := sock.write(graphql.NewConnectionInit(c.cfg.ConnectionParams)); err != nil {
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	sock.conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	defer sock.conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := sock.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrHandshake, err)
		}
		msg, err := graphql.ParseMessage(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrHandshake, err)
		}
		switch msg.Type {
		case graphql.MessageConnectionAck:
			return nil
		case graphql.MessagePing:
			if err := sock.write(graphql.NewPong()); err != nil {
				return fmt.Errorf("%w: %v", ErrHandshake, err)
			}
		default:
			return fmt.Errorf("%w: unexpected %s before connection_ack", ErrHandshake, msg.Type)
		}
	}
}

// watchRegistry keeps the server's operations in sync with the registry and
// closes the socket once nothing is subscribed.
func (c *Conn) watchRegistry(ctx context.Context, sock *socket) {
	for {
		if c.registry.Len() == 0 {
			sock.setErr(errIdle)
			sock.close(websocket.CloseNormalClosure, "Normal Closure")
			return
		}
		c.reconcile(sock)

		select {
		case <-ctx.Done():
			return
		case <-c.notify:
		}
	}
}

func (c *Conn) reconcile(sock *socket) {
	subs := c.registry.Snapshot()
	wanted := make(map[string]bool, len(subs))

	for _, sub := range subs {
		wanted[sub.id] = true
		if !sock.markSent(sub.id) {
			continue
		}
		msg, err := graphql.NewSubscribe(sub.id, sub.topic.Request())
		if err != nil {
			c.logger.Error().Err(err).Str("topic", sub.topic.Name).Msg("failed to build subscribe message")
			continue
		}
		if err := sock.write(msg); err != nil {
			c.logger.Debug().Err(err).Str("id", sub.id).Msg("subscribe write failed")
			return
		}
		c.logger.Debug().Str("id", sub.id).Str("topic", sub.topic.Name).Msg("subscribed")
	}

	for _, id := range sock.sentIDs() {
		if wanted[id] {
			continue
		}
		sock.unmarkSent(id)
		if err := sock.write(graphql.NewComplete(id)); err != nil {
			c.logger.Debug().Err(err).Str("id", id).Msg("complete write failed")
			return
		}
		c.logger.Debug().Str("id", id).Msg("unsubscribed")
	}
}

func (c *Conn) pingLoop(ctx context.Context, sock *socket) {
	timer := time.NewTimer(c.cfg.KeepAliveInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		sock.drainPong()
		c.state.CompareAndSwap(int32(StateActive), int32(StateAwaitingPong))
		if err := sock.write(graphql.NewPing()); err != nil {
			c.logger.Debug().Err(err).Msg("ping write failed")
			return
		}

		timer.Reset(c.cfg.PongTimeout)
		select {
		case <-ctx.Done():
			return
		case <-sock.pong:
			timer.Stop()
			select {
			case <-timer.C:
			default:
			}
			c.state.CompareAndSwap(int32(StateAwaitingPong), int32(StateActive))
			timer.Reset(c.cfg.KeepAliveInterval)
		case <-timer.C:
			c.logger.Warn().
				Dur("pongTimeout", c.cfg.PongTimeout).
				Msg("no pong received, terminating connection")
			c.setState(StateTerminating)
			sock.setErr(ErrKeepAliveTimeout)
			sock.close(graphql.CloseTerminated, "Terminated")
			return
		}
	}
}

func (c *Conn) readLoop(ctx context.Context, sock *socket) error {
	for {
		_, data, err := sock.conn.ReadMessage()
		if err != nil {
			if termErr := sock.err(); termErr != nil {
				return termErr
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("server closed connection: %w", err)
			}
			return fmt.Errorf("connection lost: %w", err)
		}

		msg, err := graphql.ParseMessage(data)
		if err != nil {
			c.logger.Warn().Err(err).Int("len", len(data)).Msg("ws message parse error")
			continue
		}

		switch msg.Type {
		case graphql.MessagePing:
			if err := sock.write(graphql.NewPong()); err != nil {
				c.logger.Debug().Err(err).Msg("pong write failed")
			}
		case graphql.MessagePong:
			sock.signalPong()
		case graphql.MessageNext:
			c.routeNext(ctx, msg)
		case graphql.MessageError:
			sock.markEnded(msg.ID)
			c.routeError(ctx, msg)
		case graphql.MessageComplete:
			sock.unmarkSent(msg.ID)
			c.routeComplete(ctx, msg)
		default:
			c.logger.Debug().Str("type", string(msg.Type)).Msg("ignoring message")
		}
	}
}

func (c *Conn) routeNext(ctx context.Context, msg *graphql.Message) {
	sub, ok := c.registry.Get(msg.ID)
	if !ok {
		c.logger.Debug().Str("id", msg.ID).Msg("event for unknown subscription, dropping")
		return
	}

	result, err := msg.Result()
	if err != nil {
		c.logger.Warn().Err(err).Str("id", msg.ID).Msg("bad next payload")
		return
	}

	if len(result.Errors) > 0 && !result.HasData() {
		errs := result.Errors
		c.enqueueCtx(ctx, func() { sub.deliverError(errs) })
		return
	}

	ev := Event{Topic: sub.topic, Data: result.Data}
	c.enqueueCtx(ctx, func() { sub.deliverEvent(ev) })
}

func (c *Conn) routeError(ctx context.Context, msg *graphql.Message) {
	sub, ok := c.registry.Get(msg.ID)
	if !ok {
		return
	}
	errs := msg.Errors()
	c.logger.Warn().Err(errs).Str("topic", sub.topic.Name).Msg("subscription error from server")
	c.enqueueCtx(ctx, func() { sub.deliverError(errs) })
}

func (c *Conn) routeComplete(ctx context.Context, msg *graphql.Message) {
	sub, ok := c.registry.Get(msg.ID)
	if !ok {
		return
	}
	c.enqueueCtx(ctx, func() {
		if sub.deliverComplete() {
			c.registry.Remove(sub.id)
			c.Notify()
		}
	})
}

// fanOutError reports a connection failure to every registered subscription
func (c *Conn) fanOutError(err error) {
	subs := c.registry.Snapshot()
	if len(subs) == 0 {
		return
	}
	c.enqueue(func() {
		for _, sub := range subs {
			sub.deliverError(err)
		}
	})
}

func (c *Conn) enqueue(task func()) {
	c.enqueueCtx(c.ctx, task)
}

func (c *Conn) enqueueCtx(ctx context.Context, task func()) {
	select {
	case c.tasks <- task:
	case <-ctx.Done():
	}
}

func (c *Conn) dispatchWorker() {
	defer c.wg.Done()
	for task := range c.tasks {
		if c.ctx.Err() != nil {
			continue
		}
		c.runTask(task)
	}
}

func (c *Conn) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("subscription handler panic")
		}
	}()
	start := time.Now()
	task()
	if d := time.Since(start); d > 2*time.Second {
		c.logger.Warn().Dur("handlerDuration", d).Msg("subscription handler slow")
	}
}

// socket is the per-dial state of a connection
type socket struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	sentMu sync.Mutex
	sent   map[string]bool
	ended  map[string]bool // operations the server failed, not resent on this socket

	errMu   sync.Mutex
	termErr error

	pong chan struct{}
}

func newSocket(conn *websocket.Conn) *socket {
	return &socket{
		conn:  conn,
		sent:  make(map[string]bool),
		ended: make(map[string]bool),
		pong:  make(chan struct{}, 1),
	}
}

func (s *socket) write(msg *graphql.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *socket) close(code int, reason string) {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	s.conn.Close()
}

// markSent records that subscribe was sent for id. Returns false if it already was.
func (s *socket) markSent(id string) bool {
	s.sentMu.Lock()
	defer s.sentMu.Unlock()
	if s.sent[id] || s.ended[id] {
		return false
	}
	s.sent[id] = true
	return true
}

func (s *socket) unmarkSent(id string) {
	s.sentMu.Lock()
	delete(s.sent, id)
	s.sentMu.Unlock()
}

func (s *socket) markEnded(id string) {
	s.sentMu.Lock()
	delete(s.sent, id)
	s.ended[id] = true
	s.sentMu.Unlock()
}

func (s *socket) sentIDs() []string {
	s.sentMu.Lock()
	defer s.sentMu.Unlock()
	ids := make([]string, 0, len(s.sent))
	for id := range s.sent {
		ids = append(ids, id)
	}
	return ids
}

// setErr records why the socket is being closed; the first reason wins
func (s *socket) setErr(err error) {
	s.errMu.Lock()
	if s.termErr == nil {
		s.termErr = err
	}
	s.errMu.Unlock()
}

func (s *socket) err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.termErr
}

func (s *socket) signalPong() {
	select {
	case s.pong <- struct{}{}:
	default:
	}
}

func (s *socket) drainPong() {
	select {
	case <-s.pong:
	default:
	}
}
