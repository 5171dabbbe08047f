// Package wstest runs an in-process graphql-transport-ws server for tests.
package wstest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mesa/internal/graphql"
)

const writeWait = time.Second

// Server accepts graphql-transport-ws connections and exposes them to the test
type Server struct {
	httpServer *httptest.Server
	upgrader   websocket.Upgrader

	autoPong  atomic.Bool
	rejectAck atomic.Bool

	mu       sync.Mutex
	conns    []*Conn
	accepted chan *Conn
}

// NewServer starts a server that is closed with the test
func NewServer(t testing.TB) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{graphql.Subprotocol},
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		accepted: make(chan *Conn, 64),
	}
	s.autoPong.Store(true)
	s.httpServer = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.Close)
	return s
}

// URL returns the http base address of the server
func (s *Server) URL() string {
	return s.httpServer.URL
}

// WSURL returns the subscription endpoint
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.httpServer.URL, "http") + "/graphql"
}

// SetAutoPong controls whether client pings are answered
func (s *Server) SetAutoPong(on bool) {
	s.autoPong.Store(on)
}

// SetRejectAck makes the server close new connections instead of acknowledging them
func (s *Server) SetRejectAck(on bool) {
	s.rejectAck.Store(on)
}

// Close drops every connection and stops the server
func (s *Server) Close() {
	s.mu.Lock()
	conns := append([]*Conn(nil), s.conns...)
	s.mu.Unlock()
	for _, c := range conns {
		c.Drop()
	}
	s.httpServer.Close()
}

// ConnCount returns the number of connections accepted so far
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// OpenConns returns the number of connections not yet closed
func (s *Server) OpenConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.conns {
		select {
		case <-c.done:
		default:
			n++
		}
	}
	return n
}

// WaitConn returns the next acknowledged connection
func (s *Server) WaitConn(t testing.TB, timeout time.Duration) *Conn {
	t.Helper()
	select {
	case c := <-s.accepted:
		return c
	case <-time.After(timeout):
		t.Fatalf("no connection within %s", timeout)
		return nil
	}
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &Conn{
		conn:        wsConn,
		subscribes:  make(chan Subscribe, 64),
		completes:   make(chan string, 64),
		done:        make(chan struct{}),
		server:      s,
		active:      make(map[string]bool),
		subprotocol: wsConn.Subprotocol(),
	}

	s.mu.Lock()
	s.conns = append(s.conns, c)
	s.mu.Unlock()

	c.run()
}

// Subscribe is a subscribe message received from the client
type Subscribe struct {
	ID    string
	Query string
}

// Conn is the server side of one client socket
type Conn struct {
	conn        *websocket.Conn
	server      *Server
	subprotocol string
	writeMu     sync.Mutex

	subscribes chan Subscribe
	completes  chan string
	pings      atomic.Int32
	pongs      atomic.Int32

	mu         sync.Mutex
	active     map[string]bool
	initParams json.RawMessage

	done      chan struct{}
	closeOnce sync.Once
	closeCode atomic.Int32
}

func (c *Conn) run() {
	defer c.finish()

	acked := false
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				c.closeCode.Store(int32(closeErr.Code))
			}
			return
		}
		msg, err := graphql.ParseMessage(data)
		if err != nil {
			continue
		}

		switch msg.Type {
		case graphql.MessageConnectionInit:
			if c.server.rejectAck.Load() {
				c.CloseWith(graphql.CloseForbidden, "Forbidden")
				return
			}
			c.mu.Lock()
			c.initParams = msg.Payload
			c.mu.Unlock()
			c.write(&graphql.Message{Type: graphql.MessageConnectionAck})
			if !acked {
				acked = true
				c.server.accepted <- c
			}
		case graphql.MessagePing:
			c.pings.Add(1)
			if c.server.autoPong.Load() {
				c.write(graphql.NewPong())
			}
		case graphql.MessagePong:
			c.pongs.Add(1)
		case graphql.MessageSubscribe:
			req, err := msg.SubscribeRequest()
			if err != nil {
				continue
			}
			c.mu.Lock()
			if c.active[msg.ID] {
				c.mu.Unlock()
				c.CloseWith(graphql.CloseSubscriberExists, "Subscriber for "+msg.ID+" already exists")
				return
			}
			c.active[msg.ID] = true
			c.mu.Unlock()
			c.subscribes <- Subscribe{ID: msg.ID, Query: req.Query}
		case graphql.MessageComplete:
			c.mu.Lock()
			delete(c.active, msg.ID)
			c.mu.Unlock()
			c.completes <- msg.ID
		}
	}
}

func (c *Conn) finish() {
	c.closeOnce.Do(func() {
		c.conn.Close()
		close(c.done)
	})
}

func (c *Conn) write(msg *graphql.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Subprotocol returns the negotiated subprotocol
func (c *Conn) Subprotocol() string {
	return c.subprotocol
}

// InitParams returns the connection_init payload
func (c *Conn) InitParams() json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initParams
}

// Pings returns the number of client pings received
func (c *Conn) Pings() int {
	return int(c.pings.Load())
}

// Pongs returns the number of client pongs received
func (c *Conn) Pongs() int {
	return int(c.pongs.Load())
}

// Done is closed once the socket is gone
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// CloseCode returns the close code sent by the client, 0 if none
func (c *Conn) CloseCode() int {
	return int(c.closeCode.Load())
}

// Active returns the ids currently subscribed on this socket
func (c *Conn) Active() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	return ids
}

// WaitSubscribe returns the next subscribe message
func (c *Conn) WaitSubscribe(t testing.TB, timeout time.Duration) Subscribe {
	t.Helper()
	select {
	case sub := <-c.subscribes:
		return sub
	case <-time.After(timeout):
		t.Fatalf("no subscribe within %s", timeout)
		return Subscribe{}
	}
}

// WaitComplete returns the id of the next complete message from the client
func (c *Conn) WaitComplete(t testing.TB, timeout time.Duration) string {
	t.Helper()
	select {
	case id := <-c.completes:
		return id
	case <-time.After(timeout):
		t.Fatalf("no complete within %s", timeout)
		return ""
	}
}

// WaitClosed waits until the socket is gone
func (c *Conn) WaitClosed(t testing.TB, timeout time.Duration) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(timeout):
		t.Fatalf("connection not closed within %s", timeout)
	}
}

// Next pushes a result for the operation; data is marshalled as the data field
func (c *Conn) Next(id string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	msg, err := graphql.NewNext(id, &graphql.Response{Data: raw})
	if err != nil {
		return err
	}
	return c.write(msg)
}

// Error ends the operation with an error
func (c *Conn) Error(id, message string) error {
	c.mu.Lock()
	delete(c.active, id)
	c.mu.Unlock()
	msg, err := graphql.NewErrorMessage(id, graphql.Errors{{Message: message}})
	if err != nil {
		return err
	}
	return c.write(msg)
}

// Complete ends the operation normally
func (c *Conn) Complete(id string) error {
	c.mu.Lock()
	delete(c.active, id)
	c.mu.Unlock()
	return c.write(graphql.NewComplete(id))
}

// Ping sends a server ping
func (c *Conn) Ping() error {
	return c.write(graphql.NewPing())
}

// CloseWith closes the socket with a close frame
func (c *Conn) CloseWith(code int, reason string) {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	c.finish()
}

// Drop closes the socket without a close frame
func (c *Conn) Drop() {
	c.finish()
}
