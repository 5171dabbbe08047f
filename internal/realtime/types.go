package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"mesa/internal/graphql"
)

var (
	// ErrKeepAliveTimeout is reported when a ping gets no pong in time
	ErrKeepAliveTimeout = errors.New("keep-alive timeout")

	// ErrRetriesExhausted is reported once automatic reconnection gives up
	ErrRetriesExhausted = errors.New("reconnect retries exhausted")

	// ErrClientClosed is returned by Subscribe after Close
	ErrClientClosed = errors.New("realtime client closed")

	// ErrHandshake is reported when the server does not acknowledge connection_init
	ErrHandshake = errors.New("connection handshake failed")
)

// State is the lifecycle state of a connection
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateActive
	StateAwaitingPong
	StateTerminating
	StateReconnecting
	StateDisposed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateAwaitingPong:
		return "awaiting-pong"
	case StateTerminating:
		return "terminating"
	case StateReconnecting:
		return "reconnecting"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Topic identifies a server event stream. Name is the subscription field,
// Document the operation text sent to the server.
type Topic struct {
	Name     string
	Document string
}

// Request returns the subscribe payload for the topic
func (t Topic) Request() *graphql.Request {
	return graphql.NewRequest(t.Document, nil)
}

// Event is one payload pushed by the server for a topic
type Event struct {
	Topic Topic
	Data  json.RawMessage
}

// Field returns the raw value of the topic field in the payload
func (e Event) Field() (json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(e.Data, &fields); err != nil {
		return nil, false
	}
	raw, ok := fields[e.Topic.Name]
	return raw, ok
}

// Bool returns the topic field as a boolean; ok is false for any other shape
func (e Event) Bool() (value bool, ok bool) {
	raw, found := e.Field()
	if !found || string(raw) == "null" {
		return false, false
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, false
	}
	return value, true
}

// Handlers are the callbacks of a subscription. Nil handlers are skipped.
type Handlers struct {
	OnEvent    func(Event)
	OnError    func(error)
	OnComplete func()
}

// UnsubscribeFunc stops a subscription. It is idempotent and may be called
// from inside the subscription's own handlers.
type UnsubscribeFunc func()
