package graphql

import (
	"encoding/json"
	"fmt"
)

// Subprotocol is the websocket subprotocol negotiated for subscriptions
const Subprotocol = "graphql-transport-ws"

// MessageType is the type field of a graphql-transport-ws message
type MessageType string

const (
	MessageConnectionInit MessageType = "connection_init"
	MessageConnectionAck  MessageType = "connection_ack"
	MessagePing           MessageType = "ping"
	MessagePong           MessageType = "pong"
	MessageSubscribe      MessageType = "subscribe"
	MessageNext           MessageType = "next"
	MessageError          MessageType = "error"
	MessageComplete       MessageType = "complete"
)

// Close codes used by graphql-transport-ws
const (
	CloseBadRequest       = 4400
	CloseUnauthorized     = 4401
	CloseForbidden        = 4403
	CloseTimeout          = 4408
	CloseSubscriberExists = 4409
	CloseTooManyInits     = 4429
	CloseTerminated       = 4499
	CloseInternalError    = 4500
)

// Message is a single graphql-transport-ws frame
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewConnectionInit creates the first client message, params may be nil
func NewConnectionInit(params map[string]any) *Message {
	msg := &Message{Type: MessageConnectionInit}
	if len(params) > 0 {
		if data, err := json.Marshal(params); err == nil {
			msg.Payload = data
		}
	}
	return msg
}

// NewPing creates a ping message
func NewPing() *Message {
	return &Message{Type: MessagePing}
}

// NewPong creates a pong message
func NewPong() *Message {
	return &Message{Type: MessagePong}
}

// NewSubscribe creates a subscribe message for an operation id
func NewSubscribe(id string, req *Request) (*Message, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal subscribe payload: %w", err)
	}
	return &Message{ID: id, Type: MessageSubscribe, Payload: payload}, nil
}

// NewComplete creates a complete message for an operation id
func NewComplete(id string) *Message {
	return &Message{ID: id, Type: MessageComplete}
}

// NewNext creates a next message carrying an execution result
func NewNext(id string, result *Response) (*Message, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal next payload: %w", err)
	}
	return &Message{ID: id, Type: MessageNext, Payload: payload}, nil
}

// NewErrorMessage creates an error message for an operation id
func NewErrorMessage(id string, errs Errors) (*Message, error) {
	payload, err := json.Marshal(errs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal error payload: %w", err)
	}
	return &Message{ID: id, Type: MessageError, Payload: payload}, nil
}

// Bytes returns the JSON representation of the message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// Result decodes the payload of a next message
func (m *Message) Result() (*Response, error) {
	if m.Type != MessageNext {
		return nil, fmt.Errorf("message type %s carries no result", m.Type)
	}
	return ParseResponse(m.Payload)
}

// Errors decodes the payload of an error message
func (m *Message) Errors() Errors {
	var errs Errors
	if err := json.Unmarshal(m.Payload, &errs); err != nil || len(errs) == 0 {
		return Errors{{Message: "subscription failed"}}
	}
	return errs
}

// SubscribeRequest decodes the payload of a subscribe message
func (m *Message) SubscribeRequest() (*Request, error) {
	var req Request
	if err := json.Unmarshal(m.Payload, &req); err != nil {
		return nil, fmt.Errorf("failed to parse subscribe payload: %w", err)
	}
	return &req, nil
}

// ParseMessage parses a single graphql-transport-ws frame
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message type is required")
	}
	return &msg, nil
}
