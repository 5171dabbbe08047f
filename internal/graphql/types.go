package graphql

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Request represents a GraphQL operation
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName,omitempty"`
}

// NewRequest creates a request; nil variables are sent as an empty object
func NewRequest(query string, variables map[string]any) *Request {
	if variables == nil {
		variables = map[string]any{}
	}
	return &Request{
		Query:     query,
		Variables: variables,
	}
}

// MarshalJSON implements json.Marshaler
func (r *Request) MarshalJSON() ([]byte, error) {
	type alias Request
	out := alias(*r)
	if out.Variables == nil {
		out.Variables = map[string]any{}
	}
	return json.Marshal(out)
}

// Response represents a GraphQL execution result
type Response struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors Errors          `json:"errors,omitempty"`
}

// HasData returns true if data is present and not null
func (r *Response) HasData() bool {
	return len(r.Data) > 0 && string(r.Data) != "null"
}

// ParseResponse parses a GraphQL response from bytes
func ParseResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}

// Location is a position in the operation document
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Error represents a single GraphQL error
type Error struct {
	Message    string          `json:"message"`
	Locations  []Location      `json:"locations,omitempty"`
	Path       []any           `json:"path,omitempty"`
	Extensions json.RawMessage `json:"extensions,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Errors is the errors list of a result or an error message payload
type Errors []*Error

// Error implements the error interface
func (e Errors) Error() string {
	switch len(e) {
	case 0:
		return "graphql: unknown error"
	case 1:
		return "graphql: " + e[0].Message
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Message
	}
	return "graphql: " + strings.Join(msgs, "; ")
}
