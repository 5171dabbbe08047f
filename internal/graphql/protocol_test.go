package graphql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeMessage(t *testing.T) {
	msg, err := NewSubscribe("abc", NewRequest("subscription { OnDatabaseUpdate }", nil))
	require.NoError(t, err)

	data, err := msg.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc","type":"subscribe","payload":{"query":"subscription { OnDatabaseUpdate }","variables":{}}}`, string(data))

	parsed, err := ParseMessage(data)
	require.NoError(t, err)
	req, err := parsed.SubscribeRequest()
	require.NoError(t, err)
	assert.Equal(t, "subscription { OnDatabaseUpdate }", req.Query)
}

func TestControlMessages(t *testing.T) {
	data, err := NewPing().Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ping"}`, string(data))

	data, err = NewConnectionInit(nil).Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"connection_init"}`, string(data))

	data, err = NewConnectionInit(map[string]any{"token": "x"}).Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"connection_init","payload":{"token":"x"}}`, string(data))

	data, err = NewComplete("abc").Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc","type":"complete"}`, string(data))
}

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"id":"1","type":"next","payload":{"data":{"OnDatabaseUpdate":true}}}`))
	require.NoError(t, err)
	assert.Equal(t, MessageNext, msg.Type)

	result, err := msg.Result()
	require.NoError(t, err)
	assert.JSONEq(t, `{"OnDatabaseUpdate":true}`, string(result.Data))

	msg, err = ParseMessage([]byte(`{"id":"1","type":"error","payload":[{"message":"boom"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "graphql: boom", msg.Errors().Error())

	_, err = ParseMessage([]byte(`{"id":"1"}`))
	assert.Error(t, err)

	_, err = ParseMessage([]byte(`not json`))
	assert.Error(t, err)
}

func TestErrorsMessage(t *testing.T) {
	errs := Errors{{Message: "a"}, {Message: "b"}}
	assert.Equal(t, "graphql: a; b", errs.Error())
	assert.Equal(t, "graphql: unknown error", Errors{}.Error())
}
