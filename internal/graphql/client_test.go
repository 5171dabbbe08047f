package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, attempts int) *Client {
	return NewClient(ClientConfig{
		URL:         url,
		Timeout:     2 * time.Second,
		MaxAttempts: attempts,
		RetryDelay:  time.Millisecond,
	}, zerolog.Nop())
}

func TestClientDo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, AcceptHeader, r.Header.Get("Accept"))

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "query Stats { Stats { songs } }", req["query"])
		// variables are always an object
		assert.Equal(t, map[string]any{}, req["variables"])

		w.Write([]byte(`{"data":{"Stats":{"songs":42}}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 1)
	data, err := client.Do(context.Background(), NewRequest("query Stats { Stats { songs } }", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Stats":{"songs":42}}`, string(data))

	var out struct {
		Stats struct {
			Songs int `json:"songs"`
		} `json:"Stats"`
	}
	require.NoError(t, client.Decode(context.Background(), NewRequest("query Stats { Stats { songs } }", nil), &out))
	assert.Equal(t, 42, out.Stats.Songs)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	defer server.Close()

	data, err := newTestClient(server.URL, 3).Do(context.Background(), NewRequest("{ ok }", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 2).Do(context.Background(), NewRequest("{ ok }", nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 3).Do(context.Background(), NewRequest("{ ok }", nil))
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientGraphQLErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null,"errors":[{"message":"playlist not found"}]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 3).Do(context.Background(), NewRequest("{ ok }", nil))
	var gqlErrs Errors
	require.ErrorAs(t, err, &gqlErrs)
	assert.Equal(t, "graphql: playlist not found", gqlErrs.Error())
}

func TestClientPartialData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"a":1},"errors":[{"message":"b failed"}]}`))
	}))
	defer server.Close()

	data, err := newTestClient(server.URL, 1).Do(context.Background(), NewRequest("{ a b }", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))
}

func TestClientContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL, 3).Do(ctx, NewRequest("{ ok }", nil))
	assert.ErrorIs(t, err, context.Canceled)
}
