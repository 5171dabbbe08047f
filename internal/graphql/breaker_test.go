package graphql

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAndRecovers(t *testing.T) {
	b := newBreaker(BreakerConfig{Enabled: true, FailureThreshold: 2, RecoveryTimeout: 20 * time.Millisecond})

	assert.True(t, b.allow())
	b.failure()
	assert.True(t, b.allow())
	b.failure()
	assert.False(t, b.allow())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, b.allow())

	// a failed probe opens it again
	b.failure()
	assert.False(t, b.allow())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, b.allow())
	b.success()
	assert.False(t, b.open())
	assert.True(t, b.allow())
}

func TestBreakerDisabled(t *testing.T) {
	b := newBreaker(BreakerConfig{FailureThreshold: 1})
	b.failure()
	b.failure()
	assert.True(t, b.allow())
}

func TestClientFailsFastWhenOpen(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(ClientConfig{
		URL:         server.URL,
		Timeout:     time.Second,
		MaxAttempts: 1,
		Breaker:     BreakerConfig{Enabled: true, FailureThreshold: 2, RecoveryTimeout: time.Minute},
	}, zerolog.Nop())

	for i := 0; i < 2; i++ {
		_, err := c.Do(context.Background(), NewRequest("query { Stats { songs } }", nil))
		require.ErrorIs(t, err, ErrRequestFailed)
	}

	_, err := c.Do(context.Background(), NewRequest("query { Stats { songs } }", nil))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}
