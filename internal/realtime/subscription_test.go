package realtime

import (
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTopic = Topic{Name: "OnDatabaseUpdate", Document: "subscription OnDatabaseUpdate { OnDatabaseUpdate }"}

func TestEventBool(t *testing.T) {
	ev := Event{Topic: testTopic, Data: json.RawMessage(`{"OnDatabaseUpdate":true}`)}
	v, ok := ev.Bool()
	assert.True(t, ok)
	assert.True(t, v)

	ev.Data = json.RawMessage(`{"OnDatabaseUpdate":false}`)
	v, ok = ev.Bool()
	assert.True(t, ok)
	assert.False(t, v)

	ev.Data = json.RawMessage(`{"OnDatabaseUpdate":"yes"}`)
	_, ok = ev.Bool()
	assert.False(t, ok)

	ev.Data = json.RawMessage(`{"Other":true}`)
	_, ok = ev.Bool()
	assert.False(t, ok)
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	var calls atomic.Int32
	sub := newSubscription("1", 1, testTopic, Handlers{
		OnEvent: func(Event) { calls.Add(1) },
	})

	sub.deliverEvent(Event{})
	require.True(t, sub.close())
	assert.False(t, sub.close())

	sub.deliverEvent(Event{})
	sub.deliverError(assert.AnError)
	assert.False(t, sub.deliverComplete())
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubscriptionCloseInsideHandler(t *testing.T) {
	var calls atomic.Int32
	var sub *Subscription
	sub = newSubscription("1", 1, testTopic, Handlers{
		OnEvent: func(Event) {
			calls.Add(1)
			sub.close()
		},
	})

	done := make(chan struct{})
	go func() {
		sub.deliverEvent(Event{})
		sub.deliverEvent(Event{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("close inside handler deadlocked")
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, sub.Closed())
}

func TestSubscriptionCloseDuringHandler(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	sub := newSubscription("1", 1, testTopic, Handlers{
		OnEvent: func(Event) {
			calls.Add(1)
			close(entered)
			<-release
		},
	})

	go sub.deliverEvent(Event{})
	<-entered

	// the handler is in flight; close returns without waiting for it and
	// no further invocation starts
	sub.close()
	close(release)
	sub.deliverEvent(Event{})
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubscriptionComplete(t *testing.T) {
	var completed atomic.Int32
	sub := newSubscription("1", 1, testTopic, Handlers{
		OnComplete: func() { completed.Add(1) },
	})

	assert.True(t, sub.deliverComplete())
	assert.False(t, sub.deliverComplete())
	assert.Equal(t, int32(1), completed.Load())
	assert.True(t, sub.Closed())
}

func TestRegistrySnapshotOrder(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Add("c", testTopic, Handlers{})
	r.Add("a", testTopic, Handlers{})
	r.Add("b", testTopic, Handlers{})

	var ids []string
	for _, sub := range r.Snapshot() {
		ids = append(ids, sub.ID())
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))
	assert.Equal(t, 2, r.Len())

	sub, ok := r.Get("b")
	require.True(t, ok)
	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.True(t, sub.Closed())
}
