package realtime

import (
	"sync"
	"sync/atomic"
)

// Subscription is one registered topic listener.
// mu is held while a handler runs, so the closed check and the call are atomic.
type Subscription struct {
	id       string
	seq      uint64
	topic    Topic
	handlers Handlers

	mu         sync.Mutex
	closed     atomic.Bool
	inCallback atomic.Bool
}

func newSubscription(id string, seq uint64, topic Topic, handlers Handlers) *Subscription {
	return &Subscription{
		id:       id,
		seq:      seq,
		topic:    topic,
		handlers: handlers,
	}
}

// ID returns the operation id used on the wire
func (s *Subscription) ID() string {
	return s.id
}

// Topic returns the subscribed topic
func (s *Subscription) Topic() Topic {
	return s.topic
}

// Closed returns true once the subscription was stopped
func (s *Subscription) Closed() bool {
	return s.closed.Load()
}

// close marks the subscription closed. After it returns no handler starts.
// Returns false if it was already closed.
func (s *Subscription) close() bool {
	if !s.closed.CompareAndSwap(false, true) {
		return false
	}
	// a handler in flight holds mu; waiting here would deadlock when it is the caller
	if !s.inCallback.Load() {
		s.mu.Lock()
		s.mu.Unlock()
	}
	return true
}

func (s *Subscription) deliverEvent(ev Event) {
	if s.handlers.OnEvent == nil {
		return
	}
	s.invoke(func() { s.handlers.OnEvent(ev) })
}

func (s *Subscription) deliverError(err error) {
	if s.handlers.OnError == nil {
		return
	}
	s.invoke(func() { s.handlers.OnError(err) })
}

// deliverComplete runs OnComplete and closes the subscription.
// Returns false if it was already closed.
func (s *Subscription) deliverComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return false
	}
	if s.handlers.OnComplete != nil {
		s.inCallback.Store(true)
		defer s.inCallback.Store(false)
		s.handlers.OnComplete()
	}
	return s.closed.CompareAndSwap(false, true)
}

func (s *Subscription) invoke(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return
	}
	s.inCallback.Store(true)
	defer s.inCallback.Store(false)
	fn()
}
