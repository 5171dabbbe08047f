package realtime

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry holds the subscriptions of a client. It outlives connections:
// each new connection subscribes everything registered here.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	seq    uint64
	logger zerolog.Logger
}

// NewRegistry creates a new subscription registry
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		subs:   make(map[string]*Subscription),
		logger: logger.With().Str("component", "subscription-registry").Logger(),
	}
}

// Add registers a new subscription for the topic under the given operation id
func (r *Registry) Add(id string, topic Topic, handlers Handlers) *Subscription {
	r.mu.Lock()
	r.seq++
	sub := newSubscription(id, r.seq, topic, handlers)
	r.subs[id] = sub
	total := len(r.subs)
	r.mu.Unlock()

	r.logger.Debug().
		Str("id", id).
		Str("topic", topic.Name).
		Int("total", total).
		Msg("subscription registered")
	return sub
}

// Remove unregisters a subscription. Returns true if it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	sub, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
	}
	total := len(r.subs)
	r.mu.Unlock()

	if ok {
		r.logger.Debug().
			Str("id", id).
			Str("topic", sub.topic.Name).
			Int("total", total).
			Msg("subscription unregistered")
	}
	return ok
}

// Get returns the subscription with the given id
func (r *Registry) Get(id string) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[id]
	return sub, ok
}

// Len returns the number of registered subscriptions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Snapshot returns registered subscriptions in registration order
func (r *Registry) Snapshot() []*Subscription {
	r.mu.RLock()
	out := make([]*Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Clear closes and removes every subscription
func (r *Registry) Clear() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[string]*Subscription)
	r.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	r.logger.Debug().Int("count", len(subs)).Msg("subscription registry cleared")
}
