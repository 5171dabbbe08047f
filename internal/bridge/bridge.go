package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mesa/internal/mesa"
	"mesa/internal/notify"
	"mesa/internal/realtime"
)

const (
	MsgDatabaseUpdated = "Finish updating database."
	MsgDatabaseFailed  = "Fail to update database."
)

// Source opens topic subscriptions
type Source interface {
	Subscribe(topic realtime.Topic, handlers realtime.Handlers) (realtime.UnsubscribeFunc, error)
}

// Cache is the part of the query cache the bridge drives
type Cache interface {
	InvalidateAll() int
	Refetch(ctx context.Context, document string) (int, error)
}

// Bridge turns server events into cache invalidations and notifications
type Bridge struct {
	source         Source
	cache          Cache
	notifier       notify.Notifier
	refreshTimeout time.Duration
	logger         zerolog.Logger

	mu      sync.Mutex
	started bool
	unsubs  []realtime.UnsubscribeFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a bridge. refreshTimeout bounds each targeted refetch.
func New(source Source, cache Cache, notifier notify.Notifier, refreshTimeout time.Duration, logger zerolog.Logger) *Bridge {
	if refreshTimeout <= 0 {
		refreshTimeout = 5 * time.Second
	}
	return &Bridge{
		source:         source,
		cache:          cache,
		notifier:       notifier,
		refreshTimeout: refreshTimeout,
		logger:         logger.With().Str("component", "invalidation-bridge").Logger(),
	}
}

// Start subscribes to the database and playback topics
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return nil
	}

	b.ctx, b.cancel = context.WithCancel(context.Background())

	subs := []struct {
		topic   realtime.Topic
		onEvent func(realtime.Event)
	}{
		{mesa.TopicDatabaseUpdate, b.onDatabaseUpdate},
		{mesa.TopicPlaybackSongUpdate, b.onPlaybackSongUpdate},
	}

	for _, s := range subs {
		topic := s.topic
		unsub, err := b.source.Subscribe(topic, realtime.Handlers{
			OnEvent: s.onEvent,
			OnError: func(err error) {
				b.logger.Warn().Err(err).Str("topic", topic.Name).Msg("subscription error")
			},
			OnComplete: func() {
				b.logger.Debug().Str("topic", topic.Name).Msg("subscription completed")
			},
		})
		if err != nil {
			for _, u := range b.unsubs {
				u()
			}
			b.unsubs = nil
			b.cancel()
			return err
		}
		b.unsubs = append(b.unsubs, unsub)
	}

	b.started = true
	b.logger.Debug().Msg("bridge started")
	return nil
}

// Stop unsubscribes and waits for in-flight refreshes
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	unsubs := b.unsubs
	b.unsubs = nil
	b.cancel()
	b.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	b.wg.Wait()
	b.logger.Debug().Msg("bridge stopped")
}

func (b *Bridge) onDatabaseUpdate(ev realtime.Event) {
	ok, valid := ev.Bool()
	if !valid {
		b.logger.Warn().RawJSON("data", ev.Data).Msg("ignoring malformed database update")
		return
	}

	if !ok {
		b.notifier.Failure(MsgDatabaseFailed)
		return
	}

	n := b.cache.InvalidateAll()
	b.logger.Info().Int("queries", n).Msg("database updated, cache invalidated")
	b.notifier.Success(MsgDatabaseUpdated)
}

func (b *Bridge) onPlaybackSongUpdate(ev realtime.Event) {
	changed, valid := ev.Bool()
	if !valid {
		b.logger.Warn().RawJSON("data", ev.Data).Msg("ignoring malformed playback update")
		return
	}
	if !changed {
		return
	}

	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	ctx := b.ctx
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, b.refreshTimeout)
		defer cancel()

		n, err := b.cache.Refetch(ctx, mesa.PlaybackStatusDocument)
		if err != nil {
			if ctx.Err() == nil {
				b.logger.Warn().Err(err).Msg("failed to refresh playback status")
			}
			return
		}
		b.logger.Debug().Int("queries", n).Msg("playback status refreshed")
	}()
}
