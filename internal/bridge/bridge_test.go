package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesa/internal/mesa"
	"mesa/internal/notify"
	"mesa/internal/querycache"
	"mesa/internal/realtime"
	"mesa/internal/wstest"
)

// fakeSource records subscriptions and lets the test push events
type fakeSource struct {
	mu       sync.Mutex
	handlers map[string]realtime.Handlers
	unsubs   map[string]int
	fail     error
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: make(map[string]realtime.Handlers), unsubs: make(map[string]int)}
}

func (s *fakeSource) Subscribe(topic realtime.Topic, h realtime.Handlers) (realtime.UnsubscribeFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	s.handlers[topic.Name] = h
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.unsubs[topic.Name]++
		delete(s.handlers, topic.Name)
	}, nil
}

func (s *fakeSource) push(topic realtime.Topic, data string) {
	s.mu.Lock()
	h, ok := s.handlers[topic.Name]
	s.mu.Unlock()
	if ok && h.OnEvent != nil {
		h.OnEvent(realtime.Event{Topic: topic, Data: json.RawMessage(data)})
	}
}

func (s *fakeSource) subscribed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

// fakeCache counts calls
type fakeCache struct {
	invalidations atomic.Int32
	mu            sync.Mutex
	refetched     []string
}

func (c *fakeCache) InvalidateAll() int {
	c.invalidations.Add(1)
	return 3
}

func (c *fakeCache) Refetch(_ context.Context, document string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refetched = append(c.refetched, document)
	return 1, nil
}

func (c *fakeCache) refetches() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.refetched...)
}

func newTestBridge(t *testing.T, cache Cache) (*Bridge, *fakeSource, *notify.Recorder) {
	t.Helper()
	src := newFakeSource()
	rec := &notify.Recorder{}
	b := New(src, cache, rec, time.Second, zerolog.Nop())
	require.NoError(t, b.Start())
	t.Cleanup(b.Stop)
	return b, src, rec
}

func TestDatabaseUpdateSuccess(t *testing.T) {
	cache := &fakeCache{}
	_, src, rec := newTestBridge(t, cache)

	src.push(mesa.TopicDatabaseUpdate, `{"OnDatabaseUpdate":true}`)

	assert.Equal(t, int32(1), cache.invalidations.Load())
	assert.Equal(t, []notify.Notification{{Level: notify.LevelSuccess, Message: MsgDatabaseUpdated}}, rec.All())
}

func TestDatabaseUpdateFailure(t *testing.T) {
	cache := &fakeCache{}
	_, src, rec := newTestBridge(t, cache)

	src.push(mesa.TopicDatabaseUpdate, `{"OnDatabaseUpdate":false}`)

	assert.Zero(t, cache.invalidations.Load())
	assert.Equal(t, []notify.Notification{{Level: notify.LevelFailure, Message: MsgDatabaseFailed}}, rec.All())
}

func TestMalformedEventsIgnored(t *testing.T) {
	cache := &fakeCache{}
	_, src, rec := newTestBridge(t, cache)

	src.push(mesa.TopicDatabaseUpdate, `{"OnDatabaseUpdate":"done"}`)
	src.push(mesa.TopicDatabaseUpdate, `{"Other":true}`)
	src.push(mesa.TopicDatabaseUpdate, `{"OnDatabaseUpdate":null}`)
	src.push(mesa.TopicPlaybackSongUpdate, `{"OnPlaybackSongUpdate":1}`)
	src.push(mesa.TopicPlaybackSongUpdate, `{"OnPlaybackSongUpdate":false}`)

	assert.Zero(t, cache.invalidations.Load())
	assert.Empty(t, rec.All())
	assert.Empty(t, cache.refetches())
}

func TestPlaybackUpdateRefetchesStatus(t *testing.T) {
	cache := &fakeCache{}
	b, src, _ := newTestBridge(t, cache)

	src.push(mesa.TopicPlaybackSongUpdate, `{"OnPlaybackSongUpdate":true}`)
	b.Stop()

	assert.Equal(t, []string{mesa.PlaybackStatusDocument}, cache.refetches())
	assert.Zero(t, cache.invalidations.Load())
}

func TestStartStopIdempotent(t *testing.T) {
	cache := &fakeCache{}
	b, src, _ := newTestBridge(t, cache)

	require.NoError(t, b.Start())
	assert.Equal(t, 2, src.subscribed())

	b.Stop()
	b.Stop()
	assert.Zero(t, src.subscribed())
	assert.Equal(t, 1, src.unsubs[mesa.TopicDatabaseUpdate.Name])
	assert.Equal(t, 1, src.unsubs[mesa.TopicPlaybackSongUpdate.Name])

	// events after Stop are dropped
	src.push(mesa.TopicPlaybackSongUpdate, `{"OnPlaybackSongUpdate":true}`)
	assert.Empty(t, cache.refetches())
}

func TestStartFailure(t *testing.T) {
	src := newFakeSource()
	src.fail = errors.New("closed")
	b := New(src, &fakeCache{}, notify.Nop{}, 0, zerolog.Nop())

	require.Error(t, b.Start())
	b.Stop()
}

// countingFetcher serves queries from a table and counts requests per document
type countingFetcher struct {
	mu    sync.Mutex
	data  map[string]string
	calls map[string]int
}

func (f *countingFetcher) set(document, data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[document] = data
}

func (f *countingFetcher) count(document string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[document]
}

func (f *countingFetcher) fetch(_ context.Context, q querycache.Query) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[q.Document]++
	data, ok := f.data[q.Document]
	if !ok {
		return nil, fmt.Errorf("unknown document")
	}
	return json.RawMessage(data), nil
}

func TestPlaybackRefreshLeavesOtherEntries(t *testing.T) {
	f := &countingFetcher{data: make(map[string]string), calls: make(map[string]int)}
	f.set(mesa.PlaybackStatusDocument, `{"PlaybackStatus":{"playing":false}}`)
	f.set(mesa.AlbumsDocument, `{"Albums":[]}`)

	cache, err := querycache.NewMemoryCache(querycache.Config{}, f.fetch, nil, zerolog.Nop())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	playback := querycache.Query{Document: mesa.PlaybackStatusDocument}
	albums := querycache.Query{Document: mesa.AlbumsDocument, StaleTime: querycache.Forever}
	_, err = cache.Load(ctx, playback)
	require.NoError(t, err)
	_, err = cache.Load(ctx, albums)
	require.NoError(t, err)
	albumsBefore, _ := cache.Peek(albums)

	f.set(mesa.PlaybackStatusDocument, `{"PlaybackStatus":{"playing":true}}`)

	b, src, rec := newTestBridge(t, cache)
	src.push(mesa.TopicPlaybackSongUpdate, `{"OnPlaybackSongUpdate":true}`)
	b.Stop()

	e, ok := cache.Peek(playback)
	require.True(t, ok)
	status, err := mesa.DecodePlaybackStatus(e.Data)
	require.NoError(t, err)
	assert.True(t, status.Playing)
	assert.Equal(t, 2, f.count(mesa.PlaybackStatusDocument))

	albumsAfter, _ := cache.Peek(albums)
	assert.Equal(t, albumsBefore, albumsAfter)
	assert.Equal(t, 1, f.count(mesa.AlbumsDocument))
	assert.Empty(t, rec.All())
}

func TestBridgeOverRealtimeClient(t *testing.T) {
	srv := wstest.NewServer(t)
	rt := realtime.NewClient(realtime.Config{
		URL:               srv.WSURL(),
		KeepAliveInterval: time.Second,
		PongTimeout:       time.Second,
		HandshakeTimeout:  time.Second,
	}, zerolog.Nop())
	defer rt.Close()

	f := &countingFetcher{data: make(map[string]string), calls: make(map[string]int)}
	f.set(mesa.AlbumsDocument, `{"Albums":[]}`)
	cache, err := querycache.NewMemoryCache(querycache.Config{}, f.fetch, nil, zerolog.Nop())
	require.NoError(t, err)
	defer cache.Close()

	albums := querycache.Query{Document: mesa.AlbumsDocument, StaleTime: querycache.Forever}
	_, err = cache.Load(context.Background(), albums)
	require.NoError(t, err)

	rec := &notify.Recorder{}
	b := New(rt, cache, rec, time.Second, zerolog.Nop())
	require.NoError(t, b.Start())
	defer b.Stop()

	conn := srv.WaitConn(t, 3*time.Second)
	ids := map[string]string{}
	for i := 0; i < 2; i++ {
		sub := conn.WaitSubscribe(t, 3*time.Second)
		if strings.Contains(sub.Query, mesa.TopicDatabaseUpdate.Name) {
			ids[mesa.TopicDatabaseUpdate.Name] = sub.ID
		} else {
			ids[mesa.TopicPlaybackSongUpdate.Name] = sub.ID
		}
	}
	require.Len(t, ids, 2)

	require.NoError(t, conn.Next(ids[mesa.TopicDatabaseUpdate.Name], map[string]any{"OnDatabaseUpdate": true}))

	require.Eventually(t, func() bool {
		return len(rec.All()) == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, MsgDatabaseUpdated, rec.All()[0].Message)

	e, ok := cache.Peek(albums)
	require.True(t, ok)
	assert.True(t, e.Invalidated)
	assert.Equal(t, 1, f.count(mesa.AlbumsDocument))
}
