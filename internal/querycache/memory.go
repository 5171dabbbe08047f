package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by loads after Close
var ErrClosed = errors.New("query cache closed")

// Config holds cache configuration
type Config struct {
	Size           int           // number of entries
	GCTime         time.Duration // unused entries are evicted after this, 0 disables
	RefetchTimeout time.Duration // timeout of background revalidation
}

// cacheEntry is one cached query result
type cacheEntry struct {
	query       Query
	data        json.RawMessage
	updatedAt   time.Time
	lastUsed    time.Time
	invalidated bool
	seq         uint64 // load that produced the data
}

// loadTicket is taken when a request goes out. seq orders results of the
// same key; epoch detects invalidations that happened while it was in flight.
type loadTicket struct {
	seq   uint64
	epoch uint64
}

type watcher struct {
	documentKey string
	fn          func(json.RawMessage)
}

// MemoryCache is an in-memory LRU query cache with stale-while-revalidate reads
type MemoryCache struct {
	cache     *lru.Cache[string, *cacheEntry]
	mu        sync.Mutex
	loadSeq   uint64
	epoch     uint64 // bumped by every invalidation
	fetch     Fetcher
	group     singleflight.Group
	persister Persister
	cfg       Config
	logger    zerolog.Logger

	watchMu  sync.RWMutex
	watchers map[int]watcher
	watchSeq int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMemoryCache creates a new query cache. persister may be nil.
func NewMemoryCache(cfg Config, fetch Fetcher, persister Persister, logger zerolog.Logger) (*MemoryCache, error) {
	if cfg.Size <= 0 {
		cfg.Size = 1000
	}
	if cfg.RefetchTimeout <= 0 {
		cfg.RefetchTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	mc := &MemoryCache{
		fetch:     fetch,
		persister: persister,
		cfg:       cfg,
		logger:    logger.With().Str("component", "query-cache").Logger(),
		watchers:  make(map[int]watcher),
		ctx:       ctx,
		cancel:    cancel,
	}

	cache, err := lru.NewWithEvict[string, *cacheEntry](cfg.Size, mc.onEvict)
	if err != nil {
		cancel()
		return nil, err
	}
	mc.cache = cache

	if persister != nil {
		mc.restore()
	}

	if cfg.GCTime > 0 {
		mc.wg.Add(1)
		go mc.cleanupLoop()
	}

	return mc, nil
}

// restore loads persisted records as stale entries
func (mc *MemoryCache) restore() {
	records, err := mc.persister.All()
	if err != nil {
		mc.logger.Warn().Err(err).Msg("failed to load persisted queries")
		return
	}

	now := time.Now()
	mc.mu.Lock()
	for _, rec := range records {
		mc.cache.Add(rec.Key, &cacheEntry{
			query:       Query{Document: rec.Document, Variables: rec.Variables},
			data:        rec.Data,
			updatedAt:   rec.UpdatedAt,
			lastUsed:    now,
			invalidated: true,
		})
	}
	mc.mu.Unlock()

	mc.logger.Debug().Int("count", len(records)).Msg("restored persisted queries")
}

// Fetch returns cached data, revalidating stale entries in the background
func (mc *MemoryCache) Fetch(ctx context.Context, q Query) (json.RawMessage, error) {
	key := q.Key()
	now := time.Now()

	mc.mu.Lock()
	entry, ok := mc.cache.Get(key)
	var data json.RawMessage
	stale := false
	if ok {
		// restored entries carry no stale time
		entry.query.StaleTime = q.StaleTime
		entry.lastUsed = now
		data = entry.data
		stale = entry.isStale(now)
	}
	mc.mu.Unlock()

	if !ok {
		return mc.Load(ctx, q)
	}

	if stale {
		mc.revalidate(q)
	}
	return data, nil
}

// Load executes the query and stores the result. Concurrent loads of the
// same key share one request.
func (mc *MemoryCache) Load(ctx context.Context, q Query) (json.RawMessage, error) {
	return mc.load(ctx, q, false)
}

// load executes the query. With reexecute set it never joins a request that
// is already in flight for the key.
func (mc *MemoryCache) load(ctx context.Context, q Query, reexecute bool) (json.RawMessage, error) {
	if mc.ctx.Err() != nil {
		return nil, ErrClosed
	}

	key := q.Key()
	if reexecute {
		mc.group.Forget(key)
	}
	v, err, shared := mc.group.Do(key, func() (interface{}, error) {
		ticket := mc.beginLoad()
		data, err := mc.fetch(ctx, q)
		if err != nil {
			return nil, err
		}
		mc.store(key, q, data, ticket)
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		mc.logger.Debug().Str("key", key).Msg("load shared with concurrent caller")
	}
	return v.(json.RawMessage), nil
}

func (mc *MemoryCache) revalidate(q Query) {
	if mc.ctx.Err() != nil {
		return
	}

	mc.wg.Add(1)
	go func() {
		defer mc.wg.Done()
		ctx, cancel := context.WithTimeout(mc.ctx, mc.cfg.RefetchTimeout)
		defer cancel()
		if _, err := mc.Load(ctx, q); err != nil && mc.ctx.Err() == nil {
			mc.logger.Warn().Err(err).Str("key", q.Key()).Msg("background revalidation failed")
		}
	}()
}

// Set seeds or replaces the data of a query
func (mc *MemoryCache) Set(q Query, data json.RawMessage) {
	mc.store(q.Key(), q, data, mc.beginLoad())
}

func (mc *MemoryCache) beginLoad() loadTicket {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.loadSeq++
	return loadTicket{seq: mc.loadSeq, epoch: mc.epoch}
}

// store saves a load result. A result older than the cached one is dropped,
// and a result whose request predates an invalidation is stored stale.
func (mc *MemoryCache) store(key string, q Query, data json.RawMessage, ticket loadTicket) {
	now := time.Now()

	mc.mu.Lock()
	if cur, ok := mc.cache.Peek(key); ok && cur.seq > ticket.seq {
		mc.mu.Unlock()
		mc.logger.Debug().Str("key", key).Msg("dropping result older than cached data")
		return
	}
	mc.cache.Add(key, &cacheEntry{
		query:       q,
		data:        data,
		updatedAt:   now,
		lastUsed:    now,
		invalidated: ticket.epoch != mc.epoch,
		seq:         ticket.seq,
	})
	mc.mu.Unlock()

	if mc.persister != nil {
		rec := Record{
			Key:       key,
			Document:  q.Document,
			Variables: q.Variables,
			Data:      data,
			UpdatedAt: now,
		}
		if err := mc.persister.Put(rec); err != nil {
			mc.logger.Warn().Err(err).Str("key", key).Msg("failed to persist query")
		}
	}

	mc.notifyWatchers(key, data)
}

// Peek returns a snapshot of the entry without touching it
func (mc *MemoryCache) Peek(q Query) (Entry, bool) {
	key := q.Key()

	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, ok := mc.cache.Peek(key)
	if !ok {
		return Entry{}, false
	}
	return Entry{
		Key:         key,
		Document:    entry.query.Document,
		Variables:   entry.query.Variables,
		Data:        entry.data,
		UpdatedAt:   entry.updatedAt,
		Invalidated: entry.invalidated,
	}, true
}

// Len returns the number of cached entries
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.cache.Len()
}

// InvalidateAll marks every entry stale. No request is issued; the next read
// of each entry returns its data and revalidates.
func (mc *MemoryCache) InvalidateAll() int {
	mc.mu.Lock()
	mc.epoch++
	count := 0
	for _, key := range mc.cache.Keys() {
		if entry, ok := mc.cache.Peek(key); ok {
			entry.invalidated = true
			count++
		}
	}
	mc.mu.Unlock()

	mc.logger.Debug().Int("count", count).Msg("invalidated all queries")
	return count
}

// InvalidateQuery marks one entry stale. Returns false if it is not cached.
func (mc *MemoryCache) InvalidateQuery(q Query) bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.epoch++
	entry, ok := mc.cache.Peek(q.Key())
	if ok {
		entry.invalidated = true
	}
	return ok
}

// Invalidate marks every entry of a document stale
func (mc *MemoryCache) Invalidate(document string) int {
	prefix := DocumentKey(document) + ":"

	mc.mu.Lock()
	mc.epoch++
	count := 0
	for _, key := range mc.cache.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if entry, ok := mc.cache.Peek(key); ok {
			entry.invalidated = true
			count++
		}
	}
	mc.mu.Unlock()

	mc.logger.Debug().Int("count", count).Msg("invalidated queries")
	return count
}

// Refetch re-executes every cached entry of a document regardless of
// staleness. Requests already in flight are not joined, and their results
// cannot replace the refetched data. Returns the number of entries refetched.
func (mc *MemoryCache) Refetch(ctx context.Context, document string) (int, error) {
	prefix := DocumentKey(document) + ":"

	mc.mu.Lock()
	var queries []Query
	for _, key := range mc.cache.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if entry, ok := mc.cache.Peek(key); ok {
			queries = append(queries, entry.query)
		}
	}
	mc.mu.Unlock()

	if len(queries) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		q := q
		g.Go(func() error {
			_, err := mc.load(gctx, q, true)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return len(queries), err
	}

	mc.logger.Debug().Int("count", len(queries)).Msg("refetched queries")
	return len(queries), nil
}

// Watch calls fn with new data whenever an entry of the document is stored.
// The returned function removes the watcher.
func (mc *MemoryCache) Watch(document string, fn func(json.RawMessage)) func() {
	mc.watchMu.Lock()
	mc.watchSeq++
	id := mc.watchSeq
	mc.watchers[id] = watcher{documentKey: DocumentKey(document), fn: fn}
	mc.watchMu.Unlock()

	return func() {
		mc.watchMu.Lock()
		delete(mc.watchers, id)
		mc.watchMu.Unlock()
	}
}

func (mc *MemoryCache) notifyWatchers(key string, data json.RawMessage) {
	mc.watchMu.RLock()
	var fns []func(json.RawMessage)
	for _, w := range mc.watchers {
		if strings.HasPrefix(key, w.documentKey+":") {
			fns = append(fns, w.fn)
		}
	}
	mc.watchMu.RUnlock()

	for _, fn := range fns {
		fn(data)
	}
}

// Close stops the cleanup loop and waits for background revalidation
func (mc *MemoryCache) Close() {
	mc.cancel()
	mc.wg.Wait()
}

func (mc *MemoryCache) onEvict(key string, _ *cacheEntry) {
	if mc.persister == nil {
		return
	}
	if err := mc.persister.Delete(key); err != nil {
		mc.logger.Debug().Err(err).Str("key", key).Msg("failed to delete persisted query")
	}
}

// cleanupLoop periodically removes entries unused for GCTime
func (mc *MemoryCache) cleanupLoop() {
	defer mc.wg.Done()

	interval := mc.cfg.GCTime / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.ctx.Done():
			return
		case <-ticker.C:
			mc.removeUnused()
		}
	}
}

// removeUnused removes entries not read for GCTime
func (mc *MemoryCache) removeUnused() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	cutoff := time.Now().Add(-mc.cfg.GCTime)
	for _, key := range mc.cache.Keys() {
		entry, ok := mc.cache.Peek(key)
		if ok && entry.lastUsed.Before(cutoff) {
			mc.cache.Remove(key)
		}
	}
}

func (e *cacheEntry) isStale(now time.Time) bool {
	if e.invalidated {
		return true
	}
	if e.query.StaleTime < 0 {
		return false
	}
	return now.Sub(e.updatedAt) >= e.query.StaleTime
}
