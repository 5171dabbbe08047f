package querycache

import (
	"context"
	"encoding/json"
	"time"
)

// Forever marks a query whose data only goes stale when invalidated
const Forever time.Duration = -1

// Query identifies a cached GraphQL read
type Query struct {
	Document  string
	Variables map[string]any
	StaleTime time.Duration // 0 is stale right away, Forever never by age
}

// Key returns the cache key of the query
func (q Query) Key() string {
	return GenerateKey(q.Document, q.Variables)
}

// Fetcher executes a query against the server
type Fetcher func(ctx context.Context, q Query) (json.RawMessage, error)

// Entry is a snapshot of one cached query
type Entry struct {
	Key         string
	Document    string
	Variables   map[string]any
	Data        json.RawMessage
	UpdatedAt   time.Time
	Invalidated bool
}

// Record is the persisted form of an entry
type Record struct {
	Key       string          `json:"key"`
	Document  string          `json:"document"`
	Variables map[string]any  `json:"variables,omitempty"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Persister stores loaded query results across runs
type Persister interface {
	Put(rec Record) error
	All() ([]Record, error)
	Delete(key string) error
}

// Cache defines the request layer used by the API and the invalidation bridge
type Cache interface {
	// Fetch returns cached data when fresh, stale data while revalidating in
	// the background, or loads synchronously on a miss
	Fetch(ctx context.Context, q Query) (json.RawMessage, error)

	// Load always executes the query and stores the result
	Load(ctx context.Context, q Query) (json.RawMessage, error)

	// Invalidate marks every entry of a document stale
	Invalidate(document string) int

	// InvalidateQuery marks a single entry stale
	InvalidateQuery(q Query) bool

	// InvalidateAll marks every entry stale without issuing requests
	InvalidateAll() int

	// Refetch re-executes every cached entry of a document now
	Refetch(ctx context.Context, document string) (int, error)

	// Close releases any resources held by the cache
	Close()
}
