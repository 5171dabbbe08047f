package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"mesa/internal/querycache"
)

var bucketQueries = []byte("queries")

// BoltStore persists query snapshots per server using BoltDB.
type BoltStore struct {
	db     *bolt.DB
	logger zerolog.Logger

	// memory-only mode when db is nil
	mu  sync.RWMutex
	mem map[string][]byte
}

// Open opens the store for serverURL under dir. An empty dir yields a
// memory-only store.
func Open(dir, serverURL string, logger zerolog.Logger) (*BoltStore, error) {
	logger = logger.With().Str("component", "store").Logger()
	if dir == "" {
		return &BoltStore{logger: logger, mem: make(map[string][]byte)}, nil
	}

	if serverURL != "" {
		dir = filepath.Join(dir, hashServerURL(serverURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "mesa.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketQueries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug().Str("path", dbPath).Msg("opened query store")
	return &BoltStore{db: db, logger: logger}, nil
}

func hashServerURL(serverURL string) string {
	normalized := strings.TrimRight(strings.ToLower(serverURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

// Put stores a record under its key
func (s *BoltStore) Put(rec querycache.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	if s.db == nil {
		s.mu.Lock()
		s.mem[rec.Key] = data
		s.mu.Unlock()
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueries).Put([]byte(rec.Key), data)
	})
}

// All returns every stored record ordered by key. Records that fail to
// decode are skipped.
func (s *BoltStore) All() ([]querycache.Record, error) {
	var raw [][]byte

	if s.db == nil {
		s.mu.RLock()
		for _, v := range s.mem {
			raw = append(raw, v)
		}
		s.mu.RUnlock()
	} else {
		err := s.db.View(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketQueries).ForEach(func(_, v []byte) error {
				data := make([]byte, len(v))
				copy(data, v)
				raw = append(raw, data)
				return nil
			})
		})
		if err != nil {
			return nil, err
		}
	}

	records := make([]querycache.Record, 0, len(raw))
	for _, data := range raw {
		var rec querycache.Record
		if err := json.Unmarshal(data, &rec); err != nil || rec.Key == "" {
			s.logger.Warn().Err(err).Msg("skipping corrupt query record")
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records, nil
}

// Delete removes a record
func (s *BoltStore) Delete(key string) error {
	if s.db == nil {
		s.mu.Lock()
		delete(s.mem, key)
		s.mu.Unlock()
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueries).Delete([]byte(key))
	})
}

// Close closes the database
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
