// Package cache persists resolved metadata keyed by canonical ISBN. Entries
// never expire; a later Put for the same key replaces the earlier one.
package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/larkwiot/shelf/internal/book"
	"github.com/larkwiot/shelf/internal/config"
	"github.com/larkwiot/shelf/internal/isbn"
	"github.com/larkwiot/shelf/internal/util"
	"github.com/redis/go-redis/v9"
)

type Cache interface {
	Get(ctx context.Context, key isbn.Canonical) (book.Entry, bool, error)
	Put(ctx context.Context, key isbn.Canonical, entry book.Entry) error
	Close() error
}

// Memory is a process-local Cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[isbn.Canonical]book.Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[isbn.Canonical]book.Entry)}
}

func (m *Memory) Get(_ context.Context, key isbn.Canonical) (book.Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	if !ok {
		return book.Entry{}, false, nil
	}
	entry.Record = entry.Record.Clone()
	return entry, true, nil
}

func (m *Memory) Put(_ context.Context, key isbn.Canonical, entry book.Entry) error {
	entry.Record = entry.Record.Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Close() error {
	return nil
}

// Open builds the backend selected by conf.
func Open(ctx context.Context, conf *config.CacheConfig) (Cache, error) {
	switch conf.Backend {
	case config.CacheBackendMemory:
		return NewMemory(), nil
	case config.CacheBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     conf.RedisAddr,
			Password: conf.RedisPassword,
			DB:       conf.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("unable to reach redis at %s: %w", conf.RedisAddr, err)
		}
		return NewRedis(client), nil
	case config.CacheBackendBolt:
		return NewBolt(util.ExpandUser(conf.Path))
	default:
		return nil, fmt.Errorf("unknown cache backend %q", conf.Backend)
	}
}
