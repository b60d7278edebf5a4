package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/larkwiot/shelf/internal/book"
	"github.com/larkwiot/shelf/internal/isbn"
	bolt "go.etcd.io/bbolt"
)

var bucketIsbn = []byte("isbn")

// Bolt stores entries as JSON in a bbolt file. Reads are promoted into an
// in-memory map. An empty path gives a memory-only store.
type Bolt struct {
	db *bolt.DB
	mu sync.RWMutex

	memory map[isbn.Canonical][]byte
}

func NewBolt(path string) (*Bolt, error) {
	if len(path) == 0 {
		return &Bolt{memory: make(map[isbn.Canonical][]byte)}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIsbn)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Bolt{db: db, memory: make(map[isbn.Canonical][]byte)}, nil
}

func (b *Bolt) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *Bolt) Get(_ context.Context, key isbn.Canonical) (book.Entry, bool, error) {
	b.mu.RLock()
	data, ok := b.memory[key]
	b.mu.RUnlock()

	if !ok && b.db != nil {
		err := b.db.View(func(tx *bolt.Tx) error {
			if v := tx.Bucket(bucketIsbn).Get([]byte(key)); v != nil {
				data = make([]byte, len(v))
				copy(data, v)
			}
			return nil
		})
		if err != nil {
			return book.Entry{}, false, err
		}
		if data != nil {
			b.mu.Lock()
			b.memory[key] = data
			b.mu.Unlock()
		}
	}

	if data == nil {
		return book.Entry{}, false, nil
	}

	var entry book.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return book.Entry{}, false, fmt.Errorf("corrupt cache entry for %s: %w", key, err)
	}
	return entry, true, nil
}

func (b *Bolt) Put(_ context.Context, key isbn.Canonical, entry book.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	if b.db != nil {
		err = b.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketIsbn).Put([]byte(key), data)
		})
		if err != nil {
			return err
		}
	}

	b.mu.Lock()
	b.memory[key] = data
	b.mu.Unlock()
	return nil
}

// Keys lists every cached ISBN in key order.
func (b *Bolt) Keys() ([]isbn.Canonical, error) {
	if b.db == nil {
		b.mu.RLock()
		defer b.mu.RUnlock()
		keys := make([]isbn.Canonical, 0, len(b.memory))
		for k := range b.memory {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		return keys, nil
	}

	keys := make([]isbn.Canonical, 0)
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIsbn).ForEach(func(k, _ []byte) error {
			keys = append(keys, isbn.Canonical(k))
			return nil
		})
	})
	return keys, err
}

func (b *Bolt) Len() (int, error) {
	keys, err := b.Keys()
	return len(keys), err
}
