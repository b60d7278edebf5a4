package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/larkwiot/shelf/internal/book"
	"github.com/larkwiot/shelf/internal/isbn"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "shelf:isbn:"

// Redis stores entries as JSON strings without expiry.
type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func redisKey(key isbn.Canonical) string {
	return redisKeyPrefix + string(key)
}

func (r *Redis) Get(ctx context.Context, key isbn.Canonical) (book.Entry, bool, error) {
	val, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return book.Entry{}, false, nil
	}
	if err != nil {
		return book.Entry{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry book.Entry
	if err := json.Unmarshal(val, &entry); err != nil {
		return book.Entry{}, false, fmt.Errorf("corrupt cache entry for %s: %w", key, err)
	}
	return entry, true, nil
}

func (r *Redis) Put(ctx context.Context, key isbn.Canonical, entry book.Entry) error {
	val, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, redisKey(key), val, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
