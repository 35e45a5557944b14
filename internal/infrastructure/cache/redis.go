// Package cache stores comment thread snapshots in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Pulth-Team/Pulth-sub000/internal/domain"
)

const (
	keyPrefix = "thread:"

	// updateRetries bounds optimistic retries when a concurrent writer
	// touches the key between WATCH and EXEC.
	updateRetries = 3
)

// ErrContention is returned by Update when every retry lost the race.
// The snapshot is dropped before returning it.
var ErrContention = errors.New("thread cache: too much contention")

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return client, nil
}

// RedisThreadCache implements domain.ThreadCache. Each article maps to one
// JSON array of comments.
type RedisThreadCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisThreadCache creates a cache whose snapshots expire after ttl.
// A zero ttl keeps snapshots until they are invalidated.
func NewRedisThreadCache(client *redis.Client, ttl time.Duration) *RedisThreadCache {
	return &RedisThreadCache{client: client, ttl: ttl}
}

func (c *RedisThreadCache) key(articleID string) string {
	return keyPrefix + articleID
}

// Get loads a snapshot.
func (c *RedisThreadCache) Get(ctx context.Context, articleID string) ([]domain.Comment, error) {
	data, err := c.client.Get(ctx, c.key(articleID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get thread snapshot: %w", err)
	}

	return decode(data)
}

// Set replaces a snapshot.
func (c *RedisThreadCache) Set(ctx context.Context, articleID string, comments []domain.Comment) error {
	data, err := encode(comments)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(articleID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set thread snapshot: %w", err)
	}
	return nil
}

// Update runs fn against the stored snapshot inside a WATCH transaction and
// writes its result back. When fn fails the snapshot is left untouched.
func (c *RedisThreadCache) Update(ctx context.Context, articleID string, fn func([]domain.Comment) ([]domain.Comment, error)) error {
	key := c.key(articleID)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get thread snapshot: %w", err)
		}

		comments, err := decode(data)
		if err != nil {
			return err
		}
		updated, err := fn(comments)
		if err != nil {
			return err
		}
		out, err := encode(updated)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, c.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < updateRetries; i++ {
		err := c.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: drop snapshot: %v", ErrContention, err)
	}
	return ErrContention
}

// Invalidate drops a snapshot. Missing keys are not an error.
func (c *RedisThreadCache) Invalidate(ctx context.Context, articleID string) error {
	if err := c.client.Del(ctx, c.key(articleID)).Err(); err != nil {
		return fmt.Errorf("invalidate thread snapshot: %w", err)
	}
	return nil
}

func encode(comments []domain.Comment) ([]byte, error) {
	if comments == nil {
		comments = []domain.Comment{}
	}
	data, err := json.Marshal(comments)
	if err != nil {
		return nil, fmt.Errorf("marshal thread snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) ([]domain.Comment, error) {
	var comments []domain.Comment
	if err := json.Unmarshal(data, &comments); err != nil {
		return nil, fmt.Errorf("unmarshal thread snapshot: %w", err)
	}
	return comments, nil
}
