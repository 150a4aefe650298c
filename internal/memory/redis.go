package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisTTL keeps a partition around for a day past its own date.
const redisTTL = 48 * time.Hour

// RedisStore keeps each conversation in a Redis list.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redisURL and checks the connection.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: redisTTL}, nil
}

// Recent returns up to limit of the newest turns, oldest first.
func (s *RedisStore) Recent(ctx context.Context, key Key, limit int) ([]Turn, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}

	raw, err := s.client.LRange(ctx, key.String(), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("decoding turn in %s: %w", key, err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Append pushes turns onto the conversation list and refreshes its expiry.
func (s *RedisStore) Append(ctx context.Context, key Key, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]any, len(turns))
	for i, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encoding turn: %w", err)
		}
		values[i] = string(data)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key.String(), values...)
	pipe.Expire(ctx, key.String(), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
