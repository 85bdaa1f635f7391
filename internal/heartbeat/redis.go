package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RezaEskandarii/tablequeue/custom_errors"
	"github.com/RezaEskandarii/tablequeue/types"
	"github.com/redis/go-redis/v9"
)

const scanBatch = 100

// redisClient is the part of *redis.Client the registry uses.
type redisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// RedisRegistry relies on Redis key expiry.
type RedisRegistry struct {
	client redisClient
}

func NewRedisRegistry(client redisClient) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func (r *RedisRegistry) Put(ctx context.Context, key string, value types.Heartbeat, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("put heartbeat %s: %w: %w", key, custom_errors.ErrPersistenceUnavailable, err)
	}
	return nil
}

func (r *RedisRegistry) Get(ctx context.Context, key string) (*types.Heartbeat, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get heartbeat %s: %w: %w", key, custom_errors.ErrPersistenceUnavailable, err)
	}
	value, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode heartbeat %s: %w", key, err)
	}
	return &value, nil
}

func (r *RedisRegistry) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete heartbeat %s: %w: %w", key, custom_errors.ErrPersistenceUnavailable, err)
	}
	return nil
}

func (r *RedisRegistry) List(ctx context.Context, prefix string) ([]Entry, error) {
	var (
		entries []Entry
		cursor  uint64
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("scan heartbeats: %w: %w", custom_errors.ErrPersistenceUnavailable, err)
		}
		for _, key := range keys {
			value, err := r.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			// expired between SCAN and GET
			if value == nil {
				continue
			}
			entries = append(entries, Entry{Key: key, Value: *value})
		}
		if next == 0 {
			return entries, nil
		}
		cursor = next
	}
}
