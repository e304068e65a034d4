package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisAPI is the subset of *redis.Client used by RedisClient.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	MSet(ctx context.Context, values ...interface{}) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisClient stores keys as plain redis strings.
type RedisClient struct {
	rdb redisAPI
}

func NewRedisClient(rdb redisAPI) (*RedisClient, error) {
	if rdb == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	return &RedisClient{rdb: rdb}, nil
}

// DialRedis builds a RedisClient for the given address.
func DialRedis(addr, password string, db int) (*RedisClient, error) {
	if addr == "" {
		return nil, errors.New("repository: redis address must not be empty")
	}
	return NewRedisClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

func (c *RedisClient) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("repository: Get %q: %w", key, err)
	}
	return value, true, nil
}

func (c *RedisClient) MultiGet(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("repository: MultiGet: %w", err)
	}
	if len(values) != len(keys) {
		return nil, fmt.Errorf("repository: MultiGet: got %d values for %d keys", len(values), len(keys))
	}
	for i, v := range values {
		switch s := v.(type) {
		case nil:
		case string:
			out[keys[i]] = s
		default:
			return nil, fmt.Errorf("repository: MultiGet: unexpected %T for %q", v, keys[i])
		}
	}
	return out, nil
}

// MultiSet relies on MSET being atomic.
func (c *RedisClient) MultiSet(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	pairs := make([]interface{}, 0, 2*len(values))
	for _, key := range sortedKeys(values) {
		pairs = append(pairs, key, values[key])
	}
	if err := c.rdb.MSet(ctx, pairs...).Err(); err != nil {
		return fmt.Errorf("repository: MultiSet: %w", err)
	}
	return nil
}

func (c *RedisClient) MultiRemove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("repository: MultiRemove: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	return c.rdb.Close()
}
