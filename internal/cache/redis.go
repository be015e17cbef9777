package cache

import (
	"context"
	"encoding/json"
	"time"

	"CVDMonitor/internal/model"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const redisPrefix = "cvdmonitor:snapshot:"

// RedisStore shares snapshots between processes through Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to addr. The connection is lazy; use Ping to check it.
func NewRedisStore(addr, password string, db int) *RedisStore {
	return NewRedisStoreWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: redisPrefix}
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return errors.Wrap(r.client.Ping(ctx).Err(), "redis ping")
}

func (r *RedisStore) Get(ctx context.Context, key string) (*model.Dataset, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "redis get %s", key)
	}
	var ds model.Dataset
	if err := json.Unmarshal([]byte(data), &ds); err != nil {
		return nil, false, errors.Wrapf(err, "decode snapshot %s", key)
	}
	return &ds, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, ds *model.Dataset, ttl time.Duration) error {
	data, err := json.Marshal(ds)
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	return errors.Wrapf(r.client.Set(ctx, r.prefix+key, string(data), ttl).Err(), "redis set %s", key)
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return errors.Wrapf(r.client.Del(ctx, r.prefix+key).Err(), "redis del %s", key)
}

// Close releases the client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
