package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "dialin:doc:"

// RedisOptions configures the Redis document backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps documents as plain string values in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection. A failed ping
// is classified like any other call, so callers can still fall back.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if err := validateString(opts.Addr, "addr"); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, classifyRedisError(err))
	}
	return &RedisStore{client: client}, nil
}

// Get returns the document stored under key.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateString(key, "key"); err != nil {
		return nil, err
	}
	body, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, classifyRedisError(err))
	}
	return body, nil
}

// Put replaces the document stored under key.
func (r *RedisStore) Put(ctx context.Context, key string, body []byte) error {
	if err := validateString(key, "key"); err != nil {
		return err
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, body, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, classifyRedisError(err))
	}
	return nil
}

// Close releases the connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// classifyRedisError maps go-redis failures onto the storage taxonomy.
func classifyRedisError(err error) error {
	switch {
	case errors.Is(err, redis.Nil):
		return ErrNotFound
	case redis.HasErrorPrefix(err, "NOAUTH"),
		redis.HasErrorPrefix(err, "NOPERM"),
		redis.HasErrorPrefix(err, "WRONGPASS"):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
}
