// ABOUTME: Redis fallback backend storing secrets as JSON values
// ABOUTME: Keys follow escape:secrets:<scope>:<name>; listing uses SCAN

package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/2389/escape-gateway/internal/store"
)

const redisKeyPrefix = "escape:secrets:"

// RedisBackend stores secrets in Redis, one JSON value per (name, scope) key.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend creates a Redis backend from a redis:// URL.
// The connection is verified with a ping.
func NewRedisBackend(ctx context.Context, url string) (*RedisBackend, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisBackend{client: client}, nil
}

// Close releases the Redis connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func redisKey(name, scope string) string {
	return redisKeyPrefix + scope + ":" + name
}

func (b *RedisBackend) Get(ctx context.Context, name, scope string) (*store.Secret, error) {
	data, err := b.client.Get(ctx, redisKey(name, scope)).Bytes()
	if err == redis.Nil {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading secret from redis: %w", err)
	}

	var secret store.Secret
	if err := json.Unmarshal(data, &secret); err != nil {
		return nil, fmt.Errorf("decoding secret: %w", err)
	}
	return &secret, nil
}

func (b *RedisBackend) Set(ctx context.Context, secret *store.Secret) error {
	data, err := json.Marshal(secret)
	if err != nil {
		return fmt.Errorf("encoding secret: %w", err)
	}

	if err := b.client.Set(ctx, redisKey(secret.Name, secret.Scope), data, 0).Err(); err != nil {
		return fmt.Errorf("writing secret to redis: %w", err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, name, scope string) error {
	deleted, err := b.client.Del(ctx, redisKey(name, scope)).Result()
	if err != nil {
		return fmt.Errorf("deleting secret from redis: %w", err)
	}
	if deleted == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (b *RedisBackend) List(ctx context.Context, scope string) ([]*store.Secret, error) {
	pattern := redisKeyPrefix + "*"
	if scope != "" {
		pattern = redisKeyPrefix + scope + ":*"
	}

	var out []*store.Secret
	iter := b.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		secret, err := b.Get(ctx, keyName(key), keyScope(key))
		if err != nil {
			if err == store.ErrNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, secret)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning secrets in redis: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func keyScope(key string) string {
	rest := strings.TrimPrefix(key, redisKeyPrefix)
	if i := strings.Index(rest, ":"); i >= 0 {
		return rest[:i]
	}
	return ""
}

func keyName(key string) string {
	rest := strings.TrimPrefix(key, redisKeyPrefix)
	if i := strings.Index(rest, ":"); i >= 0 {
		return rest[i+1:]
	}
	return rest
}

var _ Backend = (*RedisBackend)(nil)
