package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dirtySuffix = "_dirty"
	seqSuffix   = "_seq"
)

// markDirtyScript bumps the kind sequence and records it as the key's dirty generation.
var markDirtyScript = redis.NewScript(`
local gen = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], ARGV[1], gen)
return gen
`)

// clearDirtyScript removes the dirty mark only if it still holds the expected generation,
// then applies the clean-entry TTL.
var clearDirtyScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], ARGV[1]) ~= ARGV[2] then
  return 0
end
redis.call('HDEL', KEYS[1], ARGV[1])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[2], ttl)
end
return 1
`)

// replaceIfAbsentScript writes the hash only when the key does not exist.
var replaceIfAbsentScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
local ttl = tonumber(ARGV[1])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
end
return 1
`)

// RedisBackend stores each entry as a Redis hash under "<prefix>:<kind>:<key>".
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(cfg Config) (*RedisBackend, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisBackendFromClient(client, cfg.KeyPrefix), nil
}

// NewRedisBackendFromClient wraps an existing client without pinging it.
func NewRedisBackendFromClient(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "lsadf"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) entryKey(kind, key string) string {
	return b.prefix + ":" + kind + ":" + key
}

func (b *RedisBackend) dirtyKey(kind string) string {
	return b.prefix + ":" + kind + ":" + dirtySuffix
}

func (b *RedisBackend) seqKey(kind string) string {
	return b.prefix + ":" + kind + ":" + seqSuffix
}

func (b *RedisBackend) Load(ctx context.Context, kind, key string) (map[string]string, error) {
	fields, err := b.client.HGetAll(ctx, b.entryKey(kind, key)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

func (b *RedisBackend) Replace(ctx context.Context, kind, key string, fields map[string]string, ttl time.Duration) error {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	entry := b.entryKey(kind, key)

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, entry)
		pipe.HSet(ctx, entry, values)
		if ttl > 0 {
			pipe.PExpire(ctx, entry, ttl)
		}
		return nil
	})
	return err
}

func (b *RedisBackend) ReplaceIfAbsent(ctx context.Context, kind, key string, fields map[string]string, ttl time.Duration) (bool, error) {
	args := make([]interface{}, 0, 1+2*len(fields))
	args = append(args, ttl.Milliseconds())
	for k, v := range fields {
		args = append(args, k, v)
	}
	n, err := replaceIfAbsentScript.Run(ctx, b.client, []string{b.entryKey(kind, key)}, args...).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (b *RedisBackend) Delete(ctx context.Context, kind, key string) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.entryKey(kind, key))
		pipe.HDel(ctx, b.dirtyKey(kind), key)
		return nil
	})
	return err
}

func (b *RedisBackend) scan(ctx context.Context, kind string) ([]string, error) {
	prefix := b.prefix + ":" + kind + ":"
	var keys []string
	iter := b.client.Scan(ctx, 0, prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		k := strings.TrimPrefix(iter.Val(), prefix)
		if k == dirtySuffix || k == seqSuffix {
			continue
		}
		keys = append(keys, k)
	}
	return keys, iter.Err()
}

func (b *RedisBackend) Keys(ctx context.Context, kind string) ([]string, error) {
	return b.scan(ctx, kind)
}

func (b *RedisBackend) DeleteAll(ctx context.Context, kind string) error {
	keys, err := b.scan(ctx, kind)
	if err != nil {
		return err
	}
	full := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		full = append(full, b.entryKey(kind, k))
	}
	full = append(full, b.dirtyKey(kind))
	return b.client.Del(ctx, full...).Err()
}

func (b *RedisBackend) MarkDirty(ctx context.Context, kind, key string) (int64, error) {
	return markDirtyScript.Run(ctx, b.client, []string{b.dirtyKey(kind), b.seqKey(kind)}, key).Int64()
}

func (b *RedisBackend) DirtyGeneration(ctx context.Context, kind, key string) (int64, bool, error) {
	gen, err := b.client.HGet(ctx, b.dirtyKey(kind), key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return gen, true, nil
}

func (b *RedisBackend) ClearDirty(ctx context.Context, kind, key string, gen int64, ttl time.Duration) (bool, error) {
	n, err := clearDirtyScript.Run(ctx, b.client,
		[]string{b.dirtyKey(kind), b.entryKey(kind, key)},
		key, strconv.FormatInt(gen, 10), ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (b *RedisBackend) DirtyKeys(ctx context.Context, kind string) ([]string, error) {
	return b.client.HKeys(ctx, b.dirtyKey(kind)).Result()
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
