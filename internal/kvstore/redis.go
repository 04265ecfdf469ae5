package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	incrWindowScript = redis.NewScript(`
		local v = redis.call("INCR", KEYS[1])
		if v == 1 or redis.call("PTTL", KEYS[1]) == -1 then
			redis.call("PEXPIRE", KEYS[1], ARGV[1])
		end
		return v
	`)

	decrFloorScript = redis.NewScript(`
		local v = redis.call("DECR", KEYS[1])
		if v < 0 then
			redis.call("DEL", KEYS[1])
		end
		return v
	`)

	compareAndDeleteScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`)

	compareAndExpireScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// RedisStore implements Store on top of a go-redis client.
// The client owns the connection pool; RedisStore never closes it.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets a prefix applied to every key in Redis.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Store backed by the given Redis client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) keys(ks []string) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = s.key(k)
	}
	return out
}

// Incr implements Store.Incr.
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	v, err := s.client.Incr(ctx, s.key(key)).Result()
	return v, wrapErr("incr", err)
}

// Decr implements Store.Decr.
func (s *RedisStore) Decr(ctx context.Context, key string) (int64, error) {
	v, err := s.client.Decr(ctx, s.key(key)).Result()
	return v, wrapErr("decr", err)
}

// Expire implements Store.Expire.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.PExpire(ctx, s.key(key), ttl).Result()
	return ok, wrapErr("pexpire", err)
}

// Get implements Store.Get.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, wrapErr("get", err)
}

// Set implements Store.Set.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return wrapErr("set", s.client.Set(ctx, s.key(key), value, ttl).Err())
}

// SetNX implements Store.SetNX.
func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), value, ttl).Result()
	return ok, wrapErr("setnx", err)
}

// Del implements Store.Del.
func (s *RedisStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, s.keys(keys)...).Result()
	return n, wrapErr("del", err)
}

// Exists implements Store.Exists.
func (s *RedisStore) Exists(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Exists(ctx, s.keys(keys)...).Result()
	return n, wrapErr("exists", err)
}

// TTL implements Store.TTL.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.PTTL(ctx, s.key(key)).Result()
	return d, wrapErr("pttl", err)
}

// IncrExpire implements Store.IncrExpire with a MULTI/EXEC pipeline.
func (s *RedisStore) IncrExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, s.key(key))
		pipe.PExpire(ctx, s.key(key), ttl)
		return nil
	})
	if err != nil {
		return 0, wrapErr("incr+expire", err)
	}
	return incr.Val(), nil
}

// IncrWindow implements Store.IncrWindow with a Lua script.
func (s *RedisStore) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	v, err := incrWindowScript.Run(ctx, s.client, []string{s.key(key)}, ttl.Milliseconds()).Int64()
	return v, wrapErr("incr window", err)
}

// DecrFloor implements Store.DecrFloor with a Lua script.
func (s *RedisStore) DecrFloor(ctx context.Context, key string) (int64, error) {
	v, err := decrFloorScript.Run(ctx, s.client, []string{s.key(key)}).Int64()
	return v, wrapErr("decr floor", err)
}

// CompareAndDelete implements Store.CompareAndDelete with a Lua script.
func (s *RedisStore) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	n, err := compareAndDeleteScript.Run(ctx, s.client, []string{s.key(key)}, value).Int64()
	if err != nil {
		return false, wrapErr("compare and delete", err)
	}
	return n == 1, nil
}

// CompareAndExpire implements Store.CompareAndExpire with a Lua script.
func (s *RedisStore) CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	n, err := compareAndExpireScript.Run(ctx, s.client, []string{s.key(key)}, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, wrapErr("compare and expire", err)
	}
	return n == 1, nil
}

// Ping checks if the Redis connection is healthy.
func (s *RedisStore) Ping(ctx context.Context) error {
	return wrapErr("ping", s.client.Ping(ctx).Err())
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if strings.Contains(err.Error(), "not an integer") {
		return fmt.Errorf("redis %s: %w", op, ErrNotInteger)
	}
	return fmt.Errorf("redis %s: %w: %w", op, ErrUnavailable, err)
}
