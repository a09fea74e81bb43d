package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache backed by a Redis server. It is the shared (L2)
// tier: multiple service replicas pointed at the same server see each
// other's fixed-window counters, quota counters, and alert cooldowns.
//
// Counter increments use a Lua script so the increment and the initial
// expiry are applied atomically.
type Redis struct {
	client     *redis.Client
	incrScript *redis.Script
}

// RedisConfig configures the Redis cache.
type RedisConfig struct {
	// Addr is the Redis server address ("host:port").
	Addr string

	// Password is the optional server password.
	Password string

	// DB is the database number.
	DB int

	// DialTimeout bounds connection establishment. Default: 2s.
	DialTimeout time.Duration

	// OpTimeout bounds individual read/write commands. Cache calls sit
	// on the request hot path, so keep this short. Default: 250ms.
	OpTimeout time.Duration
}

// incrLua increments a counter and applies the TTL only when the key
// was created by this call.
const incrLua = `
local current = redis.call("INCRBY", KEYS[1], ARGV[1])
if tonumber(current) == tonumber(ARGV[1]) and tonumber(ARGV[2]) > 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return current
`

// NewRedis creates a Redis cache and verifies connectivity.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.OpTimeout == 0 {
		cfg.OpTimeout = 250 * time.Millisecond
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &Redis{
		client:     client,
		incrScript: redis.NewScript(incrLua),
	}, nil
}

// Get returns the value for key and whether it was found.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, true, nil
}

// Set stores value under key with the given TTL.
func (r *Redis) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// IncrBy atomically adds n to the counter at key, applying ttl on creation.
func (r *Redis) IncrBy(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error) {
	res, err := r.incrScript.Run(ctx, r.client, []string{key}, n, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis incrby %q: %w", key, err)
	}
	return res, nil
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
