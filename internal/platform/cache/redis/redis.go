// Package redis provides a Redis/Valkey cache driver built on valkey-go.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	svccfg "github.com/MahdiBaghbani/busyday-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/cache"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/logutil"
)

func init() {
	cache.RegisterDriver("redis", func(conf map[string]any, log *slog.Logger) (cache.CacheWithCounter, error) {
		var c Config
		if err := svccfg.Decode(conf, &c); err != nil {
			return nil, err
		}
		rc, err := New(&c)
		if err != nil {
			return nil, err
		}
		logutil.NoopIfNil(log).Info("cache connected", "driver", "redis", "addr", c.Addr, "db", c.DB)
		return rc, nil
	})
}

// Config is the [cache.drivers.redis] table.
type Config struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"-"`
	WriteTimeout time.Duration `mapstructure:"-"`

	DialTimeoutMS  int `mapstructure:"dial_timeout_ms"`
	WriteTimeoutMS int `mapstructure:"write_timeout_ms"`
}

// ApplyDefaults implements cfg.Setter.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.PoolSize <= 0 {
		c.PoolSize = d.PoolSize
	}
	if c.DialTimeoutMS > 0 {
		c.DialTimeout = time.Duration(c.DialTimeoutMS) * time.Millisecond
	}
	if c.WriteTimeoutMS > 0 {
		c.WriteTimeout = time.Duration(c.WriteTimeoutMS) * time.Millisecond
	}
}

// DefaultConfig returns defaults for a local server.
func DefaultConfig() *Config {
	return &Config{
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}
}

// incrScript bumps a counter and starts its window if it has none.
// Returns {count, pttl_ms}.
const incrScript = `
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
  ttl = tonumber(ARGV[2])
end
return {v, ttl}
`

// Cache is a cache.CacheWithCounter backed by a Redis-protocol server.
type Cache struct {
	client valkey.Client
	prefix string
	incr   *valkey.Lua
}

// New connects to the configured server. It fails fast when the server is
// unreachable.
func New(cfg *Config) (*Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = DefaultConfig().DialTimeout
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:      []string{cfg.Addr},
		Password:         cfg.Password,
		SelectDB:         cfg.DB,
		DisableCache:     true,
		Dialer:           net.Dialer{Timeout: dial},
		ConnWriteTimeout: cfg.WriteTimeout,
		BlockingPoolSize: cfg.PoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Addr, err)
	}

	c := &Cache{client: client, prefix: cfg.KeyPrefix, incr: valkey.NewLuaScript(incrScript)}

	ctx, cancel := context.WithTimeout(context.Background(), dial)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("health check %s: %w", cfg.Addr, err)
	}
	return c, nil
}

func (c *Cache) key(k string) string { return c.prefix + k }

// Ping checks the connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(c.key(key)).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, cache.ErrNotFound
	}
	return b, err
}

// Set stores value with ttl; a zero ttl stores without expiry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return c.client.Do(ctx, c.client.B().Set().Key(c.key(key)).Value(valkey.BinaryString(value)).Build()).Error()
	}
	cmd := c.client.B().Set().Key(c.key(key)).Value(valkey.BinaryString(value)).PxMilliseconds(ttl.Milliseconds()).Build()
	return c.client.Do(ctx, cmd).Error()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(c.key(key)).Build()).Error()
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Do(ctx, c.client.B().Exists().Key(c.key(key)).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Increment runs INCRBY, PTTL and PEXPIRE atomically in one script, so the
// window starts with the first increment and is never extended.
func (c *Cache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error) {
	if ttl <= 0 {
		ttl = cache.TTLRateLimit
	}
	res := c.incr.Exec(ctx, c.client, []string{c.key(key)},
		[]string{strconv.FormatInt(delta, 10), strconv.FormatInt(ttl.Milliseconds(), 10)})
	vals, err := res.ToArray()
	if err != nil {
		return 0, time.Time{}, err
	}
	if len(vals) != 2 {
		return 0, time.Time{}, errors.New("unexpected increment reply")
	}
	count, err := vals[0].AsInt64()
	if err != nil {
		return 0, time.Time{}, err
	}
	pttl, err := vals[1].AsInt64()
	if err != nil {
		return 0, time.Time{}, err
	}
	return count, time.Now().Add(time.Duration(pttl) * time.Millisecond), nil
}

func (c *Cache) GetCount(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Do(ctx, c.client.B().Get().Key(c.key(key)).Build()).AsInt64()
	if valkey.IsValkeyNil(err) {
		return 0, nil
	}
	return n, err
}

func (c *Cache) Reset(ctx context.Context, key string) error {
	return c.Delete(ctx, key)
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	c.client.Close()
	return nil
}

var (
	_ cache.CacheWithCounter = (*Cache)(nil)
	_ cache.Pinger           = (*Cache)(nil)
)
