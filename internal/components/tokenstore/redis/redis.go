// Package redis implements a token store backend on Redis, for consoles that
// share one session across several processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/staybook/frontdesk/internal/components/tokenstore"
	"github.com/staybook/frontdesk/internal/platform/cfg"
)

func init() {
	tokenstore.Register("redis", func(raw map[string]any) (tokenstore.Backend, error) {
		var c Config
		if err := cfg.Decode(raw, &c); err != nil {
			return nil, err
		}
		return Open(c)
	})
}

// Config is the [token_store.drivers.redis] table. URL wins over Addr when both are set.
type Config struct {
	URL         string        `mapstructure:"url"`
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	Prefix      string        `mapstructure:"prefix"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// ApplyDefaults implements cfg.Setter.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" && c.URL == "" {
		c.Addr = "localhost:6379"
	}
	if c.Prefix == "" {
		c.Prefix = "frontdesk:"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 3 * time.Second
	}
}

// Backend stores each key as a plain string under Prefix.
type Backend struct {
	client *goredis.Client
	prefix string
}

// Open connects and pings the server.
func Open(c Config) (*Backend, error) {
	var opts *goredis.Options
	if c.URL != "" {
		parsed, err := goredis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &goredis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
		}
	}
	opts.DialTimeout = c.DialTimeout

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), c.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Backend{client: client, prefix: c.Prefix}, nil
}

func (b *Backend) Name() string { return "redis" }

func (b *Backend) key(k string) string { return b.prefix + k }

func (b *Backend) Load(ctx context.Context, key string) (string, error) {
	v, err := b.client.Get(ctx, b.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", tokenstore.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

func (b *Backend) Save(ctx context.Context, key, value string) error {
	if err := b.client.Set(ctx, b.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = b.key(k)
	}
	if err := b.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.client.Close()
}

var _ tokenstore.Backend = (*Backend)(nil)
