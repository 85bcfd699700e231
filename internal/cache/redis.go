package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultPrefix = "workshop:img:"

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// Redis stores fetched image bytes under a key prefix with a fixed TTL.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    logrus.FieldLogger
}

func NewRedis(cfg Config, logger logrus.FieldLogger) *Redis {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{rdb: rdb, ttl: cfg.TTL, prefix: prefix, log: logger}
}

func (c *Redis) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.log.WithError(err).Warn("redis ping failed")
		return err
	}
	return nil
}

func (c *Redis) Close() error {
	return c.rdb.Close()
}

func (c *Redis) key(k string) string {
	return c.prefix + k
}

// Get returns nil, nil on a miss.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		c.log.WithError(err).WithField("key", key).Debug("redis get failed")
		return nil, err
	}
	return b, nil
}

func (c *Redis) Set(ctx context.Context, key string, val []byte) error {
	if err := c.rdb.Set(ctx, c.key(key), val, c.ttl).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Debug("redis set failed")
		return err
	}
	return nil
}
