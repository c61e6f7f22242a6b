// Package rediscache is a core.Cache shared by all API instances.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/trezcool/educa/core"
)

type cache struct {
	rdb    *goredis.Client
	prefix string
}

var _ core.Cache = (*cache)(nil) // interface compliance check

// Open connects to the redis server at conf.Cache.RedisAddr.
func Open(conf *core.Config) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        conf.Cache.RedisAddr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

// New returns a cache storing JSON values under keys prefixed with conf.Cache.KeyPrefix.
func New(rdb *goredis.Client, conf *core.Config) core.Cache {
	return &cache{rdb: rdb, prefix: conf.Cache.KeyPrefix}
}

func (c *cache) key(k string) string {
	return c.prefix + k
}

func (c *cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "getting cache key %s", key)
	}
	if err = json.Unmarshal(data, dest); err != nil {
		return false, errors.Wrapf(err, "decoding cache key %s", key)
	}
	return true, nil
}

func (c *cache) Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return errors.Wrapf(err, "encoding cache key %s", key)
	}
	if err = c.rdb.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return errors.Wrapf(err, "setting cache key %s", key)
	}
	return nil
}

func (c *cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		prefixed = append(prefixed, c.key(k))
	}
	if err := c.rdb.Del(ctx, prefixed...).Err(); err != nil {
		return errors.Wrap(err, "deleting cache keys")
	}
	return nil
}
