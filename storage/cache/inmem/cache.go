// Package inmemcache is a size bounded in-process core.Cache.
package inmemcache

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/educa/core"
)

var nowFunc = time.Now // mockable

type entry struct {
	data    []byte
	expires time.Time // zero: never
}

type cache struct {
	entries *lru.Cache[string, entry]
}

var _ core.Cache = (*cache)(nil) // interface compliance check

// New returns a cache holding up to size entries; the least recently used ones are evicted first.
func New(size int) (core.Cache, error) {
	entries, err := lru.New[string, entry](size)
	if err != nil {
		return nil, errors.Wrap(err, "creating LRU cache")
	}
	return &cache{entries: entries}, nil
}

func (c *cache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	e, ok := c.entries.Get(key)
	if !ok {
		return false, nil
	}
	if !e.expires.IsZero() && !nowFunc().Before(e.expires) {
		c.entries.Remove(key)
		return false, nil
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		return false, errors.Wrapf(err, "decoding cache key %s", key)
	}
	return true, nil
}

func (c *cache) Set(_ context.Context, key string, val interface{}, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return errors.Wrapf(err, "encoding cache key %s", key)
	}
	e := entry{data: data}
	if ttl > 0 {
		e.expires = nowFunc().Add(ttl)
	}
	c.entries.Add(key, e)
	return nil
}

func (c *cache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		c.entries.Remove(key)
	}
	return nil
}
