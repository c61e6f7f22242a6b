package rediscache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/educa/core"
)

// TestCache needs a redis server; set REDIS_ADDR to run it.
func TestCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	conf := &core.Config{Cache: core.CacheConfig{RedisAddr: addr, KeyPrefix: "educa_test:"}}
	rdb, err := Open(conf)
	require.NoError(t, err)
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	c := New(rdb, conf)
	defer func() { _ = c.Delete(ctx, "all_subjects") }()

	var got map[string]int
	found, err := c.Get(ctx, "all_subjects", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "all_subjects", map[string]int{"music": 2}, time.Minute))
	found, err = c.Get(ctx, "all_subjects", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]int{"music": 2}, got)

	require.NoError(t, c.Delete(ctx, "all_subjects"))
	found, err = c.Get(ctx, "all_subjects", &got)
	require.NoError(t, err)
	assert.False(t, found)
}
