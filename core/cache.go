package core

import (
	"context"
	"time"
)

// Cache stores JSON-serializable values by key.
type Cache interface {
	// Get decodes the value stored at key into dest; reports false on a miss.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
