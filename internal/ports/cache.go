package ports

import (
	"context"
	"time"
)

// Cache is a small key-value store for sync bookkeeping (last pass, last error).
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) (map[string]string, error)
}
