package interfaces

import (
	"context"
	"time"
)

// Cache holds derived read views (simulcast listings, grouped episodes) keyed by
// query. Entries are dropped wholesale on catalog changes, so Clear must be cheap.
type Cache interface {
	// Get returns the cached value, or an error when the key is absent or expired.
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
