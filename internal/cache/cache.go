// Package cache keeps dataset snapshots for a bounded time so repeated
// analysis passes do not reload the source.
package cache

import (
	"context"
	"time"

	"CVDMonitor/internal/model"
)

// Store is a TTL snapshot store keyed by source name.
type Store interface {
	// Get returns ok=false on a miss or an expired entry.
	Get(ctx context.Context, key string) (ds *model.Dataset, ok bool, err error)
	Set(ctx context.Context, key string, ds *model.Dataset, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
