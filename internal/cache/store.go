package cache

import (
	"context"
	"strings"
	"time"
)

// Store is the shared key/value contract used for rate limiting counters.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

const keyPrefix = "bloodbridge:"

// namespaced prefixes key once and collapses repeated separators.
func namespaced(key string) string {
	key = strings.TrimSpace(key)
	for strings.Contains(key, "::") {
		key = strings.ReplaceAll(key, "::", ":")
	}
	if strings.HasPrefix(key, keyPrefix) {
		return key
	}
	return keyPrefix + strings.TrimPrefix(key, ":")
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
