package cache

import (
	"context"
	"time"
)

// Cache is the key/value port placed in front of a durable store.
type Cache[T any] interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) (T, bool, error)
	// Set stores value with the default expiration.
	Set(ctx context.Context, key string, value T) error
	// SetWithTTL stores value with an explicit TTL. A TTL <= 0 stores without expiry.
	SetWithTTL(ctx context.Context, key string, value T, ttl time.Duration) error
	// SetIfAbsent stores value with the default expiration unless the key already holds an entry.
	// It reports whether the value was stored.
	SetIfAbsent(ctx context.Context, key string, value T) (bool, error)
	// Unset removes the entry and its dirty mark, also while disabled.
	Unset(ctx context.Context, key string) error
	// GetAll returns every live entry.
	GetAll(ctx context.Context) (map[string]T, error)
	// Clear removes every entry.
	Clear(ctx context.Context) error

	SetEnabled(enabled bool)
	IsEnabled() bool
	// SetExpiration sets the default TTL used by Set.
	SetExpiration(ttl time.Duration)
	Expiration() time.Duration
}

// DirtyTracker tracks entries whose value has not been reconciled to durable storage.
type DirtyTracker[T any] interface {
	// MarkDirty bumps the dirty generation of key and returns it.
	MarkDirty(ctx context.Context, key string) (int64, error)
	// DirtyGeneration returns the current generation of key, if dirty.
	DirtyGeneration(ctx context.Context, key string) (int64, bool, error)
	// ClearDirty removes the dirty mark if it still equals gen and applies the default
	// expiration to the now clean entry. It reports whether the mark was cleared.
	ClearDirty(ctx context.Context, key string, gen int64) (bool, error)
	// DirtyKeys lists all keys currently marked dirty.
	DirtyKeys(ctx context.Context) ([]string, error)
	// Peek is Get without the enabled check, for draining a disabled cache.
	Peek(ctx context.Context, key string) (T, bool, error)
}

// Store is a named cache with dirty tracking, one per resource kind.
type Store[T any] interface {
	Cache[T]
	DirtyTracker[T]
	Kind() string
}

// Codec maps a value to and from a flat field map.
type Codec[T any] interface {
	Encode(value T) (map[string]string, error)
	Decode(fields map[string]string) (T, error)
}

// Backend stores flat field maps namespaced by kind.
// Load returns a nil map when the key is absent or expired.
type Backend interface {
	Load(ctx context.Context, kind, key string) (map[string]string, error)
	Replace(ctx context.Context, kind, key string, fields map[string]string, ttl time.Duration) error
	ReplaceIfAbsent(ctx context.Context, kind, key string, fields map[string]string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, kind, key string) error
	Keys(ctx context.Context, kind string) ([]string, error)
	DeleteAll(ctx context.Context, kind string) error

	MarkDirty(ctx context.Context, kind, key string) (int64, error)
	DirtyGeneration(ctx context.Context, kind, key string) (int64, bool, error)
	ClearDirty(ctx context.Context, kind, key string, gen int64, ttl time.Duration) (bool, error)
	DirtyKeys(ctx context.Context, kind string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}
