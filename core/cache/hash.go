package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// presenceField is written with every entry so that a value encoding to zero fields
// is still distinguishable from a miss.
const presenceField = "_v"

// HashCache is a Store that keeps each value as a flat field map in a Backend.
type HashCache[T any] struct {
	kind    string
	backend Backend
	codec   Codec[T]
	breaker *gobreaker.CircuitBreaker[any]

	enabled    atomic.Bool
	expiration atomic.Int64
}

// NewHashCache creates a hash cache for the given resource kind.
// The breaker may be nil, in which case backend errors are reported without short-circuiting.
func NewHashCache[T any](kind string, backend Backend, codec Codec[T], breaker *gobreaker.CircuitBreaker[any], expiration time.Duration) *HashCache[T] {
	c := &HashCache[T]{
		kind:    kind,
		backend: backend,
		codec:   codec,
		breaker: breaker,
	}
	c.enabled.Store(true)
	c.expiration.Store(int64(expiration))
	return c
}

// Kind returns the resource kind this cache is bound to.
func (c *HashCache[T]) Kind() string {
	return c.kind
}

func (c *HashCache[T]) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
}

func (c *HashCache[T]) IsEnabled() bool {
	return c.enabled.Load()
}

func (c *HashCache[T]) SetExpiration(ttl time.Duration) {
	c.expiration.Store(int64(ttl))
}

func (c *HashCache[T]) Expiration() time.Duration {
	return time.Duration(c.expiration.Load())
}

func (c *HashCache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	if !c.IsEnabled() {
		var zero T
		return zero, false, nil
	}
	return c.Peek(ctx, key)
}

// Peek reads an entry even while the cache is disabled.
func (c *HashCache[T]) Peek(ctx context.Context, key string) (T, bool, error) {
	var zero T
	fields, err := guard(c.breaker, "get", func() (map[string]string, error) {
		return c.backend.Load(ctx, c.kind, key)
	})
	if err != nil {
		return zero, false, err
	}
	if fields == nil {
		return zero, false, nil
	}
	delete(fields, presenceField)

	value, err := c.codec.Decode(fields)
	if err != nil {
		return zero, false, fmt.Errorf("decode %s/%s: %w", c.kind, key, err)
	}
	return value, true, nil
}

func (c *HashCache[T]) Set(ctx context.Context, key string, value T) error {
	return c.SetWithTTL(ctx, key, value, c.Expiration())
}

func (c *HashCache[T]) SetWithTTL(ctx context.Context, key string, value T, ttl time.Duration) error {
	if !c.IsEnabled() {
		return nil
	}

	fields, err := c.encode(key, value)
	if err != nil {
		return err
	}
	_, err = guard(c.breaker, "set", func() (struct{}, error) {
		return struct{}{}, c.backend.Replace(ctx, c.kind, key, fields, ttl)
	})
	return err
}

func (c *HashCache[T]) SetIfAbsent(ctx context.Context, key string, value T) (bool, error) {
	if !c.IsEnabled() {
		return false, nil
	}

	fields, err := c.encode(key, value)
	if err != nil {
		return false, err
	}
	return guard(c.breaker, "set if absent", func() (bool, error) {
		return c.backend.ReplaceIfAbsent(ctx, c.kind, key, fields, c.Expiration())
	})
}

func (c *HashCache[T]) encode(key string, value T) (map[string]string, error) {
	fields, err := c.codec.Encode(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", c.kind, key, err)
	}
	if fields == nil {
		fields = make(map[string]string, 1)
	}
	fields[presenceField] = "1"
	return fields, nil
}

func (c *HashCache[T]) Unset(ctx context.Context, key string) error {
	_, err := guard(c.breaker, "unset", func() (struct{}, error) {
		return struct{}{}, c.backend.Delete(ctx, c.kind, key)
	})
	return err
}

func (c *HashCache[T]) GetAll(ctx context.Context) (map[string]T, error) {
	out := make(map[string]T)
	if !c.IsEnabled() {
		return out, nil
	}

	keys, err := guard(c.breaker, "keys", func() ([]string, error) {
		return c.backend.Keys(ctx, c.kind)
	})
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		value, ok, err := c.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		// Entries may expire between listing and loading.
		if ok {
			out[key] = value
		}
	}
	return out, nil
}

func (c *HashCache[T]) Clear(ctx context.Context) error {
	if !c.IsEnabled() {
		return nil
	}
	_, err := guard(c.breaker, "clear", func() (struct{}, error) {
		return struct{}{}, c.backend.DeleteAll(ctx, c.kind)
	})
	return err
}

func (c *HashCache[T]) MarkDirty(ctx context.Context, key string) (int64, error) {
	if !c.IsEnabled() {
		return 0, nil
	}
	return guard(c.breaker, "mark dirty", func() (int64, error) {
		return c.backend.MarkDirty(ctx, c.kind, key)
	})
}

// DirtyGeneration, ClearDirty and DirtyKeys ignore the enabled flag so that entries marked before
// a disable can still be drained. MarkDirty does not.
func (c *HashCache[T]) DirtyGeneration(ctx context.Context, key string) (int64, bool, error) {
	type result struct {
		gen int64
		ok  bool
	}
	r, err := guard(c.breaker, "dirty generation", func() (result, error) {
		gen, ok, err := c.backend.DirtyGeneration(ctx, c.kind, key)
		return result{gen, ok}, err
	})
	return r.gen, r.ok, err
}

func (c *HashCache[T]) ClearDirty(ctx context.Context, key string, gen int64) (bool, error) {
	return guard(c.breaker, "clear dirty", func() (bool, error) {
		return c.backend.ClearDirty(ctx, c.kind, key, gen, c.Expiration())
	})
}

func (c *HashCache[T]) DirtyKeys(ctx context.Context) ([]string, error) {
	return guard(c.breaker, "dirty keys", func() ([]string, error) {
		return c.backend.DirtyKeys(ctx, c.kind)
	})
}
