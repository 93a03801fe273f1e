package resource

import (
	"context"
	"errors"
	"fmt"

	"lsadf-backend/core/apperror"
	"lsadf-backend/core/cache"
	"lsadf-backend/core/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DurableStore is the system of record for one resource kind.
// Get returns apperror.ErrNotFound when the game save has no record.
type DurableStore[T any] interface {
	Get(ctx context.Context, id uuid.UUID) (T, error)
	Save(ctx context.Context, id uuid.UUID, value T) (T, error)
}

// Flusher reconciles dirty cache entries of one resource kind to durable storage.
type Flusher interface {
	Kind() string
	// Flush writes the cached value of id through to the durable store if it is dirty.
	// It reports whether a durable write happened.
	Flush(ctx context.Context, id uuid.UUID) (bool, error)
	// DirtyKeys lists game saves with unflushed cache-only writes.
	DirtyKeys(ctx context.Context) ([]uuid.UUID, error)
	// Discard drops the cached entry of id, including pending dirty state.
	Discard(ctx context.Context, id uuid.UUID) error
}

// Service is the read-through/write-through service of one resource kind.
type Service[T any] struct {
	cache    cache.Store[T]
	store    DurableStore[T]
	validate func(T) error
	logger   *zap.Logger
	sf       singleflight.Group
}

// Option configures a Service.
type Option[T any] func(*Service[T])

// WithValidator rejects values before they reach cache or store.
func WithValidator[T any](fn func(T) error) Option[T] {
	return func(s *Service[T]) {
		s.validate = fn
	}
}

// NewService binds a cache store and a durable store for one resource kind.
func NewService[T any](c cache.Store[T], store DurableStore[T], logger *zap.Logger, opts ...Option[T]) *Service[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service[T]{
		cache:  c,
		store:  store,
		logger: logger.With(zap.String("kind", c.Kind())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Kind returns the resource kind.
func (s *Service[T]) Kind() string {
	return s.cache.Kind()
}

// Cache returns the underlying cache store.
func (s *Service[T]) Cache() cache.Store[T] {
	return s.cache
}

// Get returns the current value for a game save.
func (s *Service[T]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	key := id.String()

	value, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheRequests.WithLabelValues(s.Kind(), "error").Inc()
		s.degraded("get", key, err)
	case ok:
		metrics.CacheRequests.WithLabelValues(s.Kind(), "hit").Inc()
		return value, nil
	default:
		metrics.CacheRequests.WithLabelValues(s.Kind(), "miss").Inc()
	}

	// Collapse concurrent misses for the same key into one durable read.
	res, err, _ := s.sf.Do(key, func() (interface{}, error) {
		v, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		// Never overwrite an entry written while we were reading the store.
		if _, cerr := s.cache.SetIfAbsent(ctx, key, v); cerr != nil {
			s.degraded("populate", key, cerr)
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("get %s %s: %w", s.Kind(), key, err)
	}
	return res.(T), nil
}

// Save stores a new value for a game save.
//
// With cacheOnly the value is written to the cache and marked dirty; the durable write is left
// to the next flush. Otherwise the durable store is written first and the cache refreshed.
func (s *Service[T]) Save(ctx context.Context, id uuid.UUID, value T, cacheOnly bool) error {
	if s.validate != nil {
		if err := s.validate(value); err != nil {
			return fmt.Errorf("save %s %s: %w", s.Kind(), id, err)
		}
	}

	if cacheOnly && s.cache.IsEnabled() {
		err := s.saveCacheOnly(ctx, id.String(), value)
		if err == nil {
			return nil
		}
		s.degraded("save", id.String(), err)
	}

	return s.writeThrough(ctx, id, value)
}

func (s *Service[T]) saveCacheOnly(ctx context.Context, key string, value T) error {
	// Value before mark: a flush that reads the new generation must also see the new value.
	if err := s.cache.SetWithTTL(ctx, key, value, 0); err != nil {
		return err
	}
	_, err := s.cache.MarkDirty(ctx, key)
	return err
}

func (s *Service[T]) writeThrough(ctx context.Context, id uuid.UUID, value T) error {
	key := id.String()

	gen, dirty, genErr := s.cache.DirtyGeneration(ctx, key)
	if genErr != nil {
		s.degraded("write-through", key, genErr)
	}

	saved, err := s.store.Save(ctx, id, value)
	if err != nil {
		return fmt.Errorf("save %s %s: %w", s.Kind(), key, err)
	}

	if err := s.cache.Set(ctx, key, saved); err != nil {
		s.degraded("refresh", key, err)
		return nil
	}
	if dirty {
		if _, err := s.cache.ClearDirty(ctx, key, gen); err != nil {
			s.degraded("clear dirty", key, err)
		}
	}
	return nil
}

// Flush writes a dirty cached value through to the durable store.
// Flushing a clean entry is a no-op, so repeated flushes are idempotent.
func (s *Service[T]) Flush(ctx context.Context, id uuid.UUID) (bool, error) {
	key := id.String()

	// Generation before value; see saveCacheOnly.
	gen, dirty, err := s.cache.DirtyGeneration(ctx, key)
	if err != nil {
		metrics.FlushResults.WithLabelValues(s.Kind(), "error").Inc()
		return false, err
	}
	if !dirty {
		metrics.FlushResults.WithLabelValues(s.Kind(), "clean").Inc()
		return false, nil
	}

	// A disabled cache is still drained.
	value, ok, err := s.cache.Peek(ctx, key)
	if err != nil {
		metrics.FlushResults.WithLabelValues(s.Kind(), "error").Inc()
		return false, err
	}
	if !ok {
		s.logger.Warn("Dirty mark without cached value, dropping", zap.String("key", key))
		_, err := s.cache.ClearDirty(ctx, key, gen)
		return false, err
	}

	if _, err := s.store.Save(ctx, id, value); err != nil {
		metrics.FlushResults.WithLabelValues(s.Kind(), "error").Inc()
		return false, fmt.Errorf("flush %s %s: %w", s.Kind(), key, err)
	}
	metrics.FlushResults.WithLabelValues(s.Kind(), "flushed").Inc()

	if _, err := s.cache.ClearDirty(ctx, key, gen); err != nil {
		return true, err
	}
	return true, nil
}

// IsDirty reports whether id holds an unflushed cache-only write.
func (s *Service[T]) IsDirty(ctx context.Context, id uuid.UUID) (bool, error) {
	_, dirty, err := s.cache.DirtyGeneration(ctx, id.String())
	return dirty, err
}

// DirtyKeys lists game saves with unflushed cache-only writes.
func (s *Service[T]) DirtyKeys(ctx context.Context) ([]uuid.UUID, error) {
	keys, err := s.cache.DirtyKeys(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(keys))
	for _, k := range keys {
		id, err := uuid.Parse(k)
		if err != nil {
			s.logger.Warn("Skipping malformed dirty key", zap.String("key", k))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Discard drops the cached entry of id and any pending dirty state.
func (s *Service[T]) Discard(ctx context.Context, id uuid.UUID) error {
	return s.cache.Unset(ctx, id.String())
}

func (s *Service[T]) degraded(op, key string, err error) {
	if errors.Is(err, apperror.ErrCacheUnavailable) {
		metrics.CacheFallbacks.WithLabelValues(s.Kind(), op).Inc()
	}
	s.logger.Warn("Cache operation failed, using durable store",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
}
