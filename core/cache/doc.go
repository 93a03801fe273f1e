// Package cache provides the cache port used in front of durable game-save storage.
//
// # Port
//
// Cache is the key/value contract (get, set, set with TTL, unset, bulk read, clear) with a
// runtime enable switch: a disabled cache turns every operation into a no-op that misses, so the
// rest of the system keeps working directly against the durable store. DirtyTracker records which
// keys hold cache-only writes that still have to be flushed.
//
// # Hash Adapter
//
// HashCache binds a value type to a flat field map through a Codec and delegates to a Backend
// keyed by (kind, key). Two backends exist:
//   - RedisBackend: one Redis hash per entry, dirty generations in a side hash.
//   - MemoryBackend: process-local maps, used in tests and single-node development.
//
// Backend failures are reported as apperror.ErrCacheUnavailable. A circuit breaker stops calling
// a backend that keeps failing so callers degrade to the durable store without waiting on timeouts.
//
// # Dirty Generations
//
// Every cache-only write bumps a monotonic generation for its key. A flush reads the generation
// before the value and clears the dirty mark only if the generation is unchanged, so a write that
// races the flush stays dirty and is picked up on the next one.
package cache
