// Package resource provides the generic cache-backed resource service.
//
// One Service is bound per resource kind (characteristics, currency, stage, inventory, metadata)
// with its own cache store and durable store adapter. Reads go cache first and fall back to the
// durable store, repopulating the cache. Writes are either cache-only (marked dirty and flushed
// later) or write-through (durable store first, then cache refresh).
//
// # Degraded Mode
//
// When the cache is disabled or unavailable the service behaves as a plain repository: reads hit
// the durable store and cache-only writes are promoted to write-through so nothing is lost.
package resource
