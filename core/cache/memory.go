package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"lsadf-backend/core/clock"
)

type memoryEntry struct {
	fields    map[string]string
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryBackend is a process-local Backend. Expiry is enforced lazily on access.
type MemoryBackend struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]map[string]*memoryEntry
	dirty   map[string]map[string]int64
	seq     int64
}

// NewMemoryBackend creates an empty in-memory backend. A nil clock uses the system clock.
func NewMemoryBackend(clk clock.Clock) *MemoryBackend {
	if clk == nil {
		clk = clock.System{}
	}
	return &MemoryBackend{
		clock:   clk,
		entries: make(map[string]map[string]*memoryEntry),
		dirty:   make(map[string]map[string]int64),
	}
}

func (b *MemoryBackend) live(kind, key string) (*memoryEntry, bool) {
	e, ok := b.entries[kind][key]
	if !ok {
		return nil, false
	}
	if e.expired(b.clock.Now()) {
		delete(b.entries[kind], key)
		return nil, false
	}
	return e, true
}

func (b *MemoryBackend) Load(_ context.Context, kind, key string) (map[string]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.live(kind, key)
	if !ok {
		return nil, nil
	}
	out := make(map[string]string, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}
	return out, nil
}

func (b *MemoryBackend) Replace(_ context.Context, kind, key string, fields map[string]string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replaceLocked(kind, key, fields, ttl)
	return nil
}

func (b *MemoryBackend) replaceLocked(kind, key string, fields map[string]string, ttl time.Duration) {
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	e := &memoryEntry{fields: cp}
	if ttl > 0 {
		e.expiresAt = b.clock.Now().Add(ttl)
	}
	if b.entries[kind] == nil {
		b.entries[kind] = make(map[string]*memoryEntry)
	}
	b.entries[kind][key] = e
}

func (b *MemoryBackend) ReplaceIfAbsent(_ context.Context, kind, key string, fields map[string]string, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.live(kind, key); exists {
		return false, nil
	}
	b.replaceLocked(kind, key, fields, ttl)
	return true, nil
}

func (b *MemoryBackend) Delete(_ context.Context, kind, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries[kind], key)
	delete(b.dirty[kind], key)
	return nil
}

func (b *MemoryBackend) Keys(_ context.Context, kind string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]string, 0, len(b.entries[kind]))
	for key := range b.entries[kind] {
		if _, ok := b.live(kind, key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *MemoryBackend) DeleteAll(_ context.Context, kind string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, kind)
	delete(b.dirty, kind)
	return nil
}

func (b *MemoryBackend) MarkDirty(_ context.Context, kind, key string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	if b.dirty[kind] == nil {
		b.dirty[kind] = make(map[string]int64)
	}
	b.dirty[kind][key] = b.seq
	return b.seq, nil
}

func (b *MemoryBackend) DirtyGeneration(_ context.Context, kind, key string) (int64, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	gen, ok := b.dirty[kind][key]
	return gen, ok, nil
}

func (b *MemoryBackend) ClearDirty(_ context.Context, kind, key string, gen int64, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, ok := b.dirty[kind][key]
	if !ok || current != gen {
		return false, nil
	}
	delete(b.dirty[kind], key)
	if e, ok := b.entries[kind][key]; ok && ttl > 0 {
		e.expiresAt = b.clock.Now().Add(ttl)
	}
	return true, nil
}

func (b *MemoryBackend) DirtyKeys(_ context.Context, kind string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]string, 0, len(b.dirty[kind]))
	for key := range b.dirty[kind] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *MemoryBackend) Ping(context.Context) error {
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}
