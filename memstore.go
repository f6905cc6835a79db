package pdfquiz

import (
	"context"
	"strings"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// MemoryBackend keeps records in process. go-cache expires them on its own
// janitor; mu only serialises the compare-and-delete paths.
type MemoryBackend struct {
	mu    sync.Mutex
	items *cache.Cache
}

// NewMemoryBackend creates an in-process backend whose janitor runs every
// cleanupInterval.
func NewMemoryBackend(cleanupInterval time.Duration) *MemoryBackend {
	return &MemoryBackend{
		items: cache.New(DefaultTTL, cleanupInterval),
	}
}

func memoryKey(bucket, key string) string {
	return bucket + ":" + key
}

// Put stores a copy of rec under key
func (m *MemoryBackend) Put(_ context.Context, bucket, key string, rec Record, ttl time.Duration) error {
	stored := Record{
		Payload:    append([]byte(nil), rec.Payload...),
		InsertedAt: rec.InsertedAt,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items.Set(memoryKey(bucket, key), stored, ttl)
	return nil
}

// Get returns a copy of the record under key
func (m *MemoryBackend) Get(_ context.Context, bucket, key string) (Record, bool, error) {
	value, ok := m.items.Get(memoryKey(bucket, key))
	if !ok {
		return Record{}, false, nil
	}
	rec := value.(Record)
	return Record{
		Payload:    append([]byte(nil), rec.Payload...),
		InsertedAt: rec.InsertedAt,
	}, true, nil
}

// Delete removes the record under key
func (m *MemoryBackend) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items.Delete(memoryKey(bucket, key))
	return nil
}

// Evict removes the record under key if it was inserted before cutoff
func (m *MemoryBackend) Evict(_ context.Context, bucket, key string, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memoryKey(bucket, key)
	value, ok := m.items.Get(k)
	if !ok {
		return nil
	}
	if value.(Record).InsertedAt.Before(cutoff) {
		m.items.Delete(k)
	}
	return nil
}

// Sweep removes every record in bucket inserted before cutoff
func (m *MemoryBackend) Sweep(_ context.Context, bucket string, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := bucket + ":"
	removed := 0
	for k, item := range m.items.Items() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if item.Object.(Record).InsertedAt.Before(cutoff) {
			m.items.Delete(k)
			removed++
		}
	}
	return removed, nil
}

// Close drops every record
func (m *MemoryBackend) Close() error {
	m.items.Flush()
	return nil
}
