package pdfquiz

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// backendFactories returns one constructor per backend that runs without
// external services.
func backendFactories() map[string]func(t *testing.T) Backend {
	return map[string]func(t *testing.T) Backend{
		"memory": func(t *testing.T) Backend {
			b := NewMemoryBackend(0)
			t.Cleanup(func() { b.Close() })
			return b
		},
		"sqlite": func(t *testing.T) Backend {
			b, err := OpenSQLiteBackend(filepath.Join(t.TempDir(), "cache.db"))
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			t.Cleanup(func() { b.Close() })
			return b
		},
	}
}

func sampleQuestions(prefix string, n int) []Question {
	questions := make([]Question, n)
	for i := range questions {
		questions[i] = Question{
			Question:     fmt.Sprintf("%s question %d?", prefix, i+1),
			Options:      []string{"A", "B", "C", "D"},
			CorrectIndex: i % 4,
		}
	}
	return questions
}

var biologyMetadata = Metadata(`{"topic":"Biology","num_questions":3}`)

// faultyBackend fails the configured operations for one bucket
type faultyBackend struct {
	Backend
	bucket     string
	failPut    bool
	failGet    bool
	failDelete bool
}

var errBackendDown = errors.New("backend unreachable")

func (f *faultyBackend) Put(ctx context.Context, bucket, key string, rec Record, ttl time.Duration) error {
	if f.failPut && bucket == f.bucket {
		return errBackendDown
	}
	return f.Backend.Put(ctx, bucket, key, rec, ttl)
}

func (f *faultyBackend) Get(ctx context.Context, bucket, key string) (Record, bool, error) {
	if f.failGet && bucket == f.bucket {
		return Record{}, false, errBackendDown
	}
	return f.Backend.Get(ctx, bucket, key)
}

func (f *faultyBackend) Delete(ctx context.Context, bucket, key string) error {
	if f.failDelete && bucket == f.bucket {
		return errBackendDown
	}
	return f.Backend.Delete(ctx, bucket, key)
}
