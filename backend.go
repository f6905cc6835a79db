package pdfquiz

import (
	"context"
	"time"
)

// Buckets partition a Backend into logically disjoint maps.
const (
	BucketQuiz    = "quiz"
	BucketResults = "results"
)

// DefaultTTL is how long an entry lives after its last write
const DefaultTTL = 2 * time.Hour

// Record is one stored value with its write time.
type Record struct {
	Payload    []byte
	InsertedAt time.Time
}

// Backend is a keyed byte store. Every method is atomic per (bucket, key).
type Backend interface {
	// Put replaces any record under key. ttl is a hint for physical expiry.
	Put(ctx context.Context, bucket, key string, rec Record, ttl time.Duration) error
	// Get returns the record and true, or false when there is none.
	Get(ctx context.Context, bucket, key string) (Record, bool, error)
	// Delete removes the record; absent keys are not an error.
	Delete(ctx context.Context, bucket, key string) error
	// Evict removes the record only if it was inserted before cutoff.
	Evict(ctx context.Context, bucket, key string, cutoff time.Time) error
	Close() error
}

// Sweeper is implemented by backends that can drop every record inserted
// before cutoff in one pass.
type Sweeper interface {
	Sweep(ctx context.Context, bucket string, cutoff time.Time) (int, error)
}

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time
