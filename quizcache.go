package pdfquiz

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// QuizCache holds in-progress quiz state per session key
type QuizCache struct {
	backend Backend
	ttl     time.Duration
	now     Clock
}

// NewQuizCache creates a quiz store over backend. A zero ttl means DefaultTTL
// and a nil clock means time.Now.
func NewQuizCache(backend Backend, ttl time.Duration, clock Clock) *QuizCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &QuizCache{backend: backend, ttl: ttl, now: clock}
}

// Put replaces any entry for key. Overwriting is not a conflict.
func (qc *QuizCache) Put(ctx context.Context, key string, questions []Question, metadata Metadata) (*QuizEntry, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := validateQuestions(questions); err != nil {
		return nil, err
	}
	if err := validateMetadata(metadata); err != nil {
		return nil, err
	}

	entry := &QuizEntry{
		Questions:  questions,
		Metadata:   metadata,
		InsertedAt: qc.now(),
	}
	if err := putEntry(ctx, qc.backend, BucketQuiz, key, entry, entry.InsertedAt, qc.ttl); err != nil {
		return nil, err
	}
	VerboseLog("Stored quiz cache for session %s (%d questions)", key, len(questions))
	return entry, nil
}

// Get returns the live entry for key, or false when it is absent or expired
func (qc *QuizCache) Get(ctx context.Context, key string) (*QuizEntry, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	var entry QuizEntry
	ok, err := getEntry(ctx, qc.backend, BucketQuiz, key, qc.now().Add(-qc.ttl), &entry)
	if err != nil || !ok {
		return nil, false, err
	}
	return &entry, true, nil
}

// Delete removes the entry for key if present
func (qc *QuizCache) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := qc.backend.Delete(ctx, BucketQuiz, key); err != nil {
		return internalError("failed to delete quiz cache", err)
	}
	return nil
}

// Sweep drops every quiz entry older than the TTL, when the backend supports it
func (qc *QuizCache) Sweep(ctx context.Context) (int, error) {
	return sweepBucket(ctx, qc.backend, BucketQuiz, qc.now().Add(-qc.ttl))
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return validationError("session key is required")
	}
	return nil
}

func validateMetadata(metadata Metadata) error {
	if !metadataPresent(metadata) {
		return validationError("metadata is required")
	}
	if !json.Valid(metadata) {
		return validationError("metadata is not valid JSON")
	}
	return nil
}

func putEntry(ctx context.Context, backend Backend, bucket, key string, entry interface{}, insertedAt time.Time, ttl time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return internalError("failed to encode "+bucket+" entry", err)
	}
	if err := backend.Put(ctx, bucket, key, Record{Payload: payload, InsertedAt: insertedAt}, ttl); err != nil {
		return internalError("failed to write "+bucket+" cache", err)
	}
	return nil
}

// getEntry decodes the record under key into dst. Records inserted before
// cutoff are reported absent and evicted.
func getEntry(ctx context.Context, backend Backend, bucket, key string, cutoff time.Time, dst interface{}) (bool, error) {
	rec, ok, err := backend.Get(ctx, bucket, key)
	if err != nil {
		return false, internalError("failed to read "+bucket+" cache", err)
	}
	if !ok {
		VerboseLog("No %s cache for session %s", bucket, key)
		return false, nil
	}
	if rec.InsertedAt.Before(cutoff) {
		VerboseLog("Evicting expired %s cache for session %s", bucket, key)
		if err := backend.Evict(ctx, bucket, key, cutoff); err != nil {
			return false, internalError("failed to evict expired "+bucket+" cache", err)
		}
		return false, nil
	}
	if err := json.Unmarshal(rec.Payload, dst); err != nil {
		return false, internalError("failed to decode "+bucket+" entry", err)
	}
	return true, nil
}

func sweepBucket(ctx context.Context, backend Backend, bucket string, cutoff time.Time) (int, error) {
	sweeper, ok := backend.(Sweeper)
	if !ok {
		return 0, nil
	}
	n, err := sweeper.Sweep(ctx, bucket, cutoff)
	if err != nil {
		return 0, internalError("failed to sweep "+bucket+" cache", err)
	}
	return n, nil
}
