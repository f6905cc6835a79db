package pdfquiz

import (
	"context"
	"strings"
	"time"
)

// ResultsCache holds finalized quiz results per session key
type ResultsCache struct {
	backend Backend
	ttl     time.Duration
	now     Clock
}

// NewResultsCache creates a results store over backend
func NewResultsCache(backend Backend, ttl time.Duration, clock Clock) *ResultsCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &ResultsCache{backend: backend, ttl: ttl, now: clock}
}

// ResultsInput is what a caller submits when a quiz is completed
type ResultsInput struct {
	Questions   []Question `json:"questions"`
	Metadata    Metadata   `json:"metadata"`
	UserName    string     `json:"userName"`
	UserAnswers []int      `json:"userAnswers"`
}

// Validate reports the first problem with the input, if any
func (in *ResultsInput) Validate() error {
	if err := validateQuestions(in.Questions); err != nil {
		return err
	}
	if err := validateMetadata(in.Metadata); err != nil {
		return err
	}
	if strings.TrimSpace(in.UserName) == "" {
		return validationError("userName is required")
	}
	if len(in.UserAnswers) != len(in.Questions) {
		return validationError("got %d answers for %d questions", len(in.UserAnswers), len(in.Questions))
	}
	return nil
}

// Put replaces any results entry for key. Invalid input leaves the store untouched.
func (rc *ResultsCache) Put(ctx context.Context, key string, in ResultsInput) (*ResultsEntry, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	entry := &ResultsEntry{
		Questions:   in.Questions,
		Metadata:    in.Metadata,
		UserName:    in.UserName,
		UserAnswers: in.UserAnswers,
		InsertedAt:  rc.now(),
	}
	if err := putEntry(ctx, rc.backend, BucketResults, key, entry, entry.InsertedAt, rc.ttl); err != nil {
		return nil, err
	}
	VerboseLog("Stored results cache for session %s (%s scored %d/%d)", key, in.UserName, entry.Score(), len(in.Questions))
	return entry, nil
}

// Get returns the live results entry for key, or false when absent or expired
func (rc *ResultsCache) Get(ctx context.Context, key string) (*ResultsEntry, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	var entry ResultsEntry
	ok, err := getEntry(ctx, rc.backend, BucketResults, key, rc.now().Add(-rc.ttl), &entry)
	if err != nil || !ok {
		return nil, false, err
	}
	return &entry, true, nil
}

// Delete removes the results entry for key if present
func (rc *ResultsCache) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := rc.backend.Delete(ctx, BucketResults, key); err != nil {
		return internalError("failed to delete results cache", err)
	}
	return nil
}

// Sweep drops every results entry older than the TTL, when the backend supports it
func (rc *ResultsCache) Sweep(ctx context.Context) (int, error) {
	return sweepBucket(ctx, rc.backend, BucketResults, rc.now().Add(-rc.ttl))
}
