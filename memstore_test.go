package pdfquiz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendEvictKeepsNewerRecord(t *testing.T) {
	for name, open := range backendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := open(t)
			t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

			require.NoError(t, b.Put(ctx, BucketQuiz, "k", Record{Payload: []byte(`"new"`), InsertedAt: t0}, time.Hour))

			// A cutoff at the insertion time does not evict.
			require.NoError(t, b.Evict(ctx, BucketQuiz, "k", t0))
			rec, ok, err := b.Get(ctx, BucketQuiz, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, `"new"`, string(rec.Payload))

			require.NoError(t, b.Evict(ctx, BucketQuiz, "k", t0.Add(time.Nanosecond)))
			_, ok, err = b.Get(ctx, BucketQuiz, "k")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.Evict(ctx, BucketQuiz, "missing", t0))
		})
	}
}

func TestBackendBucketsAreDisjoint(t *testing.T) {
	for name, open := range backendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := open(t)
			now := time.Now()

			require.NoError(t, b.Put(ctx, BucketQuiz, "k", Record{Payload: []byte(`1`), InsertedAt: now}, time.Hour))
			require.NoError(t, b.Put(ctx, BucketResults, "k", Record{Payload: []byte(`2`), InsertedAt: now}, time.Hour))

			require.NoError(t, b.Delete(ctx, BucketQuiz, "k"))

			_, ok, err := b.Get(ctx, BucketQuiz, "k")
			require.NoError(t, err)
			assert.False(t, ok)

			rec, ok, err := b.Get(ctx, BucketResults, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "2", string(rec.Payload))
		})
	}
}

func TestMemoryBackendCopiesPayload(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(0)

	payload := []byte(`"original"`)
	require.NoError(t, b.Put(ctx, BucketQuiz, "k", Record{Payload: payload, InsertedAt: time.Now()}, time.Hour))
	payload[1] = 'X'

	rec, ok, err := b.Get(ctx, BucketQuiz, "k")
	require.NoError(t, err)
	require.True(t, ok)
	rec.Payload[1] = 'Y'

	again, _, _ := b.Get(ctx, BucketQuiz, "k")
	assert.Equal(t, `"original"`, string(again.Payload))
}

func TestMemoryBackendPhysicalExpiry(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(0)

	require.NoError(t, b.Put(ctx, BucketQuiz, "k", Record{Payload: []byte(`1`), InsertedAt: time.Now()}, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := b.Get(ctx, BucketQuiz, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryBackendSweepIsPerBucket(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(0)
	old := time.Now().Add(-3 * time.Hour)

	require.NoError(t, b.Put(ctx, BucketQuiz, "a", Record{Payload: []byte(`1`), InsertedAt: old}, time.Hour))
	require.NoError(t, b.Put(ctx, BucketResults, "a", Record{Payload: []byte(`1`), InsertedAt: old}, time.Hour))

	n, err := b.Sweep(ctx, BucketQuiz, time.Now().Add(-DefaultTTL))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, _ := b.Get(ctx, BucketResults, "a")
	assert.True(t, ok)
}
