package pdfquiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores cache records in redis with native key expiry
type RedisBackend struct {
	rdb *redis.Client
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type redisRecord struct {
	Payload    []byte `json:"payload"`
	InsertedAt int64  `json:"inserted_at"`
}

// NewRedisBackend initializes a new Redis client.
func NewRedisBackend(addr, password string, db int) *RedisBackend {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisBackend{rdb: rdb}
}

// Ping helper
func (r *RedisBackend) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

func redisKey(bucket, key string) string {
	return fmt.Sprintf("pdfquiz:%s:%s", bucket, key)
}

// Put replaces the record under key with a TTL
func (r *RedisBackend) Put(ctx context.Context, bucket, key string, rec Record, ttl time.Duration) error {
	data, err := json.Marshal(redisRecord{Payload: rec.Payload, InsertedAt: rec.InsertedAt.UnixNano()})
	if err != nil {
		return fmt.Errorf("failed to marshal %s entry: %w", bucket, err)
	}
	if err := r.rdb.Set(ctx, redisKey(bucket, key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store %s entry: %w", bucket, err)
	}
	return nil
}

// Get retrieves the record under key
func (r *RedisBackend) Get(ctx context.Context, bucket, key string) (Record, bool, error) {
	rec, ok, err := r.get(ctx, r.rdb, redisKey(bucket, key))
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to get %s entry: %w", bucket, err)
	}
	return rec, ok, nil
}

func (r *RedisBackend) get(ctx context.Context, c stringGetter, k string) (Record, bool, error) {
	raw, err := c.Get(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	var stored redisRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		return Record{}, false, err
	}
	return Record{Payload: stored.Payload, InsertedAt: time.Unix(0, stored.InsertedAt)}, true, nil
}

// Delete removes the record under key
func (r *RedisBackend) Delete(ctx context.Context, bucket, key string) error {
	if err := r.rdb.Del(ctx, redisKey(bucket, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s entry: %w", bucket, err)
	}
	return nil
}

// Evict removes the record under key if it was inserted before cutoff. A
// concurrent write aborts the transaction and the newer record stays.
func (r *RedisBackend) Evict(ctx context.Context, bucket, key string, cutoff time.Time) error {
	k := redisKey(bucket, key)
	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		rec, ok, err := r.get(ctx, tx, k)
		if err != nil || !ok || !rec.InsertedAt.Before(cutoff) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, k)
			return nil
		})
		return err
	}, k)
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("failed to evict %s entry: %w", bucket, err)
	}
	return nil
}

// Close closes the redis client
func (r *RedisBackend) Close() error {
	return r.rdb.Close()
}
