package pdfquiz

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteBackend stores cache records in a sqlite database file
type SQLiteBackend struct {
	db *sql.DB
}

// CacheRow is one row of the cache_entries table
type CacheRow struct {
	Bucket     string
	Key        string
	InsertedAt time.Time
	ExpiresAt  time.Time
}

// OpenSQLiteBackend opens (and if needed creates) a sqlite cache database
func OpenSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)

	backend := &SQLiteBackend{db: db}
	if err := backend.CreateTables(); err != nil {
		db.Close()
		return nil, err
	}
	return backend, nil
}

// Close closes the database connection
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

// CreateTables creates the necessary tables if they don't exist
func (s *SQLiteBackend) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS cache_entries (
			bucket TEXT NOT NULL,
			session_key TEXT NOT NULL,
			payload BLOB NOT NULL,
			inserted_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (bucket, session_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entries_inserted ON cache_entries (bucket, inserted_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// Put replaces the record under key
func (s *SQLiteBackend) Put(ctx context.Context, bucket, key string, rec Record, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO cache_entries (bucket, session_key, payload, inserted_at, expires_at) VALUES (?, ?, ?, ?, ?)",
		bucket, key, rec.Payload, rec.InsertedAt.UnixNano(), rec.InsertedAt.Add(ttl).UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store %s entry: %w", bucket, err)
	}
	return nil
}

// Get retrieves the record under key
func (s *SQLiteBackend) Get(ctx context.Context, bucket, key string) (Record, bool, error) {
	var (
		payload    []byte
		insertedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT payload, inserted_at FROM cache_entries WHERE bucket = ? AND session_key = ?",
		bucket, key,
	).Scan(&payload, &insertedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("failed to get %s entry: %w", bucket, err)
	}
	return Record{Payload: payload, InsertedAt: time.Unix(0, insertedAt)}, true, nil
}

// Delete removes the record under key
func (s *SQLiteBackend) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE bucket = ? AND session_key = ?", bucket, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s entry: %w", bucket, err)
	}
	return nil
}

// Evict removes the record under key if it was inserted before cutoff
func (s *SQLiteBackend) Evict(ctx context.Context, bucket, key string, cutoff time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE bucket = ? AND session_key = ? AND inserted_at < ?",
		bucket, key, cutoff.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to evict %s entry: %w", bucket, err)
	}
	return nil
}

// Sweep removes every record in bucket inserted before cutoff
func (s *SQLiteBackend) Sweep(ctx context.Context, bucket string, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE bucket = ? AND inserted_at < ?",
		bucket, cutoff.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep %s entries: %w", bucket, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count swept %s entries: %w", bucket, err)
	}
	return int(n), nil
}

// ListEntries returns the rows in bucket, oldest first
func (s *SQLiteBackend) ListEntries(ctx context.Context, bucket string) ([]CacheRow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT bucket, session_key, inserted_at, expires_at FROM cache_entries WHERE bucket = ? ORDER BY inserted_at",
		bucket,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s entries: %w", bucket, err)
	}
	defer rows.Close()

	var entries []CacheRow
	for rows.Next() {
		var (
			row                   CacheRow
			insertedAt, expiresAt int64
		)
		if err := rows.Scan(&row.Bucket, &row.Key, &insertedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		row.InsertedAt = time.Unix(0, insertedAt)
		row.ExpiresAt = time.Unix(0, expiresAt)
		entries = append(entries, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	return entries, nil
}
