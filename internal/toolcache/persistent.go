package toolcache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// PersistentStats is the snapshot returned by Persistent.Stats.
type PersistentStats struct {
	Entries     int64
	ApproxBytes int64
	Path        string
}

// PersistentEntry is one row of the persistent cache table, exposed to
// read-only iteration.
type PersistentEntry struct {
	Key          string
	Namespace    string
	Version      string
	TTLSeconds   *int64
	CreatedAt    time.Time
	LastAccessed time.Time
	ExpiresAt    *time.Time
	HitCount     int64
}

// Persistent is a durable, transactional key-value store backed by
// modernc.org/sqlite in WAL mode. It satisfies spec.md §4.2's contract:
// TTL-aware get/set, a namespace secondary index, and binary value
// support via JSON-serialized blobs (values are opaque to callers).
type Persistent struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenPersistent opens (creating if necessary) the cache database at path
// and runs cleanup_expired once on open, per spec.md §4.2.
func OpenPersistent(path string, logger *slog.Logger) (*Persistent, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open persistent cache at %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single writer, WAL allows concurrent readers internally

	p := &Persistent{db: db, path: path, logger: logger.With("component", "toolcache.persistent")}
	if err := p.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	if n, err := p.CleanupExpired(); err != nil {
		p.logger.Warn("cleanup_expired failed on open", "error", err)
	} else if n > 0 {
		p.logger.Info("purged expired entries on open", "count", n)
	}

	return p, nil
}

func (p *Persistent) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key            TEXT PRIMARY KEY,
	namespace      TEXT NOT NULL,
	version        TEXT NOT NULL,
	value          BLOB NOT NULL,
	ttl_seconds    INTEGER,
	created_at     INTEGER NOT NULL,
	last_accessed  INTEGER NOT NULL,
	expires_at     INTEGER,
	hit_count      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_namespace ON cache_entries(namespace);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);
`
	_, err := p.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrate persistent cache schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (p *Persistent) Close() error {
	return p.db.Close()
}

// Get returns the deserialized value for key if present and not expired.
// An expired row is deleted lazily and reported as a miss. On hit,
// last_accessed and hit_count are bumped atomically with the read.
func (p *Persistent) Get(key string) (any, bool, error) {
	tx, err := p.db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("begin get tx: %w", err)
	}
	defer tx.Rollback()

	var (
		valueBlob []byte
		expiresAt sql.NullInt64
	)
	err = tx.QueryRow(`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key).Scan(&valueBlob, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query cache entry %s: %w", key, err)
	}

	if expiresAt.Valid && expiresAt.Int64 <= time.Now().Unix() {
		if _, err := tx.Exec(`DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
			return nil, false, fmt.Errorf("delete expired entry %s: %w", key, err)
		}
		return nil, false, tx.Commit()
	}

	now := time.Now().Unix()
	if _, err := tx.Exec(`UPDATE cache_entries SET last_accessed = ?, hit_count = hit_count + 1 WHERE key = ?`, now, key); err != nil {
		return nil, false, fmt.Errorf("bump access stats for %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit get tx: %w", err)
	}

	var value any
	if err := json.Unmarshal(valueBlob, &value); err != nil {
		return nil, false, fmt.Errorf("deserialize cache value for %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts key with created_at=now and expires_at=now+ttl (or none).
func (p *Persistent) Set(key, namespace, version string, value any, ttl *time.Duration) error {
	blob, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("serialize cache value for %s: %w", key, err)
	}

	now := time.Now()
	var ttlSeconds sql.NullInt64
	var expiresAt sql.NullInt64
	if ttl != nil {
		ttlSeconds = sql.NullInt64{Int64: int64(ttl.Seconds()), Valid: true}
		expiresAt = sql.NullInt64{Int64: now.Add(*ttl).Unix(), Valid: true}
	}

	_, err = p.db.Exec(`
INSERT INTO cache_entries (key, namespace, version, value, ttl_seconds, created_at, last_accessed, expires_at, hit_count)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
ON CONFLICT(key) DO UPDATE SET
	namespace = excluded.namespace,
	version = excluded.version,
	value = excluded.value,
	ttl_seconds = excluded.ttl_seconds,
	created_at = excluded.created_at,
	last_accessed = excluded.last_accessed,
	expires_at = excluded.expires_at
`, key, namespace, version, blob, ttlSeconds, now.Unix(), now.Unix(), expiresAt)
	if err != nil {
		return fmt.Errorf("upsert cache entry %s: %w", key, err)
	}
	return nil
}

// Delete idempotently removes key.
func (p *Persistent) Delete(key string) error {
	_, err := p.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete cache entry %s: %w", key, err)
	}
	return nil
}

// Clear removes all entries, or only those in namespace if non-empty.
func (p *Persistent) Clear(namespace string) error {
	var err error
	if namespace == "" {
		_, err = p.db.Exec(`DELETE FROM cache_entries`)
	} else {
		_, err = p.db.Exec(`DELETE FROM cache_entries WHERE namespace = ?`, namespace)
	}
	if err != nil {
		return fmt.Errorf("clear cache entries (namespace=%q): %w", namespace, err)
	}
	return nil
}

// IterEntries returns a read-only snapshot of rows, optionally filtered to
// namespace.
func (p *Persistent) IterEntries(namespace string) ([]PersistentEntry, error) {
	query := `SELECT key, namespace, version, ttl_seconds, created_at, last_accessed, expires_at, hit_count FROM cache_entries`
	args := []any{}
	if namespace != "" {
		query += ` WHERE namespace = ?`
		args = append(args, namespace)
	}

	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("iter_entries query: %w", err)
	}
	defer rows.Close()

	var entries []PersistentEntry
	for rows.Next() {
		var (
			e                     PersistentEntry
			ttlSeconds            sql.NullInt64
			createdAt, lastAccess int64
			expiresAt             sql.NullInt64
		)
		if err := rows.Scan(&e.Key, &e.Namespace, &e.Version, &ttlSeconds, &createdAt, &lastAccess, &expiresAt, &e.HitCount); err != nil {
			return nil, fmt.Errorf("scan cache entry row: %w", err)
		}
		if ttlSeconds.Valid {
			e.TTLSeconds = &ttlSeconds.Int64
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		e.LastAccessed = time.Unix(lastAccess, 0)
		if expiresAt.Valid {
			t := time.Unix(expiresAt.Int64, 0)
			e.ExpiresAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CleanupExpired bulk-purges rows where expires_at <= now, returning the
// number of rows removed.
func (p *Persistent) CleanupExpired() (int64, error) {
	res, err := p.db.Exec(`DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("cleanup_expired: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns entry count, an approximate size, and the backing file path.
func (p *Persistent) Stats() (PersistentStats, error) {
	var count int64
	if err := p.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return PersistentStats{}, fmt.Errorf("stats count: %w", err)
	}

	var approxBytes int64
	_ = p.db.QueryRow(`SELECT SUM(LENGTH(value)) FROM cache_entries`).Scan(&approxBytes)

	return PersistentStats{Entries: count, ApproxBytes: approxBytes, Path: p.path}, nil
}
