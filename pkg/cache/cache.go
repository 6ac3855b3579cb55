// Package cache is a SQLite-backed memoization layer for repeated
// matrix/isochrone queries, so a daemon serving the same (mode, origin,
// threshold) combination repeatedly — a common isochrone-widget access
// pattern — skips the K-lane PHAST/contour work on every request.
//
// Grounded on the teacher's internal/datasource.SQLiteReader: the same
// modernc.org/sqlite pure-Go driver, the same DSN-pragma-string open
// pattern, adapted from a read-only reader to a small read/write
// key-value store.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	_ "modernc.org/sqlite"
)

// Cache is a single-table SQLite key/value store: digest -> opaque
// result blob (typically a gob- or JSON-encoded matrix or isochrone
// polygon), plus the access bookkeeping needed to evict cold entries.
type Cache struct {
	db *sql.DB
}

// Open creates (if needed) and opens a cache database at path. Pass
// ":memory:" for an ephemeral, process-local cache.
func Open(path string) (*Cache, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA cache_size = -16000", // 16MB page cache
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("cache: set pragma %q: %w", p, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS entries (
	digest     TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	hits       INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	accessed_at INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key computes the digest for a memoized query: the mode name, the
// origin node id, and the threshold (milliseconds for isochrones, or 0
// for an unbounded matrix), matching SPEC_FULL.md's dependency table
// framing of "(mode, origin, threshold) digest".
func Key(mode string, origin uint32, thresholdMs uint32) string {
	h := sha256.New()
	h.Write([]byte(mode))
	h.Write([]byte{0})
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[0:4], origin)
	binary.BigEndian.PutUint32(buf[4:8], thresholdMs)
	h.Write(buf[:])
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached value for digest, or ok=false on a miss. A hit
// bumps the entry's access bookkeeping so Evict can reclaim cold rows
// first.
func (c *Cache) Get(digest string, nowUnix int64) (value []byte, ok bool, err error) {
	row := c.db.QueryRow(`SELECT value FROM entries WHERE digest = ?`, digest)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: get %s: %w", digest, err)
	}

	if _, err := c.db.Exec(
		`UPDATE entries SET hits = hits + 1, accessed_at = ? WHERE digest = ?`,
		nowUnix, digest,
	); err != nil {
		return value, true, fmt.Errorf("cache: update access stats for %s: %w", digest, err)
	}
	return value, true, nil
}

// Put stores (or overwrites) the value for digest.
func (c *Cache) Put(digest string, value []byte, nowUnix int64) error {
	_, err := c.db.Exec(
		`INSERT INTO entries (digest, value, hits, created_at, accessed_at)
		 VALUES (?, ?, 0, ?, ?)
		 ON CONFLICT(digest) DO UPDATE SET
			value = excluded.value,
			created_at = excluded.created_at,
			accessed_at = excluded.accessed_at,
			hits = 0`,
		digest, value, nowUnix, nowUnix,
	)
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", digest, err)
	}
	return nil
}

// Evict removes entries last accessed before cutoffUnix, returning the
// number of rows removed. Nothing in this module calls it on a schedule;
// pkg/engine does not call it.
func (c *Cache) Evict(cutoffUnix int64) (int64, error) {
	res, err := c.db.Exec(`DELETE FROM entries WHERE accessed_at < ?`, cutoffUnix)
	if err != nil {
		return 0, fmt.Errorf("cache: evict: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of cached entries.
func (c *Cache) Len() (int, error) {
	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache: count: %w", err)
	}
	return n, nil
}
