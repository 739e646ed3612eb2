// Package cache provides the content-addressed result cache shared by
// extraction and validation. Payloads live as blob files named by their
// key; an SQLite index tracks sizes and recency for LRU eviction.
//
// The cache is a pure memoization layer: a miss (including a corrupted
// entry) only costs recomputation, never correctness.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Cache is a content-addressed store rooted at a directory.
type Cache struct {
	conn *sql.DB
	dir  string
	mu   sync.Mutex
}

// Stats reports the cache's current footprint.
type Stats struct {
	Entries    int64
	TotalBytes int64
}

// Entry describes one cached payload, as seen by Clear predicates.
type Entry struct {
	Key       string
	Operation string
	SizeBytes int64
	CreatedAt time.Time
}

// Open opens (or creates) a cache rooted at dir. WAL mode is enabled so
// concurrent readers never block each other.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Join(dir, "objects"), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite", filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("open cache index: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			key TEXT PRIMARY KEY,
			operation TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			last_used_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_entries_last_used ON entries(last_used_at);
		CREATE INDEX IF NOT EXISTS idx_entries_operation ON entries(operation);
	`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	return &Cache{conn: conn, dir: dir}, nil
}

// Close closes the index connection.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// Dir returns the cache root directory.
func (c *Cache) Dir() string {
	return c.dir
}

// ComputeKey derives the deterministic cache key for an operation over
// the given input bytes. The serialization is canonical: options are
// sorted by name, fields are NUL-separated, so identical inputs always
// produce the same key across process restarts.
func ComputeKey(input []byte, operation string, opts map[string]string) string {
	h := sha256.New()
	h.Write([]byte(operation))
	h.Write([]byte{0})

	names := make([]string, 0, len(opts))
	for name := range opts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{'='})
		h.Write([]byte(opts[name]))
		h.Write([]byte{0})
	}

	h.Write(input)
	return hex.EncodeToString(h.Sum(nil))
}

// HashBytes returns the hex sha256 digest of data. Used for source
// image hashes that participate in cache keys.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (c *Cache) blobPath(key string) string {
	return filepath.Join(c.dir, "objects", key)
}

// Get returns the payload for key, or ok=false on a miss. An entry
// whose blob is missing or unreadable is treated as a miss and its
// index row removed, so corruption self-heals on the next Put.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var size int64
	err := c.conn.QueryRow("SELECT size_bytes FROM entries WHERE key = ?", key).Scan(&size)
	if err != nil {
		return nil, false
	}

	payload, err := os.ReadFile(c.blobPath(key))
	if err != nil || int64(len(payload)) != size {
		// Corrupted or vanished blob: drop the row, report a miss.
		c.conn.Exec("DELETE FROM entries WHERE key = ?", key)
		os.Remove(c.blobPath(key))
		return nil, false
	}

	c.conn.Exec("UPDATE entries SET last_used_at = ? WHERE key = ?", formatTime(time.Now()), key)
	return payload, true
}

// Put stores payload under key. The blob write is atomic from the
// caller's perspective: data goes to a temp file first, then a rename.
// A concurrent Put for the same key is last-write-wins, which is safe
// because recomputation is idempotent.
func (c *Cache) Put(key string, payload []byte, operation string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Join(c.dir, "objects"), "put-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpName, c.blobPath(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit blob: %w", err)
	}

	now := formatTime(time.Now())
	_, err = c.conn.Exec(`
		INSERT INTO entries (key, operation, size_bytes, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			operation = excluded.operation,
			size_bytes = excluded.size_bytes,
			last_used_at = excluded.last_used_at
	`, key, operation, int64(len(payload)), now, now)
	if err != nil {
		return fmt.Errorf("index blob: %w", err)
	}
	return nil
}

// Stats returns the number of entries and their total payload bytes.
func (c *Cache) Stats() (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s Stats
	err := c.conn.QueryRow("SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM entries").
		Scan(&s.Entries, &s.TotalBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	return s, nil
}

// Clear removes entries matching the predicate, or every entry when the
// predicate is nil. Returns the number of entries removed.
func (c *Cache) Clear(predicate func(Entry) bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.conn.Query("SELECT key, operation, size_bytes, created_at FROM entries")
	if err != nil {
		return 0, fmt.Errorf("list entries: %w", err)
	}

	var doomed []string
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.Key, &e.Operation, &e.SizeBytes, &created); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan entry: %w", err)
		}
		e.CreatedAt, _ = parseTime(created)
		if predicate == nil || predicate(e) {
			doomed = append(doomed, e.Key)
		}
	}
	rows.Close()

	for _, key := range doomed {
		os.Remove(c.blobPath(key))
		if _, err := c.conn.Exec("DELETE FROM entries WHERE key = ?", key); err != nil {
			return 0, fmt.Errorf("delete entry: %w", err)
		}
	}
	return len(doomed), nil
}

// Evict removes least-recently-used entries until total payload bytes
// fit under maxBytes. Returns the number of entries evicted. Eviction
// is safe to run concurrently with reads: a lost entry is just a miss.
func (c *Cache) Evict(maxBytes int64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	if err := c.conn.QueryRow("SELECT COALESCE(SUM(size_bytes), 0) FROM entries").Scan(&total); err != nil {
		return 0, fmt.Errorf("sum cache size: %w", err)
	}
	if total <= maxBytes {
		return 0, nil
	}

	rows, err := c.conn.Query("SELECT key, size_bytes FROM entries ORDER BY last_used_at ASC")
	if err != nil {
		return 0, fmt.Errorf("list LRU entries: %w", err)
	}

	type victim struct {
		key  string
		size int64
	}
	var victims []victim
	for rows.Next() {
		var v victim
		if err := rows.Scan(&v.key, &v.size); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan LRU entry: %w", err)
		}
		victims = append(victims, v)
		total -= v.size
		if total <= maxBytes {
			break
		}
	}
	rows.Close()

	for _, v := range victims {
		os.Remove(c.blobPath(v.key))
		if _, err := c.conn.Exec("DELETE FROM entries WHERE key = ?", v.key); err != nil {
			return 0, fmt.Errorf("evict entry: %w", err)
		}
	}
	return len(victims), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Parse(time.RFC3339, strings.TrimSpace(s))
	}
	return t, nil
}
