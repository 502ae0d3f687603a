// Package cache implements the content-addressed preview cache (spec
// §4.16): a SHA-256 hex key over (version tag ∥ canonical JSON request),
// JSON blobs written atomically to disk, and a small SQLite index for the
// sorted "saved" listing — adapted from the teacher's mbtiles writer
// schema/pragma/batch-insert style, repurposed from tile storage to a
// lightweight lookup index over files that already hold their own data.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// VersionTag is mixed into every cache key so a change in the generator's
// semantics invalidates old cache entries without needing a migration.
const VersionTag = "worldforge-preview-v1"

// Entry describes one saved cache listing row.
type Entry struct {
	CacheKey  string    `json:"cacheKey"`
	FileName  string    `json:"fileName"`
	SizeBytes int64     `json:"sizeBytes"`
	Modified  time.Time `json:"modified"`
}

// Cache is the content-addressed preview cache rooted at a directory.
type Cache struct {
	root string
	db   *sql.DB
	mu   sync.Mutex
}

// Open opens (creating if needed) a Cache rooted at dir, with its index DB
// at dir/index.sqlite.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(dir, "index.sqlite")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			cache_key  TEXT PRIMARY KEY,
			file_name  TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			modified   INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: creating schema: %w", err)
	}
	return &Cache{root: dir, db: db}, nil
}

// Close releases the index database handle.
func (c *Cache) Close() error { return c.db.Close() }

// Key computes the hex SHA-256 cache key for a canonical-JSON request body.
func Key(request interface{}) (string, error) {
	canonical, err := canonicalJSON(request)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(VersionTag), canonical...))
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON marshals v with sorted map keys by round-tripping through
// map[string]interface{}, so two structurally-equal requests always hash to
// the same key regardless of field declaration order.
func canonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return marshalSorted(generic)
}

func marshalSorted(v interface{}) ([]byte, error) {
	switch vv := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := []byte("{")
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			kb, _ := json.Marshal(k)
			out = append(out, kb...)
			out = append(out, ':')
			vb, err := marshalSorted(vv[k])
			if err != nil {
				return nil, err
			}
			out = append(out, vb...)
		}
		out = append(out, '}')
		return out, nil
	case []interface{}:
		out := []byte("[")
		for i, e := range vv {
			if i > 0 {
				out = append(out, ',')
			}
			eb, err := marshalSorted(e)
			if err != nil {
				return nil, err
			}
			out = append(out, eb...)
		}
		out = append(out, ']')
		return out, nil
	default:
		return json.Marshal(v)
	}
}

func (c *Cache) blobPath(key string) string {
	return filepath.Join(c.root, key+".json")
}

// Lookup reads the cached blob for key, or ok=false on a cache miss (not an
// error — spec §7: "cache miss... not an error, falls through to
// generation").
func (c *Cache) Lookup(key string) (data []byte, ok bool, err error) {
	data, err = os.ReadFile(c.blobPath(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Store writes data atomically under key and records it in the index.
func (c *Cache) Store(key string, data []byte) error {
	path := c.blobPath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(
		`INSERT INTO cache_entries (cache_key, file_name, size_bytes, modified)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET size_bytes=excluded.size_bytes, modified=excluded.modified`,
		key, filepath.Base(path), len(data), time.Now().Unix(),
	)
	return err
}

// List returns every saved entry, sorted by modified time descending.
func (c *Cache) List() ([]Entry, error) {
	rows, err := c.db.Query(`SELECT cache_key, file_name, size_bytes, modified FROM cache_entries ORDER BY modified DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var modifiedUnix int64
		if err := rows.Scan(&e.CacheKey, &e.FileName, &e.SizeBytes, &modifiedUnix); err != nil {
			return nil, err
		}
		e.Modified = time.Unix(modifiedUnix, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
