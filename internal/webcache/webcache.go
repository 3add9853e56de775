// Package webcache memoizes results of expensive external calls (page
// fetches, transcriptions) on disk, keyed by URL.
package webcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aidanlsb/kmd/internal/atomicfile"
)

// Dir is the cache directory inside a workspace.
const Dir = ".cache"

type envelope struct {
	Key      string          `json:"key"`
	StoredAt time.Time       `json:"stored_at"`
	Value    json.RawMessage `json:"value"`
}

// Cache is a directory of JSON files, one per (kind, key). A nil *Cache
// caches nothing.
type Cache struct {
	dir string
	// MaxAge expires entries older than this; zero keeps them forever.
	MaxAge time.Duration
}

// New returns a cache rooted at dir.
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

func (c *Cache) path(kind, key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, kind, hex.EncodeToString(sum[:])+".json")
}

// Get decodes the cached value for key into v. It reports false on a miss,
// including when the entry has expired or is unreadable.
func (c *Cache) Get(kind, key string, v any) bool {
	if c == nil {
		return false
	}
	data, err := os.ReadFile(c.path(kind, key))
	if err != nil {
		return false
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Key != key {
		return false
	}
	if c.MaxAge > 0 && time.Since(env.StoredAt) > c.MaxAge {
		return false
	}
	return json.Unmarshal(env.Value, v) == nil
}

// Put stores v under key.
func (c *Cache) Put(kind, key string, v any) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	data, err := json.Marshal(envelope{Key: key, StoredAt: time.Now().UTC(), Value: raw})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := atomicfile.WriteFile(c.path(kind, key), data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Delete removes a cached entry.
func (c *Cache) Delete(kind, key string) error {
	if c == nil {
		return nil
	}
	err := os.Remove(c.path(kind, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
