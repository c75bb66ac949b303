package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Cache keeps the editor text across connections.
type Cache interface {
	Load() (string, bool)
	Save(content string) error
	Clear() error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	content string
	ok      bool
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Load() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content, c.ok
}

func (c *MemoryCache) Save(content string) error {
	c.mu.Lock()
	c.content, c.ok = content, true
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	c.content, c.ok = "", false
	c.mu.Unlock()
	return nil
}

// FileCache stores the text in a single file.
type FileCache struct {
	path string
}

// NewFileCache returns a cache at path. The parent directory is created on
// first save.
func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

func (c *FileCache) Load() (string, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (c *FileCache) Save(content string) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}

func (c *FileCache) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}
