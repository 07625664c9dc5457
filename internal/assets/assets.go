// Package assets maps files between the host file system and the
// engine's project-rooted path space, and caches include lookups.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotUnderBase is returned when a path cannot be expressed relative
// to the project base. The returned path is still usable verbatim.
var ErrNotUnderBase = errors.New("path not under project base")

// Manager resolves project paths. Include directories are searched in
// the order they were added.
type Manager struct {
	base  string
	dirs  []string
	cache *Cache
	mu    sync.RWMutex
}

// NewManager creates a manager rooted at base. base may be empty, in
// which case every host path is reported as not under base.
func NewManager(base string, includeDirs ...string) *Manager {
	m := &Manager{cache: NewCache()}
	if base != "" {
		m.base = filepath.Clean(base)
	}
	for _, d := range includeDirs {
		m.AddDir(d)
	}
	return m
}

// Base returns the project base directory.
func (m *Manager) Base() string { return m.base }

// AddDir appends an include search directory.
func (m *Manager) AddDir(dir string) {
	m.mu.Lock()
	m.dirs = append(m.dirs, filepath.Clean(dir))
	m.mu.Unlock()
	m.cache.Clear()
}

// Dirs returns the include search directories.
func (m *Manager) Dirs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.dirs...)
}

// Lookup finds ref, a slash separated path relative to an include root,
// in the include directories and then under the project base. Results,
// including misses, are cached.
func (m *Manager) Lookup(ref string) (string, bool) {
	ref = strings.TrimPrefix(filepath.ToSlash(ref), "/")
	if path, ok := m.cache.Get(ref); ok {
		return path, path != ""
	}

	m.mu.RLock()
	roots := append([]string(nil), m.dirs...)
	m.mu.RUnlock()
	if m.base != "" {
		roots = append(roots, m.base)
	}

	for _, root := range roots {
		p := filepath.Join(root, filepath.FromSlash(ref))
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			m.cache.Set(ref, p)
			return p, true
		}
	}
	m.cache.Set(ref, "")
	return "", false
}

// ToEnginePath rewrites a host path under the base into a /-rooted
// POSIX path. Paths outside the base come back verbatim with forward
// slashes, together with ErrNotUnderBase.
func (m *Manager) ToEnginePath(path string) (string, error) {
	verbatim := strings.ReplaceAll(path, "\\", "/")
	if m.base == "" {
		return verbatim, fmt.Errorf("%w: no base set for %s", ErrNotUnderBase, path)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.base, path)
	}
	rel, err := filepath.Rel(m.base, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return verbatim, fmt.Errorf("%w: %s", ErrNotUnderBase, path)
	}
	return "/" + filepath.ToSlash(rel), nil
}

// ToHostPath maps a /-rooted engine path back under the base. Other
// paths are returned cleaned.
func (m *Manager) ToHostPath(enginePath string) string {
	if strings.HasPrefix(enginePath, "/") && m.base != "" {
		return filepath.Join(m.base, filepath.FromSlash(enginePath[1:]))
	}
	return filepath.Clean(filepath.FromSlash(enginePath))
}

// Close drops cached lookups.
func (m *Manager) Close() {
	m.cache.Clear()
}

// CacheStats returns lookup cache statistics.
func (m *Manager) CacheStats() (hits, misses int) {
	return m.cache.Stats()
}

// Cache remembers resolved lookups. An empty value records a miss.
type Cache struct {
	data map[string]string
	mu   sync.RWMutex

	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]string),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return path, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = path
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]string)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
