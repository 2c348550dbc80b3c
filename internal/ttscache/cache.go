// Package ttscache memoizes synthesized audio by (text, voice, speed) so
// repeating an assistant line does not hit the backend again. Process
// lifetime only; never written to disk.
package ttscache

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultMaxEntries bounds the cache before the clear-all eviction kicks in.
const DefaultMaxEntries = 50

type Cache struct {
	mu         sync.Mutex
	entries    map[string]string
	maxEntries int
}

func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		entries:    make(map[string]string),
		maxEntries: maxEntries,
	}
}

func key(text, voice string, speed float64) string {
	return fmt.Sprintf("%s|%s|%.2f", strings.ToLower(strings.TrimSpace(text)), voice, speed)
}

// Get returns the cached audio file path for the given synthesis parameters.
func (c *Cache) Get(text, voice string, speed float64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path, ok := c.entries[key(text, voice, speed)]
	return path, ok
}

// Put stores a synthesis result. When the cache is already at its bound it
// is cleared wholesale before inserting — not LRU, intentionally crude.
func (c *Cache) Put(text, voice string, speed float64, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxEntries {
		c.entries = make(map[string]string)
	}
	c.entries[key(text, voice, speed)] = path
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
