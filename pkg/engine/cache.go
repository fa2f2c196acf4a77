package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/praetorian-inc/fdsec/pkg/matcher"
)

// Cache holds compiled expressions keyed by normalized expression text and
// matcher configuration. Compilation failures are cached too, so a broken
// signature is only parsed once.
type Cache struct {
	entries map[string]*cacheEntry
	mu      sync.Mutex
}

type cacheEntry struct {
	once     sync.Once
	compiled *Compiled
	err      error
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
	}
}

// Get returns the compiled form of expr, compiling it on first use.
// Concurrent callers asking for the same key wait for one compilation.
func (c *Cache) Get(expr string, cfg matcher.Config) (*Compiled, error) {
	key := computeCacheKey(expr, cfg)

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.compiled, e.err = CompileExpression(expr, cfg)
	})
	return e.compiled, e.err
}

// Len returns the number of cached expressions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close releases every cached matcher.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for key, e := range c.entries {
		if e.compiled != nil {
			if err := e.compiled.Matcher.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		delete(c.entries, key)
	}
	return firstErr
}

// computeCacheKey joins whitespace-normalized expression text with the
// matcher settings that affect compilation.
func computeCacheKey(expr string, cfg matcher.Config) string {
	normalized := strings.Join(strings.Fields(expr), " ")
	return fmt.Sprintf("%s\x00%d\x00%d", normalized, cfg.Backend, cfg.Prefilter)
}
