package embedding

import (
	"sync"

	"github.com/vharia/threatlens/internal/metrics"
)

// queryCache is a size-capped map for query embeddings keyed by
// (provider, text). Eviction is oldest-inserted, which approximates LRU well
// enough for repeated UI queries; the cap is approximate under concurrency
// but never unbounded. Chunk embeddings on the write path bypass this
// entirely since chunk text is rarely repeated verbatim.
type queryCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string][]float32
	order    []string
}

func newQueryCache(capacity int) *queryCache {
	return &queryCache{
		capacity: capacity,
		entries:  make(map[string][]float32, capacity),
	}
}

func cacheKey(provider string, text string) string {
	return provider + "\x00" + text
}

func (c *queryCache) get(provider string, text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vector, found := c.entries[cacheKey(provider, text)]
	metrics.CountCacheLookup(found)
	return vector, found
}

func (c *queryCache) put(provider string, text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(provider, text)
	if _, exists := c.entries[key]; exists {
		c.entries[key] = vector
		return
	}

	for len(c.entries) >= c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = vector
	c.order = append(c.order, key)
}

func (c *queryCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
