package memory

import (
	"container/list"
	"sync"
)

// EmbeddingCache is an LRU cache over (provider, model, content hash) ->
// embedding vector, so re-indexing unchanged content never re-pays an
// embedding-provider call. put is idempotent: re-putting the same key
// just moves it to the front.
type EmbeddingCache struct {
	mu    sync.Mutex
	keep  int
	order *list.List
	items map[string]*list.Element
}

type cacheEntry struct {
	key    string
	vector []float32
}

// NewEmbeddingCache creates a cache that evicts down to keep entries
// whenever it grows past that count.
func NewEmbeddingCache(keep int) *EmbeddingCache {
	if keep <= 0 {
		keep = 10000
	}
	return &EmbeddingCache{
		keep:  keep,
		order: list.New(),
		items: make(map[string]*list.Element),
	}
}

func cacheKey(provider, model, contentHash string) string {
	return provider + "\x00" + model + "\x00" + contentHash
}

// Get returns the cached vector for (provider, model, contentHash), if any.
func (c *EmbeddingCache) Get(provider, model, contentHash string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(provider, model, contentHash)
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).vector, true
}

// Put stores vector under (provider, model, contentHash), evicting the
// least-recently-used entries down to the configured keep count.
func (c *EmbeddingCache) Put(provider, model, contentHash string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(provider, model, contentHash)
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).vector = vector
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheEntry{key: key, vector: vector})
	c.items[key] = el

	for c.order.Len() > c.keep {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

// Len returns the current number of cached entries.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
