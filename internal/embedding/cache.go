package embedding

import (
	"container/list"
	"context"
	"sync"
)

// Cache is an LRU cache for embeddings keyed by text.
type Cache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.RWMutex
}

type cacheEntry struct {
	key   string
	value []float32
}

// NewCache creates a cache with the given capacity.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Cache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached embedding for key if present.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

// Set stores the embedding for key, evicting the oldest entry at capacity.
func (c *Cache) Set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}
	elem := c.lru.PushFront(&cacheEntry{key: key, value: value})
	c.cache[key] = elem
	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// CachedEmbedder wraps an Embedder with an LRU cache so repeated chunks and
// questions are embedded once.
type CachedEmbedder struct {
	inner Embedder
	cache *Cache
}

// NewCachedEmbedder wraps inner with a cache of the given capacity.
func NewCachedEmbedder(inner Embedder, capacity int) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: NewCache(capacity)}
}

// Embed returns the cached embedding or delegates to the inner embedder.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return v, nil
	}
	v, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, v)
	return v, nil
}

// EmbedBatch embeds only the texts missing from the cache.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	missing := make([]string, 0, len(texts))
	missingIdx := make([]int, 0, len(texts))
	for i, t := range texts {
		if v, ok := e.cache.Get(t); ok {
			out[i] = v
		} else {
			missing = append(missing, t)
			missingIdx = append(missingIdx, i)
		}
	}
	if len(missing) > 0 {
		vecs, err := e.inner.EmbedBatch(ctx, missing)
		if err != nil {
			return nil, err
		}
		for j, v := range vecs {
			out[missingIdx[j]] = v
			e.cache.Set(missing[j], v)
		}
	}
	return out, nil
}

// Dimensions returns the inner embedder's dimension.
func (e *CachedEmbedder) Dimensions() int { return e.inner.Dimensions() }

// Close closes the inner embedder.
func (e *CachedEmbedder) Close() error { return e.inner.Close() }

var _ Embedder = (*CachedEmbedder)(nil)
