package tts

import (
	"container/list"
	"context"
	"crypto/sha256"
	"sync"
)

// DefaultCacheEntries is the default number of cached syntheses.
const DefaultCacheEntries = 256

// CachedProvider memoizes syntheses by text. Fixed prompts (greeting,
// apology, closing remarks) repeat on every call.
type CachedProvider struct {
	Provider

	mu      sync.Mutex
	max     int
	order   *list.List
	entries map[[sha256.Size]byte]*list.Element

	hits, misses uint64
}

type cacheEntry struct {
	key [sha256.Size]byte
	syn Synthesis
}

// WithCache wraps p in an LRU cache holding up to max entries.
func WithCache(p Provider, max int) *CachedProvider {
	if max <= 0 {
		max = DefaultCacheEntries
	}
	return &CachedProvider{
		Provider: p,
		max:      max,
		order:    list.New(),
		entries:  make(map[[sha256.Size]byte]*list.Element),
	}
}

// Synthesize implements Provider. Failures are not cached.
func (c *CachedProvider) Synthesize(ctx context.Context, text string) (*Synthesis, error) {
	key := sha256.Sum256([]byte(text))

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		syn := el.Value.(*cacheEntry).syn
		c.hits++
		c.mu.Unlock()
		return &syn, nil
	}
	c.misses++
	c.mu.Unlock()

	syn, err := c.Provider.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		return syn, nil
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, syn: *syn})
	for c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	return syn, nil
}

// Stats returns cache hits and misses.
func (c *CachedProvider) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of cached entries.
func (c *CachedProvider) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
