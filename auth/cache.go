package auth

import (
	"container/list"
	"context"
	"sync"
	"time"

	"splitpay/domain/interfaces"
)

// CredentialCache stores verified identities keyed by credential hash so
// repeated requests skip the identity provider within the cache TTL.
type CredentialCache interface {
	Get(ctx context.Context, key string) (interfaces.Identity, bool, error)
	Set(ctx context.Context, key string, identity interfaces.Identity, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MemoryCredentialCache is an in-process CredentialCache with TTL and
// size-based LRU eviction. Suitable for single-instance deployments; use the
// redis cache when multiple instances must share verification state.
type MemoryCredentialCache struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	lru     *list.List
}

type cacheItem struct {
	key       string
	identity  interfaces.Identity
	expiresAt time.Time
}

// NewMemoryCredentialCache creates a new in-process credential cache
func NewMemoryCredentialCache(maxSize int) *MemoryCredentialCache {
	return &MemoryCredentialCache{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Get retrieves a cached identity; expired entries count as misses.
func (c *MemoryCredentialCache) Get(ctx context.Context, key string) (interfaces.Identity, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		return interfaces.Identity{}, false, nil
	}

	item := elem.Value.(*cacheItem)
	if time.Now().After(item.expiresAt) {
		c.removeElement(elem)
		return interfaces.Identity{}, false, nil
	}

	c.lru.MoveToFront(elem)
	return item.identity, true, nil
}

// Set stores an identity with the given TTL
func (c *MemoryCredentialCache) Set(ctx context.Context, key string, identity interfaces.Identity, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem{
		key:       key,
		identity:  identity,
		expiresAt: time.Now().Add(ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return nil
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem

	if c.lru.Len() > c.maxSize {
		oldest := c.lru.Back()
		if oldest != nil {
			c.removeElement(oldest)
		}
	}
	return nil
}

// Delete removes a key from the cache
func (c *MemoryCredentialCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
	return nil
}

func (c *MemoryCredentialCache) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem)
	delete(c.items, item.key)
	c.lru.Remove(elem)
}
