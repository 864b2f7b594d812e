package preview

import "sync"

// cacheLimit bounds the cache; the oldest insertion is evicted when
// the limit is exceeded.
const cacheLimit = 100

// Cache memoizes encoded previews under caller-supplied keys.
// Safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	items map[string]*Encoded
	order []string
}

// NewCache builds an empty cache.
func NewCache() *Cache {
	return &Cache{items: map[string]*Encoded{}}
}

// Get returns the cached preview for key, or nil.
func (c *Cache) Get(key string) *Encoded {
	if key == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[key]
}

// Put stores a preview under key, evicting the oldest entry when full.
func (c *Cache) Put(key string, enc *Encoded) {
	if key == "" || enc == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
		if len(c.order) > cacheLimit {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.items, oldest)
		}
	}
	c.items[key] = enc
}

// Len returns the number of cached previews.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// EncodeCached encodes with memoization: a hit under key is returned
// without re-encoding, a miss is encoded and stored.
func (c *Cache) EncodeCached(key string, src []byte, opts Options) (*Encoded, error) {
	if hit := c.Get(key); hit != nil {
		return hit, nil
	}
	enc, err := Encode(src, opts)
	if err != nil {
		return nil, err
	}
	c.Put(key, enc)
	return enc, nil
}
