package securestore

import (
	"container/list"
	"sync"
)

const defaultCacheSize = 128

type cacheEntry struct {
	key   string
	value []byte
}

// secretCache is a bounded LRU of retrieved values. Evicted and removed
// values are zeroed before the entry is dropped.
type secretCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List
}

func newSecretCache(capacity int) *secretCache {
	if capacity <= 0 {
		capacity = defaultCacheSize
	}
	return &secretCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *secretCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return "", false
	}
	c.order.MoveToFront(elem)
	return string(elem.Value.(*cacheEntry).value), true
}

func (c *secretCache) put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry)
		wipe(entry.value)
		entry.value = []byte(value)
		c.order.MoveToFront(elem)
		return
	}

	c.items[key] = c.order.PushFront(&cacheEntry{key: key, value: []byte(value)})
	if c.order.Len() > c.capacity {
		c.drop(c.order.Back())
	}
}

func (c *secretCache) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.drop(elem)
	}
}

func (c *secretCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, elem := range c.items {
		wipe(elem.Value.(*cacheEntry).value)
	}
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

func (c *secretCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Must be called with lock held.
func (c *secretCache) drop(elem *list.Element) {
	if elem == nil {
		return
	}
	entry := c.order.Remove(elem).(*cacheEntry)
	delete(c.items, entry.key)
	wipe(entry.value)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
