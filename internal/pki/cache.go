package pki

import (
	"container/list"
	"crypto/tls"
	"sync"
)

// leafCache is a size-bounded cache of minted leaf certificates keyed
// by host. It evicts the least-recently-used entry once it grows past
// its capacity. Precise LRU bookkeeping is worth the small overhead
// here because, unlike a short-TTL cache, this cache's entries only
// expire when evicted or when the process restarts.
type leafCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
}

type leafCacheEntry struct {
	host string
	cert *tls.Certificate
}

func newLeafCache(capacity int) *leafCache {
	return &leafCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *leafCache) get(host string) (*tls.Certificate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[host]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*leafCacheEntry).cert, true
}

func (c *leafCache) put(host string, cert *tls.Certificate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[host]; ok {
		el.Value.(*leafCacheEntry).cert = cert
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&leafCacheEntry{host: host, cert: cert})
	c.entries[host] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*leafCacheEntry).host)
	}
}
