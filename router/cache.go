package router

import "container/list"

// cacheEntry is the cached resolution for one (method, path) key.
type cacheEntry struct {
	key     string
	handler Handler
	params  []Param
}

// lru is a bounded, mutex-guarded LRU cache mapping "METHOD\x00path" to a
// resolved Match. §4.2 requires hit/miss accounting and eviction to stay
// correct under concurrent steady-state reads; a single mutex around
// container/list + map is the standard, easiest-to-reason-about way to get
// that, and the cache is small enough (default 1024 entries) that lock
// contention isn't a concern.
type lru struct {
	capacity int
	ll       *list.List
	items    map[string]*list.Element
	hits     uint64
	misses   uint64
	evicts   uint64
}

func newLRU(capacity int) *lru {
	return &lru{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

func cacheKey(method, path string) string {
	return method + "\x00" + path
}

func (c *lru) get(key string) (cacheEntry, bool) {
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return cacheEntry{}, false
	}
	c.hits++
	c.ll.MoveToFront(el)
	return el.Value.(cacheEntry), true
}

func (c *lru) put(key string, handler Handler, params []Param) {
	if el, ok := c.items[key]; ok {
		el.Value = cacheEntry{key: key, handler: handler, params: params}
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(cacheEntry{key: key, handler: handler, params: params})
	c.items[key] = el
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(cacheEntry).key)
			c.evicts++
		}
	}
}

func (c *lru) clear() {
	c.ll.Init()
	for k := range c.items {
		delete(c.items, k)
	}
}

// Stats reports cumulative hit/miss/eviction counters, for tests and
// metrics. The router itself does not log evictions.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Evicts  uint64
	Entries int
}
