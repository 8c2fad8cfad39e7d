package router

import "sync"

// AllMethods lists the HTTP methods Any() registers a handler for — the
// method set named in §3's Request entity.
var AllMethods = []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

// Router owns the trie and its resolution cache for the server's lifetime
// (§3 Ownership).
type Router struct {
	mu           sync.RWMutex
	t            *trie
	cache        *lru
	cacheEnabled bool
}

// New builds a Router. cacheCapacity <= 0 disables the cache entirely.
func New(cacheCapacity int) *Router {
	r := &Router{t: newTrie()}
	if cacheCapacity > 0 {
		r.cache = newLRU(cacheCapacity)
		r.cacheEnabled = true
	}
	return r
}

// Insert registers handler for method+pattern. Returns ErrInvalidPattern for
// a malformed pattern (empty parameter name, misplaced wildcard) or
// ErrDuplicateRoute if method+pattern was already registered.
func (r *Router) Insert(method, pattern string, handler Handler, meta Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.t.insert(method, pattern, handler, meta); err != nil {
		return err
	}
	r.invalidateCacheLocked()
	return nil
}

// Any registers handler for pattern under every method in AllMethods.
func (r *Router) Any(pattern string, handler Handler, meta Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range AllMethods {
		if err := r.t.insert(m, pattern, handler, meta); err != nil {
			return err
		}
	}
	r.invalidateCacheLocked()
	return nil
}

// Match resolves method+path to a handler and its bound parameters, via the
// cache when enabled and populated, falling through to the trie on a miss.
func (r *Router) Match(method, path string) (Match, error) {
	if r.cacheEnabled {
		key := cacheKey(method, path)
		r.mu.Lock()
		if entry, ok := r.cache.get(key); ok {
			m := Match{Handler: entry.handler, Params: entry.params}
			r.mu.Unlock()
			return m, nil
		}
		r.mu.Unlock()

		r.mu.RLock()
		m, err := r.t.lookup(method, path)
		r.mu.RUnlock()
		if err != nil {
			return Match{}, err
		}
		r.mu.Lock()
		r.cache.put(key, m.Handler, m.Params)
		r.mu.Unlock()
		return m, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.t.lookup(method, path)
}

// AllowedMethods returns the methods registered for path, for building the
// Allow header on a 405 response.
func (r *Router) AllowedMethods(path string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.t.allowedMethods(path)
}

// InvalidateCache drops every cached resolution. Called automatically after
// Insert/Any; exposed for an explicit reconfiguration path that mutates the
// trie through other means.
func (r *Router) InvalidateCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidateCacheLocked()
}

func (r *Router) invalidateCacheLocked() {
	if r.cacheEnabled {
		r.cache.clear()
	}
}

// CacheStats reports cumulative cache counters; zero-valued if caching is
// disabled.
func (r *Router) CacheStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.cacheEnabled {
		return Stats{}
	}
	return Stats{
		Hits:    r.cache.hits,
		Misses:  r.cache.misses,
		Evicts:  r.cache.evicts,
		Entries: r.cache.ll.Len(),
	}
}
