// Package pool implements the Memory Pools component of §4.6: a
// fixed-capacity object pool with a free-bitset for Event reuse, and an
// arena allocator for response header bytes. Both exist to keep per-request
// allocation off the hot path the way the teacher's bufio.Reader/Writer
// sync.Pool pairs (putBufioReader/putBufioWriter in types_server.go) keep
// buffer churn down — generalized here into a reusable generic pool instead
// of one-off sync.Pools per type.
package pool

import (
	"sync"

	"github.com/badu/h3/errs"
)

// Pool hands out and reclaims *T values from a fixed-size slab, falling
// back to direct allocation when configured to (and the slab is
// exhausted), or returning ErrPoolExhausted otherwise.
type Pool[T any] struct {
	mu       sync.Mutex
	slab     []T
	index    map[*T]int
	free     bitset
	size     int
	resetFn  func(*T)
	fallback bool
}

// New builds a Pool with a slab of `size` pre-allocated T values. resetFn,
// if non-nil, is invoked on every Acquire and Release to bring the item back
// to its zero-ish state (clearing maps/slices without deallocating them).
// When fallback is true, Acquire allocates a fresh *T (untracked by the
// slab) once the slab is exhausted instead of failing.
func New[T any](size int, resetFn func(*T), fallback bool) *Pool[T] {
	p := &Pool[T]{
		slab:     make([]T, size),
		index:    make(map[*T]int, size),
		free:     newBitset(size),
		size:     size,
		resetFn:  resetFn,
		fallback: fallback,
	}
	for i := range p.slab {
		item := &p.slab[i]
		p.index[item] = i
		p.free.set(i)
		if resetFn != nil {
			resetFn(item)
		}
	}
	return p
}

// Acquire pops a free slab slot, or allocates directly if the slab is
// exhausted and fallback allocation is enabled.
func (p *Pool[T]) Acquire() (*T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.free.firstSet(p.size); ok {
		p.free.clear(idx)
		item := &p.slab[idx]
		if p.resetFn != nil {
			p.resetFn(item)
		}
		return item, nil
	}
	if p.fallback {
		item := new(T)
		if p.resetFn != nil {
			p.resetFn(item)
		}
		return item, nil
	}
	return nil, errs.ErrPoolExhausted
}

// Release resets item and returns it to the free-list if it belongs to the
// slab; fallback-allocated items are simply reset and left for the garbage
// collector.
func (p *Pool[T]) Release(item *T) {
	if item == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.resetFn != nil {
		p.resetFn(item)
	}
	if idx, ok := p.index[item]; ok {
		p.free.set(idx)
	}
}

// InUse returns the number of slab slots currently checked out, for tests
// and metrics.
func (p *Pool[T]) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	used := 0
	for i := 0; i < p.size; i++ {
		if !p.free.test(i) {
			used++
		}
	}
	return used
}
