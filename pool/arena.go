package pool

import (
	"unsafe"

	"github.com/valyala/bytebufferpool"
)

// Arena is the bulk allocator for a single response's header name/value
// bytes. §9's design notes call out the original source's bug directly:
// freeing each header string individually invalidated iterators mid-loop,
// fixed upstream by switching to one bulk arena per response. Arena keeps
// that fix: every string Intern'd here shares one growing buffer, and the
// whole thing returns to the pool in a single Release call when the owning
// Event is released — no per-entry free ever happens.
type Arena struct {
	buf *bytebufferpool.ByteBuffer
}

// NewArena checks out a buffer from the shared bytebufferpool.Pool.
func NewArena() *Arena {
	return &Arena{buf: bytebufferpool.Get()}
}

// Intern copies s into the arena and returns a string view over that copy.
// The returned string is valid only until Release is called — callers must
// not retain it past the owning Event's lifetime, matching §3's "Parameter
// strings are borrowed ... until the Event is destroyed" invariant extended
// to header strings.
func (a *Arena) Intern(s string) string {
	start := len(a.buf.B)
	a.buf.B = append(a.buf.B, s...)
	b := a.buf.B[start : start+len(s)]
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// Reset truncates the arena for reuse within the same Event lifetime
// without returning the buffer to the pool.
func (a *Arena) Reset() {
	a.buf.Reset()
}

// Release returns the underlying buffer to bytebufferpool in one operation.
// The Arena must not be used afterward.
func (a *Arena) Release() {
	if a.buf != nil {
		bytebufferpool.Put(a.buf)
		a.buf = nil
	}
}
