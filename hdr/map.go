package hdr

import "io"

// Map holds HTTP header fields with case-insensitive names, preserving the
// order in which distinct names were first added. §3 requires response
// headers to serialize in insertion order, unlike net/http's Header which
// sorts keys on write — that's the one deliberate behavioral split from the
// teacher package this was adapted from.
type Map struct {
	order []string
	vals  map[string][]string
}

// New returns an empty, ready-to-use Map.
func New() *Map {
	return &Map{vals: make(map[string][]string)}
}

// Add appends value to any existing values for key.
func (m *Map) Add(key, value string) {
	key = CanonicalHeaderKey(key)
	if _, ok := m.vals[key]; !ok {
		m.order = append(m.order, key)
	}
	m.vals[key] = append(m.vals[key], value)
}

// Set replaces any existing values for key with the single value given.
func (m *Map) Set(key, value string) {
	key = CanonicalHeaderKey(key)
	if _, ok := m.vals[key]; !ok {
		m.order = append(m.order, key)
	}
	m.vals[key] = []string{value}
}

// Get returns the first value for key, or "" if absent.
func (m *Map) Get(key string) string {
	if m == nil {
		return ""
	}
	v := m.vals[CanonicalHeaderKey(key)]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// Values returns all values for key in insertion order.
func (m *Map) Values(key string) []string {
	if m == nil {
		return nil
	}
	return m.vals[CanonicalHeaderKey(key)]
}

// Has reports whether key has at least one value set.
func (m *Map) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.vals[CanonicalHeaderKey(key)]
	return ok
}

// Del removes all values associated with key.
func (m *Map) Del(key string) {
	key = CanonicalHeaderKey(key)
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Keys returns the canonical header names in insertion order.
func (m *Map) Keys() []string {
	return m.order
}

// Len returns the number of distinct header names set.
func (m *Map) Len() int {
	return len(m.order)
}

// Reset clears the map so it can be reused, e.g. by the Event pool (§4.6).
func (m *Map) Reset() {
	for k := range m.vals {
		delete(m.vals, k)
	}
	m.order = m.order[:0]
}

// Clone returns an independent copy of m.
func (m *Map) Clone() *Map {
	out := New()
	for _, k := range m.order {
		vv := m.vals[k]
		cp := make([]string, len(vv))
		copy(cp, vv)
		out.order = append(out.order, k)
		out.vals[k] = cp
	}
	return out
}

// WriteTo serializes the header in wire format (insertion order), one
// "Name: value\r\n" line per value, skipping any name present in exclude.
func (m *Map) WriteTo(w io.Writer, exclude map[string]bool) error {
	for _, k := range m.order {
		if exclude != nil && exclude[k] {
			continue
		}
		for _, v := range m.vals[k] {
			v = TrimString(v)
			if _, err := io.WriteString(w, k); err != nil {
				return err
			}
			if _, err := io.WriteString(w, ": "); err != nil {
				return err
			}
			if _, err := io.WriteString(w, v); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "\r\n"); err != nil {
				return err
			}
		}
	}
	return nil
}
