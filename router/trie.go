package router

import (
	"strings"

	"github.com/badu/h3/errs"
)

// splitSegments splits a pattern into '/'-separated segments, dropping the
// leading empty segment a rooted pattern produces ("/a/b" -> ["a","b"]).
// "/" itself yields zero segments (the root node).
func splitSegments(pattern string) []string {
	trimmed := strings.Trim(pattern, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parseSegment(raw string) (segment, error) {
	switch {
	case strings.HasPrefix(raw, ":"):
		name := raw[1:]
		if name == "" {
			return segment{}, errs.ErrInvalidPattern
		}
		return segment{kind: segParam, text: name}, nil
	case strings.HasPrefix(raw, "*"):
		name := raw[1:]
		return segment{kind: segWildcard, text: name}, nil
	default:
		return segment{kind: segLiteral, text: raw}, nil
	}
}

// insert walks/creates nodes along pattern and registers handler for method
// at the terminal node. It enforces: wildcard only as the final segment, at
// most one parameter and one wildcard child per node (implied by reusing the
// single param/wildcard slot), and method+pattern uniqueness.
func (t *trie) insert(method, pattern string, handler Handler, meta Metadata) error {
	raw := splitSegments(pattern)
	segs := make([]segment, 0, len(raw))
	for i, r := range raw {
		seg, err := parseSegment(r)
		if err != nil {
			return err
		}
		if seg.kind == segWildcard && i != len(raw)-1 {
			return errs.ErrInvalidPattern
		}
		segs = append(segs, seg)
	}

	n := t.root
	for _, seg := range segs {
		switch seg.kind {
		case segLiteral:
			child, ok := n.literal[seg.text]
			if !ok {
				child = newNode()
				n.literal[seg.text] = child
			}
			n = child
		case segParam:
			if n.param == nil {
				n.param = newNode()
				n.paramName = seg.text
			} else if n.paramName != seg.text {
				// Two different parameter names at the same trie position
				// would make matching ambiguous about which name to bind;
				// reject rather than silently pick one.
				return errs.ErrInvalidPattern
			}
			n = n.param
		case segWildcard:
			if n.wildcard == nil {
				n.wildcard = newNode()
				n.wildcardName = seg.text
			}
			n = n.wildcard
		}
	}

	if n.handlers == nil {
		n.handlers = make(map[string]Handler)
		n.meta = make(map[string]Metadata)
	}
	if _, exists := n.handlers[method]; exists {
		return errs.ErrDuplicateRoute
	}
	n.handlers[method] = handler
	if meta != nil {
		n.meta[method] = meta
	}
	return nil
}

// lookup walks the trie for path under method, implementing the tie-break
// rule literal > parameter > wildcard at every node. Because insert allows
// at most one parameter child and one wildcard child per node, there is
// never more than one viable next node at each step — no backtracking is
// needed.
func (t *trie) lookup(method, path string) (Match, error) {
	segs := splitSegments(path)

	n := t.root
	var params []Param
	for i := 0; i < len(segs); i++ {
		seg := segs[i]
		if child, ok := n.literal[seg]; ok {
			n = child
			continue
		}
		if n.param != nil {
			params = append(params, Param{Name: n.paramName, Value: seg})
			n = n.param
			continue
		}
		if n.wildcard != nil {
			remainder := strings.Join(segs[i:], "/")
			params = append(params, Param{Name: n.wildcardName, Value: remainder})
			n = n.wildcard
			goto matched
		}
		return Match{}, errs.ErrNotFound
	}
	// Path exhausted at a node with no handler for method: a wildcard child
	// still matches, capturing an empty remainder.
	if _, ok := n.handlers[method]; !ok && n.wildcard != nil {
		params = append(params, Param{Name: n.wildcardName, Value: ""})
		n = n.wildcard
	}

matched:
	if n.handlers == nil {
		return Match{}, errs.ErrNotFound
	}
	if h, ok := n.handlers[method]; ok {
		return Match{Handler: h, Params: params}, nil
	}
	// Node exists and serves other methods: 405, not 404.
	return Match{}, errs.ErrMethodNotAllowed
}

// allowedMethods returns the methods registered at the node path resolves
// to, for building the Allow header on a 405.
func (t *trie) allowedMethods(path string) []string {
	segs := splitSegments(path)
	n := t.root
	for i := 0; i < len(segs); i++ {
		seg := segs[i]
		if child, ok := n.literal[seg]; ok {
			n = child
			continue
		}
		if n.param != nil {
			n = n.param
			continue
		}
		if n.wildcard != nil {
			break
		}
		return nil
	}
	methods := make([]string, 0, len(n.handlers))
	for m := range n.handlers {
		methods = append(methods, m)
	}
	return methods
}

type trie struct {
	root *node
}

func newTrie() *trie {
	return &trie{root: newNode()}
}
