package querycache

import "strings"

var segmentEscaper = strings.NewReplacer(`\`, `\\`, "/", `\/`)

// Key identifies a cached query as a path of segments, most general first,
// e.g. notes/list/<filter>. Invalidating a key invalidates every key it
// prefixes.
type Key []string

// NewKey builds a key from segments.
func NewKey(segments ...string) Key {
	return Key(segments)
}

// Append returns a new key with segments added.
func (k Key) Append(segments ...string) Key {
	out := make(Key, 0, len(k)+len(segments))
	out = append(out, k...)
	return append(out, segments...)
}

// HasPrefix reports whether p is a segment-wise prefix of k.
func (k Key) HasPrefix(p Key) bool {
	if len(p) > len(k) {
		return false
	}
	for i := range p {
		if k[i] != p[i] {
			return false
		}
	}
	return true
}

// String joins the segments with "/". Segments containing "/" are escaped
// so that distinct keys never collide.
func (k Key) String() string {
	parts := make([]string, len(k))
	for i, s := range k {
		parts[i] = segmentEscaper.Replace(s)
	}
	return strings.Join(parts, "/")
}
