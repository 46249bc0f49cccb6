package query

import (
	"strings"

	"github.com/spf13/cast"
)

// Key identifies a remote query, e.g. K("attendance", courseID, date).
type Key []interface{}

func K(parts ...interface{}) Key {
	return Key(parts)
}

// String is the stable form used to index the cache.
func (k Key) String() string {
	parts := make([]string, len(k))
	for i, p := range k {
		parts[i] = strings.ReplaceAll(cast.ToString(p), "\x1f", "")
	}
	return strings.Join(parts, "\x1f")
}

// HasPrefix reports whether k starts with every part of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if cast.ToString(k[i]) != cast.ToString(prefix[i]) {
			return false
		}
	}
	return true
}

// Entity is the first part of the key, used as a low cardinality label.
func (k Key) Entity() string {
	if len(k) == 0 {
		return ""
	}
	return cast.ToString(k[0])
}

func (k Key) with(prefix ...interface{}) Key {
	full := make(Key, 0, len(prefix)+len(k))
	full = append(full, prefix...)
	return append(full, k...)
}
