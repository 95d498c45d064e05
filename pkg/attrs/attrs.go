// Package attrs reads values back out of slog-style key/value argument lists.
package attrs

import "fmt"

// Get returns the value paired with key in kv ([k1, v1, k2, v2, ...]). A key
// that appears more than once resolves to its last value, as slog handlers do.
func Get(kv []any, key string) (any, bool) {
	var (
		found any
		ok    bool
	)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, isString := kv[i].(string); isString && k == key {
			found, ok = kv[i+1], true
		}
	}
	return found, ok
}

// ExtractString returns the value for key as a string. Strings and
// fmt.Stringers are accepted; anything else yields "".
func ExtractString(kv []any, key string) string {
	v, ok := Get(kv, key)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return ""
	}
}
