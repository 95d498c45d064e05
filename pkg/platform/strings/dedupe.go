// Package strings holds list helpers shared by config parsing and query filters.
package strings

import (
	"strings"
)

// SplitList splits a comma separated value into trimmed, non-empty, distinct
// entries in their original order.
//
//	SplitList(" user, admin,,user ") // []string{"user", "admin"}
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(value, ","))
}

// DedupeAndTrim trims each element and drops blanks and repeats, keeping the
// first occurrence.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
