// Package attrs reads slog-style key/value attribute slices.
package attrs

import "fmt"

// ExtractString extracts a string value from a key-value attribute slice.
// The slice should be formatted as [key1, value1, key2, value2, ...].
// Returns empty string if the key is not found or the value is not a string.
func ExtractString(attrs []any, key string) string {
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok {
			continue
		}
		if k == key {
			if v, ok := attrs[i+1].(string); ok {
				return v
			}
		}
	}
	return ""
}

// ToMap renders the pairs as strings, dropping the listed keys. Values are
// formatted with fmt.Sprint; a trailing key without a value is ignored.
func ToMap(attrs []any, drop ...string) map[string]string {
	out := make(map[string]string, len(attrs)/2)
outer:
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok {
			continue
		}
		for _, d := range drop {
			if k == d {
				continue outer
			}
		}
		out[k] = fmt.Sprint(attrs[i+1])
	}
	return out
}
