package fuzzycache

import (
	"fmt"
	"slices"
	"strings"
)

// NormalizeKey returns the form under which key is stored and looked up.
// Keys that differ only in case address the same entry.
func NormalizeKey(key string) string {
	return strings.ToLower(key)
}

// KeyOf converts an arbitrary value to a key string with [fmt.Sprint], for
// callers keyed by numbers or other printable values.
func KeyOf(v any) string {
	return fmt.Sprint(v)
}

// insertKey adds key to the sorted index. It reports whether the key was new.
func insertKey(keys []string, key string) ([]string, bool) {
	i, found := slices.BinarySearch(keys, key)
	if found {
		return keys, false
	}

	return slices.Insert(keys, i, key), true
}

// removeKey drops key from the sorted index if present.
func removeKey(keys []string, key string) []string {
	i, found := slices.BinarySearch(keys, key)
	if !found {
		return keys
	}

	return slices.Delete(keys, i, i+1)
}
