package util

import "sort"

// Diff returns the elements of s1 missing from s2, in the order they appear in s1
func Diff(s1 []string, s2 []string) []string {
	result := make([]string, 0)
	for _, s := range s1 {
		if !Includes(s2, s) {
			result = append(result, s)
		}
	}

	return result
}

func Includes(ss []string, s string) bool {
	for _, existing := range ss {
		if existing == s {
			return true
		}
	}

	return false
}

// SortedKeys returns the keys of the map in lexical order. Go randomises map iteration,
// so anything deriving columns from a map needs this to be deterministic.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
