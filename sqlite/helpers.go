package sqlite

import (
	"encoding/json"
	"fmt"
	"sort"
)

// encodeSet serializes a string set as a sorted, de-duplicated JSON
// array. Sorting makes the encoding stable: round-tripping any set
// reproduces an equal set regardless of input order.
func encodeSet(values []string) ([]byte, error) {
	uniq := make(map[string]bool, len(values))
	set := make([]string, 0, len(values))
	for _, v := range values {
		if uniq[v] {
			continue
		}
		uniq[v] = true
		set = append(set, v)
	}
	sort.Strings(set)
	return json.Marshal(set)
}

// decodeSet deserializes a JSON array written by encodeSet.
func decodeSet(data []byte) ([]string, error) {
	var set []string
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to decode set: %w", err)
	}
	return set, nil
}

// containsString reports whether a sorted or unsorted set holds v.
func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// removeString returns a new set without v. It never mutates its
// input: callers keep the original around as a rollback snapshot.
func removeString(set []string, v string) []string {
	out := make([]string, 0, len(set))
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
