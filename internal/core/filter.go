package core

import "strings"

// Filter returns, in input order, the transactions whose description contains
// term case-insensitively. An empty term matches everything.
//
// The result is always a fresh slice; callers may keep it while data changes.
func Filter(data []Transaction, term string) []Transaction {
	needle := strings.ToLower(term)
	out := make([]Transaction, 0, len(data))
	for _, t := range data {
		if strings.Contains(strings.ToLower(t.Description), needle) {
			out = append(out, t)
		}
	}
	return out
}

// Without returns data minus every entry whose id equals id. Relative order of
// the rest is preserved.
func Without(data []Transaction, id ID) []Transaction {
	out := make([]Transaction, 0, len(data))
	for _, t := range data {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

// Contains reports whether data holds an entry with the given id.
func Contains(data []Transaction, id ID) bool {
	for _, t := range data {
		if t.ID == id {
			return true
		}
	}
	return false
}
