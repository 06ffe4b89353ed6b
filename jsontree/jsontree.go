// Package jsontree provides depth-first searches over loosely-typed
// JSON trees (the result of unmarshalling into interface{}). The
// marketplace embeds its application state at unpredictable depths, so
// every consumer shares these walkers instead of hand-rolling
// recursion per call site.
package jsontree

import "strings"

// Collect walks the tree and returns every object the classifier
// accepts. A matched object's subtree is not walked further, so nested
// look-alike structures inside a match are never double-counted.
func Collect(node interface{}, classify func(map[string]interface{}) bool) []map[string]interface{} {
	var found []map[string]interface{}
	collect(node, classify, &found)
	return found
}

func collect(node interface{}, classify func(map[string]interface{}) bool, found *[]map[string]interface{}) {
	switch v := node.(type) {
	case map[string]interface{}:
		if classify(v) {
			*found = append(*found, v)
			return
		}
		for _, child := range v {
			collect(child, classify, found)
		}
	case []interface{}:
		for _, child := range v {
			collect(child, classify, found)
		}
	}
}

// FindKey returns the value of the first object field named key,
// searching depth-first. The boolean reports whether a non-nil value
// was found.
func FindKey(node interface{}, key string) (interface{}, bool) {
	switch v := node.(type) {
	case map[string]interface{}:
		if val, ok := v[key]; ok && val != nil {
			return val, true
		}
		for _, child := range v {
			if val, ok := FindKey(child, key); ok {
				return val, true
			}
		}
	case []interface{}:
		for _, child := range v {
			if val, ok := FindKey(child, key); ok {
				return val, true
			}
		}
	}
	return nil, false
}

// FindStringByKeys returns the first non-empty string value stored
// under any of the given field names, searching depth-first.
func FindStringByKeys(node interface{}, keys map[string]bool) string {
	switch v := node.(type) {
	case map[string]interface{}:
		for k, child := range v {
			if keys[k] {
				if s, ok := child.(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
		for _, child := range v {
			if s := FindStringByKeys(child, keys); s != "" {
				return s
			}
		}
	case []interface{}:
		for _, child := range v {
			if s := FindStringByKeys(child, keys); s != "" {
				return s
			}
		}
	}
	return ""
}

// FindString returns the first string value anywhere in the tree the
// predicate accepts.
func FindString(node interface{}, pred func(string) bool) string {
	switch v := node.(type) {
	case string:
		if pred(v) {
			return v
		}
	case map[string]interface{}:
		for _, child := range v {
			if s := FindString(child, pred); s != "" {
				return s
			}
		}
	case []interface{}:
		for _, child := range v {
			if s := FindString(child, pred); s != "" {
				return s
			}
		}
	}
	return ""
}
