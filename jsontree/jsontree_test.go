package jsontree

import (
	"encoding/json"
	"testing"
)

func parse(t *testing.T, raw string) interface{} {
	t.Helper()
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("bad test JSON: %v", err)
	}
	return v
}

func TestCollect_DoesNotDescendIntoMatches(t *testing.T) {
	tree := parse(t, `{
		"outer": [
			{"kind": "hit", "nested": {"kind": "hit", "label": "inner"}},
			{"kind": "miss", "child": {"kind": "hit", "label": "deep"}}
		]
	}`)

	hits := Collect(tree, func(obj map[string]interface{}) bool {
		return obj["kind"] == "hit"
	})

	// The inner hit lives inside a match and must not be counted; the
	// deep one lives inside a miss and must be.
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	for _, h := range hits {
		if h["label"] == "inner" {
			t.Fatal("collected an object nested inside a match")
		}
	}
}

func TestFindKey(t *testing.T) {
	tree := parse(t, `{"a": [{"b": {"target": 42}}], "c": {"target": null}}`)

	v, ok := FindKey(tree, "target")
	if !ok {
		t.Fatal("expected to find the key")
	}
	// The null occurrence does not count as found.
	if n, _ := v.(float64); n != 42 {
		t.Fatalf("expected 42, got %v", v)
	}

	if _, ok := FindKey(tree, "absent"); ok {
		t.Fatal("found a key that does not exist")
	}
}

func TestFindStringByKeys(t *testing.T) {
	tree := parse(t, `{"wrap": [{"cityName": "  Київ  "}, {"city": "Львів"}]}`)

	got := FindStringByKeys(tree, map[string]bool{"cityName": true})
	if got != "Київ" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	if got := FindStringByKeys(tree, map[string]bool{"nope": true}); got != "" {
		t.Fatalf("expected empty for missing keys, got %q", got)
	}
}

func TestFindString(t *testing.T) {
	tree := parse(t, `{"list": ["plain", "https://cdn.example/img.jpg"]}`)

	got := FindString(tree, func(s string) bool {
		return len(s) > 10
	})
	if got != "https://cdn.example/img.jpg" {
		t.Fatalf("unexpected match %q", got)
	}
}
