package canonhash

import "testing"

func TestSumObjectDeterministic(t *testing.T) {
	a, _, err := SumObject(map[string]any{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("sum err: %v", err)
	}
	b, _, _ := SumObject(map[string]any{"a": 1, "b": 2})
	if a != b {
		t.Fatalf("expected identical digests for equal maps: %s vs %s", a, b)
	}
	c, _, _ := SumObject(map[string]any{"a": 1, "b": 3})
	if a == c {
		t.Fatal("expected different digests for different content")
	}
}

func TestSumObjectHexHasNoPrefix(t *testing.T) {
	h, err := SumObjectHex("x")
	if err != nil {
		t.Fatalf("sum err: %v", err)
	}
	if len(h) != 64 {
		t.Fatalf("expected bare sha256 hex, got %q", h)
	}
}
