package common

import "testing"

func TestSanitizeFieldsCleansStringValuesOnly(t *testing.T) {
	in := map[string]interface{}{
		"query": "bad\ninput",
		"count": 3,
	}
	out := sanitizeFields(in)
	if out["query"] != "bad input" {
		t.Fatalf("expected sanitized query, got %q", out["query"])
	}
	if out["count"] != 3 {
		t.Fatalf("expected non-string field untouched, got %v", out["count"])
	}
}

func TestSanitizeFieldsNilPassthrough(t *testing.T) {
	if sanitizeFields(nil) != nil {
		t.Fatal("expected nil fields to pass through as nil")
	}
}
