package ratelimit

import "testing"

func TestAllowConsumesTokens(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("a", 3, 0) {
			t.Fatalf("request %d should pass within capacity", i)
		}
	}
	if l.Allow("a", 3, 0) {
		t.Fatalf("request past capacity with no refill should be rejected")
	}
}

func TestAllowIsolatesKeys(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0) {
		t.Fatalf("first request for a should pass")
	}
	if l.Allow("a", 1, 0) {
		t.Fatalf("a is exhausted")
	}
	if !l.Allow("b", 1, 0) {
		t.Fatalf("b has its own bucket")
	}
}
