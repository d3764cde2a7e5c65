package config

import (
	"testing"
	"time"
)

func TestIntAndDuration(t *testing.T) {
	t.Setenv("TEST_SLOT_INTERVAL", "30")
	t.Setenv("TEST_WINDOW", "2h")
	t.Setenv("TEST_BAD_INT", "thirty")

	n, err := Int("TEST_SLOT_INTERVAL", 15)
	if err != nil || n != 30 {
		t.Fatalf("expected 30, got %d (err=%v)", n, err)
	}
	if n, err := Int("TEST_UNSET_INT", 15); err != nil || n != 15 {
		t.Fatalf("expected fallback 15, got %d (err=%v)", n, err)
	}
	if _, err := Int("TEST_BAD_INT", 15); err == nil {
		t.Fatal("expected error for malformed integer")
	}

	d, err := Duration("TEST_WINDOW", time.Minute)
	if err != nil || d != 2*time.Hour {
		t.Fatalf("expected 2h, got %s (err=%v)", d, err)
	}
}

func TestPortAndList(t *testing.T) {
	t.Setenv("TEST_PORT", "70000")
	if _, err := Port("TEST_PORT", "8080"); err == nil {
		t.Fatal("expected out-of-range port to fail")
	}

	t.Setenv("TEST_LIST", " a, ,b ,c")
	got := List("TEST_LIST", "")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected list: %#v", got)
	}
	if !Bool("TEST_UNSET_BOOL", true) {
		t.Fatal("expected bool fallback")
	}
}
