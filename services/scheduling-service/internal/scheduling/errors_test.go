package scheduling

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, ""},
		{ErrNotFound, KindNotFound},
		{fmt.Errorf("wrapped: %w", ErrSlotConflict), KindSlotConflict},
		{context.DeadlineExceeded, KindTransient},
		{errors.New("boom"), KindTransient},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("KindOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestErrorIsMatchesKindNotMessage(t *testing.T) {
	err := newError(KindInvalidSlot, "Cannot book past time")
	if !errors.Is(err, ErrInvalidSlot) {
		t.Fatal("expected kind match")
	}
	if errors.Is(err, ErrSlotConflict) {
		t.Fatal("different kinds must not match")
	}
}

func TestTransientWrapsOnlyForeignErrors(t *testing.T) {
	if got := transient(ErrUnauthorized); got != ErrUnauthorized {
		t.Fatalf("engine errors must pass through, got %v", got)
	}
	cause := errors.New("dial tcp: refused")
	err := transient(cause)
	if KindOf(err) != KindTransient || !errors.Is(err, cause) {
		t.Fatalf("expected transient wrapping %v, got %v", cause, err)
	}
	if transient(nil) != nil {
		t.Fatal("nil stays nil")
	}
}
