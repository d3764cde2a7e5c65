package model

import "testing"

func TestStatusTransitions(t *testing.T) {
	if !StatusConfirmed.CanTransitionTo(StatusCancelled) {
		t.Fatal("confirmed -> cancelled must be allowed")
	}
	if StatusCancelled.CanTransitionTo(StatusCancelled) {
		t.Fatal("cancelled is terminal")
	}
	if StatusCancelled.CanTransitionTo(StatusConfirmed) {
		t.Fatal("cancelled cannot be revived")
	}
	if StatusCancelled.Active() || !StatusConfirmed.Active() {
		t.Fatal("unexpected Active() result")
	}
}
