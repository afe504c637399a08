package domain

import (
	"errors"
	"testing"
	"time"
)

func TestRoundTransitionEdges(t *testing.T) {
	states := []RoundState{RoundNew, RoundOpen, RoundClosed, RoundLocked}
	legal := map[[2]RoundState]bool{
		{RoundNew, RoundOpen}:      true,
		{RoundOpen, RoundClosed}:   true,
		{RoundClosed, RoundLocked}: true,
	}
	for _, from := range states {
		for _, to := range states {
			got := CanTransition(from, to)
			if got != legal[[2]RoundState{from, to}] {
				t.Fatalf("CanTransition(%s,%s)=%v", from, to, got)
			}
		}
	}
}

func TestCheckTransitionError(t *testing.T) {
	err := CheckTransition(RoundNew, RoundClosed)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if te.From != RoundNew || te.To != RoundClosed {
		t.Fatalf("unexpected edge in error: %s -> %s", te.From, te.To)
	}
	if err := CheckTransition(RoundClosed, RoundLocked); err != nil {
		t.Fatalf("legal edge rejected: %v", err)
	}
}

func TestBidWindowContains(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	if !(BidWindow{}).Contains(now) {
		t.Fatal("empty window should accept any time")
	}
	if !(BidWindow{Start: &before, End: &after}).Contains(now) {
		t.Fatal("expected now inside window")
	}
	if (BidWindow{Start: &after}).Contains(now) {
		t.Fatal("expected now before start to be rejected")
	}
	if (BidWindow{End: &before}).Contains(now) {
		t.Fatal("expected now after end to be rejected")
	}
}
