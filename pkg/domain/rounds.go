package domain

import "time"

type RoundState string

const (
	RoundNew    RoundState = "NEW"
	RoundOpen   RoundState = "OPEN"
	RoundClosed RoundState = "CLOSED"
	RoundLocked RoundState = "LOCKED"
)

// Terminal reports whether a round in this state blocks creation of its
// successor. Only LOCKED does not.
func (s RoundState) Terminal() bool { return s == RoundLocked }

func (s RoundState) Valid() bool {
	switch s {
	case RoundNew, RoundOpen, RoundClosed, RoundLocked:
		return true
	}
	return false
}

// CanTransition encodes the only legal edges: NEW -> OPEN -> CLOSED -> LOCKED.
// State never moves backward and never skips.
func CanTransition(from, to RoundState) bool {
	switch from {
	case RoundNew:
		return to == RoundOpen
	case RoundOpen:
		return to == RoundClosed
	case RoundClosed:
		return to == RoundLocked
	}
	return false
}

// CheckTransition returns a TransitionError for an illegal edge.
func CheckTransition(from, to RoundState) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// BidWindow is an optional bidding window on an open round. When set it is
// enforced server-side on bid acceptance, layered on top of the state check.
type BidWindow struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

func (w BidWindow) Contains(now time.Time) bool {
	if w.Start != nil && now.Before(*w.Start) {
		return false
	}
	if w.End != nil && now.After(*w.End) {
		return false
	}
	return true
}
