package domain

import "fmt"

const (
	CodeInvalidTransition        = "INVALID_TRANSITION"
	CodeActionDenied             = "ACTION_DENIED"
	CodeInvalidBidValue          = "INVALID_BID_VALUE"
	CodeComputationFailed        = "COMPUTATION_FAILED"
	CodeLedgerIntegrityViolation = "LEDGER_INTEGRITY_VIOLATION"
)

// TransitionError reports an illegal round state change. No ledger entry is
// written for a rejected transition.
type TransitionError struct {
	From   RoundState
	To     RoundState
	Detail string
}

func (e *TransitionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("cannot transition round %s -> %s: %s", e.From, e.To, e.Detail)
	}
	return fmt.Sprintf("cannot transition round %s -> %s", e.From, e.To)
}

// DeniedError carries the gating engine's machine-readable reason verbatim.
type DeniedError struct {
	Reason  DenyReason
	Message string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("action denied (%s): %s", e.Reason, e.Message)
}

// BidValueError rejects a bid payload before anything is persisted.
type BidValueError struct {
	Field  string
	Reason string
}

func (e *BidValueError) Error() string {
	return fmt.Sprintf("bid field %q invalid: %s", e.Field, e.Reason)
}
