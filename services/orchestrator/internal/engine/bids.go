package engine

import (
	"context"
	"errors"

	"tdrlane/pkg/domain"
	"tdrlane/services/orchestrator/internal/store"

	"github.com/google/uuid"
)

type BidReceipt struct {
	ReceiptID string    `json:"receipt_id"`
	LedgerSeq int64     `json:"ledger_seq"`
	Bid       store.Bid `json:"bid"`
}

var actionForKind = map[domain.BidKind]domain.Action{
	domain.BidAsk:         domain.ActionSubmitAsk,
	domain.BidQuote:       domain.ActionSubmitQuote,
	domain.BidPreferences: domain.ActionSubmitPreferences,
	domain.BidValuation:   domain.ActionSubmitValuation,
}

// UpsertBid saves or submits the caller's single active bid for a round.
// SAVE overwrites the draft in place; SUBMIT is one-way. Payload validation
// happens before gating, and nothing is persisted on any failure path.
func (e *Engine) UpsertBid(ctx context.Context, actor domain.ActorContext, projectID string, t int, payload map[string]any, action domain.BidAction) (BidReceipt, error) {
	kind, ok := domain.KindForRole(actor.Role)
	if !ok {
		e.metrics.Denied(string(domain.DenyRoleMismatch))
		return BidReceipt{}, &domain.DeniedError{Reason: domain.DenyRoleMismatch, Message: "role has no bid shape"}
	}
	if err := domain.ValidateBidPayload(kind, payload); err != nil {
		return BidReceipt{}, err
	}

	unlock := e.lockProject(projectID)
	defer unlock()

	in, p, err := e.baseGateInput(ctx, actor, actionForKind[kind], projectID)
	if err != nil {
		return BidReceipt{}, err
	}
	round, err := e.store.GetRound(ctx, projectID, t)
	if err == nil {
		in.RoundExists = true
		in.RoundState = round.State
		in.Window = round.Window()
	} else if !errors.Is(err, store.ErrNotFound) {
		return BidReceipt{}, err
	}

	enrolled, err := e.store.HasActiveMembership(ctx, projectID, actor.ActorID, string(actor.Role))
	if err != nil {
		return BidReceipt{}, err
	}
	in.ActiveMembership = enrolled

	if kind == domain.BidPreferences && p.Workflow == domain.WorkflowSlum && e.consents != nil {
		given, err := e.consents.ConsentGiven(ctx, projectID, actor.ActorID)
		if err != nil {
			return BidReceipt{}, err
		}
		in.ConsentGiven = given
		count, err := e.consents.DocumentCount(ctx, projectID, actor.ActorID)
		if err != nil {
			return BidReceipt{}, err
		}
		in.DocumentCount = count
	}

	if err := e.deny(domain.Decide(in)); err != nil {
		return BidReceipt{}, err
	}

	existing, err := e.store.GetBid(ctx, projectID, t, actor.ActorID)
	if err != nil {
		return BidReceipt{}, err
	}
	if existing != nil && existing.State != domain.BidDraft {
		// Submitted bids only change state through the round lock transition.
		e.metrics.Denied(string(domain.DenyBidAlreadySubmitted))
		return BidReceipt{}, &domain.DeniedError{Reason: domain.DenyBidAlreadySubmitted, Message: "bid can no longer be changed by the participant"}
	}

	if err := e.ensureAppendable(ctx, p.Workflow, projectID); err != nil {
		return BidReceipt{}, err
	}

	now := e.now().UTC()
	b := store.Bid{
		BidID:         "bid_" + uuid.NewString(),
		ProjectID:     projectID,
		T:             t,
		ParticipantID: actor.ActorID,
		Kind:          kind,
		State:         domain.BidDraft,
		Payload:       payload,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if existing != nil {
		b.BidID = existing.BidID
		b.CreatedAt = existing.CreatedAt
	}
	ledgerAction := "BID_SAVED"
	if action == domain.BidSubmit {
		b.State = domain.BidSubmitted
		b.SubmittedAt = &now
		ledgerAction = "BID_SUBMITTED"
	}
	if err := e.store.UpsertBid(ctx, b); err != nil {
		return BidReceipt{}, err
	}
	entry, err := e.append(ctx, p.Workflow, projectID, actor.ActorID, ledgerAction, map[string]any{
		"t": t, "bid_id": b.BidID, "kind": string(kind),
	})
	if err != nil {
		return BidReceipt{}, err
	}
	e.metrics.Bid(string(kind), string(action))
	return BidReceipt{ReceiptID: newReceiptID(), LedgerSeq: entry.Seq, Bid: b}, nil
}

// MyBid returns the caller's most recent bid record for a round, or nil.
func (e *Engine) MyBid(ctx context.Context, actor domain.ActorContext, projectID string, t int) (*store.Bid, error) {
	if _, err := e.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return e.store.GetBid(ctx, projectID, t, actor.ActorID)
}
