package engine

import (
	"context"

	"tdrlane/pkg/domain"
	"tdrlane/services/orchestrator/internal/store"
)

// OpenRound creates the next round and opens it in one linearized operation.
// The first round gets t=0; afterwards a new round may only be created once
// the previous one is locked.
func (e *Engine) OpenRound(ctx context.Context, actor domain.ActorContext, projectID string, window domain.BidWindow) (Receipt, store.Round, error) {
	unlock := e.lockProject(projectID)
	defer unlock()

	in, p, err := e.baseGateInput(ctx, actor, domain.ActionOpenRound, projectID)
	if err != nil {
		return Receipt{}, store.Round{}, err
	}
	if p.Workflow == domain.WorkflowSlum {
		ready, err := e.tripartiteReady(ctx, projectID)
		if err != nil {
			return Receipt{}, store.Round{}, err
		}
		in.TripartiteReady = ready
	}
	if err := e.deny(domain.Decide(in)); err != nil {
		return Receipt{}, store.Round{}, err
	}

	if err := e.ensureAppendable(ctx, p.Workflow, projectID); err != nil {
		return Receipt{}, store.Round{}, err
	}

	current, err := e.store.CurrentRound(ctx, projectID)
	if err != nil {
		return Receipt{}, store.Round{}, err
	}
	t := 0
	if current != nil {
		if !current.State.Terminal() {
			return Receipt{}, store.Round{}, &domain.TransitionError{
				From: current.State, To: domain.RoundNew,
				Detail: "previous round must be locked before a new one is created",
			}
		}
		t = current.T + 1
	}

	now := e.now().UTC()
	r := store.Round{
		ProjectID:   projectID,
		T:           t,
		State:       domain.RoundNew,
		WindowStart: window.Start,
		WindowEnd:   window.End,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.CreateRound(ctx, r); err != nil {
		return Receipt{}, store.Round{}, err
	}
	if _, err := e.append(ctx, p.Workflow, projectID, actor.ActorID, "ROUND_CREATED", map[string]any{"t": t}); err != nil {
		return Receipt{}, store.Round{}, err
	}

	if err := e.store.SetRoundState(ctx, projectID, t, domain.RoundOpen); err != nil {
		return Receipt{}, store.Round{}, err
	}
	r.State = domain.RoundOpen
	details := map[string]any{"t": t}
	if window.Start != nil {
		details["window_start"] = window.Start.UTC()
	}
	if window.End != nil {
		details["window_end"] = window.End.UTC()
	}
	entry, err := e.append(ctx, p.Workflow, projectID, actor.ActorID, "ROUND_OPENED", details)
	if err != nil {
		return Receipt{}, store.Round{}, err
	}
	e.metrics.Transition(string(p.Workflow), string(domain.RoundOpen))
	return Receipt{ReceiptID: newReceiptID(), LedgerSeq: entry.Seq}, r, nil
}

func (e *Engine) CloseRound(ctx context.Context, actor domain.ActorContext, projectID string, t int) (Receipt, error) {
	return e.transition(ctx, actor, domain.ActionCloseRound, projectID, t, domain.RoundClosed, "ROUND_CLOSED")
}

// LockRound is the terminal transition. Every bid in the round becomes
// immutably locked with it, under the same project lock.
func (e *Engine) LockRound(ctx context.Context, actor domain.ActorContext, projectID string, t int) (Receipt, error) {
	return e.transition(ctx, actor, domain.ActionLockRound, projectID, t, domain.RoundLocked, "ROUND_LOCKED")
}

func (e *Engine) transition(ctx context.Context, actor domain.ActorContext, action domain.Action, projectID string, t int, to domain.RoundState, ledgerAction string) (Receipt, error) {
	unlock := e.lockProject(projectID)
	defer unlock()

	in, p, err := e.baseGateInput(ctx, actor, action, projectID)
	if err != nil {
		return Receipt{}, err
	}
	if err := e.deny(domain.Decide(in)); err != nil {
		return Receipt{}, err
	}

	r, err := e.store.GetRound(ctx, projectID, t)
	if err != nil {
		return Receipt{}, err
	}
	if err := domain.CheckTransition(r.State, to); err != nil {
		// Illegal transitions produce no ledger entry.
		return Receipt{}, err
	}
	if err := e.ensureAppendable(ctx, p.Workflow, projectID); err != nil {
		return Receipt{}, err
	}
	if err := e.store.SetRoundState(ctx, projectID, t, to); err != nil {
		return Receipt{}, err
	}

	details := map[string]any{"t": t}
	if to == domain.RoundLocked {
		n, err := e.store.LockBids(ctx, projectID, t)
		if err != nil {
			return Receipt{}, err
		}
		details["locked_bids"] = n
	}
	entry, err := e.append(ctx, p.Workflow, projectID, actor.ActorID, ledgerAction, details)
	if err != nil {
		return Receipt{}, err
	}
	e.metrics.Transition(string(p.Workflow), string(to))
	return Receipt{ReceiptID: newReceiptID(), LedgerSeq: entry.Seq}, nil
}

// CurrentRound returns the highest-t round or nil. Reads are not serialized
// and may trail a concurrent mutation.
func (e *Engine) CurrentRound(ctx context.Context, projectID string) (*store.Round, error) {
	if _, err := e.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return e.store.CurrentRound(ctx, projectID)
}

func (e *Engine) ListRounds(ctx context.Context, projectID string) ([]store.Round, error) {
	if _, err := e.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return e.store.ListRounds(ctx, projectID)
}
