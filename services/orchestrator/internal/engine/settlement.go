package engine

import (
	"context"
	"errors"
	"fmt"

	"tdrlane/pkg/canonhash"
	"tdrlane/pkg/domain"
	"tdrlane/services/orchestrator/internal/store"
)

// RunMatching triggers the external matching computation for a locked round.
// The first successful result is cached per (project, t) and returned on
// repeat calls unless force is set.
func (e *Engine) RunMatching(ctx context.Context, actor domain.ActorContext, projectID string, t int, force bool) (store.Result, bool, error) {
	return e.compute(ctx, actor, domain.ActionRunMatching, projectID, t, force, store.ResultMatching)
}

// RunSettlement is RunMatching's counterpart for the settlement computation.
func (e *Engine) RunSettlement(ctx context.Context, actor domain.ActorContext, projectID string, t int, force bool) (store.Result, bool, error) {
	return e.compute(ctx, actor, domain.ActionRunSettlement, projectID, t, force, store.ResultSettlement)
}

func (e *Engine) compute(ctx context.Context, actor domain.ActorContext, action domain.Action, projectID string, t int, force bool, kind string) (store.Result, bool, error) {
	unlock := e.lockProject(projectID)
	defer unlock()

	in, p, err := e.baseGateInput(ctx, actor, action, projectID)
	if err != nil {
		return store.Result{}, false, err
	}
	round, err := e.store.GetRound(ctx, projectID, t)
	if err == nil {
		in.RoundExists = true
		in.RoundState = round.State
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.Result{}, false, err
	}
	if err := e.deny(domain.Decide(in)); err != nil {
		return store.Result{}, false, err
	}

	if !force {
		cached, err := e.store.GetResult(ctx, projectID, t, kind)
		if err != nil {
			return store.Result{}, false, err
		}
		if cached != nil {
			return *cached, true, nil
		}
	}

	bids, err := e.store.ListBids(ctx, projectID, t)
	if err != nil {
		return store.Result{}, false, err
	}
	input := ComputeInput{Workflow: p.Workflow, ProjectID: projectID, T: t, Bids: bids}

	// The attempt itself is a ledger event; a later failure or timeout must
	// not be mistaken for a success.
	if _, err := e.append(ctx, p.Workflow, projectID, actor.ActorID, kind+"_ATTEMPTED", map[string]any{"t": t, "force": force}); err != nil {
		return store.Result{}, false, err
	}

	cctx, cancel := context.WithTimeout(ctx, e.computeTimeout)
	defer cancel()
	var body map[string]any
	if kind == store.ResultMatching {
		body, err = e.matcher.ComputeMatching(cctx, input)
	} else {
		body, err = e.matcher.ComputeSettlement(cctx, input)
	}
	if err != nil {
		e.metrics.Computation(kind, "FAILED")
		return store.Result{}, false, fmt.Errorf("%w: %v", ErrComputationFailed, err)
	}

	hash, _, err := canonhash.SumObject(body)
	if err != nil {
		return store.Result{}, false, err
	}
	res := store.Result{
		ProjectID:  projectID,
		T:          t,
		Kind:       kind,
		Body:       body,
		BodyHash:   hash,
		ComputedAt: e.now().UTC(),
	}
	if err := e.store.SaveResult(ctx, res); err != nil {
		return store.Result{}, false, err
	}
	if _, err := e.append(ctx, p.Workflow, projectID, actor.ActorID, kind+"_COMPUTED", map[string]any{
		"t": t, "body_hash": hash,
	}); err != nil {
		return store.Result{}, false, err
	}
	e.metrics.Computation(kind, "OK")
	return res, false, nil
}

// SettlementResult returns the cached settlement for a locked round, or nil
// when none has been computed yet. Viewing is gated but not role-restricted.
func (e *Engine) SettlementResult(ctx context.Context, actor domain.ActorContext, projectID string, t int) (*store.Result, error) {
	in, _, err := e.baseGateInput(ctx, actor, domain.ActionViewSettlement, projectID)
	if err != nil {
		return nil, err
	}
	round, err := e.store.GetRound(ctx, projectID, t)
	if err == nil {
		in.RoundExists = true
		in.RoundState = round.State
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err := e.deny(domain.Decide(in)); err != nil {
		return nil, err
	}
	return e.store.GetResult(ctx, projectID, t, store.ResultSettlement)
}

// MatchingResult mirrors SettlementResult for the matching computation.
func (e *Engine) MatchingResult(ctx context.Context, actor domain.ActorContext, projectID string, t int) (*store.Result, error) {
	in, _, err := e.baseGateInput(ctx, actor, domain.ActionViewSettlement, projectID)
	if err != nil {
		return nil, err
	}
	round, err := e.store.GetRound(ctx, projectID, t)
	if err == nil {
		in.RoundExists = true
		in.RoundState = round.State
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err := e.deny(domain.Decide(in)); err != nil {
		return nil, err
	}
	return e.store.GetResult(ctx, projectID, t, store.ResultMatching)
}
