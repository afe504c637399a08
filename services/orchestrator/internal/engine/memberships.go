package engine

import (
	"context"
	"fmt"

	"tdrlane/pkg/domain"
	"tdrlane/services/orchestrator/internal/store"

	"github.com/google/uuid"
)

var portals = map[string]bool{
	string(domain.RoleDeveloper):   true,
	string(domain.RoleBuyer):       true,
	string(domain.RoleSlumDweller): true,
	string(domain.RoleAHD):         true,
	string(domain.RoleValuer):      true,
	string(domain.RoleContractor):  true,
	string(domain.RoleAuditor):     true,
}

// Enroll records an active membership. Re-enrolling a removed participant
// reactivates the same row.
func (e *Engine) Enroll(ctx context.Context, actor domain.ActorContext, projectID, participantID, portal string) (Receipt, store.Membership, error) {
	if !portals[portal] {
		return Receipt{}, store.Membership{}, fmt.Errorf("unknown portal %q", portal)
	}
	unlock := e.lockProject(projectID)
	defer unlock()

	in, p, err := e.baseGateInput(ctx, actor, domain.ActionEnrollMember, projectID)
	if err != nil {
		return Receipt{}, store.Membership{}, err
	}
	if err := e.deny(domain.Decide(in)); err != nil {
		return Receipt{}, store.Membership{}, err
	}
	if err := e.ensureAppendable(ctx, p.Workflow, projectID); err != nil {
		return Receipt{}, store.Membership{}, err
	}

	m := store.Membership{
		MembershipID:  "mem_" + uuid.NewString(),
		ProjectID:     projectID,
		ParticipantID: participantID,
		Portal:        portal,
		Status:        store.MemberActive,
		EnrolledAt:    e.now().UTC(),
	}
	if err := e.store.UpsertMembership(ctx, m); err != nil {
		return Receipt{}, store.Membership{}, err
	}
	entry, err := e.append(ctx, p.Workflow, projectID, actor.ActorID, "MEMBER_ENROLLED", map[string]any{
		"participant_id": participantID,
		"portal":         portal,
	})
	if err != nil {
		return Receipt{}, store.Membership{}, err
	}
	return Receipt{ReceiptID: newReceiptID(), LedgerSeq: entry.Seq}, m, nil
}

// RemoveMember flips a membership to REMOVED. Callers must have confirmed the
// removal explicitly; the handler rejects unconfirmed requests before this.
func (e *Engine) RemoveMember(ctx context.Context, actor domain.ActorContext, projectID, participantID, portal string) (Receipt, error) {
	unlock := e.lockProject(projectID)
	defer unlock()

	in, p, err := e.baseGateInput(ctx, actor, domain.ActionRemoveMember, projectID)
	if err != nil {
		return Receipt{}, err
	}
	if err := e.deny(domain.Decide(in)); err != nil {
		return Receipt{}, err
	}
	if err := e.ensureAppendable(ctx, p.Workflow, projectID); err != nil {
		return Receipt{}, err
	}
	if err := e.store.SetMembershipStatus(ctx, projectID, participantID, portal, store.MemberRemoved); err != nil {
		return Receipt{}, err
	}
	entry, err := e.append(ctx, p.Workflow, projectID, actor.ActorID, "MEMBER_REMOVED", map[string]any{
		"participant_id": participantID,
		"portal":         portal,
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{ReceiptID: newReceiptID(), LedgerSeq: entry.Seq}, nil
}

func (e *Engine) ListMemberships(ctx context.Context, projectID string) ([]store.Membership, error) {
	return e.store.ListMemberships(ctx, projectID)
}

// TripartiteReady reports whether all three slum portal categories have at
// least one active member.
func (e *Engine) TripartiteReady(ctx context.Context, projectID string) (bool, error) {
	return e.tripartiteReady(ctx, projectID)
}
