package domain

import (
	"testing"
	"time"
)

func saleableCaps(t *testing.T) Capabilities {
	t.Helper()
	caps, ok := DefaultCatalog().Lookup(WorkflowSaleable)
	if !ok {
		t.Fatal("saleable workflow missing from default catalog")
	}
	return caps
}

func openAskInput(t *testing.T) GateInput {
	return GateInput{
		Actor:            ActorContext{ActorID: "act_dev", Role: RoleDeveloper, Workflow: WorkflowSaleable},
		Action:           ActionSubmitAsk,
		Caps:             saleableCaps(t),
		CapsKnown:        true,
		ProjectWorkflow:  WorkflowSaleable,
		ProjectPublished: true,
		RoundExists:      true,
		RoundState:       RoundOpen,
		Now:              time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ActiveMembership: true,
	}
}

func TestDecideSubmitAskAllowed(t *testing.T) {
	d := Decide(openAskInput(t))
	if !d.Allowed {
		t.Fatalf("expected allow, got %s: %s", d.Reason, d.Message)
	}
	if d.Err() != nil {
		t.Fatal("allowed decision must have nil Err")
	}
}

func TestDecideDenialReasons(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*GateInput)
		want   DenyReason
	}{
		{"unknown workflow", func(in *GateInput) { in.CapsKnown = false }, DenyWorkflowUnsupported},
		{"wrong role", func(in *GateInput) { in.Actor.Role = RoleBuyer }, DenyRoleMismatch},
		{"not enrolled", func(in *GateInput) { in.ActiveMembership = false }, DenyNotEnrolled},
		{"round closed", func(in *GateInput) { in.RoundState = RoundClosed }, DenyRoundNotOpen},
		{"no round", func(in *GateInput) { in.RoundExists = false }, DenyRoundNotOpen},
		{"workflow claim mismatch", func(in *GateInput) { in.Actor.Workflow = WorkflowSlum }, DenyWorkflowUnsupported},
		{"outside window", func(in *GateInput) {
			late := in.Now.Add(-time.Hour)
			in.Window = BidWindow{End: &late}
		}, DenyOutsideBiddingWindow},
	}
	for _, tc := range cases {
		in := openAskInput(t)
		tc.mutate(&in)
		d := Decide(in)
		if d.Allowed {
			t.Fatalf("%s: expected denial", tc.name)
		}
		if d.Reason != tc.want {
			t.Fatalf("%s: reason=%s want %s", tc.name, d.Reason, tc.want)
		}
		if d.Err() == nil {
			t.Fatalf("%s: denial must produce an error", tc.name)
		}
	}
}

func TestDecideSlumPreferencesConsentAndDocs(t *testing.T) {
	caps, _ := DefaultCatalog().Lookup(WorkflowSlum)
	in := GateInput{
		Actor:            ActorContext{ActorID: "act_sd", Role: RoleSlumDweller, Workflow: WorkflowSlum},
		Action:           ActionSubmitPreferences,
		Caps:             caps,
		CapsKnown:        true,
		ProjectWorkflow:  WorkflowSlum,
		ProjectPublished: true,
		RoundExists:      true,
		RoundState:       RoundOpen,
		ActiveMembership: true,
	}

	if d := Decide(in); d.Allowed || d.Reason != DenyMissingConsent {
		t.Fatalf("expected MISSING_CONSENT, got %+v", d)
	}
	in.ConsentGiven = true
	if d := Decide(in); d.Allowed || d.Reason != DenyMissingDocuments {
		t.Fatalf("expected MISSING_DOCUMENTS, got %+v", d)
	}
	in.DocumentCount = 1
	if d := Decide(in); !d.Allowed {
		t.Fatalf("expected allow, got %s", d.Reason)
	}
}

func TestDecideOpenRoundSlumTripartite(t *testing.T) {
	caps, _ := DefaultCatalog().Lookup(WorkflowSlum)
	in := GateInput{
		Actor:            ActorContext{ActorID: "act_auth", Role: RoleAuthority, Workflow: WorkflowSlum},
		Action:           ActionOpenRound,
		Caps:             caps,
		CapsKnown:        true,
		ProjectWorkflow:  WorkflowSlum,
		ProjectPublished: true,
	}
	if d := Decide(in); d.Allowed || d.Reason != DenyTripartiteNotReady {
		t.Fatalf("expected TRIPARTITE_NOT_READY, got %+v", d)
	}
	in.TripartiteReady = true
	if d := Decide(in); !d.Allowed {
		t.Fatalf("expected allow once tripartite ready, got %s", d.Reason)
	}
}

func TestDecideOpenRoundRequiresPublishedProject(t *testing.T) {
	in := GateInput{
		Actor:           ActorContext{ActorID: "act_auth", Role: RoleAuthority, Workflow: WorkflowSaleable},
		Action:          ActionOpenRound,
		Caps:            saleableCaps(t),
		CapsKnown:       true,
		ProjectWorkflow: WorkflowSaleable,
	}
	if d := Decide(in); d.Allowed || d.Reason != DenyProjectNotPublished {
		t.Fatalf("expected PROJECT_NOT_PUBLISHED, got %+v", d)
	}
}

func TestDecideSettlementGates(t *testing.T) {
	in := GateInput{
		Actor:            ActorContext{ActorID: "act_auth", Role: RoleAuthority, Workflow: WorkflowSaleable},
		Action:           ActionRunSettlement,
		Caps:             saleableCaps(t),
		CapsKnown:        true,
		ProjectWorkflow:  WorkflowSaleable,
		ProjectPublished: true,
		RoundExists:      true,
		RoundState:       RoundClosed,
	}
	if d := Decide(in); d.Allowed || d.Reason != DenyRoundNotLocked {
		t.Fatalf("expected ROUND_NOT_LOCKED, got %+v", d)
	}
	in.RoundState = RoundLocked
	if d := Decide(in); !d.Allowed {
		t.Fatalf("expected allow on locked round, got %s", d.Reason)
	}

	// clearland has no settlement phase at all
	clCaps, _ := DefaultCatalog().Lookup(WorkflowClearland)
	in.Caps = clCaps
	in.ProjectWorkflow = WorkflowClearland
	in.Actor.Workflow = WorkflowClearland
	if d := Decide(in); d.Allowed || d.Reason != DenyWorkflowUnsupported {
		t.Fatalf("expected WORKFLOW_UNSUPPORTED for clearland settlement, got %+v", d)
	}
}

func TestDecideQuoteUnsupportedOnSlum(t *testing.T) {
	caps, _ := DefaultCatalog().Lookup(WorkflowSlum)
	in := GateInput{
		Actor:            ActorContext{ActorID: "act_buyer", Role: RoleBuyer, Workflow: WorkflowSlum},
		Action:           ActionSubmitQuote,
		Caps:             caps,
		CapsKnown:        true,
		ProjectWorkflow:  WorkflowSlum,
		ProjectPublished: true,
		RoundExists:      true,
		RoundState:       RoundOpen,
		ActiveMembership: true,
	}
	if d := Decide(in); d.Allowed || d.Reason != DenyWorkflowUnsupported {
		t.Fatalf("expected WORKFLOW_UNSUPPORTED for slum quote, got %+v", d)
	}
}

func TestDecideAuthorityOnlyActions(t *testing.T) {
	for _, action := range []Action{ActionPublishProject, ActionEnrollMember, ActionRemoveMember, ActionCloseRound, ActionLockRound} {
		in := GateInput{
			Actor:            ActorContext{ActorID: "act_dev", Role: RoleDeveloper, Workflow: WorkflowSaleable},
			Action:           action,
			Caps:             saleableCaps(t),
			CapsKnown:        true,
			ProjectWorkflow:  WorkflowSaleable,
			ProjectPublished: true,
		}
		if d := Decide(in); d.Allowed || d.Reason != DenyRoleMismatch {
			t.Fatalf("%s: expected ROLE_MISMATCH for developer, got %+v", action, d)
		}
	}
}
