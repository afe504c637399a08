package domain

import "time"

type Action string

const (
	ActionCreateProject     Action = "CREATE_PROJECT"
	ActionPublishProject    Action = "PUBLISH_PROJECT"
	ActionEnrollMember      Action = "ENROLL_MEMBER"
	ActionRemoveMember      Action = "REMOVE_MEMBER"
	ActionOpenRound         Action = "OPEN_ROUND"
	ActionCloseRound        Action = "CLOSE_ROUND"
	ActionLockRound         Action = "LOCK_ROUND"
	ActionSubmitAsk         Action = "SUBMIT_ASK"
	ActionSubmitQuote       Action = "SUBMIT_QUOTE"
	ActionSubmitPreferences Action = "SUBMIT_PREFERENCES"
	ActionSubmitValuation   Action = "SUBMIT_VALUATION"
	ActionRunMatching       Action = "RUN_MATCHING"
	ActionRunSettlement     Action = "RUN_SETTLEMENT"
	ActionViewSettlement    Action = "VIEW_SETTLEMENT"
)

type DenyReason string

const (
	DenyRoleMismatch         DenyReason = "ROLE_MISMATCH"
	DenyNotEnrolled          DenyReason = "NOT_ENROLLED"
	DenyRoundNotOpen         DenyReason = "ROUND_NOT_OPEN"
	DenyRoundNotLocked       DenyReason = "ROUND_NOT_LOCKED"
	DenyMissingConsent       DenyReason = "MISSING_CONSENT"
	DenyMissingDocuments     DenyReason = "MISSING_DOCUMENTS"
	DenyWorkflowUnsupported  DenyReason = "WORKFLOW_UNSUPPORTED"
	DenyTripartiteNotReady   DenyReason = "TRIPARTITE_NOT_READY"
	DenyProjectNotPublished  DenyReason = "PROJECT_NOT_PUBLISHED"
	DenyOutsideBiddingWindow DenyReason = "OUTSIDE_BIDDING_WINDOW"
	DenyBidAlreadySubmitted  DenyReason = "BID_ALREADY_SUBMITTED"
)

type ActorContext struct {
	ActorID  string
	Role     Role
	Workflow Workflow
}

// GateInput is a snapshot of everything the decision depends on. Callers
// assemble it; Decide never touches storage and never mutates its input.
type GateInput struct {
	Actor  ActorContext
	Action Action

	Caps      Capabilities
	CapsKnown bool

	ProjectWorkflow  Workflow
	ProjectPublished bool

	RoundExists bool
	RoundState  RoundState
	Window      BidWindow
	Now         time.Time

	ActiveMembership bool
	TripartiteReady  bool

	ConsentGiven  bool
	DocumentCount int
}

type Decision struct {
	Allowed bool
	Reason  DenyReason
	Message string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason DenyReason, msg string) Decision {
	return Decision{Reason: reason, Message: msg}
}

// Err converts a denial into a DeniedError; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Reason: d.Reason, Message: d.Message}
}

// Decide evaluates the declarative decision table for one requested action.
func Decide(in GateInput) Decision {
	if !in.CapsKnown {
		return deny(DenyWorkflowUnsupported, "unknown workflow")
	}
	if in.Actor.Workflow != "" && in.ProjectWorkflow != "" && in.Actor.Workflow != in.ProjectWorkflow {
		return deny(DenyWorkflowUnsupported, "actor workflow claim does not match project workflow")
	}

	switch in.Action {
	case ActionCreateProject, ActionPublishProject, ActionEnrollMember, ActionRemoveMember:
		return requireRole(in, RoleAuthority)

	case ActionOpenRound, ActionCloseRound, ActionLockRound:
		if d := requireRole(in, RoleAuthority); !d.Allowed {
			return d
		}
		if !in.Caps.HasRounds {
			return deny(DenyWorkflowUnsupported, "workflow has no bidding rounds")
		}
		if !in.ProjectPublished {
			return deny(DenyProjectNotPublished, "project is not published")
		}
		if in.Action == ActionOpenRound && in.ProjectWorkflow == WorkflowSlum && !in.TripartiteReady {
			return deny(DenyTripartiteNotReady, "all three slum portals need at least one active member")
		}
		return allow()

	case ActionSubmitAsk:
		if !in.Caps.HasAsk {
			return deny(DenyWorkflowUnsupported, "workflow does not accept asks")
		}
		return submitChecks(in, RoleDeveloper)

	case ActionSubmitQuote:
		if !in.Caps.HasQuote {
			return deny(DenyWorkflowUnsupported, "workflow does not accept quotes")
		}
		return submitChecks(in, RoleBuyer)

	case ActionSubmitPreferences:
		d := submitChecks(in, RoleSlumDweller)
		if !d.Allowed {
			return d
		}
		if in.ProjectWorkflow == WorkflowSlum {
			if !in.ConsentGiven {
				return deny(DenyMissingConsent, "legal consent has not been recorded")
			}
			if in.DocumentCount < 1 {
				return deny(DenyMissingDocuments, "at least one uploaded document is required")
			}
		}
		return allow()

	case ActionSubmitValuation:
		if !in.Caps.HasValuer {
			return deny(DenyWorkflowUnsupported, "workflow has no independent valuer")
		}
		return submitChecks(in, RoleValuer)

	case ActionRunMatching, ActionRunSettlement:
		if d := requireRole(in, RoleAuthority); !d.Allowed {
			return d
		}
		return settlementChecks(in)

	case ActionViewSettlement:
		return settlementChecks(in)
	}

	return deny(DenyRoleMismatch, "unknown action")
}

func requireRole(in GateInput, role Role) Decision {
	if in.Caps.RoleBasedAccess && in.Actor.Role != role {
		return deny(DenyRoleMismatch, "requires role "+string(role))
	}
	return allow()
}

func submitChecks(in GateInput, role Role) Decision {
	if d := requireRole(in, role); !d.Allowed {
		return d
	}
	if !in.ActiveMembership {
		return deny(DenyNotEnrolled, "no active membership for this project")
	}
	if !in.RoundExists || in.RoundState != RoundOpen {
		return deny(DenyRoundNotOpen, "round is not open for bidding")
	}
	if !in.Window.Contains(in.Now) {
		return deny(DenyOutsideBiddingWindow, "current time is outside the bidding window")
	}
	return allow()
}

func settlementChecks(in GateInput) Decision {
	if !in.Caps.HasSettlement {
		return deny(DenyWorkflowUnsupported, "workflow has no settlement phase")
	}
	if !in.RoundExists || in.RoundState != RoundLocked {
		return deny(DenyRoundNotLocked, "round must be locked first")
	}
	return allow()
}
