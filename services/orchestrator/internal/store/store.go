package store

import (
	"context"
	"errors"
	"time"

	"tdrlane/pkg/domain"
)

var ErrNotFound = errors.New("not found")

type Project struct {
	ProjectID string          `json:"project_id"`
	Workflow  domain.Workflow `json:"workflow"`
	Title     string          `json:"title"`
	Status    string          `json:"status"` // DRAFT | PUBLISHED
	Metadata  map[string]any  `json:"metadata,omitempty"`
	CreatedBy string          `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

const (
	ProjectDraft     = "DRAFT"
	ProjectPublished = "PUBLISHED"
)

type Round struct {
	ProjectID   string            `json:"project_id"`
	T           int               `json:"t"`
	State       domain.RoundState `json:"state"`
	WindowStart *time.Time        `json:"window_start,omitempty"`
	WindowEnd   *time.Time        `json:"window_end,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (r Round) Window() domain.BidWindow {
	return domain.BidWindow{Start: r.WindowStart, End: r.WindowEnd}
}

type Membership struct {
	MembershipID  string    `json:"membership_id"`
	ProjectID     string    `json:"project_id"`
	ParticipantID string    `json:"participant_id"`
	Portal        string    `json:"portal"`
	Status        string    `json:"status"` // ACTIVE | REMOVED
	EnrolledAt    time.Time `json:"enrolled_at"`
}

const (
	MemberActive  = "ACTIVE"
	MemberRemoved = "REMOVED"
)

type Bid struct {
	BidID         string          `json:"bid_id"`
	ProjectID     string          `json:"project_id"`
	T             int             `json:"t"`
	ParticipantID string          `json:"participant_id"`
	Kind          domain.BidKind  `json:"kind"`
	State         domain.BidState `json:"state"`
	Payload       map[string]any  `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	SubmittedAt   *time.Time      `json:"submitted_at,omitempty"`
}

// Result caches one external computation outcome per (project, t, kind).
type Result struct {
	ProjectID  string         `json:"project_id"`
	T          int            `json:"t"`
	Kind       string         `json:"kind"` // MATCHING | SETTLEMENT
	Body       map[string]any `json:"body"`
	BodyHash   string         `json:"body_hash"`
	ComputedAt time.Time      `json:"computed_at"`
}

const (
	ResultMatching   = "MATCHING"
	ResultSettlement = "SETTLEMENT"
)

type Store interface {
	CreateProject(ctx context.Context, p Project) error
	GetProject(ctx context.Context, projectID string) (Project, error)
	SetProjectStatus(ctx context.Context, projectID, status string) error

	CreateRound(ctx context.Context, r Round) error
	GetRound(ctx context.Context, projectID string, t int) (Round, error)
	SetRoundState(ctx context.Context, projectID string, t int, state domain.RoundState) error
	CurrentRound(ctx context.Context, projectID string) (*Round, error)
	ListRounds(ctx context.Context, projectID string) ([]Round, error) // newest first

	UpsertMembership(ctx context.Context, m Membership) error
	SetMembershipStatus(ctx context.Context, projectID, participantID, portal, status string) error
	ListMemberships(ctx context.Context, projectID string) ([]Membership, error)
	HasActiveMembership(ctx context.Context, projectID, participantID, portal string) (bool, error)
	CountActivePortal(ctx context.Context, projectID, portal string) (int, error)

	UpsertBid(ctx context.Context, b Bid) error
	GetBid(ctx context.Context, projectID string, t int, participantID string) (*Bid, error)
	ListBids(ctx context.Context, projectID string, t int) ([]Bid, error)
	LockBids(ctx context.Context, projectID string, t int) (int, error)

	SaveResult(ctx context.Context, r Result) error
	GetResult(ctx context.Context, projectID string, t int, kind string) (*Result, error)
}
