package store

import (
	"context"
	"encoding/json"
	"errors"

	"tdrlane/pkg/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PG struct{ DB *pgxpool.Pool }

func NewPG(db *pgxpool.Pool) *PG { return &PG{DB: db} }

func (s *PG) CreateProject(ctx context.Context, p Project) error {
	b, _ := json.Marshal(p.Metadata)
	_, err := s.DB.Exec(ctx, `
INSERT INTO projects(project_id,workflow,title,status,metadata,created_by,created_at)
VALUES($1,$2,$3,$4,$5::jsonb,$6,$7)`,
		p.ProjectID, string(p.Workflow), p.Title, p.Status, string(b), p.CreatedBy, p.CreatedAt)
	return err
}

func (s *PG) GetProject(ctx context.Context, projectID string) (Project, error) {
	var p Project
	var wf string
	var metadata []byte
	err := s.DB.QueryRow(ctx, `
SELECT project_id,workflow,title,status,metadata,created_by,created_at
FROM projects WHERE project_id=$1`, projectID).
		Scan(&p.ProjectID, &wf, &p.Title, &p.Status, &metadata, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, err
	}
	p.Workflow = domain.Workflow(wf)
	_ = json.Unmarshal(metadata, &p.Metadata)
	return p, nil
}

func (s *PG) SetProjectStatus(ctx context.Context, projectID, status string) error {
	ct, err := s.DB.Exec(ctx, `UPDATE projects SET status=$1, updated_at=now() WHERE project_id=$2`, status, projectID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PG) CreateRound(ctx context.Context, r Round) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO rounds(project_id,t,state,window_start,window_end,created_at,updated_at)
VALUES($1,$2,$3,$4,$5,$6,$6)`,
		r.ProjectID, r.T, string(r.State), r.WindowStart, r.WindowEnd, r.CreatedAt)
	return err
}

func scanRound(row pgx.Row) (Round, error) {
	var r Round
	var state string
	err := row.Scan(&r.ProjectID, &r.T, &state, &r.WindowStart, &r.WindowEnd, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Round{}, ErrNotFound
		}
		return Round{}, err
	}
	r.State = domain.RoundState(state)
	return r, nil
}

func (s *PG) GetRound(ctx context.Context, projectID string, t int) (Round, error) {
	return scanRound(s.DB.QueryRow(ctx, `
SELECT project_id,t,state,window_start,window_end,created_at,updated_at
FROM rounds WHERE project_id=$1 AND t=$2`, projectID, t))
}

func (s *PG) SetRoundState(ctx context.Context, projectID string, t int, state domain.RoundState) error {
	ct, err := s.DB.Exec(ctx, `UPDATE rounds SET state=$1, updated_at=now() WHERE project_id=$2 AND t=$3`,
		string(state), projectID, t)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PG) CurrentRound(ctx context.Context, projectID string) (*Round, error) {
	r, err := scanRound(s.DB.QueryRow(ctx, `
SELECT project_id,t,state,window_start,window_end,created_at,updated_at
FROM rounds WHERE project_id=$1 ORDER BY t DESC LIMIT 1`, projectID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func (s *PG) ListRounds(ctx context.Context, projectID string) ([]Round, error) {
	rows, err := s.DB.Query(ctx, `
SELECT project_id,t,state,window_start,window_end,created_at,updated_at
FROM rounds WHERE project_id=$1 ORDER BY t DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Round
	for rows.Next() {
		var r Round
		var state string
		if err := rows.Scan(&r.ProjectID, &r.T, &state, &r.WindowStart, &r.WindowEnd, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.State = domain.RoundState(state)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PG) UpsertMembership(ctx context.Context, m Membership) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO memberships(membership_id,project_id,participant_id,portal,status,enrolled_at)
VALUES($1,$2,$3,$4,$5,$6)
ON CONFLICT (project_id,participant_id,portal) DO UPDATE SET status=EXCLUDED.status, enrolled_at=EXCLUDED.enrolled_at`,
		m.MembershipID, m.ProjectID, m.ParticipantID, m.Portal, m.Status, m.EnrolledAt)
	return err
}

func (s *PG) SetMembershipStatus(ctx context.Context, projectID, participantID, portal, status string) error {
	ct, err := s.DB.Exec(ctx, `
UPDATE memberships SET status=$1 WHERE project_id=$2 AND participant_id=$3 AND portal=$4`,
		status, projectID, participantID, portal)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PG) ListMemberships(ctx context.Context, projectID string) ([]Membership, error) {
	rows, err := s.DB.Query(ctx, `
SELECT membership_id,project_id,participant_id,portal,status,enrolled_at
FROM memberships WHERE project_id=$1 ORDER BY enrolled_at ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.MembershipID, &m.ProjectID, &m.ParticipantID, &m.Portal, &m.Status, &m.EnrolledAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PG) HasActiveMembership(ctx context.Context, projectID, participantID, portal string) (bool, error) {
	var ok bool
	err := s.DB.QueryRow(ctx, `
SELECT EXISTS(SELECT 1 FROM memberships WHERE project_id=$1 AND participant_id=$2 AND portal=$3 AND status='ACTIVE')`,
		projectID, participantID, portal).Scan(&ok)
	return ok, err
}

func (s *PG) CountActivePortal(ctx context.Context, projectID, portal string) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `
SELECT count(*) FROM memberships WHERE project_id=$1 AND portal=$2 AND status='ACTIVE'`,
		projectID, portal).Scan(&n)
	return n, err
}

func (s *PG) UpsertBid(ctx context.Context, b Bid) error {
	payload, _ := json.Marshal(b.Payload)
	_, err := s.DB.Exec(ctx, `
INSERT INTO bids(bid_id,project_id,t,participant_id,kind,state,payload,created_at,updated_at,submitted_at)
VALUES($1,$2,$3,$4,$5,$6,$7::jsonb,$8,$9,$10)
ON CONFLICT (project_id,t,participant_id) DO UPDATE SET
  kind=EXCLUDED.kind,
  state=EXCLUDED.state,
  payload=EXCLUDED.payload,
  updated_at=EXCLUDED.updated_at,
  submitted_at=EXCLUDED.submitted_at`,
		b.BidID, b.ProjectID, b.T, b.ParticipantID, string(b.Kind), string(b.State), string(payload),
		b.CreatedAt, b.UpdatedAt, b.SubmittedAt)
	return err
}

func (s *PG) GetBid(ctx context.Context, projectID string, t int, participantID string) (*Bid, error) {
	var b Bid
	var kind, state string
	var payload []byte
	err := s.DB.QueryRow(ctx, `
SELECT bid_id,project_id,t,participant_id,kind,state,payload,created_at,updated_at,submitted_at
FROM bids WHERE project_id=$1 AND t=$2 AND participant_id=$3`, projectID, t, participantID).
		Scan(&b.BidID, &b.ProjectID, &b.T, &b.ParticipantID, &kind, &state, &payload, &b.CreatedAt, &b.UpdatedAt, &b.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	b.Kind = domain.BidKind(kind)
	b.State = domain.BidState(state)
	_ = json.Unmarshal(payload, &b.Payload)
	return &b, nil
}

func (s *PG) ListBids(ctx context.Context, projectID string, t int) ([]Bid, error) {
	rows, err := s.DB.Query(ctx, `
SELECT bid_id,project_id,t,participant_id,kind,state,payload,created_at,updated_at,submitted_at
FROM bids WHERE project_id=$1 AND t=$2 ORDER BY participant_id ASC`, projectID, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bid
	for rows.Next() {
		var b Bid
		var kind, state string
		var payload []byte
		if err := rows.Scan(&b.BidID, &b.ProjectID, &b.T, &b.ParticipantID, &kind, &state, &payload, &b.CreatedAt, &b.UpdatedAt, &b.SubmittedAt); err != nil {
			return nil, err
		}
		b.Kind = domain.BidKind(kind)
		b.State = domain.BidState(state)
		_ = json.Unmarshal(payload, &b.Payload)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PG) LockBids(ctx context.Context, projectID string, t int) (int, error) {
	ct, err := s.DB.Exec(ctx, `
UPDATE bids SET state='LOCKED', updated_at=now() WHERE project_id=$1 AND t=$2 AND state<>'LOCKED'`,
		projectID, t)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func (s *PG) SaveResult(ctx context.Context, r Result) error {
	body, _ := json.Marshal(r.Body)
	_, err := s.DB.Exec(ctx, `
INSERT INTO compute_results(project_id,t,kind,body,body_hash,computed_at)
VALUES($1,$2,$3,$4::jsonb,$5,$6)
ON CONFLICT (project_id,t,kind) DO UPDATE SET body=EXCLUDED.body, body_hash=EXCLUDED.body_hash, computed_at=EXCLUDED.computed_at`,
		r.ProjectID, r.T, r.Kind, string(body), r.BodyHash, r.ComputedAt)
	return err
}

func (s *PG) GetResult(ctx context.Context, projectID string, t int, kind string) (*Result, error) {
	var r Result
	var body []byte
	err := s.DB.QueryRow(ctx, `
SELECT project_id,t,kind,body,body_hash,computed_at
FROM compute_results WHERE project_id=$1 AND t=$2 AND kind=$3`, projectID, t, kind).
		Scan(&r.ProjectID, &r.T, &r.Kind, &body, &r.BodyHash, &r.ComputedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	_ = json.Unmarshal(body, &r.Body)
	return &r, nil
}
