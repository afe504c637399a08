package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tdrlane/pkg/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists chains in Postgres. Appends run in a transaction that
// reads the chain head with FOR UPDATE, so two concurrent appends to the same
// project cannot both claim a sequence number.
type PGStore struct{ DB *pgxpool.Pool }

func NewPGStore(db *pgxpool.Pool) *PGStore { return &PGStore{DB: db} }

func (s *PGStore) Append(ctx context.Context, workflow domain.Workflow, projectID, actor, action string, details map[string]any) (Entry, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Entry{}, err
	}
	defer tx.Rollback(ctx)

	var halted bool
	err = tx.QueryRow(ctx, `SELECT EXISTS(
SELECT 1 FROM ledger_halts WHERE workflow=$1 AND project_id=$2)`, string(workflow), projectID).Scan(&halted)
	if err != nil {
		return Entry{}, err
	}
	if halted {
		return Entry{}, ErrHalted
	}

	var seq int64
	var prev string
	err = tx.QueryRow(ctx, `
SELECT seq, digest FROM ledger_entries
WHERE workflow=$1 AND project_id=$2
ORDER BY seq DESC LIMIT 1
FOR UPDATE`, string(workflow), projectID).Scan(&seq, &prev)
	switch {
	case err == nil:
		seq++
	case errors.Is(err, pgx.ErrNoRows):
		seq, prev = 0, ""
	default:
		return Entry{}, err
	}

	e := Entry{
		Seq:        seq,
		At:         stamp(time.Now()),
		Actor:      actor,
		Action:     action,
		Details:    details,
		PrevDigest: prev,
	}
	digest, err := ComputeDigest(e)
	if err != nil {
		return Entry{}, err
	}
	e.Digest = digest

	b, _ := json.Marshal(e.Details)
	if _, err := tx.Exec(ctx, `
INSERT INTO ledger_entries(workflow,project_id,seq,at,actor,action,details,prev_digest,digest)
VALUES($1,$2,$3,$4,$5,$6,$7::jsonb,$8,$9)`,
		string(workflow), projectID, e.Seq, e.At, e.Actor, e.Action, string(b), e.PrevDigest, e.Digest); err != nil {
		return Entry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *PGStore) List(ctx context.Context, workflow domain.Workflow, projectID string) ([]Entry, error) {
	rows, err := s.DB.Query(ctx, `
SELECT seq,at,actor,action,details,prev_digest,digest
FROM ledger_entries
WHERE workflow=$1 AND project_id=$2
ORDER BY seq ASC`, string(workflow), projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var details []byte
		if err := rows.Scan(&e.Seq, &e.At, &e.Actor, &e.Action, &details, &e.PrevDigest, &e.Digest); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(details, &e.Details)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PGStore) Halted(ctx context.Context, workflow domain.Workflow, projectID string) (bool, error) {
	var halted bool
	err := s.DB.QueryRow(ctx, `SELECT EXISTS(
SELECT 1 FROM ledger_halts WHERE workflow=$1 AND project_id=$2)`, string(workflow), projectID).Scan(&halted)
	return halted, err
}

func (s *PGStore) Verify(ctx context.Context, workflow domain.Workflow, projectID string) (VerifyResult, error) {
	entries, err := s.List(ctx, workflow, projectID)
	if err != nil {
		return VerifyResult{}, err
	}
	res := VerifyEntries(entries)
	if !res.Valid {
		_, err = s.DB.Exec(ctx, `
INSERT INTO ledger_halts(workflow,project_id,halted_at)
VALUES($1,$2,now())
ON CONFLICT (workflow,project_id) DO NOTHING`, string(workflow), projectID)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}
