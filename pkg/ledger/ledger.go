// Package ledger implements the append-only, hash-chained audit log. Every
// state-changing operation in the orchestrator appends exactly one entry;
// entries are never edited or removed, corrections are compensating entries.
package ledger

import (
	"context"
	"errors"
	"time"

	"tdrlane/pkg/canonhash"
	"tdrlane/pkg/domain"
)

// ErrHalted is returned by Append once a chain has failed verification.
// Further writes are refused pending manual audit.
var ErrHalted = errors.New(domain.CodeLedgerIntegrityViolation + ": ledger chain failed verification, writes halted")

type Entry struct {
	Seq        int64          `json:"seq"`
	At         time.Time      `json:"at"`
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	Details    map[string]any `json:"details"`
	PrevDigest string         `json:"prev_digest"`
	Digest     string         `json:"digest"`
}

type VerifyResult struct {
	Valid    bool   `json:"valid"`
	BrokenAt *int64 `json:"broken_at,omitempty"`
	Entries  int    `json:"entries"`
}

type Store interface {
	Append(ctx context.Context, workflow domain.Workflow, projectID, actor, action string, details map[string]any) (Entry, error)
	List(ctx context.Context, workflow domain.Workflow, projectID string) ([]Entry, error)
	Verify(ctx context.Context, workflow domain.Workflow, projectID string) (VerifyResult, error)
	// Halted reports whether the chain has failed verification and is
	// refusing writes. Mutations consult it before touching any other state.
	Halted(ctx context.Context, workflow domain.Workflow, projectID string) (bool, error)
}

// stamp pins entry timestamps to microsecond precision. Postgres timestamptz
// stores microseconds, so hashing anything finer would make the digest
// unverifiable after a storage round trip.
func stamp(t time.Time) time.Time { return t.UTC().Truncate(time.Microsecond) }

// entryContent is what gets hashed. The digest field itself is excluded;
// timestamps are pinned to UTC RFC3339Nano so recomputation is stable.
type entryContent struct {
	Seq        int64          `json:"seq"`
	At         string         `json:"at"`
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	Details    map[string]any `json:"details"`
	PrevDigest string         `json:"prev_digest"`
}

func ComputeDigest(e Entry) (string, error) {
	return canonhash.SumObjectHex(entryContent{
		Seq:        e.Seq,
		At:         e.At.UTC().Format(time.RFC3339Nano),
		Actor:      e.Actor,
		Action:     e.Action,
		Details:    e.Details,
		PrevDigest: e.PrevDigest,
	})
}

// VerifyEntries walks a chain from seq 0, recomputing every digest and
// checking linkage. It reports the first broken sequence number. It is pure,
// so an auditor can re-run it over an exported chain offline.
func VerifyEntries(entries []Entry) VerifyResult {
	prev := ""
	for i, e := range entries {
		seq := e.Seq
		if e.Seq != int64(i) || e.PrevDigest != prev {
			return VerifyResult{BrokenAt: &seq, Entries: len(entries)}
		}
		digest, err := ComputeDigest(e)
		if err != nil || digest != e.Digest {
			return VerifyResult{BrokenAt: &seq, Entries: len(entries)}
		}
		prev = e.Digest
	}
	return VerifyResult{Valid: true, Entries: len(entries)}
}
