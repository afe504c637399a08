package ledger

import (
	"context"
	"sync"
	"time"

	"tdrlane/pkg/domain"
)

// MemoryStore keeps one chain per (workflow, project). Used by tests and the
// memory store mode of the orchestrator.
type MemoryStore struct {
	mu     sync.RWMutex
	chains map[string][]Entry
	halted map[string]bool
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chains: map[string][]Entry{},
		halted: map[string]bool{},
		now:    time.Now,
	}
}

// SetClock overrides the timestamp source; tests use it for stable chains.
func (s *MemoryStore) SetClock(now func() time.Time) { s.now = now }

func chainKey(workflow domain.Workflow, projectID string) string {
	return string(workflow) + "/" + projectID
}

func (s *MemoryStore) Append(ctx context.Context, workflow domain.Workflow, projectID, actor, action string, details map[string]any) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chainKey(workflow, projectID)
	if s.halted[key] {
		return Entry{}, ErrHalted
	}
	chain := s.chains[key]
	prev := ""
	if len(chain) > 0 {
		prev = chain[len(chain)-1].Digest
	}
	e := Entry{
		Seq:        int64(len(chain)),
		At:         stamp(s.now()),
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
	s.chains[key] = append(chain, e)
	return e, nil
}

func (s *MemoryStore) List(ctx context.Context, workflow domain.Workflow, projectID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.chains[chainKey(workflow, projectID)]
	out := make([]Entry, len(chain))
	copy(out, chain)
	return out, nil
}

func (s *MemoryStore) Halted(ctx context.Context, workflow domain.Workflow, projectID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.halted[chainKey(workflow, projectID)], nil
}

func (s *MemoryStore) Verify(ctx context.Context, workflow domain.Workflow, projectID string) (VerifyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := chainKey(workflow, projectID)
	res := VerifyEntries(s.chains[key])
	if !res.Valid {
		s.halted[key] = true
	}
	return res, nil
}
