package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"tdrlane/pkg/domain"
)

// Memory is the in-process Store used by tests and STORE=memory dev mode.
// Reads return copies so callers can never mutate stored state in place.
type Memory struct {
	mu          sync.RWMutex
	projects    map[string]Project
	rounds      map[string][]Round // keyed by project, ordered by t asc
	memberships map[string][]Membership
	bids        map[string][]Bid // keyed by project
	results     map[string]Result
}

func NewMemory() *Memory {
	return &Memory{
		projects:    map[string]Project{},
		rounds:      map[string][]Round{},
		memberships: map[string][]Membership{},
		bids:        map[string][]Bid{},
		results:     map[string]Result{},
	}
}

func (m *Memory) CreateProject(ctx context.Context, p Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ProjectID] = p
	return nil
}

func (m *Memory) GetProject(ctx context.Context, projectID string) (Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[projectID]
	if !ok {
		return Project{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) SetProjectStatus(ctx context.Context, projectID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	m.projects[projectID] = p
	return nil
}

func (m *Memory) CreateRound(ctx context.Context, r Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds[r.ProjectID] = append(m.rounds[r.ProjectID], r)
	return nil
}

func (m *Memory) GetRound(ctx context.Context, projectID string, t int) (Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rounds[projectID] {
		if r.T == t {
			return r, nil
		}
	}
	return Round{}, ErrNotFound
}

func (m *Memory) SetRoundState(ctx context.Context, projectID string, t int, state domain.RoundState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rounds := m.rounds[projectID]
	for i := range rounds {
		if rounds[i].T == t {
			rounds[i].State = state
			rounds[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) CurrentRound(ctx context.Context, projectID string) (*Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rounds := m.rounds[projectID]
	if len(rounds) == 0 {
		return nil, nil
	}
	r := rounds[len(rounds)-1]
	return &r, nil
}

func (m *Memory) ListRounds(ctx context.Context, projectID string) ([]Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rounds := m.rounds[projectID]
	out := make([]Round, len(rounds))
	for i, r := range rounds {
		out[len(rounds)-1-i] = r
	}
	return out, nil
}

func (m *Memory) UpsertMembership(ctx context.Context, mem Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.memberships[mem.ProjectID]
	for i := range list {
		if list[i].ParticipantID == mem.ParticipantID && list[i].Portal == mem.Portal {
			list[i].Status = mem.Status
			list[i].EnrolledAt = mem.EnrolledAt
			return nil
		}
	}
	m.memberships[mem.ProjectID] = append(list, mem)
	return nil
}

func (m *Memory) SetMembershipStatus(ctx context.Context, projectID, participantID, portal, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.memberships[projectID]
	for i := range list {
		if list[i].ParticipantID == participantID && list[i].Portal == portal {
			list[i].Status = status
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) ListMemberships(ctx context.Context, projectID string) ([]Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.memberships[projectID]
	out := make([]Membership, len(list))
	copy(out, list)
	return out, nil
}

func (m *Memory) HasActiveMembership(ctx context.Context, projectID, participantID, portal string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mem := range m.memberships[projectID] {
		if mem.ParticipantID == participantID && mem.Portal == portal && mem.Status == MemberActive {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) CountActivePortal(ctx context.Context, projectID, portal string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, mem := range m.memberships[projectID] {
		if mem.Portal == portal && mem.Status == MemberActive {
			n++
		}
	}
	return n, nil
}

func (m *Memory) UpsertBid(ctx context.Context, b Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.bids[b.ProjectID]
	for i := range list {
		if list[i].T == b.T && list[i].ParticipantID == b.ParticipantID {
			list[i] = b
			return nil
		}
	}
	m.bids[b.ProjectID] = append(list, b)
	return nil
}

func (m *Memory) GetBid(ctx context.Context, projectID string, t int, participantID string) (*Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bids[projectID] {
		if b.T == t && b.ParticipantID == participantID {
			out := b
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListBids(ctx context.Context, projectID string, t int) ([]Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Bid
	for _, b := range m.bids[projectID] {
		if b.T == t {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out, nil
}

func (m *Memory) LockBids(ctx context.Context, projectID string, t int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	list := m.bids[projectID]
	for i := range list {
		if list[i].T == t && list[i].State != domain.BidLocked {
			list[i].State = domain.BidLocked
			list[i].UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

func resultKey(projectID string, t int, kind string) string {
	return projectID + "/" + kind + "/" + strconv.Itoa(t)
}

func (m *Memory) SaveResult(ctx context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[resultKey(r.ProjectID, r.T, r.Kind)] = r
	return nil
}

func (m *Memory) GetResult(ctx context.Context, projectID string, t int, kind string) (*Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[resultKey(projectID, t, kind)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}
