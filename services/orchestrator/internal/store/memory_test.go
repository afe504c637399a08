package store

import (
	"context"
	"testing"
	"time"

	"tdrlane/pkg/domain"
)

func TestMemoryBidUpsertOverwritesDraft(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	bid := Bid{
		BidID: "bid_1", ProjectID: "prj_1", T: 0, ParticipantID: "act_dev",
		Kind: domain.BidAsk, State: domain.BidDraft,
		Payload: map[string]any{"price": 100.0},
	}
	if err := m.UpsertBid(ctx, bid); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	bid.Payload = map[string]any{"price": 200.0}
	if err := m.UpsertBid(ctx, bid); err != nil {
		t.Fatalf("upsert overwrite: %v", err)
	}

	bids, _ := m.ListBids(ctx, "prj_1", 0)
	if len(bids) != 1 {
		t.Fatalf("edits must overwrite, not create rows: got %d", len(bids))
	}
	if bids[0].Payload["price"] != 200.0 {
		t.Fatalf("expected overwritten payload, got %v", bids[0].Payload)
	}
}

func TestMemoryCurrentRoundAndOrdering(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	cur, err := m.CurrentRound(ctx, "prj_1")
	if err != nil || cur != nil {
		t.Fatalf("expected no current round, got %v %v", cur, err)
	}

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if err := m.CreateRound(ctx, Round{ProjectID: "prj_1", T: i, State: domain.RoundLocked, CreatedAt: now}); err != nil {
			t.Fatalf("create round %d: %v", i, err)
		}
	}
	cur, _ = m.CurrentRound(ctx, "prj_1")
	if cur == nil || cur.T != 2 {
		t.Fatalf("expected current round t=2, got %+v", cur)
	}

	rounds, _ := m.ListRounds(ctx, "prj_1")
	if len(rounds) != 3 || rounds[0].T != 2 || rounds[2].T != 0 {
		t.Fatalf("expected newest-first ordering, got %+v", rounds)
	}
}

func TestMemoryLockBids(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, p := range []string{"act_a", "act_b"} {
		_ = m.UpsertBid(ctx, Bid{BidID: "bid_" + p, ProjectID: "prj_1", T: 0, ParticipantID: p, Kind: domain.BidAsk, State: domain.BidSubmitted})
	}
	_ = m.UpsertBid(ctx, Bid{BidID: "bid_other", ProjectID: "prj_1", T: 1, ParticipantID: "act_a", Kind: domain.BidAsk, State: domain.BidDraft})

	n, err := m.LockBids(ctx, "prj_1", 0)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 bids locked, got %d %v", n, err)
	}
	bids, _ := m.ListBids(ctx, "prj_1", 0)
	for _, b := range bids {
		if b.State != domain.BidLocked {
			t.Fatalf("bid %s not locked", b.BidID)
		}
	}
	other, _ := m.GetBid(ctx, "prj_1", 1, "act_a")
	if other.State != domain.BidDraft {
		t.Fatal("lock must only touch the target round")
	}
}

func TestMemoryTripartiteCounts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	_ = m.UpsertMembership(ctx, Membership{MembershipID: "mem_1", ProjectID: "prj_s", ParticipantID: "act_1", Portal: string(domain.RoleSlumDweller), Status: MemberActive, EnrolledAt: now})
	_ = m.UpsertMembership(ctx, Membership{MembershipID: "mem_2", ProjectID: "prj_s", ParticipantID: "act_2", Portal: string(domain.RoleDeveloper), Status: MemberActive, EnrolledAt: now})

	n, _ := m.CountActivePortal(ctx, "prj_s", string(domain.RoleAHD))
	if n != 0 {
		t.Fatalf("expected no AHD members, got %d", n)
	}

	// Removal flips the status and the count.
	_ = m.SetMembershipStatus(ctx, "prj_s", "act_2", string(domain.RoleDeveloper), MemberRemoved)
	n, _ = m.CountActivePortal(ctx, "prj_s", string(domain.RoleDeveloper))
	if n != 0 {
		t.Fatalf("expected removed member excluded, got %d", n)
	}

	ok, _ := m.HasActiveMembership(ctx, "prj_s", "act_1", string(domain.RoleSlumDweller))
	if !ok {
		t.Fatal("expected active membership for act_1")
	}
}
