package assign

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/leadworks/leadgate/internal/domain"
)

// rosterStub serves a fixed agent list and per-agent lead counts.
type rosterStub struct {
	agents []domain.AgentUser
	counts map[uuid.UUID]int
}

func (r *rosterStub) FindActiveByCategory(ctx context.Context, categoryID uuid.UUID) ([]domain.AgentUser, error) {
	return r.agents, nil
}

func (r *rosterStub) CountAssignedLeads(ctx context.Context, agentID uuid.UUID) (int, error) {
	return r.counts[agentID], nil
}

func TestSelectForCategory_PicksMinimumLoad(t *testing.T) {
	a := domain.AgentUser{ID: uuid.New(), Name: "a"}
	b := domain.AgentUser{ID: uuid.New(), Name: "b"}
	c := domain.AgentUser{ID: uuid.New(), Name: "c"}
	roster := &rosterStub{
		agents: []domain.AgentUser{a, b, c},
		counts: map[uuid.UUID]int{a.ID: 5, b.ID: 2, c.ID: 9},
	}

	catID := uuid.New()
	got, ok, err := NewSelector(roster).SelectForCategory(context.Background(), &catID)
	if err != nil {
		t.Fatalf("SelectForCategory: %v", err)
	}
	if !ok || got != b.ID {
		t.Errorf("selected %s (ok=%v), want %s", got, ok, b.ID)
	}
}

func TestSelectForCategory_TieKeepsFetchOrder(t *testing.T) {
	a := domain.AgentUser{ID: uuid.New(), Name: "a"}
	b := domain.AgentUser{ID: uuid.New(), Name: "b"}
	roster := &rosterStub{
		agents: []domain.AgentUser{a, b},
		counts: map[uuid.UUID]int{a.ID: 3, b.ID: 3},
	}

	catID := uuid.New()
	got, ok, err := NewSelector(roster).SelectForCategory(context.Background(), &catID)
	if err != nil {
		t.Fatalf("SelectForCategory: %v", err)
	}
	if !ok || got != a.ID {
		t.Errorf("selected %s, want first-fetched %s", got, a.ID)
	}
}

func TestSelectForCategory_NoCategory(t *testing.T) {
	_, ok, err := NewSelector(&rosterStub{}).SelectForCategory(context.Background(), nil)
	if err != nil {
		t.Fatalf("nil category must not error: %v", err)
	}
	if ok {
		t.Error("selection reported for nil category")
	}
}

func TestSelectForCategory_EmptyRoster(t *testing.T) {
	catID := uuid.New()
	_, ok, err := NewSelector(&rosterStub{}).SelectForCategory(context.Background(), &catID)
	if err != nil {
		t.Fatalf("empty roster must not error: %v", err)
	}
	if ok {
		t.Error("selection reported for empty roster")
	}
}

func TestSelectForCategory_ZeroCountWins(t *testing.T) {
	busy := domain.AgentUser{ID: uuid.New(), Name: "busy"}
	fresh := domain.AgentUser{ID: uuid.New(), Name: "fresh"}
	roster := &rosterStub{
		agents: []domain.AgentUser{busy, fresh},
		counts: map[uuid.UUID]int{busy.ID: 1, fresh.ID: 0},
	}

	catID := uuid.New()
	got, ok, err := NewSelector(roster).SelectForCategory(context.Background(), &catID)
	if err != nil {
		t.Fatalf("SelectForCategory: %v", err)
	}
	if !ok || got != fresh.ID {
		t.Errorf("selected %s, want zero-load agent %s", got, fresh.ID)
	}
}
