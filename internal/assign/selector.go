// Package assign picks the least-loaded human agent for a category.
package assign

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/leadworks/leadgate/internal/store"
)

// Selector distributes new leads across the agent roster.
type Selector struct {
	agents store.AgentStore
}

func NewSelector(agents store.AgentStore) *Selector {
	return &Selector{agents: agents}
}

// SelectForCategory returns the active agent linked to the category with
// the fewest assigned leads (lifetime total). Ties keep the first agent
// in fetch order. No category or an empty roster yields ok=false, which
// is not an error.
func (s *Selector) SelectForCategory(ctx context.Context, categoryID *uuid.UUID) (uuid.UUID, bool, error) {
	if categoryID == nil {
		return uuid.Nil, false, nil
	}

	candidates, err := s.agents.FindActiveByCategory(ctx, *categoryID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("fetch agents for category %s: %w", categoryID, err)
	}
	if len(candidates) == 0 {
		return uuid.Nil, false, nil
	}

	var winner uuid.UUID
	var found bool
	minCount := 0
	for _, agent := range candidates {
		count, err := s.agents.CountAssignedLeads(ctx, agent.ID)
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("count leads for agent %s: %w", agent.ID, err)
		}
		if !found || count < minCount {
			winner = agent.ID
			minCount = count
			found = true
		}
	}
	return winner, found, nil
}
