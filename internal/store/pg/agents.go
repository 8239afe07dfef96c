package pg

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/leadworks/leadgate/internal/domain"
)

// PGAgentStore implements store.AgentStore backed by Postgres.
type PGAgentStore struct {
	db *sql.DB
}

func NewAgentStore(db *sql.DB) *PGAgentStore {
	return &PGAgentStore{db: db}
}

// FindActiveByCategory returns qualifying agents in creation order, which
// is the fetch order assignment ties are broken on.
func (s *PGAgentStore) FindActiveByCategory(ctx context.Context, categoryID uuid.UUID) ([]domain.AgentUser, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.name, a.role, a.active
		 FROM agent_users a
		 JOIN agent_user_categories ac ON ac.agent_id = a.id
		 WHERE ac.category_id = $1
		   AND a.active
		   AND a.deleted_at IS NULL
		   AND a.role = 'agent'
		 ORDER BY a.created_at`,
		categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []domain.AgentUser
	for rows.Next() {
		var a domain.AgentUser
		if err := rows.Scan(&a.ID, &a.Name, &a.Role, &a.Active); err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// CountAssignedLeads is a lifetime total over non-deleted leads; there is
// deliberately no date filter.
func (s *PGAgentStore) CountAssignedLeads(ctx context.Context, agentID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM leads WHERE assigned_to = $1 AND deleted_at IS NULL`,
		agentID).Scan(&count)
	return count, err
}
