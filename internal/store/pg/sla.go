package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// PGSLAStore implements store.SLAStore backed by Postgres.
type PGSLAStore struct {
	db *sql.DB
}

func NewSLAStore(db *sql.DB) *PGSLAStore {
	return &PGSLAStore{db: db}
}

// Initialize records the first-response deadline for a new lead. Re-runs
// for the same lead are no-ops so redelivered messages cannot reset an
// existing deadline.
func (s *PGSLAStore) Initialize(ctx context.Context, leadID uuid.UUID, due time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lead_sla (lead_id, first_response_due, created_at)
		 VALUES ($1, $2, $3) ON CONFLICT (lead_id) DO NOTHING`,
		leadID, due, time.Now().UTC())
	return err
}
