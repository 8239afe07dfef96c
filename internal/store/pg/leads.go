package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/leadworks/leadgate/internal/domain"
	"github.com/leadworks/leadgate/internal/store"
)

// PGLeadStore implements store.LeadStore backed by Postgres.
type PGLeadStore struct {
	db *sql.DB
}

func NewLeadStore(db *sql.DB) *PGLeadStore {
	return &PGLeadStore{db: db}
}

const leadSelectCols = `id, phone, name, business_name, email, pincode, category_id, assigned_to, assigned_at, created_at, updated_at`

func (s *PGLeadStore) FindByPhone(ctx context.Context, phone string) (*domain.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadSelectCols+` FROM leads WHERE phone = $1 AND deleted_at IS NULL`, phone)
	return scanLead(row)
}

func (s *PGLeadStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadSelectCols+` FROM leads WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanLead(row)
}

// Create inserts the lead. The partial unique index on (phone) WHERE
// deleted_at IS NULL makes this the atomic create-if-absent the pipeline
// relies on: a concurrent insert surfaces as ErrDuplicatePhone.
func (s *PGLeadStore) Create(ctx context.Context, lead *domain.Lead) error {
	if lead.ID == uuid.Nil {
		lead.ID = store.GenNewID()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, phone, name, business_name, email, pincode, category_id, assigned_to, assigned_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		lead.ID, lead.Phone, lead.Name, nilStr(lead.BusinessName), nilStr(lead.Email), nilStr(lead.Pincode),
		lead.CategoryID, lead.AssignedTo, lead.AssignedAt, lead.CreatedAt, lead.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicatePhone
	}
	return err
}

func (s *PGLeadStore) Save(ctx context.Context, lead *domain.Lead) error {
	lead.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE leads SET
			name = $1, business_name = $2, email = $3, pincode = $4,
			category_id = $5, assigned_to = $6, assigned_at = $7, updated_at = $8
		 WHERE id = $9 AND deleted_at IS NULL`,
		lead.Name, nilStr(lead.BusinessName), nilStr(lead.Email), nilStr(lead.Pincode),
		lead.CategoryID, lead.AssignedTo, lead.AssignedAt, lead.UpdatedAt, lead.ID,
	)
	return err
}

func scanLead(row *sql.Row) (*domain.Lead, error) {
	var l domain.Lead
	var businessName, email, pincode sql.NullString
	var categoryID, assignedTo uuid.NullUUID
	var assignedAt sql.NullTime

	err := row.Scan(&l.ID, &l.Phone, &l.Name, &businessName, &email, &pincode,
		&categoryID, &assignedTo, &assignedAt, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	l.BusinessName = businessName.String
	l.Email = email.String
	l.Pincode = pincode.String
	if categoryID.Valid {
		l.CategoryID = &categoryID.UUID
	}
	if assignedTo.Valid {
		l.AssignedTo = &assignedTo.UUID
	}
	if assignedAt.Valid {
		t := assignedAt.Time
		l.AssignedAt = &t
	}
	return &l, nil
}
