// Package store defines the persistence interfaces the intake pipeline
// depends on. Implementations live in store/pg (Postgres) and store/lite
// (SQLite, local mode).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/leadworks/leadgate/internal/domain"
)

// ErrNotFound is returned by lookups when no matching row exists.
var ErrNotFound = errors.New("not found")

// ErrDuplicatePhone is returned by LeadStore.Create when a non-deleted
// lead already holds the phone number. Callers re-fetch and continue;
// the unique constraint is the only authority on lead-per-phone.
var ErrDuplicatePhone = errors.New("lead with phone already exists")

// LeadStore persists leads keyed by normalized phone number.
type LeadStore interface {
	FindByPhone(ctx context.Context, phone string) (*domain.Lead, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error)
	// Create inserts a new lead atomically with respect to the phone
	// uniqueness constraint and returns ErrDuplicatePhone on conflict.
	Create(ctx context.Context, lead *domain.Lead) error
	Save(ctx context.Context, lead *domain.Lead) error
}

// CategoryStore reads the category catalog. The pipeline never writes it.
type CategoryStore interface {
	FindActiveByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	FindAllActive(ctx context.Context) ([]domain.Category, error)
}

// MessageStore persists chat message records for leads.
type MessageStore interface {
	CreateInbound(ctx context.Context, msg *domain.Message) error
	CreateOutbound(ctx context.Context, msg *domain.Message) error
	// RecentInboundByLead returns inbound records created at or after
	// since, newest first. Used by the duplicate guard.
	RecentInboundByLead(ctx context.Context, leadID uuid.UUID, since time.Time) ([]domain.Message, error)
}

// AgentStore reads the human-agent roster for assignment.
type AgentStore interface {
	FindActiveByCategory(ctx context.Context, categoryID uuid.UUID) ([]domain.AgentUser, error)
	// CountAssignedLeads is a running lifetime total, not date-filtered.
	CountAssignedLeads(ctx context.Context, agentID uuid.UUID) (int, error)
}

// SLAStore records the first-response deadline when a lead is created.
type SLAStore interface {
	Initialize(ctx context.Context, leadID uuid.UUID, due time.Time) error
}

// Stores is the top-level container for all storage backends.
type Stores struct {
	Leads      LeadStore
	Categories CategoryStore
	Messages   MessageStore
	Agents     AgentStore
	SLA        SLAStore
}

// GenNewID returns a time-ordered UUID for new rows.
func GenNewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
