// Package sla seeds first-response deadlines for new leads. Tracking and
// escalation live elsewhere; this package only records when the clock
// started and when it runs out.
package sla

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/leadworks/leadgate/internal/store"
)

// DefaultFirstResponse is the first-response window applied when the
// config does not override it.
const DefaultFirstResponse = 15 * time.Minute

// Initializer starts the first-response clock for a lead.
type Initializer interface {
	InitializeForLead(ctx context.Context, leadID uuid.UUID) error
}

// Tracker is the store-backed Initializer.
type Tracker struct {
	store         store.SLAStore
	firstResponse time.Duration

	now func() time.Time
}

func NewTracker(s store.SLAStore, firstResponse time.Duration) *Tracker {
	if firstResponse <= 0 {
		firstResponse = DefaultFirstResponse
	}
	return &Tracker{
		store:         s,
		firstResponse: firstResponse,
		now:           time.Now,
	}
}

// InitializeForLead records the deadline for leadID. Re-initializing an
// already tracked lead is a no-op so redeliveries cannot extend a deadline.
func (t *Tracker) InitializeForLead(ctx context.Context, leadID uuid.UUID) error {
	due := t.now().UTC().Add(t.firstResponse)
	return t.store.Initialize(ctx, leadID, due)
}
