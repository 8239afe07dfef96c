// Package notify fans lead lifecycle events out to interested listeners
// (the agent console websocket hub, primarily). Publishing is fire-and-forget:
// a dead listener must never stall message intake.
package notify

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds published by the intake pipeline.
const (
	KindLeadCreated  = "lead.created"
	KindLeadMessage  = "lead.message"
	KindLeadAssigned = "lead.assigned"
)

// Event is a lead lifecycle notification.
type Event struct {
	Kind       string     `json:"kind"`
	LeadID     uuid.UUID  `json:"lead_id"`
	Phone      string     `json:"phone,omitempty"`
	Content    string     `json:"content,omitempty"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	AgentID    *uuid.UUID `json:"agent_id,omitempty"`
	At         time.Time  `json:"at"`
}

// Notifier receives lead lifecycle events. Implementations must not block.
type Notifier interface {
	Publish(ev Event)
}

// Noop discards all events.
type Noop struct{}

func (Noop) Publish(Event) {}
