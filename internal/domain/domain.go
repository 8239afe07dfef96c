package domain

import (
	"time"

	"github.com/google/uuid"
)

// Subtype classifies a parsed inbound message. The set is closed: the
// orchestrator switches exhaustively over it, so adding a subtype means
// revisiting every dispatch site.
type Subtype string

const (
	SubtypeText        Subtype = "text"
	SubtypeImage       Subtype = "image"
	SubtypeVideo       Subtype = "video"
	SubtypeDocument    Subtype = "document"
	SubtypeListReply   Subtype = "list_reply"
	SubtypeButtonReply Subtype = "button_reply"
	SubtypeFlowReply   Subtype = "flow_reply"
	SubtypeOther       Subtype = "other"
)

// Direction marks a message record as inbound or outbound.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Lead is one prospective contact, keyed by normalized phone number.
// At most one non-deleted lead exists per phone number (enforced by the
// store's unique constraint, not by application logic).
type Lead struct {
	ID           uuid.UUID
	Phone        string
	Name         string
	BusinessName string
	Email        string
	Pincode      string
	CategoryID   *uuid.UUID
	AssignedTo   *uuid.UUID
	AssignedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Category is a classification bucket with keywords used for routing and
// a reply template + media used for auto-replies. Read-only for the
// intake pipeline.
type Category struct {
	ID            uuid.UUID
	Name          string
	Description   string
	Keywords      []string
	ReplyTemplate string
	MediaURLs     []string
	Active        bool
	CreatedAt     time.Time
}

// Message is one stored chat message (inbound or outbound) for a lead.
// ProviderMessageID is carried verbatim from the channel for audit and a
// possible future idempotency key.
type Message struct {
	ID                uuid.UUID
	LeadID            uuid.UUID
	Direction         Direction
	Content           string
	ProviderMessageID string
	MediaID           string
	MediaKind         string
	SentAt            time.Time
	CreatedAt         time.Time
}

// AgentUser is a human operator eligible to be assigned leads within one
// or more categories.
type AgentUser struct {
	ID          uuid.UUID
	Name        string
	Role        string
	Active      bool
	CategoryIDs []uuid.UUID
}
