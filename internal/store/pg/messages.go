package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/leadworks/leadgate/internal/domain"
	"github.com/leadworks/leadgate/internal/store"
)

// PGMessageStore implements store.MessageStore backed by Postgres.
type PGMessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *PGMessageStore {
	return &PGMessageStore{db: db}
}

func (s *PGMessageStore) CreateInbound(ctx context.Context, msg *domain.Message) error {
	msg.Direction = domain.DirectionInbound
	return s.create(ctx, msg)
}

func (s *PGMessageStore) CreateOutbound(ctx context.Context, msg *domain.Message) error {
	msg.Direction = domain.DirectionOutbound
	return s.create(ctx, msg)
}

func (s *PGMessageStore) create(ctx context.Context, msg *domain.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = store.GenNewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = msg.CreatedAt
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, lead_id, direction, content, provider_message_id, media_id, media_kind, sent_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		msg.ID, msg.LeadID, msg.Direction, msg.Content,
		nilStr(msg.ProviderMessageID), nilStr(msg.MediaID), nilStr(msg.MediaKind),
		msg.SentAt, msg.CreatedAt,
	)
	return err
}

func (s *PGMessageStore) RecentInboundByLead(ctx context.Context, leadID uuid.UUID, since time.Time) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, direction, content, provider_message_id, media_id, media_kind, sent_at, created_at
		 FROM messages
		 WHERE lead_id = $1 AND direction = $2 AND created_at >= $3
		 ORDER BY created_at DESC`,
		leadID, domain.DirectionInbound, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var providerID, mediaID, mediaKind *string
		if err := rows.Scan(&m.ID, &m.LeadID, &m.Direction, &m.Content,
			&providerID, &mediaID, &mediaKind, &m.SentAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.ProviderMessageID = derefStr(providerID)
		m.MediaID = derefStr(mediaID)
		m.MediaKind = derefStr(mediaKind)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
