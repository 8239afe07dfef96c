package lite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/leadworks/leadgate/internal/domain"
	"github.com/leadworks/leadgate/internal/store"
)

// Timestamps are unix milliseconds in SQLite.

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// --- LeadStore ---

type LiteLeadStore struct {
	db *sql.DB
}

func NewLeadStore(db *sql.DB) *LiteLeadStore {
	return &LiteLeadStore{db: db}
}

const leadSelectCols = `id, phone, name, business_name, email, pincode, category_id, assigned_to, assigned_at, created_at, updated_at`

func (s *LiteLeadStore) FindByPhone(ctx context.Context, phone string) (*domain.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadSelectCols+` FROM leads WHERE phone = ? AND deleted_at IS NULL`, phone)
	return scanLead(row)
}

func (s *LiteLeadStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadSelectCols+` FROM leads WHERE id = ? AND deleted_at IS NULL`, id.String())
	return scanLead(row)
}

func (s *LiteLeadStore) Create(ctx context.Context, lead *domain.Lead) error {
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
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID.String(), lead.Phone, lead.Name, nilStr(lead.BusinessName), nilStr(lead.Email), nilStr(lead.Pincode),
		uuidPtrStr(lead.CategoryID), uuidPtrStr(lead.AssignedTo), timePtrMillis(lead.AssignedAt),
		toMillis(lead.CreatedAt), toMillis(lead.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicatePhone
	}
	return err
}

func (s *LiteLeadStore) Save(ctx context.Context, lead *domain.Lead) error {
	lead.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE leads SET
			name = ?, business_name = ?, email = ?, pincode = ?,
			category_id = ?, assigned_to = ?, assigned_at = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		lead.Name, nilStr(lead.BusinessName), nilStr(lead.Email), nilStr(lead.Pincode),
		uuidPtrStr(lead.CategoryID), uuidPtrStr(lead.AssignedTo), timePtrMillis(lead.AssignedAt),
		toMillis(lead.UpdatedAt), lead.ID.String(),
	)
	return err
}

func scanLead(row *sql.Row) (*domain.Lead, error) {
	var l domain.Lead
	var id string
	var businessName, email, pincode, categoryID, assignedTo sql.NullString
	var assignedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&id, &l.Phone, &l.Name, &businessName, &email, &pincode,
		&categoryID, &assignedTo, &assignedAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	l.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	l.BusinessName = businessName.String
	l.Email = email.String
	l.Pincode = pincode.String
	if categoryID.Valid {
		if u, err := uuid.Parse(categoryID.String); err == nil {
			l.CategoryID = &u
		}
	}
	if assignedTo.Valid {
		if u, err := uuid.Parse(assignedTo.String); err == nil {
			l.AssignedTo = &u
		}
	}
	if assignedAt.Valid {
		t := fromMillis(assignedAt.Int64)
		l.AssignedAt = &t
	}
	l.CreatedAt = fromMillis(createdAt)
	l.UpdatedAt = fromMillis(updatedAt)
	return &l, nil
}

// --- CategoryStore ---

type LiteCategoryStore struct {
	db *sql.DB
}

func NewCategoryStore(db *sql.DB) *LiteCategoryStore {
	return &LiteCategoryStore{db: db}
}

const categorySelectCols = `id, name, description, keywords, reply_template, media_urls, active, created_at`

func (s *LiteCategoryStore) FindActiveByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+categorySelectCols+` FROM categories
		 WHERE id = ? AND active = 1 AND deleted_at IS NULL`, id.String())

	cat, err := scanCategory(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return cat, nil
}

func (s *LiteCategoryStore) FindAllActive(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categorySelectCols+` FROM categories
		 WHERE active = 1 AND deleted_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []domain.Category
	for rows.Next() {
		cat, err := scanCategory(rows.Scan)
		if err != nil {
			return nil, err
		}
		cats = append(cats, *cat)
	}
	return cats, rows.Err()
}

func scanCategory(scan func(dest ...any) error) (*domain.Category, error) {
	var c domain.Category
	var id string
	var description, keywordsJSON, replyTemplate, mediaJSON sql.NullString
	var active int
	var createdAt int64

	if err := scan(&id, &c.Name, &description, &keywordsJSON, &replyTemplate,
		&mediaJSON, &active, &createdAt); err != nil {
		return nil, err
	}

	var err error
	c.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	c.Description = description.String
	c.ReplyTemplate = replyTemplate.String
	c.Active = active != 0
	c.CreatedAt = fromMillis(createdAt)
	if keywordsJSON.Valid && keywordsJSON.String != "" {
		_ = json.Unmarshal([]byte(keywordsJSON.String), &c.Keywords)
	}
	if mediaJSON.Valid && mediaJSON.String != "" {
		_ = json.Unmarshal([]byte(mediaJSON.String), &c.MediaURLs)
	}
	return &c, nil
}

// --- MessageStore ---

type LiteMessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *LiteMessageStore {
	return &LiteMessageStore{db: db}
}

func (s *LiteMessageStore) CreateInbound(ctx context.Context, msg *domain.Message) error {
	msg.Direction = domain.DirectionInbound
	return s.create(ctx, msg)
}

func (s *LiteMessageStore) CreateOutbound(ctx context.Context, msg *domain.Message) error {
	msg.Direction = domain.DirectionOutbound
	return s.create(ctx, msg)
}

func (s *LiteMessageStore) create(ctx context.Context, msg *domain.Message) error {
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
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID.String(), msg.LeadID.String(), string(msg.Direction), msg.Content,
		nilStr(msg.ProviderMessageID), nilStr(msg.MediaID), nilStr(msg.MediaKind),
		toMillis(msg.SentAt), toMillis(msg.CreatedAt),
	)
	return err
}

func (s *LiteMessageStore) RecentInboundByLead(ctx context.Context, leadID uuid.UUID, since time.Time) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, direction, content, provider_message_id, media_id, media_kind, sent_at, created_at
		 FROM messages
		 WHERE lead_id = ? AND direction = ? AND created_at >= ?
		 ORDER BY created_at DESC`,
		leadID.String(), string(domain.DirectionInbound), toMillis(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var id, lid string
		var providerID, mediaID, mediaKind sql.NullString
		var sentAt, createdAt int64
		if err := rows.Scan(&id, &lid, &m.Direction, &m.Content,
			&providerID, &mediaID, &mediaKind, &sentAt, &createdAt); err != nil {
			return nil, err
		}
		if m.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if m.LeadID, err = uuid.Parse(lid); err != nil {
			return nil, err
		}
		m.ProviderMessageID = providerID.String
		m.MediaID = mediaID.String
		m.MediaKind = mediaKind.String
		m.SentAt = fromMillis(sentAt)
		m.CreatedAt = fromMillis(createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// --- AgentStore ---

type LiteAgentStore struct {
	db *sql.DB
}

func NewAgentStore(db *sql.DB) *LiteAgentStore {
	return &LiteAgentStore{db: db}
}

func (s *LiteAgentStore) FindActiveByCategory(ctx context.Context, categoryID uuid.UUID) ([]domain.AgentUser, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.name, a.role, a.active
		 FROM agent_users a
		 JOIN agent_user_categories ac ON ac.agent_id = a.id
		 WHERE ac.category_id = ?
		   AND a.active = 1
		   AND a.deleted_at IS NULL
		   AND a.role = 'agent'
		 ORDER BY a.created_at`,
		categoryID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []domain.AgentUser
	for rows.Next() {
		var a domain.AgentUser
		var id string
		var active int
		if err := rows.Scan(&id, &a.Name, &a.Role, &active); err != nil {
			return nil, err
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		a.Active = active != 0
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *LiteAgentStore) CountAssignedLeads(ctx context.Context, agentID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM leads WHERE assigned_to = ? AND deleted_at IS NULL`,
		agentID.String()).Scan(&count)
	return count, err
}

// --- SLAStore ---

type LiteSLAStore struct {
	db *sql.DB
}

func NewSLAStore(db *sql.DB) *LiteSLAStore {
	return &LiteSLAStore{db: db}
}

func (s *LiteSLAStore) Initialize(ctx context.Context, leadID uuid.UUID, due time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lead_sla (lead_id, first_response_due, created_at)
		 VALUES (?, ?, ?) ON CONFLICT (lead_id) DO NOTHING`,
		leadID.String(), toMillis(due), toMillis(time.Now()))
	return err
}

// --- helpers ---

func uuidPtrStr(u *uuid.UUID) *string {
	if u == nil {
		return nil
	}
	s := u.String()
	return &s
}

func timePtrMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := toMillis(*t)
	return &ms
}
