// Package lite implements the store interfaces on SQLite for local mode,
// where a Postgres instance is not worth running. Schema is created on
// open; timestamps are stored as unix milliseconds, ids and keyword
// lists as text.
package lite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/leadworks/leadgate/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS leads (
	id TEXT PRIMARY KEY,
	phone TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	business_name TEXT,
	email TEXT,
	pincode TEXT,
	category_id TEXT,
	assigned_to TEXT,
	assigned_at INTEGER,
	deleted_at INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_phone_live ON leads (phone) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS categories (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	keywords TEXT,
	reply_template TEXT,
	media_urls TEXT,
	active INTEGER NOT NULL DEFAULT 1,
	deleted_at INTEGER,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	lead_id TEXT NOT NULL,
	direction TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	provider_message_id TEXT,
	media_id TEXT,
	media_kind TEXT,
	sent_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_lead_created ON messages (lead_id, created_at);

CREATE TABLE IF NOT EXISTS agent_users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'agent',
	active INTEGER NOT NULL DEFAULT 1,
	deleted_at INTEGER,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_user_categories (
	agent_id TEXT NOT NULL,
	category_id TEXT NOT NULL,
	PRIMARY KEY (agent_id, category_id)
);

CREATE TABLE IF NOT EXISTS lead_sla (
	lead_id TEXT PRIMARY KEY,
	first_response_due INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
`

// OpenDB opens (and if needed initializes) the SQLite database at path.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer; the pipeline is single-process anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return db, nil
}

// NewStores creates all stores backed by a single SQLite file.
func NewStores(path string) (*store.Stores, *sql.DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, nil, err
	}
	return &store.Stores{
		Leads:      NewLeadStore(db),
		Categories: NewCategoryStore(db),
		Messages:   NewMessageStore(db),
		Agents:     NewAgentStore(db),
		SLA:        NewSLAStore(db),
	}, db, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nilStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
