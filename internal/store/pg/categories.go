package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/leadworks/leadgate/internal/domain"
	"github.com/leadworks/leadgate/internal/store"
)

// PGCategoryStore implements store.CategoryStore backed by Postgres.
// Keywords and media URLs are stored as JSONB arrays.
type PGCategoryStore struct {
	db *sql.DB
}

func NewCategoryStore(db *sql.DB) *PGCategoryStore {
	return &PGCategoryStore{db: db}
}

const categorySelectCols = `id, name, description, keywords, reply_template, media_urls, active, created_at`

func (s *PGCategoryStore) FindActiveByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+categorySelectCols+` FROM categories
		 WHERE id = $1 AND active AND deleted_at IS NULL`, id)

	cat, err := scanCategory(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// FindAllActive returns the catalog in creation order, which is the fetch
// order classification ties are broken on.
func (s *PGCategoryStore) FindAllActive(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categorySelectCols+` FROM categories
		 WHERE active AND deleted_at IS NULL ORDER BY created_at`)
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
	var description, replyTemplate *string
	var keywordsJSON, mediaJSON []byte

	if err := scan(&c.ID, &c.Name, &description, &keywordsJSON, &replyTemplate,
		&mediaJSON, &c.Active, &c.CreatedAt); err != nil {
		return nil, err
	}

	c.Description = derefStr(description)
	c.ReplyTemplate = derefStr(replyTemplate)
	if len(keywordsJSON) > 0 {
		_ = json.Unmarshal(keywordsJSON, &c.Keywords)
	}
	if len(mediaJSON) > 0 {
		_ = json.Unmarshal(mediaJSON, &c.MediaURLs)
	}
	return &c, nil
}
