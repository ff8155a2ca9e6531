package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mygrades-api/internal/models"
)

// ResitRepository persists resit pair configuration. A category holds
// at most one resit marker.
type ResitRepository struct {
	db *sqlx.DB
}

// NewResitRepository creates a new resit repository.
func NewResitRepository(db *sqlx.DB) *ResitRepository {
	return &ResitRepository{db: db}
}

// GetByCategory returns the resit marker of a category, or nil.
func (r *ResitRepository) GetByCategory(ctx context.Context, categoryID string) (*models.ResitPair, error) {
	var pair models.ResitPair
	const query = `SELECT id, course_id, category_id, item_id FROM resit_pairs WHERE category_id = $1`
	if err := r.db.GetContext(ctx, &pair, query, categoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get resit pair: %w", err)
	}
	return &pair, nil
}

// Set marks an item as the resit attempt of its category, replacing any
// previous marker in that category.
func (r *ResitRepository) Set(ctx context.Context, pair *models.ResitPair) error {
	if pair.ID == "" {
		pair.ID = uuid.NewString()
	}
	const query = `INSERT INTO resit_pairs (id, course_id, category_id, item_id)
        VALUES (:id, :course_id, :category_id, :item_id)
        ON CONFLICT (category_id)
        DO UPDATE SET item_id = EXCLUDED.item_id`
	if _, err := r.db.NamedExecContext(ctx, query, pair); err != nil {
		return fmt.Errorf("set resit pair: %w", err)
	}
	return nil
}

// Delete removes the resit marker of a category.
func (r *ResitRepository) Delete(ctx context.Context, categoryID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM resit_pairs WHERE category_id = $1", categoryID); err != nil {
		return fmt.Errorf("delete resit pair: %w", err)
	}
	return nil
}
