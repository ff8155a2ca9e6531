package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mygrades-api/internal/models"
)

// AlteredWeightRepository persists per-user weight overrides. Absence
// of a row means the configured item weight applies.
type AlteredWeightRepository struct {
	db *sqlx.DB
}

// NewAlteredWeightRepository creates a new altered weight repository.
func NewAlteredWeightRepository(db *sqlx.DB) *AlteredWeightRepository {
	return &AlteredWeightRepository{db: db}
}

// Get returns the override for an (item, user), or nil when unaltered.
func (r *AlteredWeightRepository) Get(ctx context.Context, itemID, userID string) (*models.AlteredWeight, error) {
	var aw models.AlteredWeight
	const query = `SELECT id, course_id, category_id, item_id, user_id, weight, altered_at
        FROM altered_weights WHERE item_id = $1 AND user_id = $2`
	if err := r.db.GetContext(ctx, &aw, query, itemID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get altered weight: %w", err)
	}
	return &aw, nil
}

// ListForUser returns every override in a course for one user, keyed by
// item ID.
func (r *AlteredWeightRepository) ListForUser(ctx context.Context, courseID, userID string) (map[string]models.AlteredWeight, error) {
	var rows []models.AlteredWeight
	const query = `SELECT id, course_id, category_id, item_id, user_id, weight, altered_at
        FROM altered_weights WHERE course_id = $1 AND user_id = $2`
	if err := r.db.SelectContext(ctx, &rows, query, courseID, userID); err != nil {
		return nil, fmt.Errorf("list altered weights: %w", err)
	}
	result := make(map[string]models.AlteredWeight, len(rows))
	for _, aw := range rows {
		result[aw.ItemID] = aw
	}
	return result, nil
}

// Upsert sets or replaces the override for an (item, user).
func (r *AlteredWeightRepository) Upsert(ctx context.Context, aw *models.AlteredWeight) error {
	if aw.ID == "" {
		aw.ID = uuid.NewString()
	}
	aw.AlteredAt = time.Now().UTC()
	const query = `INSERT INTO altered_weights (id, course_id, category_id, item_id, user_id, weight, altered_at)
        VALUES (:id, :course_id, :category_id, :item_id, :user_id, :weight, :altered_at)
        ON CONFLICT (item_id, user_id)
        DO UPDATE SET weight = EXCLUDED.weight, altered_at = EXCLUDED.altered_at`
	if _, err := r.db.NamedExecContext(ctx, query, aw); err != nil {
		return fmt.Errorf("upsert altered weight: %w", err)
	}
	return nil
}

// Delete removes the override for an (item, user).
func (r *AlteredWeightRepository) Delete(ctx context.Context, itemID, userID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM altered_weights WHERE item_id = $1 AND user_id = $2", itemID, userID); err != nil {
		return fmt.Errorf("delete altered weight: %w", err)
	}
	return nil
}

// DeleteByCategory removes every override under a category for one
// user, reverting all weights to configuration.
func (r *AlteredWeightRepository) DeleteByCategory(ctx context.Context, categoryID, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM altered_weights WHERE category_id = $1 AND user_id = $2", categoryID, userID)
	if err != nil {
		return 0, fmt.Errorf("delete altered weights: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete altered weights: %w", err)
	}
	return affected, nil
}
