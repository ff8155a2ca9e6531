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

// ColumnRepository persists grade columns. A column is created lazily
// the first time a grade is written into it.
type ColumnRepository struct {
	db *sqlx.DB
}

// NewColumnRepository creates a new column repository.
func NewColumnRepository(db *sqlx.DB) *ColumnRepository {
	return &ColumnRepository{db: db}
}

// GetOrCreate returns the column for (item, type, other), creating it
// when absent. OTHER columns are distinct per free-text tag. The points
// flag records whether grades entered the column as raw points; it is
// fixed at creation so columns predating a conversion keep it.
func (r *ColumnRepository) GetOrCreate(ctx context.Context, courseID, itemID string, columnType models.ColumnType, other string, points bool) (*models.Column, error) {
	var col models.Column
	const query = `SELECT id, course_id, item_id, column_type, other, points, created_at
        FROM grade_columns
        WHERE item_id = $1 AND column_type = $2 AND other = $3`
	err := r.db.GetContext(ctx, &col, query, itemID, columnType, other)
	if err == nil {
		return &col, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get column: %w", err)
	}

	col = models.Column{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		ItemID:    itemID,
		Type:      columnType,
		Other:     other,
		Points:    points,
		CreatedAt: time.Now().UTC(),
	}
	const insert = `INSERT INTO grade_columns (id, course_id, item_id, column_type, other, points, created_at)
        VALUES (:id, :course_id, :item_id, :column_type, :other, :points, :created_at)
        ON CONFLICT (item_id, column_type, other) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, insert, &col); err != nil {
		return nil, fmt.Errorf("insert column: %w", err)
	}
	// A concurrent writer may have won the conflict; read back the row.
	if err := r.db.GetContext(ctx, &col, query, itemID, columnType, other); err != nil {
		return nil, fmt.Errorf("reread column: %w", err)
	}
	return &col, nil
}

// ListByItem returns the columns of an item in creation order.
func (r *ColumnRepository) ListByItem(ctx context.Context, itemID string) ([]models.Column, error) {
	var columns []models.Column
	const query = `SELECT id, course_id, item_id, column_type, other, points, created_at
        FROM grade_columns
        WHERE item_id = $1
        ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &columns, query, itemID); err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	return columns, nil
}
