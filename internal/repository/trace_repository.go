package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mygrades-api/internal/models"
)

// TraceRepository persists the per-child breakdown of each aggregation
// pass. Explain reads the stored trace, never recomputing it, so the
// explanation always matches whatever the last pass actually did.
type TraceRepository struct {
	db *sqlx.DB
}

// NewTraceRepository creates a new trace repository.
func NewTraceRepository(db *sqlx.DB) *TraceRepository {
	return &TraceRepository{db: db}
}

// Save replaces the trace for an (item, user).
func (r *TraceRepository) Save(ctx context.Context, trace *models.AggregationTrace) error {
	if trace.ID == "" {
		trace.ID = uuid.NewString()
	}
	if trace.CreatedAt.IsZero() {
		trace.CreatedAt = time.Now().UTC()
	}
	children, err := json.Marshal(trace.Children)
	if err != nil {
		return fmt.Errorf("marshal trace children: %w", err)
	}
	const query = `INSERT INTO aggregation_traces (id, course_id, item_id, user_id, value, display_grade, admin_code, completion_percent, no_data, children, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (item_id, user_id)
        DO UPDATE SET value = EXCLUDED.value, display_grade = EXCLUDED.display_grade, admin_code = EXCLUDED.admin_code,
            completion_percent = EXCLUDED.completion_percent, no_data = EXCLUDED.no_data, children = EXCLUDED.children, created_at = EXCLUDED.created_at`
	if _, err := r.db.ExecContext(ctx, query,
		trace.ID, trace.CourseID, trace.ItemID, trace.UserID,
		trace.Value, trace.DisplayGrade, trace.AdminCode,
		trace.CompletionPercent, trace.NoData, children, trace.CreatedAt); err != nil {
		return fmt.Errorf("save trace: %w", err)
	}
	return nil
}

// Latest returns the stored trace for an (item, user), or nil when no
// aggregation pass has run.
func (r *TraceRepository) Latest(ctx context.Context, itemID, userID string) (*models.AggregationTrace, error) {
	var row struct {
		models.AggregationTrace
		ChildrenJSON []byte `db:"children"`
	}
	const query = `SELECT id, course_id, item_id, user_id, value, display_grade, admin_code, completion_percent, no_data, children, created_at
        FROM aggregation_traces
        WHERE item_id = $1 AND user_id = $2`
	if err := r.db.GetContext(ctx, &row, query, itemID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load trace: %w", err)
	}
	trace := row.AggregationTrace
	if len(row.ChildrenJSON) > 0 {
		if err := json.Unmarshal(row.ChildrenJSON, &trace.Children); err != nil {
			return nil, fmt.Errorf("unmarshal trace children: %w", err)
		}
	}
	return &trace, nil
}
