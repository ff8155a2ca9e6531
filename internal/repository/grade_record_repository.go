package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mygrades-api/internal/models"
)

const gradeRecordColumns = `id, course_id, item_id, user_id, column_id, column_type, raw_grade, converted_grade, display_grade, weighted_grade, admin_code, is_current, cat_override, dropped, not_available, is_error, points, audit_by, audit_comment, created_at`

// GradeRecordRepository persists the versioned grade ledger. Manual
// writes never update in place: a new write retires the previous
// current record for the same (item, user, column) and inserts a fresh
// row. Machine-written category totals are the exception; they are
// overwritten in place so recomputing a total is idempotent.
type GradeRecordRepository struct {
	db *sqlx.DB
}

// NewGradeRecordRepository creates a new grade record repository.
func NewGradeRecordRepository(db *sqlx.DB) *GradeRecordRepository {
	return &GradeRecordRepository{db: db}
}

// Write retires the current record for the record's (item, user,
// column) and inserts the new one as current.
func (r *GradeRecordRepository) Write(ctx context.Context, record *models.GradeRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.IsCurrent = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const retire = `UPDATE grade_records SET is_current = FALSE
        WHERE item_id = $1 AND user_id = $2 AND column_id = $3 AND is_current = TRUE`
	if _, err := tx.ExecContext(ctx, retire, record.ItemID, record.UserID, record.ColumnID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("retire grade record: %w", err)
	}
	const insert = `INSERT INTO grade_records (` + gradeRecordColumns + `)
        VALUES (:id, :course_id, :item_id, :user_id, :column_id, :column_type, :raw_grade, :converted_grade, :display_grade, :weighted_grade, :admin_code, :is_current, :cat_override, :dropped, :not_available, :is_error, :points, :audit_by, :audit_comment, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, record); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert grade record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade record: %w", err)
	}
	return nil
}

// OverwriteCategoryCurrent updates the current machine-written CATEGORY
// record in place so repeated aggregation passes do not grow the
// version chain. Manual overrides are never touched. Returns false when
// no overwritable record exists and a fresh Write is needed.
func (r *GradeRecordRepository) OverwriteCategoryCurrent(ctx context.Context, record *models.GradeRecord) (bool, error) {
	const query = `UPDATE grade_records
        SET raw_grade = $1, converted_grade = $2, display_grade = $3, weighted_grade = $4,
            admin_code = $5, not_available = $6, audit_by = $7, audit_comment = $8
        WHERE item_id = $9 AND user_id = $10 AND column_id = $11
          AND column_type = 'CATEGORY' AND is_current = TRUE AND cat_override = FALSE`
	res, err := r.db.ExecContext(ctx, query,
		record.RawGrade, record.ConvertedGrade, record.DisplayGrade, record.WeightedGrade,
		record.AdminCode, record.NotAvailable, record.AuditBy, record.AuditComment,
		record.ItemID, record.UserID, record.ColumnID)
	if err != nil {
		return false, fmt.Errorf("overwrite category record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("overwrite category record: %w", err)
	}
	return affected > 0, nil
}

// CurrentProvisional returns the provisional grade for an (item, user):
// the most recent current record across all columns except RELEASED.
// Nil when the user has no grade on the item.
func (r *GradeRecordRepository) CurrentProvisional(ctx context.Context, itemID, userID string) (*models.GradeRecord, error) {
	var record models.GradeRecord
	const query = `SELECT ` + gradeRecordColumns + ` FROM grade_records
        WHERE item_id = $1 AND user_id = $2 AND is_current = TRUE AND column_type <> 'RELEASED'
        ORDER BY created_at DESC, id DESC
        LIMIT 1`
	if err := r.db.GetContext(ctx, &record, query, itemID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("current provisional: %w", err)
	}
	return &record, nil
}

// CurrentProvisionalForItems returns the provisional grade per item for
// one user, keyed by item ID. Items without a grade are absent.
func (r *GradeRecordRepository) CurrentProvisionalForItems(ctx context.Context, itemIDs []string, userID string) (map[string]*models.GradeRecord, error) {
	if len(itemIDs) == 0 {
		return map[string]*models.GradeRecord{}, nil
	}
	placeholders := make([]string, len(itemIDs))
	args := make([]interface{}, len(itemIDs)+1)
	for i, id := range itemIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	args[len(args)-1] = userID
	query := fmt.Sprintf(`SELECT DISTINCT ON (item_id) `+gradeRecordColumns+` FROM grade_records
        WHERE item_id IN (%s) AND user_id = $%d AND is_current = TRUE AND column_type <> 'RELEASED'
        ORDER BY item_id, created_at DESC, id DESC`, strings.Join(placeholders, ","), len(args))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("current provisionals: %w", err)
	}
	defer rows.Close()
	result := make(map[string]*models.GradeRecord, len(itemIDs))
	for rows.Next() {
		var record models.GradeRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, fmt.Errorf("scan grade record: %w", err)
		}
		result[record.ItemID] = &record
	}
	return result, nil
}

// History returns every record ever written for an (item, user), newest
// first. Retired records are included; nothing is ever deleted from the
// audit trail by grading activity.
func (r *GradeRecordRepository) History(ctx context.Context, itemID, userID string) ([]models.GradeRecord, error) {
	var records []models.GradeRecord
	const query = `SELECT ` + gradeRecordColumns + ` FROM grade_records
        WHERE item_id = $1 AND user_id = $2
        ORDER BY created_at DESC, id DESC`
	if err := r.db.SelectContext(ctx, &records, query, itemID, userID); err != nil {
		return nil, fmt.Errorf("grade history: %w", err)
	}
	return records, nil
}

// HasCategoryOverride reports whether a manual override currently holds
// the category total for an (item, user). While it holds, aggregation
// write-backs are suppressed.
func (r *GradeRecordRepository) HasCategoryOverride(ctx context.Context, itemID, userID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM grade_records
        WHERE item_id = $1 AND user_id = $2 AND is_current = TRUE AND cat_override = TRUE)`
	if err := r.db.GetContext(ctx, &exists, query, itemID, userID); err != nil {
		return false, fmt.Errorf("check category override: %w", err)
	}
	return exists, nil
}

// RemoveCategoryOverride retires the current override record so the
// next aggregation pass owns the category total again.
func (r *GradeRecordRepository) RemoveCategoryOverride(ctx context.Context, itemID, userID string) (bool, error) {
	const query = `UPDATE grade_records SET is_current = FALSE
        WHERE item_id = $1 AND user_id = $2 AND is_current = TRUE AND cat_override = TRUE`
	res, err := r.db.ExecContext(ctx, query, itemID, userID)
	if err != nil {
		return false, fmt.Errorf("remove category override: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove category override: %w", err)
	}
	return affected > 0, nil
}

// DeleteStale removes retired category write-backs older than the
// cutoff. Only machine-written rows with no raw grade are eligible;
// human grading history is never touched.
func (r *GradeRecordRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM grade_records
        WHERE is_current = FALSE
          AND column_type = 'CATEGORY'
          AND cat_override = FALSE
          AND raw_grade IS NULL
          AND created_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale records: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale records: %w", err)
	}
	return deleted, nil
}

// UpdateDisplayForAdminCode rewrites the display grade of current
// records carrying an admin code after its display label changed.
func (r *GradeRecordRepository) UpdateDisplayForAdminCode(ctx context.Context, code, display string) (int64, error) {
	const query = `UPDATE grade_records SET display_grade = $1
        WHERE admin_code = $2 AND is_current = TRUE`
	res, err := r.db.ExecContext(ctx, query, display, code)
	if err != nil {
		return 0, fmt.Errorf("update display for admin code: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update display for admin code: %w", err)
	}
	return updated, nil
}
