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

// GradebookRepository reads the mirrored category and item structure of
// a course. The structure is written by the host platform sync, so this
// repository is read-mostly; only conversion maps are written here.
type GradebookRepository struct {
	db *sqlx.DB
}

// NewGradebookRepository creates a new gradebook repository.
func NewGradebookRepository(db *sqlx.DB) *GradebookRepository {
	return &GradebookRepository{db: db}
}

// LoadCourseTree loads the full category/item structure for a course.
func (r *GradebookRepository) LoadCourseTree(ctx context.Context, courseID string) (*models.CourseTree, error) {
	var categories []models.GradeCategory
	const catQuery = `SELECT id, course_id, parent_id, depth, path, name, strategy, drop_lowest, exclude_empty, hidden, schedule, completion_percent
        FROM grade_categories
        WHERE course_id = $1
        ORDER BY path`
	if err := r.db.SelectContext(ctx, &categories, catQuery, courseID); err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	var items []models.GradeItem
	const itemQuery = `SELECT id, course_id, category_id, item_type, name, grade_type, grade_min, grade_max, scale_id, weight, hidden, locked, converted
        FROM grade_items
        WHERE course_id = $1
        ORDER BY id`
	if err := r.db.SelectContext(ctx, &items, itemQuery, courseID); err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	var resits []models.ResitPair
	const resitQuery = `SELECT id, course_id, category_id, item_id FROM resit_pairs WHERE course_id = $1`
	if err := r.db.SelectContext(ctx, &resits, resitQuery, courseID); err != nil {
		return nil, fmt.Errorf("load resit pairs: %w", err)
	}

	tree := &models.CourseTree{
		CourseID:     courseID,
		Categories:   make(map[string]*models.GradeCategory, len(categories)),
		Items:        make(map[string]*models.GradeItem, len(items)),
		CategoryItem: make(map[string]string),
		Resits:       make(map[string]string, len(resits)),
	}
	for i := range categories {
		tree.Categories[categories[i].ID] = &categories[i]
	}
	for i := range items {
		tree.Items[items[i].ID] = &items[i]
		if items[i].ItemType == models.ItemTypeCategory {
			tree.CategoryItem[items[i].CategoryID] = items[i].ID
		}
	}
	for _, rp := range resits {
		tree.Resits[rp.CategoryID] = rp.ItemID
	}
	return tree, nil
}

// GetItem returns one grade item or nil when absent.
func (r *GradebookRepository) GetItem(ctx context.Context, itemID string) (*models.GradeItem, error) {
	var item models.GradeItem
	const query = `SELECT id, course_id, category_id, item_type, name, grade_type, grade_min, grade_max, scale_id, weight, hidden, locked, converted
        FROM grade_items WHERE id = $1`
	if err := r.db.GetContext(ctx, &item, query, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}

// GetCategory returns one category or nil when absent.
func (r *GradebookRepository) GetCategory(ctx context.Context, categoryID string) (*models.GradeCategory, error) {
	var cat models.GradeCategory
	const query = `SELECT id, course_id, parent_id, depth, path, name, strategy, drop_lowest, exclude_empty, hidden, schedule, completion_percent
        FROM grade_categories WHERE id = $1`
	if err := r.db.GetContext(ctx, &cat, query, categoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &cat, nil
}

// GetScaleValues returns the ordered values of a host scale.
func (r *GradebookRepository) GetScaleValues(ctx context.Context, scaleID string) ([]models.ScaleValue, error) {
	var values []models.ScaleValue
	const query = `SELECT scale_id, value, label FROM scale_values WHERE scale_id = $1 ORDER BY value`
	if err := r.db.SelectContext(ctx, &values, query, scaleID); err != nil {
		return nil, fmt.Errorf("get scale values: %w", err)
	}
	return values, nil
}

// GetConversionMap returns the imported conversion breakpoints for an
// item, ordered by threshold, plus the schedule they project onto.
func (r *GradebookRepository) GetConversionMap(ctx context.Context, itemID string) ([]models.ConversionBreakpoint, models.Schedule, error) {
	var rows []struct {
		Threshold float64         `db:"threshold"`
		Value     float64         `db:"value"`
		Label     string          `db:"label"`
		Schedule  models.Schedule `db:"schedule"`
	}
	const query = `SELECT threshold, value, label, schedule
        FROM conversion_maps
        WHERE item_id = $1
        ORDER BY threshold`
	if err := r.db.SelectContext(ctx, &rows, query, itemID); err != nil {
		return nil, models.ScheduleNone, fmt.Errorf("get conversion map: %w", err)
	}
	if len(rows) == 0 {
		return nil, models.ScheduleNone, nil
	}
	breakpoints := make([]models.ConversionBreakpoint, len(rows))
	for i, row := range rows {
		breakpoints[i] = models.ConversionBreakpoint{Threshold: row.Threshold, Value: row.Value, Label: row.Label}
	}
	return breakpoints, rows[0].Schedule, nil
}

// SaveConversionMap replaces the conversion map of an item.
func (r *GradebookRepository) SaveConversionMap(ctx context.Context, courseID, itemID string, schedule models.Schedule, breakpoints []models.ConversionBreakpoint) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM conversion_maps WHERE item_id = $1", itemID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear conversion map: %w", err)
	}
	const insert = `INSERT INTO conversion_maps (id, course_id, item_id, schedule, threshold, value, label)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, bp := range breakpoints {
		if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), courseID, itemID, schedule, bp.Threshold, bp.Value, bp.Label); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert conversion breakpoint: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, "UPDATE grade_items SET converted = TRUE WHERE id = $1", itemID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("mark item converted: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit conversion map: %w", err)
	}
	return nil
}
