package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// EnrolmentRepository reads the mirrored course membership used to
// scope bulk recalculation.
type EnrolmentRepository struct {
	db *sqlx.DB
}

// NewEnrolmentRepository creates a new enrolment repository.
func NewEnrolmentRepository(db *sqlx.DB) *EnrolmentRepository {
	return &EnrolmentRepository{db: db}
}

// ListActiveUsers returns the IDs of actively enrolled users, in stable
// order.
func (r *EnrolmentRepository) ListActiveUsers(ctx context.Context, courseID string) ([]string, error) {
	var userIDs []string
	const query = `SELECT user_id FROM enrolments WHERE course_id = $1 AND active = TRUE ORDER BY user_id`
	if err := r.db.SelectContext(ctx, &userIDs, query, courseID); err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return userIDs, nil
}

// IsEnrolled reports whether a user is actively enrolled in a course.
func (r *EnrolmentRepository) IsEnrolled(ctx context.Context, courseID, userID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM enrolments WHERE course_id = $1 AND user_id = $2 AND active = TRUE)`
	if err := r.db.GetContext(ctx, &exists, query, courseID, userID); err != nil {
		return false, fmt.Errorf("check enrolment: %w", err)
	}
	return exists, nil
}
