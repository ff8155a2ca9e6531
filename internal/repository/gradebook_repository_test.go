package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mygrades-api/internal/models"
)

func newGradebookRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestGradebookLoadCourseTree(t *testing.T) {
	db, mock, cleanup := newGradebookRepoMock(t)
	defer cleanup()

	repo := NewGradebookRepository(db)

	catRows := sqlmock.NewRows([]string{"id", "course_id", "parent_id", "depth", "path", "name", "strategy", "drop_lowest", "exclude_empty", "hidden", "schedule", "completion_percent"}).
		AddRow("cat-top", "course-1", nil, 2, "/root/cat-top", "Course total", "WEIGHTED_MEAN", 0, false, false, "A", nil).
		AddRow("cat-sub", "course-1", "cat-top", 3, "/root/cat-top/cat-sub", "Essays", "WEIGHTED_MEAN", 1, true, false, "A", nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM grade_categories")).
		WithArgs("course-1").
		WillReturnRows(catRows)

	itemRows := sqlmock.NewRows([]string{"id", "course_id", "category_id", "item_type", "name", "grade_type", "grade_min", "grade_max", "scale_id", "weight", "hidden", "locked", "converted"}).
		AddRow("item-top", "course-1", "cat-top", "CATEGORY", "Course total", "VALUE", 0.0, 22.0, nil, 1.0, false, false, false).
		AddRow("item-essay", "course-1", "cat-sub", "ACTIVITY", "Essay", "SCALE", 0.0, 22.0, "scale-1", 50.0, false, false, false)
	mock.ExpectQuery(regexp.QuoteMeta("FROM grade_items")).
		WithArgs("course-1").
		WillReturnRows(itemRows)

	resitRows := sqlmock.NewRows([]string{"id", "course_id", "category_id", "item_id"}).
		AddRow("resit-1", "course-1", "cat-sub", "item-essay")
	mock.ExpectQuery(regexp.QuoteMeta("FROM resit_pairs")).
		WithArgs("course-1").
		WillReturnRows(resitRows)

	tree, err := repo.LoadCourseTree(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, tree.Categories, 2)
	require.Len(t, tree.Items, 2)
	assert.Equal(t, "item-top", tree.CategoryItem["cat-top"])
	assert.Equal(t, "item-essay", tree.Resits["cat-sub"])
	assert.Equal(t, 1, tree.Level("cat-top"))
	assert.True(t, tree.IsGrandTotal("cat-top"))
	assert.Equal(t, 2, tree.Level("cat-sub"))

	cats, items := tree.ChildrenOf("cat-top")
	require.Len(t, cats, 1)
	assert.Equal(t, "cat-sub", cats[0].ID)
	assert.Empty(t, items)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradebookGetItem(t *testing.T) {
	db, mock, cleanup := newGradebookRepoMock(t)
	defer cleanup()

	repo := NewGradebookRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "category_id", "item_type", "name", "grade_type", "grade_min", "grade_max", "scale_id", "weight", "hidden", "locked", "converted"}).
		AddRow("item-essay", "course-1", "cat-sub", "ACTIVITY", "Essay", "SCALE", 0.0, 22.0, "scale-1", 50.0, false, false, true)
	mock.ExpectQuery(regexp.QuoteMeta("FROM grade_items WHERE id")).
		WithArgs("item-essay").
		WillReturnRows(rows)

	item, err := repo.GetItem(context.Background(), "item-essay")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "cat-sub", item.CategoryID)
	assert.True(t, item.Converted)

	mock.ExpectQuery(regexp.QuoteMeta("FROM grade_items WHERE id")).
		WithArgs("item-missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	item, err = repo.GetItem(context.Background(), "item-missing")
	require.NoError(t, err)
	assert.Nil(t, item)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradebookGetConversionMap(t *testing.T) {
	db, mock, cleanup := newGradebookRepoMock(t)
	defer cleanup()

	repo := NewGradebookRepository(db)

	rows := sqlmock.NewRows([]string{"threshold", "value", "label", "schedule"}).
		AddRow(0.0, 0.0, "H", "A").
		AddRow(40.0, 9.0, "D3", "A").
		AddRow(70.0, 18.0, "A5", "A")
	mock.ExpectQuery(regexp.QuoteMeta("FROM conversion_maps")).
		WithArgs("item-1").
		WillReturnRows(rows)

	breakpoints, schedule, err := repo.GetConversionMap(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleA, schedule)
	require.Len(t, breakpoints, 3)
	assert.Equal(t, "D3", breakpoints[1].Label)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradebookGetConversionMapAbsent(t *testing.T) {
	db, mock, cleanup := newGradebookRepoMock(t)
	defer cleanup()

	repo := NewGradebookRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM conversion_maps")).
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows([]string{"threshold", "value", "label", "schedule"}))

	breakpoints, schedule, err := repo.GetConversionMap(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Nil(t, breakpoints)
	assert.Equal(t, models.ScheduleNone, schedule)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradebookSaveConversionMap(t *testing.T) {
	db, mock, cleanup := newGradebookRepoMock(t)
	defer cleanup()

	repo := NewGradebookRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM conversion_maps")).
		WithArgs("item-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO conversion_maps")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO conversion_maps")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE grade_items SET converted = TRUE")).
		WithArgs("item-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SaveConversionMap(context.Background(), "course-1", "item-1", models.ScheduleA, []models.ConversionBreakpoint{
		{Threshold: 0, Value: 0, Label: "H"},
		{Threshold: 50, Value: 12, Label: "C3"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
