package repository

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mygrades-api/internal/models"
)

func newTraceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTraceSaveAndLatest(t *testing.T) {
	db, mock, cleanup := newTraceRepoMock(t)
	defer cleanup()

	repo := NewTraceRepository(db)

	value := 15.0
	trace := &models.AggregationTrace{
		CourseID:          "course-1",
		ItemID:            "item-top",
		UserID:            "user-1",
		Value:             &value,
		DisplayGrade:      "B3",
		CompletionPercent: 100,
		Children: []models.ChildContribution{
			{ItemID: "item-essay", Name: "Essay", Value: &value, NormalizedWeight: 1, Available: true},
		},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO aggregation_traces")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Save(context.Background(), trace))
	require.NotEmpty(t, trace.ID)

	children, err := json.Marshal(trace.Children)
	require.NoError(t, err)
	rows := sqlmock.NewRows([]string{"id", "course_id", "item_id", "user_id", "value", "display_grade", "admin_code", "completion_percent", "no_data", "children", "created_at"}).
		AddRow(trace.ID, "course-1", "item-top", "user-1", value, "B3", "", 100.0, false, children, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM aggregation_traces")).
		WithArgs("item-top", "user-1").
		WillReturnRows(rows)

	loaded, err := repo.Latest(context.Background(), "item-top", "user-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "B3", loaded.DisplayGrade)
	require.Len(t, loaded.Children, 1)
	assert.Equal(t, "item-essay", loaded.Children[0].ItemID)
	assert.Equal(t, 1.0, loaded.Children[0].NormalizedWeight)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTraceLatestAbsent(t *testing.T) {
	db, mock, cleanup := newTraceRepoMock(t)
	defer cleanup()

	repo := NewTraceRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM aggregation_traces")).
		WithArgs("item-top", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	loaded, err := repo.Latest(context.Background(), "item-top", "user-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
	require.NoError(t, mock.ExpectationsWereMet())
}
