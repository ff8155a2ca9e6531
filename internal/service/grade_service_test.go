package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mygrades-api/internal/dto"
	"github.com/noah-isme/mygrades-api/internal/models"
	appErrors "github.com/noah-isme/mygrades-api/pkg/errors"
)

func (f *fakeRecordRepo) CurrentProvisional(_ context.Context, itemID, _ string) (*models.GradeRecord, error) {
	return f.records[itemID], nil
}

func (f *fakeRecordRepo) History(_ context.Context, itemID, _ string) ([]models.GradeRecord, error) {
	var out []models.GradeRecord
	if rec, ok := f.records[itemID]; ok {
		out = append(out, *rec)
	}
	return out, nil
}

func (f *fakeRecordRepo) RemoveCategoryOverride(_ context.Context, itemID, _ string) (bool, error) {
	rec, ok := f.records[itemID]
	if !ok || !rec.CatOverride {
		return false, nil
	}
	rec.CatOverride = false
	return true, nil
}

func (f *fakeRecordRepo) UpdateDisplayForAdminCode(_ context.Context, code, display string) (int64, error) {
	var updated int64
	for _, rec := range f.records {
		if rec.AdminCode == code && rec.IsCurrent {
			rec.DisplayGrade = display
			updated++
		}
	}
	return updated, nil
}

func (f *fakeColumnRepo) ListByItem(_ context.Context, itemID string) ([]models.Column, error) {
	if f.listEmpty {
		return nil, nil
	}
	if f.listColumns != nil {
		return f.listColumns, nil
	}
	return []models.Column{
		{ID: "c1", ItemID: itemID, Type: models.ColumnProvisional, CreatedAt: time.Unix(1, 0)},
		{ID: "c2", ItemID: itemID, Type: models.ColumnFirst, CreatedAt: time.Unix(2, 0)},
		{ID: "c3", ItemID: itemID, Type: models.ColumnOther, Other: "Moderated", CreatedAt: time.Unix(3, 0)},
		{ID: "c4", ItemID: itemID, Type: models.ColumnReleased, CreatedAt: time.Unix(4, 0)},
	}, nil
}

type fakeReaggregator struct {
	calls []string
}

func (f *fakeReaggregator) ReaggregateForItem(_ context.Context, _, itemID, userID string) error {
	f.calls = append(f.calls, itemID+":"+userID)
	return nil
}

func (f *fakeReaggregator) AggregateCategory(_ context.Context, _, categoryID, userID string) (*models.AggregationResult, error) {
	f.calls = append(f.calls, categoryID+":"+userID)
	return &models.AggregationResult{CategoryID: categoryID, UserID: userID}, nil
}

func editorClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher, CanEditGrades: true}
}

func newGradeFixture(tree *models.CourseTree, records map[string]*models.GradeRecord) (*GradeService, *fakeRecordRepo, *fakeReaggregator, *fakeCache) {
	recordRepo := &fakeRecordRepo{records: records}
	if recordRepo.records == nil {
		recordRepo.records = map[string]*models.GradeRecord{}
	}
	reagg := &fakeReaggregator{}
	cache := &fakeCache{}
	svc := NewGradeService(
		&fakeGradebookRepo{tree: tree},
		recordRepo,
		&fakeColumnRepo{},
		cache,
		NewAdminGradeService(nil, nil),
		reagg,
		nil,
		nil,
	)
	return svc, recordRepo, reagg, cache
}

func TestWriteGradeRequiresCapability(t *testing.T) {
	svc, recordRepo, _, _ := newGradeFixture(simpleTree(), nil)

	viewer := &models.JWTClaims{UserID: "viewer-1", Role: models.RoleViewer}
	_, err := svc.WriteGrade(context.Background(), viewer, "course-1", dto.WriteGradeRequest{
		ItemID: "item-essay", UserID: "user-1", ColumnType: "FIRST", RawGrade: floatPtr(18),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, recordRepo.written)
}

func TestWriteGradeConvertsAndReaggregates(t *testing.T) {
	svc, recordRepo, reagg, cache := newGradeFixture(simpleTree(), nil)
	cache.store = map[string][]byte{ProvisionalCacheKey("item-essay", "user-1"): []byte("{}")}

	record, err := svc.WriteGrade(context.Background(), editorClaims(), "course-1", dto.WriteGradeRequest{
		ItemID: "item-essay", UserID: "user-1", ColumnType: "FIRST", RawGrade: floatPtr(18),
	})
	require.NoError(t, err)
	require.NotNil(t, record.ConvertedGrade)
	assert.Equal(t, 18.0, *record.ConvertedGrade)
	assert.Equal(t, "A5", record.DisplayGrade)
	assert.Equal(t, "teacher-1", record.AuditBy)

	require.Len(t, recordRepo.written, 1)
	assert.Equal(t, []string{"item-essay:user-1"}, reagg.calls)

	_, stillCached := cache.store[ProvisionalCacheKey("item-essay", "user-1")]
	assert.False(t, stillCached)
}

func TestWriteGradeValidatesAdminCodeLevel(t *testing.T) {
	svc, _, _, _ := newGradeFixture(simpleTree(), nil)

	// Item-level code on an item: accepted.
	record, err := svc.WriteGrade(context.Background(), editorClaims(), "course-1", dto.WriteGradeRequest{
		ItemID: "item-essay", UserID: "user-1", ColumnType: "FIRST", AdminCode: "NOSUBMISSION",
	})
	require.NoError(t, err)
	assert.Equal(t, "NS", record.DisplayGrade)

	// Grand-total outcome code on an item: rejected.
	_, err = svc.WriteGrade(context.Background(), editorClaims(), "course-1", dto.WriteGradeRequest{
		ItemID: "item-essay", UserID: "user-1", ColumnType: "FIRST", AdminCode: "CREDITWITHHELD",
	})
	require.Error(t, err)

	_, err = svc.WriteGrade(context.Background(), editorClaims(), "course-1", dto.WriteGradeRequest{
		ItemID: "item-essay", UserID: "user-1", ColumnType: "FIRST", AdminCode: "BOGUS",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnknownAdminCode.Code, appErrors.FromError(err).Code)
}

func TestWriteGradeRejectsLockedItem(t *testing.T) {
	tree := simpleTree()
	tree.Items["item-essay"].Locked = true
	svc, _, _, _ := newGradeFixture(tree, nil)

	_, err := svc.WriteGrade(context.Background(), editorClaims(), "course-1", dto.WriteGradeRequest{
		ItemID: "item-essay", UserID: "user-1", ColumnType: "FIRST", RawGrade: floatPtr(10),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestWriteGradeRequiresExactlyOneOfGradeAndCode(t *testing.T) {
	svc, _, _, _ := newGradeFixture(simpleTree(), nil)

	_, err := svc.WriteGrade(context.Background(), editorClaims(), "course-1", dto.WriteGradeRequest{
		ItemID: "item-essay", UserID: "user-1", ColumnType: "FIRST",
	})
	require.Error(t, err)

	_, err = svc.WriteGrade(context.Background(), editorClaims(), "course-1", dto.WriteGradeRequest{
		ItemID: "item-essay", UserID: "user-1", ColumnType: "FIRST",
		RawGrade: floatPtr(10), AdminCode: "NOSUBMISSION",
	})
	require.Error(t, err)
}

func TestOverrideCategoryAndRemove(t *testing.T) {
	tree := simpleTree()
	svc, recordRepo, reagg, _ := newGradeFixture(tree, nil)

	record, err := svc.OverrideCategory(context.Background(), editorClaims(), "course-1", dto.OverrideCategoryRequest{
		CategoryID: "cat-top", UserID: "user-1", RawGrade: floatPtr(17), Comment: "board decision",
	})
	require.NoError(t, err)
	assert.True(t, record.CatOverride)
	assert.Equal(t, models.ColumnCategory, record.ColumnType)
	assert.Equal(t, "item-top", record.ItemID)
	assert.Equal(t, "B1", record.DisplayGrade)
	require.Len(t, recordRepo.written, 1)
	assert.Equal(t, []string{"item-top:user-1"}, reagg.calls)

	// Removing with no override held is NotFound.
	err = svc.RemoveOverride(context.Background(), editorClaims(), "course-1", "cat-top", "user-1")
	require.Error(t, err)

	recordRepo.records["item-top"] = record
	require.NoError(t, svc.RemoveOverride(context.Background(), editorClaims(), "course-1", "cat-top", "user-1"))
	assert.False(t, record.CatOverride)
}

func TestOverrideCategoryAdminCodeMenus(t *testing.T) {
	svc, _, _, _ := newGradeFixture(resitTree(), nil)

	// The course total takes the grand total menu.
	record, err := svc.OverrideCategory(context.Background(), editorClaims(), "course-1", dto.OverrideCategoryRequest{
		CategoryID: "cat-top", UserID: "user-1", AdminCode: "CREDITWITHHELD",
	})
	require.NoError(t, err)
	assert.Equal(t, "CW", record.DisplayGrade)

	_, err = svc.OverrideCategory(context.Background(), editorClaims(), "course-1", dto.OverrideCategoryRequest{
		CategoryID: "cat-top", UserID: "user-1", AdminCode: "NOSUBMISSION",
	})
	require.Error(t, err)

	// A nested total takes the item menu of its parent's level, where
	// the level 2 only codes are excluded.
	_, err = svc.OverrideCategory(context.Background(), editorClaims(), "course-1", dto.OverrideCategoryRequest{
		CategoryID: "cat-resit", UserID: "user-1", AdminCode: "NOSUBMISSION",
	})
	require.NoError(t, err)

	_, err = svc.OverrideCategory(context.Background(), editorClaims(), "course-1", dto.OverrideCategoryRequest{
		CategoryID: "cat-resit", UserID: "user-1", AdminCode: "NOSUBMISSION_0",
	})
	require.Error(t, err)
}

func TestProvisionalCacheBackfill(t *testing.T) {
	tree := simpleTree()
	svc, _, _, cache := newGradeFixture(tree, map[string]*models.GradeRecord{
		"item-essay": gradedRecord("item-essay", 20),
	})

	record, err := svc.Provisional(context.Background(), "item-essay", "user-1")
	require.NoError(t, err)
	require.NotNil(t, record.ConvertedGrade)
	assert.Equal(t, 20.0, *record.ConvertedGrade)

	_, cached := cache.store[ProvisionalCacheKey("item-essay", "user-1")]
	assert.True(t, cached)

	_, err = svc.Provisional(context.Background(), "item-exam", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestListColumnsOrderingAndEditability(t *testing.T) {
	svc, _, _, _ := newGradeFixture(simpleTree(), nil)

	columns, err := svc.ListColumns(context.Background(), "item-essay")
	require.NoError(t, err)
	require.Len(t, columns, 4)

	assert.Equal(t, models.ColumnFirst, columns[0].Type)
	assert.Equal(t, models.ColumnOther, columns[1].Type)
	assert.Equal(t, "Moderated", columns[1].Description)
	assert.Equal(t, models.ColumnProvisional, columns[2].Type)
	assert.Equal(t, models.ColumnReleased, columns[3].Type)

	assert.True(t, columns[0].Editable)
	assert.False(t, columns[3].Editable)
}

func newGradeFixtureWithColumns(tree *models.CourseTree, columns *fakeColumnRepo) *GradeService {
	return NewGradeService(
		&fakeGradebookRepo{tree: tree},
		&fakeRecordRepo{records: map[string]*models.GradeRecord{}},
		columns,
		&fakeCache{},
		NewAdminGradeService(nil, nil),
		&fakeReaggregator{},
		nil,
		nil,
	)
}

func TestListColumnsSynthesizesFirstColumn(t *testing.T) {
	tree := simpleTree()
	tree.Items["item-essay"].GradeType = models.GradeTypeValue
	tree.Items["item-essay"].GradeMax = 100
	svc := newGradeFixtureWithColumns(tree, &fakeColumnRepo{listColumns: []models.Column{
		{ID: "c1", ItemID: "item-essay", Type: models.ColumnProvisional},
		{ID: "c2", ItemID: "item-essay", Type: models.ColumnOther, Other: "Moderated"},
	}})

	columns, err := svc.ListColumns(context.Background(), "item-essay")
	require.NoError(t, err)
	require.Len(t, columns, 3)

	// The capture leads with a FIRST column even though none has been
	// written yet, and it records the raw points capture.
	assert.Equal(t, models.ColumnFirst, columns[0].Type)
	assert.Equal(t, "First grade", columns[0].Description)
	assert.True(t, columns[0].Points)
	assert.True(t, columns[0].Editable)
	assert.Equal(t, models.ColumnOther, columns[1].Type)
	assert.Equal(t, models.ColumnProvisional, columns[2].Type)
}

func TestListColumnsNoColumnsAtAll(t *testing.T) {
	svc := newGradeFixtureWithColumns(simpleTree(), &fakeColumnRepo{listEmpty: true})

	columns, err := svc.ListColumns(context.Background(), "item-essay")
	require.NoError(t, err)
	require.Len(t, columns, 1)
	assert.Equal(t, models.ColumnFirst, columns[0].Type)
	assert.True(t, columns[0].Editable)
	// A 22-point schedule item captures on the scale, not raw points.
	assert.False(t, columns[0].Points)
}

func TestListColumnsPointsFreezeAfterConversion(t *testing.T) {
	tree := simpleTree()
	tree.Items["item-essay"].Converted = true
	svc := newGradeFixtureWithColumns(tree, &fakeColumnRepo{listColumns: []models.Column{
		{ID: "c1", ItemID: "item-essay", Type: models.ColumnFirst, Points: true},
		{ID: "c2", ItemID: "item-essay", Type: models.ColumnSecond},
		{ID: "c3", ItemID: "item-essay", Type: models.ColumnProvisional},
	}})

	columns, err := svc.ListColumns(context.Background(), "item-essay")
	require.NoError(t, err)
	require.Len(t, columns, 3)

	// The points column predates the conversion map and is frozen;
	// scale columns stay editable.
	assert.Equal(t, models.ColumnFirst, columns[0].Type)
	assert.False(t, columns[0].Editable)
	assert.Equal(t, models.ColumnSecond, columns[1].Type)
	assert.True(t, columns[1].Editable)
}

func TestListColumnsUnknownItem(t *testing.T) {
	svc := newGradeFixtureWithColumns(simpleTree(), &fakeColumnRepo{})

	_, err := svc.ListColumns(context.Background(), "item-missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUpdateAdminDisplayRewritesRecords(t *testing.T) {
	nsRecord := gradedRecord("item-essay", 0)
	nsRecord.ConvertedGrade = nil
	nsRecord.AdminCode = "NOSUBMISSION"
	nsRecord.DisplayGrade = "NS"
	svc, _, _, _ := newGradeFixture(simpleTree(), map[string]*models.GradeRecord{
		"item-essay": nsRecord,
	})

	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, CanEditGrades: true}
	updated, err := svc.UpdateAdminDisplay(context.Background(), admin, dto.UpdateAdminDisplayRequest{
		Code: "NOSUBMISSION", Display: "NSUB",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)
	assert.Equal(t, "NSUB", nsRecord.DisplayGrade)

	// Only administrators maintain the catalogue.
	_, err = svc.UpdateAdminDisplay(context.Background(), editorClaims(), dto.UpdateAdminDisplayRequest{
		Code: "NOSUBMISSION", Display: "X",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdateAdminDisplay(context.Background(), admin, dto.UpdateAdminDisplayRequest{
		Code: "BOGUS", Display: "X",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnknownAdminCode.Code, appErrors.FromError(err).Code)
}
