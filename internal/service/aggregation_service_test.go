package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mygrades-api/internal/models"
	appErrors "github.com/noah-isme/mygrades-api/pkg/errors"
)

type fakeGradebookRepo struct {
	tree *models.CourseTree
}

func (f *fakeGradebookRepo) LoadCourseTree(_ context.Context, _ string) (*models.CourseTree, error) {
	return f.tree, nil
}

func (f *fakeGradebookRepo) GetItem(_ context.Context, itemID string) (*models.GradeItem, error) {
	return f.tree.Items[itemID], nil
}

func (f *fakeGradebookRepo) GetConversionMap(_ context.Context, _ string) ([]models.ConversionBreakpoint, models.Schedule, error) {
	return nil, models.ScheduleNone, nil
}

type fakeRecordRepo struct {
	records     map[string]*models.GradeRecord
	written     []*models.GradeRecord
	overwritten []*models.GradeRecord
}

func (f *fakeRecordRepo) CurrentProvisionalForItems(_ context.Context, itemIDs []string, _ string) (map[string]*models.GradeRecord, error) {
	out := make(map[string]*models.GradeRecord)
	for _, id := range itemIDs {
		if rec, ok := f.records[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (f *fakeRecordRepo) Write(_ context.Context, record *models.GradeRecord) error {
	record.IsCurrent = true
	f.written = append(f.written, record)
	return nil
}

func (f *fakeRecordRepo) OverwriteCategoryCurrent(_ context.Context, record *models.GradeRecord) (bool, error) {
	existing, ok := f.records[record.ItemID]
	if !ok || !existing.IsCurrent || existing.ColumnType != models.ColumnCategory || existing.CatOverride {
		return false, nil
	}
	existing.RawGrade = record.RawGrade
	existing.ConvertedGrade = record.ConvertedGrade
	existing.DisplayGrade = record.DisplayGrade
	existing.WeightedGrade = record.WeightedGrade
	existing.AdminCode = record.AdminCode
	existing.NotAvailable = record.NotAvailable
	existing.AuditBy = record.AuditBy
	f.overwritten = append(f.overwritten, record)
	return true, nil
}

type fakeColumnRepo struct {
	listColumns []models.Column
	listEmpty   bool
}

func (f *fakeColumnRepo) GetOrCreate(_ context.Context, courseID, itemID string, columnType models.ColumnType, other string, points bool) (*models.Column, error) {
	return &models.Column{ID: "col-" + itemID, CourseID: courseID, ItemID: itemID, Type: columnType, Other: other, Points: points}, nil
}

type fakeWeightRepo struct {
	weights map[string]models.AlteredWeight
}

func (f *fakeWeightRepo) ListForUser(_ context.Context, _, _ string) (map[string]models.AlteredWeight, error) {
	if f.weights == nil {
		return map[string]models.AlteredWeight{}, nil
	}
	return f.weights, nil
}

type fakeTraceRepo struct {
	saved map[string]*models.AggregationTrace
}

func (f *fakeTraceRepo) Save(_ context.Context, trace *models.AggregationTrace) error {
	if f.saved == nil {
		f.saved = make(map[string]*models.AggregationTrace)
	}
	f.saved[trace.ItemID+":"+trace.UserID] = trace
	return nil
}

func (f *fakeTraceRepo) Latest(_ context.Context, itemID, userID string) (*models.AggregationTrace, error) {
	return f.saved[itemID+":"+userID], nil
}

type fakeCache struct {
	store map[string][]byte
}

func (f *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := f.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if f.store == nil {
		f.store = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.store[key] = raw
	return nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	delete(f.store, key)
	return nil
}

func (f *fakeCache) DeleteByPattern(_ context.Context, _ string) error {
	f.store = make(map[string][]byte)
	return nil
}

func strPtr(s string) *string {
	return &s
}

func testCategory(id, courseID string, parent *string, depth int, path string) *models.GradeCategory {
	return &models.GradeCategory{
		ID:       id,
		CourseID: courseID,
		ParentID: parent,
		Depth:    depth,
		Path:     path,
		Name:     id,
		Strategy: models.StrategyWeightedMean,
		Schedule: models.ScheduleA,
	}
}

func testActivity(id, categoryID string, weight float64) *models.GradeItem {
	return &models.GradeItem{
		ID:         id,
		CourseID:   "course-1",
		CategoryID: categoryID,
		ItemType:   models.ItemTypeActivity,
		Name:       id,
		GradeType:  models.GradeTypeScale,
		GradeMax:   22,
		Weight:     weight,
	}
}

func testProxy(id, categoryID string) *models.GradeItem {
	return &models.GradeItem{
		ID:         id,
		CourseID:   "course-1",
		CategoryID: categoryID,
		ItemType:   models.ItemTypeCategory,
		Name:       id,
		GradeType:  models.GradeTypeValue,
		GradeMax:   22,
		Weight:     1,
	}
}

func gradedRecord(itemID string, value float64) *models.GradeRecord {
	v := value
	return &models.GradeRecord{
		ID:             "rec-" + itemID,
		CourseID:       "course-1",
		ItemID:         itemID,
		UserID:         "user-1",
		ColumnType:     models.ColumnFirst,
		ConvertedGrade: &v,
		IsCurrent:      true,
	}
}

func simpleTree() *models.CourseTree {
	return &models.CourseTree{
		CourseID: "course-1",
		Categories: map[string]*models.GradeCategory{
			"cat-top": testCategory("cat-top", "course-1", nil, 2, "/c/cat-top"),
		},
		Items: map[string]*models.GradeItem{
			"item-top":   testProxy("item-top", "cat-top"),
			"item-essay": testActivity("item-essay", "cat-top", 50),
			"item-exam":  testActivity("item-exam", "cat-top", 50),
		},
		CategoryItem: map[string]string{"cat-top": "item-top"},
		Resits:       map[string]string{},
	}
}

func newAggregationFixture(tree *models.CourseTree, records map[string]*models.GradeRecord) (*AggregationService, *fakeRecordRepo, *fakeTraceRepo, *fakeCache) {
	admin := NewAdminGradeService(nil, nil)
	recordRepo := &fakeRecordRepo{records: records}
	traceRepo := &fakeTraceRepo{}
	cache := &fakeCache{}
	svc := NewAggregationService(
		&fakeGradebookRepo{tree: tree},
		recordRepo,
		&fakeColumnRepo{},
		&fakeWeightRepo{},
		traceRepo,
		cache,
		NewAggregationEngine(admin, 75),
		admin,
		time.Hour,
		nil,
	)
	return svc, recordRepo, traceRepo, cache
}

func TestAggregateCategoryWritesBackTotal(t *testing.T) {
	tree := simpleTree()
	svc, recordRepo, traceRepo, cache := newAggregationFixture(tree, map[string]*models.GradeRecord{
		"item-essay": gradedRecord("item-essay", 20),
		"item-exam":  gradedRecord("item-exam", 10),
	})

	result, err := svc.AggregateCategory(context.Background(), "course-1", "cat-top", "user-1")
	require.NoError(t, err)
	require.NotNil(t, result.Value)
	assert.Equal(t, 15.0, *result.Value)
	assert.Equal(t, "B3", result.DisplayGrade)
	assert.Equal(t, "item-top", result.ItemID)

	require.Len(t, recordRepo.written, 1)
	written := recordRepo.written[0]
	assert.Equal(t, models.ColumnCategory, written.ColumnType)
	assert.Equal(t, "item-top", written.ItemID)
	assert.Nil(t, written.RawGrade)
	require.NotNil(t, written.ConvertedGrade)
	assert.Equal(t, 15.0, *written.ConvertedGrade)
	assert.Equal(t, systemAuditActor, written.AuditBy)

	trace := traceRepo.saved["item-top:user-1"]
	require.NotNil(t, trace)
	assert.Equal(t, "B3", trace.DisplayGrade)
	require.Len(t, trace.Children, 2)

	_, cached := cache.store[ProvisionalCacheKey("item-top", "user-1")]
	assert.True(t, cached)
}

func TestAggregateCategoryOverwritesStandingTotal(t *testing.T) {
	tree := simpleTree()
	records := map[string]*models.GradeRecord{
		"item-essay": gradedRecord("item-essay", 20),
		"item-exam":  gradedRecord("item-exam", 10),
	}
	svc, recordRepo, _, _ := newAggregationFixture(tree, records)

	_, err := svc.AggregateCategory(context.Background(), "course-1", "cat-top", "user-1")
	require.NoError(t, err)
	require.Len(t, recordRepo.written, 1)

	// The written total becomes the current record, as it would after a
	// reload from storage.
	records["item-top"] = recordRepo.written[0]

	// Recomputing, even after an input changed, updates the standing
	// total in place instead of growing the version chain.
	records["item-exam"] = gradedRecord("item-exam", 14)
	_, err = svc.AggregateCategory(context.Background(), "course-1", "cat-top", "user-1")
	require.NoError(t, err)

	assert.Len(t, recordRepo.written, 1)
	require.Len(t, recordRepo.overwritten, 1)
	current := records["item-top"]
	require.NotNil(t, current.ConvertedGrade)
	assert.Equal(t, 17.0, *current.ConvertedGrade)
	assert.True(t, current.IsCurrent)
}

func TestAggregateCategoryUnknownCategory(t *testing.T) {
	svc, _, _, _ := newAggregationFixture(simpleTree(), nil)

	_, err := svc.AggregateCategory(context.Background(), "course-1", "cat-missing", "user-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAggregateCategoryLockedReturnsStoredTotal(t *testing.T) {
	tree := simpleTree()
	tree.Items["item-top"].Locked = true
	stored := gradedRecord("item-top", 12)
	stored.ColumnType = models.ColumnCategory
	stored.DisplayGrade = "C3"

	svc, recordRepo, _, _ := newAggregationFixture(tree, map[string]*models.GradeRecord{
		"item-top":   stored,
		"item-essay": gradedRecord("item-essay", 20),
		"item-exam":  gradedRecord("item-exam", 10),
	})

	result, err := svc.AggregateCategory(context.Background(), "course-1", "cat-top", "user-1")
	require.NoError(t, err)
	assert.True(t, result.WasLocked)
	require.NotNil(t, result.Value)
	assert.Equal(t, 12.0, *result.Value)
	assert.Equal(t, "C3", result.DisplayGrade)
	assert.Empty(t, recordRepo.written)
}

func TestAggregateCategoryOverrideSuppressesWriteBack(t *testing.T) {
	tree := simpleTree()
	override := gradedRecord("item-top", 18)
	override.ColumnType = models.ColumnCategory
	override.CatOverride = true
	override.DisplayGrade = "A5"

	svc, recordRepo, _, _ := newAggregationFixture(tree, map[string]*models.GradeRecord{
		"item-top":   override,
		"item-essay": gradedRecord("item-essay", 20),
		"item-exam":  gradedRecord("item-exam", 10),
	})

	result, err := svc.AggregateCategory(context.Background(), "course-1", "cat-top", "user-1")
	require.NoError(t, err)
	assert.False(t, result.WasLocked)
	require.NotNil(t, result.Value)
	assert.Equal(t, 18.0, *result.Value)
	assert.Empty(t, recordRepo.written)
}

func resitTree() *models.CourseTree {
	return &models.CourseTree{
		CourseID: "course-1",
		Categories: map[string]*models.GradeCategory{
			"cat-top":   testCategory("cat-top", "course-1", nil, 2, "/c/cat-top"),
			"cat-resit": testCategory("cat-resit", "course-1", strPtr("cat-top"), 3, "/c/cat-top/cat-resit"),
		},
		Items: map[string]*models.GradeItem{
			"item-top":   testProxy("item-top", "cat-top"),
			"item-sub":   testProxy("item-sub", "cat-resit"),
			"item-first": testActivity("item-first", "cat-resit", 100),
			"item-resit": testActivity("item-resit", "cat-resit", 100),
		},
		CategoryItem: map[string]string{"cat-top": "item-top", "cat-resit": "item-sub"},
		Resits:       map[string]string{"cat-resit": "item-resit"},
	}
}

func TestAggregateResitSubstitution(t *testing.T) {
	tree := resitTree()

	// Resit ungraded: the first sitting stands.
	svc, _, _, _ := newAggregationFixture(tree, map[string]*models.GradeRecord{
		"item-first": gradedRecord("item-first", 10),
	})
	result, err := svc.AggregateCategory(context.Background(), "course-1", "cat-resit", "user-1")
	require.NoError(t, err)
	require.NotNil(t, result.Value)
	assert.Equal(t, 10.0, *result.Value)

	// Resit graded: it replaces the first sitting entirely.
	svc, _, traceRepo, _ := newAggregationFixture(tree, map[string]*models.GradeRecord{
		"item-first": gradedRecord("item-first", 10),
		"item-resit": gradedRecord("item-resit", 16),
	})
	result, err = svc.AggregateCategory(context.Background(), "course-1", "cat-resit", "user-1")
	require.NoError(t, err)
	require.NotNil(t, result.Value)
	assert.Equal(t, 16.0, *result.Value)

	trace := traceRepo.saved["item-sub:user-1"]
	require.NotNil(t, trace)
	require.Len(t, trace.Children, 1)
	assert.Equal(t, "item-resit", trace.Children[0].ItemID)
	assert.True(t, trace.Children[0].ResitApplied)

	// Resit marked no submission: back to the first sitting.
	noSub := &models.GradeRecord{
		ID: "rec-ns", CourseID: "course-1", ItemID: "item-resit", UserID: "user-1",
		ColumnType: models.ColumnFirst, AdminCode: string(models.AdminNoSubmission),
		DisplayGrade: "NS", IsCurrent: true,
	}
	svc, _, _, _ = newAggregationFixture(tree, map[string]*models.GradeRecord{
		"item-first": gradedRecord("item-first", 10),
		"item-resit": noSub,
	})
	result, err = svc.AggregateCategory(context.Background(), "course-1", "cat-resit", "user-1")
	require.NoError(t, err)
	require.NotNil(t, result.Value)
	assert.Equal(t, 10.0, *result.Value)
}

func TestAggregateNestedCategoriesPersistEveryLevel(t *testing.T) {
	tree := resitTree()
	svc, recordRepo, traceRepo, _ := newAggregationFixture(tree, map[string]*models.GradeRecord{
		"item-first": gradedRecord("item-first", 14),
	})

	result, err := svc.AggregateCategory(context.Background(), "course-1", "cat-top", "user-1")
	require.NoError(t, err)
	require.NotNil(t, result.Value)
	assert.Equal(t, 14.0, *result.Value)

	// Both the nested category and the grand total were written back.
	require.Len(t, recordRepo.written, 2)
	assert.Equal(t, "item-sub", recordRepo.written[0].ItemID)
	assert.Equal(t, "item-top", recordRepo.written[1].ItemID)
	assert.NotNil(t, traceRepo.saved["item-sub:user-1"])
	assert.NotNil(t, traceRepo.saved["item-top:user-1"])
}

func TestExplainReadsStoredTrace(t *testing.T) {
	tree := simpleTree()
	svc, _, _, _ := newAggregationFixture(tree, map[string]*models.GradeRecord{
		"item-essay": gradedRecord("item-essay", 20),
		"item-exam":  gradedRecord("item-exam", 10),
	})

	_, err := svc.Explain(context.Background(), "course-1", "cat-top", "user-1")
	require.Error(t, err)

	result, err := svc.AggregateCategory(context.Background(), "course-1", "cat-top", "user-1")
	require.NoError(t, err)

	trace, err := svc.Explain(context.Background(), "course-1", "cat-top", "user-1")
	require.NoError(t, err)
	assert.Equal(t, result.DisplayGrade, trace.DisplayGrade)
	assert.Equal(t, result.Children, trace.Children)
}

func TestAggregateUserCoversTopLevelCategories(t *testing.T) {
	tree := simpleTree()
	svc, _, _, _ := newAggregationFixture(tree, map[string]*models.GradeRecord{
		"item-essay": gradedRecord("item-essay", 20),
		"item-exam":  gradedRecord("item-exam", 10),
	})

	results, err := svc.AggregateUser(context.Background(), "course-1", "user-1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "cat-top", results[0].CategoryID)
}
