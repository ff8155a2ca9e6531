package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mygrades-api/internal/models"
	appErrors "github.com/noah-isme/mygrades-api/pkg/errors"
)

// systemAuditActor marks grade records written by the aggregation pass
// rather than a person.
const systemAuditActor = "system:aggregation"

// ProvisionalCacheKey is the cache key of the provisional grade for an
// (item, user) pair.
func ProvisionalCacheKey(itemID, userID string) string {
	return fmt.Sprintf("provisional:%s:%s", itemID, userID)
}

type aggregationGradebookRepo interface {
	LoadCourseTree(ctx context.Context, courseID string) (*models.CourseTree, error)
	GetConversionMap(ctx context.Context, itemID string) ([]models.ConversionBreakpoint, models.Schedule, error)
}

type aggregationRecordRepo interface {
	CurrentProvisionalForItems(ctx context.Context, itemIDs []string, userID string) (map[string]*models.GradeRecord, error)
	Write(ctx context.Context, record *models.GradeRecord) error
	OverwriteCategoryCurrent(ctx context.Context, record *models.GradeRecord) (bool, error)
}

type aggregationColumnRepo interface {
	GetOrCreate(ctx context.Context, courseID, itemID string, columnType models.ColumnType, other string, points bool) (*models.Column, error)
}

type aggregationWeightRepo interface {
	ListForUser(ctx context.Context, courseID, userID string) (map[string]models.AlteredWeight, error)
}

type aggregationTraceRepo interface {
	Save(ctx context.Context, trace *models.AggregationTrace) error
	Latest(ctx context.Context, itemID, userID string) (*models.AggregationTrace, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// AggregationService orchestrates the aggregation pass: it loads the
// course structure and grades, walks the category tree bottom-up
// through the pure engine, and writes each category total back as a
// CATEGORY grade record plus a stored trace.
type AggregationService struct {
	gradebook aggregationGradebookRepo
	records   aggregationRecordRepo
	columns   aggregationColumnRepo
	weights   aggregationWeightRepo
	traces    aggregationTraceRepo
	cache     cacheStore
	engine    *AggregationEngine
	admin     *AdminGradeService
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewAggregationService wires an aggregation service.
func NewAggregationService(
	gradebook aggregationGradebookRepo,
	records aggregationRecordRepo,
	columns aggregationColumnRepo,
	weights aggregationWeightRepo,
	traces aggregationTraceRepo,
	cache cacheStore,
	engine *AggregationEngine,
	admin *AdminGradeService,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *AggregationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &AggregationService{
		gradebook: gradebook,
		records:   records,
		columns:   columns,
		weights:   weights,
		traces:    traces,
		cache:     cache,
		engine:    engine,
		admin:     admin,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// AggregateCategory recomputes the total of one category, and every
// category beneath it, for one user. All affected totals are persisted.
func (s *AggregationService) AggregateCategory(ctx context.Context, courseID, categoryID, userID string) (*models.AggregationResult, error) {
	tree, err := s.gradebook.LoadCourseTree(ctx, courseID)
	if err != nil {
		return nil, err
	}
	category, ok := tree.Categories[categoryID]
	if !ok || category.CourseID != courseID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("category %s not found in course %s", categoryID, courseID))
	}

	records, weights, err := s.loadUserState(ctx, tree, userID)
	if err != nil {
		return nil, err
	}

	return s.fold(ctx, tree, category, userID, records, weights)
}

// AggregateUser recomputes every top-level category total for one user.
func (s *AggregationService) AggregateUser(ctx context.Context, courseID, userID string) ([]*models.AggregationResult, error) {
	tree, err := s.gradebook.LoadCourseTree(ctx, courseID)
	if err != nil {
		return nil, err
	}
	records, weights, err := s.loadUserState(ctx, tree, userID)
	if err != nil {
		return nil, err
	}

	var results []*models.AggregationResult
	for _, category := range s.topLevelCategories(tree) {
		result, err := s.fold(ctx, tree, category, userID, records, weights)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// ReaggregateForItem recomputes the totals affected by a change to one
// item's grade or weight: the top-level category above the item, which
// covers every intermediate total on the way up.
func (s *AggregationService) ReaggregateForItem(ctx context.Context, courseID, itemID, userID string) error {
	tree, err := s.gradebook.LoadCourseTree(ctx, courseID)
	if err != nil {
		return err
	}
	item, ok := tree.Items[itemID]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("item %s not found in course %s", itemID, courseID))
	}

	categoryID := item.CategoryID
	for {
		category, ok := tree.Categories[categoryID]
		if !ok {
			return appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("item %s has a dangling category %s", itemID, categoryID))
		}
		if tree.Level(category.ID) <= 1 || category.ParentID == nil {
			records, weights, err := s.loadUserState(ctx, tree, userID)
			if err != nil {
				return err
			}
			_, err = s.fold(ctx, tree, category, userID, records, weights)
			return err
		}
		categoryID = *category.ParentID
	}
}

// Explain returns the stored breakdown of the last aggregation pass for
// a category and user. It never recomputes: what it reports is exactly
// what the last pass did.
func (s *AggregationService) Explain(ctx context.Context, courseID, categoryID, userID string) (*models.AggregationTrace, error) {
	tree, err := s.gradebook.LoadCourseTree(ctx, courseID)
	if err != nil {
		return nil, err
	}
	proxyItemID, ok := tree.CategoryItem[categoryID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("category %s has no total item", categoryID))
	}
	trace, err := s.traces.Latest(ctx, proxyItemID, userID)
	if err != nil {
		return nil, err
	}
	if trace == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no aggregation has run for this category and user")
	}
	return trace, nil
}

func (s *AggregationService) loadUserState(ctx context.Context, tree *models.CourseTree, userID string) (map[string]*models.GradeRecord, map[string]models.AlteredWeight, error) {
	itemIDs := make([]string, 0, len(tree.Items))
	for id := range tree.Items {
		itemIDs = append(itemIDs, id)
	}
	records, err := s.records.CurrentProvisionalForItems(ctx, itemIDs, userID)
	if err != nil {
		return nil, nil, err
	}
	weights, err := s.weights.ListForUser(ctx, tree.CourseID, userID)
	if err != nil {
		return nil, nil, err
	}
	return records, weights, nil
}

func (s *AggregationService) topLevelCategories(tree *models.CourseTree) []*models.GradeCategory {
	var top []*models.GradeCategory
	for _, category := range tree.Categories {
		if tree.Level(category.ID) == 1 {
			top = append(top, category)
		}
	}
	sortCategories(top)
	return top
}

// fold aggregates one category node, recursing into child categories
// first. Locked and overridden totals short-circuit without touching
// storage.
func (s *AggregationService) fold(ctx context.Context, tree *models.CourseTree, category *models.GradeCategory, userID string, records map[string]*models.GradeRecord, weights map[string]models.AlteredWeight) (*models.AggregationResult, error) {
	proxyItemID := tree.CategoryItem[category.ID]
	proxyItem := tree.Items[proxyItemID]
	proxyRecord := records[proxyItemID]

	if proxyItem != nil && proxyItem.Locked {
		result := resultFromRecord(category.ID, proxyItemID, userID, proxyRecord)
		result.WasLocked = true
		return result, nil
	}
	if proxyRecord != nil && proxyRecord.CatOverride {
		return resultFromRecord(category.ID, proxyItemID, userID, proxyRecord), nil
	}

	children, err := s.collectChildren(ctx, tree, category, userID, records, weights)
	if err != nil {
		return nil, err
	}

	result := s.engine.Aggregate(category, tree.IsGrandTotal(category.ID), children, s.categoryMapping(category, proxyItem))
	result.ItemID = proxyItemID
	result.UserID = userID

	if err := s.persist(ctx, tree, category, proxyItemID, userID, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// collectChildren resolves the direct children of a category into
// engine inputs, applying resit substitution and altered weights.
func (s *AggregationService) collectChildren(ctx context.Context, tree *models.CourseTree, category *models.GradeCategory, userID string, records map[string]*models.GradeRecord, weights map[string]models.AlteredWeight) ([]ChildGrade, error) {
	subCategories, items := tree.ChildrenOf(category.ID)

	var children []ChildGrade
	for _, sub := range subCategories {
		subResult, err := s.fold(ctx, tree, sub, userID, records, weights)
		if err != nil {
			return nil, err
		}
		subProxyID := tree.CategoryItem[sub.ID]
		weight, altered := s.effectiveWeight(tree.Items[subProxyID], weights)
		subRecord := records[subProxyID]
		children = append(children, ChildGrade{
			ItemID:        subProxyID,
			Name:          sub.Name,
			IsCategory:    true,
			Value:         subResult.Value,
			DisplayGrade:  subResult.DisplayGrade,
			AdminCode:     models.AdminCode(subResult.AdminCode),
			Weight:        weight,
			WeightAltered: altered,
			Hidden:        sub.Hidden,
			Overridden:    subRecord != nil && subRecord.CatOverride,
		})
	}

	items = s.applyResit(tree, category, items, records)
	for _, item := range items {
		weight, altered := s.effectiveWeight(item, weights)
		child := ChildGrade{
			ItemID:        item.ID,
			Name:          item.Name,
			Weight:        weight,
			WeightAltered: altered,
			Hidden:        item.Hidden,
			GradeTypeNone: item.IsGradeTypeNone(),
			ResitApplied:  tree.Resits[category.ID] == item.ID,
		}
		if record := records[item.ID]; record != nil {
			child.Value = record.ConvertedGrade
			child.AdminCode = models.AdminCode(record.AdminCode)
			child.DisplayGrade = record.DisplayGrade
		}
		children = append(children, child)
	}
	return children, nil
}

// applyResit substitutes the resit attempt for the first sitting when
// the category is a two-item resit pair. The resit replaces the first
// sitting entirely unless it is itself a no-submission, in which case
// the first sitting stands.
func (s *AggregationService) applyResit(tree *models.CourseTree, category *models.GradeCategory, items []*models.GradeItem, records map[string]*models.GradeRecord) []*models.GradeItem {
	resitID, ok := tree.Resits[category.ID]
	if !ok || len(items) != 2 {
		return items
	}

	var first, resit *models.GradeItem
	for _, item := range items {
		if item.ID == resitID {
			resit = item
		} else {
			first = item
		}
	}
	if first == nil || resit == nil {
		return items
	}

	resitRecord := records[resit.ID]
	if resitRecord.HasGrade() && !models.AdminCode(resitRecord.AdminCode).IsNoSubmission() {
		// The resit carries the first sitting's weight in the fold.
		substituted := *resit
		substituted.Weight = first.Weight
		return []*models.GradeItem{&substituted}
	}
	return []*models.GradeItem{first}
}

func (s *AggregationService) effectiveWeight(item *models.GradeItem, weights map[string]models.AlteredWeight) (float64, bool) {
	if item == nil {
		return 0, false
	}
	if aw, ok := weights[item.ID]; ok {
		return aw.Weight, true
	}
	return item.Weight, false
}

// categoryMapping picks how a category total is displayed.
func (s *AggregationService) categoryMapping(category *models.GradeCategory, proxyItem *models.GradeItem) *Mapping {
	switch category.Schedule {
	case models.ScheduleA:
		return ScheduleAMapping()
	case models.ScheduleB:
		return ScheduleBMapping()
	}
	if proxyItem != nil {
		return PointsMapping(proxyItem.GradeMin, proxyItem.GradeMax)
	}
	return PointsMapping(0, 22)
}

// persist writes the category total back as a CATEGORY grade record,
// stores the trace, and refreshes the provisional cache.
func (s *AggregationService) persist(ctx context.Context, tree *models.CourseTree, category *models.GradeCategory, proxyItemID, userID string, result *models.AggregationResult) error {
	if proxyItemID == "" {
		return appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("category %s has no total item", category.ID))
	}

	// Category totals display as points only when the category has no
	// schedule to project onto.
	column, err := s.columns.GetOrCreate(ctx, tree.CourseID, proxyItemID, models.ColumnCategory, "", category.Schedule == models.ScheduleNone)
	if err != nil {
		return err
	}

	var weighted float64
	if result.Value != nil {
		weighted = *result.Value
	}
	record := &models.GradeRecord{
		CourseID:       tree.CourseID,
		ItemID:         proxyItemID,
		UserID:         userID,
		ColumnID:       column.ID,
		ColumnType:     models.ColumnCategory,
		ConvertedGrade: result.Value,
		DisplayGrade:   result.DisplayGrade,
		WeightedGrade:  weighted,
		AdminCode:      result.AdminCode,
		NotAvailable:   result.NoData,
		AuditBy:        systemAuditActor,
		IsCurrent:      true,
	}
	// Recomputing an unchanged category must not grow the version
	// chain, so the standing total is overwritten in place. Only the
	// first total for a pair inserts a row.
	overwritten, err := s.records.OverwriteCategoryCurrent(ctx, record)
	if err != nil {
		return err
	}
	if !overwritten {
		if err := s.records.Write(ctx, record); err != nil {
			return err
		}
	}

	trace := &models.AggregationTrace{
		CourseID:          tree.CourseID,
		ItemID:            proxyItemID,
		UserID:            userID,
		Value:             result.Value,
		DisplayGrade:      result.DisplayGrade,
		AdminCode:         result.AdminCode,
		CompletionPercent: result.CompletionPercent,
		NoData:            result.NoData,
		Children:          result.Children,
	}
	if err := s.traces.Save(ctx, trace); err != nil {
		return err
	}

	if err := s.cache.Set(ctx, ProvisionalCacheKey(proxyItemID, userID), record, s.cacheTTL); err != nil {
		s.logger.Warn("provisional cache refresh failed",
			zap.String("item_id", proxyItemID), zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

func resultFromRecord(categoryID, itemID, userID string, record *models.GradeRecord) *models.AggregationResult {
	result := &models.AggregationResult{
		CategoryID: categoryID,
		ItemID:     itemID,
		UserID:     userID,
	}
	if record == nil {
		result.NoData = true
		result.DisplayGrade = DisplayNoGrade
		return result
	}
	result.Value = record.ConvertedGrade
	result.DisplayGrade = record.DisplayGrade
	result.AdminCode = record.AdminCode
	result.NoData = !record.HasGrade()
	return result
}

func sortCategories(cats []*models.GradeCategory) {
	for i := 1; i < len(cats); i++ {
		for j := i; j > 0 && cats[j-1].Path > cats[j].Path; j-- {
			cats[j-1], cats[j] = cats[j], cats[j-1]
		}
	}
}
