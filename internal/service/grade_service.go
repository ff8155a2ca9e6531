package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mygrades-api/internal/dto"
	"github.com/noah-isme/mygrades-api/internal/models"
	appErrors "github.com/noah-isme/mygrades-api/pkg/errors"
)

type gradeGradebookRepo interface {
	LoadCourseTree(ctx context.Context, courseID string) (*models.CourseTree, error)
	GetItem(ctx context.Context, itemID string) (*models.GradeItem, error)
	GetConversionMap(ctx context.Context, itemID string) ([]models.ConversionBreakpoint, models.Schedule, error)
}

type gradeRecordRepo interface {
	Write(ctx context.Context, record *models.GradeRecord) error
	CurrentProvisional(ctx context.Context, itemID, userID string) (*models.GradeRecord, error)
	History(ctx context.Context, itemID, userID string) ([]models.GradeRecord, error)
	RemoveCategoryOverride(ctx context.Context, itemID, userID string) (bool, error)
	UpdateDisplayForAdminCode(ctx context.Context, code, display string) (int64, error)
}

type gradeColumnRepo interface {
	GetOrCreate(ctx context.Context, courseID, itemID string, columnType models.ColumnType, other string, points bool) (*models.Column, error)
	ListByItem(ctx context.Context, itemID string) ([]models.Column, error)
}

type reaggregator interface {
	ReaggregateForItem(ctx context.Context, courseID, itemID, userID string) error
	AggregateCategory(ctx context.Context, courseID, categoryID, userID string) (*models.AggregationResult, error)
}

// GradeService handles manual grade capture: column writes, category
// overrides, history, and the provisional view. Every write lands as a
// fresh ledger record and triggers re-aggregation of the totals above
// the item.
type GradeService struct {
	gradebook   gradeGradebookRepo
	records     gradeRecordRepo
	columns     gradeColumnRepo
	cache       cacheStore
	admin       *AdminGradeService
	aggregation reaggregator
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradeService constructs a grade service.
func NewGradeService(
	gradebook gradeGradebookRepo,
	records gradeRecordRepo,
	columns gradeColumnRepo,
	cache cacheStore,
	admin *AdminGradeService,
	aggregation reaggregator,
	validate *validator.Validate,
	logger *zap.Logger,
) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		gradebook:   gradebook,
		records:     records,
		columns:     columns,
		cache:       cache,
		admin:       admin,
		aggregation: aggregation,
		validator:   validate,
		logger:      logger,
	}
}

// WithMetrics attaches cache instrumentation. A nil receiver-safe
// MetricsService keeps this optional.
func (s *GradeService) WithMetrics(metrics *MetricsService) *GradeService {
	s.metrics = metrics
	return s
}

// WriteGrade captures a manual grade into a column. The caller must
// hold the grade-editing capability; without it the write is rejected
// outright, never silently dropped.
func (s *GradeService) WriteGrade(ctx context.Context, claims *models.JWTClaims, courseID string, req dto.WriteGradeRequest) (*models.GradeRecord, error) {
	if claims == nil || !claims.CanEditGrades {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "grade editing capability required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if (req.RawGrade == nil) == (req.AdminCode == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of rawGrade and adminCode is required")
	}

	tree, err := s.gradebook.LoadCourseTree(ctx, courseID)
	if err != nil {
		return nil, err
	}
	item, ok := tree.Items[req.ItemID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("item %s not found in course %s", req.ItemID, courseID))
	}
	if item.Locked {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("item %s is locked", req.ItemID))
	}
	if item.ItemType == models.ItemTypeCategory {
		return nil, appErrors.Clone(appErrors.ErrValidation, "category totals are written through the override endpoint")
	}

	record := &models.GradeRecord{
		CourseID:     courseID,
		ItemID:       req.ItemID,
		UserID:       req.UserID,
		ColumnType:   models.ColumnType(req.ColumnType),
		RawGrade:     req.RawGrade,
		AuditBy:      claims.UserID,
		AuditComment: req.Comment,
	}

	mapping, err := s.mappingFor(ctx, item)
	if err != nil {
		return nil, err
	}

	if req.AdminCode != "" {
		// An item takes the level of the category holding it.
		level := tree.Level(item.CategoryID)
		if err := s.admin.ValidateAssignment(models.AdminCode(req.AdminCode), level, false); err != nil {
			return nil, err
		}
		record.AdminCode = req.AdminCode
		record.DisplayGrade = s.admin.Display(models.AdminCode(req.AdminCode))
	} else {
		value, display, err := mapping.Import(req.RawGrade)
		if err != nil {
			return nil, err
		}
		record.ConvertedGrade = value
		record.DisplayGrade = display
	}

	column, err := s.columns.GetOrCreate(ctx, courseID, req.ItemID, models.ColumnType(req.ColumnType), req.Other, !mapping.IsScale())
	if err != nil {
		return nil, err
	}
	record.ColumnID = column.ID
	record.Points = column.Points

	if err := s.records.Write(ctx, record); err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, ProvisionalCacheKey(req.ItemID, req.UserID)); err != nil {
		s.logger.Warn("provisional cache invalidation failed",
			zap.String("item_id", req.ItemID), zap.String("user_id", req.UserID), zap.Error(err))
	}
	if err := s.aggregation.ReaggregateForItem(ctx, courseID, req.ItemID, req.UserID); err != nil {
		return nil, err
	}
	return record, nil
}

// OverrideCategory pins a category total to a manual value. The
// override record suppresses aggregation write-backs until removed.
func (s *GradeService) OverrideCategory(ctx context.Context, claims *models.JWTClaims, courseID string, req dto.OverrideCategoryRequest) (*models.GradeRecord, error) {
	if claims == nil || !claims.CanEditGrades {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "grade editing capability required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}
	if (req.RawGrade == nil) == (req.AdminCode == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of rawGrade and adminCode is required")
	}

	tree, err := s.gradebook.LoadCourseTree(ctx, courseID)
	if err != nil {
		return nil, err
	}
	category, ok := tree.Categories[req.CategoryID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("category %s not found in course %s", req.CategoryID, courseID))
	}
	proxyItemID, ok := tree.CategoryItem[req.CategoryID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("category %s has no total item", req.CategoryID))
	}
	proxyItem := tree.Items[proxyItemID]
	if proxyItem != nil && proxyItem.Locked {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("category total %s is locked", proxyItemID))
	}

	record := &models.GradeRecord{
		CourseID:     courseID,
		ItemID:       proxyItemID,
		UserID:       req.UserID,
		ColumnType:   models.ColumnCategory,
		CatOverride:  true,
		RawGrade:     req.RawGrade,
		AuditBy:      claims.UserID,
		AuditComment: req.Comment,
	}

	if req.AdminCode != "" {
		// The course total takes the grand total menu. Any other
		// category total sits at its parent's level, like an item.
		level := tree.Level(req.CategoryID)
		if err := s.admin.ValidateAssignment(models.AdminCode(req.AdminCode), level-1, level == 1); err != nil {
			return nil, err
		}
		record.AdminCode = req.AdminCode
		record.DisplayGrade = s.admin.Display(models.AdminCode(req.AdminCode))
	} else {
		mapping := s.categoryMapping(category, proxyItem)
		value, display, err := mapping.Import(req.RawGrade)
		if err != nil {
			return nil, err
		}
		record.ConvertedGrade = value
		record.DisplayGrade = display
	}

	column, err := s.columns.GetOrCreate(ctx, courseID, proxyItemID, models.ColumnCategory, "", category.Schedule == models.ScheduleNone)
	if err != nil {
		return nil, err
	}
	record.ColumnID = column.ID

	if err := s.records.Write(ctx, record); err != nil {
		return nil, err
	}
	if err := s.cache.Delete(ctx, ProvisionalCacheKey(proxyItemID, req.UserID)); err != nil {
		s.logger.Warn("provisional cache invalidation failed",
			zap.String("item_id", proxyItemID), zap.String("user_id", req.UserID), zap.Error(err))
	}
	// Parents consume the override, so the chain above still moves.
	if err := s.aggregation.ReaggregateForItem(ctx, courseID, proxyItemID, req.UserID); err != nil {
		return nil, err
	}
	return record, nil
}

// RemoveOverride retires a category override and hands the total back
// to aggregation.
func (s *GradeService) RemoveOverride(ctx context.Context, claims *models.JWTClaims, courseID, categoryID, userID string) error {
	if claims == nil || !claims.CanEditGrades {
		return appErrors.Clone(appErrors.ErrForbidden, "grade editing capability required")
	}
	tree, err := s.gradebook.LoadCourseTree(ctx, courseID)
	if err != nil {
		return err
	}
	proxyItemID, ok := tree.CategoryItem[categoryID]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("category %s not found in course %s", categoryID, courseID))
	}
	removed, err := s.records.RemoveCategoryOverride(ctx, proxyItemID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "no override held for this category and user")
	}
	if err := s.cache.Delete(ctx, ProvisionalCacheKey(proxyItemID, userID)); err != nil {
		s.logger.Warn("provisional cache invalidation failed",
			zap.String("item_id", proxyItemID), zap.String("user_id", userID), zap.Error(err))
	}
	return s.aggregation.ReaggregateForItem(ctx, courseID, proxyItemID, userID)
}

// Provisional returns the provisional grade of an (item, user), served
// from cache when warm.
func (s *GradeService) Provisional(ctx context.Context, itemID, userID string) (*models.GradeRecord, error) {
	var cached models.GradeRecord
	if err := s.cache.Get(ctx, ProvisionalCacheKey(itemID, userID), &cached); err == nil {
		s.metrics.RecordCacheLookup(true)
		return &cached, nil
	}
	s.metrics.RecordCacheLookup(false)

	record, err := s.records.CurrentProvisional(ctx, itemID, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no grade held for this item and user")
	}
	if err := s.cache.Set(ctx, ProvisionalCacheKey(itemID, userID), record, 0); err != nil {
		s.logger.Warn("provisional cache backfill failed", zap.String("item_id", itemID), zap.Error(err))
	}
	return record, nil
}

// UpdateAdminDisplay changes the display label of an administrative
// grade code and rewrites the stored display grades that carry it.
func (s *GradeService) UpdateAdminDisplay(ctx context.Context, claims *models.JWTClaims, req dto.UpdateAdminDisplayRequest) (int64, error) {
	if claims == nil || claims.Role != models.RoleAdmin {
		return 0, appErrors.Clone(appErrors.ErrForbidden, "administrator role required")
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid display payload")
	}
	ag, err := s.admin.SetDisplay(models.AdminCode(req.Code), req.Display, req.Description)
	if err != nil {
		return 0, err
	}
	return s.records.UpdateDisplayForAdminCode(ctx, req.Code, ag.Display)
}

// History returns the full audit trail of an (item, user).
func (s *GradeService) History(ctx context.Context, itemID, userID string) ([]models.GradeRecord, error) {
	return s.records.History(ctx, itemID, userID)
}

// ListColumns returns an item's columns with derived descriptions and
// editability. RELEASED and CATEGORY columns are read-only surfaces,
// and columns captured as raw points freeze once a conversion map
// applies to the item.
func (s *GradeService) ListColumns(ctx context.Context, itemID string) ([]models.Column, error) {
	item, err := s.gradebook.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("item %s not found", itemID))
	}
	columns, err := s.columns.ListByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	// A capture always offers a FIRST column, even before any grade
	// has been written into one.
	hasFirst := false
	for _, col := range columns {
		if col.Type == models.ColumnFirst {
			hasFirst = true
			break
		}
	}
	if !hasFirst {
		first := models.Column{CourseID: item.CourseID, ItemID: itemID, Type: models.ColumnFirst}
		if mapping, mapErr := s.mappingFor(ctx, item); mapErr == nil {
			first.Points = !mapping.IsScale()
		}
		columns = append(columns, first)
	}

	ordered := make([]models.Column, 0, len(columns))
	// FIRST-family columns lead, PROVISIONAL-family columns close.
	for _, pass := range []func(models.ColumnType) bool{
		func(t models.ColumnType) bool { return t == models.ColumnFirst || t == models.ColumnSecond },
		func(t models.ColumnType) bool {
			return t != models.ColumnFirst && t != models.ColumnSecond &&
				t != models.ColumnProvisional && t != models.ColumnReleased
		},
		func(t models.ColumnType) bool { return t == models.ColumnProvisional || t == models.ColumnReleased },
	} {
		for _, col := range columns {
			if pass(col.Type) {
				col.Description = describeColumn(col)
				col.Editable = columnEditable(col, item)
				ordered = append(ordered, col)
			}
		}
	}
	return ordered, nil
}

func columnEditable(col models.Column, item *models.GradeItem) bool {
	if item.Converted && col.Points {
		return false
	}
	return col.Type != models.ColumnReleased && col.Type != models.ColumnCategory
}

func describeColumn(col models.Column) string {
	switch col.Type {
	case models.ColumnFirst:
		return "First grade"
	case models.ColumnSecond:
		return "Second grade"
	case models.ColumnProvisional:
		return "Provisional"
	case models.ColumnReleased:
		return "Released"
	case models.ColumnCategory:
		return "Category total"
	case models.ColumnOther:
		return col.Other
	}
	return string(col.Type)
}

func (s *GradeService) mappingFor(ctx context.Context, item *models.GradeItem) (*Mapping, error) {
	var conversion *Mapping
	if item.Converted {
		breakpoints, schedule, err := s.gradebook.GetConversionMap(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		if len(breakpoints) > 0 {
			conversion, err = CustomMapping(schedule, breakpoints)
			if err != nil {
				return nil, err
			}
		}
	}
	return MappingForItem(item, conversion)
}

func (s *GradeService) categoryMapping(category *models.GradeCategory, proxyItem *models.GradeItem) *Mapping {
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
