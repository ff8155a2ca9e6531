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

type weightRepo interface {
	Get(ctx context.Context, itemID, userID string) (*models.AlteredWeight, error)
	Upsert(ctx context.Context, aw *models.AlteredWeight) error
	Delete(ctx context.Context, itemID, userID string) error
	DeleteByCategory(ctx context.Context, categoryID, userID string) (int64, error)
}

// WeightService manages per-user weight overrides. Weight changes
// invalidate the provisional cache above the item and re-run the
// affected totals immediately.
type WeightService struct {
	gradebook   gradeGradebookRepo
	weights     weightRepo
	cache       cacheStore
	aggregation reaggregator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewWeightService constructs a weight service.
func NewWeightService(gradebook gradeGradebookRepo, weights weightRepo, cache cacheStore, aggregation reaggregator, validate *validator.Validate, logger *zap.Logger) *WeightService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeightService{
		gradebook:   gradebook,
		weights:     weights,
		cache:       cache,
		aggregation: aggregation,
		validator:   validate,
		logger:      logger,
	}
}

// Get resolves the effective weight of an (item, user).
func (s *WeightService) Get(ctx context.Context, courseID, itemID, userID string) (*models.WeightInfo, error) {
	tree, err := s.gradebook.LoadCourseTree(ctx, courseID)
	if err != nil {
		return nil, err
	}
	item, ok := tree.Items[itemID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("item %s not found in course %s", itemID, courseID))
	}

	info := &models.WeightInfo{OriginalWeight: item.Weight, EffectiveWeight: item.Weight}
	altered, err := s.weights.Get(ctx, itemID, userID)
	if err != nil {
		return nil, err
	}
	if altered != nil {
		info.EffectiveWeight = altered.Weight
		info.IsAltered = true
	}
	return info, nil
}

// Set overrides an item's weight for one user.
func (s *WeightService) Set(ctx context.Context, claims *models.JWTClaims, courseID string, req dto.SetWeightRequest) (*models.WeightInfo, error) {
	if claims == nil || !claims.CanEditGrades {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "grade editing capability required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid weight payload")
	}
	if req.Weight < 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidWeights, "weight must not be negative")
	}

	tree, err := s.gradebook.LoadCourseTree(ctx, courseID)
	if err != nil {
		return nil, err
	}
	item, ok := tree.Items[req.ItemID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("item %s not found in course %s", req.ItemID, courseID))
	}

	aw := &models.AlteredWeight{
		CourseID:   courseID,
		CategoryID: item.CategoryID,
		ItemID:     req.ItemID,
		UserID:     req.UserID,
		Weight:     req.Weight,
	}
	if err := s.weights.Upsert(ctx, aw); err != nil {
		return nil, err
	}
	if err := s.invalidateAndReaggregate(ctx, courseID, req.ItemID, req.UserID); err != nil {
		return nil, err
	}
	return &models.WeightInfo{OriginalWeight: item.Weight, EffectiveWeight: req.Weight, IsAltered: true}, nil
}

// Revert removes the override of one (item, user).
func (s *WeightService) Revert(ctx context.Context, claims *models.JWTClaims, courseID, itemID, userID string) error {
	if claims == nil || !claims.CanEditGrades {
		return appErrors.Clone(appErrors.ErrForbidden, "grade editing capability required")
	}
	if err := s.weights.Delete(ctx, itemID, userID); err != nil {
		return err
	}
	return s.invalidateAndReaggregate(ctx, courseID, itemID, userID)
}

// RevertCategory removes every override under a category for one user.
func (s *WeightService) RevertCategory(ctx context.Context, claims *models.JWTClaims, courseID, categoryID, userID string) (int64, error) {
	if claims == nil || !claims.CanEditGrades {
		return 0, appErrors.Clone(appErrors.ErrForbidden, "grade editing capability required")
	}
	tree, err := s.gradebook.LoadCourseTree(ctx, courseID)
	if err != nil {
		return 0, err
	}
	proxyItemID, ok := tree.CategoryItem[categoryID]
	if !ok {
		return 0, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("category %s not found in course %s", categoryID, courseID))
	}
	removed, err := s.weights.DeleteByCategory(ctx, categoryID, userID)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		if err := s.invalidateAndReaggregate(ctx, courseID, proxyItemID, userID); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (s *WeightService) invalidateAndReaggregate(ctx context.Context, courseID, itemID, userID string) error {
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("provisional:*:%s", userID)); err != nil {
		s.logger.Warn("provisional cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
	return s.aggregation.ReaggregateForItem(ctx, courseID, itemID, userID)
}
