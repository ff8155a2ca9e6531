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

type conversionWriter interface {
	LoadCourseTree(ctx context.Context, courseID string) (*models.CourseTree, error)
	SaveConversionMap(ctx context.Context, courseID, itemID string, schedule models.Schedule, breakpoints []models.ConversionBreakpoint) error
}

type resitRepo interface {
	Set(ctx context.Context, pair *models.ResitPair) error
	Delete(ctx context.Context, categoryID string) error
}

// GradebookService manages the add-on's own configuration of the
// mirrored structure: conversion maps and resit pairs.
type GradebookService struct {
	gradebook   conversionWriter
	resits      resitRepo
	aggregation reaggregator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradebookService constructs a gradebook configuration service.
func NewGradebookService(gradebook conversionWriter, resits resitRepo, aggregation reaggregator, validate *validator.Validate, logger *zap.Logger) *GradebookService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradebookService{
		gradebook:   gradebook,
		resits:      resits,
		aggregation: aggregation,
		validator:   validate,
		logger:      logger,
	}
}

// Tree returns the loaded course structure.
func (s *GradebookService) Tree(ctx context.Context, courseID string) (*models.CourseTree, error) {
	return s.gradebook.LoadCourseTree(ctx, courseID)
}

// ImportConversionMap validates and stores a conversion map for an
// item. The map is validated by constructing it before anything is
// written.
func (s *GradebookService) ImportConversionMap(ctx context.Context, claims *models.JWTClaims, courseID string, req dto.ImportConversionMapRequest) error {
	if claims == nil || !claims.CanEditGrades {
		return appErrors.Clone(appErrors.ErrForbidden, "grade editing capability required")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conversion map payload")
	}

	tree, err := s.gradebook.LoadCourseTree(ctx, courseID)
	if err != nil {
		return err
	}
	if _, ok := tree.Items[req.ItemID]; !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("item %s not found in course %s", req.ItemID, courseID))
	}

	breakpoints := make([]models.ConversionBreakpoint, len(req.Breakpoints))
	for i, bp := range req.Breakpoints {
		breakpoints[i] = models.ConversionBreakpoint{Threshold: bp.Threshold, Value: bp.Value, Label: bp.Label}
	}
	if _, err := CustomMapping(models.Schedule(req.Schedule), breakpoints); err != nil {
		return err
	}

	return s.gradebook.SaveConversionMap(ctx, courseID, req.ItemID, models.Schedule(req.Schedule), breakpoints)
}

// SetResit marks an item as the resit attempt of its category. Only a
// category with exactly two activity items can hold a resit pair.
func (s *GradebookService) SetResit(ctx context.Context, claims *models.JWTClaims, courseID string, req dto.SetResitRequest) error {
	if claims == nil || !claims.CanEditGrades {
		return appErrors.Clone(appErrors.ErrForbidden, "grade editing capability required")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resit payload")
	}

	tree, err := s.gradebook.LoadCourseTree(ctx, courseID)
	if err != nil {
		return err
	}
	if _, ok := tree.Categories[req.CategoryID]; !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("category %s not found in course %s", req.CategoryID, courseID))
	}
	item, ok := tree.Items[req.ItemID]
	if !ok || item.CategoryID != req.CategoryID || item.ItemType != models.ItemTypeActivity {
		return appErrors.Clone(appErrors.ErrValidation, "resit item must be an activity of the category")
	}
	_, items := tree.ChildrenOf(req.CategoryID)
	if len(items) != 2 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("category %s has %d activity items; a resit pair needs exactly 2", req.CategoryID, len(items)))
	}

	return s.resits.Set(ctx, &models.ResitPair{
		CourseID:   courseID,
		CategoryID: req.CategoryID,
		ItemID:     req.ItemID,
	})
}

// RemoveResit clears the resit marker of a category.
func (s *GradebookService) RemoveResit(ctx context.Context, claims *models.JWTClaims, courseID, categoryID string) error {
	if claims == nil || !claims.CanEditGrades {
		return appErrors.Clone(appErrors.ErrForbidden, "grade editing capability required")
	}
	return s.resits.Delete(ctx, categoryID)
}
