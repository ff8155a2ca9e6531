package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mygrades-api/internal/dto"
	"github.com/noah-isme/mygrades-api/internal/models"
	appErrors "github.com/noah-isme/mygrades-api/pkg/errors"
	"github.com/noah-isme/mygrades-api/pkg/response"
)

type gradeService interface {
	WriteGrade(ctx context.Context, claims *models.JWTClaims, courseID string, req dto.WriteGradeRequest) (*models.GradeRecord, error)
	OverrideCategory(ctx context.Context, claims *models.JWTClaims, courseID string, req dto.OverrideCategoryRequest) (*models.GradeRecord, error)
	RemoveOverride(ctx context.Context, claims *models.JWTClaims, courseID, categoryID, userID string) error
	Provisional(ctx context.Context, itemID, userID string) (*models.GradeRecord, error)
	History(ctx context.Context, itemID, userID string) ([]models.GradeRecord, error)
	ListColumns(ctx context.Context, itemID string) ([]models.Column, error)
	UpdateAdminDisplay(ctx context.Context, claims *models.JWTClaims, req dto.UpdateAdminDisplayRequest) (int64, error)
}

type adminCatalogue interface {
	List(level int, grandTotal bool) []models.AdminGrade
}

// GradeHandler exposes grade capture, override, history, and column
// endpoints.
type GradeHandler struct {
	grades gradeService
	admin  adminCatalogue
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades gradeService, admin adminCatalogue) *GradeHandler {
	return &GradeHandler{grades: grades, admin: admin}
}

// Write godoc
// @Summary Write a grade record into a column
// @Tags Grades
// @Accept json
// @Produce json
// @Param courseID path string true "Course ID"
// @Param payload body dto.WriteGradeRequest true "Grade payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{courseID}/grades [post]
func (h *GradeHandler) Write(c *gin.Context) {
	var req dto.WriteGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.grades.WriteGrade(c.Request.Context(), claimsFromContext(c), c.Param("courseID"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Override godoc
// @Summary Pin a category total to a manual value
// @Tags Grades
// @Accept json
// @Produce json
// @Param courseID path string true "Course ID"
// @Param payload body dto.OverrideCategoryRequest true "Override payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{courseID}/overrides [post]
func (h *GradeHandler) Override(c *gin.Context) {
	var req dto.OverrideCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.grades.OverrideCategory(c.Request.Context(), claimsFromContext(c), c.Param("courseID"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// RemoveOverride godoc
// @Summary Remove a category override
// @Tags Grades
// @Produce json
// @Param courseID path string true "Course ID"
// @Param categoryID path string true "Category ID"
// @Param userID path string true "User ID"
// @Success 204
// @Router /courses/{courseID}/categories/{categoryID}/users/{userID}/override [delete]
func (h *GradeHandler) RemoveOverride(c *gin.Context) {
	err := h.grades.RemoveOverride(c.Request.Context(), claimsFromContext(c), c.Param("courseID"), c.Param("categoryID"), c.Param("userID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Provisional godoc
// @Summary Current provisional grade of one item and user
// @Tags Grades
// @Produce json
// @Param itemID path string true "Item ID"
// @Param userID path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /items/{itemID}/users/{userID}/provisional [get]
func (h *GradeHandler) Provisional(c *gin.Context) {
	record, err := h.grades.Provisional(c.Request.Context(), c.Param("itemID"), c.Param("userID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// History godoc
// @Summary Full audit trail of one item and user
// @Tags Grades
// @Produce json
// @Param itemID path string true "Item ID"
// @Param userID path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /items/{itemID}/users/{userID}/history [get]
func (h *GradeHandler) History(c *gin.Context) {
	itemID := c.Param("itemID")
	userID := c.Param("userID")
	records, err := h.grades.History(c.Request.Context(), itemID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.GradeHistoryResponse{ItemID: itemID, UserID: userID, Records: records}, nil)
}

// Columns godoc
// @Summary Column registry of one item
// @Tags Grades
// @Produce json
// @Param itemID path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /items/{itemID}/columns [get]
func (h *GradeHandler) Columns(c *gin.Context) {
	columns, err := h.grades.ListColumns(c.Request.Context(), c.Param("itemID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, columns, nil)
}

// ListAdminGrades godoc
// @Summary Administrative grade codes selectable at a level
// @Tags AdminGrades
// @Produce json
// @Param level query int false "Category level of the menu"
// @Param grandTotal query bool false "Request the course total menu"
// @Success 200 {object} response.Envelope
// @Router /admin-grades [get]
func (h *GradeHandler) ListAdminGrades(c *gin.Context) {
	level, err := strconv.Atoi(c.DefaultQuery("level", "1"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "level must be an integer"))
		return
	}
	grandTotal, err := strconv.ParseBool(c.DefaultQuery("grandTotal", "false"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "grandTotal must be a boolean"))
		return
	}
	response.JSON(c, http.StatusOK, h.admin.List(level, grandTotal), nil)
}

// UpdateAdminDisplay godoc
// @Summary Change the display label of an administrative grade code
// @Tags AdminGrades
// @Accept json
// @Produce json
// @Param payload body dto.UpdateAdminDisplayRequest true "Display payload"
// @Success 200 {object} response.Envelope
// @Router /admin-grades/display [put]
func (h *GradeHandler) UpdateAdminDisplay(c *gin.Context) {
	var req dto.UpdateAdminDisplayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	updated, err := h.grades.UpdateAdminDisplay(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updatedRecords": updated}, nil)
}
