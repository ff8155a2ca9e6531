package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mygrades-api/internal/dto"
	"github.com/noah-isme/mygrades-api/internal/models"
	appErrors "github.com/noah-isme/mygrades-api/pkg/errors"
	"github.com/noah-isme/mygrades-api/pkg/response"
)

type gradebookService interface {
	Tree(ctx context.Context, courseID string) (*models.CourseTree, error)
	ImportConversionMap(ctx context.Context, claims *models.JWTClaims, courseID string, req dto.ImportConversionMapRequest) error
	SetResit(ctx context.Context, claims *models.JWTClaims, courseID string, req dto.SetResitRequest) error
	RemoveResit(ctx context.Context, claims *models.JWTClaims, courseID, categoryID string) error
}

// GradebookHandler exposes the course tree, conversion maps, and resit
// marking.
type GradebookHandler struct {
	gradebook gradebookService
}

// NewGradebookHandler constructs handler.
func NewGradebookHandler(gradebook gradebookService) *GradebookHandler {
	return &GradebookHandler{gradebook: gradebook}
}

// Tree godoc
// @Summary Category and item tree of a course
// @Tags Gradebook
// @Produce json
// @Param courseID path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseID}/tree [get]
func (h *GradebookHandler) Tree(c *gin.Context) {
	tree, err := h.gradebook.Tree(c.Request.Context(), c.Param("courseID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tree, nil)
}

// ImportConversionMap godoc
// @Summary Replace the conversion map of an item
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param courseID path string true "Course ID"
// @Param payload body dto.ImportConversionMapRequest true "Conversion map payload"
// @Success 204
// @Router /courses/{courseID}/conversion-maps [post]
func (h *GradebookHandler) ImportConversionMap(c *gin.Context) {
	var req dto.ImportConversionMapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.gradebook.ImportConversionMap(c.Request.Context(), claimsFromContext(c), c.Param("courseID"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetResit godoc
// @Summary Mark an item as the resit attempt of its category
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param courseID path string true "Course ID"
// @Param categoryID path string true "Category ID"
// @Param payload body dto.SetResitRequest true "Resit payload"
// @Success 204
// @Router /courses/{courseID}/categories/{categoryID}/resit [put]
func (h *GradebookHandler) SetResit(c *gin.Context) {
	var req dto.SetResitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.CategoryID = c.Param("categoryID")
	if err := h.gradebook.SetResit(c.Request.Context(), claimsFromContext(c), c.Param("courseID"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveResit godoc
// @Summary Clear the resit marking of a category
// @Tags Gradebook
// @Produce json
// @Param courseID path string true "Course ID"
// @Param categoryID path string true "Category ID"
// @Success 204
// @Router /courses/{courseID}/categories/{categoryID}/resit [delete]
func (h *GradebookHandler) RemoveResit(c *gin.Context) {
	if err := h.gradebook.RemoveResit(c.Request.Context(), claimsFromContext(c), c.Param("courseID"), c.Param("categoryID")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
