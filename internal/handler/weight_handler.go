package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mygrades-api/internal/dto"
	"github.com/noah-isme/mygrades-api/internal/service"
	appErrors "github.com/noah-isme/mygrades-api/pkg/errors"
	"github.com/noah-isme/mygrades-api/pkg/response"
)

// WeightHandler exposes per-user weight override endpoints.
type WeightHandler struct {
	weights *service.WeightService
}

// NewWeightHandler constructs handler.
func NewWeightHandler(weights *service.WeightService) *WeightHandler {
	return &WeightHandler{weights: weights}
}

// Get godoc
// @Summary Effective weight of an item for one user
// @Tags Weights
// @Produce json
// @Param courseID path string true "Course ID"
// @Param itemID path string true "Item ID"
// @Param userID path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseID}/items/{itemID}/users/{userID}/weight [get]
func (h *WeightHandler) Get(c *gin.Context) {
	info, err := h.weights.Get(c.Request.Context(), c.Param("courseID"), c.Param("itemID"), c.Param("userID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// Set godoc
// @Summary Override the weight of an item for one user
// @Tags Weights
// @Accept json
// @Produce json
// @Param courseID path string true "Course ID"
// @Param payload body dto.SetWeightRequest true "Weight payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseID}/weights [put]
func (h *WeightHandler) Set(c *gin.Context) {
	var req dto.SetWeightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	info, err := h.weights.Set(c.Request.Context(), claimsFromContext(c), c.Param("courseID"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// Revert godoc
// @Summary Remove the weight override of an item for one user
// @Tags Weights
// @Produce json
// @Param courseID path string true "Course ID"
// @Param itemID path string true "Item ID"
// @Param userID path string true "User ID"
// @Success 204
// @Router /courses/{courseID}/items/{itemID}/users/{userID}/weight [delete]
func (h *WeightHandler) Revert(c *gin.Context) {
	err := h.weights.Revert(c.Request.Context(), claimsFromContext(c), c.Param("courseID"), c.Param("itemID"), c.Param("userID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RevertCategory godoc
// @Summary Remove every weight override below a category for one user
// @Tags Weights
// @Produce json
// @Param courseID path string true "Course ID"
// @Param categoryID path string true "Category ID"
// @Param userID path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseID}/categories/{categoryID}/users/{userID}/weights [delete]
func (h *WeightHandler) RevertCategory(c *gin.Context) {
	removed, err := h.weights.RevertCategory(c.Request.Context(), claimsFromContext(c), c.Param("courseID"), c.Param("categoryID"), c.Param("userID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"removedOverrides": removed}, nil)
}
