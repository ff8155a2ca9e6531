package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mygrades-api/internal/dto"
	"github.com/noah-isme/mygrades-api/internal/service"
	appErrors "github.com/noah-isme/mygrades-api/pkg/errors"
	"github.com/noah-isme/mygrades-api/pkg/response"
)

// AggregationHandler exposes aggregation, explain, and bulk
// recalculation endpoints.
type AggregationHandler struct {
	aggregation *service.AggregationService
	recalc      *service.RecalcService
	progress    *service.ProgressService
	metrics     *service.MetricsService
}

// NewAggregationHandler constructs handler.
func NewAggregationHandler(aggregation *service.AggregationService, recalc *service.RecalcService, progress *service.ProgressService, metrics *service.MetricsService) *AggregationHandler {
	return &AggregationHandler{aggregation: aggregation, recalc: recalc, progress: progress, metrics: metrics}
}

// GetCategory godoc
// @Summary Aggregate one category for one user
// @Tags Aggregation
// @Produce json
// @Param courseID path string true "Course ID"
// @Param categoryID path string true "Category ID"
// @Param userID path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseID}/categories/{categoryID}/users/{userID}/aggregation [get]
func (h *AggregationHandler) GetCategory(c *gin.Context) {
	start := time.Now()
	result, err := h.aggregation.AggregateCategory(c.Request.Context(), c.Param("courseID"), c.Param("categoryID"), c.Param("userID"))
	h.metrics.ObserveAggregation(time.Since(start), err)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GetUser godoc
// @Summary Aggregate every top-level category for one user
// @Tags Aggregation
// @Produce json
// @Param courseID path string true "Course ID"
// @Param userID path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseID}/users/{userID}/aggregation [get]
func (h *AggregationHandler) GetUser(c *gin.Context) {
	start := time.Now()
	results, err := h.aggregation.AggregateUser(c.Request.Context(), c.Param("courseID"), c.Param("userID"))
	h.metrics.ObserveAggregation(time.Since(start), err)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// Explain godoc
// @Summary Explain the stored trace of a category total
// @Tags Aggregation
// @Produce json
// @Param courseID path string true "Course ID"
// @Param categoryID path string true "Category ID"
// @Param userID path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseID}/categories/{categoryID}/users/{userID}/explain [get]
func (h *AggregationHandler) Explain(c *gin.Context) {
	trace, err := h.aggregation.Explain(c.Request.Context(), c.Param("courseID"), c.Param("categoryID"), c.Param("userID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trace, nil)
}

// Recalculate godoc
// @Summary Queue a bulk recalculation for every enrolled user
// @Tags Aggregation
// @Accept json
// @Produce json
// @Param courseID path string true "Course ID"
// @Param payload body dto.RecalculateRequest false "Optional category scope"
// @Success 202 {object} response.Envelope
// @Router /courses/{courseID}/recalculate [post]
func (h *AggregationHandler) Recalculate(c *gin.Context) {
	var req dto.RecalculateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	claims := claimsFromContext(c)
	requestedBy := ""
	if claims != nil {
		requestedBy = claims.UserID
	}
	resp, err := h.recalc.EnqueueCourse(c.Request.Context(), c.Param("courseID"), req.CategoryID, requestedBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.IncRecalcJobs()
	response.JSON(c, http.StatusAccepted, resp, nil)
}

// Progress godoc
// @Summary Poll bulk recalculation progress
// @Tags Aggregation
// @Produce json
// @Param courseID path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseID}/progress [get]
func (h *AggregationHandler) Progress(c *gin.Context) {
	resp, err := h.progress.Get(c.Request.Context(), c.Param("courseID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}
