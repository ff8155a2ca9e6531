package dto

import "github.com/noah-isme/mygrades-api/internal/models"

// WriteGradeRequest captures a manual grade write into one column.
// Exactly one of rawGrade and adminCode must be present.
type WriteGradeRequest struct {
	ItemID     string   `json:"itemId" validate:"required"`
	UserID     string   `json:"userId" validate:"required"`
	ColumnType string   `json:"columnType" validate:"required,oneof=FIRST SECOND PROVISIONAL RELEASED OTHER"`
	Other      string   `json:"other,omitempty"`
	RawGrade   *float64 `json:"rawGrade,omitempty"`
	AdminCode  string   `json:"adminCode,omitempty"`
	Comment    string   `json:"comment,omitempty"`
}

// OverrideCategoryRequest replaces a computed category total until the
// override is removed.
type OverrideCategoryRequest struct {
	CategoryID string   `json:"categoryId" validate:"required"`
	UserID     string   `json:"userId" validate:"required"`
	RawGrade   *float64 `json:"rawGrade,omitempty"`
	AdminCode  string   `json:"adminCode,omitempty"`
	Comment    string   `json:"comment,omitempty"`
}

// GradeHistoryResponse is the full audit trail of one (item, user).
type GradeHistoryResponse struct {
	ItemID  string               `json:"itemId"`
	UserID  string               `json:"userId"`
	Records []models.GradeRecord `json:"records"`
}

// ColumnResponse is a column enriched with its derived description and
// editability.
type ColumnResponse struct {
	models.Column
}

// SetWeightRequest overrides one item's weight for one user.
type SetWeightRequest struct {
	ItemID string  `json:"itemId" validate:"required"`
	UserID string  `json:"userId" validate:"required"`
	Weight float64 `json:"weight" validate:"min=0"`
}

// SetResitRequest marks an item as the resit attempt of its category.
type SetResitRequest struct {
	CategoryID string `json:"categoryId" validate:"required"`
	ItemID     string `json:"itemId" validate:"required"`
}

// ConversionBreakpointRequest is one row of an imported conversion map.
type ConversionBreakpointRequest struct {
	Threshold float64 `json:"threshold" validate:"min=0"`
	Value     float64 `json:"value" validate:"min=0"`
	Label     string  `json:"label" validate:"required"`
}

// ImportConversionMapRequest replaces the conversion map of an item.
type ImportConversionMapRequest struct {
	ItemID      string                        `json:"itemId" validate:"required"`
	Schedule    string                        `json:"schedule" validate:"required,oneof=A B"`
	Breakpoints []ConversionBreakpointRequest `json:"breakpoints" validate:"required,min=1,dive"`
}

// UpdateAdminDisplayRequest changes the label shown for an
// administrative grade code.
type UpdateAdminDisplayRequest struct {
	Code        string `json:"code" validate:"required"`
	Display     string `json:"display" validate:"required"`
	Description string `json:"description,omitempty"`
}

// RecalculateRequest queues a bulk recalculation.
type RecalculateRequest struct {
	CategoryID string `json:"categoryId,omitempty"`
}

// RecalculateResponse reports the queued job.
type RecalculateResponse struct {
	JobID     string `json:"jobId"`
	UserCount int    `json:"userCount"`
}

// ProgressResponse reports bulk recalculation progress. Done is -1 when
// no progress has been recorded for the course.
type ProgressResponse struct {
	CourseID string `json:"courseId"`
	Done     int64  `json:"done"`
	Total    int64  `json:"total"`
}

// ExportRequest selects the export format.
type ExportRequest struct {
	Format string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportResponse carries the signed download link of a finished export.
type ExportResponse struct {
	FileName    string `json:"fileName"`
	DownloadURL string `json:"downloadUrl"`
}
