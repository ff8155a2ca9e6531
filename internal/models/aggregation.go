package models

import "time"

// ChildContribution is the per-child trace entry recorded during an
// aggregation pass. The Explain projection is a flat view over these.
type ChildContribution struct {
	ItemID           string   `db:"-" json:"item_id"`
	Name             string   `db:"-" json:"name"`
	IsCategory       bool     `db:"-" json:"is_category"`
	Value            *float64 `db:"-" json:"value,omitempty"`
	DisplayGrade     string   `db:"-" json:"display_grade"`
	AdminCode        string   `db:"-" json:"admin_code,omitempty"`
	Weight           float64  `db:"-" json:"weight"`
	NormalizedWeight float64  `db:"-" json:"normalized_weight"`
	WeightAltered    bool     `db:"-" json:"weight_altered"`
	Dropped          bool     `db:"-" json:"dropped"`
	Hidden           bool     `db:"-" json:"hidden"`
	Overridden       bool     `db:"-" json:"overridden"`
	Available        bool     `db:"-" json:"available"`
	ResitApplied     bool     `db:"-" json:"resit_applied"`
}

// AggregationResult is the outcome of aggregating one (category, user)
// pair. It is ephemeral; persistence happens through a CATEGORY grade
// record plus the stored trace.
type AggregationResult struct {
	CategoryID        string              `json:"category_id"`
	ItemID            string              `json:"item_id"`
	UserID            string              `json:"user_id"`
	Value             *float64            `json:"value,omitempty"`
	DisplayGrade      string              `json:"display_grade"`
	AdminCode         string              `json:"admin_code,omitempty"`
	CompletionPercent float64             `json:"completion_percent"`
	NoData            bool                `json:"no_data"`
	WasLocked         bool                `json:"was_locked"`
	Children          []ChildContribution `json:"children,omitempty"`
}

// AggregationTrace is the persisted form of the last aggregation pass for
// one (category item, user). Explain reads this, never recomputes.
type AggregationTrace struct {
	ID                string              `db:"id" json:"id"`
	CourseID          string              `db:"course_id" json:"course_id"`
	ItemID            string              `db:"item_id" json:"item_id"`
	UserID            string              `db:"user_id" json:"user_id"`
	Value             *float64            `db:"value" json:"value,omitempty"`
	DisplayGrade      string              `db:"display_grade" json:"display_grade"`
	AdminCode         string              `db:"admin_code" json:"admin_code,omitempty"`
	CompletionPercent float64             `db:"completion_percent" json:"completion_percent"`
	NoData            bool                `db:"no_data" json:"no_data"`
	Children          []ChildContribution `db:"-" json:"children"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
}

// RecalcJobParams scopes a queued bulk recalculation.
type RecalcJobParams struct {
	CourseID    string `json:"course_id"`
	CategoryID  string `json:"category_id"`
	RequestedBy string `json:"requested_by"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
