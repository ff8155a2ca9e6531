package models

import "time"

// ColumnType records why a grade record exists. Distinct columns for the
// same item are independent audit trails; only the provisional view feeds
// aggregation.
type ColumnType string

const (
	ColumnFirst       ColumnType = "FIRST"
	ColumnSecond      ColumnType = "SECOND"
	ColumnProvisional ColumnType = "PROVISIONAL"
	ColumnReleased    ColumnType = "RELEASED"
	ColumnCategory    ColumnType = "CATEGORY"
	ColumnOther       ColumnType = "OTHER"
)

// Column identifies a grade column for an item. OTHER columns carry free
// text and are distinct per text even though they share the type tag.
type Column struct {
	ID        string     `db:"id" json:"id"`
	CourseID  string     `db:"course_id" json:"course_id"`
	ItemID    string     `db:"item_id" json:"item_id"`
	Type      ColumnType `db:"column_type" json:"column_type"`
	Other     string     `db:"other" json:"other,omitempty"`
	Points    bool       `db:"points" json:"points"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`

	// Description and Editable are derived, not stored.
	Description string `db:"-" json:"description,omitempty"`
	Editable    bool   `db:"-" json:"editable"`
}

// GradeRecord is one immutable write in the versioned grade ledger. Exactly
// one current record may exist per (item, user, column); prior records are
// retired, never deleted, when a new one lands.
type GradeRecord struct {
	ID             string     `db:"id" json:"id"`
	CourseID       string     `db:"course_id" json:"course_id"`
	ItemID         string     `db:"item_id" json:"item_id"`
	UserID         string     `db:"user_id" json:"user_id"`
	ColumnID       string     `db:"column_id" json:"column_id"`
	ColumnType     ColumnType `db:"column_type" json:"column_type"`
	RawGrade       *float64   `db:"raw_grade" json:"raw_grade,omitempty"`
	ConvertedGrade *float64   `db:"converted_grade" json:"converted_grade,omitempty"`
	DisplayGrade   string     `db:"display_grade" json:"display_grade"`
	WeightedGrade  float64    `db:"weighted_grade" json:"weighted_grade"`
	AdminCode      string     `db:"admin_code" json:"admin_code,omitempty"`
	IsCurrent      bool       `db:"is_current" json:"is_current"`
	CatOverride    bool       `db:"cat_override" json:"cat_override"`
	Dropped        bool       `db:"dropped" json:"dropped"`
	NotAvailable   bool       `db:"not_available" json:"not_available"`
	IsError        bool       `db:"is_error" json:"is_error"`
	Points         bool       `db:"points" json:"points"`
	AuditBy        string     `db:"audit_by" json:"audit_by"`
	AuditComment   string     `db:"audit_comment" json:"audit_comment,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// HasGrade reports whether the record represents an actual grade rather
// than an availability placeholder.
func (g *GradeRecord) HasGrade() bool {
	if g == nil {
		return false
	}
	return g.ConvertedGrade != nil || g.AdminCode != ""
}

// AlteredWeight overrides an item's configured aggregation weight for one
// user. Absence means "use the configured weight".
type AlteredWeight struct {
	ID         string    `db:"id" json:"id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	CategoryID string    `db:"category_id" json:"category_id"`
	ItemID     string    `db:"item_id" json:"item_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Weight     float64   `db:"weight" json:"weight"`
	AlteredAt  time.Time `db:"altered_at" json:"altered_at"`
}

// WeightInfo is the resolved weight view for an (item, user) pair.
type WeightInfo struct {
	OriginalWeight  float64 `json:"original_weight"`
	EffectiveWeight float64 `json:"effective_weight"`
	IsAltered       bool    `json:"is_altered"`
}

// Enrolment links a user to a course for bulk recalculation.
type Enrolment struct {
	CourseID string `db:"course_id" json:"course_id"`
	UserID   string `db:"user_id" json:"user_id"`
	Active   bool   `db:"active" json:"active"`
}
