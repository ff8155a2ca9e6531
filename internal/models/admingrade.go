package models

// AdminCode names an administrative override grade. These represent
// institutional exceptions, not performance measurements.
type AdminCode string

const (
	AdminDeferred              AdminCode = "DEFERRED"
	AdminInterruptionOfStudies AdminCode = "INTERRUPTIONOFSTUDIES"
	AdminGoodCauseFO           AdminCode = "GOODCAUSE_FO"
	AdminGoodCauseNR           AdminCode = "GOODCAUSE_NR"
	AdminNoSubmission          AdminCode = "NOSUBMISSION"
	AdminNoSubmissionZero      AdminCode = "NOSUBMISSION_0"

	// Grand-total only outcome codes.
	AdminCreditWithheld          AdminCode = "CREDITWITHHELD"
	AdminGoodCauseCreditWithheld AdminCode = "GOODCAUSECREDITWITHHELD"
	AdminSatisfactory            AdminCode = "SATISFACTORY"
	AdminUnsatisfactory          AdminCode = "UNSATISFACTORY"
	AdminPassed                  AdminCode = "PASSED"
	AdminNotPassed               AdminCode = "NOTPASSED"
	AdminComplete                AdminCode = "COMPLETE"
	AdminNotComplete             AdminCode = "NOTCOMPLETE"
	AdminCreditRefused           AdminCode = "CREDITREFUSED"
	AdminCreditAwarded           AdminCode = "CREDITAWARDED"
	AdminAuditOnly               AdminCode = "AUDITONLY"
)

// AdminGrade is the catalogue entry for an administrative code.
type AdminGrade struct {
	Code        AdminCode `json:"code"`
	Display     string    `json:"display"`
	Description string    `json:"description"`

	// GrandTotal: selectable for the course (grand) total.
	// Items: selectable for individual items and sub-category totals.
	// Level2Only: hidden at level 1, usable from level 2 down.
	GrandTotal bool `json:"grand_total"`
	Items      bool `json:"items"`
	Level2Only bool `json:"level2_only"`

	// Precedence resolves conflicts among sibling codes; higher wins.
	// Zero means the code never dominates on its own (all-same rule or
	// grand-total outcome codes).
	Precedence int `json:"precedence"`
}

// IsNoSubmission reports whether the code belongs to the
// no-submission family.
func (c AdminCode) IsNoSubmission() bool {
	return c == AdminNoSubmission || c == AdminNoSubmissionZero
}
