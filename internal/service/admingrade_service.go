package service

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/mygrades-api/internal/models"
	appErrors "github.com/noah-isme/mygrades-api/pkg/errors"
)

// AdminGradeService is the catalogue of administrative grade codes and
// the precedence rules that resolve them during aggregation.
type AdminGradeService struct {
	mu        sync.RWMutex
	catalogue map[models.AdminCode]models.AdminGrade
	ordered   []models.AdminCode
	logger    *zap.Logger
}

func NewAdminGradeService(displayOverrides map[string]string, logger *zap.Logger) *AdminGradeService {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &AdminGradeService{
		catalogue: make(map[models.AdminCode]models.AdminGrade),
		logger:    logger,
	}

	for _, ag := range defaultCatalogue() {
		if raw, ok := displayOverrides[string(ag.Code)]; ok {
			ag = applyDisplayOverride(ag, raw)
		}
		s.catalogue[ag.Code] = ag
		s.ordered = append(s.ordered, ag.Code)
	}

	return s
}

func defaultCatalogue() []models.AdminGrade {
	return []models.AdminGrade{
		{Code: models.AdminDeferred, Display: "DFR", Description: "Deferred", GrandTotal: true, Items: true, Precedence: 3},
		{Code: models.AdminInterruptionOfStudies, Display: "IS", Description: "Interruption of studies", GrandTotal: true, Items: true, Precedence: 2},
		{Code: models.AdminGoodCauseFO, Display: "EC", Description: "Good cause, further opportunity", GrandTotal: true, Items: true, Precedence: 1},
		{Code: models.AdminGoodCauseNR, Display: "EC0", Description: "Good cause, no reassessment", Items: true},
		{Code: models.AdminNoSubmission, Display: "NS", Description: "No submission", Items: true},
		{Code: models.AdminNoSubmissionZero, Display: "NS0", Description: "No submission, counts as zero", Items: true, Level2Only: true},

		{Code: models.AdminCreditWithheld, Display: "CW", Description: "Credit withheld", GrandTotal: true},
		{Code: models.AdminGoodCauseCreditWithheld, Display: "ECW", Description: "Good cause, credit withheld", GrandTotal: true},
		{Code: models.AdminSatisfactory, Display: "SAT", Description: "Satisfactory", GrandTotal: true},
		{Code: models.AdminUnsatisfactory, Display: "UNS", Description: "Unsatisfactory", GrandTotal: true},
		{Code: models.AdminPassed, Display: "P", Description: "Passed", GrandTotal: true},
		{Code: models.AdminNotPassed, Display: "NP", Description: "Not passed", GrandTotal: true},
		{Code: models.AdminComplete, Display: "CP", Description: "Complete", GrandTotal: true},
		{Code: models.AdminNotComplete, Display: "NC", Description: "Not complete", GrandTotal: true},
		{Code: models.AdminCreditRefused, Display: "CR", Description: "Credit refused", GrandTotal: true},
		{Code: models.AdminCreditAwarded, Display: "CA", Description: "Credit awarded", GrandTotal: true},
		{Code: models.AdminAuditOnly, Display: "AU", Description: "Audit only", GrandTotal: true},
	}
}

// applyDisplayOverride parses "DISPLAY" or "DISPLAY:Description".
func applyDisplayOverride(ag models.AdminGrade, raw string) models.AdminGrade {
	parts := strings.SplitN(raw, ":", 2)
	if parts[0] != "" {
		ag.Display = parts[0]
	}
	if len(parts) == 2 && parts[1] != "" {
		ag.Description = parts[1]
	}
	return ag
}

// Lookup returns the catalogue entry for a code.
func (s *AdminGradeService) Lookup(code models.AdminCode) (models.AdminGrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ag, ok := s.catalogue[code]
	if !ok {
		return models.AdminGrade{}, appErrors.Clone(appErrors.ErrUnknownAdminCode, 
			fmt.Sprintf("unknown administrative grade code %q", code))
	}
	return ag, nil
}

// Display returns the short label shown for a code, or the code itself
// when it is not in the catalogue.
func (s *AdminGradeService) Display(code models.AdminCode) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ag, ok := s.catalogue[code]; ok {
		return ag.Display
	}
	return string(code)
}

// List returns the codes selectable for a menu in catalogue order. The
// grand total menu serves the course total; every other menu serves
// items and subcategory totals at the given level, where level 1 menus
// exclude the level 2 only codes.
func (s *AdminGradeService) List(level int, grandTotal bool) []models.AdminGrade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AdminGrade
	for _, code := range s.ordered {
		ag := s.catalogue[code]
		if s.applicable(ag, level, grandTotal) {
			out = append(out, ag)
		}
	}
	return out
}

// ApplicableAt reports whether the code may be assigned at the level.
func (s *AdminGradeService) ApplicableAt(code models.AdminCode, level int, grandTotal bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ag, ok := s.catalogue[code]
	if !ok {
		return false
	}
	return s.applicable(ag, level, grandTotal)
}

func (s *AdminGradeService) applicable(ag models.AdminGrade, level int, grandTotal bool) bool {
	if grandTotal {
		return ag.GrandTotal
	}
	if ag.Level2Only && level < 2 {
		return false
	}
	return ag.Items
}

// ValidateAssignment checks a code before it is written at a level.
func (s *AdminGradeService) ValidateAssignment(code models.AdminCode, level int, grandTotal bool) error {
	ag, err := s.Lookup(code)
	if err != nil {
		return err
	}
	if !s.applicable(ag, level, grandTotal) {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("administrative grade %s is not assignable at level %d", code, level))
	}
	return nil
}

// SetDisplay changes the display label, and optionally the
// description, of a catalogue entry.
func (s *AdminGradeService) SetDisplay(code models.AdminCode, display, description string) (models.AdminGrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ag, ok := s.catalogue[code]
	if !ok {
		return models.AdminGrade{}, appErrors.Clone(appErrors.ErrUnknownAdminCode,
			fmt.Sprintf("unknown administrative grade code %q", code))
	}
	if display != "" {
		ag.Display = display
	}
	if description != "" {
		ag.Description = description
	}
	s.catalogue[code] = ag
	s.logger.Info("admin grade display changed",
		zap.String("code", string(code)), zap.String("display", ag.Display))
	return ag, nil
}

// ZeroValued reports whether the code contributes a zero to weighted
// means instead of suppressing the category total.
func (s *AdminGradeService) ZeroValued(code models.AdminCode) bool {
	return code == models.AdminGoodCauseNR || code.IsNoSubmission()
}

// Dominant resolves the administrative codes of a sibling set. A code
// with positive precedence propagates to the parent as soon as one
// child carries it. Zero-valued codes propagate only when every child
// carries one from the same family; the no submission variants count
// as a single family and resolve to NOSUBMISSION. Mixed with numeric
// grades they count as zeros and the weighted mean proceeds.
func (s *AdminGradeService) Dominant(codes []models.AdminCode) (models.AdminCode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best models.AdminCode
	bestPrec := 0
	for _, code := range codes {
		ag, ok := s.catalogue[code]
		if !ok {
			continue
		}
		if ag.Precedence > bestPrec {
			best = code
			bestPrec = ag.Precedence
		}
	}
	if bestPrec > 0 {
		return best, true
	}

	if len(codes) == 0 {
		return "", false
	}
	first := codes[0]
	if first == "" || !s.ZeroValued(first) {
		return "", false
	}
	if first.IsNoSubmission() {
		for _, code := range codes[1:] {
			if !code.IsNoSubmission() {
				return "", false
			}
		}
		return models.AdminNoSubmission, true
	}
	for _, code := range codes[1:] {
		if code != first {
			return "", false
		}
	}
	return first, true
}
