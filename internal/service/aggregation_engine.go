package service

import (
	"sort"

	"github.com/noah-isme/mygrades-api/internal/models"
)

// ChildGrade is the resolved input of one direct child of a category:
// either an activity item's provisional grade or a child category's
// already-aggregated total. Resit substitution happens before the
// engine sees the children.
type ChildGrade struct {
	ItemID        string
	Name          string
	IsCategory    bool
	Value         *float64
	DisplayGrade  string
	AdminCode     models.AdminCode
	Weight        float64
	WeightAltered bool
	Hidden        bool
	GradeTypeNone bool
	Overridden    bool
	ResitApplied  bool
}

// member is a participating child during one fold.
type member struct {
	child ChildGrade
	idx   int
	value float64
	// counted: contributes a number to the mean (has data, carries a
	// zero-valued code, or is an empty child counted as zero).
	counted bool
	hasData bool
	dropped bool
}

// AggregationEngine folds a category's children into a single total.
// It is pure: no storage, no clock, no randomness. The same inputs
// always produce the same result.
type AggregationEngine struct {
	admin               *AdminGradeService
	completionThreshold float64
}

func NewAggregationEngine(admin *AdminGradeService, completionThreshold float64) *AggregationEngine {
	if completionThreshold <= 0 {
		completionThreshold = 75
	}
	return &AggregationEngine{admin: admin, completionThreshold: completionThreshold}
}

// Aggregate combines the children of one category for one user.
//
// The fold runs in fixed phases: participation filtering, administrative
// dominance, drop-lowest, weighted mean, then the grand-total completion
// check. Hidden children and children without a grade type never
// participate; absence of data stays distinct from a grade of zero
// throughout.
func (e *AggregationEngine) Aggregate(category *models.GradeCategory, grandTotal bool, children []ChildGrade, mapping *Mapping) models.AggregationResult {
	result := models.AggregationResult{
		CategoryID: category.ID,
	}

	trace := make([]models.ChildContribution, len(children))
	var members []*member

	for i, child := range children {
		trace[i] = models.ChildContribution{
			ItemID:        child.ItemID,
			Name:          child.Name,
			IsCategory:    child.IsCategory,
			Value:         child.Value,
			DisplayGrade:  child.DisplayGrade,
			AdminCode:     string(child.AdminCode),
			Weight:        child.Weight,
			WeightAltered: child.WeightAltered,
			Hidden:        child.Hidden,
			Overridden:    child.Overridden,
			ResitApplied:  child.ResitApplied,
		}

		if child.Hidden || child.GradeTypeNone {
			continue
		}
		trace[i].Available = true

		m := &member{child: child, idx: i}

		switch {
		case child.AdminCode != "" && e.admin.ZeroValued(child.AdminCode):
			m.value = 0
			m.counted = true
			m.hasData = true
		case child.AdminCode != "":
			// Dominant codes are resolved below; the child holds
			// data but contributes no number.
			m.hasData = true
		case child.Value != nil:
			m.value = *child.Value
			m.counted = true
			m.hasData = true
		default:
			// No grade at all. Counts as zero only when the
			// category does not exclude empties.
			if !category.ExcludeEmpty {
				m.value = 0
				m.counted = true
			}
		}

		members = append(members, m)
	}

	result.Children = trace
	result.CompletionPercent = e.completion(category, members)

	// Administrative dominance across the sibling set.
	codes := make([]models.AdminCode, 0, len(members))
	for _, m := range members {
		codes = append(codes, m.child.AdminCode)
	}
	if code, ok := e.admin.Dominant(codes); ok {
		result.AdminCode = string(code)
		result.DisplayGrade = e.admin.Display(code)
		return result
	}

	anyData := false
	for _, m := range members {
		if m.hasData {
			anyData = true
			break
		}
	}
	if !anyData {
		result.NoData = true
		result.DisplayGrade = DisplayNoGrade
		return result
	}

	counted := make([]*member, 0, len(members))
	for _, m := range members {
		if m.counted {
			counted = append(counted, m)
		}
	}

	e.dropLowest(category, counted, trace)

	value := e.weightedMean(category, counted, trace)
	result.Value = &value
	result.DisplayGrade = mapping.Display(&value)

	if grandTotal && result.CompletionPercent < e.thresholdFor(category) {
		// Not enough of the course was assessed to stand behind a
		// numeric total.
		result.Value = nil
		result.AdminCode = string(models.AdminCreditWithheld)
		result.DisplayGrade = e.admin.Display(models.AdminCreditWithheld)
	}

	return result
}

// thresholdFor prefers a completion threshold set on the category
// itself over the course wide default.
func (e *AggregationEngine) thresholdFor(category *models.GradeCategory) float64 {
	if category.CompletionPercent != nil && *category.CompletionPercent > 0 {
		return *category.CompletionPercent
	}
	return e.completionThreshold
}

// completion is the weight share of participating children holding
// data, as a percentage.
func (e *AggregationEngine) completion(category *models.GradeCategory, members []*member) float64 {
	var total, graded float64
	for _, m := range members {
		w := e.weightOf(category, m)
		total += w
		if m.hasData {
			graded += w
		}
	}
	if total == 0 {
		return 0
	}
	return graded / total * 100
}

func (e *AggregationEngine) dropLowest(category *models.GradeCategory, counted []*member, trace []models.ChildContribution) {
	n := category.DropLowest
	if n <= 0 || len(counted) == 0 {
		return
	}
	// Never drop the last remaining contributor.
	if n >= len(counted) {
		n = len(counted) - 1
	}

	order := make([]*member, len(counted))
	copy(order, counted)
	// On equal values the later child in tree order is dropped and the
	// earlier one kept.
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].value != order[j].value {
			return order[i].value < order[j].value
		}
		return order[i].idx > order[j].idx
	})

	for i := 0; i < n; i++ {
		order[i].dropped = true
		trace[order[i].idx].Dropped = true
	}
}

func (e *AggregationEngine) weightedMean(category *models.GradeCategory, counted []*member, trace []models.ChildContribution) float64 {
	var totalWeight float64
	for _, m := range counted {
		if m.dropped {
			continue
		}
		totalWeight += e.weightOf(category, m)
	}
	if totalWeight == 0 {
		return 0
	}

	var sum float64
	for _, m := range counted {
		if m.dropped {
			continue
		}
		w := e.weightOf(category, m) / totalWeight
		trace[m.idx].NormalizedWeight = w
		sum += w * m.value
	}
	return sum
}

func (e *AggregationEngine) weightOf(category *models.GradeCategory, m *member) float64 {
	if category.Strategy == models.StrategySimpleMean {
		return 1
	}
	return m.child.Weight
}
