package service

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/noah-isme/mygrades-api/internal/models"
	appErrors "github.com/noah-isme/mygrades-api/pkg/errors"
)

// DisplayNoGrade is shown whenever a raw grade is absent.
const DisplayNoGrade = "No grade"

type mappingKind int

const (
	mappingPoints mappingKind = iota
	mappingScheduleA
	mappingScheduleB
	mappingCustom
)

// scheduleALabels indexes band labels by integer grade points, 0 to 22.
var scheduleALabels = []string{
	"H", "G2", "G1", "F3", "F2", "F1", "E3", "E2", "E1",
	"D3", "D2", "D1", "C3", "C2", "C1", "B3", "B2", "B1",
	"A5", "A4", "A3", "A2", "A1",
}

type scheduleBStop struct {
	Points float64
	Label  string
}

// scheduleBStops are the only grades a Schedule B assessment may carry.
// Aggregated category values may fall between stops and display as the
// highest stop at or below the value.
var scheduleBStops = []scheduleBStop{
	{0, "H"}, {2, "G0"}, {5, "F0"}, {8, "E0"},
	{11, "D0"}, {14, "C0"}, {17, "B0"}, {22, "A0"},
}

// Mapping converts raw platform grades into the values and display
// labels the aggregation engine works with. It is a closed set of
// variants: raw points, Schedule A, Schedule B, or an imported custom
// conversion map.
type Mapping struct {
	kind        mappingKind
	gradeMin    float64
	gradeMax    float64
	breakpoints []models.ConversionBreakpoint
	schedule    models.Schedule
}

func PointsMapping(gradeMin, gradeMax float64) *Mapping {
	return &Mapping{kind: mappingPoints, gradeMin: gradeMin, gradeMax: gradeMax}
}

func ScheduleAMapping() *Mapping {
	return &Mapping{kind: mappingScheduleA, gradeMax: 22, schedule: models.ScheduleA}
}

func ScheduleBMapping() *Mapping {
	return &Mapping{kind: mappingScheduleB, gradeMax: 22, schedule: models.ScheduleB}
}

// CustomMapping builds a mapping from an imported conversion table.
// Breakpoints are matched highest threshold first and must include a
// floor at threshold 0 so every raw grade maps to a band.
func CustomMapping(schedule models.Schedule, breakpoints []models.ConversionBreakpoint) (*Mapping, error) {
	if len(breakpoints) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "conversion map has no breakpoints")
	}

	sorted := make([]models.ConversionBreakpoint, len(breakpoints))
	copy(sorted, breakpoints)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Threshold > sorted[j].Threshold })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Threshold == sorted[i-1].Threshold {
			return nil, appErrors.Clone(appErrors.ErrValidation, 
				fmt.Sprintf("duplicate conversion threshold %.2f", sorted[i].Threshold))
		}
	}

	if sorted[len(sorted)-1].Threshold != 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "conversion map is missing a floor breakpoint at 0")
	}

	return &Mapping{
		kind:        mappingCustom,
		gradeMax:    22,
		breakpoints: sorted,
		schedule:    schedule,
	}, nil
}

// MappingForItem picks the mapping an item's grades import through.
// Items with an imported conversion map use it; otherwise a 22-point
// scale is treated as Schedule A and anything else as raw points.
func MappingForItem(item *models.GradeItem, conversion *Mapping) (*Mapping, error) {
	switch item.GradeType {
	case models.GradeTypeValue, models.GradeTypeScale:
	case models.GradeTypeNone:
		return nil, appErrors.Clone(appErrors.ErrUnsupportedGradeType, 
			fmt.Sprintf("item %s has no grade type", item.ID))
	default:
		return nil, appErrors.Clone(appErrors.ErrUnsupportedGradeType, 
			fmt.Sprintf("item %s has grade type %s", item.ID, item.GradeType))
	}

	if item.Converted {
		if conversion == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, 
				fmt.Sprintf("item %s is marked converted but has no conversion map", item.ID))
		}
		return conversion, nil
	}

	if item.GradeMax == 22 && item.GradeMin == 0 {
		return ScheduleAMapping(), nil
	}

	return PointsMapping(item.GradeMin, item.GradeMax), nil
}

// Schedule reports which schedule the mapping projects onto, or empty
// for raw points.
func (m *Mapping) Schedule() models.Schedule {
	return m.schedule
}

// IsScale reports whether the mapping projects onto schedule bands
// rather than raw points.
func (m *Mapping) IsScale() bool {
	return m.kind != mappingPoints
}

// Validate reports whether raw is an acceptable grade under this
// mapping. Schedule grades must be whole numbers; Schedule B grades
// must sit exactly on a stop.
func (m *Mapping) Validate(raw float64) error {
	switch m.kind {
	case mappingPoints, mappingCustom:
		if raw < m.gradeMin || (m.kind == mappingPoints && raw > m.gradeMax) {
			return appErrors.Clone(appErrors.ErrValidation, 
				fmt.Sprintf("grade %.2f outside range %.2f to %.2f", raw, m.gradeMin, m.gradeMax))
		}
	case mappingScheduleA:
		if raw != math.Trunc(raw) || raw < 0 || raw > 22 {
			return appErrors.Clone(appErrors.ErrValidation, 
				fmt.Sprintf("grade %.2f is not a Schedule A point", raw))
		}
	case mappingScheduleB:
		for _, stop := range scheduleBStops {
			if raw == stop.Points {
				return nil
			}
		}
		return appErrors.Clone(appErrors.ErrValidation, 
			fmt.Sprintf("grade %.2f is not a Schedule B stop", raw))
	}

	return nil
}

// Import converts a raw platform grade into its internal value and
// display label. A nil raw grade stays nil: absence is never zero.
func (m *Mapping) Import(raw *float64) (*float64, string, error) {
	if raw == nil {
		return nil, DisplayNoGrade, nil
	}

	if err := m.Validate(*raw); err != nil {
		return nil, "", err
	}

	if m.kind == mappingCustom {
		for _, bp := range m.breakpoints {
			if *raw >= bp.Threshold {
				value := bp.Value
				return &value, bp.Label, nil
			}
		}
		// unreachable with a validated floor breakpoint
		return nil, "", appErrors.Clone(appErrors.ErrInternal, "conversion map matched no breakpoint")
	}

	value := *raw
	return &value, m.Display(&value), nil
}

// Display renders an internal value for humans. Aggregated values may
// be fractional; schedules round down to the band the value has earned.
func (m *Mapping) Display(value *float64) string {
	if value == nil {
		return DisplayNoGrade
	}

	switch m.kind {
	case mappingScheduleA:
		idx := int(math.Floor(*value + 0.5))
		if idx < 0 {
			idx = 0
		}
		if idx > 22 {
			idx = 22
		}
		return scheduleALabels[idx]
	case mappingScheduleB:
		label := scheduleBStops[0].Label
		for _, stop := range scheduleBStops {
			if *value >= stop.Points {
				label = stop.Label
			}
		}
		return label
	case mappingCustom:
		for _, bp := range m.breakpoints {
			if *value >= bp.Value {
				return bp.Label
			}
		}
		return m.breakpoints[len(m.breakpoints)-1].Label
	default:
		return strconv.FormatFloat(*value, 'f', -1, 64)
	}
}
