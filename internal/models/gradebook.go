package models

// AggregationStrategy selects how child grades are combined.
type AggregationStrategy string

const (
	// StrategyWeightedMean applies per-item aggregation coefficients.
	StrategyWeightedMean AggregationStrategy = "WEIGHTED_MEAN"
	// StrategySimpleMean weights every contributing child equally.
	StrategySimpleMean AggregationStrategy = "SIMPLE_MEAN"
)

// GradeType of a grade item as configured in the host gradebook.
type GradeType string

const (
	GradeTypeValue GradeType = "VALUE"
	GradeTypeScale GradeType = "SCALE"
	GradeTypeNone  GradeType = "NONE"
	// GradeTypeText is what some activities store when grading is switched
	// off. Treated exactly like NONE.
	GradeTypeText GradeType = "TEXT"
)

// Schedule identifies the institutional grading schedule of a scale.
type Schedule string

const (
	ScheduleNone Schedule = ""
	ScheduleA    Schedule = "A"
	ScheduleB    Schedule = "B"
)

// GradeCategory is a node in the host platform's category tree, read-only
// for this service. Depth 1 is the course itself; our "level 1" categories
// are depth 2 in the table.
type GradeCategory struct {
	ID                string              `db:"id" json:"id"`
	CourseID          string              `db:"course_id" json:"course_id"`
	ParentID          *string             `db:"parent_id" json:"parent_id,omitempty"`
	Depth             int                 `db:"depth" json:"depth"`
	Path              string              `db:"path" json:"path"`
	Name              string              `db:"name" json:"name"`
	Strategy          AggregationStrategy `db:"strategy" json:"strategy"`
	DropLowest        int                 `db:"drop_lowest" json:"drop_lowest"`
	ExcludeEmpty      bool                `db:"exclude_empty" json:"exclude_empty"`
	Hidden            bool                `db:"hidden" json:"hidden"`
	Schedule          Schedule            `db:"schedule" json:"schedule"`
	CompletionPercent *float64            `db:"completion_percent" json:"completion_percent,omitempty"`
}

// ItemType distinguishes ordinary activity items from category proxies.
type ItemType string

const (
	ItemTypeActivity ItemType = "ACTIVITY"
	ItemTypeCategory ItemType = "CATEGORY"
)

// GradeItem is a leaf activity item or the 1:1 proxy of a GradeCategory.
type GradeItem struct {
	ID         string    `db:"id" json:"id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	CategoryID string    `db:"category_id" json:"category_id"`
	ItemType   ItemType  `db:"item_type" json:"item_type"`
	Name       string    `db:"name" json:"name"`
	GradeType  GradeType `db:"grade_type" json:"grade_type"`
	GradeMin   float64   `db:"grade_min" json:"grade_min"`
	GradeMax   float64   `db:"grade_max" json:"grade_max"`
	ScaleID    *string   `db:"scale_id" json:"scale_id,omitempty"`
	Weight     float64   `db:"weight" json:"weight"`
	Hidden     bool      `db:"hidden" json:"hidden"`
	Locked     bool      `db:"locked" json:"locked"`
	Converted  bool      `db:"converted" json:"converted"`
}

// IsGradeTypeNone reports whether the item contributes nothing to
// aggregation. TEXT is a proxy for NONE in some activities.
func (i *GradeItem) IsGradeTypeNone() bool {
	return i.GradeType == GradeTypeNone || i.GradeType == GradeTypeText
}

// ScaleValue is one ordered entry of a host scale definition.
type ScaleValue struct {
	ScaleID string  `db:"scale_id" json:"scale_id"`
	Value   float64 `db:"value" json:"value"`
	Label   string  `db:"label" json:"label"`
}

// ConversionBreakpoint is one threshold of an administrator-defined
// numeric-to-scale conversion map. Thresholds are strictly increasing.
type ConversionBreakpoint struct {
	Threshold float64 `db:"threshold" json:"threshold"`
	Value     float64 `db:"value" json:"value"`
	Label     string  `db:"label" json:"label"`
}

// ResitPair marks one item of a two-child category as the resit attempt.
type ResitPair struct {
	ID         string `db:"id" json:"id"`
	CourseID   string `db:"course_id" json:"course_id"`
	CategoryID string `db:"category_id" json:"category_id"`
	ItemID     string `db:"item_id" json:"item_id"`
}

// CourseTree is the fully loaded category/item structure for one course.
// It is immutable for the duration of an aggregation pass.
type CourseTree struct {
	CourseID   string
	Categories map[string]*GradeCategory
	Items      map[string]*GradeItem
	// CategoryItem maps a category ID to its proxy grade item ID.
	CategoryItem map[string]string
	// Resits maps a category ID to its resit item ID.
	Resits map[string]string
}

// ChildrenOf returns the direct child categories and activity items of a
// category, in stable order.
func (t *CourseTree) ChildrenOf(categoryID string) ([]*GradeCategory, []*GradeItem) {
	var cats []*GradeCategory
	for _, c := range t.Categories {
		if c.ParentID != nil && *c.ParentID == categoryID {
			cats = append(cats, c)
		}
	}
	var items []*GradeItem
	for _, i := range t.Items {
		if i.ItemType == ItemTypeActivity && i.CategoryID == categoryID {
			items = append(items, i)
		}
	}
	sortCategoriesByPath(cats)
	sortItemsByID(items)
	return cats, items
}

// Level converts the stored depth to the institutional level, where the
// course total is level 1.
func (t *CourseTree) Level(categoryID string) int {
	c, ok := t.Categories[categoryID]
	if !ok {
		return 0
	}
	return c.Depth - 1
}

// IsGrandTotal reports whether the category is a top-level (course total)
// category.
func (t *CourseTree) IsGrandTotal(categoryID string) bool {
	return t.Level(categoryID) == 1
}

func sortCategoriesByPath(cats []*GradeCategory) {
	for i := 1; i < len(cats); i++ {
		for j := i; j > 0 && cats[j-1].Path > cats[j].Path; j-- {
			cats[j-1], cats[j] = cats[j], cats[j-1]
		}
	}
}

func sortItemsByID(items []*GradeItem) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j-1].ID > items[j].ID; j-- {
			items[j-1], items[j] = items[j], items[j-1]
		}
	}
}
