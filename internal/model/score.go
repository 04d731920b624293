package model

// Per-factor maxima of the qualification rubric.
const (
	MaxIndustry             = 15
	MaxCompanySize          = 10
	MaxLocation             = 10
	MaxJobTitle             = 5
	MaxEquipmentBrands      = 20
	MaxRefaccionesNeed      = 10
	MaxPurchaseHistory      = 0
	MaxPreviousInteractions = 8
	MaxTotal                = 100
)

// Category thresholds on the total score.
const (
	HotThreshold  = 80
	WarmThreshold = 60
	ColdThreshold = 30
)

// Category is the score-derived priority tier of a lead.
type Category string

const (
	CategoryHot     Category = "HOT"
	CategoryWarm    Category = "WARM"
	CategoryCold    Category = "COLD"
	CategoryDiscard Category = "DISCARD"
)

// Categories lists every valid category, hottest first.
var Categories = []Category{CategoryHot, CategoryWarm, CategoryCold, CategoryDiscard}

// CategoryFor maps a total score to its category.
func CategoryFor(total int) Category {
	switch {
	case total >= HotThreshold:
		return CategoryHot
	case total >= WarmThreshold:
		return CategoryWarm
	case total >= ColdThreshold:
		return CategoryCold
	default:
		return CategoryDiscard
	}
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryHot, CategoryWarm, CategoryCold, CategoryDiscard:
		return true
	}
	return false
}

// Demographic holds the firmographic sub-factors.
type Demographic struct {
	Industry    int `json:"industry"`
	CompanySize int `json:"companySize"`
	Location    int `json:"location"`
	JobTitle    int `json:"jobTitle"`
}

// Intent holds the buying-signal sub-factors.
type Intent struct {
	EquipmentBrands int `json:"equipmentBrands"`
	RefaccionesNeed int `json:"refaccionesNeed"`
}

// Engagement holds the relationship sub-factors.
type Engagement struct {
	PurchaseHistory      int `json:"purchaseHistory"`
	PreviousInteractions int `json:"previousInteractions"`
}

// ScoreBreakdown is the fixed-shape result of the rubric. Build it with
// NewScoreBreakdown so every factor is bounded and Total is consistent.
type ScoreBreakdown struct {
	Demographic Demographic `json:"demographic"`
	Intent      Intent      `json:"intent"`
	Engagement  Engagement  `json:"engagement"`
	Total       int         `json:"total"`
}

// NewScoreBreakdown bounds each factor to [0, max] and sets Total to
// min(100, sum of factors).
func NewScoreBreakdown(d Demographic, i Intent, e Engagement) ScoreBreakdown {
	b := ScoreBreakdown{
		Demographic: Demographic{
			Industry:    bound(d.Industry, MaxIndustry),
			CompanySize: bound(d.CompanySize, MaxCompanySize),
			Location:    bound(d.Location, MaxLocation),
			JobTitle:    bound(d.JobTitle, MaxJobTitle),
		},
		Intent: Intent{
			EquipmentBrands: bound(i.EquipmentBrands, MaxEquipmentBrands),
			RefaccionesNeed: bound(i.RefaccionesNeed, MaxRefaccionesNeed),
		},
		Engagement: Engagement{
			PurchaseHistory:      bound(e.PurchaseHistory, MaxPurchaseHistory),
			PreviousInteractions: bound(e.PreviousInteractions, MaxPreviousInteractions),
		},
	}
	b.Total = ClampScore(b.Sum())
	return b
}

// DemographicTotal is the demographic subtotal.
func (b ScoreBreakdown) DemographicTotal() int {
	d := b.Demographic
	return d.Industry + d.CompanySize + d.Location + d.JobTitle
}

// IntentTotal is the intent subtotal.
func (b ScoreBreakdown) IntentTotal() int {
	return b.Intent.EquipmentBrands + b.Intent.RefaccionesNeed
}

// EngagementTotal is the engagement subtotal.
func (b ScoreBreakdown) EngagementTotal() int {
	return b.Engagement.PurchaseHistory + b.Engagement.PreviousInteractions
}

// Sum is the unclamped sum of every sub-factor.
func (b ScoreBreakdown) Sum() int {
	return b.DemographicTotal() + b.IntentTotal() + b.EngagementTotal()
}

// Category derives the category from Total.
func (b ScoreBreakdown) Category() Category {
	return CategoryFor(b.Total)
}

// ClampScore bounds a score to [0, 100].
func ClampScore(score int) int {
	return bound(score, MaxTotal)
}

func bound(v, maxV int) int {
	if v < 0 {
		return 0
	}
	if v > maxV {
		return maxV
	}
	return v
}
