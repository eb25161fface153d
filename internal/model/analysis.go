package model

import (
	"math"
	"time"
)

// Category weights used to combine category scores into the overall score.
// They sum to 1.0.
const (
	WeightIngredients     = 0.30
	WeightBioavailability = 0.25
	WeightDosage          = 0.20
	WeightPurity          = 0.15
	WeightValue           = 0.10
)

// Category names a scoring dimension
type Category string

const (
	CategoryIngredients     Category = "ingredients"
	CategoryBioavailability Category = "bioavailability"
	CategoryDosage          Category = "dosage"
	CategoryPurity          Category = "purity"
	CategoryValue           Category = "value"
)

// Categories lists every category in weight order.
var Categories = []Category{
	CategoryIngredients,
	CategoryBioavailability,
	CategoryDosage,
	CategoryPurity,
	CategoryValue,
}

// CategoryScores holds the per-category scores of an analysis
type CategoryScores struct {
	Ingredients     int `json:"ingredients"`
	Bioavailability int `json:"bioavailability"`
	Dosage          int `json:"dosage"`
	Purity          int `json:"purity"`
	Value           int `json:"value"`
}

// Overall returns the fixed-weight combination of the category scores,
// rounded to the nearest integer and bounded to [0,100].
func (c CategoryScores) Overall() int {
	sum := float64(c.Ingredients)*WeightIngredients +
		float64(c.Bioavailability)*WeightBioavailability +
		float64(c.Dosage)*WeightDosage +
		float64(c.Purity)*WeightPurity +
		float64(c.Value)*WeightValue

	overall := int(math.Round(sum))
	if overall < 0 {
		return 0
	}
	if overall > 100 {
		return 100
	}
	return overall
}

// Get returns the score for a category
func (c CategoryScores) Get(cat Category) int {
	switch cat {
	case CategoryIngredients:
		return c.Ingredients
	case CategoryBioavailability:
		return c.Bioavailability
	case CategoryDosage:
		return c.Dosage
	case CategoryPurity:
		return c.Purity
	case CategoryValue:
		return c.Value
	default:
		return 0
	}
}

// Importance ranks a strength or weakness
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// Point is a single strength or weakness with its supporting detail
type Point struct {
	Point      string     `json:"point"`
	Detail     string     `json:"detail"`
	Importance Importance `json:"importance"`
	Category   Category   `json:"category"`
}

// Recommendations describes who a product suits and who should avoid it
type Recommendations struct {
	GoodFor []string `json:"good_for"`
	AvoidIf []string `json:"avoid_if"`
}

// IsEmpty reports whether both lists are empty
func (r Recommendations) IsEmpty() bool {
	return len(r.GoodFor) == 0 && len(r.AvoidIf) == 0
}

// Tier identifies which analysis strategy produced a result
type Tier string

const (
	TierAIEnhanced Tier = "ai_enhanced"
	TierRuleBased  Tier = "rule_based"
	TierBasic      Tier = "basic"
)

// SafetyLabel is an AI classification of a single ingredient
type SafetyLabel struct {
	Ingredient string  `json:"ingredient"`
	Label      string  `json:"label"`
	Score      float64 `json:"score"`
}

// AnalysisResult is the complete quality and safety analysis of a product.
// OverallScore is always CategoryScores.Overall().
type AnalysisResult struct {
	ProductID        string                  `json:"product_id"`
	ProductName      string                  `json:"product_name"`
	OverallScore     int                     `json:"overall_score"`
	CategoryScores   CategoryScores          `json:"category_scores"`
	Strengths        []Point                 `json:"strengths"`
	Weaknesses       []Point                 `json:"weaknesses"`
	Recommendations  Recommendations         `json:"recommendations"`
	Reasoning        string                  `json:"reasoning"`
	IngredientSafety []SafetyLabel           `json:"ingredient_safety,omitempty"`
	StackInteraction *StackInteractionResult `json:"stack_interaction,omitempty"`
	Tier             Tier                    `json:"tier"`
	// Cached reports provenance only. It is the one field allowed to differ
	// between two analyses of the same product within the cache TTL.
	Cached           bool                    `json:"cached"`
	GeneratedAt      time.Time               `json:"generated_at"`
}

// AttachStackInteraction sets the stack interaction exactly once. It reports
// false if one was already attached.
func (r *AnalysisResult) AttachStackInteraction(s *StackInteractionResult) bool {
	if r.StackInteraction != nil || s == nil {
		return false
	}
	r.StackInteraction = s
	return true
}
