package analysis

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/stackguard/internal/llm"
	"github.com/ppiankov/stackguard/internal/model"
)

// basicScore is the flat category score of the emergency tier
const basicScore = 65

// merge overlays an AI enhancement on a rule-based result. AI fields win
// only when they are non-empty; base is not modified.
func merge(base *model.AnalysisResult, e *llm.Enhancement) *model.AnalysisResult {
	out := *base
	out.Tier = model.TierAIEnhanced

	if e == nil {
		return &out
	}
	if strings.TrimSpace(e.Reasoning) != "" {
		out.Reasoning = strings.TrimSpace(e.Reasoning)
	}
	if len(e.Recommendations.GoodFor) > 0 {
		out.Recommendations.GoodFor = slices.Clone(e.Recommendations.GoodFor)
	}
	if len(e.Recommendations.AvoidIf) > 0 {
		out.Recommendations.AvoidIf = slices.Clone(e.Recommendations.AvoidIf)
	}
	if len(e.Safety) > 0 {
		out.IngredientSafety = slices.Clone(e.Safety)
	}
	return &out
}

// basicResult is the conservative result used when rule-based scoring
// itself fails. It cannot fail.
func basicResult(p model.Product, now time.Time) *model.AnalysisResult {
	scores := model.CategoryScores{
		Ingredients:     basicScore,
		Bioavailability: basicScore,
		Dosage:          basicScore,
		Purity:          basicScore,
		Value:           basicScore,
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = "Unknown product"
	}

	return &model.AnalysisResult{
		ProductID:      p.ID,
		ProductName:    name,
		OverallScore:   scores.Overall(),
		CategoryScores: scores,
		Strengths:      []model.Point{},
		Weaknesses:     []model.Point{},
		Recommendations: model.Recommendations{
			GoodFor: []string{"General supplementation as directed on the label"},
			AvoidIf: []string{"You have not checked this product with your healthcare provider"},
		},
		Reasoning:   "A detailed analysis is unavailable right now; this is a neutral baseline score.",
		Tier:        model.TierBasic,
		GeneratedAt: now,
	}
}

// notFoundResult is the placeholder returned with ErrProductNotFound
func notFoundResult(barcode string, now time.Time) *model.AnalysisResult {
	return &model.AnalysisResult{
		ProductID:       barcode,
		ProductName:     "Product Not Found",
		Strengths:       []model.Point{},
		Weaknesses:      []model.Point{},
		Recommendations: model.Recommendations{GoodFor: []string{}, AvoidIf: []string{}},
		Reasoning:       fmt.Sprintf("No product information is available for barcode %q.", barcode),
		Tier:            model.TierBasic,
		GeneratedAt:     now,
	}
}

// clone copies a result deeply enough that callers may modify it freely
func clone(r *model.AnalysisResult) *model.AnalysisResult {
	out := *r
	out.Strengths = slices.Clone(r.Strengths)
	out.Weaknesses = slices.Clone(r.Weaknesses)
	out.Recommendations.GoodFor = slices.Clone(r.Recommendations.GoodFor)
	out.Recommendations.AvoidIf = slices.Clone(r.Recommendations.AvoidIf)
	out.IngredientSafety = slices.Clone(r.IngredientSafety)
	return &out
}

// syntheticID derives a stable id for products supplied without a barcode
func syntheticID(p model.Product) string {
	material := model.NormalizeName(p.Name) + "|" + model.NormalizeName(p.Brand)
	return "synthetic-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(material)).String()
}
