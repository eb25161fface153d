package score

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ppiankov/stackguard/internal/model"
)

// guidance is who an ingredient family suits and who should avoid it
type guidance struct {
	names   []string
	goodFor string
	avoidIf string
}

var ingredientGuidance = []guidance{
	{names: []string{"magnesium"}, goodFor: "Sleep quality and muscle relaxation", avoidIf: "You have kidney disease"},
	{names: []string{"vitamin d", "cholecalciferol"}, goodFor: "Low sun exposure or documented vitamin D deficiency", avoidIf: "You have high blood calcium"},
	{names: []string{"b12", "cobalamin"}, goodFor: "Vegans, vegetarians and adults over 50"},
	{names: []string{"iron"}, goodFor: "Documented iron deficiency", avoidIf: "You have hemochromatosis or untested iron levels"},
	{names: []string{"fish oil", "omega-3", "omega 3", "krill oil"}, goodFor: "Cardiovascular and joint support", avoidIf: "You take blood thinners such as warfarin"},
	{names: []string{"zinc"}, goodFor: "Short-term immune support", avoidIf: "You plan long-term use without copper"},
	{names: []string{"folate", "folic acid"}, goodFor: "Pregnancy planning"},
	{names: []string{"calcium"}, goodFor: "Low dietary calcium intake", avoidIf: "You take thyroid medication within 4 hours"},
	{names: []string{"st. john", "st john", "hypericum"}, goodFor: "Mild low mood", avoidIf: "You take antidepressants, birth control or blood thinners"},
	{names: []string{"melatonin"}, goodFor: "Occasional sleeplessness and jet lag", avoidIf: "You are pregnant or take sedatives"},
	{names: []string{"vitamin k"}, goodFor: "Bone health", avoidIf: "You take warfarin"},
	{names: []string{"potassium"}, goodFor: "Low dietary potassium intake", avoidIf: "You take ACE inhibitors or potassium-sparing diuretics"},
	{names: []string{"ginkgo"}, goodFor: "Circulation support", avoidIf: "You take blood thinners or have surgery scheduled"},
}

// points derives strengths and weaknesses from the same attributes the
// scores are computed from.
func points(p model.Product) (strengths, weaknesses []model.Point) {
	strengths = []model.Point{}
	weaknesses = []model.Point{}

	switch ClassifyBrand(p.Brand) {
	case BrandPremium:
		strengths = append(strengths, model.Point{
			Point:      "Reputable manufacturer",
			Detail:     fmt.Sprintf("%s is known for quality sourcing and testing", p.Brand),
			Importance: model.ImportanceMedium,
			Category:   model.CategoryPurity,
		})
	case BrandBudget:
		weaknesses = append(weaknesses, model.Point{
			Point:      "Budget manufacturer",
			Detail:     fmt.Sprintf("%s typically favors cheaper ingredient forms", p.Brand),
			Importance: model.ImportanceLow,
			Category:   model.CategoryIngredients,
		})
	}

	var high, low []string
	for _, ing := range p.Ingredients {
		tier, matched := InferBioavailability(ing)
		if !matched {
			continue
		}
		switch tier {
		case model.BioavailabilityHigh:
			high = append(high, describe(ing))
		case model.BioavailabilityLow:
			low = append(low, describe(ing))
		}
	}
	if len(high) > 0 {
		strengths = append(strengths, model.Point{
			Point:      "Well-absorbed forms",
			Detail:     strings.Join(high, ", "),
			Importance: model.ImportanceHigh,
			Category:   model.CategoryBioavailability,
		})
	}
	if len(low) > 0 {
		weaknesses = append(weaknesses, model.Point{
			Point:      "Poorly absorbed forms",
			Detail:     strings.Join(low, ", "),
			Importance: model.ImportanceHigh,
			Category:   model.CategoryBioavailability,
		})
	}

	n := len(p.Ingredients)
	switch {
	case n == 0:
		weaknesses = append(weaknesses, model.Point{
			Point:      "No ingredient information",
			Detail:     "The label lists no ingredients to evaluate",
			Importance: model.ImportanceHigh,
			Category:   model.CategoryIngredients,
		})
	case n <= 5:
		strengths = append(strengths, model.Point{
			Point:      "Focused formula",
			Detail:     fmt.Sprintf("%d ingredient(s) at meaningful doses", n),
			Importance: model.ImportanceLow,
			Category:   model.CategoryIngredients,
		})
	case n > 25:
		weaknesses = append(weaknesses, model.Point{
			Point:      "Kitchen-sink formula",
			Detail:     fmt.Sprintf("%d ingredients; individual doses are likely too low", n),
			Importance: model.ImportanceMedium,
			Category:   model.CategoryDosage,
		})
	}

	if isProprietaryBlend(p) {
		weaknesses = append(weaknesses, model.Point{
			Point:      "Proprietary blend",
			Detail:     "Individual ingredient amounts are not disclosed",
			Importance: model.ImportanceHigh,
			Category:   model.CategoryDosage,
		})
	}

	if p.ThirdPartyTested {
		strengths = append(strengths, model.Point{
			Point:      "Third-party tested",
			Detail:     "Independent testing for identity and contaminants",
			Importance: model.ImportanceHigh,
			Category:   model.CategoryPurity,
		})
	} else {
		weaknesses = append(weaknesses, model.Point{
			Point:      "No third-party testing",
			Detail:     "Purity and label accuracy are not independently verified",
			Importance: model.ImportanceMedium,
			Category:   model.CategoryPurity,
		})
	}

	if len(p.Certifications) > 0 {
		strengths = append(strengths, model.Point{
			Point:      "Certified",
			Detail:     strings.Join(p.Certifications, ", "),
			Importance: model.ImportanceLow,
			Category:   model.CategoryPurity,
		})
	}

	return strengths, weaknesses
}

func describe(ing model.Ingredient) string {
	if ing.Form == "" {
		return ing.Name
	}
	return fmt.Sprintf("%s (%s)", ing.Name, ing.Form)
}

// recommendations collects guidance for every recognized ingredient, in
// label order, without duplicates.
func recommendations(p model.Product) model.Recommendations {
	recs := model.Recommendations{GoodFor: []string{}, AvoidIf: []string{}}

	for _, ing := range p.Ingredients {
		name := model.NormalizeName(ing.Name)
		for _, g := range ingredientGuidance {
			if !containsAny(name, g.names) {
				continue
			}
			if g.goodFor != "" && !slices.Contains(recs.GoodFor, g.goodFor) {
				recs.GoodFor = append(recs.GoodFor, g.goodFor)
			}
			if g.avoidIf != "" && !slices.Contains(recs.AvoidIf, g.avoidIf) {
				recs.AvoidIf = append(recs.AvoidIf, g.avoidIf)
			}
		}
	}

	if len(recs.GoodFor) == 0 {
		recs.GoodFor = append(recs.GoodFor, "General supplementation as directed on the label")
	}
	return recs
}

func reasoning(p model.Product, overall int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s scores %d/100 on rule-based analysis.", p.Name, overall)

	switch ClassifyBrand(p.Brand) {
	case BrandPremium:
		b.WriteString(" The manufacturer is a recognized premium brand.")
	case BrandBudget:
		b.WriteString(" The manufacturer is a budget brand, which lowers quality scores but improves value.")
	}

	high, low := 0, 0
	for _, ing := range p.Ingredients {
		tier, matched := InferBioavailability(ing)
		if !matched {
			continue
		}
		switch tier {
		case model.BioavailabilityHigh:
			high++
		case model.BioavailabilityLow:
			low++
		}
	}
	if high > 0 || low > 0 {
		fmt.Fprintf(&b, " %d ingredient(s) use well-absorbed forms and %d use poorly absorbed forms.", high, low)
	}

	if p.ThirdPartyTested {
		b.WriteString(" Third-party testing supports the purity score.")
	}
	b.WriteString(" Scores are heuristic and not medical advice.")
	return b.String()
}
