package interaction

import (
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/stackguard/internal/model"
)

// upperLimit is the tolerable daily upper intake for an adult
type upperLimit struct {
	nutrient string
	keywords []string
	limitMg  float64 // limit expressed in mg
	unit     string  // display unit for warnings
	iuToMg   float64 // 0 when IU amounts cannot be converted
}

var upperLimits = []upperLimit{
	{nutrient: "Vitamin D", keywords: []string{"vitamin d", "cholecalciferol", "ergocalciferol"}, limitMg: 0.1, unit: "mcg", iuToMg: 0.000025},
	{nutrient: "Vitamin A", keywords: []string{"vitamin a", "retinol", "retinyl"}, limitMg: 3, unit: "mcg", iuToMg: 0.0003},
	{nutrient: "Vitamin E", keywords: []string{"vitamin e", "tocopherol"}, limitMg: 1000, unit: "mg", iuToMg: 0.67},
	{nutrient: "Vitamin C", keywords: []string{"vitamin c", "ascorbic acid", "ascorbate"}, limitMg: 2000, unit: "mg"},
	{nutrient: "Vitamin B6", keywords: []string{"vitamin b6", "b6", "pyridoxine", "pyridoxal"}, limitMg: 100, unit: "mg"},
	{nutrient: "Niacin", keywords: []string{"niacin", "nicotinic acid"}, limitMg: 35, unit: "mg"},
	{nutrient: "Folate", keywords: []string{"folate", "folic acid", "methylfolate"}, limitMg: 1, unit: "mcg"},
	{nutrient: "Zinc", keywords: []string{"zinc"}, limitMg: 40, unit: "mg"},
	{nutrient: "Iron", keywords: []string{"iron", "ferrous", "ferric"}, limitMg: 45, unit: "mg"},
	{nutrient: "Magnesium", keywords: []string{"magnesium"}, limitMg: 350, unit: "mg"},
	{nutrient: "Calcium", keywords: []string{"calcium"}, limitMg: 2500, unit: "mg"},
	{nutrient: "Selenium", keywords: []string{"selenium", "selenomethionine"}, limitMg: 0.4, unit: "mcg"},
	{nutrient: "Copper", keywords: []string{"copper"}, limitMg: 10, unit: "mg"},
	{nutrient: "Iodine", keywords: []string{"iodine", "potassium iodide"}, limitMg: 1.1, unit: "mcg"},
}

// StackNutrientWarnings totals each limited nutrient across every item and
// returns one warning per nutrient above its upper limit, naming the items
// that contribute. Items are expected to be deduplicated already.
// Ingredients without a convertible amount are ignored.
func StackNutrientWarnings(items []model.StackItem) []model.NutrientWarning {
	var warnings []model.NutrientWarning

	for _, limit := range upperLimits {
		total := 0.0
		var sources []string
		for _, item := range items {
			contributed := false
			for _, ing := range item.Ingredients {
				if !limit.matches(ing.Name) {
					continue
				}
				mg, ok := limit.toMg(ing.Amount, ing.Unit)
				if !ok {
					continue
				}
				total += mg
				contributed = true
			}
			if contributed {
				sources = append(sources, item.Name)
			}
		}

		if total <= limit.limitMg {
			continue
		}

		severity := model.SeverityModerate
		if total > 2*limit.limitMg {
			severity = model.SeverityHigh
		}

		current := fromMg(total, limit.unit)
		ul := fromMg(limit.limitMg, limit.unit)
		from := "Combined " + limit.nutrient + " from " + joinNames(sources)
		if len(sources) == 1 {
			from = limit.nutrient + " from " + sources[0]
		}
		advice := fmt.Sprintf("%s is %s %s, above the %s %s upper limit",
			from, formatAmount(current), limit.unit, formatAmount(ul), limit.unit)

		warnings = append(warnings, model.NutrientWarning{
			Nutrient:       limit.nutrient,
			CurrentTotal:   current,
			UpperLimit:     ul,
			Unit:           limit.unit,
			Severity:       severity,
			Sources:        sources,
			Recommendation: advice,
		})
	}

	return warnings
}

// mergeNutrientWarnings folds checker-reported warnings into the stack-wide
// ones, keeping one warning per nutrient at its highest severity.
func mergeNutrientWarnings(stackWide, reported []model.NutrientWarning) []model.NutrientWarning {
	merged := make([]model.NutrientWarning, 0, len(stackWide)+len(reported))
	index := make(map[string]int, len(stackWide)+len(reported))

	for _, w := range append(append([]model.NutrientWarning{}, stackWide...), reported...) {
		key := model.NormalizeName(w.Nutrient)
		i, seen := index[key]
		if !seen {
			index[key] = len(merged)
			merged = append(merged, w)
			continue
		}
		if w.Severity > merged[i].Severity {
			merged[i] = w
		}
	}
	return merged
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}

func (l upperLimit) matches(name string) bool {
	n := model.NormalizeName(name)
	for _, k := range l.keywords {
		if strings.Contains(n, k) {
			return true
		}
	}
	return false
}

func (l upperLimit) toMg(amount float64, unit string) (float64, bool) {
	if amount <= 0 {
		return 0, false
	}
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "mg":
		return amount, true
	case "mcg", "µg", "ug", "mcg dfe", "mcg rae":
		return amount / 1000, true
	case "g":
		return amount * 1000, true
	case "iu":
		if l.iuToMg == 0 {
			return 0, false
		}
		return amount * l.iuToMg, true
	default:
		return 0, false
	}
}

func fromMg(mg float64, unit string) float64 {
	v := mg
	if unit == "mcg" {
		v = mg * 1000
	}
	return math.Round(v*100) / 100
}

func formatAmount(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
