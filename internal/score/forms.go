package score

import (
	"strings"

	"github.com/ppiankov/stackguard/internal/model"
)

// formRule maps an ingredient family to the substrings that identify its
// well- and poorly-absorbed forms. High forms are checked first.
type formRule struct {
	family string
	names  []string
	high   []string
	low    []string
}

var formRules = []formRule{
	{
		family: "vitamin b12",
		names:  []string{"b12", "cobalamin"},
		high:   []string{"methylcobalamin", "methyl", "adenosylcobalamin", "hydroxocobalamin"},
		low:    []string{"cyanocobalamin", "cyano"},
	},
	{
		family: "vitamin d",
		names:  []string{"vitamin d", "cholecalciferol", "ergocalciferol"},
		high:   []string{"d3", "cholecalciferol"},
		low:    []string{"d2", "ergocalciferol"},
	},
	{
		family: "magnesium",
		names:  []string{"magnesium"},
		high:   []string{"glycinate", "citrate", "malate", "threonate", "taurate"},
		low:    []string{"oxide"},
	},
	{
		family: "zinc",
		names:  []string{"zinc"},
		high:   []string{"glycinate", "citrate", "malate", "picolinate"},
		low:    []string{"oxide"},
	},
	{
		family: "fish oil",
		names:  []string{"fish oil", "omega-3", "omega 3", "krill oil"},
		high:   []string{"triglyceride", "re-esterified", "rtg", "phospholipid"},
		low:    []string{"ethyl ester"},
	},
	{
		family: "folate",
		names:  []string{"folate", "folic acid", "vitamin b9"},
		high:   []string{"methylfolate", "5-mthf", "folinic"},
		low:    []string{"folic acid"},
	},
	{
		family: "iron",
		names:  []string{"iron"},
		high:   []string{"bisglycinate", "glycinate"},
		low:    []string{"oxide"},
	},
	{
		family: "calcium",
		names:  []string{"calcium"},
		high:   []string{"citrate"},
		low:    []string{"carbonate", "oxide"},
	},
}

// InferBioavailability classifies an ingredient's form. An explicitly set
// tier wins. The second return reports whether a rule or explicit tier
// applied; unmatched ingredients are medium.
func InferBioavailability(ing model.Ingredient) (model.BioavailabilityTier, bool) {
	if ing.Bioavailability != "" {
		return ing.Bioavailability, true
	}

	name := model.NormalizeName(ing.Name)
	text := name + " " + model.NormalizeName(ing.Form)

	for _, rule := range formRules {
		if !containsAny(name, rule.names) {
			continue
		}
		if containsAny(text, rule.high) {
			return model.BioavailabilityHigh, true
		}
		if containsAny(text, rule.low) {
			return model.BioavailabilityLow, true
		}
		return model.BioavailabilityMedium, true
	}

	return model.BioavailabilityMedium, false
}

// WithInferredBioavailability returns a copy of the ingredients with the
// Bioavailability field filled in.
func WithInferredBioavailability(ingredients []model.Ingredient) []model.Ingredient {
	out := make([]model.Ingredient, len(ingredients))
	for i, ing := range ingredients {
		tier, _ := InferBioavailability(ing)
		ing.Bioavailability = tier
		out[i] = ing
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// isProprietaryBlend detects undisclosed-amount blends
func isProprietaryBlend(p model.Product) bool {
	if strings.Contains(model.NormalizeName(p.Name), "proprietary") {
		return true
	}
	for _, ing := range p.Ingredients {
		n := model.NormalizeName(ing.Name)
		if strings.Contains(n, "proprietary") || strings.HasSuffix(n, " blend") || n == "blend" {
			return true
		}
	}
	return false
}
