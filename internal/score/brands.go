package score

import (
	"strings"

	"github.com/ppiankov/stackguard/internal/model"
)

// BrandTier classifies a manufacturer's reputation
type BrandTier string

const (
	BrandPremium  BrandTier = "premium"
	BrandStandard BrandTier = "standard"
	BrandBudget   BrandTier = "budget"
)

// premiumBrands are manufacturers with a track record of third-party testing
// and well-absorbed ingredient forms.
var premiumBrands = []string{
	"thorne",
	"pure encapsulations",
	"life extension",
	"nordic naturals",
	"garden of life",
	"jarrow",
	"klaire labs",
	"designs for health",
	"integrative therapeutics",
	"seeking health",
	"metagenics",
	"douglas laboratories",
	"now foods",
	"doctor's best",
	"mega food",
	"megafood",
}

// budgetBrands are mass-market labels that typically use cheaper forms.
var budgetBrands = []string{
	"nature made",
	"spring valley",
	"equate",
	"kirkland",
	"up & up",
	"sundown",
	"member's mark",
	"vitafusion",
	"one a day",
	"centrum",
	"nature's bounty",
}

// ClassifyBrand returns the tier of a brand name. Matching is on the
// normalized name so "THORNE Research" is premium.
func ClassifyBrand(brand string) BrandTier {
	name := model.NormalizeName(brand)
	if name == "" {
		return BrandStandard
	}
	for _, b := range premiumBrands {
		if strings.Contains(name, b) {
			return BrandPremium
		}
	}
	for _, b := range budgetBrands {
		if strings.Contains(name, b) {
			return BrandBudget
		}
	}
	return BrandStandard
}
