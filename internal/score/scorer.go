// Package score implements the deterministic rule-based product scorer.
package score

import (
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/ppiankov/stackguard/internal/model"
)

// ErrInvalidProduct is returned when a product cannot be scored.
var ErrInvalidProduct = errors.New("invalid product")

// Range is the inclusive realistic range of a category score
type Range struct {
	Min int
	Max int
}

// Clamp bounds v to the range
func (r Range) Clamp(v int) int {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// CategoryRanges are the clamp ranges applied to every rule-based score.
var CategoryRanges = map[model.Category]Range{
	model.CategoryIngredients:     {Min: 15, Max: 95},
	model.CategoryBioavailability: {Min: 10, Max: 90},
	model.CategoryDosage:          {Min: 25, Max: 85},
	model.CategoryPurity:          {Min: 20, Max: 95},
	model.CategoryValue:           {Min: 15, Max: 90},
}

// Scorer calculates category scores from product attributes. It holds no
// state; the same product always yields the same scores.
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score calculates the category scores of a product
func (s *Scorer) Score(p model.Product) (model.CategoryScores, error) {
	if err := p.Validate(); err != nil {
		return model.CategoryScores{}, fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}

	w := baseScores()
	w.applyOffset(NameOffset(p.Name, p.Brand))
	w.applyBrand(ClassifyBrand(p.Brand))
	w.applyForms(p.Ingredients)
	w.applyCount(len(p.Ingredients))
	w.applyDisclosure(p)
	w.applyTesting(p)

	return w.clamped(), nil
}

// Analyze produces the complete rule-based analysis of a product.
// generatedAt is stamped on the result as-is.
func (s *Scorer) Analyze(p model.Product, generatedAt time.Time) (*model.AnalysisResult, error) {
	scores, err := s.Score(p)
	if err != nil {
		return nil, err
	}

	overall := scores.Overall()
	strengths, weaknesses := points(p)

	return &model.AnalysisResult{
		ProductID:       p.ID,
		ProductName:     p.Name,
		OverallScore:    overall,
		CategoryScores:  scores,
		Strengths:       strengths,
		Weaknesses:      weaknesses,
		Recommendations: recommendations(p),
		Reasoning:       reasoning(p, overall),
		Tier:            model.TierRuleBased,
		GeneratedAt:     generatedAt,
	}, nil
}

// NameOffset derives a stable offset in [-10, 10] from name and brand so
// scores vary across products but never across runs.
func NameOffset(name, brand string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(model.NormalizeName(name) + "|" + model.NormalizeName(brand)))
	return int(h.Sum32()%21) - 10
}

// working accumulates unclamped adjustments
type working struct {
	ingredients     int
	bioavailability int
	dosage          int
	purity          int
	value           int
}

func baseScores() working {
	return working{
		ingredients:     65,
		bioavailability: 60,
		dosage:          60,
		purity:          60,
		value:           60,
	}
}

func (w *working) applyOffset(offset int) {
	w.ingredients += offset
	w.dosage += offset
	w.bioavailability += offset / 2
	w.purity += offset / 2
	w.value -= offset / 2
}

func (w *working) applyBrand(tier BrandTier) {
	switch tier {
	case BrandPremium:
		w.ingredients += 10
		w.bioavailability += 8
		w.purity += 15
		w.value -= 12
	case BrandBudget:
		w.ingredients -= 10
		w.bioavailability -= 8
		w.purity -= 10
		w.value += 15
	}
}

// applyForms rewards well-absorbed forms and penalizes poor ones
func (w *working) applyForms(ingredients []model.Ingredient) {
	bio, quality := 0, 0
	for _, ing := range ingredients {
		tier, matched := InferBioavailability(ing)
		if !matched {
			continue
		}
		switch tier {
		case model.BioavailabilityHigh:
			bio += 8
		case model.BioavailabilityLow:
			bio -= 12
			quality -= 4
		}
	}

	w.bioavailability += bound(bio, -30, 25)
	w.ingredients += bound(quality, -15, 0)
}

func (w *working) applyCount(n int) {
	switch {
	case n == 0:
		w.ingredients -= 25
		w.bioavailability -= 10
		w.dosage -= 15
	case n <= 5:
		w.ingredients += 8
		w.dosage += 5
	case n > 25:
		w.ingredients -= 10
		w.dosage -= 12
	}
}

// applyDisclosure scores how transparently amounts are labeled
func (w *working) applyDisclosure(p model.Product) {
	if isProprietaryBlend(p) {
		w.dosage -= 15
		w.purity -= 10
	}

	if len(p.Ingredients) == 0 {
		return
	}
	disclosed := 0
	for _, ing := range p.Ingredients {
		if ing.Amount > 0 {
			disclosed++
		}
	}
	switch disclosed {
	case len(p.Ingredients):
		w.dosage += 8
	case 0:
		w.dosage -= 8
	}
}

func (w *working) applyTesting(p model.Product) {
	if p.Verified {
		w.purity += 5
	}
	if p.ThirdPartyTested {
		w.purity += 12
	}
	w.purity += 3 * min(len(p.Certifications), 3)
}

func (w working) clamped() model.CategoryScores {
	return model.CategoryScores{
		Ingredients:     CategoryRanges[model.CategoryIngredients].Clamp(w.ingredients),
		Bioavailability: CategoryRanges[model.CategoryBioavailability].Clamp(w.bioavailability),
		Dosage:          CategoryRanges[model.CategoryDosage].Clamp(w.dosage),
		Purity:          CategoryRanges[model.CategoryPurity].Clamp(w.purity),
		Value:           CategoryRanges[model.CategoryValue].Clamp(w.value),
	}
}

func bound(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
