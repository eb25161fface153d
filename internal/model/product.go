package model

import "strings"

// Product is the item being analyzed. It is treated as immutable for the
// duration of an analysis.
type Product struct {
	ID               string       `json:"id" yaml:"id" validate:"notblank"` // Barcode or synthetic id
	Name             string       `json:"name" yaml:"name" validate:"notblank"`
	Brand            string       `json:"brand,omitempty" yaml:"brand,omitempty"`
	Ingredients      []Ingredient `json:"ingredients" yaml:"ingredients" validate:"dive"` // Label order
	Verified         bool         `json:"verified" yaml:"verified"`
	ThirdPartyTested bool         `json:"third_party_tested" yaml:"third_party_tested"`
	Certifications   []string     `json:"certifications,omitempty" yaml:"certifications,omitempty"`
}

// Ingredient is a single label ingredient
type Ingredient struct {
	Name            string              `json:"name" yaml:"name" validate:"notblank"`
	Form            string              `json:"form,omitempty" yaml:"form,omitempty"` // e.g. "glycinate", "oxide", "triglyceride"
	Bioavailability BioavailabilityTier `json:"bioavailability,omitempty" yaml:"bioavailability,omitempty" validate:"omitempty,oneof=low medium high"`
	Amount          float64             `json:"amount,omitempty" yaml:"amount,omitempty" validate:"gte=0"`
	Unit            string              `json:"unit,omitempty" yaml:"unit,omitempty"` // mg, mcg, IU, g
}

// BioavailabilityTier is the inferred absorption class of an ingredient form
type BioavailabilityTier string

const (
	BioavailabilityLow    BioavailabilityTier = "low"
	BioavailabilityMedium BioavailabilityTier = "medium"
	BioavailabilityHigh   BioavailabilityTier = "high"
)

// StackKind distinguishes supplements from medications in a user's stack
type StackKind string

const (
	KindSupplement StackKind = "supplement"
	KindMedication StackKind = "medication"
)

// StackItem is one thing the user reports taking. Owned by the stack store;
// read-only here.
type StackItem struct {
	ID          string       `json:"id" yaml:"id" validate:"notblank"`
	Name        string       `json:"name" yaml:"name" validate:"notblank"`
	Kind        StackKind    `json:"kind" yaml:"kind" validate:"oneof=supplement medication"`
	Dosage      string       `json:"dosage,omitempty" yaml:"dosage,omitempty"`
	Frequency   string       `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	Ingredients []Ingredient `json:"ingredients,omitempty" yaml:"ingredients,omitempty" validate:"dive"`
}

// AsStackItem views the product as a supplement stack entry so it can be
// compared pairwise against the user's stack.
func (p Product) AsStackItem() StackItem {
	return StackItem{
		ID:          p.ID,
		Name:        p.Name,
		Kind:        KindSupplement,
		Ingredients: p.Ingredients,
	}
}

// NormalizeName lowercases, trims and collapses internal whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
