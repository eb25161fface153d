package model

import (
	"fmt"
	"strings"
)

// Severity is a point on the severity lattice NONE < LOW < MODERATE < HIGH < CRITICAL.
// The zero value is SeverityNone.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityModerate
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "NONE"
	case SeverityLow:
		return "LOW"
	case SeverityModerate:
		return "MODERATE"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity parses a severity name, case-insensitively
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return SeverityNone, nil
	case "LOW", "MINOR":
		return SeverityLow, nil
	case "MODERATE", "MEDIUM":
		return SeverityModerate, nil
	case "HIGH", "MAJOR":
		return SeverityHigh, nil
	case "CRITICAL", "SEVERE":
		return SeverityCritical, nil
	default:
		return SeverityNone, fmt.Errorf("unknown severity: %q", s)
	}
}

// MarshalText encodes the severity by name
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MaxSeverity returns the lattice maximum; SeverityNone for no arguments.
func MaxSeverity(levels ...Severity) Severity {
	highest := SeverityNone
	for _, l := range levels {
		if l > highest {
			highest = l
		}
	}
	return highest
}

// InteractionType classifies a finding
type InteractionType string

const (
	InteractionDrugDrug             InteractionType = "Drug-Drug"
	InteractionDrugSupplement       InteractionType = "Drug-Supplement"
	InteractionSupplementSupplement InteractionType = "Supplement-Supplement"
	InteractionNutrientLimit        InteractionType = "Nutrient-Limit"
)

// InteractionTypeFor derives the finding type from the kinds of the two items
func InteractionTypeFor(a, b StackKind) InteractionType {
	switch {
	case a == KindMedication && b == KindMedication:
		return InteractionDrugDrug
	case a == KindMedication || b == KindMedication:
		return InteractionDrugSupplement
	default:
		return InteractionSupplementSupplement
	}
}

// InteractionFinding is a single pairwise interaction
type InteractionFinding struct {
	Type           InteractionType `json:"type"`
	Severity       Severity        `json:"severity"`
	ItemA          string          `json:"item_a"`
	ItemB          string          `json:"item_b"`
	Message        string          `json:"message"`
	Mechanism      string          `json:"mechanism,omitempty"`
	Recommendation string          `json:"recommendation"`
	Evidence       []string        `json:"evidence,omitempty"` // Evidence badges
}

// NutrientWarning flags a nutrient whose combined intake passes its upper limit
type NutrientWarning struct {
	Nutrient       string   `json:"nutrient"`
	CurrentTotal   float64  `json:"current_total"`
	UpperLimit     float64  `json:"upper_limit"`
	Unit           string   `json:"unit"`
	Severity       Severity `json:"severity"`
	Sources        []string `json:"sources,omitempty"`
	Recommendation string   `json:"recommendation"`
}

// StackInteractionResult aggregates pairwise findings across a stack
type StackInteractionResult struct {
	OverallRiskLevel Severity             `json:"overall_risk_level"`
	Interactions     []InteractionFinding `json:"interactions"`
	NutrientWarnings []NutrientWarning    `json:"nutrient_warnings"`
	OverallSafe      bool                 `json:"overall_safe"`
	PairsChecked     int                  `json:"pairs_checked"`
	PairsSkipped     int                  `json:"pairs_skipped,omitempty"`
	Partial          bool                 `json:"partial,omitempty"` // Scan stopped early
}

// NewStackInteractionResult builds a result from findings and warnings,
// computing the overall risk level and safety flag.
func NewStackInteractionResult(findings []InteractionFinding, warnings []NutrientWarning) *StackInteractionResult {
	if findings == nil {
		findings = []InteractionFinding{}
	}
	if warnings == nil {
		warnings = []NutrientWarning{}
	}

	level := SeverityNone
	for _, f := range findings {
		level = MaxSeverity(level, f.Severity)
	}
	for _, w := range warnings {
		level = MaxSeverity(level, w.Severity)
	}

	return &StackInteractionResult{
		OverallRiskLevel: level,
		Interactions:     findings,
		NutrientWarnings: warnings,
		OverallSafe:      IsSafe(level),
	}
}

// IsSafe reports whether a risk level is below HIGH
func IsSafe(level Severity) bool {
	return level < SeverityHigh
}
