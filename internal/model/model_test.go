package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryScores_Overall(t *testing.T) {
	tests := []struct {
		name   string
		scores CategoryScores
		want   int
	}{
		{"uniform", CategoryScores{65, 65, 65, 65, 65}, 65},
		{"weighted", CategoryScores{Ingredients: 100}, 30},
		{"rounding", CategoryScores{Ingredients: 81, Bioavailability: 73, Dosage: 66, Purity: 90, Value: 55}, 75},
		{"upper bound", CategoryScores{150, 150, 150, 150, 150}, 100},
		{"lower bound", CategoryScores{-20, -20, -20, -20, -20}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scores.Overall())
		})
	}
}

func TestMaxSeverity(t *testing.T) {
	assert.Equal(t, SeverityNone, MaxSeverity())
	assert.Equal(t, SeverityHigh, MaxSeverity(SeverityLow, SeverityHigh, SeverityModerate))
	assert.Equal(t, SeverityCritical, MaxSeverity(SeverityCritical, SeverityNone))
}

func TestIsSafe(t *testing.T) {
	assert.True(t, IsSafe(SeverityNone))
	assert.True(t, IsSafe(SeverityModerate))
	assert.False(t, IsSafe(SeverityHigh))
	assert.False(t, IsSafe(SeverityCritical))
}

func TestSeverity_TextRoundTrip(t *testing.T) {
	data, err := json.Marshal(struct {
		Level Severity `json:"level"`
	}{SeverityModerate})
	require.NoError(t, err)
	assert.JSONEq(t, `{"level": "MODERATE"}`, string(data))

	var decoded struct {
		Level Severity `json:"level"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"level": "major"}`), &decoded))
	assert.Equal(t, SeverityHigh, decoded.Level)

	assert.Error(t, json.Unmarshal([]byte(`{"level": "extreme"}`), &decoded))
}

func TestInteractionTypeFor(t *testing.T) {
	assert.Equal(t, InteractionDrugDrug, InteractionTypeFor(KindMedication, KindMedication))
	assert.Equal(t, InteractionDrugSupplement, InteractionTypeFor(KindSupplement, KindMedication))
	assert.Equal(t, InteractionSupplementSupplement, InteractionTypeFor(KindSupplement, KindSupplement))
}

func TestNewStackInteractionResult(t *testing.T) {
	empty := NewStackInteractionResult(nil, nil)
	assert.Equal(t, SeverityNone, empty.OverallRiskLevel)
	assert.True(t, empty.OverallSafe)
	assert.NotNil(t, empty.Interactions)
	assert.NotNil(t, empty.NutrientWarnings)

	risky := NewStackInteractionResult(
		[]InteractionFinding{{Severity: SeverityModerate}},
		[]NutrientWarning{{Severity: SeverityHigh}},
	)
	assert.Equal(t, SeverityHigh, risky.OverallRiskLevel)
	assert.False(t, risky.OverallSafe)
}

func TestAnalysisResult_AttachStackInteractionOnce(t *testing.T) {
	var r AnalysisResult
	first := NewStackInteractionResult(nil, nil)

	assert.False(t, r.AttachStackInteraction(nil))
	assert.True(t, r.AttachStackInteraction(first))
	assert.False(t, r.AttachStackInteraction(NewStackInteractionResult(nil, nil)))
	assert.Same(t, first, r.StackInteraction)
}

func TestProduct_Validate(t *testing.T) {
	valid := Product{ID: "1", Name: "Zinc", Ingredients: []Ingredient{{Name: "Zinc", Amount: 15, Unit: "mg"}}}
	assert.NoError(t, valid.Validate())

	blankName := valid
	blankName.Name = "  "
	assert.Error(t, blankName.Validate())

	badIngredient := valid
	badIngredient.Ingredients = []Ingredient{{Name: "Zinc", Bioavailability: "extreme"}}
	assert.Error(t, badIngredient.Validate())

	negative := valid
	negative.Ingredients = []Ingredient{{Name: "Zinc", Amount: -1}}
	assert.Error(t, negative.Validate())
}

func TestStackItem_Validate(t *testing.T) {
	assert.NoError(t, StackItem{ID: "a", Name: "Warfarin", Kind: KindMedication}.Validate())
	assert.Error(t, StackItem{ID: "a", Name: "Warfarin", Kind: "herb"}.Validate())
	assert.Error(t, StackItem{ID: "", Name: "Warfarin", Kind: KindMedication}.Validate())
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "vitamin d3", NormalizeName("  Vitamin   D3 "))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10, cfg.RateLimit.MaxScans)
	assert.Equal(t, 100, cfg.Cache.MaxEntries)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Empty(t, cfg.LLM.Provider)
}
