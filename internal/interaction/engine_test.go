package interaction

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/stackguard/internal/model"
	"github.com/ppiankov/stackguard/internal/worker"
)

func ironProduct() model.Product {
	return model.Product{
		ID:          "iron-1",
		Name:        "Iron Supplement",
		Ingredients: []model.Ingredient{{Name: "Iron", Amount: 18, Unit: "mg"}},
	}
}

func calciumItem() model.StackItem {
	return model.StackItem{
		ID:          "calcium-1",
		Name:        "Calcium Supplement",
		Kind:        model.KindSupplement,
		Ingredients: []model.Ingredient{{Name: "Calcium", Amount: 500, Unit: "mg"}},
	}
}

// recordingChecker counts calls and answers from a function
type recordingChecker struct {
	mu     sync.Mutex
	pairs  []Pair
	answer func(call int, a, b model.StackItem) (*CheckResult, error)
}

func (c *recordingChecker) Check(_ context.Context, a, b model.StackItem, _ string) (*CheckResult, error) {
	c.mu.Lock()
	c.pairs = append(c.pairs, Pair{A: a, B: b})
	call := len(c.pairs)
	c.mu.Unlock()
	if c.answer == nil {
		return &CheckResult{}, nil
	}
	return c.answer(call, a, b)
}

func items(names ...string) []model.StackItem {
	out := make([]model.StackItem, 0, len(names))
	for _, n := range names {
		out = append(out, model.StackItem{ID: "id-" + n, Name: n, Kind: model.KindSupplement})
	}
	return out
}

func TestEngine_IronCalciumScenario(t *testing.T) {
	engine := NewEngine(NewRuleChecker(), Options{})

	result := engine.Analyze(context.Background(), ironProduct(), []model.StackItem{calciumItem()}, "user-1")

	require.NotEmpty(t, result.Interactions)
	found := false
	for _, f := range result.Interactions {
		if f.Severity >= model.SeverityLow &&
			strings.Contains(f.Message, "Iron Supplement") &&
			strings.Contains(f.Message, "Calcium Supplement") {
			found = true
		}
	}
	assert.True(t, found, "expected a finding mentioning both products")
	assert.Equal(t, model.SeverityModerate, result.OverallRiskLevel)
	assert.True(t, result.OverallSafe)
	assert.Equal(t, 1, result.PairsChecked)
	assert.False(t, result.Partial)
}

func TestEngine_SelfMatchExclusion(t *testing.T) {
	checker := &recordingChecker{
		answer: func(_ int, a, b model.StackItem) (*CheckResult, error) {
			return &CheckResult{Interactions: []model.InteractionFinding{{
				Severity: model.SeverityLow,
				ItemA:    a.Name,
				ItemB:    b.Name,
			}}}, nil
		},
	}
	engine := NewEngine(checker, Options{})

	stack := []model.StackItem{
		{ID: "a", Name: "Fish Oil", Kind: model.KindSupplement},
		{ID: "b", Name: "  FISH   oil ", Kind: model.KindSupplement},
		{ID: "c", Name: "Vitamin D3", Kind: model.KindSupplement},
	}
	product := model.Product{ID: "p", Name: "Magnesium Glycinate"}

	result := engine.Analyze(context.Background(), product, stack, "")

	for _, f := range result.Interactions {
		assert.NotEqual(t, model.NormalizeName(f.ItemA), model.NormalizeName(f.ItemB), "self interaction reported")
	}
	// product, fish oil, vitamin d3 -> 3 pairs
	assert.Len(t, checker.pairs, 3)
	assert.Equal(t, 3, result.PairsChecked)
}

func TestEngine_ProductAlreadyInStack(t *testing.T) {
	checker := &recordingChecker{}
	engine := NewEngine(checker, Options{})

	product := model.Product{ID: "iron-1", Name: "Iron Supplement"}
	stack := []model.StackItem{{ID: "iron-1", Name: "Iron (ferrous bisglycinate)", Kind: model.KindSupplement}}

	result := engine.Analyze(context.Background(), product, stack, "")

	assert.Empty(t, checker.pairs)
	assert.Equal(t, model.SeverityNone, result.OverallRiskLevel)
	assert.True(t, result.OverallSafe)
	assert.NotNil(t, result.Interactions)
	assert.NotNil(t, result.NutrientWarnings)
}

func TestEngine_RiskEscalation(t *testing.T) {
	severities := []model.Severity{model.SeverityLow, model.SeverityHigh, model.SeverityModerate}
	checker := &recordingChecker{
		answer: func(call int, a, b model.StackItem) (*CheckResult, error) {
			return &CheckResult{Interactions: []model.InteractionFinding{{
				Severity: severities[call-1],
				ItemA:    a.Name,
				ItemB:    b.Name,
			}}}, nil
		},
	}
	engine := NewEngine(checker, Options{})

	result := engine.Analyze(context.Background(), model.Product{ID: "p", Name: "Product"}, items("one", "two"), "")

	require.Len(t, result.Interactions, 3)
	assert.Equal(t, model.SeverityHigh, result.OverallRiskLevel)
	assert.False(t, result.OverallSafe)
}

func TestEngine_NutrientWarningEscalates(t *testing.T) {
	checker := CheckerFunc(func(_ context.Context, _, _ model.StackItem, _ string) (*CheckResult, error) {
		return &CheckResult{NutrientWarnings: []model.NutrientWarning{{Nutrient: "Zinc", Severity: model.SeverityCritical}}}, nil
	})
	engine := NewEngine(checker, Options{})

	result := engine.Analyze(context.Background(), model.Product{ID: "p", Name: "Product"}, items("zinc"), "")

	assert.Equal(t, model.SeverityCritical, result.OverallRiskLevel)
	assert.False(t, result.OverallSafe)
}

func TestEngine_NutrientLimitWarnedOncePerStack(t *testing.T) {
	engine := NewEngine(NewRuleChecker(), Options{})

	product := model.Product{ID: "d", Name: "Vitamin D 5000", Ingredients: []model.Ingredient{{Name: "Vitamin D3", Amount: 5000, Unit: "IU"}}}
	result := engine.Analyze(context.Background(), product, items("Fish Oil", "Probiotic", "Ashwagandha"), "")

	assert.Equal(t, 6, result.PairsChecked)
	require.Len(t, result.NutrientWarnings, 1)
	assert.Equal(t, []string{"Vitamin D 5000"}, result.NutrientWarnings[0].Sources)
	assert.Equal(t, model.SeverityModerate, result.OverallRiskLevel)
}

func TestEngine_NutrientTotalSpansAllItems(t *testing.T) {
	engine := NewEngine(NewRuleChecker(), Options{})

	iron := func(id string) model.StackItem {
		return model.StackItem{ID: id, Name: "Iron " + id, Kind: model.KindSupplement,
			Ingredients: []model.Ingredient{{Name: "Iron", Amount: 31, Unit: "mg"}}}
	}
	product := model.Product{ID: "p", Name: "Iron Plus", Ingredients: []model.Ingredient{{Name: "Iron", Amount: 31, Unit: "mg"}}}

	result := engine.Analyze(context.Background(), product, []model.StackItem{iron("2"), iron("3")}, "")

	require.Len(t, result.NutrientWarnings, 1)
	assert.InDelta(t, 93, result.NutrientWarnings[0].CurrentTotal, 0.01)
	assert.Equal(t, model.SeverityHigh, result.OverallRiskLevel)
	assert.False(t, result.OverallSafe)
}

func TestEngine_RateLimitStopsScan(t *testing.T) {
	checker := &recordingChecker{
		answer: func(call int, a, b model.StackItem) (*CheckResult, error) {
			if call == 2 {
				return nil, ErrRateLimited
			}
			return &CheckResult{Interactions: []model.InteractionFinding{{Severity: model.SeverityLow, ItemA: a.Name, ItemB: b.Name}}}, nil
		},
	}
	var outcomes []string
	engine := NewEngine(checker, Options{Observer: func(o string) { outcomes = append(outcomes, o) }})

	// 4 items -> 6 pairs
	result := engine.Analyze(context.Background(), model.Product{ID: "p", Name: "Product"}, items("a", "b", "c"), "")

	assert.Len(t, checker.pairs, 2)
	assert.Equal(t, 1, result.PairsChecked)
	assert.Equal(t, 5, result.PairsSkipped)
	assert.True(t, result.Partial)
	assert.Len(t, result.Interactions, 1)
	assert.Equal(t, []string{OutcomeOK, OutcomeRateLimited}, outcomes)
}

func TestEngine_ContinueOnRateLimit(t *testing.T) {
	checker := &recordingChecker{
		answer: func(call int, _, _ model.StackItem) (*CheckResult, error) {
			if call == 2 {
				return nil, ErrRateLimited
			}
			return &CheckResult{}, nil
		},
	}
	engine := NewEngine(checker, Options{ContinueOnRateLimit: true})

	result := engine.Analyze(context.Background(), model.Product{ID: "p", Name: "Product"}, items("a", "b", "c"), "")

	assert.Len(t, checker.pairs, 6)
	assert.Equal(t, 5, result.PairsChecked)
	assert.Equal(t, 1, result.PairsSkipped)
	assert.True(t, result.Partial)
}

func TestEngine_OtherErrorsSkipPair(t *testing.T) {
	checker := &recordingChecker{
		answer: func(call int, _, _ model.StackItem) (*CheckResult, error) {
			if call == 1 {
				return nil, errors.New("boom")
			}
			return &CheckResult{}, nil
		},
	}
	engine := NewEngine(checker, Options{})

	result := engine.Analyze(context.Background(), model.Product{ID: "p", Name: "Product"}, items("a", "b"), "")

	assert.Len(t, checker.pairs, 3)
	assert.Equal(t, 2, result.PairsChecked)
}

func TestEngine_CancelledContext(t *testing.T) {
	checker := &recordingChecker{}
	engine := NewEngine(checker, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := engine.Analyze(ctx, model.Product{ID: "p", Name: "Product"}, items("a", "b"), "")

	assert.Empty(t, checker.pairs)
	assert.True(t, result.Partial)
	assert.Equal(t, 3, result.PairsSkipped)
}

func TestEngine_WithPacer(t *testing.T) {
	checker := &recordingChecker{}
	engine := NewEngine(checker, Options{Pacer: worker.NewLimiter(1000, 10)})

	result := engine.Analyze(context.Background(), model.Product{ID: "p", Name: "Product"}, items("a", "b"), "user-1")

	assert.Equal(t, 3, result.PairsChecked)
	assert.False(t, result.Partial)
}
