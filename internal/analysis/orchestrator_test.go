package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/stackguard/internal/interaction"
	"github.com/ppiankov/stackguard/internal/llm"
	"github.com/ppiankov/stackguard/internal/lookup"
	"github.com/ppiankov/stackguard/internal/model"
	"github.com/ppiankov/stackguard/internal/resilience"
	"github.com/ppiankov/stackguard/internal/stack"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(context.Context, llm.GenerateRequest) (*llm.GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerateResponse{Text: f.text, Model: "fake"}, nil
}

func (f *fakeProvider) Classify(_ context.Context, _ string, labels []string) (*llm.Classification, error) {
	return &llm.Classification{Labels: labels, Scores: make([]float64, len(labels))}, nil
}

func (f *fakeProvider) IsAvailable(context.Context) bool { return true }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// slowProvider blocks in Generate until released
type slowProvider struct {
	fakeProvider
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newSlowProvider(text string) *slowProvider {
	return &slowProvider{
		fakeProvider: fakeProvider{text: text},
		started:      make(chan struct{}),
		release:      make(chan struct{}),
	}
}

func (s *slowProvider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.fakeProvider.Generate(ctx, req)
}

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.LLM.ClassifyTopN = 0
	cfg.Retry = model.RetryConfig{
		MaxRetries: 0,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
		Multiplier: 2,
	}
	cfg.Interaction.RequestsPerSecond = 0
	return cfg
}

func magnesium(id string) model.Product {
	return model.Product{
		ID:    id,
		Name:  "Magnesium Glycinate " + id,
		Brand: "Thorne",
		Ingredients: []model.Ingredient{
			{Name: "Magnesium", Form: "glycinate", Amount: 200, Unit: "mg"},
		},
	}
}

func ironProduct() model.Product {
	return model.Product{
		ID:          "iron-1",
		Name:        "Iron Bisglycinate",
		Brand:       "Thorne",
		Ingredients: []model.Ingredient{{Name: "Iron", Form: "bisglycinate", Amount: 25, Unit: "mg"}},
	}
}

func calcium() model.StackItem {
	return model.StackItem{
		ID:          "calcium",
		Name:        "Calcium Citrate",
		Kind:        model.KindSupplement,
		Ingredients: []model.Ingredient{{Name: "Calcium", Form: "citrate", Amount: 500, Unit: "mg"}},
	}
}

func newTestOrchestrator(t *testing.T, cfg *model.Config, provider llm.Provider, products ...model.Product) *Orchestrator {
	t.Helper()
	return New(cfg, Dependencies{
		Provider: provider,
		Lookup:   lookup.NewCatalog(products...),
	})
}

func TestAnalyze_RuleBasedWithoutProvider(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), nil, magnesium("0001"))

	result, err := o.Analyze(context.Background(), Request{Barcode: "0001", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, model.TierRuleBased, result.Tier)
	assert.Equal(t, "0001", result.ProductID)
	assert.False(t, result.Cached)
	assert.Nil(t, result.StackInteraction)
	assert.Equal(t, result.CategoryScores.Overall(), result.OverallScore)
	for _, cat := range model.Categories {
		score := result.CategoryScores.Get(cat)
		assert.GreaterOrEqual(t, score, 0, cat)
		assert.LessOrEqual(t, score, 100, cat)
	}
}

func TestAnalyze_AIEnhanced(t *testing.T) {
	provider := &fakeProvider{text: `{"reasoning": "Well formulated.", "good_for": ["Sleep support"], "avoid_if": []}`}
	o := newTestOrchestrator(t, testConfig(), provider, magnesium("0001"))

	result, err := o.Analyze(context.Background(), Request{Barcode: "0001"})
	require.NoError(t, err)

	assert.Equal(t, model.TierAIEnhanced, result.Tier)
	assert.Equal(t, "Well formulated.", result.Reasoning)
	assert.Equal(t, []string{"Sleep support"}, result.Recommendations.GoodFor)
	assert.Equal(t, result.CategoryScores.Overall(), result.OverallScore, "AI never changes scores")
	assert.Equal(t, "fake", o.ProviderName())
}

func TestAnalyze_ProviderFailureFallsBackToRuleBased(t *testing.T) {
	provider := &fakeProvider{err: &resilience.ProviderError{Provider: "fake", StatusCode: 503, Err: errors.New("unavailable")}}
	o := newTestOrchestrator(t, testConfig(), provider, magnesium("0001"))

	result, err := o.Analyze(context.Background(), Request{Barcode: "0001"})
	require.NoError(t, err)
	assert.Equal(t, model.TierRuleBased, result.Tier)
	assert.Equal(t, 1, provider.callCount())
}

func TestAnalyze_CachedResultIsIdempotent(t *testing.T) {
	provider := &fakeProvider{text: `{"reasoning": "Fine.", "good_for": ["Adults"], "avoid_if": []}`}
	o := newTestOrchestrator(t, testConfig(), provider, magnesium("0001"))
	ctx := context.Background()

	first, err := o.Analyze(ctx, Request{Barcode: "0001"})
	require.NoError(t, err)
	second, err := o.Analyze(ctx, Request{Barcode: "0001"})
	require.NoError(t, err)

	assert.Equal(t, 1, provider.callCount(), "second analysis must not reach the provider")
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)

	// Cached is the only field allowed to differ between the two
	second.Cached = false
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(firstJSON), string(secondJSON))

	assert.Equal(t, first.ProductID, second.ProductID)
	assert.Equal(t, first.OverallScore, second.OverallScore)
	assert.Equal(t, first.CategoryScores, second.CategoryScores)
	assert.Equal(t, first.Reasoning, second.Reasoning)
	assert.Equal(t, first.Tier, second.Tier)
	assert.True(t, first.GeneratedAt.Equal(second.GeneratedAt))
}

func TestAnalyze_CacheDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Enabled = false
	provider := &fakeProvider{text: "Plain reasoning."}
	o := newTestOrchestrator(t, cfg, provider, magnesium("0001"))

	for range 2 {
		result, err := o.Analyze(context.Background(), Request{Barcode: "0001"})
		require.NoError(t, err)
		assert.False(t, result.Cached)
	}
	assert.Equal(t, 2, provider.callCount())
	require.NoError(t, o.ClearCache())
}

func TestAnalyze_RateLimited(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), nil, magnesium("0001"))
	ctx := context.Background()

	for i := range 10 {
		_, err := o.Analyze(ctx, Request{Barcode: "0001", UserID: "u1"})
		require.NoError(t, err, "scan %d", i+1)
	}

	result, err := o.Analyze(ctx, Request{Barcode: "0001", UserID: "u1"})
	assert.Nil(t, result)
	require.ErrorIs(t, err, ErrRateLimitExceeded)

	var rlErr *RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, "u1", rlErr.UserID)
	assert.Greater(t, rlErr.ResetIn, time.Duration(0))
	assert.LessOrEqual(t, rlErr.ResetIn, time.Hour)

	status := o.RateLimitStatus("u1")
	assert.False(t, status.Allowed)
	assert.Equal(t, 0, status.Remaining)

	_, err = o.Analyze(ctx, Request{Barcode: "0001", UserID: "u2"})
	assert.NoError(t, err, "other users keep their own window")
}

func TestAnalyze_RateLimitDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = false
	o := newTestOrchestrator(t, cfg, nil, magnesium("0001"))

	for range 15 {
		_, err := o.Analyze(context.Background(), Request{Barcode: "0001", UserID: "u1"})
		require.NoError(t, err)
	}
	assert.True(t, o.RateLimitStatus("u1").Allowed)
}

func TestAnalyze_ProductNotFound(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), nil)

	result, err := o.Analyze(context.Background(), Request{Barcode: "9999"})
	require.ErrorIs(t, err, ErrProductNotFound)
	require.ErrorIs(t, err, lookup.ErrNotFound)

	require.NotNil(t, result)
	assert.Equal(t, "9999", result.ProductID)
	assert.Equal(t, "Product Not Found", result.ProductName)
	assert.Equal(t, 0, result.OverallScore)
	assert.Equal(t, model.TierBasic, result.Tier)
}

func TestAnalyze_EmptyRequest(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), nil)

	_, err := o.Analyze(context.Background(), Request{Barcode: "   "})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestAnalyze_ExplicitProductGetsSyntheticID(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), nil)
	p := magnesium("")

	first, err := o.Analyze(context.Background(), Request{Product: &p})
	require.NoError(t, err)
	second, err := o.Analyze(context.Background(), Request{Product: &p})
	require.NoError(t, err)

	assert.Contains(t, first.ProductID, "synthetic-")
	assert.Equal(t, first.ProductID, second.ProductID)
	assert.True(t, second.Cached)
	assert.Empty(t, p.ID, "caller's product is not modified")
}

func TestAnalyze_InvalidProductUsesBasicTier(t *testing.T) {
	provider := &fakeProvider{text: "unused"}
	o := newTestOrchestrator(t, testConfig(), provider)
	p := model.Product{ID: "bad", Name: "Broken", Ingredients: []model.Ingredient{{Name: " "}}}

	result, err := o.Analyze(context.Background(), Request{Product: &p})
	require.NoError(t, err)

	assert.Equal(t, model.TierBasic, result.Tier)
	assert.Equal(t, 65, result.OverallScore)
	assert.Equal(t, 0, provider.callCount())
}

func TestAnalyze_StackInteraction(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), nil, ironProduct())
	ctx := context.Background()

	result, err := o.Analyze(ctx, Request{Barcode: "iron-1", Stack: []model.StackItem{calcium()}})
	require.NoError(t, err)
	require.NotNil(t, result.StackInteraction)
	assert.Equal(t, model.SeverityModerate, result.StackInteraction.OverallRiskLevel)
	assert.Equal(t, 1, result.StackInteraction.PairsChecked)
	assert.True(t, result.StackInteraction.OverallSafe)

	// A cache hit must reflect the stack passed now, not the earlier one
	again, err := o.Analyze(ctx, Request{Barcode: "iron-1", Stack: []model.StackItem{}})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Nil(t, again.StackInteraction)
}

func TestAnalyze_LoadsStoredStack(t *testing.T) {
	store := stack.NewMemoryStore()
	_, err := store.Add(context.Background(), "u1", calcium())
	require.NoError(t, err)

	o := New(testConfig(), Dependencies{
		Lookup: lookup.NewCatalog(ironProduct()),
		Stacks: store,
	})

	result, err := o.AnalyzeBarcode(context.Background(), "iron-1", "u1")
	require.NoError(t, err)
	require.NotNil(t, result.StackInteraction)
	assert.Len(t, result.StackInteraction.Interactions, 1)

	other, err := o.AnalyzeBarcode(context.Background(), "iron-1", "u2")
	require.NoError(t, err)
	assert.Nil(t, other.StackInteraction, "u2 has no stack")
}

func TestAnalyze_CheckerErrorsDoNotFailAnalysis(t *testing.T) {
	checker := interaction.CheckerFunc(func(context.Context, model.StackItem, model.StackItem, string) (*interaction.CheckResult, error) {
		return nil, errors.New("checker down")
	})
	o := New(testConfig(), Dependencies{
		Lookup:  lookup.NewCatalog(ironProduct()),
		Checker: checker,
	})

	result, err := o.Analyze(context.Background(), Request{Barcode: "iron-1", Stack: []model.StackItem{calcium()}})
	require.NoError(t, err)
	require.NotNil(t, result.StackInteraction)
	assert.Equal(t, 0, result.StackInteraction.PairsChecked)
	assert.True(t, result.StackInteraction.Partial)
}

func TestAnalyze_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = false
	provider := &fakeProvider{err: &resilience.ProviderError{Provider: "fake", StatusCode: 500, Err: errors.New("boom")}}

	var products []model.Product
	for i := range 7 {
		products = append(products, magnesium(fmt.Sprintf("%04d", i)))
	}
	o := newTestOrchestrator(t, cfg, provider, products...)
	ctx := context.Background()

	for i := range 5 {
		result, err := o.Analyze(ctx, Request{Barcode: products[i].ID})
		require.NoError(t, err)
		assert.Equal(t, model.TierRuleBased, result.Tier)
	}
	assert.Equal(t, resilience.CircuitOpen, o.CircuitBreakerStatus().State)
	assert.Equal(t, 5, provider.callCount())

	result, err := o.Analyze(ctx, Request{Barcode: products[5].ID})
	require.NoError(t, err)
	assert.Equal(t, model.TierRuleBased, result.Tier)
	assert.Equal(t, 5, provider.callCount(), "open circuit skips the provider")
}

func TestAnalyze_ConcurrentCallsShareOneComputation(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = false
	provider := &fakeProvider{text: "Shared."}
	o := newTestOrchestrator(t, cfg, provider, magnesium("0001"))

	var wg sync.WaitGroup
	var failures atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := o.Analyze(context.Background(), Request{Barcode: "0001"})
			if err != nil || result.Reasoning != "Shared." {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.LessOrEqual(t, provider.callCount(), 8)
	assert.GreaterOrEqual(t, provider.callCount(), 1)
}

func TestAnalyze_CancelledCallerDoesNotDegradeSharedResult(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = false
	provider := newSlowProvider(`{"reasoning": "Worth the wait."}`)
	o := newTestOrchestrator(t, cfg, provider, magnesium("0001"))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()

	type outcome struct {
		result *model.AnalysisResult
		err    error
	}
	first := make(chan outcome, 1)
	go func() {
		r, err := o.Analyze(firstCtx, Request{Barcode: "0001", UserID: "impatient"})
		first <- outcome{r, err}
	}()

	select {
	case <-provider.started:
	case <-time.After(2 * time.Second):
		t.Fatal("provider was never called")
	}

	second := make(chan outcome, 1)
	go func() {
		r, err := o.Analyze(context.Background(), Request{Barcode: "0001", UserID: "patient"})
		second <- outcome{r, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case got := <-first:
		require.NoError(t, got.err)
		assert.Equal(t, model.TierRuleBased, got.result.Tier, "cancelled caller gets the local tiers")
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller kept waiting on the shared analysis")
	}

	close(provider.release)
	select {
	case got := <-second:
		require.NoError(t, got.err)
		assert.Equal(t, model.TierAIEnhanced, got.result.Tier)
		assert.Equal(t, "Worth the wait.", got.result.Reasoning)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never got a result")
	}
	assert.Equal(t, 1, provider.callCount())

	cached, err := o.Analyze(context.Background(), Request{Barcode: "0001"})
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, model.TierAIEnhanced, cached.Tier)
}

func TestAnalyze_MetricsRecorded(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), nil, magnesium("0001"))
	ctx := context.Background()

	_, err := o.Analyze(ctx, Request{Barcode: "0001"})
	require.NoError(t, err)
	_, err = o.Analyze(ctx, Request{Barcode: "0001"})
	require.NoError(t, err)

	families, err := o.Metrics().Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["stackguard_analyses_total"])
	assert.True(t, names["stackguard_cache_requests_total"])
}
