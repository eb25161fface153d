// Package analysis composes rate limiting, caching, rule-based scoring, AI
// enhancement and interaction checking into the analysis pipeline.
//
// Tiers are tried in order, each cheaper and more reliable than the last:
//
//  1. AI-enhanced: rule-based result merged with provider output, run through
//     the circuit breaker and the retry scheduler
//  2. Rule-based: the scorer alone
//  3. Basic: a flat conservative result that cannot fail
//
// Only ErrRateLimitExceeded and ErrProductNotFound ever reach the caller.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/stackguard/internal/cache"
	"github.com/ppiankov/stackguard/internal/interaction"
	"github.com/ppiankov/stackguard/internal/llm"
	"github.com/ppiankov/stackguard/internal/lookup"
	"github.com/ppiankov/stackguard/internal/metrics"
	"github.com/ppiankov/stackguard/internal/model"
	"github.com/ppiankov/stackguard/internal/ratelimit"
	"github.com/ppiankov/stackguard/internal/resilience"
	"github.com/ppiankov/stackguard/internal/score"
	"github.com/ppiankov/stackguard/internal/stack"
)

var tracer = otel.Tracer("stackguard.analysis")

// Request asks for one analysis. Exactly one of Barcode or Product is used;
// Product wins when both are set. A nil Stack is loaded from the stack
// store when one is configured; an empty non-nil Stack skips interaction
// checking.
type Request struct {
	Barcode string
	Product *model.Product
	Stack   []model.StackItem
	UserID  string
}

// Orchestrator runs the analysis pipeline. One orchestrator owns one rate
// limiter, one result cache and one circuit breaker shared by every request.
//
// Thread Safety: Safe for concurrent use.
type Orchestrator struct {
	rateLimitEnabled bool
	limiter          *ratelimit.Limiter
	results          *cache.ResultCache // nil when caching is disabled
	breaker          *resilience.CircuitBreaker
	retry            resilience.RetryOptions
	lookupRetry      resilience.RetryOptions
	scorer           *score.Scorer
	enhancer         *llm.Enhancer // nil disables tier 1
	interactions     *interaction.Engine
	lookup           lookup.Lookup
	stacks           stack.Store
	metrics          *metrics.Metrics
	flight           singleflight.Group
	logger           *slog.Logger
	now              func() time.Time
}

// Analyze runs the pipeline: rate-limit gate, cache lookup, tiers on a miss,
// then the interaction scan against the current stack.
//
// Errors:
//   - *RateLimitError (ErrRateLimitExceeded) when the user is over quota;
//     the result is nil.
//   - ErrProductNotFound when the barcode is unknown; the result is a
//     placeholder.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) (*model.AnalysisResult, error) {
	userID := strings.TrimSpace(req.UserID)
	ctx, span := tracer.Start(ctx, "analysis.Analyze",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if o.rateLimitEnabled && !o.limiter.IsAllowed(userID) {
		o.metrics.RecordRateLimited()
		err := &RateLimitError{UserID: userKey(userID), ResetIn: o.limiter.TimeUntilReset(userID)}
		span.SetStatus(codes.Error, err.Error())
		o.logger.Info("analysis rejected by rate limiter", "user_id", userID, "reset_in", err.ResetIn)
		return nil, err
	}

	product, err := o.resolveProduct(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return notFoundResult(strings.TrimSpace(req.Barcode), o.now().UTC()), err
	}
	span.SetAttributes(attribute.String("product.id", product.ID))

	key := cache.ProductKey(product)
	result, cached := o.cached(key)
	if !cached {
		result = o.compute(ctx, key, product)
	}
	span.SetAttributes(
		attribute.String("analysis.tier", string(result.Tier)),
		attribute.Bool("analysis.cached", cached),
	)

	stackItems := o.currentStack(ctx, req, userID)
	if len(stackItems) > 0 {
		result.AttachStackInteraction(o.interactions.Analyze(ctx, product, stackItems, userID))
	}

	return result, nil
}

// AnalyzeBarcode analyzes a barcode against the user's stored stack
func (o *Orchestrator) AnalyzeBarcode(ctx context.Context, barcode, userID string) (*model.AnalysisResult, error) {
	return o.Analyze(ctx, Request{Barcode: barcode, UserID: userID})
}

// RateLimitStatus reports the user's standing without consuming a scan
func (o *Orchestrator) RateLimitStatus(userID string) ratelimit.Status {
	if !o.rateLimitEnabled {
		return ratelimit.Status{Allowed: true, Remaining: -1}
	}
	return o.limiter.Status(userID)
}

// CircuitBreakerStatus reports the inference breaker's state
func (o *Orchestrator) CircuitBreakerStatus() resilience.BreakerStatus {
	return o.breaker.Status()
}

// Metrics returns the orchestrator's collectors
func (o *Orchestrator) Metrics() *metrics.Metrics {
	return o.metrics
}

// ProviderName names the inference provider, or "" when tier 1 is disabled
func (o *Orchestrator) ProviderName() string {
	if o.enhancer == nil {
		return ""
	}
	return o.enhancer.ProviderName()
}

// ClearCache drops every cached analysis
func (o *Orchestrator) ClearCache() error {
	if o.results == nil {
		return nil
	}
	return o.results.Clear()
}

func (o *Orchestrator) resolveProduct(ctx context.Context, req Request) (model.Product, error) {
	if req.Product != nil {
		p := *req.Product
		if strings.TrimSpace(p.ID) == "" {
			p.ID = syntheticID(p)
		}
		return p, nil
	}

	barcode := strings.TrimSpace(req.Barcode)
	if barcode == "" {
		return model.Product{}, fmt.Errorf("%w: no barcode or product given", ErrProductNotFound)
	}
	if o.lookup == nil {
		return model.Product{}, fmt.Errorf("%w: %s: no lookup configured", ErrProductNotFound, barcode)
	}

	res, err := resilience.Retry(ctx, o.lookupRetry, func(ctx context.Context, _ int) (model.Product, error) {
		return o.lookup.Lookup(ctx, barcode)
	})
	if err != nil {
		if !errors.Is(err, lookup.ErrNotFound) {
			o.logger.Warn("product lookup failed", "barcode", barcode, "attempts", res.Attempts, "error", err)
		}
		return model.Product{}, fmt.Errorf("%w: %s: %w", ErrProductNotFound, barcode, err)
	}
	return res.Value, nil
}

// cached returns an independent copy of a cached result
func (o *Orchestrator) cached(key string) (*model.AnalysisResult, bool) {
	if o.results == nil {
		return nil, false
	}

	result, ok := o.results.Get(key)
	o.metrics.RecordCache(ok)
	if !ok {
		return nil, false
	}

	// Interaction risk depends on the current stack, never on the cache
	result.StackInteraction = nil
	result.Cached = true
	return result, true
}

// compute runs the tiers once per key across concurrent callers and caches
// the outcome. Each caller receives its own copy.
//
// The shared run is detached from the caller that started it, so a caller
// that gives up never degrades the result for the others waiting on key.
// Retry attempt timeouts still bound it. A caller whose context ends first
// gets the local tiers instead of waiting.
func (o *Orchestrator) compute(ctx context.Context, key string, product model.Product) *model.AnalysisResult {
	shared := context.WithoutCancel(ctx)
	ch := o.flight.DoChan(key, func() (any, error) {
		result := o.runTiers(shared, product)
		o.metrics.RecordAnalysis(string(result.Tier))

		if o.results != nil {
			if err := o.results.Set(key, result); err != nil {
				o.logger.Warn("failed to cache analysis", "product_id", product.ID, "error", err)
			}
		}
		return result, nil
	})

	select {
	case res := <-ch:
		return clone(res.Val.(*model.AnalysisResult))
	case <-ctx.Done():
		o.logger.Info("caller gave up waiting for analysis, using local tiers",
			"product_id", product.ID, "error", ctx.Err())
		return o.localTiers(product, o.now().UTC())
	}
}

// localTiers runs tiers 2 and 3 only
func (o *Orchestrator) localTiers(product model.Product, now time.Time) *model.AnalysisResult {
	base, err := o.ruleBased(product, now)
	if err != nil {
		o.logger.Warn("rule-based analysis failed, using basic tier", "product_id", product.ID, "error", err)
		return basicResult(product, now)
	}
	return base
}

func (o *Orchestrator) runTiers(ctx context.Context, product model.Product) *model.AnalysisResult {
	base := o.localTiers(product, o.now().UTC())
	if o.enhancer == nil || base.Tier != model.TierRuleBased {
		return base
	}

	result, err := resilience.Execute(ctx, o.breaker,
		func(ctx context.Context) (*model.AnalysisResult, error) {
			return o.enhance(ctx, product, base)
		},
		func(context.Context) (*model.AnalysisResult, error) {
			return base, nil
		},
	)
	if err != nil || result == nil {
		return base
	}
	if result.Tier != model.TierAIEnhanced {
		o.logger.Info("using rule-based tier", "product_id", product.ID, "breaker", o.breaker.State().String())
	}
	return result
}

// ruleBased is tier 2. A panic in scoring is reported as an error so the
// basic tier can take over.
func (o *Orchestrator) ruleBased(product model.Product, now time.Time) (result *model.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("scorer panic: %v", r)
		}
	}()
	return o.scorer.Analyze(product, now)
}

// enhance is tier 1: the provider call under retry, merged over base
func (o *Orchestrator) enhance(ctx context.Context, product model.Product, base *model.AnalysisResult) (*model.AnalysisResult, error) {
	ctx, span := tracer.Start(ctx, "analysis.tier1")
	defer span.End()

	start := time.Now()
	res, err := resilience.Retry(ctx, o.retry, func(ctx context.Context, attempt int) (*llm.Enhancement, error) {
		return o.enhancer.Enhance(ctx, product, base)
	})
	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int("retry.attempts", res.Attempts))

	if err != nil {
		o.metrics.ObserveProviderCall("error", elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	o.metrics.ObserveProviderCall("success", elapsed)
	return merge(base, res.Value), nil
}

func (o *Orchestrator) currentStack(ctx context.Context, req Request, userID string) []model.StackItem {
	if req.Stack != nil || o.stacks == nil {
		return req.Stack
	}

	items, err := o.stacks.CurrentStack(ctx, userID)
	if err != nil {
		o.logger.Warn("failed to load stack, skipping interaction check", "user_id", userID, "error", err)
		return nil
	}
	return items
}

func userKey(userID string) string {
	if userID == "" {
		return ratelimit.Anonymous
	}
	return userID
}
