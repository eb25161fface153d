package interaction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ppiankov/stackguard/internal/model"
	"github.com/ppiankov/stackguard/internal/worker"
)

var tracer = otel.Tracer("stackguard.interaction")

// Pairwise check outcomes reported to the observer
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
)

const anonymousKey = "anonymous"

// Options configures an Engine
type Options struct {
	// CallTimeout bounds each pairwise call; zero means 10s
	CallTimeout time.Duration

	// ContinueOnRateLimit skips a rate-limited pair instead of stopping the scan
	ContinueOnRateLimit bool

	// Pacer spaces out calls per user; nil disables pacing
	Pacer *worker.Limiter

	Observer func(outcome string)
	Logger   *slog.Logger
}

// Engine computes stack-wide interaction risk from pairwise checks
type Engine struct {
	checker             Checker
	pacer               *worker.Limiter
	callTimeout         time.Duration
	continueOnRateLimit bool
	observer            func(outcome string)
	logger              *slog.Logger
}

// NewEngine creates an engine backed by checker
func NewEngine(checker Checker, opts Options) *Engine {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Observer == nil {
		opts.Observer = func(string) {}
	}
	return &Engine{
		checker:             checker,
		pacer:               opts.Pacer,
		callTimeout:         opts.CallTimeout,
		continueOnRateLimit: opts.ContinueOnRateLimit,
		observer:            opts.Observer,
		logger:              opts.Logger,
	}
}

// Analyze checks the product against every item of the stack, and the stack
// items against each other. Nutrient upper limits are totalled once over the
// whole deduplicated stack. It never fails: pairwise errors are logged and
// the pair is skipped. A rate-limit signal stops the scan (unless configured
// to continue) and the result is marked partial.
func (e *Engine) Analyze(ctx context.Context, product model.Product, stack []model.StackItem, userID string) *model.StackInteractionResult {
	ctx, span := tracer.Start(ctx, "interaction.Analyze")
	defer span.End()

	items := make([]model.StackItem, 0, len(stack)+1)
	items = append(items, product.AsStackItem())
	items = append(items, stack...)
	items = Dedupe(items)

	total := PairCount(len(items))
	span.SetAttributes(
		attribute.String("product.id", product.ID),
		attribute.Int("stack.items", len(items)),
		attribute.Int("pairs.total", total),
	)

	key := userID
	if key == "" {
		key = anonymousKey
	}

	var (
		findings []model.InteractionFinding
		warnings []model.NutrientWarning
		checked  int
	)

	for _, pair := range UniquePairs(items) {
		if ctx.Err() != nil {
			e.logger.Warn("interaction scan cancelled", "user_id", userID, "checked", checked, "total", total)
			break
		}

		if e.pacer != nil {
			if err := e.pacer.Wait(ctx, key); err != nil {
				e.logger.Warn("interaction pacing interrupted", "user_id", userID, "error", err)
				break
			}
		}

		res, err := e.check(ctx, pair, userID)
		if errors.Is(err, ErrRateLimited) {
			e.observer(OutcomeRateLimited)
			if e.continueOnRateLimit {
				e.logger.Warn("pairwise check rate limited, skipping pair",
					"item_a", pair.A.Name, "item_b", pair.B.Name, "user_id", userID)
				continue
			}
			e.logger.Warn("pairwise check rate limited, stopping scan",
				"user_id", userID, "checked", checked, "remaining", total-checked)
			break
		}
		if err != nil {
			e.observer(OutcomeError)
			e.logger.Warn("pairwise check failed",
				"item_a", pair.A.Name, "item_b", pair.B.Name, "user_id", userID, "error", err)
			continue
		}

		e.observer(OutcomeOK)
		checked++
		findings = append(findings, res.Interactions...)
		warnings = append(warnings, res.NutrientWarnings...)
	}

	warnings = mergeNutrientWarnings(StackNutrientWarnings(items), warnings)

	result := model.NewStackInteractionResult(findings, warnings)
	result.PairsChecked = checked
	result.PairsSkipped = total - checked
	result.Partial = result.PairsSkipped > 0

	span.SetAttributes(
		attribute.Int("pairs.checked", checked),
		attribute.String("risk.level", result.OverallRiskLevel.String()),
	)
	e.logger.Debug("interaction scan complete",
		"product_id", product.ID,
		"pairs_checked", checked,
		"pairs_total", total,
		"risk_level", result.OverallRiskLevel.String())

	return result
}

func (e *Engine) check(ctx context.Context, pair Pair, userID string) (*CheckResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	res, err := e.checker.Check(callCtx, pair.A, pair.B, userID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &CheckResult{}, nil
	}
	return res, nil
}
