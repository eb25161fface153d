package llm

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ppiankov/stackguard/internal/model"
)

var tracer = otel.Tracer("stackguard.llm")

// Enhancer asks a provider to explain a rule-based analysis and to classify
// the safety of the leading ingredients. It never retries and never hides
// an error; callers decide the fallback.
type Enhancer struct {
	provider     Provider
	classifyTopN int
	logger       *slog.Logger
}

// NewEnhancer creates an enhancer. classifyTopN bounds the number of
// ingredient classification calls per analysis (0 disables them).
func NewEnhancer(provider Provider, classifyTopN int, logger *slog.Logger) *Enhancer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if classifyTopN < 0 {
		classifyTopN = 0
	}
	return &Enhancer{
		provider:     provider,
		classifyTopN: classifyTopN,
		logger:       logger,
	}
}

// ProviderName returns the wrapped provider's name
func (e *Enhancer) ProviderName() string {
	return e.provider.Name()
}

// Enhance produces reasoning, recommendations and safety labels for a
// product whose rule-based analysis is base.
func (e *Enhancer) Enhance(ctx context.Context, p model.Product, base *model.AnalysisResult) (*Enhancement, error) {
	ctx, span := tracer.Start(ctx, "llm.Enhance")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", e.provider.Name()),
		attribute.String("product.id", p.ID),
	)

	resp, err := e.provider.Generate(ctx, GenerateRequest{Prompt: BuildAnalysisPrompt(p, base)})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("generate reasoning: %w", err)
	}

	enhancement, err := ParseEnhancement(resp.Text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("parse reasoning: %w", err)
	}

	for i, ing := range p.Ingredients {
		if i >= e.classifyTopN {
			break
		}
		text := ing.Name
		if ing.Form != "" {
			text = fmt.Sprintf("%s (%s)", ing.Name, ing.Form)
		}

		c, err := e.provider.Classify(ctx, text, SafetyLabels)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("classify %s: %w", ing.Name, err)
		}
		if label, score, ok := c.Top(); ok {
			enhancement.Safety = append(enhancement.Safety, model.SafetyLabel{
				Ingredient: ing.Name,
				Label:      label,
				Score:      score,
			})
		}
	}

	span.SetAttributes(
		attribute.Int("llm.tokens", resp.TokensUsed),
		attribute.Int("llm.safety_labels", len(enhancement.Safety)),
	)
	e.logger.Debug("enhancement complete",
		"provider", e.provider.Name(),
		"product_id", p.ID,
		"tokens", resp.TokensUsed,
		"safety_labels", len(enhancement.Safety))

	return enhancement, nil
}
