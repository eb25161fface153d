// Package llm adapts external inference providers into the two calls the
// analysis needs: free-text generation and zero-shot label classification.
package llm

import (
	"context"
	"errors"
	"log/slog"
)

var (
	// ErrNoResponse is returned when a provider answers with no usable content.
	ErrNoResponse = errors.New("empty response from provider")

	// ErrMalformedResponse is returned when a provider's answer cannot be parsed.
	ErrMalformedResponse = errors.New("malformed response from provider")
)

// Provider defines the interface for inference providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate produces free text for a prompt
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// Classify scores text against candidate labels. The returned labels are
	// ordered by descending score.
	Classify(ctx context.Context, text string, labels []string) (*Classification, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// GenerateRequest contains the input for text generation
type GenerateRequest struct {
	// Prompt is the user message
	Prompt string

	// System overrides the default system prompt
	System string

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// GenerateResponse contains the provider's output
type GenerateResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Classification is the result of a zero-shot classification call
type Classification struct {
	Labels []string
	Scores []float64
}

// Top returns the highest-scoring label
func (c *Classification) Top() (string, float64, bool) {
	if c == nil || len(c.Labels) == 0 || len(c.Scores) == 0 {
		return "", 0, false
	}
	return c.Labels[0], c.Scores[0], true
}

// Config holds inference provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "huggingface", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// ClassifyModel is used for Classify when the provider has a dedicated
	// classification endpoint (huggingface)
	ClassifyModel string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30,
		MaxTokens: 400,
	}
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

func (c Config) maxTokens(override int) int {
	if override > 0 {
		return override
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 400
}
