package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/stackguard/internal/resilience"
	"github.com/ppiankov/stackguard/internal/util"
)

const (
	huggingFaceDefaultModel         = "mistralai/Mistral-7B-Instruct-v0.3"
	huggingFaceDefaultClassifyModel = "facebook/bart-large-mnli"
)

// HuggingFaceProvider implements the Provider interface for the Hugging Face
// Inference API. Classification uses a native zero-shot model.
type HuggingFaceProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     Config
	logger     *slog.Logger
}

type hfGenerateRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters hfGenerateParams   `json:"parameters"`
	Options    hfInferenceOptions `json:"options"`
}

type hfGenerateParams struct {
	MaxNewTokens   int     `json:"max_new_tokens,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfInferenceOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type hfGenerateResponse []struct {
	GeneratedText string `json:"generated_text"`
}

type hfClassifyRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters hfClassifyParams   `json:"parameters"`
	Options    hfInferenceOptions `json:"options"`
}

type hfClassifyParams struct {
	CandidateLabels []string `json:"candidate_labels"`
}

type hfClassifyResponse struct {
	Sequence string    `json:"sequence"`
	Labels   []string  `json:"labels"`
	Scores   []float64 `json:"scores"`
}

// NewHuggingFaceProvider creates a new Hugging Face provider
func NewHuggingFaceProvider(config Config) (*HuggingFaceProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Hugging Face API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api-inference.huggingface.co"
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HuggingFaceProvider{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: util.NewHTTPClient(timeout, config.HTTPProxy, config.HTTPSProxy),
		config:     config,
		logger:     config.logger(),
	}, nil
}

// Name returns the provider name
func (p *HuggingFaceProvider) Name() string {
	return "huggingface"
}

// IsAvailable checks the classification model answers
func (p *HuggingFaceProvider) IsAvailable(ctx context.Context) bool {
	if _, err := p.Classify(ctx, "vitamin c", []string{"safe", "unsafe"}); err != nil {
		p.logger.Warn("Hugging Face API check failed", "error", err)
		return false
	}
	return true
}

// Generate produces text with a hosted text-generation model
func (p *HuggingFaceProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	if model == "" {
		model = huggingFaceDefaultModel
	}

	system := req.System
	if system == "" {
		system = SystemPrompt
	}

	var resp hfGenerateResponse
	err := p.post(ctx, model, hfGenerateRequest{
		Inputs: system + "\n\n" + req.Prompt,
		Parameters: hfGenerateParams{
			MaxNewTokens: p.config.maxTokens(req.MaxTokens),
			Temperature:  0.2,
		},
		Options: hfInferenceOptions{WaitForModel: true},
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp) == 0 || strings.TrimSpace(resp[0].GeneratedText) == "" {
		return nil, &resilience.ProviderError{Provider: p.Name(), StatusCode: http.StatusOK, Err: ErrNoResponse}
	}

	text := strings.TrimSpace(resp[0].GeneratedText)
	return &GenerateResponse{
		Text:       text,
		Model:      model,
		TokensUsed: (len(req.Prompt) + len(text)) / 4,
	}, nil
}

// Classify runs zero-shot classification natively
func (p *HuggingFaceProvider) Classify(ctx context.Context, text string, labels []string) (*Classification, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("no candidate labels")
	}

	model := p.config.ClassifyModel
	if model == "" {
		model = huggingFaceDefaultClassifyModel
	}

	var resp hfClassifyResponse
	err := p.post(ctx, model, hfClassifyRequest{
		Inputs:     text,
		Parameters: hfClassifyParams{CandidateLabels: labels},
		Options:    hfInferenceOptions{WaitForModel: true},
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Labels) == 0 || len(resp.Labels) != len(resp.Scores) {
		return nil, &resilience.ProviderError{
			Provider:   p.Name(),
			StatusCode: http.StatusOK,
			Err:        fmt.Errorf("%w: %d labels, %d scores", ErrMalformedResponse, len(resp.Labels), len(resp.Scores)),
		}
	}

	c := &Classification{Labels: resp.Labels, Scores: resp.Scores}
	sortClassification(c)
	return c, nil
}

func (p *HuggingFaceProvider) post(ctx context.Context, model string, body, out any) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.apiKey)

	return util.DoJSON(ctx, p.httpClient, util.JSONRequest{
		Provider: p.Name(),
		URL:      fmt.Sprintf("%s/models/%s", p.baseURL, model),
		Header:   header,
		Body:     body,
	}, out)
}
