package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/stackguard/internal/analysis"
	"github.com/ppiankov/stackguard/internal/model"
	"github.com/ppiankov/stackguard/internal/render"
	"github.com/ppiankov/stackguard/internal/stack"
)

var (
	outJSON     string
	outMD       string
	timeout     time.Duration
	productFile string
	stackFile   string
	noCache     bool
	noFooter    bool
	llmProvider string
	llmModel    string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [barcode]",
	Short: "Analyze a supplement product and check it against your stack",
	Long: `Analyze scores a product and checks it for interactions:
- Look up the product by barcode (catalog file, then Open Food Facts)
- Score ingredients, bioavailability, dosage, purity and value
- Optionally explain the result with an AI provider
- Check the product against every item in your stack, and the stack items
  against each other, for interactions and nutrient upper limits

Without --stack, the stack stored with 'stackguard stack add' is used.

Example:
  stackguard analyze 0850000000000
  stackguard analyze --product magnesium.yaml --stack mystack.yaml
  stackguard analyze 0850000000000 --json report.json --md report.md
  stackguard analyze 0850000000000 --llm-provider openai --llm-model gpt-4o-mini`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Input flags
	analyzeCmd.Flags().StringVar(&productFile, "product", "", "product YAML/JSON file instead of a barcode")
	analyzeCmd.Flags().StringVar(&stackFile, "stack", "", "stack YAML/JSON file (default: stored stack)")

	// Output flags
	analyzeCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	analyzeCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	analyzeCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable disclaimer footer in Markdown reports")

	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall analysis timeout")
	analyzeCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the result cache")

	// LLM flags
	analyzeCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "AI provider (openai, anthropic, ollama, huggingface)")
	analyzeCmd.Flags().StringVar(&llmModel, "llm-model", "", "AI model name")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && productFile == "" {
		return fmt.Errorf("a barcode argument or --product file is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCommonFlags(cfg)

	req := analysis.Request{UserID: userID}
	if len(args) > 0 {
		req.Barcode = args[0]
	}
	if productFile != "" {
		p, err := readProductFile(productFile)
		if err != nil {
			return err
		}
		req.Product = &p
	}

	var stacks stack.Store
	if stackFile != "" {
		items, err := readStackFile(stackFile)
		if err != nil {
			return err
		}
		req.Stack = items
	} else {
		stacks, err = openStackStore(cfg, true)
		if err != nil {
			return err
		}
		if stacks != nil {
			defer func() { _ = stacks.Close() }()
		}
	}

	orch, logger := newOrchestrator(cfg, stacks)
	if name := orch.ProviderName(); name != "" {
		logger.Debug("AI tier enabled", "provider", name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := orch.Analyze(ctx, req)
	if err != nil {
		var rlErr *analysis.RateLimitError
		if errors.As(err, &rlErr) {
			return fmt.Errorf("scan limit reached, try again in %s", rlErr.ResetIn.Round(time.Second))
		}
		if errors.Is(err, analysis.ErrProductNotFound) {
			return fmt.Errorf("product not found: %w", err)
		}
		return fmt.Errorf("analysis failed: %w", err)
	}

	renderer := render.NewRenderer(cmd.OutOrStdout(), !noFooter)
	if outJSON != "" {
		if err := renderer.RenderJSON(result, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", outJSON)
		}
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(result, outMD); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", outMD)
		}
	}
	renderer.RenderSummary(result)

	return nil
}

// applyCommonFlags overlays command flags on the loaded configuration
func applyCommonFlags(cfg *model.Config) {
	if noCache {
		cfg.Cache.Enabled = false
	}
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
		cfg.LLM.APIKey = ""
		applyProviderEnv(&cfg.LLM)
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
}

func readProductFile(path string) (model.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Product{}, fmt.Errorf("read product file: %w", err)
	}
	var p model.Product
	if err := yaml.Unmarshal(data, &p); err != nil {
		return model.Product{}, fmt.Errorf("parse product file: %w", err)
	}
	return p, nil
}

func readStackFile(path string) ([]model.StackItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stack file: %w", err)
	}

	var doc struct {
		Items []model.StackItem `yaml:"items"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse stack file: %w", err)
	}

	items := make([]model.StackItem, 0, len(doc.Items))
	for i, item := range doc.Items {
		if item.ID == "" {
			item.ID = fmt.Sprintf("item-%d", i+1)
		}
		if item.Kind == "" {
			item.Kind = model.KindSupplement
		}
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("stack file item %d: %w", i+1, err)
		}
		items = append(items, item)
	}
	return items, nil
}
