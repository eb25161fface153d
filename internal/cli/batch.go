package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stackguard/internal/model"
	"github.com/ppiankov/stackguard/internal/render"
	"github.com/ppiankov/stackguard/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	// noCache, noFooter, llmProvider and llmModel are shared with analyze.go
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Analyze multiple barcodes from a file in parallel",
	Long: `Batch analyzes many products concurrently:
- Read barcodes from input file (one per line, # for comments)
- Analyze them in parallel with a configurable worker count
- Check each one against the user's stored stack
- Write a JSON and a Markdown report per product

Rate limiting applies per user across the whole batch.

Example:
  stackguard batch barcodes.txt
  stackguard batch barcodes.txt --concurrency 8 --output-dir ./reports
  stackguard batch barcodes.txt --user alice --timeout 5m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./stackguard-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the result cache")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable disclaimer footer in Markdown reports")

	batchCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "AI provider (openai, anthropic, ollama, huggingface)")
	batchCmd.Flags().StringVar(&llmModel, "llm-model", "", "AI model name")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCommonFlags(cfg)
	if concurrency > 0 {
		cfg.Concurrency.Workers = concurrency
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Stackguard Batch Analysis\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(os.Stderr, "  AI provider:  %s\n", cfg.LLM.Provider)
	}
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	stacks, err := openStackStore(cfg, true)
	if err != nil {
		return err
	}
	if stacks != nil {
		defer func() { _ = stacks.Close() }()
	}

	orch, logger := newOrchestrator(cfg, stacks)
	processor := worker.NewBatchProcessor(orch, cfg.Concurrency.Workers, logger)

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	results, err := processor.ProcessFile(ctx, file, userID)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := render.NewRenderer(cmd.OutOrStdout(), !noFooter)
	written := 0
	for _, result := range results {
		if result.Error != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Barcode, result.Error)
			continue
		}

		slug := sanitizeFilename(result.Barcode)
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := renderer.RenderJSON(result.Result, jsonPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Barcode, err)
			continue
		}
		if err := renderer.RenderMarkdown(result.Result, mdPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Barcode, err)
			continue
		}
		written++

		line := fmt.Sprintf("✓ %s %s (score: %d/100, %s)", result.Barcode, result.Result.ProductName, result.Result.OverallScore, result.Result.Tier)
		if si := result.Result.StackInteraction; si != nil && !si.OverallSafe {
			line += fmt.Sprintf(" ⚠️ stack risk %s", si.OverallRiskLevel)
		}
		fmt.Fprintln(os.Stderr, line)
	}

	summary := worker.Summarize(results)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d products\n", summary.Total)
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", summary.Succeeded)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", summary.Failed)
	fmt.Fprintf(os.Stderr, "  Cached:    %d\n", summary.Cached)
	for _, tier := range []model.Tier{model.TierAIEnhanced, model.TierRuleBased, model.TierBasic} {
		if n := summary.ByTier[tier]; n > 0 {
			fmt.Fprintf(os.Stderr, "  %-10s %d\n", string(tier)+":", n)
		}
	}
	fmt.Fprintf(os.Stderr, "  Reports:   %d in %s\n", written, outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// sanitizeFilename makes a barcode safe to use as a file name
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(strings.TrimSpace(s))
	if s == "" || s == "." || s == ".." {
		s = "product"
	}
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
