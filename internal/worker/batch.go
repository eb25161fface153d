package worker

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ppiankov/stackguard/internal/model"
)

// Analyzer analyzes a product by barcode on behalf of a user
type Analyzer interface {
	AnalyzeBarcode(ctx context.Context, barcode, userID string) (*model.AnalysisResult, error)
}

// AnalyzeJob analyzes one barcode
type AnalyzeJob struct {
	Index    int
	Barcode  string
	UserID   string
	Analyzer Analyzer
}

// Execute executes the analysis job
func (j *AnalyzeJob) Execute(ctx context.Context) Result {
	result, err := j.Analyzer.AnalyzeBarcode(ctx, j.Barcode, j.UserID)
	return &BatchResult{
		Index:   j.Index,
		Barcode: j.Barcode,
		Result:  result,
		Error:   err,
	}
}

// BatchResult represents the result of an analysis job
type BatchResult struct {
	Index   int
	Barcode string
	Result  *model.AnalysisResult
	Error   error
}

// GetError returns the error from the batch result
func (r *BatchResult) GetError() error {
	return r.Error
}

// BatchSummary counts batch outcomes
type BatchSummary struct {
	Total     int
	Succeeded int
	Failed    int
	ByTier    map[model.Tier]int
	Cached    int
}

// Summarize tallies results
func Summarize(results []*BatchResult) BatchSummary {
	s := BatchSummary{Total: len(results), ByTier: make(map[model.Tier]int)}
	for _, r := range results {
		if r.Error != nil || r.Result == nil {
			s.Failed++
			continue
		}
		s.Succeeded++
		s.ByTier[r.Result.Tier]++
		if r.Result.Cached {
			s.Cached++
		}
	}
	return s
}

// BatchProcessor analyzes multiple barcodes concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
	logger      *slog.Logger
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ProcessBarcodes analyzes barcodes concurrently and returns one result per
// barcode in input order. Barcodes never started because ctx ended carry
// the context error.
func (b *BatchProcessor) ProcessBarcodes(ctx context.Context, barcodes []string, userID string) []*BatchResult {
	if len(barcodes) == 0 {
		return []*BatchResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	go func() {
		for i, barcode := range barcodes {
			job := &AnalyzeJob{
				Index:    i,
				Barcode:  barcode,
				UserID:   userID,
				Analyzer: b.analyzer,
			}
			if !pool.Submit(job) {
				break
			}
		}
		pool.Close()
	}()

	results := make([]*BatchResult, len(barcodes))
	for r := range pool.Results() {
		br := r.(*BatchResult)
		results[br.Index] = br
		if br.Error != nil {
			b.logger.Warn("batch analysis failed", "barcode", br.Barcode, "error", br.Error)
		}
	}

	for i, r := range results {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			results[i] = &BatchResult{Index: i, Barcode: barcodes[i], Error: err}
		}
	}

	return results
}

// ProcessFile reads barcodes from a file and analyzes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath, userID string) ([]*BatchResult, error) {
	barcodes, err := ReadBarcodesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read barcodes: %w", err)
	}

	return b.ProcessBarcodes(ctx, barcodes, userID), nil
}

// ReadBarcodesFromFile reads barcodes from a file (one per line)
func ReadBarcodesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var barcodes []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Deduplicate barcodes
		if !seen[line] {
			seen[line] = true
			barcodes = append(barcodes, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return barcodes, nil
}
