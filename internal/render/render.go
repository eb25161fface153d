// Package render writes analysis results as JSON, Markdown and a short
// terminal summary.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/stackguard/internal/model"
)

// Renderer renders analysis results
type Renderer struct {
	out           io.Writer
	includeFooter bool
}

// NewRenderer creates a renderer whose summaries go to out (stdout if nil)
func NewRenderer(out io.Writer, includeFooter bool) *Renderer {
	if out == nil {
		out = os.Stdout
	}
	return &Renderer{out: out, includeFooter: includeFooter}
}

// RenderJSON writes the result as indented JSON to path
func (r *Renderer) RenderJSON(result *model.AnalysisResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the Markdown report to path
func (r *Renderer) RenderMarkdown(result *model.AnalysisResult, path string) error {
	return writeFile(path, []byte(r.Markdown(result)))
}

// Markdown returns the Markdown report
func (r *Renderer) Markdown(result *model.AnalysisResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", result.ProductName)
	fmt.Fprintf(&b, "**Overall score:** %d/100 (%s)\n\n", result.OverallScore, Grade(result.OverallScore))
	fmt.Fprintf(&b, "- Product: `%s`\n", result.ProductID)
	fmt.Fprintf(&b, "- Analysis: %s", tierLabel(result.Tier))
	if result.Cached {
		b.WriteString(" (cached)")
	}
	b.WriteString("\n")
	if !result.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "- Generated: %s\n", result.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	b.WriteString("\n")

	b.WriteString("## Category Scores\n\n")
	b.WriteString("| Category | Score |\n")
	b.WriteString("|---|---|\n")
	for _, cat := range model.Categories {
		fmt.Fprintf(&b, "| %s | %d |\n", categoryTitle(cat), result.CategoryScores.Get(cat))
	}
	b.WriteString("\n")

	writePoints(&b, "Strengths", result.Strengths)
	writePoints(&b, "Weaknesses", result.Weaknesses)

	if !result.Recommendations.IsEmpty() {
		b.WriteString("## Recommendations\n\n")
		writeList(&b, "Good for", result.Recommendations.GoodFor)
		writeList(&b, "Avoid if", result.Recommendations.AvoidIf)
	}

	if len(result.IngredientSafety) > 0 {
		b.WriteString("## Ingredient Safety\n\n")
		for _, s := range result.IngredientSafety {
			fmt.Fprintf(&b, "- %s: %s (%.0f%%)\n", s.Ingredient, s.Label, s.Score*100)
		}
		b.WriteString("\n")
	}

	if result.Reasoning != "" {
		b.WriteString("## Reasoning\n\n")
		b.WriteString(result.Reasoning)
		b.WriteString("\n\n")
	}

	if si := result.StackInteraction; si != nil {
		writeStackInteraction(&b, si)
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString("*Informational only. Not medical advice; consult a healthcare provider before changing what you take.*\n")
	}

	return b.String()
}

// RenderSummary prints a short terminal summary
func (r *Renderer) RenderSummary(result *model.AnalysisResult) {
	w := r.out
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", result.ProductName)
	fmt.Fprintf(w, "  Score:   %d/100 (%s)\n", result.OverallScore, Grade(result.OverallScore))
	fmt.Fprintf(w, "  Tier:    %s", tierLabel(result.Tier))
	if result.Cached {
		fmt.Fprint(w, " (cached)")
	}
	fmt.Fprintln(w)

	for _, cat := range model.Categories {
		score := result.CategoryScores.Get(cat)
		fmt.Fprintf(w, "    %-16s %3d %s\n", categoryTitle(cat), score, bar(score))
	}

	if si := result.StackInteraction; si != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Stack risk: %s (%d interactions, %d nutrient warnings)\n",
			si.OverallRiskLevel, len(si.Interactions), len(si.NutrientWarnings))
		for _, f := range si.Interactions {
			fmt.Fprintf(w, "    [%s] %s\n", f.Severity, f.Message)
		}
		for _, nw := range si.NutrientWarnings {
			fmt.Fprintf(w, "    [%s] %s: %g %s (limit %g %s)\n", nw.Severity, nw.Nutrient, nw.CurrentTotal, nw.Unit, nw.UpperLimit, nw.Unit)
		}
		if si.Partial {
			fmt.Fprintf(w, "    ! partial scan: %d of %d pairs checked\n", si.PairsChecked, si.PairsChecked+si.PairsSkipped)
		}
	}
	fmt.Fprintln(w)
}

// Grade maps an overall score to a word
func Grade(score int) string {
	switch {
	case score >= 85:
		return "excellent"
	case score >= 70:
		return "good"
	case score >= 55:
		return "fair"
	default:
		return "poor"
	}
}

func writeStackInteraction(b *strings.Builder, si *model.StackInteractionResult) {
	b.WriteString("## Stack Interactions\n\n")
	fmt.Fprintf(b, "**Overall risk:** %s", si.OverallRiskLevel)
	if !si.OverallSafe {
		b.WriteString(" ⚠️")
	}
	b.WriteString("\n\n")

	if si.Partial {
		fmt.Fprintf(b, "> Partial scan: %d of %d pairs checked.\n\n", si.PairsChecked, si.PairsChecked+si.PairsSkipped)
	}

	if len(si.Interactions) == 0 && len(si.NutrientWarnings) == 0 {
		b.WriteString("No interactions found.\n\n")
		return
	}

	if len(si.Interactions) > 0 {
		b.WriteString("| Severity | Type | Items | Finding | Recommendation |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, f := range si.Interactions {
			fmt.Fprintf(b, "| %s | %s | %s + %s | %s | %s |\n",
				f.Severity, f.Type, cell(f.ItemA), cell(f.ItemB), cell(f.Message), cell(f.Recommendation))
		}
		b.WriteString("\n")
	}

	if len(si.NutrientWarnings) > 0 {
		b.WriteString("### Nutrient Limits\n\n")
		for _, w := range si.NutrientWarnings {
			fmt.Fprintf(b, "- **%s** %s: %g %s total, upper limit %g %s. %s\n",
				w.Severity, w.Nutrient, w.CurrentTotal, w.Unit, w.UpperLimit, w.Unit, w.Recommendation)
		}
		b.WriteString("\n")
	}
}

func writePoints(b *strings.Builder, title string, points []model.Point) {
	if len(points) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, p := range points {
		fmt.Fprintf(b, "- **%s** (%s): %s\n", p.Point, p.Importance, p.Detail)
	}
	b.WriteString("\n")
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s:**\n\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func tierLabel(t model.Tier) string {
	switch t {
	case model.TierAIEnhanced:
		return "AI-enhanced"
	case model.TierRuleBased:
		return "rule-based"
	case model.TierBasic:
		return "basic"
	default:
		return string(t)
	}
}

func categoryTitle(c model.Category) string {
	s := string(c)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func bar(score int) string {
	n := max(0, min(score, 100)) / 10
	return strings.Repeat("█", n) + strings.Repeat("░", 10-n)
}

// cell escapes a value for a Markdown table
func cell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", "\\|"), "\n", " ")
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
