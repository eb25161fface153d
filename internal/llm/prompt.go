package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/stackguard/internal/model"
)

// SystemPrompt frames every generation request.
const SystemPrompt = "You are a careful supplement quality analyst. You explain scores that were computed by rules; " +
	"you never invent ingredients, doses or studies, and you never give a diagnosis."

// SafetyLabels are the candidate labels for ingredient safety classification.
var SafetyLabels = []string{"generally safe", "use with caution", "potentially unsafe"}

// BuildAnalysisPrompt asks for a short justification of an existing rule-based
// analysis, answered as JSON.
func BuildAnalysisPrompt(p model.Product, base *model.AnalysisResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Product: %s\n", p.Name)
	if p.Brand != "" {
		fmt.Fprintf(&b, "Brand: %s\n", p.Brand)
	}
	fmt.Fprintf(&b, "Third-party tested: %t\n", p.ThirdPartyTested)
	if len(p.Certifications) > 0 {
		fmt.Fprintf(&b, "Certifications: %s\n", strings.Join(p.Certifications, ", "))
	}

	b.WriteString("Ingredients:\n")
	if len(p.Ingredients) == 0 {
		b.WriteString("- (none listed)\n")
	}
	for _, ing := range p.Ingredients {
		fmt.Fprintf(&b, "- %s", ing.Name)
		if ing.Form != "" {
			fmt.Fprintf(&b, " (%s)", ing.Form)
		}
		if ing.Amount > 0 {
			fmt.Fprintf(&b, " %g%s", ing.Amount, ing.Unit)
		}
		b.WriteString("\n")
	}

	if base != nil {
		s := base.CategoryScores
		fmt.Fprintf(&b, "\nRule-based scores (0-100): overall %d, ingredients %d, bioavailability %d, dosage %d, purity %d, value %d\n",
			base.OverallScore, s.Ingredients, s.Bioavailability, s.Dosage, s.Purity, s.Value)
	}

	b.WriteString(`
Do not change the scores. Respond with JSON only, in this shape:
{"reasoning": "2-3 sentences explaining the scores", "good_for": ["..."], "avoid_if": ["..."]}`)

	return b.String()
}

// Enhancement is the parsed output of an analysis prompt
type Enhancement struct {
	Reasoning       string
	Recommendations model.Recommendations
	Safety          []model.SafetyLabel
}

// ParseEnhancement reads the JSON answer to BuildAnalysisPrompt. A plain
// text answer is accepted as reasoning only.
func ParseEnhancement(text string) (*Enhancement, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoResponse
	}

	var parsed struct {
		Reasoning string   `json:"reasoning"`
		GoodFor   []string `json:"good_for"`
		AvoidIf   []string `json:"avoid_if"`
	}
	if raw, ok := extractJSONObject(text); ok && json.Unmarshal([]byte(raw), &parsed) == nil {
		return &Enhancement{
			Reasoning: strings.TrimSpace(parsed.Reasoning),
			Recommendations: model.Recommendations{
				GoodFor: nonBlank(parsed.GoodFor),
				AvoidIf: nonBlank(parsed.AvoidIf),
			},
		}, nil
	}

	return &Enhancement{Reasoning: text}, nil
}

// BuildClassifyPrompt asks a chat model to emulate zero-shot classification.
func BuildClassifyPrompt(text string, labels []string) string {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = fmt.Sprintf("%q", l)
	}
	return fmt.Sprintf(`Classify the following text into exactly one of these labels: [%s].
Text: %s
Respond with JSON only, in this shape: {"label": "<one of the labels>", "score": <confidence between 0 and 1>}`,
		strings.Join(quoted, ", "), text)
}

// ParseClassification reads the JSON answer to BuildClassifyPrompt. The
// chosen label gets its score; the remaining confidence is split evenly
// over the other labels.
func ParseClassification(text string, labels []string) (*Classification, error) {
	raw, ok := extractJSONObject(text)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in %q", ErrMalformedResponse, truncate(text, 80))
	}

	var parsed struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	chosen := -1
	for i, l := range labels {
		if strings.EqualFold(strings.TrimSpace(parsed.Label), l) {
			chosen = i
			break
		}
	}
	if chosen < 0 {
		return nil, fmt.Errorf("%w: label %q not among candidates", ErrMalformedResponse, parsed.Label)
	}

	score := parsed.Score
	if score <= 0 || score > 1 {
		score = 1
	}
	rest := 0.0
	if len(labels) > 1 {
		rest = (1 - score) / float64(len(labels)-1)
	}

	c := &Classification{}
	c.Labels = append(c.Labels, labels[chosen])
	c.Scores = append(c.Scores, score)
	for i, l := range labels {
		if i == chosen {
			continue
		}
		c.Labels = append(c.Labels, l)
		c.Scores = append(c.Scores, rest)
	}
	return c, nil
}

// classifyWithChat implements Classify on top of a chat provider's Generate
func classifyWithChat(ctx context.Context, p Provider, text string, labels []string) (*Classification, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("no candidate labels")
	}
	resp, err := p.Generate(ctx, GenerateRequest{
		Prompt:    BuildClassifyPrompt(text, labels),
		System:    "You are a strict classifier. Output JSON only.",
		MaxTokens: 60,
	})
	if err != nil {
		return nil, err
	}
	return ParseClassification(resp.Text, labels)
}

// sortClassification orders labels by descending score in place
func sortClassification(c *Classification) {
	idx := make([]int, len(c.Labels))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return c.Scores[idx[a]] > c.Scores[idx[b]] })

	labels := make([]string, len(idx))
	scores := make([]float64, len(idx))
	for i, j := range idx {
		labels[i] = c.Labels[j]
		scores[i] = c.Scores[j]
	}
	c.Labels, c.Scores = labels, scores
}

// extractJSONObject finds the outermost {...} in text, tolerating code fences
// and surrounding prose.
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func nonBlank(in []string) []string {
	out := []string{}
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
