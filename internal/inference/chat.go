package inference

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/opensource-finance/riskiq/internal/domain"
)

var chatJSON = regexp.MustCompile(`\{[\s\S]*\}`)

// classificationSystemPrompt instructs chat models to behave like a
// zero-shot classifier.
const classificationSystemPrompt = "You are a zero-shot text classifier for loan agreements. " +
	"Reply with a single JSON object mapping every candidate label to a probability between 0 and 1. " +
	"The probabilities must sum to 1. Do not add any other text."

func classificationPrompt(text string, labels []string) string {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = fmt.Sprintf("%q", l)
	}
	return fmt.Sprintf("Candidate labels: [%s]\n\nText: %s", strings.Join(quoted, ", "), text)
}

// parseChatClassification reads the label/probability object a chat model
// returned. Unknown labels are ignored and missing ones score zero.
func parseChatClassification(out string, labels []string) (*domain.Classification, error) {
	raw := chatJSON.FindString(out)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object in %q", ErrMalformedResponse, truncate(out, 80))
	}

	var scores map[string]float64
	if err := json.Unmarshal([]byte(raw), &scores); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	lookup := make(map[string]float64, len(scores))
	for k, v := range scores {
		lookup[strings.ToLower(strings.TrimSpace(k))] = v
	}

	c := &domain.Classification{
		Labels: append([]string(nil), labels...),
		Scores: make([]float64, len(labels)),
	}
	found := false
	for i, l := range labels {
		if v, ok := lookup[strings.ToLower(l)]; ok {
			c.Scores[i] = v
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: no candidate label scored", ErrMalformedResponse)
	}

	sort.Stable(byScore{c})
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return c, nil
}

type byScore struct{ c *domain.Classification }

func (b byScore) Len() int           { return len(b.c.Labels) }
func (b byScore) Less(i, j int) bool { return b.c.Scores[i] > b.c.Scores[j] }
func (b byScore) Swap(i, j int) {
	b.c.Labels[i], b.c.Labels[j] = b.c.Labels[j], b.c.Labels[i]
	b.c.Scores[i], b.c.Scores[j] = b.c.Scores[j], b.c.Scores[i]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
