package domain

import (
	"context"
	"fmt"
)

// Classifier performs zero-shot classification of text against candidate labels.
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (*Classification, error)
}

// Generator produces free-form text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Classification holds labels ordered by descending score.
type Classification struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// Validate rejects responses that cannot be trusted.
func (c *Classification) Validate() error {
	if c == nil || len(c.Labels) == 0 {
		return fmt.Errorf("classification has no labels")
	}
	if len(c.Labels) != len(c.Scores) {
		return fmt.Errorf("classification has %d labels but %d scores", len(c.Labels), len(c.Scores))
	}
	for _, s := range c.Scores {
		if s < 0 || s > 1 {
			return fmt.Errorf("classification score %v outside [0,1]", s)
		}
	}
	return nil
}

// Top returns the highest scoring label. Ties keep the earlier label.
func (c *Classification) Top() (string, float64) {
	best := 0
	for i := 1; i < len(c.Scores); i++ {
		if c.Scores[i] > c.Scores[best] {
			best = i
		}
	}
	return c.Labels[best], c.Scores[best]
}
