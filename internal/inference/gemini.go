package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/opensource-finance/riskiq/internal/domain"
)

// DefaultGeminiModel is used when the configured model name is a hosted
// Hugging Face identifier.
const DefaultGeminiModel = "gemini-1.5-flash"

// Gemini serves classification or generation from one Gemini model. The
// system instruction is fixed at construction, so one instance serves one role.
type Gemini struct {
	model   *genai.GenerativeModel
	timeout time.Duration
}

func newGemini(client *genai.Client, name, system string, maxTokens int, timeout time.Duration) *Gemini {
	if name == "" || strings.Contains(name, "/") {
		name = DefaultGeminiModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	model := client.GenerativeModel(name)
	model.SetTemperature(0.2)
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}

	return &Gemini{model: model, timeout: timeout}
}

// Classify asks the model for a label distribution.
func (g *Gemini) Classify(ctx context.Context, text string, labels []string) (*domain.Classification, error) {
	out, err := g.Generate(ctx, classificationPrompt(text, labels))
	if err != nil {
		return nil, err
	}
	return parseChatClassification(out, labels)
}

// Generate returns the first text part of the first candidate.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: gemini API error: %v", ErrUnavailable, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil ||
		resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty response from gemini", ErrMalformedResponse)
	}

	part := resp.Candidates[0].Content.Parts[0]
	textPart, ok := part.(genai.Text)
	if !ok {
		return "", fmt.Errorf("%w: unexpected response type from gemini: %T", ErrMalformedResponse, part)
	}
	return strings.TrimSpace(string(textPart)), nil
}

func newGeminiBackend(ctx context.Context, cfg domain.InferenceConfig) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	const assistant = "You are an assistant for Indian digital lending compliance and credit risk."

	b := &Backend{
		Classifier: newGemini(client, cfg.ClassifierModel, classificationSystemPrompt, 64, cfg.Timeout),
		closers:    []func() error{client.Close},
	}
	for _, m := range cfg.GeneratorModels {
		b.Generators = append(b.Generators, newGemini(client, m, assistant, cfg.MaxTokens, cfg.Timeout))
	}
	b.RiskGenerator = newGemini(client, cfg.RiskModel, assistant, cfg.MaxTokens, cfg.Timeout)
	return b, nil
}
