package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/opensource-finance/riskiq/internal/domain"
)

// OpenAI serves classification and generation through chat completions.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewOpenAI creates a chat client. baseURL may point at any
// OpenAI-compatible endpoint.
func NewOpenAI(apiKey, baseURL, model string, maxTokens int, timeout time.Duration) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	if model == "" || strings.Contains(model, "/") {
		model = openai.GPT4oMini
	}
	if maxTokens <= 0 {
		maxTokens = 256
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAI{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
	}, nil
}

// Classify asks the model for a label distribution.
func (o *OpenAI) Classify(ctx context.Context, text string, labels []string) (*domain.Classification, error) {
	out, err := o.complete(ctx, classificationSystemPrompt, classificationPrompt(text, labels))
	if err != nil {
		return nil, err
	}
	return parseChatClassification(out, labels)
}

// Generate returns the model's reply to prompt.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	return o.complete(ctx, "You are an assistant for Indian digital lending compliance and credit risk.", prompt)
}

func (o *OpenAI) complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   o.maxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("%w: OpenAI API error: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no response from OpenAI", ErrMalformedResponse)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func newOpenAIBackend(cfg domain.InferenceConfig) (*Backend, error) {
	classifier, err := NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.ClassifierModel, 64, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	b := &Backend{Classifier: classifier}

	for _, m := range cfg.GeneratorModels {
		g, err := NewOpenAI(cfg.APIKey, cfg.BaseURL, m, cfg.MaxTokens, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		b.Generators = append(b.Generators, g)
	}

	risk, err := NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.RiskModel, cfg.MaxTokens, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	b.RiskGenerator = risk
	return b, nil
}
