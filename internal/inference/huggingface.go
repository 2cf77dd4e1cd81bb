package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opensource-finance/riskiq/internal/domain"
)

// DefaultHuggingFaceURL is the hosted inference API root.
const DefaultHuggingFaceURL = "https://api-inference.huggingface.co/models/"

// HuggingFace calls the hosted inference API for a single model.
type HuggingFace struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

type zeroShotRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters zeroShotParams `json:"parameters"`
}

type zeroShotParams struct {
	CandidateLabels []string `json:"candidate_labels"`
}

type zeroShotResponse struct {
	Sequence string    `json:"sequence"`
	Labels   []string  `json:"labels"`
	Scores   []float64 `json:"scores"`
}

type generationRequest struct {
	Inputs     string           `json:"inputs"`
	Parameters generationParams `json:"parameters"`
}

type generationParams struct {
	MaxNewTokens   int     `json:"max_new_tokens,omitempty"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

type generationResponse struct {
	GeneratedText string `json:"generated_text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHuggingFace creates a client for one hosted model.
func NewHuggingFace(baseURL, apiKey, model string, maxTokens int, timeout time.Duration) *HuggingFace {
	if baseURL == "" {
		baseURL = DefaultHuggingFaceURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HuggingFace{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Classify runs zero-shot classification. Labels come back in descending score order.
func (h *HuggingFace) Classify(ctx context.Context, text string, labels []string) (*domain.Classification, error) {
	var resp zeroShotResponse
	err := h.post(ctx, zeroShotRequest{
		Inputs:     text,
		Parameters: zeroShotParams{CandidateLabels: labels},
	}, &resp)
	if err != nil {
		return nil, err
	}

	c := &domain.Classification{Labels: resp.Labels, Scores: resp.Scores}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return c, nil
}

// Generate runs text generation and returns the first candidate.
func (h *HuggingFace) Generate(ctx context.Context, prompt string) (string, error) {
	var resp []generationResponse
	err := h.post(ctx, generationRequest{
		Inputs: prompt,
		Parameters: generationParams{
			MaxNewTokens: h.maxTokens,
			Temperature:  0.2,
		},
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp) == 0 {
		return "", fmt.Errorf("%w: no generations", ErrMalformedResponse)
	}
	return resp[0].GeneratedText, nil
}

func (h *HuggingFace) post(ctx context.Context, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+h.model, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%w: %s returned %d: %s", ErrUnavailable, h.model, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%w: %s returned %d", ErrUnavailable, h.model, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func newHuggingFaceBackend(cfg domain.InferenceConfig) *Backend {
	b := &Backend{
		Classifier: NewHuggingFace(cfg.BaseURL, cfg.APIKey, cfg.ClassifierModel, 0, cfg.Timeout),
	}
	for _, m := range cfg.GeneratorModels {
		b.Generators = append(b.Generators, NewHuggingFace(cfg.BaseURL, cfg.APIKey, m, 0, cfg.Timeout))
	}
	if cfg.RiskModel != "" {
		b.RiskGenerator = NewHuggingFace(cfg.BaseURL, cfg.APIKey, cfg.RiskModel, cfg.MaxTokens, cfg.Timeout)
	}
	return b
}
