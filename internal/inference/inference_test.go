package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/opensource-finance/riskiq/internal/cache"
	"github.com/opensource-finance/riskiq/internal/domain"
)

func TestHuggingFace_Classify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/facebook/bart-large-mnli" {
			t.Errorf("Expected model path, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer hf_test" {
			t.Errorf("Expected bearer token, got %q", got)
		}

		var req zeroShotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Parameters.CandidateLabels) != 3 {
			t.Errorf("Expected 3 candidate labels, got %d", len(req.Parameters.CandidateLabels))
		}

		_ = json.NewEncoder(w).Encode(zeroShotResponse{
			Sequence: req.Inputs,
			Labels:   []string{"violates RBI guidelines", "neutral", "compliant with RBI guidelines"},
			Scores:   []float64{0.7, 0.2, 0.1},
		})
	}))
	defer server.Close()

	hf := NewHuggingFace(server.URL, "hf_test", "facebook/bart-large-mnli", 0, 5*time.Second)
	c, err := hf.Classify(context.Background(), "Interest at 36% per annum", []string{
		"compliant with RBI guidelines", "violates RBI guidelines", "neutral",
	})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	label, score := c.Top()
	if label != "violates RBI guidelines" || score != 0.7 {
		t.Errorf("Unexpected top label %q %v", label, score)
	}
}

func TestHuggingFace_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generationRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Parameters.ReturnFullText {
			t.Error("Expected return_full_text=false")
		}
		if req.Parameters.MaxNewTokens != 128 {
			t.Errorf("Expected max_new_tokens 128, got %d", req.Parameters.MaxNewTokens)
		}
		_, _ = w.Write([]byte(`[{"generated_text": "The interest rate shall not exceed 18% per annum."}]`))
	}))
	defer server.Close()

	hf := NewHuggingFace(server.URL+"/", "", "google/flan-t5-base", 128, 0)
	out, err := hf.Generate(context.Background(), "rewrite")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "The interest rate shall not exceed 18% per annum." {
		t.Errorf("Unexpected output: %s", out)
	}
}

func TestHuggingFace_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"ModelLoading", http.StatusServiceUnavailable, `{"error": "Model is currently loading"}`, ErrUnavailable},
		{"Unauthorized", http.StatusUnauthorized, `nope`, ErrUnavailable},
		{"BadJSON", http.StatusOK, `{"labels": [`, ErrMalformedResponse},
		{"ScoresMismatch", http.StatusOK, `{"labels": ["a", "b"], "scores": [0.9]}`, ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			hf := NewHuggingFace(server.URL, "", "m", 0, time.Second)
			_, err := hf.Classify(context.Background(), "text", []string{"a", "b"})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	t.Run("EmptyGeneration", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		}))
		defer server.Close()

		_, err := NewHuggingFace(server.URL, "", "m", 0, time.Second).Generate(context.Background(), "p")
		if !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("Expected ErrMalformedResponse, got %v", err)
		}
	})
}

func TestOpenAI_Classify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "{\"neutral\": 0.1, \"compliant with RBI guidelines\": 0.85, \"violates RBI guidelines\": 0.05}"},
				"finish_reason": "stop"
			}]
		}`))
	}))
	defer server.Close()

	o, err := NewOpenAI("sk-test", server.URL+"/v1", "facebook/bart-large-mnli", 0, time.Second)
	if err != nil {
		t.Fatalf("NewOpenAI failed: %v", err)
	}
	if o.model != "gpt-4o-mini" {
		t.Errorf("Expected hosted model name to map to gpt-4o-mini, got %s", o.model)
	}

	c, err := o.Classify(context.Background(), "clause", []string{
		"compliant with RBI guidelines", "violates RBI guidelines", "neutral",
	})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if c.Labels[0] != "compliant with RBI guidelines" || c.Labels[2] != "violates RBI guidelines" {
		t.Errorf("Expected descending order, got %v", c.Labels)
	}
}

func TestOpenAI_RequiresKey(t *testing.T) {
	if _, err := NewOpenAI("", "", "", 0, 0); err == nil {
		t.Error("Expected error without API key")
	}
}

func TestParseChatClassification(t *testing.T) {
	labels := []string{"legitimate", "suspicious", "fraudulent"}

	c, err := parseChatClassification("Sure! {\"Fraudulent\": 0.6, \"legitimate\": 0.4}", labels)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if top, _ := c.Top(); top != "fraudulent" {
		t.Errorf("Expected fraudulent, got %s", top)
	}
	if len(c.Labels) != 3 {
		t.Errorf("Expected every candidate label, got %v", c.Labels)
	}

	for _, bad := range []string{"no json", `{"other": 1}`, `{"legitimate": 2}`, `{"legitimate": "x"}`} {
		if _, err := parseChatClassification(bad, labels); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("%q: expected ErrMalformedResponse, got %v", bad, err)
		}
	}
}

type countingGenerator struct {
	calls atomic.Int32
	out   string
}

func (g *countingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls.Add(1)
	return g.out + prompt, nil
}

type countingClassifier struct {
	calls atomic.Int32
	err   error
}

func (c *countingClassifier) Classify(ctx context.Context, text string, labels []string) (*domain.Classification, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &domain.Classification{Labels: labels, Scores: make([]float64, len(labels))}, nil
}

func TestCachedGenerator(t *testing.T) {
	ctx := context.Background()
	inner := &countingGenerator{out: "gen:"}
	g := NewCachedGenerator(inner, cache.NewMemoryCache(time.Minute, time.Minute), "m", time.Minute)

	for i := 0; i < 3; i++ {
		out, err := g.Generate(ctx, "a")
		if err != nil || out != "gen:a" {
			t.Fatalf("Generate = %q, %v", out, err)
		}
	}
	if _, err := g.Generate(ctx, "b"); err != nil {
		t.Fatal(err)
	}

	if n := inner.calls.Load(); n != 2 {
		t.Errorf("Expected 2 upstream calls, got %d", n)
	}
}

func TestCachedClassifier(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryCache(time.Minute, time.Minute)

	inner := &countingClassifier{}
	c := NewCachedClassifier(inner, mem, "m", time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := c.Classify(ctx, "text", []string{"a", "b"}); err != nil {
			t.Fatal(err)
		}
	}
	// different label set is a different key
	if _, err := c.Classify(ctx, "text", []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if n := inner.calls.Load(); n != 2 {
		t.Errorf("Expected 2 upstream calls, got %d", n)
	}

	failing := &countingClassifier{err: ErrUnavailable}
	fc := NewCachedClassifier(failing, mem, "other", time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := fc.Classify(ctx, "text", []string{"a"}); !errors.Is(err, ErrUnavailable) {
			t.Errorf("Expected ErrUnavailable, got %v", err)
		}
	}
	if n := failing.calls.Load(); n != 2 {
		t.Errorf("Errors must not be cached, got %d calls", n)
	}
}

func TestLimitedGenerator_ContextCancelled(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	g := NewLimitedGenerator(&countingGenerator{}, limiter)

	if _, err := g.Generate(context.Background(), "first"); err != nil {
		t.Fatalf("first call should use the burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := g.Generate(ctx, "second"); err == nil {
		t.Error("Expected limiter wait to fail once the bucket is empty")
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	b, err := New(ctx, domain.InferenceConfig{}, nil, nil)
	if err != nil || b != nil {
		t.Errorf("Expected nil backend without provider, got %v, %v", b, err)
	}

	if _, err := New(ctx, domain.InferenceConfig{Provider: "watson"}, nil, nil); err == nil {
		t.Error("Expected error for unknown provider")
	}

	b, err = New(ctx, domain.InferenceConfig{
		Provider:          "huggingface",
		ClassifierModel:   "facebook/bart-large-mnli",
		GeneratorModels:   []string{"google/flan-t5-base", "facebook/bart-large-cnn"},
		RiskModel:         "google/flan-t5-base",
		RequestsPerSecond: 5,
		CacheTTL:          time.Minute,
	}, cache.NewMemoryCache(0, 0), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer b.Close()

	if len(b.Generators) != 2 || b.RiskGenerator == nil || b.Classifier == nil {
		t.Fatalf("Unexpected backend: %+v", b)
	}
	if _, ok := b.Classifier.(*CachedClassifier); !ok {
		t.Errorf("Expected cached classifier, got %T", b.Classifier)
	}
	if _, ok := b.Generators[0].(*CachedGenerator); !ok {
		t.Errorf("Expected cached generator, got %T", b.Generators[0])
	}
}
