package compliance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/riskiq/internal/domain"
	"github.com/opensource-finance/riskiq/internal/metrics"
)

var tracer = otel.Tracer("riskiq-compliance")

// Analyzer segments a document and classifies its clauses concurrently.
type Analyzer struct {
	classifier     *Classifier
	maxConcurrency int
	logger         *slog.Logger
	metrics        *metrics.Collector
}

// NewAnalyzer creates an analyzer. maxConcurrency <= 0 falls back to 8.
func NewAnalyzer(classifier *Classifier, maxConcurrency int, logger *slog.Logger, m *metrics.Collector) *Analyzer {
	if classifier == nil {
		classifier = NewClassifier(WithLogger(logger), WithMetrics(m))
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		classifier:     classifier,
		maxConcurrency: maxConcurrency,
		logger:         logger,
		metrics:        m,
	}
}

// Analyze returns the verdict for a document. Clauses keep document order
// regardless of completion order.
func (a *Analyzer) Analyze(ctx context.Context, fileName, text string) *domain.ComplianceVerdict {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "compliance.Analyze",
		trace.WithAttributes(attribute.String("document.name", fileName)),
	)
	defer span.End()

	segments := Segment(text)
	clauses := make([]domain.Clause, len(segments))

	// Semaphore bounds in-flight classifications
	sem := make(chan struct{}, a.maxConcurrency)
	var wg sync.WaitGroup

	for i, segment := range segments {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int, clauseText string) {
			defer wg.Done()
			defer func() { <-sem }()

			clauses[idx] = a.classifier.Classify(ctx, idx+1, clauseText)
		}(i, segment)
	}

	wg.Wait()

	verdict := domain.NewComplianceVerdict(fileName, clauses)

	span.SetAttributes(
		attribute.Int("clauses.total", len(clauses)),
		attribute.Int("clauses.non_compliant", verdict.NonCompliantCount),
		attribute.String("verdict", string(verdict.OverallCompliance)),
	)
	a.metrics.RecordDocument(string(verdict.OverallCompliance), time.Since(start))

	a.logger.Debug("document analysed",
		"file_name", fileName,
		"clauses", len(clauses),
		"overall", verdict.OverallCompliance,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return verdict
}
