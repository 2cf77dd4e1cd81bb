// Package metrics exposes Prometheus collectors for the analysers and the API.
package metrics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry. A nil *Collector is a no-op.
type Collector struct {
	registry *prometheus.Registry
	logger   *slog.Logger

	documentsAnalyzed *prometheus.CounterVec
	clausesClassified *prometheus.CounterVec
	analysisDuration  prometheus.Histogram
	fraudScores       prometheus.Histogram
	fraudAssessments  *prometheus.CounterVec
	loanRiskScores    prometheus.Histogram
	loanAssessments   *prometheus.CounterVec
	inferenceFallback *prometheus.CounterVec
	reportsGenerated  *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// NewCollector registers all RiskIQ metrics on a fresh registry.
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		logger:   logger,
		documentsAnalyzed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskiq_documents_analyzed_total",
			Help: "Loan agreements analysed, by overall verdict",
		}, []string{"overall"}),
		clausesClassified: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskiq_clauses_classified_total",
			Help: "Clauses classified, by status and verdict source",
		}, []string{"status", "source"}),
		analysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskiq_compliance_analysis_duration_seconds",
			Help:    "Time taken to analyse a document",
			Buckets: prometheus.DefBuckets,
		}),
		fraudScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskiq_fraud_score_distribution",
			Help:    "Distribution of fraud scores",
			Buckets: []float64{0, 20, 40, 60, 80, 100},
		}),
		fraudAssessments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskiq_fraud_assessments_total",
			Help: "Fraud assessments, by risk tier",
		}, []string{"risk"}),
		loanRiskScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskiq_loan_risk_score_distribution",
			Help:    "Distribution of loan risk scores",
			Buckets: []float64{0, 20, 40, 60, 80, 100},
		}),
		loanAssessments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskiq_loan_assessments_total",
			Help: "Loan risk assessments, by risk tier",
		}, []string{"risk"}),
		inferenceFallback: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskiq_inference_fallback_total",
			Help: "External inference failures absorbed by the rule tier",
		}, []string{"component"}),
		reportsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskiq_reports_generated_total",
			Help: "Regulatory reports generated, by type",
		}, []string{"type"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskiq_http_requests_total",
			Help: "HTTP requests, by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riskiq_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordDocument records a completed compliance analysis.
func (m *Collector) RecordDocument(overall string, duration time.Duration) {
	if m == nil {
		return
	}
	m.documentsAnalyzed.WithLabelValues(overall).Inc()
	m.analysisDuration.Observe(duration.Seconds())
}

// RecordClause records one clause verdict.
func (m *Collector) RecordClause(status, source string) {
	if m == nil {
		return
	}
	m.clausesClassified.WithLabelValues(status, source).Inc()
}

// RecordFraud records a fraud assessment.
func (m *Collector) RecordFraud(score int, risk string) {
	if m == nil {
		return
	}
	m.fraudScores.Observe(float64(score))
	m.fraudAssessments.WithLabelValues(risk).Inc()
}

// RecordLoanRisk records a loan-risk assessment.
func (m *Collector) RecordLoanRisk(score int, risk string) {
	if m == nil {
		return
	}
	m.loanRiskScores.Observe(float64(score))
	m.loanAssessments.WithLabelValues(risk).Inc()
}

// RecordFallback counts an inference failure that the rule tier absorbed.
func (m *Collector) RecordFallback(component string) {
	if m == nil {
		return
	}
	m.inferenceFallback.WithLabelValues(component).Inc()
}

// RecordReport counts a generated regulatory report.
func (m *Collector) RecordReport(reportType string) {
	if m == nil {
		return
	}
	m.reportsGenerated.WithLabelValues(reportType).Inc()
}

// RecordHTTPRequest records one served request.
func (m *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Registry exposes the underlying registry.
func (m *Collector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
