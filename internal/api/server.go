package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/opensource-finance/riskiq/internal/compliance"
	"github.com/opensource-finance/riskiq/internal/domain"
	"github.com/opensource-finance/riskiq/internal/fraud"
	"github.com/opensource-finance/riskiq/internal/metrics"
	"github.com/opensource-finance/riskiq/internal/report"
	"github.com/opensource-finance/riskiq/internal/risk"
	"github.com/opensource-finance/riskiq/internal/rules"
	"github.com/opensource-finance/riskiq/internal/worker"
)

// Dependencies are the services the API serves. Repo, Cache, Bus, Jobs,
// JobTenants, Reports, Submitter and Metrics may be nil; the routes that
// need them answer 503.
type Dependencies struct {
	Repo       domain.Repository
	Cache      domain.Cache
	Bus        domain.EventBus
	Compliance *compliance.Analyzer
	Fraud      *fraud.Scorer
	Risk       *risk.Scorer
	FraudRules *rules.Engine
	RiskRules  *rules.Engine
	Reports    *report.Generator
	Submitter  *report.Submitter
	Jobs       *worker.JobStore
	// JobTenants are the tenants a running worker consumes compliance jobs
	// for. Jobs from any other tenant are refused with 503.
	JobTenants []string
	Metrics    *metrics.Collector
	Logger     *slog.Logger
	Version    string
}

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	handler := NewHandler(deps)
	router := chi.NewRouter()

	router.Use(CORSMiddleware())
	router.Use(RecoverMiddleware(deps.Logger))
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware(deps.Logger, deps.Metrics))
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics.Handler())
	}

	router.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(TenantMiddleware)

		r.Route("/compliance", func(r chi.Router) {
			r.Post("/analyze", handler.AnalyzeCompliance)
			r.Post("/jobs", handler.SubmitComplianceJob)
			r.Get("/jobs/{id}", handler.GetComplianceJob)
			r.Get("/history", handler.ComplianceHistory)
		})

		r.Route("/fraud", func(r chi.Router) {
			r.Post("/score", handler.ScoreFraud)
			r.Get("/history", handler.FraudHistory)
		})

		r.Route("/risk", func(r chi.Router) {
			r.Post("/score", handler.ScoreRisk)
			r.Get("/history", handler.RiskHistory)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Post("/", handler.GenerateReport)
			r.Get("/", handler.ListReports)
			r.Get("/template", handler.ReportTemplate)
			r.Get("/submissions/{id}", handler.SubmissionStatus)
			r.Get("/{id}", handler.GetReport)
			r.Post("/{id}/submit", handler.SubmitReport)
		})

		r.Get("/dashboard", handler.Dashboard)
		r.Get("/rules", handler.ListRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      router,
			ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start serves until Shutdown; it then returns http.ErrServerClosed.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
