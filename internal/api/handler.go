package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/opensource-finance/riskiq/internal/bus"
	"github.com/opensource-finance/riskiq/internal/domain"
	"github.com/opensource-finance/riskiq/internal/report"
	"github.com/opensource-finance/riskiq/internal/repository"
	"github.com/opensource-finance/riskiq/internal/rules"
	"github.com/opensource-finance/riskiq/internal/worker"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Handler holds dependencies for API handlers.
type Handler struct {
	deps       Dependencies
	jobTenants map[string]bool
	logger     *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	jobTenants := make(map[string]bool, len(deps.JobTenants))
	for _, id := range deps.JobTenants {
		jobTenants[id] = true
	}
	return &Handler{deps: deps, jobTenants: jobTenants, logger: logger}
}

// DocumentRequest is the request body for compliance analysis.
type DocumentRequest struct {
	DocumentText string `json:"documentText"`
	DocumentName string `json:"documentName"`
}

// JobResponse is the response for POST /compliance/jobs.
type JobResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

func (req *DocumentRequest) validate() string {
	text := strings.TrimSpace(req.DocumentText)
	switch {
	case text == "":
		return "documentText is required"
	case strings.HasPrefix(text, "%PDF"):
		return "binary PDF content is not supported; extract the text first"
	}
	if req.DocumentName == "" {
		req.DocumentName = "document.txt"
	}
	return ""
}

// AnalyzeCompliance handles POST /compliance/analyze.
func (h *Handler) AnalyzeCompliance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req DocumentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	verdict := h.deps.Compliance.Analyze(ctx, req.DocumentName, req.DocumentText)

	if h.deps.Repo != nil {
		if err := h.deps.Repo.SaveComplianceVerdict(ctx, tenantID, verdict); err != nil {
			h.logger.Error("failed to save compliance verdict", "tenant_id", tenantID, "error", err)
		}
	}

	writeJSON(w, r, http.StatusOK, verdict)
}

// SubmitComplianceJob handles POST /compliance/jobs. The analysis runs on a
// worker; the job status is polled at /compliance/jobs/{id}.
func (h *Handler) SubmitComplianceJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.deps.Bus == nil {
		writeError(w, r, http.StatusServiceUnavailable, "event bus not available")
		return
	}
	if !h.jobTenants[tenantID] {
		writeError(w, r, http.StatusServiceUnavailable, "no compliance worker serves tenant "+tenantID)
		return
	}

	var req DocumentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	job := worker.ComplianceJob{
		JobID:        uuid.New().String(),
		TenantID:     tenantID,
		DocumentName: req.DocumentName,
		DocumentText: req.DocumentText,
		RequestedAt:  time.Now().UTC(),
	}

	if h.deps.Jobs != nil {
		if err := h.deps.Jobs.Put(ctx, tenantID, worker.JobStatus{JobID: job.JobID, Status: worker.JobPending}); err != nil {
			h.logger.Warn("failed to record job status", "job_id", job.JobID, "error", err)
		}
	}

	if err := bus.PublishJSON(ctx, h.deps.Bus, tenantID, domain.TopicComplianceRequested, job); err != nil {
		h.logger.Error("failed to enqueue compliance job", "job_id", job.JobID, "error", err)
		writeError(w, r, http.StatusServiceUnavailable, "failed to enqueue job")
		return
	}

	writeJSON(w, r, http.StatusAccepted, JobResponse{JobID: job.JobID, Status: worker.JobPending})
}

// GetComplianceJob handles GET /compliance/jobs/{id}.
func (h *Handler) GetComplianceJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "id")

	if h.deps.Jobs == nil {
		writeError(w, r, http.StatusServiceUnavailable, "job tracking not available")
		return
	}

	st, err := h.deps.Jobs.Get(ctx, GetTenantID(ctx), jobID)
	if errors.Is(err, worker.ErrJobNotFound) {
		writeError(w, r, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get job status", "job_id", jobID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to get job status")
		return
	}

	writeJSON(w, r, http.StatusOK, st)
}

// ComplianceHistory handles GET /compliance/history.
func (h *Handler) ComplianceHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.historyRequest(w, r)
	if !ok {
		return
	}
	verdicts, err := h.deps.Repo.ListComplianceVerdicts(r.Context(), GetTenantID(r.Context()), limit)
	h.writeList(w, r, "compliance history", verdicts, err)
}

// ScoreFraud handles POST /fraud/score.
func (h *Handler) ScoreFraud(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var applicant domain.Applicant
	if err := render.DecodeJSON(r.Body, &applicant); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if strings.TrimSpace(applicant.Name) == "" || strings.TrimSpace(applicant.GovernmentID) == "" {
		writeError(w, r, http.StatusBadRequest, "name and governmentId are required")
		return
	}

	assessment, err := h.deps.Fraud.Score(ctx, tenantID, applicant)
	if err != nil {
		h.logger.Error("fraud scoring failed", "tenant_id", tenantID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "fraud scoring failed")
		return
	}

	if h.deps.Repo != nil {
		if err := h.deps.Repo.SaveFraudAssessment(ctx, tenantID, assessment); err != nil {
			h.logger.Error("failed to save fraud assessment", "tenant_id", tenantID, "error", err)
		}
	}
	h.publish(r, domain.TopicFraudAssessed, assessment)
	if assessment.IsFraudulent {
		h.publish(r, domain.TopicFraudAlert, assessment)
	}

	writeJSON(w, r, http.StatusOK, assessment)
}

// FraudHistory handles GET /fraud/history.
func (h *Handler) FraudHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.historyRequest(w, r)
	if !ok {
		return
	}
	assessments, err := h.deps.Repo.ListFraudAssessments(r.Context(), GetTenantID(r.Context()), limit)
	h.writeList(w, r, "fraud history", assessments, err)
}

// ScoreRisk handles POST /risk/score.
func (h *Handler) ScoreRisk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var borrower domain.Borrower
	if err := render.DecodeJSON(r.Body, &borrower); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if strings.TrimSpace(borrower.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	assessment, err := h.deps.Risk.Score(ctx, tenantID, borrower)
	if err != nil {
		h.logger.Error("risk scoring failed", "tenant_id", tenantID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "risk scoring failed")
		return
	}

	if h.deps.Repo != nil {
		if err := h.deps.Repo.SaveRiskAssessment(ctx, tenantID, assessment); err != nil {
			h.logger.Error("failed to save risk assessment", "tenant_id", tenantID, "error", err)
		}
	}
	h.publish(r, domain.TopicRiskAssessed, assessment)

	writeJSON(w, r, http.StatusOK, assessment)
}

// RiskHistory handles GET /risk/history.
func (h *Handler) RiskHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.historyRequest(w, r)
	if !ok {
		return
	}
	assessments, err := h.deps.Repo.ListRiskAssessments(r.Context(), GetTenantID(r.Context()), limit)
	h.writeList(w, r, "risk history", assessments, err)
}

// GenerateReport handles POST /reports.
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	if h.deps.Reports == nil {
		writeError(w, r, http.StatusServiceUnavailable, "reporting not available")
		return
	}

	var req report.Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	rep, err := h.deps.Reports.Generate(r.Context(), GetTenantID(r.Context()), req)
	if errors.Is(err, report.ErrInvalidRequest) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("report generation failed", "report_type", req.ReportType, "error", err)
		writeError(w, r, http.StatusInternalServerError, "report generation failed")
		return
	}

	writeJSON(w, r, http.StatusCreated, rep)
}

// ListReports handles GET /reports.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.historyRequest(w, r)
	if !ok {
		return
	}
	reports, err := h.deps.Repo.ListReports(r.Context(), GetTenantID(r.Context()), limit)
	h.writeList(w, r, "reports", reports, err)
}

// GetReport handles GET /reports/{id}.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	if h.deps.Repo == nil {
		writeError(w, r, http.StatusServiceUnavailable, "repository not available")
		return
	}

	reportID := chi.URLParam(r, "id")
	rep, err := h.deps.Repo.GetReport(r.Context(), GetTenantID(r.Context()), reportID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get report", "id", reportID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to get report")
		return
	}

	writeJSON(w, r, http.StatusOK, rep)
}

// SubmitReport handles POST /reports/{id}/submit.
func (h *Handler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	if h.deps.Submitter == nil {
		writeError(w, r, http.StatusServiceUnavailable, "report submission not available")
		return
	}

	reportID := chi.URLParam(r, "id")
	receipt, err := h.deps.Submitter.Submit(r.Context(), GetTenantID(r.Context()), reportID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		h.logger.Error("report submission failed", "id", reportID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "report submission failed")
		return
	}

	writeJSON(w, r, http.StatusOK, receipt)
}

// SubmissionStatus handles GET /reports/submissions/{id}.
func (h *Handler) SubmissionStatus(w http.ResponseWriter, r *http.Request) {
	if h.deps.Submitter == nil {
		writeError(w, r, http.StatusServiceUnavailable, "report submission not available")
		return
	}

	st, err := h.deps.Submitter.Status(chi.URLParam(r, "id"))
	if errors.Is(err, report.ErrUnknownSubmission) {
		writeError(w, r, http.StatusNotFound, "submission not found")
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to check status")
		return
	}

	writeJSON(w, r, http.StatusOK, st)
}

// ReportTemplate handles GET /reports/template.
func (h *Handler) ReportTemplate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, report.Template())
}

// Dashboard handles GET /dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if h.deps.Repo == nil {
		writeError(w, r, http.StatusServiceUnavailable, "repository not available")
		return
	}

	summary, err := report.Dashboard(r.Context(), h.deps.Repo, GetTenantID(r.Context()), report.DefaultRecentFrauds)
	if err != nil {
		h.logger.Error("failed to build dashboard", "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to build dashboard")
		return
	}

	writeJSON(w, r, http.StatusOK, summary)
}

// ListRules handles GET /rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"compliance": rules.ComplianceCatalog(),
	}
	if h.deps.FraudRules != nil {
		resp[domain.RuleSetFraud] = h.deps.FraudRules.Rules()
	}
	if h.deps.RiskRules != nil {
		resp[domain.RuleSetRisk] = h.deps.RiskRules.Rules()
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"

	if h.deps.Repo != nil {
		if err := h.deps.Repo.Ping(ctx); err != nil {
			status = "degraded"
		}
	}
	if h.deps.Cache != nil {
		if err := h.deps.Cache.Ping(ctx); err != nil {
			status = "degraded"
		}
	}
	if h.deps.Bus != nil {
		if err := h.deps.Bus.Ping(ctx); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.deps.Version,
	})
}

// Ready reports whether the server can take traffic: the repository, when
// configured, must answer.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.deps.Repo != nil {
		if err := h.deps.Repo.Ping(r.Context()); err != nil {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"ready": "false"})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"ready": "true"})
}

// historyRequest checks the repository and parses ?limit=N.
func (h *Handler) historyRequest(w http.ResponseWriter, r *http.Request) (int, bool) {
	if h.deps.Repo == nil {
		writeError(w, r, http.StatusServiceUnavailable, "repository not available")
		return 0, false
	}

	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultHistoryLimit, true
	}
	limit, err := cast.ToIntE(raw)
	if err != nil || limit <= 0 {
		writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return min(limit, maxHistoryLimit), true
}

func (h *Handler) writeList(w http.ResponseWriter, r *http.Request, what string, items any, err error) {
	if err != nil {
		h.logger.Error("failed to list "+what, "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to list "+what)
		return
	}
	writeJSON(w, r, http.StatusOK, items)
}

func (h *Handler) publish(r *http.Request, topic string, v any) {
	if h.deps.Bus == nil {
		return
	}
	if err := bus.PublishJSON(r.Context(), h.deps.Bus, GetTenantID(r.Context()), topic, v); err != nil {
		h.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}
