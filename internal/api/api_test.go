package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/riskiq/internal/bus"
	"github.com/opensource-finance/riskiq/internal/cache"
	"github.com/opensource-finance/riskiq/internal/compliance"
	"github.com/opensource-finance/riskiq/internal/domain"
	"github.com/opensource-finance/riskiq/internal/fraud"
	"github.com/opensource-finance/riskiq/internal/metrics"
	"github.com/opensource-finance/riskiq/internal/report"
	"github.com/opensource-finance/riskiq/internal/repository"
	"github.com/opensource-finance/riskiq/internal/risk"
	"github.com/opensource-finance/riskiq/internal/rules"
	"github.com/opensource-finance/riskiq/internal/worker"
)

const agreement = "The borrower shall repay the loan in 12 monthly installments. " +
	"The lender may charge hidden charges without notice to the borrower."

type testEnv struct {
	server *Server
	deps   Dependencies
	worker *worker.Worker
}

// createTestServer wires the API against in-memory storage, cache and bus.
func createTestServer(t *testing.T) *testEnv {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	memCache := cache.NewMemoryCache(time.Minute, time.Minute)
	eventBus := bus.NewChannelBus(100, nil)
	t.Cleanup(func() { eventBus.Close() })

	fraudRules, err := rules.LoadEngine(rules.NewFraudEngine, "", rules.DefaultFraudRules())
	if err != nil {
		t.Fatalf("failed to load fraud rules: %v", err)
	}
	riskRules, err := rules.LoadEngine(rules.NewRiskEngine, "", rules.DefaultRiskRules())
	if err != nil {
		t.Fatalf("failed to load risk rules: %v", err)
	}

	collector := metrics.NewCollector(nil)
	analyzer := compliance.NewAnalyzer(nil, 4, nil, collector)
	jobs := worker.NewJobStore(memCache, time.Minute)

	deps := Dependencies{
		Repo:       repo,
		Cache:      memCache,
		Bus:        eventBus,
		Compliance: analyzer,
		Fraud:      fraud.NewScorer(fraudRules, fraud.WithMetrics(collector)),
		Risk:       risk.NewScorer(riskRules, risk.WithMetrics(collector)),
		FraudRules: fraudRules,
		RiskRules:  riskRules,
		Reports:    report.NewGenerator(repo, "RiskIQ Client", report.WithMetrics(collector), report.WithBus(eventBus)),
		Submitter:  report.NewSubmitter(repo, nil, nil),
		Jobs:       jobs,
		JobTenants: []string{"tenant-jobs"},
		Metrics:    collector,
		Version:    "test-v1",
	}

	w := worker.NewWorker(eventBus, repo, analyzer, jobs, nil)

	cfg := domain.ServerConfig{Host: "localhost", Port: 8080, ReadTimeout: 30, WriteTimeout: 30}
	return &testEnv{server: NewServer(cfg, deps), deps: deps, worker: w}
}

func (e *testEnv) do(t *testing.T, method, path, tenantID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf *bytes.Buffer
	switch b := body.(type) {
	case nil:
		buf = &bytes.Buffer{}
	case string:
		buf = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		buf = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if tenantID != "" {
		req.Header.Set(TenantIDHeader, tenantID)
	}
	rr := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
}

func TestComplianceEndpoints(t *testing.T) {
	env := createTestServer(t)

	t.Run("Analyze", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/compliance/analyze", "tenant-001", DocumentRequest{
			DocumentText: agreement,
			DocumentName: "agreement.txt",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var verdict domain.ComplianceVerdict
		decode(t, rr, &verdict)
		if verdict.OverallCompliance != domain.OverallPartial {
			t.Errorf("expected Partial, got %s", verdict.OverallCompliance)
		}
		if verdict.CompliantCount != 1 || verdict.NonCompliantCount != 1 {
			t.Errorf("unexpected counts: %+v", verdict)
		}
		if verdict.ID == "" {
			t.Error("expected stored verdict id")
		}
	})

	t.Run("History", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/compliance/history?limit=5", "tenant-001", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var verdicts []domain.ComplianceVerdict
		decode(t, rr, &verdicts)
		if len(verdicts) != 1 || verdicts[0].FileName != "agreement.txt" {
			t.Errorf("unexpected history: %+v", verdicts)
		}

		rr = env.do(t, http.MethodGet, "/compliance/history", "tenant-002", nil)
		decode(t, rr, &verdicts)
		if len(verdicts) != 0 {
			t.Errorf("tenant-002 sees tenant-001 history: %+v", verdicts)
		}
	})

	t.Run("DefaultTenant", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/compliance/analyze", "", DocumentRequest{DocumentText: "The lender shall disclose all fees."})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var verdict domain.ComplianceVerdict
		decode(t, rr, &verdict)
		if verdict.TenantID != domain.DefaultTenantID {
			t.Errorf("expected default tenant, got %q", verdict.TenantID)
		}
		if verdict.FileName != "document.txt" {
			t.Errorf("expected default document name, got %q", verdict.FileName)
		}
	})

	t.Run("Rejections", func(t *testing.T) {
		cases := map[string]string{
			"empty":   `{"documentText":"   "}`,
			"pdf":     `{"documentText":"%PDF-1.7 binary"}`,
			"invalid": `not-json`,
		}
		for name, body := range cases {
			rr := env.do(t, http.MethodPost, "/compliance/analyze", "tenant-001", body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("%s: expected status 400, got %d", name, rr.Code)
			}
		}
	})

	t.Run("InvalidLimit", func(t *testing.T) {
		for _, limit := range []string{"abc", "0", "-3"} {
			rr := env.do(t, http.MethodGet, "/compliance/history?limit="+limit, "tenant-001", nil)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("limit %s: expected status 400, got %d", limit, rr.Code)
			}
		}
	})
}

func TestComplianceJobs(t *testing.T) {
	env := createTestServer(t)
	if err := env.worker.Start(worker.Config{TenantIDs: []string{"tenant-jobs"}, WorkerCount: 2}); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer env.worker.Stop()

	rr := env.do(t, http.MethodPost, "/compliance/jobs", "tenant-jobs", DocumentRequest{
		DocumentText: agreement,
		DocumentName: "async.txt",
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	var job JobResponse
	decode(t, rr, &job)
	if job.JobID == "" || job.Status != worker.JobPending {
		t.Fatalf("unexpected job response: %+v", job)
	}

	deadline := time.Now().Add(2 * time.Second)
	var st worker.JobStatus
	for time.Now().Before(deadline) {
		rr = env.do(t, http.MethodGet, "/compliance/jobs/"+job.JobID, "tenant-jobs", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		decode(t, rr, &st)
		if st.Status != worker.JobPending {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if st.Status != worker.JobCompleted || st.VerdictID == "" {
		t.Fatalf("job did not complete: %+v", st)
	}

	rr = env.do(t, http.MethodGet, "/compliance/jobs/unknown", "tenant-jobs", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/compliance/jobs", "tenant-jobs", `{"documentText":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}

	t.Run("UnservedTenant", func(t *testing.T) {
		for _, tenantID := range []string{"acme", ""} {
			rr := env.do(t, http.MethodPost, "/compliance/jobs", tenantID, DocumentRequest{DocumentText: agreement})
			if rr.Code != http.StatusServiceUnavailable {
				t.Errorf("tenant %q: expected status 503, got %d: %s", tenantID, rr.Code, rr.Body.String())
			}
		}
	})
}

func TestFraudEndpoints(t *testing.T) {
	env := createTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	alerts := make(chan *domain.Message, 1)
	_, err := env.deps.Bus.Subscribe(ctx, "tenant-001", domain.TopicFraudAlert, func(_ context.Context, msg *domain.Message) error {
		alerts <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	rr := env.do(t, http.MethodPost, "/fraud/score", "tenant-001", domain.Applicant{
		Name:         "Ravi Kumar",
		GovernmentID: "ABCDE1234F",
		Mobile:       "98765",
		Behavior:     "mismatched documents, multiple IPs",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var a domain.FraudAssessment
	decode(t, rr, &a)
	if a.Score != 75 || a.Risk != domain.RiskHigh || !a.IsFraudulent {
		t.Errorf("unexpected assessment: %+v", a)
	}

	select {
	case <-alerts:
	case <-time.After(time.Second):
		t.Error("expected fraud alert event")
	}

	rr = env.do(t, http.MethodGet, "/fraud/history", "tenant-001", nil)
	var history []domain.FraudAssessment
	decode(t, rr, &history)
	if len(history) != 1 || history[0].SubjectName != "Ravi Kumar" {
		t.Errorf("unexpected history: %+v", history)
	}

	for _, body := range []string{`{"name":"Only Name"}`, `{"governmentId":"ABCDE1234F"}`} {
		rr = env.do(t, http.MethodPost, "/fraud/score", "tenant-001", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", body, rr.Code)
		}
	}
}

func TestRiskEndpoints(t *testing.T) {
	env := createTestServer(t)

	rr := env.do(t, http.MethodPost, "/risk/score", "tenant-001", `{
		"name": "Karan Mehta",
		"age": 22,
		"income": 250000,
		"creditScore": 580,
		"employmentStatus": "unemployed",
		"existingLoans": "multiple"
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var a domain.RiskAssessment
	decode(t, rr, &a)
	if a.RiskScore != 100 || a.RiskLevel != domain.RiskHigh || a.InterestRateRange != "16%-18%" {
		t.Errorf("unexpected assessment: %+v", a)
	}

	rr = env.do(t, http.MethodGet, "/risk/history?limit=1", "tenant-001", nil)
	var history []domain.RiskAssessment
	decode(t, rr, &history)
	if len(history) != 1 || history[0].Borrower != "Karan Mehta" {
		t.Errorf("unexpected history: %+v", history)
	}

	rr = env.do(t, http.MethodPost, "/risk/score", "tenant-001", `{"age": 30}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestReportEndpoints(t *testing.T) {
	env := createTestServer(t)

	rr := env.do(t, http.MethodPost, "/reports", "tenant-001", report.Request{
		ReportType:   domain.ReportMonthlySummary,
		ReportPeriod: "2026-09",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var rep domain.RegulatoryReport
	decode(t, rr, &rep)
	if rep.ID == "" || rep.SubmissionStatus != domain.ReportGenerated {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if rep.Format["complianceScore"] != float64(100) {
		t.Errorf("expected compliance score 100 for an empty tenant, got %v", rep.Format["complianceScore"])
	}

	rr = env.do(t, http.MethodGet, "/reports/"+rep.ID, "tenant-001", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/reports/"+rep.ID, "tenant-002", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for another tenant, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/reports", "tenant-001", nil)
	var reports []domain.RegulatoryReport
	decode(t, rr, &reports)
	if len(reports) != 1 {
		t.Errorf("expected 1 report, got %d", len(reports))
	}

	rr = env.do(t, http.MethodPost, "/reports/"+rep.ID+"/submit", "tenant-001", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var receipt domain.Submission
	decode(t, rr, &receipt)
	if !strings.HasPrefix(receipt.SubmissionID, "RBI-") || receipt.Status != report.StatusUnderReview {
		t.Errorf("unexpected receipt: %+v", receipt)
	}

	rr = env.do(t, http.MethodGet, "/reports/submissions/"+receipt.SubmissionID, "tenant-001", nil)
	var st domain.Submission
	decode(t, rr, &st)
	if st.Status != report.StatusUnderReview {
		t.Errorf("expected Under Review, got %s", st.Status)
	}

	cases := []struct {
		method, path string
		body         any
		want         int
	}{
		{http.MethodGet, "/reports/submissions/bogus", nil, http.StatusNotFound},
		{http.MethodPost, "/reports/missing/submit", nil, http.StatusNotFound},
		{http.MethodGet, "/reports/missing", nil, http.StatusNotFound},
		{http.MethodPost, "/reports", `{"reportType":""}`, http.StatusBadRequest},
		{http.MethodGet, "/reports/template", nil, http.StatusOK},
	}
	for _, tc := range cases {
		rr := env.do(t, tc.method, tc.path, "tenant-001", tc.body)
		if rr.Code != tc.want {
			t.Errorf("%s %s: expected status %d, got %d", tc.method, tc.path, tc.want, rr.Code)
		}
	}
}

func TestDashboardAndRules(t *testing.T) {
	env := createTestServer(t)

	env.do(t, http.MethodPost, "/fraud/score", "", domain.Applicant{Name: "Asha Rao", GovernmentID: "PQRST6789K", Mobile: "9876543210"})

	rr := env.do(t, http.MethodGet, "/dashboard", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var summary report.Summary
	decode(t, rr, &summary)
	if summary.FraudStats.Total != 1 || len(summary.RecentFrauds) != 1 {
		t.Errorf("unexpected dashboard: %+v", summary)
	}

	rr = env.do(t, http.MethodGet, "/rules", "", nil)
	var ruleSets map[string][]json.RawMessage
	decode(t, rr, &ruleSets)
	for _, key := range []string{"compliance", domain.RuleSetFraud, domain.RuleSetRisk} {
		if len(ruleSets[key]) == 0 {
			t.Errorf("expected %s rules", key)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := createTestServer(t)

	rr := env.do(t, http.MethodGet, "/health", "", nil)
	var health map[string]string
	decode(t, rr, &health)
	if health["status"] != "healthy" || health["version"] != "test-v1" {
		t.Errorf("unexpected health: %+v", health)
	}

	rr = env.do(t, http.MethodGet, "/ready", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected ready, got %d", rr.Code)
	}

	env.do(t, http.MethodGet, "/rules", "", nil)
	rr = env.do(t, http.MethodGet, "/metrics", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `riskiq_http_requests_total{method="GET",route="/rules",status="200"}`) {
		t.Errorf("expected request counter for /rules in metrics output")
	}
}

func TestMiddleware(t *testing.T) {
	env := createTestServer(t)

	t.Run("RequestID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rr := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rr, req)

		if rr.Header().Get(RequestIDHeader) != "req-123" {
			t.Errorf("expected request id echoed, got %q", rr.Header().Get(RequestIDHeader))
		}
		if rr.Header().Get(TraceIDHeader) == "" {
			t.Error("expected trace id header")
		}
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/fraud/score", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rr, req)

		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("unexpected allow origin %q", got)
		}
	})

	t.Run("Recover", func(t *testing.T) {
		h := RecoverMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})
}

func TestUnavailableDependencies(t *testing.T) {
	server := NewServer(domain.ServerConfig{}, Dependencies{Version: "bare"})

	for _, path := range []string{"/compliance/history", "/dashboard", "/reports/x", "/compliance/jobs/x"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected status 503, got %d", path, rr.Code)
		}
	}
}
