package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/riskiq/internal/domain"
)

// Regulator-side submission states.
const (
	StatusUnderReview = "Under Review"
	StatusAccepted    = "Accepted"
	StatusRejected    = "Rejected"
)

const (
	submissionPrefix = "RBI-"
	reviewWindow     = 20 * time.Second
	submittedMessage = "Report received and queued for audit review."
)

// ErrUnknownSubmission is returned for submission ids that were not issued here.
var ErrUnknownSubmission = errors.New("unknown submission id")

// Submitter hands reports to the regulator gateway and reports their
// review status. The gateway is simulated: the outcome is derived from the
// submission timestamp.
type Submitter struct {
	repo   domain.Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewSubmitter creates a submitter. A nil clock uses time.Now.
func NewSubmitter(repo domain.Repository, now func() time.Time, logger *slog.Logger) *Submitter {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{repo: repo, now: now, logger: logger}
}

// Submit marks a stored report submitted and returns its receipt.
func (s *Submitter) Submit(ctx context.Context, tenantID, reportID string) (*domain.Submission, error) {
	at := s.now().UTC()
	submissionID := fmt.Sprintf("%s%d", submissionPrefix, at.UnixMilli())

	if err := s.repo.MarkReportSubmitted(ctx, tenantID, reportID, submissionID, at); err != nil {
		return nil, fmt.Errorf("failed to submit report %s: %w", reportID, err)
	}

	s.logger.Info("report submitted",
		"tenant_id", tenantID,
		"report_id", reportID,
		"submission_id", submissionID,
	)

	return &domain.Submission{
		SubmissionID: submissionID,
		ReportID:     reportID,
		Status:       StatusUnderReview,
		Message:      submittedMessage,
		Timestamp:    at,
	}, nil
}

// Status returns the review state of a submission. A submission stays under
// review for twenty seconds, then is accepted when the last digit of its
// millisecond timestamp is 5 or more and rejected otherwise.
func (s *Submitter) Status(submissionID string) (*domain.Submission, error) {
	millis, err := parseSubmissionID(submissionID)
	if err != nil {
		return nil, err
	}
	submitted := time.UnixMilli(millis).UTC()

	now := s.now().UTC()

	st := &domain.Submission{SubmissionID: submissionID, Timestamp: now}
	switch {
	case now.Sub(submitted) < reviewWindow:
		st.Status = StatusUnderReview
	case millis%10 >= 5:
		st.Status = StatusAccepted
	default:
		st.Status = StatusRejected
	}
	return st, nil
}

func parseSubmissionID(id string) (int64, error) {
	raw, ok := strings.CutPrefix(id, submissionPrefix)
	if !ok {
		return 0, ErrUnknownSubmission
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || millis <= 0 {
		return 0, ErrUnknownSubmission
	}
	return millis, nil
}

// Template describes the payload the regulator gateway expects.
func Template() map[string]any {
	return map[string]any{
		"fintech_id":       "string",
		"loan_document_id": "string",
		"compliance_score": "float (0-1)",
		"violations": []map[string]string{{
			"clause":        "string",
			"rule_code":     "string",
			"status":        "compliant/non_compliant",
			"suggested_fix": "string",
		}},
		"fraud_risk_score": "float",
		"loan_risk_score":  "float",
	}
}
