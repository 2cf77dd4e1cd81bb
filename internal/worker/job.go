package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/riskiq/internal/domain"
)

// Job states.
const (
	JobPending   = "pending"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// ErrJobNotFound is returned for unknown or expired job ids.
var ErrJobNotFound = errors.New("job not found")

// ComplianceJob is the payload of a compliance analysis request.
type ComplianceJob struct {
	JobID        string    `json:"jobId"`
	TenantID     string    `json:"tenantId"`
	DocumentName string    `json:"documentName"`
	DocumentText string    `json:"documentText"`
	RequestedAt  time.Time `json:"requestedAt"`
}

// JobStatus is the tracked state of a job and, once done, its outcome.
type JobStatus struct {
	JobID             string                   `json:"jobId"`
	Status            string                   `json:"status"`
	VerdictID         string                   `json:"verdictId,omitempty"`
	OverallCompliance domain.OverallCompliance `json:"overallCompliance,omitempty"`
	CompliantCount    int                      `json:"compliantCount"`
	NonCompliantCount int                      `json:"nonCompliantCount"`
	Error             string                   `json:"error,omitempty"`
	UpdatedAt         time.Time                `json:"updatedAt"`
}

// JobStore keeps job status in the cache layer for ttl.
type JobStore struct {
	cache domain.Cache
	ttl   time.Duration
}

// NewJobStore creates a job store. ttl defaults to 24h.
func NewJobStore(cache domain.Cache, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JobStore{cache: cache, ttl: ttl}
}

// Put records the status of a job.
func (s *JobStore) Put(ctx context.Context, tenantID string, st JobStatus) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode job status: %w", err)
	}
	return s.cache.Set(ctx, tenantID, jobKey(st.JobID), data, s.ttl)
}

// Get returns the status of a job.
func (s *JobStore) Get(ctx context.Context, tenantID, jobID string) (*JobStatus, error) {
	data, err := s.cache.Get(ctx, tenantID, jobKey(jobID))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrJobNotFound
	}
	var st JobStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode job status: %w", err)
	}
	return &st, nil
}

func jobKey(jobID string) string {
	return "job:" + jobID
}
