// Package worker runs compliance analyses requested over the event bus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/riskiq/internal/bus"
	"github.com/opensource-finance/riskiq/internal/compliance"
	"github.com/opensource-finance/riskiq/internal/domain"
)

// Worker consumes compliance job requests, analyses the document, stores
// the verdict and publishes a completion event.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	analyzer *compliance.Analyzer
	jobs     *JobStore
	logger   *slog.Logger

	queue         chan queued
	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	mu            sync.Mutex
}

type queued struct {
	tenantID string
	msg      *domain.Message
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs lists the tenants whose job topics are consumed.
	// Empty means only the default tenant.
	TenantIDs []string

	// WorkerCount is the number of concurrent analyses.
	WorkerCount int
}

// Tenants returns the tenants the worker consumes jobs for.
func (c Config) Tenants() []string {
	if len(c.TenantIDs) == 0 {
		return []string{domain.DefaultTenantID}
	}
	return c.TenantIDs
}

// NewWorker creates a worker. repo and jobs may be nil.
func NewWorker(eventBus domain.EventBus, repo domain.Repository, analyzer *compliance.Analyzer, jobs *JobStore, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      eventBus,
		repo:     repo,
		analyzer: analyzer,
		jobs:     jobs,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the job topic for every tenant and launches the pool.
func (w *Worker) Start(cfg Config) error {
	count := cfg.WorkerCount
	if count <= 0 {
		count = 1
	}
	tenants := cfg.Tenants()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.queue = make(chan queued, count*2)
	for i := 0; i < count; i++ {
		w.wg.Add(1)
		go w.run(i)
	}

	for _, tenantID := range tenants {
		tenantID := tenantID
		sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicComplianceRequested, func(ctx context.Context, msg *domain.Message) error {
			select {
			case w.queue <- queued{tenantID: tenantID, msg: msg}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			w.logger.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	if len(w.subscriptions) == 0 {
		return fmt.Errorf("worker subscribed to no tenants")
	}

	w.logger.Info("compliance workers started",
		"tenant_count", len(tenants),
		"worker_count", count,
		"topic", domain.TopicComplianceRequested,
	)
	return nil
}

func (w *Worker) run(n int) {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case q := <-w.queue:
			if err := w.process(w.ctx, q.tenantID, q.msg); err != nil {
				w.logger.Error("compliance job failed",
					"worker", n,
					"tenant_id", q.tenantID,
					"message_id", q.msg.ID,
					"error", err,
				)
			}
		}
	}
}

// process runs one job. A job that cannot be decoded is dropped. A storage
// failure still completes the job with status failed.
func (w *Worker) process(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var job ComplianceJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		return fmt.Errorf("failed to parse compliance job: %w", err)
	}
	if job.TenantID != "" {
		tenantID = job.TenantID
	}

	verdict := w.analyzer.Analyze(ctx, job.DocumentName, job.DocumentText)

	status := JobStatus{
		JobID:             job.JobID,
		Status:            JobCompleted,
		OverallCompliance: verdict.OverallCompliance,
		CompliantCount:    verdict.CompliantCount,
		NonCompliantCount: verdict.NonCompliantCount,
	}

	if w.repo != nil {
		if err := w.repo.SaveComplianceVerdict(ctx, tenantID, verdict); err != nil {
			status.Status = JobFailed
			status.Error = "failed to store verdict"
			w.logger.Error("failed to save compliance verdict",
				"job_id", job.JobID,
				"error", err,
			)
		}
	}
	status.VerdictID = verdict.ID

	if w.jobs != nil {
		if err := w.jobs.Put(ctx, tenantID, status); err != nil {
			w.logger.Warn("failed to record job status", "job_id", job.JobID, "error", err)
		}
	}

	if err := bus.PublishJSON(ctx, w.bus, tenantID, domain.TopicComplianceCompleted, status); err != nil {
		w.logger.Error("failed to publish compliance result",
			"job_id", job.JobID,
			"error", err,
		)
	}

	w.logger.Info("compliance job processed",
		"job_id", job.JobID,
		"tenant_id", tenantID,
		"overall", verdict.OverallCompliance,
		"clauses", len(verdict.Clauses),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Stop unsubscribes and waits for in-flight jobs to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe", "topic", sub.Topic(), "error", err)
		}
	}
	w.subscriptions = nil
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()

	w.logger.Info("compliance workers stopped")
	return nil
}

// Stats describes the active subscriptions.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
