package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/opensource-finance/riskiq/internal/domain"
)

// Scheduler generates the monthly summary for each tenant on a cron schedule.
type Scheduler struct {
	generator *Generator
	tenants   []string
	cron      *cron.Cron
	logger    *slog.Logger
	now       func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	started bool
}

// NewScheduler parses schedule, a six-field cron expression with seconds,
// and registers the monthly summary job. Empty tenants means the default tenant.
func NewScheduler(generator *Generator, schedule string, tenants []string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(tenants) == 0 {
		tenants = []string{domain.DefaultTenantID}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		generator: generator,
		tenants:   tenants,
		cron:      cron.New(cron.WithSeconds()),
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(s.ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid report schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running the schedule.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("report scheduler already started")
	}

	s.cron.Start()
	s.started = true
	s.logger.Info("report scheduler started", "tenants", len(s.tenants))
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}

	s.cancel()
	<-s.cron.Stop().Done()
	s.started = false
	s.logger.Info("report scheduler stopped")
}

// RunOnce generates the summary for the previous calendar month for every
// tenant. A failing tenant does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) []*domain.RegulatoryReport {
	period := PreviousMonth(s.now())

	var reports []*domain.RegulatoryReport
	for _, tenantID := range s.tenants {
		report, err := s.generator.Generate(ctx, tenantID, Request{
			ReportType:   domain.ReportMonthlySummary,
			ReportPeriod: period,
		})
		if err != nil {
			s.logger.Error("scheduled report failed",
				"tenant_id", tenantID,
				"period", period,
				"error", err,
			)
			continue
		}
		reports = append(reports, report)
	}
	return reports
}

// PreviousMonth formats the calendar month before t as "2006-01".
func PreviousMonth(t time.Time) string {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first.AddDate(0, -1, 0).Format("2006-01")
}
