package report

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/opensource-finance/riskiq/internal/domain"
)

// DefaultRecentFrauds is how many recent fraud assessments the dashboard shows.
const DefaultRecentFrauds = 10

// RecentFraud is one row of the dashboard's recent fraud feed.
type RecentFraud struct {
	Name  string           `json:"name"`
	Score int              `json:"score"`
	Risk  domain.RiskLevel `json:"risk"`
	Time  time.Time        `json:"time"`
}

// FraudStats counts fraud assessments per tier.
type FraudStats struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	Total  int `json:"total"`
}

// Summary is the dashboard view of a tenant.
type Summary struct {
	RecentFrauds       []RecentFraud `json:"recent_frauds"`
	FraudStats         FraudStats    `json:"fraud_stats"`
	CompliancePassRate float64       `json:"compliance_pass_rate"`
	LastUpdated        time.Time     `json:"last_updated"`
}

// Dashboard summarises a tenant's stored assessments.
func Dashboard(ctx context.Context, repo domain.Repository, tenantID string, recent int) (*Summary, error) {
	if recent <= 0 {
		recent = DefaultRecentFrauds
	}

	frauds, err := repo.ListFraudAssessments(ctx, tenantID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load fraud assessments: %w", err)
	}
	verdicts, err := repo.ListComplianceVerdicts(ctx, tenantID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load compliance verdicts: %w", err)
	}

	s := &Summary{
		RecentFrauds: make([]RecentFraud, 0, min(recent, len(frauds))),
		LastUpdated:  time.Now().UTC(),
	}
	for i, f := range frauds {
		if i < recent {
			s.RecentFrauds = append(s.RecentFrauds, RecentFraud{
				Name:  f.SubjectName,
				Score: f.Score,
				Risk:  f.Risk,
				Time:  f.CreatedAt,
			})
		}
		switch f.Risk {
		case domain.RiskHigh:
			s.FraudStats.High++
		case domain.RiskMedium:
			s.FraudStats.Medium++
		default:
			s.FraudStats.Low++
		}
		s.FraudStats.Total++
	}

	s.CompliancePassRate = passRate(verdicts)
	return s, nil
}

// passRate is the share of Compliant documents as a percentage with one
// decimal. No documents counts as fully passing.
func passRate(verdicts []*domain.ComplianceVerdict) float64 {
	if len(verdicts) == 0 {
		return 100
	}
	passed := 0
	for _, v := range verdicts {
		if v.OverallCompliance == domain.OverallCompliant {
			passed++
		}
	}
	return math.Round(float64(passed)/float64(len(verdicts))*1000) / 10
}
