package domain

import "time"

// ClauseStatus is the verdict assigned to a single clause.
type ClauseStatus string

const (
	ClauseCompliant    ClauseStatus = "compliant"
	ClauseNonCompliant ClauseStatus = "non-compliant"
	ClauseError        ClauseStatus = "error"
)

// OverallCompliance is the document-level verdict.
type OverallCompliance string

const (
	OverallCompliant    OverallCompliance = "Compliant"
	OverallPartial      OverallCompliance = "Partial"
	OverallNonCompliant OverallCompliance = "Non-compliant"
)

// Verdict sources.
const (
	SourceRules = "rules"
	SourceModel = "model"
)

// Clause is one segmented unit of a loan agreement and its classification.
type Clause struct {
	ID         int          `json:"id"`
	Text       string       `json:"text"`
	Status     ClauseStatus `json:"status"`
	Rule       string       `json:"rule,omitempty"`
	Suggestion string       `json:"suggestion,omitempty"`
	Confidence float64      `json:"confidence"`
	Note       string       `json:"note,omitempty"`
	Error      string       `json:"error,omitempty"`

	// Source records which tier produced the verdict.
	Source string `json:"source,omitempty"`
}

// ComplianceVerdict aggregates the clause verdicts of one document.
type ComplianceVerdict struct {
	ID                string            `json:"id,omitempty"`
	TenantID          string            `json:"tenantId,omitempty"`
	FileName          string            `json:"fileName"`
	OverallCompliance OverallCompliance `json:"overallCompliance"`
	CompliantCount    int               `json:"compliantCount"`
	NonCompliantCount int               `json:"nonCompliantCount"`
	Clauses           []Clause          `json:"clauses"`
	CreatedAt         time.Time         `json:"createdAt,omitempty"`
}

// Overall derives the document verdict from clause counts.
// Clauses in error count toward neither side.
func Overall(compliant, nonCompliant int) OverallCompliance {
	switch {
	case nonCompliant > 0 && nonCompliant > compliant:
		return OverallNonCompliant
	case nonCompliant > 0:
		return OverallPartial
	default:
		return OverallCompliant
	}
}

// NewComplianceVerdict tallies clauses into a verdict.
func NewComplianceVerdict(fileName string, clauses []Clause) *ComplianceVerdict {
	v := &ComplianceVerdict{
		FileName: fileName,
		Clauses:  clauses,
	}
	if v.Clauses == nil {
		v.Clauses = []Clause{}
	}
	for _, c := range clauses {
		switch c.Status {
		case ClauseCompliant:
			v.CompliantCount++
		case ClauseNonCompliant:
			v.NonCompliantCount++
		}
	}
	v.OverallCompliance = Overall(v.CompliantCount, v.NonCompliantCount)
	return v
}

// Issues returns the non-compliant clauses in document order.
func (v *ComplianceVerdict) Issues() []Clause {
	var issues []Clause
	for _, c := range v.Clauses {
		if c.Status == ClauseNonCompliant {
			issues = append(issues, c)
		}
	}
	return issues
}
