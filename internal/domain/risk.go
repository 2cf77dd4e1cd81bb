package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employment statuses.
const (
	EmploymentEmployed     = "employed"
	EmploymentSelfEmployed = "self-employed"
	EmploymentUnemployed   = "unemployed"
	EmploymentStudent      = "student"
)

// Existing-loan categories.
const (
	LoansNone     = "none"
	LoansSingle   = "single"
	LoansMultiple = "multiple"
)

// Borrower holds the financial and alternative-data fields scored for loan risk.
type Borrower struct {
	ApplicationID       string  `json:"applicationId,omitempty"`
	Name                string  `json:"name"`
	Age                 int     `json:"age"`
	AnnualIncome        float64 `json:"income"`
	EmploymentStatus    string  `json:"employmentStatus,omitempty"`
	CreditScore         int     `json:"creditScore"`
	ExistingLoans       string  `json:"existingLoans,omitempty"`
	LoanAmount          float64 `json:"loanAmount,omitempty"`
	Purpose             string  `json:"purpose,omitempty"`
	SocialMediaPresence string  `json:"socialMediaPresence,omitempty"`
	EcommerceActivity   string  `json:"ecommerceActivity,omitempty"`
}

// RiskAssessment is the scored outcome for a borrower.
type RiskAssessment struct {
	ID                string          `json:"id,omitempty"`
	TenantID          string          `json:"tenantId,omitempty"`
	ApplicationID     string          `json:"applicationId,omitempty"`
	Borrower          string          `json:"borrower"`
	RiskScore         int             `json:"riskScore"`
	RiskLevel         RiskLevel       `json:"riskLevel"`
	Factors           []string        `json:"factors"`
	MaxLoanAmount     string          `json:"maxLoanAmount"`
	MaxLoanValue      decimal.Decimal `json:"maxLoanValue"`
	InterestRateRange string          `json:"interestRateRange"`
	Recommendations   []string        `json:"recommendations"`
	RequestedAmount   float64         `json:"requestedAmount,omitempty"`
	Source            string          `json:"source,omitempty"`
	CreatedAt         time.Time       `json:"createdAt,omitempty"`
}

// LoanRisk maps a clamped loan-risk score to its tier.
func LoanRisk(score int) RiskLevel {
	switch {
	case score < 30:
		return RiskLow
	case score < 70:
		return RiskMedium
	default:
		return RiskHigh
	}
}
