package domain

import "time"

// RiskLevel is a Low/Medium/High tier derived from a numeric score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Applicant holds the identity and behavioural fields scored for fraud.
type Applicant struct {
	ApplicationID  string `json:"applicationId,omitempty"`
	Name           string `json:"name"`
	GovernmentID   string `json:"governmentId"`
	Mobile         string `json:"mobile,omitempty"`
	Email          string `json:"email,omitempty"`
	IPAddress      string `json:"ipAddress,omitempty"`
	DeviceInfo     string `json:"deviceInfo,omitempty"`
	LoginFrequency int    `json:"loginFrequency,omitempty"`
	Behavior       string `json:"behavior,omitempty"`
}

// FraudAssessment is the scored outcome for an applicant.
type FraudAssessment struct {
	ID            string    `json:"id,omitempty"`
	TenantID      string    `json:"tenantId,omitempty"`
	ApplicationID string    `json:"applicationId,omitempty"`
	SubjectName   string    `json:"subjectName"`
	Score         int       `json:"score"`
	Risk          RiskLevel `json:"risk"`
	Flags         []string  `json:"flags"`
	IsFraudulent  bool      `json:"isFraudulent"`
	IPAddress     string    `json:"ipAddress,omitempty"`
	DeviceInfo    string    `json:"deviceInfo,omitempty"`
	LoginCount    int       `json:"loginFrequency,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// FraudRisk maps a clamped fraud score to its tier.
func FraudRisk(score int) RiskLevel {
	switch {
	case score > 70:
		return RiskHigh
	case score > 40:
		return RiskMedium
	default:
		return RiskLow
	}
}

// AddFlag appends a flag unless it is already present.
func (f *FraudAssessment) AddFlag(flag string) bool {
	for _, existing := range f.Flags {
		if existing == flag {
			return false
		}
	}
	f.Flags = append(f.Flags, flag)
	return true
}

// Clamp bounds a score to [0,100].
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
