package rules

import "github.com/opensource-finance/riskiq/internal/domain"

// DefaultFraudRules returns the built-in applicant rule table.
// Every rule is its own group, so all matches add up.
func DefaultFraudRules() []*domain.ScoringRule {
	return []*domain.ScoringRule{
		{
			ID:          "fraud-id-format",
			Description: "Government ID does not match the PAN pattern",
			Expression:  `!government_id.matches('^[A-Z]{5}[0-9]{4}[A-Z]$')`,
			Points:      30,
			Reason:      "Invalid ID format",
			Enabled:     true,
		},
		{
			ID:          "fraud-mobile-format",
			Description: "Mobile supplied but not ten digits",
			Expression:  `mobile != '' && (size(mobile) != 10 || !mobile.matches('^[0-9]+$'))`,
			Points:      15,
			Reason:      "Invalid mobile number format",
			Enabled:     true,
		},
		{
			ID:          "fraud-multiple-ips",
			Description: "Behaviour mentions multiple IP addresses",
			Expression:  `behavior.contains('multiple IPs')`,
			Points:      25,
			Reason:      "Multiple IP addresses detected",
			Enabled:     true,
		},
		{
			ID:          "fraud-document-mismatch",
			Description: "Behaviour mentions mismatched documents",
			Expression:  `behavior.contains('mismatched documents')`,
			Points:      35,
			Reason:      "Document mismatch detected",
			Enabled:     true,
		},
		{
			ID:          "fraud-login-frequency",
			Description: "More than 20 logins in the observation window",
			Expression:  `login_frequency > 20`,
			Points:      20,
			Reason:      "Unusual login frequency",
			Enabled:     true,
		},
		{
			ID:          "fraud-repeat-submission",
			Description: "Same government ID submitted repeatedly within the velocity window",
			Expression:  `recent_submissions > 5`,
			Points:      10,
			Reason:      "Repeated applications with the same ID",
			Enabled:     false,
		},
	}
}

// DefaultRiskRules returns the built-in borrower rule table. Points are
// added to a baseline of 50. A non-empty Reason becomes a risk factor.
func DefaultRiskRules() []*domain.ScoringRule {
	return []*domain.ScoringRule{
		// age
		{ID: "risk-age-young", Group: "age", Expression: `age < 25`, Points: 10,
			Reason: "Young age profile increases risk", Enabled: true},
		{ID: "risk-age-senior", Group: "age", Expression: `age > 55`, Points: 5,
			Reason: "Age profile suggests potential retirement transition", Enabled: true},
		{ID: "risk-age-prime", Group: "age", Expression: `true`, Points: -5, Enabled: true},

		// income
		{ID: "risk-income-low", Group: "income", Expression: `income < 300000.0`, Points: 15,
			Reason: "Lower income bracket limits repayment capacity", Enabled: true},
		{ID: "risk-income-lower-mid", Group: "income", Expression: `income < 600000.0`, Points: 5, Enabled: true},
		{ID: "risk-income-upper-mid", Group: "income", Expression: `income < 1200000.0`, Points: -5, Enabled: true},
		{ID: "risk-income-high", Group: "income", Expression: `true`, Points: -15, Enabled: true},

		// credit score
		{ID: "risk-credit-poor", Group: "credit", Expression: `credit_score < 600`, Points: 25,
			Reason: "Poor credit history indicates previous repayment issues", Enabled: true},
		{ID: "risk-credit-below-average", Group: "credit", Expression: `credit_score < 700`, Points: 10,
			Reason: "Below average credit score", Enabled: true},
		{ID: "risk-credit-good", Group: "credit", Expression: `credit_score < 800`, Points: -10, Enabled: true},
		{ID: "risk-credit-excellent", Group: "credit", Expression: `true`, Points: -20, Enabled: true},

		// employment
		{ID: "risk-unemployed", Group: "employment", Expression: `employment == 'unemployed'`, Points: 25,
			Reason: "Unemployment significantly impacts repayment ability", Enabled: true},
		{ID: "risk-self-employed", Group: "employment", Expression: `employment == 'self-employed'`, Points: 5,
			Reason: "Self-employment income may be less stable", Enabled: true},
		{ID: "risk-employed", Group: "employment", Expression: `employment == 'employed'`, Points: -10, Enabled: true},

		// existing loans
		{ID: "risk-loans-multiple", Group: "loans", Expression: `existing_loans == 'multiple'`, Points: 15,
			Reason: "Multiple existing loans create additional financial burden", Enabled: true},
		{ID: "risk-loans-single", Group: "loans", Expression: `existing_loans == 'single'`, Points: 5, Enabled: true},

		// alternative data
		{ID: "risk-social-low", Group: "social", Expression: `social_presence in ['low', 'none']`, Points: 5, Enabled: true},
		{ID: "risk-social-high", Group: "social", Expression: `social_presence == 'high'`, Points: -5, Enabled: true},
		{ID: "risk-ecommerce-low", Group: "ecommerce", Expression: `ecommerce_activity in ['low', 'none']`, Points: 5, Enabled: true},
		{ID: "risk-ecommerce-high", Group: "ecommerce", Expression: `ecommerce_activity == 'high'`, Points: -5, Enabled: true},
		{ID: "risk-ecommerce-spending", Group: "ecommerce-spending", Expression: `ecommerce_activity == 'high'`, Points: 10,
			Reason: "High e-commerce activity may indicate impulsive spending", Enabled: true},
	}
}
