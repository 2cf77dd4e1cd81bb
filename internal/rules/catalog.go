package rules

import (
	"strings"

	"github.com/opensource-finance/riskiq/internal/domain"
)

// DefaultRuleID is returned when no catalog keyword matches a clause.
const DefaultRuleID = "General RBI Guidelines for Digital Lending"

// NeutralRuleID labels clauses the classifier considers out of regulatory scope.
const NeutralRuleID = "General RBI Guidelines"

var nonCompliantKeywords = []string{
	"24% interest",
	"compounded daily",
	"no cooling period",
	"no disclosure",
	"hidden charges",
	"no consent",
	"automatic renewal",
	"no grievance",
	"force recovery",
	"coercive",
	"unreasonable",
	"24%",
	"30%",
	"40%",
	"penalty",
	"excessive fee",
	"processing charge",
	"hidden cost",
}

// Order matters: the first matching keyword wins.
var complianceCatalog = []domain.CatalogEntry{
	{Keyword: "interest rate", RuleID: "RBI/2022-23/123 - Fair Practices on Interest Rate Caps"},
	{Keyword: "cooling period", RuleID: "RBI/2022-23/111 - Borrower Exit Options"},
	{Keyword: "disclosure", RuleID: "RBI/2021-22/55 - Transparency and Disclosure Standards"},
	{Keyword: "consent", RuleID: "RBI/2021-22/89 - Customer Consent Requirements"},
	{Keyword: "recovery", RuleID: "RBI/2020-21/47 - Fair Recovery Practices"},
	{Keyword: "credit report", RuleID: "RBI/2019-20/73 - Credit Information Reporting"},
	{Keyword: "grievance", RuleID: "RBI/2021-22/97 - Grievance Redressal Mechanism"},
	{Keyword: "kyc", RuleID: "RBI/2019-20/138 - KYC Requirements for Lending"},
	{Keyword: "processing fee", RuleID: "RBI/2020-21/60 - Fee Structure Guidelines"},
	{Keyword: "penalty", RuleID: "RBI/2022-23/45 - Penalty and Late Payment Guidelines"},
}

// NonCompliantKeywords returns a copy of the non-compliance keyword list.
func NonCompliantKeywords() []string {
	out := make([]string, len(nonCompliantKeywords))
	copy(out, nonCompliantKeywords)
	return out
}

// ComplianceCatalog returns a copy of the ordered keyword to rule table.
func ComplianceCatalog() []domain.CatalogEntry {
	out := make([]domain.CatalogEntry, len(complianceCatalog))
	copy(out, complianceCatalog)
	return out
}

// MatchNonCompliant returns the non-compliance keywords found in text.
// Matching is case-insensitive.
func MatchNonCompliant(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range nonCompliantKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// RelevantRule returns the regulatory rule identifier for a clause.
func RelevantRule(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range complianceCatalog {
		if strings.Contains(lower, entry.Keyword) {
			return entry.RuleID
		}
	}
	return DefaultRuleID
}
