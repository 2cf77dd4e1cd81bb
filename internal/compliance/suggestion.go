package compliance

import (
	"regexp"
	"strings"
)

var percentage = regexp.MustCompile(`\d+%`)

const (
	recoverySuggestion = "The lender shall follow non-coercive recovery practices as per RBI Fair Practices Code, avoiding harassment, intimidation, or unusual hours for recovery."
	feeSuggestion      = "All fees and charges must be disclosed upfront to the borrower in the Key Fact Statement as specified by RBI's transparency guidelines."
	coolingSuggestion  = "The borrower shall be provided a cooling-off period of at least 5 days to exit the loan by paying the principal and proportionate interest without any penalty."
	consentSuggestion  = "The lender shall obtain explicit consent from the borrower before collecting, processing, or sharing any personal data, in compliance with RBI's data privacy guidelines."
	genericSuggestion  = "This clause should be revised to comply with RBI regulations, ensuring fair treatment of customers, transparent disclosure of terms, and avoiding any coercive practices."

	interestCapNote = " as per RBI guidelines on interest rate caps."
	capRate         = "18%"
)

// RuleBasedSuggestion returns a compliant rewrite using the first matching
// template. Only the first percentage in an interest clause is replaced.
func RuleBasedSuggestion(text string) string {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "interest") && percentage.MatchString(lower):
		replaced := false
		rewritten := percentage.ReplaceAllStringFunc(text, func(m string) string {
			if replaced {
				return m
			}
			replaced = true
			return capRate
		})
		return rewritten + interestCapNote
	case containsAny(lower, "recover", "collection"):
		return recoverySuggestion
	case containsAny(lower, "fee", "charge", "processing"):
		return feeSuggestion
	case containsAny(lower, "cooling", "exit", "withdraw"):
		return coolingSuggestion
	case containsAny(lower, "data", "privacy", "consent"):
		return consentSuggestion
	default:
		return genericSuggestion
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
