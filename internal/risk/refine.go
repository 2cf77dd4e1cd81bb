package risk

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/opensource-finance/riskiq/internal/domain"
	"github.com/opensource-finance/riskiq/internal/inference"
)

var (
	jsonObject    = regexp.MustCompile(`\{[\s\S]*\}`)
	firstNumber   = regexp.MustCompile(`\d+(?:\.\d+)?`)
	sentenceBreak = regexp.MustCompile(`[.!?]+`)
)

var riskKeywords = []string{
	"age", "young", "income", "low income", "credit", "poor credit",
	"history", "employment", "unemployed", "temporary", "loans",
	"multiple loans", "debt", "existing debt",
}

var riskMarkers = []string{"risk", "concern", "factor"}

const maxFactors = 4

// Prompt renders the borrower profile sent to the risk generator.
func Prompt(b domain.Borrower, symbol string) string {
	var sb strings.Builder
	sb.WriteString("Analyze this borrower profile and predict the likelihood of loan default on a scale of 0 (no risk) to 1 (very risky):\n\n")
	fmt.Fprintf(&sb, "Age: %d\n", b.Age)
	fmt.Fprintf(&sb, "Annual Income: %s%s\n", symbol, strconv.FormatFloat(b.AnnualIncome, 'f', -1, 64))
	fmt.Fprintf(&sb, "Social Score: %s\n", orDefault(b.SocialMediaPresence, "Medium"))
	fmt.Fprintf(&sb, "E-commerce Activity: %s\n", orDefault(b.EcommerceActivity, "Medium"))
	fmt.Fprintf(&sb, "Credit History: %s\n", creditHistory(b.CreditScore))
	fmt.Fprintf(&sb, "Employment Status: %s\n", orDefault(b.EmploymentStatus, "Not specified"))
	fmt.Fprintf(&sb, "Existing Loans: %s\n", orDefault(b.ExistingLoans, "None"))
	if b.LoanAmount > 0 {
		fmt.Fprintf(&sb, "Requested Loan Amount: %s%s\n", symbol, strconv.FormatFloat(b.LoanAmount, 'f', -1, 64))
	} else {
		sb.WriteString("Requested Loan Amount: Not specified\n")
	}
	fmt.Fprintf(&sb, "Loan Purpose: %s\n", orDefault(b.Purpose, "Not specified"))
	return sb.String()
}

func creditHistory(score int) string {
	switch {
	case score < 650:
		return "Poor"
	case score < 750:
		return "Fair"
	default:
		return "Good"
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

type modelVerdict struct {
	RiskScore *float64 `json:"riskScore"`
	Factors   []string `json:"factors"`
}

// ParseModelOutput extracts a 0-100 score and factors from generated text.
// A JSON object must carry riskScore in [0,100]; otherwise the first number
// is read as a default probability in [0,1].
func ParseModelOutput(text string) (int, []string, error) {
	if raw := jsonObject.FindString(text); raw != "" {
		var v modelVerdict
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return 0, nil, fmt.Errorf("%w: %v", inference.ErrMalformedResponse, err)
		}
		if v.RiskScore == nil || *v.RiskScore < 0 || *v.RiskScore > 100 {
			return 0, nil, fmt.Errorf("%w: riskScore missing or out of range", inference.ErrMalformedResponse)
		}
		factors := cleanFactors(v.Factors)
		if len(factors) == 0 {
			factors = ExtractFactors(text)
		}
		return int(math.Round(*v.RiskScore)), factors, nil
	}

	match := firstNumber.FindString(text)
	if match == "" {
		return 0, nil, fmt.Errorf("%w: no score in output", inference.ErrMalformedResponse)
	}
	p, err := strconv.ParseFloat(match, 64)
	if err != nil || p > 1 {
		return 0, nil, fmt.Errorf("%w: %q is not a probability", inference.ErrMalformedResponse, match)
	}
	return int(math.Round(p * 100)), ExtractFactors(text), nil
}

// ExtractFactors returns up to four sentences that name a risk keyword
// together with "risk", "concern" or "factor".
func ExtractFactors(text string) []string {
	var factors []string
	seen := make(map[string]bool)

	for _, sentence := range sentenceBreak.Split(text, -1) {
		if len(factors) >= maxFactors {
			break
		}
		lower := strings.ToLower(sentence)
		if !containsAny(lower, riskMarkers) || !containsAny(lower, riskKeywords) {
			continue
		}

		factor := capitalize(strings.Trim(sentence, ", \t\r\n"))
		if utf8.RuneCountInString(factor) > 10 && !seen[factor] {
			seen[factor] = true
			factors = append(factors, factor)
		}
	}
	return factors
}

func cleanFactors(in []string) []string {
	var out []string
	for _, f := range in {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
		if len(out) == maxFactors {
			break
		}
	}
	return out
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
