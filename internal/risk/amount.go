package risk

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/opensource-finance/riskiq/internal/domain"
)

var (
	monthsPerYear = decimal.NewFromInt(12)
	roundingUnit  = decimal.NewFromInt(10000)
)

// incomeMultiplier is the number of monthly incomes a tier may borrow.
func incomeMultiplier(level domain.RiskLevel) int64 {
	switch level {
	case domain.RiskLow:
		return 36
	case domain.RiskMedium:
		return 24
	default:
		return 12
	}
}

// MaxLoan returns annualIncome/12 × multiplier rounded to the nearest 10,000.
func MaxLoan(annualIncome float64, level domain.RiskLevel) decimal.Decimal {
	if annualIncome <= 0 {
		return decimal.Zero
	}
	// one division keeps exact halves exact
	units := decimal.NewFromFloat(annualIncome).
		Mul(decimal.NewFromInt(incomeMultiplier(level))).
		Div(monthsPerYear.Mul(roundingUnit)).
		Round(0)
	return units.Mul(roundingUnit)
}

// Formatter renders amounts with a currency symbol and locale digit grouping.
// Grouping is read from the locale's rendering of a sample number and applied
// to the decimal's own digits.
type Formatter struct {
	symbol    string
	separator string
	primary   int // digits in the rightmost group, 0 when ungrouped
	secondary int // digits in each further group
	digits    [10]rune
}

// groupingSample holds every digit once so the locale's glyphs can be read back.
const groupingSample = 1234567890

// NewFormatter creates a formatter. An unparsable locale falls back to en-IN.
func NewFormatter(symbol, locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse("en-IN")
	}
	f := &Formatter{symbol: symbol, digits: [10]rune{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9'}}
	f.learn(message.NewPrinter(tag).Sprintf("%d", groupingSample))
	return f
}

// learn reads digit glyphs and group sizes from the rendered sample.
func (f *Formatter) learn(sample string) {
	var (
		glyphs []rune
		groups []int
		run    int
		sep    strings.Builder
	)
	for _, r := range sample {
		if unicode.IsDigit(r) {
			glyphs = append(glyphs, r)
			run++
			continue
		}
		if run > 0 {
			groups = append(groups, run)
			run = 0
		}
		if len(groups) == 1 {
			sep.WriteRune(r)
		}
	}
	if run > 0 {
		groups = append(groups, run)
	}

	if len(glyphs) == 10 {
		// the sample reads 1..9 then 0
		for i, g := range glyphs {
			f.digits[(i+1)%10] = g
		}
	}
	if len(groups) >= 2 {
		f.separator = sep.String()
		f.primary = groups[len(groups)-1]
		f.secondary = groups[len(groups)-2]
	}
}

// Format renders a whole-unit amount, e.g. "₹2,50,000" for en-IN.
func (f *Formatter) Format(amount decimal.Decimal) string {
	raw := amount.Round(0).String()
	neg := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")

	var b strings.Builder
	b.WriteString(f.symbol)
	if neg {
		b.WriteByte('-')
	}
	n := len(raw)
	for i := 0; i < n; i++ {
		b.WriteRune(f.digits[raw[i]-'0'])
		if rest := n - 1 - i; rest > 0 && f.primary > 0 &&
			(rest == f.primary || (rest > f.primary && (rest-f.primary)%f.secondary == 0)) {
			b.WriteString(f.separator)
		}
	}
	return b.String()
}
