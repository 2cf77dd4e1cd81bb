// Package compliance segments loan agreements into clauses and classifies
// each clause against the RBI digital-lending rule catalog.
package compliance

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// minClauseLength is the rune count a trimmed fragment must exceed.
const minClauseLength = 15

// space matches ASCII and Unicode whitespace, including no-break spaces.
const space = `[\s\v\p{Zs}\x{0085}\x{2028}\x{2029}\x{FEFF}]`

var clauseDelimiter = regexp.MustCompile(`(?:\.` + space + `+|\n` + space + `*\n|\n\d+\.` + space + `+)`)

// Segment splits text into clause strings in document order.
func Segment(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var clauses []string
	for _, fragment := range clauseDelimiter.Split(text, -1) {
		fragment = strings.TrimSpace(fragment)
		if utf8.RuneCountInString(fragment) > minClauseLength {
			clauses = append(clauses, fragment)
		}
	}
	return clauses
}
