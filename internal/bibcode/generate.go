package bibcode

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	ErrNoJournal = errors.New("no journal code resolved")
	ErrNoYear    = errors.New("no publication year")
)

// Fields are the bibliographic values an identifier is built from.
type Fields struct {
	Year          string
	Volume        string
	Page          string
	AuthorSurname string
}

// Generate builds an identifier for a record published in journal.
func Generate(f Fields, journal string) (Identifier, error) {
	journal = strings.TrimRight(strings.TrimSpace(journal), ".")
	if journal == "" {
		return Identifier{}, ErrNoJournal
	}
	year := strings.TrimSpace(f.Year)
	if len(year) != 4 || !allDigits(year) {
		return Identifier{}, fmt.Errorf("%w: %q", ErrNoYear, f.Year)
	}

	qualifier, page := splitPage(f.Page)
	var b strings.Builder
	b.WriteString(year)
	b.WriteString(PadJournal(journal))
	b.WriteString(rightJustify(lastN(cleanField(f.Volume), 4), 4))
	b.WriteString(qualifier)
	b.WriteString(rightJustify(lastN(page, 4), 4))
	b.WriteString(initial(f.AuthorSurname))
	return Parse(b.String())
}

// splitPage separates a leading letter (e.g. "L12" letters, "E5" errata)
// into the qualifier slot.
func splitPage(page string) (string, string) {
	page = cleanField(page)
	if page == "" {
		return ".", ""
	}
	first := rune(page[0])
	if unicode.IsLetter(first) && len(page) > 1 {
		return strings.ToUpper(string(first)), page[1:]
	}
	return ".", page
}

func cleanField(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		if r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func initial(surname string) string {
	for _, r := range strings.TrimSpace(surname) {
		if unicode.IsLetter(r) {
			up := unicode.ToUpper(r)
			if up < 128 {
				return string(up)
			}
			return "."
		}
	}
	return "."
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func rightJustify(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(".", width-len(s)) + s
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
