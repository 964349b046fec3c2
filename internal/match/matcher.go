package match

import (
	"fmt"

	"go.uber.org/zap"
)

// Matcher produces one verdict for a generated identifier from the classic
// records found by DOI and by identifier.
type Matcher struct {
	cmp    *Comparator
	logger *zap.Logger
}

func NewMatcher(relations Relations, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{cmp: NewComparator(relations, logger), logger: logger}
}

// Match returns nil when no verdict could be assembled. Callers treat nil as
// "no information", not as a failure.
func (m *Matcher) Match(candidate string, byDOI, byIdentifier []Candidate) (result *Verdict) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("error matching generated identifier",
				zap.String("identifier", candidate), zap.String("panic", fmt.Sprint(r)))
			result = nil
		}
	}()

	var direct *Verdict
	for _, c := range byIdentifier {
		if c.Identifier == candidate {
			direct = &Verdict{Kind: c.Kind, Identifier: c.Resolved(), Discrepancies: map[string]string{}}
		}
	}

	var viaDOI *Verdict
	for _, c := range byDOI {
		if c.Identifier == "" {
			continue
		}
		if c.Identifier == candidate {
			viaDOI = &Verdict{Kind: c.Kind, Identifier: c.Resolved(), Discrepancies: map[string]string{}}
		} else {
			v := m.cmp.Compare(candidate, c.Identifier)
			viaDOI = &v
		}
		if viaDOI.Identifier != "" {
			break
		}
	}

	switch {
	case viaDOI != nil && direct != nil:
		if direct.Identifier == viaDOI.Identifier {
			out := viaDOI.clone()
			out.Kind = direct.Kind
			return &out
		}
		return &Verdict{
			Kind:       KindMismatch,
			Identifier: viaDOI.Identifier,
			Discrepancies: map[string]string{
				FieldDOI:     DOIMismatched,
				FieldBibcode: direct.Identifier,
			},
		}
	case viaDOI != nil:
		return viaDOI
	case direct != nil:
		out := direct.clone()
		out.Discrepancies[FieldDOI] = DOINotInClassic
		return &out
	default:
		return &Verdict{Kind: KindUnmatched, Discrepancies: map[string]string{FieldDOI: DOINotInClassic}}
	}
}
