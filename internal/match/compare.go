package match

import (
	"compstat/internal/bibcode"

	"go.uber.org/zap"
)

// Comparator compares two identifiers field by field. It holds no mutable
// state, so one value can serve concurrent callers.
type Comparator struct {
	relations Relations
	logger    *zap.Logger
}

func NewComparator(relations Relations, logger *zap.Logger) *Comparator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Comparator{relations: relations, logger: logger}
}

// Compare classifies how legacy differs from candidate. The result is
// always partial or mismatch and always names legacy as the identifier.
func (c *Comparator) Compare(candidate, legacy string) Verdict {
	mismatch := Verdict{Kind: KindMismatch, Identifier: legacy, Discrepancies: map[string]string{}}
	test, err := bibcode.Parse(candidate)
	if err != nil {
		c.logger.Debug("compare: bad candidate identifier", zap.String("candidate", candidate), zap.Error(err))
		return mismatch
	}
	classic, err := bibcode.Parse(legacy)
	if err != nil {
		c.logger.Debug("compare: bad classic identifier", zap.String("classic", legacy), zap.Error(err))
		return mismatch
	}

	related := false
	if test.Journal() != classic.Journal() {
		if !c.relations.Related(test.Journal(), classic.Journal()) {
			return mismatch
		}
		related = true
	}

	errs := map[string]string{}
	if related {
		errs[FieldJournal] = JournalRelated
	}
	if test.Year() != classic.Year() {
		errs[FieldYear] = classic.Year()
	}
	if test.Qualifier() != classic.Qualifier() {
		errs[FieldQualifier] = classic.Qualifier()
	}
	if test.Initial() != classic.Initial() {
		errs[FieldInitial] = classic.Initial()
	}
	if !numericEqual(test.Volume(), classic.Volume()) {
		errs[FieldVolume] = classic.Volume()
	}
	if !numericEqual(test.Page(), classic.Page()) {
		errs[FieldPage] = classic.Page()
	}
	return Verdict{Kind: KindPartial, Identifier: legacy, Discrepancies: errs}
}

// numericEqual treats zero or dot padded numbers as equal ("001" == "..1")
// and falls back to plain string comparison otherwise.
func numericEqual(a, b string) bool {
	if a == b {
		return true
	}
	na, okA := bibcode.Number(a)
	nb, okB := bibcode.Number(b)
	if okA && okB {
		return na == nb
	}
	return false
}
