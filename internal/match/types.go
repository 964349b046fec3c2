// Package match decides whether a generated identifier already exists in the
// classic catalog and explains the differences when it only partly does.
package match

// Kind classifies a match attempt.
type Kind string

const (
	KindCanonical Kind = "canonical"
	KindAlternate Kind = "alternate"
	KindDeleted   Kind = "deleted"
	KindOther     Kind = "other"
	KindPartial   Kind = "partial"
	KindMismatch  Kind = "mismatch"
	KindUnmatched Kind = "unmatched"
	// KindFailed never comes out of the matcher; the ledger uses it for
	// records that could not be matched at all.
	KindFailed Kind = "failed"
)

// Discrepancy keys and fixed values.
const (
	FieldDOI       = "DOI"
	FieldBibcode   = "bibcode"
	FieldJournal   = "journal"
	FieldYear      = "year"
	FieldVolume    = "vol"
	FieldQualifier = "qual"
	FieldPage      = "page"
	FieldInitial   = "init"

	DOINotInClassic = "DOI not in classic"
	DOIMismatched   = "DOI mismatched"
	JournalRelated  = "related"
)

// Candidate is one classic record reachable by DOI or identifier lookup.
type Candidate struct {
	Identifier string `json:"identifier"`
	Canonical  string `json:"canonical"`
	Kind       Kind   `json:"kind"`
}

// Resolved is the identifier a direct hit on this candidate resolves to.
// Records without a canonical form resolve to themselves.
func (c Candidate) Resolved() string {
	if c.Canonical == "" || c.Canonical == "none" {
		return c.Identifier
	}
	return c.Canonical
}

// Verdict is the outcome of one match attempt. Identifier is empty exactly
// when Kind is KindUnmatched.
type Verdict struct {
	Kind          Kind              `json:"match"`
	Identifier    string            `json:"bibcode,omitempty"`
	Discrepancies map[string]string `json:"errs"`
}

func (v Verdict) clone() Verdict {
	out := Verdict{Kind: v.Kind, Identifier: v.Identifier, Discrepancies: make(map[string]string, len(v.Discrepancies))}
	for k, val := range v.Discrepancies {
		out.Discrepancies[k] = val
	}
	return out
}
