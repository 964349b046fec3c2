package match

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func canonical(id string) Candidate {
	return Candidate{Identifier: id, Canonical: id, Kind: KindCanonical}
}

func TestRelations(t *testing.T) {
	r := NewRelations([][]string{{"Testa", "Testb"}, {"ApJ", "ApJS"}, {"Lonely"}})
	require.Equal(t, 2, r.Len())
	require.True(t, r.Related("Testa", "Testb"))
	require.True(t, r.Related("ApJ..", "ApJS."))
	require.False(t, r.Related("Foo..", "Bar.."))
	require.False(t, Relations{}.Related("ApJ..", "ApJS."))
}

func TestLoadRelationsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "related.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"related_bibstems": [["MNRAS", "MNSSA"]]}`), 0o644))
	r, err := LoadRelations(path)
	require.NoError(t, err)
	require.True(t, r.Related("MNRAS", "MNSSA"))
}

func TestCompareMismatchedJournals(t *testing.T) {
	c := NewComparator(Relations{}, nil)
	got := c.Compare("2000ApJ...999..999Z", "1900A&A...123..456X")
	require.Equal(t, KindMismatch, got.Kind)
	require.Equal(t, "1900A&A...123..456X", got.Identifier)
	require.Empty(t, got.Discrepancies)
}

func TestComparePartialFields(t *testing.T) {
	c := NewComparator(Relations{}, nil)
	got := c.Compare("2000ApJ...999..999Z", "2001ApJ...998..987Q")
	require.Equal(t, KindPartial, got.Kind)
	require.Equal(t, "2001ApJ...998..987Q", got.Identifier)
	require.Equal(t, map[string]string{"init": "Q", "page": ".987", "vol": ".998", "year": "2001"}, got.Discrepancies)
}

func TestCompareIdentity(t *testing.T) {
	c := NewComparator(Relations{}, nil)
	first := c.Compare("2000ApJ...999..999Z", "2000ApJ...999..999Z")
	require.Equal(t, Verdict{Kind: KindPartial, Identifier: "2000ApJ...999..999Z", Discrepancies: map[string]string{}}, first)
	require.Equal(t, first, c.Compare("2000ApJ...999..999Z", "2000ApJ...999..999Z"))
}

func TestCompareNumericEquivalence(t *testing.T) {
	c := NewComparator(Relations{}, nil)
	got := c.Compare("2000ApJ..0001..999Z", "2000ApJ.....1..999Z")
	require.NotContains(t, got.Discrepancies, FieldVolume)

	got = c.Compare("2000ApJ..0001..999Z", "2000ApJ..0002..999Z")
	require.Equal(t, "0002", got.Discrepancies[FieldVolume])

	got = c.Compare("2000ApJ...99A..999Z", "2000ApJ...99B..999Z")
	require.Equal(t, ".99B", got.Discrepancies[FieldVolume])
}

func TestCompareRelatedJournal(t *testing.T) {
	c := NewComparator(NewRelations([][]string{{"Testa", "Testb"}}), nil)
	got := c.Compare("2000Testa.999..999Z", "2000Testb.999..999Z")
	require.Equal(t, KindPartial, got.Kind)
	require.Equal(t, map[string]string{FieldJournal: JournalRelated}, got.Discrepancies)
}

func TestCompareShortIdentifierIsMismatch(t *testing.T) {
	c := NewComparator(Relations{}, nil)
	got := c.Compare("2000ApJ...999", "2000ApJ...999..999Z")
	require.Equal(t, KindMismatch, got.Kind)
	require.Equal(t, "2000ApJ...999..999Z", got.Identifier)
}

func TestMatch(t *testing.T) {
	m := NewMatcher(Relations{}, nil)
	const xref = "2000ApJ...999..999Z"

	cases := []struct {
		name   string
		byDOI  []Candidate
		byBib  []Candidate
		expect Verdict
	}{
		{
			name:   "exact match by DOI and identifier",
			byDOI:  []Candidate{canonical(xref)},
			byBib:  []Candidate{canonical(xref)},
			expect: Verdict{Kind: KindCanonical, Identifier: xref, Discrepancies: map[string]string{}},
		},
		{
			name:   "DOI assigned to similar identifier",
			byDOI:  []Candidate{canonical("2000ApJ...999..777Q")},
			expect: Verdict{Kind: KindPartial, Identifier: "2000ApJ...999..777Q", Discrepancies: map[string]string{"page": ".777", "init": "Q"}},
		},
		{
			name:   "DOI assigned to unrelated identifier",
			byDOI:  []Candidate{canonical("1900A&A...123..456X")},
			expect: Verdict{Kind: KindMismatch, Identifier: "1900A&A...123..456X", Discrepancies: map[string]string{}},
		},
		{
			name:   "nothing in classic",
			expect: Verdict{Kind: KindUnmatched, Discrepancies: map[string]string{FieldDOI: DOINotInClassic}},
		},
		{
			name:  "conflicting DOI and identifier hits",
			byDOI: []Candidate{canonical("2000ApJ...999..777Q")},
			byBib: []Candidate{canonical(xref)},
			expect: Verdict{Kind: KindMismatch, Identifier: "2000ApJ...999..777Q", Discrepancies: map[string]string{
				FieldDOI: DOIMismatched, FieldBibcode: xref,
			}},
		},
		{
			name:   "identifier in classic, DOI is not",
			byBib:  []Candidate{canonical(xref)},
			expect: Verdict{Kind: KindCanonical, Identifier: xref, Discrepancies: map[string]string{FieldDOI: DOINotInClassic}},
		},
		{
			name:   "alternate identifier keeps DOI side differences",
			byDOI:  []Candidate{canonical("2000ApJ...999..999S"), {Identifier: xref, Canonical: "2000ApJ...999..999S", Kind: KindAlternate}},
			byBib:  []Candidate{{Identifier: xref, Canonical: "2000ApJ...999..999S", Kind: KindAlternate}},
			expect: Verdict{Kind: KindAlternate, Identifier: "2000ApJ...999..999S", Discrepancies: map[string]string{FieldInitial: "S"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := m.Match(xref, tc.byDOI, tc.byBib)
			require.NotNil(t, got)
			require.Equal(t, tc.expect, *got)
		})
	}
}

func TestMatchSkipsBlankDOICandidates(t *testing.T) {
	m := NewMatcher(NewRelations(nil), nil)

	v := m.Match("2000ApJ...999..999Z", []Candidate{{Identifier: ""}}, nil)
	require.NotNil(t, v)
	require.Equal(t, KindUnmatched, v.Kind)
	require.Empty(t, v.Identifier)
	require.Equal(t, map[string]string{FieldDOI: DOINotInClassic}, v.Discrepancies)

	v = m.Match("2000ApJ...999..999Z", []Candidate{{Identifier: ""}, canonical("2000ApJ...999..777Q")}, nil)
	require.NotNil(t, v)
	require.Equal(t, KindPartial, v.Kind)
	require.Equal(t, "2000ApJ...999..777Q", v.Identifier)
}

func TestMatchRecoversToNoVerdict(t *testing.T) {
	// A matcher without a comparator panics on the first comparison.
	m := &Matcher{logger: zap.NewNop()}
	var v *Verdict
	require.NotPanics(t, func() {
		v = m.Match("2000ApJ...999..999Z", []Candidate{canonical("1900A&A...123..456X")}, nil)
	})
	require.Nil(t, v)
}
