// Package crossref reads the journal article metadata harvested from the
// Crossref OAI-PMH feed.
package crossref

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"compstat/internal/bibcode"
)

var ErrMalformedDocument = errors.New("malformed metadata document")

var reISSN = regexp.MustCompile(`^\d{4}-?\d{3}[0-9X]$`)

// Record is the normalized view of one harvested article. Empty strings
// mean the field was absent.
type Record struct {
	SourcePath string            `json:"source_path"`
	DOI        string            `json:"doi"`
	ISSNs      map[string]string `json:"issns"`
	Journal    string            `json:"journal"`
	Volume     string            `json:"volume"`
	Issue      string            `json:"issue"`
	Year       string            `json:"year"`
	Page       string            `json:"page"`
	Author     string            `json:"first_author"`
	Title      string            `json:"title"`
}

// Fields returns the values the identifier generator needs.
func (r *Record) Fields() bibcode.Fields {
	return bibcode.Fields{Year: r.Year, Volume: r.Volume, Page: r.Page, AuthorSurname: r.Author}
}

// BibData is the bibliographic payload stored with the ledger row.
func (r *Record) BibData() map[string]any {
	return map[string]any{
		"publication": map[string]string{
			"journal": r.Journal,
			"volume":  r.Volume,
			"issue":   r.Issue,
			"year":    r.Year,
		},
		"pagination":   map[string]string{"firstPage": r.Page},
		"first_author": r.Author,
		"title":        r.Title,
	}
}

type journalXML struct {
	Metadata struct {
		Title string    `xml:"full_title"`
		Abbr  string    `xml:"abbrev_title"`
		ISSNs []issnXML `xml:"issn"`
	} `xml:"journal_metadata"`
	Issue struct {
		Dates  []dateXML `xml:"publication_date"`
		Volume string    `xml:"journal_volume>volume"`
		Issue  string    `xml:"issue"`
	} `xml:"journal_issue"`
	Article struct {
		Titles       []string    `xml:"titles>title"`
		Contributors []personXML `xml:"contributors>person_name"`
		Dates        []dateXML   `xml:"publication_date"`
		FirstPage    string      `xml:"pages>first_page"`
		ItemNumbers  []string    `xml:"publisher_item>item_number"`
		DOI          string      `xml:"doi_data>doi"`
	} `xml:"journal_article"`
}

type issnXML struct {
	MediaType string `xml:"media_type,attr"`
	Value     string `xml:",chardata"`
}

type dateXML struct {
	MediaType string `xml:"media_type,attr"`
	Year      string `xml:"year"`
}

type personXML struct {
	Sequence string `xml:"sequence,attr"`
	Role     string `xml:"contributor_role,attr"`
	Surname  string `xml:"surname"`
}

// Parse decodes the first journal article in r. A well-formed document with
// no journal article yields (nil, nil).
func Parse(r io.Reader) (*Record, error) {
	dec := xml.NewDecoder(r)
	dec.Entity = xml.HTMLEntity
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "journal" {
			continue
		}
		var j journalXML
		if err := dec.DecodeElement(&j, &start); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		return j.record(), nil
	}
}

func ParseFile(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata file: %w", err)
	}
	defer f.Close()
	rec, err := Parse(f)
	if err != nil || rec == nil {
		return rec, err
	}
	rec.SourcePath = path
	return rec, nil
}

func (j journalXML) record() *Record {
	rec := &Record{
		DOI:     strings.TrimSpace(j.Article.DOI),
		ISSNs:   map[string]string{},
		Journal: strings.TrimSpace(j.Metadata.Title),
		Volume:  strings.TrimSpace(j.Issue.Volume),
		Issue:   strings.TrimSpace(j.Issue.Issue),
		Page:    strings.TrimSpace(j.Article.FirstPage),
	}
	if rec.Journal == "" {
		rec.Journal = strings.TrimSpace(j.Metadata.Abbr)
	}
	for _, issn := range j.Metadata.ISSNs {
		v := strings.TrimSpace(issn.Value)
		if !reISSN.MatchString(v) {
			continue
		}
		kind := strings.TrimSpace(issn.MediaType)
		if kind == "" {
			kind = "print"
		}
		rec.ISSNs[kind] = v
	}
	if rec.Page == "" && len(j.Article.ItemNumbers) > 0 {
		rec.Page = strings.TrimSpace(j.Article.ItemNumbers[0])
	}
	if len(j.Article.Titles) > 0 {
		rec.Title = strings.TrimSpace(j.Article.Titles[0])
	}
	rec.Year = firstYear(j.Article.Dates)
	if rec.Year == "" {
		rec.Year = firstYear(j.Issue.Dates)
	}
	rec.Author = firstAuthor(j.Article.Contributors)
	return rec
}

// firstYear prefers the print date, as the classic catalog does.
func firstYear(dates []dateXML) string {
	year := ""
	for _, d := range dates {
		y := strings.TrimSpace(d.Year)
		if y == "" {
			continue
		}
		if d.MediaType == "print" {
			return y
		}
		if year == "" {
			year = y
		}
	}
	return year
}

func firstAuthor(people []personXML) string {
	for _, p := range people {
		if p.Sequence == "first" && p.Role != "editor" {
			return strings.TrimSpace(p.Surname)
		}
	}
	for _, p := range people {
		if p.Role != "editor" {
			return strings.TrimSpace(p.Surname)
		}
	}
	return ""
}

// ISSNCandidates returns the record's ISSNs in lookup order (print first),
// hyphenated.
func (r *Record) ISSNCandidates() []string {
	order := []string{"print", "electronic"}
	seen := map[string]bool{}
	out := make([]string, 0, len(r.ISSNs))
	add := func(v string) {
		v = NormalizeISSN(v)
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, k := range order {
		if v, ok := r.ISSNs[k]; ok {
			add(v)
		}
	}
	rest := make([]string, 0, len(r.ISSNs))
	for k := range r.ISSNs {
		if k != "print" && k != "electronic" {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		add(r.ISSNs[k])
	}
	return out
}

// NormalizeISSN inserts the hyphen into eight character ISSNs.
func NormalizeISSN(s string) string {
	s = strings.TrimSpace(s)
	if len(s) == 8 {
		return s[:4] + "-" + s[4:]
	}
	return s
}
