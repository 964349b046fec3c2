// Package classic loads the flat-file snapshots exported by the classic
// catalog: DOI to identifier links, ISSN to journal code mappings and the
// canonical/alternate/deleted identifier lists.
package classic

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"compstat/internal/bibcode"
	"compstat/internal/match"

	"go.uber.org/zap"
)

var ErrMissingReferenceFile = errors.New("reference file path not configured")

// DOILink maps a DOI to the canonical identifier it was assigned.
type DOILink struct {
	DOI        string
	Identifier string
}

// ISSNJournal maps an ISSN to a journal code.
type ISSNJournal struct {
	ISSN     string
	Journal  string
	ISSNType string
}

// IdentifierRecord relates any known identifier to its canonical form.
type IdentifierRecord struct {
	Identifier string
	Canonical  string
	Kind       match.Kind
}

// Paths names the snapshot files.
type Paths struct {
	DOIs      string
	ISSNs     string
	Canonical string
	Alternate string
	Deleted   string
	All       string
}

// Snapshot is a complete, immutable set of reference data. It replaces the
// stored reference tables as a whole.
type Snapshot struct {
	DOIs        []DOILink
	ISSNs       []ISSNJournal
	Identifiers []IdentifierRecord
}

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// LoadSnapshot reads every file in p. Any missing path or empty table is an
// error: a partial snapshot must never replace a full one.
func (l *Loader) LoadSnapshot(p Paths) (Snapshot, error) {
	for name, path := range map[string]string{
		"issn": p.ISSNs, "doi": p.DOIs, "canonical": p.Canonical,
		"alternate": p.Alternate, "deleted": p.Deleted, "all": p.All,
	} {
		if strings.TrimSpace(path) == "" {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrMissingReferenceFile, name)
		}
	}
	issns, err := l.LoadISSNMap(p.ISSNs)
	if err != nil {
		return Snapshot{}, err
	}
	if len(issns) == 0 {
		return Snapshot{}, fmt.Errorf("no ISSN to journal data in %s", p.ISSNs)
	}
	dois, err := l.LoadDOIMap(p.DOIs)
	if err != nil {
		return Snapshot{}, err
	}
	if len(dois) == 0 {
		return Snapshot{}, fmt.Errorf("no DOI to identifier data in %s", p.DOIs)
	}
	ids, err := l.MergeIdentifiers(p.Canonical, p.Alternate, p.Deleted, p.All)
	if err != nil {
		return Snapshot{}, err
	}
	if len(ids) == 0 {
		return Snapshot{}, errors.New("no data from canonical/alternate/deleted identifier lists")
	}
	return Snapshot{DOIs: dois, ISSNs: issns, Identifiers: ids}, nil
}

// LoadDOIMap reads "identifier<TAB>doi" lines; the first identifier seen
// for a DOI wins.
func (l *Loader) LoadDOIMap(path string) ([]DOILink, error) {
	out := make([]DOILink, 0, 1024)
	seen := map[string]struct{}{}
	err := scanLines(path, func(line string) {
		parts := strings.Split(line, "\t")
		if len(parts) != 2 {
			l.logger.Warn("bad line in DOI file", zap.String("file", path), zap.String("line", line))
			return
		}
		id, doi := parts[0], parts[1]
		if _, dup := seen[doi]; dup {
			l.logger.Debug("duplicate DOI", zap.String("doi", doi), zap.String("identifier", id))
			return
		}
		seen[doi] = struct{}{}
		out = append(out, DOILink{DOI: doi, Identifier: id})
	})
	if err != nil {
		return nil, fmt.Errorf("load classic DOIs: %w", err)
	}
	return out, nil
}

// LoadISSNMap reads "journal<TAB>issn type<TAB>issn" lines; the first
// journal seen for an ISSN wins.
func (l *Loader) LoadISSNMap(path string) ([]ISSNJournal, error) {
	out := make([]ISSNJournal, 0, 256)
	seen := map[string]struct{}{}
	err := scanLines(path, func(line string) {
		parts := strings.Split(line, "\t")
		if len(parts) != 3 {
			l.logger.Warn("bad line in ISSN file", zap.String("file", path), zap.String("line", line))
			return
		}
		if _, dup := seen[parts[2]]; dup {
			l.logger.Debug("duplicate ISSN", zap.String("issn", parts[2]))
			return
		}
		seen[parts[2]] = struct{}{}
		out = append(out, ISSNJournal{Journal: parts[0], ISSNType: parts[1], ISSN: parts[2]})
	})
	if err != nil {
		return nil, fmt.Errorf("load journal ISSNs: %w", err)
	}
	return out, nil
}

// LoadCanonical reads one identifier per line, keeping only well formed ones.
func (l *Loader) LoadCanonical(path string) ([]string, error) {
	out := make([]string, 0, 1024)
	err := scanLines(path, func(line string) {
		if len(line) == bibcode.Length {
			out = append(out, line)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("load canonical identifiers: %w", err)
	}
	return out, nil
}

// nonCanonical preserves file order so merges are deterministic.
type nonCanonical struct {
	identifier string
	canonical  string
}

// LoadNonCanonical reads "identifier canonical" lines. A lone identifier has
// no canonical form and maps to "none".
func (l *Loader) LoadNonCanonical(path string) ([]nonCanonical, error) {
	out := make([]nonCanonical, 0, 1024)
	seen := map[string]struct{}{}
	err := scanLines(path, func(line string) {
		fields := strings.Fields(line)
		entry := nonCanonical{canonical: "none"}
		switch len(fields) {
		case 1:
			entry.identifier = fields[0]
		case 2:
			entry.identifier, entry.canonical = fields[0], fields[1]
		default:
			l.logger.Debug("bad line in identifier file", zap.String("file", path), zap.String("line", line))
			return
		}
		if _, dup := seen[entry.identifier]; dup {
			return
		}
		seen[entry.identifier] = struct{}{}
		out = append(out, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("load identifiers from %s: %w", path, err)
	}
	return out, nil
}

// MergeIdentifiers combines the four lists. Earlier lists take precedence:
// an identifier already seen as canonical is not re-added as alternate.
// Entries of the "all" list with no canonical form become kind other.
func (l *Loader) MergeIdentifiers(canonicalPath, alternatePath, deletedPath, allPath string) ([]IdentifierRecord, error) {
	canonical, err := l.LoadCanonical(canonicalPath)
	if err != nil {
		return nil, err
	}
	lists := make([][]nonCanonical, 0, 3)
	for _, p := range []string{alternatePath, deletedPath, allPath} {
		list, err := l.LoadNonCanonical(p)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}

	merged := map[string]struct{}{}
	out := make([]IdentifierRecord, 0, len(canonical))
	add := func(rec IdentifierRecord) {
		if _, dup := merged[rec.Identifier]; dup {
			return
		}
		merged[rec.Identifier] = struct{}{}
		out = append(out, rec)
	}
	for _, id := range canonical {
		add(IdentifierRecord{Identifier: id, Canonical: id, Kind: match.KindCanonical})
	}
	for _, e := range lists[0] {
		add(IdentifierRecord{Identifier: e.identifier, Canonical: e.canonical, Kind: match.KindAlternate})
	}
	for _, e := range lists[1] {
		add(IdentifierRecord{Identifier: e.identifier, Canonical: e.canonical, Kind: match.KindDeleted})
	}
	for _, e := range lists[2] {
		add(IdentifierRecord{Identifier: e.identifier, Canonical: e.canonical, Kind: match.KindOther})
	}
	return out, nil
}

func scanLines(path string, fn func(line string)) error {
	if strings.TrimSpace(path) == "" {
		return ErrMissingReferenceFile
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		fn(line)
	}
	return s.Err()
}
