package match

import (
	"fmt"
	"os"
	"strings"

	"compstat/internal/bibcode"

	"gopkg.in/yaml.v3"
)

// Relations groups journal codes that belong to the same journal family
// (renamed or merged titles). The zero value relates nothing. A Relations
// value is never modified after construction; reloads build a new one.
type Relations struct {
	groups [][]string
}

func NewRelations(groups [][]string) Relations {
	out := make([][]string, 0, len(groups))
	for _, g := range groups {
		padded := make([]string, 0, len(g))
		for _, code := range g {
			if strings.TrimSpace(code) == "" {
				continue
			}
			padded = append(padded, bibcode.PadJournal(code))
		}
		if len(padded) > 1 {
			out = append(out, padded)
		}
	}
	return Relations{groups: out}
}

// Related reports whether a and b appear together in some group.
func (r Relations) Related(a, b string) bool {
	a, b = bibcode.PadJournal(a), bibcode.PadJournal(b)
	for _, g := range r.groups {
		if contains(g, a) && contains(g, b) {
			return true
		}
	}
	return false
}

func (r Relations) Len() int { return len(r.groups) }

type relationsFile struct {
	RelatedBibstems [][]string `yaml:"related_bibstems"`
}

// LoadRelations reads a relations document. JSON files are accepted as
// YAML.
func LoadRelations(path string) (Relations, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Relations{}, fmt.Errorf("read relations file: %w", err)
	}
	var doc relationsFile
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return Relations{}, fmt.Errorf("decode relations file: %w", err)
	}
	return NewRelations(doc.RelatedBibstems), nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
