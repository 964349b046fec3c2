// Package harvest discovers the update-agent logs written by the publisher
// harvester and turns them into batches of metadata file paths.
package harvest

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrNoLogs           = errors.New("no harvest logs found")
	ErrUnknownPublisher = errors.New("publisher not present in harvest logs")
)

const logMarker = ".out."

// LogName is the decoded name of one harvest log:
// <doi prefix>[:<suffix>].out.<harvest date>.
type LogName struct {
	Path      string
	Publisher string
	Date      string
}

// FindLogs lists the harvest logs under dir, sorted.
func FindLogs(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("stat harvest log dir: %w", err)
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*"+logMarker+"*"))
	if err != nil {
		return nil, fmt.Errorf("glob harvest logs: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func ParseLogName(path string) (LogName, error) {
	base := filepath.Base(path)
	prefix, date, ok := strings.Cut(base, logMarker)
	if !ok || prefix == "" || date == "" {
		return LogName{}, fmt.Errorf("parse harvest log name %q", base)
	}
	publisher, _, _ := strings.Cut(prefix, ":")
	return LogName{Path: path, Publisher: publisher, Date: date}, nil
}

// ParseLogNames returns the sorted distinct harvest dates and publisher
// DOI prefixes found in paths.
func ParseLogNames(paths []string) (dates, publishers []string, err error) {
	ds := map[string]struct{}{}
	ps := map[string]struct{}{}
	for _, p := range paths {
		n, err := ParseLogName(p)
		if err != nil {
			return nil, nil, err
		}
		ds[n.Date] = struct{}{}
		ps[n.Publisher] = struct{}{}
	}
	return sortedKeys(ds), sortedKeys(ps), nil
}

// SelectLogs narrows paths to one publisher (empty means all) and, if
// latest is set, to the most recent harvest date.
func SelectLogs(paths []string, publisher string, latest bool) ([]string, error) {
	if len(paths) == 0 {
		return nil, ErrNoLogs
	}
	dates, publishers, err := ParseLogNames(paths)
	if err != nil {
		return nil, err
	}
	if publisher != "" && !containsString(publishers, publisher) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPublisher, publisher)
	}
	lastDate := dates[len(dates)-1]

	out := make([]string, 0, len(paths))
	for _, p := range paths {
		n, _ := ParseLogName(p)
		if publisher != "" && n.Publisher != publisher {
			continue
		}
		if latest && n.Date != lastDate {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// ReadLog returns the metadata paths listed in a harvest log, each line
// being "<relative path>\t<harvest time>".
func ReadLog(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open harvest log: %w", err)
	}
	defer f.Close()

	var out []string
	s := bufio.NewScanner(f)
	line := 0
	for s.Scan() {
		line++
		text := strings.TrimSpace(s.Text())
		if text == "" {
			continue
		}
		name, _, ok := strings.Cut(text, "\t")
		if !ok {
			return nil, fmt.Errorf("read harvest log %s line %d: missing harvest time", path, line)
		}
		out = append(out, name)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("read harvest log: %w", err)
	}
	return out, nil
}

// ResolvePaths prefixes each relative metadata path with the harvest root.
func ResolvePaths(base string, rel []string) []string {
	out := make([]string, len(rel))
	for i, r := range rel {
		out[i] = filepath.Join(base, r)
	}
	return out
}

// Batches splits items into consecutive groups of at most n.
func Batches[T any](items []T, n int) [][]T {
	if n <= 0 {
		n = 1
	}
	out := make([][]T, 0, (len(items)+n-1)/n)
	for start := 0; start < len(items); start += n {
		end := start + n
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
