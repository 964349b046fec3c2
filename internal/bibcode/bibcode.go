// Package bibcode holds the fixed-width 19 character identifier used to key
// records in the classic catalog, and a generator that builds one from
// parsed publisher metadata.
package bibcode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Length is the width of a fully resolved identifier.
const Length = 19

var ErrMalformedIdentifier = errors.New("malformed identifier")

// Identifier is a validated identifier. Field offsets:
// [0:4) year, [4:9) journal, [9:13) volume, [13] qualifier,
// [14:18) page, [18] author initial.
type Identifier struct {
	raw string
}

func Parse(s string) (Identifier, error) {
	if len(s) != Length {
		return Identifier{}, fmt.Errorf("%w: %q has length %d", ErrMalformedIdentifier, s, len(s))
	}
	return Identifier{raw: s}, nil
}

func MustParse(s string) Identifier {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id Identifier) String() string    { return id.raw }
func (id Identifier) IsZero() bool      { return id.raw == "" }
func (id Identifier) Year() string      { return id.raw[0:4] }
func (id Identifier) Journal() string   { return id.raw[4:9] }
func (id Identifier) Volume() string    { return id.raw[9:13] }
func (id Identifier) Qualifier() string { return id.raw[13:14] }
func (id Identifier) Page() string      { return id.raw[14:18] }
func (id Identifier) Initial() string   { return id.raw[18:19] }

// VolumeKey is the volume plus qualifier slot, the range the completeness
// summary groups on.
func (id Identifier) VolumeKey() string { return id.raw[9:14] }

// Number parses a dot padded numeric field. ok is false when the field
// holds anything other than digits after padding is removed.
func Number(field string) (int, bool) {
	trimmed := strings.Trim(field, ".")
	if trimmed == "" {
		return 0, false
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, false
	}
	return n, true
}

// PadJournal right-pads a journal code with dots to the five character slot.
func PadJournal(code string) string {
	code = strings.TrimSpace(code)
	if len(code) >= 5 {
		return code[:5]
	}
	return code + strings.Repeat(".", 5-len(code))
}
