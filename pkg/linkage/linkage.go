// CLAUDE:SUMMARY Parses MARC $6 linkage values (TAG-OCC[/SCRIPT[/r]]) into tag, occurrence, script and direction.
package linkage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedLinkage is returned when a $6 value cannot be split into at
// least a tag and an occurrence number.
var ErrMalformedLinkage = errors.New("malformed linkage")

// Descriptor is the parsed form of a linking subfield.
// An empty Script means the linkage carried no script identification.
type Descriptor struct {
	Tag        string `json:"tag"`
	Occurrence string `json:"occurrence"`
	Script     string `json:"script,omitempty"`
	RTL        bool   `json:"rtl"`
}

// HasScript reports whether the linkage named a script.
func (d Descriptor) HasScript() bool {
	return d.Script != ""
}

// Unlinked reports whether the occurrence number is 00, i.e. the field has
// no counterpart to disambiguate.
func (d Descriptor) Unlinked() bool {
	return d.Occurrence == "00"
}

// marcScriptCodes maps MARC-8 escape-style script identifiers used in $6 to
// ISO 15924 codes.
var marcScriptCodes = map[string]string{
	"(3": "arab",
	"(b": "latn",
	"(n": "cyrl",
	"(s": "grek",
	"(2": "hebr",
	"$1": "hani",
}

// ISOScript returns the script as a lowercase ISO 15924 code, translating
// MARC script identifiers such as "(N" when present.
func (d Descriptor) ISOScript() string {
	if iso, ok := marcScriptCodes[d.Script]; ok {
		return iso
	}
	return d.Script
}

// Direction returns "rtl" or "ltr".
func (d Descriptor) Direction() string {
	if d.RTL {
		return "rtl"
	}
	return "ltr"
}

// Parse resolves a raw $6 value. The tag and occurrence are separated by
// '-', the optional script and direction by '/'.
func Parse(raw string) (Descriptor, error) {
	value := strings.TrimSpace(raw)
	tag, rest, ok := strings.Cut(value, "-")
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q has no occurrence number", ErrMalformedLinkage, raw)
	}
	parts := strings.Split(rest, "/")

	d := Descriptor{Tag: tag, Occurrence: parts[0]}
	if len(d.Tag) != 3 {
		return Descriptor{}, fmt.Errorf("%w: %q tag must be 3 characters", ErrMalformedLinkage, raw)
	}
	if !isOccurrence(d.Occurrence) {
		return Descriptor{}, fmt.Errorf("%w: %q occurrence must be 2 digits", ErrMalformedLinkage, raw)
	}
	if len(parts) > 1 {
		d.Script = strings.ToLower(strings.TrimSpace(parts[1]))
	}
	if len(parts) > 2 {
		d.RTL = strings.ToLower(strings.TrimSpace(parts[2])) == "r"
	}
	return d, nil
}

func isOccurrence(s string) bool {
	if len(s) != 2 {
		return false
	}
	return s[0] >= '0' && s[0] <= '9' && s[1] >= '0' && s[1] <= '9'
}
