// CLAUDE:SUMMARY Unicode normalization forms for catalog text: NFC, NFD and NFM21 (NFC with Latin diacritics kept decomposed).
package normalize

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Form is the base Unicode normalization applied last to every value.
type Form int

const (
	NFC Form = iota
	NFD
	// NFM21 composes everything except Latin letters with diacritics, which
	// stay decomposed as MARC-8 transcribed them.
	NFM21
)

// ParseForm accepts NFC, NFD or NFM21 in any case. Empty means NFC.
func ParseForm(s string) (Form, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NFC":
		return NFC, nil
	case "NFD":
		return NFD, nil
	case "NFM21":
		return NFM21, nil
	default:
		return NFC, fmt.Errorf("unknown normalization form %q (want NFC, NFD or NFM21)", s)
	}
}

func (f Form) String() string {
	switch f {
	case NFD:
		return "NFD"
	case NFM21:
		return "NFM21"
	default:
		return "NFC"
	}
}

// MarshalText lets a Form appear by name in YAML and JSON.
func (f Form) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText parses a form name.
func (f *Form) UnmarshalText(b []byte) error {
	v, err := ParseForm(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Normalize applies the form to s.
func (f Form) Normalize(s string) string {
	switch f {
	case NFD:
		return norm.NFD.String(s)
	case NFM21:
		return nfm21(s)
	default:
		return norm.NFC.String(s)
	}
}

// nfm21 walks the NFC segments of s and decomposes those whose base is Latin.
func nfm21(s string) string {
	var it norm.Iter
	it.InitString(norm.NFC, s)

	var b strings.Builder
	b.Grow(len(s))
	for !it.Done() {
		seg := it.Next()
		r, _ := utf8.DecodeRune(seg)
		if unicode.Is(unicode.Latin, r) {
			b.Write(norm.NFD.Bytes(seg))
			continue
		}
		b.Write(seg)
	}
	return b.String()
}
