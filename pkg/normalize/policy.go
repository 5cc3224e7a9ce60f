// CLAUDE:SUMMARY Normalization policy: Cyrillic half-mark folding, Thai/Lao romanization tables, then the base Unicode form.
package normalize

import (
	"fmt"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Convention selects the Thai/Lao romanization table.
type Convention int

const (
	ConventionNone Convention = iota
	Convention1997
	Convention2011
)

// ParseConvention accepts "1997", "2011", or "none"/"" to disable.
func ParseConvention(s string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "null", "false":
		return ConventionNone, nil
	case "1997":
		return Convention1997, nil
	case "2011":
		return Convention2011, nil
	default:
		return ConventionNone, fmt.Errorf("unknown Thai/Lao convention %q (want 1997, 2011 or none)", s)
	}
}

func (c Convention) String() string {
	switch c {
	case Convention1997:
		return "1997"
	case Convention2011:
		return "2011"
	default:
		return "none"
	}
}

// MarshalText lets a Convention appear by name in YAML and JSON.
func (c Convention) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a convention name.
func (c *Convention) UnmarshalText(b []byte) error {
	v, err := ParseConvention(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Policy is the run-wide normalization configuration. The zero value is NFC
// with no script-specific adjustments.
type Policy struct {
	Form            Form       `json:"form"`
	CyrillicFolding bool       `json:"cyrillic"`
	ThaiLao         Convention `json:"thai_lao"`
}

// Context describes the value being normalized.
type Context struct {
	// Language is the record's governing MARC language code; may be empty.
	Language string
	// Script is the lowercase ISO 15924 code from the field's linkage, if any.
	Script string
	// NativeScript is true for fields holding non-romanized text.
	NativeScript bool
}

var cyrillicLanguages = map[string]bool{
	"rus": true, "ukr": true, "bel": true, "bul": true, "mac": true,
	"srp": true, "kaz": true, "kir": true, "tgk": true, "tat": true,
	"bak": true, "chv": true, "oss": true, "abk": true, "ady": true,
	"kbd": true, "sah": true, "tyv": true, "alt": true, "chm": true,
	"udm": true, "kom": true, "mon": true,
}

// Cyrillic reports whether the value is Cyrillic text or romanized from it.
func (c Context) Cyrillic() bool {
	return c.Script == "cyrl" || cyrillicLanguages[c.Language]
}

// ThaiLao reports whether the governing language is Thai or Lao.
func (c Context) ThaiLao() bool {
	return c.Language == "tha" || c.Language == "lao"
}

// Apply runs the policy over text. Script-specific adjustments come first so
// that the base form also normalizes their output.
func (p Policy) Apply(text string, ctx Context) string {
	if p.CyrillicFolding && ctx.Cyrillic() {
		text = FoldCyrillic(text)
	}
	if p.ThaiLao != ConventionNone && ctx.ThaiLao() && !ctx.NativeScript {
		text = p.ThaiLao.Apply(text)
	}
	return p.Form.Normalize(text)
}

// Half marks spanning two letters, and their single double-diacritic form.
// The right half is dropped; the left half becomes the double diacritic.
var halfMarks = map[rune]rune{
	'\uFE20': '\u0361', // ligature left half -> double inverted breve
	'\uFE22': '\u0360', // double tilde left half -> double tilde
	'\uFE24': '\u035E', // macron left half -> double macron
}

func isRightHalf(r rune) bool {
	return r == '\uFE21' || r == '\uFE23' || r == '\uFE25'
}

// newCyrillicFold builds a fresh chain per call; chained transformers
// carry buffers and cannot be shared between goroutines.
func newCyrillicFold() transform.Transformer {
	return transform.Chain(
		runes.Remove(runes.Predicate(isRightHalf)),
		runes.Map(func(r rune) rune {
			if d, ok := halfMarks[r]; ok {
				return d
			}
			return r
		}),
	)
}

// FoldCyrillic replaces ALA-LC half diacritics (t U+FE20 s U+FE21) with the
// double diacritic form (t U+0361 s).
func FoldCyrillic(s string) string {
	if !strings.ContainsFunc(s, func(r rune) bool { return r >= '\uFE20' && r <= '\uFE25' }) {
		return s
	}
	out, _, err := transform.String(newCyrillicFold(), s)
	if err != nil {
		return s
	}
	return out
}

// Substitution tables for romanized Thai and Lao. Both map apostrophe-like
// characters to the modifier letter turned comma; they differ on the open-o
// vowel, which 1997 writes with an ogonek and 2011 as U+0254.
var (
	thaiLao1997 = strings.NewReplacer(
		"\u2018", "\u02BB",
		"\u02BD", "\u02BB",
		"\u0254", "\u01EB",
		"\u0186", "\u01EA",
	)
	thaiLao2011 = strings.NewReplacer(
		"\u2018", "\u02BB",
		"\u02BD", "\u02BB",
		"\u01EB", "\u0254",
		"\u01EA", "\u0186",
		"o\u0328", "\u0254",
		"O\u0328", "\u0186",
	)
)

// Apply runs the convention's substitution table.
func (c Convention) Apply(s string) string {
	switch c {
	case Convention1997:
		return thaiLao1997.Replace(s)
	case Convention2011:
		return thaiLao2011.Replace(s)
	default:
		return s
	}
}
