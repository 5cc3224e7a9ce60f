// CLAUDE:SUMMARY Read-only scan for code points that indicate encoding damage (bidi controls, surrogates, private use, unassigned, legacy marks).
package anomaly

import (
	"fmt"
	"sort"
	"unicode"

	"golang.org/x/text/unicode/rangetable"
	"golang.org/x/text/unicode/runenames"
)

// Legacy marks left behind by earlier lossy conversions.
const (
	CombiningDoubleLowLine = '\u0333'
	GetaMark               = '\u3013'
	ReplacementCharacter   = '\uFFFD'
)

// Finding is one disallowed character.
type Finding struct {
	Rune rune   `json:"-"`
	Code string `json:"code_point"`
	Name string `json:"name"`
}

// String formats the finding as "U+FFFD (REPLACEMENT CHARACTER)".
func (f Finding) String() string {
	return fmt.Sprintf("%s (%s)", f.Code, f.Name)
}

// Report is the set of findings for one value, keyed by rune.
type Report map[rune]Finding

// Sorted returns the findings in ascending code point order.
func (r Report) Sorted() []Finding {
	out := make([]Finding, 0, len(r))
	for _, f := range r {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rune < out[j].Rune })
	return out
}

// Strings returns the sorted findings formatted for display.
func (r Report) Strings() []string {
	sorted := r.Sorted()
	out := make([]string, len(sorted))
	for i, f := range sorted {
		out[i] = f.String()
	}
	return out
}

// Detector flags characters from a fixed table plus unassigned code points.
type Detector struct {
	disallowed *unicode.RangeTable
}

// NewDetector builds a detector that flags bidi controls, surrogates,
// private-use and unassigned code points, plus the given extra runes.
func NewDetector(extra ...rune) *Detector {
	return &Detector{
		disallowed: rangetable.Merge(
			unicode.Bidi_Control,
			unicode.Cs,
			unicode.Co,
			rangetable.New(extra...),
		),
	}
}

// DefaultDetector flags the standard legacy marks.
func DefaultDetector() *Detector {
	return NewDetector(CombiningDoubleLowLine, GetaMark, ReplacementCharacter)
}

// Detect returns the disallowed characters in text. Invalid UTF-8 bytes
// decode to U+FFFD and are reported as such.
func (d *Detector) Detect(text string) Report {
	report := Report{}
	for _, r := range text {
		if _, seen := report[r]; seen {
			continue
		}
		if unicode.Is(d.disallowed, r) || unassigned(r) {
			report[r] = Finding{Rune: r, Code: CodePoint(r), Name: Name(r)}
		}
	}
	return report
}

// Detect scans text with the default detector.
func Detect(text string) Report {
	return defaultDetector.Detect(text)
}

var defaultDetector = DefaultDetector()

func unassigned(r rune) bool {
	return !unicode.In(r, unicode.L, unicode.M, unicode.N, unicode.P, unicode.S, unicode.Z, unicode.C)
}

// CodePoint formats r as U+XXXX.
func CodePoint(r rune) string {
	return fmt.Sprintf("U+%04X", r)
}

// Name returns the Unicode character name, or a bracketed label for code
// points the name database does not cover.
func Name(r rune) string {
	if name := runenames.Name(r); name != "" {
		return name
	}
	switch {
	case unicode.Is(unicode.Co, r):
		return fmt.Sprintf("<private-use-%04X>", r)
	case unicode.Is(unicode.Cs, r):
		return fmt.Sprintf("<surrogate-%04X>", r)
	case unassigned(r):
		return fmt.Sprintf("<unassigned-%04X>", r)
	default:
		return fmt.Sprintf("<%04X>", r)
	}
}
