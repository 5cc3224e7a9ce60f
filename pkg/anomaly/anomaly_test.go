package anomaly

import (
	"testing"
)

func TestDetect_ReplacementAndUnassigned(t *testing.T) {
	text := "abc\uFFFD def \u0378 \uFFFD"
	report := Detect(text)
	if len(report) != 2 {
		t.Fatalf("findings = %d, want 2: %v", len(report), report.Strings())
	}
	sorted := report.Sorted()
	for _, f := range sorted {
		if f.Name == "" {
			t.Errorf("finding %s has empty name", f.Code)
		}
	}
	if sorted[0].Rune != 0x0378 || sorted[1].Rune != 0xFFFD {
		t.Errorf("order = %v, want U+0378 then U+FFFD", report.Strings())
	}
	if got := sorted[1].String(); got != "U+FFFD (REPLACEMENT CHARACTER)" {
		t.Errorf("String() = %q", got)
	}
}

func TestDetect_Clean(t *testing.T) {
	for _, text := range []string{
		"Hell, does it work?",
		"Thuo\u0331n j\u00e4n",
		"\U0001E900\U0001E922 Adlam",
		"",
	} {
		if report := Detect(text); len(report) != 0 {
			t.Errorf("Detect(%q) = %v, want empty", text, report.Strings())
		}
	}
}

func TestDetect_Categories(t *testing.T) {
	tests := []struct {
		name string
		text string
		want rune
	}{
		{"bidi override", "a\u202Eb", 0x202E},
		{"rlm", "\u200F", 0x200F},
		{"private use", "x\uE900", 0xE900},
		{"geta mark", "tuen\u3013", 0x3013},
		{"double low line", "n\u0333", 0x0333},
		{"invalid utf8", "ab\xff", 0xFFFD},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Detect(tt.text)
			if _, ok := report[tt.want]; !ok {
				t.Errorf("Detect(%q) = %v, missing %s", tt.text, report.Strings(), CodePoint(tt.want))
			}
		})
	}
}

func TestDetect_DeterministicAndReadOnly(t *testing.T) {
	text := "Thuo\u0333n\u0333j\u00e4n\u0333 \uFFFDath\u00f6r tuen\u0333\u3013 \u00eb kue\u0333n"
	orig := text
	first := Detect(text)
	second := Detect(text)
	if text != orig {
		t.Fatal("input mutated")
	}
	a, b := first.Strings(), second.Strings()
	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("findings = %v / %v, want 3 each", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("non-deterministic at %d: %q vs %q", i, a[i], b[i])
		}
	}
	if a[0] != "U+0333 (COMBINING DOUBLE LOW LINE)" {
		t.Errorf("first finding = %q", a[0])
	}
}

func TestName_Fallbacks(t *testing.T) {
	if got := Name(0x0378); got != "<unassigned-0378>" {
		t.Errorf("Name(U+0378) = %q", got)
	}
	if got := Name('A'); got != "LATIN CAPITAL LETTER A" {
		t.Errorf("Name('A') = %q", got)
	}
}

func TestNewDetector_Extra(t *testing.T) {
	d := NewDetector('x')
	if _, ok := d.Detect("box")['x']; !ok {
		t.Error("extra rune not detected")
	}
	if len(d.Detect("\uFFFD")) != 0 {
		t.Error("custom detector should not include default marks")
	}
}
