package repair

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRepair_Scripts(t *testing.T) {
	rules := DefaultRules()
	tests := []struct {
		script, input, want string
	}{
		{"adlm", "&#xE900;&#xE922;", "\U0001E900\U0001E922"},
		{"ADLM", "&#xe900; x", "\U0001E900 x"},
		{"rohg", "&#x0D00;&#x0D1A;", "\U00010D00\U00010D1A"},
		{"rohg", "&#xD01;", "\U00010D01"},
		{"mend", "&#xE800;", "\U0001E800"},
		{"wcho", "&#xE2C0;", "\U0001E2C0"},
		{"toto", "&#xE290;", "\U0001E290"},
		{"hmnp", "&#xE100;", "\U0001E100"},
		{"medf", "&#x6E40;", "\U00016E40"},
		{"bass", "&#x6AD0;", "\U00016AD0"},
		{"hmng", "&#x6B00;", "\U00016B00"},
		// Other references in the value are decoded along with the repaired ones.
		{"adlm", "&#xE900; &#x2019;", "\U0001E900 \u2019"},
	}
	for _, tt := range tests {
		got, err := rules.Repair(tt.input, tt.script)
		if err != nil {
			t.Errorf("Repair(%q, %s): %v", tt.input, tt.script, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Repair(%q, %s) = %q, want %q", tt.input, tt.script, got, tt.want)
		}
	}
}

func TestRepair_DistinctRules(t *testing.T) {
	if n := len(DefaultRules().Scripts()); n < 8 {
		t.Errorf("built-in rules cover %d scripts, want at least 8", n)
	}
}

func TestRepair_NoOp(t *testing.T) {
	rules := DefaultRules()
	tests := []struct {
		script, input string
	}{
		{"adlm", "no references here"},
		{"adlm", "&#x2019; is not Adlam"},
		{"rohg", "&#xE900;"},
		{"latn", "&#xE900;"},
		{"zzzz", "anything &#xE900;"},
		{"", "plain"},
		{"sgnw", "clean signwriting placeholder"},
	}
	for _, tt := range tests {
		got, err := rules.Repair(tt.input, tt.script)
		if err != nil {
			t.Errorf("Repair(%q, %q): unexpected error %v", tt.input, tt.script, err)
		}
		if got != tt.input {
			t.Errorf("Repair(%q, %q) = %q, want unchanged", tt.input, tt.script, got)
		}
	}
}

func TestRepair_Unrepairable(t *testing.T) {
	rules := DefaultRules()
	input := "\uFFFD\uFFFD\uFFFD"
	got, err := rules.Repair(input, "sgnw")
	if !errors.Is(err, ErrUnrepairable) {
		t.Fatalf("Repair sgnw error = %v, want ErrUnrepairable", err)
	}
	if got != input {
		t.Errorf("Repair sgnw returned %q, want original", got)
	}
	if !rules.Unrepairable("SGNW") {
		t.Error("Unrepairable(SGNW) = false")
	}
	if rules.Supports("sgnw") {
		t.Error("Supports(sgnw) = true")
	}
}

func TestDecodeReferences(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"&#65;&#x42;", "AB"},
		{"&#xD800;", "&#xD800;"},
		{"&#x110000;", "&#x110000;"},
		{"&amp; stays", "&amp; stays"},
		{"&#0;", "&#0;"},
		{"none", "none"},
	}
	for _, tt := range tests {
		if got := DecodeReferences(tt.input); got != tt.want {
			t.Errorf("DecodeReferences(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNewRules_Invalid(t *testing.T) {
	tests := []RuleFile{
		{Rules: []RuleSpec{{Script: "", Detect: "a", Prefix: "a", Corrected: "b"}}},
		{Rules: []RuleSpec{{Script: "x", Detect: "(", Prefix: "a", Corrected: "b"}}},
		{Rules: []RuleSpec{{Script: "x", Detect: "a", Prefix: "a", Corrected: ""}}},
		{Rules: []RuleSpec{
			{Script: "x", Detect: "a", Prefix: "a", Corrected: "b"},
			{Script: "X", Detect: "a", Prefix: "a", Corrected: "b"},
		}},
		{
			Rules:        []RuleSpec{{Script: "x", Detect: "a", Prefix: "a", Corrected: "b"}},
			Unrepairable: []UnrepairableSpec{{Script: "x"}},
		},
	}
	for i, f := range tests {
		if _, err := NewRules(f); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `rules:
  - script: adlm
    detect: '&#x[fF]9[0-5][0-9a-fA-F];'
    prefix: '^&#x[fF]'
    corrected: '&#x1E'
unrepairable:
  - script: tang
    reason: flattened
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	got, err := rules.Repair("&#xF900;", "adlm")
	if err != nil || got != "\U0001E900" {
		t.Errorf("overridden adlm rule: got %q, %v", got, err)
	}
	if !rules.Supports("rohg") {
		t.Error("built-in rohg rule lost after overlay")
	}
	if !rules.Unrepairable("tang") || !rules.Unrepairable("sgnw") {
		t.Error("unrepairable overlay not merged")
	}
}

func TestLoadRules_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	os.WriteFile(path, []byte("rulez: []\n"), 0o644)
	if _, err := LoadRules(path); err == nil {
		t.Error("expected error for unknown key")
	}
}
