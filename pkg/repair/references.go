// CLAUDE:SUMMARY Per-script repair of MARC-8 numeric character references emitted in the wrong Unicode block (SMP scripts truncated to 16 bits).
package repair

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Rule rewrites the block prefix of hex references for one script.
// Detect matches one erroneous reference; Prefix matches its leading
// erroneous part, which is replaced by Corrected.
type Rule struct {
	Script    string
	Detect    *regexp.Regexp
	Prefix    *regexp.Regexp
	Corrected string
}

// Rules is the immutable rule table, keyed by lowercase ISO 15924 code.
// It is safe for concurrent use.
type Rules struct {
	rules        map[string]Rule
	unrepairable map[string]string
}

// RuleSpec is the YAML form of a Rule.
type RuleSpec struct {
	Script    string `yaml:"script"`
	Detect    string `yaml:"detect"`
	Prefix    string `yaml:"prefix"`
	Corrected string `yaml:"corrected"`
}

// UnrepairableSpec names a script whose legacy export cannot be undone.
type UnrepairableSpec struct {
	Script string `yaml:"script"`
	Reason string `yaml:"reason"`
}

// RuleFile is the schema of a rules YAML file.
type RuleFile struct {
	Rules        []RuleSpec         `yaml:"rules"`
	Unrepairable []UnrepairableSpec `yaml:"unrepairable"`
}

// Each SMP block below was exported with its leading plane digit dropped,
// e.g. Adlam U+1E900 arrives as &#xE900;.
var defaultSpecs = []RuleSpec{
	{Script: "adlm", Detect: `&#[xX][eE]9[0-5][0-9a-fA-F];`, Prefix: `^&#[xX][eE]`, Corrected: "&#x1E"},
	{Script: "rohg", Detect: `&#[xX]0?[dD][0-3][0-9a-fA-F];`, Prefix: `^&#[xX]0?[dD]`, Corrected: "&#x10D"},
	{Script: "mend", Detect: `&#[xX][eE]8[0-9a-dA-D][0-9a-fA-F];`, Prefix: `^&#[xX][eE]8`, Corrected: "&#x1E8"},
	{Script: "wcho", Detect: `&#[xX][eE]2[c-fC-F][0-9a-fA-F];`, Prefix: `^&#[xX][eE]2`, Corrected: "&#x1E2"},
	{Script: "toto", Detect: `&#[xX][eE]2[9abAB][0-9a-fA-F];`, Prefix: `^&#[xX][eE]2`, Corrected: "&#x1E2"},
	{Script: "hmnp", Detect: `&#[xX][eE]1[0-4][0-9a-fA-F];`, Prefix: `^&#[xX][eE]1`, Corrected: "&#x1E1"},
	{Script: "medf", Detect: `&#[xX]6[eE][4-9][0-9a-fA-F];`, Prefix: `^&#[xX]6[eE]`, Corrected: "&#x16E"},
	{Script: "bass", Detect: `&#[xX]6[aA][d-fD-F][0-9a-fA-F];`, Prefix: `^&#[xX]6[aA]`, Corrected: "&#x16A"},
	{Script: "hmng", Detect: `&#[xX]6[bB][0-8][0-9a-fA-F];`, Prefix: `^&#[xX]6[bB]`, Corrected: "&#x16B"},
}

// Sutton SignWriting (U+1D800) truncates into the surrogate range, which the
// export replaces with U+FFFD.
var defaultUnrepairable = []UnrepairableSpec{
	{Script: "sgnw", Reason: "legacy export replaced every character with U+FFFD"},
}

// DefaultRules builds the built-in rule table.
func DefaultRules() *Rules {
	r, err := NewRules(RuleFile{Rules: defaultSpecs, Unrepairable: defaultUnrepairable})
	if err != nil {
		panic(fmt.Sprintf("repair: built-in rules: %v", err))
	}
	return r
}

// NewRules compiles a rule file. Duplicate scripts are rejected.
func NewRules(f RuleFile) (*Rules, error) {
	r := &Rules{
		rules:        make(map[string]Rule, len(f.Rules)),
		unrepairable: make(map[string]string, len(f.Unrepairable)),
	}
	for _, spec := range f.Rules {
		script := strings.ToLower(strings.TrimSpace(spec.Script))
		if script == "" {
			return nil, fmt.Errorf("rule without script")
		}
		if _, dup := r.rules[script]; dup {
			return nil, fmt.Errorf("rule %s: duplicate script", script)
		}
		detect, err := regexp.Compile(spec.Detect)
		if err != nil {
			return nil, fmt.Errorf("rule %s: detect: %w", script, err)
		}
		prefix, err := regexp.Compile(spec.Prefix)
		if err != nil {
			return nil, fmt.Errorf("rule %s: prefix: %w", script, err)
		}
		if spec.Corrected == "" {
			return nil, fmt.Errorf("rule %s: empty corrected prefix", script)
		}
		r.rules[script] = Rule{Script: script, Detect: detect, Prefix: prefix, Corrected: spec.Corrected}
	}
	for _, u := range f.Unrepairable {
		script := strings.ToLower(strings.TrimSpace(u.Script))
		if _, clash := r.rules[script]; clash {
			return nil, fmt.Errorf("script %s is both repairable and unrepairable", script)
		}
		r.unrepairable[script] = u.Reason
	}
	return r, nil
}

// LoadRules reads a YAML rule file and overlays it on the built-in table.
// Scripts present in the file replace the built-in entry.
func LoadRules(path string) (*Rules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules %s: %w", path, err)
	}
	defer f.Close()

	var file RuleFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}

	merged := RuleFile{}
	override := make(map[string]bool)
	for _, s := range file.Rules {
		override[strings.ToLower(s.Script)] = true
	}
	for _, s := range file.Unrepairable {
		override[strings.ToLower(s.Script)] = true
	}
	for _, s := range defaultSpecs {
		if !override[s.Script] {
			merged.Rules = append(merged.Rules, s)
		}
	}
	for _, u := range defaultUnrepairable {
		if !override[u.Script] {
			merged.Unrepairable = append(merged.Unrepairable, u)
		}
	}
	merged.Rules = append(merged.Rules, file.Rules...)
	merged.Unrepairable = append(merged.Unrepairable, file.Unrepairable...)

	rules, err := NewRules(merged)
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return rules, nil
}

// Supports reports whether script has a repair rule.
func (r *Rules) Supports(script string) bool {
	_, ok := r.rules[strings.ToLower(script)]
	return ok
}

// Unrepairable reports whether script is known to be beyond repair.
func (r *Rules) Unrepairable(script string) bool {
	_, ok := r.unrepairable[strings.ToLower(script)]
	return ok
}

// Scripts returns the repairable script codes, sorted.
func (r *Rules) Scripts() []string {
	out := make([]string, 0, len(r.rules))
	for s := range r.rules {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Repair corrects misrouted references for script and decodes them.
// Text without the script's erroneous pattern, and scripts without a rule,
// are returned unchanged. An unrepairable script whose text carries U+FFFD
// yields ErrUnrepairable.
func (r *Rules) Repair(text, script string) (string, error) {
	script = strings.ToLower(script)
	if reason, ok := r.unrepairable[script]; ok {
		if strings.ContainsRune(text, utf8.RuneError) {
			return text, fmt.Errorf("%w: %s: %s", ErrUnrepairable, script, reason)
		}
		return text, nil
	}

	rule, ok := r.rules[script]
	if !ok || !rule.Detect.MatchString(text) {
		return text, nil
	}

	fixed := rule.Detect.ReplaceAllStringFunc(text, func(ref string) string {
		loc := rule.Prefix.FindStringIndex(ref)
		if loc == nil || loc[0] != 0 {
			return ref
		}
		return rule.Corrected + ref[loc[1]:]
	})
	return DecodeReferences(fixed), nil
}

var numericRef = regexp.MustCompile(`&#(?:[xX]([0-9a-fA-F]{1,6})|([0-9]{1,7}));`)

// DecodeReferences replaces decimal and hex numeric character references
// with the characters they denote. References to surrogates or beyond
// U+10FFFF are left as they are.
func DecodeReferences(s string) string {
	if !strings.Contains(s, "&#") {
		return s
	}
	return numericRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := numericRef.FindStringSubmatch(ref)
		var (
			n   uint64
			err error
		)
		if m[1] != "" {
			n, err = strconv.ParseUint(m[1], 16, 32)
		} else {
			n, err = strconv.ParseUint(m[2], 10, 32)
		}
		if err != nil || n > utf8.MaxRune || (n >= 0xD800 && n <= 0xDFFF) || n == 0 {
			return ref
		}
		return string(rune(n))
	})
}
