// CLAUDE:SUMMARY Per-record orchestrator: language resolution, linkage scan, repair, anomaly scan and normalization with field-level error collection.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/bibclean/pkg/anomaly"
	"github.com/hazyhaar/bibclean/pkg/linkage"
	"github.com/hazyhaar/bibclean/pkg/marc"
	"github.com/hazyhaar/bibclean/pkg/normalize"
	"github.com/hazyhaar/bibclean/pkg/repair"
)

// Stage is a bit set of optional processing steps.
type Stage uint8

const (
	StageRepair Stage = 1 << iota
	StageAnomalies
	StageNormalize

	AllStages = StageRepair | StageAnomalies | StageNormalize
)

// Has reports whether every stage in x is enabled.
func (s Stage) Has(x Stage) bool { return s&x == x }

func (s Stage) String() string {
	var names []string
	if s.Has(StageRepair) {
		names = append(names, "repair")
	}
	if s.Has(StageAnomalies) {
		names = append(names, "anomalies")
	}
	if s.Has(StageNormalize) {
		names = append(names, "normalize")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// RepairMode selects the encoding repair applied to native-script fields.
type RepairMode int

const (
	RepairNone RepairMode = iota
	// RepairCESU8Forward turns CESU-8 surrogate pairs into UTF-8.
	RepairCESU8Forward
	// RepairCESU8Reverse re-encodes supplementary characters as CESU-8.
	RepairCESU8Reverse
	// RepairLegacyReferences fixes truncated numeric character references
	// left by MARC-8 exports.
	RepairLegacyReferences
)

// ParseRepairMode accepts none, cesu-8, cesu-8-reverse and marc-8.
func ParseRepairMode(s string) (RepairMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return RepairNone, nil
	case "cesu-8", "cesu8":
		return RepairCESU8Forward, nil
	case "cesu-8-reverse", "utf-8":
		return RepairCESU8Reverse, nil
	case "marc-8", "marc8":
		return RepairLegacyReferences, nil
	default:
		return RepairNone, fmt.Errorf("unknown repair mode %q (want none, cesu-8, cesu-8-reverse or marc-8)", s)
	}
}

func (m RepairMode) String() string {
	switch m {
	case RepairCESU8Forward:
		return "cesu-8"
	case RepairCESU8Reverse:
		return "cesu-8-reverse"
	case RepairLegacyReferences:
		return "marc-8"
	default:
		return "none"
	}
}

// State is the last processing step a record reached.
type State int

const (
	StateLanguageResolution State = iota
	StateLinkageScan
	StatePerFieldRepair
	StateAnomalyScan
	StateNormalization
	StateDone
)

func (s State) String() string {
	switch s {
	case StateLanguageResolution:
		return "LanguageResolution"
	case StateLinkageScan:
		return "LinkageScan"
	case StatePerFieldRepair:
		return "PerFieldRepair"
	case StateAnomalyScan:
		return "AnomalyScan"
	case StateNormalization:
		return "Normalization"
	default:
		return "Done"
	}
}

// Kind classifies a warning for the run journal.
type Kind string

const (
	KindAnomaly             Kind = "anomaly"
	KindMalformedLinkage    Kind = "malformed_linkage"
	KindEncodingRepairError Kind = "encoding_repair_error"
	KindUnrepairable        Kind = "unrepairable"
	KindNoLanguage          Kind = "no_language"
	KindSkippedRecord       Kind = "skipped_record"
)

// Warning is a recoverable problem attached to a record.
type Warning struct {
	Tag  string `json:"tag,omitempty"`
	Code string `json:"code,omitempty"`
	Kind Kind   `json:"kind"`
	Err  error  `json:"-"`
}

func (w Warning) String() string {
	loc := w.Tag
	if w.Code != "" {
		loc += "$" + w.Code
	}
	if loc == "" {
		return fmt.Sprintf("%s: %v", w.Kind, w.Err)
	}
	return fmt.Sprintf("%s %s: %v", loc, w.Kind, w.Err)
}

// FieldFinding is an anomaly located in a subfield.
type FieldFinding struct {
	Tag     string          `json:"tag"`
	Code    string          `json:"code"`
	Finding anomaly.Finding `json:"finding"`
}

// RecordReport is the outcome of processing one record. A skipped record
// has a nil Record and Skip set.
type RecordReport struct {
	Index     int            `json:"index"`
	ID        string         `json:"id"`
	Record    *marc.Record   `json:"-"`
	Language  string         `json:"language"`
	Languages []string       `json:"languages,omitempty"`
	State     State          `json:"-"`
	Repaired  int            `json:"repaired"`
	Warnings  []Warning      `json:"warnings,omitempty"`
	Findings  []FieldFinding `json:"findings,omitempty"`
	Skip      error          `json:"-"`
}

// Skipped reports whether the record could not be read.
func (r *RecordReport) Skipped() bool { return r.Skip != nil }

func (r *RecordReport) warn(tag, code string, kind Kind, err error) {
	r.Warnings = append(r.Warnings, Warning{Tag: tag, Code: code, Kind: kind, Err: err})
}

// Options configures an Orchestrator. Zero values pick defaults: NFC, no
// stages, no repair, native fields [880], the built-in repair rules.
type Options struct {
	Policy       normalize.Policy
	Stages       Stage
	Repair       RepairMode
	Scripts      []string
	Rules        *repair.Rules
	NativeFields []string
	Detector     *anomaly.Detector
	Workers      int
	Logger       *slog.Logger
}

// ErrUnknownScript is returned by New for a repair script with no rule.
var ErrUnknownScript = errors.New("no repair rule for script")

// Orchestrator runs the per-record state machine. It holds only immutable
// configuration and is safe for concurrent use.
type Orchestrator struct {
	policy   normalize.Policy
	stages   Stage
	mode     RepairMode
	scripts  map[string]bool
	rules    *repair.Rules
	native   map[string]bool
	detector *anomaly.Detector
	workers  int
	logger   *slog.Logger
}

// New validates opts and builds an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	o := &Orchestrator{
		policy:   opts.Policy,
		stages:   opts.Stages,
		mode:     opts.Repair,
		scripts:  make(map[string]bool),
		rules:    opts.Rules,
		native:   make(map[string]bool),
		detector: opts.Detector,
		workers:  opts.Workers,
		logger:   opts.Logger,
	}
	if o.rules == nil {
		o.rules = repair.DefaultRules()
	}
	if o.detector == nil {
		o.detector = anomaly.DefaultDetector()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.workers < 1 {
		o.workers = 1
	}
	fields := opts.NativeFields
	if len(fields) == 0 {
		fields = []string{"880"}
	}
	for _, tag := range fields {
		o.native[tag] = true
	}
	for _, s := range opts.Scripts {
		s = strings.ToLower(strings.TrimSpace(s))
		if !o.rules.Supports(s) && !o.rules.Unrepairable(s) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownScript, s)
		}
		o.scripts[s] = true
	}
	return o, nil
}

// fieldContext is what LinkageScan learned about a native-script field.
type fieldContext struct {
	script string
	ok     bool
}

// Process runs every enabled stage over rec in place. Field-level and
// record-level problems are collected in the report, never returned.
func (o *Orchestrator) Process(index int, rec *marc.Record) *RecordReport {
	rep := &RecordReport{Index: index, ID: recordID(index, rec), Record: rec}

	rep.State = StateLanguageResolution
	lang, langs, err := ResolveLanguage(rec)
	if err != nil {
		rep.warn("", "", KindNoLanguage, err)
	}
	rep.Language, rep.Languages = lang, langs

	rep.State = StateLinkageScan
	links := make(map[*marc.Field]fieldContext)
	for _, f := range rec.Fields {
		if f.IsControl() || !o.native[f.Tag] {
			continue
		}
		raw, _ := f.Subfield("6")
		d, err := linkage.Parse(raw)
		if err != nil {
			rep.warn(f.Tag, "6", KindMalformedLinkage, err)
			links[f] = fieldContext{}
			continue
		}
		links[f] = fieldContext{script: d.ISOScript(), ok: true}
	}

	if o.stages.Has(StageRepair) && o.mode != RepairNone {
		rep.State = StatePerFieldRepair
		o.repairRecord(rec, links, rep)
	}

	// Reverse CESU-8 output is deliberately not UTF-8; later stages read
	// and write it through its Unicode form.
	encoded := func(f *marc.Field, code string) bool {
		_, native := links[f]
		return native && o.stages.Has(StageRepair) && o.mode == RepairCESU8Reverse &&
			code != "6" && code != "8"
	}

	if o.stages.Has(StageAnomalies) {
		rep.State = StateAnomalyScan
		for _, f := range rec.Fields {
			if f.IsControl() {
				continue
			}
			for _, sf := range f.Subfields {
				text := sf.Value
				if encoded(f, sf.Code) {
					text = unicodeView(text)
				}
				for _, finding := range o.detector.Detect(text).Sorted() {
					rep.Findings = append(rep.Findings, FieldFinding{Tag: f.Tag, Code: sf.Code, Finding: finding})
				}
			}
		}
	}

	if o.stages.Has(StageNormalize) {
		rep.State = StateNormalization
		for _, f := range rec.Fields {
			if f.IsControl() {
				continue
			}
			ctx := normalize.Context{Language: lang}
			if fc, native := links[f]; native {
				ctx.NativeScript = true
				ctx.Script = fc.script
			}
			for i, sf := range f.Subfields {
				if !encoded(f, sf.Code) {
					f.SetSubfield(i, o.policy.Apply(sf.Value, ctx))
					continue
				}
				out, err := repair.ReverseCESU8(o.policy.Apply(unicodeView(sf.Value), ctx))
				if err == nil {
					f.SetSubfield(i, out)
				}
			}
		}
	}

	rep.State = StateDone
	for _, w := range rep.Warnings {
		o.logger.Warn("record warning", "record", rep.ID, "tag", w.Tag, "kind", string(w.Kind), "error", w.Err)
	}
	return rep
}

func (o *Orchestrator) repairRecord(rec *marc.Record, links map[*marc.Field]fieldContext, rep *RecordReport) {
	if o.mode == RepairLegacyReferences {
		// Repaired references decode to Unicode, so the record is UTF-8 now.
		rec.SetLeaderByte(9, 'a')
	}
	for _, f := range rec.Fields {
		fc, native := links[f]
		if !native {
			continue
		}
		if o.mode == RepairLegacyReferences && (!fc.ok || !o.scripts[fc.script]) {
			continue
		}
		changed := false
		for i, sf := range f.Subfields {
			if sf.Code == "6" || sf.Code == "8" {
				continue
			}
			out, err := o.repairValue(sf.Value, fc.script)
			switch {
			case errors.Is(err, repair.ErrUnrepairable):
				rep.warn(f.Tag, sf.Code, KindUnrepairable, err)
				continue
			case err != nil:
				rep.warn(f.Tag, sf.Code, KindEncodingRepairError, err)
				continue
			}
			if out != sf.Value {
				f.SetSubfield(i, out)
				changed = true
			}
		}
		if changed {
			rep.Repaired++
		}
	}
}

func (o *Orchestrator) repairValue(value, script string) (string, error) {
	switch o.mode {
	case RepairCESU8Forward:
		return repair.ForwardCESU8(value)
	case RepairCESU8Reverse:
		return repair.ReverseCESU8(value)
	case RepairLegacyReferences:
		return o.rules.Repair(value, script)
	default:
		return value, nil
	}
}

// unicodeView decodes CESU-8 text for inspection. Text that does not decode
// is returned as is.
func unicodeView(s string) string {
	if out, err := repair.ForwardCESU8(s); err == nil {
		return out
	}
	return s
}

func recordID(index int, rec *marc.Record) string {
	if rec != nil {
		if id := rec.ControlNumber(); id != "" {
			return id
		}
	}
	return fmt.Sprintf("#%d", index+1)
}
