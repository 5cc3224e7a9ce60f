// CLAUDE:SUMMARY YAML run configuration with defaults, strict key checking, validation and conversion to pipeline options.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/bibclean/pkg/normalize"
	"github.com/hazyhaar/bibclean/pkg/pipeline"
	"github.com/hazyhaar/bibclean/pkg/repair"
)

// Config is the structured settings document read once at startup.
type Config struct {
	Normalisation string            `yaml:"normalisation"`
	Cyrillic      bool              `yaml:"cyrillic"`
	ThaiLao       string            `yaml:"thai_lao"`
	Fields        []string          `yaml:"fields"`
	Repair        RepairConfig      `yaml:"repair"`
	Stages        []string          `yaml:"stages"`
	FileTypes     []string          `yaml:"file_types"`
	ToBibframe    map[string]string `yaml:"to_bibframe"`
	Bibframe      BibframeConfig    `yaml:"bibframe"`
	Workers       int               `yaml:"workers"`
	Journal       string            `yaml:"journal"`
	LogLevel      string            `yaml:"log_level"`
	Addr          string            `yaml:"addr"`
}

// RepairConfig selects encoding repair.
type RepairConfig struct {
	Mode      string   `yaml:"mode"`
	Scripts   []string `yaml:"scripts"`
	RulesFile string   `yaml:"rules_file"`
}

// BibframeConfig locates the external XSLT transform and the RDF
// re-serializer used for ttl, nt and json_ld outputs.
type BibframeConfig struct {
	Stylesheet string `yaml:"stylesheet"`
	Processor  string `yaml:"processor"`
	Converter  string `yaml:"converter"`
}

// Output file types.
const (
	FileMRC     = "mrc"
	FileMRK     = "mrk"
	FileMARCXML = "marcxml"
	FileRDFXML  = "rdfxml"
	FileTurtle  = "ttl"
	FileNTriple = "nt"
	FileJSONLD  = "json_ld"
)

var validFileTypes = map[string]bool{
	FileMRC: true, FileMRK: true, FileMARCXML: true,
	FileRDFXML: true, FileTurtle: true, FileNTriple: true, FileJSONLD: true,
}

// RDFFileTypes are the outputs produced from the BIBFRAME transform.
var RDFFileTypes = []string{FileRDFXML, FileTurtle, FileNTriple, FileJSONLD}

var validStages = map[string]pipeline.Stage{
	"repair":    pipeline.StageRepair,
	"anomalies": pipeline.StageAnomalies,
	"normalize": pipeline.StageNormalize,
}

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		Normalisation: "NFC",
		ThaiLao:       "none",
		Fields:        []string{"880"},
		Repair:        RepairConfig{Mode: "none"},
		Stages:        []string{"repair", "anomalies", "normalize"},
		FileTypes:     []string{FileMRC},
		Bibframe:      BibframeConfig{Processor: "xsltproc", Converter: "riot"},
		Workers:       1,
		LogLevel:      "info",
		Addr:          ":8430",
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("no config file, using defaults", "path", path)
			return Default(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	if _, err := c.Policy(); err != nil {
		return err
	}
	if _, err := pipeline.ParseRepairMode(c.Repair.Mode); err != nil {
		return err
	}
	if _, err := c.EnabledStages(); err != nil {
		return err
	}
	for _, ft := range c.FileTypes {
		if !validFileTypes[ft] {
			return fmt.Errorf("unknown file type %q (want mrc, mrk, marcxml, rdfxml, ttl, nt or json_ld)", ft)
		}
	}
	if len(c.Fields) == 0 {
		return errors.New("fields: at least one native-script field is required")
	}
	for _, tag := range c.Fields {
		if len(tag) != 3 {
			return fmt.Errorf("fields: %q is not a 3-character tag", tag)
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers: %d is negative", c.Workers)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Policy builds the normalization policy.
func (c *Config) Policy() (normalize.Policy, error) {
	form, err := normalize.ParseForm(c.Normalisation)
	if err != nil {
		return normalize.Policy{}, err
	}
	conv, err := normalize.ParseConvention(c.ThaiLao)
	if err != nil {
		return normalize.Policy{}, err
	}
	return normalize.Policy{Form: form, CyrillicFolding: c.Cyrillic, ThaiLao: conv}, nil
}

// EnabledStages folds the stage names into a set.
func (c *Config) EnabledStages() (pipeline.Stage, error) {
	var s pipeline.Stage
	for _, name := range c.Stages {
		st, ok := validStages[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("unknown stage %q (want repair, anomalies or normalize)", name)
		}
		s |= st
	}
	return s, nil
}

// HasFileType reports whether any of fts is among the requested outputs.
func (c *Config) HasFileType(fts ...string) bool {
	for _, v := range c.FileTypes {
		for _, ft := range fts {
			if v == ft {
				return true
			}
		}
	}
	return false
}

// BibframeParams returns the transform parameters with empty values dropped.
func (c *Config) BibframeParams() map[string]string {
	out := make(map[string]string, len(c.ToBibframe))
	for k, v := range c.ToBibframe {
		if strings.TrimSpace(v) != "" {
			out[k] = v
		}
	}
	return out
}

// Options converts the configuration into orchestrator options.
func (c *Config) Options(logger *slog.Logger) (pipeline.Options, error) {
	policy, err := c.Policy()
	if err != nil {
		return pipeline.Options{}, err
	}
	mode, err := pipeline.ParseRepairMode(c.Repair.Mode)
	if err != nil {
		return pipeline.Options{}, err
	}
	stages, err := c.EnabledStages()
	if err != nil {
		return pipeline.Options{}, err
	}
	rules := repair.DefaultRules()
	if c.Repair.RulesFile != "" {
		rules, err = repair.LoadRules(c.Repair.RulesFile)
		if err != nil {
			return pipeline.Options{}, err
		}
	}
	return pipeline.Options{
		Policy:       policy,
		Stages:       stages,
		Repair:       mode,
		Scripts:      c.Repair.Scripts,
		Rules:        rules,
		NativeFields: c.Fields,
		Workers:      c.Workers,
		Logger:       logger,
	}, nil
}

// ParseLevel maps a log level name to slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// Overrides holds single-run values from the command line. Empty strings
// and nil pointers leave the configuration untouched.
type Overrides struct {
	Normalisation string
	Cyrillic      *bool
	ThaiLao       string
	Fields        string
	RepairMode    string
	Scripts       string
	FileTypes     string
	Workers       int
}

// Apply overlays o onto c and revalidates.
func (c *Config) Apply(o Overrides) error {
	if o.Normalisation != "" {
		c.Normalisation = o.Normalisation
	}
	if o.Cyrillic != nil {
		c.Cyrillic = *o.Cyrillic
	}
	if o.ThaiLao != "" {
		c.ThaiLao = o.ThaiLao
	}
	if o.Fields != "" {
		c.Fields = splitList(o.Fields)
	}
	if o.RepairMode != "" {
		c.Repair.Mode = o.RepairMode
	}
	if o.Scripts != "" {
		c.Repair.Scripts = splitList(o.Scripts)
	}
	if o.FileTypes != "" {
		c.FileTypes = splitList(o.FileTypes)
	}
	if o.Workers > 0 {
		c.Workers = o.Workers
	}
	return c.Validate()
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}
