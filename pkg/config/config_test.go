package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/bibclean/pkg/normalize"
	"github.com/hazyhaar/bibclean/pkg/pipeline"
)

func TestParse(t *testing.T) {
	doc := `
normalisation: NFM21
cyrillic: true
thai_lao: 2011
fields: ["880", "246"]
repair:
  mode: marc-8
  scripts: [adlm, rohg]
file_types: [mrc, mrk, marcxml]
to_bibframe:
  baseuri: http://example.org/
  idsource: ""
workers: 4
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p, err := cfg.Policy()
	if err != nil {
		t.Fatal(err)
	}
	want := normalize.Policy{Form: normalize.NFM21, CyrillicFolding: true, ThaiLao: normalize.Convention2011}
	if p != want {
		t.Errorf("Policy = %+v, want %+v", p, want)
	}
	if strings.Join(cfg.Fields, ",") != "880,246" {
		t.Errorf("Fields = %v", cfg.Fields)
	}
	params := cfg.BibframeParams()
	if len(params) != 1 || params["baseuri"] != "http://example.org/" {
		t.Errorf("BibframeParams = %v", params)
	}
	if !cfg.HasFileType(FileMRK) || cfg.HasFileType(FileRDFXML) {
		t.Errorf("FileTypes = %v", cfg.FileTypes)
	}
	// Unset keys keep their defaults.
	if cfg.LogLevel != "info" || cfg.Bibframe.Processor != "xsltproc" {
		t.Errorf("defaults lost: %+v", cfg)
	}

	opts, err := cfg.Options(nil)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Repair != pipeline.RepairLegacyReferences || opts.Workers != 4 || opts.Stages != pipeline.AllStages {
		t.Errorf("Options = %+v", opts)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name, doc, want string
	}{
		{"unknown key", "normalization: NFC\n", "not found"},
		{"bad form", "normalisation: NFKC\n", "normalization form"},
		{"bad year", "thai_lao: 2020\n", "convention"},
		{"bad mode", "repair:\n  mode: utf-16\n", "repair mode"},
		{"bad file type", "file_types: [pdf]\n", "file type"},
		{"bad stage", "stages: [transliterate]\n", "stage"},
		{"bad tag", "fields: ['88']\n", "3-character"},
		{"bad level", "log_level: loud\n", "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Normalisation != "NFC" || len(cfg.Fields) != 1 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoad(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "missing.yaml"), logger)
	if err != nil || cfg.Normalisation != "NFC" {
		t.Fatalf("missing file: %+v, %v", cfg, err)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("normalisation: NFD\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(path, logger)
	if err != nil || cfg.Normalisation != "NFD" {
		t.Fatalf("Load = %+v, %v", cfg, err)
	}
}

func TestApply(t *testing.T) {
	cfg := Default()
	on := true
	err := cfg.Apply(Overrides{
		Normalisation: "nfd",
		Cyrillic:      &on,
		ThaiLao:       "1997",
		Fields:        "880,246",
		RepairMode:    "cesu-8",
		FileTypes:     "mrc, mrk",
		Workers:       3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Cyrillic || cfg.Workers != 3 || len(cfg.FileTypes) != 2 || cfg.Repair.Mode != "cesu-8" {
		t.Errorf("Apply = %+v", cfg)
	}
	if err := cfg.Apply(Overrides{Normalisation: "bogus"}); err == nil {
		t.Error("invalid override accepted")
	}
}

func TestRDFFileTypes(t *testing.T) {
	cfg, err := Parse([]byte("file_types: [mrc, ttl, nt, json_ld]\nbibframe:\n  converter: /opt/jena/bin/riot\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.HasFileType(RDFFileTypes...) || cfg.HasFileType(FileRDFXML, FileMARCXML) {
		t.Errorf("FileTypes = %v", cfg.FileTypes)
	}
	if cfg.Bibframe.Converter != "/opt/jena/bin/riot" || cfg.Bibframe.Processor != "xsltproc" {
		t.Errorf("Bibframe = %+v", cfg.Bibframe)
	}
	if Default().Bibframe.Converter != "riot" {
		t.Errorf("default converter = %q", Default().Bibframe.Converter)
	}
}
