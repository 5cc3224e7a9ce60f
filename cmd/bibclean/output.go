// CLAUDE:SUMMARY Output fan-out for the clean command: one writer per requested file type, named after the input file, or a text dump on the terminal.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/bibclean/pkg/bibframe"
	"github.com/hazyhaar/bibclean/pkg/config"
	"github.com/hazyhaar/bibclean/pkg/marc"
	"github.com/hazyhaar/bibclean/pkg/pipeline"
)

var extensions = map[string]string{
	config.FileMRC:     ".mrc",
	config.FileMRK:     ".mrk",
	config.FileMARCXML: ".xml",
	config.FileRDFXML:  ".rdf",
	config.FileTurtle:  ".ttl",
	config.FileNTriple: ".nt",
	config.FileJSONLD:  ".json",
}

var serializations = map[string]string{
	config.FileTurtle:  bibframe.Turtle,
	config.FileNTriple: bibframe.NTriples,
	config.FileJSONLD:  bibframe.JSONLD,
}

// outputSuffix names the run: supplementary-plane conversions say which way
// they went, everything else is "_clean".
func outputSuffix(mode pipeline.RepairMode) string {
	switch mode {
	case pipeline.RepairCESU8Forward:
		return "_utf8"
	case pipeline.RepairCESU8Reverse:
		return "_cesu8"
	default:
		return "_clean"
	}
}

// outputPath returns <dir>/<stem><suffix><ext>. An empty dir means the
// input's directory.
func outputPath(input, dir, suffix, fileType string) string {
	if dir == "" {
		dir = filepath.Dir(input)
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, stem+suffix+extensions[fileType])
}

type outputs struct {
	files    []*os.File
	writers  []marc.Writer
	rdf      *bytes.Buffer
	rdfXML   *marc.XMLWriter
	rdfPaths map[string]string
}

func openOutputs(cfg *config.Config, input, dir, suffix string) (*outputs, error) {
	o := &outputs{}
	if cfg.HasFileType(config.RDFFileTypes...) {
		o.rdf = &bytes.Buffer{}
		o.rdfXML = marc.NewXMLWriter(o.rdf)
		o.rdfPaths = make(map[string]string)
	}
	for _, ft := range cfg.FileTypes {
		path := outputPath(input, dir, suffix, ft)
		if _, rdf := serializations[ft]; rdf || ft == config.FileRDFXML {
			o.rdfPaths[ft] = path
			continue
		}
		f, err := os.Create(path)
		if err != nil {
			o.abort()
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		o.files = append(o.files, f)
		switch ft {
		case config.FileMRC:
			o.writers = append(o.writers, marc.NewBinaryWriter(f))
		case config.FileMRK:
			o.writers = append(o.writers, marc.NewTextWriter(f))
		case config.FileMARCXML:
			o.writers = append(o.writers, marc.NewXMLWriter(f))
		}
	}
	return o, nil
}

// terminalOutputs prints every cleaned record in .mrk form to w and writes
// no files.
func terminalOutputs(w io.Writer) *outputs {
	return &outputs{writers: []marc.Writer{marc.NewTextWriter(w)}}
}

// Put implements pipeline.Sink. Skipped records produce no output.
func (o *outputs) Put(rep *pipeline.RecordReport) error {
	if rep.Skipped() {
		return nil
	}
	for _, w := range o.writers {
		if err := w.Write(rep.Record); err != nil {
			return err
		}
	}
	if o.rdfXML != nil {
		return o.rdfXML.Write(rep.Record)
	}
	return nil
}

// Close flushes every writer, then runs the BIBFRAME transform if requested.
func (o *outputs) Close(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var errs []error
	for _, w := range o.writers {
		errs = append(errs, w.Close())
	}
	for _, f := range o.files {
		errs = append(errs, f.Close())
	}
	if o.rdfXML != nil {
		errs = append(errs, o.rdfXML.Close())
		errs = append(errs, writeRDF(ctx, cfg, o.rdf.Bytes(), o.rdfPaths, logger))
	}
	return errors.Join(errs...)
}

func (o *outputs) abort() {
	for _, f := range o.files {
		f.Close()
	}
}

// writeRDF transforms marcxml to BIBFRAME once and writes each requested
// RDF file type. Missing external tools are warnings, not failures.
func writeRDF(ctx context.Context, cfg *config.Config, marcxml []byte, paths map[string]string, logger *slog.Logger) error {
	x, err := bibframe.NewXSLTProc(cfg.Bibframe.Processor, cfg.Bibframe.Stylesheet)
	if errors.Is(err, bibframe.ErrStylesheetMissing) {
		logger.Warn("BIBFRAME support unavailable, skipping RDF output", "error", err)
		return nil
	}
	if err != nil {
		return err
	}
	rdf, err := x.Transform(ctx, marcxml, cfg.BibframeParams())
	if err != nil {
		return fmt.Errorf("bibframe transform: %w", err)
	}
	if path, ok := paths[config.FileRDFXML]; ok {
		if err := writeFile(path, rdf, logger); err != nil {
			return err
		}
	}

	var riot *bibframe.Riot
	for _, ft := range config.RDFFileTypes {
		path, ok := paths[ft]
		format := serializations[ft]
		if !ok || format == "" {
			continue
		}
		if riot == nil {
			riot, err = bibframe.NewRiot(cfg.Bibframe.Converter)
			if err != nil {
				logger.Warn("RDF converter unavailable, skipping serializations", "error", err)
				return nil
			}
		}
		out, err := riot.Convert(ctx, rdf, format)
		if err != nil {
			return fmt.Errorf("convert to %s: %w", format, err)
		}
		if err := writeFile(path, out, logger); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, data []byte, logger *slog.Logger) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logger.Info("wrote BIBFRAME", "path", path)
	return nil
}
