package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/bibclean/pkg/marc"
)

func cmdSplit(args []string) {
	fs := flag.NewFlagSet("split", flag.ExitOnError)
	input := fs.String("i", "", "input MARC21 file (.mrc)")
	outDir := fs.String("o", "", "output directory (default: next to the input)")
	fs.Parse(args)

	logger := newLogger(os.Stderr, slog.LevelInfo)
	if *input == "" {
		fmt.Fprintln(os.Stderr, "split: -i is required")
		fs.Usage()
		os.Exit(2)
	}
	dir := *outDir
	if dir == "" {
		dir = filepath.Dir(*input)
	}

	in, err := os.Open(*input)
	if err != nil {
		fatal(logger, "open input", err)
	}
	defer in.Close()

	n, err := splitRecords(marc.NewReader(in, marc.ModeRaw), dir, func(err error) {
		logger.Warn("skipping record", "error", err)
	})
	if err != nil {
		fatal(logger, "split", err)
	}
	logger.Info("split complete", "records", n, "dir", dir)
}

// splitRecords writes every readable record to <dir>/<001>.mrc. Records
// without a control number are named after their position.
func splitRecords(r *marc.Reader, dir string, onSkip func(error)) (int, error) {
	n := 0
	for index := 0; ; index++ {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if errors.Is(err, marc.ErrRecordStructure) {
			onSkip(err)
			continue
		}
		if err != nil {
			return n, err
		}
		data, err := marc.Encode(rec)
		if err != nil {
			onSkip(err)
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, splitName(rec, index)), data, 0o644); err != nil {
			return n, err
		}
		n++
	}
}

func splitName(rec *marc.Record, index int) string {
	id := rec.ControlNumber()
	id = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || r < ' ' {
			return '_'
		}
		return r
	}, id)
	if id == "" || id == "." || id == ".." {
		id = fmt.Sprintf("record-%d", index+1)
	}
	return id + ".mrc"
}
