// CLAUDE:SUMMARY clean subcommand: reads a MARC21 file, runs the orchestrator and writes the requested outputs, journal and summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/hazyhaar/bibclean/pkg/config"
	"github.com/hazyhaar/bibclean/pkg/journal"
	"github.com/hazyhaar/bibclean/pkg/marc"
	"github.com/hazyhaar/bibclean/pkg/pipeline"
)

func cmdClean(args []string) {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	input := fs.String("i", "", "input MARC21 file (.mrc)")
	outDir := fs.String("o", "", "output directory (default: next to the input)")
	verbose := fs.Bool("v", false, "debug logging and settings dump")
	terminal := fs.Bool("vt", false, "print cleaned records to stdout and write no files")
	logToFile := fs.Bool("l", false, "also write the run log to <stem>.log")
	cyrillic := fs.String("c", "", "Cyrillic half-mark folding: true or false")
	var ov config.Overrides
	fs.StringVar(&ov.Normalisation, "n", "", "normalization form: NFC, NFD or NFM21")
	fs.StringVar(&ov.ThaiLao, "t", "", "Thai/Lao romanization: 1997, 2011 or none")
	fs.StringVar(&ov.Fields, "f", "", "comma-separated native-script fields (e.g. 880)")
	fs.StringVar(&ov.RepairMode, "m", "", "repair mode: none, cesu-8, cesu-8-reverse or marc-8")
	fs.StringVar(&ov.Scripts, "s", "", "comma-separated ISO 15924 scripts to repair")
	fs.StringVar(&ov.FileTypes, "ft", "", "comma-separated outputs: mrc, mrk, marcxml, rdfxml, ttl, nt, json_ld")
	fs.IntVar(&ov.Workers, "w", 0, "parallel workers")
	fs.Parse(args)

	cfg, logger := loadConfig(*cfgPath, *verbose)
	if *input == "" {
		fmt.Fprintln(os.Stderr, "clean: -i is required")
		fs.Usage()
		os.Exit(2)
	}
	var runLog *slog.Logger
	if *logToFile {
		path := logPath(*input, *outDir)
		f, err := os.Create(path)
		if err != nil {
			fatal(logger, "create log file", err)
		}
		defer f.Close()
		logger = newLogger(io.MultiWriter(os.Stderr, f), logLevel(cfg, *verbose))
		runLog = newLogger(f, slog.LevelInfo)
		logger.Info("logging to file", "path", path)
	}
	if *cyrillic != "" {
		v, err := strconv.ParseBool(*cyrillic)
		if err != nil {
			fatal(logger, "invalid -c value", err)
		}
		ov.Cyrillic = &v
	}
	if err := cfg.Apply(ov); err != nil {
		fatal(logger, "invalid settings", err)
	}

	opts, err := cfg.Options(logger)
	if err != nil {
		fatal(logger, "invalid settings", err)
	}
	orch, err := pipeline.New(opts)
	if err != nil {
		fatal(logger, "invalid settings", err)
	}
	settingsLevel := slog.LevelDebug
	if *terminal || *logToFile {
		settingsLevel = slog.LevelInfo
	}
	logger.Log(context.Background(), settingsLevel, "settings",
		"input", *input,
		"normalisation", cfg.Normalisation,
		"cyrillic", cfg.Cyrillic,
		"thai_lao", cfg.ThaiLao,
		"fields", strings.Join(cfg.Fields, ","),
		"repair_mode", opts.Repair.String(),
		"scripts", strings.Join(cfg.Repair.Scripts, ","),
		"stages", opts.Stages.String(),
		"file_types", strings.Join(cfg.FileTypes, ","),
		"bibframe_params", cfg.BibframeParams(),
		"workers", cfg.Workers,
	)

	in, err := os.Open(*input)
	if err != nil {
		fatal(logger, "open input", err)
	}
	defer in.Close()

	mode := marc.ModeDecoded
	if opts.Repair == pipeline.RepairCESU8Forward || opts.Repair == pipeline.RepairCESU8Reverse {
		mode = marc.ModeRaw
	}

	var out *outputs
	if *terminal {
		out = terminalOutputs(os.Stdout)
	} else {
		out, err = openOutputs(cfg, *input, *outDir, outputSuffix(opts.Repair))
		if err != nil {
			fatal(logger, "open outputs", err)
		}
	}

	var sink pipeline.Sink = out
	if runLog != nil {
		sink = logRecords(runLog, sink)
	}
	var jnl *journal.Journal
	var runID string
	if cfg.Journal != "" {
		jnl, err = journal.Open(cfg.Journal)
		if err != nil {
			fatal(logger, "open journal", err)
		}
		defer jnl.Close()
		runID, err = jnl.StartRun(*input, cfg)
		if err != nil {
			fatal(logger, "start run", err)
		}
		sink = jnl.Sink(runID, out)
		logger.Info("journaling run", "run_id", runID, "path", cfg.Journal)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, runErr := orch.Run(ctx, marc.NewReader(in, mode), sink)
	if err := out.Close(ctx, cfg, logger); err != nil {
		logger.Error("close outputs", "error", err)
	}
	if jnl != nil {
		if err := jnl.FinishRun(runID, sum); err != nil {
			logger.Error("finish run", "error", err)
		}
	}
	printSummary(sum)
	if runErr != nil {
		fatal(logger, "run aborted", runErr)
	}
}

// logPath returns <dir>/<stem>.log, next to the input by default.
func logPath(input, dir string) string {
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))+".log")
}

// logRecords writes one line per record to logger before passing it on.
func logRecords(logger *slog.Logger, next pipeline.Sink) pipeline.Sink {
	return pipeline.SinkFunc(func(rep *pipeline.RecordReport) error {
		if rep.Skipped() {
			logger.Warn("skipped record", "index", rep.Index, "error", rep.Skip)
		} else {
			logger.Info("processed record",
				"record", rep.ID,
				"languages", strings.Join(rep.Languages, ","),
				"repaired", rep.Repaired,
				"findings", len(rep.Findings),
				"warnings", len(rep.Warnings),
			)
		}
		return next.Put(rep)
	})
}

func printSummary(s pipeline.Summary) {
	fmt.Printf("Records:             %d\n", s.Records)
	fmt.Printf("Processed:           %d\n", s.Processed)
	fmt.Printf("Skipped:             %d\n", s.Skipped)
	fmt.Printf("Repaired fields:     %d\n", s.RepairedFields)
	fmt.Printf("Anomalies:           %d\n", s.Anomalies)
	fmt.Printf("Unrepairable fields: %d\n", s.UnrepairableFields)
	fmt.Printf("Repair errors:       %d\n", s.RepairErrors)
	fmt.Printf("Linkage warnings:    %d\n", s.LinkageWarnings)
	fmt.Printf("Language warnings:   %d\n", s.LanguageWarnings)
}
