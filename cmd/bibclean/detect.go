package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hazyhaar/bibclean/pkg/marc"
	"github.com/hazyhaar/bibclean/pkg/pipeline"
)

func cmdDetect(args []string) {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	input := fs.String("i", "", "input MARC21 file (.mrc)")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	_, logger := loadConfig(*cfgPath, *verbose)
	if *input == "" {
		fmt.Fprintln(os.Stderr, "detect: -i is required")
		fs.Usage()
		os.Exit(2)
	}

	in, err := os.Open(*input)
	if err != nil {
		fatal(logger, "open input", err)
	}
	defer in.Close()

	orch, err := pipeline.New(pipeline.Options{Stages: pipeline.StageAnomalies, Logger: logger})
	if err != nil {
		fatal(logger, "init", err)
	}
	sum, err := orch.Run(context.Background(), marc.NewReader(in, marc.ModeDecoded), findingsPrinter(os.Stdout))
	if err != nil {
		fatal(logger, "run aborted", err)
	}
	fmt.Printf("%d anomalies in %d records (%d skipped)\n", sum.Anomalies, sum.Processed, sum.Skipped)
}

// findingsPrinter writes each subfield's findings as a block followed by a
// blank line.
func findingsPrinter(w io.Writer) pipeline.Sink {
	return pipeline.SinkFunc(func(rep *pipeline.RecordReport) error {
		var lastTag, lastCode string
		open := false
		for _, f := range rep.Findings {
			if !open || f.Tag != lastTag || f.Code != lastCode {
				if open {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "%s %s$%s\n", rep.ID, f.Tag, f.Code)
				lastTag, lastCode, open = f.Tag, f.Code, true
			}
			fmt.Fprintln(w, f.Finding.String())
		}
		if open {
			fmt.Fprintln(w)
		}
		return nil
	})
}
