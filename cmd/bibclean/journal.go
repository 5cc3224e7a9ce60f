package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/hazyhaar/bibclean/pkg/journal"
	"github.com/hazyhaar/bibclean/pkg/pipeline"
)

func cmdJournal(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	path := fs.String("db", "", "journal database (default: the config's journal)")
	runID := fs.String("run", "", "list the findings of this run instead of the runs")
	kind := fs.String("kind", "", "only findings of this kind (e.g. anomaly, unrepairable)")
	fs.Parse(args)

	cfg, logger := loadConfig(*cfgPath, false)
	if *path == "" {
		*path = cfg.Journal
	}
	if *path == "" {
		fmt.Fprintln(os.Stderr, "journal: no journal configured, use -db")
		os.Exit(2)
	}
	if _, err := os.Stat(*path); err != nil {
		fatal(logger, "open journal", err)
	}

	j, err := journal.Open(*path)
	if err != nil {
		fatal(logger, "open journal", err)
	}
	defer j.Close()

	if *runID == "" {
		err = listRuns(os.Stdout, j)
	} else {
		err = listFindings(os.Stdout, j, *runID, pipeline.Kind(*kind))
	}
	if err != nil {
		fatal(logger, "list", err)
	}
}

// listRuns prints one line per run, newest first.
func listRuns(w io.Writer, j *journal.Journal) error {
	runs, err := j.Runs()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tINPUT\tRECORDS\tSKIPPED\tANOMALIES\tREPAIRED")
	for _, r := range runs {
		started := time.Unix(r.StartedAt, 0).UTC().Format(time.RFC3339)
		if r.Summary == nil {
			fmt.Fprintf(tw, "%s\t%s\t%s\t-\t-\t-\t-\n", r.ID, started, r.Input)
			continue
		}
		s := r.Summary
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n", r.ID, started, r.Input, s.Records, s.Skipped, s.Anomalies, s.RepairedFields)
	}
	return tw.Flush()
}

// listFindings prints the review queue of one run.
func listFindings(w io.Writer, j *journal.Journal, runID string, kind pipeline.Kind) error {
	entries, err := j.Findings(runID, kind)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORD\tFIELD\tKIND\tDETAIL")
	for _, e := range entries {
		field := e.Tag
		if e.Code != "" {
			field += "$" + e.Code
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.RecordID, field, e.Kind, e.Detail)
	}
	return tw.Flush()
}
