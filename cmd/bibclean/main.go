package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hazyhaar/bibclean/pkg/config"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "clean":
		cmdClean(os.Args[2:])
	case "detect":
		cmdDetect(os.Args[2:])
	case "split":
		cmdSplit(os.Args[2:])
	case "serve":
		cmdServe(os.Args[2:])
	case "journal":
		cmdJournal(os.Args[2:])
	case "version":
		fmt.Println("bibclean", version)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: bibclean <command> [flags]

Commands:
  clean     Repair and normalize a MARC21 file
  detect    Report disallowed characters without changing anything
  split     Write each record to its own <001>.mrc file
  serve     Start the HTTP API (or the MCP stdio server with -mcp)
  journal   List journaled runs, or the findings of one run
  version   Print the version
`)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the config file and applies the log level it names.
func loadConfig(path string, verbose bool) (*config.Config, *slog.Logger) {
	logger := newLogger(os.Stderr, slog.LevelInfo)
	cfg, err := config.Load(path, logger)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	return cfg, newLogger(os.Stderr, logLevel(cfg, verbose))
}

func logLevel(cfg *config.Config, verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	return level
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
