package seeding

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/airscore/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0o600
)

// SetupLogging configures logging to the console and, when logFile is set,
// to that file as well.
func SetupLogging(logFile string, verbose bool) error {
	var w io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.InitWithFormat(w, logger.FormatText); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the seeding tool.
func ShowHelp() {
	os.Stdout.WriteString(`airscore seed-batches
=====================

Generates synthetic speed-test screenshot batches for a set of providers
with a known quality order, posts them to the service, triggers a rescore
and checks that the ranking matches the known order.

Usage:
  go run ./cmd/seed-batches [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -providers int
        Number of synthetic providers (default 20)
  -batches int
        Batches per provider (default 10)
  -nodes int
        Nodes per batch (default 8)
  -duplicates int
        Batches posted twice to exercise deduplication (default 10)
  -first-id int
        Id of the first synthetic provider (default 100000)
  -workers int
        Number of concurrent submitters (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -settle duration
        How long to wait for ingestion (default 1m)
  -output string
        Write the generated batches to this JSON file
  -log string
        Also write logs to this file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  go run ./cmd/seed-batches -providers 50 -batches 20
  go run ./cmd/seed-batches -url http://localhost:8080 -verbose
`)
}
