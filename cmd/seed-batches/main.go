package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/airscore/internal/seeding"
)

// Default configuration constants.
const (
	defaultProviders   = 20
	defaultBatches     = 10
	defaultNodes       = 8
	defaultDuplicates  = 10
	defaultFirstID     = 100_000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultSettle      = time.Minute
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		providers  = flag.Int("providers", defaultProviders, "Number of synthetic providers")
		batches    = flag.Int("batches", defaultBatches, "Batches per provider")
		nodes      = flag.Int("nodes", defaultNodes, "Nodes per batch")
		duplicates = flag.Int("duplicates", defaultDuplicates, "Batches posted twice")
		firstID    = flag.Int64("first-id", defaultFirstID, "Id of the first synthetic provider")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle     = flag.Duration("settle", defaultSettle, "How long to wait for ingestion")
		outputFile = flag.String("output", "", "Write the generated batches to this JSON file")
		logFile    = flag.String("log", "", "Also write logs to this file")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seeding.ShowHelp()
		return
	}

	if err := seeding.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	cfg := &seeding.Config{
		BaseURL:            *baseURL,
		Providers:          *providers,
		BatchesPerProvider: *batches,
		NodesPerBatch:      *nodes,
		Duplicates:         *duplicates,
		Workers:            *workers,
		Timeout:            *timeout,
		SettleTimeout:      *settle,
		FirstProviderID:    *firstID,
		OutputFile:         *outputFile,
		Verbose:            *verbose,
	}

	if err := seeding.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("seeding failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
