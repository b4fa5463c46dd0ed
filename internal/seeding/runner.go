package seeding

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/airscore/internal/domain/ingest"
	"github.com/okian/airscore/internal/domain/types"
	"github.com/okian/airscore/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run executes a complete seeding run: generate, post, rescore and verify.
func Run(ctx context.Context, cfg *Config) error {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting airscore seeding run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("providers", cfg.Providers),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.Bool("verbose", cfg.Verbose))

	client := newHTTPClient(cfg.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client, cfg.BaseURL); err != nil {
		return err
	}
	base, err := recordCount(ctx, client, cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	// Step 2: Generate batches
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)) //nolint:gosec // synthetic load
	plan, err := Generate(ctx, cfg, rng, time.Now())
	if err != nil {
		return fmt.Errorf("batch generation failed: %w", err)
	}
	stats.BatchesGenerated = len(plan.Batches)

	// Step 3: Submit batches, then replay some to exercise deduplication
	if err := submitBatches(ctx, cfg, plan.Batches, stats); err != nil {
		return fmt.Errorf("batch submission failed: %w", err)
	}
	if n := min(cfg.Duplicates, len(plan.Batches)); n > 0 {
		if err := submitBatches(ctx, cfg, plan.Batches[:n], stats); err != nil {
			return fmt.Errorf("duplicate submission failed: %w", err)
		}
	}

	// Step 4: Wait for the workers to drain the queue
	want := base + stats.BatchesAccepted*cfg.NodesPerBatch
	if err := waitForRecords(ctx, client, cfg, want); err != nil {
		return err
	}

	// Step 5: Rescore and fetch the ranking
	summary, err := rescore(ctx, client, cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("rescore failed: %w", err)
	}
	logger.Get().Info(ctx, "scoring run completed",
		logger.String("runID", summary.RunID),
		logger.String("mode", summary.Mode),
		logger.Int("providers", summary.Providers),
		logger.Int("nodes", summary.Nodes))

	var ranking []types.Entry
	if err := client.getJSON(ctx, cfg.BaseURL+"/ranking", &ranking); err != nil {
		return fmt.Errorf("ranking retrieval failed: %w", err)
	}

	// Step 6: Verify results
	verified, err := VerifyOrder(ranking, plan.Expected)
	stats.ProvidersVerified = verified
	if err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}
	displayTop(ctx, ranking, cfg.Verbose)

	// Step 7: Save batches to file
	if cfg.OutputFile != "" {
		if err := saveBatches(ctx, cfg.OutputFile, plan.Batches); err != nil {
			logger.Get().Warn(ctx, "failed to save batches to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	logger.Get().Info(ctx, "seeding run completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, baseURL string) error {
	logger.Get().Info(ctx, "checking service health")
	resp, err := client.Get(ctx, baseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer resp.Body.Close()

	// The health endpoint serves Prometheus metrics; any 200 is healthy.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// recordCount reads the size of the service's record log.
func recordCount(ctx context.Context, client *HTTPClient, baseURL string) (int, error) {
	var stats map[string]any
	if err := client.getJSON(ctx, baseURL+"/stats", &stats); err != nil {
		return 0, err
	}
	n, _ := stats["records"].(float64)
	return int(n), nil
}

// waitForRecords polls /stats until the record log holds want records.
func waitForRecords(ctx context.Context, client *HTTPClient, cfg *Config, want int) error {
	logger.Get().Info(ctx, "waiting for batches to be ingested", logger.Int("records", want))
	deadline := time.Now().Add(cfg.SettleTimeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		got, err := recordCount(ctx, client, cfg.BaseURL)
		if err == nil && got >= want {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %d of %d records", ErrNotSettled, got, want)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrNotSettled, ctx.Err())
		case <-ticker.C:
		}
	}
}

// rescore triggers a scoring run.
func rescore(ctx context.Context, client *HTTPClient, baseURL string) (types.RunSummary, error) {
	resp, err := client.Post(ctx, baseURL+"/rescore", nil)
	if err != nil {
		return types.RunSummary{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	var summary types.RunSummary
	if err := decodeResponse(resp, http.StatusOK, &summary); err != nil {
		return types.RunSummary{}, err
	}
	return summary, nil
}

// saveBatches writes the generated batches to a JSON file.
func saveBatches(ctx context.Context, filename string, batches []ingest.Batch) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(batches, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal batches: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "batches saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, batchesPerSecond float64
	if stats.BatchesSubmitted > 0 {
		successRate = float64(stats.BatchesAccepted+stats.BatchesDuplicate) / float64(stats.BatchesSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		batchesPerSecond = float64(stats.BatchesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("batchesGenerated", stats.BatchesGenerated),
		logger.Int("batchesSubmitted", stats.BatchesSubmitted),
		logger.Int("batchesAccepted", stats.BatchesAccepted),
		logger.Int("batchesDuplicate", stats.BatchesDuplicate),
		logger.Int("batchesFailed", stats.BatchesFailed),
		logger.Int("providersVerified", stats.ProvidersVerified),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("batchesPerSecond", batchesPerSecond))
}
