package seeding

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/airscore/internal/domain/ingest"
	"github.com/okian/airscore/pkg/logger"
)

var regions = []string{"香港", "台湾", "日本", "新加坡", "美国", "英国"}

// Generate builds a workload for cfg. Providers are assigned to tiers in a
// random order; Expected lists them best tier first.
func Generate(ctx context.Context, cfg *Config, rng *rand.Rand, now time.Time) (Plan, error) {
	if cfg.Providers < 1 || cfg.BatchesPerProvider < 1 || cfg.NodesPerBatch < 1 {
		return Plan{}, fmt.Errorf("%w: providers, batches and nodes must be positive", ErrInvalidConfig)
	}
	logger.Get().Info(ctx, "generating batches",
		logger.Int("providers", cfg.Providers),
		logger.Int("batchesPerProvider", cfg.BatchesPerProvider),
		logger.Int("nodesPerBatch", cfg.NodesPerBatch))

	// tier 0 is the best
	tiers := rng.Perm(cfg.Providers)
	expected := make([]int64, cfg.Providers)
	for i, tier := range tiers {
		expected[tier] = cfg.FirstProviderID + int64(i)
	}

	plan := Plan{Expected: expected}
	for i, tier := range tiers {
		pid := cfg.FirstProviderID + int64(i)
		name := "seed-provider-" + strconv.FormatInt(pid, 10)
		for b := range cfg.BatchesPerProvider {
			if err := ctx.Err(); err != nil {
				return Plan{}, fmt.Errorf("generation cancelled: %w", err)
			}
			batch := ingest.Batch{
				ID:           uuid.NewString(),
				ProviderID:   pid,
				ProviderName: name,
				TestTime:     now.Add(-time.Duration(rng.IntN(72)) * time.Hour).In(ingest.TestTimeZone).Format(ingest.TestTimeLayout),
				HostInfo:     "seed-batches",
			}
			for n := range cfg.NodesPerBatch {
				batch.Rows = append(batch.Rows, generateRow(rng, tier, cfg.Providers, n))
			}
			if b%malformedEvery == malformedEvery-1 {
				bad := generateRow(rng, tier, cfg.Providers, cfg.NodesPerBatch)
				bad["HTTPS延迟"] = "-"
				batch.Rows = append(batch.Rows, bad)
			}
			plan.Batches = append(plan.Batches, batch)
			plan.Rows += cfg.NodesPerBatch
		}
	}

	logger.Get().Info(ctx, "generated batches", logger.Int("count", len(plan.Batches)))
	return plan, nil
}

// generateRow renders one OCR table row for a node of the given tier.
func generateRow(rng *rand.Rand, tier, tiers, node int) ingest.RawRow {
	level := float64(tiers - 1 - tier)
	avg := speedBaseMB + speedTierMB*level + rng.Float64()*speedJitterMB
	peak := avg * peakFactor
	rtt := rttBaseMS + rttTierMS*float64(tier) + rng.Float64()*rttJitterMS
	delay := delayBaseMS + delayTierMS*float64(tier) + rng.Float64()*delayJitterMS

	speed := fmt.Sprintf("%.2fMB", avg)
	if node%2 == 1 {
		speed = fmt.Sprintf("%.0fKB", avg*kbPerMB)
	}
	return ingest.RawRow{
		"节点名称":    fmt.Sprintf("%s %02d", regions[node%len(regions)], node+1),
		"平均速度":    speed,
		"最高速度":    fmt.Sprintf("%.2fMB", peak),
		"TLS RTT": fmt.Sprintf("%.0fms", rtt),
		"HTTPS延迟": fmt.Sprintf("%.0fms", delay),
	}
}
