package seeding

import (
	"context"
	"fmt"

	"github.com/okian/airscore/internal/domain/types"
	"github.com/okian/airscore/pkg/logger"
)

const displayTopN = 10

// VerifyOrder checks that ranking is sorted by P75 and lists the expected
// providers in the expected relative order. Providers the plan does not
// know are ignored. It returns the number of providers matched in order.
func VerifyOrder(ranking []types.Entry, expected []int64) (int, error) {
	for i := 1; i < len(ranking); i++ {
		if ranking[i].P75 > ranking[i-1].P75 {
			return 0, fmt.Errorf("%w: rank %d has p75 %.2f above rank %d (%.2f)",
				ErrOrderMismatch, i+1, ranking[i].P75, i, ranking[i-1].P75)
		}
	}

	planned := make(map[int64]bool, len(expected))
	for _, id := range expected {
		planned[id] = true
	}
	got := make([]int64, 0, len(expected))
	for _, e := range ranking {
		if planned[e.ProviderID] {
			got = append(got, e.ProviderID)
		}
	}

	for i, id := range expected {
		if i >= len(got) {
			return i, fmt.Errorf("%w: provider %d missing from ranking", ErrOrderMismatch, id)
		}
		if got[i] != id {
			return i, fmt.Errorf("%w: position %d is provider %d, want %d", ErrOrderMismatch, i+1, got[i], id)
		}
	}
	return len(expected), nil
}

// displayTop logs the head of the ranking.
func displayTop(ctx context.Context, ranking []types.Entry, verbose bool) {
	log := logger.Get()
	n := min(displayTopN, len(ranking))
	for _, e := range ranking[:n] {
		log.Info(ctx, "ranked provider",
			logger.Int("rank", e.Rank),
			logger.Int64("providerID", e.ProviderID),
			logger.String("name", e.ProviderName),
			logger.Float64("p75", e.P75),
			logger.Float64("mean", e.Mean),
			logger.Int("nodes", e.NodeCount))
	}

	if verbose && len(ranking) > 0 {
		log.Info(ctx, "p75 statistics",
			logger.Float64("average", averageP75(ranking)),
			logger.Float64("maximum", ranking[0].P75),
			logger.Float64("minimum", ranking[len(ranking)-1].P75))
	}
}

// averageP75 calculates the mean P75 over the ranking.
func averageP75(ranking []types.Entry) float64 {
	if len(ranking) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range ranking {
		sum += e.P75
	}
	return sum / float64(len(ranking))
}
