// Package repository holds the latest computed ranking for the read side.
package repository

import (
	"context"
	"time"

	"github.com/okian/airscore/internal/domain/model"
	"github.com/okian/airscore/internal/domain/scoring"
)

// Snapshot is an immutable view of one scoring run.
type Snapshot struct {
	RunID          string
	Mode           scoring.Mode
	ComputedAt     time.Time
	Rankings       []model.ProviderRanking
	NodeCount      int
	ValidRecords   int
	DroppedRecords int

	rankByProvider map[int64]int // provider id -> index into Rankings
}

// Store provides read/write access to the ranking state.
type Store interface {
	// Publish replaces the current ranking with the result of a run.
	Publish(ctx context.Context, runID string, at time.Time, res scoring.Result)

	// Latest returns the current snapshot or ErrNoSnapshot.
	Latest(ctx context.Context) (*Snapshot, error)

	// TopN returns the first n providers in rank order.
	TopN(ctx context.Context, n int) ([]model.ProviderRanking, error)

	// Provider returns one provider's entry and its 1-based rank.
	// Returns ErrNotFound if the provider is not in the ranking.
	Provider(ctx context.Context, id int64) (model.ProviderRanking, int, error)

	// Count returns the number of ranked providers.
	Count(ctx context.Context) int
}
