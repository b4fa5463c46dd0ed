package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/okian/airscore/internal/domain/model"
	"github.com/okian/airscore/internal/domain/scoring"
	"github.com/okian/airscore/pkg/metrics"
)

// SnapshotStore keeps the latest Snapshot behind an atomic pointer so reads
// never block a publishing run.
type SnapshotStore struct {
	current atomic.Pointer[Snapshot]
}

// NewSnapshotStore returns an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Publish implements Store.Publish.
func (s *SnapshotStore) Publish(_ context.Context, runID string, at time.Time, res scoring.Result) {
	idx := make(map[int64]int, len(res.Rankings))
	for i, r := range res.Rankings {
		idx[r.ProviderID] = i
	}
	s.current.Store(&Snapshot{
		RunID:          runID,
		Mode:           res.Mode,
		ComputedAt:     at,
		Rankings:       res.Rankings,
		NodeCount:      len(res.Nodes),
		ValidRecords:   res.ValidRecords,
		DroppedRecords: res.DroppedRecords,
		rankByProvider: idx,
	})

	metrics.UpdateProvidersRanked(len(res.Rankings))
	metrics.UpdateNodesScored(len(res.Nodes))
}

// Latest implements Store.Latest.
func (s *SnapshotStore) Latest(_ context.Context) (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// TopN implements Store.TopN. An n larger than the ranking returns all of it;
// before the first run it returns an empty slice.
func (s *SnapshotStore) TopN(_ context.Context, n int) ([]model.ProviderRanking, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	snap := s.current.Load()
	if snap == nil {
		return []model.ProviderRanking{}, nil
	}
	n = min(n, len(snap.Rankings))
	out := make([]model.ProviderRanking, n)
	copy(out, snap.Rankings[:n])
	return out, nil
}

// Provider implements Store.Provider.
func (s *SnapshotStore) Provider(_ context.Context, id int64) (model.ProviderRanking, int, error) {
	snap := s.current.Load()
	if snap == nil {
		return model.ProviderRanking{}, 0, ErrNotFound
	}
	i, ok := snap.rankByProvider[id]
	if !ok {
		return model.ProviderRanking{}, 0, ErrNotFound
	}
	return snap.Rankings[i], i + 1, nil
}

// Count implements Store.Count.
func (s *SnapshotStore) Count(_ context.Context) int {
	snap := s.current.Load()
	if snap == nil {
		return 0
	}
	return len(snap.Rankings)
}
