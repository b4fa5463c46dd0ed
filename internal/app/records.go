package service

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/airscore/internal/domain/model"
	"github.com/okian/airscore/pkg/metrics"
)

// recordLog holds the measurement records scoring runs read from: the rows
// last loaded from the upstream database plus every ingested batch.
type recordLog struct {
	mu        sync.RWMutex
	seeded    []model.MeasurementRecord
	ingested  []model.MeasurementRecord
	directory map[int64]string
}

func newRecordLog() *recordLog {
	return &recordLog{directory: make(map[int64]string)}
}

// Append implements worker.Appender.
func (l *recordLog) Append(_ context.Context, records []model.MeasurementRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ingested = append(l.ingested, records...)
	for _, r := range records {
		if name, ok := l.directory[r.ProviderID]; !ok || name == "" {
			l.directory[r.ProviderID] = r.ProviderName
		}
	}
	metrics.UpdateRecordLogSize(len(l.seeded) + len(l.ingested))
	return nil
}

// reseed replaces the database rows and merges the database directory.
// Names from the database win over names carried by batches.
func (l *recordLog) reseed(records []model.MeasurementRecord, directory []model.Provider) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seeded = records
	for _, p := range directory {
		l.directory[p.ID] = p.Name
	}
	metrics.UpdateRecordLogSize(len(l.seeded) + len(l.ingested))
}

// window returns the records observed at or after since, plus undated
// records. A zero since returns everything.
func (l *recordLog) window(since time.Time) []model.MeasurementRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.MeasurementRecord, 0, len(l.seeded)+len(l.ingested))
	for _, set := range [][]model.MeasurementRecord{l.seeded, l.ingested} {
		for _, r := range set {
			if since.IsZero() || r.ObservedAt.IsZero() || !r.ObservedAt.Before(since) {
				out = append(out, r)
			}
		}
	}
	return out
}

// prune drops ingested records observed before since and returns how many
// were dropped. Undated records and the database rows are kept.
func (l *recordLog) prune(since time.Time) int {
	if since.IsZero() {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := slices.DeleteFunc(l.ingested, func(r model.MeasurementRecord) bool {
		return !r.ObservedAt.IsZero() && r.ObservedAt.Before(since)
	})
	dropped := len(l.ingested) - len(kept)
	if dropped > 0 {
		l.ingested = slices.Clone(kept)
		metrics.UpdateRecordLogSize(len(l.seeded) + len(l.ingested))
	}
	return dropped
}

// providers returns the directory ordered by id.
func (l *recordLog) providers() []model.Provider {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Provider, 0, len(l.directory))
	for id, name := range l.directory {
		out = append(out, model.Provider{ID: id, Name: name})
	}
	slices.SortFunc(out, func(a, b model.Provider) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (l *recordLog) size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.seeded) + len(l.ingested)
}
