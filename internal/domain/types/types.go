// Package types contains the presentation shapes returned by the HTTP API.
package types

import (
	"math"
	"time"

	"github.com/okian/airscore/internal/domain/model"
)

// scorePrecision is the number of decimals scores are shown with.
const scorePrecision = 2

// Node is one node line of a ranking entry.
type Node struct {
	NodeID   string  `json:"node_id"`
	NodeName string  `json:"node_name"`
	Score    float64 `json:"score"`
	Samples  int     `json:"samples"`
}

// Entry represents one provider in the ranking.
type Entry struct {
	Rank         int     `json:"rank"`
	ProviderID   int64   `json:"provider_id"`
	ProviderName string  `json:"provider_name"`
	P75          float64 `json:"p75"`
	Mean         float64 `json:"mean"`
	NodeCount    int     `json:"node_count"`
	Nodes        []Node  `json:"nodes,omitempty"`
}

// RunSummary describes one completed scoring run.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	Mode           string    `json:"mode"`
	ComputedAt     time.Time `json:"computed_at"`
	DurationMS     float64   `json:"duration_ms"`
	Providers      int       `json:"providers"`
	Nodes          int       `json:"nodes"`
	ValidRecords   int       `json:"valid_records"`
	DroppedRecords int       `json:"dropped_records"`
}

// Round rounds v to the display precision.
func Round(v float64) float64 {
	p := math.Pow10(scorePrecision)
	return math.Round(v*p) / p
}

// NewEntry builds the display entry for a provider at the given 1-based rank.
// Node lines are included only when withNodes is set.
func NewEntry(rank int, r model.ProviderRanking, withNodes bool) Entry {
	e := Entry{
		Rank:         rank,
		ProviderID:   r.ProviderID,
		ProviderName: r.ProviderName,
		P75:          Round(r.P75),
		Mean:         Round(r.Mean),
		NodeCount:    r.NodeCount,
	}
	if withNodes {
		e.Nodes = make([]Node, len(r.Nodes))
		for i, n := range r.Nodes {
			e.Nodes[i] = Node{
				NodeID:   n.NodeID,
				NodeName: n.NodeName,
				Score:    Round(n.Score),
				Samples:  n.Samples,
			}
		}
	}
	return e
}

// Entries converts an ordered ranking into display entries ranked from 1.
func Entries(rankings []model.ProviderRanking, withNodes bool) []Entry {
	out := make([]Entry, len(rankings))
	for i, r := range rankings {
		out[i] = NewEntry(i+1, r, withNodes)
	}
	return out
}
