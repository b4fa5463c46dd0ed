package model

import "time"

// Provider identifies an airport (proxy service vendor).
type Provider struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MeasurementRecord is one speed test observed for one node.
// Speeds are in MB/s, latencies in milliseconds. Records are immutable once
// handed to the scoring engine.
type MeasurementRecord struct {
	ProviderID   int64     `json:"provider_id"`
	ProviderName string    `json:"provider_name"`
	NodeID       string    `json:"node_id"`
	NodeName     string    `json:"node_name"`
	AverageSpeed Metric    `json:"average_speed"`
	MaxSpeed     Metric    `json:"max_speed"`
	TLSRTT       Metric    `json:"tls_rtt"`
	HTTPSDelay   Metric    `json:"https_delay"`
	ObservedAt   time.Time `json:"observed_at,omitzero"` // zero when unknown
	HostInfo     string    `json:"host_info,omitempty"`
}

// HasReading reports whether the record carries a usable average speed.
// A zero speed means the node was unreachable during the test.
func (r *MeasurementRecord) HasReading() bool {
	v, ok := r.AverageSpeed.Get()
	return ok && v > 0
}

// NodeMetricSummary holds per-node means over one batch of valid records.
type NodeMetricSummary struct {
	NodeID       string
	NodeName     string
	ProviderID   int64
	ProviderName string
	AverageSpeed Metric
	MaxSpeed     Metric
	TLSRTT       Metric
	HTTPSDelay   Metric
	Count        int
}

// NormalizedNodeMetrics rescales a summary to [0,1] where 1 is always best.
// Absent metrics are unknown and contribute nothing to the node score.
type NormalizedNodeMetrics struct {
	Summary      NodeMetricSummary
	AverageSpeed Metric
	MaxSpeed     Metric
	TLSRTT       Metric
	HTTPSDelay   Metric
}

// NodeScore is the composite score of one node.
type NodeScore struct {
	NodeID       string  `json:"node_id"`
	NodeName     string  `json:"node_name"`
	ProviderID   int64   `json:"provider_id"`
	ProviderName string  `json:"provider_name"`
	Score        float64 `json:"score"`
	Samples      int     `json:"samples"`
}

// ProviderRanking is one row of the final provider ranking.
type ProviderRanking struct {
	ProviderID   int64       `json:"provider_id"`
	ProviderName string      `json:"provider_name"`
	P75          float64     `json:"p75"`
	Mean         float64     `json:"mean"`
	NodeCount    int         `json:"node_count"`
	Nodes        []NodeScore `json:"nodes"`
}
