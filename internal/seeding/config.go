package seeding

import (
	"time"

	"github.com/okian/airscore/internal/domain/ingest"
)

// Config holds configuration for a seeding run.
type Config struct {
	BaseURL            string        // Base URL of the service
	Providers          int           // Number of synthetic providers
	BatchesPerProvider int           // Screenshots generated per provider
	NodesPerBatch      int           // Table rows per screenshot
	Duplicates         int           // Batches posted a second time
	Workers            int           // Concurrent submitters
	Timeout            time.Duration // HTTP request timeout
	SettleTimeout      time.Duration // How long to wait for ingestion to finish
	FirstProviderID    int64         // Id of the first synthetic provider
	OutputFile         string        // Output file for generated batches
	Verbose            bool          // Enable verbose logging
}

// Plan is the generated workload: the batches to post and the provider
// order the service is expected to produce.
type Plan struct {
	Batches  []ingest.Batch
	Expected []int64 // provider ids, best first
	Rows     int     // rows expected to survive validation
}

// AckResponse represents the response from batch submission.
type AckResponse struct {
	Status    string `json:"status"`
	BatchID   string `json:"batch_id"`
	Rows      int    `json:"rows"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds run statistics.
type Stats struct {
	BatchesGenerated  int
	BatchesSubmitted  int
	BatchesAccepted   int
	BatchesDuplicate  int
	BatchesFailed     int
	ProvidersVerified int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
