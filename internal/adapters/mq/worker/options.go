// Package worker drains ingest batches from the queue into the record log.
package worker

import (
	"github.com/okian/airscore/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithRejectHook registers a callback for batches that yield no record.
// The ingest service uses it to forget the batch id so a corrected batch
// can be resubmitted.
func WithRejectHook(fn func(b Batch)) Option {
	return func(w *InMemoryWorker) {
		w.onReject = fn
	}
}
