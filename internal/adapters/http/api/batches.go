package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/airscore/internal/adapters/mq/queue"
	"github.com/okian/airscore/internal/domain/dedupe"
	"github.com/okian/airscore/internal/domain/ingest"
	"github.com/okian/airscore/pkg/metrics"
)

// maxBatchBytes bounds a POST /batches body.
const maxBatchBytes = 4 << 20

// BatchDependencies defines what batch ingestion needs.
type BatchDependencies interface {
	dedupe.Deduper
	Enqueue(ctx context.Context, b ingest.Batch) error
}

// BatchesHandler handles batch ingestion.
type BatchesHandler struct {
	deps BatchDependencies
}

// NewBatchesHandler creates a new batches handler.
func NewBatchesHandler(deps BatchDependencies) *BatchesHandler {
	return &BatchesHandler{deps: deps}
}

// HandlePostBatch handles POST /batches requests.
func (h *BatchesHandler) HandlePostBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_batch"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var b ingest.Batch
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBytes))
	dec.UseNumber()
	if err := dec.Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := b.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	key := b.Key()
	if h.deps.SeenAndRecord(r.Context(), key) {
		metrics.RecordBatchDuplicate()
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", BatchID: key, Duplicate: true})
		return
	}

	if err := h.deps.Enqueue(r.Context(), b); err != nil {
		h.deps.Unrecord(r.Context(), key)
		switch {
		case errors.Is(err, queue.ErrFull):
			writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
		case errors.Is(err, queue.ErrClosed):
			writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		}
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", BatchID: key, Rows: len(b.Rows)})
}
