package api

import (
	"context"
	"net/http"

	"github.com/okian/airscore/internal/domain/types"
)

// Rescorer runs a scoring pass on demand.
type Rescorer interface {
	Rescore(ctx context.Context) (types.RunSummary, error)
}

// RescoreHandler handles POST /rescore.
type RescoreHandler struct {
	deps Rescorer
}

// NewRescoreHandler creates a new rescore handler.
func NewRescoreHandler(deps Rescorer) *RescoreHandler {
	return &RescoreHandler{deps: deps}
}

// HandleRescore handles POST /rescore requests.
func (h *RescoreHandler) HandleRescore(w http.ResponseWriter, r *http.Request) {
	const op = "api.rescore"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	summary, err := h.deps.Rescore(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
