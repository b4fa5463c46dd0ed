package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/airscore/internal/adapters/repository"
	"github.com/okian/airscore/internal/domain/model"
	"github.com/okian/airscore/internal/domain/types"
)

// RankingDependencies defines the read side of the ranking.
type RankingDependencies interface {
	// Ranking returns the first limit providers; limit 0 means all.
	Ranking(ctx context.Context, limit int) ([]model.ProviderRanking, error)
	// Provider returns one provider's entry and its 1-based rank.
	Provider(ctx context.Context, id int64) (model.ProviderRanking, int, error)
}

// RankingHandler serves the provider ranking.
type RankingHandler struct {
	deps     RankingDependencies
	maxLimit int
}

// NewRankingHandler creates a new ranking handler.
func NewRankingHandler(deps RankingDependencies, maxLimit int) *RankingHandler {
	return &RankingHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetRanking handles GET /ranking?limit=N&nodes=true requests.
func (h *RankingHandler) HandleGetRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ranking"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrLimitExceeded))
			return
		}
		limit = n
	}
	withNodes, _ := strconv.ParseBool(q.Get("nodes"))

	rankings, err := h.deps.Ranking(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.Entries(rankings, withNodes))
}

// HandleGetProvider handles GET /providers/{id} requests.
func (h *RankingHandler) HandleGetProvider(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_provider"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/providers/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if raw == "" || strings.Contains(raw, "/") || err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	ranking, rank, err := h.deps.Provider(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.NewEntry(rank, ranking, true))
}
