package handlers

import (
	"context"
	"net/http"

	"github.com/carelink-health/medkb/internal/api"
	"github.com/carelink-health/medkb/internal/index"
)

type IndexService interface {
	Rebuild(ctx context.Context) (index.IndexStats, error)
	Stats() (index.IndexStats, error)
	Suggest(fragment string) []string
}

type IndexHandler struct {
	svc IndexService
}

func NewIndexHandler(svc IndexService) *IndexHandler {
	return &IndexHandler{svc: svc}
}

type SuggestResponse struct {
	Query       string   `json:"query"`
	Suggestions []string `json:"suggestions"`
}

// Refresh rebuilds the term index from the active corpus and returns the new
// generation's statistics.
func (h *IndexHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Rebuild(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, stats)
}

// Stats returns the current index generation's statistics.
func (h *IndexHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats()
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, stats)
}

// Suggest returns vocabulary terms containing the q fragment.
func (h *IndexHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		api.Error(w, http.StatusBadRequest, "q is required")
		return
	}

	suggestions := h.svc.Suggest(q)
	if suggestions == nil {
		suggestions = []string{}
	}
	api.Success(w, http.StatusOK, SuggestResponse{Query: q, Suggestions: suggestions})
}
