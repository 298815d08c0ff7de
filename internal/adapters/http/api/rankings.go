// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strings"

	"github.com/okian/sift/internal/domain/verdict"
)

// rankingResponse is the wire shape of GET /rankings/{job_id}.
type rankingResponse struct {
	Ranking []verdict.Ranked `json:"ranking"`
	Summary verdict.Summary  `json:"summary"`
}

// RankingsHandler serves the verdict ranking per job.
type RankingsHandler struct {
	deps Dependencies
}

// NewRankingsHandler creates a new rankings handler.
func NewRankingsHandler(deps Dependencies) *RankingsHandler {
	return &RankingsHandler{deps: deps}
}

// HandleGet handles GET /rankings/{job_id} requests.
func (h *RankingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rankings"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/rankings/")
	if jobID == "" || strings.Contains(jobID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	ranking, summary, err := h.deps.Rankings(r.Context(), jobID)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rankingResponse{Ranking: ranking, Summary: summary})
}
