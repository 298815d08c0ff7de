// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/sift/internal/domain/model"
)

// submissionRequest mirrors the OpenAPI schema for POST /submissions.
type submissionRequest struct {
	ApplicationID string `json:"application_id"`
	ProblemID     string `json:"problem_id"`
	Code          string `json:"code"`
	Language      string `json:"language"`
	TestsPassed   int    `json:"tests_passed"`
	TestsTotal    int    `json:"tests_total"`
	PasteEvents   int    `json:"paste_events"`
}

func (s submissionRequest) validate() error {
	const op = "api.post_submission"
	switch {
	case strings.TrimSpace(s.ApplicationID) == "":
		return NewKind(op, ErrBadRequest)
	case strings.TrimSpace(s.ProblemID) == "":
		return NewKind(op, ErrBadRequest)
	case strings.TrimSpace(s.Code) == "":
		return NewKind(op, ErrBadRequest)
	case s.TestsTotal <= 0 || s.TestsPassed < 0 || s.TestsPassed > s.TestsTotal:
		return NewKind(op, ErrBadRequest)
	case s.PasteEvents < 0:
		return NewKind(op, ErrBadRequest)
	}
	return nil
}

type submissionResponse struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	ProblemID     string `json:"problem_id"`
}

// SubmissionsHandler records coding submissions for later grading.
type SubmissionsHandler struct {
	deps Dependencies
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(deps Dependencies) *SubmissionsHandler {
	return &SubmissionsHandler{deps: deps}
}

// HandlePost handles POST /submissions requests.
func (h *SubmissionsHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_submission"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	sub, err := h.deps.AddSubmission(r.Context(), model.CodeSubmission{
		ApplicationID: req.ApplicationID,
		ProblemID:     req.ProblemID,
		Code:          req.Code,
		Language:      req.Language,
		TestsPassed:   req.TestsPassed,
		TestsTotal:    req.TestsTotal,
		PasteEvents:   req.PasteEvents,
	})
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, submissionResponse{
		ID:            sub.ID,
		ApplicationID: sub.ApplicationID,
		ProblemID:     sub.ProblemID,
	})
}
