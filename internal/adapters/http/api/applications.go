// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/okian/sift/internal/domain/model"
)

// applicationRequest mirrors the OpenAPI schema for POST /applications.
type applicationRequest struct {
	RequestID string `json:"request_id"`
	JobID     string `json:"job_id"`
	Candidate struct {
		Name             string  `json:"name"`
		Email            string  `json:"email"`
		GithubScore      float64 `json:"github_score"`
		GithubLinked     bool    `json:"github_linked"`
		IdentityVerified bool    `json:"identity_verified"`
	} `json:"candidate"`
	ResumeText     string `json:"resume_text"`
	ResumeBase64   string `json:"resume_base64"`
	ResumeFilename string `json:"resume_filename"`
}

func (a applicationRequest) validate() error {
	switch {
	case strings.TrimSpace(a.JobID) == "":
		return NewKind("api.post_application", ErrBadRequest)
	case strings.TrimSpace(a.Candidate.Name) == "":
		return NewKind("api.post_application", ErrBadRequest)
	case strings.TrimSpace(a.Candidate.Email) == "":
		return NewKind("api.post_application", ErrBadRequest)
	case strings.TrimSpace(a.ResumeText) == "" && strings.TrimSpace(a.ResumeBase64) == "":
		return NewKind("api.post_application", ErrBadRequest)
	}
	return nil
}

// applicationResponse is the wire shape of GET /applications/{id}.
type applicationResponse struct {
	ID           string                `json:"id"`
	CandidateID  string                `json:"candidate_id"`
	JobID        string                `json:"job_id"`
	Status       string                `json:"status"`
	CurrentStage int                   `json:"current_stage"`
	SubmittedAt  string                `json:"submitted_at"`
	Results      []agentResultResponse `json:"results"`
	FraudSignals []fraudResponse       `json:"fraud_signals"`
}

type fraudResponse struct {
	ID       string         `json:"id"`
	Stage    int            `json:"stage"`
	Kind     string         `json:"kind"`
	Severity string         `json:"severity"`
	Evidence map[string]any `json:"evidence,omitempty"`
}

// ApplicationsHandler handles application intake and reads.
type ApplicationsHandler struct {
	deps Dependencies
}

// NewApplicationsHandler creates a new applications handler.
func NewApplicationsHandler(deps Dependencies) *ApplicationsHandler {
	return &ApplicationsHandler{deps: deps}
}

// HandleSubmit handles POST /applications requests.
func (h *ApplicationsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_application"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req applicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	// Idempotency check - mark as seen first
	if req.RequestID != "" && h.deps.SeenAndRecord(r.Context(), req.RequestID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	var resume []byte
	if req.ResumeBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ResumeBase64)
		if err != nil {
			h.rollback(r, req.RequestID)
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		resume = decoded
	}

	cand := model.Candidate{
		Name:             req.Candidate.Name,
		Email:            req.Candidate.Email,
		ResumeText:       req.ResumeText,
		GithubScore:      req.Candidate.GithubScore,
		GithubLinked:     req.Candidate.GithubLinked,
		IdentityVerified: req.Candidate.IdentityVerified,
	}
	app, err := h.deps.SubmitApplication(r.Context(), cand, req.JobID, resume, req.ResumeFilename)
	if err != nil {
		// Roll back the "seen" status so the client can retry.
		h.rollback(r, req.RequestID)
		status, code := statusFor(err)
		writeError(w, status, code, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{
		Status:        "accepted",
		Duplicate:     false,
		ApplicationID: app.ID,
		CandidateID:   app.CandidateID,
	})
}

func (h *ApplicationsHandler) rollback(r *http.Request, requestID string) {
	if requestID != "" {
		h.deps.Unrecord(r.Context(), requestID)
	}
}

// HandleGet handles GET /applications/{id} requests.
func (h *ApplicationsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_application"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/applications/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	app, err := h.deps.Application(r.Context(), id)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, Wrap(op, err))
		return
	}
	results, err := h.deps.Results(r.Context(), id)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, Wrap(op, err))
		return
	}
	fraud, err := h.deps.FraudSignals(r.Context(), id)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, Wrap(op, err))
		return
	}

	resp := applicationResponse{
		ID:           app.ID,
		CandidateID:  app.CandidateID,
		JobID:        app.JobID,
		Status:       string(app.Status),
		CurrentStage: int(app.CurrentStage),
		SubmittedAt:  app.SubmittedAt.UTC().Format(time.RFC3339),
		Results:      make([]agentResultResponse, 0, len(results)),
		FraudSignals: make([]fraudResponse, 0, len(fraud)),
	}
	for _, res := range results {
		resp.Results = append(resp.Results, toResultResponse(res))
	}
	for _, sig := range fraud {
		resp.FraudSignals = append(resp.FraudSignals, fraudResponse{
			ID:       sig.ID,
			Stage:    int(sig.Stage),
			Kind:     sig.Kind,
			Severity: string(sig.Severity),
			Evidence: sig.Evidence,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
