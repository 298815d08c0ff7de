// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/sift/internal/domain/lifecycle"
	"github.com/okian/sift/internal/domain/model"
	"github.com/okian/sift/pkg/metrics"
)

// runRequest mirrors the OpenAPI schema for POST /agents/run.
type runRequest struct {
	InvocationID  string         `json:"invocation_id"`
	ApplicationID string         `json:"application_id"`
	Agent         int            `json:"agent"`
	Payload       map[string]any `json:"payload"`
}

func (r runRequest) validate() error {
	const op = "api.run_agent"
	switch {
	case strings.TrimSpace(r.ApplicationID) == "":
		return NewKind(op, ErrBadRequest)
	case !lifecycle.Stage(r.Agent).Valid():
		return NewKind(op, ErrBadRequest)
	}
	return nil
}

// runResponse is the manual invocation contract: success carries the
// recorded result and the next agent to invoke; failure carries the
// error string instead.
type runResponse struct {
	Success   bool                 `json:"success"`
	Duplicate bool                 `json:"duplicate,omitempty"`
	Result    *agentResultResponse `json:"result,omitempty"`
	NextAgent int                  `json:"next_agent,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// AgentsHandler handles manual stage invocation.
type AgentsHandler struct {
	deps Dependencies
}

// NewAgentsHandler creates a new agents handler.
func NewAgentsHandler(deps Dependencies) *AgentsHandler {
	return &AgentsHandler{deps: deps}
}

// HandleRun handles POST /agents/run requests.
func (h *AgentsHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.run_agent"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	// Replayed invocations are acknowledged, never re-run.
	if req.InvocationID != "" && h.deps.SeenAndRecord(r.Context(), req.InvocationID) {
		metrics.RecordDuplicateInvocation()
		writeJSON(w, http.StatusOK, runResponse{Success: true, Duplicate: true})
		return
	}

	task := model.StageTask{
		TaskID:        req.InvocationID,
		ApplicationID: req.ApplicationID,
		Stage:         lifecycle.Stage(req.Agent),
		Payload:       req.Payload,
	}
	result, next, err := h.deps.RunStage(r.Context(), task)
	if err != nil {
		if req.InvocationID != "" {
			h.deps.Unrecord(r.Context(), req.InvocationID)
		}
		status, code := statusFor(err)
		writeJSON(w, status, runResponse{Success: false, Error: code + ": " + err.Error()})
		return
	}

	resp := runResponse{Success: true}
	if result != nil {
		converted := toResultResponse(*result)
		resp.Result = &converted
	}
	if next != nil {
		resp.NextAgent = int(next.Stage)
	}
	writeJSON(w, http.StatusOK, resp)
}
