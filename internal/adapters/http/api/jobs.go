// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/okian/sift/internal/domain/model"
)

// jobRequest mirrors the OpenAPI schema for POST /jobs.
type jobRequest struct {
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Requirements []string           `json:"requirements"`
	Thresholds   map[string]float64 `json:"thresholds"`
	ScoreWeights map[string]float64 `json:"score_weights"`
}

func (j jobRequest) validate() error {
	const op = "api.post_job"
	if strings.TrimSpace(j.Title) == "" {
		return NewKind(op, ErrBadRequest)
	}
	return nil
}

type jobResponse struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Description  string             `json:"description,omitempty"`
	Requirements []string           `json:"requirements,omitempty"`
	Thresholds   map[string]float64 `json:"thresholds,omitempty"`
	ScoreWeights map[string]float64 `json:"score_weights,omitempty"`
	CreatedAt    string             `json:"created_at"`
}

func toJobResponse(job model.Job) jobResponse {
	return jobResponse{
		ID:           job.ID,
		Title:        job.Title,
		Description:  job.Description,
		Requirements: job.Requirements,
		Thresholds:   job.Thresholds,
		ScoreWeights: job.ScoreWeights,
		CreatedAt:    job.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// JobsHandler handles job configuration.
type JobsHandler struct {
	deps Dependencies
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(deps Dependencies) *JobsHandler {
	return &JobsHandler{deps: deps}
}

// HandleCreate handles POST /jobs requests.
func (h *JobsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_job"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	job, err := h.deps.CreateJob(r.Context(), model.Job{
		Title:        req.Title,
		Description:  req.Description,
		Requirements: req.Requirements,
		Thresholds:   req.Thresholds,
		ScoreWeights: req.ScoreWeights,
	})
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, toJobResponse(job))
}

// quizQuestionResponse omits the correct answer index so the bank can
// be shown to candidates.
type quizQuestionResponse struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

type problemResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Prompt     string `json:"prompt"`
	Difficulty string `json:"difficulty,omitempty"`
}

// HandleGet handles GET /jobs/{id} plus the /quiz and /problems
// sub-resources.
func (h *JobsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_job"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/jobs/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	switch sub {
	case "":
		job, err := h.deps.Job(r.Context(), id)
		if err != nil {
			status, code := statusFor(err)
			writeError(w, status, code, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, toJobResponse(job))
	case "quiz":
		h.handleQuiz(w, r, id)
	case "problems":
		h.handleProblems(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *JobsHandler) handleQuiz(w http.ResponseWriter, r *http.Request, jobID string) {
	const op = "api.get_job_quiz"
	bank, err := h.deps.Quiz(r.Context(), jobID)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, Wrap(op, err))
		return
	}
	out := make([]quizQuestionResponse, len(bank))
	for i, q := range bank {
		out[i] = quizQuestionResponse{ID: q.ID, Prompt: q.Prompt, Options: q.Options}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *JobsHandler) handleProblems(w http.ResponseWriter, r *http.Request, jobID string) {
	const op = "api.get_job_problems"
	bank, err := h.deps.Problems(r.Context(), jobID)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, Wrap(op, err))
		return
	}
	out := make([]problemResponse, len(bank))
	for i, p := range bank {
		out[i] = problemResponse{ID: p.ID, Title: p.Title, Prompt: p.Prompt, Difficulty: p.Difficulty}
	}
	writeJSON(w, http.StatusOK, out)
}
