// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/sift/internal/adapters/repository"
	"github.com/okian/sift/internal/domain/dedupe"
	"github.com/okian/sift/internal/domain/lifecycle"
	"github.com/okian/sift/internal/domain/model"
	"github.com/okian/sift/internal/domain/verdict"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// SubmitApplication creates the candidate and application records and
	// enqueues the screening stage.
	SubmitApplication(ctx context.Context, cand model.Candidate, jobID string, resume []byte, resumeName string) (model.Application, error)

	// RunStage executes one stage synchronously for manual invocation.
	RunStage(ctx context.Context, task model.StageTask) (*model.AgentResult, *model.StageTask, error)

	// Read operations expose pipeline data.
	Application(ctx context.Context, id string) (model.Application, error)
	Results(ctx context.Context, appID string) ([]model.AgentResult, error)
	FraudSignals(ctx context.Context, appID string) ([]model.FraudSignal, error)
	Rankings(ctx context.Context, jobID string) ([]verdict.Ranked, verdict.Summary, error)

	// Job configuration.
	CreateJob(ctx context.Context, job model.Job) (model.Job, error)
	Job(ctx context.Context, id string) (model.Job, error)

	// Question banks become available once the matching stage has run
	// at least once for the job.
	Quiz(ctx context.Context, jobID string) ([]model.QuizQuestion, error)
	Problems(ctx context.Context, jobID string) ([]model.CodingProblem, error)

	// AddSubmission records one coding answer for later grading.
	AddSubmission(ctx context.Context, sub model.CodeSubmission) (model.CodeSubmission, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	applicationsHandler *ApplicationsHandler
	agentsHandler       *AgentsHandler
	submissionsHandler  *SubmissionsHandler
	rankingsHandler     *RankingsHandler
	jobsHandler         *JobsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(statsProvider),
		applicationsHandler: NewApplicationsHandler(deps),
		agentsHandler:       NewAgentsHandler(deps),
		submissionsHandler:  NewSubmissionsHandler(deps),
		rankingsHandler:     NewRankingsHandler(deps),
		jobsHandler:         NewJobsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/applications", MetricsMiddleware(s.applicationsHandler.HandleSubmit, "applications"))
	mux.HandleFunc("/applications/", MetricsMiddleware(s.applicationsHandler.HandleGet, "application"))
	mux.HandleFunc("/agents/run", MetricsMiddleware(s.agentsHandler.HandleRun, "agents_run"))
	mux.HandleFunc("/submissions", MetricsMiddleware(s.submissionsHandler.HandlePost, "submissions"))
	mux.HandleFunc("/rankings/", MetricsMiddleware(s.rankingsHandler.HandleGet, "rankings"))
	mux.HandleFunc("/jobs", MetricsMiddleware(s.jobsHandler.HandleCreate, "jobs"))
	mux.HandleFunc("/jobs/", MetricsMiddleware(s.jobsHandler.HandleGet, "job"))
}

type ackResponse struct {
	Status        string `json:"status"`
	Duplicate     bool   `json:"duplicate"`
	ApplicationID string `json:"application_id,omitempty"`
	CandidateID   string `json:"candidate_id,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// agentResultResponse is the wire shape of a recorded stage result.
type agentResultResponse struct {
	ID        string             `json:"id"`
	Stage     int                `json:"stage"`
	AgentName string             `json:"agent_name"`
	Score     float64            `json:"score"`
	SubScores map[string]float64 `json:"sub_scores,omitempty"`
	Decision  string             `json:"decision"`
	Reasoning string             `json:"reasoning,omitempty"`
	CreatedAt string             `json:"created_at"`
}

func toResultResponse(r model.AgentResult) agentResultResponse {
	return agentResultResponse{
		ID:        r.ID,
		Stage:     int(r.Stage),
		AgentName: r.AgentName,
		Score:     r.Score,
		SubScores: r.SubScores,
		Decision:  string(r.Decision),
		Reasoning: r.Reasoning,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// statusFor translates upstream errors to HTTP status codes and codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, repository.ErrStageDone):
		return http.StatusConflict, "stage_done"
	case errors.Is(err, repository.ErrStaleRevision):
		return http.StatusConflict, "stale_revision"
	case errors.Is(err, lifecycle.ErrTerminal):
		return http.StatusConflict, "terminal"
	case errors.Is(err, lifecycle.ErrOutOfOrder):
		return http.StatusConflict, "out_of_order"
	}
	return http.StatusInternalServerError, "internal_error"
}
