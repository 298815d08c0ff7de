// Package repository defines the pipeline store interface and errors.
//
// Two implementations exist: a sharded in-memory store (default, used
// by tests and local runs) and a Postgres store via gorm. Both enforce
// the same discipline: optimistic revision checks on every application
// write, append-only agent results, and one atomic operation for
// "record result + advance status + attach fraud signals".
package repository

import (
	"context"

	"github.com/okian/sift/internal/domain/lifecycle"
	"github.com/okian/sift/internal/domain/model"
)

// Outcome bundles everything a stage writes when it finishes, so the
// store can commit it atomically. A mid-sequence failure can therefore
// never leave status pointing at a stage whose result was not written.
type Outcome struct {
	Result     model.AgentResult
	NextStatus lifecycle.Status
	NextStage  lifecycle.Stage
	Fraud      []model.FraudSignal
	Rollup     *model.CandidateScore
}

// Store provides read/write access to the pipeline state.
type Store interface {
	CreateJob(ctx context.Context, job model.Job) error
	GetJob(ctx context.Context, id string) (model.Job, error)

	CreateCandidate(ctx context.Context, c model.Candidate) error
	GetCandidate(ctx context.Context, id string) (model.Candidate, error)

	CreateApplication(ctx context.Context, app model.Application) error
	GetApplication(ctx context.Context, id string) (model.Application, error)
	ListApplicationsByJob(ctx context.Context, jobID string) ([]model.Application, error)

	// MarkInStage stamps the application as being evaluated by stage:
	// status, current stage, and agent start time, guarded by the
	// expected revision. Returns ErrStaleRevision when another
	// invocation advanced the row first.
	MarkInStage(ctx context.Context, appID string, stage lifecycle.Stage, status lifecycle.Status, revision int64) (model.Application, error)

	// RecordOutcome atomically appends the agent result, advances the
	// application to out.NextStatus/NextStage, attaches fraud signals,
	// and applies the score rollup. Guarded by revision; a result
	// already recorded for the stage returns ErrStageDone.
	RecordOutcome(ctx context.Context, appID string, revision int64, out Outcome) (model.Application, error)

	ResultsByApplication(ctx context.Context, appID string) ([]model.AgentResult, error)
	// ResultForStage returns the latest result for one stage, or
	// ErrNotFound when the stage has not run.
	ResultForStage(ctx context.Context, appID string, stage lifecycle.Stage) (model.AgentResult, error)
	FraudByApplication(ctx context.Context, appID string) ([]model.FraudSignal, error)

	// EnsureProblems returns the job's coding problem bank, invoking
	// gen exactly once per job to build it. Safe to call repeatedly.
	EnsureProblems(ctx context.Context, jobID string, gen func() ([]model.CodingProblem, error)) ([]model.CodingProblem, error)
	// EnsureQuiz is the MCQ bank counterpart of EnsureProblems.
	EnsureQuiz(ctx context.Context, jobID string, gen func() ([]model.QuizQuestion, error)) ([]model.QuizQuestion, error)

	AddSubmission(ctx context.Context, sub model.CodeSubmission) error
	SubmissionsByApplication(ctx context.Context, appID string) ([]model.CodeSubmission, error)

	// Count returns the number of applications tracked.
	Count(ctx context.Context) int
}
