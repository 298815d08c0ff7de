// Package agents implements the six pipeline stage agents and the
// shared runner that executes them. The runner owns everything the
// stages have in common: ordering guards, the optimistic in-stage
// stamp, the atomic outcome write, and chaining the follow-up task.
// Evaluators only decide scores.
package agents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/sift/internal/adapters/repository"
	"github.com/okian/sift/internal/domain/lifecycle"
	"github.com/okian/sift/internal/domain/model"
	"github.com/okian/sift/internal/domain/verdict"
	"github.com/okian/sift/pkg/logger"
	"github.com/okian/sift/pkg/metrics"
)

// Input is what an evaluator receives: the application with its job
// and candidate context, plus any inline payload from the invocation
// (quiz answers, interview transcript).
type Input struct {
	App       model.Application
	Job       model.Job
	Candidate model.Candidate
	Payload   map[string]any
}

// Evaluation is what an evaluator produces. A pending decision holds
// the application in place without recording a result, which is how
// the "init" phase of submission-driven stages (quiz, coding) waits
// for candidate material.
type Evaluation struct {
	Score     float64
	SubScores map[string]float64
	Decision  lifecycle.Decision
	Reasoning string
	Raw       map[string]any
	Fraud     []model.FraudSignal
	Rollup    *model.CandidateScore
}

// Evaluator scores one pipeline stage.
type Evaluator interface {
	Stage() lifecycle.Stage
	Evaluate(ctx context.Context, in Input) (Evaluation, error)
}

// Runner executes stage tasks against the store.
type Runner struct {
	store      repository.Store
	evaluators map[lifecycle.Stage]Evaluator
	logger     logger.Logger
}

// NewRunner creates a runner over the given evaluators.
func NewRunner(store repository.Store, evaluators ...Evaluator) *Runner {
	r := &Runner{
		store:      store,
		evaluators: make(map[lifecycle.Stage]Evaluator, len(evaluators)),
		logger:     logger.Get().Named("runner"),
	}
	for _, ev := range evaluators {
		r.evaluators[ev.Stage()] = ev
	}
	return r
}

// Run executes one stage task. It returns the follow-up task when the
// decision advances the candidate, and the recorded result for callers
// that invoke stages synchronously. Holds (pending, borderline) return
// neither an error nor a follow-up.
func (r *Runner) Run(ctx context.Context, task model.StageTask) (*model.StageTask, *model.AgentResult, error) {
	if task.Stage == lifecycle.StageVerdict {
		return nil, nil, r.refreshVerdict(ctx, task.JobID)
	}

	ev, ok := r.evaluators[task.Stage]
	if !ok {
		return nil, nil, fmt.Errorf("%w: stage %d", ErrUnknownStage, int(task.Stage))
	}

	app, err := r.store.GetApplication(ctx, task.ApplicationID)
	if err != nil {
		return nil, nil, fmt.Errorf("load application %s: %w", task.ApplicationID, err)
	}
	if err := lifecycle.CanRun(app.Status, task.Stage); err != nil {
		return nil, nil, err
	}
	// A stage that already recorded a result but held the application
	// (borderline) must not run again and append a duplicate.
	if _, err := r.store.ResultForStage(ctx, app.ID, task.Stage); err == nil {
		return nil, nil, repository.ErrStageDone
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, err
	}
	// Stages past the gatekeeper require the upstream result on file;
	// an out-of-order invocation would otherwise read incomplete data.
	if task.Stage > lifecycle.StageGatekeeper {
		if _, err := r.store.ResultForStage(ctx, app.ID, task.Stage-1); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, nil, fmt.Errorf("%w: no result for stage %d", lifecycle.ErrOutOfOrder, int(task.Stage-1))
			}
			return nil, nil, err
		}
	}

	job, err := r.store.GetJob(ctx, app.JobID)
	if err != nil {
		return nil, nil, fmt.Errorf("load job %s: %w", app.JobID, err)
	}
	cand, err := r.store.GetCandidate(ctx, app.CandidateID)
	if err != nil {
		return nil, nil, fmt.Errorf("load candidate %s: %w", app.CandidateID, err)
	}

	app, err = r.store.MarkInStage(ctx, app.ID, task.Stage, task.Stage.Status(), app.Revision)
	if err != nil {
		if errors.Is(err, repository.ErrStaleRevision) {
			return nil, nil, fmt.Errorf("%w: %w", ErrConcurrent, err)
		}
		return nil, nil, err
	}

	eval, err := ev.Evaluate(ctx, Input{App: app, Job: job, Candidate: cand, Payload: task.Payload})
	if err != nil {
		return nil, nil, fmt.Errorf("evaluate stage %s: %w", task.Stage.Name(), err)
	}

	if eval.Decision == lifecycle.DecisionPending {
		r.logger.Info(ctx, "stage holding for candidate material",
			logger.String("applicationID", app.ID),
			logger.String("stage", task.Stage.Name()),
			logger.String("reason", eval.Reasoning),
		)
		return nil, nil, nil
	}

	nextStatus, err := lifecycle.Next(app.Status, eval.Decision)
	if err != nil {
		return nil, nil, err
	}
	nextStage := app.CurrentStage
	advanced := nextStatus != app.Status && nextStatus != lifecycle.StatusRejected
	if advanced {
		nextStage = task.Stage.Next()
	}

	result := model.AgentResult{
		ID:            uuid.NewString(),
		ApplicationID: app.ID,
		Stage:         task.Stage,
		AgentName:     task.Stage.Name(),
		Score:         eval.Score,
		SubScores:     eval.SubScores,
		Decision:      eval.Decision,
		Reasoning:     eval.Reasoning,
		Raw:           eval.Raw,
		CreatedAt:     time.Now(),
	}
	for i := range eval.Fraud {
		eval.Fraud[i].ID = uuid.NewString()
		eval.Fraud[i].ApplicationID = app.ID
		eval.Fraud[i].Stage = task.Stage
		eval.Fraud[i].CreatedAt = result.CreatedAt
		metrics.RecordFraudSignal(eval.Fraud[i].Kind, string(eval.Fraud[i].Severity))
	}

	app, err = r.store.RecordOutcome(ctx, app.ID, app.Revision, repository.Outcome{
		Result:     result,
		NextStatus: nextStatus,
		NextStage:  nextStage,
		Fraud:      eval.Fraud,
		Rollup:     eval.Rollup,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleRevision) {
			return nil, nil, fmt.Errorf("%w: %w", ErrConcurrent, err)
		}
		return nil, nil, err
	}

	metrics.RecordStageRun(task.Stage.Name(), string(eval.Decision))
	r.logger.Info(ctx, "stage completed",
		logger.String("applicationID", app.ID),
		logger.String("stage", task.Stage.Name()),
		logger.String("decision", string(eval.Decision)),
		logger.Float64("score", eval.Score),
		logger.String("status", string(app.Status)),
	)

	if !advanced {
		return nil, &result, nil
	}
	follow := &model.StageTask{
		TaskID:        uuid.NewString(),
		ApplicationID: app.ID,
		JobID:         app.JobID,
		Stage:         task.Stage.Next(),
	}
	return follow, &result, nil
}

// refreshVerdict recomputes the job ranking after a candidate reaches
// the shortlist and publishes the summary gauges. Rankings are served
// from the store on read; this keeps the operational metrics warm.
func (r *Runner) refreshVerdict(ctx context.Context, jobID string) error {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	apps, err := r.store.ListApplicationsByJob(ctx, jobID)
	if err != nil {
		return err
	}
	in := verdict.Input{
		Job:          job,
		Applications: apps,
		Results:      make(map[string][]model.AgentResult, len(apps)),
		Fraud:        make(map[string][]model.FraudSignal, len(apps)),
	}
	for _, app := range apps {
		if in.Results[app.ID], err = r.store.ResultsByApplication(ctx, app.ID); err != nil {
			return err
		}
		if in.Fraud[app.ID], err = r.store.FraudByApplication(ctx, app.ID); err != nil {
			return err
		}
	}
	_, sum := verdict.Rank(in)

	metrics.UpdateShortlisted(sum.Shortlisted)
	r.logger.Info(ctx, "verdict refreshed",
		logger.String("jobID", jobID),
		logger.Int("applications", sum.TotalApplications),
		logger.Int("shortlisted", sum.Shortlisted),
		logger.Int("fraudIncidents", sum.FraudIncidents),
	)
	return nil
}
