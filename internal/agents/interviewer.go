package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/sift/internal/adapters/llm"
	"github.com/okian/sift/internal/adapters/repository"
	"github.com/okian/sift/internal/domain/lifecycle"
	"github.com/okian/sift/internal/domain/model"
	"github.com/okian/sift/internal/domain/scoring"
	"github.com/okian/sift/internal/domain/verdict"
	"github.com/okian/sift/pkg/logger"
)

const interviewerSystem = `You assess a technical interview transcript for a hiring screen.
Respond with a JSON object only: {"technical": <0-100>, "communication": <0-100>, "problem_solving": <0-100>, "summary": "<one sentence>"}`

// Interviewer is stage 5: the final interview. A pass here shortlists
// the candidate. The evaluator also refreshes the candidate score
// rollup from every dimension scored so far.
type Interviewer struct {
	llm    llm.Client
	store  repository.Store
	logger logger.Logger
}

// NewInterviewer builds the interview evaluator.
func NewInterviewer(client llm.Client, store repository.Store) *Interviewer {
	return &Interviewer{llm: client, store: store, logger: logger.Get().Named("interviewer")}
}

// Stage reports the pipeline position.
func (i *Interviewer) Stage() lifecycle.Stage { return lifecycle.StageInterviewer }

// Evaluate scores the interview transcript on technical depth,
// communication, and problem solving.
func (i *Interviewer) Evaluate(ctx context.Context, in Input) (Evaluation, error) {
	transcript, ok := payloadString(in.Payload, "transcript")
	if !ok {
		return Evaluation{
			Decision:  lifecycle.DecisionPending,
			Reasoning: "awaiting interview transcript",
		}, nil
	}

	var reply struct {
		Technical      float64 `json:"technical"`
		Communication  float64 `json:"communication"`
		ProblemSolving float64 `json:"problem_solving"`
		Summary        string  `json:"summary"`
	}
	user := fmt.Sprintf("Role: %s\n\nTranscript:\n%s", in.Job.Title, transcript)
	raw, fellBack, err := askJSON(ctx, i.llm, i.logger, verdict.StageInterview, interviewerSystem, user, &reply,
		"technical", "communication", "problem_solving")
	if err != nil {
		return Evaluation{}, err
	}
	if fellBack {
		reply.Technical, reply.Communication, reply.ProblemSolving = scoring.DefaultScore, scoring.DefaultScore, scoring.DefaultScore
		reply.Summary = "interview assessment degraded to default scores"
	}

	// Culture carries over from the behavioral round into the rollup.
	culture := 0.0
	if behavioral, err := i.store.ResultForStage(ctx, in.App.ID, lifecycle.StagePersona); err == nil {
		culture = behavioral.SubScores["culture"]
	}

	score, subs := scoring.Interview(reply.Technical, reply.Communication, reply.ProblemSolving)
	return Evaluation{
		Score:     score,
		SubScores: subs,
		Decision:  lifecycle.Decide(score, in.Job.Threshold(verdict.StageInterview)),
		Reasoning: reply.Summary,
		Raw:       raw,
		Rollup: &model.CandidateScore{
			ApplicationID:  in.App.ID,
			Technical:      reply.Technical,
			Communication:  reply.Communication,
			ProblemSolving: reply.ProblemSolving,
			Culture:        culture,
			UpdatedAt:      time.Now(),
		},
	}, nil
}
