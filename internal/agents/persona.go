package agents

import (
	"context"
	"fmt"

	"github.com/okian/sift/internal/adapters/llm"
	"github.com/okian/sift/internal/domain/lifecycle"
	"github.com/okian/sift/internal/domain/scoring"
	"github.com/okian/sift/internal/domain/verdict"
	"github.com/okian/sift/pkg/logger"
)

const personaSystem = `You assess a candidate's behavioral interview responses for a hiring screen.
Respond with a JSON object only: {"communication": <0-100>, "culture": <0-100>, "motivation": <0-100>, "summary": "<one sentence>"}`

// Persona is stage 4: the behavioral round. It holds until the
// candidate's free-text responses arrive in the invocation payload.
type Persona struct {
	llm    llm.Client
	logger logger.Logger
}

// NewPersona builds the behavioral evaluator.
func NewPersona(client llm.Client) *Persona {
	return &Persona{llm: client, logger: logger.Get().Named("persona")}
}

// Stage reports the pipeline position.
func (p *Persona) Stage() lifecycle.Stage { return lifecycle.StagePersona }

// Evaluate scores behavioral responses on communication, culture fit,
// and motivation.
func (p *Persona) Evaluate(ctx context.Context, in Input) (Evaluation, error) {
	responses, ok := payloadString(in.Payload, "responses")
	if !ok {
		return Evaluation{
			Decision:  lifecycle.DecisionPending,
			Reasoning: "awaiting behavioral responses",
		}, nil
	}

	var reply struct {
		Communication float64 `json:"communication"`
		Culture       float64 `json:"culture"`
		Motivation    float64 `json:"motivation"`
		Summary       string  `json:"summary"`
	}
	user := fmt.Sprintf("Role: %s\n\nCandidate responses:\n%s", in.Job.Title, responses)
	raw, fellBack, err := askJSON(ctx, p.llm, p.logger, verdict.StageBehavioral, personaSystem, user, &reply,
		"communication", "culture", "motivation")
	if err != nil {
		return Evaluation{}, err
	}
	if fellBack {
		reply.Communication, reply.Culture, reply.Motivation = scoring.DefaultScore, scoring.DefaultScore, scoring.DefaultScore
		reply.Summary = "behavioral assessment degraded to default scores"
	}

	score, subs := scoring.Behavioral(reply.Communication, reply.Culture, reply.Motivation)
	return Evaluation{
		Score:     score,
		SubScores: subs,
		Decision:  lifecycle.Decide(score, in.Job.Threshold(verdict.StageBehavioral)),
		Reasoning: reply.Summary,
		Raw:       raw,
	}, nil
}
