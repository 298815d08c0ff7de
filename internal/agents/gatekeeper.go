package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/sift/internal/adapters/llm"
	"github.com/okian/sift/internal/domain/lifecycle"
	"github.com/okian/sift/internal/domain/model"
	"github.com/okian/sift/internal/domain/scoring"
	"github.com/okian/sift/internal/domain/verdict"
	"github.com/okian/sift/pkg/logger"
)

const gatekeeperSystem = `You are a resume screener. Rate how well the candidate's resume matches the job requirements.
Respond with a JSON object only: {"resume_match": <0-100>, "summary": "<one sentence>"}`

// Gatekeeper is stage 1: resume screening. Identity verification is a
// hard gate; an unverified candidate is rejected no matter how well
// the resume scores.
type Gatekeeper struct {
	llm    llm.Client
	logger logger.Logger
}

// NewGatekeeper builds the screening evaluator.
func NewGatekeeper(client llm.Client) *Gatekeeper {
	return &Gatekeeper{llm: client, logger: logger.Get().Named("gatekeeper")}
}

// Stage reports the pipeline position.
func (g *Gatekeeper) Stage() lifecycle.Stage { return lifecycle.StageGatekeeper }

// Evaluate scores the resume against the job and applies bonuses for
// verified identity and a linked github profile.
func (g *Gatekeeper) Evaluate(ctx context.Context, in Input) (Evaluation, error) {
	if !in.Candidate.IdentityVerified {
		return Evaluation{
			Score:     0,
			Decision:  lifecycle.DecisionReject,
			Reasoning: "identity verification failed",
			Raw:       map[string]any{"identity_verified": false},
			Fraud: []model.FraudSignal{{
				Kind:     "identity_unverified",
				Severity: model.SeverityCritical,
				Evidence: map[string]any{"candidate_id": in.Candidate.ID},
			}},
		}, nil
	}

	var reply struct {
		ResumeMatch float64 `json:"resume_match"`
		Summary     string  `json:"summary"`
	}
	user := fmt.Sprintf("Job: %s\nRequirements:\n- %s\n\nResume:\n%s",
		in.Job.Title, strings.Join(in.Job.Requirements, "\n- "), in.Candidate.ResumeText)
	raw, fellBack, err := askJSON(ctx, g.llm, g.logger, verdict.StageScreening, gatekeeperSystem, user, &reply, "resume_match")
	if err != nil {
		return Evaluation{}, err
	}
	if fellBack {
		reply.ResumeMatch = scoring.DefaultScore
		reply.Summary = "resume screening degraded to default score"
	}

	score, subs := scoring.Screening(reply.ResumeMatch, in.Candidate.GithubScore,
		in.Candidate.IdentityVerified, in.Candidate.GithubLinked)
	return Evaluation{
		Score:     score,
		SubScores: subs,
		Decision:  lifecycle.Decide(score, in.Job.Threshold(verdict.StageScreening)),
		Reasoning: reply.Summary,
		Raw:       raw,
	}, nil
}
