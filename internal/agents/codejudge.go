package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/sift/internal/adapters/llm"
	"github.com/okian/sift/internal/adapters/repository"
	"github.com/okian/sift/internal/domain/lifecycle"
	"github.com/okian/sift/internal/domain/model"
	"github.com/okian/sift/internal/domain/scoring"
	"github.com/okian/sift/internal/domain/verdict"
	"github.com/okian/sift/pkg/logger"
)

const codeProblemCount = 2

const codeJudgeGenerateSystem = `You write coding problems for hiring screens.
Respond with a JSON object only: {"problems": [{"title": "...", "prompt": "...", "difficulty": "easy|medium|hard"}]}`

const codeJudgeGradeSystem = `You review code submitted during a hiring screen. Rate its quality: readability, structure, correctness beyond the tests.
Respond with a JSON object only: {"code_quality": <0-100>, "summary": "<one sentence>"}`

// CodeJudge is stage 3: the coding round. The first invocation for a
// job generates its problem bank; invocations before any submission
// hold the application. Grading combines the recorded test pass rate
// with a model quality review per submission.
type CodeJudge struct {
	llm    llm.Client
	store  repository.Store
	logger logger.Logger
}

// NewCodeJudge builds the coding evaluator.
func NewCodeJudge(client llm.Client, store repository.Store) *CodeJudge {
	return &CodeJudge{llm: client, store: store, logger: logger.Get().Named("codejudge")}
}

// Stage reports the pipeline position.
func (c *CodeJudge) Stage() lifecycle.Stage { return lifecycle.StageCodeJudge }

// Evaluate ensures the job's problem bank, grades every submission on
// file, and raises a fraud signal when paste activity is excessive.
func (c *CodeJudge) Evaluate(ctx context.Context, in Input) (Evaluation, error) {
	problems, err := c.store.EnsureProblems(ctx, in.Job.ID, func() ([]model.CodingProblem, error) {
		return c.generate(ctx, in.Job)
	})
	if err != nil {
		return Evaluation{}, fmt.Errorf("ensure problem bank: %w", err)
	}

	submissions, err := c.store.SubmissionsByApplication(ctx, in.App.ID)
	if err != nil {
		return Evaluation{}, err
	}
	if len(submissions) == 0 {
		return Evaluation{
			Decision:  lifecycle.DecisionPending,
			Reasoning: fmt.Sprintf("problem bank ready (%d problems), awaiting submissions", len(problems)),
		}, nil
	}

	composites := make([]float64, 0, len(submissions))
	subs := make(map[string]float64, len(submissions))
	pasteTotal := 0
	fellBackAny := false
	for i, sub := range submissions {
		quality, fellBack, err := c.grade(ctx, sub)
		if err != nil {
			return Evaluation{}, err
		}
		fellBackAny = fellBackAny || fellBack
		composite := scoring.CodingComposite(sub.TestsPassed, sub.TestsTotal, quality)
		composites = append(composites, composite)
		subs[fmt.Sprintf("submission_%d", i+1)] = composite
		pasteTotal += sub.PasteEvents
	}

	eval := Evaluation{
		Score:     scoring.CodingOverall(composites),
		SubScores: subs,
		Reasoning: fmt.Sprintf("graded %d submissions", len(submissions)),
		Raw:       map[string]any{"fallback": fellBackAny, "paste_events": pasteTotal},
	}
	eval.Decision = lifecycle.Decide(eval.Score, in.Job.Threshold(verdict.StageCoding))
	if severity, flagged := scoring.PasteSeverity(pasteTotal, len(submissions)); flagged {
		eval.Fraud = append(eval.Fraud, model.FraudSignal{
			Kind:     "excessive_paste_events",
			Severity: severity,
			Evidence: map[string]any{
				"paste_events": pasteTotal,
				"submissions":  len(submissions),
			},
		})
	}
	return eval, nil
}

func (c *CodeJudge) grade(ctx context.Context, sub model.CodeSubmission) (float64, bool, error) {
	var reply struct {
		CodeQuality float64 `json:"code_quality"`
		Summary     string  `json:"summary"`
	}
	user := fmt.Sprintf("Language: %s\nTests: %d/%d passed\n\nCode:\n%s",
		sub.Language, sub.TestsPassed, sub.TestsTotal, sub.Code)
	_, fellBack, err := askJSON(ctx, c.llm, c.logger, verdict.StageCoding, codeJudgeGradeSystem, user, &reply, "code_quality")
	if err != nil {
		return 0, false, err
	}
	if fellBack {
		return scoring.DefaultScore, true, nil
	}
	return reply.CodeQuality, false, nil
}

// generate asks the model for the job's problem bank. Like quiz
// generation, an unusable reply fails the invocation for retry.
func (c *CodeJudge) generate(ctx context.Context, job model.Job) ([]model.CodingProblem, error) {
	var reply struct {
		Problems []struct {
			Title      string `json:"title"`
			Prompt     string `json:"prompt"`
			Difficulty string `json:"difficulty"`
		} `json:"problems"`
	}
	user := fmt.Sprintf("Write %d coding problems for the role %q.\nRequirements:\n- %s",
		codeProblemCount, job.Title, strings.Join(job.Requirements, "\n- "))
	text, err := c.llm.Complete(ctx, codeJudgeGenerateSystem, user)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", llm.ErrGateway, err)
	}
	if err := llm.Unmarshal(text, &reply, "problems"); err != nil {
		return nil, err
	}
	if len(reply.Problems) == 0 {
		return nil, fmt.Errorf("%w: empty problem set", llm.ErrBadSchema)
	}

	problems := make([]model.CodingProblem, 0, len(reply.Problems))
	for _, item := range reply.Problems {
		problems = append(problems, model.CodingProblem{
			ID:         uuid.NewString(),
			JobID:      job.ID,
			Title:      item.Title,
			Prompt:     item.Prompt,
			Difficulty: item.Difficulty,
		})
	}
	c.logger.Info(ctx, "generated problem bank",
		logger.String("jobID", job.ID),
		logger.Int("problems", len(problems)),
	)
	return problems, nil
}
