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

const quizQuestionCount = 10

const quizmasterSystem = `You write technical multiple-choice questions for hiring screens.
Respond with a JSON object only: {"questions": [{"prompt": "...", "options": ["...", "...", "...", "..."], "answer": <index of correct option>}]}`

// Quizmaster is stage 2: the MCQ round. The first invocation for a job
// generates its question bank; every invocation without submitted
// answers holds the application until answers arrive.
type Quizmaster struct {
	llm    llm.Client
	store  repository.Store
	logger logger.Logger
}

// NewQuizmaster builds the MCQ evaluator.
func NewQuizmaster(client llm.Client, store repository.Store) *Quizmaster {
	return &Quizmaster{llm: client, store: store, logger: logger.Get().Named("quizmaster")}
}

// Stage reports the pipeline position.
func (q *Quizmaster) Stage() lifecycle.Stage { return lifecycle.StageQuizmaster }

// Evaluate ensures the job's question bank and grades answers when
// present. Score is the percentage of correct answers.
func (q *Quizmaster) Evaluate(ctx context.Context, in Input) (Evaluation, error) {
	questions, err := q.store.EnsureQuiz(ctx, in.Job.ID, func() ([]model.QuizQuestion, error) {
		return q.generate(ctx, in.Job)
	})
	if err != nil {
		return Evaluation{}, fmt.Errorf("ensure quiz bank: %w", err)
	}

	answers, ok := payloadAnswers(in.Payload, "answers")
	if !ok {
		return Evaluation{
			Decision:  lifecycle.DecisionPending,
			Reasoning: fmt.Sprintf("question bank ready (%d questions), awaiting answers", len(questions)),
		}, nil
	}

	correct := 0
	for _, question := range questions {
		if chosen, ok := answers[question.ID]; ok && chosen == question.Answer {
			correct++
		}
	}
	score := scoring.Quiz(correct, len(questions))
	return Evaluation{
		Score:     score,
		SubScores: map[string]float64{"correct": float64(correct), "total": float64(len(questions))},
		Decision:  lifecycle.Decide(score, in.Job.Threshold(verdict.StageMCQ)),
		Reasoning: fmt.Sprintf("%d of %d answers correct", correct, len(questions)),
		Raw:       map[string]any{"fallback": false},
	}, nil
}

// generate asks the model for the job's question bank. Generation has
// no default to degrade to; an unusable reply fails the invocation so
// it can be retried.
func (q *Quizmaster) generate(ctx context.Context, job model.Job) ([]model.QuizQuestion, error) {
	var reply struct {
		Questions []struct {
			Prompt  string   `json:"prompt"`
			Options []string `json:"options"`
			Answer  int      `json:"answer"`
		} `json:"questions"`
	}
	user := fmt.Sprintf("Write %d questions for the role %q.\nRequirements:\n- %s",
		quizQuestionCount, job.Title, strings.Join(job.Requirements, "\n- "))
	text, err := q.llm.Complete(ctx, quizmasterSystem, user)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", llm.ErrGateway, err)
	}
	if err := llm.Unmarshal(text, &reply, "questions"); err != nil {
		return nil, err
	}
	if len(reply.Questions) == 0 {
		return nil, fmt.Errorf("%w: empty question set", llm.ErrBadSchema)
	}

	questions := make([]model.QuizQuestion, 0, len(reply.Questions))
	for _, item := range reply.Questions {
		if len(item.Options) < 2 || item.Answer < 0 || item.Answer >= len(item.Options) {
			continue
		}
		questions = append(questions, model.QuizQuestion{
			ID:      uuid.NewString(),
			JobID:   job.ID,
			Prompt:  item.Prompt,
			Options: item.Options,
			Answer:  item.Answer,
		})
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no usable questions", llm.ErrBadSchema)
	}
	q.logger.Info(ctx, "generated quiz bank",
		logger.String("jobID", job.ID),
		logger.Int("questions", len(questions)),
	)
	return questions, nil
}
