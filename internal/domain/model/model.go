// Package model contains domain records passed between layers.
package model

import (
	"time"

	"github.com/okian/sift/internal/domain/lifecycle"
)

// Application is one candidate's attempt at one job. Mutated only by
// stage agents through the store; terminal applications are never
// deleted. Revision is an optimistic version stamp: every store write
// checks it and bumps it, so overlapping invocations cannot both win.
type Application struct {
	ID             string
	CandidateID    string
	JobID          string
	Status         lifecycle.Status
	CurrentStage   lifecycle.Stage
	Revision       int64
	AgentStartedAt time.Time
	SubmittedAt    time.Time
}

// Job holds the per-job configuration the agents read: requirements
// for prompt building, passing thresholds per stage, and the verdict
// score weights.
type Job struct {
	ID           string
	Title        string
	Description  string
	Requirements []string
	// Thresholds maps stage names (screening, mcq, coding, behavioral,
	// interview) to the minimum passing score. Missing entries fall
	// back to DefaultPassingScore.
	Thresholds map[string]float64
	// ScoreWeights maps the same stage names to their weight in the
	// final verdict score.
	ScoreWeights map[string]float64
	CreatedAt    time.Time
}

// DefaultPassingScore applies when a job configures no threshold for a
// stage.
const DefaultPassingScore = 60.0

// Threshold returns the passing score for a stage name.
func (j Job) Threshold(stage string) float64 {
	if t, ok := j.Thresholds[stage]; ok && t > 0 {
		return t
	}
	return DefaultPassingScore
}

// Candidate is the profile material the agents evaluate.
type Candidate struct {
	ID               string
	Name             string
	Email            string
	ResumeText       string
	GithubScore      float64
	GithubLinked     bool
	IdentityVerified bool
	CreatedAt        time.Time
}

// AgentResult is the immutable scored outcome of one (application,
// stage) pair. Append-only: the store refuses a second result for the
// same stage.
type AgentResult struct {
	ID            string
	ApplicationID string
	Stage         lifecycle.Stage
	AgentName     string
	Score         float64
	SubScores     map[string]float64
	Decision      lifecycle.Decision
	Reasoning     string
	Raw           map[string]any
	CreatedAt     time.Time
}

// Severity tiers for fraud signals.
type Severity string

// Fraud severities.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// FraudSignal is an evidence record attached to an application and
// stage. Signals are additive; they never drive a transition on their
// own but feed the verdict fraud penalty.
type FraudSignal struct {
	ID            string
	ApplicationID string
	Stage         lifecycle.Stage
	Kind          string
	Severity      Severity
	Evidence      map[string]any
	CreatedAt     time.Time
}

// CandidateScore is the denormalized rollup later stages keep current.
// Last writer wins; no versioning.
type CandidateScore struct {
	ApplicationID  string
	Technical      float64
	Communication  float64
	ProblemSolving float64
	Culture        float64
	UpdatedAt      time.Time
}

// CodingProblem belongs to a job's problem bank, generated once per
// job and reused for every applicant.
type CodingProblem struct {
	ID         string
	JobID      string
	Title      string
	Prompt     string
	Difficulty string
}

// CodeSubmission is one candidate answer to one coding problem.
// PasteEvents counts editor paste actions recorded client-side; the
// code judge turns excessive counts into a fraud signal.
type CodeSubmission struct {
	ID            string
	ApplicationID string
	ProblemID     string
	Code          string
	Language      string
	TestsPassed   int
	TestsTotal    int
	PasteEvents   int
	CreatedAt     time.Time
}

// QuizQuestion belongs to a job's MCQ bank. Answer is the index into
// Options of the correct choice.
type QuizQuestion struct {
	ID      string
	JobID   string
	Prompt  string
	Options []string
	Answer  int
}

// StageTask is the unit of work flowing through the task queue: run
// one stage for one application. TaskID doubles as the idempotency
// key for the invocation.
type StageTask struct {
	TaskID        string
	ApplicationID string
	JobID         string
	Stage         lifecycle.Stage
	Payload       map[string]any
}
