package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// StubClient fabricates deterministic replies so the pipeline can run
// hermetically (tests, the simulator, local demos) without a gateway.
// Scores derive from a hash of the prompt, spread over 55-94 so the
// same candidate always lands on the same side of a threshold.
type StubClient struct{}

// NewStub creates a stub gateway client.
func NewStub() *StubClient {
	return &StubClient{}
}

const (
	stubScoreBase   = 55
	stubScoreSpread = 40
)

func stubScore(seed string, salt uint32) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return float64(stubScoreBase + (h.Sum32()+salt)%stubScoreSpread)
}

// Complete returns a JSON superset carrying every field any stage
// evaluator reads, so one stub serves all six agents. Bank-generation
// prompts get a fixed question or problem set instead.
func (s *StubClient) Complete(_ context.Context, system, user string) (string, error) {
	switch {
	case strings.Contains(system, "multiple-choice"):
		return stubQuiz, nil
	case strings.Contains(system, "coding problems"):
		return stubProblems, nil
	}
	return fmt.Sprintf(`{
  "resume_match": %.0f,
  "code_quality": %.0f,
  "communication": %.0f,
  "culture": %.0f,
  "motivation": %.0f,
  "technical": %.0f,
  "problem_solving": %.0f,
  "summary": "stubbed evaluation"
}`,
		stubScore(user, 1), stubScore(user, 2), stubScore(user, 3),
		stubScore(user, 4), stubScore(user, 5), stubScore(user, 6),
		stubScore(user, 7)), nil
}

const stubQuiz = `{
  "questions": [
    {"prompt": "What does a mutex guard against?", "options": ["Deadlock", "Data races", "Starvation", "Panics"], "answer": 1},
    {"prompt": "Which structure gives O(1) average lookup?", "options": ["Linked list", "Hash map", "Binary tree", "Array scan"], "answer": 1},
    {"prompt": "What does idempotent mean?", "options": ["Runs once", "Safe to repeat", "Atomic", "Ordered"], "answer": 1}
  ]
}`

const stubProblems = `{
  "problems": [
    {"title": "Rate limiter", "prompt": "Implement a sliding-window rate limiter.", "difficulty": "medium"},
    {"title": "Dedupe stream", "prompt": "Remove duplicates from an unbounded event stream.", "difficulty": "medium"}
  ]
}`
