// Package scoring holds the per-stage score arithmetic: fixed linear
// weightings, hard-gate bonuses, and fraud heuristics. Everything here
// is pure so each stage's numbers stay unit-testable without any model
// call behind them.
package scoring

import (
	"math"

	"github.com/okian/sift/internal/domain/model"
)

// DefaultScore is the documented fallback written when the model reply
// carries no usable JSON. The pipeline keeps moving on a neutral
// midpoint rather than blocking on a flaky upstream model.
const DefaultScore = 50.0

// Screening stage weights and bonuses.
const (
	screeningResumeWeight = 0.5
	screeningGithubWeight = 0.3
	identityBonus         = 10.0
	githubBonus           = 10.0
)

// Coding composite weights.
const (
	codingTestsWeight   = 0.6
	codingQualityWeight = 0.4
)

// Behavioral sub-score weights.
const (
	behavioralCommunicationWeight = 0.4
	behavioralCultureWeight       = 0.3
	behavioralMotivationWeight    = 0.3
)

// Interview sub-score weights.
const (
	interviewTechnicalWeight      = 0.5
	interviewCommunicationWeight  = 0.3
	interviewProblemSolvingWeight = 0.2
)

// Paste-event fraud thresholds, expressed as multiples of the
// submission count.
const (
	pasteFlagRatio = 2
	pasteHighRatio = 5
)

const maxScore = 100.0

// Clamp bounds a score to the 0-100 range.
func Clamp(v float64) float64 {
	return math.Max(0, math.Min(maxScore, v))
}

// Screening combines the resume match and github scores with the
// identity and github-presence bonuses.
func Screening(resumeMatch, github float64, identityVerified, githubLinked bool) (float64, map[string]float64) {
	subs := map[string]float64{
		"resume_match": Clamp(resumeMatch),
		"github":       Clamp(github),
	}
	overall := screeningResumeWeight*subs["resume_match"] + screeningGithubWeight*subs["github"]
	if identityVerified {
		overall += identityBonus
		subs["identity_bonus"] = identityBonus
	}
	if githubLinked {
		overall += githubBonus
		subs["github_bonus"] = githubBonus
	}
	return Clamp(overall), subs
}

// Quiz returns the percentage of correct answers.
func Quiz(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Clamp(float64(correct) / float64(total) * maxScore)
}

// CodingComposite blends the test pass rate with the model-assessed
// code quality for a single submission.
func CodingComposite(testsPassed, testsTotal int, quality float64) float64 {
	passRate := 0.0
	if testsTotal > 0 {
		passRate = float64(testsPassed) / float64(testsTotal)
	}
	return Clamp(codingTestsWeight*passRate*maxScore + codingQualityWeight*Clamp(quality))
}

// CodingOverall is the arithmetic mean of the per-submission
// composites.
func CodingOverall(composites []float64) float64 {
	if len(composites) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range composites {
		sum += c
	}
	return Clamp(sum / float64(len(composites)))
}

// Behavioral weights the persona sub-scores.
func Behavioral(communication, culture, motivation float64) (float64, map[string]float64) {
	subs := map[string]float64{
		"communication": Clamp(communication),
		"culture":       Clamp(culture),
		"motivation":    Clamp(motivation),
	}
	overall := behavioralCommunicationWeight*subs["communication"] +
		behavioralCultureWeight*subs["culture"] +
		behavioralMotivationWeight*subs["motivation"]
	return Clamp(overall), subs
}

// Interview weights the interviewer sub-scores.
func Interview(technical, communication, problemSolving float64) (float64, map[string]float64) {
	subs := map[string]float64{
		"technical":       Clamp(technical),
		"communication":   Clamp(communication),
		"problem_solving": Clamp(problemSolving),
	}
	overall := interviewTechnicalWeight*subs["technical"] +
		interviewCommunicationWeight*subs["communication"] +
		interviewProblemSolvingWeight*subs["problem_solving"]
	return Clamp(overall), subs
}

// PasteSeverity applies the paste-event fraud rule: a total above
// pasteFlagRatio times the submission count flags the application,
// with severity high beyond pasteHighRatio and medium otherwise.
// The second return is false when nothing should be flagged.
func PasteSeverity(totalPasteEvents, submissions int) (model.Severity, bool) {
	if submissions <= 0 || totalPasteEvents <= pasteFlagRatio*submissions {
		return "", false
	}
	if totalPasteEvents > pasteHighRatio*submissions {
		return model.SeverityHigh, true
	}
	return model.SeverityMedium, true
}
