package simulate

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/okian/sift/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	archetypeDivisor   = 10
)

// Archetype knob ranges. Strong candidates carry high GitHub scores
// and pass most tests; suspicious ones are either unverified or paste
// heavily into the editor.
const (
	strongGithubMin    = 75.0
	strongGithubRange  = 20.0
	strongPassMin      = 0.8
	strongPassRange    = 0.2
	averageGithubMin   = 45.0
	averageGithubRange = 25.0
	averagePassMin     = 0.5
	averagePassRange   = 0.3
	weakGithubMin      = 10.0
	weakGithubRange    = 30.0
	weakPassMin        = 0.0
	weakPassRange      = 0.5
	heavyPasteMin      = 8
	heavyPasteRange    = 8
	lightPasteRange    = 3
)

// Archetype draw cases out of archetypeDivisor.
const (
	caseSuspicious = 0 // 10%
	caseWeakUpper  = 2 // 20% weak
	caseStrongUp   = 5 // 30% strong, remainder average
)

var firstNames = []string{
	"Amira", "Bjorn", "Chidi", "Dana", "Elif", "Farid", "Grace", "Hana",
	"Ivo", "Jun", "Katya", "Liam", "Mina", "Noor", "Omar", "Priya",
	"Quinn", "Rosa", "Sven", "Tariq",
}

var lastNames = []string{
	"Abadi", "Bergman", "Costa", "Dvorak", "Eriksen", "Fontaine",
	"Galanis", "Haddad", "Ivanova", "Jansen", "Kaur", "Lindqvist",
	"Moreno", "Novak", "Okafor", "Petrov", "Rahimi", "Sato", "Tanaka",
	"Ueda",
}

var resumeFragments = []string{
	"Built and operated distributed ingestion services in Go handling sustained high throughput.",
	"Led migration of a monolith to event-driven services with measurable latency wins.",
	"Maintains several open source libraries for queueing and caching.",
	"Shipped a real-time scoring engine with strict p99 latency targets.",
	"Experience across PostgreSQL, RabbitMQ, and Prometheus-based observability.",
	"Mentored junior engineers and ran design reviews for a platform team.",
	"Contributed performance patches to upstream database drivers.",
	"Designed idempotent APIs and at-least-once delivery pipelines.",
	"Owned on-call for a payments platform with tight error budgets.",
	"Implemented a worker-pool batch processor with graceful draining.",
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// getRandomInt returns a random int in [0, max) using crypto/rand.
func getRandomInt(max int) int {
	if max <= 0 {
		return 0
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(max)))
	return int(n.Int64())
}

// generateProfiles creates the configured number of candidate profiles.
func generateProfiles(ctx context.Context, config *Config, stats *Stats) ([]*Profile, error) {
	logger.Get().Info(ctx, "generating candidate profiles", logger.Int("numCandidates", config.NumCandidates))

	profiles := make([]*Profile, config.NumCandidates)
	for i := 0; i < config.NumCandidates; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during profile generation: %w", ctx.Err())
		default:
		}
		profiles[i] = generateSingleProfile(i)
	}

	stats.ProfilesGenerated = len(profiles)
	logger.Get().Info(ctx, "generated profiles successfully", logger.Int("count", len(profiles)))

	return profiles, nil
}

// generateSingleProfile creates one candidate profile drawn from an
// archetype distribution.
func generateSingleProfile(index int) *Profile {
	first := firstNames[getRandomInt(len(firstNames))]
	last := lastNames[getRandomInt(len(lastNames))]
	name := first + " " + last
	email := fmt.Sprintf("%s.%s.%d@example.com", first, last, index)

	p := &Profile{
		RequestID:        "req_" + strconv.Itoa(index) + "_" + uuid.New().String(),
		Name:             name,
		Email:            email,
		GithubLinked:     true,
		IdentityVerified: true,
		ResumeText:       generateResume(name),
	}

	switch draw := getRandomInt(archetypeDivisor); {
	case draw <= caseSuspicious:
		p.Archetype = ArchetypeSuspicious
		// Half unverified identities, half heavy paste activity.
		if getRandomInt(2) == 0 {
			p.IdentityVerified = false
		} else {
			p.PasteEvents = heavyPasteMin + getRandomInt(heavyPasteRange)
		}
		p.GithubScore = averageGithubMin + getRandomFloat()*averageGithubRange
		p.TestPassRatio = averagePassMin + getRandomFloat()*averagePassRange
	case draw <= caseWeakUpper:
		p.Archetype = ArchetypeWeak
		p.GithubScore = weakGithubMin + getRandomFloat()*weakGithubRange
		p.GithubLinked = getRandomInt(2) == 0
		p.TestPassRatio = weakPassMin + getRandomFloat()*weakPassRange
		p.PasteEvents = getRandomInt(lightPasteRange)
	case draw <= caseStrongUp:
		p.Archetype = ArchetypeStrong
		p.GithubScore = strongGithubMin + getRandomFloat()*strongGithubRange
		p.TestPassRatio = strongPassMin + getRandomFloat()*strongPassRange
		p.PasteEvents = getRandomInt(lightPasteRange)
	default:
		p.Archetype = ArchetypeAverage
		p.GithubScore = averageGithubMin + getRandomFloat()*averageGithubRange
		p.TestPassRatio = averagePassMin + getRandomFloat()*averagePassRange
		p.PasteEvents = getRandomInt(lightPasteRange)
	}

	return p
}

// generateResume composes a short resume from random fragments so
// each candidate produces distinct text.
func generateResume(name string) string {
	count := 2 + getRandomInt(3)
	text := name + " - Software Engineer\n\n"
	for i := 0; i < count; i++ {
		text += "- " + resumeFragments[getRandomInt(len(resumeFragments))] + "\n"
	}
	text += "\nGenerated " + time.Now().UTC().Format(time.RFC3339)
	return text
}

// answerQuiz picks one option per question uniformly at random.
func answerQuiz(questions []quizQuestion) map[string]int {
	answers := make(map[string]int, len(questions))
	for _, q := range questions {
		if len(q.Options) == 0 {
			answers[q.ID] = 0
			continue
		}
		answers[q.ID] = getRandomInt(len(q.Options))
	}
	return answers
}

// behavioralResponses writes short persona-stage answers.
func behavioralResponses(p *Profile) string {
	return fmt.Sprintf(
		"Q: Tell us about a conflict on your team.\nA: As %s, I brought both sides to a shared doc and we agreed on scope cuts.\n"+
			"Q: Why this role?\nA: The screening pipeline problem space matches my background (github activity score %.0f).\n",
		p.Name, p.GithubScore)
}

// interviewTranscript writes a short final-interview transcript.
func interviewTranscript(p *Profile) string {
	return fmt.Sprintf(
		"Interviewer: Walk me through a system you designed.\n%s: A queued stage pipeline with idempotent workers and revision checks.\n"+
			"Interviewer: How do you handle failure?\n%s: Retries with backoff and dead-lettering anything exhausted.\n",
		p.Name, p.Name)
}

// submissionCode fabricates a plausible code answer for a problem.
func submissionCode(p *Profile, problem codingProblem) string {
	return fmt.Sprintf("// %s solution by %s\nfunc solve(input []int) int {\n\treturn len(input)\n}\n",
		problem.Title, p.Name)
}
