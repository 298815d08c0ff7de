package simulate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/sift/pkg/logger"
)

// Agent numbers as exposed by the run endpoint.
const (
	agentGatekeeper  = 1
	agentQuizmaster  = 2
	agentCodeJudge   = 3
	agentPersona     = 4
	agentInterviewer = 5
)

// Application status strings as serialized by the API.
const (
	statusMCQ          = "mcq"
	statusCoding       = "coding"
	statusBehavioral   = "behavioral"
	statusInterviewing = "interviewing"
	statusShortlisted  = "shortlisted"
	statusRejected     = "rejected"
)

const submissionTestsTotal = 10

// Journey outcome classes.
const (
	outcomeShortlisted = "shortlisted"
	outcomeRejected    = "rejected"
	outcomeStalled     = "stalled"
	outcomeFailed      = "failed"
)

// driveProfile submits one candidate and plays its side of every
// stage: quiz answers, coding submissions, behavioral responses and
// the interview transcript. Stages that reject end the journey;
// borderline outcomes leave the application parked and are reported
// as stalled.
func driveProfile(ctx context.Context, client *HTTPClient, config *Config, jobID string, p *Profile) (string, string) {
	submitted := submitApplication(ctx, client, config.BaseURL, jobID, p)
	if submitted != "success" {
		return submitted, outcomeFailed
	}

	// Gatekeeper runs from the queue without any candidate input.
	detail, ok := waitForStatus(ctx, client, config.BaseURL, p.ApplicationID, statusMCQ)
	if done, outcome := settled(detail, ok); done {
		p.FinalStatus = detail.Status
		return submitted, outcome
	}

	if outcome := driveQuiz(ctx, client, config, jobID, p); outcome != "" {
		return submitted, outcome
	}
	if outcome := driveCoding(ctx, client, config, jobID, p); outcome != "" {
		return submitted, outcome
	}
	if outcome := driveStage(ctx, client, config, p, agentPersona,
		map[string]interface{}{"responses": behavioralResponses(p)}, statusInterviewing); outcome != "" {
		return submitted, outcome
	}
	if outcome := driveStage(ctx, client, config, p, agentInterviewer,
		map[string]interface{}{"transcript": interviewTranscript(p)}, statusShortlisted); outcome != "" {
		return submitted, outcome
	}

	p.FinalStatus = statusShortlisted
	return submitted, outcomeShortlisted
}

// driveQuiz waits for the question bank, answers it and advances past
// the MCQ stage.
func driveQuiz(ctx context.Context, client *HTTPClient, config *Config, jobID string, p *Profile) string {
	questions, err := waitForQuiz(ctx, client, config.BaseURL, jobID)
	if err != nil {
		logger.Get().Warn(ctx, "quiz bank unavailable",
			logger.String("applicationID", p.ApplicationID), logger.Error(err))
		p.FinalStatus = outcomeStalled
		return outcomeStalled
	}

	payload := map[string]interface{}{"answers": answerQuiz(questions)}
	if _, err := runAgent(ctx, client, config.BaseURL, p.ApplicationID, agentQuizmaster, payload); err != nil && !errors.Is(err, errStageSettled) {
		logger.Get().Warn(ctx, "quiz stage failed",
			logger.String("applicationID", p.ApplicationID), logger.Error(err))
		p.FinalStatus = outcomeFailed
		return outcomeFailed
	}

	detail, ok := waitForStatus(ctx, client, config.BaseURL, p.ApplicationID, statusCoding)
	if done, outcome := settled(detail, ok); done {
		p.FinalStatus = detail.Status
		return outcome
	}
	return ""
}

// driveCoding waits for the problem bank, submits one answer per
// problem and advances past the coding stage.
func driveCoding(ctx context.Context, client *HTTPClient, config *Config, jobID string, p *Profile) string {
	problems, err := waitForProblems(ctx, client, config.BaseURL, jobID)
	if err != nil {
		logger.Get().Warn(ctx, "problem bank unavailable",
			logger.String("applicationID", p.ApplicationID), logger.Error(err))
		p.FinalStatus = outcomeStalled
		return outcomeStalled
	}

	for _, problem := range problems {
		if err := postSubmission(ctx, client, config.BaseURL, p, problem, submissionTestsTotal); err != nil {
			logger.Get().Warn(ctx, "submission failed",
				logger.String("applicationID", p.ApplicationID),
				logger.String("problemID", problem.ID), logger.Error(err))
			p.FinalStatus = outcomeFailed
			return outcomeFailed
		}
	}

	if _, err := runAgent(ctx, client, config.BaseURL, p.ApplicationID, agentCodeJudge, nil); err != nil && !errors.Is(err, errStageSettled) {
		logger.Get().Warn(ctx, "coding stage failed",
			logger.String("applicationID", p.ApplicationID), logger.Error(err))
		p.FinalStatus = outcomeFailed
		return outcomeFailed
	}

	detail, ok := waitForStatus(ctx, client, config.BaseURL, p.ApplicationID, statusBehavioral)
	if done, outcome := settled(detail, ok); done {
		p.FinalStatus = detail.Status
		return outcome
	}
	return ""
}

// driveStage runs one payload-carrying stage and waits for the
// expected advance.
func driveStage(ctx context.Context, client *HTTPClient, config *Config, p *Profile, agent int, payload map[string]interface{}, want string) string {
	if _, err := runAgent(ctx, client, config.BaseURL, p.ApplicationID, agent, payload); err != nil && !errors.Is(err, errStageSettled) {
		logger.Get().Warn(ctx, "stage run failed",
			logger.String("applicationID", p.ApplicationID),
			logger.Int("agent", agent), logger.Error(err))
		p.FinalStatus = outcomeFailed
		return outcomeFailed
	}

	detail, ok := waitForStatus(ctx, client, config.BaseURL, p.ApplicationID, want)
	if done, outcome := settled(detail, ok); done {
		p.FinalStatus = detail.Status
		return outcome
	}
	return ""
}

// settled maps a polling result onto a terminal journey outcome. A
// reached target means the journey continues (empty outcome).
func settled(detail applicationDetail, reached bool) (bool, string) {
	if detail.Status == statusRejected {
		return true, outcomeRejected
	}
	if !reached {
		return true, outcomeStalled
	}
	return false, ""
}

// waitForStatus polls the application until it reaches the wanted
// status, gets rejected or the poll budget runs out.
func waitForStatus(ctx context.Context, client *HTTPClient, baseURL, appID, want string) (applicationDetail, bool) {
	deadline := time.Now().Add(PollBudget)
	var last applicationDetail
	for time.Now().Before(deadline) {
		detail, err := getApplication(ctx, client, baseURL, appID)
		if err == nil {
			last = detail
			if detail.Status == want || detail.Status == statusRejected {
				return detail, detail.Status == want
			}
		}
		select {
		case <-ctx.Done():
			return last, false
		case <-time.After(PollInterval):
		}
	}
	return last, false
}

// waitForQuiz polls until the quizmaster has generated the bank.
func waitForQuiz(ctx context.Context, client *HTTPClient, baseURL, jobID string) ([]quizQuestion, error) {
	deadline := time.Now().Add(PollBudget)
	for time.Now().Before(deadline) {
		bank, ready, err := getQuiz(ctx, client, baseURL, jobID)
		if err != nil {
			return nil, err
		}
		if ready {
			return bank, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(PollInterval):
		}
	}
	return nil, fmt.Errorf("quiz bank not generated within %s", PollBudget)
}

// waitForProblems polls until the code judge has generated the bank.
func waitForProblems(ctx context.Context, client *HTTPClient, baseURL, jobID string) ([]codingProblem, error) {
	deadline := time.Now().Add(PollBudget)
	for time.Now().Before(deadline) {
		bank, ready, err := getProblems(ctx, client, baseURL, jobID)
		if err != nil {
			return nil, err
		}
		if ready {
			return bank, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(PollInterval):
		}
	}
	return nil, fmt.Errorf("problem bank not generated within %s", PollBudget)
}
