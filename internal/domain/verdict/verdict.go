// Package verdict aggregates every recorded stage result for a job
// into a final ranking, applying the job's score weights and a fraud
// penalty derived from accumulated signals.
package verdict

import (
	"sort"

	"github.com/okian/sift/internal/domain/lifecycle"
	"github.com/okian/sift/internal/domain/model"
)

// Stage names as they appear in job weight/threshold maps.
const (
	StageScreening  = "screening"
	StageMCQ        = "mcq"
	StageCoding     = "coding"
	StageBehavioral = "behavioral"
	StageInterview  = "interview"
)

// Default verdict weights, used when the job configures none.
var defaultWeights = map[string]float64{
	StageScreening:  0.25,
	StageMCQ:        0.15,
	StageCoding:     0.30,
	StageBehavioral: 0.10,
	StageInterview:  0.20,
}

// Fraud penalty points per signal tier.
const (
	minorFraudPenalty = 2.0
	majorFraudPenalty = 10.0
)

// Fraud risk classifications reported per candidate.
const (
	RiskNone     = "none"
	RiskLow      = "low"
	RiskElevated = "elevated"
	RiskSevere   = "severe"
)

// Ranked is one row of the final ranking.
type Ranked struct {
	Rank          int                `json:"rank"`
	ApplicationID string             `json:"application_id"`
	CandidateID   string             `json:"candidate_id"`
	Status        lifecycle.Status   `json:"status"`
	FinalScore    float64            `json:"final_score"`
	StageScores   map[string]float64 `json:"stage_scores"`
	FraudPenalty  float64            `json:"fraud_penalty"`
	FraudRisk     string             `json:"fraud_risk"`
}

// Summary is the job-level rollup shipped alongside the ranking.
type Summary struct {
	JobID             string             `json:"job_id"`
	TotalApplications int                `json:"total_applications"`
	Shortlisted       int                `json:"shortlisted"`
	RejectedByStage   map[string]int     `json:"rejected_by_stage"`
	AverageFinalScore float64            `json:"average_final_score"`
	AverageByStage    map[string]float64 `json:"average_by_stage"`
	FraudIncidents    int                `json:"fraud_incidents"`
}

// Input bundles everything Rank needs, keyed by application ID.
type Input struct {
	Job          model.Job
	Applications []model.Application
	Results      map[string][]model.AgentResult
	Fraud        map[string][]model.FraudSignal
}

func stageName(g lifecycle.Stage) string {
	switch g {
	case lifecycle.StageGatekeeper:
		return StageScreening
	case lifecycle.StageQuizmaster:
		return StageMCQ
	case lifecycle.StageCodeJudge:
		return StageCoding
	case lifecycle.StagePersona:
		return StageBehavioral
	case lifecycle.StageInterviewer:
		return StageInterview
	}
	return ""
}

// FraudPenalty sums the per-signal penalties: low and medium signals
// cost minorFraudPenalty points each, high and critical signals
// majorFraudPenalty.
func FraudPenalty(signals []model.FraudSignal) float64 {
	penalty := 0.0
	for _, s := range signals {
		switch s.Severity {
		case model.SeverityHigh, model.SeverityCritical:
			penalty += majorFraudPenalty
		default:
			penalty += minorFraudPenalty
		}
	}
	return penalty
}

// FraudRisk classifies a candidate's exposure from signal count and
// the worst recorded severity.
func FraudRisk(signals []model.FraudSignal) string {
	if len(signals) == 0 {
		return RiskNone
	}
	worst := model.SeverityLow
	for _, s := range signals {
		switch s.Severity {
		case model.SeverityCritical:
			return RiskSevere
		case model.SeverityHigh:
			worst = model.SeverityHigh
		case model.SeverityMedium:
			if worst == model.SeverityLow {
				worst = model.SeverityMedium
			}
		}
	}
	if worst == model.SeverityHigh || len(signals) > 2 {
		return RiskElevated
	}
	return RiskLow
}

// FinalScore computes a candidate's weighted final score from the
// latest result per stage, minus the fraud penalty. Stages with no
// recorded result contribute zero.
func FinalScore(job model.Job, results []model.AgentResult, fraud []model.FraudSignal) (float64, map[string]float64) {
	weights := job.ScoreWeights
	if len(weights) == 0 {
		weights = defaultWeights
	}

	stageScores := make(map[string]float64)
	for _, r := range results {
		name := stageName(r.Stage)
		if name == "" {
			continue
		}
		// Re-runs append; the latest result for a stage wins the rollup.
		stageScores[name] = r.Score
	}

	total := 0.0
	for name, score := range stageScores {
		if w, ok := weights[name]; ok {
			total += w * score
		}
	}
	total -= FraudPenalty(fraud)
	if total < 0 {
		total = 0
	}
	return total, stageScores
}

// Rank produces the descending ranking and job summary. Ties break on
// the earlier submission time, then ascending application ID, so
// re-running the verdict is deterministic.
func Rank(in Input) ([]Ranked, Summary) {
	sum := Summary{
		JobID:           in.Job.ID,
		RejectedByStage: make(map[string]int),
		AverageByStage:  make(map[string]float64),
	}
	stageCounts := make(map[string]int)
	submitted := make(map[string]int64, len(in.Applications))

	ranked := make([]Ranked, 0, len(in.Applications))
	totalScore := 0.0
	for _, app := range in.Applications {
		results := in.Results[app.ID]
		fraud := in.Fraud[app.ID]
		final, stages := FinalScore(in.Job, results, fraud)

		sum.TotalApplications++
		sum.FraudIncidents += len(fraud)
		if app.Status == lifecycle.StatusShortlisted || app.Status == lifecycle.StatusHired {
			sum.Shortlisted++
		}
		if app.Status == lifecycle.StatusRejected {
			sum.RejectedByStage[app.CurrentStage.Name()]++
		}
		for name, score := range stages {
			sum.AverageByStage[name] += score
			stageCounts[name]++
		}
		totalScore += final

		submitted[app.ID] = app.SubmittedAt.UnixNano()
		ranked = append(ranked, Ranked{
			ApplicationID: app.ID,
			CandidateID:   app.CandidateID,
			Status:        app.Status,
			FinalScore:    final,
			StageScores:   stages,
			FraudPenalty:  FraudPenalty(fraud),
			FraudRisk:     FraudRisk(fraud),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].FinalScore != ranked[j].FinalScore {
			return ranked[i].FinalScore > ranked[j].FinalScore
		}
		ti, tj := submitted[ranked[i].ApplicationID], submitted[ranked[j].ApplicationID]
		if ti != tj {
			return ti < tj
		}
		return ranked[i].ApplicationID < ranked[j].ApplicationID
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	if sum.TotalApplications > 0 {
		sum.AverageFinalScore = totalScore / float64(sum.TotalApplications)
	}
	for name, total := range sum.AverageByStage {
		sum.AverageByStage[name] = total / float64(stageCounts[name])
	}
	return ranked, sum
}
