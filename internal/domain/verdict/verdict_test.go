package verdict_test

import (
	"testing"
	"time"

	"github.com/okian/sift/internal/domain/lifecycle"
	"github.com/okian/sift/internal/domain/model"
	"github.com/okian/sift/internal/domain/verdict"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFraudPenalty(t *testing.T) {
	Convey("Given the fraud penalty ladder", t, func() {
		Convey("Then no signals should cost nothing", func() {
			So(verdict.FraudPenalty(nil), ShouldEqual, 0)
		})

		Convey("Then low and medium signals should cost 2 points each", func() {
			signals := []model.FraudSignal{
				{Severity: model.SeverityLow},
				{Severity: model.SeverityMedium},
			}
			So(verdict.FraudPenalty(signals), ShouldEqual, 4)
		})

		Convey("Then high and critical signals should cost 10 points each", func() {
			signals := []model.FraudSignal{
				{Severity: model.SeverityHigh},
				{Severity: model.SeverityCritical},
				{Severity: model.SeverityLow},
			}
			So(verdict.FraudPenalty(signals), ShouldEqual, 22)
		})
	})
}

func TestFraudRisk(t *testing.T) {
	Convey("Given the fraud risk classification", t, func() {
		So(verdict.FraudRisk(nil), ShouldEqual, verdict.RiskNone)

		So(verdict.FraudRisk([]model.FraudSignal{
			{Severity: model.SeverityLow},
		}), ShouldEqual, verdict.RiskLow)

		So(verdict.FraudRisk([]model.FraudSignal{
			{Severity: model.SeverityMedium},
		}), ShouldEqual, verdict.RiskLow)

		Convey("Then a high signal should elevate the risk", func() {
			So(verdict.FraudRisk([]model.FraudSignal{
				{Severity: model.SeverityHigh},
			}), ShouldEqual, verdict.RiskElevated)
		})

		Convey("Then more than two signals should elevate the risk", func() {
			So(verdict.FraudRisk([]model.FraudSignal{
				{Severity: model.SeverityLow},
				{Severity: model.SeverityLow},
				{Severity: model.SeverityMedium},
			}), ShouldEqual, verdict.RiskElevated)
		})

		Convey("Then any critical signal should be severe", func() {
			So(verdict.FraudRisk([]model.FraudSignal{
				{Severity: model.SeverityLow},
				{Severity: model.SeverityCritical},
			}), ShouldEqual, verdict.RiskSevere)
		})
	})
}

func TestFinalScore(t *testing.T) {
	Convey("Given the final score rollup", t, func() {
		results := []model.AgentResult{
			{Stage: lifecycle.StageGatekeeper, Score: 80},
			{Stage: lifecycle.StageQuizmaster, Score: 70},
			{Stage: lifecycle.StageCodeJudge, Score: 90},
			{Stage: lifecycle.StagePersona, Score: 60},
			{Stage: lifecycle.StageInterviewer, Score: 75},
		}

		Convey("When the job configures no weights", func() {
			final, stages := verdict.FinalScore(model.Job{}, results, nil)

			Convey("Then the default weights should apply", func() {
				// 0.25*80 + 0.15*70 + 0.30*90 + 0.10*60 + 0.20*75
				So(final, ShouldAlmostEqual, 78.5)
				So(stages[verdict.StageScreening], ShouldEqual, 80)
				So(stages[verdict.StageCoding], ShouldEqual, 90)
			})
		})

		Convey("When the job overrides the weights", func() {
			job := model.Job{ScoreWeights: map[string]float64{
				verdict.StageCoding:    0.5,
				verdict.StageInterview: 0.5,
			}}
			final, _ := verdict.FinalScore(job, results, nil)

			Convey("Then only the configured stages should count", func() {
				So(final, ShouldAlmostEqual, 82.5)
			})
		})

		Convey("When a stage has been re-run", func() {
			rerun := append(results, model.AgentResult{Stage: lifecycle.StageCodeJudge, Score: 40})
			final, stages := verdict.FinalScore(model.Job{}, rerun, nil)

			Convey("Then the latest result should win the rollup", func() {
				So(stages[verdict.StageCoding], ShouldEqual, 40)
				So(final, ShouldAlmostEqual, 63.5)
			})
		})

		Convey("When fraud signals accumulate", func() {
			fraud := []model.FraudSignal{
				{Severity: model.SeverityHigh},
				{Severity: model.SeverityLow},
			}
			final, _ := verdict.FinalScore(model.Job{}, results, fraud)

			Convey("Then the penalty should come off the weighted total", func() {
				So(final, ShouldAlmostEqual, 66.5)
			})
		})

		Convey("When the penalty exceeds the score", func() {
			fraud := make([]model.FraudSignal, 12)
			for i := range fraud {
				fraud[i] = model.FraudSignal{Severity: model.SeverityCritical}
			}
			final, _ := verdict.FinalScore(model.Job{}, results[:1], fraud)

			Convey("Then the final score should floor at zero", func() {
				So(final, ShouldEqual, 0)
			})
		})

		Convey("When no results exist", func() {
			final, stages := verdict.FinalScore(model.Job{}, nil, nil)
			So(final, ShouldEqual, 0)
			So(stages, ShouldBeEmpty)
		})
	})
}

func TestRank(t *testing.T) {
	Convey("Given a job with three applications", t, func() {
		now := time.Now()
		in := verdict.Input{
			Job: model.Job{ID: "job-1"},
			Applications: []model.Application{
				{ID: "app-a", CandidateID: "cand-a", Status: lifecycle.StatusShortlisted, SubmittedAt: now},
				{ID: "app-b", CandidateID: "cand-b", Status: lifecycle.StatusShortlisted, SubmittedAt: now.Add(time.Minute)},
				{ID: "app-c", CandidateID: "cand-c", Status: lifecycle.StatusRejected, CurrentStage: lifecycle.StageGatekeeper, SubmittedAt: now.Add(2 * time.Minute)},
			},
			Results: map[string][]model.AgentResult{
				"app-a": {{Stage: lifecycle.StageGatekeeper, Score: 80}},
				"app-b": {{Stage: lifecycle.StageGatekeeper, Score: 90}},
				"app-c": {{Stage: lifecycle.StageGatekeeper, Score: 20}},
			},
			Fraud: map[string][]model.FraudSignal{
				"app-c": {{Severity: model.SeverityCritical}},
			},
		}

		ranked, summary := verdict.Rank(in)

		Convey("Then the ranking should be descending with contiguous ranks", func() {
			So(ranked, ShouldHaveLength, 3)
			So(ranked[0].ApplicationID, ShouldEqual, "app-b")
			So(ranked[0].Rank, ShouldEqual, 1)
			So(ranked[1].ApplicationID, ShouldEqual, "app-a")
			So(ranked[1].Rank, ShouldEqual, 2)
			So(ranked[2].ApplicationID, ShouldEqual, "app-c")
			So(ranked[2].Rank, ShouldEqual, 3)
		})

		Convey("Then the summary should count the cohort", func() {
			So(summary.JobID, ShouldEqual, "job-1")
			So(summary.TotalApplications, ShouldEqual, 3)
			So(summary.Shortlisted, ShouldEqual, 2)
			So(summary.RejectedByStage["gatekeeper"], ShouldEqual, 1)
			So(summary.FraudIncidents, ShouldEqual, 1)
		})

		Convey("Then the rejected candidate should carry its fraud classification", func() {
			So(ranked[2].FraudRisk, ShouldEqual, verdict.RiskSevere)
			So(ranked[2].FraudPenalty, ShouldEqual, 10)
		})
	})
}

func TestRankTieBreaks(t *testing.T) {
	Convey("Given candidates with identical final scores", t, func() {
		now := time.Now()
		in := verdict.Input{
			Job: model.Job{ID: "job-1"},
			Applications: []model.Application{
				{ID: "app-later", CandidateID: "c1", Status: lifecycle.StatusShortlisted, SubmittedAt: now.Add(time.Hour)},
				{ID: "app-early", CandidateID: "c2", Status: lifecycle.StatusShortlisted, SubmittedAt: now},
				{ID: "app-b", CandidateID: "c3", Status: lifecycle.StatusShortlisted, SubmittedAt: now},
			},
			Results: map[string][]model.AgentResult{
				"app-later": {{Stage: lifecycle.StageGatekeeper, Score: 80}},
				"app-early": {{Stage: lifecycle.StageGatekeeper, Score: 80}},
				"app-b":     {{Stage: lifecycle.StageGatekeeper, Score: 80}},
			},
		}

		ranked, _ := verdict.Rank(in)

		Convey("Then the earlier submission should rank first", func() {
			So(ranked[2].ApplicationID, ShouldEqual, "app-later")
		})

		Convey("Then equal submission times should break on application ID", func() {
			So(ranked[0].ApplicationID, ShouldEqual, "app-b")
			So(ranked[1].ApplicationID, ShouldEqual, "app-early")
		})
	})
}
