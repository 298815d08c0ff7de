package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/sift/internal/adapters/http/api"
	"github.com/okian/sift/internal/adapters/repository"
	"github.com/okian/sift/internal/domain/lifecycle"
	"github.com/okian/sift/internal/domain/model"
	"github.com/okian/sift/internal/domain/verdict"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeDeps implements api.Dependencies over in-memory fixtures so each
// handler can be exercised without the service layer.
type fakeDeps struct {
	seen map[string]bool

	submitErr error
	submitted []model.Candidate

	runResult *model.AgentResult
	runNext   *model.StageTask
	runErr    error
	runTasks  []model.StageTask

	apps    map[string]model.Application
	results map[string][]model.AgentResult
	fraud   map[string][]model.FraudSignal

	ranking    []verdict.Ranked
	summary    verdict.Summary
	rankingErr error

	jobs     map[string]model.Job
	quiz     map[string][]model.QuizQuestion
	problems map[string][]model.CodingProblem

	subErr error
	subs   []model.CodeSubmission
}

func newFakeDeps() *fakeDeps {
	return &fakeDeps{
		seen:     make(map[string]bool),
		apps:     make(map[string]model.Application),
		results:  make(map[string][]model.AgentResult),
		fraud:    make(map[string][]model.FraudSignal),
		jobs:     make(map[string]model.Job),
		quiz:     make(map[string][]model.QuizQuestion),
		problems: make(map[string][]model.CodingProblem),
	}
}

func (f *fakeDeps) SeenAndRecord(_ context.Context, id string) bool {
	if f.seen[id] {
		return true
	}
	f.seen[id] = true
	return false
}

func (f *fakeDeps) Unrecord(_ context.Context, id string) {
	delete(f.seen, id)
}

func (f *fakeDeps) Size() int64 {
	return int64(len(f.seen))
}

func (f *fakeDeps) SubmitApplication(_ context.Context, cand model.Candidate, jobID string, _ []byte, _ string) (model.Application, error) {
	if f.submitErr != nil {
		return model.Application{}, f.submitErr
	}
	f.submitted = append(f.submitted, cand)
	return model.Application{
		ID:          fmt.Sprintf("app-%d", len(f.submitted)),
		CandidateID: fmt.Sprintf("cand-%d", len(f.submitted)),
		JobID:       jobID,
		Status:      lifecycle.StatusApplied,
	}, nil
}

func (f *fakeDeps) RunStage(_ context.Context, task model.StageTask) (*model.AgentResult, *model.StageTask, error) {
	f.runTasks = append(f.runTasks, task)
	if f.runErr != nil {
		return nil, nil, f.runErr
	}
	return f.runResult, f.runNext, nil
}

func (f *fakeDeps) Application(_ context.Context, id string) (model.Application, error) {
	app, ok := f.apps[id]
	if !ok {
		return model.Application{}, repository.ErrNotFound
	}
	return app, nil
}

func (f *fakeDeps) Results(_ context.Context, appID string) ([]model.AgentResult, error) {
	return f.results[appID], nil
}

func (f *fakeDeps) FraudSignals(_ context.Context, appID string) ([]model.FraudSignal, error) {
	return f.fraud[appID], nil
}

func (f *fakeDeps) Rankings(_ context.Context, jobID string) ([]verdict.Ranked, verdict.Summary, error) {
	if f.rankingErr != nil {
		return nil, verdict.Summary{}, f.rankingErr
	}
	return f.ranking, f.summary, nil
}

func (f *fakeDeps) CreateJob(_ context.Context, job model.Job) (model.Job, error) {
	job.ID = fmt.Sprintf("job-%d", len(f.jobs)+1)
	job.CreatedAt = time.Now()
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeDeps) Job(_ context.Context, id string) (model.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return model.Job{}, repository.ErrNotFound
	}
	return job, nil
}

func (f *fakeDeps) Quiz(_ context.Context, jobID string) ([]model.QuizQuestion, error) {
	bank, ok := f.quiz[jobID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return bank, nil
}

func (f *fakeDeps) Problems(_ context.Context, jobID string) ([]model.CodingProblem, error) {
	bank, ok := f.problems[jobID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return bank, nil
}

func (f *fakeDeps) AddSubmission(_ context.Context, sub model.CodeSubmission) (model.CodeSubmission, error) {
	if f.subErr != nil {
		return model.CodeSubmission{}, f.subErr
	}
	sub.ID = fmt.Sprintf("sub-%d", len(f.subs)+1)
	f.subs = append(f.subs, sub)
	return sub, nil
}

type fakeStats struct{}

func (fakeStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"uptime_seconds": 1}
}

func newTestMux(deps *fakeDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, fakeStats{}).Register(context.Background(), mux)
	return mux
}

func doJSON(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func applicationBody(requestID string) string {
	return fmt.Sprintf(`{
		"request_id": %q,
		"job_id": "job-1",
		"candidate": {"name": "Ada Lovelace", "email": "ada@example.com", "github_score": 88, "github_linked": true, "identity_verified": true},
		"resume_text": "Ten years of backend work."
	}`, requestID)
}

func TestApplicationsSubmit(t *testing.T) {
	Convey("Given the applications endpoint", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)

		Convey("When a valid application is posted", func() {
			rec := doJSON(mux, http.MethodPost, "/applications", applicationBody("req-1"))

			Convey("Then it is accepted with identifiers", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				var ack struct {
					Status        string `json:"status"`
					Duplicate     bool   `json:"duplicate"`
					ApplicationID string `json:"application_id"`
					CandidateID   string `json:"candidate_id"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &ack), ShouldBeNil)
				So(ack.Status, ShouldEqual, "accepted")
				So(ack.Duplicate, ShouldBeFalse)
				So(ack.ApplicationID, ShouldEqual, "app-1")
				So(ack.CandidateID, ShouldEqual, "cand-1")
				So(deps.submitted, ShouldHaveLength, 1)
			})

			Convey("And replaying the same request id is acknowledged without resubmitting", func() {
				rec2 := doJSON(mux, http.MethodPost, "/applications", applicationBody("req-1"))
				So(rec2.Code, ShouldEqual, http.StatusOK)
				So(rec2.Body.String(), ShouldContainSubstring, `"duplicate":true`)
				So(deps.submitted, ShouldHaveLength, 1)
			})
		})

		Convey("When the service rejects the submission", func() {
			deps.submitErr = repository.ErrDuplicate
			rec := doJSON(mux, http.MethodPost, "/applications", applicationBody("req-2"))

			Convey("Then the conflict surfaces and the request id is released for retry", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
				So(rec.Body.String(), ShouldContainSubstring, `"code":"duplicate"`)
				So(deps.seen["req-2"], ShouldBeFalse)
			})
		})

		Convey("When required fields are missing", func() {
			rec := doJSON(mux, http.MethodPost, "/applications", `{"job_id": "job-1"}`)

			Convey("Then the request is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the resume payload is not valid base64", func() {
			body := `{
				"request_id": "req-3",
				"job_id": "job-1",
				"candidate": {"name": "Ada", "email": "ada@example.com"},
				"resume_base64": "%%not-base64%%"
			}`
			rec := doJSON(mux, http.MethodPost, "/applications", body)

			Convey("Then it fails with a bad request and releases the request id", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.seen["req-3"], ShouldBeFalse)
			})
		})
	})
}

func TestApplicationsGet(t *testing.T) {
	Convey("Given a stored application", t, func() {
		deps := newFakeDeps()
		submitted := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
		deps.apps["app-1"] = model.Application{
			ID:           "app-1",
			CandidateID:  "cand-1",
			JobID:        "job-1",
			Status:       lifecycle.StatusCoding,
			CurrentStage: lifecycle.StageCodeJudge,
			SubmittedAt:  submitted,
		}
		deps.results["app-1"] = []model.AgentResult{{
			ID:        "res-1",
			Stage:     lifecycle.StageGatekeeper,
			AgentName: "gatekeeper",
			Score:     81,
			Decision:  lifecycle.DecisionPass,
		}}
		deps.fraud["app-1"] = []model.FraudSignal{{
			ID:       "sig-1",
			Stage:    lifecycle.StageCodeJudge,
			Kind:     "paste_anomaly",
			Severity: model.SeverityHigh,
		}}
		mux := newTestMux(deps)

		Convey("When the application is fetched", func() {
			rec := doJSON(mux, http.MethodGet, "/applications/app-1", "")

			Convey("Then the detail carries status, results and fraud signals", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					ID           string `json:"id"`
					Status       string `json:"status"`
					CurrentStage int    `json:"current_stage"`
					SubmittedAt  string `json:"submitted_at"`
					Results      []struct {
						AgentName string  `json:"agent_name"`
						Score     float64 `json:"score"`
						Decision  string  `json:"decision"`
					} `json:"results"`
					FraudSignals []struct {
						Kind     string `json:"kind"`
						Severity string `json:"severity"`
					} `json:"fraud_signals"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Status, ShouldEqual, "coding")
				So(resp.CurrentStage, ShouldEqual, 3)
				So(resp.SubmittedAt, ShouldEqual, "2026-01-05T10:00:00Z")
				So(resp.Results, ShouldHaveLength, 1)
				So(resp.Results[0].AgentName, ShouldEqual, "gatekeeper")
				So(resp.Results[0].Decision, ShouldEqual, "pass")
				So(resp.FraudSignals, ShouldHaveLength, 1)
				So(resp.FraudSignals[0].Severity, ShouldEqual, "high")
			})
		})

		Convey("When the application does not exist", func() {
			rec := doJSON(mux, http.MethodGet, "/applications/ghost", "")

			Convey("Then it is a structured 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				So(rec.Body.String(), ShouldContainSubstring, `"code":"not_found"`)
			})
		})

		Convey("When the path carries extra segments", func() {
			rec := doJSON(mux, http.MethodGet, "/applications/app-1/extra", "")

			Convey("Then it is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestAgentsRun(t *testing.T) {
	Convey("Given the manual invocation endpoint", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)

		runBody := func(invocationID string) string {
			return fmt.Sprintf(`{"invocation_id": %q, "application_id": "app-1", "agent": 2, "payload": {"answers": {"q1": 1}}}`, invocationID)
		}

		Convey("When a stage run succeeds", func() {
			deps.runResult = &model.AgentResult{
				ID:        "res-9",
				Stage:     lifecycle.StageQuizmaster,
				AgentName: "quizmaster",
				Score:     100,
				Decision:  lifecycle.DecisionStrongPass,
			}
			deps.runNext = &model.StageTask{Stage: lifecycle.StageCodeJudge}
			rec := doJSON(mux, http.MethodPost, "/agents/run", runBody("inv-1"))

			Convey("Then the result and next agent come back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Success   bool `json:"success"`
					NextAgent int  `json:"next_agent"`
					Result    *struct {
						AgentName string  `json:"agent_name"`
						Score     float64 `json:"score"`
					} `json:"result"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Success, ShouldBeTrue)
				So(resp.NextAgent, ShouldEqual, 3)
				So(resp.Result, ShouldNotBeNil)
				So(resp.Result.AgentName, ShouldEqual, "quizmaster")
				So(deps.runTasks, ShouldHaveLength, 1)
				So(deps.runTasks[0].Payload, ShouldContainKey, "answers")
			})

			Convey("And replaying the invocation id never re-runs the stage", func() {
				rec2 := doJSON(mux, http.MethodPost, "/agents/run", runBody("inv-1"))
				So(rec2.Code, ShouldEqual, http.StatusOK)
				So(rec2.Body.String(), ShouldContainSubstring, `"duplicate":true`)
				So(deps.runTasks, ShouldHaveLength, 1)
			})
		})

		Convey("When the stage refuses to run", func() {
			deps.runErr = repository.ErrStageDone
			rec := doJSON(mux, http.MethodPost, "/agents/run", runBody("inv-2"))

			Convey("Then the code-prefixed error comes back as a conflict", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
				var resp struct {
					Success bool   `json:"success"`
					Error   string `json:"error"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Success, ShouldBeFalse)
				So(resp.Error, ShouldStartWith, "stage_done: ")
			})

			Convey("And the invocation id is released so the caller can retry", func() {
				So(deps.seen["inv-2"], ShouldBeFalse)
			})
		})

		Convey("When the pipeline order is violated", func() {
			deps.runErr = lifecycle.ErrOutOfOrder
			rec := doJSON(mux, http.MethodPost, "/agents/run", runBody("inv-3"))

			Convey("Then the conflict names the ordering code", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
				So(rec.Body.String(), ShouldContainSubstring, "out_of_order")
			})
		})

		Convey("When the agent number is out of range", func() {
			rec := doJSON(mux, http.MethodPost, "/agents/run", `{"application_id": "app-1", "agent": 9}`)

			Convey("Then validation rejects it", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestSubmissionsPost(t *testing.T) {
	Convey("Given the submissions endpoint", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)

		body := func(passed, total, paste int) string {
			return fmt.Sprintf(`{
				"application_id": "app-1",
				"problem_id": "prob-1",
				"code": "func main() {}",
				"language": "go",
				"tests_passed": %d,
				"tests_total": %d,
				"paste_events": %d
			}`, passed, total, paste)
		}

		Convey("When a valid submission is posted", func() {
			rec := doJSON(mux, http.MethodPost, "/submissions", body(8, 10, 1))

			Convey("Then it is stored and acknowledged", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				So(rec.Body.String(), ShouldContainSubstring, `"id":"sub-1"`)
				So(deps.subs, ShouldHaveLength, 1)
				So(deps.subs[0].TestsPassed, ShouldEqual, 8)
			})
		})

		Convey("When the test counts are inconsistent", func() {
			So(doJSON(mux, http.MethodPost, "/submissions", body(11, 10, 0)).Code, ShouldEqual, http.StatusBadRequest)
			So(doJSON(mux, http.MethodPost, "/submissions", body(-1, 10, 0)).Code, ShouldEqual, http.StatusBadRequest)
			So(doJSON(mux, http.MethodPost, "/submissions", body(0, 0, 0)).Code, ShouldEqual, http.StatusBadRequest)
			So(doJSON(mux, http.MethodPost, "/submissions", body(5, 10, -2)).Code, ShouldEqual, http.StatusBadRequest)
			So(deps.subs, ShouldBeEmpty)
		})

		Convey("When the application is unknown", func() {
			deps.subErr = repository.ErrNotFound
			rec := doJSON(mux, http.MethodPost, "/submissions", body(5, 10, 0))

			Convey("Then the store error maps to 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestRankingsGet(t *testing.T) {
	Convey("Given the rankings endpoint", t, func() {
		deps := newFakeDeps()
		deps.ranking = []verdict.Ranked{
			{Rank: 1, ApplicationID: "app-2", FinalScore: 84.5, FraudRisk: verdict.RiskNone},
			{Rank: 2, ApplicationID: "app-1", FinalScore: 71.0, FraudRisk: verdict.RiskLow},
		}
		deps.summary = verdict.Summary{JobID: "job-1", TotalApplications: 2, Shortlisted: 1}
		mux := newTestMux(deps)

		Convey("When the ranking is fetched", func() {
			rec := doJSON(mux, http.MethodGet, "/rankings/job-1", "")

			Convey("Then the ordered board and summary come back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Ranking []verdict.Ranked `json:"ranking"`
					Summary verdict.Summary  `json:"summary"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Ranking, ShouldHaveLength, 2)
				So(resp.Ranking[0].ApplicationID, ShouldEqual, "app-2")
				So(resp.Summary.TotalApplications, ShouldEqual, 2)
			})
		})

		Convey("When the job is unknown", func() {
			deps.rankingErr = repository.ErrNotFound
			rec := doJSON(mux, http.MethodGet, "/rankings/job-9", "")

			Convey("Then it is a 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the job id is missing", func() {
			rec := doJSON(mux, http.MethodGet, "/rankings/", "")

			Convey("Then it is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestJobs(t *testing.T) {
	Convey("Given the jobs endpoints", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)

		Convey("When a job is created", func() {
			body := `{
				"title": "Backend Engineer",
				"description": "Distributed systems work",
				"requirements": ["go", "postgres"],
				"thresholds": {"screening": 55, "mcq": 60},
				"score_weights": {"coding": 0.5, "interview": 0.5}
			}`
			rec := doJSON(mux, http.MethodPost, "/jobs", body)

			Convey("Then it is stored with an id and thresholds intact", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				var resp struct {
					ID         string             `json:"id"`
					Title      string             `json:"title"`
					Thresholds map[string]float64 `json:"thresholds"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.ID, ShouldEqual, "job-1")
				So(resp.Thresholds["mcq"], ShouldEqual, 60)

				Convey("And it can be fetched back", func() {
					got := doJSON(mux, http.MethodGet, "/jobs/"+resp.ID, "")
					So(got.Code, ShouldEqual, http.StatusOK)
					So(got.Body.String(), ShouldContainSubstring, "Backend Engineer")
				})
			})
		})

		Convey("When a job has no title", func() {
			rec := doJSON(mux, http.MethodPost, "/jobs", `{"description": "untitled"}`)

			Convey("Then it is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When fetching an unknown job", func() {
			rec := doJSON(mux, http.MethodGet, "/jobs/ghost", "")

			Convey("Then it is a 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestJobQuestionBanks(t *testing.T) {
	Convey("Given a job with generated question banks", t, func() {
		deps := newFakeDeps()
		deps.jobs["job-1"] = model.Job{ID: "job-1", Title: "Backend Engineer"}
		deps.quiz["job-1"] = []model.QuizQuestion{
			{ID: "q1", JobID: "job-1", Prompt: "Pick one", Options: []string{"a", "b", "c"}, Answer: 1},
		}
		deps.problems["job-1"] = []model.CodingProblem{
			{ID: "p1", JobID: "job-1", Title: "Dedupe a stream", Prompt: "Remove duplicates.", Difficulty: "medium"},
		}
		mux := newTestMux(deps)

		Convey("When the quiz bank is fetched", func() {
			rec := doJSON(mux, http.MethodGet, "/jobs/job-1/quiz", "")

			Convey("Then the questions come back without the answer key", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var out []map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &out), ShouldBeNil)
				So(out, ShouldHaveLength, 1)
				So(out[0]["id"], ShouldEqual, "q1")
				So(out[0], ShouldNotContainKey, "answer")
				So(rec.Body.String(), ShouldNotContainSubstring, "answer")
			})
		})

		Convey("When the problem bank is fetched", func() {
			rec := doJSON(mux, http.MethodGet, "/jobs/job-1/problems", "")

			Convey("Then the problems come back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "Dedupe a stream")
				So(rec.Body.String(), ShouldContainSubstring, `"difficulty":"medium"`)
			})
		})

		Convey("When the banks have not been generated yet", func() {
			rec := doJSON(mux, http.MethodGet, "/jobs/job-2/quiz", "")

			Convey("Then the bank read is a 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When an unknown sub-resource is requested", func() {
			rec := doJSON(mux, http.MethodGet, "/jobs/job-1/answers", "")

			Convey("Then it is not found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestStatsAndMethods(t *testing.T) {
	Convey("Given the registered server", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)

		Convey("When stats are fetched", func() {
			rec := doJSON(mux, http.MethodGet, "/stats", "")

			Convey("Then the provider payload is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "uptime_seconds")
			})
		})

		Convey("When write endpoints are hit with GET", func() {
			So(doJSON(mux, http.MethodGet, "/applications", "").Code, ShouldEqual, http.StatusNotFound)
			So(doJSON(mux, http.MethodGet, "/agents/run", "").Code, ShouldEqual, http.StatusNotFound)
			So(doJSON(mux, http.MethodGet, "/submissions", "").Code, ShouldEqual, http.StatusNotFound)
			So(doJSON(mux, http.MethodGet, "/jobs", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
