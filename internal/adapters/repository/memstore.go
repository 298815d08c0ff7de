package repository

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/okian/sift/internal/domain/lifecycle"
	"github.com/okian/sift/internal/domain/model"
	"github.com/okian/sift/pkg/metrics"
)

// Default shard count for the in-memory store.
const defaultShardCount = 8

// appShard holds the per-application state: the row itself plus the
// append-only results, fraud signals, and submissions hanging off it.
type appShard struct {
	mu          sync.RWMutex
	apps        map[string]model.Application
	results     map[string][]model.AgentResult
	fraud       map[string][]model.FraudSignal
	submissions map[string][]model.CodeSubmission
	rollups     map[string]model.CandidateScore
}

// MemStore implements Store with sharded in-memory maps. Applications
// and their dependents live in shards keyed by application ID; jobs,
// candidates, and the per-job banks sit behind a single mutex since
// they are written rarely.
type MemStore struct {
	shardCount int
	shards     []*appShard

	mu         sync.RWMutex
	jobs       map[string]model.Job
	candidates map[string]model.Candidate
	problems   map[string][]model.CodingProblem
	quizzes    map[string][]model.QuizQuestion
	byJob      map[string][]string // jobID -> application IDs, insertion order
}

// NewMemStore creates an in-memory store with configuration options.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		shardCount: defaultShardCount,
		jobs:       make(map[string]model.Job),
		candidates: make(map[string]model.Candidate),
		problems:   make(map[string][]model.CodingProblem),
		quizzes:    make(map[string][]model.QuizQuestion),
		byJob:      make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.shards = make([]*appShard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &appShard{
			apps:        make(map[string]model.Application),
			results:     make(map[string][]model.AgentResult),
			fraud:       make(map[string][]model.FraudSignal),
			submissions: make(map[string][]model.CodeSubmission),
			rollups:     make(map[string]model.CandidateScore),
		}
	}
	metrics.UpdateRepositoryShardCount(s.shardCount)
	return s
}

func (s *MemStore) shard(appID string) *appShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(appID))
	return s.shards[int(h.Sum32())%s.shardCount]
}

// CreateJob stores a job configuration.
func (s *MemStore) CreateJob(_ context.Context, job model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return ErrDuplicate
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob returns a job by ID.
func (s *MemStore) GetJob(_ context.Context, id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	return job, nil
}

// CreateCandidate stores a candidate profile.
func (s *MemStore) CreateCandidate(_ context.Context, c model.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.candidates[c.ID]; exists {
		return ErrDuplicate
	}
	s.candidates[c.ID] = c
	return nil
}

// GetCandidate returns a candidate by ID.
func (s *MemStore) GetCandidate(_ context.Context, id string) (model.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.candidates[id]
	if !ok {
		return model.Candidate{}, ErrNotFound
	}
	return c, nil
}

// CreateApplication stores a new application.
func (s *MemStore) CreateApplication(_ context.Context, app model.Application) error {
	sh := s.shard(app.ID)
	sh.mu.Lock()
	if _, exists := sh.apps[app.ID]; exists {
		sh.mu.Unlock()
		return ErrDuplicate
	}
	sh.apps[app.ID] = app
	sh.mu.Unlock()

	s.mu.Lock()
	s.byJob[app.JobID] = append(s.byJob[app.JobID], app.ID)
	s.mu.Unlock()
	return nil
}

// GetApplication returns an application by ID.
func (s *MemStore) GetApplication(_ context.Context, id string) (model.Application, error) {
	sh := s.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	app, ok := sh.apps[id]
	if !ok {
		return model.Application{}, ErrNotFound
	}
	return app, nil
}

// ListApplicationsByJob returns all applications for a job in
// submission order.
func (s *MemStore) ListApplicationsByJob(ctx context.Context, jobID string) ([]model.Application, error) {
	s.mu.RLock()
	ids := append([]string(nil), s.byJob[jobID]...)
	s.mu.RUnlock()

	apps := make([]model.Application, 0, len(ids))
	for _, id := range ids {
		app, err := s.GetApplication(ctx, id)
		if err != nil {
			continue
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// MarkInStage stamps the application as being evaluated, guarded by
// the expected revision.
func (s *MemStore) MarkInStage(_ context.Context, appID string, stage lifecycle.Stage, status lifecycle.Status, revision int64) (model.Application, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	sh := s.shard(appID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	app, ok := sh.apps[appID]
	if !ok {
		return model.Application{}, ErrNotFound
	}
	if app.Revision != revision {
		return model.Application{}, ErrStaleRevision
	}
	app.Status = status
	app.CurrentStage = stage
	app.AgentStartedAt = time.Now()
	app.Revision++
	sh.apps[appID] = app
	return app, nil
}

// RecordOutcome atomically appends the result, advances the
// application, and attaches fraud signals under one shard lock.
func (s *MemStore) RecordOutcome(_ context.Context, appID string, revision int64, out Outcome) (model.Application, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	sh := s.shard(appID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	app, ok := sh.apps[appID]
	if !ok {
		return model.Application{}, ErrNotFound
	}
	if app.Revision != revision {
		return model.Application{}, ErrStaleRevision
	}
	for _, r := range sh.results[appID] {
		if r.Stage == out.Result.Stage {
			return model.Application{}, ErrStageDone
		}
	}

	sh.results[appID] = append(sh.results[appID], out.Result)
	sh.fraud[appID] = append(sh.fraud[appID], out.Fraud...)
	if out.Rollup != nil {
		sh.rollups[appID] = *out.Rollup
	}

	app.Status = out.NextStatus
	app.CurrentStage = out.NextStage
	app.Revision++
	sh.apps[appID] = app
	return app, nil
}

// ResultsByApplication returns the recorded results in insertion
// order.
func (s *MemStore) ResultsByApplication(_ context.Context, appID string) ([]model.AgentResult, error) {
	sh := s.shard(appID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return append([]model.AgentResult(nil), sh.results[appID]...), nil
}

// ResultForStage returns the latest result for a stage.
func (s *MemStore) ResultForStage(_ context.Context, appID string, stage lifecycle.Stage) (model.AgentResult, error) {
	sh := s.shard(appID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	results := sh.results[appID]
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Stage == stage {
			return results[i], nil
		}
	}
	return model.AgentResult{}, ErrNotFound
}

// FraudByApplication returns the accumulated fraud signals.
func (s *MemStore) FraudByApplication(_ context.Context, appID string) ([]model.FraudSignal, error) {
	sh := s.shard(appID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return append([]model.FraudSignal(nil), sh.fraud[appID]...), nil
}

// EnsureProblems builds the job's problem bank on first use. The lock
// spans generation, so concurrent callers cannot both generate.
func (s *MemStore) EnsureProblems(_ context.Context, jobID string, gen func() ([]model.CodingProblem, error)) ([]model.CodingProblem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bank, ok := s.problems[jobID]; ok {
		return append([]model.CodingProblem(nil), bank...), nil
	}
	bank, err := gen()
	if err != nil {
		return nil, err
	}
	s.problems[jobID] = bank
	return append([]model.CodingProblem(nil), bank...), nil
}

// EnsureQuiz builds the job's MCQ bank on first use.
func (s *MemStore) EnsureQuiz(_ context.Context, jobID string, gen func() ([]model.QuizQuestion, error)) ([]model.QuizQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bank, ok := s.quizzes[jobID]; ok {
		return append([]model.QuizQuestion(nil), bank...), nil
	}
	bank, err := gen()
	if err != nil {
		return nil, err
	}
	s.quizzes[jobID] = bank
	return append([]model.QuizQuestion(nil), bank...), nil
}

// AddSubmission appends a code submission.
func (s *MemStore) AddSubmission(_ context.Context, sub model.CodeSubmission) error {
	sh := s.shard(sub.ApplicationID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.apps[sub.ApplicationID]; !ok {
		return ErrNotFound
	}
	sh.submissions[sub.ApplicationID] = append(sh.submissions[sub.ApplicationID], sub)
	return nil
}

// SubmissionsByApplication returns submissions ordered by creation
// time.
func (s *MemStore) SubmissionsByApplication(_ context.Context, appID string) ([]model.CodeSubmission, error) {
	sh := s.shard(appID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	subs := append([]model.CodeSubmission(nil), sh.submissions[appID]...)
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.Before(subs[j].CreatedAt) })
	return subs, nil
}

// Count returns the number of applications across all shards.
func (s *MemStore) Count(_ context.Context) int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.apps)
		sh.mu.RUnlock()
	}
	metrics.UpdateRepositoryRecordsTotal(total)
	return total
}
