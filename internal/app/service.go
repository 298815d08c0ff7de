// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/sift/internal/adapters/llm"
	taskqueue "github.com/okian/sift/internal/adapters/mq/queue"
	workerpool "github.com/okian/sift/internal/adapters/mq/worker"
	"github.com/okian/sift/internal/adapters/repository"
	"github.com/okian/sift/internal/adapters/resume"
	"github.com/okian/sift/internal/agents"
	"github.com/okian/sift/internal/domain/dedupe"
	"github.com/okian/sift/internal/domain/lifecycle"
	"github.com/okian/sift/internal/domain/model"
	"github.com/okian/sift/internal/domain/verdict"
	"github.com/okian/sift/pkg/logger"
	"github.com/okian/sift/pkg/metrics"
)

// runnerAdapter bridges the stage runner to the worker pool, which
// only cares about the follow-up task. Concurrency and ordering
// refusals become skips: the task is dropped, not retried, because a
// competing invocation already owns the application.
type runnerAdapter struct {
	runner *agents.Runner
}

func (a *runnerAdapter) Run(ctx context.Context, t workerpool.Task) (*workerpool.Task, error) {
	next, _, err := a.runner.Run(ctx, t)
	if err != nil {
		if errors.Is(err, agents.ErrConcurrent) ||
			errors.Is(err, repository.ErrStageDone) ||
			errors.Is(err, lifecycle.ErrTerminal) ||
			errors.Is(err, lifecycle.ErrOutOfOrder) {
			return nil, fmt.Errorf("%w: %w", workerpool.ErrSkipped, err)
		}
		return nil, err
	}
	return next, nil
}

// Service implements the API dependencies for the screening pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	deduper   dedupe.Deduper
	taskQueue taskqueue.Queue
	gateway   llm.Client
	runner    *agents.Runner
	pool      *workerpool.Pool

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	shardCount  int
	databaseDSN string
	brokerURL   string

	gatewayBaseURL     string
	gatewayAPIKey      string
	gatewayModel       string
	gatewayTimeout     time.Duration
	gatewayTemperature float64
	stubGateway        bool

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the stage task queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithShardCount sets the shard count of the in-memory store.
func WithShardCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithDatabaseDSN selects the postgres store.
func WithDatabaseDSN(dsn string) Option {
	return func(s *Service) {
		s.databaseDSN = dsn
	}
}

// WithBrokerURL selects the AMQP task queue.
func WithBrokerURL(url string) Option {
	return func(s *Service) {
		s.brokerURL = url
	}
}

// WithGateway configures the model gateway connection.
func WithGateway(baseURL, apiKey, model string, timeout time.Duration, temperature float64) Option {
	return func(s *Service) {
		s.gatewayBaseURL = baseURL
		s.gatewayAPIKey = apiKey
		if model != "" {
			s.gatewayModel = model
		}
		if timeout > 0 {
			s.gatewayTimeout = timeout
		}
		s.gatewayTemperature = temperature
	}
}

// WithStubGateway replaces the gateway with deterministic stub replies.
func WithStubGateway(enabled bool) Option {
	return func(s *Service) {
		s.stubGateway = enabled
	}
}

// WithGatewayClient injects a prebuilt gateway client. Used by tests.
func WithGatewayClient(client llm.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.gateway = client
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:        runtime.NumCPU() * 4,
		queueSize:          10_000,
		dedupeSize:         100_000,
		shardCount:         8,
		gatewayModel:       "gpt-4o-mini",
		gatewayTimeout:     30 * time.Second,
		gatewayTemperature: 0.1,
		logger:             nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting screening service...")

	if s.databaseDSN != "" {
		store, err := repository.NewGormStore(s.databaseDSN)
		if err != nil {
			return fmt.Errorf("open postgres store: %w", err)
		}
		s.store = store
		s.logger.Info(ctx, "using postgres store")
	} else {
		s.store = repository.NewMemStore(repository.WithShardCount(s.shardCount))
		s.logger.Info(ctx, "using in-memory store")
	}

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)

	if s.brokerURL != "" {
		q, err := taskqueue.NewAMQPQueue(s.brokerURL)
		if err != nil {
			return fmt.Errorf("connect task broker: %w", err)
		}
		s.taskQueue = q
		s.logger.Info(ctx, "using amqp task queue")
	} else {
		s.taskQueue = taskqueue.NewInMemoryQueue(
			taskqueue.WithCapacity(s.queueSize),
			taskqueue.WithBufferSize(s.queueSize),
		)
	}

	if s.gateway == nil {
		if s.stubGateway {
			s.gateway = llm.NewStub()
			s.logger.Info(ctx, "using stub model gateway")
		} else {
			s.gateway = llm.New(
				llm.WithBaseURL(s.gatewayBaseURL),
				llm.WithAPIKey(s.gatewayAPIKey),
				llm.WithModel(s.gatewayModel),
				llm.WithTimeout(s.gatewayTimeout),
				llm.WithTemperature(float32(s.gatewayTemperature)),
			)
		}
	}

	s.runner = agents.NewRunner(s.store,
		agents.NewGatekeeper(s.gateway),
		agents.NewQuizmaster(s.gateway, s.store),
		agents.NewCodeJudge(s.gateway, s.store),
		agents.NewPersona(s.gateway),
		agents.NewInterviewer(s.gateway, s.store),
	)

	s.pool = workerpool.NewPool(s.workerCount, s.taskQueue, &runnerAdapter{runner: s.runner}, s.taskQueue)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "screening service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping screening service...")

	// Close the queue first so workers drain their channels and exit
	// instead of waiting out the shutdown timeout.
	if s.taskQueue != nil {
		_ = s.taskQueue.Close()
	}
	if s.pool != nil {
		s.pool.Stop()
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "screening service stopped")
}

// SeenAndRecord atomically checks if an idempotency key was seen and
// records it if not. Returns true if the key was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	return s.deduper.SeenAndRecord(ctx, id)
}

// Unrecord removes an idempotency key, allowing the request to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// SubmitApplication creates the candidate and application records and
// enqueues the screening stage.
func (s *Service) SubmitApplication(ctx context.Context, cand model.Candidate, jobID string, resumeData []byte, resumeName string) (model.Application, error) {
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return model.Application{}, fmt.Errorf("load job %s: %w", jobID, err)
	}

	if len(resumeData) > 0 {
		cand.ResumeText = resume.Text(resumeData, resumeName)
	}
	cand.ID = uuid.NewString()
	cand.CreatedAt = time.Now()
	if err := s.store.CreateCandidate(ctx, cand); err != nil {
		return model.Application{}, err
	}

	app := model.Application{
		ID:           uuid.NewString(),
		CandidateID:  cand.ID,
		JobID:        jobID,
		Status:       lifecycle.StatusApplied,
		CurrentStage: lifecycle.StageGatekeeper,
		SubmittedAt:  time.Now(),
	}
	if err := s.store.CreateApplication(ctx, app); err != nil {
		return model.Application{}, err
	}
	metrics.RecordApplicationSubmitted()

	task := model.StageTask{
		TaskID:        uuid.NewString(),
		ApplicationID: app.ID,
		JobID:         app.JobID,
		Stage:         lifecycle.StageGatekeeper,
	}
	if ok := s.taskQueue.Enqueue(ctx, task); !ok {
		s.logger.Warn(ctx, "screening enqueue hit backpressure, stage must be invoked manually",
			logger.String("applicationID", app.ID),
		)
	}

	s.logger.Info(ctx, "application submitted",
		logger.String("applicationID", app.ID),
		logger.String("candidateID", cand.ID),
		logger.String("jobID", jobID),
	)
	return app, nil
}

// RunStage executes one stage synchronously for manual invocation.
func (s *Service) RunStage(ctx context.Context, task model.StageTask) (*model.AgentResult, *model.StageTask, error) {
	if task.TaskID == "" {
		task.TaskID = uuid.NewString()
	}
	if task.JobID == "" {
		app, err := s.store.GetApplication(ctx, task.ApplicationID)
		if err != nil {
			return nil, nil, err
		}
		task.JobID = app.JobID
	}

	next, result, err := s.runner.Run(ctx, task)
	if err != nil {
		return nil, nil, err
	}
	// The follow-up stage runs through the queue like any other task.
	if next != nil {
		if ok := s.taskQueue.Enqueue(ctx, *next); !ok {
			s.logger.Warn(ctx, "follow-up enqueue hit backpressure",
				logger.String("applicationID", next.ApplicationID),
			)
		}
	}
	return result, next, nil
}

// Application returns one application record.
func (s *Service) Application(ctx context.Context, id string) (model.Application, error) {
	return s.store.GetApplication(ctx, id)
}

// Results returns every recorded stage result for an application.
func (s *Service) Results(ctx context.Context, appID string) ([]model.AgentResult, error) {
	return s.store.ResultsByApplication(ctx, appID)
}

// FraudSignals returns every fraud signal for an application.
func (s *Service) FraudSignals(ctx context.Context, appID string) ([]model.FraudSignal, error) {
	return s.store.FraudByApplication(ctx, appID)
}

// Rankings computes the verdict ranking for a job.
func (s *Service) Rankings(ctx context.Context, jobID string) ([]verdict.Ranked, verdict.Summary, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, verdict.Summary{}, err
	}
	apps, err := s.store.ListApplicationsByJob(ctx, jobID)
	if err != nil {
		return nil, verdict.Summary{}, err
	}

	in := verdict.Input{
		Job:          job,
		Applications: apps,
		Results:      make(map[string][]model.AgentResult, len(apps)),
		Fraud:        make(map[string][]model.FraudSignal, len(apps)),
	}
	for _, app := range apps {
		if in.Results[app.ID], err = s.store.ResultsByApplication(ctx, app.ID); err != nil {
			return nil, verdict.Summary{}, err
		}
		if in.Fraud[app.ID], err = s.store.FraudByApplication(ctx, app.ID); err != nil {
			return nil, verdict.Summary{}, err
		}
	}
	ranked, summary := verdict.Rank(in)
	return ranked, summary, nil
}

// CreateJob stores a new job configuration.
func (s *Service) CreateJob(ctx context.Context, job model.Job) (model.Job, error) {
	job.ID = uuid.NewString()
	job.CreatedAt = time.Now()
	if err := s.store.CreateJob(ctx, job); err != nil {
		return model.Job{}, err
	}
	return job, nil
}

// Job returns one job configuration.
func (s *Service) Job(ctx context.Context, id string) (model.Job, error) {
	return s.store.GetJob(ctx, id)
}

// Quiz returns the job's MCQ bank. The bank exists only after the
// quizmaster stage has run once for the job, so the generator here
// reports not-found instead of building anything.
func (s *Service) Quiz(ctx context.Context, jobID string) ([]model.QuizQuestion, error) {
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.store.EnsureQuiz(ctx, jobID, func() ([]model.QuizQuestion, error) {
		return nil, fmt.Errorf("quiz bank not generated yet: %w", repository.ErrNotFound)
	})
}

// Problems returns the job's coding problem bank, subject to the same
// availability rule as Quiz.
func (s *Service) Problems(ctx context.Context, jobID string) ([]model.CodingProblem, error) {
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.store.EnsureProblems(ctx, jobID, func() ([]model.CodingProblem, error) {
		return nil, fmt.Errorf("problem bank not generated yet: %w", repository.ErrNotFound)
	})
}

// AddSubmission records one coding answer for later grading.
func (s *Service) AddSubmission(ctx context.Context, sub model.CodeSubmission) (model.CodeSubmission, error) {
	if _, err := s.store.GetApplication(ctx, sub.ApplicationID); err != nil {
		return model.CodeSubmission{}, err
	}
	sub.ID = uuid.NewString()
	sub.CreatedAt = time.Now()
	if err := s.store.AddSubmission(ctx, sub); err != nil {
		return model.CodeSubmission{}, err
	}
	return sub, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.taskQueue.Len(ctx)
		totalApplications := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["totalApplications"] = totalApplications

		// Update metrics
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTotalApplications(totalApplications)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}
