package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/sift/internal/domain/lifecycle"
	"github.com/okian/sift/internal/domain/model"
	"github.com/okian/sift/pkg/metrics"
)

// Row types. JSON-shaped columns use gorm datatypes so sub-score maps
// and raw payloads land as jsonb instead of flattened columns.

type jobRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	Title        string `gorm:"size:255"`
	Description  string `gorm:"type:text"`
	Requirements datatypes.JSONSlice[string]
	Thresholds   datatypes.JSONType[map[string]float64]
	ScoreWeights datatypes.JSONType[map[string]float64]
	CreatedAt    time.Time
}

func (jobRow) TableName() string { return "jobs" }

type candidateRow struct {
	ID               string `gorm:"primaryKey;size:36"`
	Name             string `gorm:"size:255"`
	Email            string `gorm:"size:255"`
	ResumeText       string `gorm:"type:text"`
	GithubScore      float64
	GithubLinked     bool
	IdentityVerified bool
	CreatedAt        time.Time
}

func (candidateRow) TableName() string { return "candidate_profiles" }

type applicationRow struct {
	ID             string `gorm:"primaryKey;size:36"`
	CandidateID    string `gorm:"size:36;index"`
	JobID          string `gorm:"size:36;index"`
	Status         string `gorm:"size:32"`
	CurrentStage   int
	Revision       int64
	AgentStartedAt time.Time
	SubmittedAt    time.Time
}

func (applicationRow) TableName() string { return "applications" }

type agentResultRow struct {
	ID            string `gorm:"primaryKey;size:36"`
	ApplicationID string `gorm:"size:36;index"`
	Stage         int
	AgentName     string `gorm:"size:32"`
	Score         float64
	SubScores     datatypes.JSONType[map[string]float64]
	Decision      string `gorm:"size:16"`
	Reasoning     string `gorm:"type:text"`
	Raw           datatypes.JSONMap
	CreatedAt     time.Time
}

func (agentResultRow) TableName() string { return "agent_results" }

type fraudRow struct {
	ID            string `gorm:"primaryKey;size:36"`
	ApplicationID string `gorm:"size:36;index"`
	Stage         int
	Kind          string `gorm:"size:64"`
	Severity      string `gorm:"size:16"`
	Evidence      datatypes.JSONMap
	CreatedAt     time.Time
}

func (fraudRow) TableName() string { return "fraud_logs" }

type candidateScoreRow struct {
	ApplicationID  string `gorm:"primaryKey;size:36"`
	Technical      float64
	Communication  float64
	ProblemSolving float64
	Culture        float64
	UpdatedAt      time.Time
}

func (candidateScoreRow) TableName() string { return "candidate_scores" }

type codingProblemRow struct {
	ID         string `gorm:"primaryKey;size:36"`
	JobID      string `gorm:"size:36;index:idx_problem_job_pos,unique"`
	Position   int    `gorm:"index:idx_problem_job_pos,unique"`
	Title      string `gorm:"size:255"`
	Prompt     string `gorm:"type:text"`
	Difficulty string `gorm:"size:16"`
}

func (codingProblemRow) TableName() string { return "coding_problems" }

type codeSubmissionRow struct {
	ID            string `gorm:"primaryKey;size:36"`
	ApplicationID string `gorm:"size:36;index"`
	ProblemID     string `gorm:"size:36"`
	Code          string `gorm:"type:text"`
	Language      string `gorm:"size:32"`
	TestsPassed   int
	TestsTotal    int
	PasteEvents   int
	CreatedAt     time.Time
}

func (codeSubmissionRow) TableName() string { return "code_submissions" }

type quizQuestionRow struct {
	ID       string `gorm:"primaryKey;size:36"`
	JobID    string `gorm:"size:36;index:idx_quiz_job_pos,unique"`
	Position int    `gorm:"index:idx_quiz_job_pos,unique"`
	Prompt   string `gorm:"type:text"`
	Options  datatypes.JSONSlice[string]
	Answer   int
}

func (quizQuestionRow) TableName() string { return "quiz_questions" }

// GormStore implements Store on Postgres through gorm. Multi-row
// writes run inside one transaction, and application updates carry a
// revision guard in the WHERE clause so a stale writer simply affects
// zero rows.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the database and migrates the schema.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(
		&jobRow{}, &candidateRow{}, &applicationRow{}, &agentResultRow{},
		&fraudRow{}, &candidateScoreRow{}, &codingProblemRow{},
		&codeSubmissionRow{}, &quizQuestionRow{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func toJobRow(j model.Job) jobRow {
	return jobRow{
		ID:           j.ID,
		Title:        j.Title,
		Description:  j.Description,
		Requirements: datatypes.NewJSONSlice(j.Requirements),
		Thresholds:   datatypes.NewJSONType(j.Thresholds),
		ScoreWeights: datatypes.NewJSONType(j.ScoreWeights),
		CreatedAt:    j.CreatedAt,
	}
}

func fromJobRow(r jobRow) model.Job {
	return model.Job{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Requirements: r.Requirements,
		Thresholds:   r.Thresholds.Data(),
		ScoreWeights: r.ScoreWeights.Data(),
		CreatedAt:    r.CreatedAt,
	}
}

func fromApplicationRow(r applicationRow) model.Application {
	return model.Application{
		ID:             r.ID,
		CandidateID:    r.CandidateID,
		JobID:          r.JobID,
		Status:         lifecycle.Status(r.Status),
		CurrentStage:   lifecycle.Stage(r.CurrentStage),
		Revision:       r.Revision,
		AgentStartedAt: r.AgentStartedAt,
		SubmittedAt:    r.SubmittedAt,
	}
}

func toResultRow(r model.AgentResult) agentResultRow {
	return agentResultRow{
		ID:            r.ID,
		ApplicationID: r.ApplicationID,
		Stage:         int(r.Stage),
		AgentName:     r.AgentName,
		Score:         r.Score,
		SubScores:     datatypes.NewJSONType(r.SubScores),
		Decision:      string(r.Decision),
		Reasoning:     r.Reasoning,
		Raw:           datatypes.JSONMap(r.Raw),
		CreatedAt:     r.CreatedAt,
	}
}

func fromResultRow(r agentResultRow) model.AgentResult {
	return model.AgentResult{
		ID:            r.ID,
		ApplicationID: r.ApplicationID,
		Stage:         lifecycle.Stage(r.Stage),
		AgentName:     r.AgentName,
		Score:         r.Score,
		SubScores:     r.SubScores.Data(),
		Decision:      lifecycle.Decision(r.Decision),
		Reasoning:     r.Reasoning,
		Raw:           map[string]any(r.Raw),
		CreatedAt:     r.CreatedAt,
	}
}

func toFraudRow(f model.FraudSignal) fraudRow {
	return fraudRow{
		ID:            f.ID,
		ApplicationID: f.ApplicationID,
		Stage:         int(f.Stage),
		Kind:          f.Kind,
		Severity:      string(f.Severity),
		Evidence:      datatypes.JSONMap(f.Evidence),
		CreatedAt:     f.CreatedAt,
	}
}

func fromFraudRow(f fraudRow) model.FraudSignal {
	return model.FraudSignal{
		ID:            f.ID,
		ApplicationID: f.ApplicationID,
		Stage:         lifecycle.Stage(f.Stage),
		Kind:          f.Kind,
		Severity:      model.Severity(f.Severity),
		Evidence:      map[string]any(f.Evidence),
		CreatedAt:     f.CreatedAt,
	}
}

// CreateJob stores a job configuration.
func (s *GormStore) CreateJob(ctx context.Context, job model.Job) error {
	row := toJobRow(job)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetJob returns a job by ID.
func (s *GormStore) GetJob(ctx context.Context, id string) (model.Job, error) {
	var row jobRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Job{}, ErrNotFound
		}
		return model.Job{}, fmt.Errorf("get job: %w", err)
	}
	return fromJobRow(row), nil
}

// CreateCandidate stores a candidate profile.
func (s *GormStore) CreateCandidate(ctx context.Context, c model.Candidate) error {
	row := candidateRow{
		ID:               c.ID,
		Name:             c.Name,
		Email:            c.Email,
		ResumeText:       c.ResumeText,
		GithubScore:      c.GithubScore,
		GithubLinked:     c.GithubLinked,
		IdentityVerified: c.IdentityVerified,
		CreatedAt:        c.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create candidate: %w", err)
	}
	return nil
}

// GetCandidate returns a candidate by ID.
func (s *GormStore) GetCandidate(ctx context.Context, id string) (model.Candidate, error) {
	var row candidateRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Candidate{}, ErrNotFound
		}
		return model.Candidate{}, fmt.Errorf("get candidate: %w", err)
	}
	return model.Candidate{
		ID:               row.ID,
		Name:             row.Name,
		Email:            row.Email,
		ResumeText:       row.ResumeText,
		GithubScore:      row.GithubScore,
		GithubLinked:     row.GithubLinked,
		IdentityVerified: row.IdentityVerified,
		CreatedAt:        row.CreatedAt,
	}, nil
}

// CreateApplication stores a new application.
func (s *GormStore) CreateApplication(ctx context.Context, app model.Application) error {
	row := applicationRow{
		ID:             app.ID,
		CandidateID:    app.CandidateID,
		JobID:          app.JobID,
		Status:         string(app.Status),
		CurrentStage:   int(app.CurrentStage),
		Revision:       app.Revision,
		AgentStartedAt: app.AgentStartedAt,
		SubmittedAt:    app.SubmittedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// GetApplication returns an application by ID.
func (s *GormStore) GetApplication(ctx context.Context, id string) (model.Application, error) {
	var row applicationRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Application{}, ErrNotFound
		}
		return model.Application{}, fmt.Errorf("get application: %w", err)
	}
	return fromApplicationRow(row), nil
}

// ListApplicationsByJob returns all applications for a job in
// submission order.
func (s *GormStore) ListApplicationsByJob(ctx context.Context, jobID string) ([]model.Application, error) {
	var rows []applicationRow
	if err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("submitted_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	apps := make([]model.Application, len(rows))
	for i, r := range rows {
		apps[i] = fromApplicationRow(r)
	}
	return apps, nil
}

// guardedUpdate applies updates to an application when the revision
// matches, bumping it by one. Zero affected rows means a concurrent
// writer advanced the row (or it does not exist).
func (s *GormStore) guardedUpdate(tx *gorm.DB, appID string, revision int64, updates map[string]any) error {
	updates["revision"] = revision + 1
	res := tx.Model(&applicationRow{}).
		Where("id = ? AND revision = ?", appID, revision).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update application: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		tx.Model(&applicationRow{}).Where("id = ?", appID).Count(&count)
		if count == 0 {
			return ErrNotFound
		}
		return ErrStaleRevision
	}
	return nil
}

// MarkInStage stamps the application as being evaluated, guarded by
// the expected revision.
func (s *GormStore) MarkInStage(ctx context.Context, appID string, stage lifecycle.Stage, status lifecycle.Status, revision int64) (model.Application, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	err := s.guardedUpdate(s.db.WithContext(ctx), appID, revision, map[string]any{
		"status":           string(status),
		"current_stage":    int(stage),
		"agent_started_at": time.Now(),
	})
	if err != nil {
		return model.Application{}, err
	}
	return s.GetApplication(ctx, appID)
}

// RecordOutcome commits result, status advance, fraud signals, and
// rollup in one transaction.
func (s *GormStore) RecordOutcome(ctx context.Context, appID string, revision int64, out Outcome) (model.Application, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&agentResultRow{}).
			Where("application_id = ? AND stage = ?", appID, int(out.Result.Stage)).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("check existing result: %w", err)
		}
		if existing > 0 {
			return ErrStageDone
		}

		if err := s.guardedUpdate(tx, appID, revision, map[string]any{
			"status":        string(out.NextStatus),
			"current_stage": int(out.NextStage),
		}); err != nil {
			return err
		}

		row := toResultRow(out.Result)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create result: %w", err)
		}
		for _, f := range out.Fraud {
			fr := toFraudRow(f)
			if err := tx.Create(&fr).Error; err != nil {
				return fmt.Errorf("create fraud log: %w", err)
			}
		}
		if out.Rollup != nil {
			sr := candidateScoreRow{
				ApplicationID:  out.Rollup.ApplicationID,
				Technical:      out.Rollup.Technical,
				Communication:  out.Rollup.Communication,
				ProblemSolving: out.Rollup.ProblemSolving,
				Culture:        out.Rollup.Culture,
				UpdatedAt:      time.Now(),
			}
			if err := tx.Save(&sr).Error; err != nil {
				return fmt.Errorf("save rollup: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return model.Application{}, err
	}
	return s.GetApplication(ctx, appID)
}

// ResultsByApplication returns the recorded results ordered by
// creation time.
func (s *GormStore) ResultsByApplication(ctx context.Context, appID string) ([]model.AgentResult, error) {
	var rows []agentResultRow
	if err := s.db.WithContext(ctx).Where("application_id = ?", appID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	results := make([]model.AgentResult, len(rows))
	for i, r := range rows {
		results[i] = fromResultRow(r)
	}
	return results, nil
}

// ResultForStage returns the latest result for a stage.
func (s *GormStore) ResultForStage(ctx context.Context, appID string, stage lifecycle.Stage) (model.AgentResult, error) {
	var row agentResultRow
	err := s.db.WithContext(ctx).
		Where("application_id = ? AND stage = ?", appID, int(stage)).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.AgentResult{}, ErrNotFound
		}
		return model.AgentResult{}, fmt.Errorf("get result: %w", err)
	}
	return fromResultRow(row), nil
}

// FraudByApplication returns the accumulated fraud signals.
func (s *GormStore) FraudByApplication(ctx context.Context, appID string) ([]model.FraudSignal, error) {
	var rows []fraudRow
	if err := s.db.WithContext(ctx).Where("application_id = ?", appID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list fraud: %w", err)
	}
	signals := make([]model.FraudSignal, len(rows))
	for i, r := range rows {
		signals[i] = fromFraudRow(r)
	}
	return signals, nil
}

// EnsureProblems builds the job's problem bank on first use. The
// unique (job_id, position) index collapses concurrent generation.
func (s *GormStore) EnsureProblems(ctx context.Context, jobID string, gen func() ([]model.CodingProblem, error)) ([]model.CodingProblem, error) {
	load := func() ([]model.CodingProblem, error) {
		var rows []codingProblemRow
		if err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("position").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("list problems: %w", err)
		}
		bank := make([]model.CodingProblem, len(rows))
		for i, r := range rows {
			bank[i] = model.CodingProblem{
				ID:         r.ID,
				JobID:      r.JobID,
				Title:      r.Title,
				Prompt:     r.Prompt,
				Difficulty: r.Difficulty,
			}
		}
		return bank, nil
	}

	bank, err := load()
	if err != nil || len(bank) > 0 {
		return bank, err
	}
	generated, err := gen()
	if err != nil {
		return nil, err
	}
	for i, p := range generated {
		row := codingProblemRow{
			ID:         p.ID,
			JobID:      jobID,
			Position:   i,
			Title:      p.Title,
			Prompt:     p.Prompt,
			Difficulty: p.Difficulty,
		}
		// A concurrent generator that won the index race is fine; we
		// reload below either way.
		_ = s.db.WithContext(ctx).Create(&row).Error
	}
	return load()
}

// EnsureQuiz builds the job's MCQ bank on first use.
func (s *GormStore) EnsureQuiz(ctx context.Context, jobID string, gen func() ([]model.QuizQuestion, error)) ([]model.QuizQuestion, error) {
	load := func() ([]model.QuizQuestion, error) {
		var rows []quizQuestionRow
		if err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("position").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("list quiz: %w", err)
		}
		bank := make([]model.QuizQuestion, len(rows))
		for i, r := range rows {
			bank[i] = model.QuizQuestion{
				ID:      r.ID,
				JobID:   r.JobID,
				Prompt:  r.Prompt,
				Options: r.Options,
				Answer:  r.Answer,
			}
		}
		return bank, nil
	}

	bank, err := load()
	if err != nil || len(bank) > 0 {
		return bank, err
	}
	generated, err := gen()
	if err != nil {
		return nil, err
	}
	for i, q := range generated {
		row := quizQuestionRow{
			ID:       q.ID,
			JobID:    jobID,
			Position: i,
			Prompt:   q.Prompt,
			Options:  datatypes.NewJSONSlice(q.Options),
			Answer:   q.Answer,
		}
		_ = s.db.WithContext(ctx).Create(&row).Error
	}
	return load()
}

// AddSubmission appends a code submission.
func (s *GormStore) AddSubmission(ctx context.Context, sub model.CodeSubmission) error {
	row := codeSubmissionRow{
		ID:            sub.ID,
		ApplicationID: sub.ApplicationID,
		ProblemID:     sub.ProblemID,
		Code:          sub.Code,
		Language:      sub.Language,
		TestsPassed:   sub.TestsPassed,
		TestsTotal:    sub.TestsTotal,
		PasteEvents:   sub.PasteEvents,
		CreatedAt:     sub.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// SubmissionsByApplication returns submissions ordered by creation
// time.
func (s *GormStore) SubmissionsByApplication(ctx context.Context, appID string) ([]model.CodeSubmission, error) {
	var rows []codeSubmissionRow
	if err := s.db.WithContext(ctx).Where("application_id = ?", appID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	subs := make([]model.CodeSubmission, len(rows))
	for i, r := range rows {
		subs[i] = model.CodeSubmission{
			ID:            r.ID,
			ApplicationID: r.ApplicationID,
			ProblemID:     r.ProblemID,
			Code:          r.Code,
			Language:      r.Language,
			TestsPassed:   r.TestsPassed,
			TestsTotal:    r.TestsTotal,
			PasteEvents:   r.PasteEvents,
			CreatedAt:     r.CreatedAt,
		}
	}
	return subs, nil
}

// Count returns the number of applications tracked.
func (s *GormStore) Count(ctx context.Context) int {
	var count int64
	if err := s.db.WithContext(ctx).Model(&applicationRow{}).Count(&count).Error; err != nil {
		return 0
	}
	return int(count)
}
