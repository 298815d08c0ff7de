package simulate

import "time"

// Config holds configuration for the pipeline simulation.
type Config struct {
	BaseURL       string        // Base URL of the service
	NumCandidates int           // Number of candidate profiles to generate
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	OutputFile    string        // Output file for generated profiles
	LogFile       string        // Log file for simulation output
	Verbose       bool          // Enable verbose logging
}

// Archetype labels the candidate quality tier a profile is drawn from.
type Archetype string

const (
	ArchetypeStrong     Archetype = "strong"
	ArchetypeAverage    Archetype = "average"
	ArchetypeWeak       Archetype = "weak"
	ArchetypeSuspicious Archetype = "suspicious"
)

// Profile is one generated candidate plus the behaviour knobs that
// drive its journey through the pipeline.
type Profile struct {
	RequestID        string    `json:"request_id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	GithubScore      float64   `json:"github_score"`
	GithubLinked     bool      `json:"github_linked"`
	IdentityVerified bool      `json:"identity_verified"`
	ResumeText       string    `json:"resume_text"`
	Archetype        Archetype `json:"archetype"`

	// TestPassRatio is the fraction of tests this candidate's coding
	// submissions pass. PasteEvents is recorded per submission.
	TestPassRatio float64 `json:"test_pass_ratio"`
	PasteEvents   int     `json:"paste_events"`

	// Filled in during the run.
	ApplicationID string `json:"application_id,omitempty"`
	FinalStatus   string `json:"final_status,omitempty"`
}

// ackResponse mirrors the POST /applications reply.
type ackResponse struct {
	Status        string `json:"status"`
	Duplicate     bool   `json:"duplicate"`
	ApplicationID string `json:"application_id"`
	CandidateID   string `json:"candidate_id"`
}

// applicationDetail mirrors GET /applications/{id}.
type applicationDetail struct {
	ID           string        `json:"id"`
	CandidateID  string        `json:"candidate_id"`
	JobID        string        `json:"job_id"`
	Status       string        `json:"status"`
	CurrentStage int           `json:"current_stage"`
	Results      []agentResult `json:"results"`
}

type agentResult struct {
	Stage     int     `json:"stage"`
	AgentName string  `json:"agent_name"`
	Score     float64 `json:"score"`
	Decision  string  `json:"decision"`
}

// runResponse mirrors POST /agents/run.
type runResponse struct {
	Success   bool         `json:"success"`
	Duplicate bool         `json:"duplicate"`
	Result    *agentResult `json:"result"`
	NextAgent int          `json:"next_agent"`
	Error     string       `json:"error"`
}

// jobDetail mirrors POST /jobs and GET /jobs/{id}.
type jobDetail struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// quizQuestion mirrors GET /jobs/{id}/quiz entries.
type quizQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// codingProblem mirrors GET /jobs/{id}/problems entries.
type codingProblem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// rankedEntry mirrors one GET /rankings/{job_id} row.
type rankedEntry struct {
	Rank          int     `json:"rank"`
	ApplicationID string  `json:"application_id"`
	CandidateID   string  `json:"candidate_id"`
	Status        string  `json:"status"`
	FinalScore    float64 `json:"final_score"`
	FraudPenalty  float64 `json:"fraud_penalty"`
	FraudRisk     string  `json:"fraud_risk"`
}

// rankingPayload mirrors the full GET /rankings/{job_id} body.
type rankingPayload struct {
	Ranking []rankedEntry `json:"ranking"`
	Summary struct {
		JobID             string         `json:"job_id"`
		TotalApplications int            `json:"total_applications"`
		Shortlisted       int            `json:"shortlisted"`
		RejectedByStage   map[string]int `json:"rejected_by_stage"`
		AverageFinalScore float64        `json:"average_final_score"`
		FraudIncidents    int            `json:"fraud_incidents"`
	} `json:"summary"`
}

// Stats holds simulation statistics.
type Stats struct {
	ProfilesGenerated int
	Submitted         int
	Accepted          int
	Duplicate         int
	Failed            int
	Shortlisted       int
	Rejected          int
	Stalled           int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
