package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := marshalJSON(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// marshalJSON marshals a struct to JSON
func marshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// unmarshalJSON unmarshals JSON to a struct
func unmarshalJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// getJSON performs a GET and decodes the body into out, returning the
// status code so callers can distinguish not-yet-available resources.
func (c *HTTPClient) getJSON(ctx context.Context, url string, out interface{}) (int, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	if err := unmarshalJSON(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.StatusCode, nil
}

// postJSON performs a POST and decodes the body into out when it is
// non-nil. All API errors still carry a JSON body, so decoding is
// attempted regardless of status.
func (c *HTTPClient) postJSON(ctx context.Context, url string, in, out interface{}) (int, error) {
	resp, err := c.Post(ctx, url, in)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if out != nil {
		if err := unmarshalJSON(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// createJob provisions the job the whole cohort applies to. The
// thresholds lean low so a randomly answered quiz still lets part of
// the cohort through to the later stages.
func createJob(ctx context.Context, client *HTTPClient, baseURL string) (jobDetail, error) {
	req := map[string]interface{}{
		"title":       "Senior Backend Engineer (simulated)",
		"description": "Synthetic role used by the pipeline simulator.",
		"requirements": []string{
			"Go services in production",
			"Queue-based architectures",
			"PostgreSQL",
		},
		"thresholds": map[string]float64{
			"screening":  55,
			"mcq":        30,
			"coding":     45,
			"behavioral": 55,
			"interview":  55,
		},
	}

	var job jobDetail
	status, err := client.postJSON(ctx, baseURL+"/jobs", req, &job)
	if err != nil {
		return jobDetail{}, err
	}
	if status != StatusCreated {
		return jobDetail{}, fmt.Errorf("job creation failed with status %d", status)
	}
	if job.ID == "" {
		return jobDetail{}, fmt.Errorf("job creation returned no id")
	}
	return job, nil
}

// submitApplication posts one application and returns the outcome
// class ("success", "duplicate" or "failed").
func submitApplication(ctx context.Context, client *HTTPClient, baseURL, jobID string, p *Profile) string {
	req := map[string]interface{}{
		"request_id": p.RequestID,
		"job_id":     jobID,
		"candidate": map[string]interface{}{
			"name":              p.Name,
			"email":             p.Email,
			"github_score":      p.GithubScore,
			"github_linked":     p.GithubLinked,
			"identity_verified": p.IdentityVerified,
		},
		"resume_text": p.ResumeText,
	}

	var ack ackResponse
	status, err := client.postJSON(ctx, baseURL+"/applications", req, &ack)
	if err != nil {
		return "failed"
	}
	switch status {
	case StatusAccepted:
		p.ApplicationID = ack.ApplicationID
		return "success"
	case StatusOK:
		if ack.Duplicate {
			return "duplicate"
		}
		return "failed"
	default:
		return "failed"
	}
}

// getApplication fetches the current pipeline view of one application.
func getApplication(ctx context.Context, client *HTTPClient, baseURL, appID string) (applicationDetail, error) {
	var detail applicationDetail
	if _, err := client.getJSON(ctx, baseURL+"/applications/"+appID, &detail); err != nil {
		return applicationDetail{}, err
	}
	return detail, nil
}

// getQuiz fetches the job's question bank once the quizmaster has
// generated it. A 404 means not yet available.
func getQuiz(ctx context.Context, client *HTTPClient, baseURL, jobID string) ([]quizQuestion, bool, error) {
	var bank []quizQuestion
	status, err := client.getJSON(ctx, baseURL+"/jobs/"+jobID+"/quiz", &bank)
	if status == http.StatusNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return bank, true, nil
}

// getProblems fetches the job's coding problem bank.
func getProblems(ctx context.Context, client *HTTPClient, baseURL, jobID string) ([]codingProblem, bool, error) {
	var bank []codingProblem
	status, err := client.getJSON(ctx, baseURL+"/jobs/"+jobID+"/problems", &bank)
	if status == http.StatusNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return bank, true, nil
}

// postSubmission records one coding answer.
func postSubmission(ctx context.Context, client *HTTPClient, baseURL string, p *Profile, problem codingProblem, testsTotal int) error {
	passed := int(p.TestPassRatio * float64(testsTotal))
	req := map[string]interface{}{
		"application_id": p.ApplicationID,
		"problem_id":     problem.ID,
		"code":           submissionCode(p, problem),
		"language":       "go",
		"tests_passed":   passed,
		"tests_total":    testsTotal,
		"paste_events":   p.PasteEvents,
	}
	status, err := client.postJSON(ctx, baseURL+"/submissions", req, nil)
	if err != nil {
		return err
	}
	if status != StatusCreated {
		return fmt.Errorf("submission rejected with status %d", status)
	}
	return nil
}

// errStageSettled reports that the stage already has an outcome or the
// application reached a terminal status, so the manual run is moot.
var errStageSettled = fmt.Errorf("stage already settled")

// runAgent invokes one stage manually, retrying the transient
// conflicts caused by queued stage tasks racing the manual run.
func runAgent(ctx context.Context, client *HTTPClient, baseURL, appID string, agent int, payload map[string]interface{}) (runResponse, error) {
	url := baseURL + "/agents/run"
	var last runResponse
	for attempt := 0; attempt < ConflictRetries; attempt++ {
		req := map[string]interface{}{
			"invocation_id":  fmt.Sprintf("sim_%s_%d_%d", appID, agent, attempt),
			"application_id": appID,
			"agent":          agent,
			"payload":        payload,
		}

		var out runResponse
		status, err := client.postJSON(ctx, url, req, &out)
		if err != nil {
			return runResponse{}, err
		}
		if status != StatusConflict {
			if !out.Success && out.Error != "" {
				return out, fmt.Errorf("agent run failed: %s", out.Error)
			}
			return out, nil
		}

		switch {
		case strings.HasPrefix(out.Error, "stage_done"), strings.HasPrefix(out.Error, "terminal"):
			return out, errStageSettled
		}

		// stale_revision and out_of_order clear once the in-flight
		// queued task finishes.
		last = out
		select {
		case <-ctx.Done():
			return runResponse{}, ctx.Err()
		case <-time.After(ConflictBackoff):
		}
	}
	return last, fmt.Errorf("agent %d for %s still conflicted after %d attempts: %s",
		agent, appID, ConflictRetries, last.Error)
}

// getRankings fetches the final ranking for the job.
func getRankings(ctx context.Context, client *HTTPClient, baseURL, jobID string) (rankingPayload, error) {
	var out rankingPayload
	if _, err := client.getJSON(ctx, baseURL+"/rankings/"+jobID, &out); err != nil {
		return rankingPayload{}, err
	}
	return out, nil
}
