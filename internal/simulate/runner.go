package simulate

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/sift/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete pipeline simulation.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting sift pipeline simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("candidates", config.NumCandidates),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.String("logFile", config.LogFile),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	client := newHTTPClient(config.Timeout)

	// Step 2: Create the job the cohort applies to
	job, err := createJob(ctx, client, config.BaseURL)
	if err != nil {
		return fmt.Errorf("job creation failed: %w", err)
	}
	logger.Get().Info(ctx, "created simulation job",
		logger.String("jobID", job.ID), logger.String("title", job.Title))

	// Step 3: Generate candidate profiles
	profiles, err := generateProfiles(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("profile generation failed: %w", err)
	}

	// Step 4: Drive every candidate through the pipeline concurrently
	if err := driveCohort(ctx, config, client, job.ID, profiles, stats); err != nil {
		return fmt.Errorf("cohort run failed: %w", err)
	}

	// Step 5: Fetch the final ranking
	ranking, err := getRankings(ctx, client, config.BaseURL, job.ID)
	if err != nil {
		return fmt.Errorf("ranking retrieval failed: %w", err)
	}

	// Step 6: Verify results
	if err := verifyResults(ctx, config, profiles, ranking, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 7: Save profiles to file
	if err := saveProfilesToFile(ctx, config, profiles); err != nil {
		logger.Get().Warn(ctx, "failed to save profiles to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// driveCohort fans the profiles out over a worker pool, each worker
// playing full candidate journeys.
func driveCohort(ctx context.Context, config *Config, client *HTTPClient, jobID string, profiles []*Profile, stats *Stats) error {
	log.Printf("📤 Driving %d candidates through the pipeline with %d workers...", len(profiles), config.Workers)

	var (
		submitted   int64
		accepted    int64
		duplicate   int64
		failed      int64
		shortlisted int64
		rejected    int64
		stalled     int64
	)

	// Progress reporting
	var lastReport time.Time
	reportInterval := 1 * time.Second

	profileChan := make(chan *Profile, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for p := range profileChan {
				select {
				case <-ctx.Done():
					return
				default:
					submitResult, outcome := driveProfile(ctx, client, config, jobID, p)

					atomic.AddInt64(&submitted, 1)
					switch submitResult {
					case "success":
						atomic.AddInt64(&accepted, 1)
					case "duplicate":
						atomic.AddInt64(&duplicate, 1)
					default:
						atomic.AddInt64(&failed, 1)
					}
					switch outcome {
					case outcomeShortlisted:
						atomic.AddInt64(&shortlisted, 1)
					case outcomeRejected:
						atomic.AddInt64(&rejected, 1)
					case outcomeStalled:
						atomic.AddInt64(&stalled, 1)
					}

					if time.Since(lastReport) >= reportInterval {
						lastReport = time.Now()
						total := atomic.LoadInt64(&submitted)
						short := atomic.LoadInt64(&shortlisted)
						rej := atomic.LoadInt64(&rejected)
						stall := atomic.LoadInt64(&stalled)

						if config.Verbose {
							log.Printf("📊 Progress: %d/%d journeys (shortlisted: %d, rejected: %d, stalled: %d)",
								total, len(profiles), short, rej, stall)
						} else {
							fmt.Printf("\r📤 Journeys: %d/%d (shortlisted: %d, rejected: %d, stalled: %d)",
								total, len(profiles), short, rej, stall)
						}
					}
				}
			}
		}(i)
	}

	// Send profiles to workers
	go func() {
		defer close(profileChan)
		for _, p := range profiles {
			select {
			case <-ctx.Done():
				return
			case profileChan <- p:
			}
		}
	}()

	wg.Wait()

	if !config.Verbose {
		fmt.Println() // New line after progress indicator
	}

	stats.Submitted = int(atomic.LoadInt64(&submitted))
	stats.Accepted = int(atomic.LoadInt64(&accepted))
	stats.Duplicate = int(atomic.LoadInt64(&duplicate))
	stats.Failed = int(atomic.LoadInt64(&failed))
	stats.Shortlisted = int(atomic.LoadInt64(&shortlisted))
	stats.Rejected = int(atomic.LoadInt64(&rejected))
	stats.Stalled = int(atomic.LoadInt64(&stalled))

	log.Printf(`✅ Cohort run completed:
   Accepted: %d
   Duplicate: %d
   Failed: %d
   Shortlisted: %d
   Rejected: %d
   Stalled: %d
`, stats.Accepted, stats.Duplicate, stats.Failed, stats.Shortlisted, stats.Rejected, stats.Stalled)

	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Accept any 200 response as healthy (the service returns Prometheus metrics)
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveProfilesToFile saves the generated profiles, including their
// final statuses, to a JSON file.
func saveProfilesToFile(ctx context.Context, config *Config, profiles []*Profile) error {
	if len(profiles) == 0 {
		return fmt.Errorf("no profiles to save")
	}

	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "generated_profiles_" + timestamp + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	if _, err := file.WriteString("[\n"); err != nil {
		return fmt.Errorf("failed to write opening bracket: %w", err)
	}

	for i, p := range profiles {
		jsonData, err := marshalJSON(p)
		if err != nil {
			return fmt.Errorf("failed to marshal profile %d: %w", i, err)
		}

		if _, err := file.Write(jsonData); err != nil {
			return fmt.Errorf("failed to write profile %d: %w", i, err)
		}

		if i < len(profiles)-1 {
			if _, err := file.WriteString(","); err != nil {
				return fmt.Errorf("failed to write comma: %w", err)
			}
		}
		_, _ = file.WriteString("\n")
	}

	if _, err := file.WriteString("]\n"); err != nil {
		return fmt.Errorf("failed to write closing bracket: %w", err)
	}

	logger.Get().Info(ctx, "profiles saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var acceptRate, journeysPerSecond float64

	if stats.Submitted > 0 {
		acceptRate = float64(stats.Accepted) / float64(stats.Submitted) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		journeysPerSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("profilesGenerated", stats.ProfilesGenerated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
		logger.Int("shortlisted", stats.Shortlisted),
		logger.Int("rejected", stats.Rejected),
		logger.Int("stalled", stats.Stalled),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("journeysPerSecond", journeysPerSecond))
}
