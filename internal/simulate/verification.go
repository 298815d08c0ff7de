package simulate

import (
	"context"
	"fmt"
	"log"
)

// verifyResults checks the final ranking against the journeys the
// simulator drove.
func verifyResults(ctx context.Context, config *Config, profiles []*Profile, ranking rankingPayload, stats *Stats) error {
	log.Println("🔍 Verifying results...")

	if len(ranking.Ranking) == 0 {
		return fmt.Errorf("no ranking entries to verify")
	}

	if err := verifyRankingOrder(ranking.Ranking); err != nil {
		return fmt.Errorf("ranking order check failed: %w", err)
	}
	log.Println("✅ Ranking order verified")

	if err := verifySummary(ranking, stats); err != nil {
		log.Printf("⚠️  Summary consistency warning: %v", err)
	} else {
		log.Println("✅ Summary consistency verified")
	}

	verifyFraudHandling(profiles, ranking, config.Verbose)

	displayTopCandidates(ranking, config.Verbose)

	log.Println("✅ Result verification completed")
	return nil
}

// verifyRankingOrder checks that ranks ascend with non-increasing
// final scores.
func verifyRankingOrder(entries []rankedEntry) error {
	for i := 1; i < len(entries); i++ {
		if entries[i].Rank != entries[i-1].Rank+1 {
			return fmt.Errorf("ranks not contiguous: entry %d has rank %d after rank %d",
				i, entries[i].Rank, entries[i-1].Rank)
		}
		if entries[i].FinalScore > entries[i-1].FinalScore {
			return fmt.Errorf("ranking not sorted: entry %d has higher score than entry %d",
				i, i-1)
		}
	}
	return nil
}

// verifySummary compares the job-level rollup with the journeys the
// simulator observed.
func verifySummary(ranking rankingPayload, stats *Stats) error {
	s := ranking.Summary

	if s.TotalApplications != stats.Accepted {
		return fmt.Errorf("summary counts %d applications, simulator submitted %d",
			s.TotalApplications, stats.Accepted)
	}

	// Stalled journeys are parked, not shortlisted, so the summary
	// shortlist can never exceed the simulator's count.
	if s.Shortlisted > stats.Shortlisted {
		return fmt.Errorf("summary shortlists %d, simulator observed %d",
			s.Shortlisted, stats.Shortlisted)
	}

	return nil
}

// verifyFraudHandling checks that suspicious candidates picked up
// fraud consequences.
func verifyFraudHandling(profiles []*Profile, ranking rankingPayload, verbose bool) {
	byApplication := make(map[string]rankedEntry, len(ranking.Ranking))
	for _, entry := range ranking.Ranking {
		byApplication[entry.ApplicationID] = entry
	}

	flagged, penalized := 0, 0
	for _, p := range profiles {
		if p.Archetype != ArchetypeSuspicious || p.ApplicationID == "" {
			continue
		}
		flagged++

		entry, ok := byApplication[p.ApplicationID]
		if !ok {
			continue
		}
		if !p.IdentityVerified && entry.Status != statusRejected {
			log.Printf("⚠️  Unverified candidate %s not rejected (status %s)", p.ApplicationID, entry.Status)
			continue
		}
		if entry.FraudPenalty > 0 || entry.Status == statusRejected {
			penalized++
			if verbose {
				log.Printf("   fraud consequence for %s: status=%s penalty=%.1f risk=%s",
					p.ApplicationID, entry.Status, entry.FraudPenalty, entry.FraudRisk)
			}
		}
	}

	if flagged > 0 {
		log.Printf("✅ Fraud handling: %d/%d suspicious candidates penalized or rejected", penalized, flagged)
	}
}

// displayTopCandidates shows the top of the final ranking.
func displayTopCandidates(ranking rankingPayload, verbose bool) {
	topN := 10
	if len(ranking.Ranking) < topN {
		topN = len(ranking.Ranking)
	}

	log.Printf("🏆 Top %d candidates:", topN)
	for i := 0; i < topN; i++ {
		entry := ranking.Ranking[i]
		log.Printf("   %d. %s - Score: %.3f (%s, fraud risk %s)",
			entry.Rank, entry.CandidateID, entry.FinalScore, entry.Status, entry.FraudRisk)
	}

	s := ranking.Summary
	log.Printf("📊 Job summary: %d applications, %d shortlisted, %d fraud incidents, average score %.3f",
		s.TotalApplications, s.Shortlisted, s.FraudIncidents, s.AverageFinalScore)

	if verbose {
		avg := calculateAverageScore(ranking.Ranking)
		maxScore := ranking.Ranking[0].FinalScore
		minScore := ranking.Ranking[len(ranking.Ranking)-1].FinalScore

		log.Printf(`📊 Score statistics:
   Average: %.3f
   Maximum: %.3f
   Minimum: %.3f
`, avg, maxScore, minScore)
	}
}

// calculateAverageScore calculates the average final score.
func calculateAverageScore(entries []rankedEntry) float64 {
	if len(entries) == 0 {
		return 0
	}

	sum := 0.0
	for _, entry := range entries {
		sum += entry.FinalScore
	}

	return sum / float64(len(entries))
}
