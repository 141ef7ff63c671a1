package services

import "hygiene-log-backend/internal/models"

// ComputeStatistics aggregates records whose event timestamp falls inside
// the inclusive window [start, end]. Every timing 1..5 and every action
// appears in the result maps, with zero for categories without matches.
// The function is pure: it never fails and never mutates its input, so it
// is safe to call on a snapshot while the underlying set keeps changing.
func ComputeStatistics(records []*models.HygieneRecord, start, end int64) models.Stats {
	stats := models.Stats{
		ByTiming: make(map[models.Timing]int, 5),
		ByAction: make(map[models.Action]int, len(models.Actions)),
	}
	for t := models.TimingBeforePatientContact; t <= models.TimingAfterSurroundings; t++ {
		stats.ByTiming[t] = 0
	}
	for _, a := range models.Actions {
		stats.ByAction[a] = 0
	}

	for _, rec := range records {
		if rec.Timestamp < start || rec.Timestamp > end {
			continue
		}
		stats.Total++
		if rec.Timing.Valid() {
			stats.ByTiming[rec.Timing]++
		}
		if rec.Action.Valid() {
			stats.ByAction[rec.Action]++
		}
	}
	return stats
}

// CompletionRate derives the share of included records where hygiene was
// actually performed. An empty window yields 0, never a division by zero.
func CompletionRate(stats models.Stats) float64 {
	if stats.Total == 0 {
		return 0
	}
	done := stats.ByAction[models.ActionSanitizer] + stats.ByAction[models.ActionWash]
	return float64(done) / float64(stats.Total)
}
