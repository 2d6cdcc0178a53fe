package models

import (
	"time"

	"github.com/jon4hz/reqtag/internal/database"
	"github.com/mergestat/timediff"
)

// Section is the API view of a section result.
type Section struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Kind      string `json:"kind"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Errored   int    `json:"errored"`
	Mutations int    `json:"mutations"`
	Partial   bool   `json:"partial"`
	Error     string `json:"error,omitempty"`
}

// Run is the API view of a run.
type Run struct {
	RunID      string     `json:"runId"`
	Trigger    string     `json:"trigger"`
	Status     string     `json:"status"`
	DryRun     bool       `json:"dryRun"`
	StartedAt  time.Time  `json:"startedAt"`
	StartedAgo string     `json:"startedAgo"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	DurationMs int64      `json:"durationMs"`
	Processed  int        `json:"processed"`
	Skipped    int        `json:"skipped"`
	Errored    int        `json:"errored"`
	Mutations  int        `json:"mutations"`
	Error      string     `json:"error,omitempty"`
	Sections   []Section  `json:"sections,omitempty"`
}

// Stats is the API view of the run statistics.
type Stats struct {
	TotalRuns      int64      `json:"totalRuns"`
	SuccessfulRuns int64      `json:"successfulRuns"`
	AbortedRuns    int64      `json:"abortedRuns"`
	TotalMutations int64      `json:"totalMutations"`
	LastSuccess    *time.Time `json:"lastSuccess,omitempty"`
}

// ToRun converts a database.Run. Sections are only included if loaded.
func ToRun(r database.Run) Run {
	run := Run{
		RunID:      r.RunID,
		Trigger:    r.Trigger,
		Status:     string(r.Status),
		DryRun:     r.DryRun,
		StartedAt:  r.StartedAt,
		StartedAgo: timediff.TimeDiff(r.StartedAt),
		FinishedAt: r.FinishedAt,
		DurationMs: r.Duration().Milliseconds(),
		Processed:  r.Processed,
		Skipped:    r.Skipped,
		Errored:    r.Errored,
		Mutations:  r.Mutations,
		Error:      r.Error,
	}
	for _, s := range r.Sections {
		run.Sections = append(run.Sections, Section{
			ID:        s.SectionID,
			Title:     s.SectionTitle,
			Kind:      s.Kind,
			Processed: s.Processed,
			Skipped:   s.Skipped,
			Errored:   s.Errored,
			Mutations: s.Mutations,
			Partial:   s.Partial,
			Error:     s.Error,
		})
	}
	return run
}

// ToRuns converts a slice of database.Run.
func ToRuns(runs []database.Run) []Run {
	result := make([]Run, len(runs))
	for i, r := range runs {
		result[i] = ToRun(r)
	}
	return result
}

// ToStats converts database.RunStats.
func ToStats(s *database.RunStats) Stats {
	return Stats{
		TotalRuns:      s.TotalRuns,
		SuccessfulRuns: s.SuccessfulRuns,
		AbortedRuns:    s.AbortedRuns,
		TotalMutations: s.TotalMutations,
		LastSuccess:    s.LastSuccess,
	}
}
