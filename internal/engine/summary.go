package engine

import (
	"time"

	"github.com/jon4hz/reqtag/internal/database"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/jon4hz/reqtag/internal/notify/ntfy"
	"github.com/samber/lo"
)

// Run triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// SectionSummary is the outcome of one section.
type SectionSummary struct {
	ID    string
	Title string
	Kind  media.Kind
	// Processed counts the items that were reconciled, with or without mutations.
	Processed int
	// Skipped counts the items excluded by the filter chain.
	Skipped int
	Errored int
	// Mutations counts applied ops, or the ops that would be applied in dry run.
	Mutations int
	// Partial is set when a listing came back incomplete.
	Partial bool
	Error   string
}

// RunSummary is the outcome of a run.
type RunSummary struct {
	RunID      string
	Trigger    string
	DryRun     bool
	Status     database.RunStatus
	StartedAt  time.Time
	FinishedAt time.Time
	Processed  int
	Skipped    int
	Errored    int
	Mutations  int
	// ManagerMutations and ManagerErrored count the manager tag writes done
	// after all sections. They are included in Mutations and Errored.
	ManagerMutations int
	ManagerErrored   int
	Sections         []SectionSummary
	Error            string
}

// Duration returns how long the run took.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *RunSummary) add(sec SectionSummary) {
	s.Sections = append(s.Sections, sec)
	s.Processed += sec.Processed
	s.Skipped += sec.Skipped
	s.Errored += sec.Errored
	s.Mutations += sec.Mutations
}

// fill copies the summary into a run record.
func (s *RunSummary) fill(run *database.Run) {
	finished := s.FinishedAt
	run.Status = s.Status
	run.FinishedAt = &finished
	run.Processed = s.Processed
	run.Skipped = s.Skipped
	run.Errored = s.Errored
	run.Mutations = s.Mutations
	run.Error = s.Error
	run.Sections = lo.Map(s.Sections, func(sec SectionSummary, _ int) database.SectionResult {
		return database.SectionResult{
			RunID:        run.ID,
			SectionID:    sec.ID,
			SectionTitle: sec.Title,
			Kind:         string(sec.Kind),
			Processed:    sec.Processed,
			Skipped:      sec.Skipped,
			Errored:      sec.Errored,
			Mutations:    sec.Mutations,
			Partial:      sec.Partial,
			Error:        sec.Error,
		}
	})
}

func (s *RunSummary) notification() ntfy.RunSummary {
	return ntfy.RunSummary{
		RunID:     s.RunID,
		DryRun:    s.DryRun,
		Duration:  s.Duration(),
		Processed: s.Processed,
		Skipped:   s.Skipped,
		Errored:   s.Errored,
		Mutations: s.Mutations,
		Sections: lo.Map(s.Sections, func(sec SectionSummary, _ int) ntfy.SectionSummary {
			return ntfy.SectionSummary{
				Title:     sec.Title,
				Processed: sec.Processed,
				Skipped:   sec.Skipped,
				Errored:   sec.Errored,
				Mutations: sec.Mutations,
				Partial:   sec.Partial,
			}
		}),
		Error: s.Error,
	}
}
