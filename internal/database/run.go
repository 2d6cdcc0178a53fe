package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// ErrRunNotFound is returned for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the outcome of a reconciliation run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	// RunStatusSuccess means every section was processed, item errors included.
	RunStatusSuccess RunStatus = "success"
	// RunStatusAborted means the run stopped before any write.
	RunStatusAborted   RunStatus = "aborted"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one reconciliation run.
type Run struct {
	gorm.Model
	// RunID is the public identifier of the run.
	RunID      string    `gorm:"uniqueIndex;not null"`
	Trigger    string    `gorm:"not null"`
	Status     RunStatus `gorm:"not null;index"`
	DryRun     bool
	StartedAt  time.Time `gorm:"not null;index"`
	FinishedAt *time.Time
	Processed  int
	Skipped    int
	Errored    int
	Mutations  int
	Error      string
	Sections   []SectionResult `gorm:"constraint:OnDelete:CASCADE;"`
}

// Duration returns how long the run took, zero while it runs.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// SectionResult is the outcome of one section in a run.
type SectionResult struct {
	gorm.Model
	RunID        uint   `gorm:"not null;index"`
	SectionID    string `gorm:"not null"`
	SectionTitle string
	Kind         string
	Processed    int
	Skipped      int
	Errored      int
	Mutations    int
	// Partial is set when a collaborator returned an incomplete list.
	Partial bool
	Error   string
}

// RunStats aggregates all stored runs.
type RunStats struct {
	TotalRuns      int64
	SuccessfulRuns int64
	AbortedRuns    int64
	TotalMutations int64
	LastSuccess    *time.Time
}

// RunDB defines the run history operations.
type RunDB interface {
	CreateRun(ctx context.Context, run *Run) error
	// FinishRun stores the final state of run and its section results.
	FinishRun(ctx context.Context, run *Run) error
	GetRuns(ctx context.Context, limit int) ([]Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	GetRunStats(ctx context.Context) (*RunStats, error)
}

func (c *Client) CreateRun(ctx context.Context, run *Run) error {
	if err := c.db.WithContext(ctx).Create(run).Error; err != nil {
		log.Error("failed to create run", "error", err)
		return err
	}
	return nil
}

func (c *Client) FinishRun(ctx context.Context, run *Run) error {
	if run.ID == 0 {
		return fmt.Errorf("run %s was never created", run.RunID)
	}
	// Save upserts the section results along with the run
	if err := c.db.WithContext(ctx).Save(run).Error; err != nil {
		log.Error("failed to finish run", "run", run.RunID, "error", err)
		return err
	}
	return nil
}

func (c *Client) GetRuns(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	q := c.db.WithContext(ctx).Preload("Sections").Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		log.Error("failed to get runs", "error", err)
		return nil, err
	}
	return runs, nil
}

func (c *Client) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	err := c.db.WithContext(ctx).Preload("Sections").Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		log.Error("failed to get run", "run", runID, "error", err)
		return nil, err
	}
	return &run, nil
}

func (c *Client) GetRunStats(ctx context.Context) (*RunStats, error) {
	var stats RunStats
	if err := c.db.WithContext(ctx).Model(&Run{}).Count(&stats.TotalRuns).Error; err != nil {
		return nil, err
	}
	if err := c.db.WithContext(ctx).Model(&Run{}).Where("status = ?", RunStatusSuccess).Count(&stats.SuccessfulRuns).Error; err != nil {
		return nil, err
	}
	if err := c.db.WithContext(ctx).Model(&Run{}).Where("status = ?", RunStatusAborted).Count(&stats.AbortedRuns).Error; err != nil {
		return nil, err
	}
	var mutations *int64
	if err := c.db.WithContext(ctx).Model(&Run{}).Select("SUM(mutations)").Scan(&mutations).Error; err != nil {
		return nil, err
	}
	if mutations != nil {
		stats.TotalMutations = *mutations
	}

	var last Run
	err := c.db.WithContext(ctx).Where("status = ?", RunStatusSuccess).Order("started_at DESC").First(&last).Error
	switch {
	case err == nil:
		stats.LastSuccess = last.FinishedAt
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return &stats, nil
}
