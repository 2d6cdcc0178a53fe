package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/reqtag/internal/scheduler"
)

// ReconcileJobID is the scheduler ID of the reconciliation job.
const ReconcileJobID = "reconcile"

// GetScheduler returns the scheduler instance for API access.
func (e *Engine) GetScheduler() *scheduler.Scheduler {
	return e.scheduler
}

// Run starts the engine and all its background jobs.
func (e *Engine) Run(ctx context.Context) error {
	e.scheduler.Start()

	<-ctx.Done()
	return nil
}

// Close stops the engine and cleans up resources.
func (e *Engine) Close() error {
	return e.scheduler.Stop()
}

// setupJobs configures all scheduled jobs.
func (e *Engine) setupJobs() error {
	if err := e.scheduler.AddSingletonJob(
		ReconcileJobID,
		"Reconcile",
		"Tags requested items with their requester and watch status",
		e.cfg.Schedule,
		e.runReconcileJob,
		true,
	); err != nil {
		return fmt.Errorf("failed to add reconcile job: %w", err)
	}

	log.Info("Scheduled jobs configured successfully", "schedule", e.cfg.Schedule)
	return nil
}

func (e *Engine) runReconcileJob(ctx context.Context) error {
	_, err := e.RunOnce(ctx, TriggerSchedule)
	if errors.Is(err, ErrRunInProgress) {
		return nil
	}
	return err
}
