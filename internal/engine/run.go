package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jon4hz/reqtag/internal/database"
	"github.com/jon4hz/reqtag/internal/identity"
	"github.com/jon4hz/reqtag/internal/metrics"
	"github.com/jon4hz/reqtag/internal/pagination"
)

const notifyTimeout = 30 * time.Second

// RunOnce performs a single reconciliation run.
// It returns ErrRunInProgress if another run is active and an error wrapping
// ErrCollaboratorUnavailable if the run was aborted before any write.
// Item and section failures are reported in the summary, not as an error.
func (e *Engine) RunOnce(ctx context.Context, trigger string) (*RunSummary, error) {
	if !e.running.CompareAndSwap(false, true) {
		log.Warn("Reconciliation already in progress, skipping", "trigger", trigger)
		metrics.RecordRun("skipped", 0)
		return nil, ErrRunInProgress
	}
	defer e.running.Store(false)

	summary := &RunSummary{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		DryRun:    e.cfg.DryRun,
		Status:    database.RunStatusRunning,
		StartedAt: e.now(),
	}
	logger := log.With("run", summary.RunID[:8])
	logger.Info("Starting reconciliation", "trigger", trigger, "dry_run", summary.DryRun)

	record := &database.Run{
		RunID:     summary.RunID,
		Trigger:   trigger,
		Status:    database.RunStatusRunning,
		DryRun:    summary.DryRun,
		StartedAt: summary.StartedAt,
	}
	if err := e.db.CreateRun(ctx, record); err != nil {
		logger.Warn("Failed to record run start, history will miss this run", "error", err)
		record = nil
	}

	// every run works on fresh data
	e.cache.ClearAll(ctx)

	err := e.reconcile(ctx, logger, summary)
	summary.FinishedAt = e.now()
	switch {
	case errors.Is(err, ErrCollaboratorUnavailable):
		summary.Status = database.RunStatusAborted
		summary.Error = err.Error()
	case ctx.Err() != nil:
		summary.Status = database.RunStatusCancelled
		summary.Error = ctx.Err().Error()
		err = ctx.Err()
	default:
		summary.Status = database.RunStatusSuccess
		err = nil
	}

	e.finish(ctx, logger, record, summary)
	return summary, err
}

func (e *Engine) reconcile(ctx context.Context, logger *log.Logger, summary *RunSummary) error {
	server, err := e.newServerContext(ctx)
	if err != nil {
		logger.Error("Aborting run", "error", err)
		return err
	}

	reqs, err := e.requests.ListAllRequests(ctx, e.cfg.RequestFilter)
	if err != nil {
		recordPartial("overseerr", err)
		// an incomplete request list would mark requested items as not requested
		err = fmt.Errorf("%w: requests: %w", ErrCollaboratorUnavailable, err)
		logger.Error("Aborting run", "error", err)
		return err
	}
	logger.Info("Requests loaded", "count", humanize.Comma(int64(len(reqs))))
	index := identity.NewRequestIndex(reqs)

	sections, err := e.library.ListSections(ctx)
	if err != nil {
		err = fmt.Errorf("%w: sections: %w", ErrCollaboratorUnavailable, err)
		logger.Error("Aborting run", "error", err)
		return err
	}

	mt := newManagerTags()
	for _, section := range sections {
		if !e.sectionEnabled(section) {
			logger.Debug("Skipping section", "section", section.Title, "kind", section.Kind)
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		summary.add(e.runSection(ctx, logger, server, section, index, mt))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	summary.ManagerMutations, summary.ManagerErrored = e.applyManagerTags(ctx, logger, mt)
	summary.Mutations += summary.ManagerMutations
	summary.Errored += summary.ManagerErrored
	return nil
}

// finish logs, persists and publishes the summary. The run context may be
// cancelled at this point, so the writes use a detached one.
func (e *Engine) finish(ctx context.Context, logger *log.Logger, record *database.Run, s *RunSummary) {
	ctx = context.WithoutCancel(ctx)

	metrics.RecordRun(string(s.Status), s.Duration())
	logger.Info("Reconciliation finished",
		"status", s.Status,
		"processed", humanize.Comma(int64(s.Processed)),
		"skipped", humanize.Comma(int64(s.Skipped)),
		"errored", humanize.Comma(int64(s.Errored)),
		"mutations", humanize.Comma(int64(s.Mutations)),
		"duration", s.Duration().Round(time.Millisecond),
	)

	if record != nil {
		s.fill(record)
		if err := e.db.FinishRun(ctx, record); err != nil {
			logger.Error("Failed to record run result", "error", err)
		}
	}

	if e.notifier != nil {
		nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := e.notifier.SendRunSummary(nctx, s.notification()); err != nil {
			logger.Warn("Failed to send run summary", "error", err)
		}
	}
}

func recordPartial(source string, err error) {
	if errors.Is(err, pagination.ErrPartialPagination) || errors.Is(err, pagination.ErrFetchFailed) {
		metrics.PartialPaginations.WithLabelValues(source).Inc()
	}
}
