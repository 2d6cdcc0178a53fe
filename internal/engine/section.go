package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/engine/arr"
	"github.com/jon4hz/reqtag/internal/engine/library"
	"github.com/jon4hz/reqtag/internal/engine/stats"
	"github.com/jon4hz/reqtag/internal/identity"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/jon4hz/reqtag/internal/metrics"
	"github.com/jon4hz/reqtag/internal/reconcile"
	"github.com/jon4hz/reqtag/internal/watch"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// sectionRun is the state shared by the workers of one section.
type sectionRun struct {
	logger   *log.Logger
	server   *ServerContext
	section  media.Section
	kind     *config.KindConfig
	cache    *SectionCache
	requests identity.RequestIndex
	managed  identity.Index
	manager  arr.Arrer
	tags     *managerTags
	sessions map[string][]media.WatchSession
}

func (e *Engine) runSection(ctx context.Context, logger *log.Logger, server *ServerContext, section media.Section, reqs identity.RequestIndex, mt *managerTags) SectionSummary {
	sum := SectionSummary{ID: section.ID, Title: section.Title, Kind: section.Kind}
	logger = logger.With("section", section.Title)
	started := time.Now()
	logger.Info("Reconciling section", "kind", section.Kind)

	fail := func(msg string, err error) SectionSummary {
		mt.markIncomplete(section.Kind)
		logger.Error(msg, "error", err)
		sum.Error = err.Error()
		return sum
	}

	sc, err := newSectionCache(ctx, e.library, section.ID)
	if err != nil {
		return fail("Failed to load section labels and collections", err)
	}

	items, err := e.library.ListItems(ctx, section)
	if err != nil {
		recordPartial("plex", err)
		if len(items) == 0 {
			return fail("Failed to list section items", err)
		}
		sum.Partial = true
		mt.markIncomplete(section.Kind)
		logger.Warn("Item listing is incomplete, processing the collected items", "items", len(items), "error", err)
	}

	history, err := e.stats.ListAllHistory(ctx, stats.HistoryFilter{SectionID: section.ID})
	if err != nil {
		recordPartial("tautulli", err)
		// missing sessions would turn watched items stale
		sum.Errored = len(items)
		return fail("Failed to load watch history, skipping section", err)
	}

	sr := &sectionRun{
		logger:   logger,
		server:   server,
		section:  section,
		kind:     e.kindConfig(section.Kind),
		cache:    sc,
		requests: reqs,
		manager:  e.arrs[section.Kind],
		tags:     mt,
		sessions: lo.GroupBy(history, func(s media.WatchSession) string { return s.MediaLibraryID }),
	}

	if sr.manager != nil {
		records, err := sr.manager.ListItems(ctx, nil)
		if err != nil {
			sum.Partial = true
			logger.Warn("Manager records are incomplete, unlisted records are left alone", "manager", sr.manager.Name(), "records", len(records), "error", err)
		}
		sr.managed = identity.NewIndex(records)
	}

	eligible, err := e.filters.ApplyAll(ctx, items)
	if err != nil {
		return fail("Failed to filter section items", err)
	}
	sum.Skipped = len(items) - len(eligible)

	var processed, errored, mutations atomic.Int64
	var g errgroup.Group
	g.SetLimit(max(e.cfg.Workers, 1))
	for _, item := range eligible {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, err := e.processItem(ctx, sr, item)
			mutations.Add(int64(n))
			if err != nil {
				errored.Add(1)
				logger.Error("Failed to reconcile item", "title", item.Title, "id", item.LibraryID, "error", err)
				return nil
			}
			processed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	sum.Processed = int(processed.Load())
	sum.Errored = int(errored.Load())
	sum.Mutations = int(mutations.Load())
	metrics.RecordItems(section.Title, sum.Processed, sum.Skipped, sum.Errored)

	logger.Info("Section reconciled",
		"processed", sum.Processed,
		"skipped", sum.Skipped,
		"errored", sum.Errored,
		"mutations", sum.Mutations,
		"duration", time.Since(started).Round(time.Millisecond),
	)
	return sum
}

// processItem reconciles one item and returns the number of mutations.
// In dry run the ops are logged and counted but not applied.
func (e *Engine) processItem(ctx context.Context, sr *sectionRun, item media.Item) (int, error) {
	managed, _ := identity.Resolve(item, sr.managed)
	req, requested := sr.requests.For(item, identity.Selection(e.cfg.RequestSelection))

	// manager tags are reconciled per record once all sections are done
	in := reconcile.Input{
		Item:                item,
		ExistingCollections: sr.cache.Collections(),
		Collections: reconcile.CollectionOptions{
			Enabled: sr.kind.Collections,
			Prefix:  sr.kind.CollectionPrefix,
		},
	}
	if requested {
		facts := watch.Evaluate(watch.Input{
			Item:       item,
			Request:    *req,
			Sessions:   sr.sessions[item.LibraryID],
			Managed:    managed,
			Now:        sr.server.Now,
			StaleAdded: e.cfg.StaleAddedThreshold,
			StaleView:  e.cfg.StaleViewThreshold,
		})
		in.Request = req
		in.Facts = &facts
	}

	if sr.manager != nil && managed != nil {
		sr.tags.add(sr.manager, *managed, item, reconcile.Desired(in.Request, in.Facts))
	}

	ops := reconcile.Reconcile(in)
	if len(ops) == 0 {
		return 0, nil
	}

	if e.cfg.DryRun {
		for _, op := range ops {
			sr.logger.Info("[Dry Run] Would apply", "title", item.Title, "op", op.String())
		}
		return len(ops), nil
	}

	return e.applyOps(ctx, sr, item, ops)
}

// applyOps applies item labels first, so the requester label exists before a collection filters by it.
func (e *Engine) applyOps(ctx context.Context, sr *sectionRun, item media.Item, ops []reconcile.Op) (int, error) {
	var (
		applied int
		errs    []error
	)

	ref := library.Ref{SectionID: item.SectionID, ID: item.LibraryID, Type: library.RefTypeFor(item.Kind)}
	for _, op := range reconcile.Filter(ops, reconcile.TargetItem) {
		var err error
		switch op.Action {
		case reconcile.ActionAdd:
			err = e.library.AddLabel(ctx, ref, op.Label)
		case reconcile.ActionRemove:
			err = e.library.RemoveLabel(ctx, ref, op.Label)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", op, err))
			continue
		}
		applied++
		countMutation(op)
	}

	for _, op := range reconcile.Filter(ops, reconcile.TargetCollection) {
		n, err := e.applyCollectionOp(ctx, sr, op)
		applied += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	return applied, errors.Join(errs...)
}

func countMutation(op reconcile.Op) {
	metrics.MutationsTotal.WithLabelValues(string(op.Target), string(op.Action)).Inc()
}
