package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/reqtag/internal/engine/library"
	"github.com/jon4hz/reqtag/internal/tags"
	"golang.org/x/sync/errgroup"
)

// ResetSummary is the outcome of a reset.
type ResetSummary struct {
	// Labels counts removed item and collection labels.
	Labels int
	// Records counts manager records whose tags were rewritten.
	Records int
}

// ResetAll removes every reqtag label from the library and every reqtag tag
// from the content managers. Collections are left in place, only their owner
// label is removed. In dry run nothing is written.
func (e *Engine) ResetAll(ctx context.Context) (*ResetSummary, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer e.running.Store(false)

	log.Info("Resetting all reqtag labels and tags...", "dry_run", e.cfg.DryRun)
	e.cache.ClearAll(ctx)

	sections, err := e.library.ListSections(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: sections: %w", ErrCollaboratorUnavailable, err)
	}

	var (
		summary ResetSummary
		errs    []error
	)
	for _, section := range sections {
		items, err := e.library.ListItems(ctx, section)
		if err != nil {
			// the collected items are still reset
			errs = append(errs, fmt.Errorf("section %s: %w", section.Title, err))
		}
		for _, item := range items {
			ref := library.Ref{SectionID: section.ID, ID: item.LibraryID, Type: library.RefTypeFor(item.Kind)}
			for _, l := range item.Labels {
				if !tags.IsReqtagLabel(l) {
					continue
				}
				if e.cfg.DryRun {
					log.Info("[Dry Run] Would remove label", "title", item.Title, "label", l)
				} else if err := e.library.RemoveLabel(ctx, ref, l); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", item.Title, err))
					continue
				}
				summary.Labels++
			}
		}

		collections, err := e.library.ListCollections(ctx, section.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("collections of section %s: %w", section.Title, err))
			continue
		}
		for _, col := range collections {
			owner, ok := collectionOwner(col)
			if !ok {
				continue
			}
			ref := library.Ref{SectionID: section.ID, ID: col.ID, Type: library.RefCollection}
			if e.cfg.DryRun {
				log.Info("[Dry Run] Would remove collection label", "collection", col.Title, "label", owner)
			} else if err := e.library.RemoveLabel(ctx, ref, owner); err != nil {
				errs = append(errs, fmt.Errorf("collection %s: %w", col.Title, err))
				continue
			}
			summary.Labels++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	var records atomic.Int64
	for _, a := range e.arrs {
		g.Go(func() error {
			if e.cfg.DryRun {
				log.Info("[Dry Run] Would remove reqtag tags", "manager", a.Name())
				return nil
			}
			log.Info("Removing reqtag tags", "manager", a.Name())
			n, err := a.ResetTags(gctx, tags.IsManagerStatusTag)
			records.Add(int64(n))
			if err != nil {
				return fmt.Errorf("failed to reset %s tags: %w", a.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	summary.Records = int(records.Load())

	if err := errors.Join(errs...); err != nil {
		log.Error("Reset finished with errors", "labels", summary.Labels, "records", summary.Records, "error", err)
		return &summary, err
	}
	log.Info("All reqtag labels and tags have been reset", "labels", summary.Labels, "records", summary.Records)
	return &summary, nil
}
