package engine

import (
	"context"
	"fmt"

	"github.com/jon4hz/reqtag/internal/engine/library"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/jon4hz/reqtag/internal/reconcile"
	"github.com/jon4hz/reqtag/internal/tags"
	"github.com/samber/lo"
)

func (e *Engine) applyCollectionOp(ctx context.Context, sr *sectionRun, op reconcile.Op) (int, error) {
	if op.Action == reconcile.ActionCreateCollection {
		return e.createCollection(ctx, sr, *op.Collection)
	}

	// owner label of a collection created by an earlier run
	sr.cache.createMu.Lock()
	defer sr.cache.createMu.Unlock()
	col, ok := lo.Find(sr.cache.Collections(), func(c media.Collection) bool { return c.ID == op.CollectionID })
	if ok && hasLabel(col.Labels, op.Label) {
		return 0, nil
	}
	if err := e.labelCollection(ctx, sr, op.CollectionID, op.Label); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	countMutation(op)
	return 1, nil
}

// createCollection creates the smart collection of a requester and labels it with its owner.
// Workers of a section create collections one at a time and re-check the cache
// once they hold the lock, so a collection is created once per run.
func (e *Engine) createCollection(ctx context.Context, sr *sectionRun, spec reconcile.CollectionSpec) (int, error) {
	sc := sr.cache
	sc.createMu.Lock()
	defer sc.createMu.Unlock()

	if existing, ok := sc.Collection(spec.Title); ok {
		if hasLabel(existing.Labels, spec.OwnerLabel) {
			return 0, nil
		}
		if err := e.labelCollection(ctx, sr, existing.ID, spec.OwnerLabel); err != nil {
			return 0, fmt.Errorf("%w: %q: %w", ErrCollectionCreateFailed, spec.Title, err)
		}
		countMutation(reconcile.Op{Target: reconcile.TargetCollection, Action: reconcile.ActionAdd})
		return 1, nil
	}

	key, err := sc.LabelKey(ctx, spec.QueryLabel)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrCollectionCreateFailed, spec.Title, err)
	}

	col, err := e.library.CreateSmartCollection(ctx, library.SmartCollection{
		SectionID: sr.section.ID,
		MachineID: sr.server.MachineID,
		Kind:      spec.Kind,
		Title:     spec.Title,
		LabelKey:  key,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrCollectionCreateFailed, spec.Title, err)
	}
	countMutation(reconcile.Op{Target: reconcile.TargetCollection, Action: reconcile.ActionCreateCollection})
	sr.logger.Info("Created collection", "title", spec.Title, "id", col.ID)

	if err := sc.RefreshCollections(ctx); err != nil {
		sr.logger.Warn("Failed to refresh collections", "error", err)
	}
	// the listing can lag behind the create
	sc.putCollection(*col)

	if err := e.labelCollection(ctx, sr, col.ID, spec.OwnerLabel); err != nil {
		return 1, fmt.Errorf("%w: owner label of %q: %w", ErrCollectionCreateFailed, spec.Title, err)
	}
	countMutation(reconcile.Op{Target: reconcile.TargetCollection, Action: reconcile.ActionAdd})
	return 2, nil
}

func (e *Engine) labelCollection(ctx context.Context, sr *sectionRun, id, label string) error {
	ref := library.Ref{SectionID: sr.section.ID, ID: id, Type: library.RefCollection}
	if err := e.library.AddLabel(ctx, ref, label); err != nil {
		return err
	}
	sr.cache.addCollectionLabel(id, label)
	return nil
}

func hasLabel(labels []string, label string) bool {
	return lo.ContainsBy(labels, func(l string) bool { return tags.Normalize(l) == tags.Normalize(label) })
}

// collectionOwner returns the owner label of a collection, if any.
func collectionOwner(c media.Collection) (string, bool) {
	return lo.Find(c.Labels, func(l string) bool { return tags.IsReqtagLabel(l) && !tags.IsStatusLabel(l) })
}
