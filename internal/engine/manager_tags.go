package engine

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/reqtag/internal/engine/arr"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/jon4hz/reqtag/internal/reconcile"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

type managerKey struct {
	kind media.Kind
	id   int
}

type managerEntry struct {
	manager arr.Arrer
	record  media.ManagedRecord
	titles  []string
	desired [][]string
}

// managerTags collects the desired tags of every manager record during a run.
// Several library items can share one record, e.g. an HD and a 4K section
// backed by the same Radarr, so tags are written once per record after all
// sections were reconciled.
type managerTags struct {
	mu         sync.Mutex
	entries    map[managerKey]*managerEntry
	incomplete map[media.Kind]bool
}

func newManagerTags() *managerTags {
	return &managerTags{
		entries:    make(map[managerKey]*managerEntry),
		incomplete: make(map[media.Kind]bool),
	}
}

// add records the desired status labels of an item backed by record.
func (m *managerTags) add(manager arr.Arrer, record media.ManagedRecord, item media.Item, desired []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := managerKey{kind: manager.Kind(), id: record.ManagerID}
	entry, ok := m.entries[key]
	if !ok {
		entry = &managerEntry{manager: manager, record: record}
		m.entries[key] = entry
	}
	entry.titles = append(entry.titles, item.Title)
	entry.desired = append(entry.desired, desired)
}

// markIncomplete stops tag writes for kind in this run. A section that was not
// fully reconciled may hide the requested item of a shared record.
func (m *managerTags) markIncomplete(kind media.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incomplete[kind] = true
}

type managerChange struct {
	entry *managerEntry
	ops   []reconcile.Op
}

// changes returns the records whose tags differ from the desired state, ordered by kind and id.
func (m *managerTags) changes(logger *log.Logger) []managerChange {
	m.mu.Lock()
	defer m.mu.Unlock()

	for kind := range m.incomplete {
		logger.Warn("Not all sections were reconciled, manager tags are left alone", "kind", kind)
	}

	keys := lo.Keys(m.entries)
	slices.SortFunc(keys, func(a, b managerKey) int {
		return cmp.Or(cmp.Compare(a.kind, b.kind), cmp.Compare(a.id, b.id))
	})

	var out []managerChange
	for _, key := range keys {
		if m.incomplete[key.kind] {
			continue
		}
		entry := m.entries[key]
		ops := reconcile.ManagerOps(entry.record.Tags, reconcile.SharedDesired(entry.desired...))
		if len(ops) > 0 {
			out = append(out, managerChange{entry: entry, ops: ops})
		}
	}
	return out
}

// applyManagerTags writes the collected manager tags with one read-modify-write
// per record and returns the mutations and the failed records.
func (e *Engine) applyManagerTags(ctx context.Context, logger *log.Logger, m *managerTags) (int, int) {
	changes := m.changes(logger)
	if len(changes) == 0 {
		return 0, 0
	}

	if e.cfg.DryRun {
		mutations := 0
		for _, c := range changes {
			for _, op := range c.ops {
				logger.Info("[Dry Run] Would apply", "manager", c.entry.manager.Name(), "title", c.entry.record.Title, "op", op.String())
			}
			mutations += len(c.ops)
		}
		return mutations, 0
	}

	var mutations, errored atomic.Int64
	var g errgroup.Group
	g.SetLimit(max(e.cfg.Workers, 1))
	for _, c := range changes {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			var add, remove []string
			for _, op := range c.ops {
				if op.Action == reconcile.ActionAdd {
					add = append(add, op.Label)
				} else {
					remove = append(remove, op.Label)
				}
			}
			id := c.entry.record.ManagerID
			if err := c.entry.manager.ApplyTags(ctx, id, add, remove); err != nil {
				errored.Add(1)
				logger.Error("Failed to update manager tags", "manager", c.entry.manager.Name(), "id", id, "items", c.entry.titles, "error", err)
				return nil
			}
			mutations.Add(int64(len(c.ops)))
			lo.ForEach(c.ops, func(op reconcile.Op, _ int) { countMutation(op) })
			return nil
		})
	}
	_ = g.Wait()

	return int(mutations.Load()), int(errored.Load())
}
