// Package reconcile turns watch facts into the minimal set of label, tag and
// collection mutations for one library item.
package reconcile

import (
	"fmt"
	"slices"

	"github.com/jon4hz/reqtag/internal/media"
	"github.com/jon4hz/reqtag/internal/tags"
	"github.com/jon4hz/reqtag/internal/watch"
	"github.com/samber/lo"
)

// Target is the record a mutation applies to.
type Target string

const (
	// TargetItem is the library item's label set.
	TargetItem Target = "item"
	// TargetManager is the content manager record's tag set.
	TargetManager Target = "manager"
	// TargetCollection is a library collection.
	TargetCollection Target = "collection"
)

// Action is the kind of mutation.
type Action string

const (
	ActionAdd              Action = "add"
	ActionRemove           Action = "remove"
	ActionCreateCollection Action = "create_collection"
)

// Op is a single mutation.
type Op struct {
	Target Target
	Action Action
	// Label is the label or tag to add or remove, already normalized.
	Label string
	// CollectionID is set for label ops on an existing collection.
	CollectionID string
	// Collection is set for ActionCreateCollection.
	Collection *CollectionSpec
}

func (o Op) String() string {
	switch o.Action {
	case ActionCreateCollection:
		return fmt.Sprintf("create_collection(%q)", o.Collection.Title)
	default:
		if o.CollectionID != "" {
			return fmt.Sprintf("%s %s(%s) on %s", o.Target, o.Action, o.Label, o.CollectionID)
		}
		return fmt.Sprintf("%s %s(%s)", o.Target, o.Action, o.Label)
	}
}

// CollectionSpec describes a requester smart collection.
type CollectionSpec struct {
	Title string
	Kind  media.Kind
	// QueryLabel is the item label the smart collection filters on.
	QueryLabel string
	// OwnerLabel is applied to the collection once it exists.
	OwnerLabel string
}

// CollectionOptions gates and names requester collections.
type CollectionOptions struct {
	Enabled bool
	// Prefix is the kind prefix of the title, e.g. "Movies".
	Prefix string
}

// Input is everything Reconcile needs for one item.
type Input struct {
	Item    media.Item
	Managed *media.ManagedRecord
	// Request is nil for items nobody requested.
	Request *media.Request
	// Facts is ignored when Request is nil.
	Facts               *watch.Facts
	ExistingCollections []media.Collection
	Collections         CollectionOptions
}

// CollectionTitle returns the smart collection title for a request.
func CollectionTitle(prefix string, req media.Request) string {
	return fmt.Sprintf("%s Requested by %s", prefix, req.DisplayName())
}

// Desired returns the status labels that should be set on an item.
func Desired(req *media.Request, facts *watch.Facts) []string {
	if req == nil {
		return []string{tags.NotRequested}
	}

	desired := []string{tags.Requester(req.RequesterUsername)}
	if facts == nil {
		return desired
	}
	if facts.RequesterFullyWatched {
		desired = append(desired, tags.RequesterWatched)
	}
	if facts.OthersWatching {
		desired = append(desired, tags.OthersWatching)
	}
	if facts.IsStale {
		desired = append(desired, tags.StaleRequest)
	}
	return desired
}

// Reconcile returns the mutations that bring the item, its manager record and
// the requester collection in line with the desired state.
// Unchanged input produces no ops.
func Reconcile(in Input) []Op {
	desired := Desired(in.Request, in.Facts)

	ops := diff(TargetItem, in.Item.Labels, desired, tags.Normalize, tags.IsStatusLabel)

	if in.Managed != nil {
		ops = append(ops, ManagerOps(in.Managed.Tags, desired)...)
	}

	if in.Request != nil && in.Collections.Enabled {
		ops = append(ops, collectionOps(in)...)
	}

	return ops
}

// ManagerOps returns the tag ops that bring a manager record's tags in line
// with the desired item status labels.
func ManagerOps(current, desired []string) []Op {
	managerDesired := lo.Map(desired, func(l string, _ int) string { return tags.Manager(l) })
	return diff(TargetManager, current, managerDesired, tags.Manager, tags.IsManagerStatusTag)
}

// SharedDesired merges the desired labels of all items backed by the same
// manager record. Requested items win: their labels are united and
// not_requested is only kept when no item was requested.
func SharedDesired(sets ...[]string) []string {
	requested := lo.Reject(sets, func(set []string, _ int) bool { return slices.Contains(set, tags.NotRequested) })
	if len(requested) == 0 {
		if len(sets) == 0 {
			return nil
		}
		return []string{tags.NotRequested}
	}
	merged := lo.Uniq(lo.Flatten(requested))
	slices.Sort(merged)
	return merged
}

// diff computes adds (desired minus current) and removes (owned current minus desired).
func diff(target Target, current, desired []string, normalize func(string) string, owned func(string) bool) []Op {
	have := make(map[string]struct{}, len(current))
	for _, c := range current {
		have[normalize(c)] = struct{}{}
	}
	want := make(map[string]struct{}, len(desired))
	for _, d := range desired {
		want[normalize(d)] = struct{}{}
	}

	var adds, removes []string
	for w := range want {
		if _, ok := have[w]; !ok {
			adds = append(adds, w)
		}
	}
	for h := range have {
		if _, ok := want[h]; ok || !owned(h) {
			continue
		}
		removes = append(removes, h)
	}
	slices.Sort(adds)
	slices.Sort(removes)

	ops := make([]Op, 0, len(adds)+len(removes))
	for _, a := range adds {
		ops = append(ops, Op{Target: target, Action: ActionAdd, Label: a})
	}
	for _, r := range removes {
		ops = append(ops, Op{Target: target, Action: ActionRemove, Label: r})
	}
	return ops
}

func collectionOps(in Input) []Op {
	title := CollectionTitle(in.Collections.Prefix, *in.Request)
	owner := tags.Owner(in.Request.RequesterUsername)

	existing, found := lo.Find(in.ExistingCollections, func(c media.Collection) bool {
		return c.Title == title
	})
	if !found {
		return []Op{{
			Target: TargetCollection,
			Action: ActionCreateCollection,
			Collection: &CollectionSpec{
				Title:      title,
				Kind:       in.Item.Kind,
				QueryLabel: tags.Requester(in.Request.RequesterUsername),
				OwnerLabel: owner,
			},
		}}
	}

	// a previous run created the collection but failed to label it
	hasOwner := lo.ContainsBy(existing.Labels, func(l string) bool { return tags.Normalize(l) == owner })
	if hasOwner {
		return nil
	}
	return []Op{{Target: TargetCollection, Action: ActionAdd, Label: owner, CollectionID: existing.ID}}
}

// Apply returns the label set of target after applying ops to current.
func Apply(target Target, current []string, ops []Op) []string {
	out := slices.Clone(current)
	for _, op := range ops {
		if op.Target != target || op.CollectionID != "" {
			continue
		}
		switch op.Action {
		case ActionAdd:
			out = append(out, op.Label)
		case ActionRemove:
			out = slices.DeleteFunc(out, func(l string) bool {
				if target == TargetManager {
					return tags.Manager(l) == op.Label
				}
				return tags.Normalize(l) == op.Label
			})
		}
	}
	return out
}

// Filter returns the ops for target.
func Filter(ops []Op, target Target) []Op {
	return lo.Filter(ops, func(op Op, _ int) bool { return op.Target == target })
}
