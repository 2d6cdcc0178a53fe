package reconcile

import (
	"math/rand/v2"
	"testing"

	"github.com/jon4hz/reqtag/internal/media"
	"github.com/jon4hz/reqtag/internal/tags"
	"github.com/jon4hz/reqtag/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var movieCollections = CollectionOptions{Enabled: true, Prefix: "Movies"}

func alice() *media.Request {
	return &media.Request{ID: 1, MediaLibraryID: "42", RequesterUsername: "alice", RequesterDisplayName: "Alice"}
}

func TestReconcile_NotRequested(t *testing.T) {
	ops := Reconcile(Input{
		Item:        media.Item{LibraryID: "42", Kind: media.KindMovie},
		Collections: movieCollections,
	})

	assert.Equal(t, []Op{{Target: TargetItem, Action: ActionAdd, Label: tags.NotRequested}}, ops)
}

func TestReconcile_NotRequestedClearsPreviousFacts(t *testing.T) {
	ops := Reconcile(Input{
		Item: media.Item{
			LibraryID: "42",
			Kind:      media.KindMovie,
			Labels:    []string{"requester:alice", "stale_request", "4K", "others_watching"},
		},
		Managed: &media.ManagedRecord{ManagerID: 9, Tags: []string{"requester-alice", "keep"}},
	})

	assert.Equal(t, []Op{
		{Target: TargetItem, Action: ActionAdd, Label: tags.NotRequested},
		{Target: TargetItem, Action: ActionRemove, Label: tags.OthersWatching},
		{Target: TargetItem, Action: ActionRemove, Label: "requester:alice"},
		{Target: TargetItem, Action: ActionRemove, Label: tags.StaleRequest},
		{Target: TargetManager, Action: ActionAdd, Label: "not-requested"},
		{Target: TargetManager, Action: ActionRemove, Label: "requester-alice"},
	}, ops)
}

func TestReconcile_FullyWatchedMovie(t *testing.T) {
	ops := Reconcile(Input{
		Item:        media.Item{LibraryID: "42", Kind: media.KindMovie, ExternalIDs: media.ExternalIDs{media.SchemeTMDB: "123"}},
		Managed:     &media.ManagedRecord{ManagerID: 1, ExternalID: media.ExternalID{Scheme: media.SchemeTMDB, Value: "123"}},
		Request:     alice(),
		Facts:       &watch.Facts{RequesterFullyWatched: true},
		Collections: movieCollections,
	})

	assert.Contains(t, ops, Op{Target: TargetItem, Action: ActionAdd, Label: "requester:alice"})
	assert.Contains(t, ops, Op{Target: TargetItem, Action: ActionAdd, Label: tags.RequesterWatched})
	assert.Contains(t, ops, Op{Target: TargetManager, Action: ActionAdd, Label: "requester-alice"})
	assert.Contains(t, ops, Op{Target: TargetManager, Action: ActionAdd, Label: "requester-watched"})
	assert.NotContains(t, ops, Op{Target: TargetItem, Action: ActionAdd, Label: tags.NotRequested})

	create := Filter(ops, TargetCollection)
	require.Len(t, create, 1)
	assert.Equal(t, ActionCreateCollection, create[0].Action)
	assert.Equal(t, &CollectionSpec{
		Title:      "Movies Requested by Alice",
		Kind:       media.KindMovie,
		QueryLabel: "requester:alice",
		OwnerLabel: "owner:alice",
	}, create[0].Collection)
}

func TestReconcile_RequestRemovesNotRequested(t *testing.T) {
	ops := Reconcile(Input{
		Item:    media.Item{LibraryID: "42", Kind: media.KindMovie, Labels: []string{"not_requested"}},
		Request: alice(),
		Facts:   &watch.Facts{IsStale: true},
	})

	assert.Equal(t, []Op{
		{Target: TargetItem, Action: ActionAdd, Label: "requester:alice"},
		{Target: TargetItem, Action: ActionAdd, Label: tags.StaleRequest},
		{Target: TargetItem, Action: ActionRemove, Label: tags.NotRequested},
	}, ops)
}

func TestReconcile_RequesterChanged(t *testing.T) {
	ops := Reconcile(Input{
		Item:    media.Item{LibraryID: "42", Kind: media.KindMovie, Labels: []string{"requester:bob"}},
		Request: alice(),
		Facts:   &watch.Facts{},
	})

	assert.Equal(t, []Op{
		{Target: TargetItem, Action: ActionAdd, Label: "requester:alice"},
		{Target: TargetItem, Action: ActionRemove, Label: "requester:bob"},
	}, ops)
}

func TestReconcile_CaseInsensitiveLabels(t *testing.T) {
	ops := Reconcile(Input{
		Item:    media.Item{LibraryID: "42", Kind: media.KindMovie, Labels: []string{"Requester:Alice", "REQUESTER_WATCHED"}},
		Managed: &media.ManagedRecord{Tags: []string{"Requester-Alice", "requester-watched"}},
		Request: &media.Request{MediaLibraryID: "42", RequesterUsername: "ALICE"},
		Facts:   &watch.Facts{RequesterFullyWatched: true},
	})

	assert.Empty(t, ops)
}

func TestReconcile_ExistingCollection(t *testing.T) {
	in := Input{
		Item:        media.Item{LibraryID: "42", Kind: media.KindMovie, Labels: []string{"requester:alice"}},
		Request:     alice(),
		Facts:       &watch.Facts{},
		Collections: movieCollections,
	}

	t.Run("labelled collection needs nothing", func(t *testing.T) {
		in.ExistingCollections = []media.Collection{{ID: "c1", Title: "Movies Requested by Alice", Labels: []string{"owner:alice"}}}
		assert.Empty(t, Reconcile(in))
	})

	t.Run("unlabelled collection gets its owner label", func(t *testing.T) {
		in.ExistingCollections = []media.Collection{{ID: "c1", Title: "Movies Requested by Alice"}}
		assert.Equal(t, []Op{{Target: TargetCollection, Action: ActionAdd, Label: "owner:alice", CollectionID: "c1"}}, Reconcile(in))
	})

	t.Run("titles match exactly", func(t *testing.T) {
		in.ExistingCollections = []media.Collection{{ID: "c1", Title: "movies requested by alice", Labels: []string{"owner:alice"}}}
		ops := Reconcile(in)
		require.Len(t, ops, 1)
		assert.Equal(t, ActionCreateCollection, ops[0].Action)
	})

	t.Run("display name falls back to username", func(t *testing.T) {
		in.Request = &media.Request{MediaLibraryID: "42", RequesterUsername: "alice"}
		in.ExistingCollections = []media.Collection{{ID: "c1", Title: "Movies Requested by alice", Labels: []string{"owner:alice"}}}
		assert.Empty(t, Reconcile(in))
	})

	t.Run("collections disabled", func(t *testing.T) {
		in.Collections.Enabled = false
		in.ExistingCollections = nil
		assert.Empty(t, Reconcile(in))
	})
}

func TestReconcile_NotRequestedTouchesNoCollection(t *testing.T) {
	ops := Reconcile(Input{
		Item:        media.Item{LibraryID: "42", Kind: media.KindMovie},
		Collections: movieCollections,
	})
	assert.Empty(t, Filter(ops, TargetCollection))
}

// applyAll mirrors what the engine does after a successful write.
func applyAll(in Input, ops []Op) Input {
	in.Item.Labels = Apply(TargetItem, in.Item.Labels, ops)
	if in.Managed != nil {
		managed := *in.Managed
		managed.Tags = Apply(TargetManager, managed.Tags, ops)
		in.Managed = &managed
	}
	for _, op := range ops {
		switch {
		case op.Action == ActionCreateCollection:
			in.ExistingCollections = append(in.ExistingCollections, media.Collection{
				ID:     "new",
				Title:  op.Collection.Title,
				Labels: []string{op.Collection.OwnerLabel},
			})
		case op.Target == TargetCollection && op.Action == ActionAdd:
			for i := range in.ExistingCollections {
				if in.ExistingCollections[i].ID == op.CollectionID {
					in.ExistingCollections[i].Labels = append(in.ExistingCollections[i].Labels, op.Label)
				}
			}
		}
	}
	return in
}

func TestReconcile_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	users := []string{"alice", "bob", "Carol"}
	pool := []string{
		"not_requested", "requester:alice", "requester:bob", "requester_watched",
		"others_watching", "stale_request", "4k", "favorite",
	}
	managerPool := []string{"not-requested", "requester-alice", "requester-watched", "stale-request", "keep"}

	pick := func(from []string) []string {
		var out []string
		for _, l := range from {
			if rng.IntN(2) == 0 {
				out = append(out, l)
			}
		}
		return out
	}

	for i := 0; i < 500; i++ {
		in := Input{
			Item:        media.Item{LibraryID: "42", Kind: media.KindMovie, Labels: pick(pool)},
			Collections: CollectionOptions{Enabled: rng.IntN(2) == 0, Prefix: "Movies"},
		}
		if rng.IntN(2) == 0 {
			in.Managed = &media.ManagedRecord{ManagerID: 1, Tags: pick(managerPool)}
		}
		if rng.IntN(3) > 0 {
			in.Request = &media.Request{MediaLibraryID: "42", RequesterUsername: users[rng.IntN(len(users))]}
			in.Facts = &watch.Facts{
				RequesterFullyWatched: rng.IntN(2) == 0,
				OthersWatching:        rng.IntN(2) == 0,
			}
			in.Facts.IsStale = !in.Facts.OthersWatching && rng.IntN(2) == 0
		}

		first := Reconcile(in)
		second := Reconcile(applyAll(in, first))
		require.Empty(t, second, "iteration %d: first pass %v", i, first)
	}
}

func TestSharedDesired(t *testing.T) {
	tests := []struct {
		name string
		sets [][]string
		want []string
	}{
		{name: "no items"},
		{
			name: "only unrequested",
			sets: [][]string{{tags.NotRequested}, {tags.NotRequested}},
			want: []string{tags.NotRequested},
		},
		{
			name: "requested wins",
			sets: [][]string{{tags.NotRequested}, {"requester:alice", tags.RequesterWatched}},
			want: []string{"requester:alice", tags.RequesterWatched},
		},
		{
			name: "requested items are merged",
			sets: [][]string{{"requester:alice", tags.StaleRequest}, {tags.NotRequested}, {"requester:alice", tags.OthersWatching}},
			want: []string{tags.OthersWatching, "requester:alice", tags.StaleRequest},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SharedDesired(tt.sets...))
		})
	}
}

func TestManagerOps(t *testing.T) {
	ops := ManagerOps([]string{"4k", "not-requested"}, []string{"requester:alice", tags.RequesterWatched})

	assert.Equal(t, []Op{
		{Target: TargetManager, Action: ActionAdd, Label: "requester-alice"},
		{Target: TargetManager, Action: ActionAdd, Label: "requester-watched"},
		{Target: TargetManager, Action: ActionRemove, Label: "not-requested"},
	}, ops)

	assert.Empty(t, ManagerOps([]string{"4k", "requester-alice", "requester-watched"}, []string{"requester:alice", tags.RequesterWatched}))
}

func TestApply(t *testing.T) {
	ops := []Op{
		{Target: TargetItem, Action: ActionAdd, Label: "requester:alice"},
		{Target: TargetItem, Action: ActionRemove, Label: "not_requested"},
		{Target: TargetManager, Action: ActionRemove, Label: "not-requested"},
		{Target: TargetCollection, Action: ActionAdd, Label: "owner:alice", CollectionID: "1"},
	}

	assert.Equal(t, []string{"4k", "requester:alice"}, Apply(TargetItem, []string{"NOT_REQUESTED", "4k"}, ops))
	assert.Equal(t, []string{"keep"}, Apply(TargetManager, []string{"Not-Requested", "keep"}, ops))
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "item add(requester:alice)", Op{Target: TargetItem, Action: ActionAdd, Label: "requester:alice"}.String())
	assert.Equal(t, `create_collection("Movies Requested by Alice")`, Op{
		Target:     TargetCollection,
		Action:     ActionCreateCollection,
		Collection: &CollectionSpec{Title: "Movies Requested by Alice"},
	}.String())
}
