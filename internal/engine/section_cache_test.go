package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/jon4hz/reqtag/internal/engine/library"
	librarymock "github.com/jon4hz/reqtag/internal/engine/library/mock"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionCache_LabelKeyRefreshesOnMiss(t *testing.T) {
	ctx := context.Background()
	lib := librarymock.NewMockLibrarier()
	lib.AddItems(media.Item{LibraryID: "1", SectionID: "s", Kind: media.KindMovie, Labels: []string{"4k"}})

	sc, err := newSectionCache(ctx, lib, "s")
	require.NoError(t, err)

	key, err := sc.LabelKey(ctx, "4K")
	require.NoError(t, err)
	assert.NotEmpty(t, key)

	_, err = sc.LabelKey(ctx, "requester:alice")
	require.ErrorIs(t, err, ErrLabelNotFound)

	// a label written during the run
	require.NoError(t, lib.AddLabel(ctx, library.Ref{SectionID: "s", ID: "1", Type: library.RefMovie}, "requester:alice"))
	key, err = sc.LabelKey(ctx, "requester:alice")
	require.NoError(t, err)
	assert.NotEmpty(t, key)
}

func TestSectionCache_Collections(t *testing.T) {
	ctx := context.Background()
	lib := librarymock.NewMockLibrarier()
	lib.AddCollection("s", media.Collection{ID: "c1", Title: "Movies Requested by Alice"})

	sc, err := newSectionCache(ctx, lib, "s")
	require.NoError(t, err)

	col, ok := sc.Collection("Movies Requested by Alice")
	require.True(t, ok)
	assert.Equal(t, "c1", col.ID)

	_, ok = sc.Collection("movies requested by alice")
	assert.False(t, ok, "titles match exactly")

	sc.addCollectionLabel("c1", "owner:alice")
	sc.addCollectionLabel("c1", "Owner:Alice")
	col, _ = sc.Collection("Movies Requested by Alice")
	assert.Equal(t, []string{"owner:alice"}, col.Labels)

	// snapshots are copies
	snapshot := sc.Collections()
	snapshot[0].Labels[0] = "changed"
	col, _ = sc.Collection("Movies Requested by Alice")
	assert.Equal(t, []string{"owner:alice"}, col.Labels)

	sc.putCollection(media.Collection{ID: "c2", Title: "Movies Requested by Bob"})
	sc.putCollection(media.Collection{ID: "c2", Title: "Movies Requested by Bob"})
	assert.Len(t, sc.Collections(), 2)
}

func TestSectionCache_LoadErrors(t *testing.T) {
	ctx := context.Background()
	lib := librarymock.NewMockLibrarier()
	lib.ListCollectionsError = errors.New("unauthorized")

	_, err := newSectionCache(ctx, lib, "s")
	require.Error(t, err)
	assert.ErrorContains(t, err, "unauthorized")
}
