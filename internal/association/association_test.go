package association

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscout/soundscout-go/internal/datastore"
)

type fakeEdgeStore struct {
	existing      []datastore.EdgePair
	existingErr   error
	inserted      []datastore.EdgePair
	insertedKind  datastore.EdgeKind
	ensuredGenres []string
	queriedIDs    []string
}

func (f *fakeEdgeStore) ExistingEdges(kind datastore.EdgeKind, primaryIDs []string) ([]datastore.EdgePair, error) {
	f.queriedIDs = primaryIDs
	return f.existing, f.existingErr
}

func (f *fakeEdgeStore) InsertEdges(kind datastore.EdgeKind, pairs []datastore.EdgePair) (int, error) {
	f.insertedKind = kind
	f.inserted = pairs
	return len(pairs), nil
}

func (f *fakeEdgeStore) EnsureGenres(ids []string) (int, error) {
	f.ensuredGenres = ids
	return len(ids), nil
}

func TestResolveInsertsOnlyMissingEdges(t *testing.T) {
	store := &fakeEdgeStore{
		existing: []datastore.EdgePair{{PrimaryID: "t1", RelatedID: "ar1"}},
	}
	resolver := NewResolver(store)

	inserted, err := resolver.Resolve(datastore.EdgeTrackArtist, []datastore.EdgePair{
		{PrimaryID: "t1", RelatedID: "ar1"},
		{PrimaryID: "t1", RelatedID: "ar2"},
		{PrimaryID: "t2", RelatedID: "ar1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, datastore.EdgeTrackArtist, store.insertedKind)
	assert.Equal(t, []datastore.EdgePair{
		{PrimaryID: "t1", RelatedID: "ar2"},
		{PrimaryID: "t2", RelatedID: "ar1"},
	}, store.inserted)
}

func TestResolveDeduplicatesInput(t *testing.T) {
	store := &fakeEdgeStore{}
	resolver := NewResolver(store)

	inserted, err := resolver.Resolve(datastore.EdgeAlbumArtist, []datastore.EdgePair{
		{PrimaryID: "a1", RelatedID: "ar1"},
		{PrimaryID: "a1", RelatedID: "ar1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, []string{"a1"}, store.queriedIDs, "primary ids deduped before lookup")
}

func TestResolveNoDeltaSkipsInsert(t *testing.T) {
	store := &fakeEdgeStore{
		existing: []datastore.EdgePair{{PrimaryID: "t1", RelatedID: "p1"}},
	}
	resolver := NewResolver(store)

	inserted, err := resolver.Resolve(datastore.EdgeTrackPlaylist, []datastore.EdgePair{
		{PrimaryID: "t1", RelatedID: "p1"},
	})
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.Nil(t, store.inserted)
}

func TestResolveEmptyInput(t *testing.T) {
	store := &fakeEdgeStore{}
	resolver := NewResolver(store)

	inserted, err := resolver.Resolve(datastore.EdgeTrackArtist, nil)
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestResolveGenreEdgesEnsureGenresFirst(t *testing.T) {
	store := &fakeEdgeStore{}
	resolver := NewResolver(store)

	_, err := resolver.Resolve(datastore.EdgeGenreArtist, []datastore.EdgePair{
		{PrimaryID: "ar1", RelatedID: "rock"},
		{PrimaryID: "ar1", RelatedID: "pop"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"rock", "pop"}, store.ensuredGenres)
}

func TestResolvePropagatesLookupError(t *testing.T) {
	store := &fakeEdgeStore{existingErr: errors.New("db down")}
	resolver := NewResolver(store)

	_, err := resolver.Resolve(datastore.EdgeTrackArtist, []datastore.EdgePair{
		{PrimaryID: "t1", RelatedID: "ar1"},
	})
	assert.Error(t, err)
}

func TestPairsSkipsEmptyRelatedIDs(t *testing.T) {
	pairs := Pairs("t1", []string{"ar1", "", "ar2"})
	assert.Equal(t, []datastore.EdgePair{
		{PrimaryID: "t1", RelatedID: "ar1"},
		{PrimaryID: "t1", RelatedID: "ar2"},
	}, pairs)
}
